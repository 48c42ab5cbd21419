package report

import (
	"context"
	"sync"
)

// MemoryLedger is an in-process Ledger. Claims are never expired.
type MemoryLedger struct {
	mu     sync.Mutex
	claims map[string]struct{}
}

var _ Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{claims: make(map[string]struct{})}
}

func claimKey(runKey, recipient string) string {
	return runKey + "|" + recipient
}

func (l *MemoryLedger) Claim(_ context.Context, runKey, recipient string) (bool, error) {
	if runKey == "" || recipient == "" {
		return false, errNothingToClaim
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := claimKey(runKey, recipient)
	if _, ok := l.claims[key]; ok {
		return false, nil
	}
	l.claims[key] = struct{}{}
	return true, nil
}

func (l *MemoryLedger) Release(_ context.Context, runKey, recipient string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.claims, claimKey(runKey, recipient))
	return nil
}
