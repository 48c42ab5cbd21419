package dummydb

import (
	"sync"

	"github.com/trezcool/quizmaster/core/attempt"
	"github.com/trezcool/quizmaster/core/catalog"
	"github.com/trezcool/quizmaster/core/user"
)

type (
	// DB is an in-memory store implementing every repository of the app.
	// Writers are serialized: a transaction holds txMu until it ends and is rolled back by restoring a snapshot.
	DB struct {
		txMu sync.Mutex
		mu   sync.RWMutex
		t    *tables
	}

	tables struct {
		seq       map[string]int
		users     map[int]user.User
		subjects  map[int]catalog.Subject
		chapters  map[int]catalog.Chapter
		quizzes   map[int]catalog.Quiz
		questions map[int]catalog.Question
		attempts  map[int]attempt.Attempt
	}
)

func Open() (*DB, error) {
	return &DB{t: newTables()}, nil
}

func newTables() *tables {
	return &tables{
		seq:       make(map[string]int),
		users:     make(map[int]user.User),
		subjects:  make(map[int]catalog.Subject),
		chapters:  make(map[int]catalog.Chapter),
		quizzes:   make(map[int]catalog.Quiz),
		questions: make(map[int]catalog.Question),
		attempts:  make(map[int]attempt.Attempt),
	}
}

// Truncate empties all the tables.
func (db *DB) Truncate() {
	db.txMu.Lock()
	defer db.txMu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.t = newTables()
}

func (t *tables) nextID(table string) int {
	t.seq[table]++
	return t.seq[table]
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.seq {
		c.seq[k] = v
	}
	for k, v := range t.users {
		c.users[k] = copyUser(v)
	}
	for k, v := range t.subjects {
		c.subjects[k] = v
	}
	for k, v := range t.chapters {
		c.chapters[k] = v
	}
	for k, v := range t.quizzes {
		c.quizzes[k] = copyQuiz(v)
	}
	for k, v := range t.questions {
		c.questions[k] = v
	}
	for k, v := range t.attempts {
		c.attempts[k] = copyAttempt(v)
	}
	return c
}

// withinTx runs fn as a transaction unless the caller already runs one.
func (db *DB) withinTx(inTx bool, fn func() error) error {
	if inTx {
		return fn()
	}
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snap := db.t.clone()
	db.mu.RUnlock()

	if err := fn(); err != nil {
		db.mu.Lock()
		db.t = snap
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *DB) read(fn func(t *tables)) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	fn(db.t)
}

func (db *DB) write(fn func(t *tables) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(db.t)
}

func copyInts(s []int) []int {
	if s == nil {
		return nil
	}
	return append(make([]int, 0, len(s)), s...)
}

func copyUser(u user.User) user.User {
	if u.Roles != nil {
		u.Roles = append(make([]string, 0, len(u.Roles)), u.Roles...)
	}
	if u.PasswordHash != nil {
		u.PasswordHash = append(make([]byte, 0, len(u.PasswordHash)), u.PasswordHash...)
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		u.LastLogin = &t
	}
	return u
}

func copyQuiz(q catalog.Quiz) catalog.Quiz {
	if q.MaxAttempts != nil {
		n := *q.MaxAttempts
		q.MaxAttempts = &n
	}
	return q
}

func copyAttempt(a attempt.Attempt) attempt.Attempt {
	a.QuestionIDs = copyInts(a.QuestionIDs)
	if a.TimeStampOfAttempt != nil {
		t := *a.TimeStampOfAttempt
		a.TimeStampOfAttempt = &t
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		a.CompletedAt = &t
	}
	return a
}
