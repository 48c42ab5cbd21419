package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/quizmaster/core"
)

// Scheduler enqueues tasks on cron schedules, evaluated in UTC.
type Scheduler struct {
	cron   *cron.Cron
	queue  Queue
	logger core.Logger
}

func NewScheduler(queue Queue, logger core.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		queue:  queue,
		logger: logger,
	}
}

// Add enqueues a task of type typ, without payload, on each tick of the standard cron spec.
func (s *Scheduler) Add(spec, typ string) error {
	_, err := s.cron.AddFunc(spec, func() {
		task, err := Enqueue(context.Background(), s.queue, typ, nil)
		if err != nil {
			s.logger.Error(fmt.Sprintf("scheduling %s: %v", typ, err), err)
			return
		}
		s.logger.Info(fmt.Sprintf("scheduled %s (task %s)", typ, task.ID))
	})
	return errors.Wrapf(err, "adding %s schedule %q", typ, spec)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and returns a context done when the running triggers have completed.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Entries returns the registered schedules.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}
