package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quizmaster/core"
)

var retryDelay = time.Second

// Handler processes one task.
type Handler func(ctx context.Context, task Task) error

// Pool runs workers that dequeue tasks and dispatch them by type to the registered handlers.
type Pool struct {
	queue    Queue
	logger   core.Logger
	workers  int
	handlers map[string]Handler
	wg       sync.WaitGroup
}

func NewPool(queue Queue, logger core.Logger, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		queue:    queue,
		logger:   logger,
		workers:  workers,
		handlers: make(map[string]Handler),
	}
}

// Handle registers the handler of a task type. It must be called before Start.
func (p *Pool) Handle(typ string, h Handler) {
	p.handlers[typ] = h
}

// Start launches the workers. They stop when ctx is done.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.work(ctx, id)
		}(i + 1)
	}
}

// Wait blocks until all the workers have stopped.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) work(ctx context.Context, id int) {
	for {
		task, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error(fmt.Sprintf("worker %d: dequeuing task: %v", id, err), err)
			select {
			case <-time.After(retryDelay):
				continue
			case <-ctx.Done():
				return
			}
		}
		if err = p.Process(ctx, task); err != nil {
			p.logger.Error(fmt.Sprintf("worker %d: %v", id, err), err, map[string]interface{}{
				"task_id": task.ID,
				"type":    task.Type,
				"payload": string(task.Payload),
			})
		}
	}
}

// Process runs the handler of the task, converting a panic into an error.
func (p *Pool) Process(ctx context.Context, task Task) (err error) {
	h, ok := p.handlers[task.Type]
	if !ok {
		return errors.Errorf("no handler for task type %q", task.Type)
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("task %s (%s) panicked: %v\n%s", task.ID, task.Type, r, debug.Stack())
		}
	}()
	return errors.Wrapf(h(ctx, task), "task %s (%s)", task.ID, task.Type)
}
