package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var NowFunc = time.Now // mockable

type (
	// Task is one unit of work, serialized as JSON on the queue.
	Task struct {
		ID         string          `json:"id"`
		Type       string          `json:"type"`
		Payload    json.RawMessage `json:"payload,omitempty"`
		EnqueuedAt time.Time       `json:"enqueued_at"`
	}

	// Queue is a FIFO of tasks shared by producers (API, scheduler) and the worker pool.
	Queue interface {
		Enqueue(ctx context.Context, task Task) error
		// Dequeue blocks until a task is available or ctx is done.
		Dequeue(ctx context.Context) (Task, error)
	}
)

func NewTask(typ string, payload interface{}) (Task, error) {
	task := Task{
		ID:         uuid.New().String(),
		Type:       typ,
		EnqueuedAt: NowFunc().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Task{}, errors.Wrap(err, "marshalling payload")
		}
		task.Payload = data
	}
	return task, nil
}

// Decode unmarshals the payload of the task into v.
func (t Task) Decode(v interface{}) error {
	if len(t.Payload) == 0 {
		return errors.Errorf("task %s (%s) has no payload", t.ID, t.Type)
	}
	return errors.Wrap(json.Unmarshal(t.Payload, v), "unmarshalling payload")
}

// Enqueue creates a task of type typ and pushes it on q.
func Enqueue(ctx context.Context, q Queue, typ string, payload interface{}) (Task, error) {
	task, err := NewTask(typ, payload)
	if err != nil {
		return Task{}, err
	}
	if err = q.Enqueue(ctx, task); err != nil {
		return Task{}, errors.Wrapf(err, "enqueuing %s", typ)
	}
	return task, nil
}
