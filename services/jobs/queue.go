package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var dequeueTimeout = time.Second

// RedisQueue is a Queue backed by a Redis list: LPUSH to enqueue, BRPOP to dequeue.
type RedisQueue struct {
	rdb *redis.Client
	key string
}

var _ Queue = (*RedisQueue)(nil)

func NewRedisQueue(rdb *redis.Client, key string) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return errors.Wrap(err, "marshalling task")
	}
	return q.rdb.LPush(ctx, q.key, data).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Task{}, err
		}
		res, err := q.rdb.BRPop(ctx, dequeueTimeout, q.key).Result()
		if err == redis.Nil {
			continue // timeout
		}
		if err != nil {
			return Task{}, err
		}

		// res: [key, value]
		var task Task
		if err = json.Unmarshal([]byte(res[1]), &task); err != nil {
			return Task{}, errors.Wrap(err, "unmarshalling task")
		}
		return task, nil
	}
}

// MemoryQueue is an in-process Queue.
type MemoryQueue struct {
	tasks chan Task
}

var _ Queue = (*MemoryQueue)(nil)

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{tasks: make(chan Task, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, task Task) error {
	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Task, error) {
	select {
	case task := <-q.tasks:
		return task, nil
	case <-ctx.Done():
		return Task{}, ctx.Err()
	}
}

// Len returns the number of pending tasks.
func (q *MemoryQueue) Len() int {
	return len(q.tasks)
}
