package dispatch

import (
	"context"
	"sync"
	"time"
)

// Task is one unit of queued work. It receives the queue's run context.
type Task func(ctx context.Context)

// Queue runs tasks one at a time in submission order and pauses for a
// fixed delay after each one.
//
// Thread Safety: Enqueue and Len are safe for concurrent use. Run must be
// called once.
type Queue struct {
	name  string
	delay time.Duration

	mu    sync.Mutex
	tasks []Task
	wake  chan struct{}
}

// NewQueue creates an idle queue. Nothing runs until Run is called.
func NewQueue(name string, delay time.Duration) *Queue {
	return &Queue{
		name:  name,
		delay: delay,
		wake:  make(chan struct{}, 1),
	}
}

// Name returns the category this queue serves.
func (q *Queue) Name() string {
	return q.name
}

// Enqueue appends a task.
func (q *Queue) Enqueue(task Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Run processes tasks until ctx is cancelled. Tasks still waiting at that
// point are discarded.
func (q *Queue) Run(ctx context.Context) {
	for {
		task := q.next()
		if task == nil {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		task(ctx)

		if !q.pause(ctx) {
			return
		}
	}
}

func (q *Queue) next() Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil
	}
	task := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	return task
}

// pause waits out the delay. It returns false if ctx ended first.
func (q *Queue) pause(ctx context.Context) bool {
	if q.delay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(q.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
