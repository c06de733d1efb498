// Package queue is the in-process task queue behind asynchronous fan-out.
// Tasks are named, executed at least once with bounded retries, and every
// enqueue hands back a completion signal so dependent tasks can be ordered
// explicitly instead of relying on timing.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is a unit of asynchronous work
type Task struct {
	ID      string
	Name    string
	Payload interface{}
}

// HandlerFunc processes one task. Returning an error triggers a retry
// until the attempt budget is spent.
type HandlerFunc func(ctx context.Context, task Task) error

type job struct {
	task  Task
	after <-chan struct{}
	done  chan struct{}
}

// Queue dispatches named tasks to registered handlers on a pool of
// workers. Correctness of the synchronous path never depends on the queue
// draining; it only carries outward notifications.
type Queue struct {
	handlers   map[string]HandlerFunc
	jobs       chan *job
	workers    int
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger

	mu      sync.RWMutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Queue with the given worker count and retry budget
func New(workers, maxRetries int, logger *slog.Logger) *Queue {
	if workers <= 0 {
		workers = 4
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Queue{
		handlers:   make(map[string]HandlerFunc),
		jobs:       make(chan *job, 256),
		workers:    workers,
		maxRetries: maxRetries,
		backoff:    50 * time.Millisecond,
		logger:     logger,
	}
}

// Handle registers the handler for a task name. Must be called before Start.
func (q *Queue) Handle(name string, fn HandlerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = fn
}

// Start launches the worker pool
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.started = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Enqueue submits a task and returns a channel closed once the task has
// finished (successfully or after exhausting retries).
func (q *Queue) Enqueue(name string, payload interface{}) <-chan struct{} {
	return q.EnqueueAfter(nil, name, payload)
}

// EnqueueAfter submits a task that will not run before the given signal
// closes. This is the ordering primitive for fan-out sequencing: pass the
// completion channel of the task that must land first.
func (q *Queue) EnqueueAfter(after <-chan struct{}, name string, payload interface{}) <-chan struct{} {
	j := &job{
		task: Task{
			ID:      uuid.New().String(),
			Name:    name,
			Payload: payload,
		},
		after: after,
		done:  make(chan struct{}),
	}
	q.jobs <- j
	return j.done
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q.jobs:
			if !ok {
				return
			}
			q.run(ctx, j)
		}
	}
}

func (q *Queue) run(ctx context.Context, j *job) {
	defer close(j.done)

	if j.after != nil {
		select {
		case <-j.after:
		case <-ctx.Done():
			return
		}
	}

	q.mu.RLock()
	handler, ok := q.handlers[j.task.Name]
	q.mu.RUnlock()
	if !ok {
		if q.logger != nil {
			q.logger.Error("no handler for task",
				slog.String("task", j.task.Name),
				slog.String("task_id", j.task.ID))
		}
		return
	}

	var err error
	for attempt := 0; attempt <= q.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(q.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return
			}
		}
		if err = handler(ctx, j.task); err == nil {
			return
		}
		if q.logger != nil {
			q.logger.Warn("task attempt failed",
				slog.String("task", j.task.Name),
				slog.String("task_id", j.task.ID),
				slog.Int("attempt", attempt+1),
				slog.Any("error", err))
		}
	}

	if q.logger != nil {
		q.logger.Error("task failed permanently",
			slog.String("task", j.task.Name),
			slog.String("task_id", j.task.ID),
			slog.Any("error", err))
	}
}

// Shutdown stops accepting progress and waits for in-flight workers, up to
// the context deadline.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return nil
	}
	cancel := q.cancel
	q.started = false
	q.mu.Unlock()

	cancel()

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue shutdown timed out: %w", ctx.Err())
	}
}
