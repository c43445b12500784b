package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// TaskResult is published on the runner's results channel when a task finishes.
type TaskResult struct {
	Name string
	Err  error
}

// Task is a unit of background work submitted to a TaskRunner.
type Task struct {
	Name string

	done chan struct{}
	err  error
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's error. Only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TaskRunner runs background work that outlives the request that submitted it,
// such as processing started by an HTTP call that already returned 202.
// Every outcome is logged and published on Results so no failure is silently dropped.
type TaskRunner struct {
	ctx    context.Context
	cancel context.CancelFunc

	sem     chan struct{}
	wg      sync.WaitGroup
	results chan TaskResult
}

// NewTaskRunner creates a runner allowing at most maxConcurrent tasks to run at once.
// Results are buffered up to bufferSize; when the buffer is full new results are
// logged and dropped from the channel.
func NewTaskRunner(maxConcurrent, bufferSize int) *TaskRunner {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskRunner{
		ctx:     ctx,
		cancel:  cancel,
		sem:     make(chan struct{}, maxConcurrent),
		results: make(chan TaskResult, bufferSize),
	}
}

// Results returns the channel on which finished tasks are published.
func (r *TaskRunner) Results() <-chan TaskResult {
	return r.results
}

// Submit starts fn in the background. The task context keeps ctx's values but
// not its cancellation; it is cancelled when the runner is closed.
func (r *TaskRunner) Submit(ctx context.Context, name string, fn func(ctx context.Context) error) *Task {
	t := &Task{Name: name, done: make(chan struct{})}

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(r.ctx, cancel)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer stop()
		defer cancel()

		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
			t.err = r.run(taskCtx, name, fn)
		case <-taskCtx.Done():
			t.err = fmt.Errorf("task %s not started: %w", name, taskCtx.Err())
		}
		close(t.done)
		r.publish(TaskResult{Name: name, Err: t.err})
	}()

	return t
}

func (r *TaskRunner) run(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %s panicked: %v", name, p)
		}
	}()
	logger.Debug("Task %s started", name)
	return fn(ctx)
}

func (r *TaskRunner) publish(res TaskResult) {
	if res.Err != nil {
		logger.Error("Task %s failed: %v", res.Name, res.Err)
	} else {
		logger.Debug("Task %s finished", res.Name)
	}
	select {
	case r.results <- res:
	default:
		logger.Warn("Task results buffer full, dropping result for %s", res.Name)
	}
}

// Shutdown cancels running tasks and waits for them to return or ctx to end.
func (r *TaskRunner) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every submitted task has finished.
func (r *TaskRunner) Wait() {
	r.wg.Wait()
}
