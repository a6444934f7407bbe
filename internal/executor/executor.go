// Package executor runs submitted units of work under a bounded concurrency
// limit with graceful shutdown, grounded on the original task manager's
// semaphore-gated spawn loop and task-result map.
package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/relaysix/lazabot/internal/cache"
	"github.com/relaysix/lazabot/internal/store"
)

// ErrShuttingDown is returned by Submit once Shutdown has been called.
var ErrShuttingDown = errors.New("executor: shutting down")

// Task is a unit of work the Executor can run. Metadata is opaque,
// caller-defined data attached to a successful result.
type Task interface {
	Execute(ctx context.Context) (map[string]any, error)
	Name() string
}

// TaskResult is the point-in-time outcome of one submitted task.
type TaskResult struct {
	TaskID       uint64
	Name         string
	Status       store.TaskStatus
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
	Metadata     map[string]any
}

// Executor runs tasks concurrently up to a fixed permit count.
type Executor struct {
	maxConcurrent int64
	sem           *semaphore.Weighted
	results       *cache.Cache[uint64, *TaskResult]
	nextID        atomic.Uint64
	inUse         atomic.Int64
	shuttingDown  atomic.Bool

	cancelMu sync.Mutex
	cancels  map[uint64]context.CancelFunc

	wg sync.WaitGroup
}

// New builds an Executor that runs at most maxConcurrent tasks at once.
func New(maxConcurrent int64) *Executor {
	return &Executor{
		maxConcurrent: maxConcurrent,
		sem:           semaphore.NewWeighted(maxConcurrent),
		results:       cache.New[uint64, *TaskResult]("executor-results"),
		cancels:       make(map[uint64]context.CancelFunc),
	}
}

// Submit queues task for execution and returns its id immediately; task
// runs asynchronously. Returns ErrShuttingDown once Shutdown has begun.
func (e *Executor) Submit(ctx context.Context, task Task) (uint64, error) {
	if e.shuttingDown.Load() {
		return 0, ErrShuttingDown
	}

	id := e.nextID.Add(1) - 1
	e.results.Set(id, &TaskResult{TaskID: id, Name: task.Name(), Status: store.TaskPending})

	runCtx, cancel := context.WithCancel(ctx)
	e.trackCancel(id, cancel)

	e.wg.Add(1)
	go e.run(runCtx, id, task, cancel)

	return id, nil
}

func (e *Executor) run(ctx context.Context, id uint64, task Task, cancel context.CancelFunc) {
	defer e.wg.Done()
	defer e.untrackCancel(id)
	defer cancel()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		e.finish(id, task.Name(), store.TaskCancelled, nil, nil, "")
		return
	}
	e.inUse.Add(1)
	defer func() {
		e.inUse.Add(-1)
		e.sem.Release(1)
	}()

	if e.shuttingDown.Load() {
		e.finish(id, task.Name(), store.TaskCancelled, nil, nil, "")
		return
	}

	started := time.Now().UTC()
	e.results.Set(id, &TaskResult{TaskID: id, Name: task.Name(), Status: store.TaskRunning, StartedAt: &started})

	metadata, err := task.Execute(ctx)
	completed := time.Now().UTC()

	switch {
	case err != nil && errors.Is(err, context.Canceled):
		e.finish(id, task.Name(), store.TaskCancelled, &started, &completed, "")
	case err != nil:
		e.results.Set(id, &TaskResult{
			TaskID: id, Name: task.Name(), Status: store.TaskFailed,
			StartedAt: &started, CompletedAt: &completed, ErrorMessage: err.Error(),
		})
	default:
		e.results.Set(id, &TaskResult{
			TaskID: id, Name: task.Name(), Status: store.TaskCompleted,
			StartedAt: &started, CompletedAt: &completed, Metadata: metadata,
		})
	}
}

func (e *Executor) finish(id uint64, name string, status store.TaskStatus, started, completed *time.Time, errMsg string) {
	e.results.Set(id, &TaskResult{
		TaskID: id, Name: name, Status: status,
		StartedAt: started, CompletedAt: completed, ErrorMessage: errMsg,
	})
}

func (e *Executor) trackCancel(id uint64, cancel context.CancelFunc) {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	e.cancels[id] = cancel
}

func (e *Executor) untrackCancel(id uint64) {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	delete(e.cancels, id)
}

func (e *Executor) cancelAll() {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	for _, cancel := range e.cancels {
		cancel()
	}
}

// shutdownGrace is how long Shutdown waits for in-flight tasks to finish on
// their own before forcibly cancelling whatever is still outstanding.
const shutdownGrace = 30 * time.Second

// shutdownPollInterval is how often Shutdown checks for outstanding tasks
// during the grace window.
const shutdownPollInterval = 100 * time.Millisecond

// Shutdown stops accepting new tasks. Tasks still waiting for a permit are
// recorded Cancelled as soon as they obtain one; running tasks keep their
// context and get up to shutdownGrace to finish on their own. Anything still
// outstanding after the grace window, or once ctx is done, is force-
// cancelled. It blocks until every goroutine exits or ctx is done.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.shuttingDown.Store(true)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	grace := time.NewTimer(shutdownGrace)
	defer grace.Stop()
	poll := time.NewTicker(shutdownPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			e.cancelAll()
			return ctx.Err()
		case <-grace.C:
			e.cancelAll()
		case <-poll.C:
			// Wake up periodically during the grace window; done or
			// grace.C above decide whether to return or force-cancel.
		}
	}
}

// IsShuttingDown reports whether Shutdown has been called.
func (e *Executor) IsShuttingDown() bool { return e.shuttingDown.Load() }

// MaxConcurrent returns the configured concurrency bound.
func (e *Executor) MaxConcurrent() int64 { return e.maxConcurrent }

// AvailablePermits returns an approximate count of free execution slots.
func (e *Executor) AvailablePermits() int64 {
	free := e.maxConcurrent - e.inUse.Load()
	if free < 0 {
		return 0
	}
	return free
}

// Result returns the current result for id, if known.
func (e *Executor) Result(id uint64) (*TaskResult, bool) {
	return e.results.Get(id)
}

// AllResults returns every tracked task result, in no particular order.
func (e *Executor) AllResults() []*TaskResult {
	return e.results.Values()
}

// ResultsByStatus filters AllResults by status.
func (e *Executor) ResultsByStatus(status store.TaskStatus) []*TaskResult {
	var out []*TaskResult
	e.results.ForEach(func(_ uint64, r *TaskResult) {
		if r.Status == status {
			out = append(out, r)
		}
	})
	return out
}

// TotalTasks returns the number of tasks ever submitted.
func (e *Executor) TotalTasks() int { return e.results.Len() }
