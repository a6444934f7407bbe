package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaysix/lazabot/internal/store"
)

type dummyTask struct {
	name     string
	delay    time.Duration
	fail     bool
	onRun    func()
	metadata map[string]any
}

func (d dummyTask) Execute(ctx context.Context) (map[string]any, error) {
	if d.onRun != nil {
		d.onRun()
	}
	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if d.fail {
		return nil, errors.New("task failed intentionally")
	}
	return d.metadata, nil
}

func (d dummyTask) Name() string { return d.name }

func waitFor(t *testing.T, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestSubmitRunsTaskToCompletion(t *testing.T) {
	e := New(5)
	id, err := e.Submit(context.Background(), dummyTask{name: "t1", delay: 10 * time.Millisecond, metadata: map[string]any{"ok": true}})
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)

	waitFor(t, func() bool {
		r, _ := e.Result(id)
		return r != nil && r.Status == store.TaskCompleted
	})
	r, ok := e.Result(id)
	require.True(t, ok)
	require.Equal(t, store.TaskCompleted, r.Status)
	require.NotNil(t, r.StartedAt)
	require.NotNil(t, r.CompletedAt)
}

func TestSubmitRespectsConcurrencyBound(t *testing.T) {
	const maxConcurrent = 3
	e := New(maxConcurrent)

	var current atomic.Int64
	var maxObserved atomic.Int64

	for i := 0; i < 20; i++ {
		_, err := e.Submit(context.Background(), dummyTask{
			name:  "bound",
			delay: 30 * time.Millisecond,
			onRun: func() {
				n := current.Add(1)
				for {
					prev := maxObserved.Load()
					if n <= prev || maxObserved.CompareAndSwap(prev, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				current.Add(-1)
			},
		})
		require.NoError(t, err)
	}

	waitFor(t, func() bool { return len(e.ResultsByStatus(store.TaskCompleted)) == 20 })
	require.LessOrEqual(t, maxObserved.Load(), int64(maxConcurrent))
}

func TestFailedTaskRecordsError(t *testing.T) {
	e := New(2)
	id, err := e.Submit(context.Background(), dummyTask{name: "fails", fail: true})
	require.NoError(t, err)

	waitFor(t, func() bool {
		r, _ := e.Result(id)
		return r != nil && r.Status == store.TaskFailed
	})
	r, _ := e.Result(id)
	require.Equal(t, "task failed intentionally", r.ErrorMessage)
}

func TestShutdownLetsTasksFinishWithinGrace(t *testing.T) {
	e := New(2)
	for i := 0; i < 4; i++ {
		_, err := e.Submit(context.Background(), dummyTask{name: "quick", delay: 20 * time.Millisecond})
		require.NoError(t, err)
	}

	time.Sleep(5 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := e.Shutdown(ctx)
	require.NoError(t, err)
	require.True(t, e.IsShuttingDown())
	// The two tasks running when Shutdown began finish normally; the two
	// still waiting for a permit are cancelled at admission.
	require.Equal(t, 2, len(e.ResultsByStatus(store.TaskCompleted)))
	require.Equal(t, 2, len(e.ResultsByStatus(store.TaskCancelled)))

	_, err = e.Submit(context.Background(), dummyTask{name: "late"})
	require.ErrorIs(t, err, ErrShuttingDown)
}

func TestShutdownForciblyCancelsAfterCallerDeadline(t *testing.T) {
	e := New(2)
	for i := 0; i < 4; i++ {
		_, err := e.Submit(context.Background(), dummyTask{name: "long", delay: 2 * time.Second})
		require.NoError(t, err)
	}

	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := e.Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, e.IsShuttingDown())

	waitFor(t, func() bool { return len(e.ResultsByStatus(store.TaskCancelled)) == 4 })
}
