// Package monitor polls product endpoints on an interval and emits an event
// whenever availability flips, grounded on the original MonitorTask /
// MonitorEngine pairing (poll loop + multi-task engine).
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relaysix/lazabot/internal/httpclient"
	"github.com/relaysix/lazabot/internal/proxypool"
	"github.com/relaysix/lazabot/internal/retry"
)

// ProductInfo identifies what a Task watches.
type ProductInfo struct {
	ID          string
	URL         string
	Name        string
	TargetPrice *float64
	MinStock    *int
}

// AvailabilityEvent is emitted whenever a product's availability changes.
type AvailabilityEvent struct {
	ProductID   string
	ProductURL  string
	Timestamp   time.Time
	Price       *float64
	Stock       *int
	IsAvailable bool
}

// Config parameterizes one monitor Task.
type Config struct {
	Product    ProductInfo
	Interval   time.Duration
	Timeout    time.Duration
	MaxRetries int
}

var outOfStockIndicators = []string{
	"out of stock",
	"sold out",
	"unavailable",
	"not available",
	"temporarily unavailable",
}

// Task polls a single product endpoint on Config.Interval and pushes an
// AvailabilityEvent to its channel whenever availability changes.
type Task struct {
	cfg     Config
	client  *httpclient.Client
	pool    *proxypool.Pool
	events  chan AvailabilityEvent
	running *atomic.Bool
}

// NewTask builds a Task. client performs the HTTP polling; pool (may be
// nil) supplies a proxy endpoint for each poll via round robin.
func NewTask(cfg Config, client *httpclient.Client, pool *proxypool.Pool) *Task {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Task{cfg: cfg, client: client, pool: pool, events: make(chan AvailabilityEvent, 16)}
}

// Events returns the channel availability-change events are published on.
func (t *Task) Events() <-chan AvailabilityEvent { return t.events }

// Run polls until ctx is done, closing the events channel on return.
func (t *Task) Run(ctx context.Context) error {
	defer close(t.events)

	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	var lastAvailability *bool

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if t.running != nil && !t.running.Load() {
			continue
		}

		available, err := t.checkWithRetry(ctx)
		if err != nil {
			continue
		}

		// A0, the implicit state before any observation, is unavailable;
		// the first real poll only emits if it departs from that baseline.
		prevAvailable := false
		if lastAvailability != nil {
			prevAvailable = *lastAvailability
		}

		if prevAvailable != available {
			event := AvailabilityEvent{
				ProductID:   t.cfg.Product.ID,
				ProductURL:  t.cfg.Product.URL,
				Timestamp:   time.Now().UTC(),
				IsAvailable: available,
			}
			select {
			case t.events <- event:
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			v := available
			lastAvailability = &v
		}
	}
}

func (t *Task) checkWithRetry(ctx context.Context) (bool, error) {
	var lastErr error
	for attempt := 0; attempt <= t.cfg.MaxRetries; attempt++ {
		available, err := t.singleCheck(ctx)
		if err == nil {
			return available, nil
		}
		lastErr = err

		if attempt < t.cfg.MaxRetries {
			select {
			case <-time.After(retry.Linear(time.Second, attempt)):
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("monitor: all retry attempts failed")
	}
	return false, lastErr
}

func (t *Task) singleCheck(ctx context.Context) (bool, error) {
	var ep *proxypool.Endpoint
	if t.pool != nil {
		if e, ok := t.pool.Next(); ok {
			ep = &e
		}
	}

	timer := NewPerformanceTimer("availability check " + t.cfg.Product.ID)
	timer.Start()
	defer timer.Stop()

	checkCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	resp, err := t.client.Request(checkCtx, http.MethodGet, t.cfg.Product.URL, nil, nil, ep)
	if err != nil {
		return false, fmt.Errorf("monitor: check failed: %w", err)
	}
	return parseAvailability(resp.StatusCode, resp.Text()), nil
}

func parseAvailability(statusCode int, body string) bool {
	if statusCode != http.StatusOK {
		return false
	}
	lower := strings.ToLower(body)
	for _, indicator := range outOfStockIndicators {
		if strings.Contains(lower, indicator) {
			return false
		}
	}
	return true
}

type taskHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Engine runs many monitor Tasks concurrently and stops them together.
type Engine struct {
	mu      sync.Mutex
	tasks   map[string]*taskHandle
	running atomic.Bool
}

// NewEngine builds an empty Engine.
func NewEngine() *Engine {
	return &Engine{tasks: make(map[string]*taskHandle)}
}

// AddMonitor registers task and spawns its poll loop, returning its event
// channel. Safe to call before or after Start: the loop ticks regardless,
// but each tick is a no-op until Start has been called.
func (e *Engine) AddMonitor(task *Task) <-chan AvailabilityEvent {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	task.running = &e.running

	e.mu.Lock()
	e.tasks[task.cfg.Product.ID] = &taskHandle{cancel: cancel, done: done}
	e.mu.Unlock()

	go func() {
		defer close(done)
		_ = task.Run(ctx)
	}()

	return task.Events()
}

// Start marks the engine as running, letting tasks already added via
// AddMonitor begin polling on their next tick.
func (e *Engine) Start() { e.running.Store(true) }

// IsRunning reports whether Start has been called without a matching Stop.
func (e *Engine) IsRunning() bool { return e.running.Load() }

// Stop cancels every running task and waits for them to exit or for ctx to
// expire, whichever comes first.
func (e *Engine) Stop(ctx context.Context) error {
	e.running.Store(false)

	e.mu.Lock()
	handles := make([]*taskHandle, 0, len(e.tasks))
	for _, h := range e.tasks {
		handles = append(handles, h)
	}
	e.tasks = make(map[string]*taskHandle)
	e.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}

	for _, h := range handles {
		select {
		case <-h.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// TaskCount returns the number of tasks currently tracked by the engine.
func (e *Engine) TaskCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}
