package monitor

import (
	"log/slog"
	"time"
)

// PerformanceTimer tracks the latency of a single named operation across a
// start/stop pair, grounded on the original performance monitor used to
// time checks inside the poll loop.
type PerformanceTimer struct {
	name  string
	start time.Time
}

// NewPerformanceTimer builds an unstarted timer for name.
func NewPerformanceTimer(name string) *PerformanceTimer {
	return &PerformanceTimer{name: name}
}

// Start records the current time as the operation's start.
func (t *PerformanceTimer) Start() {
	t.start = time.Now()
}

// Stop returns the elapsed time since Start and logs it at debug level. If
// Start was never called, it logs a warning and returns zero.
func (t *PerformanceTimer) Stop() time.Duration {
	if t.start.IsZero() {
		slog.Warn("performance timer stopped without starting", "operation", t.name)
		return 0
	}
	elapsed := time.Since(t.start)
	slog.Debug("operation completed", "operation", t.name, "elapsed", elapsed)
	t.start = time.Time{}
	return elapsed
}

// Elapsed returns the time since Start without stopping the timer. Returns
// zero if the timer isn't running.
func (t *PerformanceTimer) Elapsed() time.Duration {
	if t.start.IsZero() {
		return 0
	}
	return time.Since(t.start)
}

// IsRunning reports whether Start has been called without a matching Stop.
func (t *PerformanceTimer) IsRunning() bool {
	return !t.start.IsZero()
}

// Reset clears the timer without logging.
func (t *PerformanceTimer) Reset() {
	t.start = time.Time{}
}
