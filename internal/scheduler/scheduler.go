// Package scheduler runs periodic maintenance jobs — proxy health recovery
// scans and session-expiry sweeps — on a cron schedule, adapted from the
// teacher's account scheduler (there: periodic account selection/health
// bookkeeping; here: periodic housekeeping over proxies and sessions).
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/relaysix/lazabot/internal/proxypool"
	"github.com/relaysix/lazabot/internal/session"
)

// Scheduler owns a cron runner wired to the pool's health checker and the
// session manager's expiry sweep.
type Scheduler struct {
	cron *cron.Cron
	pool *proxypool.Pool
	hc   *proxypool.HealthChecker
	mgr  *session.Manager

	sessionMaxAge time.Duration
}

// New builds a Scheduler. pool/hc may be nil to skip proxy recovery scans;
// mgr may be nil to skip session sweeps.
func New(pool *proxypool.Pool, hc *proxypool.HealthChecker, mgr *session.Manager, sessionMaxAge time.Duration) *Scheduler {
	return &Scheduler{
		cron:          cron.New(),
		pool:          pool,
		hc:            hc,
		mgr:           mgr,
		sessionMaxAge: sessionMaxAge,
	}
}

// ScheduleProxyRecovery registers a recurring scan of currently-unhealthy
// proxy pool members, per the given cron spec (e.g. "*/5 * * * *").
func (s *Scheduler) ScheduleProxyRecovery(ctx context.Context, spec string) error {
	if s.pool == nil || s.hc == nil {
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		report := s.hc.ScanUnhealthyOnly(ctx, s.pool)
		slog.Info("proxy recovery scan complete",
			"total", report.Total, "recovered", len(report.Healthy), "still_down", len(report.Unhealthy))
	})
	return err
}

// ScheduleSessionSweep registers a recurring sweep that deletes sessions
// idle longer than sessionMaxAge, per the given cron spec.
func (s *Scheduler) ScheduleSessionSweep(ctx context.Context, spec string) error {
	if s.mgr == nil {
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		removed, err := s.mgr.CleanupExpired(ctx, s.sessionMaxAge)
		if err != nil {
			slog.Error("session sweep failed", "error", err)
			return
		}
		slog.Info("session sweep complete", "removed", removed)
	})
	return err
}

// Start begins running registered jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron runner, blocking until any in-flight job completes.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}
