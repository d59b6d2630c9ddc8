// Package scheduler runs the recurring maintenance jobs: the hourly refresh
// sweep, webhook replay, and the daily and weekly health reports.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"crm-bridge/internal/common/logging"
	"crm-bridge/internal/health"
	"crm-bridge/internal/tokens"
	"crm-bridge/internal/webhooks"
)

// Cron specs use the standard five-field format.
const (
	specRefreshSweep  = "0 * * * *"
	specWebhookReplay = "*/5 * * * *"
	specDailyReport   = "30 2 * * *"
	specWeeklySweep   = "0 3 * * 0"

	jobTimeout = 10 * time.Minute

	severelyExpiredDays = 7
	unusedDays          = 30
)

type Scheduler struct {
	cron       *cron.Cron
	engine     *tokens.Engine
	monitor    *health.Monitor
	reconciler *webhooks.Reconciler
	logger     logging.Logger
}

func New(engine *tokens.Engine, monitor *health.Monitor, reconciler *webhooks.Reconciler, logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Scheduler{
		cron:       cron.New(),
		engine:     engine,
		monitor:    monitor,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Start registers all jobs and starts the cron loop. The hourly sweep is the
// primary repair mechanism; the weekly sweep is a safety net behind it.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"refresh-due", specRefreshSweep, s.runRefreshSweep},
		{"webhook-replay", specWebhookReplay, s.runWebhookReplay},
		{"daily-health", specDailyReport, s.runDailyReport},
		{"weekly-bulk-refresh", specWeeklySweep, s.runWeeklyBulkRefresh},
	}

	for _, job := range jobs {
		job := job
		_, err := s.cron.AddFunc(job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			job.run(ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		logging.Int("jobs", len(jobs)),
	)
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) runRefreshSweep(ctx context.Context) {
	result, err := s.engine.RefreshAllDue(ctx)
	if err != nil {
		s.logger.Error("Refresh sweep failed", err)
		return
	}
	s.logger.Info("Refresh sweep finished",
		logging.Int("refreshed", result.RefreshedCount),
		logging.Int("failed", result.FailedCount),
	)
}

// runWeeklyBulkRefresh is the safety net behind the hourly job. It sweeps,
// then re-reads the summary so the post-sweep state lands in the logs.
func (s *Scheduler) runWeeklyBulkRefresh(ctx context.Context) {
	s.runRefreshSweep(ctx)

	summary, err := s.monitor.Summary(ctx)
	if err != nil {
		s.logger.Error("Post-sweep health summary failed", err)
		return
	}
	s.logger.Info("Post-sweep token health",
		logging.Int("total", summary.Total),
		logging.Int("expired", summary.Expired),
		logging.Int("needs_refresh", summary.NeedsRefresh),
		logging.Int("healthy", summary.Healthy),
	)
}

func (s *Scheduler) runWebhookReplay(ctx context.Context) {
	replayed, err := s.reconciler.ReplayUnprocessed(ctx)
	if err != nil {
		s.logger.Error("Webhook replay failed", err)
		return
	}
	if replayed > 0 {
		s.logger.Info("Replayed unprocessed webhook events",
			logging.Int("replayed", replayed),
		)
	}
}

// runDailyReport surfaces fleet health. Severely expired records mean the
// hourly sweep has been unable to repair them and need operator action.
func (s *Scheduler) runDailyReport(ctx context.Context) {
	summary, err := s.monitor.Summary(ctx)
	if err != nil {
		s.logger.Error("Daily health report failed", err)
		return
	}

	s.logger.Info("Daily token health report",
		logging.Int("total", summary.Total),
		logging.Int("expired", summary.Expired),
		logging.Int("needs_refresh", summary.NeedsRefresh),
		logging.Int("healthy", summary.Healthy),
		logging.Any("health_percentage", summary.HealthPercentage),
	)

	severe, err := s.monitor.SeverelyExpired(ctx, severelyExpiredDays)
	if err == nil && len(severe) > 0 {
		for _, integration := range severe {
			s.logger.Warn("Integration expired beyond repair window",
				logging.String("location_id", integration.LocationID),
				logging.Time("expires_at", integration.ExpiresAt),
			)
		}
	}

	unused, err := s.monitor.Unused(ctx, unusedDays)
	if err == nil && len(unused) > 0 {
		s.logger.Info("Integrations with no recent activity",
			logging.Int("count", len(unused)),
		)
	}
}
