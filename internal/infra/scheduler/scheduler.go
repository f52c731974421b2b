package scheduler

import (
	"context"
	"fmt"
	"time"

	"ad_kill_switch/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// MonitorScheduler owns the process cadence: the monitoring cycle on a fixed
// interval and the daily performance report. It owns no business logic.
type MonitorScheduler struct {
	cronEngine      *cron.Cron
	monitor         app.Monitor
	log             *logrus.Logger
	interval        time.Duration
	cycleTimeout    time.Duration
	dailyReportSpec string
}

func NewMonitorScheduler(
	monitor app.Monitor,
	log *logrus.Logger,
	interval time.Duration, // e.g. 1800s
	cycleTimeout time.Duration, // hard deadline for one cycle
	dailyReportSpec string, // e.g. "0 9 * * *"
) *MonitorScheduler {
	return &MonitorScheduler{
		// A cycle that outlasts the interval must finish before the next one
		// starts; ticks that land while a job is still running are skipped.
		cronEngine: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		monitor:         monitor,
		log:             log,
		interval:        interval,
		cycleTimeout:    cycleTimeout,
		dailyReportSpec: dailyReportSpec,
	}
}

func (s *MonitorScheduler) Start() error {
	s.log.Infof("starting monitor scheduler: cycle every %s, daily report at %q", s.interval, s.dailyReportSpec)

	intervalSpec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cronEngine.AddFunc(intervalSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cycleTimeout)
		defer cancel()
		if _, err := s.monitor.RunCycle(ctx); err != nil {
			// A failed cycle is logged and the loop carries on; the next
			// tick gets a fresh chance.
			s.log.Errorf("monitoring cycle failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("could not add monitoring cycle job: %w", err)
	}

	if _, err := s.cronEngine.AddFunc(s.dailyReportSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.monitor.SendDailyReport(ctx); err != nil {
			s.log.Errorf("daily report failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("could not add daily report job: %w", err)
	}

	s.cronEngine.Start()
	s.log.Info("monitor scheduler started")
	return nil
}

func (s *MonitorScheduler) Stop() {
	s.log.Info("stopping monitor scheduler...")
	ctx := s.cronEngine.Stop() // no new runs; waits for in-flight jobs
	<-ctx.Done()
	s.log.Info("monitor scheduler gracefully stopped")
}
