package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"ad_kill_switch/internal/domain/ad"
	"ad_kill_switch/internal/domain/decision"
	"ad_kill_switch/internal/domain/monitor"
	"ad_kill_switch/internal/domain/notify"

	"github.com/sirupsen/logrus"
)

// Monitor defines the operations the scheduler and CLI drive.
type Monitor interface {
	// RunCycle performs one synchronous pass over all active ads.
	RunCycle(ctx context.Context) (monitor.Summary, error)
	// SendDailyReport pushes an aggregate performance report to the
	// notification sink.
	SendDailyReport(ctx context.Context) error
}

// errScaleDeclined signals that the scale policy vetoed a budget raise; the
// ad is then counted as kept, not as an error.
var errScaleDeclined = fmt.Errorf("scale policy declined the budget raise")

// Diagnostic is the read-only inspection result for a single ad.
type Diagnostic struct {
	AdID     string
	Snapshot ad.PerformanceSnapshot
	Decision decision.Decision
}

// AdReport is one row of the trailing-window performance report.
type AdReport struct {
	AdID     string
	Name     string
	Snapshot ad.PerformanceSnapshot
	Decision decision.Decision
}

// MonitorService drives the ad performance control loop: it lists active
// ads, fetches their intraday metrics, applies the tier policy and executes
// the resulting action, isolating every per-ad failure so one bad ad never
// aborts the batch.
type MonitorService struct {
	platform    ad.Platform
	thresholds  decision.Thresholds
	scalePolicy ScalePolicy
	notifier    notify.Notifier
	history     monitor.Repository
	log         *logrus.Logger
	workers     int
}

func NewMonitorService(
	platform ad.Platform,
	thresholds decision.Thresholds,
	scalePolicy ScalePolicy,
	notifier notify.Notifier,
	history monitor.Repository,
	log *logrus.Logger,
	workers int,
) *MonitorService {
	if workers < 1 {
		workers = 1
	}
	return &MonitorService{
		platform:    platform,
		thresholds:  thresholds,
		scalePolicy: scalePolicy,
		notifier:    notifier,
		history:     history,
		log:         log,
		workers:     workers,
	}
}

// RunCycle lists all ads with effective status ACTIVE and processes each one
// independently. Only a failure of the initial listing escalates as an error
// of the cycle itself; everything after that is downgraded to the Errors
// counter. The returned summary always has Total equal to the number of ads
// the listing produced.
func (s *MonitorService) RunCycle(ctx context.Context) (monitor.Summary, error) {
	started := time.Now()
	s.log.Info("monitoring cycle started")

	ads, err := s.platform.ListActiveAds(ctx)
	if err != nil {
		s.log.Errorf("failed to list active ads: %v", err)
		s.notifyError(err.Error(), "ListActiveAds")
		return monitor.Summary{}, fmt.Errorf("failed to list active ads: %w", err)
	}

	summary := monitor.Summary{Total: len(ads)}
	cycle := &monitor.Cycle{StartedAt: started, Total: len(ads)}
	if err := s.history.CreateCycle(ctx, cycle); err != nil {
		// History is best-effort: never let bookkeeping break the loop.
		s.log.Warnf("could not record cycle start: %v", err)
	}

	if len(ads) == 0 {
		s.log.Info("no active ads to monitor")
		s.finishCycle(cycle, summary)
		return summary, nil
	}
	s.log.Infof("found %d active ads", len(ads))

	var mu sync.Mutex
	var wg sync.WaitGroup
	jobs := make(chan *ad.Ad)

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				outcome := s.processAd(ctx, cycle, a)
				mu.Lock()
				switch outcome {
				case outcomeKept:
					summary.Kept++
				case outcomePaused:
					summary.Paused++
				case outcomeScaled:
					summary.Scaled++
				case outcomeErrored:
					summary.Errors++
				}
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, a := range ads {
		select {
		case <-ctx.Done():
			// Graceful shutdown: abandon ads not yet dispatched. The
			// counters stay consistent for everything already processed.
			s.log.Warnf("cycle interrupted, abandoning remaining ads: %v", ctx.Err())
			break dispatch
		case jobs <- a:
		}
	}
	close(jobs)
	wg.Wait()

	s.log.WithFields(logrus.Fields{
		"total":  summary.Total,
		"kept":   summary.Kept,
		"paused": summary.Paused,
		"scaled": summary.Scaled,
		"errors": summary.Errors,
	}).Info("monitoring cycle finished")

	s.finishCycle(cycle, summary)
	s.notifyCycleFinished(summary)
	return summary, nil
}

type adOutcome int

const (
	outcomeKept adOutcome = iota
	outcomePaused
	outcomeScaled
	outcomeErrored
)

// processAd is the per-ad isolation boundary: whatever goes wrong here is
// mapped to exactly one outcome and never propagates to the caller.
func (s *MonitorService) processAd(ctx context.Context, cycle *monitor.Cycle, a *ad.Ad) adOutcome {
	snap, err := s.fetchTodaySnapshot(ctx, a.ID)
	if err != nil {
		s.log.Errorf("ad %s (%s): insights fetch failed: %v", a.ID, a.Name, err)
		return outcomeErrored
	}

	d := decision.Decide(*snap, s.thresholds)
	switch d.Action {
	case decision.ActionKill:
		if err := s.pauseAd(ctx, a, d.Reason); err != nil {
			return outcomeErrored
		}
		s.recordAction(cycle, &monitor.ActionRecord{
			AdID:   a.ID,
			AdName: a.Name,
			Action: string(decision.ActionKill),
			Reason: sql.NullString{String: string(d.Reason), Valid: true},
		})
		return outcomePaused

	case decision.ActionScale:
		oldBudget, newBudget, err := s.scaleBudget(ctx, a)
		if errors.Is(err, errScaleDeclined) {
			s.log.Infof("ad %s (%s): winner, but scale policy declined", a.ID, a.Name)
			return outcomeKept
		}
		if err != nil {
			return outcomeErrored
		}
		s.recordAction(cycle, &monitor.ActionRecord{
			AdID:      a.ID,
			AdName:    a.Name,
			Action:    string(decision.ActionScale),
			OldBudget: sql.NullInt64{Int64: oldBudget, Valid: true},
			NewBudget: sql.NullInt64{Int64: newBudget, Valid: true},
		})
		return outcomeScaled

	default:
		s.log.Debugf("ad %s (%s): keep (ctr=%.2f%% roas=%.2f)", a.ID, a.Name, snap.CTR, snap.ROAS)
		return outcomeKept
	}
}

// fetchTodaySnapshot reads the intraday metrics for one ad. An ad the
// platform has no insights rows for yet is evaluated as all zeros: every
// tier gate requires positive impressions or spend, so it falls through to
// keep.
func (s *MonitorService) fetchTodaySnapshot(ctx context.Context, adID string) (*ad.PerformanceSnapshot, error) {
	snap, err := s.platform.GetInsights(ctx, adID, ad.WindowToday)
	if errors.Is(err, ad.ErrMetricsUnavailable) {
		s.log.Debugf("ad %s: no insights data, using zero snapshot", adID)
		return &ad.PerformanceSnapshot{}, nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// pauseAd sets the ad status to PAUSED. Notification delivery is
// best-effort and never turns a successful pause into a failure.
func (s *MonitorService) pauseAd(ctx context.Context, a *ad.Ad, reason decision.KillReason) error {
	if err := s.platform.SetAdStatus(ctx, a.ID, ad.StatusPaused); err != nil {
		s.log.Errorf("ad %s (%s): pause failed: %v", a.ID, a.Name, err)
		s.notifyError(fmt.Sprintf("pause failed: %v", err), fmt.Sprintf("pauseAd(%s)", a.ID))
		return err
	}

	s.log.Warnf("ad %s (%s) paused, reason: %s", a.ID, a.Name, reason)
	s.notifier.Notify(
		"Ad was automatically paused.",
		"Ad paused",
		notify.SeverityWarning,
		map[string]string{"Ad ID": a.ID, "Ad name": a.Name, "Reason": string(reason)},
	)
	return nil
}

// scaleBudget resolves the ad's budget group, raises whichever budget field
// is in use by the policy rate and writes it back on the same field.
func (s *MonitorService) scaleBudget(ctx context.Context, a *ad.Ad) (int64, int64, error) {
	if a.AdSetID == "" {
		err := fmt.Errorf("ad %s has no ad set id", a.ID)
		s.log.Error(err)
		return 0, 0, err
	}

	group, err := s.platform.GetBudgetGroup(ctx, a.AdSetID)
	if err != nil {
		s.log.Errorf("ad %s: budget group %s fetch failed: %v", a.ID, a.AdSetID, err)
		s.notifyError(fmt.Sprintf("budget group fetch failed: %v", err), fmt.Sprintf("scaleBudget(%s)", a.ID))
		return 0, 0, err
	}

	field, current, err := group.Budget()
	if err != nil {
		s.log.Warnf("ad %s: ad set %s has no usable budget", a.ID, group.ID)
		return 0, 0, err
	}

	now := time.Now()
	if !s.scalePolicy.Approve(a, now) {
		return 0, 0, errScaleDeclined
	}
	next := s.scalePolicy.NextBudget(current)

	if err := s.platform.SetBudget(ctx, group.ID, field, next); err != nil {
		s.log.Errorf("ad %s: budget update on ad set %s failed: %v", a.ID, group.ID, err)
		s.notifyError(fmt.Sprintf("budget update failed: %v", err), fmt.Sprintf("scaleBudget(%s)", a.ID))
		return 0, 0, err
	}
	a.LastScaledAt = now

	s.log.Infof("ad %s (%s): %s on ad set %s raised %d -> %d", a.ID, a.Name, field, group.ID, current, next)
	s.notifier.Notify(
		"Winning ad budget was raised.",
		"Budget scaled",
		notify.SeveritySuccess,
		map[string]string{
			"Ad ID":      a.ID,
			"Ad name":    a.Name,
			"Old budget": fmt.Sprintf("%d", current),
			"New budget": fmt.Sprintf("%d", next),
		},
	)
	return current, next, nil
}

// Diagnose returns the intraday snapshot and the decision the policy would
// take for a single ad. It performs no mutation.
func (s *MonitorService) Diagnose(ctx context.Context, adID string) (*Diagnostic, error) {
	snap, err := s.fetchTodaySnapshot(ctx, adID)
	if err != nil {
		return nil, err
	}
	return &Diagnostic{
		AdID:     adID,
		Snapshot: *snap,
		Decision: decision.Decide(*snap, s.thresholds),
	}, nil
}

// Report builds a trailing-window performance report over all active ads.
// The would-be decision shown per ad is still computed from the intraday
// snapshot, because that is the window the kill policy acts on. Per-ad fetch
// failures are logged and skipped.
func (s *MonitorService) Report(ctx context.Context) ([]*AdReport, error) {
	ads, err := s.platform.ListActiveAds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active ads: %w", err)
	}

	reports := make([]*AdReport, 0, len(ads))
	for _, a := range ads {
		snap, err := s.platform.GetInsights(ctx, a.ID, ad.WindowTrailing7Days)
		if errors.Is(err, ad.ErrMetricsUnavailable) {
			snap = &ad.PerformanceSnapshot{}
		} else if err != nil {
			s.log.Errorf("ad %s (%s): report insights fetch failed: %v", a.ID, a.Name, err)
			continue
		}

		diag, err := s.Diagnose(ctx, a.ID)
		if err != nil {
			s.log.Errorf("ad %s (%s): report diagnostic failed: %v", a.ID, a.Name, err)
			continue
		}

		reports = append(reports, &AdReport{
			AdID:     a.ID,
			Name:     a.Name,
			Snapshot: *snap,
			Decision: diag.Decision,
		})
	}
	return reports, nil
}

// SendDailyReport aggregates the trailing-window report and pushes it to the
// notification sink.
func (s *MonitorService) SendDailyReport(ctx context.Context) error {
	reports, err := s.Report(ctx)
	if err != nil {
		s.notifyError(err.Error(), "SendDailyReport")
		return err
	}

	var spend, revenue float64
	var conversions int64
	for _, r := range reports {
		spend += r.Snapshot.Spend
		revenue += r.Snapshot.Revenue
		conversions += r.Snapshot.Conversions
	}
	roas := 0.0
	if spend > 0 {
		roas = revenue / spend
	}

	s.notifier.Notify(
		"Ad performance report for the trailing 7 days.",
		"Daily report",
		notify.SeverityInfo,
		map[string]string{
			"Active ads":  fmt.Sprintf("%d", len(reports)),
			"Spend":       fmt.Sprintf("%.0f", spend),
			"Conversions": fmt.Sprintf("%d", conversions),
			"ROAS":        fmt.Sprintf("%.2f", roas),
		},
	)
	s.log.Infof("daily report sent: %d ads, spend %.0f, roas %.2f", len(reports), spend, roas)
	return nil
}

// RecentCycles exposes the persisted cycle history for operator inspection.
func (s *MonitorService) RecentCycles(ctx context.Context, limit int) ([]*monitor.Cycle, error) {
	return s.history.ListRecentCycles(ctx, limit)
}

func (s *MonitorService) recordAction(cycle *monitor.Cycle, record *monitor.ActionRecord) {
	record.CycleID = cycle.ID
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.RecordAction(ctx, record); err != nil {
		s.log.Warnf("could not record %s action for ad %s: %v", record.Action, record.AdID, err)
	}
}

// finishCycle writes the final counters. It uses a fresh context so that a
// cancelled cycle can still close its history row.
func (s *MonitorService) finishCycle(cycle *monitor.Cycle, summary monitor.Summary) {
	cycle.FinishedAt = sql.NullTime{Time: time.Now(), Valid: true}
	cycle.Total = summary.Total
	cycle.Kept = summary.Kept
	cycle.Paused = summary.Paused
	cycle.Scaled = summary.Scaled
	cycle.Errors = summary.Errors

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.FinishCycle(ctx, cycle); err != nil {
		s.log.Warnf("could not record cycle result: %v", err)
	}
}

func (s *MonitorService) notifyCycleFinished(summary monitor.Summary) {
	// Quiet cycles produce log lines only; a notification is sent when the
	// cycle actually changed something or hit errors.
	if summary.Paused == 0 && summary.Scaled == 0 && summary.Errors == 0 {
		return
	}
	severity := notify.SeverityInfo
	if summary.Errors > 0 {
		severity = notify.SeverityWarning
	}
	s.notifier.Notify(
		"Monitoring cycle finished.",
		"Cycle summary",
		severity,
		map[string]string{
			"Total":  fmt.Sprintf("%d", summary.Total),
			"Kept":   fmt.Sprintf("%d", summary.Kept),
			"Paused": fmt.Sprintf("%d", summary.Paused),
			"Scaled": fmt.Sprintf("%d", summary.Scaled),
			"Errors": fmt.Sprintf("%d", summary.Errors),
		},
	)
}

func (s *MonitorService) notifyError(errMsg, origin string) {
	s.notifier.Notify(
		"Kill switch hit an operational error.",
		"Operational error",
		notify.SeverityError,
		map[string]string{"Error": errMsg, "Context": origin},
	)
}
