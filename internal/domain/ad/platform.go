package ad

import (
	"context"
	"fmt"
)

// ErrMetricsUnavailable is returned by Reader.GetInsights when the platform
// has no insights rows for the ad (typically a freshly created ad with zero
// delivery). Callers must treat this as an all-zero snapshot, not a failure.
var ErrMetricsUnavailable = fmt.Errorf("no insights data available for ad")

// ErrBudgetUnavailable is returned when an ad set has neither a daily nor a
// lifetime budget, so there is nothing to scale.
var ErrBudgetUnavailable = fmt.Errorf("budget group has no daily or lifetime budget set")

// Reader is the read side of the advertising platform.
type Reader interface {
	ListActiveAds(ctx context.Context) ([]*Ad, error)
	GetInsights(ctx context.Context, adID string, window Window) (*PerformanceSnapshot, error)
	GetBudgetGroup(ctx context.Context, adSetID string) (*BudgetGroup, error)
}

// Writer is the mutating side of the advertising platform.
type Writer interface {
	SetAdStatus(ctx context.Context, adID string, status Status) error
	SetBudget(ctx context.Context, adSetID string, field BudgetField, amount int64) error
}

// Platform combines both sides; the monitor service consumes this interface
// so tests can substitute a fake.
type Platform interface {
	Reader
	Writer
}
