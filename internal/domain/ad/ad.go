package ad

import "time"

// Status is the lifecycle status of an ad as reported by the platform.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusPaused Status = "PAUSED"
)

// BudgetField names which of the two mutually exclusive ad set budget
// fields is in use. The monitor always writes back the same field it read.
type BudgetField string

const (
	BudgetFieldDaily    BudgetField = "daily_budget"
	BudgetFieldLifetime BudgetField = "lifetime_budget"
)

// Window selects the insights aggregation period.
type Window string

const (
	WindowToday         Window = "today"
	WindowTrailing7Days Window = "trailing_7d"
)

// Ad is an independently schedulable advertising unit. It is owned by the
// platform; this system only reads it and toggles its status.
type Ad struct {
	ID              string
	Name            string
	AdSetID         string
	CampaignID      string
	Status          Status
	EffectiveStatus Status
	LastScaledAt    time.Time // zero until a budget scale succeeds in this process
}

// BudgetGroup is the ad set that owns one or more ads and holds their spend
// budget. Exactly one of DailyBudget/LifetimeBudget is expected to be set;
// amounts are in minor currency units, as the platform reports them.
type BudgetGroup struct {
	ID             string
	Name           string
	DailyBudget    int64
	LifetimeBudget int64
}

// Budget returns the budget field currently in use and its amount.
// Daily budget takes precedence, matching how the platform surfaces it.
func (g *BudgetGroup) Budget() (BudgetField, int64, error) {
	if g.DailyBudget > 0 {
		return BudgetFieldDaily, g.DailyBudget, nil
	}
	if g.LifetimeBudget > 0 {
		return BudgetFieldLifetime, g.LifetimeBudget, nil
	}
	return "", 0, ErrBudgetUnavailable
}

// PerformanceSnapshot is a read-only, time-windowed aggregate for one ad.
// CTR and CPC are taken from the platform as-is so that what the monitor
// acts on matches what advertisers see in the platform UI. ROAS is the only
// derived value: revenue/spend when spend > 0, otherwise 0.
type PerformanceSnapshot struct {
	Impressions int64
	Clicks      int64
	Spend       float64
	CTR         float64 // percentage
	CPC         float64
	Conversions int64
	Revenue     float64
	ROAS        float64
}
