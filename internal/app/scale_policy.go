package app

import (
	"time"

	"ad_kill_switch/internal/domain/ad"
)

// ScalePolicy decides whether a winner's budget may be raised right now and
// what the new amount should be. It sits between the decision engine and the
// budget write so that a cooldown or ceiling policy can be injected later
// without touching the decision engine.
type ScalePolicy interface {
	// Approve reports whether the ad may be scaled at the given time.
	Approve(a *ad.Ad, now time.Time) bool
	// NextBudget computes the new budget from the current one.
	NextBudget(current int64) int64
}

// MultiplierPolicy approves every request and multiplies the budget by a
// fixed rate. An ad that stays a winner is scaled again on every cycle,
// compounding the budget.
type MultiplierPolicy struct {
	Rate float64
}

func (MultiplierPolicy) Approve(*ad.Ad, time.Time) bool { return true }

func (p MultiplierPolicy) NextBudget(current int64) int64 {
	return int64(float64(current) * p.Rate)
}
