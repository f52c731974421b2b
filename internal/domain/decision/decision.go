package decision

import "ad_kill_switch/internal/domain/ad"

// Action is the verdict for one ad in one monitoring cycle.
type Action string

const (
	ActionKill  Action = "kill"
	ActionScale Action = "scale"
	ActionKeep  Action = "keep"
)

// KillReason identifies which tier triggered a kill.
type KillReason string

const (
	ReasonNoClicks         KillReason = "no_clicks"
	ReasonLowCTR           KillReason = "low_ctr"
	ReasonCPCExceeded      KillReason = "cpc_exceeded"
	ReasonROASBelowMinimum KillReason = "roas_below_minimum"
)

// Decision is a closed tagged value: Reason is set only when Action is
// ActionKill and is empty otherwise.
type Decision struct {
	Action Action
	Reason KillReason
}

// Thresholds holds the tunable limits of the tier policy. The values are
// configurable, the tier order is not.
type Thresholds struct {
	// Tier 1: enough impressions with zero clicks means a dead ad.
	MinImpressionsForClickCheck int64

	// Tier 2: CTR is only trusted after this many impressions.
	CTRCheckImpressions int64
	MinCTRPercent       float64

	// Tier 3: CPC is only trusted after this much spend.
	CPCCheckSpend float64
	MaxCPC        float64

	// Tier 4: ROAS is only trusted after this much spend.
	ROASCheckSpend float64
	MinROAS        float64

	// Winner: both conditions must hold for a budget scale.
	WinnerMinCTR  float64
	WinnerMinROAS float64
}

// Default returns the stock thresholds.
func Default() Thresholds {
	return Thresholds{
		MinImpressionsForClickCheck: 500,
		CTRCheckImpressions:         1000,
		MinCTRPercent:               0.5,
		CPCCheckSpend:               5000,
		MaxCPC:                      500,
		ROASCheckSpend:              10000,
		MinROAS:                     2.0,
		WinnerMinCTR:                1.5,
		WinnerMinROAS:               4.0,
	}
}

// Decide maps a performance snapshot to exactly one Decision. Tiers are
// evaluated in order and the first match wins; a dead ad (tier 1) is never
// evaluated against CPC or ROAS, whose ratios are degenerate at zero clicks.
// Each tier's impressions/spend condition is a minimum sample-size gate:
// below it the ad is left alone even if the ratio momentarily looks bad.
func Decide(snap ad.PerformanceSnapshot, th Thresholds) Decision {
	// Tier 1: impressions with no clicks at all.
	if snap.Impressions >= th.MinImpressionsForClickCheck && snap.Clicks == 0 {
		return Decision{Action: ActionKill, Reason: ReasonNoClicks}
	}

	// Tier 2: CTR below the floor.
	if snap.Impressions >= th.CTRCheckImpressions && snap.CTR < th.MinCTRPercent {
		return Decision{Action: ActionKill, Reason: ReasonLowCTR}
	}

	// Tier 3: clicks are too expensive.
	if snap.Spend >= th.CPCCheckSpend && snap.CPC > th.MaxCPC {
		return Decision{Action: ActionKill, Reason: ReasonCPCExceeded}
	}

	// Tier 4: not paying for itself.
	if snap.Spend >= th.ROASCheckSpend && snap.ROAS < th.MinROAS {
		return Decision{Action: ActionKill, Reason: ReasonROASBelowMinimum}
	}

	// Winner: strong CTR and strong ROAS at the same time.
	if snap.CTR >= th.WinnerMinCTR && snap.ROAS >= th.WinnerMinROAS {
		return Decision{Action: ActionScale}
	}

	return Decision{Action: ActionKeep}
}
