package decision

import (
	"testing"

	"ad_kill_switch/internal/domain/ad"

	"github.com/stretchr/testify/assert"
)

func TestDecideTierOrder(t *testing.T) {
	th := Default()

	// An all-zero-derived-metrics snapshot that satisfies tier 1 must be
	// killed for no_clicks and never reach the winner check, even though
	// zero clicks makes CTR/CPC/ROAS degenerate.
	snap := ad.PerformanceSnapshot{Impressions: 600, Clicks: 0}
	d := Decide(snap, th)
	assert.Equal(t, ActionKill, d.Action)
	assert.Equal(t, ReasonNoClicks, d.Reason)
}

func TestDecideTierBoundaries(t *testing.T) {
	th := Default()

	cases := []struct {
		name   string
		snap   ad.PerformanceSnapshot
		action Action
		reason KillReason
	}{
		{
			name:   "tier1 at exactly 500 impressions kills",
			snap:   ad.PerformanceSnapshot{Impressions: 500, Clicks: 0},
			action: ActionKill,
			reason: ReasonNoClicks,
		},
		{
			name:   "tier1 below gate at 499 impressions keeps",
			snap:   ad.PerformanceSnapshot{Impressions: 499, Clicks: 0},
			action: ActionKeep,
		},
		{
			name:   "tier2 ctr below floor kills",
			snap:   ad.PerformanceSnapshot{Impressions: 1000, Clicks: 4, CTR: 0.4},
			action: ActionKill,
			reason: ReasonLowCTR,
		},
		{
			name:   "tier2 ctr exactly at floor is not killed",
			snap:   ad.PerformanceSnapshot{Impressions: 1000, Clicks: 5, CTR: 0.5},
			action: ActionKeep,
		},
		{
			name:   "tier3 cpc above limit kills",
			snap:   ad.PerformanceSnapshot{Impressions: 100, Clicks: 9, CTR: 9.0, Spend: 5000, CPC: 555},
			action: ActionKill,
			reason: ReasonCPCExceeded,
		},
		{
			name:   "tier3 cpc exactly at limit is not killed",
			snap:   ad.PerformanceSnapshot{Impressions: 100, Clicks: 10, CTR: 10.0, Spend: 5000, CPC: 500, ROAS: 3.0},
			action: ActionKeep,
		},
		{
			name:   "tier4 roas below minimum kills",
			snap:   ad.PerformanceSnapshot{Impressions: 100, Clicks: 50, CTR: 1.0, Spend: 10000, CPC: 200, ROAS: 1.9},
			action: ActionKill,
			reason: ReasonROASBelowMinimum,
		},
		{
			name:   "tier4 roas exactly at minimum is not killed",
			snap:   ad.PerformanceSnapshot{Impressions: 100, Clicks: 50, CTR: 1.0, Spend: 10000, CPC: 200, ROAS: 2.0},
			action: ActionKeep,
		},
		{
			name:   "winner scales",
			snap:   ad.PerformanceSnapshot{Impressions: 2000, Clicks: 40, CTR: 2.0, Spend: 8000, CPC: 200, Revenue: 40000, ROAS: 5.0},
			action: ActionScale,
		},
		{
			name:   "winner on exact thresholds scales",
			snap:   ad.PerformanceSnapshot{Impressions: 2000, Clicks: 30, CTR: 1.5, Spend: 100, CPC: 3, ROAS: 4.0},
			action: ActionScale,
		},
		{
			name:   "below all gates keeps",
			snap:   ad.PerformanceSnapshot{Impressions: 200, Clicks: 5, CTR: 2.5, Spend: 100, CPC: 20, ROAS: 1.0},
			action: ActionKeep,
		},
		{
			name:   "all zero snapshot keeps",
			snap:   ad.PerformanceSnapshot{},
			action: ActionKeep,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.snap, th)
			assert.Equal(t, tc.action, d.Action)
			assert.Equal(t, tc.reason, d.Reason)
		})
	}
}

// Tier 2 fires before the winner check when both could apply: low CTR wins
// regardless of a stellar ROAS.
func TestDecideKillBeatsWinner(t *testing.T) {
	th := Default()
	snap := ad.PerformanceSnapshot{Impressions: 5000, Clicks: 10, CTR: 0.2, Spend: 100, ROAS: 10.0}
	d := Decide(snap, th)
	assert.Equal(t, ActionKill, d.Action)
	assert.Equal(t, ReasonLowCTR, d.Reason)
}

// Every decision carries exactly one action, and a reason only on kill.
func TestDecideExhaustive(t *testing.T) {
	th := Default()
	snaps := []ad.PerformanceSnapshot{
		{},
		{Impressions: 500},
		{Impressions: 1500, Clicks: 3, CTR: 0.2},
		{Impressions: 1500, Clicks: 100, CTR: 6.6, Spend: 6000, CPC: 600},
		{Impressions: 1500, Clicks: 100, CTR: 6.6, Spend: 20000, CPC: 200, ROAS: 0.5},
		{Impressions: 1500, Clicks: 100, CTR: 6.6, Spend: 20000, CPC: 200, ROAS: 9.0},
		{Impressions: 10, Clicks: 1, CTR: 10, Spend: 5, CPC: 5, ROAS: 100},
	}
	for _, snap := range snaps {
		d := Decide(snap, th)
		switch d.Action {
		case ActionKill:
			assert.NotEmpty(t, d.Reason)
		case ActionScale, ActionKeep:
			assert.Empty(t, d.Reason)
		default:
			t.Fatalf("unexpected action %q", d.Action)
		}
	}
}

// The gates are configurable even though the order is not.
func TestDecideCustomThresholds(t *testing.T) {
	th := Default()
	th.MinImpressionsForClickCheck = 100

	d := Decide(ad.PerformanceSnapshot{Impressions: 120, Clicks: 0}, th)
	assert.Equal(t, ActionKill, d.Action)
	assert.Equal(t, ReasonNoClicks, d.Reason)
}
