package monitor

import (
	"database/sql"
	"time"
)

// Summary aggregates the outcome counters of one monitoring cycle. Every ad
// considered in the cycle contributes to exactly one of the four buckets.
type Summary struct {
	Total  int
	Kept   int
	Paused int
	Scaled int
	Errors int
}

// Cycle is the persisted record of one orchestration run.
// Corresponds to the 'monitoring_cycles' table.
type Cycle struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Total      int
	Kept       int
	Paused     int
	Scaled     int
	Errors     int
}

// ActionRecord is the persisted trace of one executed action (pause or
// budget scale) within a cycle. Budget columns are set only for scales.
// Corresponds to the 'ad_actions' table.
type ActionRecord struct {
	ID        int64
	CycleID   int64
	AdID      string
	AdName    string
	Action    string
	Reason    sql.NullString
	OldBudget sql.NullInt64
	NewBudget sql.NullInt64
	CreatedAt time.Time
}
