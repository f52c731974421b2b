package monitor

import "context"

// Repository persists the operational history of monitoring cycles.
// All writes are best-effort from the orchestrator's point of view: a
// failure here is logged and never affects the cycle outcome.
type Repository interface {
	CreateCycle(ctx context.Context, cycle *Cycle) error
	FinishCycle(ctx context.Context, cycle *Cycle) error
	RecordAction(ctx context.Context, record *ActionRecord) error
	ListRecentCycles(ctx context.Context, limit int) ([]*Cycle, error)
}
