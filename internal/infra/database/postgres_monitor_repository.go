// internal/infra/database/postgres_monitor_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"ad_kill_switch/internal/domain/monitor"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors specific to the monitor history repository
var ErrCycleNotFound = fmt.Errorf("monitoring cycle not found")

// PostgresMonitorRepository persists monitoring cycles and the actions
// executed within them. See migrations/0001_monitor_history.up.sql.
type PostgresMonitorRepository struct {
	db *sql.DB
}

func NewPostgresMonitorRepository(db *sql.DB) *PostgresMonitorRepository {
	return &PostgresMonitorRepository{db: db}
}

func (r *PostgresMonitorRepository) CreateCycle(ctx context.Context, cycle *monitor.Cycle) error {
	query := `INSERT INTO monitoring_cycles (started_at, total)
               VALUES ($1, $2)
               RETURNING id`
	err := r.db.QueryRowContext(ctx, query, cycle.StartedAt, cycle.Total).Scan(&cycle.ID)
	if err != nil {
		return fmt.Errorf("error creating monitoring cycle: %w", err)
	}
	return nil
}

func (r *PostgresMonitorRepository) FinishCycle(ctx context.Context, cycle *monitor.Cycle) error {
	query := `UPDATE monitoring_cycles
               SET finished_at = $1, total = $2, kept = $3, paused = $4, scaled = $5, errors = $6
               WHERE id = $7`
	res, err := r.db.ExecContext(ctx, query,
		cycle.FinishedAt, cycle.Total, cycle.Kept, cycle.Paused, cycle.Scaled, cycle.Errors, cycle.ID)
	if err != nil {
		return fmt.Errorf("error finishing monitoring cycle: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking rows affected for cycle finish: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCycleNotFound
	}
	return nil
}

func (r *PostgresMonitorRepository) RecordAction(ctx context.Context, record *monitor.ActionRecord) error {
	query := `INSERT INTO ad_actions (cycle_id, ad_id, ad_name, action, reason, old_budget, new_budget)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		record.CycleID, record.AdID, record.AdName, record.Action,
		record.Reason, record.OldBudget, record.NewBudget,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("error recording ad action: %w", err)
	}
	return nil
}

func (r *PostgresMonitorRepository) ListRecentCycles(ctx context.Context, limit int) ([]*monitor.Cycle, error) {
	query := `SELECT id, started_at, finished_at, total, kept, paused, scaled, errors
               FROM monitoring_cycles
               ORDER BY started_at DESC
               LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing recent cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*monitor.Cycle
	for rows.Next() {
		c := &monitor.Cycle{}
		if err := rows.Scan(&c.ID, &c.StartedAt, &c.FinishedAt, &c.Total, &c.Kept, &c.Paused, &c.Scaled, &c.Errors); err != nil {
			return nil, fmt.Errorf("error scanning monitoring cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monitoring cycles: %w", err)
	}
	return cycles, nil
}
