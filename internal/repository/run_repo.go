// Package repository provides data access for archived execution runs.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/collab-code-share/backend/internal/model"
)

// RunRepository provides data access for execution run records.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Record inserts a run record, assigning an id when none is set.
func (r *RunRepository) Record(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	query := `
		INSERT INTO executions (id, session_id, language, stdout, stderr, compile_output, run_time, memory, status_id, status_description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.SessionID,
		run.Language,
		run.Stdout,
		run.Stderr,
		run.CompileOutput,
		run.Time,
		run.Memory,
		run.StatusID,
		run.StatusDescription,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	return nil
}

// ListBySession retrieves the archived runs of a session, newest first.
func (r *RunRepository) ListBySession(ctx context.Context, sessionID string) ([]*model.Run, error) {
	query := `
		SELECT id, session_id, language, stdout, stderr, compile_output, run_time, memory, status_id, status_description, created_at
		FROM executions
		WHERE session_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run := &model.Run{}
		var runTime sql.NullString
		var memory sql.NullInt64

		err := rows.Scan(
			&run.ID,
			&run.SessionID,
			&run.Language,
			&run.Stdout,
			&run.Stderr,
			&run.CompileOutput,
			&runTime,
			&memory,
			&run.StatusID,
			&run.StatusDescription,
			&run.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if runTime.Valid {
			run.Time = runTime.String
		}
		if memory.Valid {
			run.Memory = int(memory.Int64)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// CountBySession returns the number of archived runs for a session.
func (r *RunRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	query := `SELECT COUNT(*) FROM executions WHERE session_id = ?`

	var count int
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}

	return count, nil
}
