package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateSweepID generates a new sweep log id with swp_ prefix
func GenerateSweepID() string {
	return fmt.Sprintf("swp_%s", uuid.New().String())
}

// CreateSweepLog opens a sweep log row with status running and returns its id
func CreateSweepLog(ctx context.Context, host, sweepType string) (string, error) {
	pool := Pool()

	id := GenerateSweepID()
	query := `
		INSERT INTO sweep_logs (id, retailer_host, sweep_type, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := pool.Exec(ctx, query, id, host, sweepType, SweepStatusRunning, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to create sweep log for %s/%s: %w", host, sweepType, err)
	}
	return id, nil
}

// CompleteSweepLog closes a sweep log with status success
func CompleteSweepLog(ctx context.Context, id string, notes string) error {
	return closeSweepLog(ctx, id, SweepStatusSuccess, notes)
}

// FailSweepLog closes a sweep log with status failed and the failure message
func FailSweepLog(ctx context.Context, id string, notes string) error {
	return closeSweepLog(ctx, id, SweepStatusFailed, notes)
}

func closeSweepLog(ctx context.Context, id, status, notes string) error {
	pool := Pool()

	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}

	query := `
		UPDATE sweep_logs
		SET status = $2,
		    completed_at = $3,
		    notes = $4
		WHERE id = $1
	`

	_, err := pool.Exec(ctx, query, id, status, time.Now().UTC(), notesPtr)
	if err != nil {
		return fmt.Errorf("failed to close sweep log %s: %w", id, err)
	}
	return nil
}

// GetSweepLog fetches one sweep log by id
func GetSweepLog(ctx context.Context, id string) (*SweepLog, error) {
	pool := Pool()

	query := `
		SELECT id, retailer_host, sweep_type, status, started_at, completed_at, notes
		FROM sweep_logs
		WHERE id = $1
	`

	var s SweepLog
	err := pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.RetailerHost, &s.SweepType, &s.Status,
		&s.StartedAt, &s.CompletedAt, &s.Notes,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSweepLogs returns recent sweep logs, newest first. host empty = all hosts.
func ListSweepLogs(ctx context.Context, host string, limit int) ([]SweepLog, error) {
	pool := Pool()

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, retailer_host, sweep_type, status, started_at, completed_at, notes
		FROM sweep_logs
	`
	args := []any{}
	if host != "" {
		query += ` WHERE retailer_host = $1`
		args = append(args, host)
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT %d`, limit)

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweep logs: %w", err)
	}
	defer rows.Close()

	logs := make([]SweepLog, 0)
	for rows.Next() {
		var s SweepLog
		if err := rows.Scan(&s.ID, &s.RetailerHost, &s.SweepType, &s.Status, &s.StartedAt, &s.CompletedAt, &s.Notes); err != nil {
			return nil, err
		}
		logs = append(logs, s)
	}
	return logs, rows.Err()
}

// MarkInterruptedSweeps closes any sweep left running by a previous process.
// Called at server startup; returns the number of rows affected.
func MarkInterruptedSweeps(ctx context.Context) (int, error) {
	pool := Pool()

	tag, err := pool.Exec(ctx, `
		UPDATE sweep_logs
		SET status = $1,
		    completed_at = NOW(),
		    notes = 'service restarted during sweep'
		WHERE status = $2
	`, SweepStatusFailed, SweepStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted sweeps: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
