package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/gondola/availability-service/internal/database"
)

// deleteOldAvailabilityResults removes probe results checked before the cutoff
func deleteOldAvailabilityResults(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)

	tag, err := database.Pool().Exec(ctx,
		`DELETE FROM availability_results WHERE checked_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old availability results: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// deleteOldCommercialOffers removes offer snapshots captured before the cutoff
func deleteOldCommercialOffers(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)

	tag, err := database.Pool().Exec(ctx,
		`DELETE FROM commercial_offers WHERE captured_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old commercial offers: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// deleteOldSweepLogs removes closed sweep logs started before the cutoff.
// Running sweeps are never pruned, whatever their age: MarkInterruptedSweeps
// owns those.
func deleteOldSweepLogs(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)

	tag, err := database.Pool().Exec(ctx,
		`DELETE FROM sweep_logs WHERE started_at < $1 AND status <> $2`,
		cutoff, database.SweepStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old sweep logs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// RetentionStats counts the rows each job would delete right now, without
// deleting anything. Used by the CLI dry run.
func RetentionStats(ctx context.Context, cfg RetentionConfig) (map[string]int64, error) {
	stats := make(map[string]int64)
	now := time.Now().UTC()

	queries := []struct {
		name  string
		query string
		args  []any
	}{
		{
			name:  "availability_results",
			query: `SELECT COUNT(*) FROM availability_results WHERE checked_at < $1`,
			args:  []any{now.Add(-cfg.ResultRetention)},
		},
		{
			name:  "commercial_offers",
			query: `SELECT COUNT(*) FROM commercial_offers WHERE captured_at < $1`,
			args:  []any{now.Add(-cfg.OfferRetention)},
		},
		{
			name:  "sweep_logs",
			query: `SELECT COUNT(*) FROM sweep_logs WHERE started_at < $1 AND status <> $2`,
			args:  []any{now.Add(-cfg.SweepLogRetention), database.SweepStatusRunning},
		},
	}

	for _, q := range queries {
		var count int64
		if err := database.Pool().QueryRow(ctx, q.query, q.args...).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", q.name, err)
		}
		stats[q.name] = count
	}

	return stats, nil
}
