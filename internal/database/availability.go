package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ProbeWorkUnit is one row of the probe join: a tracked SKU offered by a
// seller, probed against one mapped store.
type ProbeWorkUnit struct {
	Ean           string
	SkuItemID     string
	SellerID      string
	StoreID       int64
	PickupPointID string
	PostalCode    string
}

// LoadProbeWorkUnits builds the work set for ProbeEanList: tracked EANs joined
// to SKUs, sellers, and mapped stores of the given host. Stores without a
// pickup point id are excluded.
func LoadProbeWorkUnits(ctx context.Context, host string) ([]ProbeWorkUnit, error) {
	pool := Pool()

	query := `
		SELECT tp.ean, k.item_id, sl.seller_id, st.id,
			st.vtex_pickup_point_id, COALESCE(st.postal_code, '')
		FROM tracked_products tp
		JOIN skus k ON k.ean = tp.ean AND k.retailer_host = $1
		JOIN sellers sl ON sl.sku_db_id = k.id
		JOIN stores st ON st.retailer_host = $1
		WHERE tp.track = true
		  AND st.active = true
		  AND st.vtex_pickup_point_id IS NOT NULL
		ORDER BY st.id, tp.ean
	`

	rows, err := pool.Query(ctx, query, host)
	if err != nil {
		return nil, fmt.Errorf("failed to load probe work units for %s: %w", host, err)
	}
	defer rows.Close()

	units := make([]ProbeWorkUnit, 0)
	for rows.Next() {
		var u ProbeWorkUnit
		if err := rows.Scan(&u.Ean, &u.SkuItemID, &u.SellerID, &u.StoreID, &u.PickupPointID, &u.PostalCode); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// LoadAllProbeWorkUnits is the unfiltered variant for ProbeAll: every SKU of
// the host with at least one seller, against every mapped store.
func LoadAllProbeWorkUnits(ctx context.Context, host string) ([]ProbeWorkUnit, error) {
	pool := Pool()

	query := `
		SELECT COALESCE(k.ean, ''), k.item_id, sl.seller_id, st.id,
			st.vtex_pickup_point_id, COALESCE(st.postal_code, '')
		FROM skus k
		JOIN sellers sl ON sl.sku_db_id = k.id
		JOIN stores st ON st.retailer_host = $1
		WHERE k.retailer_host = $1
		  AND st.active = true
		  AND st.vtex_pickup_point_id IS NOT NULL
		ORDER BY st.id, k.item_id
	`

	rows, err := pool.Query(ctx, query, host)
	if err != nil {
		return nil, fmt.Errorf("failed to load full probe work units for %s: %w", host, err)
	}
	defer rows.Close()

	units := make([]ProbeWorkUnit, 0)
	for rows.Next() {
		var u ProbeWorkUnit
		if err := rows.Scan(&u.Ean, &u.SkuItemID, &u.SellerID, &u.StoreID, &u.PickupPointID, &u.PostalCode); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// InsertAvailabilityResults appends a chunk of probe rows in one transaction.
// Rows are append-only; there is nothing to conflict with.
func InsertAvailabilityResults(ctx context.Context, results []AvailabilityResult) error {
	if len(results) == 0 {
		return nil
	}
	pool := Pool()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin availability tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	query := `
		INSERT INTO availability_results (
			retailer_host, store_id, ean, sku_id, seller_id, sales_channel,
			is_available, price, list_price, available_quantity, currency,
			error_message, raw_response, checked_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`
	for _, r := range results {
		batch.Queue(query,
			r.RetailerHost, r.StoreID, r.Ean, r.SkuID, r.SellerID, r.SalesChannel,
			r.IsAvailable, r.Price, r.ListPrice, r.AvailableQuantity, r.Currency,
			r.ErrorMessage, r.RawResponse, r.CheckedAt,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range results {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert availability result: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close availability batch: %w", err)
	}

	return tx.Commit(ctx)
}

// CountAvailabilityResults returns the number of probe rows for a host
func CountAvailabilityResults(ctx context.Context, host string) (int, error) {
	pool := Pool()

	var count int
	err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM availability_results WHERE retailer_host = $1`, host).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count availability results for %s: %w", host, err)
	}
	return count, nil
}

// ListRecentAvailabilityResults returns the newest probe rows for a host,
// raw_response omitted. limit <= 0 defaults to 100.
func ListRecentAvailabilityResults(ctx context.Context, host string, limit int) ([]AvailabilityResult, error) {
	pool := Pool()
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, retailer_host, store_id, ean, sku_id, seller_id, sales_channel,
			is_available, price, list_price, available_quantity, currency,
			error_message, checked_at
		FROM availability_results
		WHERE retailer_host = $1
		ORDER BY checked_at DESC, id DESC
		LIMIT $2
	`

	rows, err := pool.Query(ctx, query, host, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability results for %s: %w", host, err)
	}
	defer rows.Close()

	results := make([]AvailabilityResult, 0)
	for rows.Next() {
		var r AvailabilityResult
		if err := rows.Scan(
			&r.ID, &r.RetailerHost, &r.StoreID, &r.Ean, &r.SkuID, &r.SellerID, &r.SalesChannel,
			&r.IsAvailable, &r.Price, &r.ListPrice, &r.AvailableQuantity, &r.Currency,
			&r.ErrorMessage, &r.CheckedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
