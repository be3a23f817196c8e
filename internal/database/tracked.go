package database

import (
	"context"
	"fmt"
)

// ListTrackedProducts returns tracked products; onlyActive limits to track=true
func ListTrackedProducts(ctx context.Context, onlyActive bool) ([]TrackedProduct, error) {
	pool := Pool()

	query := `
		SELECT ean, owner, product_name, track, created_at
		FROM tracked_products
	`
	if onlyActive {
		query += ` WHERE track = true`
	}
	query += ` ORDER BY ean`

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked products: %w", err)
	}
	defer rows.Close()

	tracked := make([]TrackedProduct, 0)
	for rows.Next() {
		var t TrackedProduct
		if err := rows.Scan(&t.Ean, &t.Owner, &t.ProductName, &t.Track, &t.CreatedAt); err != nil {
			return nil, err
		}
		tracked = append(tracked, t)
	}
	return tracked, rows.Err()
}

// UpsertTrackedProduct creates or updates a tracked product keyed by EAN
func UpsertTrackedProduct(ctx context.Context, t *TrackedProduct) error {
	pool := Pool()

	query := `
		INSERT INTO tracked_products (ean, owner, product_name, track)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ean) DO UPDATE SET
			owner = EXCLUDED.owner,
			product_name = EXCLUDED.product_name,
			track = EXCLUDED.track
	`

	_, err := pool.Exec(ctx, query, t.Ean, t.Owner, t.ProductName, t.Track)
	if err != nil {
		return fmt.Errorf("failed to upsert tracked product %s: %w", t.Ean, err)
	}
	return nil
}
