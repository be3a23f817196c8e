package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ParseSalesChannels parses a comma-separated sales channel column into ints.
// Blank or unparseable entries are dropped; an empty result defaults to {1}.
func ParseSalesChannels(raw string) []int {
	parts := strings.Split(raw, ",")
	channels := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			continue
		}
		channels = append(channels, n)
	}
	if len(channels) == 0 {
		channels = append(channels, 1)
	}
	return channels
}

// ListEnabledRetailers returns all retailers with enabled=true, ordered by id
func ListEnabledRetailers(ctx context.Context) ([]Retailer, error) {
	pool := Pool()

	query := `
		SELECT retailer_id, name, host, sales_channels, enabled, created_at
		FROM vtex_retailers_config
		WHERE enabled = true
		ORDER BY retailer_id
	`

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled retailers: %w", err)
	}
	defer rows.Close()

	retailers := make([]Retailer, 0)
	for rows.Next() {
		var r Retailer
		if err := rows.Scan(&r.RetailerID, &r.Name, &r.Host, &r.SalesChannels, &r.Enabled, &r.CreatedAt); err != nil {
			return nil, err
		}
		retailers = append(retailers, r)
	}
	return retailers, rows.Err()
}

// ListRetailers returns every configured retailer, enabled or not
func ListRetailers(ctx context.Context) ([]Retailer, error) {
	pool := Pool()

	query := `
		SELECT retailer_id, name, host, sales_channels, enabled, created_at
		FROM vtex_retailers_config
		ORDER BY retailer_id
	`

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list retailers: %w", err)
	}
	defer rows.Close()

	retailers := make([]Retailer, 0)
	for rows.Next() {
		var r Retailer
		if err := rows.Scan(&r.RetailerID, &r.Name, &r.Host, &r.SalesChannels, &r.Enabled, &r.CreatedAt); err != nil {
			return nil, err
		}
		retailers = append(retailers, r)
	}
	return retailers, rows.Err()
}

// GetRetailerByID looks up one retailer by its numeric config id
func GetRetailerByID(ctx context.Context, id int) (*Retailer, error) {
	pool := Pool()

	query := `
		SELECT retailer_id, name, host, sales_channels, enabled, created_at
		FROM vtex_retailers_config
		WHERE retailer_id = $1
	`

	var r Retailer
	err := pool.QueryRow(ctx, query, id).Scan(
		&r.RetailerID, &r.Name, &r.Host, &r.SalesChannels, &r.Enabled, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRetailerByHost looks up one retailer by its canonical host
func GetRetailerByHost(ctx context.Context, host string) (*Retailer, error) {
	pool := Pool()

	query := `
		SELECT retailer_id, name, host, sales_channels, enabled, created_at
		FROM vtex_retailers_config
		WHERE host = $1
	`

	var r Retailer
	err := pool.QueryRow(ctx, query, host).Scan(
		&r.RetailerID, &r.Name, &r.Host, &r.SalesChannels, &r.Enabled, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertRetailer creates or updates a retailer config row keyed by host
func UpsertRetailer(ctx context.Context, r *Retailer) error {
	pool := Pool()

	query := `
		INSERT INTO vtex_retailers_config (name, host, sales_channels, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (host) DO UPDATE SET
			name = EXCLUDED.name,
			sales_channels = EXCLUDED.sales_channels,
			enabled = EXCLUDED.enabled
	`

	_, err := pool.Exec(ctx, query, r.Name, r.Host, r.SalesChannels, r.Enabled)
	if err != nil {
		return fmt.Errorf("failed to upsert retailer %s: %w", r.Host, err)
	}
	return nil
}
