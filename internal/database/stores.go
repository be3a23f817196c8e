package database

import (
	"context"
	"fmt"
	"time"
)

// ListActiveStores returns all active stores for a retailer host
func ListActiveStores(ctx context.Context, host string) ([]Store, error) {
	pool := Pool()

	query := `
		SELECT id, retailer_host, name, address, city, province, postal_code,
			latitude, longitude, bandera, comercio, sucursal,
			vtex_pickup_point_id, last_vtex_sync, active, created_at, updated_at
		FROM stores
		WHERE retailer_host = $1 AND active = true
		ORDER BY id
	`

	rows, err := pool.Query(ctx, query, host)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores for %s: %w", host, err)
	}
	defer rows.Close()

	stores := make([]Store, 0)
	for rows.Next() {
		var s Store
		err := rows.Scan(
			&s.ID, &s.RetailerHost, &s.Name, &s.Address, &s.City, &s.Province,
			&s.PostalCode, &s.Latitude, &s.Longitude, &s.Bandera, &s.Comercio,
			&s.Sucursal, &s.VtexPickupPointID, &s.LastVtexSync, &s.Active,
			&s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, rows.Err()
}

// UpdateStorePickupPoint records the mapped platform pickup point on a store.
// pickupPointID nil clears the mapping; last_vtex_sync is bumped either way.
func UpdateStorePickupPoint(ctx context.Context, storeID int64, pickupPointID *string) error {
	pool := Pool()

	query := `
		UPDATE stores
		SET vtex_pickup_point_id = $2,
		    last_vtex_sync = $3,
		    updated_at = NOW()
		WHERE id = $1
	`

	_, err := pool.Exec(ctx, query, storeID, pickupPointID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update pickup point for store %d: %w", storeID, err)
	}
	return nil
}

// UpsertStore creates or updates a store keyed by its source triple within a
// retailer. Used by the XLSX importer; operator edits go through here too.
func UpsertStore(ctx context.Context, s *Store) error {
	pool := Pool()

	query := `
		INSERT INTO stores (
			retailer_host, name, address, city, province, postal_code,
			latitude, longitude, bandera, comercio, sucursal, active,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW()
		)
		ON CONFLICT (retailer_host, bandera, comercio, sucursal) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			province = EXCLUDED.province,
			postal_code = EXCLUDED.postal_code,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			active = EXCLUDED.active,
			updated_at = NOW()
	`

	_, err := pool.Exec(ctx, query,
		s.RetailerHost, s.Name, s.Address, s.City, s.Province, s.PostalCode,
		s.Latitude, s.Longitude, s.Bandera, s.Comercio, s.Sucursal, s.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert store %s/%v: %w", s.RetailerHost, s.Sucursal, err)
	}
	return nil
}

// UpsertPickupPoint records a discovered pickup point keyed by
// (retailer_host, pickup_point_id), preserving the platform's exact id string
func UpsertPickupPoint(ctx context.Context, p *PickupPoint) error {
	pool := Pool()

	query := `
		INSERT INTO pickup_points (
			retailer_host, pickup_point_id, name, latitude, longitude,
			bandera, comercio, sucursal, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()
		)
		ON CONFLICT (retailer_host, pickup_point_id) DO UPDATE SET
			name = EXCLUDED.name,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			bandera = EXCLUDED.bandera,
			comercio = EXCLUDED.comercio,
			sucursal = EXCLUDED.sucursal,
			updated_at = NOW()
	`

	_, err := pool.Exec(ctx, query,
		p.RetailerHost, p.PickupPointID, p.Name, p.Latitude, p.Longitude,
		p.Bandera, p.Comercio, p.Sucursal,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pickup point %s/%s: %w", p.RetailerHost, p.PickupPointID, err)
	}
	return nil
}

// GetPickupPoint fetches one pickup point by its composite key
func GetPickupPoint(ctx context.Context, host, pickupPointID string) (*PickupPoint, error) {
	pool := Pool()

	query := `
		SELECT id, retailer_host, pickup_point_id, name, latitude, longitude,
			bandera, comercio, sucursal, created_at, updated_at
		FROM pickup_points
		WHERE retailer_host = $1 AND pickup_point_id = $2
	`

	var p PickupPoint
	err := pool.QueryRow(ctx, query, host, pickupPointID).Scan(
		&p.ID, &p.RetailerHost, &p.PickupPointID, &p.Name, &p.Latitude,
		&p.Longitude, &p.Bandera, &p.Comercio, &p.Sucursal,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
