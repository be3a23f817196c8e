package database

import (
	"context"
	"fmt"
)

// UpsertCategory creates or updates a category by (retailer_host, external_id)
// and returns the internal row id.
func UpsertCategory(ctx context.Context, c *Category) (int64, error) {
	pool := Pool()

	query := `
		INSERT INTO categories (retailer_host, external_id, name, parent_external_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (retailer_host, external_id) DO UPDATE SET
			name = EXCLUDED.name,
			parent_external_id = EXCLUDED.parent_external_id
		RETURNING id
	`

	var id int64
	err := pool.QueryRow(ctx, query, c.RetailerHost, c.ExternalID, c.Name, c.ParentExternalID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert category %s/%d: %w", c.RetailerHost, c.ExternalID, err)
	}
	return id, nil
}

// SetCategoryParentDb writes the resolved parent row id for a category.
// Called in the second pass of a tree sync once all nodes have row ids.
func SetCategoryParentDb(ctx context.Context, id int64, parentDbID *int64) error {
	pool := Pool()

	_, err := pool.Exec(ctx, `UPDATE categories SET parent_db_id = $2 WHERE id = $1`, id, parentDbID)
	if err != nil {
		return fmt.Errorf("failed to set category parent for %d: %w", id, err)
	}
	return nil
}

// ListCategories returns all categories known for a host, ordered by external id
func ListCategories(ctx context.Context, host string) ([]Category, error) {
	pool := Pool()

	query := `
		SELECT id, retailer_host, external_id, name, parent_external_id, parent_db_id
		FROM categories
		WHERE retailer_host = $1
		ORDER BY external_id
	`

	rows, err := pool.Query(ctx, query, host)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories for %s: %w", host, err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.RetailerHost, &c.ExternalID, &c.Name, &c.ParentExternalID, &c.ParentDbID); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpsertProduct creates or updates a product by (retailer_host, external_id)
// and returns the internal row id.
func UpsertProduct(ctx context.Context, p *Product) (int64, error) {
	pool := Pool()

	query := `
		INSERT INTO products (
			retailer_host, external_id, name, brand, brand_id, link_text,
			link, cache_id, release_date, raw_json, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()
		)
		ON CONFLICT (retailer_host, external_id) DO UPDATE SET
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			brand_id = EXCLUDED.brand_id,
			link_text = EXCLUDED.link_text,
			link = EXCLUDED.link,
			cache_id = EXCLUDED.cache_id,
			release_date = EXCLUDED.release_date,
			raw_json = EXCLUDED.raw_json,
			updated_at = NOW()
		RETURNING id
	`

	var id int64
	err := pool.QueryRow(ctx, query,
		p.RetailerHost, p.ExternalID, p.Name, p.Brand, p.BrandID, p.LinkText,
		p.Link, p.CacheID, p.ReleaseDate, p.RawJSON,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert product %s/%d: %w", p.RetailerHost, p.ExternalID, err)
	}
	return id, nil
}

// ReplaceProductCategories rewrites the category links of one product to the
// given category external ids. Links whose category is not yet known for the
// host are skipped.
func ReplaceProductCategories(ctx context.Context, productDbID int64, host string, categoryExternalIDs []int64) error {
	pool := Pool()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin category link tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM product_categories WHERE product_db_id = $1`, productDbID); err != nil {
		return fmt.Errorf("failed to clear category links for product %d: %w", productDbID, err)
	}

	for _, extID := range categoryExternalIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO product_categories (product_db_id, category_db_id)
			SELECT $1, id FROM categories WHERE retailer_host = $2 AND external_id = $3
			ON CONFLICT (product_db_id, category_db_id) DO NOTHING
		`, productDbID, host, extID)
		if err != nil {
			return fmt.Errorf("failed to link product %d to category %d: %w", productDbID, extID, err)
		}
	}

	return tx.Commit(ctx)
}

// UpsertSku creates or updates a SKU by (retailer_host, item_id) and returns
// the internal row id.
func UpsertSku(ctx context.Context, s *Sku) (int64, error) {
	pool := Pool()

	query := `
		INSERT INTO skus (
			product_db_id, retailer_host, item_id, ean, name,
			measurement_unit, unit_multiplier
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		ON CONFLICT (retailer_host, item_id) DO UPDATE SET
			product_db_id = EXCLUDED.product_db_id,
			ean = EXCLUDED.ean,
			name = EXCLUDED.name,
			measurement_unit = EXCLUDED.measurement_unit,
			unit_multiplier = EXCLUDED.unit_multiplier
		RETURNING id
	`

	var id int64
	err := pool.QueryRow(ctx, query,
		s.ProductDbID, s.RetailerHost, s.ItemID, s.Ean, s.Name,
		s.MeasurementUnit, s.UnitMultiplier,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert sku %s/%s: %w", s.RetailerHost, s.ItemID, err)
	}
	return id, nil
}

// UpsertSeller creates or updates a seller by (sku_db_id, seller_id) and
// returns the internal row id.
func UpsertSeller(ctx context.Context, s *Seller) (int64, error) {
	pool := Pool()

	query := `
		INSERT INTO sellers (sku_db_id, seller_id, name, seller_default)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sku_db_id, seller_id) DO UPDATE SET
			name = EXCLUDED.name,
			seller_default = EXCLUDED.seller_default
		RETURNING id
	`

	var id int64
	err := pool.QueryRow(ctx, query, s.SkuDbID, s.SellerID, s.Name, s.SellerDefault).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert seller %d/%s: %w", s.SkuDbID, s.SellerID, err)
	}
	return id, nil
}

// InsertCommercialOffer appends one offer snapshot. Offers are never updated.
func InsertCommercialOffer(ctx context.Context, o *CommercialOffer) error {
	pool := Pool()

	query := `
		INSERT INTO commercial_offers (
			seller_db_id, price, list_price, spot_price, price_without_discount,
			valid_until, available_quantity, captured_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := pool.Exec(ctx, query,
		o.SellerDbID, o.Price, o.ListPrice, o.SpotPrice, o.PriceWithoutDiscount,
		o.ValidUntil, o.AvailableQuantity, o.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert commercial offer for seller %d: %w", o.SellerDbID, err)
	}
	return nil
}

// CountProducts returns the number of products known for a host
func CountProducts(ctx context.Context, host string) (int, error) {
	pool := Pool()

	var count int
	err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE retailer_host = $1`, host).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count products for %s: %w", host, err)
	}
	return count, nil
}
