package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gondola/availability-service/internal/database"
	"github.com/gondola/availability-service/internal/metrics"
	"github.com/gondola/availability-service/internal/text"
	"github.com/gondola/availability-service/internal/vtex"
)

// SyncStats accumulates counts across one catalog walk
type SyncStats struct {
	Categories int
	Pages      int
	Products   int
	Skus       int
	Sellers    int
	Offers     int
	Skipped    int
}

// Syncer walks a retailer's public catalog and persists categories, products,
// SKUs, sellers, and offer snapshots. One Syncer serves one host.
type Syncer struct {
	client       *vtex.Client
	host         string
	pageSize     int
	salesChannel int
	recorder     *metrics.Recorder
	logger       zerolog.Logger
}

// NewSyncer creates a catalog syncer for one retailer host
func NewSyncer(client *vtex.Client, host string, pageSize int, recorder *metrics.Recorder, logger zerolog.Logger) *Syncer {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Syncer{
		client:   client,
		host:     host,
		pageSize: pageSize,
		recorder: recorder,
		logger:   logger.With().Str("component", "catalog-syncer").Str("host", host).Logger(),
	}
}

// SetSalesChannel pins category searches to one sales channel. Zero (the
// default) omits the parameter, searching the storefront's default channel.
func (s *Syncer) SetSalesChannel(sc int) {
	s.salesChannel = sc
}

type flatCategory struct {
	ExternalID       int64
	Name             string
	ParentExternalID *int64
}

// SyncCategories fetches the category tree, flattens it depth-first, and
// upserts every node. A second pass resolves parent_db_id from the ids
// assigned in the first, so re-links survive tree reshuffles upstream.
// Returns the number of nodes seen.
func (s *Syncer) SyncCategories(ctx context.Context, depth int) (int, error) {
	tree, err := s.client.CategoryTree(ctx, depth)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch category tree: %w", err)
	}

	flat := flattenCategories(tree)
	s.logger.Info().Int("nodes", len(flat)).Msg("Category tree fetched")

	idMap := make(map[int64]int64, len(flat))
	for _, node := range flat {
		c := database.Category{
			RetailerHost:     s.host,
			ExternalID:       node.ExternalID,
			Name:             node.Name,
			ParentExternalID: node.ParentExternalID,
		}
		dbID, err := database.UpsertCategory(ctx, &c)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert category %d: %w", node.ExternalID, err)
		}
		idMap[node.ExternalID] = dbID
		s.recorder.RecordCatalogUpsert(s.host, "category")
	}

	for _, node := range flat {
		if node.ParentExternalID == nil {
			continue
		}
		parentDbID, ok := idMap[*node.ParentExternalID]
		if !ok {
			continue
		}
		if err := database.SetCategoryParentDb(ctx, idMap[node.ExternalID], &parentDbID); err != nil {
			return 0, fmt.Errorf("failed to link category %d to parent: %w", node.ExternalID, err)
		}
	}

	return len(flat), nil
}

// flattenCategories walks the tree depth-first, recording each node with the
// external id of its parent
func flattenCategories(tree []vtex.CategoryNode) []flatCategory {
	out := make([]flatCategory, 0)
	var walk func(node vtex.CategoryNode, parent *int64)
	walk = func(node vtex.CategoryNode, parent *int64) {
		out = append(out, flatCategory{ExternalID: node.ID, Name: node.Name, ParentExternalID: parent})
		id := node.ID
		for _, child := range node.Children {
			walk(child, &id)
		}
	}
	for _, root := range tree {
		walk(root, nil)
	}
	return out
}

// SyncProducts pages through every known category (or a single one when
// categoryID is non-nil) and persists all products found. maxPages <= 0 means
// unbounded. A failing category is logged and skipped; the walk continues.
func (s *Syncer) SyncProducts(ctx context.Context, categoryID *int64, maxPages int) (*SyncStats, error) {
	var externalIDs []int64
	if categoryID != nil {
		externalIDs = []int64{*categoryID}
	} else {
		cats, err := database.ListCategories(ctx, s.host)
		if err != nil {
			return nil, fmt.Errorf("failed to list categories: %w", err)
		}
		for _, c := range cats {
			externalIDs = append(externalIDs, c.ExternalID)
		}
	}

	stats := &SyncStats{}
	for _, extID := range externalIDs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := s.syncCategoryProducts(ctx, extID, maxPages, stats); err != nil {
			if ctx.Err() != nil {
				return stats, err
			}
			s.logger.Error().Err(err).Int64("category_id", extID).Msg("Category product sync failed")
			continue
		}
		stats.Categories++
	}

	s.logger.Info().
		Int("categories", stats.Categories).
		Int("products", stats.Products).
		Int("skus", stats.Skus).
		Int("offers", stats.Offers).
		Msg("Product sync complete")
	return stats, nil
}

func (s *Syncer) syncCategoryProducts(ctx context.Context, categoryID int64, maxPages int, stats *SyncStats) error {
	for page := 0; maxPages <= 0 || page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		from := page * s.pageSize
		to := from + s.pageSize - 1

		products, err := s.client.SearchByCategory(ctx, categoryID, from, to, s.salesChannel)
		if err != nil {
			return fmt.Errorf("failed to search category %d page %d: %w", categoryID, page, err)
		}
		if len(products) == 0 {
			break
		}

		for _, raw := range products {
			if err := s.PersistProduct(ctx, raw, stats); err != nil {
				if ctx.Err() != nil {
					return err
				}
				stats.Skipped++
				s.logger.Warn().Err(err).Int64("category_id", categoryID).Msg("Product persist failed")
			}
		}
		stats.Pages++

		if len(products) < s.pageSize {
			break
		}
	}
	return nil
}

// PersistProduct runs one raw product node through the full upsert path:
// product, category links, SKUs, sellers, and an offer snapshot per seller
// when the node carries one. Nodes without a numeric product id and SKUs
// without an item id are skipped, not failed.
func (s *Syncer) PersistProduct(ctx context.Context, raw json.RawMessage, stats *SyncStats) error {
	node, err := vtex.ParseProduct(raw)
	if err != nil {
		return fmt.Errorf("failed to parse product node: %w", err)
	}

	externalID, ok := vtex.ParseProductID(node.ProductID)
	if !ok {
		stats.Skipped++
		s.logger.Debug().Str("product_id", node.ProductID).Msg("Skipping product with non-numeric id")
		return nil
	}

	rawStr := string(raw)
	p := database.Product{
		RetailerHost: s.host,
		ExternalID:   externalID,
		Name:         node.ProductName,
		RawJSON:      &rawStr,
		ReleaseDate:  vtex.ParseReleaseDate(node.ReleaseDate),
	}
	if node.Brand != "" {
		p.Brand = &node.Brand
	}
	if node.BrandID > 0 {
		p.BrandID = &node.BrandID
	}
	if node.LinkText != "" {
		p.LinkText = &node.LinkText
	}
	if node.Link != "" {
		p.Link = &node.Link
	}
	if node.CacheID != "" {
		p.CacheID = &node.CacheID
	}

	productDbID, err := database.UpsertProduct(ctx, &p)
	if err != nil {
		return fmt.Errorf("failed to upsert product %d: %w", externalID, err)
	}
	stats.Products++
	s.recorder.RecordCatalogUpsert(s.host, "product")

	if catIDs := vtex.NormalizeCategoryIDs(node.CategoriesIDs); len(catIDs) > 0 {
		if err := database.ReplaceProductCategories(ctx, productDbID, s.host, catIDs); err != nil {
			s.logger.Warn().Err(err).Int64("product_id", externalID).Msg("Failed to replace category links")
		}
	}

	for _, item := range node.Items {
		if item.ItemID == "" {
			stats.Skipped++
			continue
		}

		sku := database.Sku{
			ProductDbID:    productDbID,
			RetailerHost:   s.host,
			ItemID:         item.ItemID,
			UnitMultiplier: vtex.ParseUnitMultiplier(item.UnitMultiplier),
		}
		if ean := text.NormalizeEan(item.Ean); ean != "" {
			sku.Ean = &ean
		}
		if item.Name != "" {
			sku.Name = &item.Name
		}
		if item.MeasurementUnit != "" {
			sku.MeasurementUnit = &item.MeasurementUnit
		}

		skuDbID, err := database.UpsertSku(ctx, &sku)
		if err != nil {
			return fmt.Errorf("failed to upsert sku %s: %w", item.ItemID, err)
		}
		stats.Skus++
		s.recorder.RecordCatalogUpsert(s.host, "sku")

		for _, sl := range item.Sellers {
			if sl.SellerID == "" {
				continue
			}
			seller := database.Seller{
				SkuDbID:       skuDbID,
				SellerID:      sl.SellerID,
				SellerDefault: sl.SellerDefault,
			}
			if sl.SellerName != "" {
				seller.Name = &sl.SellerName
			}
			sellerDbID, err := database.UpsertSeller(ctx, &seller)
			if err != nil {
				return fmt.Errorf("failed to upsert seller %s: %w", sl.SellerID, err)
			}
			stats.Sellers++
			s.recorder.RecordCatalogUpsert(s.host, "seller")

			if sl.CommertialOffer == nil {
				continue
			}
			offer := buildOfferSnapshot(sellerDbID, sl.CommertialOffer)
			if err := database.InsertCommercialOffer(ctx, &offer); err != nil {
				s.logger.Warn().Err(err).Str("seller_id", sl.SellerID).Msg("Failed to append offer snapshot")
				continue
			}
			stats.Offers++
			s.recorder.RecordCatalogUpsert(s.host, "offer")
		}
	}

	return nil
}

// buildOfferSnapshot maps an offer block to an append-only snapshot row.
// Zero prices read as "no price published" and stay null.
func buildOfferSnapshot(sellerDbID int64, o *vtex.OfferNode) database.CommercialOffer {
	offer := database.CommercialOffer{SellerDbID: sellerDbID, CapturedAt: time.Now().UTC()}
	if o.Price > 0 {
		v := o.Price
		offer.Price = &v
	}
	if o.ListPrice > 0 {
		v := o.ListPrice
		offer.ListPrice = &v
	}
	if o.SpotPrice > 0 {
		v := o.SpotPrice
		offer.SpotPrice = &v
	}
	if o.PriceWithoutDiscount > 0 {
		v := o.PriceWithoutDiscount
		offer.PriceWithoutDiscount = &v
	}
	qty := o.AvailableQuantity
	offer.AvailableQuantity = &qty
	if o.PriceValidUntil != "" {
		if t, err := time.Parse(time.RFC3339, o.PriceValidUntil); err == nil {
			utc := t.UTC()
			offer.ValidUntil = &utc
		}
	}
	return offer
}
