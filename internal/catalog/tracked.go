package catalog

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/rs/zerolog"

	"github.com/gondola/availability-service/internal/database"
	"github.com/gondola/availability-service/internal/text"
	"github.com/gondola/availability-service/internal/vtex"
)

// DefaultBrandPrefixLen covers the GS1 country code plus the company block
// of Argentine EANs
const DefaultBrandPrefixLen = 8

// Discovery finds tracked products on a retailer through fulltext search,
// without walking the whole catalog
type Discovery struct {
	client *vtex.Client
	syncer *Syncer
	host   string
	window int
	logger zerolog.Logger
}

// NewDiscovery creates a targeted discovery runner sharing the syncer's
// upsert path
func NewDiscovery(client *vtex.Client, syncer *Syncer, host string, window int, logger zerolog.Logger) *Discovery {
	if window <= 0 {
		window = 50
	}
	return &Discovery{
		client: client,
		syncer: syncer,
		host:   host,
		window: window,
		logger: logger.With().Str("component", "tracked-discovery").Str("host", host).Logger(),
	}
}

// ByEan issues one fulltext query per tracked EAN and persists only products
// carrying a SKU with that exact EAN. A failing query skips to the next EAN.
func (d *Discovery) ByEan(ctx context.Context) (*SyncStats, error) {
	tracked, err := database.ListTrackedProducts(ctx, true)
	if err != nil {
		return nil, err
	}

	stats := &SyncStats{}
	for _, tp := range tracked {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		ean := text.NormalizeEan(tp.Ean)
		if ean == "" {
			continue
		}

		products, err := d.client.SearchByFulltext(ctx, ean, 0, d.window-1)
		if err != nil {
			if ctx.Err() != nil {
				return stats, err
			}
			d.logger.Warn().Err(err).Str("ean", ean).Msg("Fulltext search failed")
			continue
		}

		for _, raw := range products {
			if !productMatchesEan(raw, ean) {
				continue
			}
			if err := d.syncer.PersistProduct(ctx, raw, stats); err != nil {
				if ctx.Err() != nil {
					return stats, err
				}
				d.logger.Warn().Err(err).Str("ean", ean).Msg("Product persist failed")
			}
		}
	}

	d.logger.Info().
		Int("tracked", len(tracked)).
		Int("products", stats.Products).
		Int("skus", stats.Skus).
		Msg("Discovery by EAN complete")
	return stats, nil
}

// ByBrandPrefix groups tracked EANs by their leading prefixLen digits and
// issues one fulltext query per prefix, keeping products with at least one
// SKU EAN under that prefix. Far fewer requests than ByEan when the tracked
// list is concentrated on a handful of brands.
func (d *Discovery) ByBrandPrefix(ctx context.Context, prefixLen int) (*SyncStats, error) {
	if prefixLen <= 0 {
		prefixLen = DefaultBrandPrefixLen
	}

	tracked, err := database.ListTrackedProducts(ctx, true)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	prefixes := make([]string, 0)
	for _, tp := range tracked {
		prefix := text.EanPrefix(tp.Ean, prefixLen)
		if prefix == "" {
			continue
		}
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	stats := &SyncStats{}
	for _, prefix := range prefixes {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		products, err := d.client.SearchByFulltext(ctx, prefix, 0, d.window-1)
		if err != nil {
			if ctx.Err() != nil {
				return stats, err
			}
			d.logger.Warn().Err(err).Str("prefix", prefix).Msg("Fulltext search failed")
			continue
		}

		for _, raw := range products {
			if !productHasEanPrefix(raw, prefix) {
				continue
			}
			if err := d.syncer.PersistProduct(ctx, raw, stats); err != nil {
				if ctx.Err() != nil {
					return stats, err
				}
				d.logger.Warn().Err(err).Str("prefix", prefix).Msg("Product persist failed")
			}
		}
	}

	d.logger.Info().
		Int("prefixes", len(prefixes)).
		Int("products", stats.Products).
		Int("skus", stats.Skus).
		Msg("Discovery by brand prefix complete")
	return stats, nil
}

func productMatchesEan(raw json.RawMessage, ean string) bool {
	node, err := vtex.ParseProduct(raw)
	if err != nil {
		return false
	}
	for _, item := range node.Items {
		if text.NormalizeEan(item.Ean) == ean {
			return true
		}
	}
	return false
}

func productHasEanPrefix(raw json.RawMessage, prefix string) bool {
	node, err := vtex.ParseProduct(raw)
	if err != nil {
		return false
	}
	for _, item := range node.Items {
		ean := text.NormalizeEan(item.Ean)
		if ean != "" && len(ean) >= len(prefix) && ean[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
