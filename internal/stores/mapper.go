package stores

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/gondola/availability-service/internal/database"
	"github.com/gondola/availability-service/internal/geo"
	"github.com/gondola/availability-service/internal/vtex"
)

// DefaultRadiusKm is the soft matching radius: a pickup point further than
// this from the store is assumed to belong to a different branch
const DefaultRadiusKm = 15.0

// MapStats accumulates counts across one mapping run
type MapStats struct {
	Stores    int
	Mapped    int
	Unmatched int
	Failed    int
}

// Mapper links physical stores to the platform's pickup points for one
// retailer. Discovery responses are cached per (channel, location) for the
// lifetime of a run, since nearby stores ask the same questions.
type Mapper struct {
	client        *vtex.Client
	host          string
	salesChannels []int
	radiusKm      float64
	cache         *cache.Cache
	logger        zerolog.Logger
}

// NewMapper creates a store mapper for one retailer host
func NewMapper(client *vtex.Client, host string, salesChannels []int, logger zerolog.Logger) *Mapper {
	if len(salesChannels) == 0 {
		salesChannels = []int{1}
	}
	return &Mapper{
		client:        client,
		host:          host,
		salesChannels: salesChannels,
		radiusKm:      DefaultRadiusKm,
		cache:         cache.New(10*time.Minute, 15*time.Minute),
		logger:        logger.With().Str("component", "store-mapper").Str("host", host).Logger(),
	}
}

// MapAll maps every active store of the retailer. Stores that cannot be
// mapped keep their current pickup id; failures are counted and skipped.
func (m *Mapper) MapAll(ctx context.Context) (*MapStats, error) {
	storeRows, err := database.ListActiveStores(ctx, m.host)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}

	stats := &MapStats{}
	for _, st := range storeRows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Stores++

		mapped, err := m.MapStore(ctx, st)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return stats, err
			}
			stats.Failed++
			m.logger.Warn().Err(err).Int64("store_id", st.ID).Msg("Store mapping failed")
		case mapped:
			stats.Mapped++
		default:
			stats.Unmatched++
		}
	}

	m.logger.Info().
		Int("stores", stats.Stores).
		Int("mapped", stats.Mapped).
		Int("unmatched", stats.Unmatched).
		Int("failed", stats.Failed).
		Msg("Store mapping complete")
	return stats, nil
}

// MapStore resolves the pickup point for a single store. Geo discovery runs
// first on every configured sales channel; postal discovery is the fallback
// when geo yields nothing. Returns false without error when no candidate
// qualifies, leaving the store row untouched.
func (m *Mapper) MapStore(ctx context.Context, st database.Store) (bool, error) {
	var candidates []vtex.PickupPointInfo
	var lastErr error

	for _, sc := range m.salesChannels {
		var points []vtex.PickupPointInfo
		var err error

		if st.Latitude != nil && st.Longitude != nil {
			points, err = m.discoverByGeo(ctx, *st.Longitude, *st.Latitude, sc)
			if err != nil {
				if ctx.Err() != nil {
					return false, err
				}
				lastErr = err
			}
		}
		if len(points) == 0 && st.PostalCode != nil && *st.PostalCode != "" {
			points, err = m.discoverByPostal(ctx, *st.PostalCode, sc)
			if err != nil {
				if ctx.Err() != nil {
					return false, err
				}
				lastErr = err
			}
		}
		candidates = append(candidates, points...)
	}

	if len(candidates) == 0 {
		if lastErr != nil {
			return false, lastErr
		}
		return false, nil
	}

	chosen, ok := m.choose(st, candidates)
	if !ok {
		return false, nil
	}

	pickupID := chosen.ID
	if err := database.UpdateStorePickupPoint(ctx, st.ID, &pickupID); err != nil {
		return false, fmt.Errorf("failed to update store %d: %w", st.ID, err)
	}

	pp := database.PickupPoint{
		RetailerHost:  m.host,
		PickupPointID: chosen.ID,
		Bandera:       st.Bandera,
		Comercio:      st.Comercio,
		Sucursal:      st.Sucursal,
	}
	if chosen.Name != "" {
		name := chosen.Name
		pp.Name = &name
	}
	if lat, ok := chosen.Latitude(); ok {
		pp.Latitude = &lat
	}
	if lon, ok := chosen.Longitude(); ok {
		pp.Longitude = &lon
	}
	if err := database.UpsertPickupPoint(ctx, &pp); err != nil {
		return false, fmt.Errorf("failed to upsert pickup point %s: %w", chosen.ID, err)
	}

	m.logger.Debug().
		Int64("store_id", st.ID).
		Str("pickup_point_id", chosen.ID).
		Msg("Store mapped to pickup point")
	return true, nil
}

// choose picks the candidate closest to the store, within the soft radius.
// A store without coordinates takes the first candidate with a usable id,
// since postal discovery already scoped the result to its area.
func (m *Mapper) choose(st database.Store, candidates []vtex.PickupPointInfo) (vtex.PickupPointInfo, bool) {
	if st.Latitude == nil || st.Longitude == nil {
		for _, p := range candidates {
			if p.ID != "" {
				return p, true
			}
		}
		return vtex.PickupPointInfo{}, false
	}

	var best vtex.PickupPointInfo
	bestDist := math.MaxFloat64
	found := false
	for _, p := range candidates {
		if p.ID == "" {
			continue
		}
		plat, okLat := p.Latitude()
		plon, okLon := p.Longitude()
		if !okLat || !okLon {
			continue
		}
		d := geo.HaversineKm(*st.Latitude, *st.Longitude, plat, plon)
		if d < bestDist {
			best = p
			bestDist = d
			found = true
		}
	}
	if !found || bestDist > m.radiusKm {
		return vtex.PickupPointInfo{}, false
	}
	return best, true
}

func (m *Mapper) discoverByGeo(ctx context.Context, lon, lat float64, sc int) ([]vtex.PickupPointInfo, error) {
	key := "geo:" + strconv.Itoa(sc) + ":" +
		strconv.FormatFloat(lon, 'f', 5, 64) + ";" + strconv.FormatFloat(lat, 'f', 5, 64)
	if v, ok := m.cache.Get(key); ok {
		return v.([]vtex.PickupPointInfo), nil
	}

	points, err := m.client.PickupPointsByGeo(ctx, lon, lat, sc)
	if err != nil {
		return nil, err
	}
	m.cache.Set(key, points, cache.DefaultExpiration)
	return points, nil
}

func (m *Mapper) discoverByPostal(ctx context.Context, postal string, sc int) ([]vtex.PickupPointInfo, error) {
	key := "postal:" + strconv.Itoa(sc) + ":" + postal
	if v, ok := m.cache.Get(key); ok {
		return v.([]vtex.PickupPointInfo), nil
	}

	points, err := m.client.PickupPointsByPostal(ctx, postal, "", sc)
	if err != nil {
		return nil, err
	}
	m.cache.Set(key, points, cache.DefaultExpiration)
	return points, nil
}
