package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gondola/availability-service/config"
	"github.com/gondola/availability-service/internal/catalog"
	"github.com/gondola/availability-service/internal/database"
	"github.com/gondola/availability-service/internal/metrics"
	"github.com/gondola/availability-service/internal/stores"
	"github.com/gondola/availability-service/internal/vtex"
)

// RetailerOutcome records what one retailer's full pass produced
type RetailerOutcome struct {
	Host           string
	SweepID        string
	EanDiscovery   *catalog.SyncStats
	BrandDiscovery *catalog.SyncStats
	Mapping        *stores.MapStats
	Probing        *ProbeStats
	Err            error
}

// Master drives the end-to-end pipeline: discovery, store mapping, and
// probing, retailer by retailer. One retailer's failure never blocks the
// next; each pass is accounted for in its own sweep log.
type Master struct {
	cfg      *config.Config
	recorder *metrics.Recorder
	logger   zerolog.Logger
}

// NewMaster creates the master orchestrator
func NewMaster(cfg *config.Config, recorder *metrics.Recorder, logger zerolog.Logger) *Master {
	return &Master{
		cfg:      cfg,
		recorder: recorder,
		logger:   logger.With().Str("component", "master").Logger(),
	}
}

// RunFullProcess runs the full pipeline for every enabled retailer, or for
// just one when hostFilter is non-empty
func (m *Master) RunFullProcess(ctx context.Context, hostFilter string) ([]RetailerOutcome, error) {
	retailers, err := database.ListEnabledRetailers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list retailers: %w", err)
	}

	if hostFilter != "" {
		filtered := retailers[:0]
		for _, r := range retailers {
			if r.Host == hostFilter {
				filtered = append(filtered, r)
			}
		}
		retailers = filtered
		if len(retailers) == 0 {
			return nil, fmt.Errorf("no enabled retailer matches host %q", hostFilter)
		}
	}
	if len(retailers) == 0 {
		return nil, errors.New("no enabled retailers configured")
	}

	m.logger.Info().Int("retailers", len(retailers)).Msg("Full process starting")

	outcomes := make([]RetailerOutcome, 0, len(retailers))
	for _, r := range retailers {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, m.runRetailer(ctx, r))
	}

	failed := 0
	for _, out := range outcomes {
		if out.Err != nil {
			failed++
		}
	}
	m.logger.Info().
		Int("retailers", len(outcomes)).
		Int("failed", failed).
		Msg("Full process complete")
	return outcomes, nil
}

func (m *Master) runRetailer(ctx context.Context, r database.Retailer) RetailerOutcome {
	out := RetailerOutcome{Host: r.Host}
	logger := m.logger.With().Str("host", r.Host).Logger()

	sweepID, err := database.CreateSweepLog(ctx, r.Host, database.SweepTypeFull)
	if err != nil {
		out.Err = fmt.Errorf("failed to create sweep log: %w", err)
		return out
	}
	out.SweepID = sweepID
	logger.Info().Str("sweep_id", sweepID).Msg("Retailer pass starting")

	runErr := m.runPhases(ctx, r, &out, logger)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if runErr != nil {
		_ = database.FailSweepLog(closeCtx, sweepID, vtex.Truncate(runErr.Error(), 500))
		logger.Error().Err(runErr).Str("sweep_id", sweepID).Msg("Retailer pass failed")
		out.Err = runErr
		return out
	}

	if err := database.CompleteSweepLog(closeCtx, sweepID, out.summary()); err != nil {
		logger.Warn().Err(err).Msg("Failed to close sweep log")
	}
	logger.Info().Str("sweep_id", sweepID).Msg("Retailer pass complete")
	return out
}

func (m *Master) runPhases(ctx context.Context, r database.Retailer, out *RetailerOutcome, logger zerolog.Logger) error {
	client, err := NewRetailerClient(m.cfg, r.Host, logger)
	if err != nil {
		return err
	}
	client.Session().WarmUp(ctx)

	syncer := catalog.NewSyncer(client, r.Host, m.cfg.Vtex.PageSize, m.recorder, logger)
	discovery := catalog.NewDiscovery(client, syncer, r.Host, m.cfg.Vtex.PageSize, logger)

	eanStats, err := discovery.ByEan(ctx)
	if err != nil {
		return fmt.Errorf("discovery by ean failed: %w", err)
	}
	out.EanDiscovery = eanStats

	brandStats, err := discovery.ByBrandPrefix(ctx, catalog.DefaultBrandPrefixLen)
	if err != nil {
		return fmt.Errorf("discovery by brand prefix failed: %w", err)
	}
	out.BrandDiscovery = brandStats

	mapper := stores.NewMapper(client, r.Host, r.SalesChannelList(), logger)
	mapStats, err := mapper.MapAll(ctx)
	if err != nil {
		return fmt.Errorf("store mapping failed: %w", err)
	}
	out.Mapping = mapStats

	probeStats, err := New(r, m.cfg, m.recorder, m.logger).ProbeEanList(ctx)
	if err != nil {
		return fmt.Errorf("probe sweep failed: %w", err)
	}
	out.Probing = probeStats
	return nil
}

func (out *RetailerOutcome) summary() string {
	s := ""
	if out.EanDiscovery != nil {
		s += fmt.Sprintf("ean: %d products; ", out.EanDiscovery.Products)
	}
	if out.BrandDiscovery != nil {
		s += fmt.Sprintf("brand: %d products; ", out.BrandDiscovery.Products)
	}
	if out.Mapping != nil {
		s += fmt.Sprintf("stores: %d/%d mapped; ", out.Mapping.Mapped, out.Mapping.Stores)
	}
	if out.Probing != nil {
		s += fmt.Sprintf("probe: %d/%d committed", out.Probing.Committed, out.Probing.WorkUnits)
	}
	return s
}
