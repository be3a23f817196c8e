// Package jobs holds background maintenance work that is not part of any
// sweep: retention pruning of the append-only tables. Sweeps write without
// bound; something has to delete.
package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RetentionConfig sets how long each append-only table keeps rows
type RetentionConfig struct {
	Interval          time.Duration // how often the manager prunes
	ResultRetention   time.Duration // availability_results rows
	OfferRetention    time.Duration // commercial_offers snapshots
	SweepLogRetention time.Duration // closed sweep_logs rows
	Enabled           bool
}

// DefaultRetentionConfig returns the retention defaults: probe results for a
// quarter, offer snapshots for half a year, sweep logs for a month.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Interval:          24 * time.Hour,
		ResultRetention:   90 * 24 * time.Hour,
		OfferRetention:    180 * 24 * time.Hour,
		SweepLogRetention: 30 * 24 * time.Hour,
		Enabled:           true,
	}
}

// RetentionManager prunes on a fixed interval until stopped
type RetentionManager struct {
	config RetentionConfig
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRetentionManager creates a manager; call Start to begin pruning
func NewRetentionManager(config RetentionConfig, logger zerolog.Logger) *RetentionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &RetentionManager{
		config: config,
		logger: logger.With().Str("component", "retention").Logger(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start begins the background pruning loop
func (rm *RetentionManager) Start() {
	if !rm.config.Enabled {
		rm.logger.Info().Msg("Retention pruning is disabled, not starting")
		close(rm.done)
		return
	}

	rm.logger.Info().
		Dur("interval", rm.config.Interval).
		Dur("result_retention", rm.config.ResultRetention).
		Dur("offer_retention", rm.config.OfferRetention).
		Msg("Starting retention manager")

	go rm.run()
}

// Stop cancels the loop and waits briefly for the current prune to finish
func (rm *RetentionManager) Stop() {
	rm.cancel()

	select {
	case <-rm.done:
		rm.logger.Debug().Msg("Retention manager stopped")
	case <-time.After(5 * time.Second):
		rm.logger.Warn().Msg("Retention manager did not stop gracefully")
	}
}

func (rm *RetentionManager) run() {
	defer close(rm.done)

	ticker := time.NewTicker(rm.config.Interval)
	defer ticker.Stop()

	// Run once on startup
	rm.prune()

	for {
		select {
		case <-rm.ctx.Done():
			return
		case <-ticker.C:
			rm.prune()
		}
	}
}

func (rm *RetentionManager) prune() {
	start := time.Now()
	if err := RunOnce(rm.ctx, rm.config, rm.logger); err != nil {
		rm.logger.Error().Err(err).Msg("Retention prune failed")
		return
	}
	rm.logger.Debug().Dur("duration", time.Since(start)).Msg("Retention prune finished")
}

// RunOnce executes every retention job a single time. Each job is attempted
// even when an earlier one fails; the first error is returned at the end.
func RunOnce(ctx context.Context, cfg RetentionConfig, logger zerolog.Logger) error {
	var firstErr error

	deleted, err := deleteOldAvailabilityResults(ctx, cfg.ResultRetention)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to prune availability results")
		firstErr = err
	} else if deleted > 0 {
		logger.Info().Int("deleted", deleted).Msg("Pruned old availability results")
	}

	deleted, err = deleteOldCommercialOffers(ctx, cfg.OfferRetention)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to prune commercial offers")
		if firstErr == nil {
			firstErr = err
		}
	} else if deleted > 0 {
		logger.Info().Int("deleted", deleted).Msg("Pruned old offer snapshots")
	}

	deleted, err = deleteOldSweepLogs(ctx, cfg.SweepLogRetention)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to prune sweep logs")
		if firstErr == nil {
			firstErr = err
		}
	} else if deleted > 0 {
		logger.Info().Int("deleted", deleted).Msg("Pruned old sweep logs")
	}

	return firstErr
}
