package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/gondola/availability-service/config"
	"github.com/gondola/availability-service/internal/database"
	"github.com/gondola/availability-service/internal/metrics"
	"github.com/gondola/availability-service/internal/probe"
	"github.com/gondola/availability-service/internal/vtex"
)

// ProbeStats summarizes one availability sweep
type ProbeStats struct {
	SweepID      string
	WorkUnits    int
	Batches      int
	Committed    int
	CommitFailed int
	Available    int
	Unavailable  int
	Errors       int
	Duration     time.Duration
}

type workUnitLoader func(ctx context.Context, host string) ([]database.ProbeWorkUnit, error)

// Orchestrator runs availability sweeps for one retailer: it loads the work
// set, partitions it into store-grouped batches, fans the batches out over a
// bounded worker pool, and funnels results into a single committer. Each
// worker owns a fresh session so cookie state never crosses workers; one
// host-wide limiter and semaphore keep the fan-out polite.
type Orchestrator struct {
	retailer database.Retailer
	cfg      *config.Config
	recorder *metrics.Recorder
	logger   zerolog.Logger
}

// New creates an orchestrator for one retailer
func New(retailer database.Retailer, cfg *config.Config, recorder *metrics.Recorder, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		retailer: retailer,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger.With().Str("component", "orchestrator").Str("host", retailer.Host).Logger(),
	}
}

// ProbeEanList probes every (tracked EAN, store) pair of the retailer
func (o *Orchestrator) ProbeEanList(ctx context.Context) (*ProbeStats, error) {
	sweepID, err := database.CreateSweepLog(ctx, o.retailer.Host, database.SweepTypeProbe)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep log: %w", err)
	}
	return o.ProbeEanListWith(ctx, sweepID)
}

// ProbeEanListWith runs the tracked-EAN sweep against a sweep log the caller
// already opened, so async triggers can hand out the id before the run starts
func (o *Orchestrator) ProbeEanListWith(ctx context.Context, sweepID string) (*ProbeStats, error) {
	return o.run(ctx, sweepID, database.SweepTypeProbe, database.LoadProbeWorkUnits)
}

// ProbeAll probes every known SKU of the retailer against every mapped
// store, ignoring the tracked list
func (o *Orchestrator) ProbeAll(ctx context.Context) (*ProbeStats, error) {
	sweepID, err := database.CreateSweepLog(ctx, o.retailer.Host, database.SweepTypeProbe)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep log: %w", err)
	}
	return o.ProbeAllWith(ctx, sweepID)
}

// ProbeAllWith is ProbeAll against an already-opened sweep log
func (o *Orchestrator) ProbeAllWith(ctx context.Context, sweepID string) (*ProbeStats, error) {
	return o.run(ctx, sweepID, database.SweepTypeProbe, database.LoadAllProbeWorkUnits)
}

func (o *Orchestrator) run(ctx context.Context, sweepID, sweepType string, load workUnitLoader) (*ProbeStats, error) {
	o.recorder.SweepStarted(sweepType)
	defer o.recorder.SweepFinished(sweepType)
	o.logger.Info().Str("sweep_id", sweepID).Str("sweep_type", sweepType).Msg("Sweep starting")

	stats, runErr := o.execute(ctx, sweepID, load)

	// The sweep log must close even when ctx is already dead
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if runErr != nil {
		_ = database.FailSweepLog(closeCtx, sweepID, vtex.Truncate(runErr.Error(), 500))
		o.logger.Error().Err(runErr).Str("sweep_id", sweepID).Msg("Sweep failed")
		return stats, runErr
	}

	notes := fmt.Sprintf("%d work units, %d committed, %d available, %d unavailable, %d errors",
		stats.WorkUnits, stats.Committed, stats.Available, stats.Unavailable, stats.Errors)
	if err := database.CompleteSweepLog(closeCtx, sweepID, notes); err != nil {
		o.logger.Warn().Err(err).Str("sweep_id", sweepID).Msg("Failed to close sweep log")
	}

	o.logger.Info().
		Str("sweep_id", sweepID).
		Int("work_units", stats.WorkUnits).
		Int("committed", stats.Committed).
		Dur("duration", stats.Duration).
		Msg("Sweep complete")
	return stats, nil
}

func (o *Orchestrator) execute(parent context.Context, sweepID string, load workUnitLoader) (*ProbeStats, error) {
	start := time.Now()
	stats := &ProbeStats{SweepID: sweepID}

	retailerTimeout := o.cfg.Probe.RetailerTimeout
	if retailerTimeout <= 0 {
		retailerTimeout = 6 * time.Hour
	}
	ctx, cancel := context.WithTimeout(parent, retailerTimeout)
	defer cancel()

	units, err := load(ctx, o.retailer.Host)
	if err != nil {
		return stats, fmt.Errorf("failed to load work units: %w", err)
	}
	stats.WorkUnits = len(units)
	o.recorder.RecordWorkUnits(o.retailer.Host, len(units))

	if len(units) == 0 {
		o.logger.Info().Msg("No work units, nothing to probe")
		stats.Duration = time.Since(start)
		return stats, nil
	}

	batches := partitionBatches(units, o.cfg.Probe.MinBatchSize, o.cfg.Probe.MaxBatchSize)
	stats.Batches = len(batches)

	dop := o.cfg.Probe.DegreeOfParallelism
	if dop <= 0 {
		dop = 8
	}

	rps := o.cfg.Vtex.RequestsPerSecond
	if rps <= 0 {
		rps = 4.0
	}
	limiter := rate.NewLimiter(rate.Limit(rps), dop)
	inFlight := semaphore.NewWeighted(int64(dop))

	results := make(chan database.AvailabilityResult, resultBufferCap)
	com := newCommitter(results, o.recorder, o.logger)
	var commitWg sync.WaitGroup
	commitWg.Add(1)
	go func() {
		defer commitWg.Done()
		com.run()
	}()

	work := make(chan []database.ProbeWorkUnit)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(work)
		for _, batch := range batches {
			select {
			case work <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	sc := o.primarySalesChannel()
	for i := 0; i < dop; i++ {
		workerID := i
		g.Go(func() error {
			prober, err := o.newWorkerProber(limiter, inFlight, workerID)
			if err != nil {
				return err
			}
			for batch := range work {
				if err := o.runBatch(gctx, prober, sc, batch, results); err != nil {
					return err
				}
			}
			return nil
		})
	}

	runErr := g.Wait()
	close(results)
	commitWg.Wait()

	stats.Committed = com.committed
	stats.CommitFailed = com.failed
	stats.Available = com.okRows
	stats.Unavailable = com.unavailable
	stats.Errors = com.errorRows
	stats.Duration = time.Since(start)

	// The retailer budget expiring is a clean abort, not a failure
	if runErr != nil && errors.Is(runErr, context.DeadlineExceeded) && parent.Err() == nil {
		o.logger.Warn().Dur("budget", retailerTimeout).Msg("Retailer time budget exhausted, aborting sweep")
		return stats, nil
	}
	return stats, runErr
}

// runBatch probes every unit of one batch through one worker's session. A
// batch carries its own time budget; exceeding it drops the batch remainder
// but not the run.
func (o *Orchestrator) runBatch(ctx context.Context, prober *probe.Prober, sc int, batch []database.ProbeWorkUnit, results chan<- database.AvailabilityResult) error {
	batchTimeout := o.cfg.Probe.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Minute
	}
	bctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	for i, unit := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		if bctx.Err() != nil {
			o.logger.Warn().
				Int("dropped", len(batch)-i).
				Int64("store_id", unit.StoreID).
				Msg("Batch budget exhausted, dropping remainder")
			return nil
		}

		row, _ := prober.Probe(bctx, unit, sc)
		select {
		case results <- row:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (o *Orchestrator) newWorkerProber(limiter *rate.Limiter, inFlight *semaphore.Weighted, workerID int) (*probe.Prober, error) {
	logger := o.logger.With().Int("worker", workerID).Logger()
	session, err := vtex.NewSession(vtex.SessionConfig{
		Host:           o.retailer.Host,
		ProxyURL:       o.cfg.Proxy.URL,
		ProxyUsername:  o.cfg.Proxy.Username,
		ProxyPassword:  o.cfg.Proxy.Password,
		RequestTimeout: o.cfg.Vtex.RequestTimeout,
		Retry: vtex.RetryPolicy{
			MaxRetries:     o.cfg.Vtex.MaxRetries,
			InitialBackoff: o.cfg.Vtex.InitialBackoff,
			MaxBackoff:     o.cfg.Vtex.MaxBackoff,
		},
		Limiter:  limiter,
		InFlight: inFlight,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create worker session: %w", err)
	}

	client := vtex.NewClient(session, logger)
	return probe.NewProber(client, o.retailer.Host, o.recorder, logger), nil
}

func (o *Orchestrator) primarySalesChannel() int {
	channels := o.retailer.SalesChannelList()
	if len(channels) == 0 {
		return 1
	}
	return channels[0]
}

// partitionBatches chunks the work set into batches sized within [minSize,
// maxSize], cutting on store boundaries once a batch has reached minSize so
// each batch stays as store-homogeneous as the sizes allow. Units arrive
// store-ordered from the loader. The final batch may run short.
func partitionBatches(units []database.ProbeWorkUnit, minSize, maxSize int) [][]database.ProbeWorkUnit {
	if minSize <= 0 {
		minSize = 20
	}
	if maxSize < minSize {
		maxSize = minSize
	}

	batches := make([][]database.ProbeWorkUnit, 0)
	current := make([]database.ProbeWorkUnit, 0, maxSize)
	for i, u := range units {
		storeChanged := i > 0 && units[i-1].StoreID != u.StoreID
		if len(current) >= maxSize || (storeChanged && len(current) >= minSize) {
			batches = append(batches, current)
			current = make([]database.ProbeWorkUnit, 0, maxSize)
		}
		current = append(current, u)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
