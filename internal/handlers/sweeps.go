package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/gondola/availability-service/config"
	"github.com/gondola/availability-service/internal/catalog"
	"github.com/gondola/availability-service/internal/database"
	"github.com/gondola/availability-service/internal/metrics"
	"github.com/gondola/availability-service/internal/orchestrator"
	"github.com/gondola/availability-service/internal/stores"
	"github.com/gondola/availability-service/internal/vtex"
)

// sweepSem limits concurrent background sweeps so a burst of triggers cannot
// exhaust sessions or pool connections
var sweepSem = make(chan struct{}, 4)

// SweepStartedResponse is the 202 response for every async trigger
type SweepStartedResponse struct {
	SweepID string `json:"sweepId"`
	Status  string `json:"status"`
	PollURL string `json:"pollUrl"`
	Message string `json:"message,omitempty"`
}

// SweepResponse is the wire shape of one sweep log row
type SweepResponse struct {
	SweepID     string     `json:"sweepId"`
	Host        string     `json:"host"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
}

// CatalogSweepRequest tunes a catalog sweep
type CatalogSweepRequest struct {
	CategoryID   *int64 `json:"categoryId,omitempty"`
	MaxPages     int    `json:"maxPages,omitempty"`
	Depth        int    `json:"depth,omitempty"`
	SalesChannel int    `json:"salesChannel,omitempty"`
}

// BrandSweepRequest tunes a brand-prefix discovery sweep
type BrandSweepRequest struct {
	PrefixLen int `json:"prefixLen,omitempty"`
}

// ProbeSweepRequest tunes a probe sweep
type ProbeSweepRequest struct {
	// AllSkus probes the whole known catalog instead of the tracked list
	AllSkus bool `json:"allSkus,omitempty"`
}

// resolveRetailer loads the retailer named by the :retailerId path param,
// writing the error response itself when the lookup fails
func resolveRetailer(c *gin.Context) (*database.Retailer, bool) {
	idStr := c.Param("retailerId")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid retailer id: %s", idStr)})
		return nil, false
	}

	r, err := database.GetRetailerByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Retailer %d not found", id)})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up retailer"})
		}
		return nil, false
	}
	if !r.Enabled {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Retailer %d is disabled", id)})
		return nil, false
	}
	return r, true
}

// startPhaseSweep opens a sweep log, spawns the phase in the background, and
// answers 202 with the sweep id to poll. The phase returns the notes to file
// on success.
func startPhaseSweep(c *gin.Context, host, sweepType, message string, phase func(ctx context.Context) (string, error)) {
	sweepID, err := database.CreateSweepLog(c.Request.Context(), host, sweepType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create sweep log: %v", err)})
		return
	}

	go func() {
		sweepSem <- struct{}{}
		defer func() { <-sweepSem }()

		bgCtx := context.Background()
		notes, runErr := phase(bgCtx)
		if runErr != nil {
			if err := database.FailSweepLog(bgCtx, sweepID, vtex.Truncate(runErr.Error(), 500)); err != nil {
				log.Error().Err(err).Str("sweep_id", sweepID).Msg("Failed to mark sweep as failed")
			}
			log.Error().Err(runErr).Str("sweep_id", sweepID).Str("host", host).Msg("Background sweep failed")
			return
		}
		if err := database.CompleteSweepLog(bgCtx, sweepID, notes); err != nil {
			log.Error().Err(err).Str("sweep_id", sweepID).Msg("Failed to mark sweep as completed")
		}
	}()

	c.JSON(http.StatusAccepted, SweepStartedResponse{
		SweepID: sweepID,
		Status:  "started",
		PollURL: fmt.Sprintf("/internal/sweeps/%s", sweepID),
		Message: message,
	})
}

// TriggerCatalogSweep walks the full catalog of one retailer asynchronously
// POST /internal/admin/sweep/catalog/:retailerId
func TriggerCatalogSweep(c *gin.Context) {
	retailer, ok := resolveRetailer(c)
	if !ok {
		return
	}

	var req CatalogSweepRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	cfg := config.Get()
	phase := func(ctx context.Context) (string, error) {
		client, err := orchestrator.NewRetailerClient(cfg, retailer.Host, log.Logger)
		if err != nil {
			return "", err
		}
		client.Session().WarmUp(ctx)

		syncer := catalog.NewSyncer(client, retailer.Host, cfg.Vtex.PageSize, metrics.NewRecorder(), log.Logger)
		if req.SalesChannel > 0 {
			syncer.SetSalesChannel(req.SalesChannel)
		}
		depth := req.Depth
		if depth <= 0 {
			depth = cfg.Vtex.CategoryTreeDepth
		}
		nodes, err := syncer.SyncCategories(ctx, depth)
		if err != nil {
			return "", err
		}
		stats, err := syncer.SyncProducts(ctx, req.CategoryID, req.MaxPages)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d categories, %d products, %d skus, %d offers",
			nodes, stats.Products, stats.Skus, stats.Offers), nil
	}

	startPhaseSweep(c, retailer.Host, database.SweepTypeCatalog,
		fmt.Sprintf("Catalog sweep started for %s", retailer.Host), phase)
}

// TriggerEanDiscovery searches the retailer for every tracked EAN
// POST /internal/admin/sweep/ean/:retailerId
func TriggerEanDiscovery(c *gin.Context) {
	retailer, ok := resolveRetailer(c)
	if !ok {
		return
	}

	cfg := config.Get()
	phase := func(ctx context.Context) (string, error) {
		client, err := orchestrator.NewRetailerClient(cfg, retailer.Host, log.Logger)
		if err != nil {
			return "", err
		}
		client.Session().WarmUp(ctx)

		syncer := catalog.NewSyncer(client, retailer.Host, cfg.Vtex.PageSize, metrics.NewRecorder(), log.Logger)
		discovery := catalog.NewDiscovery(client, syncer, retailer.Host, cfg.Vtex.PageSize, log.Logger)
		stats, err := discovery.ByEan(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d products, %d skus", stats.Products, stats.Skus), nil
	}

	startPhaseSweep(c, retailer.Host, database.SweepTypeEan,
		fmt.Sprintf("EAN discovery started for %s", retailer.Host), phase)
}

// TriggerBrandDiscovery searches the retailer by tracked brand prefixes
// POST /internal/admin/sweep/brand/:retailerId
func TriggerBrandDiscovery(c *gin.Context) {
	retailer, ok := resolveRetailer(c)
	if !ok {
		return
	}

	var req BrandSweepRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	cfg := config.Get()
	phase := func(ctx context.Context) (string, error) {
		client, err := orchestrator.NewRetailerClient(cfg, retailer.Host, log.Logger)
		if err != nil {
			return "", err
		}
		client.Session().WarmUp(ctx)

		syncer := catalog.NewSyncer(client, retailer.Host, cfg.Vtex.PageSize, metrics.NewRecorder(), log.Logger)
		discovery := catalog.NewDiscovery(client, syncer, retailer.Host, cfg.Vtex.PageSize, log.Logger)
		stats, err := discovery.ByBrandPrefix(ctx, req.PrefixLen)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d products, %d skus", stats.Products, stats.Skus), nil
	}

	startPhaseSweep(c, retailer.Host, database.SweepTypeBrand,
		fmt.Sprintf("Brand discovery started for %s", retailer.Host), phase)
}

// TriggerStoreMapping maps the retailer's stores onto pickup points
// POST /internal/admin/map-stores/:retailerId
func TriggerStoreMapping(c *gin.Context) {
	retailer, ok := resolveRetailer(c)
	if !ok {
		return
	}

	cfg := config.Get()
	phase := func(ctx context.Context) (string, error) {
		client, err := orchestrator.NewRetailerClient(cfg, retailer.Host, log.Logger)
		if err != nil {
			return "", err
		}
		client.Session().WarmUp(ctx)

		mapper := stores.NewMapper(client, retailer.Host, retailer.SalesChannelList(), log.Logger)
		stats, err := mapper.MapAll(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d/%d stores mapped, %d unmatched, %d failed",
			stats.Mapped, stats.Stores, stats.Unmatched, stats.Failed), nil
	}

	startPhaseSweep(c, retailer.Host, database.SweepTypeStores,
		fmt.Sprintf("Store mapping started for %s", retailer.Host), phase)
}

// TriggerProbe starts an availability probe sweep
// POST /internal/admin/probe/:retailerId
func TriggerProbe(c *gin.Context) {
	retailer, ok := resolveRetailer(c)
	if !ok {
		return
	}

	var req ProbeSweepRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	sweepID, err := database.CreateSweepLog(c.Request.Context(), retailer.Host, database.SweepTypeProbe)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create sweep log: %v", err)})
		return
	}

	orch := orchestrator.New(*retailer, config.Get(), metrics.NewRecorder(), log.Logger)
	go func() {
		sweepSem <- struct{}{}
		defer func() { <-sweepSem }()

		bgCtx := context.Background()
		var runErr error
		if req.AllSkus {
			_, runErr = orch.ProbeAllWith(bgCtx, sweepID)
		} else {
			_, runErr = orch.ProbeEanListWith(bgCtx, sweepID)
		}
		if runErr != nil {
			log.Error().Err(runErr).Str("sweep_id", sweepID).Str("host", retailer.Host).Msg("Probe sweep failed")
		}
	}()

	c.JSON(http.StatusAccepted, SweepStartedResponse{
		SweepID: sweepID,
		Status:  "started",
		PollURL: fmt.Sprintf("/internal/sweeps/%s", sweepID),
		Message: fmt.Sprintf("Probe sweep started for %s", retailer.Host),
	})
}

// TriggerFullProcess runs discovery, mapping, and probing for every enabled
// retailer (or one, via ?host=)
// POST /internal/admin/full-process
func TriggerFullProcess(c *gin.Context) {
	host := c.Query("host")
	master := orchestrator.NewMaster(config.Get(), metrics.NewRecorder(), log.Logger)

	go func() {
		sweepSem <- struct{}{}
		defer func() { <-sweepSem }()

		if _, err := master.RunFullProcess(context.Background(), host); err != nil {
			log.Error().Err(err).Str("host", host).Msg("Full process failed")
		}
	}()

	message := "Full process started for all enabled retailers"
	if host != "" {
		message = fmt.Sprintf("Full process started for %s", host)
	}
	c.JSON(http.StatusAccepted, SweepStartedResponse{
		Status:  "started",
		PollURL: "/internal/sweeps",
		Message: message,
	})
}

// GetSweep returns one sweep log row
// GET /internal/sweeps/:sweepId
func GetSweep(c *gin.Context) {
	sweepID := c.Param("sweepId")

	sweep, err := database.GetSweepLog(c.Request.Context(), sweepID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Sweep %s not found", sweepID)})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up sweep"})
		}
		return
	}
	c.JSON(http.StatusOK, toSweepResponse(*sweep))
}

// ListSweeps returns recent sweep logs, optionally filtered by host
// GET /internal/sweeps?host=&limit=
func ListSweeps(c *gin.Context) {
	host := c.Query("host")
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	sweeps, err := database.ListSweepLogs(c.Request.Context(), host, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sweeps"})
		return
	}

	out := make([]SweepResponse, 0, len(sweeps))
	for _, s := range sweeps {
		out = append(out, toSweepResponse(s))
	}
	c.JSON(http.StatusOK, gin.H{"sweeps": out})
}

func toSweepResponse(s database.SweepLog) SweepResponse {
	return SweepResponse{
		SweepID:     s.ID,
		Host:        s.RetailerHost,
		Type:        s.SweepType,
		Status:      s.Status,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
		Notes:       s.Notes,
	}
}
