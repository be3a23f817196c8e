package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/gondola/availability-service/config"
	"github.com/gondola/availability-service/internal/database"
	"github.com/gondola/availability-service/internal/handlers"
	"github.com/gondola/availability-service/internal/jobs"
	"github.com/gondola/availability-service/internal/metrics"
	"github.com/gondola/availability-service/internal/middleware"
	"github.com/gondola/availability-service/internal/orchestrator"
	"github.com/gondola/availability-service/internal/telemetry"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting availability service")

	ctx := context.Background()
	telemetryCleanup := telemetry.MustInit(ctx, telemetry.GetConfigFromEnv())
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryCleanup(cleanupCtx); err != nil {
			logger.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL not set")
	}

	if err := database.Connect(
		ctx,
		dbURL,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime,
		cfg.Database.MaxConnIdleTime,
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	logger.Info().Msg("Database connected")

	// Sweeps left running by a previous process can never complete
	if n, err := database.MarkInterruptedSweeps(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to mark interrupted sweeps")
	} else if n > 0 {
		logger.Info().Int("count", n).Msg("Marked interrupted sweeps as failed")
	}

	scheduler := startScheduler(cfg, logger)
	if scheduler != nil {
		defer scheduler.Stop()
	}

	retention := jobs.NewRetentionManager(jobs.DefaultRetentionConfig(), *logger)
	retention.Start()
	defer retention.Stop()

	if cfg.Logging.Level == "info" || cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	setupMiddleware(router, logger)

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware())
	internal.Use(middleware.ServiceRateLimitMiddleware(50, 100))
	{
		internal.GET("/health", handlers.HealthCheck)
		internal.GET("/retailers", handlers.ListRetailers)
		internal.PUT("/retailers", handlers.UpsertRetailerConfig)
		internal.GET("/tracked", handlers.ListTracked)
		internal.PUT("/tracked", handlers.UpsertTracked)

		admin := internal.Group("/admin")
		{
			admin.POST("/sweep/catalog/:retailerId", handlers.TriggerCatalogSweep)
			admin.POST("/sweep/ean/:retailerId", handlers.TriggerEanDiscovery)
			admin.POST("/sweep/brand/:retailerId", handlers.TriggerBrandDiscovery)
			admin.POST("/map-stores/:retailerId", handlers.TriggerStoreMapping)
			admin.POST("/probe/:retailerId", handlers.TriggerProbe)
			admin.POST("/full-process", handlers.TriggerFullProcess)
		}

		sweeps := internal.Group("/sweeps")
		{
			sweeps.GET("", handlers.ListSweeps)
			sweeps.GET("/:sweepId", handlers.GetSweep)
		}

		results := internal.Group("/results")
		{
			results.GET("/stats", handlers.GetResultStats)
			results.GET("/recent", handlers.ListRecentResults)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

// startScheduler wires the cron-driven full process when enabled. Returns
// nil when the scheduler is off or the expression is invalid.
func startScheduler(cfg *config.Config, logger *zerolog.Logger) *cron.Cron {
	if !cfg.Scheduler.Enabled {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(cfg.Scheduler.Cron, func() {
		logger.Info().Str("cron", cfg.Scheduler.Cron).Msg("Scheduled full process starting")
		master := orchestrator.NewMaster(cfg, metrics.NewRecorder(), *logger)
		if _, err := master.RunFullProcess(context.Background(), ""); err != nil {
			logger.Error().Err(err).Msg("Scheduled full process failed")
		}
	})
	if err != nil {
		logger.Error().Err(err).Str("cron", cfg.Scheduler.Cron).Msg("Invalid cron expression, scheduler disabled")
		return nil
	}

	c.Start()
	logger.Info().Str("cron", cfg.Scheduler.Cron).Msg("Scheduler started")
	return c
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "availability-service").Logger()
	return &logger
}

func setupMiddleware(router *gin.Engine, logger *zerolog.Logger) {
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		end := time.Now()
		latency := end.Sub(start)

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	})
}
