package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gondola/availability-service/internal/database"
)

// TestDefaultRetentionConfig verifies the documented retention windows.
func TestDefaultRetentionConfig(t *testing.T) {
	cfg := DefaultRetentionConfig()

	assert.Equal(t, 24*time.Hour, cfg.Interval)
	assert.Equal(t, 90*24*time.Hour, cfg.ResultRetention)
	assert.Equal(t, 180*24*time.Hour, cfg.OfferRetention)
	assert.Equal(t, 30*24*time.Hour, cfg.SweepLogRetention)
	assert.True(t, cfg.Enabled)
}

// TestRetentionManagerDisabled verifies that a disabled manager starts and
// stops without ever touching the database.
func TestRetentionManagerDisabled(t *testing.T) {
	manager := NewRetentionManager(RetentionConfig{Enabled: false}, zerolog.Nop())
	manager.Start()

	stopped := make(chan struct{})
	go func() {
		manager.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return for a disabled manager")
	}
}

// TestRetentionPruning verifies that RunOnce deletes only rows past their
// window, that running sweeps survive whatever their age, and that an
// enabled manager starts and stops cleanly.
func TestRetentionPruning(t *testing.T) {
	ctx := context.Background()
	cleanup := setupRetentionDB(t)
	defer cleanup()

	host := "https://www.vea.com.ar"
	require.NoError(t, database.UpsertRetailer(ctx, &database.Retailer{
		Name: "Vea", Host: host, SalesChannels: "1", Enabled: true,
	}))

	bandera, comercio, sucursal := "VEA", "2", "124"
	require.NoError(t, database.UpsertStore(ctx, &database.Store{
		RetailerHost: host, Name: "Vea Mendoza",
		Bandera: &bandera, Comercio: &comercio, Sucursal: &sucursal,
		Active: true,
	}))
	storeRows, err := database.ListActiveStores(ctx, host)
	require.NoError(t, err)
	require.Len(t, storeRows, 1)
	storeID := storeRows[0].ID

	productID, err := database.UpsertProduct(ctx, &database.Product{
		RetailerHost: host, ExternalID: 123456, Name: "Yerba Mate Taragui 1kg",
	})
	require.NoError(t, err)
	skuID, err := database.UpsertSku(ctx, &database.Sku{
		ProductDbID: productID, RetailerHost: host, ItemID: "1401", UnitMultiplier: 1,
	})
	require.NoError(t, err)
	sellerID, err := database.UpsertSeller(ctx, &database.Seller{
		SkuDbID: skuID, SellerID: "1", SellerDefault: true,
	})
	require.NoError(t, err)

	now := time.Now().UTC()

	// One probe row past the 90-day window, one fresh.
	require.NoError(t, database.InsertAvailabilityResults(ctx, []database.AvailabilityResult{
		{RetailerHost: host, StoreID: storeID, SkuID: "1401", SellerID: "1",
			SalesChannel: 1, Currency: "ARS", CheckedAt: now.Add(-100 * 24 * time.Hour)},
		{RetailerHost: host, StoreID: storeID, SkuID: "1401", SellerID: "1",
			SalesChannel: 1, Currency: "ARS", CheckedAt: now.Add(-24 * time.Hour)},
	}))

	// One offer snapshot past the 180-day window, one fresh.
	require.NoError(t, database.InsertCommercialOffer(ctx, &database.CommercialOffer{
		SellerDbID: sellerID, CapturedAt: now.Add(-200 * 24 * time.Hour),
	}))
	require.NoError(t, database.InsertCommercialOffer(ctx, &database.CommercialOffer{
		SellerDbID: sellerID, CapturedAt: now.Add(-24 * time.Hour),
	}))

	// Three sweep logs: closed and stale, running and stale, closed and fresh.
	staleClosed, err := database.CreateSweepLog(ctx, host, database.SweepTypeCatalog)
	require.NoError(t, err)
	require.NoError(t, database.CompleteSweepLog(ctx, staleClosed, "done"))
	staleRunning, err := database.CreateSweepLog(ctx, host, database.SweepTypeProbe)
	require.NoError(t, err)
	for _, id := range []string{staleClosed, staleRunning} {
		_, err = database.Pool().Exec(ctx,
			`UPDATE sweep_logs SET started_at = $2 WHERE id = $1`,
			id, now.Add(-60*24*time.Hour))
		require.NoError(t, err)
	}
	freshClosed, err := database.CreateSweepLog(ctx, host, database.SweepTypeEan)
	require.NoError(t, err)
	require.NoError(t, database.CompleteSweepLog(ctx, freshClosed, "done"))

	cfg := DefaultRetentionConfig()

	stats, err := RetentionStats(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["availability_results"])
	assert.Equal(t, int64(1), stats["commercial_offers"])
	assert.Equal(t, int64(1), stats["sweep_logs"], "the stale running sweep must not be counted")

	require.NoError(t, RunOnce(ctx, cfg, zerolog.Nop()))

	assert.Equal(t, 1, countRows(ctx, t, "availability_results"))
	assert.Equal(t, 1, countRows(ctx, t, "commercial_offers"))
	assert.Equal(t, 2, countRows(ctx, t, "sweep_logs"))

	// The stale running sweep is the one that survived.
	survivor, err := database.GetSweepLog(ctx, staleRunning)
	require.NoError(t, err)
	assert.Equal(t, database.SweepStatusRunning, survivor.Status)

	stats, err = RetentionStats(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats["availability_results"])
	assert.Equal(t, int64(0), stats["commercial_offers"])
	assert.Equal(t, int64(0), stats["sweep_logs"])

	// An enabled manager prunes once at startup and stops on demand.
	cfg.Interval = time.Hour
	manager := NewRetentionManager(cfg, zerolog.Nop())
	manager.Start()

	stopped := make(chan struct{})
	go func() {
		manager.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return for an enabled manager")
	}
}

// setupRetentionDB starts a throwaway postgres container, connects the
// shared pool, and applies the repo schema.
func setupRetentionDB(t *testing.T) func() {
	if testing.Short() {
		t.Skip("skipping retention test in short mode (requires Docker)")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start postgres container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	require.NoError(t, database.Connect(ctx, connStr, 5, 1, time.Hour, 30*time.Minute), "Failed to connect pool")

	schema, err := os.ReadFile(filepath.Join("..", "..", "schema.sql"))
	require.NoError(t, err, "Failed to read schema.sql")
	_, err = database.Pool().Exec(ctx, string(schema))
	require.NoError(t, err, "Failed to apply schema")

	return func() {
		database.Close()
		container.Terminate(ctx)
	}
}

func countRows(ctx context.Context, t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, database.Pool().QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}
