package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gondola/availability-service/internal/catalog"
	"github.com/gondola/availability-service/internal/metrics"
	"github.com/gondola/availability-service/internal/orchestrator"
)

var (
	sweepHost     string
	sweepSc       int
	sweepCategory int64
	sweepMaxPages int

	eanHost string

	brandHost      string
	brandPrefixLen int
)

// sweepCatalogCmd represents the sweep-catalog command
var sweepCatalogCmd = &cobra.Command{
	Use:   "sweep-catalog",
	Short: "Sync a retailer's category tree and full product catalog",
	Long: `Fetch the retailer's public category tree, then page through every
category's product search and persist products, SKUs, sellers, and commercial
offer snapshots. Re-running updates existing rows and appends new offer
snapshots.`,
	Example: `  availability-service sweep-catalog --host https://www.vea.com.ar
  availability-service sweep-catalog --host https://www.vea.com.ar --sc 2
  availability-service sweep-catalog --host https://www.vea.com.ar --category 123 --max-pages 5`,
	Args: cobra.NoArgs,
	RunE: runSweepCatalog,
}

// eanCmd represents the scrape-by-ean command
var eanCmd = &cobra.Command{
	Use:   "scrape-by-ean",
	Short: "Discover tracked products on a retailer by EAN full-text search",
	Long: `Run one full-text search per tracked EAN against the retailer and persist
every product whose SKUs carry that exact EAN. Keeps the catalog for the
tracked list fresh without a full sweep.`,
	Example: `  availability-service scrape-by-ean --host https://www.vea.com.ar`,
	Args:    cobra.NoArgs,
	RunE:    runScrapeByEan,
}

// brandCmd represents the scrape-by-brand command
var brandCmd = &cobra.Command{
	Use:   "scrape-by-brand",
	Short: "Discover products by tracked brand prefixes (leading EAN digits)",
	Long: `Group tracked EANs by their leading digits (the brand/company prefix),
run one full-text search per distinct prefix, and persist every product whose
SKUs carry an EAN with that prefix. Finds sibling products of the tracked
list that a per-EAN search would miss.`,
	Example: `  availability-service scrape-by-brand --host https://www.vea.com.ar
  availability-service scrape-by-brand --host https://www.vea.com.ar --prefix-len 10`,
	Args: cobra.NoArgs,
	RunE: runScrapeByBrand,
}

func init() {
	rootCmd.AddCommand(sweepCatalogCmd)
	rootCmd.AddCommand(eanCmd)
	rootCmd.AddCommand(brandCmd)

	sweepCatalogCmd.Flags().StringVar(&sweepHost, "host", "", "Retailer host (required)")
	sweepCatalogCmd.Flags().IntVar(&sweepSc, "sc", 0, "Sales channel for category searches (default: storefront default)")
	sweepCatalogCmd.Flags().Int64Var(&sweepCategory, "category", 0, "Sync only this external category id")
	sweepCatalogCmd.Flags().IntVar(&sweepMaxPages, "max-pages", 0, "Page cap per category (0 = unbounded)")
	sweepCatalogCmd.MarkFlagRequired("host")

	eanCmd.Flags().StringVar(&eanHost, "host", "", "Retailer host (required)")
	eanCmd.MarkFlagRequired("host")

	brandCmd.Flags().StringVar(&brandHost, "host", "", "Retailer host (required)")
	brandCmd.Flags().IntVar(&brandPrefixLen, "prefix-len", catalog.DefaultBrandPrefixLen, "Leading EAN digits that form a brand prefix")
	brandCmd.MarkFlagRequired("host")
}

func runSweepCatalog(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	retailer, err := resolveRetailer(ctx, sweepHost)
	if err != nil {
		return err
	}

	client, err := orchestrator.NewRetailerClient(cfg, retailer.Host, *logger)
	if err != nil {
		return err
	}
	client.Session().WarmUp(ctx)

	syncer := catalog.NewSyncer(client, retailer.Host, cfg.Vtex.PageSize, metrics.NewRecorder(), *logger)
	if sweepSc > 0 {
		syncer.SetSalesChannel(sweepSc)
	}

	nodes, err := syncer.SyncCategories(ctx, cfg.Vtex.CategoryTreeDepth)
	if err != nil {
		return fmt.Errorf("category sync failed: %w", err)
	}
	logger.Info().Int("categories", nodes).Msg("Category tree synced")

	var categoryID *int64
	if sweepCategory > 0 {
		categoryID = &sweepCategory
	}
	stats, err := syncer.SyncProducts(ctx, categoryID, sweepMaxPages)
	if err != nil {
		return fmt.Errorf("product sync failed: %w", err)
	}

	fmt.Printf("Catalog sweep complete: %d categories, %d pages, %d products, %d skus, %d sellers, %d offers (%d skipped)\n",
		nodes, stats.Pages, stats.Products, stats.Skus, stats.Sellers, stats.Offers, stats.Skipped)
	return nil
}

func runScrapeByEan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	retailer, err := resolveRetailer(ctx, eanHost)
	if err != nil {
		return err
	}

	client, err := orchestrator.NewRetailerClient(cfg, retailer.Host, *logger)
	if err != nil {
		return err
	}
	client.Session().WarmUp(ctx)

	syncer := catalog.NewSyncer(client, retailer.Host, cfg.Vtex.PageSize, metrics.NewRecorder(), *logger)
	discovery := catalog.NewDiscovery(client, syncer, retailer.Host, cfg.Vtex.PageSize, *logger)

	stats, err := discovery.ByEan(ctx)
	if err != nil {
		return fmt.Errorf("ean discovery failed: %w", err)
	}

	fmt.Printf("EAN discovery complete: %d products, %d skus, %d offers (%d skipped)\n",
		stats.Products, stats.Skus, stats.Offers, stats.Skipped)
	return nil
}

func runScrapeByBrand(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	retailer, err := resolveRetailer(ctx, brandHost)
	if err != nil {
		return err
	}

	client, err := orchestrator.NewRetailerClient(cfg, retailer.Host, *logger)
	if err != nil {
		return err
	}
	client.Session().WarmUp(ctx)

	syncer := catalog.NewSyncer(client, retailer.Host, cfg.Vtex.PageSize, metrics.NewRecorder(), *logger)
	discovery := catalog.NewDiscovery(client, syncer, retailer.Host, cfg.Vtex.PageSize, *logger)

	stats, err := discovery.ByBrandPrefix(ctx, brandPrefixLen)
	if err != nil {
		return fmt.Errorf("brand discovery failed: %w", err)
	}

	fmt.Printf("Brand discovery complete: %d products, %d skus, %d offers (%d skipped)\n",
		stats.Products, stats.Skus, stats.Offers, stats.Skipped)
	return nil
}
