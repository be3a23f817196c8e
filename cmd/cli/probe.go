package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gondola/availability-service/internal/metrics"
	"github.com/gondola/availability-service/internal/orchestrator"
)

var (
	probeAllHost string

	probeEansHost    string
	probeMinBatch    int
	probeMaxBatch    int
	probeParallelism int
)

// probeAllCmd represents the probe-all command
var probeAllCmd = &cobra.Command{
	Use:   "probe-all",
	Short: "Probe availability of every known SKU at every mapped store",
	Long: `Run cart simulations for the full (SKU, store) cross product of the
retailer: every SKU in the synced catalog against every active store with a
mapped pickup point. Results are appended to availability_results under one
sweep log. Expect long runtimes on large catalogs; the retailer time budget
applies.`,
	Example: `  availability-service probe-all --host https://www.vea.com.ar`,
	Args:    cobra.NoArgs,
	RunE:    runProbeAll,
}

// probeEansCmd represents the probe-eans command
var probeEansCmd = &cobra.Command{
	Use:   "probe-eans",
	Short: "Probe availability of tracked EANs at every mapped store",
	Long: `Run cart simulations for the (SKU, store) pairs of the tracked product
list only: SKUs whose EAN is on the tracked list, against every active store
with a mapped pickup point. This is the probe the scheduled full process
runs.`,
	Example: `  availability-service probe-eans --host https://www.vea.com.ar
  availability-service probe-eans --host https://www.vea.com.ar --parallelism 16 --min-batch 10 --max-batch 30`,
	Args: cobra.NoArgs,
	RunE: runProbeEans,
}

func init() {
	rootCmd.AddCommand(probeAllCmd)
	rootCmd.AddCommand(probeEansCmd)

	probeAllCmd.Flags().StringVar(&probeAllHost, "host", "", "Retailer host (required)")
	probeAllCmd.MarkFlagRequired("host")

	probeEansCmd.Flags().StringVar(&probeEansHost, "host", "", "Retailer host (required)")
	probeEansCmd.Flags().IntVar(&probeMinBatch, "min-batch", 0, "Minimum work units per batch (default from config)")
	probeEansCmd.Flags().IntVar(&probeMaxBatch, "max-batch", 0, "Maximum work units per batch (default from config)")
	probeEansCmd.Flags().IntVar(&probeParallelism, "parallelism", 0, "Concurrent probe workers (default from config)")
	probeEansCmd.MarkFlagRequired("host")
}

func runProbeAll(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	retailer, err := resolveRetailer(ctx, probeAllHost)
	if err != nil {
		return err
	}

	orch := orchestrator.New(*retailer, cfg, metrics.NewRecorder(), *logger)
	stats, err := orch.ProbeAll(ctx)
	if err != nil {
		return fmt.Errorf("probe sweep failed: %w", err)
	}

	printProbeStats(stats)
	return nil
}

func runProbeEans(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	retailer, err := resolveRetailer(ctx, probeEansHost)
	if err != nil {
		return err
	}

	// Flag overrides operate on a copy so other commands in this process
	// keep the configured values
	runCfg := *cfg
	if probeMinBatch > 0 {
		runCfg.Probe.MinBatchSize = probeMinBatch
	}
	if probeMaxBatch > 0 {
		runCfg.Probe.MaxBatchSize = probeMaxBatch
	}
	if probeParallelism > 0 {
		runCfg.Probe.DegreeOfParallelism = probeParallelism
	}

	orch := orchestrator.New(*retailer, &runCfg, metrics.NewRecorder(), *logger)
	stats, err := orch.ProbeEanList(ctx)
	if err != nil {
		return fmt.Errorf("probe sweep failed: %w", err)
	}

	printProbeStats(stats)
	return nil
}

func printProbeStats(stats *orchestrator.ProbeStats) {
	fmt.Printf("Probe sweep %s complete in %s:\n", stats.SweepID, stats.Duration.Round(time.Second))
	fmt.Printf("  work units: %d in %d batches\n", stats.WorkUnits, stats.Batches)
	fmt.Printf("  committed:  %d (%d failed to commit)\n", stats.Committed, stats.CommitFailed)
	fmt.Printf("  available:  %d\n", stats.Available)
	fmt.Printf("  unavailable: %d\n", stats.Unavailable)
	fmt.Printf("  errors:     %d\n", stats.Errors)
}
