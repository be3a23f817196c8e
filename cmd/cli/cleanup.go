package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gondola/availability-service/internal/jobs"
)

var (
	cleanupDryRun       bool
	cleanupResultDays   int
	cleanupOfferDays    int
	cleanupSweepLogDays int
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune old rows from the append-only tables",
	Long: `Delete availability results, offer snapshots and closed sweep logs older
than their retention windows. The server runs the same pruning daily; this
command exists for one-off runs and for checking what a run would remove.

Examples:
  availability-service cleanup --dry-run
  availability-service cleanup --result-days 30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		retCfg := jobs.DefaultRetentionConfig()
		retCfg.ResultRetention = time.Duration(cleanupResultDays) * 24 * time.Hour
		retCfg.OfferRetention = time.Duration(cleanupOfferDays) * 24 * time.Hour
		retCfg.SweepLogRetention = time.Duration(cleanupSweepLogDays) * 24 * time.Hour

		if cleanupDryRun {
			stats, err := jobs.RetentionStats(ctx, retCfg)
			if err != nil {
				return fmt.Errorf("failed to count prunable rows: %w", err)
			}
			displayRetentionStats(stats)
			return nil
		}

		if err := jobs.RunOnce(ctx, retCfg, *logger); err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		fmt.Println("Cleanup complete")
		return nil
	},
}

func displayRetentionStats(stats map[string]int64) {
	tables := make([]string, 0, len(stats))
	for table := range stats {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TABLE\tPRUNABLE ROWS")
	for _, table := range tables {
		fmt.Fprintf(w, "%s\t%d\n", table, stats[table])
	}
	w.Flush()
}

func init() {
	def := jobs.DefaultRetentionConfig()
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Count prunable rows without deleting")
	cleanupCmd.Flags().IntVar(&cleanupResultDays, "result-days", int(def.ResultRetention.Hours()/24), "Retention for availability results, in days")
	cleanupCmd.Flags().IntVar(&cleanupOfferDays, "offer-days", int(def.OfferRetention.Hours()/24), "Retention for offer snapshots, in days")
	cleanupCmd.Flags().IntVar(&cleanupSweepLogDays, "sweep-log-days", int(def.SweepLogRetention.Hours()/24), "Retention for closed sweep logs, in days")

	rootCmd.AddCommand(cleanupCmd)
}
