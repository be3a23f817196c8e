package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gondola/availability-service/internal/metrics"
	"github.com/gondola/availability-service/internal/orchestrator"
)

var processHost string

// processCmd represents the run-full-process command
var processCmd = &cobra.Command{
	Use:   "run-full-process",
	Short: "Run discovery, store mapping, and probing for enabled retailers",
	Long: `Run the complete pipeline for every enabled retailer, sequentially:
tracked-EAN discovery, brand-prefix discovery, store-to-pickup-point mapping,
and the availability probe sweep. Each retailer gets its own sweep log.

Use --host to restrict the run to a single retailer.`,
	Example: `  availability-service run-full-process
  availability-service run-full-process --host https://www.vea.com.ar`,
	Args: cobra.NoArgs,
	RunE: runFullProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&processHost, "host", "", "Run only the retailer with this host (default: all enabled)")
}

func runFullProcess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	master := orchestrator.NewMaster(cfg, metrics.NewRecorder(), *logger)
	outcomes, err := master.RunFullProcess(ctx, processHost)
	if err != nil {
		return err
	}

	displayOutcomes(outcomes)

	for _, o := range outcomes {
		if o.Err != nil {
			return fmt.Errorf("some retailers failed")
		}
	}
	return nil
}

func displayOutcomes(outcomes []orchestrator.RetailerOutcome) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "HOST\tSTATUS\tSWEEP ID\tPRODUCTS\tSTORES MAPPED\tPROBES\tAVAILABLE")
	fmt.Fprintln(w, "----\t------\t--------\t--------\t-------------\t------\t---------")

	for _, o := range outcomes {
		status := "SUCCESS"
		if o.Err != nil {
			status = "FAILED"
		}

		products := 0
		if o.EanDiscovery != nil {
			products += o.EanDiscovery.Products
		}
		if o.BrandDiscovery != nil {
			products += o.BrandDiscovery.Products
		}

		mapped := "-"
		if o.Mapping != nil {
			mapped = fmt.Sprintf("%d/%d", o.Mapping.Mapped, o.Mapping.Stores)
		}

		probes, available := "-", "-"
		if o.Probing != nil {
			probes = fmt.Sprintf("%d", o.Probing.Committed)
			available = fmt.Sprintf("%d", o.Probing.Available)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n", o.Host, status, o.SweepID, products, mapped, probes, available)
	}

	w.Flush()
}
