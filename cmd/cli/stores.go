package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gondola/availability-service/internal/importer"
	"github.com/gondola/availability-service/internal/orchestrator"
	"github.com/gondola/availability-service/internal/stores"
)

var (
	mapStoresHost    string
	importStoresHost string
)

// mapStoresCmd represents the map-stores command
var mapStoresCmd = &cobra.Command{
	Use:   "map-stores",
	Short: "Map a retailer's physical stores onto platform pickup points",
	Long: `For every active store of the retailer, discover nearby pickup points
(by geo coordinates, falling back to postal code) on each configured sales
channel and record the closest match within the radius on the store row.
Stores already mapped are re-checked; stores with no acceptable candidate
keep their current mapping.`,
	Example: `  availability-service map-stores --host https://www.vea.com.ar`,
	Args:    cobra.NoArgs,
	RunE:    runMapStores,
}

// importStoresCmd represents the import-stores command
var importStoresCmd = &cobra.Command{
	Use:   "import-stores <file.xlsx>",
	Short: "Import a retailer's store directory from an XLSX file",
	Long: `Import physical store rows from an operator-maintained XLSX workbook.
Rows are keyed by (bandera, comercio, sucursal) within the retailer, so the
same file can be re-imported after edits. Expected columns (Spanish headers,
accents optional): nombre, bandera, comercio, sucursal, direccion, localidad,
provincia, cp, latitud, longitud, activo.`,
	Example: `  availability-service import-stores sucursales.xlsx --host https://www.vea.com.ar`,
	Args:    cobra.ExactArgs(1),
	RunE:    runImportStores,
}

func init() {
	rootCmd.AddCommand(mapStoresCmd)
	rootCmd.AddCommand(importStoresCmd)

	mapStoresCmd.Flags().StringVar(&mapStoresHost, "host", "", "Retailer host (required)")
	mapStoresCmd.MarkFlagRequired("host")

	importStoresCmd.Flags().StringVar(&importStoresHost, "host", "", "Retailer host the stores belong to (required)")
	importStoresCmd.MarkFlagRequired("host")
}

func runMapStores(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	retailer, err := resolveRetailer(ctx, mapStoresHost)
	if err != nil {
		return err
	}

	client, err := orchestrator.NewRetailerClient(cfg, retailer.Host, *logger)
	if err != nil {
		return err
	}
	client.Session().WarmUp(ctx)

	mapper := stores.NewMapper(client, retailer.Host, retailer.SalesChannelList(), *logger)
	stats, err := mapper.MapAll(ctx)
	if err != nil {
		return fmt.Errorf("store mapping failed: %w", err)
	}

	fmt.Printf("Store mapping complete: %d/%d mapped, %d unmatched, %d failed\n",
		stats.Mapped, stats.Stores, stats.Unmatched, stats.Failed)
	return nil
}

func runImportStores(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	retailer, err := resolveRetailer(ctx, importStoresHost)
	if err != nil {
		return err
	}

	im := importer.NewStoreImporter(retailer.Host, *logger)
	stats, err := im.ImportFile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("store import failed: %w", err)
	}

	fmt.Printf("Imported %d of %d stores (%d skipped)\n", stats.Imported, stats.TotalRows, stats.Skipped)
	displayImportErrors(stats)

	if stats.Skipped > 0 {
		return fmt.Errorf("%d rows skipped", stats.Skipped)
	}
	return nil
}

func displayImportErrors(stats *importer.ImportStats) {
	if len(stats.Errors) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ROW\tPROBLEM")
	fmt.Fprintln(w, "---\t-------")
	for _, e := range stats.Errors {
		fmt.Fprintf(w, "%d\t%s\n", e.Row, e.Message)
	}
	w.Flush()
}
