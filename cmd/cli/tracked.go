package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gondola/availability-service/internal/importer"
)

var importTrackedOwner string

// importTrackedCmd represents the import-tracked command
var importTrackedCmd = &cobra.Command{
	Use:   "import-tracked <file.xlsx>",
	Short: "Import the tracked product list from an XLSX file",
	Long: `Import tracked products (EANs to watch across retailers) from an XLSX
workbook. The EAN is the primary key; re-importing updates owner, name, and
track flag. Expected columns: ean, owner, producto, track. Rows with an
empty owner cell take the --owner value.`,
	Example: `  availability-service import-tracked productos.xlsx
  availability-service import-tracked competencia.xlsx --owner Competencia`,
	Args: cobra.ExactArgs(1),
	RunE: runImportTracked,
}

func init() {
	rootCmd.AddCommand(importTrackedCmd)

	importTrackedCmd.Flags().StringVar(&importTrackedOwner, "owner", "", "Owner for rows without one (e.g. Adeco, Competencia)")
}

func runImportTracked(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	im := importer.NewTrackedImporter(importTrackedOwner, *logger)
	stats, err := im.ImportFile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("tracked import failed: %w", err)
	}

	fmt.Printf("Imported %d of %d tracked products (%d skipped)\n", stats.Imported, stats.TotalRows, stats.Skipped)
	displayImportErrors(stats)

	if stats.Skipped > 0 {
		return fmt.Errorf("%d rows skipped", stats.Skipped)
	}
	return nil
}
