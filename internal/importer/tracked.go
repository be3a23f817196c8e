package importer

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/gondola/availability-service/internal/database"
	"github.com/gondola/availability-service/internal/text"
)

// TrackedImporter loads the tracked product list (EANs to watch) from XLSX.
// The EAN is the primary key, so the file can be re-imported freely.
type TrackedImporter struct {
	defaultOwner string
	logger       zerolog.Logger
}

// NewTrackedImporter creates an importer. defaultOwner fills rows whose owner
// cell is empty; pass "" to require an owner per row.
func NewTrackedImporter(defaultOwner string, logger zerolog.Logger) *TrackedImporter {
	return &TrackedImporter{
		defaultOwner: defaultOwner,
		logger:       logger.With().Str("component", "tracked-importer").Logger(),
	}
}

// ImportFile reads the workbook at path and imports it
func (im *TrackedImporter) ImportFile(ctx context.Context, path string) (*ImportStats, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return im.Import(ctx, content)
}

// Import upserts one tracked product per data row. Rows with invalid EANs or
// no resolvable owner are reported and skipped.
func (im *TrackedImporter) Import(ctx context.Context, content []byte) (*ImportStats, error) {
	rows, err := readSheet(content)
	if err != nil {
		return nil, err
	}

	stats := &ImportStats{Errors: make([]RowError, 0)}
	if len(rows) < 2 {
		im.logger.Warn().Msg("Tracked product workbook has no data rows")
		return stats, nil
	}

	idx := headerIndex(rows[0])
	eanCol := column(idx, "ean", "codigo ean", "ean13", "codigo de barras", "barcode")
	ownerCol := column(idx, "owner", "propietario", "empresa", "titular")
	nameCol := column(idx, "producto", "nombre", "descripcion", "product", "name")
	trackCol := column(idx, "track", "seguir", "activo", "active")

	if eanCol < 0 {
		return nil, fmt.Errorf("tracked product workbook missing an EAN column")
	}

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		rowNumber := i + 1

		if emptyRow(row) {
			continue
		}
		stats.TotalRows++

		ean := text.NormalizeEan(cell(row, eanCol))
		if ean == "" {
			stats.addError(rowNumber, "invalid or placeholder EAN %q", cell(row, eanCol))
			stats.Skipped++
			continue
		}

		owner := cell(row, ownerCol)
		if owner == "" {
			owner = im.defaultOwner
		}
		if owner == "" {
			stats.addError(rowNumber, "missing owner and no default configured")
			stats.Skipped++
			continue
		}

		tracked := &database.TrackedProduct{
			Ean:         ean,
			Owner:       owner,
			ProductName: cellPtr(row, nameCol),
			Track:       parseFlag(cell(row, trackCol), true),
		}
		if err := database.UpsertTrackedProduct(ctx, tracked); err != nil {
			return stats, fmt.Errorf("failed to import tracked product at row %d: %w", rowNumber, err)
		}
		stats.Imported++
	}

	im.logger.Info().
		Int("rows", stats.TotalRows).
		Int("imported", stats.Imported).
		Int("skipped", stats.Skipped).
		Msg("Tracked product import finished")
	return stats, nil
}
