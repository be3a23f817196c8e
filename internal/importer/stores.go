package importer

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/gondola/availability-service/internal/database"
)

// StoreImporter loads a retailer's physical store directory from XLSX.
// Rows are keyed by the source-system triple (bandera, comercio, sucursal),
// so re-importing the same file updates rather than duplicates.
type StoreImporter struct {
	host   string
	logger zerolog.Logger
}

func NewStoreImporter(host string, logger zerolog.Logger) *StoreImporter {
	return &StoreImporter{
		host:   host,
		logger: logger.With().Str("component", "store-importer").Str("host", host).Logger(),
	}
}

// ImportFile reads the workbook at path and imports it
func (im *StoreImporter) ImportFile(ctx context.Context, path string) (*ImportStats, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return im.Import(ctx, content)
}

// Import upserts one store per data row. Rows missing the identity triple or
// a name are reported in the stats and skipped; database failures abort.
func (im *StoreImporter) Import(ctx context.Context, content []byte) (*ImportStats, error) {
	rows, err := readSheet(content)
	if err != nil {
		return nil, err
	}

	stats := &ImportStats{Errors: make([]RowError, 0)}
	if len(rows) < 2 {
		im.logger.Warn().Msg("Store workbook has no data rows")
		return stats, nil
	}

	idx := headerIndex(rows[0])
	cols := storeColumns{
		name:     column(idx, "nombre", "nombre sucursal", "name"),
		bandera:  column(idx, "bandera"),
		comercio: column(idx, "comercio", "nro comercio", "numero comercio"),
		sucursal: column(idx, "sucursal", "nro sucursal", "numero sucursal"),
		address:  column(idx, "direccion", "domicilio", "address"),
		city:     column(idx, "localidad", "ciudad", "city"),
		province: column(idx, "provincia", "province"),
		postal:   column(idx, "cp", "codigo postal", "postal"),
		lat:      column(idx, "latitud", "lat", "latitude"),
		lon:      column(idx, "longitud", "lon", "long", "longitude"),
		active:   column(idx, "activo", "activa", "active"),
	}
	if cols.name < 0 {
		return nil, fmt.Errorf("store workbook missing a name column (nombre)")
	}
	if cols.bandera < 0 || cols.comercio < 0 || cols.sucursal < 0 {
		return nil, fmt.Errorf("store workbook missing identity columns (bandera, comercio, sucursal)")
	}

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		rowNumber := i + 1

		if emptyRow(row) {
			continue
		}
		stats.TotalRows++

		store, ok := im.buildStore(row, rowNumber, cols, stats)
		if !ok {
			stats.Skipped++
			continue
		}

		if err := database.UpsertStore(ctx, store); err != nil {
			return stats, fmt.Errorf("failed to import store at row %d: %w", rowNumber, err)
		}
		stats.Imported++
	}

	im.logger.Info().
		Int("rows", stats.TotalRows).
		Int("imported", stats.Imported).
		Int("skipped", stats.Skipped).
		Msg("Store import finished")
	return stats, nil
}

type storeColumns struct {
	name, bandera, comercio, sucursal int
	address, city, province, postal   int
	lat, lon, active                  int
}

func (im *StoreImporter) buildStore(row []string, rowNumber int, cols storeColumns, stats *ImportStats) (*database.Store, bool) {
	name := cell(row, cols.name)
	if name == "" {
		stats.addError(rowNumber, "missing store name")
		return nil, false
	}

	bandera := cellPtr(row, cols.bandera)
	comercio := cellPtr(row, cols.comercio)
	sucursal := cellPtr(row, cols.sucursal)
	if bandera == nil || comercio == nil || sucursal == nil {
		stats.addError(rowNumber, "missing identity triple (bandera, comercio, sucursal)")
		return nil, false
	}

	lat, err := parseCoordinate(cell(row, cols.lat))
	if err != nil {
		stats.addError(rowNumber, "latitude: %v", err)
		return nil, false
	}
	lon, err := parseCoordinate(cell(row, cols.lon))
	if err != nil {
		stats.addError(rowNumber, "longitude: %v", err)
		return nil, false
	}
	// A lone coordinate is worse than none: the mapper would geo-search
	// from a bogus point
	if (lat == nil) != (lon == nil) {
		stats.addError(rowNumber, "latitude and longitude must both be set or both be empty")
		return nil, false
	}

	return &database.Store{
		RetailerHost: im.host,
		Name:         name,
		Address:      cellPtr(row, cols.address),
		City:         cellPtr(row, cols.city),
		Province:     cellPtr(row, cols.province),
		PostalCode:   cellPtr(row, cols.postal),
		Latitude:     lat,
		Longitude:    lon,
		Bandera:      bandera,
		Comercio:     comercio,
		Sucursal:     sucursal,
		Active:       parseFlag(cell(row, cols.active), true),
	}, true
}
