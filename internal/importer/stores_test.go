package importer

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storeHeader = []string{
	"Nombre Sucursal", "Bandera", "Comercio", "Sucursal",
	"Dirección", "Localidad", "Provincia", "CP", "Latitud", "Longitud", "Activo",
}

func storeCols() storeColumns {
	return storeColumns{
		name: 0, bandera: 1, comercio: 2, sucursal: 3,
		address: 4, city: 5, province: 6, postal: 7,
		lat: 8, lon: 9, active: 10,
	}
}

// TestBuildStore verifies a fully-populated row maps onto a store
func TestBuildStore(t *testing.T) {
	im := NewStoreImporter("www.vea.com.ar", zerolog.Nop())
	stats := &ImportStats{}

	row := []string{
		"Vea Neuquen Centro", "22", "9", "531",
		"Av. Argentina 100", "Neuquén", "Neuquén", "8300",
		"-38,9516", "-68,0591", "si",
	}

	store, ok := im.buildStore(row, 2, storeCols(), stats)
	require.True(t, ok)
	assert.Empty(t, stats.Errors)

	assert.Equal(t, "www.vea.com.ar", store.RetailerHost)
	assert.Equal(t, "Vea Neuquen Centro", store.Name)
	require.NotNil(t, store.Bandera)
	assert.Equal(t, "22", *store.Bandera)
	require.NotNil(t, store.Comercio)
	assert.Equal(t, "9", *store.Comercio)
	require.NotNil(t, store.Sucursal)
	assert.Equal(t, "531", *store.Sucursal)
	require.NotNil(t, store.PostalCode)
	assert.Equal(t, "8300", *store.PostalCode)
	require.NotNil(t, store.Latitude)
	assert.Equal(t, -38.9516, *store.Latitude, "comma decimal parsed")
	require.NotNil(t, store.Longitude)
	assert.Equal(t, -68.0591, *store.Longitude)
	assert.True(t, store.Active)
}

// TestBuildStoreValidation verifies the per-row rejections
func TestBuildStoreValidation(t *testing.T) {
	tests := []struct {
		name    string
		row     []string
		message string
	}{
		{
			name:    "Missing name",
			row:     []string{"", "22", "9", "531", "", "", "", "", "", "", ""},
			message: "missing store name",
		},
		{
			name:    "Missing identity triple",
			row:     []string{"Vea Centro", "22", "", "531", "", "", "", "", "", "", ""},
			message: "identity triple",
		},
		{
			name:    "Lone latitude",
			row:     []string{"Vea Centro", "22", "9", "531", "", "", "", "", "-38.95", "", ""},
			message: "both be set",
		},
		{
			name:    "Unparseable longitude",
			row:     []string{"Vea Centro", "22", "9", "531", "", "", "", "", "-38.95", "oeste", ""},
			message: "longitude",
		},
	}

	im := NewStoreImporter("www.vea.com.ar", zerolog.Nop())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := &ImportStats{}
			_, ok := im.buildStore(tt.row, 5, storeCols(), stats)
			assert.False(t, ok)
			require.Len(t, stats.Errors, 1)
			assert.Equal(t, 5, stats.Errors[0].Row)
			assert.Contains(t, stats.Errors[0].Message, tt.message)
		})
	}
}

func TestBuildStoreInactiveFlag(t *testing.T) {
	im := NewStoreImporter("www.vea.com.ar", zerolog.Nop())
	stats := &ImportStats{}

	row := []string{"Vea Cerrada", "22", "9", "532", "", "", "", "", "", "", "baja"}
	store, ok := im.buildStore(row, 3, storeCols(), stats)
	require.True(t, ok)
	assert.False(t, store.Active)
	assert.Nil(t, store.Latitude, "empty coordinates stay null")
	assert.Nil(t, store.Longitude)
}

// TestStoreImportRejectsMissingColumns verifies the up-front header checks
func TestStoreImportRejectsMissingColumns(t *testing.T) {
	im := NewStoreImporter("www.vea.com.ar", zerolog.Nop())

	noName := buildWorkbook(t, [][]string{
		{"Bandera", "Comercio", "Sucursal"},
		{"22", "9", "531"},
	})
	_, err := im.Import(context.Background(), noName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name column")

	noIdentity := buildWorkbook(t, [][]string{
		{"Nombre", "Dirección"},
		{"Vea Centro", "Av. Argentina 100"},
	})
	_, err = im.Import(context.Background(), noIdentity)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity columns")
}

// TestStoreImportHeaderOnly verifies that a workbook without data rows is a
// no-op, not an error.
func TestStoreImportHeaderOnly(t *testing.T) {
	im := NewStoreImporter("www.vea.com.ar", zerolog.Nop())

	content := buildWorkbook(t, [][]string{storeHeader})
	stats, err := im.Import(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalRows)
	assert.Equal(t, 0, stats.Imported)
}

// TestStoreImportSkipsBadRows verifies that invalid rows are reported and
// counted without reaching the database.
func TestStoreImportSkipsBadRows(t *testing.T) {
	im := NewStoreImporter("www.vea.com.ar", zerolog.Nop())

	content := buildWorkbook(t, [][]string{
		storeHeader,
		{"", "22", "9", "531", "", "", "", "", "", "", ""},            // no name
		{"Vea Centro", "", "", "", "", "", "", "", "", "", ""},        // no triple
		{"Vea Oeste", "22", "9", "533", "", "", "", "", "-38.95", "", ""}, // lone latitude
	})

	stats, err := im.Import(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRows)
	assert.Equal(t, 0, stats.Imported)
	assert.Equal(t, 3, stats.Skipped)
	assert.Len(t, stats.Errors, 3)
}
