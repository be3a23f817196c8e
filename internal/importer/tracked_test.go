package importer

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTrackedImportRejectsMissingEanColumn verifies the up-front header check
func TestTrackedImportRejectsMissingEanColumn(t *testing.T) {
	im := NewTrackedImporter("", zerolog.Nop())

	content := buildWorkbook(t, [][]string{
		{"Producto", "Empresa"},
		{"Yerba Mate", "Taragui"},
	})

	_, err := im.Import(context.Background(), content)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EAN column")
}

// TestTrackedImportSkipsInvalidRows verifies the per-row EAN and owner
// validation without touching the database.
func TestTrackedImportSkipsInvalidRows(t *testing.T) {
	im := NewTrackedImporter("", zerolog.Nop())

	content := buildWorkbook(t, [][]string{
		{"EAN", "Empresa", "Producto"},
		{"0000000000000", "Taragui", "placeholder"},
		{"7790387011459", "Taragui", "bad check digit"},
		{"7790387011456", "", "no owner and no default"},
	})

	stats, err := im.Import(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRows)
	assert.Equal(t, 0, stats.Imported)
	assert.Equal(t, 3, stats.Skipped)
	require.Len(t, stats.Errors, 3)
	assert.Contains(t, stats.Errors[0].Message, "placeholder")
	assert.Contains(t, stats.Errors[2].Message, "missing owner")
}

func TestTrackedImportHeaderOnly(t *testing.T) {
	im := NewTrackedImporter("gondola", zerolog.Nop())

	content := buildWorkbook(t, [][]string{{"EAN", "Producto"}})
	stats, err := im.Import(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalRows)
	assert.Empty(t, stats.Errors)
}
