package importer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes rows into a fresh XLSX workbook and returns its bytes,
// standing in for the operator-maintained spreadsheets.
func buildWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, v := range row {
			cellName, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cellName, v))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

// TestReadSheet verifies the workbook round trip through excelize
func TestReadSheet(t *testing.T) {
	content := buildWorkbook(t, [][]string{
		{"EAN", "Producto"},
		{"7790387011456", "Yerba Mate Taragui 1kg"},
	})

	rows, err := readSheet(content)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "EAN", rows[0][0])
	assert.Equal(t, "7790387011456", rows[1][0])
	assert.Equal(t, "Yerba Mate Taragui 1kg", rows[1][1])
}

func TestReadSheetRejectsGarbage(t *testing.T) {
	_, err := readSheet([]byte("this is not a zip archive"))
	assert.Error(t, err)
}

// TestHeaderIndex verifies the loose header matching: case, accents, and
// surrounding whitespace are all ignored.
func TestHeaderIndex(t *testing.T) {
	idx := headerIndex([]string{"Nombre Sucursal", "BANDERA", " Dirección ", "latitud", "", "Localidad"})

	assert.Equal(t, 0, idx["nombre sucursal"])
	assert.Equal(t, 1, idx["bandera"])
	assert.Equal(t, 2, idx["direccion"])
	assert.Equal(t, 3, idx["latitud"])
	assert.Equal(t, 5, idx["localidad"])
	_, hasEmpty := idx[""]
	assert.False(t, hasEmpty)
}

func TestHeaderIndexFirstDuplicateWins(t *testing.T) {
	idx := headerIndex([]string{"EAN", "ean"})
	assert.Equal(t, 0, idx["ean"])
}

// TestColumn verifies alias resolution order
func TestColumn(t *testing.T) {
	idx := map[string]int{"nro comercio": 2, "cp": 7}

	assert.Equal(t, 2, column(idx, "comercio", "nro comercio", "numero comercio"))
	assert.Equal(t, 7, column(idx, "cp", "codigo postal"))
	assert.Equal(t, -1, column(idx, "provincia"))
}

// TestParseCoordinate verifies the Spanish-locale comma decimal handling
func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *float64
		wantErr  bool
	}{
		{"Dot decimal", "-38.9516", f(-38.9516), false},
		{"Comma decimal", "-38,9516", f(-38.9516), false},
		{"Integer", "-38", f(-38), false},
		{"Empty is absent", "", nil, false},
		{"Thousands-grouped garbage", "1.234,5", nil, true},
		{"Words", "norte", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCoordinate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.expected, *got)
		})
	}
}

func f(v float64) *float64 {
	return &v
}

// TestParseFlag verifies the operator yes/no vocabulary
func TestParseFlag(t *testing.T) {
	tests := []struct {
		input    string
		def      bool
		expected bool
	}{
		{"si", false, true},
		{"SI", false, true},
		{"Sí", false, true},
		{"yes", false, true},
		{"1", false, true},
		{"activa", false, true},
		{"no", true, false},
		{"NO", true, false},
		{"0", true, false},
		{"baja", true, false},
		{"", true, true},
		{"", false, false},
		{"quizás", false, false},
		{"quizás", true, true},
	}

	for _, tt := range tests {
		name := tt.input
		if name == "" {
			name = "empty"
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseFlag(tt.input, tt.def))
		})
	}
}

func TestCellHelpers(t *testing.T) {
	row := []string{" Vea Centro ", "", "531"}

	assert.Equal(t, "Vea Centro", cell(row, 0))
	assert.Equal(t, "", cell(row, 1))
	assert.Equal(t, "", cell(row, -1))
	assert.Equal(t, "", cell(row, 99), "columns beyond the row read empty")

	assert.Nil(t, cellPtr(row, 1))
	require.NotNil(t, cellPtr(row, 2))
	assert.Equal(t, "531", *cellPtr(row, 2))

	assert.True(t, emptyRow([]string{"", "  ", ""}))
	assert.False(t, emptyRow(row))
}
