// Package importer loads operator-maintained XLSX files (store directory,
// tracked product list) into the database. Files come from spreadsheets kept
// by hand, so headers are matched loosely (case, accents, spacing) and bad
// rows are reported instead of aborting the whole file.
package importer

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/gondola/availability-service/internal/text"
)

// ImportStats summarizes one import run
type ImportStats struct {
	TotalRows int        `json:"total_rows"`
	Imported  int        `json:"imported"`
	Skipped   int        `json:"skipped"`
	Errors    []RowError `json:"errors"`
}

// RowError is a per-row problem; row numbers are 1-based as shown in Excel
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (s *ImportStats) addError(row int, format string, args ...any) {
	s.Errors = append(s.Errors, RowError{Row: row, Message: fmt.Sprintf(format, args...)})
}

// readSheet opens the workbook from bytes and returns all rows of the first
// sheet. Header-only and empty workbooks return an empty slice, not an error.
func readSheet(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// headerIndex maps normalized header names to column positions. Accents and
// case are ignored so "Dirección" and "DIRECCION" resolve the same.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, cell := range header {
		key := text.NormalizeName(cell)
		if key == "" {
			continue
		}
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	return idx
}

// column returns the position of the first alias present in the header,
// or -1 when none matches.
func column(idx map[string]int, aliases ...string) int {
	for _, a := range aliases {
		if i, ok := idx[a]; ok {
			return i
		}
	}
	return -1
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func cellPtr(row []string, col int) *string {
	v := cell(row, col)
	if v == "" {
		return nil
	}
	return &v
}

func emptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseCoordinate parses a latitude/longitude cell. Spreadsheets exported
// with Spanish locale settings use a comma decimal separator.
func parseCoordinate(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	cleaned := v
	if !strings.Contains(cleaned, ".") {
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid coordinate %q", v)
	}
	return &f, nil
}

// parseFlag interprets operator yes/no cells. Empty cells return the default.
func parseFlag(v string, def bool) bool {
	switch text.NormalizeName(v) {
	case "":
		return def
	case "si", "s", "yes", "y", "true", "1", "activo", "activa":
		return true
	case "no", "n", "false", "0", "inactivo", "inactiva", "baja":
		return false
	default:
		return def
	}
}
