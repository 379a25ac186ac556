package tabular

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rpattn/shopsync/internal/domain"
)

var (
	// ErrUnsupportedFormat is returned for file extensions other than .csv and .xlsx.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrMissingHeader is returned when the file has no usable header row.
	ErrMissingHeader = errors.New("missing header row")
)

// Table is a decoded file: ordered columns, one row per valid record, and
// the anomalies met while reading.
type Table struct {
	Columns []string
	Rows    []domain.Row
	// Lines holds the source line (or sheet row) of each entry in Rows.
	Lines    []int
	Dropped  int
	Warnings []string
}

// HasColumn reports whether the header contains column.
func (t Table) HasColumn(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

func newTable(header []string) (Table, error) {
	columns := make([]string, len(header))
	nonEmpty := 0
	for i, raw := range header {
		name := strings.TrimSpace(strings.ReplaceAll(raw, `"`, ""))
		columns[i] = name
		if name != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return Table{}, ErrMissingHeader
	}
	table := Table{Columns: columns, Rows: []domain.Row{}, Lines: []int{}}

	seen := make(map[string]int, len(columns))
	for i, name := range columns {
		if first, dup := seen[name]; dup && name != "" {
			table.Warnings = append(table.Warnings,
				fmt.Sprintf("header: column %q appears at positions %d and %d; the later one wins", name, first+1, i+1))
			continue
		}
		seen[name] = i
	}
	return table, nil
}

// addRecord converts record into a row. When pad is set, short records are
// padded instead of dropped (spreadsheet readers omit trailing empty cells).
func (t *Table) addRecord(line int, record []string, pad bool) {
	if isBlank(record) {
		return
	}
	if len(record) != len(t.Columns) {
		if !pad || len(record) > len(t.Columns) {
			t.drop(line, fmt.Sprintf("expected %d fields, got %d", len(t.Columns), len(record)))
			return
		}
		padded := make([]string, len(t.Columns))
		copy(padded, record)
		record = padded
	}

	row := make(domain.Row, len(t.Columns))
	for i, column := range t.Columns {
		if column == "" {
			continue
		}
		row[column] = record[i]
	}
	t.Rows = append(t.Rows, row)
	t.Lines = append(t.Lines, line)
}

func (t *Table) drop(line int, reason string) {
	t.Dropped++
	t.Warnings = append(t.Warnings, fmt.Sprintf("line %d dropped: %s", line, reason))
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Format is a supported file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFor picks the format from the file extension.
func FormatFor(fileName string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Decode parses payload according to the extension of fileName.
func Decode(fileName string, payload []byte) (Table, error) {
	format, err := FormatFor(fileName)
	if err != nil {
		return Table{}, err
	}
	switch format {
	case FormatXLSX:
		return DecodeXLSX(payload)
	default:
		return DecodeCSV(payload)
	}
}
