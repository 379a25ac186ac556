package tabular

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/rpattn/shopsync/internal/domain"

	"github.com/xuri/excelize/v2"
)

const sheetName = "variants"

// WriteXLSX writes columns and rows to a single sheet workbook. Every cell
// is stored as text so identifiers and zero padded values survive.
func WriteXLSX(w io.Writer, columns []string, rows []domain.Row) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	if err := writeSheetRow(f, 1, columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		if err := writeSheetRow(f, i+2, row.Values(columns)); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeSheetRow(f *excelize.File, rowNumber int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNumber)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, value := range values {
		cells[i] = value
	}
	return f.SetSheetRow(sheetName, cell, &cells)
}

// DecodeXLSX reads the first sheet of a workbook with the same rules as
// DecodeCSV, except that short rows are padded.
func DecodeXLSX(payload []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return Table{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, errors.New("excel file has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	if len(records) == 0 {
		return Table{}, ErrMissingHeader
	}

	table, err := newTable(records[0])
	if err != nil {
		return Table{}, err
	}
	for i, record := range records[1:] {
		table.addRecord(i+2, record, true)
	}
	return table, nil
}
