package service

import (
	"bytes"
	"fmt"
	"strings"

	"statement-parser/internal/models"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Statements"

// EncodeCSV renders the result set with its header row.
func EncodeCSV(rs *models.ResultSet) (string, error) {
	return WriteCSV(rs.Columns(), rs.Rows())
}

// WriteCSV writes header and rows as RFC 4180 text with \n line endings.
func WriteCSV(header []string, rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := gocsv.DefaultCSVWriter(&buf)

	if len(header) > 0 {
		if err := w.Write(header); err != nil {
			return "", fmt.Errorf("failed to write CSV header: %w", err)
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.String(), nil
}

// DecodeCSV parses text produced by EncodeCSV back into header and rows.
func DecodeCSV(text string) ([]string, [][]string, error) {
	records, err := gocsv.DefaultCSVReader(strings.NewReader(text)).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

// EncodeXLSX builds a single-sheet workbook. Cells that are plain decimal
// numbers are stored as numbers; everything else, including values with
// leading zeros such as account suffixes, stays text.
func EncodeXLSX(header []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerCells := make([]interface{}, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &headerCells); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil && len(header) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(header), 1)
		_ = f.SetCellStyle(xlsxSheet, "A1", last, bold)
	}

	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = xlsxValue(v)
		}
		start, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(xlsxSheet, start, &cells); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func xlsxValue(s string) interface{} {
	d, err := decimal.NewFromString(s)
	if err != nil || d.String() != s {
		return s
	}
	f, _ := d.Float64()
	return f
}
