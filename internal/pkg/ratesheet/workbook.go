package ratesheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// OpenWorkbook parses raw file bytes into a Workbook. XLSX workbooks are read
// via excelize, CSV files become a single sheet named after the file. The
// format is declared by extension with a zip-magic sniff as fallback, since
// providers occasionally upload xlsx files with a .csv name.
func OpenWorkbook(fileName string, content []byte) (*Workbook, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty file %q", fileName)
	}

	isZip := len(content) >= 2 && content[0] == 'P' && content[1] == 'K'
	ext := strings.ToLower(filepath.Ext(fileName))

	if ext == ".xlsx" || ext == ".xlsm" || isZip {
		return openExcelWorkbook(fileName, content)
	}
	return openCSVWorkbook(fileName, content)
}

func openExcelWorkbook(fileName string, content []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %q: %w", fileName, err)
	}
	defer f.Close()

	wb := &Workbook{FileName: fileName}
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: sheetName, Rows: rows})
	}
	if len(wb.Sheets) == 0 {
		return nil, fmt.Errorf("workbook %q has no sheets", fileName)
	}
	return wb, nil
}

func openCSVWorkbook(fileName string, content []byte) (*Workbook, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv %q: %w", fileName, err)
		}
		rows = append(rows, record)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv %q has no rows", fileName)
	}

	sheetName := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	return &Workbook{
		FileName: fileName,
		Sheets:   []Sheet{{Name: sheetName, Rows: rows}},
	}, nil
}

// cellAt returns the trimmed cell at index i, or "" when the row is short.
func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// rowIsEmpty reports whether every cell in the row is blank.
func rowIsEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
