package ratesheet

import (
	"fmt"
	"strings"
)

// Sheet formats the detector can classify.
const (
	FormatTabular = "tabular"
	FormatMatrix  = "matrix"
	FormatUnknown = "unknown"
)

// How many leading non-empty rows the detector inspects per sheet.
const detectScanRows = 10

// Minimum header-pattern hits for a tabular classification, and minimum term
// code cells after a "term" marker for a matrix one.
const (
	tabularMinHits    = 3
	matrixMinTermCols = 3
)

// MatrixLayout carries the axis semantics detected for a matrix sheet.
type MatrixLayout struct {
	TermHeaderRow   int  `json:"term_header_row"`
	TermColumns     int  `json:"term_columns"`
	MaintainedSplit bool `json:"maintained_split"`
}

// SheetDetection is the classification result for one sheet.
type SheetDetection struct {
	SheetName  string        `json:"sheet_name"`
	Format     string        `json:"format"`
	Confidence int           `json:"confidence"`
	Reason     string        `json:"reason"`
	HeaderRow  int           `json:"header_row"`
	Matrix     *MatrixLayout `json:"matrix,omitempty"`
}

// DetectSheet classifies a sheet as tabular, matrix or unknown. Sheets whose
// name matches the provider skip list are rejected before any content checks.
func DetectSheet(cfg Config, sheet Sheet) SheetDetection {
	det := SheetDetection{SheetName: sheet.Name, Format: FormatUnknown}

	if pattern, skipped := matchSkipList(cfg.SkipSheets, sheet.Name); skipped {
		det.Reason = fmt.Sprintf("sheet name matches skip pattern %q", pattern)
		return det
	}
	if len(sheet.Rows) == 0 {
		det.Reason = "sheet is empty"
		return det
	}

	scanned := 0
	for idx, row := range sheet.Rows {
		if rowIsEmpty(row) {
			continue
		}
		scanned++
		if scanned > detectScanRows {
			break
		}

		if hits := countHeaderHits(row); hits >= tabularMinHits {
			det.Format = FormatTabular
			det.Confidence = tabularConfidence(hits)
			det.Reason = fmt.Sprintf("row %d matches %d canonical headers", idx+1, hits)
			det.HeaderRow = idx
			return det
		}

		if layout, ok := detectTermHeader(cfg, row, idx); ok {
			det.Format = FormatMatrix
			det.Confidence = 90
			det.Reason = fmt.Sprintf("row %d is a term header with %d term columns", idx+1, layout.TermColumns)
			det.Matrix = layout
			return det
		}
	}

	det.Reason = fmt.Sprintf("no header or term row found in first %d rows", detectScanRows)
	return det
}

// DetectWorkbook classifies every sheet of a workbook.
func DetectWorkbook(cfg Config, wb *Workbook) []SheetDetection {
	detections := make([]SheetDetection, 0, len(wb.Sheets))
	for _, sheet := range wb.Sheets {
		detections = append(detections, DetectSheet(cfg, sheet))
	}
	return detections
}

func matchSkipList(patterns []string, sheetName string) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(sheetName))
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if strings.Contains(name, strings.ToLower(pattern)) {
			return pattern, true
		}
	}
	return "", false
}

// countHeaderHits counts cells in a row that match distinct canonical fields.
func countHeaderHits(row []string) int {
	seen := map[string]bool{}
	for _, cell := range row {
		field, confidence := matchHeader(cell)
		if field == "" || confidence < 60 {
			continue
		}
		seen[field] = true
	}
	return len(seen)
}

func tabularConfidence(hits int) int {
	confidence := 40 + hits*12
	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

// detectTermHeader checks whether a row is a matrix term header: the literal
// "term" token in one of the first three columns followed by enough term code
// cells.
func detectTermHeader(cfg Config, row []string, idx int) (*MatrixLayout, bool) {
	termCol := -1
	for i := 0; i < 3 && i < len(row); i++ {
		if strings.EqualFold(strings.TrimSpace(row[i]), "term") {
			termCol = i
			break
		}
	}
	if termCol < 0 {
		return nil, false
	}

	termCells := 0
	maintained := false
	for _, cell := range row[termCol+1:] {
		trimmed := strings.TrimSpace(cell)
		if IsTermCode(trimmed) {
			termCells++
		}
		lower := strings.ToLower(trimmed)
		if strings.Contains(lower, "maintained") || strings.Contains(lower, "non-m") {
			maintained = true
		}
	}
	if termCells < matrixMinTermCols {
		return nil, false
	}
	return &MatrixLayout{
		TermHeaderRow:   idx,
		TermColumns:     termCells,
		MaintainedSplit: maintained,
	}, true
}
