package ratesheet

import (
	"regexp"
	"strings"
)

// rowKind is the tagged classification of a matrix sheet row. The constants
// are ordered by classification priority: vehicle-name rows must be ruled out
// before mileage parsing is attempted, because vehicle names may themselves
// contain digits.
type rowKind int

const (
	rowSkip rowKind = iota
	rowTermHeader
	rowVehicleMileage
	rowMileageOnly
	rowVehicleOnly
	rowMileageFirst
	rowUnrecognized
)

// TermColumn is one decoded term header cell: which column it occupies and
// the plan it encodes.
type TermColumn struct {
	Col           int
	InitialMonths int
	TermMonths    int
	PaymentPlan   string
}

// vehicleContext is the current vehicle carried across matrix rows.
type vehicleContext struct {
	Manufacturer string
	Model        string
	Variant      string
}

// MatrixDecoder is a row-scanning state machine for matrix sheets. It tracks
// the active term columns and the current vehicle while emitting one RateRow
// per (vehicle, mileage, term) price cell.
type MatrixDecoder struct {
	cfg      Config
	termCols []TermColumn
	vehicle  *vehicleContext

	// manufacturer context for the whole sheet, derived from the sheet name
	// when the rows carry only model/variant text
	sheetManufacturer string
}

// NewMatrixDecoder creates a decoder for one sheet. The sheet name often
// carries the manufacturer for single-make sheets ("Ford_", "BMW rates").
func NewMatrixDecoder(cfg Config, sheetName string) *MatrixDecoder {
	return &MatrixDecoder{
		cfg:               cfg,
		sheetManufacturer: manufacturerFromSheetName(cfg, sheetName),
	}
}

// DecodeMatrixSheet runs the decoder over every row of a matrix sheet.
func DecodeMatrixSheet(cfg Config, sheet Sheet) ([]RateRow, []RowError) {
	dec := NewMatrixDecoder(cfg, sheet.Name)
	var rates []RateRow
	var rowErrs []RowError
	for idx, row := range sheet.Rows {
		emitted, errs := dec.ConsumeRow(sheet.Name, idx, row)
		rates = append(rates, emitted...)
		rowErrs = append(rowErrs, errs...)
	}
	return rates, rowErrs
}

// ConsumeRow classifies one row and emits any rates it carries.
func (d *MatrixDecoder) ConsumeRow(sheetName string, idx int, row []string) ([]RateRow, []RowError) {
	switch d.classifyRow(row) {
	case rowSkip, rowUnrecognized:
		return nil, nil
	case rowTermHeader:
		d.termCols = decodeTermHeader(d.cfg, row)
		return nil, nil
	case rowVehicleOnly:
		d.setVehicle(cellAt(row, 0))
		return nil, nil
	case rowVehicleMileage:
		d.setVehicle(cellAt(row, 0))
		return d.emitRates(sheetName, idx, row)
	case rowMileageOnly, rowMileageFirst:
		return d.emitRates(sheetName, idx, row)
	}
	return nil, nil
}

// classifyRow applies the priority-ordered row classification. The order is
// load-bearing; see the rowKind comment.
func (d *MatrixDecoder) classifyRow(row []string) rowKind {
	if rowIsEmpty(row) {
		return rowSkip
	}
	first := cellAt(row, 0)

	// 1. provider boilerplate (disclaimers, legal text, repeated headers)
	if first != "" && (matchesBoilerplate(d.cfg.Boilerplate, first) || isHeaderOnlyCell(first)) {
		return rowSkip
	}

	// 2. term header row
	if layout, ok := detectTermHeader(d.cfg, row, 0); ok && layout != nil {
		return rowTermHeader
	}

	_, firstIsMileage := ParseMileageBand(first)
	mileageCol := d.findMileageColumn(row)
	hasPrice := d.rowHasPrice(row)

	// 3. vehicle name in the first cell plus a mileage band and prices
	if !firstIsMileage && isVehicleName(first) && mileageCol > 0 && hasPrice {
		return rowVehicleMileage
	}

	// 4. continuation row: mileage + prices under an established vehicle
	if !firstIsMileage && (first == "" || !isVehicleName(first)) &&
		mileageCol > 0 && hasPrice && d.vehicle != nil {
		return rowMileageOnly
	}

	// 5. vehicle-only lookahead row: descriptive text, no mileage, no prices
	if !firstIsMileage && isVehicleName(first) && mileageCol < 0 && !hasPrice {
		return rowVehicleOnly
	}

	// 6. mileage band in the first cell itself
	if firstIsMileage && hasPrice && d.vehicle != nil {
		return rowMileageFirst
	}

	return rowUnrecognized
}

// findMileageColumn locates a mileage band cell after the first column.
func (d *MatrixDecoder) findMileageColumn(row []string) int {
	for i := 1; i < len(row); i++ {
		if _, ok := ParseMileageBand(cellAt(row, i)); ok {
			return i
		}
	}
	return -1
}

// rowHasPrice reports whether the row carries at least one parseable price
// cell beyond the identifying columns.
func (d *MatrixDecoder) rowHasPrice(row []string) bool {
	start := 1
	if col := d.findMileageColumn(row); col > 0 {
		start = col + 1
	}
	for i := start; i < len(row); i++ {
		if _, ok := RentalToPence(cellAt(row, i)); ok {
			return true
		}
	}
	return false
}

func (d *MatrixDecoder) setVehicle(nameCell string) {
	manufacturer, model, variant := SplitVehicleName(d.cfg, d.sheetManufacturer, nameCell)
	if model == "" {
		return
	}
	d.vehicle = &vehicleContext{Manufacturer: manufacturer, Model: model, Variant: variant}
}

// emitRates emits one rate per term column carrying a price, using the
// mileage found on this row and the vehicle currently in context.
func (d *MatrixDecoder) emitRates(sheetName string, idx int, row []string) ([]RateRow, []RowError) {
	if d.vehicle == nil || len(d.termCols) == 0 {
		return nil, nil
	}

	miles := 0
	priceStart := 1
	if m, ok := ParseMileageBand(cellAt(row, 0)); ok {
		miles = m
	} else if col := d.findMileageColumn(row); col > 0 {
		m, _ := ParseMileageBand(cellAt(row, col))
		miles = m
		priceStart = col + 1
	}
	if miles == 0 {
		return nil, []RowError{{Sheet: sheetName, Row: idx, Msg: "no mileage band on price row"}}
	}

	// Prices sit in term-column order starting right after the mileage cell.
	// Rate sheets shift the price block one column right of the term header
	// when a mileage cell sits in between, so the pairing is positional, not
	// by absolute column index. An empty cell still consumes its term slot.
	var rates []RateRow
	for offset, tc := range d.termCols {
		price, ok := RentalToPence(cellAt(row, priceStart+offset))
		if !ok {
			continue
		}
		rates = append(rates, RateRow{
			Manufacturer:     d.vehicle.Manufacturer,
			Model:            d.vehicle.Model,
			Variant:          d.vehicle.Variant,
			TermMonths:       tc.TermMonths,
			AnnualMileage:    miles,
			PaymentPlan:      tc.PaymentPlan,
			InitialMonths:    tc.InitialMonths,
			TotalRentalPence: price,
			SourceSheet:      sheetName,
			SourceRow:        idx,
		})
	}
	return rates, nil
}

// decodeTermHeader turns a term header row into the active term columns.
func decodeTermHeader(cfg Config, row []string) []TermColumn {
	var cols []TermColumn
	for i, cell := range row {
		trimmed := strings.TrimSpace(cell)
		terms, ok := ParseTermCode(trimmed, cfg.TermConvention)
		if !ok {
			continue
		}
		cols = append(cols, TermColumn{
			Col:           i,
			InitialMonths: terms.InitialMonths,
			TermMonths:    terms.TotalTermMonths,
			PaymentPlan:   trimmed,
		})
	}
	return cols
}

func isHeaderOnlyCell(cell string) bool {
	lower := strings.ToLower(strings.TrimSpace(cell))
	for _, word := range headerOnlyCells {
		if lower == word {
			return true
		}
	}
	return false
}

func matchesBoilerplate(patterns []string, cell string) bool {
	lower := strings.ToLower(strings.TrimSpace(cell))
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if strings.HasPrefix(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// isVehicleName applies the cheap vehicle-name test used during row
// classification: non-empty descriptive text longer than three characters
// that is not itself a mileage band.
func isVehicleName(cell string) bool {
	if len(cell) <= 3 {
		return false
	}
	if _, ok := ParseMileageBand(cell); ok {
		return false
	}
	// pure numbers are prices or codes, never vehicle names
	stripped := strings.ReplaceAll(strings.ReplaceAll(cell, ",", ""), ".", "")
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return true
		}
	}
	return false
}

var (
	yearParenRe = regexp.MustCompile(`\s*\((19|20)\d{2}\)\s*`)
	sheetJunkRe = regexp.MustCompile(`[_\-\s]+$`)
)

// Marketing tokens that extend the model name by one word ("Golf GTI" is a
// model, not model "Golf" + variant "GTI").
var modelMarketingTokens = map[string]bool{
	"gt": true, "gti": true, "gtd": true, "gte": true, "rs": true,
	"st": true, "r": true, "e": true, "id": true, "pro": true,
	"max": true, "sport": true, "line": true, "cross": true,
}

// Body style suffix tokens stripped from vehicle name cells before splitting.
var bodyStyleSuffixes = []string{
	"hatchback", "saloon", "estate", "coupe", "convertible",
	"suv", "mpv", "tourer", "sportback", "5dr", "4dr", "3dr", "2dr",
}

// SplitVehicleName splits a matrix vehicle cell into manufacturer, model and
// variant. The split is intentionally lossy; downstream fuzzy matching is
// expected to recover from imperfect splits.
func SplitVehicleName(cfg Config, sheetManufacturer, cell string) (manufacturer, model, variant string) {
	name := strings.TrimSpace(cell)
	name = yearParenRe.ReplaceAllString(name, " ")

	manufacturer = sheetManufacturer
	// strip a repeated manufacturer prefix ("Ford Focus ..." on a Ford sheet)
	if manufacturer != "" {
		if rest, ok := trimWordPrefix(name, manufacturer); ok {
			name = rest
		}
	} else {
		// no sheet context: first word is the manufacturer
		parts := strings.Fields(name)
		if len(parts) > 1 {
			manufacturer = NormalizeManufacturer(parts[0], cfg.Aliases)
			name = strings.Join(parts[1:], " ")
		}
	}

	for _, suffix := range bodyStyleSuffixes {
		if rest, ok := trimWordSuffix(name, suffix); ok {
			name = rest
		}
	}

	words := strings.Fields(name)
	if len(words) == 0 {
		return manufacturer, "", ""
	}

	modelWords := 1
	for modelWords < len(words) && modelWords < 3 {
		next := strings.ToLower(words[modelWords])
		if isNumericToken(next) || modelMarketingTokens[next] {
			modelWords++
			continue
		}
		break
	}

	model = strings.Join(words[:modelWords], " ")
	variant = strings.Join(words[modelWords:], " ")
	return manufacturer, model, variant
}

func manufacturerFromSheetName(cfg Config, sheetName string) string {
	cleaned := sheetJunkRe.ReplaceAllString(strings.TrimSpace(sheetName), "")
	if cleaned == "" {
		return ""
	}
	// sheet names like "Ford Rates" carry trailing words beyond the make
	first := strings.Fields(cleaned)[0]
	return NormalizeManufacturer(first, cfg.Aliases)
}

func trimWordPrefix(s, prefix string) (string, bool) {
	if len(s) <= len(prefix) {
		return s, false
	}
	if strings.EqualFold(s[:len(prefix)], prefix) && s[len(prefix)] == ' ' {
		return strings.TrimSpace(s[len(prefix):]), true
	}
	return s, false
}

func trimWordSuffix(s, suffix string) (string, bool) {
	if len(s) <= len(suffix)+1 {
		return s, false
	}
	tail := s[len(s)-len(suffix):]
	if strings.EqualFold(tail, suffix) && s[len(s)-len(suffix)-1] == ' ' {
		return strings.TrimSpace(s[:len(s)-len(suffix)]), true
	}
	return s, false
}

func isNumericToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
