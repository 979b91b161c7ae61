package ratesheet

import (
	"fmt"
	"strconv"
	"strings"
)

// Canonical field names for tabular sheets.
const (
	FieldManufacturer   = "manufacturer"
	FieldModel          = "model"
	FieldVariant        = "variant"
	FieldTerm           = "term"
	FieldMileage        = "mileage"
	FieldPaymentPlan    = "payment_plan"
	FieldMonthlyRental  = "monthly_rental"
	FieldLeaseRental    = "lease_rental"
	FieldServiceRental  = "service_rental"
	FieldListPrice      = "list_price"
	FieldCO2            = "co2"
	FieldFuelType       = "fuel_type"
	FieldBodyStyle      = "body_style"
	FieldInsuranceGroup = "insurance_group"
	FieldBIK            = "bik"
	FieldWholeLifeCost  = "whole_life_cost"
)

// RequiredFields must all receive a mapping before an import may proceed.
var RequiredFields = []string{FieldManufacturer, FieldModel, FieldMonthlyRental, FieldListPrice}

// headerPatterns maps canonical fields to substring patterns, most specific
// first. Matching is case-insensitive; ties between fields go to the longer
// pattern.
var headerPatterns = map[string][]string{
	FieldManufacturer:   {"manufacturer", "make", "marque"},
	FieldModel:          {"model range", "model"},
	FieldVariant:        {"derivative", "variant", "trim", "description"},
	FieldTerm:           {"term (months)", "contract length", "term"},
	FieldMileage:        {"annual mileage", "mileage", "miles pa", "miles"},
	FieldPaymentPlan:    {"payment profile", "payment plan", "profile", "plan"},
	FieldMonthlyRental:  {"monthly rental", "total rental", "monthly payment", "rental"},
	FieldLeaseRental:    {"finance rental", "lease rental"},
	FieldServiceRental:  {"service rental", "maintenance rental", "maintenance"},
	FieldListPrice:      {"list price", "p11d", "otr price", "otr", "rrp", "basic price"},
	FieldCO2:            {"co2 g/km", "co2"},
	FieldFuelType:       {"fuel type", "fuel"},
	FieldBodyStyle:      {"body style", "bodystyle", "body"},
	FieldInsuranceGroup: {"insurance group", "ins group"},
	FieldBIK:            {"bik %", "bik rate", "bik"},
	FieldWholeLifeCost:  {"whole life cost", "wlc"},
}

// FieldMapping is one scored header-to-field candidate.
type FieldMapping struct {
	Header     string
	Field      string
	Column     int
	Confidence int
}

// ColumnMap is the resolved mapping of canonical fields to column indices.
type ColumnMap struct {
	HeaderRow int
	Fields    map[string]FieldMapping
}

// Column returns the column index for a canonical field, -1 when unmapped.
func (m ColumnMap) Column(field string) int {
	if fm, ok := m.Fields[field]; ok {
		return fm.Column
	}
	return -1
}

// MissingMappingError is the blocking validation error raised when a required
// canonical field received no mapping.
type MissingMappingError struct {
	Missing []string
}

func (e *MissingMappingError) Error() string {
	return fmt.Sprintf("required column mappings missing: %s", strings.Join(e.Missing, ", "))
}

// matchHeader scores one header string against the pattern table. The best
// candidate wins; confidence reflects how much of the header the pattern
// explains, with exact matches pinned to 100.
func matchHeader(header string) (string, int) {
	normalized := strings.ToLower(strings.TrimSpace(header))
	if normalized == "" {
		return "", 0
	}

	bestField := ""
	bestConfidence := 0
	bestPatternLen := 0
	for field, patterns := range headerPatterns {
		for _, pattern := range patterns {
			if !strings.Contains(normalized, pattern) {
				continue
			}
			confidence := 60 + (35*len(pattern))/len(normalized)
			if normalized == pattern {
				confidence = 100
			}
			if confidence > 95 && normalized != pattern {
				confidence = 95
			}
			// longer pattern wins ties between fields
			if confidence > bestConfidence ||
				(confidence == bestConfidence && len(pattern) > bestPatternLen) {
				bestField = field
				bestConfidence = confidence
				bestPatternLen = len(pattern)
			}
		}
	}
	return bestField, bestConfidence
}

// MapHeaders maps source headers to canonical fields. Overrides (entered by a
// human or returned by the classification service) win outright over the
// heuristic result for that header. An error is returned when any required
// field stays unmapped.
func MapHeaders(headers []string, overrides map[string]string) (ColumnMap, error) {
	cmap := ColumnMap{Fields: map[string]FieldMapping{}}

	for col, header := range headers {
		trimmed := strings.TrimSpace(header)
		if trimmed == "" {
			continue
		}

		field := ""
		confidence := 0
		if override, ok := lookupOverride(overrides, trimmed); ok {
			field = override
			confidence = 100
		} else {
			field, confidence = matchHeader(trimmed)
		}
		if field == "" {
			continue
		}

		// when two headers claim the same field, keep the more confident one
		if existing, ok := cmap.Fields[field]; ok && existing.Confidence >= confidence {
			continue
		}
		cmap.Fields[field] = FieldMapping{
			Header:     trimmed,
			Field:      field,
			Column:     col,
			Confidence: confidence,
		}
	}

	var missing []string
	for _, required := range RequiredFields {
		if _, ok := cmap.Fields[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return cmap, &MissingMappingError{Missing: missing}
	}
	return cmap, nil
}

func lookupOverride(overrides map[string]string, header string) (string, bool) {
	if len(overrides) == 0 {
		return "", false
	}
	if field, ok := overrides[header]; ok && field != "" {
		return field, true
	}
	lower := strings.ToLower(header)
	for key, field := range overrides {
		if strings.ToLower(key) == lower && field != "" {
			return field, true
		}
	}
	return "", false
}

// ExtractTabularRows converts the data rows of a tabular sheet into RateRows
// using a resolved column map. Rows that cannot be parsed are reported
// individually and do not stop extraction.
func ExtractTabularRows(sheet Sheet, cmap ColumnMap, cfg Config) ([]RateRow, []RowError) {
	var rates []RateRow
	var rowErrs []RowError

	for idx := cmap.HeaderRow + 1; idx < len(sheet.Rows); idx++ {
		row := sheet.Rows[idx]
		if rowIsEmpty(row) {
			continue
		}

		rate, err := extractTabularRow(sheet, row, idx, cmap, cfg)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Sheet: sheet.Name, Row: idx, Msg: err.Error()})
			continue
		}
		rates = append(rates, rate)
	}
	return rates, rowErrs
}

func extractTabularRow(sheet Sheet, row []string, idx int, cmap ColumnMap, cfg Config) (RateRow, error) {
	manufacturer := NormalizeManufacturer(cellAt(row, cmap.Column(FieldManufacturer)), cfg.Aliases)
	model := cellAt(row, cmap.Column(FieldModel))
	if manufacturer == "" || model == "" {
		return RateRow{}, fmt.Errorf("missing vehicle identifier")
	}

	rental, ok := RentalToPence(cellAt(row, cmap.Column(FieldMonthlyRental)))
	if !ok {
		return RateRow{}, fmt.Errorf("unparseable rental %q", cellAt(row, cmap.Column(FieldMonthlyRental)))
	}
	listPrice, _ := ListPriceToPence(cellAt(row, cmap.Column(FieldListPrice)))

	rate := RateRow{
		Manufacturer:     manufacturer,
		Model:            model,
		Variant:          cellAt(row, cmap.Column(FieldVariant)),
		TotalRentalPence: rental,
		ListPricePence:   listPrice,
		InitialMonths:    1,
		SourceSheet:      sheet.Name,
		SourceRow:        idx,
	}

	if plan := cellAt(row, cmap.Column(FieldPaymentPlan)); plan != "" {
		rate.PaymentPlan = plan
		terms, _ := ParsePaymentPlan(plan, cfg.TermConvention)
		rate.InitialMonths = terms.InitialMonths
		if terms.TotalTermMonths > 0 {
			rate.TermMonths = terms.TotalTermMonths
		}
	}

	if termCell := cellAt(row, cmap.Column(FieldTerm)); termCell != "" {
		if terms, ok := ParseTermCode(termCell, cfg.TermConvention); ok {
			rate.TermMonths = terms.TotalTermMonths
			rate.InitialMonths = terms.InitialMonths
			if rate.PaymentPlan == "" {
				rate.PaymentPlan = strings.TrimSpace(termCell)
			}
		} else if months, err := strconv.Atoi(strings.TrimSpace(termCell)); err == nil {
			rate.TermMonths = months
		}
	}
	if rate.TermMonths <= 0 {
		return RateRow{}, fmt.Errorf("missing term")
	}

	miles, ok := ParseMileageValue(cellAt(row, cmap.Column(FieldMileage)))
	if !ok {
		return RateRow{}, fmt.Errorf("unparseable mileage %q", cellAt(row, cmap.Column(FieldMileage)))
	}
	rate.AnnualMileage = miles

	attachOptionalFields(&rate, row, cmap)
	return rate, nil
}

func attachOptionalFields(rate *RateRow, row []string, cmap ColumnMap) {
	if v, ok := RentalToPence(cellAt(row, cmap.Column(FieldLeaseRental))); ok {
		rate.LeaseRentalPence = &v
	}
	if v, ok := RentalToPence(cellAt(row, cmap.Column(FieldServiceRental))); ok {
		rate.ServiceRentalPence = &v
	}
	if cell := cellAt(row, cmap.Column(FieldCO2)); cell != "" {
		if n, err := strconv.Atoi(cell); err == nil && n >= 0 {
			rate.CO2 = &n
		}
	}
	if cell := cellAt(row, cmap.Column(FieldFuelType)); cell != "" {
		rate.FuelType = &cell
	}
	if cell := cellAt(row, cmap.Column(FieldBodyStyle)); cell != "" {
		rate.BodyStyle = &cell
	}
	if cell := cellAt(row, cmap.Column(FieldInsuranceGroup)); cell != "" {
		rate.InsuranceGroup = &cell
	}
	if cell := cellAt(row, cmap.Column(FieldBIK)); cell != "" {
		cleaned := strings.TrimSuffix(strings.TrimSpace(cell), "%")
		if n, err := strconv.Atoi(cleaned); err == nil && n >= 0 {
			rate.BIKPercent = &n
		}
	}
	if v, ok := ListPriceToPence(cellAt(row, cmap.Column(FieldWholeLifeCost))); ok {
		rate.WholeLifeCostPence = &v
	}
}

// NormalizeManufacturer applies the provider alias table and strips trailing
// separator junk some sheets carry ("Ford_" -> "Ford").
func NormalizeManufacturer(name string, aliases map[string]string) string {
	cleaned := strings.TrimSpace(name)
	cleaned = strings.TrimRight(cleaned, "_-. ")
	if cleaned == "" {
		return ""
	}
	if alias, ok := aliases[strings.ToLower(cleaned)]; ok {
		return alias
	}
	return cleaned
}
