package ratesheet

import (
	"fmt"

	"github.com/lexdrive/ratehub/app/models"
)

// Sheet is one named grid of raw cell values as read from a workbook. CSV
// files are the degenerate single-sheet case.
type Sheet struct {
	Name string
	Rows [][]string
}

// Workbook is a parsed source file.
type Workbook struct {
	FileName string
	Sheets   []Sheet
}

// RateRow is one parsed lease rate in flight, not yet persisted. Immutable
// once emitted by a decoder; monetary values are pence.
type RateRow struct {
	Manufacturer     string
	Model            string
	Variant          string
	TermMonths       int
	AnnualMileage    int
	PaymentPlan      string
	InitialMonths    int
	TotalRentalPence int64
	ListPricePence   int64

	// optional fields only tabular sheets carry
	LeaseRentalPence   *int64
	ServiceRentalPence *int64
	CO2                *int
	FuelType           *string
	BodyStyle          *string
	InsuranceGroup     *string
	BIKPercent         *int
	WholeLifeCostPence *int64

	SourceSheet string
	SourceRow   int
}

// RowError records a single row that could not be parsed. Counted and logged,
// never aborts the batch.
type RowError struct {
	Sheet string
	Row   int
	Msg   string
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s row %d: %s", e.Sheet, e.Row+1, e.Msg)
}

// Config is the per-provider parsing configuration, extracted from a
// ProviderProfile so the parsing core stays testable without a database.
type Config struct {
	ProviderCode    string
	SkipSheets      []string
	Boilerplate     []string
	Aliases         map[string]string
	TermConvention  string
	ColumnOverrides map[string]string
}

// Default boilerplate patterns that mark disclaimer/legal/header rows in
// matrix sheets. Provider profiles extend this list, they do not replace it.
var defaultBoilerplate = []string{
	"terms and conditions",
	"all prices",
	"prices exclude",
	"subject to",
	"e&oe",
	"errors and omissions",
	"figures quoted",
	"for internal use",
	"confidential",
	"page ",
}

// Header words that mark a repeated axis-label row in matrix sheets. Matched
// against the whole cell only: a prefix test would swallow vehicle names like
// "Model 3 Long Range".
var headerOnlyCells = []string{
	"mileage",
	"model",
	"vehicle",
	"manufacturer",
	"derivative",
}

// Default sheet names skipped regardless of content.
var defaultSkipSheets = []string{
	"bulletin",
	"pre-reg",
	"pre reg",
	"summary",
	"cover",
	"contents",
	"notes",
}

// ConfigFromProfile builds a parsing Config from a provider profile. A nil
// profile yields the built-in defaults.
func ConfigFromProfile(p *models.ProviderProfile) Config {
	cfg := Config{
		SkipSheets:     defaultSkipSheets,
		Boilerplate:    defaultBoilerplate,
		Aliases:        map[string]string{},
		TermConvention: models.TermConventionRemainingPlusOne,
	}
	if p == nil {
		return cfg
	}
	cfg.ProviderCode = p.ProviderCode
	cfg.SkipSheets = append(cfg.SkipSheets, p.SkipSheetPatterns()...)
	cfg.Boilerplate = append(cfg.Boilerplate, p.BoilerplateList()...)
	cfg.Aliases = p.AliasTable()
	if p.TermConvention != "" {
		cfg.TermConvention = p.TermConvention
	}
	cfg.ColumnOverrides = p.ColumnMapEntries()
	return cfg
}
