package ratesheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMatrixSheet(t *testing.T) {
	cfg := defaultConfig()
	sheet := Sheet{
		Name: "Volkswagen",
		Rows: [][]string{
			{"Term", "1+23", "1+35", "3+33"},
			{"Golf GTI", "10k -NM", "350", "380", "360"},
		},
	}

	rates, rowErrs := DecodeMatrixSheet(cfg, sheet)
	require.Empty(t, rowErrs)
	require.Len(t, rates, 3)

	for _, rate := range rates {
		assert.Equal(t, "Volkswagen", rate.Manufacturer)
		assert.Equal(t, "Golf GTI", rate.Model)
		assert.Equal(t, "", rate.Variant)
		assert.Equal(t, 10000, rate.AnnualMileage)
		assert.Equal(t, 1, rate.SourceRow)
	}

	assert.Equal(t, 24, rates[0].TermMonths)
	assert.Equal(t, 1, rates[0].InitialMonths)
	assert.Equal(t, "1+23", rates[0].PaymentPlan)
	assert.Equal(t, int64(35000), rates[0].TotalRentalPence)

	assert.Equal(t, 36, rates[1].TermMonths)
	assert.Equal(t, int64(38000), rates[1].TotalRentalPence)

	assert.Equal(t, 34, rates[2].TermMonths)
	assert.Equal(t, 3, rates[2].InitialMonths)
	assert.Equal(t, int64(36000), rates[2].TotalRentalPence)
}

func TestDecodeMatrixContinuationRows(t *testing.T) {
	cfg := defaultConfig()
	sheet := Sheet{
		Name: "Volkswagen",
		Rows: [][]string{
			{"Term", "1+23", "1+35", "3+33"},
			{"Golf GTI", "10k", "350", "380", "360"},
			{"", "15k", "360", "390", ""},    // blank term slot still consumed
			{"20k", "345", "", "355"},        // mileage in the first cell, no shift
		},
	}

	rates, rowErrs := DecodeMatrixSheet(cfg, sheet)
	require.Empty(t, rowErrs)
	require.Len(t, rates, 7)

	at15k := ratesForMileage(rates, 15000)
	require.Len(t, at15k, 2)
	assert.Equal(t, "Golf GTI", at15k[0].Model)
	assert.Equal(t, 24, at15k[0].TermMonths)
	assert.Equal(t, int64(36000), at15k[0].TotalRentalPence)
	assert.Equal(t, 36, at15k[1].TermMonths)
	assert.Equal(t, int64(39000), at15k[1].TotalRentalPence)

	at20k := ratesForMileage(rates, 20000)
	require.Len(t, at20k, 2)
	assert.Equal(t, 24, at20k[0].TermMonths)
	assert.Equal(t, int64(34500), at20k[0].TotalRentalPence)
	assert.Equal(t, 34, at20k[1].TermMonths)
	assert.Equal(t, int64(35500), at20k[1].TotalRentalPence)
}

func TestDecodeMatrixVehicleSwitch(t *testing.T) {
	cfg := defaultConfig()
	sheet := Sheet{
		Name: "Volkswagen",
		Rows: [][]string{
			{"Subject to availability and status."},
			{"Term", "1+23", "1+35", "3+33"},
			{"Golf GTI", "10k", "350", "380", "360"},
			{"Polo Life"},
			{"", "10k", "280", "300", "290"},
		},
	}

	rates, rowErrs := DecodeMatrixSheet(cfg, sheet)
	require.Empty(t, rowErrs)
	require.Len(t, rates, 6)

	assert.Equal(t, "Golf GTI", rates[0].Model)
	assert.Equal(t, "Polo", rates[3].Model)
	assert.Equal(t, "Life", rates[3].Variant)
	assert.Equal(t, int64(28000), rates[3].TotalRentalPence)
}

func TestDecodeMatrixHeaderWordVehicleNames(t *testing.T) {
	cfg := defaultConfig()
	sheet := Sheet{
		Name: "Tesla",
		Rows: [][]string{
			{"Term", "1+23", "1+35", "3+33"},
			{"Model"}, // repeated axis label, not a vehicle
			{"Model 3 Long Range", "10k", "450", "470", "460"},
		},
	}

	rates, rowErrs := DecodeMatrixSheet(cfg, sheet)
	require.Empty(t, rowErrs)
	require.Len(t, rates, 3)
	for _, rate := range rates {
		assert.Equal(t, "Tesla", rate.Manufacturer)
		assert.Equal(t, "Model 3", rate.Model)
		assert.Equal(t, "Long Range", rate.Variant)
	}
}

func TestDecodeMatrixPriceRowBeforeVehicle(t *testing.T) {
	cfg := defaultConfig()
	sheet := Sheet{
		Name: "Volkswagen",
		Rows: [][]string{
			{"Term", "1+23", "1+35", "3+33"},
			{"20k", "345", "350", "355"}, // no vehicle in context yet
		},
	}

	rates, rowErrs := DecodeMatrixSheet(cfg, sheet)
	assert.Empty(t, rates)
	assert.Empty(t, rowErrs)
}

func TestSplitVehicleName(t *testing.T) {
	cfg := defaultConfig()

	tests := []struct {
		sheetManufacturer string
		cell              string
		manufacturer      string
		model             string
		variant           string
	}{
		{"", "Ford Focus ST-Line", "Ford", "Focus", "ST-Line"},
		{"Volkswagen", "Volkswagen Golf GTI (2024) Hatchback", "Volkswagen", "Golf GTI", ""},
		{"Ford", "Puma Titanium X", "Ford", "Puma", "Titanium X"},
		{"", "BMW 320i M Sport", "BMW", "320i", "M Sport"},
		{"Audi", "Audi", "Audi", "Audi", ""},
	}

	for _, tt := range tests {
		manufacturer, model, variant := SplitVehicleName(cfg, tt.sheetManufacturer, tt.cell)
		assert.Equal(t, tt.manufacturer, manufacturer, tt.cell)
		assert.Equal(t, tt.model, model, tt.cell)
		assert.Equal(t, tt.variant, variant, tt.cell)
	}
}

func TestManufacturerFromSheetName(t *testing.T) {
	cfg := defaultConfig()
	cfg.Aliases = map[string]string{"vw": "Volkswagen"}

	assert.Equal(t, "Ford", manufacturerFromSheetName(cfg, "Ford_"))
	assert.Equal(t, "BMW", manufacturerFromSheetName(cfg, "BMW Rates"))
	assert.Equal(t, "Volkswagen", manufacturerFromSheetName(cfg, "VW"))
	assert.Equal(t, "", manufacturerFromSheetName(cfg, "  "))
}

func TestDecodeWorkbookEndToEnd(t *testing.T) {
	cfg := defaultConfig()
	wb := &Workbook{
		FileName: "venus_q3.xlsx",
		Sheets: []Sheet{
			{
				Name: "Bulletins",
				Rows: [][]string{{"August price bulletin"}},
			},
			{
				Name: "Ford_",
				Rows: [][]string{
					{"Vehicle price list Q3"},
					{"Term", "1+23", "1+35", "3+33"},
					{"Focus ST-Line", "10k", "329", "349", "339"},
					{"", "15k", "344", "364", "354"},
					{"", "20k", "359", "379", "369"},
				},
			},
			{
				Name: "Volkswagen",
				Rows: [][]string{
					{"Term", "1+23", "1+35", "3+33"},
					{"Golf GTI", "10k", "350", "380", "360"},
					{"", "15k", "360", "390", "370"},
					{"Polo Life", "10k", "280", "300", "290"},
				},
			},
		},
	}

	detections := DetectWorkbook(cfg, wb)
	require.Len(t, detections, 3)

	assert.Equal(t, FormatUnknown, detections[0].Format)
	assert.Contains(t, detections[0].Reason, "skip pattern")

	var total []RateRow
	for i, det := range detections {
		if det.Format != FormatMatrix {
			continue
		}
		rates, rowErrs := DecodeMatrixSheet(cfg, wb.Sheets[i])
		require.Empty(t, rowErrs, det.SheetName)
		total = append(total, rates...)
	}
	require.Len(t, total, 18)

	assert.Equal(t, "Ford", total[0].Manufacturer)
	assert.Equal(t, "Focus", total[0].Model)
	assert.Equal(t, "ST-Line", total[0].Variant)
	assert.Equal(t, "Volkswagen", total[9].Manufacturer)
	assert.Equal(t, "Golf GTI", total[9].Model)
}

func ratesForMileage(rates []RateRow, miles int) []RateRow {
	var out []RateRow
	for _, r := range rates {
		if r.AnnualMileage == miles {
			out = append(out, r)
		}
	}
	return out
}
