package ratesheet

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/lexdrive/ratehub/app/models"
)

// Pence thresholds for the pounds-vs-pence disambiguation. Upstream files mix
// both units freely; a monthly rental above £1,000.00 expressed in pounds is
// implausible, so anything above the threshold is taken as already pence. List
// prices use a higher bound for the same reason (no catalog car lists above
// £10,000 in pounds while staying under it in pence).
const (
	rentalPenceThreshold    = 100000
	listPricePenceThreshold = 1000000
)

var moneyCleanRe = regexp.MustCompile(`[£€$,\s]`)

// ToPence converts a free-form monetary cell into pence. Values already above
// alreadyPenceAbove are treated as pence and rounded as-is, everything else is
// multiplied by 100. Empty, zero and unparseable input returns (0, false).
func ToPence(raw string, alreadyPenceAbove float64) (int64, bool) {
	cleaned := moneyCleanRe.ReplaceAllString(strings.TrimSpace(raw), "")
	if cleaned == "" || cleaned == "-" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	if f > alreadyPenceAbove {
		return int64(math.Round(f)), true
	}
	return int64(math.Round(f * 100)), true
}

// RentalToPence converts a monthly/total rental cell into pence.
func RentalToPence(raw string) (int64, bool) {
	return ToPence(raw, rentalPenceThreshold)
}

// ListPriceToPence converts a P11D/list price cell into pence.
func ListPriceToPence(raw string) (int64, bool) {
	return ToPence(raw, listPricePenceThreshold)
}

// FormatPence renders pence back into a plain decimal string, mainly for
// error messages and the round-trip tests.
func FormatPence(pence int64) string {
	return strconv.FormatFloat(float64(pence)/100, 'f', 2, 64)
}

// PlanTerms is the result of parsing a payment plan code. TotalTermMonths is
// zero for symbolic plans whose term comes from elsewhere in the sheet.
type PlanTerms struct {
	InitialMonths   int
	TotalTermMonths int
}

var termCodeRe = regexp.MustCompile(`^\s*(\d{1,2})\s*\+\s*(\d{1,3})\s*$`)

// IsTermCode reports whether a cell looks like an "<n>+<m>" term code.
func IsTermCode(cell string) bool {
	return termCodeRe.MatchString(cell)
}

// ParseTermCode parses an "<n>+<m>" term code under the given provider term
// convention. With remaining_plus_one the m further rentals plus the covered
// first month make the term m+1; with initial_plus_remaining the term is n+m.
func ParseTermCode(cell, convention string) (PlanTerms, bool) {
	m := termCodeRe.FindStringSubmatch(cell)
	if m == nil {
		return PlanTerms{}, false
	}
	initial, _ := strconv.Atoi(m[1])
	remaining, _ := strconv.Atoi(m[2])
	if initial <= 0 || remaining <= 0 {
		return PlanTerms{}, false
	}
	terms := PlanTerms{InitialMonths: initial}
	if convention == models.TermConventionInitialPlusRemaining {
		terms.TotalTermMonths = initial + remaining
	} else {
		terms.TotalTermMonths = remaining + 1
	}
	return terms, true
}

// ParsePaymentPlan parses a provider payment plan code. Three code families
// are recognized: "<n>+<m>" term codes, monthly_in_advance, and
// spread_<n>_down. Unrecognized codes fall back to one initial month and
// return ok=false so callers can flag the row as low confidence.
func ParsePaymentPlan(code, convention string) (PlanTerms, bool) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	switch {
	case normalized == "":
		return PlanTerms{InitialMonths: 1}, false
	case IsTermCode(normalized):
		return ParseTermCode(normalized, convention)
	case normalized == "monthly_in_advance" || normalized == "monthly in advance":
		return PlanTerms{InitialMonths: 1}, true
	case strings.HasPrefix(normalized, "spread_") && strings.HasSuffix(normalized, "_down"):
		mid := strings.TrimSuffix(strings.TrimPrefix(normalized, "spread_"), "_down")
		if n, err := strconv.Atoi(mid); err == nil && n > 0 {
			return PlanTerms{InitialMonths: n}, true
		}
		return PlanTerms{InitialMonths: 1}, false
	default:
		return PlanTerms{InitialMonths: 1}, false
	}
}

// Mileage bands recognized in matrix sheets. A cell is a mileage band when it
// starts with one of these prefixes; qualifier text after the prefix (e.g.
// "10k -NM") is ignored.
var mileageBands = []struct {
	prefix string
	miles  int
}{
	{"5k", 5000},
	{"8k", 8000},
	{"10k", 10000},
	{"15k", 15000},
	{"20k", 20000},
	{"25k", 25000},
	{"30k", 30000},
}

// ParseMileageBand parses a mileage band cell ("10k", "15k maintained").
func ParseMileageBand(cell string) (int, bool) {
	normalized := strings.ToLower(strings.TrimSpace(cell))
	if normalized == "" {
		return 0, false
	}
	for _, band := range mileageBands {
		if strings.HasPrefix(normalized, band.prefix) {
			return band.miles, true
		}
	}
	return 0, false
}

// ParseMileageValue parses a literal annual mileage cell ("10,000", "15000").
func ParseMileageValue(cell string) (int, bool) {
	if miles, ok := ParseMileageBand(cell); ok {
		return miles, true
	}
	cleaned := strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
	n, err := strconv.Atoi(cleaned)
	if err != nil || n < 1000 || n > 100000 {
		return 0, false
	}
	return n, true
}
