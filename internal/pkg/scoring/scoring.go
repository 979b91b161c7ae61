// Package scoring derives the comparative value score carried on every
// provider rate: total cost over the term relative to the vehicle list price,
// banded into qualitative labels.
package scoring

// Score when either side of the ratio is missing. Incomplete data scores
// neutral rather than zero so it is not penalized against complete rows.
const NeutralScore = 50

// Cost ratios from this ceiling upward are treated as bad data, not expensive
// deals. Paying 150% of list price over the term is outside anything a real
// rate sheet produces.
const costRatioCeiling = 1.5

// Descending step table mapping cost ratio onto a score. Lower ratio (cheaper
// relative to list price) scores higher.
var ratioSteps = []struct {
	maxRatio float64
	score    int
}{
	{0.30, 100},
	{0.40, 90},
	{0.50, 80},
	{0.60, 70},
	{0.70, 60},
	{0.80, 50},
	{0.90, 40},
	{1.00, 30},
}

const floorScore = 20

// Score computes the 0-100 value score for a rate. Both monetary inputs are
// pence.
func Score(totalRentalPence, listPricePence int64, termMonths int) int {
	if totalRentalPence <= 0 || listPricePence <= 0 || termMonths <= 0 {
		return NeutralScore
	}

	costRatio := float64(totalRentalPence) * float64(termMonths) / float64(listPricePence)
	if costRatio >= costRatioCeiling {
		return 0
	}
	for _, step := range ratioSteps {
		if costRatio <= step.maxRatio {
			return step.score
		}
	}
	return floorScore
}

// Qualitative score bands. Band is the single source of truth for labels
// wherever a score is displayed.
const (
	BandExceptional = "Exceptional"
	BandExcellent   = "Excellent"
	BandGood        = "Good"
	BandFair        = "Fair"
	BandPoor        = "Poor"
)

// Band maps a numeric score onto its qualitative label.
func Band(score int) string {
	switch {
	case score >= 90:
		return BandExceptional
	case score >= 75:
		return BandExcellent
	case score >= 60:
		return BandGood
	case score >= 40:
		return BandFair
	default:
		return BandPoor
	}
}
