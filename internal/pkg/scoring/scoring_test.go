package scoring

import "testing"

func TestScoreNeutralOnMissingInputs(t *testing.T) {
	tests := []struct {
		name      string
		rental    int64
		listPrice int64
		term      int
	}{
		{name: "no rental", rental: 0, listPrice: 3000000, term: 36},
		{name: "no list price", rental: 30000, listPrice: 0, term: 36},
		{name: "no term", rental: 30000, listPrice: 3000000, term: 0},
		{name: "negative rental", rental: -100, listPrice: 3000000, term: 36},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.rental, tt.listPrice, tt.term); got != NeutralScore {
				t.Fatalf("Score = %d, want %d", got, NeutralScore)
			}
		})
	}
}

func TestScoreSteps(t *testing.T) {
	// list price £36,000, term 36: score depends on the monthly rental alone
	const listPrice = int64(3600000)
	const term = 36

	tests := []struct {
		rental int64
		want   int
	}{
		{rental: 20000, want: 100}, // ratio 0.20
		{rental: 30000, want: 100}, // ratio 0.30, boundary inclusive
		{rental: 35000, want: 90},  // ratio 0.35
		{rental: 45000, want: 80},  // ratio 0.45
		{rental: 55000, want: 70},  // ratio 0.55
		{rental: 65000, want: 60},  // ratio 0.65
		{rental: 75000, want: 50},  // ratio 0.75
		{rental: 85000, want: 40},  // ratio 0.85
		{rental: 100000, want: 30}, // ratio 1.00
		{rental: 120000, want: 20}, // ratio 1.20, floor
		{rental: 149000, want: 20}, // ratio 1.49, still the floor
		{rental: 150000, want: 0},  // ratio 1.50, implausible data
		{rental: 200000, want: 0},  // ratio 2.00
	}

	for _, tt := range tests {
		if got := Score(tt.rental, listPrice, term); got != tt.want {
			t.Fatalf("Score(%d, %d, %d) = %d, want %d", tt.rental, listPrice, term, got, tt.want)
		}
	}
}

func TestBand(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{score: 100, want: BandExceptional},
		{score: 90, want: BandExceptional},
		{score: 89, want: BandExcellent},
		{score: 75, want: BandExcellent},
		{score: 74, want: BandGood},
		{score: 60, want: BandGood},
		{score: 59, want: BandFair},
		{score: NeutralScore, want: BandFair},
		{score: 40, want: BandFair},
		{score: 39, want: BandPoor},
		{score: 0, want: BandPoor},
	}

	for _, tt := range tests {
		if got := Band(tt.score); got != tt.want {
			t.Fatalf("Band(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
