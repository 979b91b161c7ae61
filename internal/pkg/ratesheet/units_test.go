package ratesheet

import (
	"testing"

	"github.com/lexdrive/ratehub/app/models"
)

func TestRentalToPence(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{in: "£329.50", want: 32950, ok: true},
		{in: "329.50", want: 32950, ok: true},
		{in: "1,234.56", want: 123456, ok: true},
		{in: " 350 ", want: 35000, ok: true},
		{in: "150000", want: 150000, ok: true}, // already pence
		{in: "€412.99", want: 41299, ok: true},
		{in: "", ok: false},
		{in: "-", ok: false},
		{in: "0", ok: false},
		{in: "N/A", ok: false},
		{in: "POA", ok: false},
	}

	for _, tt := range tests {
		got, ok := RentalToPence(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("RentalToPence(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestListPriceToPence(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{in: "£27,560", want: 2756000, ok: true},
		{in: "27560.00", want: 2756000, ok: true},
		{in: "2756000", want: 2756000, ok: true}, // already pence
		{in: "", ok: false},
	}

	for _, tt := range tests {
		got, ok := ListPriceToPence(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ListPriceToPence(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPenceRoundTrip(t *testing.T) {
	// formatting pence and parsing the result must land on the same value
	for _, pence := range []int64{1, 99, 100, 32950, 99999, 9999999} {
		formatted := FormatPence(pence)
		back, ok := ListPriceToPence(formatted)
		if !ok || back != pence {
			t.Fatalf("round trip of %d via %q produced (%d, %v)", pence, formatted, back, ok)
		}
	}
}

func TestIsTermCode(t *testing.T) {
	valid := []string{"1+23", "3 + 33", "1+35", "12+345", "9+47"}
	for _, in := range valid {
		if !IsTermCode(in) {
			t.Fatalf("expected %q to be a term code", in)
		}
	}
	invalid := []string{"", "1+", "+23", "123+4", "term", "1-23", "1 23"}
	for _, in := range invalid {
		if IsTermCode(in) {
			t.Fatalf("expected %q not to be a term code", in)
		}
	}
}

func TestParseTermCodeConventions(t *testing.T) {
	terms, ok := ParseTermCode("3+33", models.TermConventionRemainingPlusOne)
	if !ok || terms.InitialMonths != 3 || terms.TotalTermMonths != 34 {
		t.Fatalf("remaining_plus_one: got %+v, ok=%v", terms, ok)
	}

	terms, ok = ParseTermCode("3+33", models.TermConventionInitialPlusRemaining)
	if !ok || terms.InitialMonths != 3 || terms.TotalTermMonths != 36 {
		t.Fatalf("initial_plus_remaining: got %+v, ok=%v", terms, ok)
	}

	if _, ok := ParseTermCode("0+33", models.TermConventionRemainingPlusOne); ok {
		t.Fatalf("zero initial months must not parse")
	}
}

func TestParsePaymentPlan(t *testing.T) {
	tests := []struct {
		in          string
		wantInitial int
		wantTerm    int
		ok          bool
	}{
		{in: "1+23", wantInitial: 1, wantTerm: 24, ok: true},
		{in: "monthly_in_advance", wantInitial: 1, ok: true},
		{in: "Monthly in Advance", wantInitial: 1, ok: true},
		{in: "spread_3_down", wantInitial: 3, ok: true},
		{in: "spread_6_down", wantInitial: 6, ok: true},
		{in: "spread_x_down", wantInitial: 1, ok: false},
		{in: "quarterly", wantInitial: 1, ok: false},
		{in: "", wantInitial: 1, ok: false},
	}

	for _, tt := range tests {
		terms, ok := ParsePaymentPlan(tt.in, models.TermConventionRemainingPlusOne)
		if ok != tt.ok || terms.InitialMonths != tt.wantInitial || terms.TotalTermMonths != tt.wantTerm {
			t.Fatalf("ParsePaymentPlan(%q) = (%+v, %v), want initial=%d term=%d ok=%v",
				tt.in, terms, ok, tt.wantInitial, tt.wantTerm, tt.ok)
		}
	}
}

func TestParseMileageBand(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{in: "10k", want: 10000, ok: true},
		{in: "10k -NM", want: 10000, ok: true},
		{in: "15K Maintained", want: 15000, ok: true},
		{in: "8k", want: 8000, ok: true},
		{in: "5k", want: 5000, ok: true},
		{in: "30k", want: 30000, ok: true},
		{in: "12k", ok: false},
		{in: "", ok: false},
		{in: "Focus", ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseMileageBand(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseMileageBand(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseMileageValue(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{in: "10,000", want: 10000, ok: true},
		{in: "45000", want: 45000, ok: true},
		{in: "10k", want: 10000, ok: true},
		{in: "500", ok: false},    // below any plausible annual mileage
		{in: "150000", ok: false}, // above
		{in: "", ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseMileageValue(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseMileageValue(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
