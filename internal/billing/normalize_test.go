package billing

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMonthlyEquivalentWeekly(t *testing.T) {
	got := MonthlyEquivalent(100, CycleWeekly)
	if !almostEqual(got, 433.0) {
		t.Errorf("MonthlyEquivalent(100, weekly) = %v, want 433.0", got)
	}
}

func TestMonthlyEquivalentMonthly(t *testing.T) {
	got := MonthlyEquivalent(9.99, CycleMonthly)
	if !almostEqual(got, 9.99) {
		t.Errorf("MonthlyEquivalent(9.99, monthly) = %v, want 9.99", got)
	}
}

func TestMonthlyEquivalentQuarterly(t *testing.T) {
	got := MonthlyEquivalent(30, CycleQuarterly)
	if !almostEqual(got, 10.0) {
		t.Errorf("MonthlyEquivalent(30, quarterly) = %v, want 10.0", got)
	}
}

func TestMonthlyEquivalentYearly(t *testing.T) {
	got := MonthlyEquivalent(120, CycleYearly)
	if !almostEqual(got, 10.0) {
		t.Errorf("MonthlyEquivalent(120, yearly) = %v, want 10.0", got)
	}
}

func TestMonthlyEquivalentUnrecognizedCycle(t *testing.T) {
	// Unknown cycles pass the amount through unchanged.
	got := MonthlyEquivalent(50, Cycle("biweekly"))
	if !almostEqual(got, 50) {
		t.Errorf("MonthlyEquivalent(50, biweekly) = %v, want 50", got)
	}
}

func TestMonthlyEquivalentPositive(t *testing.T) {
	cycles := []Cycle{CycleWeekly, CycleMonthly, CycleQuarterly, CycleYearly, Cycle("bogus")}
	for _, c := range cycles {
		if got := MonthlyEquivalent(0.01, c); got <= 0 {
			t.Errorf("MonthlyEquivalent(0.01, %s) = %v, want > 0", c, got)
		}
	}
}

func TestValidCycle(t *testing.T) {
	for _, c := range []Cycle{CycleWeekly, CycleMonthly, CycleQuarterly, CycleYearly} {
		if !ValidCycle(c) {
			t.Errorf("ValidCycle(%s) = false, want true", c)
		}
	}
	if ValidCycle(Cycle("daily")) {
		t.Error("ValidCycle(daily) = true, want false")
	}
	if ValidCycle(Cycle("")) {
		t.Error("ValidCycle(\"\") = true, want false")
	}
}
