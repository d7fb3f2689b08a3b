package billing

// Cycle is a subscription's recurrence period.
type Cycle string

const (
	CycleWeekly    Cycle = "weekly"
	CycleMonthly   Cycle = "monthly"
	CycleQuarterly Cycle = "quarterly"
	CycleYearly    Cycle = "yearly"
)

// weeksPerMonth matches the conventional 52/12 approximation.
const weeksPerMonth = 4.33

// ValidCycle reports whether c is one of the recognized billing cycles.
func ValidCycle(c Cycle) bool {
	switch c {
	case CycleWeekly, CycleMonthly, CycleQuarterly, CycleYearly:
		return true
	}
	return false
}

// MonthlyEquivalent converts an amount charged on the given cycle to a
// per-month figure. An unrecognized cycle contributes the amount as-is
// rather than failing; rows with bad cycles are rejected at the input
// boundary, so this fallback only covers data that predates validation.
func MonthlyEquivalent(amount float64, cycle Cycle) float64 {
	switch cycle {
	case CycleWeekly:
		return amount * weeksPerMonth
	case CycleMonthly:
		return amount
	case CycleQuarterly:
		return amount / 3
	case CycleYearly:
		return amount / 12
	default:
		return amount
	}
}
