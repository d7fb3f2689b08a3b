package billing

import "github.com/rcavanagh/subledger/internal/model"

// Summary holds normalized spend totals for a set of subscriptions.
type Summary struct {
	MonthlyTotal float64            `json:"monthly_total"`
	YearlyTotal  float64            `json:"yearly_total"`
	ByCategory   map[string]float64 `json:"by_category"`
}

// Summarize computes monthly and yearly totals plus per-category monthly
// subtotals. It is agnostic to subscription status: callers filter to active
// rows before calling, and must not filter again afterwards. Categories
// absent from the input are absent from the map (no zero-fill).
func Summarize(subs []model.Subscription) Summary {
	s := Summary{ByCategory: make(map[string]float64)}
	for _, sub := range subs {
		monthly := MonthlyEquivalent(sub.Amount, Cycle(sub.BillingCycle))
		s.MonthlyTotal += monthly
		s.ByCategory[sub.Category] += monthly
	}
	s.YearlyTotal = s.MonthlyTotal * 12
	return s
}
