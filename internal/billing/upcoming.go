package billing

import (
	"sort"
	"time"

	"github.com/rcavanagh/subledger/internal/model"
)

// Due classifies how soon a bill comes due.
type Due string

const (
	DueOverdue   Due = "overdue"
	DueToday     Due = "today"
	DueTomorrow  Due = "tomorrow"
	DueSoon      Due = "soon"
	DueScheduled Due = "scheduled"
)

// UpcomingBill is a subscription annotated with its due classification.
type UpcomingBill struct {
	model.Subscription
	DaysUntil int `json:"days_until"`
	Due       Due `json:"due"`
}

// DaysUntil returns the whole-day difference between date and today,
// ignoring time-of-day on both sides. Negative means past due.
func DaysUntil(date, today time.Time) int {
	d := startOfDay(date)
	t := startOfDay(today)
	return int(d.Sub(t).Hours() / 24)
}

// Classify buckets a whole-day distance into a due severity.
func Classify(daysUntil int) Due {
	switch {
	case daysUntil < 0:
		return DueOverdue
	case daysUntil == 0:
		return DueToday
	case daysUntil == 1:
		return DueTomorrow
	case daysUntil <= 7:
		return DueSoon
	default:
		return DueScheduled
	}
}

// Upcoming returns at most limit subscriptions ordered by next billing date
// ascending, each classified relative to today. The sort is stable so rows
// sharing a date keep their input order.
func Upcoming(subs []model.Subscription, today time.Time, limit int) []UpcomingBill {
	sorted := make([]model.Subscription, len(subs))
	copy(sorted, subs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].NextBillingDate.Before(sorted[j].NextBillingDate)
	})

	if limit > len(sorted) {
		limit = len(sorted)
	}

	bills := make([]UpcomingBill, 0, limit)
	for _, sub := range sorted[:limit] {
		days := DaysUntil(sub.NextBillingDate, today)
		bills = append(bills, UpcomingBill{
			Subscription: sub,
			DaysUntil:    days,
			Due:          Classify(days),
		})
	}
	return bills
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
