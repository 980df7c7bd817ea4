package billing

import "time"

// PeriodType is the recurring charge cadence of a plan.
type PeriodType string

const (
	PeriodTypeDay   PeriodType = "day"
	PeriodTypeWeek  PeriodType = "week"
	PeriodTypeMonth PeriodType = "month"
	PeriodTypeYear  PeriodType = "year"
)

// Valid reports whether p is a known period type.
func (p PeriodType) Valid() bool {
	switch p {
	case PeriodTypeDay, PeriodTypeWeek, PeriodTypeMonth, PeriodTypeYear:
		return true
	}
	return false
}

// Schedule is the derived billing position of a subscription.
type Schedule struct {
	PeriodIndex  int       `json:"period_index"`
	LastChargeAt time.Time `json:"last_charge_at"`
	NextChargeAt time.Time `json:"next_charge_at"`
}

// Compute derives the expected billing schedule from the subscription's
// creation time. chargedPeriods pins the period index when the gateway has
// reported how many periods it already charged (> 0); otherwise the index is
// derived from the elapsed time between createdAt and now.
//
// Day and week cadences are exact elapsed-time division. Month and year
// cadences step the calendar: the charge day is the creation day-of-month,
// clamped to the last valid day of shorter months, so a subscription created
// on the 31st charges on Feb 28/29, Apr 30 and so on.
//
// Compute is total: any inputs yield a schedule, and identical inputs always
// yield identical results.
func Compute(createdAt time.Time, periodType PeriodType, chargedPeriods int, now time.Time) Schedule {
	idx := chargedPeriods
	if idx < 1 {
		idx = elapsedPeriods(createdAt, periodType, now) + 1
	}

	return Schedule{
		PeriodIndex:  idx,
		LastChargeAt: Step(createdAt, periodType, idx-1),
		NextChargeAt: Step(createdAt, periodType, idx),
	}
}

// Step advances createdAt by n periods of the given type. n may be zero.
func Step(createdAt time.Time, periodType PeriodType, n int) time.Time {
	if n <= 0 {
		return createdAt
	}
	switch periodType {
	case PeriodTypeDay:
		return createdAt.Add(time.Duration(n) * 24 * time.Hour)
	case PeriodTypeWeek:
		return createdAt.Add(time.Duration(n) * 7 * 24 * time.Hour)
	case PeriodTypeYear:
		return addMonthsClamped(createdAt, 12*n)
	default: // month, and the fallback for an unknown type
		return addMonthsClamped(createdAt, n)
	}
}

// ApproxPeriod is an upper bound on one period's wall-clock length, used as
// the reconciliation drift tolerance window.
func ApproxPeriod(periodType PeriodType) time.Duration {
	switch periodType {
	case PeriodTypeDay:
		return 24 * time.Hour
	case PeriodTypeWeek:
		return 7 * 24 * time.Hour
	case PeriodTypeYear:
		return 366 * 24 * time.Hour
	default:
		return 31 * 24 * time.Hour
	}
}

func elapsedPeriods(createdAt time.Time, periodType PeriodType, now time.Time) int {
	if !now.After(createdAt) {
		return 0
	}
	switch periodType {
	case PeriodTypeDay:
		return int(now.Sub(createdAt) / (24 * time.Hour))
	case PeriodTypeWeek:
		return int(now.Sub(createdAt) / (7 * 24 * time.Hour))
	default:
		months := 1
		if periodType == PeriodTypeYear {
			months = 12
		}
		n := 0
		for !addMonthsClamped(createdAt, months*(n+1)).After(now) {
			n++
		}
		return n
	}
}

// addMonthsClamped is calendar-aware month stepping: the day-of-month is kept
// where the target month allows it and clamped to the month's last day
// otherwise. time.AddDate would normalize Jan 31 + 1 month into Mar 2/3,
// which is not how the gateway schedules charges.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	m += time.Month(months)
	firstOfMonth := time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfMonth.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	h, min, sec := t.Clock()
	return time.Date(firstOfMonth.Year(), firstOfMonth.Month(), d, h, min, sec, t.Nanosecond(), t.Location())
}
