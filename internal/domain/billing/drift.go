package billing

import (
	"fmt"
	"time"
)

// ScheduleDriftError reports that a subscription's stored schedule or status
// disagrees with the derived/gateway-reported one beyond tolerance. It is
// flagged for operator review, never auto-corrected.
type ScheduleDriftError struct {
	SubscriptionID int64
	Reason         string
	StoredNext     time.Time
	DerivedNext    time.Time
}

func (e *ScheduleDriftError) Error() string {
	return fmt.Sprintf("subscription %d schedule drift: %s (stored next charge %s, derived %s)",
		e.SubscriptionID, e.Reason,
		e.StoredNext.Format(time.RFC3339), e.DerivedNext.Format(time.RFC3339))
}

// WithinTolerance reports whether stored and derived next-charge times agree
// to within one period. Anything past that is drift that must not be silently
// overwritten from either source.
func WithinTolerance(stored, derived time.Time, periodType PeriodType) bool {
	d := stored.Sub(derived)
	if d < 0 {
		d = -d
	}
	return d <= ApproxPeriod(periodType)
}
