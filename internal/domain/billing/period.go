package billing

import (
	"fmt"
	"math"
	"time"
)

const (
	// RenewalWindowDays before end date during which renewal is "on time"
	RenewalWindowDays = 30
	// ExpiringSoonDays before end date at which a subscription is flagged
	ExpiringSoonDays = 7
	// GracePeriodDays after end date before a subscription fully lapses
	GracePeriodDays = 3
)

// BillingCycle is the date span governed by a plan's duration.
type BillingCycle struct {
	StartDate    time.Time    `json:"start_date"`
	EndDate      time.Time    `json:"end_date"`
	Duration     int          `json:"duration"`
	DurationUnit DurationUnit `json:"duration_unit"`
	TotalDays    int          `json:"total_days"`
}

// RenewalWindow is the period before expiration during which renewal is
// considered on time.
type RenewalWindow struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	IsActive bool      `json:"is_active"`
}

// DateValidation carries blocking errors and non-blocking warnings for a
// requested transition date.
type DateValidation struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// daysBetweenCeil counts whole days from one instant to another, rounding
// partial days up. Negative when to precedes from.
func daysBetweenCeil(from, to time.Time) int {
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}

// CurrentBillingCycle derives the cycle bounds and day count of an instance.
func CurrentBillingCycle(inst *Instance, plan *Plan) BillingCycle {
	duration, unit := planDuration(plan)
	totalDays := daysBetweenCeil(inst.StartDate, inst.EndDate)
	if totalDays < 0 {
		totalDays = 0
	}
	return BillingCycle{
		StartDate:    inst.StartDate,
		EndDate:      inst.EndDate,
		Duration:     duration,
		DurationUnit: unit,
		TotalDays:    totalDays,
	}
}

// DaysUntilExpiration counts whole days until the end date; negative when
// the subscription has already expired.
func DaysUntilExpiration(now, endDate time.Time) int {
	return daysBetweenCeil(now, endDate)
}

// RenewalWindowFor returns the renewal window around the given end date.
func RenewalWindowFor(now, endDate time.Time) RenewalWindow {
	start := endDate.AddDate(0, 0, -RenewalWindowDays)
	return RenewalWindow{
		Start:    start,
		End:      endDate,
		IsActive: !now.Before(start) && !now.After(endDate),
	}
}

// IsExpiringSoon reports whether the subscription expires within the
// expiring-soon threshold.
func IsExpiringSoon(daysUntilExpiration int) bool {
	return daysUntilExpiration >= 0 && daysUntilExpiration <= ExpiringSoonDays
}

// IsExpiredWithGrace reports whether the subscription is past its end date
// plus the grace period.
func IsExpiredWithGrace(now, endDate time.Time) bool {
	return now.After(endDate.AddDate(0, 0, GracePeriodDays))
}

// NewEndDate computes the end date for a transition onto the given plan.
// When extendCurrent is set and the current end date is later than the
// start date, the new period starts where the current one ends.
// Month durations use calendar-month addition with month-end clamping, so
// Jan 31 + 1 month lands on Feb 28/29, never Mar 2/3.
func NewEndDate(plan *Plan, startDate time.Time, extendCurrent bool, currentEndDate time.Time) time.Time {
	effective := startDate
	if extendCurrent && currentEndDate.After(effective) {
		effective = currentEndDate
	}

	duration, unit := planDuration(plan)
	if unit == DurationDay {
		return effective.AddDate(0, 0, duration)
	}
	return addMonthsClamped(effective, duration)
}

// planDuration returns the plan's billing duration, defaulting to 1 month.
func planDuration(plan *Plan) (int, DurationUnit) {
	if plan == nil || plan.Duration <= 0 {
		return 1, DurationMonth
	}
	if plan.DurationUnit != DurationDay && plan.DurationUnit != DurationMonth {
		return plan.Duration, DurationMonth
	}
	return plan.Duration, plan.DurationUnit
}

// addMonthsClamped adds calendar months, clamping to the last day of the
// target month instead of letting time.AddDate roll over.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := time.Date(firstOfTarget.Year(), firstOfTarget.Month()+1, 0,
		0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// ValidateDates checks a transition's dates against the current instance.
// Blocking problems land in Errors; advisory ones in Warnings and never
// block the operation.
func ValidateDates(op OperationType, inst *Instance, effectiveDate, newEndDate, now time.Time) DateValidation {
	v := DateValidation{IsValid: true}

	switch op {
	case OpUpgrade, OpDowngrade:
		if effectiveDate.Before(inst.StartDate) || effectiveDate.After(inst.EndDate) {
			v.Errors = append(v.Errors, fmt.Sprintf(
				"effective date %s must be within the current billing period (%s to %s)",
				effectiveDate.Format("2006-01-02"),
				inst.StartDate.Format("2006-01-02"),
				inst.EndDate.Format("2006-01-02")))
		}
	case OpRenewal:
		if window := RenewalWindowFor(now, inst.EndDate); !window.IsActive {
			v.Warnings = append(v.Warnings, "renewing outside the optimal renewal window")
		}
	case OpCancellation:
		if effectiveDate.After(inst.EndDate) {
			v.Warnings = append(v.Warnings, "cancellation date is after the subscription already ended")
		}
	}

	if !newEndDate.IsZero() && op != OpCancellation && !newEndDate.After(effectiveDate) {
		v.Errors = append(v.Errors, "new end date must be after the effective date")
	}

	if IsExpiredWithGrace(now, inst.EndDate) {
		v.Warnings = append(v.Warnings, "subscription is already past its grace period")
	}

	v.IsValid = len(v.Errors) == 0
	return v
}

// OptimalEffectiveDate clamps the requested date to now at the earliest.
// Renewals with no explicit request default to the current end date so the
// new period starts where the old one stops.
func OptimalEffectiveDate(op OperationType, inst *Instance, requested *time.Time, now time.Time) time.Time {
	if op == OpRenewal && requested == nil {
		if inst.EndDate.After(now) {
			return inst.EndDate
		}
		return now
	}
	if requested != nil && requested.After(now) {
		return *requested
	}
	return now
}
