package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDaysBetweenCeil(t *testing.T) {
	assert.Equal(t, 30, daysBetweenCeil(date(2025, 1, 1), date(2025, 1, 31)))
	assert.Equal(t, 0, daysBetweenCeil(date(2025, 1, 31), date(2025, 1, 31)))
	assert.Equal(t, -5, daysBetweenCeil(date(2025, 1, 31), date(2025, 1, 26)))

	// Partial days round up
	from := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, daysBetweenCeil(from, to))
}

func TestNewEndDate_MonthClamping(t *testing.T) {
	plan := &Plan{Duration: 1, DurationUnit: DurationMonth}

	// Jan 31 + 1 month clamps to the last day of February
	assert.Equal(t, date(2025, 2, 28), NewEndDate(plan, date(2025, 1, 31), false, time.Time{}))
	assert.Equal(t, date(2024, 2, 29), NewEndDate(plan, date(2024, 1, 31), false, time.Time{}))

	// Mar 1 + 1 month is Apr 1, no clamping involved
	assert.Equal(t, date(2025, 4, 1), NewEndDate(plan, date(2025, 3, 1), false, time.Time{}))

	// Multi-month with clamping
	threeMonths := &Plan{Duration: 3, DurationUnit: DurationMonth}
	assert.Equal(t, date(2025, 4, 30), NewEndDate(threeMonths, date(2025, 1, 31), false, time.Time{}))
}

func TestNewEndDate_DayDuration(t *testing.T) {
	plan := &Plan{Duration: 14, DurationUnit: DurationDay}
	assert.Equal(t, date(2025, 1, 15), NewEndDate(plan, date(2025, 1, 1), false, time.Time{}))
}

func TestNewEndDate_ExtendCurrent(t *testing.T) {
	plan := &Plan{Duration: 1, DurationUnit: DurationMonth}

	// Extension starts where the current period ends, not at the start date
	got := NewEndDate(plan, date(2025, 1, 10), true, date(2025, 1, 31))
	assert.Equal(t, date(2025, 2, 28), got)

	// If the current period already ended, the start date wins
	got = NewEndDate(plan, date(2025, 3, 5), true, date(2025, 1, 31))
	assert.Equal(t, date(2025, 4, 5), got)
}

func TestNewEndDate_DefaultsToOneMonth(t *testing.T) {
	assert.Equal(t, date(2025, 2, 1), NewEndDate(&Plan{}, date(2025, 1, 1), false, time.Time{}))
	assert.Equal(t, date(2025, 2, 1), NewEndDate(nil, date(2025, 1, 1), false, time.Time{}))
}

func TestCurrentBillingCycle(t *testing.T) {
	inst := &Instance{StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)}
	plan := &Plan{Duration: 1, DurationUnit: DurationMonth}

	cycle := CurrentBillingCycle(inst, plan)
	assert.Equal(t, 30, cycle.TotalDays)
	assert.Equal(t, DurationMonth, cycle.DurationUnit)
}

func TestRenewalWindowFor(t *testing.T) {
	end := date(2025, 3, 31)

	assert.True(t, RenewalWindowFor(date(2025, 3, 15), end).IsActive)
	assert.True(t, RenewalWindowFor(date(2025, 3, 1), end).IsActive)
	assert.True(t, RenewalWindowFor(end, end).IsActive)
	assert.False(t, RenewalWindowFor(date(2025, 2, 1), end).IsActive)
	assert.False(t, RenewalWindowFor(date(2025, 4, 1), end).IsActive)
}

func TestIsExpiringSoon(t *testing.T) {
	assert.True(t, IsExpiringSoon(0))
	assert.True(t, IsExpiringSoon(7))
	assert.False(t, IsExpiringSoon(8))
	assert.False(t, IsExpiringSoon(-1))
}

func TestIsExpiredWithGrace(t *testing.T) {
	end := date(2025, 1, 31)

	assert.False(t, IsExpiredWithGrace(date(2025, 2, 1), end))
	assert.False(t, IsExpiredWithGrace(date(2025, 2, 3), end))
	assert.True(t, IsExpiredWithGrace(date(2025, 2, 4), end))
}

func TestValidateDates_PlanChangeOutsidePeriod(t *testing.T) {
	inst := &Instance{StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)}

	v := ValidateDates(OpUpgrade, inst, date(2025, 2, 10), date(2025, 3, 10), date(2025, 1, 15))
	assert.False(t, v.IsValid)
	assert.Len(t, v.Errors, 1)

	v = ValidateDates(OpUpgrade, inst, date(2025, 1, 15), date(2025, 2, 15), date(2025, 1, 15))
	assert.True(t, v.IsValid)
	assert.Empty(t, v.Warnings)
}

func TestValidateDates_RenewalOutsideWindowWarnsOnly(t *testing.T) {
	inst := &Instance{StartDate: date(2025, 1, 1), EndDate: date(2025, 6, 30)}

	v := ValidateDates(OpRenewal, inst, date(2025, 2, 1), date(2025, 7, 31), date(2025, 2, 1))
	assert.True(t, v.IsValid)
	assert.Len(t, v.Warnings, 1)
}

func TestValidateDates_EndBeforeEffective(t *testing.T) {
	inst := &Instance{StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)}

	v := ValidateDates(OpUpgrade, inst, date(2025, 1, 15), date(2025, 1, 10), date(2025, 1, 15))
	assert.False(t, v.IsValid)
}

func TestValidateDates_PastGraceWarns(t *testing.T) {
	inst := &Instance{StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)}

	v := ValidateDates(OpCancellation, inst, date(2025, 2, 10), time.Time{}, date(2025, 2, 10))
	assert.True(t, v.IsValid)
	// Cancellation after the end date plus the lapsed grace period
	assert.Len(t, v.Warnings, 2)
}

func TestOptimalEffectiveDate(t *testing.T) {
	now := date(2025, 1, 15)
	inst := &Instance{StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)}

	// Renewal with no explicit date starts at the current end date
	assert.Equal(t, date(2025, 1, 31), OptimalEffectiveDate(OpRenewal, inst, nil, now))

	// Unless the subscription already expired
	late := date(2025, 2, 10)
	assert.Equal(t, late, OptimalEffectiveDate(OpRenewal, inst, nil, late))

	// Requested dates in the past clamp to now
	past := date(2025, 1, 5)
	assert.Equal(t, now, OptimalEffectiveDate(OpUpgrade, inst, &past, now))

	// Future requested dates pass through
	future := date(2025, 1, 20)
	assert.Equal(t, future, OptimalEffectiveDate(OpUpgrade, inst, &future, now))

	// Nil request for non-renewals means now
	assert.Equal(t, now, OptimalEffectiveDate(OpDowngrade, inst, nil, now))
}
