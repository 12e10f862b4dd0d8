package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// moneyScale is the minimum number of decimal places on every money amount.
const moneyScale = 2

// ProrationResult is the outcome of a mid-cycle plan change calculation.
// NetAmount = ChargeAmount - CreditAmount; positive means an additional
// charge, negative a refund.
type ProrationResult struct {
	RemainingDays    int             `json:"remaining_days"`
	TotalDays        int             `json:"total_days"`
	UnusedPercentage decimal.Decimal `json:"unused_percentage"`
	CurrentPlanPrice decimal.Decimal `json:"current_plan_price"`
	NewPlanPrice     decimal.Decimal `json:"new_plan_price"`
	CreditAmount     decimal.Decimal `json:"credit_amount"`
	ChargeAmount     decimal.Decimal `json:"charge_amount"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	Currency         string          `json:"currency"`
	Description      string          `json:"description"`
}

// CancellationRefund is the outcome of a cancellation refund calculation.
type CancellationRefund struct {
	RefundAmount  decimal.Decimal `json:"refund_amount"`
	RemainingDays int             `json:"remaining_days"`
	TotalDays     int             `json:"total_days"`
	Currency      string          `json:"currency"`
	Description   string          `json:"description"`
}

// RenewalPricing describes the price and period of a renewal.
type RenewalPricing struct {
	PlanPrice     decimal.Decimal `json:"plan_price"`
	NewEndDate    time.Time       `json:"new_end_date"`
	BillingPeriod BillingCycle    `json:"billing_period"`
	Currency      string          `json:"currency"`
	Description   string          `json:"description"`
}

// planPrice resolves and validates a plan's price for a currency. Missing or
// negative prices are rejected rather than defaulted to zero.
func planPrice(plan *Plan, currency string) (decimal.Decimal, error) {
	price, ok := plan.PriceFor(currency)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: plan %s, currency %s", ErrPriceMissing, plan.ID, currency)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: plan %s has negative %s price %s",
			ErrPriceInvalid, plan.ID, currency, price)
	}
	return price, nil
}

// CalculateProration computes the credit for the unused part of the current
// plan and the charge for the new plan over the remaining period. Pure; all
// arithmetic is decimal, never floating point.
func CalculateProration(inst *Instance, currentPlan, newPlan *Plan, currency string, changeDate time.Time) (*ProrationResult, error) {
	if newPlan.ID == currentPlan.ID {
		return nil, ErrSamePlan
	}
	if changeDate.Before(inst.StartDate) || changeDate.After(inst.EndDate) {
		return nil, &ValidationError{Errors: []string{fmt.Sprintf(
			"change date %s must be within the current billing period (%s to %s)",
			changeDate.Format("2006-01-02"),
			inst.StartDate.Format("2006-01-02"),
			inst.EndDate.Format("2006-01-02"))}}
	}

	currentPrice, err := planPrice(currentPlan, currency)
	if err != nil {
		return nil, err
	}
	newPrice, err := planPrice(newPlan, currency)
	if err != nil {
		return nil, err
	}

	cycle := CurrentBillingCycle(inst, currentPlan)
	if cycle.TotalDays <= 0 {
		return nil, &ValidationError{Errors: []string{"current billing period has zero length"}}
	}

	remainingDays := daysBetweenCeil(changeDate, inst.EndDate)
	if remainingDays <= 0 {
		return nil, ErrPeriodEnded
	}

	unused := decimal.NewFromInt(int64(remainingDays)).Div(decimal.NewFromInt(int64(cycle.TotalDays)))
	credit := currentPrice.Mul(unused).Round(moneyScale)
	charge := newPrice.Mul(unused).Round(moneyScale)
	net := charge.Sub(credit)

	direction := "additional charge"
	if net.IsNegative() {
		direction = "refund"
	}
	description := fmt.Sprintf(
		"Plan change from %s to %s with %d of %d days unused (%s%%): credit %s, charge %s, %s %s %s",
		currentPlan.Name, newPlan.Name, remainingDays, cycle.TotalDays,
		unused.Mul(decimal.NewFromInt(100)).Round(moneyScale),
		credit, charge, direction, net.Abs(), currency)

	return &ProrationResult{
		RemainingDays:    remainingDays,
		TotalDays:        cycle.TotalDays,
		UnusedPercentage: unused,
		CurrentPlanPrice: currentPrice,
		NewPlanPrice:     newPrice,
		CreditAmount:     credit,
		ChargeAmount:     charge,
		NetAmount:        net,
		Currency:         currency,
		Description:      description,
	}, nil
}

// CalculateCancellationRefund computes the refund for the unused part of the
// current period. Cancelling at or after the end date yields a zero refund
// with an explanatory description, not an error.
func CalculateCancellationRefund(inst *Instance, plan *Plan, currency string, cancellationDate time.Time) (*CancellationRefund, error) {
	price, err := planPrice(plan, currency)
	if err != nil {
		return nil, err
	}

	cycle := CurrentBillingCycle(inst, plan)
	remainingDays := daysBetweenCeil(cancellationDate, inst.EndDate)
	if remainingDays <= 0 {
		return &CancellationRefund{
			RefundAmount:  decimal.Zero.Round(moneyScale),
			RemainingDays: 0,
			TotalDays:     cycle.TotalDays,
			Currency:      currency,
			Description:   "no refund: the billing period has already ended",
		}, nil
	}
	if cycle.TotalDays <= 0 {
		return nil, &ValidationError{Errors: []string{"current billing period has zero length"}}
	}

	unused := decimal.NewFromInt(int64(remainingDays)).Div(decimal.NewFromInt(int64(cycle.TotalDays)))
	refund := price.Mul(unused).Round(moneyScale)

	return &CancellationRefund{
		RefundAmount:  refund,
		RemainingDays: remainingDays,
		TotalDays:     cycle.TotalDays,
		Currency:      currency,
		Description: fmt.Sprintf("Refund of %s %s for %d of %d unused days of plan %s",
			refund, currency, remainingDays, cycle.TotalDays, plan.Name),
	}, nil
}

// CalculateRenewalPricing prices a renewal onto the given plan. The renewal
// date defaults to the current end date so the periods join seamlessly.
func CalculateRenewalPricing(inst *Instance, renewalPlan *Plan, currency string, renewalDate *time.Time) (*RenewalPricing, error) {
	price, err := planPrice(renewalPlan, currency)
	if err != nil {
		return nil, err
	}

	effective := inst.EndDate
	if renewalDate != nil {
		effective = *renewalDate
	}

	newEnd := NewEndDate(renewalPlan, effective, true, inst.EndDate)
	duration, unit := planDuration(renewalPlan)
	period := BillingCycle{
		StartDate:    effective,
		EndDate:      newEnd,
		Duration:     duration,
		DurationUnit: unit,
		TotalDays:    daysBetweenCeil(effective, newEnd),
	}

	// The day figure for months here is a display estimate only; actual end
	// dates always use calendar-month arithmetic.
	approxDays := duration
	if unit == DurationMonth {
		approxDays = duration * 30
	}
	description := fmt.Sprintf("Renewal of plan %s for %d %s(s) (~%d days) at %s %s",
		renewalPlan.Name, duration, unit, approxDays, price, currency)

	return &RenewalPricing{
		PlanPrice:     price,
		NewEndDate:    newEnd,
		BillingPeriod: period,
		Currency:      currency,
		Description:   description,
	}, nil
}
