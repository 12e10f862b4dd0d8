package billing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPlanNotFound         = errors.New("subscription plan not found")
	ErrPlanInactive         = errors.New("subscription plan is not active")
	ErrNoActiveSubscription = errors.New("no active subscription found for organization")
	ErrSamePlan             = errors.New("organization is already on the requested plan")
	ErrPriceMissing         = errors.New("plan has no price for the requested currency")
	ErrPriceInvalid         = errors.New("plan price is invalid")
	ErrPeriodEnded          = errors.New("cannot prorate at or after the end of the billing period")
	ErrDuplicateRequest     = errors.New("a transition with this request id was already recorded")

	// ErrTransitionConflict means a concurrent transition deactivated the
	// same active instance first. Safe to retry after re-reading state.
	ErrTransitionConflict = errors.New("subscription was modified concurrently")
)

// ValidationError aggregates every date/field violation instead of failing
// on the first one.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// LimitViolation describes one breached plan limit.
type LimitViolation struct {
	Resource string `json:"resource"`
	Current  int    `json:"current"`
	Limit    int    `json:"limit"`
}

func (v LimitViolation) String() string {
	return fmt.Sprintf("%s: %d in use, new plan allows %d", v.Resource, v.Current, v.Limit)
}

// DowngradeBlockedError carries every violated limit for UI display.
type DowngradeBlockedError struct {
	PlanID     string
	Violations []LimitViolation
}

func (e *DowngradeBlockedError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("cannot downgrade to plan %s, current usage exceeds its limits: %s",
		e.PlanID, strings.Join(parts, "; "))
}

// IsRetriable reports whether the caller may safely retry the transition
// after re-reading subscription state.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrTransitionConflict)
}
