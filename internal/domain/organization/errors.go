package organization

import (
	"errors"
	"fmt"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrGymNotFound          = errors.New("gym not found")
	ErrNoSubscription       = errors.New("organization has no active subscription")
)

// LimitReachedError means the plan's limit for a resource is exhausted.
type LimitReachedError struct {
	Resource string
	Current  int
	Limit    int
}

func (e *LimitReachedError) Error() string {
	return fmt.Sprintf("plan limit reached for %s: %d of %d in use", e.Resource, e.Current, e.Limit)
}
