package billing

import "time"

// UpgradeRequest moves the organization onto a higher plan.
type UpgradeRequest struct {
	NewPlanID        string     `json:"new_plan_id" binding:"required"`
	EffectiveDate    *time.Time `json:"effective_date"`
	ProrationEnabled *bool      `json:"proration_enabled"`
	Currency         string     `json:"currency"`
	RequestID        string     `json:"request_id"`
}

// DowngradeRequest moves the organization onto a lower plan.
type DowngradeRequest struct {
	NewPlanID        string     `json:"new_plan_id" binding:"required"`
	EffectiveDate    *time.Time `json:"effective_date"`
	ProrationEnabled *bool      `json:"proration_enabled"`
	Currency         string     `json:"currency"`
	RequestID        string     `json:"request_id"`
}

// RenewRequest extends the subscription. PlanID defaults to the current
// plan; Duration/DurationUnit override the plan's period for this renewal
// only.
type RenewRequest struct {
	PlanID        string        `json:"plan_id"`
	Duration      *int          `json:"duration" binding:"omitempty,gt=0"`
	DurationUnit  *DurationUnit `json:"duration_unit" binding:"omitempty,oneof=day month"`
	EffectiveDate *time.Time    `json:"effective_date"`
	ExtendCurrent *bool         `json:"extend_current"`
	Currency      string        `json:"currency"`
	RequestID     string        `json:"request_id"`
}

// CancelSubscriptionRequest cancels the active subscription, either
// immediately or at the end of the paid period.
type CancelSubscriptionRequest struct {
	Reason           CancelReason `json:"reason" binding:"required,oneof=too_expensive missing_features switching_provider closing_business other"`
	ReasonDetails    string       `json:"reason_details"`
	EffectiveDate    *time.Time   `json:"effective_date"`
	Immediate        bool         `json:"immediate"`
	RefundEnabled    *bool        `json:"refund_enabled"`
	RetentionOffered bool         `json:"retention_offered"`
	RetentionDetails string       `json:"retention_details"`
	Currency         string       `json:"currency"`
	RequestID        string       `json:"request_id"`
}

// ProrationPreviewRequest asks for the money outcome of a plan change
// without executing it.
type ProrationPreviewRequest struct {
	NewPlanID  string     `json:"new_plan_id" binding:"required"`
	ChangeDate *time.Time `json:"change_date"`
	Currency   string     `json:"currency"`
}

// SubscriptionStatusResponse is the read model for the current subscription.
type SubscriptionStatusResponse struct {
	Instance            *Instance     `json:"instance"`
	Plan                *Plan         `json:"plan"`
	BillingPeriod       BillingCycle  `json:"billing_period"`
	Renewal             RenewalWindow `json:"renewal"`
	DaysUntilExpiration int           `json:"days_until_expiration"`
	ExpiringSoon        bool          `json:"expiring_soon"`
	PastGracePeriod     bool          `json:"past_grace_period"`
}
