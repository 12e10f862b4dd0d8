package billing

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InstanceStatus of a subscription instance
type InstanceStatus string

const (
	StatusActive         InstanceStatus = "active"
	StatusExpired        InstanceStatus = "expired"
	StatusPaused         InstanceStatus = "paused"
	StatusPendingUpgrade InstanceStatus = "pending_upgrade"
	StatusInactive       InstanceStatus = "inactive"
)

// OperationType identifies the kind of subscription transition
type OperationType string

const (
	OpUpgrade      OperationType = "upgrade"
	OpDowngrade    OperationType = "downgrade"
	OpRenewal      OperationType = "renewal"
	OpCancellation OperationType = "cancellation"
)

// DurationUnit for plan billing duration
type DurationUnit string

const (
	DurationDay   DurationUnit = "day"
	DurationMonth DurationUnit = "month"
)

// CancelReason codes recorded on cancellation requests
type CancelReason string

const (
	ReasonTooExpensive      CancelReason = "too_expensive"
	ReasonMissingFeatures   CancelReason = "missing_features"
	ReasonSwitchingProvider CancelReason = "switching_provider"
	ReasonClosingBusiness   CancelReason = "closing_business"
	ReasonOther             CancelReason = "other"
)

// PriceMap stores per-currency plan prices as a JSON column.
// Keys are ISO 4217 currency codes.
type PriceMap map[string]decimal.Decimal

func (m PriceMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *PriceMap) Scan(value interface{}) error {
	if value == nil {
		*m = PriceMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return fmt.Errorf("unsupported price map source type %T", value)
}

// Plan is a catalog entry organizations subscribe to. Plans referenced by a
// live subscription are never physically deleted, only deactivated.
type Plan struct {
	ID          string `gorm:"column:id;primaryKey" json:"id"`
	Name        string `gorm:"column:name" json:"name"`
	Description string `gorm:"column:description" json:"description"`

	Prices           PriceMap     `gorm:"column:prices;type:json" json:"prices"`
	BillingFrequency string       `gorm:"column:billing_frequency" json:"billing_frequency"`
	Duration         int          `gorm:"column:duration" json:"duration"`
	DurationUnit     DurationUnit `gorm:"column:duration_unit" json:"duration_unit"`

	// Numeric limits enforced per organization; -1 = unlimited
	MaxGyms          int `gorm:"column:max_gyms" json:"max_gyms"`
	MaxClientsPerGym int `gorm:"column:max_clients_per_gym" json:"max_clients_per_gym"`
	MaxUsersPerGym   int `gorm:"column:max_users_per_gym" json:"max_users_per_gym"`

	IsActive  bool      `gorm:"column:is_active" json:"is_active"`
	IsPublic  bool      `gorm:"column:is_public" json:"is_public"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Plan) TableName() string { return "subscription_plans" }

// PriceFor returns the plan price for the given currency code.
func (p *Plan) PriceFor(currency string) (decimal.Decimal, bool) {
	price, ok := p.Prices[currency]
	return price, ok
}

// IsFree reports whether every configured price is zero. A plan with no
// prices at all is also treated as free.
func (p *Plan) IsFree() bool {
	for _, price := range p.Prices {
		if !price.IsZero() {
			return false
		}
	}
	return true
}

// Instance represents one billing period an organization is or was enrolled
// in. Invariant: at most one instance per organization has is_active = true,
// enforced by a partial unique index on (organization_id) WHERE is_active.
// Only the transition orchestrator writes is_active/status/end_date.
type Instance struct {
	ID             string         `gorm:"column:id;primaryKey" json:"id"`
	OrganizationID int64          `gorm:"column:organization_id;index;uniqueIndex:udx_one_active_per_org,where:is_active" json:"organization_id"`
	PlanID         string         `gorm:"column:plan_id" json:"plan_id"`
	Status         InstanceStatus `gorm:"column:status" json:"status"`
	IsActive       bool           `gorm:"column:is_active" json:"is_active"`
	StartDate      time.Time      `gorm:"column:start_date" json:"start_date"`
	EndDate        time.Time      `gorm:"column:end_date" json:"end_date"`
	CreatedAt      time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (Instance) TableName() string { return "subscription_instances" }

// IsExpired checks if the instance has passed its end date
func (i *Instance) IsExpired(now time.Time) bool {
	return now.After(i.EndDate)
}

// Operation is the immutable audit record of a subscription transition.
// Append-only; rows are never mutated or deleted.
type Operation struct {
	ID              string              `gorm:"column:id;primaryKey" json:"id"`
	OrganizationID  int64               `gorm:"column:organization_id;index" json:"organization_id"`
	FromPlanID      sql.NullString      `gorm:"column:from_plan_id" json:"from_plan_id,omitempty"`
	ToPlanID        sql.NullString      `gorm:"column:to_plan_id" json:"to_plan_id,omitempty"`
	Type            OperationType       `gorm:"column:type" json:"type"`
	ActorID         int64               `gorm:"column:actor_id" json:"actor_id"`
	EffectiveDate   time.Time           `gorm:"column:effective_date" json:"effective_date"`
	PreviousEndDate sql.NullTime        `gorm:"column:previous_end_date" json:"previous_end_date,omitempty"`
	NewEndDate      sql.NullTime        `gorm:"column:new_end_date" json:"new_end_date,omitempty"`
	Amount          decimal.NullDecimal `gorm:"column:amount;type:decimal(12,2)" json:"amount,omitempty"`
	Currency        string              `gorm:"column:currency" json:"currency,omitempty"`
	Description     string              `gorm:"column:description" json:"description"`
	RequestID       sql.NullString      `gorm:"column:request_id;uniqueIndex" json:"request_id,omitempty"`
	CreatedAt       time.Time           `gorm:"column:created_at" json:"created_at"`
}

func (Operation) TableName() string { return "subscription_operations" }

// Cancellation is the detail record attached to cancellation operations.
type Cancellation struct {
	ID               string              `gorm:"column:id;primaryKey" json:"id"`
	OperationID      string              `gorm:"column:operation_id;index" json:"operation_id"`
	SubscriptionID   string              `gorm:"column:subscription_id" json:"subscription_id"`
	OrganizationID   int64               `gorm:"column:organization_id;index" json:"organization_id"`
	Reason           CancelReason        `gorm:"column:reason" json:"reason"`
	ReasonDetails    string              `gorm:"column:reason_details" json:"reason_details,omitempty"`
	RefundAmount     decimal.NullDecimal `gorm:"column:refund_amount;type:decimal(12,2)" json:"refund_amount,omitempty"`
	Currency         string              `gorm:"column:currency" json:"currency,omitempty"`
	RetentionOffered bool                `gorm:"column:retention_offered" json:"retention_offered"`
	RetentionDetails string              `gorm:"column:retention_details" json:"retention_details,omitempty"`
	RequestedBy      int64               `gorm:"column:requested_by" json:"requested_by"`
	ProcessedBy      int64               `gorm:"column:processed_by" json:"processed_by"`
	EffectiveDate    time.Time           `gorm:"column:effective_date" json:"effective_date"`
	Immediate        bool                `gorm:"column:immediate" json:"immediate"`
	CreatedAt        time.Time           `gorm:"column:created_at" json:"created_at"`
}

func (Cancellation) TableName() string { return "subscription_cancellations" }
