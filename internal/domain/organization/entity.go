package organization

import "time"

// Organization is a paying tenant. All gyms, clients and collaborators hang
// off one organization, and plan limits are enforced at this level.
type Organization struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name            string    `gorm:"column:name" json:"name"`
	OwnerID         int64     `gorm:"column:owner_id;index" json:"owner_id"`
	BillingCurrency string    `gorm:"column:billing_currency" json:"billing_currency"`
	IsActive        bool      `gorm:"column:is_active" json:"is_active"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Organization) TableName() string { return "organizations" }

// Gym is a physical location run by an organization.
type Gym struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrganizationID int64     `gorm:"column:organization_id;index" json:"organization_id"`
	Name           string    `gorm:"column:name" json:"name"`
	Address        string    `gorm:"column:address" json:"address"`
	IsActive       bool      `gorm:"column:is_active" json:"is_active"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Gym) TableName() string { return "gyms" }

// Client is a gym member. Counted against the plan's client limit while
// active.
type Client struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrganizationID int64     `gorm:"column:organization_id;index" json:"organization_id"`
	GymID          int64     `gorm:"column:gym_id;index" json:"gym_id"`
	FullName       string    `gorm:"column:full_name" json:"full_name"`
	Email          string    `gorm:"column:email" json:"email"`
	Phone          string    `gorm:"column:phone" json:"phone,omitempty"`
	IsActive       bool      `gorm:"column:is_active" json:"is_active"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Client) TableName() string { return "gym_clients" }

// Collaborator is a staff user granted access to the organization's gyms.
type Collaborator struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrganizationID int64     `gorm:"column:organization_id;index" json:"organization_id"`
	GymID          int64     `gorm:"column:gym_id;index" json:"gym_id"`
	UserID         int64     `gorm:"column:user_id;index" json:"user_id"`
	Role           string    `gorm:"column:role" json:"role"`
	IsActive       bool      `gorm:"column:is_active" json:"is_active"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Collaborator) TableName() string { return "collaborators" }
