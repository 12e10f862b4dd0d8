package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Repository handles persistence for subscription data. Implementations of
// Atomically must run the callback inside one all-or-nothing transaction and
// hand it a Repository bound to that transaction.
type Repository interface {
	// Plans
	ListPlans(ctx context.Context) ([]*Plan, error)
	GetPlanByID(ctx context.Context, id string) (*Plan, error)

	// Instances
	GetActiveByOrganization(ctx context.Context, organizationID int64) (*Instance, error)
	CreateInstance(ctx context.Context, inst *Instance) error
	// DeactivateInstance conditionally flips is_active off. Returns
	// ErrTransitionConflict when the row was already deactivated by a
	// concurrent transition; endDate, when non-nil, truncates the period.
	DeactivateInstance(ctx context.Context, id string, status InstanceStatus, endDate *time.Time) error
	ExpireLapsedSubscriptions(ctx context.Context, now time.Time) (int, error)

	// Audit trail
	CreateOperation(ctx context.Context, op *Operation) error
	CreateCancellation(ctx context.Context, c *Cancellation) error
	OperationExistsByRequestID(ctx context.Context, requestID string) (bool, error)
	ListOperations(ctx context.Context, organizationID int64, limit, offset int) ([]*Operation, error)

	Atomically(ctx context.Context, fn func(tx Repository) error) error
}

type repository struct {
	db        *gorm.DB
	txTimeout time.Duration
}

func NewRepository(db *gorm.DB, txTimeout time.Duration) Repository {
	if txTimeout <= 0 {
		txTimeout = 30 * time.Second
	}
	return &repository{db: db, txTimeout: txTimeout}
}

func (r *repository) ListPlans(ctx context.Context) ([]*Plan, error) {
	var plans []*Plan
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&plans).Error
	return plans, err
}

func (r *repository) GetPlanByID(ctx context.Context, id string) (*Plan, error) {
	var plan Plan
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) GetActiveByOrganization(ctx context.Context, organizationID int64) (*Instance, error) {
	var inst Instance
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND is_active = ?", organizationID, true).
		Order("created_at DESC").
		First(&inst).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &inst, nil
}

func (r *repository) CreateInstance(ctx context.Context, inst *Instance) error {
	err := r.db.WithContext(ctx).Create(inst).Error
	// The partial unique index on (organization_id) WHERE is_active backs up
	// the conditional deactivate: a second active row loses here.
	if isUniqueViolation(err, "udx_one_active_per_org", "subscription_instances.organization_id") {
		return ErrTransitionConflict
	}
	return err
}

func (r *repository) DeactivateInstance(ctx context.Context, id string, status InstanceStatus, endDate *time.Time) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"is_active":  false,
		"status":     status,
		"updated_at": now,
	}
	if endDate != nil {
		updates["end_date"] = *endDate
	}
	res := r.db.WithContext(ctx).
		Model(&Instance{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	// Zero rows means another transition won the race for this instance.
	if res.RowsAffected == 0 {
		return ErrTransitionConflict
	}
	return nil
}

func (r *repository) ExpireLapsedSubscriptions(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.AddDate(0, 0, -GracePeriodDays)
	res := r.db.WithContext(ctx).
		Model(&Instance{}).
		Where("is_active = ? AND end_date < ?", true, cutoff).
		Updates(map[string]any{
			"is_active":  false,
			"status":     StatusExpired,
			"updated_at": now,
		})
	return int(res.RowsAffected), res.Error
}

func (r *repository) CreateOperation(ctx context.Context, op *Operation) error {
	err := r.db.WithContext(ctx).Create(op).Error
	if isUniqueViolation(err, "request_id") {
		return ErrDuplicateRequest
	}
	return err
}

func (r *repository) CreateCancellation(ctx context.Context, c *Cancellation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *repository) OperationExistsByRequestID(ctx context.Context, requestID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Operation{}).
		Where("request_id = ?", requestID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListOperations(ctx context.Context, organizationID int64, limit, offset int) ([]*Operation, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var ops []*Operation
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&ops).Error
	return ops, err
}

// isUniqueViolation detects a unique constraint error on one of the named
// indexes/columns. Postgres reports the index name (SQLSTATE 23505), sqlite
// the column path, so both spellings are accepted.
func isUniqueViolation(err error, names ...string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != "23505" {
			return false
		}
		for _, name := range names {
			if strings.Contains(pgErr.ConstraintName, name) {
				return true
			}
		}
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	for _, name := range names {
		if strings.Contains(msg, name) {
			return true
		}
	}
	return false
}

func (r *repository) Atomically(ctx context.Context, fn func(tx Repository) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.txTimeout)
	defer cancel()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx, txTimeout: r.txTimeout})
	})
}
