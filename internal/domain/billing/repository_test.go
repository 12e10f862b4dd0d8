package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(
		gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Plan{}, &Instance{}, &Operation{}, &Cancellation{}))
	return db
}

func seedPlan(t *testing.T, db *gorm.DB, id string, active bool) {
	t.Helper()
	require.NoError(t, db.Create(&Plan{
		ID:           id,
		Name:         id,
		Prices:       PriceMap{"USD": decimal.NewFromInt(100)},
		Duration:     1,
		DurationUnit: DurationMonth,
		IsActive:     active,
		IsPublic:     true,
	}).Error)
}

func seedInstance(t *testing.T, db *gorm.DB, id string, orgID int64, active bool, endDate time.Time) {
	t.Helper()
	status := StatusActive
	if !active {
		status = StatusExpired
	}
	require.NoError(t, db.Create(&Instance{
		ID:             id,
		OrganizationID: orgID,
		PlanID:         "basic",
		Status:         status,
		IsActive:       active,
		StartDate:      endDate.AddDate(0, -1, 0),
		EndDate:        endDate,
	}).Error)
}

func TestRepository_GetPlanByID(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db, 0)
	ctx := context.Background()

	seedPlan(t, db, "basic", true)

	plan, err := repo.GetPlanByID(ctx, "basic")
	require.NoError(t, err)
	assert.Equal(t, "basic", plan.ID)
	assert.True(t, plan.Prices["USD"].Equal(decimal.NewFromInt(100)))

	_, err = repo.GetPlanByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestRepository_ListPlansOnlyActive(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db, 0)

	seedPlan(t, db, "basic", true)
	seedPlan(t, db, "legacy", false)

	plans, err := repo.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "basic", plans[0].ID)
}

func TestRepository_GetActiveByOrganization(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db, 0)
	ctx := context.Background()

	seedPlan(t, db, "basic", true)
	seedInstance(t, db, "inst-old", 1, false, date(2024, 12, 31))
	seedInstance(t, db, "inst-live", 1, true, date(2025, 1, 31))

	inst, err := repo.GetActiveByOrganization(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "inst-live", inst.ID)

	// No active subscription is not an error
	inst, err = repo.GetActiveByOrganization(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, inst)
}

func TestRepository_DeactivateInstanceConditional(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db, 0)
	ctx := context.Background()

	seedPlan(t, db, "basic", true)
	seedInstance(t, db, "inst-1", 1, true, date(2025, 1, 31))

	require.NoError(t, repo.DeactivateInstance(ctx, "inst-1", StatusExpired, nil))

	var inst Instance
	require.NoError(t, db.Where("id = ?", "inst-1").First(&inst).Error)
	assert.False(t, inst.IsActive)
	assert.Equal(t, StatusExpired, inst.Status)

	// Second deactivation loses the conditional update
	err := repo.DeactivateInstance(ctx, "inst-1", StatusExpired, nil)
	assert.ErrorIs(t, err, ErrTransitionConflict)
}

func TestRepository_DeactivateInstanceTruncatesEndDate(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db, 0)
	ctx := context.Background()

	seedPlan(t, db, "basic", true)
	seedInstance(t, db, "inst-1", 1, true, date(2025, 1, 31))

	cutoff := date(2025, 1, 21)
	require.NoError(t, repo.DeactivateInstance(ctx, "inst-1", StatusInactive, &cutoff))

	var inst Instance
	require.NoError(t, db.Where("id = ?", "inst-1").First(&inst).Error)
	assert.Equal(t, StatusInactive, inst.Status)
	assert.True(t, inst.EndDate.Equal(cutoff))
}

func TestRepository_SecondActiveInstanceRejected(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db, 0)
	ctx := context.Background()

	seedPlan(t, db, "basic", true)
	seedInstance(t, db, "inst-1", 1, true, date(2025, 1, 31))

	// The partial unique index allows only one active instance per org
	err := repo.CreateInstance(ctx, &Instance{
		ID:             "inst-2",
		OrganizationID: 1,
		PlanID:         "basic",
		Status:         StatusActive,
		IsActive:       true,
		StartDate:      date(2025, 1, 15),
		EndDate:        date(2025, 2, 15),
	})
	assert.ErrorIs(t, err, ErrTransitionConflict)

	// Inactive history rows are unaffected
	require.NoError(t, repo.CreateInstance(ctx, &Instance{
		ID:             "inst-3",
		OrganizationID: 1,
		PlanID:         "basic",
		Status:         StatusExpired,
		IsActive:       false,
		StartDate:      date(2024, 12, 1),
		EndDate:        date(2024, 12, 31),
	}))
}

func TestRepository_DuplicateRequestIDRejected(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db, 0)
	ctx := context.Background()

	op := &Operation{
		ID:             "op-1",
		OrganizationID: 1,
		Type:           OpRenewal,
		EffectiveDate:  date(2025, 1, 21),
		RequestID:      nullString("req-1"),
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.CreateOperation(ctx, op))

	dup := &Operation{
		ID:             "op-2",
		OrganizationID: 1,
		Type:           OpRenewal,
		EffectiveDate:  date(2025, 1, 22),
		RequestID:      nullString("req-1"),
		CreatedAt:      time.Now().UTC(),
	}
	assert.ErrorIs(t, repo.CreateOperation(ctx, dup), ErrDuplicateRequest)
}

func TestRepository_ExpireLapsedSubscriptions(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db, 0)
	ctx := context.Background()
	now := date(2025, 2, 10)

	seedPlan(t, db, "basic", true)
	// Ended Jan 31, grace over: expires
	seedInstance(t, db, "inst-lapsed", 1, true, date(2025, 1, 31))
	// Ended Feb 9, still in grace: survives
	seedInstance(t, db, "inst-grace", 2, true, date(2025, 2, 9))
	// Running period: survives
	seedInstance(t, db, "inst-live", 3, true, date(2025, 3, 1))

	expired, err := repo.ExpireLapsedSubscriptions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	var inst Instance
	require.NoError(t, db.Where("id = ?", "inst-lapsed").First(&inst).Error)
	assert.False(t, inst.IsActive)
	assert.Equal(t, StatusExpired, inst.Status)

	var graceInst Instance
	require.NoError(t, db.Where("id = ?", "inst-grace").First(&graceInst).Error)
	assert.True(t, graceInst.IsActive)
}

func TestRepository_OperationRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db, 0)
	ctx := context.Background()

	op := &Operation{
		ID:             "op-1",
		OrganizationID: 1,
		Type:           OpUpgrade,
		ActorID:        7,
		EffectiveDate:  date(2025, 1, 21),
		Amount:         decimal.NullDecimal{Decimal: decimal.RequireFromString("33.34"), Valid: true},
		Currency:       "USD",
		Description:    "upgrade",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.CreateOperation(ctx, op))

	ops, err := repo.ListOperations(ctx, 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.True(t, ops[0].Amount.Decimal.Equal(decimal.RequireFromString("33.34")))
}

func TestRepository_OperationExistsByRequestID(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db, 0)
	ctx := context.Background()

	op := &Operation{
		ID:             "op-1",
		OrganizationID: 1,
		Type:           OpRenewal,
		EffectiveDate:  date(2025, 1, 21),
		RequestID:      nullString("req-1"),
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.CreateOperation(ctx, op))

	exists, err := repo.OperationExistsByRequestID(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.OperationExistsByRequestID(ctx, "req-2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepository_AtomicallyRollsBack(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db, 0)
	ctx := context.Background()

	seedPlan(t, db, "basic", true)
	seedInstance(t, db, "inst-1", 1, true, date(2025, 1, 31))

	boom := errors.New("boom")
	err := repo.Atomically(ctx, func(tx Repository) error {
		if err := tx.DeactivateInstance(ctx, "inst-1", StatusExpired, nil); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// Deactivation rolled back with the failing transaction
	inst, err := repo.GetActiveByOrganization(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "inst-1", inst.ID)
}
