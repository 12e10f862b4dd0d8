package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UsageCounter is implemented by the organization repository to report
// current resource usage for downgrade limit checks.
type UsageCounter interface {
	CountGyms(ctx context.Context, organizationID int64) (int, error)
	CountClients(ctx context.Context, organizationID int64) (int, error)
	CountCollaborators(ctx context.Context, organizationID int64) (int, error)
}

// Orchestrator coordinates subscription plan transitions. It validates the
// requested operation against the current subscription and organizational
// usage, delegates date and money math to the pure calculators, and executes
// the transition as a single atomic unit with an immutable operation record.
type Orchestrator struct {
	repo            Repository
	usage           UsageCounter
	audit           AuditSink
	defaultCurrency string
	now             func() time.Time
}

func NewOrchestrator(repo Repository, usage UsageCounter, audit AuditSink, defaultCurrency string) *Orchestrator {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &Orchestrator{
		repo:            repo,
		usage:           usage,
		audit:           audit,
		defaultCurrency: defaultCurrency,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// TransitionResult is returned by every successful transition. Warnings are
// informational and never block the operation.
type TransitionResult struct {
	Operation    *Operation          `json:"operation"`
	Instance     *Instance           `json:"instance,omitempty"`
	Proration    *ProrationResult    `json:"proration,omitempty"`
	Refund       *CancellationRefund `json:"refund,omitempty"`
	Cancellation *Cancellation       `json:"cancellation,omitempty"`
	Warnings     []string            `json:"warnings,omitempty"`
}

// CurrentSubscription returns the organization's active instance and plan.
func (o *Orchestrator) CurrentSubscription(ctx context.Context, organizationID int64) (*Instance, *Plan, error) {
	inst, err := o.repo.GetActiveByOrganization(ctx, organizationID)
	if err != nil {
		return nil, nil, err
	}
	if inst == nil {
		return nil, nil, ErrNoActiveSubscription
	}
	plan, err := o.repo.GetPlanByID(ctx, inst.PlanID)
	if err != nil {
		return nil, nil, err
	}
	return inst, plan, nil
}

// PreviewProration computes a plan-change proration without touching state.
func (o *Orchestrator) PreviewProration(ctx context.Context, organizationID int64, newPlanID, currency string, changeDate *time.Time) (*ProrationResult, error) {
	inst, currentPlan, err := o.CurrentSubscription(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	newPlan, err := o.loadTargetPlan(ctx, newPlanID)
	if err != nil {
		return nil, err
	}
	date := o.now()
	if changeDate != nil {
		date = *changeDate
	}
	return CalculateProration(inst, currentPlan, newPlan, o.currencyOr(currency), date)
}

// ListOperations returns the organization's transition history, newest first.
func (o *Orchestrator) ListOperations(ctx context.Context, organizationID int64, limit, offset int) ([]*Operation, error) {
	return o.repo.ListOperations(ctx, organizationID, limit, offset)
}

// Upgrade moves the organization onto a higher plan. The new period always
// extends from the current subscription's end date.
func (o *Orchestrator) Upgrade(ctx context.Context, organizationID, actorID int64, req *UpgradeRequest) (*TransitionResult, error) {
	return o.changePlan(ctx, OpUpgrade, organizationID, actorID, &planChange{
		newPlanID:        req.NewPlanID,
		effectiveDate:    req.EffectiveDate,
		prorationEnabled: boolOrDefault(req.ProrationEnabled, true),
		currency:         req.Currency,
		requestID:        req.RequestID,
	})
}

// Downgrade moves the organization onto a lower plan after verifying that
// current usage fits within the target plan's limits. Every breached limit
// is reported, not just the first.
func (o *Orchestrator) Downgrade(ctx context.Context, organizationID, actorID int64, req *DowngradeRequest) (*TransitionResult, error) {
	newPlan, err := o.loadTargetPlan(ctx, req.NewPlanID)
	if err != nil {
		return nil, err
	}
	if err := o.checkDowngradeLimits(ctx, organizationID, newPlan); err != nil {
		return nil, err
	}
	return o.changePlan(ctx, OpDowngrade, organizationID, actorID, &planChange{
		newPlanID:        req.NewPlanID,
		effectiveDate:    req.EffectiveDate,
		prorationEnabled: boolOrDefault(req.ProrationEnabled, true),
		currency:         req.Currency,
		requestID:        req.RequestID,
	})
}

// Renew extends the subscription, by default onto the same plan starting
// where the current period ends.
func (o *Orchestrator) Renew(ctx context.Context, organizationID, actorID int64, req *RenewRequest) (*TransitionResult, error) {
	now := o.now()
	inst, currentPlan, err := o.CurrentSubscription(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	planID := req.PlanID
	if planID == "" {
		planID = inst.PlanID
	}
	plan, err := o.loadTargetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	// Duration overrides apply to this renewal only, not to the catalog plan.
	renewalPlan := *plan
	if req.Duration != nil && *req.Duration > 0 {
		renewalPlan.Duration = *req.Duration
	}
	if req.DurationUnit != nil {
		renewalPlan.DurationUnit = *req.DurationUnit
	}

	if req.RequestID != "" {
		if err := o.checkRequestID(ctx, req.RequestID); err != nil {
			return nil, err
		}
	}

	effective := OptimalEffectiveDate(OpRenewal, inst, req.EffectiveDate, now)
	extendCurrent := boolOrDefault(req.ExtendCurrent, true)
	newEnd := NewEndDate(&renewalPlan, effective, extendCurrent, inst.EndDate)

	v := ValidateDates(OpRenewal, inst, effective, newEnd, now)
	if !v.IsValid {
		return nil, &ValidationError{Errors: v.Errors}
	}

	currency := o.currencyOr(req.Currency)
	pricing, err := CalculateRenewalPricing(inst, &renewalPlan, currency, &effective)
	if err != nil {
		return nil, err
	}

	startDate := effective
	if extendCurrent && inst.EndDate.After(startDate) {
		startDate = inst.EndDate
	}
	next := o.newInstance(organizationID, plan.ID, startDate, newEnd)
	op := &Operation{
		ID:              uuid.New().String(),
		OrganizationID:  organizationID,
		FromPlanID:      sql.NullString{String: currentPlan.ID, Valid: true},
		ToPlanID:        sql.NullString{String: plan.ID, Valid: true},
		Type:            OpRenewal,
		ActorID:         actorID,
		EffectiveDate:   effective,
		PreviousEndDate: sql.NullTime{Time: inst.EndDate, Valid: true},
		NewEndDate:      sql.NullTime{Time: newEnd, Valid: true},
		Amount:          decimal.NullDecimal{Decimal: pricing.PlanPrice, Valid: true},
		Currency:        currency,
		Description:     pricing.Description,
		RequestID:       nullString(req.RequestID),
		CreatedAt:       o.now(),
	}

	if err := o.executeTransition(ctx, inst, next, op, nil); err != nil {
		return nil, err
	}
	return &TransitionResult{Operation: op, Instance: next, Warnings: v.Warnings}, nil
}

// Cancel records a cancellation. Immediate cancellations deactivate the
// instance now and truncate the billable period to the effective date;
// end-of-period cancellations leave the instance untouched and only append
// the cancellation and operation records.
func (o *Orchestrator) Cancel(ctx context.Context, organizationID, actorID int64, req *CancelSubscriptionRequest) (*TransitionResult, error) {
	now := o.now()
	inst, plan, err := o.CurrentSubscription(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	if req.RequestID != "" {
		if err := o.checkRequestID(ctx, req.RequestID); err != nil {
			return nil, err
		}
	}

	effective := OptimalEffectiveDate(OpCancellation, inst, req.EffectiveDate, now)
	v := ValidateDates(OpCancellation, inst, effective, time.Time{}, now)
	if !v.IsValid {
		return nil, &ValidationError{Errors: v.Errors}
	}

	currency := o.currencyOr(req.Currency)
	var refund *CancellationRefund
	if boolOrDefault(req.RefundEnabled, true) && !plan.IsFree() {
		refund, err = CalculateCancellationRefund(inst, plan, currency, effective)
		if err != nil {
			return nil, err
		}
	}

	recordedEnd := inst.EndDate
	if req.Immediate {
		recordedEnd = effective
	}

	op := &Operation{
		ID:              uuid.New().String(),
		OrganizationID:  organizationID,
		FromPlanID:      sql.NullString{String: plan.ID, Valid: true},
		Type:            OpCancellation,
		ActorID:         actorID,
		EffectiveDate:   effective,
		PreviousEndDate: sql.NullTime{Time: inst.EndDate, Valid: true},
		NewEndDate:      sql.NullTime{Time: recordedEnd, Valid: true},
		Currency:        currency,
		Description:     fmt.Sprintf("Cancellation of plan %s (%s)", plan.Name, req.Reason),
		RequestID:       nullString(req.RequestID),
		CreatedAt:       o.now(),
	}
	if refund != nil {
		op.Amount = decimal.NullDecimal{Decimal: refund.RefundAmount, Valid: true}
	}

	cancellation := &Cancellation{
		ID:               uuid.New().String(),
		OperationID:      op.ID,
		SubscriptionID:   inst.ID,
		OrganizationID:   organizationID,
		Reason:           req.Reason,
		ReasonDetails:    req.ReasonDetails,
		Currency:         currency,
		RetentionOffered: req.RetentionOffered,
		RetentionDetails: req.RetentionDetails,
		RequestedBy:      actorID,
		ProcessedBy:      actorID,
		EffectiveDate:    effective,
		Immediate:        req.Immediate,
		CreatedAt:        o.now(),
	}
	if refund != nil {
		cancellation.RefundAmount = decimal.NullDecimal{Decimal: refund.RefundAmount, Valid: true}
	}

	err = o.repo.Atomically(ctx, func(tx Repository) error {
		if req.Immediate {
			if err := tx.DeactivateInstance(ctx, inst.ID, StatusInactive, &effective); err != nil {
				return err
			}
		}
		if err := tx.CreateOperation(ctx, op); err != nil {
			return err
		}
		return tx.CreateCancellation(ctx, cancellation)
	})
	if err != nil {
		return nil, err
	}

	o.emitAudit(op)
	return &TransitionResult{
		Operation:    op,
		Refund:       refund,
		Cancellation: cancellation,
		Warnings:     v.Warnings,
	}, nil
}

// planChange carries the shared inputs of upgrade and downgrade.
type planChange struct {
	newPlanID        string
	effectiveDate    *time.Time
	prorationEnabled bool
	currency         string
	requestID        string
}

func (o *Orchestrator) changePlan(ctx context.Context, opType OperationType, organizationID, actorID int64, req *planChange) (*TransitionResult, error) {
	now := o.now()
	inst, currentPlan, err := o.CurrentSubscription(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	newPlan, err := o.loadTargetPlan(ctx, req.newPlanID)
	if err != nil {
		return nil, err
	}
	if newPlan.ID == currentPlan.ID {
		return nil, ErrSamePlan
	}

	if req.requestID != "" {
		if err := o.checkRequestID(ctx, req.requestID); err != nil {
			return nil, err
		}
	}

	effective := OptimalEffectiveDate(opType, inst, req.effectiveDate, now)
	newEnd := NewEndDate(newPlan, effective, true, inst.EndDate)

	v := ValidateDates(opType, inst, effective, newEnd, now)
	if !v.IsValid {
		return nil, &ValidationError{Errors: v.Errors}
	}

	currency := o.currencyOr(req.currency)
	var proration *ProrationResult
	if req.prorationEnabled {
		proration, err = CalculateProration(inst, currentPlan, newPlan, currency, effective)
		if err != nil {
			return nil, err
		}
	}

	next := o.newInstance(organizationID, newPlan.ID, effective, newEnd)
	op := &Operation{
		ID:              uuid.New().String(),
		OrganizationID:  organizationID,
		FromPlanID:      sql.NullString{String: currentPlan.ID, Valid: true},
		ToPlanID:        sql.NullString{String: newPlan.ID, Valid: true},
		Type:            opType,
		ActorID:         actorID,
		EffectiveDate:   effective,
		PreviousEndDate: sql.NullTime{Time: inst.EndDate, Valid: true},
		NewEndDate:      sql.NullTime{Time: newEnd, Valid: true},
		Currency:        currency,
		Description:     fmt.Sprintf("%s from plan %s to plan %s", opType, currentPlan.Name, newPlan.Name),
		RequestID:       nullString(req.requestID),
		CreatedAt:       o.now(),
	}
	if proration != nil {
		op.Amount = decimal.NullDecimal{Decimal: proration.NetAmount, Valid: true}
		op.Description = proration.Description
	}

	if err := o.executeTransition(ctx, inst, next, op, nil); err != nil {
		return nil, err
	}
	return &TransitionResult{
		Operation: op,
		Instance:  next,
		Proration: proration,
		Warnings:  v.Warnings,
	}, nil
}

// executeTransition performs the atomic three-step transition: deactivate
// the current instance, create its successor, append the operation record.
// On any failure no partial state is visible.
func (o *Orchestrator) executeTransition(ctx context.Context, current, next *Instance, op *Operation, cancellation *Cancellation) error {
	err := o.repo.Atomically(ctx, func(tx Repository) error {
		if err := tx.DeactivateInstance(ctx, current.ID, StatusExpired, nil); err != nil {
			return err
		}
		if err := tx.CreateInstance(ctx, next); err != nil {
			return err
		}
		if err := tx.CreateOperation(ctx, op); err != nil {
			return err
		}
		if cancellation != nil {
			return tx.CreateCancellation(ctx, cancellation)
		}
		return nil
	})
	if err != nil {
		return err
	}
	o.emitAudit(op)
	return nil
}

func (o *Orchestrator) emitAudit(op *Operation) {
	if o.audit == nil {
		return
	}
	event := AuditEvent{
		OperationID:    op.ID,
		OrganizationID: op.OrganizationID,
		Type:           op.Type,
		FromPlanID:     op.FromPlanID.String,
		ToPlanID:       op.ToPlanID.String,
		Currency:       op.Currency,
		ActorID:        op.ActorID,
		OccurredAt:     op.CreatedAt,
	}
	if op.Amount.Valid {
		event.Amount = op.Amount.Decimal.String()
	}
	o.audit.Record(event)
}

func (o *Orchestrator) loadTargetPlan(ctx context.Context, planID string) (*Plan, error) {
	plan, err := o.repo.GetPlanByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrPlanInactive, planID)
	}
	return plan, nil
}

func (o *Orchestrator) checkDowngradeLimits(ctx context.Context, organizationID int64, plan *Plan) error {
	var violations []LimitViolation

	gyms, err := o.usage.CountGyms(ctx, organizationID)
	if err != nil {
		return err
	}
	if plan.MaxGyms >= 0 && gyms > plan.MaxGyms {
		violations = append(violations, LimitViolation{Resource: "gyms", Current: gyms, Limit: plan.MaxGyms})
	}

	if plan.MaxGyms >= 0 && plan.MaxClientsPerGym >= 0 {
		clients, err := o.usage.CountClients(ctx, organizationID)
		if err != nil {
			return err
		}
		limit := plan.MaxClientsPerGym * plan.MaxGyms
		if clients > limit {
			violations = append(violations, LimitViolation{Resource: "clients", Current: clients, Limit: limit})
		}
	}

	if plan.MaxGyms >= 0 && plan.MaxUsersPerGym >= 0 {
		collaborators, err := o.usage.CountCollaborators(ctx, organizationID)
		if err != nil {
			return err
		}
		limit := plan.MaxUsersPerGym * plan.MaxGyms
		if collaborators > limit {
			violations = append(violations, LimitViolation{Resource: "collaborators", Current: collaborators, Limit: limit})
		}
	}

	if len(violations) > 0 {
		return &DowngradeBlockedError{PlanID: plan.ID, Violations: violations}
	}
	return nil
}

func (o *Orchestrator) checkRequestID(ctx context.Context, requestID string) error {
	exists, err := o.repo.OperationExistsByRequestID(ctx, requestID)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateRequest
	}
	return nil
}

func (o *Orchestrator) newInstance(organizationID int64, planID string, startDate, endDate time.Time) *Instance {
	now := o.now()
	return &Instance{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		PlanID:         planID,
		Status:         StatusActive,
		IsActive:       true,
		StartDate:      startDate,
		EndDate:        endDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (o *Orchestrator) currencyOr(currency string) string {
	if currency != "" {
		return currency
	}
	return o.defaultCurrency
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
