package organization

import (
	"context"
	"errors"
	"time"

	"gymdesk/internal/domain/billing"
)

// SubscriptionSource resolves the organization's active subscription and
// plan. Implemented by the billing orchestrator.
type SubscriptionSource interface {
	CurrentSubscription(ctx context.Context, organizationID int64) (*billing.Instance, *billing.Plan, error)
}

// ResourceUsage is one resource's position against its plan limit.
// Limit -1 means unlimited; Remaining is meaningless in that case.
type ResourceUsage struct {
	Current   int  `json:"current"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited"`
}

// UsageReport summarizes the organization's usage against its plan.
type UsageReport struct {
	PlanID        string        `json:"plan_id"`
	PlanName      string        `json:"plan_name"`
	Gyms          ResourceUsage `json:"gyms"`
	Clients       ResourceUsage `json:"clients"`
	Collaborators ResourceUsage `json:"collaborators"`
}

// Service enforces plan limits on resource creation and reports usage.
type Service struct {
	repo          Repository
	subscriptions SubscriptionSource
}

func NewService(repo Repository, subscriptions SubscriptionSource) *Service {
	return &Service{repo: repo, subscriptions: subscriptions}
}

func (s *Service) Get(ctx context.Context, organizationID int64) (*Organization, error) {
	return s.repo.GetByID(ctx, organizationID)
}

// Usage returns current counts next to the plan's limits.
func (s *Service) Usage(ctx context.Context, organizationID int64) (*UsageReport, error) {
	_, plan, err := s.currentPlan(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	gyms, err := s.repo.CountGyms(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	clients, err := s.repo.CountClients(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	collaborators, err := s.repo.CountCollaborators(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	return &UsageReport{
		PlanID:        plan.ID,
		PlanName:      plan.Name,
		Gyms:          usageFor(gyms, plan.MaxGyms),
		Clients:       usageFor(clients, scaledLimit(plan.MaxClientsPerGym, plan.MaxGyms)),
		Collaborators: usageFor(collaborators, scaledLimit(plan.MaxUsersPerGym, plan.MaxGyms)),
	}, nil
}

// CreateGym adds a gym if the plan's gym limit allows one more.
func (s *Service) CreateGym(ctx context.Context, organizationID int64, req *CreateGymRequest) (*Gym, error) {
	_, plan, err := s.currentPlan(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if err := s.checkLimit(ctx, "gyms", s.repo.CountGyms, organizationID, plan.MaxGyms); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	gym := &Gym{
		OrganizationID: organizationID,
		Name:           req.Name,
		Address:        req.Address,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateGym(ctx, gym); err != nil {
		return nil, err
	}
	return gym, nil
}

func (s *Service) ListGyms(ctx context.Context, organizationID int64) ([]*Gym, error) {
	return s.repo.ListGyms(ctx, organizationID)
}

func (s *Service) DeactivateGym(ctx context.Context, organizationID, gymID int64) error {
	return s.repo.DeactivateGym(ctx, organizationID, gymID)
}

// CreateClient adds a client to a gym if the plan's client limit allows one
// more across the organization.
func (s *Service) CreateClient(ctx context.Context, organizationID, gymID int64, req *CreateClientRequest) (*Client, error) {
	if _, err := s.repo.GetGymByID(ctx, organizationID, gymID); err != nil {
		return nil, err
	}
	_, plan, err := s.currentPlan(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	limit := scaledLimit(plan.MaxClientsPerGym, plan.MaxGyms)
	if err := s.checkLimit(ctx, "clients", s.repo.CountClients, organizationID, limit); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	client := &Client{
		OrganizationID: organizationID,
		GymID:          gymID,
		FullName:       req.FullName,
		Email:          req.Email,
		Phone:          req.Phone,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateClient(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *Service) ListClients(ctx context.Context, organizationID, gymID int64) ([]*Client, error) {
	return s.repo.ListClients(ctx, organizationID, gymID)
}

// CreateCollaborator grants a user staff access if the plan's user limit
// allows one more.
func (s *Service) CreateCollaborator(ctx context.Context, organizationID int64, req *CreateCollaboratorRequest) (*Collaborator, error) {
	if _, err := s.repo.GetGymByID(ctx, organizationID, req.GymID); err != nil {
		return nil, err
	}
	_, plan, err := s.currentPlan(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	limit := scaledLimit(plan.MaxUsersPerGym, plan.MaxGyms)
	if err := s.checkLimit(ctx, "collaborators", s.repo.CountCollaborators, organizationID, limit); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	collaborator := &Collaborator{
		OrganizationID: organizationID,
		GymID:          req.GymID,
		UserID:         req.UserID,
		Role:           req.Role,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateCollaborator(ctx, collaborator); err != nil {
		return nil, err
	}
	return collaborator, nil
}

func (s *Service) ListCollaborators(ctx context.Context, organizationID int64) ([]*Collaborator, error) {
	return s.repo.ListCollaborators(ctx, organizationID)
}

func (s *Service) currentPlan(ctx context.Context, organizationID int64) (*billing.Instance, *billing.Plan, error) {
	inst, plan, err := s.subscriptions.CurrentSubscription(ctx, organizationID)
	if err != nil {
		if errors.Is(err, billing.ErrNoActiveSubscription) {
			return nil, nil, ErrNoSubscription
		}
		return nil, nil, err
	}
	return inst, plan, nil
}

func (s *Service) checkLimit(ctx context.Context, resource string, count func(context.Context, int64) (int, error), organizationID int64, limit int) error {
	if limit < 0 {
		return nil
	}
	current, err := count(ctx, organizationID)
	if err != nil {
		return err
	}
	if current >= limit {
		return &LimitReachedError{Resource: resource, Current: current, Limit: limit}
	}
	return nil
}

// scaledLimit multiplies a per-gym limit by the gym limit; -1 anywhere means
// unlimited.
func scaledLimit(perGym, maxGyms int) int {
	if perGym < 0 || maxGyms < 0 {
		return -1
	}
	return perGym * maxGyms
}

func usageFor(current, limit int) ResourceUsage {
	u := ResourceUsage{Current: current, Limit: limit}
	if limit < 0 {
		u.Unlimited = true
		return u
	}
	u.Remaining = limit - current
	if u.Remaining < 0 {
		u.Remaining = 0
	}
	return u
}
