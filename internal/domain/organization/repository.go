package organization

import (
	"context"

	"gorm.io/gorm"
)

// Repository handles persistence for organizations and their resources. The
// Count* methods double as the usage source for downgrade limit checks; only
// active rows count against plan limits.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Organization, error)

	CreateGym(ctx context.Context, gym *Gym) error
	ListGyms(ctx context.Context, organizationID int64) ([]*Gym, error)
	GetGymByID(ctx context.Context, organizationID, gymID int64) (*Gym, error)
	DeactivateGym(ctx context.Context, organizationID, gymID int64) error

	CreateClient(ctx context.Context, client *Client) error
	ListClients(ctx context.Context, organizationID, gymID int64) ([]*Client, error)

	CreateCollaborator(ctx context.Context, collaborator *Collaborator) error
	ListCollaborators(ctx context.Context, organizationID int64) ([]*Collaborator, error)

	CountGyms(ctx context.Context, organizationID int64) (int, error)
	CountClients(ctx context.Context, organizationID int64) (int, error)
	CountCollaborators(ctx context.Context, organizationID int64) (int, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Organization, error) {
	var org Organization
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrOrganizationNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *repository) CreateGym(ctx context.Context, gym *Gym) error {
	return r.db.WithContext(ctx).Create(gym).Error
}

func (r *repository) ListGyms(ctx context.Context, organizationID int64) ([]*Gym, error) {
	var gyms []*Gym
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND is_active = ?", organizationID, true).
		Order("id ASC").
		Find(&gyms).Error
	return gyms, err
}

func (r *repository) GetGymByID(ctx context.Context, organizationID, gymID int64) (*Gym, error) {
	var gym Gym
	err := r.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", gymID, organizationID).
		First(&gym).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrGymNotFound
		}
		return nil, err
	}
	return &gym, nil
}

func (r *repository) DeactivateGym(ctx context.Context, organizationID, gymID int64) error {
	res := r.db.WithContext(ctx).
		Model(&Gym{}).
		Where("id = ? AND organization_id = ? AND is_active = ?", gymID, organizationID, true).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrGymNotFound
	}
	return nil
}

func (r *repository) CreateClient(ctx context.Context, client *Client) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *repository) ListClients(ctx context.Context, organizationID, gymID int64) ([]*Client, error) {
	var clients []*Client
	q := r.db.WithContext(ctx).
		Where("organization_id = ? AND is_active = ?", organizationID, true)
	if gymID > 0 {
		q = q.Where("gym_id = ?", gymID)
	}
	err := q.Order("id ASC").Find(&clients).Error
	return clients, err
}

func (r *repository) CreateCollaborator(ctx context.Context, collaborator *Collaborator) error {
	return r.db.WithContext(ctx).Create(collaborator).Error
}

func (r *repository) ListCollaborators(ctx context.Context, organizationID int64) ([]*Collaborator, error) {
	var collaborators []*Collaborator
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND is_active = ?", organizationID, true).
		Order("id ASC").
		Find(&collaborators).Error
	return collaborators, err
}

func (r *repository) CountGyms(ctx context.Context, organizationID int64) (int, error) {
	return r.countActive(ctx, &Gym{}, organizationID)
}

func (r *repository) CountClients(ctx context.Context, organizationID int64) (int, error) {
	return r.countActive(ctx, &Client{}, organizationID)
}

func (r *repository) CountCollaborators(ctx context.Context, organizationID int64) (int, error) {
	return r.countActive(ctx, &Collaborator{}, organizationID)
}

func (r *repository) countActive(ctx context.Context, model any, organizationID int64) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(model).
		Where("organization_id = ? AND is_active = ?", organizationID, true).
		Count(&count).Error
	return int(count), err
}
