package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Organization is the unit of data isolation. Organizations are provisioned
// externally and are never hard-deleted so audit linkage stays intact.
type Organization struct {
	ID        uuid.UUID
	Name      string
	Region    string // data-residency region, e.g. "eu-west-1"
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
	DeletedBy *uuid.UUID
}

// NewOrganization creates an Organization with validated required fields.
func NewOrganization(name, region string) (*Organization, error) {
	if name == "" {
		return nil, errors.New("organization: name is required")
	}
	if region == "" {
		return nil, errors.New("organization: region is required")
	}
	now := time.Now().UTC()
	return &Organization{
		ID:        uuid.New(),
		Name:      name,
		Region:    region,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsDeleted reports whether the organization has been soft-deleted.
func (o *Organization) IsDeleted() bool { return o.DeletedAt != nil }

type OrganizationRepository interface {
	Create(ctx context.Context, o *Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	Update(ctx context.Context, o *Organization) error
	SoftDelete(ctx context.Context, id, deletedBy uuid.UUID) error
	List(ctx context.Context) ([]*Organization, error)
}
