package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role is a closed enumeration of compliance roles. A user's role set
// determines which operations the isolation policy engine will authorize.
type Role string

const (
	RoleAdmin                Role = "admin"
	RoleComplianceOfficer    Role = "compliance_officer"
	RoleQAEngineer           Role = "qa_engineer"
	RoleRegulatorySpecialist Role = "regulatory_specialist"
	RoleSecurityOfficer      Role = "security_officer"
	RoleAuditor              Role = "auditor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleComplianceOfficer, RoleQAEngineer,
		RoleRegulatorySpecialist, RoleSecurityOfficer, RoleAuditor:
		return true
	}
	return false
}

// AccountStatus tracks whether a user account may act.
type AccountStatus string

const (
	AccountActive      AccountStatus = "active"
	AccountSuspended   AccountStatus = "suspended"
	AccountDeactivated AccountStatus = "deactivated"
)

// User belongs to exactly one organization at a time. Identity is
// established externally; ExternalID references the upstream identity
// provider record.
type User struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	ExternalID string // upstream IdP subject, masked for non-privileged readers
	Email      string // PII, masked for non-privileged readers
	Name       string
	Roles      []Role
	Status     AccountStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewUser creates a User with validated required fields.
func NewUser(orgID uuid.UUID, externalID, email, name string, roles []Role) (*User, error) {
	if orgID == uuid.Nil {
		return nil, errors.New("user: organization ID is required")
	}
	if externalID == "" {
		return nil, errors.New("user: external identity reference is required")
	}
	if len(roles) == 0 {
		return nil, errors.New("user: at least one role is required")
	}
	for _, r := range roles {
		if !r.Valid() {
			return nil, errors.New("user: unknown role " + string(r))
		}
	}
	now := time.Now().UTC()
	return &User{
		ID:         uuid.New(),
		OrgID:      orgID,
		ExternalID: externalID,
		Email:      email,
		Name:       name,
		Roles:      roles,
		Status:     AccountActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*User, error)
	// GetByIDAnyOrg resolves a user without tenant context. It exists for
	// principal resolution only; every other read path is tenant-scoped.
	GetByIDAnyOrg(ctx context.Context, id uuid.UUID) (*User, error)
	GetByExternalID(ctx context.Context, externalID string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, orgID uuid.UUID) ([]*User, error)
}
