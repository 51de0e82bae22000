// Package directory resolves acting principals against the tenant
// directory. It is the trust anchor for every isolation decision and has
// no side effects; all calls are pure lookups.
package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veritrail/veritrail/internal/domain"
)

// Principal is a resolved acting identity. Every entity-store call takes a
// Principal explicitly; there is no ambient "current user".
type Principal struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Roles  []domain.Role
}

// HasRole reports whether the principal holds the given role.
func (p Principal) HasRole(role domain.Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the principal holds at least one of the roles.
func (p Principal) HasAnyRole(roles ...domain.Role) bool {
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

// Service looks up principals and memberships.
type Service struct {
	users domain.UserRepository
}

// New creates a directory Service backed by the given user repository.
func New(users domain.UserRepository) *Service {
	return &Service{users: users}
}

// ResolvePrincipal maps a user ID to a Principal. It fails with
// ErrUnknownPrincipal when no such user exists and ErrAccountDeactivated
// when the account is not active.
func (s *Service) ResolvePrincipal(ctx context.Context, userID uuid.UUID) (Principal, error) {
	u, err := s.users.GetByIDAnyOrg(ctx, userID)
	if err != nil {
		return Principal{}, fmt.Errorf("directory.ResolvePrincipal: %w", domain.ErrUnknownPrincipal)
	}
	if u.Status != domain.AccountActive {
		return Principal{}, fmt.Errorf("directory.ResolvePrincipal: %w", domain.ErrAccountDeactivated)
	}

	return Principal{UserID: u.ID, OrgID: u.OrgID, Roles: u.Roles}, nil
}

// ResolveExternal maps an external identity reference to a Principal, for
// callers that authenticate against the upstream identity provider.
func (s *Service) ResolveExternal(ctx context.Context, externalID string) (Principal, error) {
	u, err := s.users.GetByExternalID(ctx, externalID)
	if err != nil {
		return Principal{}, fmt.Errorf("directory.ResolveExternal: %w", domain.ErrUnknownPrincipal)
	}
	if u.Status != domain.AccountActive {
		return Principal{}, fmt.Errorf("directory.ResolveExternal: %w", domain.ErrAccountDeactivated)
	}

	return Principal{UserID: u.ID, OrgID: u.OrgID, Roles: u.Roles}, nil
}

// IsMember reports whether the user belongs to the organization.
func (s *Service) IsMember(ctx context.Context, userID, orgID uuid.UUID) (bool, error) {
	u, err := s.users.GetByIDAnyOrg(ctx, userID)
	if err != nil {
		return false, nil //nolint:nilerr // unknown user is simply not a member
	}
	return u.OrgID == orgID, nil
}
