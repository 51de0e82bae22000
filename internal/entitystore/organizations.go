package entitystore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veritrail/veritrail/internal/directory"
	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/ledger"
	"github.com/veritrail/veritrail/internal/obs"
	"github.com/veritrail/veritrail/internal/policy"
)

// ProvisionOrganization creates a tenant. This is a provisioning-plane
// operation with no acting principal; the audit event is attributed to the
// system actor on the new tenant's org-level chain.
func (s *Store) ProvisionOrganization(ctx context.Context, name, region string) (*domain.Organization, error) {
	org, err := domain.NewOrganization(name, region)
	if err != nil {
		return nil, fmt.Errorf("entitystore.ProvisionOrganization: %w", err)
	}
	if err := s.orgs.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("entitystore.ProvisionOrganization: %w", err)
	}

	_, err = s.ledger.Append(ctx, ledger.Draft{
		OrgID:        org.ID,
		Category:     domain.CategorySystem,
		Actor:        domain.ActorSystem,
		ResourceType: domain.ResourceOrganization,
		ResourceID:   org.ID.String(),
		Action:       "provision",
		Outcome:      domain.OutcomeSuccess,
		After:        snapshot(org),
	})
	if err != nil {
		return nil, fmt.Errorf("entitystore.ProvisionOrganization: audit append: %w", err)
	}
	obs.Mutations.WithLabelValues(string(domain.ResourceOrganization), "provision").Inc()
	return org, nil
}

// GetOrganization returns the principal's own organization.
func (s *Store) GetOrganization(ctx context.Context, p directory.Principal) (*domain.Organization, error) {
	res := policy.Resource{Type: domain.ResourceOrganization, OrgID: p.OrgID}
	if d := s.policy.Authorize(p, policy.OpOrgRead, res); !d.Allowed {
		s.recordDenial(ctx, p, domain.ResourceOrganization, p.OrgID.String(), "read")
		return nil, fmt.Errorf("entitystore.GetOrganization: %w", denyErr(p, p.OrgID))
	}
	org, err := s.orgs.GetByID(ctx, p.OrgID)
	if err != nil {
		return nil, fmt.Errorf("entitystore.GetOrganization: %w", err)
	}
	return org, nil
}

// UpdateOrganization renames the principal's organization or moves its
// data-residency region.
func (s *Store) UpdateOrganization(ctx context.Context, p directory.Principal, name, region string) (*domain.Organization, error) {
	res := policy.Resource{Type: domain.ResourceOrganization, OrgID: p.OrgID}
	if d := s.policy.Authorize(p, policy.OpOrgWrite, res); !d.Allowed {
		s.recordDenial(ctx, p, domain.ResourceOrganization, p.OrgID.String(), "update")
		return nil, fmt.Errorf("entitystore.UpdateOrganization: %w", denyErr(p, p.OrgID))
	}

	cur, err := s.orgs.GetByID(ctx, p.OrgID)
	if err != nil {
		return nil, fmt.Errorf("entitystore.UpdateOrganization: %w", err)
	}

	next := *cur
	var changed []string
	if name != "" && name != cur.Name {
		next.Name = name
		changed = append(changed, "name")
	}
	if region != "" && region != cur.Region {
		next.Region = region
		changed = append(changed, "region")
	}
	if len(changed) == 0 {
		return cur, nil
	}

	if err := s.orgs.Update(ctx, &next); err != nil {
		return nil, fmt.Errorf("entitystore.UpdateOrganization: %w", err)
	}
	if err := s.recordChange(ctx, p, nil, domain.ResourceOrganization, p.OrgID.String(), "update", "", cur, &next, changed); err != nil {
		return nil, err
	}
	return &next, nil
}

// UserInput carries the fields for creating a user in the principal's
// organization.
type UserInput struct {
	ExternalID string
	Email      string
	Name       string
	Roles      []domain.Role
}

// CreateUser creates a member of the principal's organization.
func (s *Store) CreateUser(ctx context.Context, p directory.Principal, in UserInput) (*domain.User, error) {
	res := policy.Resource{Type: domain.ResourceUser, OrgID: p.OrgID}
	if d := s.policy.Authorize(p, policy.OpUserWrite, res); !d.Allowed {
		s.recordDenial(ctx, p, domain.ResourceUser, "", "create")
		return nil, fmt.Errorf("entitystore.CreateUser: %w", denyErr(p, p.OrgID))
	}

	u, err := domain.NewUser(p.OrgID, in.ExternalID, in.Email, in.Name, in.Roles)
	if err != nil {
		return nil, fmt.Errorf("entitystore.CreateUser: %w", err)
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("entitystore.CreateUser: %w", err)
	}
	if err := s.recordChange(ctx, p, nil, domain.ResourceUser, u.ID.String(), "create", "", nil, u, nil); err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser returns one organization member with sensitive fields masked for
// principals without an unmask-capable role.
func (s *Store) GetUser(ctx context.Context, p directory.Principal, id uuid.UUID) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, p.OrgID, id)
	if err != nil {
		return nil, fmt.Errorf("entitystore.GetUser: %w", err)
	}
	res := policy.Resource{Type: domain.ResourceUser, OrgID: u.OrgID}
	if d := s.policy.Authorize(p, policy.OpUserRead, res); !d.Allowed {
		s.recordDenial(ctx, p, domain.ResourceUser, id.String(), "read")
		return nil, fmt.Errorf("entitystore.GetUser: %w", denyErr(p, u.OrgID))
	}
	return policy.MaskUser(p, u), nil
}

// ListUsers lists the organization's members, masked per the principal's
// roles.
func (s *Store) ListUsers(ctx context.Context, p directory.Principal) ([]*domain.User, error) {
	res := policy.Resource{Type: domain.ResourceUser, OrgID: p.OrgID}
	if d := s.policy.Authorize(p, policy.OpUserRead, res); !d.Allowed {
		s.recordDenial(ctx, p, domain.ResourceUser, "", "list")
		return nil, fmt.Errorf("entitystore.ListUsers: %w", denyErr(p, p.OrgID))
	}
	users, err := s.users.List(ctx, p.OrgID)
	if err != nil {
		return nil, fmt.Errorf("entitystore.ListUsers: %w", err)
	}
	return policy.MaskUsers(p, users), nil
}

// UserUpdate carries the mutable user fields.
type UserUpdate struct {
	ID     uuid.UUID
	Name   *string
	Roles  []domain.Role
	Status *domain.AccountStatus
}

// UpdateUser changes a member's name, role set, or account status.
func (s *Store) UpdateUser(ctx context.Context, p directory.Principal, upd UserUpdate) (*domain.User, error) {
	cur, err := s.users.GetByID(ctx, p.OrgID, upd.ID)
	if err != nil {
		return nil, fmt.Errorf("entitystore.UpdateUser: %w", err)
	}
	res := policy.Resource{Type: domain.ResourceUser, OrgID: cur.OrgID}
	if d := s.policy.Authorize(p, policy.OpUserWrite, res); !d.Allowed {
		s.recordDenial(ctx, p, domain.ResourceUser, upd.ID.String(), "update")
		return nil, fmt.Errorf("entitystore.UpdateUser: %w", denyErr(p, cur.OrgID))
	}

	next := *cur
	next.Roles = append([]domain.Role(nil), cur.Roles...)
	var changed []string

	if upd.Name != nil && *upd.Name != cur.Name {
		next.Name = *upd.Name
		changed = append(changed, "name")
	}
	if upd.Roles != nil {
		if len(upd.Roles) == 0 {
			return nil, fmt.Errorf("entitystore.UpdateUser: %w",
				domain.NewInvariantError("user_roles_nonempty", "roles", "at least one role is required"))
		}
		for _, r := range upd.Roles {
			if !r.Valid() {
				return nil, fmt.Errorf("entitystore.UpdateUser: %w",
					domain.NewInvariantError("user_roles", "roles", "unknown role "+string(r)))
			}
		}
		next.Roles = upd.Roles
		changed = append(changed, "roles")
	}
	if upd.Status != nil && *upd.Status != cur.Status {
		next.Status = *upd.Status
		changed = append(changed, "status")
	}

	if len(changed) == 0 {
		return cur, nil
	}

	if err := s.users.Update(ctx, &next); err != nil {
		return nil, fmt.Errorf("entitystore.UpdateUser: %w", err)
	}
	if err := s.recordChange(ctx, p, nil, domain.ResourceUser, upd.ID.String(), "update", "", cur, &next, changed); err != nil {
		return nil, err
	}
	return &next, nil
}
