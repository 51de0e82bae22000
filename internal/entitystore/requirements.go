package entitystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veritrail/veritrail/internal/directory"
	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/obs"
	"github.com/veritrail/veritrail/internal/policy"
)

// authorizeInProject resolves the owning project and authorizes op on a
// resource scoped under it. The project must exist, belong to the
// principal's tenant, and not be soft-deleted.
func (s *Store) authorizeInProject(ctx context.Context, p directory.Principal, projectID uuid.UUID, op policy.Operation, rt domain.ResourceType, resourceID, action string) (*domain.Project, error) {
	proj, err := s.projects.GetByID(ctx, p.OrgID, projectID, false)
	if err != nil {
		return nil, err
	}
	res := policy.Resource{Type: rt, OrgID: proj.OrgID, Project: projectRef(proj)}
	if d := s.policy.Authorize(p, op, res); !d.Allowed {
		s.recordDenial(ctx, p, rt, resourceID, action)
		return nil, denyErr(p, proj.OrgID)
	}
	return proj, nil
}

// RequirementInput carries the fields for creating a requirement.
type RequirementInput struct {
	ProjectID  uuid.UUID
	ParentID   *uuid.UUID
	OrderIndex int
	Text       string
	RiskClass  domain.RiskClass
	Normative  bool
	SourceSys  string
	SourceRef  string
}

// CreateRequirement creates a requirement, optionally as a child of an
// existing requirement in the same project.
func (s *Store) CreateRequirement(ctx context.Context, p directory.Principal, in RequirementInput) (*domain.Requirement, error) {
	if _, err := s.authorizeInProject(ctx, p, in.ProjectID, policy.OpRequirementWrite, domain.ResourceRequirement, "", "create"); err != nil {
		return nil, fmt.Errorf("entitystore.CreateRequirement: %w", err)
	}

	req, err := domain.NewRequirement(p.OrgID, in.ProjectID, in.Text, in.RiskClass)
	if err != nil {
		return nil, fmt.Errorf("entitystore.CreateRequirement: %w", err)
	}
	req.OrderIndex = in.OrderIndex
	req.Normative = in.Normative
	req.SourceSys = in.SourceSys
	req.SourceRef = in.SourceRef

	if in.ParentID != nil {
		parent, err := s.reqs.GetByID(ctx, p.OrgID, *in.ParentID, false)
		if err != nil {
			return nil, fmt.Errorf("entitystore.CreateRequirement: %w",
				domain.NewInvariantError("parent_same_project", "parent_id", "parent requirement does not resolve"))
		}
		if parent.ProjectID != in.ProjectID {
			return nil, fmt.Errorf("entitystore.CreateRequirement: %w",
				domain.NewInvariantError("parent_same_project", "parent_id", "parent belongs to another project"))
		}
		req.ParentID = in.ParentID
		req.Level = parent.Level + 1
	}

	if err := s.reqs.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("entitystore.CreateRequirement: %w", err)
	}
	if err := s.recordChange(ctx, p, &in.ProjectID, domain.ResourceRequirement, req.ID.String(), "create", "", nil, req, nil); err != nil {
		return nil, err
	}
	return req, nil
}

// GetRequirement returns one requirement under read authorization.
func (s *Store) GetRequirement(ctx context.Context, p directory.Principal, id uuid.UUID, includeDeleted bool) (*domain.Requirement, error) {
	req, err := s.reqs.GetByID(ctx, p.OrgID, id, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("entitystore.GetRequirement: %w", err)
	}
	if _, err := s.authorizeInProject(ctx, p, req.ProjectID, policy.OpRequirementRead, domain.ResourceRequirement, id.String(), "read"); err != nil {
		return nil, fmt.Errorf("entitystore.GetRequirement: %w", err)
	}
	return req, nil
}

// ListRequirements lists a project's requirements in tree order.
func (s *Store) ListRequirements(ctx context.Context, p directory.Principal, projectID uuid.UUID, includeDeleted bool) ([]*domain.Requirement, error) {
	if _, err := s.authorizeInProject(ctx, p, projectID, policy.OpRequirementRead, domain.ResourceRequirement, "", "list"); err != nil {
		return nil, fmt.Errorf("entitystore.ListRequirements: %w", err)
	}
	out, err := s.reqs.ListByProject(ctx, p.OrgID, projectID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("entitystore.ListRequirements: %w", err)
	}
	return out, nil
}

// RequirementUpdate carries the mutable requirement fields. ParentID
// reparents the requirement; ClearParent detaches it to the root level.
type RequirementUpdate struct {
	ID              uuid.UUID
	ExpectedVersion int64
	Text            *string
	RiskClass       *domain.RiskClass
	Status          *domain.RequirementStatus
	Normative       *bool
	OrderIndex      *int
	ParentID        *uuid.UUID
	ClearParent     bool
}

// UpdateRequirement applies a versioned requirement update. Status changes
// must follow the review workflow; reparenting must stay inside the project
// and keep the tree acyclic.
func (s *Store) UpdateRequirement(ctx context.Context, p directory.Principal, upd RequirementUpdate) (*domain.Requirement, error) {
	cur, err := s.reqs.GetByID(ctx, p.OrgID, upd.ID, false)
	if err != nil {
		return nil, fmt.Errorf("entitystore.UpdateRequirement: %w", err)
	}
	if _, err := s.authorizeInProject(ctx, p, cur.ProjectID, policy.OpRequirementWrite, domain.ResourceRequirement, upd.ID.String(), "update"); err != nil {
		return nil, fmt.Errorf("entitystore.UpdateRequirement: %w", err)
	}

	next := *cur
	var changed []string

	if upd.Text != nil && *upd.Text != cur.Text {
		if *upd.Text == "" {
			return nil, fmt.Errorf("entitystore.UpdateRequirement: %w",
				domain.NewInvariantError("requirement_text", "text", "text must not be empty"))
		}
		next.Text = *upd.Text
		changed = append(changed, "text")
	}
	if upd.RiskClass != nil && *upd.RiskClass != cur.RiskClass {
		if !upd.RiskClass.Valid() {
			return nil, fmt.Errorf("entitystore.UpdateRequirement: %w",
				domain.NewInvariantError("risk_class", "risk_class", "unknown risk class "+string(*upd.RiskClass)))
		}
		next.RiskClass = *upd.RiskClass
		changed = append(changed, "risk_class")
	}
	if upd.Status != nil && *upd.Status != cur.Status {
		if !cur.Status.ValidTransition(*upd.Status) {
			return nil, fmt.Errorf("entitystore.UpdateRequirement: %w",
				domain.NewInvariantError("status_transition", "status",
					string(cur.Status)+" cannot transition to "+string(*upd.Status)))
		}
		next.Status = *upd.Status
		changed = append(changed, "status")
	}
	if upd.Normative != nil && *upd.Normative != cur.Normative {
		next.Normative = *upd.Normative
		changed = append(changed, "normative")
	}
	if upd.OrderIndex != nil && *upd.OrderIndex != cur.OrderIndex {
		next.OrderIndex = *upd.OrderIndex
		changed = append(changed, "order_index")
	}

	switch {
	case upd.ClearParent && cur.ParentID != nil:
		next.ParentID = nil
		next.Level = 0
		changed = append(changed, "parent_id", "level")
	case upd.ParentID != nil && (cur.ParentID == nil || *cur.ParentID != *upd.ParentID):
		parent, err := s.validateParent(ctx, p, cur, *upd.ParentID)
		if err != nil {
			return nil, fmt.Errorf("entitystore.UpdateRequirement: %w", err)
		}
		next.ParentID = upd.ParentID
		next.Level = parent.Level + 1
		changed = append(changed, "parent_id", "level")
	}

	if len(changed) == 0 {
		return cur, nil
	}

	if err := s.reqs.Update(ctx, &next, upd.ExpectedVersion); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			obs.VersionConflicts.WithLabelValues(string(domain.ResourceRequirement)).Inc()
			s.recordFailure(ctx, p, &cur.ProjectID, domain.CategoryDataChange, domain.ResourceRequirement, upd.ID.String(), "update", err)
		}
		return nil, fmt.Errorf("entitystore.UpdateRequirement: %w", err)
	}

	if next.Level != cur.Level {
		s.relevelDescendants(ctx, p, &next)
	}

	if err := s.recordChange(ctx, p, &cur.ProjectID, domain.ResourceRequirement, upd.ID.String(), "update", "", cur, &next, changed); err != nil {
		return nil, err
	}
	return &next, nil
}

// validateParent checks that the proposed parent resolves inside the same
// project and that adopting it keeps the tree acyclic.
func (s *Store) validateParent(ctx context.Context, p directory.Principal, req *domain.Requirement, parentID uuid.UUID) (*domain.Requirement, error) {
	if parentID == req.ID {
		return nil, domain.NewInvariantError("requirement_tree_acyclic", "parent_id", "requirement cannot parent itself")
	}
	parent, err := s.reqs.GetByID(ctx, p.OrgID, parentID, false)
	if err != nil {
		return nil, domain.NewInvariantError("parent_same_project", "parent_id", "parent requirement does not resolve")
	}
	if parent.ProjectID != req.ProjectID {
		return nil, domain.NewInvariantError("parent_same_project", "parent_id", "parent belongs to another project")
	}

	// Walk the ancestor chain from the proposed parent. Hitting the
	// requirement itself means the new edge would close a cycle.
	for cur := parent; cur.ParentID != nil; {
		if *cur.ParentID == req.ID {
			return nil, domain.NewInvariantError("requirement_tree_acyclic", "parent_id", "reparenting would create a cycle")
		}
		cur, err = s.reqs.GetByID(ctx, p.OrgID, *cur.ParentID, false)
		if err != nil {
			break
		}
	}
	return parent, nil
}

// relevelDescendants recomputes tree depth below a reparented requirement.
// These are derived-field maintenance writes folded into the reparenting
// mutation's audit event.
func (s *Store) relevelDescendants(ctx context.Context, p directory.Principal, root *domain.Requirement) {
	all, err := s.reqs.ListByProject(ctx, p.OrgID, root.ProjectID, false)
	if err != nil {
		return
	}
	children := make(map[uuid.UUID][]*domain.Requirement)
	for _, r := range all {
		if r.ParentID != nil {
			children[*r.ParentID] = append(children[*r.ParentID], r)
		}
	}

	queue := []*domain.Requirement{root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, child := range children[parent.ID] {
			if child.Level == parent.Level+1 {
				continue
			}
			child.Level = parent.Level + 1
			if err := s.reqs.Update(ctx, child, child.Version); err != nil {
				log.Warn().Err(err).Str("requirement_id", child.ID.String()).Msg("relevel failed")
			}
			queue = append(queue, child)
		}
	}
}

// DeleteRequirement soft-deletes a requirement. Requirements with live
// children or live owning tests must be detached first; trace links
// referencing the requirement are cascaded.
func (s *Store) DeleteRequirement(ctx context.Context, p directory.Principal, id uuid.UUID, expectedVersion int64) error {
	cur, err := s.reqs.GetByID(ctx, p.OrgID, id, false)
	if err != nil {
		return fmt.Errorf("entitystore.DeleteRequirement: %w", err)
	}
	if _, err := s.authorizeInProject(ctx, p, cur.ProjectID, policy.OpRequirementWrite, domain.ResourceRequirement, id.String(), "soft_delete"); err != nil {
		return fmt.Errorf("entitystore.DeleteRequirement: %w", err)
	}

	siblings, err := s.reqs.ListByProject(ctx, p.OrgID, cur.ProjectID, false)
	if err != nil {
		return fmt.Errorf("entitystore.DeleteRequirement: %w", err)
	}
	for _, r := range siblings {
		if r.ParentID != nil && *r.ParentID == id {
			return fmt.Errorf("entitystore.DeleteRequirement: %w",
				domain.NewInvariantError("requirement_in_use", "id", "requirement has live child requirements"))
		}
	}

	owned, err := s.tests.ListByRequirement(ctx, p.OrgID, id)
	if err != nil {
		return fmt.Errorf("entitystore.DeleteRequirement: %w", err)
	}
	if len(owned) > 0 {
		return fmt.Errorf("entitystore.DeleteRequirement: %w",
			domain.NewInvariantError("requirement_in_use", "id", "requirement has live test cases"))
	}

	if err := s.reqs.SoftDelete(ctx, p.OrgID, id, p.UserID, expectedVersion); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			obs.VersionConflicts.WithLabelValues(string(domain.ResourceRequirement)).Inc()
			s.recordFailure(ctx, p, &cur.ProjectID, domain.CategoryDataChange, domain.ResourceRequirement, id.String(), "soft_delete", err)
		}
		return fmt.Errorf("entitystore.DeleteRequirement: %w", err)
	}

	s.cascadeEndpointLinks(ctx, p, cur.ProjectID, domain.ResourceRequirement, id)

	if err := s.recordChange(ctx, p, &cur.ProjectID, domain.ResourceRequirement, id.String(), "soft_delete", "", cur, nil, nil); err != nil {
		return err
	}
	return nil
}

// cascadeEndpointLinks soft-deletes trace links whose source or target is
// the deleted entity, keeping the endpoint-resolution invariant intact.
func (s *Store) cascadeEndpointLinks(ctx context.Context, p directory.Principal, projectID uuid.UUID, rt domain.ResourceType, id uuid.UUID) {
	links, err := s.links.ListByProject(ctx, p.OrgID, projectID, false)
	if err != nil {
		return
	}
	for _, l := range links {
		if (l.SourceType == rt && l.SourceID == id) || (l.TargetType == rt && l.TargetID == id) {
			if err := s.links.SoftDelete(ctx, p.OrgID, l.ID, p.UserID, l.Version); err != nil {
				log.Warn().Err(err).Str("link_id", l.ID.String()).Msg("cascade delete failed")
			}
		}
	}
}
