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

func projectResource(proj *domain.Project) policy.Resource {
	return policy.Resource{
		Type:    domain.ResourceProject,
		OrgID:   proj.OrgID,
		OwnerID: proj.OwnerID,
	}
}

func projectRef(proj *domain.Project) *policy.ProjectRef {
	return &policy.ProjectRef{OrgID: proj.OrgID, OwnerID: proj.OwnerID}
}

// CreateProject creates a project owned by the acting principal, starting
// in the planning stage.
func (s *Store) CreateProject(ctx context.Context, p directory.Principal, name string, standards []string, riskClass domain.RiskClassification) (*domain.Project, error) {
	res := policy.Resource{Type: domain.ResourceProject, OrgID: p.OrgID, OwnerID: p.UserID}
	if d := s.policy.Authorize(p, policy.OpProjectCreate, res); !d.Allowed {
		s.recordDenial(ctx, p, domain.ResourceProject, "", "create")
		return nil, fmt.Errorf("entitystore.CreateProject: %w", denyErr(p, p.OrgID))
	}

	proj, err := domain.NewProject(p.OrgID, p.UserID, name, standards, riskClass)
	if err != nil {
		return nil, fmt.Errorf("entitystore.CreateProject: %w", err)
	}
	if err := s.projects.Create(ctx, proj); err != nil {
		return nil, fmt.Errorf("entitystore.CreateProject: %w", err)
	}

	if err := s.recordChange(ctx, p, &proj.ID, domain.ResourceProject, proj.ID.String(), "create", "", nil, proj, nil); err != nil {
		return nil, err
	}
	return proj, nil
}

// GetProject returns one project, excluding soft-deleted rows unless
// includeDeleted is set (audit reconstruction).
func (s *Store) GetProject(ctx context.Context, p directory.Principal, id uuid.UUID, includeDeleted bool) (*domain.Project, error) {
	proj, err := s.projects.GetByID(ctx, p.OrgID, id, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("entitystore.GetProject: %w", err)
	}
	if d := s.policy.Authorize(p, policy.OpProjectRead, projectResource(proj)); !d.Allowed {
		s.recordDenial(ctx, p, domain.ResourceProject, id.String(), "read")
		return nil, fmt.Errorf("entitystore.GetProject: %w", denyErr(p, proj.OrgID))
	}
	return proj, nil
}

// ListProjects lists the organization's projects visible to the principal.
// Private projects are listed only for their owner and admins.
func (s *Store) ListProjects(ctx context.Context, p directory.Principal) ([]*domain.Project, error) {
	all, err := s.projects.List(ctx, p.OrgID)
	if err != nil {
		return nil, fmt.Errorf("entitystore.ListProjects: %w", err)
	}

	out := make([]*domain.Project, 0, len(all))
	for _, proj := range all {
		if d := s.policy.Authorize(p, policy.OpProjectRead, projectResource(proj)); !d.Allowed {
			continue
		}
		if proj.Visibility == domain.VisibilityPrivate && proj.OwnerID != p.UserID && !p.HasRole(domain.RoleAdmin) {
			continue
		}
		out = append(out, proj)
	}
	return out, nil
}

// ProjectUpdate carries the mutable project fields. Nil fields are left
// unchanged. Reason is mandatory for lifecycle-stage regressions.
type ProjectUpdate struct {
	ID              uuid.UUID
	ExpectedVersion int64
	Name            *string
	Standards       []string
	RiskClass       *domain.RiskClassification
	Stage           *domain.LifecycleStage
	Visibility      *domain.Visibility
	Reason          string
}

// UpdateProject applies a versioned project update. Stage changes normally
// advance forward; a backward correction requires the stage-regress
// permission and a reason, both captured in the audit event.
func (s *Store) UpdateProject(ctx context.Context, p directory.Principal, upd ProjectUpdate) (*domain.Project, error) {
	cur, err := s.projects.GetByID(ctx, p.OrgID, upd.ID, false)
	if err != nil {
		return nil, fmt.Errorf("entitystore.UpdateProject: %w", err)
	}
	if d := s.policy.Authorize(p, policy.OpProjectUpdate, projectResource(cur)); !d.Allowed {
		s.recordDenial(ctx, p, domain.ResourceProject, upd.ID.String(), "update")
		return nil, fmt.Errorf("entitystore.UpdateProject: %w", denyErr(p, cur.OrgID))
	}

	next := *cur
	next.Standards = append([]string(nil), cur.Standards...)
	var changed []string
	action := "update"

	if upd.Name != nil && *upd.Name != cur.Name {
		next.Name = *upd.Name
		changed = append(changed, "name")
	}
	if upd.Standards != nil {
		next.Standards = upd.Standards
		changed = append(changed, "standards")
	}
	if upd.RiskClass != nil && *upd.RiskClass != cur.RiskClass {
		next.RiskClass = *upd.RiskClass
		changed = append(changed, "risk_class")
	}
	if upd.Visibility != nil && *upd.Visibility != cur.Visibility {
		next.Visibility = *upd.Visibility
		changed = append(changed, "visibility")
	}
	if upd.Stage != nil && *upd.Stage != cur.Stage {
		if !upd.Stage.Valid() {
			return nil, fmt.Errorf("entitystore.UpdateProject: %w",
				domain.NewInvariantError("lifecycle_stage", "stage", "unknown stage "+string(*upd.Stage)))
		}
		if upd.Stage.Before(cur.Stage) {
			if d := s.policy.Authorize(p, policy.OpStageRegress, projectResource(cur)); !d.Allowed {
				s.recordDenial(ctx, p, domain.ResourceProject, upd.ID.String(), "stage_regress")
				return nil, fmt.Errorf("entitystore.UpdateProject: %w", denyErr(p, cur.OrgID))
			}
			if upd.Reason == "" {
				return nil, fmt.Errorf("entitystore.UpdateProject: %w",
					domain.NewInvariantError("stage_regression_reason", "reason", "stage regression requires a reason"))
			}
			action = "stage_regress"
		}
		next.Stage = *upd.Stage
		changed = append(changed, "stage")
	}

	if !next.IsDraft() && len(next.Standards) == 0 {
		return nil, fmt.Errorf("entitystore.UpdateProject: %w",
			domain.NewInvariantError("standards_nonempty", "standards", "compliance standards required past planning"))
	}

	if len(changed) == 0 {
		return cur, nil
	}

	if err := s.projects.Update(ctx, &next, upd.ExpectedVersion); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			obs.VersionConflicts.WithLabelValues(string(domain.ResourceProject)).Inc()
			s.recordFailure(ctx, p, &upd.ID, domain.CategoryDataChange, domain.ResourceProject, upd.ID.String(), action, err)
		}
		return nil, fmt.Errorf("entitystore.UpdateProject: %w", err)
	}

	if err := s.recordChange(ctx, p, &next.ID, domain.ResourceProject, next.ID.String(), action, upd.Reason, cur, &next, changed); err != nil {
		return nil, err
	}
	return &next, nil
}

// DeleteProject soft-deletes a project and cascades the soft delete to its
// requirements, test cases, and trace links. The project row gates the
// cascade via its version check.
func (s *Store) DeleteProject(ctx context.Context, p directory.Principal, id uuid.UUID, expectedVersion int64) error {
	cur, err := s.projects.GetByID(ctx, p.OrgID, id, false)
	if err != nil {
		return fmt.Errorf("entitystore.DeleteProject: %w", err)
	}
	if d := s.policy.Authorize(p, policy.OpProjectDelete, projectResource(cur)); !d.Allowed {
		s.recordDenial(ctx, p, domain.ResourceProject, id.String(), "soft_delete")
		return fmt.Errorf("entitystore.DeleteProject: %w", denyErr(p, cur.OrgID))
	}

	if err := s.projects.SoftDelete(ctx, p.OrgID, id, p.UserID, expectedVersion); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			obs.VersionConflicts.WithLabelValues(string(domain.ResourceProject)).Inc()
			s.recordFailure(ctx, p, &id, domain.CategoryDataChange, domain.ResourceProject, id.String(), "soft_delete", err)
		}
		return fmt.Errorf("entitystore.DeleteProject: %w", err)
	}

	s.cascadeProjectDelete(ctx, p, id)

	if err := s.recordChange(ctx, p, &id, domain.ResourceProject, id.String(), "soft_delete", "", cur, nil, nil); err != nil {
		return err
	}
	return nil
}

// cascadeProjectDelete soft-deletes the project's owned entities. Failures
// are logged and retried by the next delete attempt; the project row itself
// is already marked deleted, which hides the children from default reads.
func (s *Store) cascadeProjectDelete(ctx context.Context, p directory.Principal, projectID uuid.UUID) {
	if reqs, err := s.reqs.ListByProject(ctx, p.OrgID, projectID, false); err == nil {
		for _, r := range reqs {
			if err := s.reqs.SoftDelete(ctx, p.OrgID, r.ID, p.UserID, r.Version); err != nil {
				log.Warn().Err(err).Str("requirement_id", r.ID.String()).Msg("cascade delete failed")
			}
		}
	}
	if tests, err := s.tests.ListByProject(ctx, p.OrgID, projectID, false); err == nil {
		for _, t := range tests {
			if err := s.tests.SoftDelete(ctx, p.OrgID, t.ID, p.UserID, t.Version); err != nil {
				log.Warn().Err(err).Str("test_id", t.ID.String()).Msg("cascade delete failed")
			}
		}
	}
	if links, err := s.links.ListByProject(ctx, p.OrgID, projectID, false); err == nil {
		for _, l := range links {
			if err := s.links.SoftDelete(ctx, p.OrgID, l.ID, p.UserID, l.Version); err != nil {
				log.Warn().Err(err).Str("link_id", l.ID.String()).Msg("cascade delete failed")
			}
		}
	}
}
