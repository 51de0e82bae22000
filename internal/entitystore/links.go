package entitystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/veritrail/veritrail/internal/directory"
	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/obs"
	"github.com/veritrail/veritrail/internal/policy"
)

// TraceLinkInput carries the fields for creating a trace link. Confidence
// below 1 marks an AI-suggested link awaiting human validation.
type TraceLinkInput struct {
	ProjectID  uuid.UUID
	SourceType domain.ResourceType
	SourceID   uuid.UUID
	TargetType domain.ResourceType
	TargetID   uuid.UUID
	LinkType   domain.LinkType
	Confidence float64
	Validated  bool
}

// CreateTraceLink creates a typed relation between two artifacts in the
// same project. Both endpoints must resolve to live entities.
func (s *Store) CreateTraceLink(ctx context.Context, p directory.Principal, in TraceLinkInput) (*domain.TraceLink, error) {
	if _, err := s.authorizeInProject(ctx, p, in.ProjectID, policy.OpTraceLinkWrite, domain.ResourceTraceLink, "", "create"); err != nil {
		return nil, fmt.Errorf("entitystore.CreateTraceLink: %w", err)
	}

	link, err := domain.NewTraceLink(p.OrgID, in.ProjectID, in.SourceType, in.SourceID, in.TargetType, in.TargetID, in.LinkType, in.Confidence)
	if err != nil {
		return nil, fmt.Errorf("entitystore.CreateTraceLink: %w", err)
	}
	link.Validated = in.Validated

	if err := s.resolveEndpoint(ctx, p, in.ProjectID, in.SourceType, in.SourceID, "source"); err != nil {
		return nil, fmt.Errorf("entitystore.CreateTraceLink: %w", err)
	}
	if err := s.resolveEndpoint(ctx, p, in.ProjectID, in.TargetType, in.TargetID, "target"); err != nil {
		return nil, fmt.Errorf("entitystore.CreateTraceLink: %w", err)
	}

	if err := s.links.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("entitystore.CreateTraceLink: %w", err)
	}
	if err := s.recordChange(ctx, p, &in.ProjectID, domain.ResourceTraceLink, link.ID.String(), "create", "", nil, link, nil); err != nil {
		return nil, err
	}
	return link, nil
}

// resolveEndpoint verifies that a link endpoint is a live entity in the
// given project. Document endpoints reference design artifacts managed by
// an external document system and are accepted without resolution.
func (s *Store) resolveEndpoint(ctx context.Context, p directory.Principal, projectID uuid.UUID, rt domain.ResourceType, id uuid.UUID, field string) error {
	switch rt {
	case domain.ResourceRequirement:
		req, err := s.reqs.GetByID(ctx, p.OrgID, id, false)
		if err != nil || req.ProjectID != projectID {
			return domain.NewInvariantError("link_endpoint_resolution", field+"_id", "requirement endpoint does not resolve in project")
		}
	case domain.ResourceTest:
		tc, err := s.tests.GetByID(ctx, p.OrgID, id, false)
		if err != nil || tc.ProjectID != projectID {
			return domain.NewInvariantError("link_endpoint_resolution", field+"_id", "test endpoint does not resolve in project")
		}
	case domain.ResourceDocument:
		// External artifact reference; existence is the document system's
		// concern.
	default:
		return domain.NewInvariantError("link_endpoint_types", field+"_type", "unsupported endpoint type "+string(rt))
	}
	return nil
}

// GetTraceLink returns one trace link under read authorization.
func (s *Store) GetTraceLink(ctx context.Context, p directory.Principal, id uuid.UUID, includeDeleted bool) (*domain.TraceLink, error) {
	link, err := s.links.GetByID(ctx, p.OrgID, id, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("entitystore.GetTraceLink: %w", err)
	}
	if _, err := s.authorizeInProject(ctx, p, link.ProjectID, policy.OpTraceLinkRead, domain.ResourceTraceLink, id.String(), "read"); err != nil {
		return nil, fmt.Errorf("entitystore.GetTraceLink: %w", err)
	}
	return link, nil
}

// ListTraceLinks lists a project's trace links.
func (s *Store) ListTraceLinks(ctx context.Context, p directory.Principal, projectID uuid.UUID, includeDeleted bool) ([]*domain.TraceLink, error) {
	if _, err := s.authorizeInProject(ctx, p, projectID, policy.OpTraceLinkRead, domain.ResourceTraceLink, "", "list"); err != nil {
		return nil, fmt.Errorf("entitystore.ListTraceLinks: %w", err)
	}
	out, err := s.links.ListByProject(ctx, p.OrgID, projectID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("entitystore.ListTraceLinks: %w", err)
	}
	return out, nil
}

// TraceLinkUpdate carries the mutable trace-link fields. Endpoints and the
// link type are immutable; recreate the link to change the relation.
type TraceLinkUpdate struct {
	ID              uuid.UUID
	ExpectedVersion int64
	Confidence      *float64
	Validated       *bool
}

// UpdateTraceLink applies a versioned trace-link update, typically a human
// validating or re-scoring an AI-suggested link.
func (s *Store) UpdateTraceLink(ctx context.Context, p directory.Principal, upd TraceLinkUpdate) (*domain.TraceLink, error) {
	cur, err := s.links.GetByID(ctx, p.OrgID, upd.ID, false)
	if err != nil {
		return nil, fmt.Errorf("entitystore.UpdateTraceLink: %w", err)
	}
	if _, err := s.authorizeInProject(ctx, p, cur.ProjectID, policy.OpTraceLinkWrite, domain.ResourceTraceLink, upd.ID.String(), "update"); err != nil {
		return nil, fmt.Errorf("entitystore.UpdateTraceLink: %w", err)
	}

	next := *cur
	var changed []string

	if upd.Confidence != nil && *upd.Confidence != cur.Confidence {
		if *upd.Confidence < 0 || *upd.Confidence > 1 {
			return nil, fmt.Errorf("entitystore.UpdateTraceLink: %w",
				domain.NewInvariantError("link_confidence_range", "confidence", "confidence must be within [0,1]"))
		}
		next.Confidence = *upd.Confidence
		changed = append(changed, "confidence")
	}
	if upd.Validated != nil && *upd.Validated != cur.Validated {
		next.Validated = *upd.Validated
		changed = append(changed, "validated")
	}

	if len(changed) == 0 {
		return cur, nil
	}

	if err := s.links.Update(ctx, &next, upd.ExpectedVersion); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			obs.VersionConflicts.WithLabelValues(string(domain.ResourceTraceLink)).Inc()
			s.recordFailure(ctx, p, &cur.ProjectID, domain.CategoryDataChange, domain.ResourceTraceLink, upd.ID.String(), "update", err)
		}
		return nil, fmt.Errorf("entitystore.UpdateTraceLink: %w", err)
	}

	if err := s.recordChange(ctx, p, &cur.ProjectID, domain.ResourceTraceLink, upd.ID.String(), "update", "", cur, &next, changed); err != nil {
		return nil, err
	}
	return &next, nil
}

// DeleteTraceLink soft-deletes a trace link.
func (s *Store) DeleteTraceLink(ctx context.Context, p directory.Principal, id uuid.UUID, expectedVersion int64) error {
	cur, err := s.links.GetByID(ctx, p.OrgID, id, false)
	if err != nil {
		return fmt.Errorf("entitystore.DeleteTraceLink: %w", err)
	}
	if _, err := s.authorizeInProject(ctx, p, cur.ProjectID, policy.OpTraceLinkWrite, domain.ResourceTraceLink, id.String(), "soft_delete"); err != nil {
		return fmt.Errorf("entitystore.DeleteTraceLink: %w", err)
	}

	if err := s.links.SoftDelete(ctx, p.OrgID, id, p.UserID, expectedVersion); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			obs.VersionConflicts.WithLabelValues(string(domain.ResourceTraceLink)).Inc()
			s.recordFailure(ctx, p, &cur.ProjectID, domain.CategoryDataChange, domain.ResourceTraceLink, id.String(), "soft_delete", err)
		}
		return fmt.Errorf("entitystore.DeleteTraceLink: %w", err)
	}

	if err := s.recordChange(ctx, p, &cur.ProjectID, domain.ResourceTraceLink, id.String(), "soft_delete", "", cur, nil, nil); err != nil {
		return err
	}
	return nil
}
