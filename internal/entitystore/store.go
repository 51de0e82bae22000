// Package entitystore is the single write path for compliance entities.
// Every mutation runs the same pipeline: authorize, validate invariants,
// versioned write, audit append, mutation publish. Upstream callers (API
// handlers, ALM adapters) never touch repositories or the ledger directly.
package entitystore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veritrail/veritrail/internal/directory"
	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/ledger"
	"github.com/veritrail/veritrail/internal/obs"
	"github.com/veritrail/veritrail/internal/policy"
)

// Mutation is the event published after a successful write, consumed by the
// score recompute scheduler and the live feeds.
type Mutation struct {
	OrgID        uuid.UUID           `json:"org_id"`
	ProjectID    uuid.UUID           `json:"project_id"`
	ResourceType domain.ResourceType `json:"resource_type"`
	ResourceID   string              `json:"resource_id"`
	Action       string              `json:"action"`
}

// Publisher delivers mutation events. A nil publisher disables publishing.
type Publisher interface {
	PublishMutation(ctx context.Context, m Mutation) error
}

// Deps bundles the collaborators of the Store.
type Deps struct {
	Policy        *policy.Engine
	Ledger        *ledger.Ledger
	Organizations domain.OrganizationRepository
	Users         domain.UserRepository
	Projects      domain.ProjectRepository
	Requirements  domain.RequirementRepository
	TestCases     domain.TestCaseRepository
	TestRuns      domain.TestRunRepository
	TraceLinks    domain.TraceLinkRepository
	Publisher     Publisher
}

// Store orchestrates authorized, audited entity mutations and reads.
type Store struct {
	policy   *policy.Engine
	ledger   *ledger.Ledger
	orgs     domain.OrganizationRepository
	users    domain.UserRepository
	projects domain.ProjectRepository
	reqs     domain.RequirementRepository
	tests    domain.TestCaseRepository
	runs     domain.TestRunRepository
	links    domain.TraceLinkRepository
	pub      Publisher
}

// New creates a Store from its dependencies.
func New(d Deps) *Store {
	return &Store{
		policy:   d.Policy,
		ledger:   d.Ledger,
		orgs:     d.Organizations,
		users:    d.Users,
		projects: d.Projects,
		reqs:     d.Requirements,
		tests:    d.TestCases,
		runs:     d.TestRuns,
		links:    d.TraceLinks,
		pub:      d.Publisher,
	}
}

// denyErr maps a policy denial to the externally visible sentinel.
// Cross-tenant denials surface as not-found so organization and resource
// IDs cannot be probed; same-tenant role denials surface as denied.
func denyErr(p directory.Principal, resourceOrg uuid.UUID) error {
	if resourceOrg != p.OrgID {
		return domain.ErrNotFound
	}
	return domain.ErrDenied
}

// snapshot marshals an entity state for audit before/after fields.
func snapshot(v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("audit snapshot marshal failed")
		return nil
	}
	return b
}

// recordChange appends the audit event for a committed mutation and
// publishes the mutation event. The audit append shares the mutation's
// logical transaction boundary: a failed append is returned to the caller
// as an error even though the entity write already committed.
func (s *Store) recordChange(ctx context.Context, p directory.Principal, projectID *uuid.UUID, rt domain.ResourceType, resourceID, action, reason string, before, after any, changed []string) error {
	actor := domain.ActorSystem
	if p.UserID != uuid.Nil {
		actor = p.UserID.String()
	}

	_, err := s.ledger.Append(ctx, ledger.Draft{
		OrgID:         p.OrgID,
		ProjectID:     projectID,
		Category:      domain.CategoryDataChange,
		Actor:         actor,
		ResourceType:  rt,
		ResourceID:    resourceID,
		Action:        action,
		Outcome:       domain.OutcomeSuccess,
		Before:        snapshot(before),
		After:         snapshot(after),
		ChangedFields: changed,
		Reason:        reason,
	})
	if err != nil {
		return fmt.Errorf("entitystore: audit append: %w", err)
	}

	obs.Mutations.WithLabelValues(string(rt), action).Inc()

	if s.pub != nil && projectID != nil {
		m := Mutation{
			OrgID:        p.OrgID,
			ProjectID:    *projectID,
			ResourceType: rt,
			ResourceID:   resourceID,
			Action:       action,
		}
		if pubErr := s.pub.PublishMutation(ctx, m); pubErr != nil {
			// Publishing is advisory; the scheduled recompute sweep covers
			// missed events.
			log.Warn().Err(pubErr).
				Str("project_id", projectID.String()).
				Msg("mutation publish failed")
		}
	}
	return nil
}

// recordFailure appends an audit event for a user-visible failure. Denials
// land on the actor's org-level chain so the target project's chain never
// learns about cross-tenant probing; conflicts and invariant violations
// land on the project chain they concern. Best effort: a failed append is
// logged, never masks the original failure.
func (s *Store) recordFailure(ctx context.Context, p directory.Principal, projectID *uuid.UUID, category domain.EventCategory, rt domain.ResourceType, resourceID, action string, cause error) {
	actor := domain.ActorSystem
	if p.UserID != uuid.Nil {
		actor = p.UserID.String()
	}

	_, err := s.ledger.Append(ctx, ledger.Draft{
		OrgID:        p.OrgID,
		ProjectID:    projectID,
		Category:     category,
		Actor:        actor,
		ResourceType: rt,
		ResourceID:   resourceID,
		Action:       action,
		Outcome:      domain.OutcomeFailure,
		Reason:       cause.Error(),
	})
	if err != nil {
		log.Warn().Err(err).Str("action", action).Msg("failure audit append failed")
	}
}

// recordDenial audits a denied operation on the actor's org-level chain.
func (s *Store) recordDenial(ctx context.Context, p directory.Principal, rt domain.ResourceType, resourceID, action string) {
	s.recordFailure(ctx, p, nil, domain.CategoryAccess, rt, resourceID, action, domain.ErrDenied)
}
