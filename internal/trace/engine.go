// Package trace derives the requirement-to-test traceability matrix and
// weighted compliance score snapshots. Both are read-only projections over
// entity-store state; nothing in this package mutates entities. Before any
// recompute the engine verifies the project's audit chain: scores are never
// derived from data whose provenance cannot be verified.
package trace

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/ledger"
)

// Alerter receives operator alerts when a chain fails verification. A nil
// alerter logs only.
type Alerter interface {
	AlertChainBroken(ctx context.Context, orgID, projectID uuid.UUID, brokenAt int)
}

// ScorePublisher delivers fresh snapshots to the live score feeds. A nil
// publisher disables publishing.
type ScorePublisher interface {
	PublishScore(ctx context.Context, snap *domain.ComplianceScoreSnapshot) error
}

// Deps bundles the collaborators of the Engine.
type Deps struct {
	Projects     domain.ProjectRepository
	Requirements domain.RequirementRepository
	TestCases    domain.TestCaseRepository
	TestRuns     domain.TestRunRepository
	TraceLinks   domain.TraceLinkRepository
	Snapshots    domain.ScoreSnapshotRepository
	Ledger       *ledger.Ledger
	Weights      domain.ScoreWeights
	Alerter      Alerter
	Publisher    ScorePublisher
}

// Engine computes traceability matrices and compliance scores.
type Engine struct {
	projects  domain.ProjectRepository
	reqs      domain.RequirementRepository
	tests     domain.TestCaseRepository
	runs      domain.TestRunRepository
	links     domain.TraceLinkRepository
	snapshots domain.ScoreSnapshotRepository
	ledger    *ledger.Ledger
	weights   domain.ScoreWeights
	alerter   Alerter
	pub       ScorePublisher

	mu     sync.Mutex
	halted map[uuid.UUID]int // projectID -> broken chain index
}

// New creates an Engine. Zero weights fall back to the defaults.
func New(d Deps) *Engine {
	if d.Weights == (domain.ScoreWeights{}) {
		d.Weights = domain.DefaultScoreWeights()
	}
	return &Engine{
		projects:  d.Projects,
		reqs:      d.Requirements,
		tests:     d.TestCases,
		runs:      d.TestRuns,
		links:     d.TraceLinks,
		snapshots: d.Snapshots,
		ledger:    d.Ledger,
		weights:   d.Weights,
		alerter:   d.Alerter,
		pub:       d.Publisher,
		halted:    make(map[uuid.UUID]int),
	}
}

// checkChain verifies the project's audit chain before a recompute. A
// broken chain halts recomputation for the project until an operator
// acknowledges, and fires an alert on the transition into the halted state.
func (e *Engine) checkChain(ctx context.Context, orgID, projectID uuid.UUID) error {
	e.mu.Lock()
	_, alreadyHalted := e.halted[projectID]
	e.mu.Unlock()
	if alreadyHalted {
		return fmt.Errorf("trace: recompute halted for project %s: %w", projectID, domain.ErrChainBroken)
	}

	res, err := e.ledger.VerifyChain(ctx, orgID, &projectID, 0, -1)
	if err != nil {
		return fmt.Errorf("trace: chain verification: %w", err)
	}
	if res.Valid {
		return nil
	}

	e.mu.Lock()
	e.halted[projectID] = res.BrokenAt
	e.mu.Unlock()

	log.Error().
		Str("org_id", orgID.String()).
		Str("project_id", projectID.String()).
		Int("broken_at", res.BrokenAt).
		Msg("audit chain broken, score recomputation halted")
	if e.alerter != nil {
		e.alerter.AlertChainBroken(ctx, orgID, projectID, res.BrokenAt)
	}
	return fmt.Errorf("trace: chain broken at index %d: %w", res.BrokenAt, domain.ErrChainBroken)
}

// Halted reports whether recomputation is halted for the project.
func (e *Engine) Halted(projectID uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.halted[projectID]
	return ok
}

// Acknowledge clears the halt for a project after an operator has reviewed
// the broken chain. The next recompute re-verifies from scratch.
func (e *Engine) Acknowledge(projectID uuid.UUID) {
	e.mu.Lock()
	delete(e.halted, projectID)
	e.mu.Unlock()
	log.Info().Str("project_id", projectID.String()).Msg("chain-broken halt acknowledged")
}

// projectState is one consistent read of everything a recompute needs.
type projectState struct {
	project    *domain.Project
	reqs       []*domain.Requirement
	tests      []*domain.TestCase
	links      []*domain.TraceLink
	latestRuns map[uuid.UUID]*domain.TestRun
}

func (e *Engine) load(ctx context.Context, orgID, projectID uuid.UUID) (*projectState, error) {
	proj, err := e.projects.GetByID(ctx, orgID, projectID, false)
	if err != nil {
		return nil, fmt.Errorf("trace: load project: %w", err)
	}
	reqs, err := e.reqs.ListByProject(ctx, orgID, projectID, false)
	if err != nil {
		return nil, fmt.Errorf("trace: load requirements: %w", err)
	}
	tests, err := e.tests.ListByProject(ctx, orgID, projectID, false)
	if err != nil {
		return nil, fmt.Errorf("trace: load tests: %w", err)
	}
	links, err := e.links.ListByProject(ctx, orgID, projectID, false)
	if err != nil {
		return nil, fmt.Errorf("trace: load links: %w", err)
	}
	latest, err := e.runs.LatestByTest(ctx, orgID, projectID)
	if err != nil {
		return nil, fmt.Errorf("trace: load runs: %w", err)
	}
	return &projectState{project: proj, reqs: reqs, tests: tests, links: links, latestRuns: latest}, nil
}

// linkedTests maps each requirement to its covering tests: the direct
// ownership edge plus supplementary verifies/satisfies trace links.
func (st *projectState) linkedTests() map[uuid.UUID][]*domain.TestCase {
	byID := make(map[uuid.UUID]*domain.TestCase, len(st.tests))
	for _, t := range st.tests {
		byID[t.ID] = t
	}

	out := make(map[uuid.UUID][]*domain.TestCase, len(st.reqs))
	seen := make(map[uuid.UUID]map[uuid.UUID]bool)
	add := func(reqID, testID uuid.UUID) {
		t, ok := byID[testID]
		if !ok {
			return
		}
		if seen[reqID] == nil {
			seen[reqID] = make(map[uuid.UUID]bool)
		}
		if seen[reqID][testID] {
			return
		}
		seen[reqID][testID] = true
		out[reqID] = append(out[reqID], t)
	}

	for _, t := range st.tests {
		add(t.ReqID, t.ID)
	}
	for _, l := range st.links {
		if l.LinkType.CoversRequirement() && l.SourceType == domain.ResourceTest && l.TargetType == domain.ResourceRequirement {
			add(l.TargetID, l.SourceID)
		}
	}
	return out
}
