package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CoverageStatus classifies one requirement in the traceability matrix.
type CoverageStatus string

const (
	CoverageNoTests         CoverageStatus = "no_tests"
	CoverageNotExecuted     CoverageStatus = "not_executed"
	CoverageCompliant       CoverageStatus = "compliant"
	CoverageMostlyCompliant CoverageStatus = "mostly_compliant"
	CoverageNonCompliant    CoverageStatus = "non_compliant"
)

// RequirementCoverage is one row of the traceability matrix.
type RequirementCoverage struct {
	RequirementID uuid.UUID      `json:"requirement_id"`
	Status        CoverageStatus `json:"status"`
	TestIDs       []uuid.UUID    `json:"test_ids"`
}

// TraceabilityMatrix is the derived requirement-to-test coverage view for
// one project. It is a read-only projection, versioned by ComputedAt.
type TraceabilityMatrix struct {
	ProjectID  uuid.UUID             `json:"project_id"`
	ComputedAt time.Time             `json:"computed_at"`
	Entries    []RequirementCoverage `json:"entries"`
}

// ScoreWeights is the configurable weighting of the compliance score terms.
type ScoreWeights struct {
	RequirementApproval float64
	Coverage            float64
	TestApproval        float64
	RunPass             float64
}

// DefaultScoreWeights mirrors the dashboard's historical weighting.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		RequirementApproval: 0.3,
		Coverage:            0.3,
		TestApproval:        0.2,
		RunPass:             0.2,
	}
}

// ScoreTerms are the four ratio terms of the weighted compliance score.
// Each term is 0 when its denominator is 0.
type ScoreTerms struct {
	RequirementApproval float64 `json:"requirement_approval"`
	Coverage            float64 `json:"coverage"`
	TestApproval        float64 `json:"test_approval"`
	RunPass             float64 `json:"run_pass"`
}

// Weighted folds the terms into a single score using the given weights.
func (t ScoreTerms) Weighted(w ScoreWeights) float64 {
	return w.RequirementApproval*t.RequirementApproval +
		w.Coverage*t.Coverage +
		w.TestApproval*t.TestApproval +
		w.RunPass*t.RunPass
}

// ScoreCounts are the raw tallies behind the score terms.
type ScoreCounts struct {
	TotalRequirements    int `json:"total_requirements"`
	ApprovedRequirements int `json:"approved_requirements"`
	CoveredRequirements  int `json:"covered_requirements"`
	TotalTests           int `json:"total_tests"`
	ApprovedTests        int `json:"approved_tests"`
	TotalRuns            int `json:"total_runs"`
	PassedRuns           int `json:"passed_runs"`
}

// CategoryScore is the score scoped to one regulatory framework's tagged
// subset of requirements and tests.
type CategoryScore struct {
	Framework string      `json:"framework"`
	Overall   float64     `json:"overall"`
	Terms     ScoreTerms  `json:"terms"`
	Counts    ScoreCounts `json:"counts"`
}

// ComplianceScoreSnapshot is a derived, never hand-edited aggregate.
// Superseded snapshots are retained for trend reporting; the one with the
// latest ComputedAt is authoritative for dashboards.
type ComplianceScoreSnapshot struct {
	ID          uuid.UUID                `json:"id"`
	OrgID       uuid.UUID                `json:"org_id"`
	ProjectID   uuid.UUID                `json:"project_id"`
	ComputedAt  time.Time                `json:"computed_at"`
	Overall     float64                  `json:"overall"`
	Terms       ScoreTerms               `json:"terms"`
	Counts      ScoreCounts              `json:"counts"`
	ByFramework map[string]CategoryScore `json:"by_framework"`
}

type ScoreSnapshotRepository interface {
	Create(ctx context.Context, s *ComplianceScoreSnapshot) error
	// Latest returns the snapshot with the newest ComputedAt.
	Latest(ctx context.Context, orgID, projectID uuid.UUID) (*ComplianceScoreSnapshot, error)
	ListByProject(ctx context.Context, orgID, projectID uuid.UUID, limit, offset int) ([]*ComplianceScoreSnapshot, error)
}
