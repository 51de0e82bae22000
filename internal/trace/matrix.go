package trace

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veritrail/veritrail/internal/domain"
)

// ComputeMatrix derives the traceability matrix for one project: every
// live requirement classified by the execution state of its covering tests.
// The matrix is idempotent over unchanged data.
func (e *Engine) ComputeMatrix(ctx context.Context, orgID, projectID uuid.UUID) (*domain.TraceabilityMatrix, error) {
	st, err := e.load(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}

	covering := st.linkedTests()
	entries := make([]domain.RequirementCoverage, 0, len(st.reqs))
	for _, r := range st.reqs {
		tests := covering[r.ID]
		ids := make([]uuid.UUID, len(tests))
		for i, t := range tests {
			ids[i] = t.ID
		}
		entries = append(entries, domain.RequirementCoverage{
			RequirementID: r.ID,
			Status:        classify(tests, st.latestRuns),
			TestIDs:       ids,
		})
	}

	return &domain.TraceabilityMatrix{
		ProjectID:  projectID,
		ComputedAt: time.Now().UTC(),
		Entries:    entries,
	}, nil
}

// classify buckets one requirement by its covering tests' latest runs.
func classify(tests []*domain.TestCase, latest map[uuid.UUID]*domain.TestRun) domain.CoverageStatus {
	if len(tests) == 0 {
		return domain.CoverageNoTests
	}

	executed, passed := 0, 0
	approvedTotal, approvedPassed := 0, 0
	for _, t := range tests {
		run, ok := latest[t.ID]
		if ok {
			executed++
			if run.Result == domain.RunPassed {
				passed++
			}
		}
		if t.IsApproved() {
			approvedTotal++
			if ok && run.Result == domain.RunPassed {
				approvedPassed++
			}
		}
	}

	if executed == 0 {
		return domain.CoverageNotExecuted
	}
	if approvedTotal > 0 && approvedPassed == approvedTotal {
		return domain.CoverageCompliant
	}
	if float64(passed)/float64(executed) >= 0.8 {
		return domain.CoverageMostlyCompliant
	}
	return domain.CoverageNonCompliant
}
