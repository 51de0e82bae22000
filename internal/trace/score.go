package trace

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/obs"
)

// ratio is 0 when the denominator is 0; score terms never divide by zero.
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// ComputeScore verifies the project's audit chain, derives a compliance
// score snapshot, and persists it. Racing recomputes are harmless: both
// snapshots persist and the latest ComputedAt wins on dashboards.
func (e *Engine) ComputeScore(ctx context.Context, orgID, projectID uuid.UUID, trigger string) (*domain.ComplianceScoreSnapshot, error) {
	if err := e.checkChain(ctx, orgID, projectID); err != nil {
		return nil, err
	}

	st, err := e.load(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}

	counts := tally(st)
	terms := termsFor(counts)
	snap := &domain.ComplianceScoreSnapshot{
		ID:          uuid.New(),
		OrgID:       orgID,
		ProjectID:   projectID,
		ComputedAt:  time.Now().UTC(),
		Overall:     terms.Weighted(e.weights),
		Terms:       terms,
		Counts:      counts,
		ByFramework: e.frameworkScores(st, counts, terms),
	}

	if err := e.snapshots.Create(ctx, snap); err != nil {
		return nil, fmt.Errorf("trace: persist snapshot: %w", err)
	}
	if e.pub != nil {
		if pubErr := e.pub.PublishScore(ctx, snap); pubErr != nil {
			log.Warn().Err(pubErr).Str("project_id", projectID.String()).Msg("score live-feed publish failed")
		}
	}

	obs.ScoreRecomputes.WithLabelValues(trigger).Inc()
	return snap, nil
}

// tally counts the raw inputs of the score terms. Run counts use the most
// recent run per test.
func tally(st *projectState) domain.ScoreCounts {
	c := domain.ScoreCounts{
		TotalRequirements: len(st.reqs),
		TotalTests:        len(st.tests),
	}
	for _, r := range st.reqs {
		if r.Status == domain.RequirementApproved {
			c.ApprovedRequirements++
		}
	}
	covering := st.linkedTests()
	for _, r := range st.reqs {
		if len(covering[r.ID]) > 0 {
			c.CoveredRequirements++
		}
	}
	for _, t := range st.tests {
		if t.IsApproved() {
			c.ApprovedTests++
		}
		if run, ok := st.latestRuns[t.ID]; ok {
			c.TotalRuns++
			if run.Result == domain.RunPassed {
				c.PassedRuns++
			}
		}
	}
	return c
}

func termsFor(c domain.ScoreCounts) domain.ScoreTerms {
	return domain.ScoreTerms{
		RequirementApproval: ratio(c.ApprovedRequirements, c.TotalRequirements),
		Coverage:            ratio(c.CoveredRequirements, c.TotalRequirements),
		TestApproval:        ratio(c.ApprovedTests, c.TotalTests),
		RunPass:             ratio(c.PassedRuns, c.TotalRuns),
	}
}

// frameworkScores keys a sub-score by each of the project's declared
// compliance standards. Standards apply project-wide, so each framework's
// sub-score spans the full requirement and test sets until per-artifact
// framework tagging exists.
func (e *Engine) frameworkScores(st *projectState, counts domain.ScoreCounts, terms domain.ScoreTerms) map[string]domain.CategoryScore {
	if len(st.project.Standards) == 0 {
		return nil
	}
	out := make(map[string]domain.CategoryScore, len(st.project.Standards))
	for _, fw := range st.project.Standards {
		out[fw] = domain.CategoryScore{
			Framework: fw,
			Overall:   terms.Weighted(e.weights),
			Terms:     terms,
			Counts:    counts,
		}
	}
	return out
}

// LatestScore returns the authoritative (newest) snapshot for a project.
func (e *Engine) LatestScore(ctx context.Context, orgID, projectID uuid.UUID) (*domain.ComplianceScoreSnapshot, error) {
	snap, err := e.snapshots.Latest(ctx, orgID, projectID)
	if err != nil {
		return nil, fmt.Errorf("trace: latest snapshot: %w", err)
	}
	return snap, nil
}

// ScoreHistory returns persisted snapshots, newest first, for trend
// reporting.
func (e *Engine) ScoreHistory(ctx context.Context, orgID, projectID uuid.UUID, limit, offset int) ([]*domain.ComplianceScoreSnapshot, error) {
	out, err := e.snapshots.ListByProject(ctx, orgID, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("trace: snapshot history: %w", err)
	}
	return out, nil
}
