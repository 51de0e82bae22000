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

// TestCaseInput carries the fields for creating a test case.
type TestCaseInput struct {
	ProjectID uuid.UUID
	ReqID     uuid.UUID
	Title     string
	Steps     []domain.TestStep
	SourceSys string
	SourceRef string
}

// CreateTestCase creates a test case owned by exactly one requirement. The
// denormalized project reference must match the requirement's project.
func (s *Store) CreateTestCase(ctx context.Context, p directory.Principal, in TestCaseInput) (*domain.TestCase, error) {
	if _, err := s.authorizeInProject(ctx, p, in.ProjectID, policy.OpTestWrite, domain.ResourceTest, "", "create"); err != nil {
		return nil, fmt.Errorf("entitystore.CreateTestCase: %w", err)
	}

	req, err := s.reqs.GetByID(ctx, p.OrgID, in.ReqID, false)
	if err != nil {
		return nil, fmt.Errorf("entitystore.CreateTestCase: %w",
			domain.NewInvariantError("test_owning_requirement", "req_id", "owning requirement does not resolve"))
	}
	if req.ProjectID != in.ProjectID {
		return nil, fmt.Errorf("entitystore.CreateTestCase: %w",
			domain.NewInvariantError("test_project_match", "project_id", "test project must equal the owning requirement's project"))
	}

	tc, err := domain.NewTestCase(p.OrgID, in.ProjectID, in.ReqID, in.Title, in.Steps)
	if err != nil {
		return nil, fmt.Errorf("entitystore.CreateTestCase: %w", err)
	}
	tc.SourceSys = in.SourceSys
	tc.SourceRef = in.SourceRef

	if err := s.tests.Create(ctx, tc); err != nil {
		return nil, fmt.Errorf("entitystore.CreateTestCase: %w", err)
	}
	if err := s.recordChange(ctx, p, &in.ProjectID, domain.ResourceTest, tc.ID.String(), "create", "", nil, tc, nil); err != nil {
		return nil, err
	}
	return tc, nil
}

// GetTestCase returns one test case under read authorization.
func (s *Store) GetTestCase(ctx context.Context, p directory.Principal, id uuid.UUID, includeDeleted bool) (*domain.TestCase, error) {
	tc, err := s.tests.GetByID(ctx, p.OrgID, id, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("entitystore.GetTestCase: %w", err)
	}
	if _, err := s.authorizeInProject(ctx, p, tc.ProjectID, policy.OpTestRead, domain.ResourceTest, id.String(), "read"); err != nil {
		return nil, fmt.Errorf("entitystore.GetTestCase: %w", err)
	}
	return tc, nil
}

// ListTestCases lists a project's test cases.
func (s *Store) ListTestCases(ctx context.Context, p directory.Principal, projectID uuid.UUID, includeDeleted bool) ([]*domain.TestCase, error) {
	if _, err := s.authorizeInProject(ctx, p, projectID, policy.OpTestRead, domain.ResourceTest, "", "list"); err != nil {
		return nil, fmt.Errorf("entitystore.ListTestCases: %w", err)
	}
	out, err := s.tests.ListByProject(ctx, p.OrgID, projectID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("entitystore.ListTestCases: %w", err)
	}
	return out, nil
}

// TestCaseUpdate carries the mutable test-case fields. The owning
// requirement reference is immutable; recreate the test to move it.
type TestCaseUpdate struct {
	ID              uuid.UUID
	ExpectedVersion int64
	Title           *string
	Steps           []domain.TestStep
	ReviewStatus    *domain.ReviewStatus
	Approval        *domain.ApprovalStatus
	QualityScore    *int
}

// UpdateTestCase applies a versioned test-case update.
func (s *Store) UpdateTestCase(ctx context.Context, p directory.Principal, upd TestCaseUpdate) (*domain.TestCase, error) {
	cur, err := s.tests.GetByID(ctx, p.OrgID, upd.ID, false)
	if err != nil {
		return nil, fmt.Errorf("entitystore.UpdateTestCase: %w", err)
	}
	if _, err := s.authorizeInProject(ctx, p, cur.ProjectID, policy.OpTestWrite, domain.ResourceTest, upd.ID.String(), "update"); err != nil {
		return nil, fmt.Errorf("entitystore.UpdateTestCase: %w", err)
	}

	next := *cur
	next.Steps = append([]domain.TestStep(nil), cur.Steps...)
	var changed []string

	if upd.Title != nil && *upd.Title != cur.Title {
		if *upd.Title == "" {
			return nil, fmt.Errorf("entitystore.UpdateTestCase: %w",
				domain.NewInvariantError("test_title", "title", "title must not be empty"))
		}
		next.Title = *upd.Title
		changed = append(changed, "title")
	}
	if upd.Steps != nil {
		next.Steps = upd.Steps
		changed = append(changed, "steps")
	}
	if upd.ReviewStatus != nil && *upd.ReviewStatus != cur.ReviewStatus {
		next.ReviewStatus = *upd.ReviewStatus
		changed = append(changed, "review_status")
	}
	if upd.Approval != nil && *upd.Approval != cur.Approval {
		next.Approval = *upd.Approval
		changed = append(changed, "approval_status")
	}
	if upd.QualityScore != nil && *upd.QualityScore != cur.QualityScore {
		if *upd.QualityScore < 0 || *upd.QualityScore > 100 {
			return nil, fmt.Errorf("entitystore.UpdateTestCase: %w",
				domain.NewInvariantError("quality_score_range", "quality_score", "quality score must be within 0-100"))
		}
		next.QualityScore = *upd.QualityScore
		changed = append(changed, "quality_score")
	}

	if len(changed) == 0 {
		return cur, nil
	}

	if err := s.tests.Update(ctx, &next, upd.ExpectedVersion); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			obs.VersionConflicts.WithLabelValues(string(domain.ResourceTest)).Inc()
			s.recordFailure(ctx, p, &cur.ProjectID, domain.CategoryDataChange, domain.ResourceTest, upd.ID.String(), "update", err)
		}
		return nil, fmt.Errorf("entitystore.UpdateTestCase: %w", err)
	}

	if err := s.recordChange(ctx, p, &cur.ProjectID, domain.ResourceTest, upd.ID.String(), "update", "", cur, &next, changed); err != nil {
		return nil, err
	}
	return &next, nil
}

// DeleteTestCase soft-deletes a test case and cascades trace links
// referencing it. Recorded runs remain as immutable execution evidence.
func (s *Store) DeleteTestCase(ctx context.Context, p directory.Principal, id uuid.UUID, expectedVersion int64) error {
	cur, err := s.tests.GetByID(ctx, p.OrgID, id, false)
	if err != nil {
		return fmt.Errorf("entitystore.DeleteTestCase: %w", err)
	}
	if _, err := s.authorizeInProject(ctx, p, cur.ProjectID, policy.OpTestWrite, domain.ResourceTest, id.String(), "soft_delete"); err != nil {
		return fmt.Errorf("entitystore.DeleteTestCase: %w", err)
	}

	if err := s.tests.SoftDelete(ctx, p.OrgID, id, p.UserID, expectedVersion); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			obs.VersionConflicts.WithLabelValues(string(domain.ResourceTest)).Inc()
			s.recordFailure(ctx, p, &cur.ProjectID, domain.CategoryDataChange, domain.ResourceTest, id.String(), "soft_delete", err)
		}
		return fmt.Errorf("entitystore.DeleteTestCase: %w", err)
	}

	s.cascadeEndpointLinks(ctx, p, cur.ProjectID, domain.ResourceTest, id)

	if err := s.recordChange(ctx, p, &cur.ProjectID, domain.ResourceTest, id.String(), "soft_delete", "", cur, nil, nil); err != nil {
		return err
	}
	return nil
}

// RunInput carries the fields for recording a test execution.
type RunInput struct {
	TestID uuid.UUID
	Result domain.RunResult
	Notes  string
}

// RecordRun appends an execution result for a test case. Runs are
// append-only evidence and carry no version counter.
func (s *Store) RecordRun(ctx context.Context, p directory.Principal, in RunInput) (*domain.TestRun, error) {
	tc, err := s.tests.GetByID(ctx, p.OrgID, in.TestID, false)
	if err != nil {
		return nil, fmt.Errorf("entitystore.RecordRun: %w", err)
	}
	if _, err := s.authorizeInProject(ctx, p, tc.ProjectID, policy.OpRunCreate, domain.ResourceTestRun, "", "create"); err != nil {
		return nil, fmt.Errorf("entitystore.RecordRun: %w", err)
	}

	run, err := domain.NewTestRun(p.OrgID, tc.ProjectID, tc.ID, p.UserID, in.Result)
	if err != nil {
		return nil, fmt.Errorf("entitystore.RecordRun: %w", err)
	}
	run.Notes = in.Notes

	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("entitystore.RecordRun: %w", err)
	}
	if err := s.recordChange(ctx, p, &tc.ProjectID, domain.ResourceTestRun, run.ID.String(), "create", "", nil, run, nil); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns lists a project's execution results, newest last. Run notes are
// masked for principals without an unmask-capable role.
func (s *Store) ListRuns(ctx context.Context, p directory.Principal, projectID uuid.UUID) ([]*domain.TestRun, error) {
	if _, err := s.authorizeInProject(ctx, p, projectID, policy.OpTestRead, domain.ResourceTestRun, "", "list"); err != nil {
		return nil, fmt.Errorf("entitystore.ListRuns: %w", err)
	}
	runs, err := s.runs.ListByProject(ctx, p.OrgID, projectID)
	if err != nil {
		return nil, fmt.Errorf("entitystore.ListRuns: %w", err)
	}

	out := make([]*domain.TestRun, len(runs))
	for i, r := range runs {
		out[i] = policy.MaskRun(p, r)
	}
	return out, nil
}
