package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ReviewStatus is the peer-review state of a test case.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewInReview ReviewStatus = "in_review"
	ReviewDone     ReviewStatus = "reviewed"
)

// ApprovalStatus is the sign-off state of a test case.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// TestStep is one ordered step of a test case.
type TestStep struct {
	Index    int    `json:"index"`
	Action   string `json:"action"`
	Expected string `json:"expected"`
}

// TestCase verifies exactly one owning requirement. ProjectID is
// denormalized and must always equal the owning requirement's project.
type TestCase struct {
	ID           uuid.UUID
	OrgID        uuid.UUID
	ProjectID    uuid.UUID
	ReqID        uuid.UUID
	Title        string
	Steps        []TestStep
	ReviewStatus ReviewStatus
	Approval     ApprovalStatus
	QualityScore int // 0-100
	SourceSys    string
	SourceRef    string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
	DeletedBy    *uuid.UUID
}

// NewTestCase creates a TestCase with validated required fields.
func NewTestCase(orgID, projectID, reqID uuid.UUID, title string, steps []TestStep) (*TestCase, error) {
	if orgID == uuid.Nil {
		return nil, errors.New("testcase: organization ID is required")
	}
	if projectID == uuid.Nil {
		return nil, errors.New("testcase: project ID is required")
	}
	if reqID == uuid.Nil {
		return nil, errors.New("testcase: owning requirement ID is required")
	}
	if title == "" {
		return nil, errors.New("testcase: title is required")
	}
	now := time.Now().UTC()
	return &TestCase{
		ID:           uuid.New(),
		OrgID:        orgID,
		ProjectID:    projectID,
		ReqID:        reqID,
		Title:        title,
		Steps:        steps,
		ReviewStatus: ReviewPending,
		Approval:     ApprovalPending,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsApproved reports whether the test case has been signed off.
func (t *TestCase) IsApproved() bool { return t.Approval == ApprovalApproved }

// IsDeleted reports whether the test case has been soft-deleted.
func (t *TestCase) IsDeleted() bool { return t.DeletedAt != nil }

// RunResult is the outcome of one execution of a test case.
type RunResult string

const (
	RunPassed  RunResult = "passed"
	RunFailed  RunResult = "failed"
	RunBlocked RunResult = "blocked"
	RunSkipped RunResult = "skipped"
)

// Valid reports whether r is a known run result.
func (r RunResult) Valid() bool {
	switch r {
	case RunPassed, RunFailed, RunBlocked, RunSkipped:
		return true
	}
	return false
}

// TestRun records one execution of a test case. Runs are append-only
// evidence; they are never updated or deleted.
type TestRun struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	ProjectID  uuid.UUID
	TestID     uuid.UUID
	Result     RunResult
	ExecutedBy uuid.UUID
	ExecutedAt time.Time
	Notes      string
}

// NewTestRun creates a TestRun with validated required fields.
func NewTestRun(orgID, projectID, testID, executedBy uuid.UUID, result RunResult) (*TestRun, error) {
	if orgID == uuid.Nil {
		return nil, errors.New("testrun: organization ID is required")
	}
	if projectID == uuid.Nil {
		return nil, errors.New("testrun: project ID is required")
	}
	if testID == uuid.Nil {
		return nil, errors.New("testrun: test ID is required")
	}
	if executedBy == uuid.Nil {
		return nil, errors.New("testrun: executor ID is required")
	}
	if !result.Valid() {
		return nil, errors.New("testrun: unknown result " + string(result))
	}
	return &TestRun{
		ID:         uuid.New(),
		OrgID:      orgID,
		ProjectID:  projectID,
		TestID:     testID,
		Result:     result,
		ExecutedBy: executedBy,
		ExecutedAt: time.Now().UTC(),
	}, nil
}

type TestCaseRepository interface {
	Create(ctx context.Context, t *TestCase) error
	GetByID(ctx context.Context, orgID, id uuid.UUID, includeDeleted bool) (*TestCase, error)
	Update(ctx context.Context, t *TestCase, expectedVersion int64) error
	SoftDelete(ctx context.Context, orgID, id, deletedBy uuid.UUID, expectedVersion int64) error
	ListByProject(ctx context.Context, orgID, projectID uuid.UUID, includeDeleted bool) ([]*TestCase, error)
	ListByRequirement(ctx context.Context, orgID, reqID uuid.UUID) ([]*TestCase, error)
}

type TestRunRepository interface {
	Create(ctx context.Context, r *TestRun) error
	ListByTest(ctx context.Context, orgID, testID uuid.UUID) ([]*TestRun, error)
	ListByProject(ctx context.Context, orgID, projectID uuid.UUID) ([]*TestRun, error)
	// LatestByTest returns the most recent run per test for a project,
	// keyed by test ID. Tests without runs are absent from the map.
	LatestByTest(ctx context.Context, orgID, projectID uuid.UUID) (map[uuid.UUID]*TestRun, error)
}
