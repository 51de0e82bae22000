package entitystore

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritrail/veritrail/internal/directory"
	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/ledger"
	"github.com/veritrail/veritrail/internal/policy"
	"github.com/veritrail/veritrail/internal/store/memory"
)

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	store *Store
	audit *AuditReader

	orgA uuid.UUID
	orgB uuid.UUID

	admin    directory.Principal // org A
	officer  directory.Principal // org A, compliance_officer
	qa       directory.Principal // org A, qa_engineer
	auditor  directory.Principal // org A, read-only
	outsider directory.Principal // org B admin
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := memory.New()
	keys, err := ledger.NewKeyring(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)

	store := New(Deps{
		Policy:        policy.New(nil),
		Ledger:        ledger.New(mem.AuditEvents(), keys),
		Organizations: mem.Organizations(),
		Users:         mem.Users(),
		Projects:      mem.Projects(),
		Requirements:  mem.Requirements(),
		TestCases:     mem.TestCases(),
		TestRuns:      mem.TestRuns(),
		TraceLinks:    mem.TraceLinks(),
	})

	orgA := uuid.New()
	orgB := uuid.New()

	return &fixture{
		store:    store,
		audit:    NewAuditReader(store, mem.AuditEvents()),
		orgA:     orgA,
		orgB:     orgB,
		admin:    directory.Principal{UserID: uuid.New(), OrgID: orgA, Roles: []domain.Role{domain.RoleAdmin}},
		officer:  directory.Principal{UserID: uuid.New(), OrgID: orgA, Roles: []domain.Role{domain.RoleComplianceOfficer}},
		qa:       directory.Principal{UserID: uuid.New(), OrgID: orgA, Roles: []domain.Role{domain.RoleQAEngineer}},
		auditor:  directory.Principal{UserID: uuid.New(), OrgID: orgA, Roles: []domain.Role{domain.RoleAuditor}},
		outsider: directory.Principal{UserID: uuid.New(), OrgID: orgB, Roles: []domain.Role{domain.RoleAdmin}},
	}
}

func (f *fixture) mustCreateProject(t *testing.T, p directory.Principal) *domain.Project {
	t.Helper()
	proj, err := f.store.CreateProject(context.Background(), p, "infusion pump firmware", []string{"iec_62304"}, domain.RiskClassII)
	require.NoError(t, err)
	return proj
}

func (f *fixture) mustCreateRequirement(t *testing.T, p directory.Principal, projectID uuid.UUID) *domain.Requirement {
	t.Helper()
	req, err := f.store.CreateRequirement(context.Background(), p, RequirementInput{
		ProjectID: projectID,
		Text:      "the pump shall stop on occlusion",
		RiskClass: domain.RiskA,
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) mustCreateTest(t *testing.T, p directory.Principal, projectID, reqID uuid.UUID) *domain.TestCase {
	t.Helper()
	tc, err := f.store.CreateTestCase(context.Background(), p, TestCaseInput{
		ProjectID: projectID,
		ReqID:     reqID,
		Title:     "occlusion alarm fires within 2s",
		Steps:     []domain.TestStep{{Index: 1, Action: "occlude line", Expected: "alarm within 2s"}},
	})
	require.NoError(t, err)
	return tc
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

func TestCreateAndGetProject(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	proj := f.mustCreateProject(t, f.admin)
	assert.Equal(t, int64(1), proj.Version)
	assert.Equal(t, domain.StagePlanning, proj.Stage)
	assert.Equal(t, f.admin.UserID, proj.OwnerID)

	got, err := f.store.GetProject(ctx, f.admin, proj.ID, false)
	require.NoError(t, err)
	assert.Equal(t, proj.ID, got.ID)

	// A read by another tenant's member is indistinguishable from a
	// missing project.
	_, err = f.store.GetProject(ctx, f.outsider, proj.ID, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProjectUpdateVersioning(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	proj := f.mustCreateProject(t, f.admin)

	name := "renamed"
	updated, err := f.store.UpdateProject(ctx, f.admin, ProjectUpdate{
		ID: proj.ID, ExpectedVersion: 1, Name: &name,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	// Stale expected version fails and leaves the row untouched.
	stale := "stale write"
	_, err = f.store.UpdateProject(ctx, f.admin, ProjectUpdate{
		ID: proj.ID, ExpectedVersion: 1, Name: &stale,
	})
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	got, err := f.store.GetProject(ctx, f.admin, proj.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, int64(2), got.Version)
}

func TestConcurrentProjectUpdates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	proj := f.mustCreateProject(t, f.admin)

	names := []string{"writer one", "writer two"}
	errs := make([]error, len(names))
	var wg sync.WaitGroup
	for i, n := range names {
		wg.Add(1)
		go func(i int, n string) {
			defer wg.Done()
			_, errs[i] = f.store.UpdateProject(ctx, f.admin, ProjectUpdate{
				ID: proj.ID, ExpectedVersion: 1, Name: &n,
			})
		}(i, n)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrVersionConflict)
		}
	}
	assert.Equal(t, 1, succeeded)

	got, err := f.store.GetProject(ctx, f.admin, proj.ID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version, "version advances exactly once")
}

func TestStageRegressionNeedsReason(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	proj := f.mustCreateProject(t, f.admin)

	dev := domain.StageDevelopment
	proj2, err := f.store.UpdateProject(ctx, f.admin, ProjectUpdate{
		ID: proj.ID, ExpectedVersion: proj.Version, Stage: &dev,
	})
	require.NoError(t, err)

	back := domain.StageDesignControls
	_, err = f.store.UpdateProject(ctx, f.admin, ProjectUpdate{
		ID: proj.ID, ExpectedVersion: proj2.Version, Stage: &back,
	})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	// QA engineers may not regress the stage at all.
	_, err = f.store.UpdateProject(ctx, f.qa, ProjectUpdate{
		ID: proj.ID, ExpectedVersion: proj2.Version, Stage: &back, Reason: "audit finding",
	})
	assert.ErrorIs(t, err, domain.ErrDenied)

	proj3, err := f.store.UpdateProject(ctx, f.admin, ProjectUpdate{
		ID: proj.ID, ExpectedVersion: proj2.Version, Stage: &back, Reason: "design review reopened",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StageDesignControls, proj3.Stage)

	events, err := f.audit.ListProjectEvents(ctx, f.admin, proj.ID, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "stage_regress", events[0].Action)
	assert.Equal(t, "design review reopened", events[0].Reason)
}

func TestNonDraftRequiresStandards(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	proj, err := f.store.CreateProject(ctx, f.admin, "draft project", nil, domain.RiskClassI)
	require.NoError(t, err)

	dev := domain.StageDevelopment
	_, err = f.store.UpdateProject(ctx, f.admin, ProjectUpdate{
		ID: proj.ID, ExpectedVersion: proj.Version, Stage: &dev,
	})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	// Supplying standards alongside the stage change satisfies the
	// invariant.
	_, err = f.store.UpdateProject(ctx, f.admin, ProjectUpdate{
		ID: proj.ID, ExpectedVersion: proj.Version, Stage: &dev, Standards: []string{"iso_13485"},
	})
	assert.NoError(t, err)
}

func TestAuditorCannotWrite(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.CreateProject(ctx, f.auditor, "p", []string{"iec_62304"}, domain.RiskClassI)
	assert.ErrorIs(t, err, domain.ErrDenied)

	proj := f.mustCreateProject(t, f.admin)
	name := "nope"
	_, err = f.store.UpdateProject(ctx, f.auditor, ProjectUpdate{ID: proj.ID, ExpectedVersion: 1, Name: &name})
	assert.ErrorIs(t, err, domain.ErrDenied)

	// Reads are fine.
	_, err = f.store.GetProject(ctx, f.auditor, proj.ID, false)
	assert.NoError(t, err)
}

func TestDeleteProjectCascades(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	proj := f.mustCreateProject(t, f.admin)
	req := f.mustCreateRequirement(t, f.officer, proj.ID)
	tc := f.mustCreateTest(t, f.qa, proj.ID, req.ID)
	link, err := f.store.CreateTraceLink(ctx, f.qa, TraceLinkInput{
		ProjectID:  proj.ID,
		SourceType: domain.ResourceTest, SourceID: tc.ID,
		TargetType: domain.ResourceRequirement, TargetID: req.ID,
		LinkType: domain.LinkVerifies, Confidence: 1, Validated: true,
	})
	require.NoError(t, err)

	require.NoError(t, f.store.DeleteProject(ctx, f.admin, proj.ID, proj.Version))

	_, err = f.store.GetProject(ctx, f.admin, proj.ID, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.store.GetRequirement(ctx, f.admin, req.ID, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.store.GetTestCase(ctx, f.admin, tc.ID, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.store.GetTraceLink(ctx, f.admin, link.ID, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Soft delete preserves the rows for audit reconstruction.
	got, err := f.store.GetProject(ctx, f.admin, proj.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())
}

// ---------------------------------------------------------------------------
// Requirements
// ---------------------------------------------------------------------------

func TestRequirementParentInvariants(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	projA := f.mustCreateProject(t, f.admin)
	projB := f.mustCreateProject(t, f.admin)
	foreign := f.mustCreateRequirement(t, f.officer, projB.ID)

	_, err := f.store.CreateRequirement(ctx, f.officer, RequirementInput{
		ProjectID: projA.ID,
		ParentID:  &foreign.ID,
		Text:      "child of a foreign parent",
		RiskClass: domain.RiskB,
	})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	var ie *domain.InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "parent_same_project", ie.Invariant)

	parent := f.mustCreateRequirement(t, f.officer, projA.ID)
	child, err := f.store.CreateRequirement(ctx, f.officer, RequirementInput{
		ProjectID: projA.ID,
		ParentID:  &parent.ID,
		Text:      "derived requirement",
		RiskClass: domain.RiskB,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, child.Level)
}

func TestRequirementReparentCycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	proj := f.mustCreateProject(t, f.admin)
	a := f.mustCreateRequirement(t, f.officer, proj.ID)
	b, err := f.store.CreateRequirement(ctx, f.officer, RequirementInput{
		ProjectID: proj.ID, ParentID: &a.ID, Text: "b", RiskClass: domain.RiskC,
	})
	require.NoError(t, err)
	c, err := f.store.CreateRequirement(ctx, f.officer, RequirementInput{
		ProjectID: proj.ID, ParentID: &b.ID, Text: "c", RiskClass: domain.RiskC,
	})
	require.NoError(t, err)

	// a -> b -> c exists; making c the parent of a closes a cycle.
	_, err = f.store.UpdateRequirement(ctx, f.officer, RequirementUpdate{
		ID: a.ID, ExpectedVersion: a.Version, ParentID: &c.ID,
	})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	var ie *domain.InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "requirement_tree_acyclic", ie.Invariant)

	// Self-parenting is rejected outright.
	_, err = f.store.UpdateRequirement(ctx, f.officer, RequirementUpdate{
		ID: a.ID, ExpectedVersion: a.Version, ParentID: &a.ID,
	})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestRequirementStatusWorkflow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	proj := f.mustCreateProject(t, f.admin)
	req := f.mustCreateRequirement(t, f.officer, proj.ID)

	approved := domain.RequirementApproved
	_, err := f.store.UpdateRequirement(ctx, f.officer, RequirementUpdate{
		ID: req.ID, ExpectedVersion: req.Version, Status: &approved,
	})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation, "draft cannot jump to approved")

	review := domain.RequirementUnderReview
	r2, err := f.store.UpdateRequirement(ctx, f.officer, RequirementUpdate{
		ID: req.ID, ExpectedVersion: req.Version, Status: &review,
	})
	require.NoError(t, err)

	r3, err := f.store.UpdateRequirement(ctx, f.officer, RequirementUpdate{
		ID: req.ID, ExpectedVersion: r2.Version, Status: &approved,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RequirementApproved, r3.Status)
}

func TestDeleteRequirementInUse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	proj := f.mustCreateProject(t, f.admin)
	req := f.mustCreateRequirement(t, f.officer, proj.ID)
	f.mustCreateTest(t, f.qa, proj.ID, req.ID)

	err := f.store.DeleteRequirement(ctx, f.officer, req.ID, req.Version)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	var ie *domain.InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "requirement_in_use", ie.Invariant)
}

// flakyLinkRepo fails soft-deletes for one marked link.
type flakyLinkRepo struct {
	domain.TraceLinkRepository
	failID uuid.UUID
}

func (r *flakyLinkRepo) SoftDelete(ctx context.Context, orgID, id, deletedBy uuid.UUID, expectedVersion int64) error {
	if id == r.failID {
		return errors.New("storage offline")
	}
	return r.TraceLinkRepository.SoftDelete(ctx, orgID, id, deletedBy, expectedVersion)
}

// A failing link soft-delete must not abort the cascade: the remaining
// links still get cleaned up and the requirement delete itself succeeds.
func TestLinkCascadeContinuesPastFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := memory.New()
	keys, err := ledger.NewKeyring(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	flaky := &flakyLinkRepo{TraceLinkRepository: mem.TraceLinks()}
	store := New(Deps{
		Policy:        policy.New(nil),
		Ledger:        ledger.New(mem.AuditEvents(), keys),
		Organizations: mem.Organizations(),
		Users:         mem.Users(),
		Projects:      mem.Projects(),
		Requirements:  mem.Requirements(),
		TestCases:     mem.TestCases(),
		TestRuns:      mem.TestRuns(),
		TraceLinks:    flaky,
	})
	admin := directory.Principal{UserID: uuid.New(), OrgID: uuid.New(), Roles: []domain.Role{domain.RoleAdmin}}

	proj, err := store.CreateProject(ctx, admin, "infusion pump firmware", []string{"iec_62304"}, domain.RiskClassII)
	require.NoError(t, err)
	target, err := store.CreateRequirement(ctx, admin, RequirementInput{
		ProjectID: proj.ID, Text: "the pump shall stop on occlusion", RiskClass: domain.RiskA,
	})
	require.NoError(t, err)
	owner, err := store.CreateRequirement(ctx, admin, RequirementInput{
		ProjectID: proj.ID, Text: "the pump shall alarm on occlusion", RiskClass: domain.RiskA,
	})
	require.NoError(t, err)

	var links [2]*domain.TraceLink
	for i := range links {
		tc, tcErr := store.CreateTestCase(ctx, admin, TestCaseInput{
			ProjectID: proj.ID, ReqID: owner.ID, Title: "occlusion check",
		})
		require.NoError(t, tcErr)
		links[i], err = store.CreateTraceLink(ctx, admin, TraceLinkInput{
			ProjectID:  proj.ID,
			SourceType: domain.ResourceTest, SourceID: tc.ID,
			TargetType: domain.ResourceRequirement, TargetID: target.ID,
			LinkType:   domain.LinkVerifies,
			Confidence: 0.9,
		})
		require.NoError(t, err)
	}
	flaky.failID = links[0].ID

	require.NoError(t, store.DeleteRequirement(ctx, admin, target.ID, target.Version))

	// The second link cascaded; the stuck one stays live for a later pass.
	live, err := store.ListTraceLinks(ctx, admin, proj.ID, false)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, links[0].ID, live[0].ID)
}

// ---------------------------------------------------------------------------
// Tests and runs
// ---------------------------------------------------------------------------

func TestTestCaseProjectMatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	projA := f.mustCreateProject(t, f.admin)
	projB := f.mustCreateProject(t, f.admin)
	req := f.mustCreateRequirement(t, f.officer, projB.ID)

	_, err := f.store.CreateTestCase(ctx, f.qa, TestCaseInput{
		ProjectID: projA.ID,
		ReqID:     req.ID,
		Title:     "wrong project",
	})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	var ie *domain.InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "test_project_match", ie.Invariant)
}

func TestRecordRunAndMasking(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	proj := f.mustCreateProject(t, f.admin)
	req := f.mustCreateRequirement(t, f.officer, proj.ID)
	tc := f.mustCreateTest(t, f.qa, proj.ID, req.ID)

	run, err := f.store.RecordRun(ctx, f.qa, RunInput{
		TestID: tc.ID, Result: domain.RunPassed, Notes: "patient simulator lot 7",
	})
	require.NoError(t, err)
	assert.Equal(t, proj.ID, run.ProjectID)

	// Auditors may not record runs.
	_, err = f.store.RecordRun(ctx, f.auditor, RunInput{TestID: tc.ID, Result: domain.RunFailed})
	assert.ErrorIs(t, err, domain.ErrDenied)

	qaRuns, err := f.store.ListRuns(ctx, f.qa, proj.ID)
	require.NoError(t, err)
	require.Len(t, qaRuns, 1)
	assert.Equal(t, policy.Redacted, qaRuns[0].Notes)

	adminRuns, err := f.store.ListRuns(ctx, f.admin, proj.ID)
	require.NoError(t, err)
	require.Len(t, adminRuns, 1)
	assert.Equal(t, "patient simulator lot 7", adminRuns[0].Notes)
}

// ---------------------------------------------------------------------------
// Trace links
// ---------------------------------------------------------------------------

func TestTraceLinkEndpointResolution(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	proj := f.mustCreateProject(t, f.admin)
	req := f.mustCreateRequirement(t, f.officer, proj.ID)
	tc := f.mustCreateTest(t, f.qa, proj.ID, req.ID)

	// Dangling source ID fails endpoint resolution.
	_, err := f.store.CreateTraceLink(ctx, f.qa, TraceLinkInput{
		ProjectID:  proj.ID,
		SourceType: domain.ResourceTest, SourceID: uuid.New(),
		TargetType: domain.ResourceRequirement, TargetID: req.ID,
		LinkType: domain.LinkVerifies, Confidence: 1,
	})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	// verifies only runs from a test to a requirement.
	_, err = f.store.CreateTraceLink(ctx, f.qa, TraceLinkInput{
		ProjectID:  proj.ID,
		SourceType: domain.ResourceRequirement, SourceID: req.ID,
		TargetType: domain.ResourceTest, TargetID: tc.ID,
		LinkType: domain.LinkVerifies, Confidence: 1,
	})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	link, err := f.store.CreateTraceLink(ctx, f.qa, TraceLinkInput{
		ProjectID:  proj.ID,
		SourceType: domain.ResourceTest, SourceID: tc.ID,
		TargetType: domain.ResourceRequirement, TargetID: req.ID,
		LinkType: domain.LinkVerifies, Confidence: 0.8,
	})
	require.NoError(t, err)
	assert.False(t, link.Validated)

	validated := true
	conf := 1.0
	upd, err := f.store.UpdateTraceLink(ctx, f.officer, TraceLinkUpdate{
		ID: link.ID, ExpectedVersion: link.Version, Validated: &validated, Confidence: &conf,
	})
	require.NoError(t, err)
	assert.True(t, upd.Validated)
	assert.Equal(t, int64(2), upd.Version)
}

// ---------------------------------------------------------------------------
// Audit trail
// ---------------------------------------------------------------------------

func TestMutationsProduceVerifiableChain(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	proj := f.mustCreateProject(t, f.admin)
	req := f.mustCreateRequirement(t, f.officer, proj.ID)
	tc := f.mustCreateTest(t, f.qa, proj.ID, req.ID)
	_, err := f.store.RecordRun(ctx, f.qa, RunInput{TestID: tc.ID, Result: domain.RunPassed})
	require.NoError(t, err)

	res, err := f.audit.VerifyProjectChain(ctx, f.auditor, proj.ID)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 4, res.Checked)

	events, err := f.audit.ListProjectEvents(ctx, f.auditor, proj.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 4)
	// Newest first.
	assert.Equal(t, domain.ResourceTestRun, events[0].ResourceType)
	assert.Equal(t, domain.ResourceProject, events[3].ResourceType)
	assert.Equal(t, f.admin.UserID.String(), events[3].Actor)

	// Outsiders cannot read the trail.
	_, err = f.audit.ListProjectEvents(ctx, f.outsider, proj.ID, 10, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVersionConflictIsAudited(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	proj := f.mustCreateProject(t, f.admin)
	name := "winner"
	_, err := f.store.UpdateProject(ctx, f.admin, ProjectUpdate{ID: proj.ID, ExpectedVersion: 1, Name: &name})
	require.NoError(t, err)

	loser := "loser"
	_, err = f.store.UpdateProject(ctx, f.admin, ProjectUpdate{ID: proj.ID, ExpectedVersion: 1, Name: &loser})
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	events, err := f.audit.ListProjectEvents(ctx, f.admin, proj.ID, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, domain.OutcomeFailure, events[0].Outcome)
}
