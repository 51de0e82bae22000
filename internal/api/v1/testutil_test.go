package v1_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	v1 "github.com/veritrail/veritrail/internal/api/v1"
	"github.com/veritrail/veritrail/internal/directory"
	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/entitystore"
	"github.com/veritrail/veritrail/internal/ledger"
	"github.com/veritrail/veritrail/internal/policy"
	"github.com/veritrail/veritrail/internal/server/middleware"
	"github.com/veritrail/veritrail/internal/store/memory"
	"github.com/veritrail/veritrail/internal/trace"
)

const testRetention = 30 * 24 * time.Hour

// ---------------------------------------------------------------------------
// Fixture — full API over the in-memory store
// ---------------------------------------------------------------------------

type apiFixture struct {
	api   humatest.TestAPI
	store *entitystore.Store

	admin    directory.Principal // provisioned org
	officer  directory.Principal // same org, compliance_officer
	qa       directory.Principal // same org, qa_engineer
	auditor  directory.Principal // same org, read-only
	outsider directory.Principal // different org, admin
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	mem := memory.New()
	keys, err := ledger.NewKeyring(bytes.Repeat([]byte{0x37}, 32))
	require.NoError(t, err)
	led := ledger.New(mem.AuditEvents(), keys)

	store := entitystore.New(entitystore.Deps{
		Policy:        policy.New(nil),
		Ledger:        led,
		Organizations: mem.Organizations(),
		Users:         mem.Users(),
		Projects:      mem.Projects(),
		Requirements:  mem.Requirements(),
		TestCases:     mem.TestCases(),
		TestRuns:      mem.TestRuns(),
		TraceLinks:    mem.TraceLinks(),
	})
	engine := trace.New(trace.Deps{
		Projects:     mem.Projects(),
		Requirements: mem.Requirements(),
		TestCases:    mem.TestCases(),
		TestRuns:     mem.TestRuns(),
		TraceLinks:   mem.TraceLinks(),
		Snapshots:    mem.Snapshots(),
		Ledger:       led,
		Weights:      domain.DefaultScoreWeights(),
	})

	org, err := store.ProvisionOrganization(context.Background(), "acme medical", "eu-west-1")
	require.NoError(t, err)

	_, api := humatest.New(t)
	v1.RegisterProvisioningRoutes(api, store)
	v1.RegisterOrganizationRoutes(api, store)
	v1.RegisterUserRoutes(api, store)
	v1.RegisterProjectRoutes(api, store)
	v1.RegisterRequirementRoutes(api, store)
	v1.RegisterTestRoutes(api, store)
	v1.RegisterTraceLinkRoutes(api, store)
	v1.RegisterAuditRoutes(api, entitystore.NewAuditReader(store, mem.AuditEvents()), testRetention)
	v1.RegisterScoreRoutes(api, store, engine)

	return &apiFixture{
		api:      api,
		store:    store,
		admin:    directory.Principal{UserID: uuid.New(), OrgID: org.ID, Roles: []domain.Role{domain.RoleAdmin}},
		officer:  directory.Principal{UserID: uuid.New(), OrgID: org.ID, Roles: []domain.Role{domain.RoleComplianceOfficer}},
		qa:       directory.Principal{UserID: uuid.New(), OrgID: org.ID, Roles: []domain.Role{domain.RoleQAEngineer}},
		auditor:  directory.Principal{UserID: uuid.New(), OrgID: org.ID, Roles: []domain.Role{domain.RoleAuditor}},
		outsider: directory.Principal{UserID: uuid.New(), OrgID: uuid.New(), Roles: []domain.Role{domain.RoleAdmin}},
	}
}

// asCtx injects a principal the way the auth middleware does.
func asCtx(p directory.Principal) context.Context {
	return middleware.WithPrincipal(context.Background(), p)
}

func (f *apiFixture) mustCreateProject(t *testing.T, p directory.Principal) *domain.Project {
	t.Helper()
	proj, err := f.store.CreateProject(context.Background(), p, "infusion pump firmware", []string{"iec_62304"}, domain.RiskClassII)
	require.NoError(t, err)
	return proj
}

func (f *apiFixture) mustCreateRequirement(t *testing.T, p directory.Principal, projectID uuid.UUID) *domain.Requirement {
	t.Helper()
	req, err := f.store.CreateRequirement(context.Background(), p, entitystore.RequirementInput{
		ProjectID: projectID,
		Text:      "the pump shall stop on occlusion",
		RiskClass: domain.RiskA,
	})
	require.NoError(t, err)
	return req
}

func (f *apiFixture) mustCreateTest(t *testing.T, p directory.Principal, projectID, reqID uuid.UUID) *domain.TestCase {
	t.Helper()
	tc, err := f.store.CreateTestCase(context.Background(), p, entitystore.TestCaseInput{
		ProjectID: projectID,
		ReqID:     reqID,
		Title:     "occlusion alarm fires within 2s",
		Steps:     []domain.TestStep{{Index: 1, Action: "occlude line", Expected: "alarm within 2s"}},
	})
	require.NoError(t, err)
	return tc
}
