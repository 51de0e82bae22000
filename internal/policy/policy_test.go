package policy_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritrail/veritrail/internal/directory"
	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/policy"
)

func principal(orgID uuid.UUID, roles ...domain.Role) directory.Principal {
	return directory.Principal{UserID: uuid.New(), OrgID: orgID, Roles: roles}
}

// ---------------------------------------------------------------------------
// Rule 1 — tenant isolation. A principal in organization A can never touch a
// resource in organization B, regardless of operation or role.
// ---------------------------------------------------------------------------

func TestAuthorize_TenantIsolation(t *testing.T) {
	t.Parallel()

	orgA := uuid.New()
	orgB := uuid.New()
	engine := policy.New(nil)

	ops := []policy.Operation{
		policy.OpProjectRead, policy.OpProjectUpdate, policy.OpProjectDelete,
		policy.OpRequirementRead, policy.OpRequirementWrite,
		policy.OpTestRead, policy.OpTestWrite,
		policy.OpAuditRead, policy.OpScoreRead,
	}
	roles := [][]domain.Role{
		{domain.RoleAdmin},
		{domain.RoleComplianceOfficer},
		{domain.RoleQAEngineer, domain.RoleSecurityOfficer},
		{domain.RoleAuditor},
	}

	for _, op := range ops {
		for _, rs := range roles {
			p := principal(orgA, rs...)
			res := policy.Resource{Type: domain.ResourceProject, OrgID: orgB}

			d := engine.Authorize(p, op, res)
			assert.False(t, d.Allowed, "op %s roles %v must be denied cross-tenant", op, rs)
			assert.NotEmpty(t, d.Reason)
		}
	}
}

func TestAuthorize_OwnerOverride(t *testing.T) {
	t.Parallel()

	orgA := uuid.New()
	orgB := uuid.New()
	engine := policy.New(nil)

	p := principal(orgA, domain.RoleAdmin)

	// A project owned by the principal resolves even when its organization
	// differs (owner override).
	res := policy.Resource{Type: domain.ResourceProject, OrgID: orgB, OwnerID: p.UserID}
	assert.True(t, engine.Authorize(p, policy.OpProjectRead, res).Allowed)

	// Owned by someone else: denied.
	res.OwnerID = uuid.New()
	assert.False(t, engine.Authorize(p, policy.OpProjectRead, res).Allowed)
}

// ---------------------------------------------------------------------------
// Rule 2 — project-scoped resources require the owning project to resolve.
// ---------------------------------------------------------------------------

func TestAuthorize_ProjectScopeRule(t *testing.T) {
	t.Parallel()

	orgA := uuid.New()
	orgB := uuid.New()
	engine := policy.New(nil)
	p := principal(orgA, domain.RoleQAEngineer)

	res := policy.Resource{
		Type:    domain.ResourceTest,
		OrgID:   orgA,
		Project: &policy.ProjectRef{OrgID: orgA},
	}
	assert.True(t, engine.Authorize(p, policy.OpTestRead, res).Allowed)

	// Same-org row whose owning project belongs to another tenant is denied.
	res.Project = &policy.ProjectRef{OrgID: orgB}
	assert.False(t, engine.Authorize(p, policy.OpTestRead, res).Allowed)

	// Unless the principal owns that project.
	res.Project = &policy.ProjectRef{OrgID: orgB, OwnerID: p.UserID}
	assert.True(t, engine.Authorize(p, policy.OpTestRead, res).Allowed)
}

// ---------------------------------------------------------------------------
// Rule 3 — write operations require a role intersection.
// ---------------------------------------------------------------------------

func TestAuthorize_WriteRoleRequirements(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	engine := policy.New(nil)
	res := policy.Resource{Type: domain.ResourceRequirement, OrgID: orgID}

	tests := []struct {
		name  string
		roles []domain.Role
		op    policy.Operation
		want  bool
	}{
		{"regulatory specialist writes requirements", []domain.Role{domain.RoleRegulatorySpecialist}, policy.OpRequirementWrite, true},
		{"qa engineer cannot write requirements", []domain.Role{domain.RoleQAEngineer}, policy.OpRequirementWrite, false},
		{"qa engineer writes tests", []domain.Role{domain.RoleQAEngineer}, policy.OpTestWrite, true},
		{"qa engineer records runs", []domain.Role{domain.RoleQAEngineer}, policy.OpRunCreate, true},
		{"auditor reads", []domain.Role{domain.RoleAuditor}, policy.OpRequirementRead, true},
		{"auditor cannot write anything", []domain.Role{domain.RoleAuditor}, policy.OpRequirementWrite, false},
		{"auditor cannot record runs", []domain.Role{domain.RoleAuditor}, policy.OpRunCreate, false},
		{"security officer purges audit", []domain.Role{domain.RoleSecurityOfficer}, policy.OpAuditPurge, true},
		{"compliance officer cannot purge audit", []domain.Role{domain.RoleComplianceOfficer}, policy.OpAuditPurge, false},
		{"admin regresses stage", []domain.Role{domain.RoleAdmin}, policy.OpStageRegress, true},
		{"qa engineer cannot regress stage", []domain.Role{domain.RoleQAEngineer}, policy.OpStageRegress, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := principal(orgID, tt.roles...)
			d := engine.Authorize(p, tt.op, res)
			assert.Equal(t, tt.want, d.Allowed)
		})
	}
}

func TestAuthorize_UnknownWriteOpDenied(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	engine := policy.New(policy.RoleRequirements{}) // empty config
	p := principal(orgID, domain.RoleAdmin)
	res := policy.Resource{Type: domain.ResourceProject, OrgID: orgID}

	assert.False(t, engine.Authorize(p, policy.OpProjectUpdate, res).Allowed,
		"write op missing from role requirements must be denied")
	assert.True(t, engine.Authorize(p, policy.OpProjectRead, res).Allowed,
		"reads are authorized by tenancy alone")
}

func TestAuthorize_UnresolvedPrincipalDenied(t *testing.T) {
	t.Parallel()

	engine := policy.New(nil)
	res := policy.Resource{Type: domain.ResourceProject, OrgID: uuid.New()}

	d := engine.Authorize(directory.Principal{}, policy.OpProjectRead, res)
	assert.False(t, d.Allowed)
}

// ---------------------------------------------------------------------------
// Rule 4 — masking.
// ---------------------------------------------------------------------------

func TestMaskUser(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	u, err := domain.NewUser(orgID, "idp|secret-sub", "person@example.com", "Person", []domain.Role{domain.RoleQAEngineer})
	require.NoError(t, err)

	t.Run("non-privileged reader sees redacted fields", func(t *testing.T) {
		t.Parallel()

		masked := policy.MaskUser(principal(orgID, domain.RoleQAEngineer), u)
		assert.Equal(t, policy.Redacted, masked.Email)
		assert.Equal(t, policy.Redacted, masked.ExternalID)
		assert.Equal(t, u.Name, masked.Name)

		// The stored row is untouched.
		assert.Equal(t, "person@example.com", u.Email)
	})

	t.Run("admin sees everything", func(t *testing.T) {
		t.Parallel()

		unmasked := policy.MaskUser(principal(orgID, domain.RoleAdmin), u)
		assert.Equal(t, "person@example.com", unmasked.Email)
	})

	t.Run("security officer sees everything", func(t *testing.T) {
		t.Parallel()

		unmasked := policy.MaskUser(principal(orgID, domain.RoleSecurityOfficer), u)
		assert.Equal(t, "idp|secret-sub", unmasked.ExternalID)
	})
}

func TestMaskRun(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	run, err := domain.NewTestRun(orgID, uuid.New(), uuid.New(), uuid.New(), domain.RunPassed)
	require.NoError(t, err)
	run.Notes = "observed on patient simulator bed 3"

	masked := policy.MaskRun(principal(orgID, domain.RoleAuditor), run)
	assert.Equal(t, policy.Redacted, masked.Notes)

	unmasked := policy.MaskRun(principal(orgID, domain.RoleSecurityOfficer), run)
	assert.Equal(t, "observed on patient simulator bed 3", unmasked.Notes)
}
