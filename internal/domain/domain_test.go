package domain_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritrail/veritrail/internal/domain"
)

// ---------------------------------------------------------------------------
// 1. RequirementStatus.ValidTransition — full state-machine matrix.
// ---------------------------------------------------------------------------

func TestRequirementStatus_ValidTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from domain.RequirementStatus
		to   domain.RequirementStatus
		want bool
	}{
		// From draft.
		{domain.RequirementDraft, domain.RequirementUnderReview, true},
		{domain.RequirementDraft, domain.RequirementApproved, false},
		{domain.RequirementDraft, domain.RequirementRejected, false},
		{domain.RequirementDraft, domain.RequirementDraft, false},

		// From under_review.
		{domain.RequirementUnderReview, domain.RequirementApproved, true},
		{domain.RequirementUnderReview, domain.RequirementRejected, true},
		{domain.RequirementUnderReview, domain.RequirementDraft, true}, // withdraw
		{domain.RequirementUnderReview, domain.RequirementUnderReview, false},

		// From rejected.
		{domain.RequirementRejected, domain.RequirementDraft, true},
		{domain.RequirementRejected, domain.RequirementApproved, false},
		{domain.RequirementRejected, domain.RequirementUnderReview, false},

		// From approved.
		{domain.RequirementApproved, domain.RequirementUnderReview, true}, // re-review
		{domain.RequirementApproved, domain.RequirementDraft, false},
		{domain.RequirementApproved, domain.RequirementRejected, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()

			got := tt.from.ValidTransition(tt.to)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ---------------------------------------------------------------------------
// 2. LifecycleStage ordering.
// ---------------------------------------------------------------------------

func TestLifecycleStage_Before(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a    domain.LifecycleStage
		b    domain.LifecycleStage
		want bool
	}{
		{domain.StagePlanning, domain.StageDesignControls, true},
		{domain.StageDesignControls, domain.StageDevelopment, true},
		{domain.StageDevelopment, domain.StageVerification, true},
		{domain.StageVerification, domain.StageValidation, true},
		{domain.StageValidation, domain.StageMaintenance, true},
		{domain.StageMaintenance, domain.StagePlanning, false},
		{domain.StageValidation, domain.StageDevelopment, false},
		{domain.StagePlanning, domain.StagePlanning, false},
		{domain.LifecycleStage("archived"), domain.StagePlanning, false},
		{domain.StagePlanning, domain.LifecycleStage("archived"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.a)+"<"+string(tt.b), func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.a.Before(tt.b))
		})
	}
}

// ---------------------------------------------------------------------------
// 3. RiskClass ordinality — A carries the most residual risk.
// ---------------------------------------------------------------------------

func TestRiskClass_HigherThan(t *testing.T) {
	t.Parallel()

	assert.True(t, domain.RiskA.HigherThan(domain.RiskB))
	assert.True(t, domain.RiskB.HigherThan(domain.RiskC))
	assert.True(t, domain.RiskC.HigherThan(domain.RiskD))
	assert.True(t, domain.RiskA.HigherThan(domain.RiskD))
	assert.False(t, domain.RiskD.HigherThan(domain.RiskA))
	assert.False(t, domain.RiskA.HigherThan(domain.RiskA))
	assert.False(t, domain.RiskClass("E").HigherThan(domain.RiskA))
}

// ---------------------------------------------------------------------------
// 4. TraceLink endpoint legality.
// ---------------------------------------------------------------------------

func TestLinkType_Allows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		link   domain.LinkType
		source domain.ResourceType
		target domain.ResourceType
		want   bool
	}{
		{domain.LinkVerifies, domain.ResourceTest, domain.ResourceRequirement, true},
		{domain.LinkVerifies, domain.ResourceRequirement, domain.ResourceTest, false},
		{domain.LinkVerifies, domain.ResourceRequirement, domain.ResourceRequirement, false},
		{domain.LinkSatisfies, domain.ResourceTest, domain.ResourceRequirement, true},
		{domain.LinkSatisfies, domain.ResourceRequirement, domain.ResourceRequirement, true},
		{domain.LinkSatisfies, domain.ResourceDocument, domain.ResourceRequirement, false},
		{domain.LinkDerivesFrom, domain.ResourceRequirement, domain.ResourceRequirement, true},
		{domain.LinkDerivesFrom, domain.ResourceTest, domain.ResourceRequirement, false},
		{domain.LinkImplements, domain.ResourceRequirement, domain.ResourceDocument, true},
		{domain.LinkImplements, domain.ResourceTest, domain.ResourceDocument, true},
		{domain.LinkImplements, domain.ResourceDocument, domain.ResourceRequirement, false},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("%s:%s->%s", tt.link, tt.source, tt.target)
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.link.Allows(tt.source, tt.target))
		})
	}
}

func TestNewTraceLink_RejectsIllegalEndpoints(t *testing.T) {
	t.Parallel()

	_, err := domain.NewTraceLink(
		uuid.New(), uuid.New(),
		domain.ResourceRequirement, uuid.New(),
		domain.ResourceTest, uuid.New(),
		domain.LinkVerifies, 1.0,
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	var ie *domain.InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "link_endpoint_types", ie.Invariant)
}

func TestNewTraceLink_ConfidenceBounds(t *testing.T) {
	t.Parallel()

	for _, conf := range []float64{-0.01, 1.01} {
		_, err := domain.NewTraceLink(
			uuid.New(), uuid.New(),
			domain.ResourceTest, uuid.New(),
			domain.ResourceRequirement, uuid.New(),
			domain.LinkVerifies, conf,
		)
		assert.Error(t, err, "confidence %v should be rejected", conf)
	}
}

// ---------------------------------------------------------------------------
// 5. AuditEvent content hashing — deterministic and change-sensitive.
// ---------------------------------------------------------------------------

func TestAuditEvent_ComputeContentHash_Deterministic(t *testing.T) {
	t.Parallel()

	e := &domain.AuditEvent{
		Category:      domain.CategoryDataChange,
		Actor:         uuid.New().String(),
		ResourceType:  domain.ResourceRequirement,
		ResourceID:    uuid.New().String(),
		Action:        "update",
		Outcome:       domain.OutcomeSuccess,
		Before:        []byte(`{"status":"draft"}`),
		After:         []byte(`{"status":"under_review"}`),
		ChangedFields: []string{"status"},
		Timestamp:     time.Now().UTC(),
	}

	first := e.ComputeContentHash()
	second := e.ComputeContentHash()
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestAuditEvent_ComputeContentHash_ChangesWithContent(t *testing.T) {
	t.Parallel()

	base := domain.AuditEvent{
		Category:     domain.CategoryDataChange,
		Actor:        "actor",
		ResourceType: domain.ResourceTest,
		ResourceID:   "rid",
		Action:       "create",
		Outcome:      domain.OutcomeSuccess,
		After:        []byte(`{"title":"t"}`),
	}

	mutated := base
	mutated.After = []byte(`{"title":"u"}`)

	assert.NotEqual(t, base.ComputeContentHash(), mutated.ComputeContentHash())
}

// Field boundaries must be unambiguous: shifting bytes between adjacent
// fields must change the hash.
func TestAuditEvent_ComputeContentHash_FieldBoundaries(t *testing.T) {
	t.Parallel()

	a := domain.AuditEvent{Actor: "ab", Action: "c"}
	b := domain.AuditEvent{Actor: "a", Action: "bc"}

	assert.NotEqual(t, a.ComputeContentHash(), b.ComputeContentHash())
}

// ---------------------------------------------------------------------------
// 6. Sentinel errors — identity, distinctness, and wrapping.
// ---------------------------------------------------------------------------

func TestSentinelErrors_Distinct(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrConflict,
		domain.ErrDenied,
		domain.ErrVersionConflict,
		domain.ErrInvariantViolation,
		domain.ErrChainBroken,
		domain.ErrUnknownPrincipal,
		domain.ErrAccountDeactivated,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}

			t.Run(a.Error()+"!="+b.Error(), func(t *testing.T) {
				t.Parallel()

				assert.NotErrorIs(t, a, b, "sentinel errors must be distinct")
			})
		}
	}
}

func TestSentinelErrors_WrappingPreservesIdentity(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("entitystore.Update: %w", domain.ErrVersionConflict)
	require.ErrorIs(t, wrapped, domain.ErrVersionConflict)

	inv := domain.NewInvariantError("requirement_tree_acyclic", "parent_req_id", "cycle detected")
	require.ErrorIs(t, inv, domain.ErrInvariantViolation)
}

// ---------------------------------------------------------------------------
// 7. Constructors — required-field validation.
// ---------------------------------------------------------------------------

func TestNewProject_Validation(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	ownerID := uuid.New()

	tests := []struct {
		name    string
		org     uuid.UUID
		owner   uuid.UUID
		pname   string
		wantErr bool
	}{
		{"valid", orgID, ownerID, "infusion-pump", false},
		{"missing org", uuid.Nil, ownerID, "infusion-pump", true},
		{"missing owner", orgID, uuid.Nil, "infusion-pump", true},
		{"missing name", orgID, ownerID, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := domain.NewProject(tt.org, tt.owner, tt.pname, []string{"iec_62304"}, domain.RiskClassII)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.StagePlanning, p.Stage)
			assert.Equal(t, int64(1), p.Version)
			assert.True(t, p.IsDraft())
			assert.False(t, p.IsDeleted())
		})
	}
}

func TestNewUser_Validation(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()

	_, err := domain.NewUser(orgID, "idp|123", "qa@example.com", "QA", []domain.Role{domain.RoleQAEngineer})
	require.NoError(t, err)

	_, err = domain.NewUser(orgID, "idp|123", "qa@example.com", "QA", nil)
	assert.Error(t, err, "empty role set must be rejected")

	_, err = domain.NewUser(orgID, "idp|123", "qa@example.com", "QA", []domain.Role{domain.Role("superuser")})
	assert.Error(t, err, "unknown role must be rejected")

	_, err = domain.NewUser(uuid.Nil, "idp|123", "", "QA", []domain.Role{domain.RoleAdmin})
	assert.Error(t, err)
}

func TestUser_HasRole(t *testing.T) {
	t.Parallel()

	u, err := domain.NewUser(uuid.New(), "idp|1", "", "x", []domain.Role{domain.RoleQAEngineer, domain.RoleAuditor})
	require.NoError(t, err)

	assert.True(t, u.HasRole(domain.RoleQAEngineer))
	assert.True(t, u.HasRole(domain.RoleAuditor))
	assert.False(t, u.HasRole(domain.RoleAdmin))
}

// ---------------------------------------------------------------------------
// 8. Score weighting — exact weighted sum and zero-denominator safety.
// ---------------------------------------------------------------------------

func TestScoreTerms_Weighted(t *testing.T) {
	t.Parallel()

	// 10 requirements / 3 approved, 8 tests / 6 approved,
	// 5 runs / 4 passed, 7 covered requirements.
	terms := domain.ScoreTerms{
		RequirementApproval: 3.0 / 10.0,
		Coverage:            7.0 / 10.0,
		TestApproval:        6.0 / 8.0,
		RunPass:             4.0 / 5.0,
	}

	got := terms.Weighted(domain.DefaultScoreWeights())
	want := 0.3*(3.0/10.0) + 0.3*(7.0/10.0) + 0.2*(6.0/8.0) + 0.2*(4.0/5.0)
	assert.InDelta(t, want, got, 1e-12)
}

func TestScoreTerms_Weighted_ZeroTerms(t *testing.T) {
	t.Parallel()

	got := domain.ScoreTerms{}.Weighted(domain.DefaultScoreWeights())
	assert.Zero(t, got)
}

// ---------------------------------------------------------------------------
// 9. Status constants — string value regression guards.
// ---------------------------------------------------------------------------

func TestCoverageStatusConstants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  domain.CoverageStatus
		want string
	}{
		{"no_tests", domain.CoverageNoTests, "no_tests"},
		{"not_executed", domain.CoverageNotExecuted, "not_executed"},
		{"compliant", domain.CoverageCompliant, "compliant"},
		{"mostly_compliant", domain.CoverageMostlyCompliant, "mostly_compliant"},
		{"non_compliant", domain.CoverageNonCompliant, "non_compliant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, string(tt.got))
		})
	}
}

func TestRoleConstants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  domain.Role
		want string
	}{
		{"admin", domain.RoleAdmin, "admin"},
		{"compliance_officer", domain.RoleComplianceOfficer, "compliance_officer"},
		{"qa_engineer", domain.RoleQAEngineer, "qa_engineer"},
		{"regulatory_specialist", domain.RoleRegulatorySpecialist, "regulatory_specialist"},
		{"security_officer", domain.RoleSecurityOfficer, "security_officer"},
		{"auditor", domain.RoleAuditor, "auditor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, string(tt.got))
			assert.True(t, tt.got.Valid())
		})
	}

	assert.False(t, domain.Role("superuser").Valid())
}
