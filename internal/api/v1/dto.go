package v1

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/ledger"
)

// Wire representations of the domain entities. Soft-delete bookkeeping and
// internal denormalizations stay off the wire; masked fields arrive from
// the entity store already redacted.

type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Region    string    `json:"region" doc:"Data-residency region"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toOrganization(o *domain.Organization) *Organization {
	return &Organization{ID: o.ID, Name: o.Name, Region: o.Region, CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt}
}

type User struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"external_id" doc:"Upstream IdP subject, masked for non-privileged readers"`
	Email      string    `json:"email" doc:"Masked for non-privileged readers"`
	Name       string    `json:"name"`
	Roles      []string  `json:"roles"`
	Status     string    `json:"status" enum:"active,suspended,deactivated"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toUser(u *domain.User) *User {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	return &User{
		ID:         u.ID,
		ExternalID: u.ExternalID,
		Email:      u.Email,
		Name:       u.Name,
		Roles:      roles,
		Status:     string(u.Status),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func toUsers(in []*domain.User) []*User {
	out := make([]*User, len(in))
	for i, u := range in {
		out[i] = toUser(u)
	}
	return out
}

type Project struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Standards  []string   `json:"standards" doc:"Regulatory framework identifiers"`
	RiskClass  string     `json:"risk_class"`
	Stage      string     `json:"stage"`
	OwnerID    uuid.UUID  `json:"owner_id"`
	Visibility string     `json:"visibility"`
	Version    int64      `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

func toProject(p *domain.Project) *Project {
	return &Project{
		ID:         p.ID,
		Name:       p.Name,
		Standards:  p.Standards,
		RiskClass:  string(p.RiskClass),
		Stage:      string(p.Stage),
		OwnerID:    p.OwnerID,
		Visibility: string(p.Visibility),
		Version:    p.Version,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
		DeletedAt:  p.DeletedAt,
	}
}

func toProjects(in []*domain.Project) []*Project {
	out := make([]*Project, len(in))
	for i, p := range in {
		out[i] = toProject(p)
	}
	return out
}

type Requirement struct {
	ID         uuid.UUID  `json:"id"`
	ProjectID  uuid.UUID  `json:"project_id"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
	Level      int        `json:"level"`
	OrderIndex int        `json:"order_index"`
	Text       string     `json:"text"`
	RiskClass  string     `json:"risk_class"`
	Status     string     `json:"status"`
	Normative  bool       `json:"normative"`
	SourceSys  string     `json:"source_sys,omitempty"`
	SourceRef  string     `json:"source_ref,omitempty"`
	Version    int64      `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

func toRequirement(r *domain.Requirement) *Requirement {
	return &Requirement{
		ID:         r.ID,
		ProjectID:  r.ProjectID,
		ParentID:   r.ParentID,
		Level:      r.Level,
		OrderIndex: r.OrderIndex,
		Text:       r.Text,
		RiskClass:  string(r.RiskClass),
		Status:     string(r.Status),
		Normative:  r.Normative,
		SourceSys:  r.SourceSys,
		SourceRef:  r.SourceRef,
		Version:    r.Version,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		DeletedAt:  r.DeletedAt,
	}
}

func toRequirements(in []*domain.Requirement) []*Requirement {
	out := make([]*Requirement, len(in))
	for i, r := range in {
		out[i] = toRequirement(r)
	}
	return out
}

type TestCase struct {
	ID           uuid.UUID         `json:"id"`
	ProjectID    uuid.UUID         `json:"project_id"`
	ReqID        uuid.UUID         `json:"req_id"`
	Title        string            `json:"title"`
	Steps        []domain.TestStep `json:"steps"`
	ReviewStatus string            `json:"review_status"`
	Approval     string            `json:"approval"`
	QualityScore int               `json:"quality_score"`
	SourceSys    string            `json:"source_sys,omitempty"`
	SourceRef    string            `json:"source_ref,omitempty"`
	Version      int64             `json:"version"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	DeletedAt    *time.Time        `json:"deleted_at,omitempty"`
}

func toTestCase(tc *domain.TestCase) *TestCase {
	return &TestCase{
		ID:           tc.ID,
		ProjectID:    tc.ProjectID,
		ReqID:        tc.ReqID,
		Title:        tc.Title,
		Steps:        tc.Steps,
		ReviewStatus: string(tc.ReviewStatus),
		Approval:     string(tc.Approval),
		QualityScore: tc.QualityScore,
		SourceSys:    tc.SourceSys,
		SourceRef:    tc.SourceRef,
		Version:      tc.Version,
		CreatedAt:    tc.CreatedAt,
		UpdatedAt:    tc.UpdatedAt,
		DeletedAt:    tc.DeletedAt,
	}
}

func toTestCases(in []*domain.TestCase) []*TestCase {
	out := make([]*TestCase, len(in))
	for i, tc := range in {
		out[i] = toTestCase(tc)
	}
	return out
}

type TestRun struct {
	ID         uuid.UUID `json:"id"`
	ProjectID  uuid.UUID `json:"project_id"`
	TestID     uuid.UUID `json:"test_id"`
	Result     string    `json:"result" enum:"passed,failed,blocked,skipped"`
	ExecutedBy uuid.UUID `json:"executed_by"`
	ExecutedAt time.Time `json:"executed_at"`
	Notes      string    `json:"notes,omitempty"`
}

func toTestRun(r *domain.TestRun) *TestRun {
	return &TestRun{
		ID:         r.ID,
		ProjectID:  r.ProjectID,
		TestID:     r.TestID,
		Result:     string(r.Result),
		ExecutedBy: r.ExecutedBy,
		ExecutedAt: r.ExecutedAt,
		Notes:      r.Notes,
	}
}

func toTestRuns(in []*domain.TestRun) []*TestRun {
	out := make([]*TestRun, len(in))
	for i, r := range in {
		out[i] = toTestRun(r)
	}
	return out
}

type TraceLink struct {
	ID         uuid.UUID  `json:"id"`
	ProjectID  uuid.UUID  `json:"project_id"`
	SourceType string     `json:"source_type"`
	SourceID   uuid.UUID  `json:"source_id"`
	TargetType string     `json:"target_type"`
	TargetID   uuid.UUID  `json:"target_id"`
	LinkType   string     `json:"link_type"`
	Confidence float64    `json:"confidence" doc:"0-1, from AI-assisted linking; 1 for manual links"`
	Validated  bool       `json:"validated"`
	Version    int64      `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

func toTraceLink(l *domain.TraceLink) *TraceLink {
	return &TraceLink{
		ID:         l.ID,
		ProjectID:  l.ProjectID,
		SourceType: string(l.SourceType),
		SourceID:   l.SourceID,
		TargetType: string(l.TargetType),
		TargetID:   l.TargetID,
		LinkType:   string(l.LinkType),
		Confidence: l.Confidence,
		Validated:  l.Validated,
		Version:    l.Version,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
		DeletedAt:  l.DeletedAt,
	}
}

func toTraceLinks(in []*domain.TraceLink) []*TraceLink {
	out := make([]*TraceLink, len(in))
	for i, l := range in {
		out[i] = toTraceLink(l)
	}
	return out
}

type AuditEvent struct {
	ID            string          `json:"id" doc:"ULID, lexicographic order is chain order"`
	ProjectID     *uuid.UUID      `json:"project_id,omitempty"`
	Category      string          `json:"category"`
	Actor         string          `json:"actor"`
	ResourceType  string          `json:"resource_type"`
	ResourceID    string          `json:"resource_id"`
	Action        string          `json:"action"`
	Outcome       string          `json:"outcome"`
	Before        json.RawMessage `json:"before,omitempty"`
	After         json.RawMessage `json:"after,omitempty"`
	ChangedFields []string        `json:"changed_fields,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	ContentHash   string          `json:"content_hash"`
	PrevHash      string          `json:"prev_hash"`
	Signature     []byte          `json:"signature"`
}

func toAuditEvent(e *domain.AuditEvent) *AuditEvent {
	return &AuditEvent{
		ID:            e.ID,
		ProjectID:     e.ProjectID,
		Category:      string(e.Category),
		Actor:         e.Actor,
		ResourceType:  string(e.ResourceType),
		ResourceID:    e.ResourceID,
		Action:        e.Action,
		Outcome:       string(e.Outcome),
		Before:        e.Before,
		After:         e.After,
		ChangedFields: e.ChangedFields,
		Reason:        e.Reason,
		Timestamp:     e.Timestamp,
		ContentHash:   e.ContentHash,
		PrevHash:      e.PrevHash,
		Signature:     e.Signature,
	}
}

func toAuditEvents(in []*domain.AuditEvent) []*AuditEvent {
	out := make([]*AuditEvent, len(in))
	for i, e := range in {
		out[i] = toAuditEvent(e)
	}
	return out
}

type ChainVerification struct {
	Valid    bool `json:"valid"`
	BrokenAt int  `json:"broken_at" doc:"Zero-based index of the first bad link, -1 when valid"`
	Checked  int  `json:"checked"`
}

func toChainVerification(r ledger.VerifyResult) ChainVerification {
	return ChainVerification{Valid: r.Valid, BrokenAt: r.BrokenAt, Checked: r.Checked}
}
