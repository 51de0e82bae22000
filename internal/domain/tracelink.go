package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ResourceType identifies the kind of entity a trace link endpoint or an
// audit event refers to.
type ResourceType string

const (
	ResourceOrganization ResourceType = "organization"
	ResourceUser         ResourceType = "user"
	ResourceProject      ResourceType = "project"
	ResourceRequirement  ResourceType = "requirement"
	ResourceTest         ResourceType = "test"
	ResourceTestRun      ResourceType = "test_run"
	ResourceTraceLink    ResourceType = "trace_link"
	ResourceDocument     ResourceType = "document"
	ResourceSnapshot     ResourceType = "score_snapshot"
)

// LinkType is the semantic relation a trace link asserts.
type LinkType string

const (
	LinkVerifies    LinkType = "verifies"
	LinkSatisfies   LinkType = "satisfies"
	LinkDerivesFrom LinkType = "derives_from"
	LinkImplements  LinkType = "implements"
)

type endpointPair struct {
	source ResourceType
	target ResourceType
}

// legalEndpoints constrains which (source, target) type pairs each link
// type may connect. verifies only runs from a test to a requirement.
var legalEndpoints = map[LinkType][]endpointPair{
	LinkVerifies: {
		{ResourceTest, ResourceRequirement},
	},
	LinkSatisfies: {
		{ResourceTest, ResourceRequirement},
		{ResourceRequirement, ResourceRequirement},
	},
	LinkDerivesFrom: {
		{ResourceRequirement, ResourceRequirement},
	},
	LinkImplements: {
		{ResourceRequirement, ResourceDocument},
		{ResourceTest, ResourceDocument},
	},
}

// Allows reports whether the link type permits the given endpoint types.
func (lt LinkType) Allows(source, target ResourceType) bool {
	for _, p := range legalEndpoints[lt] {
		if p.source == source && p.target == target {
			return true
		}
	}
	return false
}

// CoversRequirement reports whether links of this type contribute test
// coverage to the traceability matrix.
func (lt LinkType) CoversRequirement() bool {
	return lt == LinkVerifies || lt == LinkSatisfies
}

// TraceLink is a typed relation between two compliance artifacts inside one
// project. Both endpoints must resolve to non-deleted entities in the same
// project as the link.
type TraceLink struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	ProjectID  uuid.UUID
	SourceType ResourceType
	SourceID   uuid.UUID
	TargetType ResourceType
	TargetID   uuid.UUID
	LinkType   LinkType
	Confidence float64 // 0-1, from AI-assisted linking; 1 for manual links
	Validated  bool
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
	DeletedBy  *uuid.UUID
}

// NewTraceLink creates a TraceLink with validated required fields. Endpoint
// resolution (same project, non-deleted) is validated by the entity store.
func NewTraceLink(orgID, projectID uuid.UUID, sourceType ResourceType, sourceID uuid.UUID, targetType ResourceType, targetID uuid.UUID, linkType LinkType, confidence float64) (*TraceLink, error) {
	if orgID == uuid.Nil {
		return nil, errors.New("tracelink: organization ID is required")
	}
	if projectID == uuid.Nil {
		return nil, errors.New("tracelink: project ID is required")
	}
	if sourceID == uuid.Nil || targetID == uuid.Nil {
		return nil, errors.New("tracelink: both endpoint IDs are required")
	}
	if confidence < 0 || confidence > 1 {
		return nil, errors.New("tracelink: confidence must be within [0,1]")
	}
	if !linkType.Allows(sourceType, targetType) {
		return nil, NewInvariantError("link_endpoint_types", "link_type",
			string(linkType)+" does not permit "+string(sourceType)+" -> "+string(targetType))
	}
	now := time.Now().UTC()
	return &TraceLink{
		ID:         uuid.New(),
		OrgID:      orgID,
		ProjectID:  projectID,
		SourceType: sourceType,
		SourceID:   sourceID,
		TargetType: targetType,
		TargetID:   targetID,
		LinkType:   linkType,
		Confidence: confidence,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsDeleted reports whether the trace link has been soft-deleted.
func (l *TraceLink) IsDeleted() bool { return l.DeletedAt != nil }

type TraceLinkRepository interface {
	Create(ctx context.Context, l *TraceLink) error
	GetByID(ctx context.Context, orgID, id uuid.UUID, includeDeleted bool) (*TraceLink, error)
	Update(ctx context.Context, l *TraceLink, expectedVersion int64) error
	SoftDelete(ctx context.Context, orgID, id, deletedBy uuid.UUID, expectedVersion int64) error
	ListByProject(ctx context.Context, orgID, projectID uuid.UUID, includeDeleted bool) ([]*TraceLink, error)
}
