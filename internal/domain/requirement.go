package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// RiskClass is the ordinal residual-risk class of a requirement.
// A is the highest residual risk, D the lowest.
type RiskClass string

const (
	RiskA RiskClass = "A"
	RiskB RiskClass = "B"
	RiskC RiskClass = "C"
	RiskD RiskClass = "D"
)

var riskRank = map[RiskClass]int{RiskA: 0, RiskB: 1, RiskC: 2, RiskD: 3}

// Valid reports whether r is a known risk class.
func (r RiskClass) Valid() bool {
	_, ok := riskRank[r]
	return ok
}

// HigherThan reports whether r carries more residual risk than other.
func (r RiskClass) HigherThan(other RiskClass) bool {
	a, okA := riskRank[r]
	b, okB := riskRank[other]
	return okA && okB && a < b
}

// RequirementStatus is the review workflow state of a requirement.
type RequirementStatus string

const (
	RequirementDraft       RequirementStatus = "draft"
	RequirementUnderReview RequirementStatus = "under_review"
	RequirementApproved    RequirementStatus = "approved"
	RequirementRejected    RequirementStatus = "rejected"
)

// ValidTransition reports whether moving from s to next is allowed.
func (s RequirementStatus) ValidTransition(next RequirementStatus) bool {
	switch s {
	case RequirementDraft:
		return next == RequirementUnderReview
	case RequirementUnderReview:
		return next == RequirementApproved || next == RequirementRejected || next == RequirementDraft
	case RequirementRejected:
		return next == RequirementDraft
	case RequirementApproved:
		return next == RequirementUnderReview // re-review after change
	}
	return false
}

// Requirement is a single regulatory requirement within a project.
// Requirements form an optional tree via ParentID; parents must live in the
// same project and the parent chain must be acyclic.
type Requirement struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	ProjectID  uuid.UUID
	ParentID   *uuid.UUID
	Level      int // depth in the tree, 0 for roots
	OrderIndex int // sibling order
	Text       string
	RiskClass  RiskClass
	Status     RequirementStatus
	Normative  bool
	SourceSys  string // originating ALM system, empty when authored here
	SourceRef  string // identifier in the originating system
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
	DeletedBy  *uuid.UUID
}

// NewRequirement creates a Requirement with validated required fields.
func NewRequirement(orgID, projectID uuid.UUID, text string, riskClass RiskClass) (*Requirement, error) {
	if orgID == uuid.Nil {
		return nil, errors.New("requirement: organization ID is required")
	}
	if projectID == uuid.Nil {
		return nil, errors.New("requirement: project ID is required")
	}
	if text == "" {
		return nil, errors.New("requirement: text is required")
	}
	if !riskClass.Valid() {
		return nil, errors.New("requirement: unknown risk class " + string(riskClass))
	}
	now := time.Now().UTC()
	return &Requirement{
		ID:        uuid.New(),
		OrgID:     orgID,
		ProjectID: projectID,
		Text:      text,
		RiskClass: riskClass,
		Status:    RequirementDraft,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsDeleted reports whether the requirement has been soft-deleted.
func (r *Requirement) IsDeleted() bool { return r.DeletedAt != nil }

type RequirementRepository interface {
	Create(ctx context.Context, r *Requirement) error
	GetByID(ctx context.Context, orgID, id uuid.UUID, includeDeleted bool) (*Requirement, error)
	Update(ctx context.Context, r *Requirement, expectedVersion int64) error
	SoftDelete(ctx context.Context, orgID, id, deletedBy uuid.UUID, expectedVersion int64) error
	ListByProject(ctx context.Context, orgID, projectID uuid.UUID, includeDeleted bool) ([]*Requirement, error)
}
