package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// LifecycleStage is the project's position in the design-control lifecycle.
// Stages normally advance forward; an authorized role may correct a stage
// backward, which always produces an audit event carrying the reason.
type LifecycleStage string

const (
	StagePlanning       LifecycleStage = "planning"
	StageDesignControls LifecycleStage = "design_controls"
	StageDevelopment    LifecycleStage = "development"
	StageVerification   LifecycleStage = "verification"
	StageValidation     LifecycleStage = "validation"
	StageMaintenance    LifecycleStage = "maintenance"
)

// stageOrder maps each stage to its position for forward/backward checks.
var stageOrder = map[LifecycleStage]int{
	StagePlanning:       0,
	StageDesignControls: 1,
	StageDevelopment:    2,
	StageVerification:   3,
	StageValidation:     4,
	StageMaintenance:    5,
}

// Valid reports whether s is a known lifecycle stage.
func (s LifecycleStage) Valid() bool {
	_, ok := stageOrder[s]
	return ok
}

// Before reports whether s precedes other in the lifecycle. Unknown stages
// are never before anything.
func (s LifecycleStage) Before(other LifecycleStage) bool {
	a, okA := stageOrder[s]
	b, okB := stageOrder[other]
	return okA && okB && a < b
}

// Visibility controls who can discover a project beyond its owner.
type Visibility string

const (
	VisibilityPrivate      Visibility = "private"
	VisibilityOrganization Visibility = "organization"
	VisibilityPublic       Visibility = "public"
)

// RiskClassification is the regulatory device risk class of the project.
type RiskClassification string

const (
	RiskClassI   RiskClassification = "class_i"
	RiskClassII  RiskClassification = "class_ii"
	RiskClassIII RiskClassification = "class_iii"
)

// Project exclusively owns its requirements, tests, trace links, and score
// snapshots; soft-deleting a project cascades to all of them.
type Project struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	Name       string
	Standards  []string // regulatory framework identifiers, e.g. "iec_62304"
	RiskClass  RiskClassification
	Stage      LifecycleStage
	OwnerID    uuid.UUID
	Visibility Visibility
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
	DeletedBy  *uuid.UUID
}

// NewProject creates a Project with validated required fields and defaults.
// A project still in planning counts as a draft and may have no standards
// yet; past planning the standards set must be non-empty.
func NewProject(orgID, ownerID uuid.UUID, name string, standards []string, riskClass RiskClassification) (*Project, error) {
	if orgID == uuid.Nil {
		return nil, errors.New("project: organization ID is required")
	}
	if ownerID == uuid.Nil {
		return nil, errors.New("project: owner ID is required")
	}
	if name == "" {
		return nil, errors.New("project: name is required")
	}
	now := time.Now().UTC()
	return &Project{
		ID:         uuid.New(),
		OrgID:      orgID,
		Name:       name,
		Standards:  standards,
		RiskClass:  riskClass,
		Stage:      StagePlanning,
		OwnerID:    ownerID,
		Visibility: VisibilityOrganization,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsDraft reports whether the project is still in planning.
func (p *Project) IsDraft() bool { return p.Stage == StagePlanning }

// IsDeleted reports whether the project has been soft-deleted.
func (p *Project) IsDeleted() bool { return p.DeletedAt != nil }

type ProjectRepository interface {
	Create(ctx context.Context, p *Project) error
	// GetByID excludes soft-deleted rows unless includeDeleted is set.
	GetByID(ctx context.Context, orgID, id uuid.UUID, includeDeleted bool) (*Project, error)
	// Update applies the row iff the stored version equals expectedVersion,
	// incrementing it by one. A mismatch fails with ErrVersionConflict.
	Update(ctx context.Context, p *Project, expectedVersion int64) error
	SoftDelete(ctx context.Context, orgID, id, deletedBy uuid.UUID, expectedVersion int64) error
	List(ctx context.Context, orgID uuid.UUID) ([]*Project, error)
}
