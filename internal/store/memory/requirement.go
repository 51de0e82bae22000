package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veritrail/veritrail/internal/domain"
)

type RequirementRepo struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*domain.Requirement
}

func NewRequirementRepo() *RequirementRepo {
	return &RequirementRepo{rows: make(map[uuid.UUID]*domain.Requirement)}
}

func copyRequirement(req *domain.Requirement) *domain.Requirement {
	cp := *req
	return &cp
}

func (r *RequirementRepo) Create(_ context.Context, req *domain.Requirement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[req.ID]; ok {
		return fmt.Errorf("requirementRepo.Create: %w", domain.ErrConflict)
	}
	r.rows[req.ID] = copyRequirement(req)
	return nil
}

func (r *RequirementRepo) GetByID(_ context.Context, orgID, id uuid.UUID, includeDeleted bool) (*domain.Requirement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.rows[id]
	if !ok || req.OrgID != orgID || (req.IsDeleted() && !includeDeleted) {
		return nil, fmt.Errorf("requirementRepo.GetByID: %w", domain.ErrNotFound)
	}
	return copyRequirement(req), nil
}

func (r *RequirementRepo) Update(_ context.Context, req *domain.Requirement, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rows[req.ID]
	if !ok || stored.OrgID != req.OrgID || stored.IsDeleted() {
		return fmt.Errorf("requirementRepo.Update: %w", domain.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("requirementRepo.Update: %w", domain.ErrVersionConflict)
	}
	cp := copyRequirement(req)
	cp.Version = expectedVersion + 1
	cp.UpdatedAt = time.Now().UTC()
	r.rows[req.ID] = cp
	req.Version = cp.Version
	req.UpdatedAt = cp.UpdatedAt
	return nil
}

func (r *RequirementRepo) SoftDelete(_ context.Context, orgID, id, deletedBy uuid.UUID, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rows[id]
	if !ok || stored.OrgID != orgID || stored.IsDeleted() {
		return fmt.Errorf("requirementRepo.SoftDelete: %w", domain.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("requirementRepo.SoftDelete: %w", domain.ErrVersionConflict)
	}
	now := time.Now().UTC()
	stored.DeletedAt = &now
	stored.DeletedBy = &deletedBy
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = now
	return nil
}

func (r *RequirementRepo) ListByProject(_ context.Context, orgID, projectID uuid.UUID, includeDeleted bool) ([]*domain.Requirement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Requirement
	for _, req := range r.rows {
		if req.OrgID != orgID || req.ProjectID != projectID {
			continue
		}
		if req.IsDeleted() && !includeDeleted {
			continue
		}
		out = append(out, copyRequirement(req))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
