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

type ProjectRepo struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*domain.Project
}

func NewProjectRepo() *ProjectRepo {
	return &ProjectRepo{rows: make(map[uuid.UUID]*domain.Project)}
}

func copyProject(p *domain.Project) *domain.Project {
	cp := *p
	cp.Standards = append([]string(nil), p.Standards...)
	return &cp
}

func (r *ProjectRepo) Create(_ context.Context, p *domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[p.ID]; ok {
		return fmt.Errorf("projectRepo.Create: %w", domain.ErrConflict)
	}
	r.rows[p.ID] = copyProject(p)
	return nil
}

func (r *ProjectRepo) GetByID(_ context.Context, orgID, id uuid.UUID, includeDeleted bool) (*domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.rows[id]
	if !ok || p.OrgID != orgID || (p.IsDeleted() && !includeDeleted) {
		return nil, fmt.Errorf("projectRepo.GetByID: %w", domain.ErrNotFound)
	}
	return copyProject(p), nil
}

func (r *ProjectRepo) Update(_ context.Context, p *domain.Project, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rows[p.ID]
	if !ok || stored.OrgID != p.OrgID || stored.IsDeleted() {
		return fmt.Errorf("projectRepo.Update: %w", domain.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("projectRepo.Update: %w", domain.ErrVersionConflict)
	}
	cp := copyProject(p)
	cp.Version = expectedVersion + 1
	cp.UpdatedAt = time.Now().UTC()
	r.rows[p.ID] = cp
	p.Version = cp.Version
	p.UpdatedAt = cp.UpdatedAt
	return nil
}

func (r *ProjectRepo) SoftDelete(_ context.Context, orgID, id, deletedBy uuid.UUID, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rows[id]
	if !ok || stored.OrgID != orgID || stored.IsDeleted() {
		return fmt.Errorf("projectRepo.SoftDelete: %w", domain.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("projectRepo.SoftDelete: %w", domain.ErrVersionConflict)
	}
	now := time.Now().UTC()
	stored.DeletedAt = &now
	stored.DeletedBy = &deletedBy
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = now
	return nil
}

func (r *ProjectRepo) List(_ context.Context, orgID uuid.UUID) ([]*domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Project
	for _, p := range r.rows {
		if p.OrgID == orgID && !p.IsDeleted() {
			out = append(out, copyProject(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
