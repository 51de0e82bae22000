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

type OrgRepo struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*domain.Organization
}

func NewOrgRepo() *OrgRepo {
	return &OrgRepo{rows: make(map[uuid.UUID]*domain.Organization)}
}

func (r *OrgRepo) Create(_ context.Context, o *domain.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[o.ID]; ok {
		return fmt.Errorf("orgRepo.Create: %w", domain.ErrConflict)
	}
	cp := *o
	r.rows[o.ID] = &cp
	return nil
}

func (r *OrgRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("orgRepo.GetByID: %w", domain.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (r *OrgRepo) Update(_ context.Context, o *domain.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[o.ID]; !ok {
		return fmt.Errorf("orgRepo.Update: %w", domain.ErrNotFound)
	}
	cp := *o
	cp.UpdatedAt = time.Now().UTC()
	r.rows[o.ID] = &cp
	return nil
}

func (r *OrgRepo) SoftDelete(_ context.Context, id, deletedBy uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("orgRepo.SoftDelete: %w", domain.ErrNotFound)
	}
	now := time.Now().UTC()
	o.DeletedAt = &now
	o.DeletedBy = &deletedBy
	o.UpdatedAt = now
	return nil
}

func (r *OrgRepo) List(_ context.Context) ([]*domain.Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Organization, 0, len(r.rows))
	for _, o := range r.rows {
		if o.IsDeleted() {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
