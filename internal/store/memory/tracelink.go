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

type TraceLinkRepo struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*domain.TraceLink
}

func NewTraceLinkRepo() *TraceLinkRepo {
	return &TraceLinkRepo{rows: make(map[uuid.UUID]*domain.TraceLink)}
}

func copyLink(l *domain.TraceLink) *domain.TraceLink {
	cp := *l
	return &cp
}

func (r *TraceLinkRepo) Create(_ context.Context, l *domain.TraceLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[l.ID]; ok {
		return fmt.Errorf("traceLinkRepo.Create: %w", domain.ErrConflict)
	}
	r.rows[l.ID] = copyLink(l)
	return nil
}

func (r *TraceLinkRepo) GetByID(_ context.Context, orgID, id uuid.UUID, includeDeleted bool) (*domain.TraceLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.rows[id]
	if !ok || l.OrgID != orgID || (l.IsDeleted() && !includeDeleted) {
		return nil, fmt.Errorf("traceLinkRepo.GetByID: %w", domain.ErrNotFound)
	}
	return copyLink(l), nil
}

func (r *TraceLinkRepo) Update(_ context.Context, l *domain.TraceLink, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rows[l.ID]
	if !ok || stored.OrgID != l.OrgID || stored.IsDeleted() {
		return fmt.Errorf("traceLinkRepo.Update: %w", domain.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("traceLinkRepo.Update: %w", domain.ErrVersionConflict)
	}
	cp := copyLink(l)
	cp.Version = expectedVersion + 1
	cp.UpdatedAt = time.Now().UTC()
	r.rows[l.ID] = cp
	l.Version = cp.Version
	l.UpdatedAt = cp.UpdatedAt
	return nil
}

func (r *TraceLinkRepo) SoftDelete(_ context.Context, orgID, id, deletedBy uuid.UUID, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rows[id]
	if !ok || stored.OrgID != orgID || stored.IsDeleted() {
		return fmt.Errorf("traceLinkRepo.SoftDelete: %w", domain.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("traceLinkRepo.SoftDelete: %w", domain.ErrVersionConflict)
	}
	now := time.Now().UTC()
	stored.DeletedAt = &now
	stored.DeletedBy = &deletedBy
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = now
	return nil
}

func (r *TraceLinkRepo) ListByProject(_ context.Context, orgID, projectID uuid.UUID, includeDeleted bool) ([]*domain.TraceLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.TraceLink
	for _, l := range r.rows {
		if l.OrgID != orgID || l.ProjectID != projectID {
			continue
		}
		if l.IsDeleted() && !includeDeleted {
			continue
		}
		out = append(out, copyLink(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
