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

type UserRepo struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*domain.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{rows: make(map[uuid.UUID]*domain.User)}
}

func copyUser(u *domain.User) *domain.User {
	cp := *u
	cp.Roles = append([]domain.Role(nil), u.Roles...)
	return &cp
}

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[u.ID]; ok {
		return fmt.Errorf("userRepo.Create: %w", domain.ErrConflict)
	}
	for _, existing := range r.rows {
		if existing.ExternalID == u.ExternalID {
			return fmt.Errorf("userRepo.Create: external id taken: %w", domain.ErrConflict)
		}
	}
	r.rows[u.ID] = copyUser(u)
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, orgID, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.rows[id]
	if !ok || u.OrgID != orgID {
		return nil, fmt.Errorf("userRepo.GetByID: %w", domain.ErrNotFound)
	}
	return copyUser(u), nil
}

func (r *UserRepo) GetByIDAnyOrg(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("userRepo.GetByIDAnyOrg: %w", domain.ErrNotFound)
	}
	return copyUser(u), nil
}

func (r *UserRepo) GetByExternalID(_ context.Context, externalID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.rows {
		if u.ExternalID == externalID {
			return copyUser(u), nil
		}
	}
	return nil, fmt.Errorf("userRepo.GetByExternalID: %w", domain.ErrNotFound)
}

func (r *UserRepo) Update(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[u.ID]; !ok {
		return fmt.Errorf("userRepo.Update: %w", domain.ErrNotFound)
	}
	cp := copyUser(u)
	cp.UpdatedAt = time.Now().UTC()
	r.rows[u.ID] = cp
	return nil
}

func (r *UserRepo) List(_ context.Context, orgID uuid.UUID) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.User
	for _, u := range r.rows {
		if u.OrgID == orgID {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
