package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/veritrail/veritrail/internal/domain"
)

type SnapshotRepo struct {
	mu   sync.RWMutex
	rows []*domain.ComplianceScoreSnapshot
}

func NewSnapshotRepo() *SnapshotRepo {
	return &SnapshotRepo{}
}

func copySnapshot(s *domain.ComplianceScoreSnapshot) *domain.ComplianceScoreSnapshot {
	cp := *s
	if s.ByFramework != nil {
		cp.ByFramework = make(map[string]domain.CategoryScore, len(s.ByFramework))
		for k, v := range s.ByFramework {
			cp.ByFramework[k] = v
		}
	}
	return &cp
}

func (r *SnapshotRepo) Create(_ context.Context, s *domain.ComplianceScoreSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows = append(r.rows, copySnapshot(s))
	return nil
}

func (r *SnapshotRepo) Latest(_ context.Context, orgID, projectID uuid.UUID) (*domain.ComplianceScoreSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *domain.ComplianceScoreSnapshot
	for _, s := range r.rows {
		if s.OrgID != orgID || s.ProjectID != projectID {
			continue
		}
		if latest == nil || s.ComputedAt.After(latest.ComputedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("snapshotRepo.Latest: %w", domain.ErrNotFound)
	}
	return copySnapshot(latest), nil
}

func (r *SnapshotRepo) ListByProject(_ context.Context, orgID, projectID uuid.UUID, limit, offset int) ([]*domain.ComplianceScoreSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var matching []*domain.ComplianceScoreSnapshot
	for _, s := range r.rows {
		if s.OrgID == orgID && s.ProjectID == projectID {
			matching = append(matching, s)
		}
	}
	sort.Slice(matching, func(i, j int) bool {
		return matching[i].ComputedAt.After(matching[j].ComputedAt)
	})

	var out []*domain.ComplianceScoreSnapshot
	for i := offset; i < len(matching) && len(out) < limit; i++ {
		out = append(out, copySnapshot(matching[i]))
	}
	return out, nil
}
