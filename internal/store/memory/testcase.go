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

type TestCaseRepo struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*domain.TestCase
}

func NewTestCaseRepo() *TestCaseRepo {
	return &TestCaseRepo{rows: make(map[uuid.UUID]*domain.TestCase)}
}

func copyTestCase(t *domain.TestCase) *domain.TestCase {
	cp := *t
	cp.Steps = append([]domain.TestStep(nil), t.Steps...)
	return &cp
}

func (r *TestCaseRepo) Create(_ context.Context, t *domain.TestCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[t.ID]; ok {
		return fmt.Errorf("testCaseRepo.Create: %w", domain.ErrConflict)
	}
	r.rows[t.ID] = copyTestCase(t)
	return nil
}

func (r *TestCaseRepo) GetByID(_ context.Context, orgID, id uuid.UUID, includeDeleted bool) (*domain.TestCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.rows[id]
	if !ok || t.OrgID != orgID || (t.IsDeleted() && !includeDeleted) {
		return nil, fmt.Errorf("testCaseRepo.GetByID: %w", domain.ErrNotFound)
	}
	return copyTestCase(t), nil
}

func (r *TestCaseRepo) Update(_ context.Context, t *domain.TestCase, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rows[t.ID]
	if !ok || stored.OrgID != t.OrgID || stored.IsDeleted() {
		return fmt.Errorf("testCaseRepo.Update: %w", domain.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("testCaseRepo.Update: %w", domain.ErrVersionConflict)
	}
	cp := copyTestCase(t)
	cp.Version = expectedVersion + 1
	cp.UpdatedAt = time.Now().UTC()
	r.rows[t.ID] = cp
	t.Version = cp.Version
	t.UpdatedAt = cp.UpdatedAt
	return nil
}

func (r *TestCaseRepo) SoftDelete(_ context.Context, orgID, id, deletedBy uuid.UUID, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rows[id]
	if !ok || stored.OrgID != orgID || stored.IsDeleted() {
		return fmt.Errorf("testCaseRepo.SoftDelete: %w", domain.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("testCaseRepo.SoftDelete: %w", domain.ErrVersionConflict)
	}
	now := time.Now().UTC()
	stored.DeletedAt = &now
	stored.DeletedBy = &deletedBy
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = now
	return nil
}

func (r *TestCaseRepo) ListByProject(_ context.Context, orgID, projectID uuid.UUID, includeDeleted bool) ([]*domain.TestCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.TestCase
	for _, t := range r.rows {
		if t.OrgID != orgID || t.ProjectID != projectID {
			continue
		}
		if t.IsDeleted() && !includeDeleted {
			continue
		}
		out = append(out, copyTestCase(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *TestCaseRepo) ListByRequirement(_ context.Context, orgID, reqID uuid.UUID) ([]*domain.TestCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.TestCase
	for _, t := range r.rows {
		if t.OrgID == orgID && t.ReqID == reqID && !t.IsDeleted() {
			out = append(out, copyTestCase(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type TestRunRepo struct {
	mu   sync.RWMutex
	rows []*domain.TestRun
}

func NewTestRunRepo() *TestRunRepo {
	return &TestRunRepo{}
}

func (r *TestRunRepo) Create(_ context.Context, run *domain.TestRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *run
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *TestRunRepo) ListByTest(_ context.Context, orgID, testID uuid.UUID) ([]*domain.TestRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.TestRun
	for _, run := range r.rows {
		if run.OrgID == orgID && run.TestID == testID {
			cp := *run
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *TestRunRepo) ListByProject(_ context.Context, orgID, projectID uuid.UUID) ([]*domain.TestRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.TestRun
	for _, run := range r.rows {
		if run.OrgID == orgID && run.ProjectID == projectID {
			cp := *run
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *TestRunRepo) LatestByTest(_ context.Context, orgID, projectID uuid.UUID) (map[uuid.UUID]*domain.TestRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := make(map[uuid.UUID]*domain.TestRun)
	for _, run := range r.rows {
		if run.OrgID != orgID || run.ProjectID != projectID {
			continue
		}
		cur, ok := latest[run.TestID]
		if !ok || run.ExecutedAt.After(cur.ExecutedAt) {
			cp := *run
			latest[run.TestID] = &cp
		}
	}
	return latest, nil
}
