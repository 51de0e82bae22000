package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veritrail/veritrail/internal/domain"
)

// chainKey identifies one audit chain: a project chain or, when projectID
// is nil, the organization-level chain.
type chainKey struct {
	orgID     uuid.UUID
	projectID uuid.UUID // uuid.Nil for the org-level chain
}

func keyFor(orgID uuid.UUID, projectID *uuid.UUID) chainKey {
	k := chainKey{orgID: orgID}
	if projectID != nil {
		k.projectID = *projectID
	}
	return k
}

// AuditRepo stores append-only chains. The single mutex makes the
// append-iff-tail-matches check atomic, which is exactly the contract the
// postgres implementation provides with a conditional insert.
type AuditRepo struct {
	mu     sync.RWMutex
	chains map[chainKey][]*domain.AuditEvent
}

func NewAuditRepo() *AuditRepo {
	return &AuditRepo{chains: make(map[chainKey][]*domain.AuditEvent)}
}

func copyEvent(e *domain.AuditEvent) *domain.AuditEvent {
	cp := *e
	cp.Before = append([]byte(nil), e.Before...)
	cp.After = append([]byte(nil), e.After...)
	cp.ChangedFields = append([]string(nil), e.ChangedFields...)
	cp.Signature = append([]byte(nil), e.Signature...)
	return &cp
}

func (r *AuditRepo) tailLocked(k chainKey) string {
	chain := r.chains[k]
	if len(chain) == 0 {
		return domain.GenesisHash
	}
	return chain[len(chain)-1].ContentHash
}

func (r *AuditRepo) Append(_ context.Context, e *domain.AuditEvent, expectedPrevHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := keyFor(e.OrgID, e.ProjectID)
	if r.tailLocked(k) != expectedPrevHash {
		return fmt.Errorf("auditRepo.Append: tail moved: %w", domain.ErrConflict)
	}
	r.chains[k] = append(r.chains[k], copyEvent(e))
	return nil
}

func (r *AuditRepo) TailHash(_ context.Context, orgID uuid.UUID, projectID *uuid.UUID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.tailLocked(keyFor(orgID, projectID)), nil
}

func (r *AuditRepo) ListChain(_ context.Context, orgID uuid.UUID, projectID *uuid.UUID, from, to int) ([]*domain.AuditEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain := r.chains[keyFor(orgID, projectID)]
	if from < 0 {
		from = 0
	}
	if to < 0 || to >= len(chain) {
		to = len(chain) - 1
	}
	if from > to {
		return nil, nil
	}

	out := make([]*domain.AuditEvent, 0, to-from+1)
	for _, e := range chain[from : to+1] {
		out = append(out, copyEvent(e))
	}
	return out, nil
}

func (r *AuditRepo) ListByProject(_ context.Context, orgID, projectID uuid.UUID, limit, offset int) ([]*domain.AuditEvent, error) {
	return r.listNewestFirst(keyFor(orgID, &projectID), limit, offset), nil
}

func (r *AuditRepo) ListByOrg(_ context.Context, orgID uuid.UUID, limit, offset int) ([]*domain.AuditEvent, error) {
	return r.listNewestFirst(keyFor(orgID, nil), limit, offset), nil
}

func (r *AuditRepo) listNewestFirst(k chainKey, limit, offset int) []*domain.AuditEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	chain := r.chains[k]

	var out []*domain.AuditEvent
	for i := len(chain) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, copyEvent(chain[i]))
	}
	return out
}

func (r *AuditRepo) WindowBefore(_ context.Context, orgID uuid.UUID, projectID *uuid.UUID, cutoff time.Time) (string, string, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain := r.chains[keyFor(orgID, projectID)]
	n := expiredPrefix(chain, cutoff)
	if n == 0 {
		return "", "", 0, nil
	}
	return chain[0].ContentHash, chain[n-1].ContentHash, n, nil
}

func (r *AuditRepo) DeleteBefore(_ context.Context, orgID uuid.UUID, projectID *uuid.UUID, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := keyFor(orgID, projectID)
	chain := r.chains[k]
	n := expiredPrefix(chain, cutoff)
	if n == 0 {
		return 0, nil
	}
	r.chains[k] = append([]*domain.AuditEvent(nil), chain[n:]...)
	return n, nil
}

// expiredPrefix counts the leading chain entries older than cutoff. Only a
// prefix can expire: timestamps are assigned in append order.
func expiredPrefix(chain []*domain.AuditEvent, cutoff time.Time) int {
	n := 0
	for n < len(chain) && chain[n].Timestamp.Before(cutoff) {
		n++
	}
	return n
}
