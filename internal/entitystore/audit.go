package entitystore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veritrail/veritrail/internal/directory"
	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/ledger"
	"github.com/veritrail/veritrail/internal/policy"
)

// auditRepo exposes the read side of the audit chains to authorized
// callers. Writes stay inside the ledger.
type auditRepo interface {
	ListByProject(ctx context.Context, orgID, projectID uuid.UUID, limit, offset int) ([]*domain.AuditEvent, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*domain.AuditEvent, error)
}

// AuditReader serves authorized audit-trail reads and integrity checks.
type AuditReader struct {
	policy *policy.Engine
	ledger *ledger.Ledger
	events auditRepo
	store  *Store
}

// NewAuditReader creates an AuditReader sharing the entity store's policy
// engine and ledger.
func NewAuditReader(s *Store, events domain.AuditEventRepository) *AuditReader {
	return &AuditReader{policy: s.policy, ledger: s.ledger, events: events, store: s}
}

// ListProjectEvents returns a project's audit trail, newest first.
func (a *AuditReader) ListProjectEvents(ctx context.Context, p directory.Principal, projectID uuid.UUID, limit, offset int) ([]*domain.AuditEvent, error) {
	if _, err := a.store.authorizeInProject(ctx, p, projectID, policy.OpAuditRead, domain.ResourceProject, projectID.String(), "audit_read"); err != nil {
		return nil, fmt.Errorf("entitystore.ListProjectEvents: %w", err)
	}
	out, err := a.events.ListByProject(ctx, p.OrgID, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("entitystore.ListProjectEvents: %w", err)
	}
	return out, nil
}

// ListOrgEvents returns the org-level audit trail, newest first.
func (a *AuditReader) ListOrgEvents(ctx context.Context, p directory.Principal, limit, offset int) ([]*domain.AuditEvent, error) {
	res := policy.Resource{Type: domain.ResourceOrganization, OrgID: p.OrgID}
	if d := a.policy.Authorize(p, policy.OpAuditRead, res); !d.Allowed {
		a.store.recordDenial(ctx, p, domain.ResourceOrganization, p.OrgID.String(), "audit_read")
		return nil, fmt.Errorf("entitystore.ListOrgEvents: %w", denyErr(p, p.OrgID))
	}
	out, err := a.events.ListByOrg(ctx, p.OrgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("entitystore.ListOrgEvents: %w", err)
	}
	return out, nil
}

// VerifyProjectChain walks a project's audit chain and reports the first
// broken link, if any.
func (a *AuditReader) VerifyProjectChain(ctx context.Context, p directory.Principal, projectID uuid.UUID) (ledger.VerifyResult, error) {
	if _, err := a.store.authorizeInProject(ctx, p, projectID, policy.OpAuditRead, domain.ResourceProject, projectID.String(), "audit_verify"); err != nil {
		return ledger.VerifyResult{}, fmt.Errorf("entitystore.VerifyProjectChain: %w", err)
	}
	res, err := a.ledger.VerifyChain(ctx, p.OrgID, &projectID, 0, -1)
	if err != nil {
		return ledger.VerifyResult{}, fmt.Errorf("entitystore.VerifyProjectChain: %w", err)
	}
	return res, nil
}

// PurgeProjectEvents removes audit entries older than the retention period
// for one project chain. The purge itself is audited and signed.
func (a *AuditReader) PurgeProjectEvents(ctx context.Context, p directory.Principal, projectID uuid.UUID, retention time.Duration) (*domain.AuditEvent, error) {
	if _, err := a.store.authorizeInProject(ctx, p, projectID, policy.OpAuditPurge, domain.ResourceProject, projectID.String(), "retention_purge"); err != nil {
		return nil, fmt.Errorf("entitystore.PurgeProjectEvents: %w", err)
	}
	event, err := a.ledger.PurgeExpired(ctx, p.OrgID, &projectID, retention, p.UserID.String())
	if err != nil {
		return nil, fmt.Errorf("entitystore.PurgeProjectEvents: %w", err)
	}
	return event, nil
}
