package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veritrail/veritrail/internal/domain"
)

// AuditRepo persists the append-only audit chains. Chain order is the seq
// column, a per-chain counter assigned under the append's advisory lock.
// Event IDs are ULIDs, but ULIDs minted within the same millisecond carry
// random entropy and do not sort in append order, so nothing may order or
// pick the tail by id. Appends take a per-chain advisory lock inside the
// transaction, making the tail check, the seq assignment, and the insert
// atomic without a table lock.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

const auditColumns = `id, org_id, project_id, category, actor, resource_type, resource_id,
	action, outcome, before_snapshot, after_snapshot, changed_fields, reason,
	ts, content_hash, prev_hash, signature`

func scanAuditEvent(row pgx.Row) (*domain.AuditEvent, error) {
	var e domain.AuditEvent
	err := row.Scan(
		&e.ID, &e.OrgID, &e.ProjectID, &e.Category, &e.Actor, &e.ResourceType, &e.ResourceID,
		&e.Action, &e.Outcome, &e.Before, &e.After, &e.ChangedFields, &e.Reason,
		&e.Timestamp, &e.ContentHash, &e.PrevHash, &e.Signature,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// chainLockKey is the advisory-lock identity of one chain.
func chainLockKey(orgID uuid.UUID, projectID *uuid.UUID) string {
	if projectID == nil {
		return orgID.String()
	}
	return orgID.String() + "/" + projectID.String()
}

// chainTailTx reads the newest entry's content hash and seq inside the
// append transaction.
func chainTailTx(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, projectID *uuid.UUID) (string, int64, error) {
	var (
		tail string
		seq  int64
	)
	err := tx.QueryRow(ctx,
		`SELECT content_hash, seq FROM audit_events
		 WHERE org_id = $1 AND project_id IS NOT DISTINCT FROM $2
		 ORDER BY seq DESC LIMIT 1`,
		orgID, projectID,
	).Scan(&tail, &seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GenesisHash, 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	return tail, seq, nil
}

func (r *AuditRepo) Append(ctx context.Context, e *domain.AuditEvent, expectedPrevHash string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("auditRepo.Append: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		chainLockKey(e.OrgID, e.ProjectID),
	)
	if err != nil {
		return fmt.Errorf("auditRepo.Append: lock chain: %w", err)
	}

	tail, tailSeq, err := chainTailTx(ctx, tx, e.OrgID, e.ProjectID)
	if err != nil {
		return fmt.Errorf("auditRepo.Append: read tail: %w", err)
	}
	if tail != expectedPrevHash {
		return fmt.Errorf("auditRepo.Append: tail moved: %w", domain.ErrConflict)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO audit_events (seq, id, org_id, project_id, category, actor, resource_type, resource_id,
		        action, outcome, before_snapshot, after_snapshot, changed_fields, reason,
		        ts, content_hash, prev_hash, signature)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		tailSeq+1, e.ID, e.OrgID, e.ProjectID, e.Category, e.Actor, e.ResourceType, e.ResourceID,
		e.Action, e.Outcome, e.Before, e.After, e.ChangedFields, e.Reason,
		e.Timestamp, e.ContentHash, e.PrevHash, e.Signature,
	)
	if err != nil {
		return fmt.Errorf("auditRepo.Append: insert: %w", err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		return fmt.Errorf("auditRepo.Append: commit: %w", err)
	}

	return nil
}

func (r *AuditRepo) TailHash(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID) (string, error) {
	var tail string
	err := r.pool.QueryRow(ctx,
		`SELECT content_hash FROM audit_events
		 WHERE org_id = $1 AND project_id IS NOT DISTINCT FROM $2
		 ORDER BY seq DESC LIMIT 1`,
		orgID, projectID,
	).Scan(&tail)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GenesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("auditRepo.TailHash: %w", err)
	}

	return tail, nil
}

func (r *AuditRepo) ListChain(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID, from, to int) ([]*domain.AuditEvent, error) {
	if from < 0 {
		from = 0
	}

	query := `SELECT ` + auditColumns + ` FROM audit_events
		 WHERE org_id = $1 AND project_id IS NOT DISTINCT FROM $2
		 ORDER BY seq OFFSET $3`
	args := []any{orgID, projectID, from}
	if to >= 0 {
		if from > to {
			return nil, nil
		}
		query += ` LIMIT $4`
		args = append(args, to-from+1)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListChain: %w", err)
	}
	defer rows.Close()

	return collectAuditEvents(rows, "auditRepo.ListChain")
}

func (r *AuditRepo) ListByProject(ctx context.Context, orgID, projectID uuid.UUID, limit, offset int) ([]*domain.AuditEvent, error) {
	return r.listNewestFirst(ctx, "auditRepo.ListByProject", orgID, &projectID, limit, offset)
}

func (r *AuditRepo) ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*domain.AuditEvent, error) {
	return r.listNewestFirst(ctx, "auditRepo.ListByOrg", orgID, nil, limit, offset)
}

func (r *AuditRepo) listNewestFirst(ctx context.Context, caller string, orgID uuid.UUID, projectID *uuid.UUID, limit, offset int) ([]*domain.AuditEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+auditColumns+` FROM audit_events
		 WHERE org_id = $1 AND project_id IS NOT DISTINCT FROM $2
		 ORDER BY seq DESC
		 LIMIT $3 OFFSET $4`,
		orgID, projectID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", caller, err)
	}
	defer rows.Close()

	return collectAuditEvents(rows, caller)
}

func (r *AuditRepo) WindowBefore(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID, cutoff time.Time) (string, string, int, error) {
	var (
		count          int
		minSeq, maxSeq int64
		firstH, lastH  string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(MIN(seq), 0), COALESCE(MAX(seq), 0)
		 FROM audit_events
		 WHERE org_id = $1 AND project_id IS NOT DISTINCT FROM $2 AND ts < $3`,
		orgID, projectID, cutoff,
	).Scan(&count, &minSeq, &maxSeq)
	if err != nil {
		return "", "", 0, fmt.Errorf("auditRepo.WindowBefore: %w", err)
	}
	if count == 0 {
		return "", "", 0, nil
	}

	err = r.pool.QueryRow(ctx,
		`SELECT content_hash FROM audit_events
		 WHERE org_id = $1 AND project_id IS NOT DISTINCT FROM $2 AND seq = $3`,
		orgID, projectID, minSeq,
	).Scan(&firstH)
	if err != nil {
		return "", "", 0, fmt.Errorf("auditRepo.WindowBefore: first: %w", err)
	}
	err = r.pool.QueryRow(ctx,
		`SELECT content_hash FROM audit_events
		 WHERE org_id = $1 AND project_id IS NOT DISTINCT FROM $2 AND seq = $3`,
		orgID, projectID, maxSeq,
	).Scan(&lastH)
	if err != nil {
		return "", "", 0, fmt.Errorf("auditRepo.WindowBefore: last: %w", err)
	}

	return firstH, lastH, count, nil
}

func (r *AuditRepo) DeleteBefore(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM audit_events
		 WHERE org_id = $1 AND project_id IS NOT DISTINCT FROM $2 AND ts < $3`,
		orgID, projectID, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("auditRepo.DeleteBefore: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func collectAuditEvents(rows pgx.Rows, caller string) ([]*domain.AuditEvent, error) {
	var events []*domain.AuditEvent
	for rows.Next() {
		e, err := scanAuditEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return events, nil
}
