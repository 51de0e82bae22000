package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veritrail/veritrail/internal/domain"
)

type TraceLinkRepo struct {
	pool *pgxpool.Pool
}

func NewTraceLinkRepo(pool *pgxpool.Pool) *TraceLinkRepo {
	return &TraceLinkRepo{pool: pool}
}

const traceLinkColumns = `id, org_id, project_id, source_type, source_id, target_type, target_id,
	link_type, confidence, validated, version, created_at, updated_at, deleted_at, deleted_by`

func scanTraceLink(row pgx.Row) (*domain.TraceLink, error) {
	var l domain.TraceLink
	err := row.Scan(
		&l.ID, &l.OrgID, &l.ProjectID, &l.SourceType, &l.SourceID, &l.TargetType, &l.TargetID,
		&l.LinkType, &l.Confidence, &l.Validated,
		&l.Version, &l.CreatedAt, &l.UpdatedAt, &l.DeletedAt, &l.DeletedBy,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *TraceLinkRepo) Create(ctx context.Context, l *domain.TraceLink) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO trace_links (id, org_id, project_id, source_type, source_id, target_type, target_id,
		        link_type, confidence, validated, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		l.ID, l.OrgID, l.ProjectID, l.SourceType, l.SourceID, l.TargetType, l.TargetID,
		l.LinkType, l.Confidence, l.Validated, l.Version, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("traceLinkRepo.Create: %w", err)
	}

	return nil
}

func (r *TraceLinkRepo) GetByID(ctx context.Context, orgID, id uuid.UUID, includeDeleted bool) (*domain.TraceLink, error) {
	query := `SELECT ` + traceLinkColumns + ` FROM trace_links WHERE org_id = $1 AND id = $2`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	l, err := scanTraceLink(r.pool.QueryRow(ctx, query, orgID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("traceLinkRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("traceLinkRepo.GetByID: %w", err)
	}

	return l, nil
}

// Update only touches confidence and validation; endpoints and link type are
// immutable once created.
func (r *TraceLinkRepo) Update(ctx context.Context, l *domain.TraceLink, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE trace_links SET confidence = $1, validated = $2, version = version + 1, updated_at = now()
		 WHERE org_id = $3 AND id = $4 AND version = $5 AND deleted_at IS NULL`,
		l.Confidence, l.Validated, l.OrgID, l.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("traceLinkRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return versionConflictOrNotFound(ctx, r.pool, "traceLinkRepo.Update", "trace_links", l.OrgID, l.ID)
	}

	l.Version = expectedVersion + 1
	return nil
}

func (r *TraceLinkRepo) SoftDelete(ctx context.Context, orgID, id, deletedBy uuid.UUID, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE trace_links SET deleted_at = now(), deleted_by = $1, version = version + 1, updated_at = now()
		 WHERE org_id = $2 AND id = $3 AND version = $4 AND deleted_at IS NULL`,
		deletedBy, orgID, id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("traceLinkRepo.SoftDelete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return versionConflictOrNotFound(ctx, r.pool, "traceLinkRepo.SoftDelete", "trace_links", orgID, id)
	}

	return nil
}

func (r *TraceLinkRepo) ListByProject(ctx context.Context, orgID, projectID uuid.UUID, includeDeleted bool) ([]*domain.TraceLink, error) {
	query := `SELECT ` + traceLinkColumns + ` FROM trace_links
		 WHERE org_id = $1 AND project_id = $2`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY created_at LIMIT 10000`

	rows, err := r.pool.Query(ctx, query, orgID, projectID)
	if err != nil {
		return nil, fmt.Errorf("traceLinkRepo.ListByProject: %w", err)
	}
	defer rows.Close()

	var links []*domain.TraceLink
	for rows.Next() {
		l, err := scanTraceLink(rows)
		if err != nil {
			return nil, fmt.Errorf("traceLinkRepo.ListByProject: scan: %w", err)
		}
		links = append(links, l)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("traceLinkRepo.ListByProject: rows: %w", err)
	}

	return links, nil
}
