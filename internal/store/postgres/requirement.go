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

type RequirementRepo struct {
	pool *pgxpool.Pool
}

func NewRequirementRepo(pool *pgxpool.Pool) *RequirementRepo {
	return &RequirementRepo{pool: pool}
}

const requirementColumns = `id, org_id, project_id, parent_id, level, order_index, text,
	risk_class, status, normative, source_sys, source_ref,
	version, created_at, updated_at, deleted_at, deleted_by`

func scanRequirement(row pgx.Row) (*domain.Requirement, error) {
	var q domain.Requirement
	err := row.Scan(
		&q.ID, &q.OrgID, &q.ProjectID, &q.ParentID, &q.Level, &q.OrderIndex, &q.Text,
		&q.RiskClass, &q.Status, &q.Normative, &q.SourceSys, &q.SourceRef,
		&q.Version, &q.CreatedAt, &q.UpdatedAt, &q.DeletedAt, &q.DeletedBy,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *RequirementRepo) Create(ctx context.Context, q *domain.Requirement) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO requirements (id, org_id, project_id, parent_id, level, order_index, text,
		        risk_class, status, normative, source_sys, source_ref, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		q.ID, q.OrgID, q.ProjectID, q.ParentID, q.Level, q.OrderIndex, q.Text,
		q.RiskClass, q.Status, q.Normative, q.SourceSys, q.SourceRef,
		q.Version, q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("requirementRepo.Create: %w", err)
	}

	return nil
}

func (r *RequirementRepo) GetByID(ctx context.Context, orgID, id uuid.UUID, includeDeleted bool) (*domain.Requirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM requirements WHERE org_id = $1 AND id = $2`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	q, err := scanRequirement(r.pool.QueryRow(ctx, query, orgID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("requirementRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("requirementRepo.GetByID: %w", err)
	}

	return q, nil
}

func (r *RequirementRepo) Update(ctx context.Context, q *domain.Requirement, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE requirements SET parent_id = $1, level = $2, order_index = $3, text = $4,
		        risk_class = $5, status = $6, normative = $7,
		        version = version + 1, updated_at = now()
		 WHERE org_id = $8 AND id = $9 AND version = $10 AND deleted_at IS NULL`,
		q.ParentID, q.Level, q.OrderIndex, q.Text,
		q.RiskClass, q.Status, q.Normative,
		q.OrgID, q.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("requirementRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return versionConflictOrNotFound(ctx, r.pool, "requirementRepo.Update", "requirements", q.OrgID, q.ID)
	}

	q.Version = expectedVersion + 1
	return nil
}

func (r *RequirementRepo) SoftDelete(ctx context.Context, orgID, id, deletedBy uuid.UUID, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE requirements SET deleted_at = now(), deleted_by = $1, version = version + 1, updated_at = now()
		 WHERE org_id = $2 AND id = $3 AND version = $4 AND deleted_at IS NULL`,
		deletedBy, orgID, id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("requirementRepo.SoftDelete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return versionConflictOrNotFound(ctx, r.pool, "requirementRepo.SoftDelete", "requirements", orgID, id)
	}

	return nil
}

func (r *RequirementRepo) ListByProject(ctx context.Context, orgID, projectID uuid.UUID, includeDeleted bool) ([]*domain.Requirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM requirements
		 WHERE org_id = $1 AND project_id = $2`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY level, order_index, created_at LIMIT 10000`

	rows, err := r.pool.Query(ctx, query, orgID, projectID)
	if err != nil {
		return nil, fmt.Errorf("requirementRepo.ListByProject: %w", err)
	}
	defer rows.Close()

	var reqs []*domain.Requirement
	for rows.Next() {
		q, err := scanRequirement(rows)
		if err != nil {
			return nil, fmt.Errorf("requirementRepo.ListByProject: scan: %w", err)
		}
		reqs = append(reqs, q)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("requirementRepo.ListByProject: rows: %w", err)
	}

	return reqs, nil
}
