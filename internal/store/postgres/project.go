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

type ProjectRepo struct {
	pool *pgxpool.Pool
}

func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

const projectColumns = `id, org_id, name, standards, risk_class, stage, owner_id, visibility,
	version, created_at, updated_at, deleted_at, deleted_by`

func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	err := row.Scan(
		&p.ID, &p.OrgID, &p.Name, &p.Standards, &p.RiskClass, &p.Stage,
		&p.OwnerID, &p.Visibility, &p.Version,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt, &p.DeletedBy,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO projects (id, org_id, name, standards, risk_class, stage, owner_id, visibility, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.OrgID, p.Name, p.Standards, p.RiskClass, p.Stage,
		p.OwnerID, p.Visibility, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("projectRepo.Create: %w", err)
	}

	return nil
}

func (r *ProjectRepo) GetByID(ctx context.Context, orgID, id uuid.UUID, includeDeleted bool) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE org_id = $1 AND id = $2`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	p, err := scanProject(r.pool.QueryRow(ctx, query, orgID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("projectRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("projectRepo.GetByID: %w", err)
	}

	return p, nil
}

// Update applies the row iff the stored version equals expectedVersion. A
// zero-row update is disambiguated into ErrNotFound vs ErrVersionConflict
// by re-reading the row.
func (r *ProjectRepo) Update(ctx context.Context, p *domain.Project, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE projects SET name = $1, standards = $2, risk_class = $3, stage = $4,
		        visibility = $5, version = version + 1, updated_at = now()
		 WHERE org_id = $6 AND id = $7 AND version = $8 AND deleted_at IS NULL`,
		p.Name, p.Standards, p.RiskClass, p.Stage, p.Visibility,
		p.OrgID, p.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("projectRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return versionConflictOrNotFound(ctx, r.pool, "projectRepo.Update", "projects", p.OrgID, p.ID)
	}

	p.Version = expectedVersion + 1
	return nil
}

func (r *ProjectRepo) SoftDelete(ctx context.Context, orgID, id, deletedBy uuid.UUID, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE projects SET deleted_at = now(), deleted_by = $1, version = version + 1, updated_at = now()
		 WHERE org_id = $2 AND id = $3 AND version = $4 AND deleted_at IS NULL`,
		deletedBy, orgID, id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("projectRepo.SoftDelete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return versionConflictOrNotFound(ctx, r.pool, "projectRepo.SoftDelete", "projects", orgID, id)
	}

	return nil
}

func (r *ProjectRepo) List(ctx context.Context, orgID uuid.UUID) ([]*domain.Project, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects
		 WHERE org_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at
		 LIMIT 1000`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("projectRepo.List: %w", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("projectRepo.List: scan: %w", err)
		}
		projects = append(projects, p)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("projectRepo.List: rows: %w", err)
	}

	return projects, nil
}

// versionConflictOrNotFound distinguishes a CAS miss from a missing or
// already-deleted row after a zero-row UPDATE.
func versionConflictOrNotFound(ctx context.Context, pool *pgxpool.Pool, caller, table string, orgID, id uuid.UUID) error {
	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE org_id = $1 AND id = $2 AND deleted_at IS NULL)`,
		orgID, id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", caller, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", caller, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", caller, domain.ErrVersionConflict)
}
