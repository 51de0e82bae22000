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

type OrgRepo struct {
	pool *pgxpool.Pool
}

func NewOrgRepo(pool *pgxpool.Pool) *OrgRepo {
	return &OrgRepo{pool: pool}
}

func (r *OrgRepo) Create(ctx context.Context, o *domain.Organization) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO organizations (id, name, region, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.Name, o.Region, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("orgRepo.Create: %w", err)
	}

	return nil
}

func (r *OrgRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	var o domain.Organization

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, region, created_at, updated_at, deleted_at, deleted_by
		 FROM organizations WHERE id = $1`,
		id,
	).Scan(&o.ID, &o.Name, &o.Region, &o.CreatedAt, &o.UpdatedAt, &o.DeletedAt, &o.DeletedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("orgRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("orgRepo.GetByID: %w", err)
	}

	return &o, nil
}

func (r *OrgRepo) Update(ctx context.Context, o *domain.Organization) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE organizations SET name = $1, region = $2, updated_at = now()
		 WHERE id = $3 AND deleted_at IS NULL`,
		o.Name, o.Region, o.ID,
	)
	if err != nil {
		return fmt.Errorf("orgRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("orgRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *OrgRepo) SoftDelete(ctx context.Context, id, deletedBy uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE organizations SET deleted_at = now(), deleted_by = $1, updated_at = now()
		 WHERE id = $2 AND deleted_at IS NULL`,
		deletedBy, id,
	)
	if err != nil {
		return fmt.Errorf("orgRepo.SoftDelete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("orgRepo.SoftDelete: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *OrgRepo) List(ctx context.Context) ([]*domain.Organization, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, region, created_at, updated_at, deleted_at, deleted_by
		 FROM organizations WHERE deleted_at IS NULL
		 ORDER BY created_at
		 LIMIT 500`,
	)
	if err != nil {
		return nil, fmt.Errorf("orgRepo.List: %w", err)
	}
	defer rows.Close()

	var orgs []*domain.Organization
	for rows.Next() {
		var o domain.Organization

		err = rows.Scan(&o.ID, &o.Name, &o.Region, &o.CreatedAt, &o.UpdatedAt, &o.DeletedAt, &o.DeletedBy)
		if err != nil {
			return nil, fmt.Errorf("orgRepo.List: scan: %w", err)
		}

		orgs = append(orgs, &o)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("orgRepo.List: rows: %w", err)
	}

	return orgs, nil
}
