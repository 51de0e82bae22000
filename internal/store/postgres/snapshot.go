package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veritrail/veritrail/internal/domain"
)

type SnapshotRepo struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepo(pool *pgxpool.Pool) *SnapshotRepo {
	return &SnapshotRepo{pool: pool}
}

const snapshotColumns = `id, org_id, project_id, computed_at, overall, terms, counts, by_framework`

func scanSnapshot(row pgx.Row) (*domain.ComplianceScoreSnapshot, error) {
	var (
		s           domain.ComplianceScoreSnapshot
		terms       []byte
		counts      []byte
		byFramework []byte
	)
	err := row.Scan(&s.ID, &s.OrgID, &s.ProjectID, &s.ComputedAt, &s.Overall, &terms, &counts, &byFramework)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(terms, &s.Terms); err != nil {
		return nil, fmt.Errorf("decode terms: %w", err)
	}
	if err := json.Unmarshal(counts, &s.Counts); err != nil {
		return nil, fmt.Errorf("decode counts: %w", err)
	}
	if len(byFramework) > 0 {
		if err := json.Unmarshal(byFramework, &s.ByFramework); err != nil {
			return nil, fmt.Errorf("decode by_framework: %w", err)
		}
	}
	return &s, nil
}

func (r *SnapshotRepo) Create(ctx context.Context, s *domain.ComplianceScoreSnapshot) error {
	terms, err := json.Marshal(s.Terms)
	if err != nil {
		return fmt.Errorf("snapshotRepo.Create: encode terms: %w", err)
	}
	counts, err := json.Marshal(s.Counts)
	if err != nil {
		return fmt.Errorf("snapshotRepo.Create: encode counts: %w", err)
	}
	byFramework, err := json.Marshal(s.ByFramework)
	if err != nil {
		return fmt.Errorf("snapshotRepo.Create: encode by_framework: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO score_snapshots (id, org_id, project_id, computed_at, overall, terms, counts, by_framework)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.OrgID, s.ProjectID, s.ComputedAt, s.Overall, terms, counts, byFramework,
	)
	if err != nil {
		return fmt.Errorf("snapshotRepo.Create: %w", err)
	}

	return nil
}

func (r *SnapshotRepo) Latest(ctx context.Context, orgID, projectID uuid.UUID) (*domain.ComplianceScoreSnapshot, error) {
	s, err := scanSnapshot(r.pool.QueryRow(ctx,
		`SELECT `+snapshotColumns+` FROM score_snapshots
		 WHERE org_id = $1 AND project_id = $2
		 ORDER BY computed_at DESC
		 LIMIT 1`,
		orgID, projectID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("snapshotRepo.Latest: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshotRepo.Latest: %w", err)
	}

	return s, nil
}

func (r *SnapshotRepo) ListByProject(ctx context.Context, orgID, projectID uuid.UUID, limit, offset int) ([]*domain.ComplianceScoreSnapshot, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+snapshotColumns+` FROM score_snapshots
		 WHERE org_id = $1 AND project_id = $2
		 ORDER BY computed_at DESC
		 LIMIT $3 OFFSET $4`,
		orgID, projectID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshotRepo.ListByProject: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.ComplianceScoreSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("snapshotRepo.ListByProject: scan: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("snapshotRepo.ListByProject: rows: %w", err)
	}

	return snapshots, nil
}
