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

type TestCaseRepo struct {
	pool *pgxpool.Pool
}

func NewTestCaseRepo(pool *pgxpool.Pool) *TestCaseRepo {
	return &TestCaseRepo{pool: pool}
}

const testCaseColumns = `id, org_id, project_id, req_id, title, steps,
	review_status, approval, quality_score, source_sys, source_ref,
	version, created_at, updated_at, deleted_at, deleted_by`

func scanTestCase(row pgx.Row) (*domain.TestCase, error) {
	var (
		t     domain.TestCase
		steps []byte
	)
	err := row.Scan(
		&t.ID, &t.OrgID, &t.ProjectID, &t.ReqID, &t.Title, &steps,
		&t.ReviewStatus, &t.Approval, &t.QualityScore, &t.SourceSys, &t.SourceRef,
		&t.Version, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt, &t.DeletedBy,
	)
	if err != nil {
		return nil, err
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &t.Steps); err != nil {
			return nil, fmt.Errorf("decode steps: %w", err)
		}
	}
	return &t, nil
}

func encodeSteps(steps []domain.TestStep) ([]byte, error) {
	if steps == nil {
		steps = []domain.TestStep{}
	}
	return json.Marshal(steps)
}

func (r *TestCaseRepo) Create(ctx context.Context, t *domain.TestCase) error {
	steps, err := encodeSteps(t.Steps)
	if err != nil {
		return fmt.Errorf("testCaseRepo.Create: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO test_cases (id, org_id, project_id, req_id, title, steps,
		        review_status, approval, quality_score, source_sys, source_ref, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		t.ID, t.OrgID, t.ProjectID, t.ReqID, t.Title, steps,
		t.ReviewStatus, t.Approval, t.QualityScore, t.SourceSys, t.SourceRef,
		t.Version, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("testCaseRepo.Create: %w", err)
	}

	return nil
}

func (r *TestCaseRepo) GetByID(ctx context.Context, orgID, id uuid.UUID, includeDeleted bool) (*domain.TestCase, error) {
	query := `SELECT ` + testCaseColumns + ` FROM test_cases WHERE org_id = $1 AND id = $2`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	t, err := scanTestCase(r.pool.QueryRow(ctx, query, orgID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("testCaseRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("testCaseRepo.GetByID: %w", err)
	}

	return t, nil
}

func (r *TestCaseRepo) Update(ctx context.Context, t *domain.TestCase, expectedVersion int64) error {
	steps, err := encodeSteps(t.Steps)
	if err != nil {
		return fmt.Errorf("testCaseRepo.Update: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE test_cases SET title = $1, steps = $2, review_status = $3, approval = $4,
		        quality_score = $5, version = version + 1, updated_at = now()
		 WHERE org_id = $6 AND id = $7 AND version = $8 AND deleted_at IS NULL`,
		t.Title, steps, t.ReviewStatus, t.Approval, t.QualityScore,
		t.OrgID, t.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("testCaseRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return versionConflictOrNotFound(ctx, r.pool, "testCaseRepo.Update", "test_cases", t.OrgID, t.ID)
	}

	t.Version = expectedVersion + 1
	return nil
}

func (r *TestCaseRepo) SoftDelete(ctx context.Context, orgID, id, deletedBy uuid.UUID, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_cases SET deleted_at = now(), deleted_by = $1, version = version + 1, updated_at = now()
		 WHERE org_id = $2 AND id = $3 AND version = $4 AND deleted_at IS NULL`,
		deletedBy, orgID, id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("testCaseRepo.SoftDelete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return versionConflictOrNotFound(ctx, r.pool, "testCaseRepo.SoftDelete", "test_cases", orgID, id)
	}

	return nil
}

func (r *TestCaseRepo) ListByProject(ctx context.Context, orgID, projectID uuid.UUID, includeDeleted bool) ([]*domain.TestCase, error) {
	query := `SELECT ` + testCaseColumns + ` FROM test_cases
		 WHERE org_id = $1 AND project_id = $2`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY created_at LIMIT 10000`

	rows, err := r.pool.Query(ctx, query, orgID, projectID)
	if err != nil {
		return nil, fmt.Errorf("testCaseRepo.ListByProject: %w", err)
	}
	defer rows.Close()

	return collectTestCases(rows, "testCaseRepo.ListByProject")
}

func (r *TestCaseRepo) ListByRequirement(ctx context.Context, orgID, reqID uuid.UUID) ([]*domain.TestCase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+testCaseColumns+` FROM test_cases
		 WHERE org_id = $1 AND req_id = $2 AND deleted_at IS NULL
		 ORDER BY created_at
		 LIMIT 10000`,
		orgID, reqID,
	)
	if err != nil {
		return nil, fmt.Errorf("testCaseRepo.ListByRequirement: %w", err)
	}
	defer rows.Close()

	return collectTestCases(rows, "testCaseRepo.ListByRequirement")
}

func collectTestCases(rows pgx.Rows, caller string) ([]*domain.TestCase, error) {
	var tests []*domain.TestCase
	for rows.Next() {
		t, err := scanTestCase(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		tests = append(tests, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return tests, nil
}

type TestRunRepo struct {
	pool *pgxpool.Pool
}

func NewTestRunRepo(pool *pgxpool.Pool) *TestRunRepo {
	return &TestRunRepo{pool: pool}
}

const testRunColumns = `id, org_id, project_id, test_id, result, executed_by, executed_at, notes`

func scanTestRun(row pgx.Row) (*domain.TestRun, error) {
	var run domain.TestRun
	err := row.Scan(
		&run.ID, &run.OrgID, &run.ProjectID, &run.TestID,
		&run.Result, &run.ExecutedBy, &run.ExecutedAt, &run.Notes,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *TestRunRepo) Create(ctx context.Context, run *domain.TestRun) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO test_runs (id, org_id, project_id, test_id, result, executed_by, executed_at, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.OrgID, run.ProjectID, run.TestID,
		run.Result, run.ExecutedBy, run.ExecutedAt, run.Notes,
	)
	if err != nil {
		return fmt.Errorf("testRunRepo.Create: %w", err)
	}

	return nil
}

func (r *TestRunRepo) ListByTest(ctx context.Context, orgID, testID uuid.UUID) ([]*domain.TestRun, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+testRunColumns+` FROM test_runs
		 WHERE org_id = $1 AND test_id = $2
		 ORDER BY executed_at DESC
		 LIMIT 10000`,
		orgID, testID,
	)
	if err != nil {
		return nil, fmt.Errorf("testRunRepo.ListByTest: %w", err)
	}
	defer rows.Close()

	return collectTestRuns(rows, "testRunRepo.ListByTest")
}

func (r *TestRunRepo) ListByProject(ctx context.Context, orgID, projectID uuid.UUID) ([]*domain.TestRun, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+testRunColumns+` FROM test_runs
		 WHERE org_id = $1 AND project_id = $2
		 ORDER BY executed_at DESC
		 LIMIT 10000`,
		orgID, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("testRunRepo.ListByProject: %w", err)
	}
	defer rows.Close()

	return collectTestRuns(rows, "testRunRepo.ListByProject")
}

func (r *TestRunRepo) LatestByTest(ctx context.Context, orgID, projectID uuid.UUID) (map[uuid.UUID]*domain.TestRun, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT ON (test_id) `+testRunColumns+` FROM test_runs
		 WHERE org_id = $1 AND project_id = $2
		 ORDER BY test_id, executed_at DESC`,
		orgID, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("testRunRepo.LatestByTest: %w", err)
	}
	defer rows.Close()

	latest := make(map[uuid.UUID]*domain.TestRun)
	for rows.Next() {
		run, err := scanTestRun(rows)
		if err != nil {
			return nil, fmt.Errorf("testRunRepo.LatestByTest: scan: %w", err)
		}
		latest[run.TestID] = run
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("testRunRepo.LatestByTest: rows: %w", err)
	}

	return latest, nil
}

func collectTestRuns(rows pgx.Rows, caller string) ([]*domain.TestRun, error) {
	var runs []*domain.TestRun
	for rows.Next() {
		run, err := scanTestRun(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return runs, nil
}
