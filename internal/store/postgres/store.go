// Package postgres implements the repository interfaces on pgx. Versioned
// entities are updated with compare-and-swap on the version column; the
// audit chain append is a conditional insert against the current tail.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veritrail/veritrail/internal/domain"
)

type Store struct {
	pool         *pgxpool.Pool
	orgs         *OrgRepo
	users        *UserRepo
	projects     *ProjectRepo
	requirements *RequirementRepo
	tests        *TestCaseRepo
	runs         *TestRunRepo
	links        *TraceLinkRepo
	audit        *AuditRepo
	snapshots    *SnapshotRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:         pool,
		orgs:         NewOrgRepo(pool),
		users:        NewUserRepo(pool),
		projects:     NewProjectRepo(pool),
		requirements: NewRequirementRepo(pool),
		tests:        NewTestCaseRepo(pool),
		runs:         NewTestRunRepo(pool),
		links:        NewTraceLinkRepo(pool),
		audit:        NewAuditRepo(pool),
		snapshots:    NewSnapshotRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Organizations() domain.OrganizationRepository { return s.orgs }
func (s *Store) Users() domain.UserRepository                 { return s.users }
func (s *Store) Projects() domain.ProjectRepository           { return s.projects }
func (s *Store) Requirements() domain.RequirementRepository   { return s.requirements }
func (s *Store) TestCases() domain.TestCaseRepository         { return s.tests }
func (s *Store) TestRuns() domain.TestRunRepository           { return s.runs }
func (s *Store) TraceLinks() domain.TraceLinkRepository       { return s.links }
func (s *Store) AuditEvents() domain.AuditEventRepository     { return s.audit }
func (s *Store) Snapshots() domain.ScoreSnapshotRepository    { return s.snapshots }
