// Package memory provides in-process repository implementations with the
// same contracts as the postgres store: tenant-scoped reads, optimistic
// versioning, soft deletes, and atomic append-iff-tail-matches audit
// chains. It backs single-node evaluation deployments and the service
// tests; production deployments use the postgres store.
package memory

import (
	"github.com/veritrail/veritrail/internal/domain"
)

// Store bundles the in-memory repositories.
type Store struct {
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

// New creates an empty Store.
func New() *Store {
	return &Store{
		orgs:         NewOrgRepo(),
		users:        NewUserRepo(),
		projects:     NewProjectRepo(),
		requirements: NewRequirementRepo(),
		tests:        NewTestCaseRepo(),
		runs:         NewTestRunRepo(),
		links:        NewTraceLinkRepo(),
		audit:        NewAuditRepo(),
		snapshots:    NewSnapshotRepo(),
	}
}

func (s *Store) Organizations() domain.OrganizationRepository  { return s.orgs }
func (s *Store) Users() domain.UserRepository                  { return s.users }
func (s *Store) Projects() domain.ProjectRepository            { return s.projects }
func (s *Store) Requirements() domain.RequirementRepository    { return s.requirements }
func (s *Store) TestCases() domain.TestCaseRepository          { return s.tests }
func (s *Store) TestRuns() domain.TestRunRepository            { return s.runs }
func (s *Store) TraceLinks() domain.TraceLinkRepository        { return s.links }
func (s *Store) AuditEvents() domain.AuditEventRepository      { return s.audit }
func (s *Store) Snapshots() domain.ScoreSnapshotRepository     { return s.snapshots }
