// Package policy is the isolation policy engine. Every read and write path
// goes through Authorize; there are no scattered ad hoc checks. The engine
// holds no mutable state beyond its role-requirement configuration.
package policy

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veritrail/veritrail/internal/directory"
	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/obs"
)

// Operation names an authorizable action on a resource kind.
type Operation string

const (
	OpOrgRead          Operation = "org.read"
	OpOrgWrite         Operation = "org.write"
	OpUserRead         Operation = "user.read"
	OpUserWrite        Operation = "user.write"
	OpProjectRead      Operation = "project.read"
	OpProjectCreate    Operation = "project.create"
	OpProjectUpdate    Operation = "project.update"
	OpProjectDelete    Operation = "project.delete"
	OpStageRegress     Operation = "project.stage_regress"
	OpRequirementRead  Operation = "requirement.read"
	OpRequirementWrite Operation = "requirement.write"
	OpTestRead         Operation = "test.read"
	OpTestWrite        Operation = "test.write"
	OpRunCreate        Operation = "run.create"
	OpTraceLinkRead    Operation = "tracelink.read"
	OpTraceLinkWrite   Operation = "tracelink.write"
	OpAuditRead        Operation = "audit.read"
	OpAuditPurge       Operation = "audit.purge"
	OpScoreRead        Operation = "score.read"
	OpScoreRecompute   Operation = "score.recompute"
)

// IsWrite reports whether the operation mutates state. Read operations are
// authorized by tenancy alone; write operations additionally require a role
// intersection.
func (op Operation) IsWrite() bool {
	switch op {
	case OpOrgRead, OpUserRead, OpProjectRead, OpRequirementRead,
		OpTestRead, OpTraceLinkRead, OpAuditRead, OpScoreRead:
		return false
	}
	return true
}

// RoleRequirements maps each write operation to the roles allowed to
// perform it. The map is a configuration surface; operations absent from
// the map deny all writes.
type RoleRequirements map[Operation][]domain.Role

// DefaultRoleRequirements returns the standard write-permission matrix.
// Auditors hold no write permissions anywhere.
func DefaultRoleRequirements() RoleRequirements {
	return RoleRequirements{
		OpOrgWrite:         {domain.RoleAdmin},
		OpUserWrite:        {domain.RoleAdmin, domain.RoleSecurityOfficer},
		OpProjectCreate:    {domain.RoleAdmin, domain.RoleComplianceOfficer},
		OpProjectUpdate:    {domain.RoleAdmin, domain.RoleComplianceOfficer},
		OpProjectDelete:    {domain.RoleAdmin},
		OpStageRegress:     {domain.RoleAdmin, domain.RoleComplianceOfficer},
		OpRequirementWrite: {domain.RoleAdmin, domain.RoleComplianceOfficer, domain.RoleRegulatorySpecialist},
		OpTestWrite:        {domain.RoleAdmin, domain.RoleComplianceOfficer, domain.RoleQAEngineer},
		OpRunCreate:        {domain.RoleAdmin, domain.RoleQAEngineer},
		OpTraceLinkWrite:   {domain.RoleAdmin, domain.RoleComplianceOfficer, domain.RoleRegulatorySpecialist, domain.RoleQAEngineer},
		OpAuditPurge:       {domain.RoleAdmin, domain.RoleSecurityOfficer},
		OpScoreRecompute:   {domain.RoleAdmin, domain.RoleComplianceOfficer, domain.RoleQAEngineer},
	}
}

// ProjectRef carries the owning project's isolation attributes for
// project-scoped resources.
type ProjectRef struct {
	OrgID   uuid.UUID
	OwnerID uuid.UUID
}

// Resource carries the row-level attributes the engine evaluates. No
// repository access happens inside Authorize; callers supply what they
// already read.
type Resource struct {
	Type    domain.ResourceType
	OrgID   uuid.UUID
	OwnerID uuid.UUID   // project owner override; zero when not applicable
	Project *ProjectRef // set for resources scoped under a project
}

// Decision is the outcome of an authorization check. The reason is for
// internal logging only; external callers see not-found semantics so tenant
// enumeration stays impossible.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the positive decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny is a negative decision with an internal reason.
func Deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// Engine evaluates isolation policy for every access.
type Engine struct {
	require RoleRequirements
}

// New creates an Engine. Passing nil uses DefaultRoleRequirements.
func New(require RoleRequirements) *Engine {
	if require == nil {
		require = DefaultRoleRequirements()
	}
	return &Engine{require: require}
}

// Authorize evaluates whether the principal may perform op on res.
// A request is allowed iff all of the following hold:
//
//  1. res.OrgID equals the principal's organization, or the principal owns
//     the resource (owner override for projects).
//  2. For project-scoped resources the owning project resolves under the
//     same rule.
//  3. For writes, the principal's role set intersects the operation's
//     required roles.
func (e *Engine) Authorize(p directory.Principal, op Operation, res Resource) Decision {
	d := e.evaluate(p, op, res)
	if !d.Allowed {
		// The denial reason never leaves the process; callers surface
		// not-found semantics instead.
		log.Debug().
			Str("op", string(op)).
			Str("resource_type", string(res.Type)).
			Str("user_id", p.UserID.String()).
			Str("reason", d.Reason).
			Msg("authorization denied")
		obs.AuthorizationDenials.WithLabelValues(string(op)).Inc()
	}
	return d
}

func (e *Engine) evaluate(p directory.Principal, op Operation, res Resource) Decision {
	if p.UserID == uuid.Nil || p.OrgID == uuid.Nil {
		return Deny("unresolved principal")
	}

	if res.OrgID != p.OrgID && (res.OwnerID == uuid.Nil || res.OwnerID != p.UserID) {
		return Deny("resource belongs to another tenant")
	}

	if res.Project != nil {
		if res.Project.OrgID != p.OrgID && (res.Project.OwnerID == uuid.Nil || res.Project.OwnerID != p.UserID) {
			return Deny("owning project belongs to another tenant")
		}
	}

	if op.IsWrite() {
		allowed, ok := e.require[op]
		if !ok {
			return Deny("no role permitted for operation " + string(op))
		}
		if !p.HasAnyRole(allowed...) {
			return Deny("role set lacks permission for " + string(op))
		}
	}

	return Allow()
}
