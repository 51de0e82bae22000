package policy

import (
	"github.com/veritrail/veritrail/internal/directory"
	"github.com/veritrail/veritrail/internal/domain"
)

// Redacted replaces sensitive field values in masked projections.
const Redacted = "[redacted]"

// unmaskRoles may see sensitive (PII/PHI-equivalent) fields in returned
// projections. Masking is applied after authorization, never instead of it.
var unmaskRoles = []domain.Role{domain.RoleAdmin, domain.RoleSecurityOfficer}

// CanUnmask reports whether the principal may see sensitive fields.
func CanUnmask(p directory.Principal) bool {
	return p.HasAnyRole(unmaskRoles...)
}

// MaskUser returns a copy of u with sensitive fields redacted unless the
// principal holds an unmask-capable role. The stored row is never modified.
func MaskUser(p directory.Principal, u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	if CanUnmask(p) {
		return u
	}

	masked := *u
	masked.Email = Redacted
	masked.ExternalID = Redacted
	return &masked
}

// MaskUsers masks a slice of users for the principal.
func MaskUsers(p directory.Principal, users []*domain.User) []*domain.User {
	if CanUnmask(p) {
		return users
	}
	out := make([]*domain.User, len(users))
	for i, u := range users {
		out[i] = MaskUser(p, u)
	}
	return out
}

// MaskRun returns a copy of r with execution notes redacted for principals
// without an unmask-capable role; notes may carry patient-adjacent detail
// from clinical validation runs.
func MaskRun(p directory.Principal, r *domain.TestRun) *domain.TestRun {
	if r == nil || CanUnmask(p) || r.Notes == "" {
		return r
	}

	masked := *r
	masked.Notes = Redacted
	return &masked
}
