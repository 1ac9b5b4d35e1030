package tablekit

// Principal is an authenticated caller plus its resolved role and group
// memberships. Roles are names; the RoleDirectory resolves them to record ids
// when needed.
type Principal struct {
	ID     int64
	Name   string
	Roles  []string
	Groups []int64

	// System marks the trusted internal caller (seeding, audit sink,
	// background jobs). A system principal bypasses the role algebra
	// entirely. The flag is always set explicitly; it is never inferred
	// from an incomplete request context.
	System bool
}

// HasAnyRole reports whether the principal holds any of the given role names.
// A nil principal holds no roles.
func (p *Principal) HasAnyRole(roles ...string) bool {
	if p == nil {
		return false
	}
	for _, want := range roles {
		for _, have := range p.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// InGroup reports whether the principal belongs to the given group.
func (p *Principal) InGroup(groupID int64) bool {
	if p == nil {
		return false
	}
	for _, g := range p.Groups {
		if g == groupID {
			return true
		}
	}
	return false
}

// IsSystem reports whether the principal is the trusted internal caller.
func (p *Principal) IsSystem() bool {
	return p != nil && p.System
}

// SystemPrincipal returns the trusted internal caller used by seeding and the
// audit sink.
func SystemPrincipal() *Principal {
	return &Principal{ID: 0, Name: "system", System: true}
}

// bypassesAccess reports whether column-level access checks are skipped for
// this principal. A nil principal only occurs on internal call paths (method
// dispatch rejects nil principals for auth-required methods before any access
// check can see one).
func (p *Principal) bypassesAccess() bool {
	return p == nil || p.System
}
