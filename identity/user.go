// Package identity defines the user capability set that access gates
// evaluate, plus the request-context plumbing that carries it.
//
// The identity subsystem owns the data; gates only read it. Any concrete
// identity type can take part by implementing User.
package identity

import (
	"sort"

	"github.com/google/uuid"
)

// User is the capability set a gate needs from the current user.
type User interface {
	IsAuthenticated() bool
	Permissions() Set
	Groups() Set
}

// PermissionChecker is implemented by users that decide permission
// membership themselves (superusers, inactive accounts).
type PermissionChecker interface {
	HasPermission(perm string) bool
}

// Set is an unordered set of names. The zero value is an empty set.
type Set map[string]struct{}

// NewSet builds a set from the given names, skipping empty strings.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set. Safe on a nil set.
func (s Set) Has(name string) bool {
	if s == nil || name == "" {
		return false
	}
	_, ok := s[name]
	return ok
}

// Slice returns the members in sorted order.
func (s Set) Slice() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Principal is an authenticated identity resolved from token claims and,
// when configured, the user directory.
type Principal struct {
	ID        uuid.UUID
	Username  string
	Email     string
	Active    bool
	Superuser bool

	permissions Set
	groups      Set
}

// NewPrincipal creates an active principal with the given permissions and groups.
func NewPrincipal(id uuid.UUID, username string, permissions, groups []string) *Principal {
	return &Principal{
		ID:          id,
		Username:    username,
		Active:      true,
		permissions: NewSet(permissions...),
		groups:      NewSet(groups...),
	}
}

// IsAuthenticated is true for any non-nil principal.
func (p *Principal) IsAuthenticated() bool {
	return p != nil
}

// Permissions returns the directly granted permission names.
func (p *Principal) Permissions() Set {
	if p == nil {
		return nil
	}
	return p.permissions
}

// Groups returns the group names the principal belongs to.
func (p *Principal) Groups() Set {
	if p == nil {
		return nil
	}
	return p.groups
}

// HasPermission reports whether the principal holds perm. Inactive
// principals hold nothing; active superusers hold everything.
func (p *Principal) HasPermission(perm string) bool {
	if p == nil || !p.Active || perm == "" {
		return false
	}
	if p.Superuser {
		return true
	}
	return p.permissions.Has(perm)
}

// Grant adds permissions and groups to the principal. Used while the
// principal is being assembled, before it is attached to a request.
func (p *Principal) Grant(permissions, groups []string) {
	if p.permissions == nil {
		p.permissions = Set{}
	}
	if p.groups == nil {
		p.groups = Set{}
	}
	for _, perm := range permissions {
		if perm != "" {
			p.permissions[perm] = struct{}{}
		}
	}
	for _, g := range groups {
		if g != "" {
			p.groups[g] = struct{}{}
		}
	}
}

// Anonymous is the user of a request that carried no valid credentials.
type Anonymous struct{}

func (Anonymous) IsAuthenticated() bool { return false }
func (Anonymous) Permissions() Set      { return nil }
func (Anonymous) Groups() Set           { return nil }
