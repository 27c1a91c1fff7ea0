package gate

import (
	"reflect"

	"github.com/upb/access-gate/identity"
)

// Predicate decides whether a user may proceed past a gate.
type Predicate interface {
	Allow(user identity.User) bool
	String() string
}

// AllowAll admits every request, including ones with no user at all.
func AllowAll() Predicate { return allowAll{} }

// RequireAuthenticated admits authenticated users.
func RequireAuthenticated() Predicate { return authenticated{} }

// RequirePermission admits authenticated users holding perm. An empty perm
// admits nobody.
func RequirePermission(perm string) Predicate { return permission{perm: perm} }

// RequireGroup admits authenticated members of group. An empty group admits
// nobody.
func RequireGroup(group string) Predicate { return groupMember{group: group} }

// Check adapts fn into a predicate named name. fn is only called for
// non-nil users.
func Check(name string, fn func(identity.User) bool) Predicate {
	return checkFunc{name: name, fn: fn}
}

// denyAll stands in for gates that could not be configured.
type denyAll struct{}

func (denyAll) Allow(identity.User) bool { return false }
func (denyAll) String() string           { return "deny_all" }

type allowAll struct{}

func (allowAll) Allow(identity.User) bool { return true }
func (allowAll) String() string           { return string(KindAllowAll) }

type authenticated struct{}

func (authenticated) Allow(user identity.User) bool { return isAuthenticated(user) }
func (authenticated) String() string                { return string(KindAuthenticated) }

type permission struct{ perm string }

func (p permission) Allow(user identity.User) bool {
	if !isAuthenticated(user) || p.perm == "" {
		return false
	}
	if checker, ok := user.(identity.PermissionChecker); ok {
		return checker.HasPermission(p.perm)
	}
	return user.Permissions().Has(p.perm)
}

func (p permission) String() string { return string(KindPermission) + ":" + p.perm }

type groupMember struct{ group string }

func (g groupMember) Allow(user identity.User) bool {
	if !isAuthenticated(user) || g.group == "" {
		return false
	}
	return user.Groups().Has(g.group)
}

func (g groupMember) String() string { return string(KindGroup) + ":" + g.group }

type checkFunc struct {
	name string
	fn   func(identity.User) bool
}

func (c checkFunc) Allow(user identity.User) bool {
	if c.fn == nil || isNil(user) {
		return false
	}
	return c.fn(user)
}

func (c checkFunc) String() string {
	if c.name == "" {
		return "check"
	}
	return c.name
}

func isAuthenticated(user identity.User) bool {
	return !isNil(user) && user.IsAuthenticated()
}

// isNil also catches typed nil pointers stored in the interface.
func isNil(user identity.User) bool {
	if user == nil {
		return true
	}
	v := reflect.ValueOf(user)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}
