package gate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/upb/access-gate/utils"
)

var (
	// ErrInvalidPolicy is returned when a policy definition cannot be parsed
	ErrInvalidPolicy = errors.New("invalid access policy")

	// ErrUnknownRule is returned for a rule kind no predicate exists for
	ErrUnknownRule = errors.New("unknown rule kind")

	// ErrDuplicatePolicy is returned when two policies share a name
	ErrDuplicatePolicy = errors.New("duplicate access policy")
)

// RuleKind selects the predicate of a policy.
type RuleKind string

const (
	KindAllowAll      RuleKind = "allow_all"
	KindAuthenticated RuleKind = "authenticated"
	KindPermission    RuleKind = "permission"
	KindGroup         RuleKind = "group"
)

// Rule is a predicate selector plus its optional parameter (permission or
// group name).
type Rule struct {
	Kind  RuleKind `validate:"required,oneof=allow_all authenticated permission group"`
	Param string   `validate:"max=255,excludesall=@;"`
}

// Policy is the configuration of one named gate.
type Policy struct {
	Name string `validate:"required,max=64"`
	Rule Rule
	// DenialTarget overrides the gate default when non-empty.
	DenialTarget string `validate:"target,excludes=;,max=2048"`
}

// Predicate builds the predicate the rule selects. A permission or group
// rule without a parameter is valid and denies every request.
func (r Rule) Predicate() (Predicate, error) {
	switch r.Kind {
	case KindAllowAll:
		return AllowAll(), nil
	case KindAuthenticated:
		return RequireAuthenticated(), nil
	case KindPermission:
		return RequirePermission(r.Param), nil
	case KindGroup:
		return RequireGroup(r.Param), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRule, r.Kind)
	}
}

// needsParam reports whether the rule is unsatisfiable without its parameter.
func (r Rule) needsParam() bool {
	return (r.Kind == KindPermission || r.Kind == KindGroup) && r.Param == ""
}

// Validate checks the policy definition.
func (p Policy) Validate() error {
	if err := utils.ValidateStruct(&p); err != nil {
		if fields := utils.GetValidationFields(err); fields != nil {
			if _, ok := fields["Kind"]; ok {
				return fmt.Errorf("policy %q: %w: %q", p.Name, ErrUnknownRule, p.Rule.Kind)
			}
		}
		return fmt.Errorf("policy %q: %w: %v", p.Name, ErrInvalidPolicy, err)
	}
	return nil
}

// ParsePolicies parses policy definitions of the form
//
//	name=kind[:param][@target];name=kind...
//
// for example "reports=permission:reports.view@/login/;staff=group:staff".
// The target starts after the first '@', so it may carry URL userinfo, but
// neither a parameter nor a target may contain ';'.
func ParsePolicies(s string) ([]Policy, error) {
	var policies []Policy
	seen := make(map[string]bool)

	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, def, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		def = strings.TrimSpace(def)
		if !ok || name == "" || def == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, entry)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePolicy, name)
		}
		seen[name] = true

		p := Policy{Name: name}
		if rule, target, ok := strings.Cut(def, "@"); ok {
			def = rule
			p.DenialTarget = strings.TrimSpace(target)
		}
		kind, param, _ := strings.Cut(def, ":")
		p.Rule = Rule{
			Kind:  RuleKind(strings.TrimSpace(kind)),
			Param: strings.TrimSpace(param),
		}

		if err := p.Validate(); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}

	return policies, nil
}

// String renders the policy in the ParsePolicies form.
func (p Policy) String() string {
	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteByte('=')
	b.WriteString(string(p.Rule.Kind))
	if p.Rule.Param != "" {
		b.WriteByte(':')
		b.WriteString(p.Rule.Param)
	}
	if p.DenialTarget != "" {
		b.WriteByte('@')
		b.WriteString(p.DenialTarget)
	}
	return b.String()
}
