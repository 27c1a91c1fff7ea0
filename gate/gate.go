// Package gate wraps HTTP handlers with access checks against the current
// user. A Gate evaluates one predicate per request; allowed requests reach
// the wrapped handler, denied ones are handed to the denial hook, which
// redirects to the configured target by default.
package gate

import (
	"context"
	"fmt"
	"net/http"

	"github.com/upb/access-gate/identity"
	"github.com/upb/access-gate/internal/shared"
	"github.com/upb/access-gate/utils"
	"go.uber.org/zap"
)

// Decision reasons reported to observers and logs.
const (
	ReasonAllowed          = "allowed"
	ReasonDenied           = "denied"
	ReasonNoUser           = "no_user"
	ReasonMalformedUser    = "malformed_user"
	ReasonUnresolvedTarget = "unresolved_target"
)

// Denial describes a denied request to the denial hook.
type Denial struct {
	Gate          string
	Predicate     string
	Reason        string
	Target        string
	Authenticated bool
}

// DeniedFunc answers a denied request.
type DeniedFunc func(w http.ResponseWriter, r *http.Request, d Denial)

// Decision is reported to observers once per evaluated request.
type Decision struct {
	Gate      string
	Predicate string
	Allowed   bool
	Reason    string
	Path      string
	Method    string
}

// Observer receives gate decisions (metrics, audit).
type Observer interface {
	ObserveDecision(ctx context.Context, d Decision)
}

// UserFunc extracts the current user from a request.
type UserFunc func(r *http.Request) identity.User

// Gate conditionally admits requests to the next handler. A Gate is
// immutable after New and safe for concurrent use.
type Gate struct {
	name          string
	predicate     Predicate
	target        string
	redirectField string
	resolver      Resolver
	userFunc      UserFunc
	denied        DeniedFunc
	observers     []Observer
	logger        *zap.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithName sets the gate name used in logs and metrics.
func WithName(name string) Option {
	return func(g *Gate) { g.name = name }
}

// WithDenialTarget sets where denied requests are redirected. An empty
// target keeps the current one.
func WithDenialTarget(target string) Option {
	return func(g *Gate) {
		if target != "" {
			g.target = target
		}
	}
}

// WithRedirectField appends the denied request URI to the redirect as the
// named query parameter.
func WithRedirectField(field string) Option {
	return func(g *Gate) { g.redirectField = field }
}

// WithResolver sets the resolver for symbolic denial targets.
func WithResolver(resolver Resolver) Option {
	return func(g *Gate) { g.resolver = resolver }
}

// WithUserFunc overrides how the current user is read from the request.
func WithUserFunc(fn UserFunc) Option {
	return func(g *Gate) {
		if fn != nil {
			g.userFunc = fn
		}
	}
}

// WithDeniedHandler overrides the denial hook.
func WithDeniedHandler(fn DeniedFunc) Option {
	return func(g *Gate) {
		if fn != nil {
			g.denied = fn
		}
	}
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(g *Gate) {
		if o != nil {
			g.observers = append(g.observers, o)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a gate around predicate. A nil predicate denies everything.
func New(predicate Predicate, opts ...Option) *Gate {
	if predicate == nil {
		predicate = denyAll{}
	}
	g := &Gate{
		predicate: predicate,
		target:    DefaultDenialTarget,
		userFunc:  userFromContext,
		denied:    Redirect,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.name == "" {
		g.name = predicate.String()
	}
	return g
}

// FromPolicy builds a gate from a policy. opts are applied before the
// policy's own name and denial target.
func FromPolicy(p Policy, opts ...Option) (*Gate, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	predicate, err := p.Rule.Predicate()
	if err != nil {
		return nil, fmt.Errorf("policy %q: %w", p.Name, err)
	}

	opts = append(opts, WithName(p.Name), WithDenialTarget(p.DenialTarget))
	g := New(predicate, opts...)

	if p.Rule.needsParam() {
		g.logger.Warn("gate has no parameter and denies every request",
			zap.String("gate", p.Name),
			zap.String("rule", string(p.Rule.Kind)))
	}
	return g, nil
}

// Name returns the gate name.
func (g *Gate) Name() string { return g.name }

// Target returns the configured denial target.
func (g *Gate) Target() string { return g.target }

// Allowed reports whether user passes the gate. It never panics: a
// predicate that panics on a malformed user is a denial.
func (g *Gate) Allowed(user identity.User) bool {
	allowed, _ := g.evaluate(user)
	return allowed
}

func (g *Gate) evaluate(user identity.User) (allowed bool, reason string) {
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.Error("predicate panicked, denying request",
				zap.String("gate", g.name),
				zap.Any("panic", rec))
			allowed, reason = false, ReasonMalformedUser
		}
	}()

	if g.predicate.Allow(user) {
		return true, ReasonAllowed
	}
	if isNil(user) {
		return false, ReasonNoUser
	}
	return false, ReasonDenied
}

// Wrap returns a handler that runs next only for allowed requests.
func (g *Gate) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := shared.RequestID(ctx)

		user := g.userFunc(r)
		allowed, reason := g.evaluate(user)

		if allowed {
			g.observe(ctx, r, true, reason)
			g.logger.Debug("gate passed",
				zap.String("request_id", requestID),
				zap.String("gate", g.name))
			next.ServeHTTP(w, r)
			return
		}

		target, err := resolveTarget(g.target, g.resolver)
		if err != nil {
			g.logger.Error("cannot resolve denial target",
				zap.String("request_id", requestID),
				zap.String("gate", g.name),
				zap.String("target", g.target),
				zap.Error(err))
			g.observe(ctx, r, false, ReasonUnresolvedTarget)
			_ = utils.WriteForbidden(w, "Access denied", nil)
			return
		}
		target = withReturnTo(target, g.redirectField, r.URL.RequestURI())
		g.observe(ctx, r, false, reason)

		g.logger.Warn("request denied",
			zap.String("request_id", requestID),
			zap.String("gate", g.name),
			zap.String("predicate", g.predicate.String()),
			zap.String("reason", reason),
			zap.String("target", target))

		g.denied(w, r, Denial{
			Gate:          g.name,
			Predicate:     g.predicate.String(),
			Reason:        reason,
			Target:        target,
			Authenticated: safeAuthenticated(user),
		})
	})
}

// Middleware adapts the gate to func(http.Handler) http.Handler, as used by
// chi's r.Use and r.With.
func (g *Gate) Middleware() func(http.Handler) http.Handler {
	return g.Wrap
}

func (g *Gate) observe(ctx context.Context, r *http.Request, allowed bool, reason string) {
	if len(g.observers) == 0 {
		return
	}
	d := Decision{
		Gate:      g.name,
		Predicate: g.predicate.String(),
		Allowed:   allowed,
		Reason:    reason,
		Path:      r.URL.Path,
		Method:    r.Method,
	}
	for _, o := range g.observers {
		o.ObserveDecision(ctx, d)
	}
}

// Chain composes gates so that they are evaluated in the given order. The
// first gate that denies answers the request.
func Chain(gates ...*Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		for i := len(gates) - 1; i >= 0; i-- {
			if gates[i] == nil {
				continue
			}
			next = gates[i].Wrap(next)
		}
		return next
	}
}

// Redirect is the default denial hook: a 302 to the denial target.
func Redirect(w http.ResponseWriter, r *http.Request, d Denial) {
	http.Redirect(w, r, d.Target, http.StatusFound)
}

// JSONDenied answers denied API requests with JSON instead of a redirect:
// 401 for anonymous users, 403 for authenticated ones.
func JSONDenied(w http.ResponseWriter, r *http.Request, d Denial) {
	details := map[string]interface{}{
		"gate":     d.Gate,
		"location": d.Target,
	}
	if !d.Authenticated {
		_ = utils.WriteUnauthorized(w, "Authentication required", details)
		return
	}
	_ = utils.WriteForbidden(w, "Insufficient permissions", details)
}

func userFromContext(r *http.Request) identity.User {
	return identity.FromContext(r.Context())
}

func safeAuthenticated(user identity.User) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return isAuthenticated(user)
}
