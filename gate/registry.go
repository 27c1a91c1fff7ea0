package gate

import (
	"fmt"
	"net/http"
	"sort"

	"go.uber.org/zap"
)

// Registry holds the named gates built from configuration.
type Registry struct {
	gates  map[string]*Gate
	opts   []Option
	logger *zap.Logger
}

// NewRegistry builds one gate per policy. opts are shared by every gate.
func NewRegistry(policies []Policy, logger *zap.Logger, opts ...Option) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]Option{WithLogger(logger)}, opts...)

	reg := &Registry{
		gates:  make(map[string]*Gate, len(policies)),
		opts:   opts,
		logger: logger,
	}
	for _, p := range policies {
		if _, exists := reg.gates[p.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePolicy, p.Name)
		}
		g, err := FromPolicy(p, opts...)
		if err != nil {
			return nil, err
		}
		reg.gates[p.Name] = g
		logger.Debug("gate registered",
			zap.String("gate", p.Name),
			zap.String("policy", p.String()))
	}
	return reg, nil
}

// Get returns the gate named name.
func (r *Registry) Get(name string) (*Gate, bool) {
	g, ok := r.gates[name]
	return g, ok
}

// Require returns the middleware of the named gate. An unknown name yields
// a gate that denies every request.
func (r *Registry) Require(name string) func(http.Handler) http.Handler {
	if g, ok := r.gates[name]; ok {
		return g.Middleware()
	}
	r.logger.Error("no access policy configured, route is closed",
		zap.String("gate", name))
	opts := append(append([]Option{}, r.opts...), WithName(name))
	return New(denyAll{}, opts...).Middleware()
}

// Names returns the registered gate names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gates))
	for name := range r.gates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered gates
func (r *Registry) Len() int {
	return len(r.gates)
}
