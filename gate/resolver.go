package gate

import (
	"errors"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// DefaultDenialTarget is where denied requests go when nothing else is configured.
const DefaultDenialTarget = "/login/"

// ErrUnresolvedTarget is returned when a symbolic denial target has no route.
var ErrUnresolvedTarget = errors.New("unresolved denial target")

// Resolver maps symbolic route names to paths.
type Resolver interface {
	Resolve(name string) (string, bool)
}

// Routes is a name to path registry, filled in while the router is built.
type Routes struct {
	mu    sync.RWMutex
	paths map[string]string
}

// NewRoutes creates an empty route registry
func NewRoutes() *Routes {
	return &Routes{paths: make(map[string]string)}
}

// Register records path under name, replacing any earlier entry.
func (r *Routes) Register(name, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[name] = path
}

// Resolve returns the path registered under name.
func (r *Routes) Resolve(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	path, ok := r.paths[name]
	return path, ok
}

// Names returns the registered names in sorted order.
func (r *Routes) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.paths))
	for name := range r.paths {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveTarget turns a configured target into a redirect location. Targets
// containing "/" or "." are paths or URLs and are used verbatim; anything
// else is a route name.
func resolveTarget(target string, resolver Resolver) (string, error) {
	if target == "" {
		return DefaultDenialTarget, nil
	}
	if strings.ContainsAny(target, "/.") {
		return target, nil
	}
	if resolver != nil {
		if path, ok := resolver.Resolve(target); ok {
			return path, nil
		}
	}
	return "", ErrUnresolvedTarget
}

// withReturnTo appends the original request URI to location as field.
func withReturnTo(location, field, requestURI string) string {
	if field == "" || requestURI == "" {
		return location
	}
	u, err := url.Parse(location)
	if err != nil {
		return location
	}
	q := u.Query()
	q.Set(field, requestURI)
	u.RawQuery = q.Encode()
	return u.String()
}
