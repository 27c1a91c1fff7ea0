package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/upb/access-gate/identity"
	"github.com/upb/access-gate/internal/shared"
	"github.com/upb/access-gate/repositories"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating bearer tokens
type TokenValidator interface {
	// ValidateToken validates a token and returns the principal it names
	ValidateToken(ctx context.Context, token string) (*identity.Principal, error)
}

// Authenticator attaches the current user to each request. It never rejects:
// requests without a valid token carry identity.Anonymous and access
// decisions are left to the gates.
type Authenticator struct {
	validator TokenValidator
	directory repositories.DirectoryRepository
	logger    *zap.Logger
}

// NewAuthenticator creates a new Authenticator. directory may be nil, in
// which case principals are built from token claims alone.
func NewAuthenticator(validator TokenValidator, directory repositories.DirectoryRepository, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		validator: validator,
		directory: directory,
		logger:    logger,
	}
}

// authTokenCookieName is the cookie name for tokens (Authorization header takes precedence)
const authTokenCookieName = "auth_token"
const sessionCookieName = "session"

// Authenticate resolves the request user and stores it in the context
func (m *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user := m.resolve(ctx, extractToken(r))
		next.ServeHTTP(w, r.WithContext(identity.WithUser(ctx, user)))
	})
}

func (m *Authenticator) resolve(ctx context.Context, token string) identity.User {
	requestID := shared.RequestID(ctx)

	if token == "" || m.validator == nil {
		return identity.Anonymous{}
	}

	principal, err := m.validator.ValidateToken(ctx, token)
	if err != nil || principal == nil {
		m.logger.Warn("token validation failed, continuing as anonymous",
			zap.String("request_id", requestID),
			zap.Error(err))
		return identity.Anonymous{}
	}

	m.enrich(ctx, principal)

	m.logger.Debug("authentication successful",
		zap.String("request_id", requestID),
		zap.String("sub", principal.ID.String()),
		zap.String("username", principal.Username))
	return principal
}

// enrich merges directory memberships into the principal. Lookup failures
// leave the claims untouched; the directory can only add grants or
// deactivate the user.
func (m *Authenticator) enrich(ctx context.Context, p *identity.Principal) {
	if m.directory == nil {
		return
	}

	memberships, err := m.directory.GetMemberships(ctx, p.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			m.logger.Debug("user not in directory, using token claims",
				zap.String("sub", p.ID.String()))
			return
		}
		m.logger.Warn("directory lookup failed, using token claims",
			zap.String("request_id", shared.RequestID(ctx)),
			zap.String("sub", p.ID.String()),
			zap.Error(err))
		return
	}

	p.Grant(memberships.Permissions, memberships.Groups)
	p.Active = p.Active && memberships.Active
	p.Superuser = p.Superuser || memberships.Superuser
	if p.Username == "" {
		p.Username = memberships.Username
	}
	if p.Email == "" {
		p.Email = memberships.Email
	}
}

// extractToken extracts the token from the Authorization header ("Bearer TOKEN")
// or the auth_token/session cookie. The header takes precedence.
func extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	for _, name := range []string{authTokenCookieName, sessionCookieName} {
		if cookie, err := r.Cookie(name); err == nil && cookie.Value != "" {
			return cookie.Value
		}
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
