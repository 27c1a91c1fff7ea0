// Package tokens validates the bearer tokens that carry a user's identity
// and turns their claims into an identity.Principal.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upb/access-gate/identity"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer is invalid
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience is returned when the token audience is invalid
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrMissingClaim is returned when a required claim is missing
	ErrMissingClaim = errors.New("missing required claim")

	// ErrMissingSecret is returned when the validator has no signing key
	ErrMissingSecret = errors.New("signing secret is required")
)

// Claims represents the claims carried by an access token
type Claims struct {
	jwt.RegisteredClaims
	Username    string   `json:"preferred_username,omitempty"`
	Email       string   `json:"email,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Groups      []string `json:"groups,omitempty"`
	Superuser   bool     `json:"is_superuser,omitempty"`
	// Inactive is set for disabled accounts; absent means active.
	Inactive bool `json:"is_inactive,omitempty"`
}

// Config holds configuration for Validator
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Validator validates HS256 signed tokens
type Validator struct {
	secret   []byte
	issuer   string
	audience string
	parser   *jwt.Parser
	now      func() time.Time
}

// NewValidator creates a new token validator
func NewValidator(config Config) (*Validator, error) {
	if len(config.Secret) == 0 {
		return nil, ErrMissingSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(config.Leeway),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	return &Validator{
		secret:   config.Secret,
		issuer:   config.Issuer,
		audience: config.Audience,
		parser:   jwt.NewParser(opts...),
		now:      time.Now,
	}, nil
}

// ValidateToken validates a token and returns the principal it identifies
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (*identity.Principal, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, ErrInvalidIssuer
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, ErrInvalidAudience
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return PrincipalFromClaims(claims)
}

// PrincipalFromClaims converts validated claims into a principal
func PrincipalFromClaims(claims *Claims) (*identity.Principal, error) {
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid sub UUID: %v", ErrInvalidToken, err)
	}

	p := identity.NewPrincipal(id, claims.Username, claims.Permissions, claims.Groups)
	p.Email = claims.Email
	p.Superuser = claims.Superuser
	p.Active = !claims.Inactive
	return p, nil
}

// Issue signs claims for principal valid for ttl. It is used by tests and
// local tooling; production tokens come from the identity provider.
func (v *Validator) Issue(p *identity.Principal, ttl time.Duration) (string, error) {
	now := v.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username:    p.Username,
		Email:       p.Email,
		Permissions: p.Permissions().Slice(),
		Groups:      p.Groups().Slice(),
		Superuser:   p.Superuser,
		Inactive:    !p.Active,
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return v.Sign(claims)
}

// Sign signs arbitrary claims with the validator's secret
func (v *Validator) Sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
