package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/access-gate/identity"
)

var testSecret = []byte("test-secret-at-least-32-bytes-long!!")

func newTestValidator(t *testing.T, cfg Config) *Validator {
	t.Helper()
	if cfg.Secret == nil {
		cfg.Secret = testSecret
	}
	v, err := NewValidator(cfg)
	require.NoError(t, err)
	return v
}

func TestNewValidator(t *testing.T) {
	_, err := NewValidator(Config{})
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestValidateToken(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token round trips the principal", func(t *testing.T) {
		v := newTestValidator(t, Config{Issuer: "access-gate", Audience: "web"})

		p := identity.NewPrincipal(uuid.New(), "alice", []string{"edit", "view"}, []string{"editors"})
		p.Email = "alice@example.com"
		token, err := v.Issue(p, time.Hour)
		require.NoError(t, err)

		got, err := v.ValidateToken(ctx, token)
		require.NoError(t, err)

		assert.Equal(t, p.ID, got.ID)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, "alice@example.com", got.Email)
		assert.True(t, got.Active)
		assert.False(t, got.Superuser)
		assert.Equal(t, []string{"edit", "view"}, got.Permissions().Slice())
		assert.Equal(t, []string{"editors"}, got.Groups().Slice())
	})

	t.Run("superuser and inactive flags survive", func(t *testing.T) {
		v := newTestValidator(t, Config{})

		p := identity.NewPrincipal(uuid.New(), "root", nil, nil)
		p.Superuser = true
		p.Active = false
		token, err := v.Issue(p, time.Hour)
		require.NoError(t, err)

		got, err := v.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.True(t, got.Superuser)
		assert.False(t, got.Active)
	})

	t.Run("expired token", func(t *testing.T) {
		v := newTestValidator(t, Config{})

		token, err := v.Issue(identity.NewPrincipal(uuid.New(), "bob", nil, nil), -time.Minute)
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("leeway tolerates small clock skew", func(t *testing.T) {
		v := newTestValidator(t, Config{Leeway: time.Minute})

		token, err := v.Issue(identity.NewPrincipal(uuid.New(), "bob", nil, nil), -10*time.Second)
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		assert.NoError(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		signer := newTestValidator(t, Config{Secret: []byte("another-secret-entirely-different")})
		v := newTestValidator(t, Config{})

		token, err := signer.Issue(identity.NewPrincipal(uuid.New(), "eve", nil, nil), time.Hour)
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		signer := newTestValidator(t, Config{Issuer: "someone-else"})
		v := newTestValidator(t, Config{Issuer: "access-gate"})

		token, err := signer.Issue(identity.NewPrincipal(uuid.New(), "eve", nil, nil), time.Hour)
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidIssuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		signer := newTestValidator(t, Config{Audience: "mobile"})
		v := newTestValidator(t, Config{Audience: "web"})

		token, err := signer.Issue(identity.NewPrincipal(uuid.New(), "eve", nil, nil), time.Hour)
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidAudience)
	})

	t.Run("unsigned token rejected", func(t *testing.T) {
		v := newTestValidator(t, Config{})

		claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing expiry rejected", func(t *testing.T) {
		v := newTestValidator(t, Config{})

		token, err := v.Sign(&Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.New().String()}})
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		v := newTestValidator(t, Config{})

		_, err := v.ValidateToken(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPrincipalFromClaims(t *testing.T) {
	t.Run("missing subject", func(t *testing.T) {
		_, err := PrincipalFromClaims(&Claims{})
		assert.ErrorIs(t, err, ErrMissingClaim)
	})

	t.Run("subject must be a UUID", func(t *testing.T) {
		_, err := PrincipalFromClaims(&Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"}})
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("empty names are dropped", func(t *testing.T) {
		p, err := PrincipalFromClaims(&Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.New().String()},
			Permissions:      []string{"", "view"},
			Groups:           []string{""},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"view"}, p.Permissions().Slice())
		assert.Empty(t, p.Groups().Slice())
	})
}
