package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	t.Run("skips empty names", func(t *testing.T) {
		s := NewSet("edit", "", "view")
		assert.Len(t, s, 2)
		assert.Equal(t, []string{"edit", "view"}, s.Slice())
	})

	t.Run("nil set has nothing", func(t *testing.T) {
		var s Set
		assert.False(t, s.Has("edit"))
		assert.Empty(t, s.Slice())
	})

	t.Run("empty name is never a member", func(t *testing.T) {
		s := Set{"": {}}
		assert.False(t, s.Has(""))
	})
}

func TestPrincipal(t *testing.T) {
	t.Run("active principal", func(t *testing.T) {
		p := NewPrincipal(uuid.New(), "alice", []string{"edit"}, []string{"editors"})

		assert.True(t, p.IsAuthenticated())
		assert.True(t, p.Permissions().Has("edit"))
		assert.True(t, p.Groups().Has("editors"))
		assert.True(t, p.HasPermission("edit"))
		assert.False(t, p.HasPermission("delete"))
		assert.False(t, p.HasPermission(""))
	})

	t.Run("superuser holds every permission", func(t *testing.T) {
		p := NewPrincipal(uuid.New(), "root", nil, nil)
		p.Superuser = true

		assert.True(t, p.HasPermission("anything"))
		assert.False(t, p.Groups().Has("admins"))
	})

	t.Run("inactive principal holds nothing", func(t *testing.T) {
		p := NewPrincipal(uuid.New(), "bob", []string{"edit"}, nil)
		p.Superuser = true
		p.Active = false

		assert.False(t, p.HasPermission("edit"))
	})

	t.Run("nil principal", func(t *testing.T) {
		var p *Principal

		assert.False(t, p.IsAuthenticated())
		assert.Nil(t, p.Permissions())
		assert.Nil(t, p.Groups())
		assert.False(t, p.HasPermission("edit"))
	})

	t.Run("grant merges names", func(t *testing.T) {
		p := &Principal{ID: uuid.New(), Active: true}
		p.Grant([]string{"edit", ""}, []string{"editors"})
		p.Grant([]string{"view"}, nil)

		assert.Equal(t, []string{"edit", "view"}, p.Permissions().Slice())
		assert.Equal(t, []string{"editors"}, p.Groups().Slice())
	})
}

func TestAnonymous(t *testing.T) {
	var u User = Anonymous{}
	assert.False(t, u.IsAuthenticated())
	assert.False(t, u.Permissions().Has("edit"))
	assert.False(t, u.Groups().Has("editors"))
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))

	p := NewPrincipal(uuid.New(), "alice", nil, nil)
	ctx = WithUser(ctx, p)
	assert.Same(t, p, FromContext(ctx))
}
