package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/upb/access-gate/identity"
	"go.uber.org/zap"
)

func TestHandleMe(t *testing.T) {
	handler := NewUserHandler(zap.NewNop())

	t.Run("principal", func(t *testing.T) {
		id := uuid.New()
		p := identity.NewPrincipal(id, "alice", []string{"reports.view", "articles.edit"}, []string{"editors"})
		p.Email = "alice@example.com"

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req = req.WithContext(identity.WithUser(req.Context(), p))
		w := httptest.NewRecorder()

		handler.HandleMe(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, true, data["authenticated"])
		assert.Equal(t, id.String(), data["id"])
		assert.Equal(t, "alice", data["username"])
		assert.Equal(t, []interface{}{"articles.edit", "reports.view"}, data["permissions"])
		assert.Equal(t, []interface{}{"editors"}, data["groups"])
	})

	t.Run("anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req = req.WithContext(identity.WithUser(req.Context(), identity.Anonymous{}))
		w := httptest.NewRecorder()

		handler.HandleMe(w, req)

		data := decodeData(t, w)
		assert.Equal(t, false, data["authenticated"])
		assert.Empty(t, data["permissions"])
	})
}

func TestResourceHandler(t *testing.T) {
	handler := NewResourceHandler(zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/reports/", nil)
	req = req.WithContext(identity.WithUser(req.Context(), identity.NewPrincipal(uuid.New(), "bob", nil, nil)))
	w := httptest.NewRecorder()

	handler.Serve("reports")(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "reports", data["resource"])
	assert.Equal(t, "bob", data["viewer"])

	w = httptest.NewRecorder()
	handler.Serve("home")(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "anonymous", decodeData(t, w)["viewer"])
}

func TestHandleLogin(t *testing.T) {
	t.Run("echoes the return uri", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewLoginHandler("next", zap.NewNop()).
			HandleLogin(w, httptest.NewRequest(http.MethodGet, "/login/?next=%2Freports%2F", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, "Bearer", data["scheme"])
		assert.Equal(t, "/reports/", data["next"])
	})

	t.Run("no redirect field", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewLoginHandler("", zap.NewNop()).
			HandleLogin(w, httptest.NewRequest(http.MethodGet, "/login/?next=%2Freports%2F", nil))

		_, ok := decodeData(t, w)["next"]
		assert.False(t, ok)
	})
}
