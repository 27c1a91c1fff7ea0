package handlers

import (
	"net/http"

	"github.com/upb/access-gate/identity"
	"github.com/upb/access-gate/utils"
	"go.uber.org/zap"
)

// UserResponse describes the current user
type UserResponse struct {
	Authenticated bool     `json:"authenticated"`
	ID            string   `json:"id,omitempty"`
	Username      string   `json:"username,omitempty"`
	Email         string   `json:"email,omitempty"`
	Active        bool     `json:"active"`
	Superuser     bool     `json:"superuser"`
	Permissions   []string `json:"permissions"`
	Groups        []string `json:"groups"`
}

// UserHandler serves information about the current user
type UserHandler struct {
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(logger *zap.Logger) *UserHandler {
	return &UserHandler{logger: logger}
}

// HandleMe handles GET /api/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, describeUser(identity.FromContext(r.Context()))); err != nil {
		h.logger.Error("failed to write user response", zap.Error(err))
	}
}

func describeUser(user identity.User) UserResponse {
	resp := UserResponse{
		Permissions: []string{},
		Groups:      []string{},
	}
	p, ok := user.(*identity.Principal)
	if !ok || p == nil {
		return resp
	}

	resp.Authenticated = true
	resp.ID = p.ID.String()
	resp.Username = p.Username
	resp.Email = p.Email
	resp.Active = p.Active
	resp.Superuser = p.Superuser
	resp.Permissions = p.Permissions().Slice()
	resp.Groups = p.Groups().Slice()
	return resp
}
