package handlers

import (
	"net/http"

	"github.com/upb/access-gate/utils"
	"go.uber.org/zap"
)

// LoginResponse tells the client how to authenticate
type LoginResponse struct {
	Message string `json:"message"`
	Scheme  string `json:"scheme"`
	Next    string `json:"next,omitempty"`
}

// LoginHandler serves the default denial target. Credentials are issued by
// the identity provider; this endpoint only describes how to present them.
type LoginHandler struct {
	redirectField string
	logger        *zap.Logger
}

// NewLoginHandler creates a new LoginHandler. redirectField names the query
// parameter carrying the originally requested URI.
func NewLoginHandler(redirectField string, logger *zap.Logger) *LoginHandler {
	return &LoginHandler{
		redirectField: redirectField,
		logger:        logger,
	}
}

// HandleLogin handles GET /login/
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	resp := LoginResponse{
		Message: "Sign in with your identity provider and send the token as a Bearer credential",
		Scheme:  "Bearer",
	}
	if h.redirectField != "" {
		resp.Next = r.URL.Query().Get(h.redirectField)
	}

	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write login response", zap.Error(err))
	}
}
