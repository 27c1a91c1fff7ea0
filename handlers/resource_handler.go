package handlers

import (
	"net/http"

	"github.com/upb/access-gate/identity"
	"github.com/upb/access-gate/utils"
	"go.uber.org/zap"
)

// ResourceResponse is returned by the sample protected resources
type ResourceResponse struct {
	Resource string `json:"resource"`
	Viewer   string `json:"viewer"`
}

// ResourceHandler serves the sample resources mounted behind gates
type ResourceHandler struct {
	logger *zap.Logger
}

// NewResourceHandler creates a new ResourceHandler
func NewResourceHandler(logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{logger: logger}
}

// Serve returns a handler that reports the resource name and the viewer
func (h *ResourceHandler) Serve(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewer := "anonymous"
		if p, ok := identity.FromContext(r.Context()).(*identity.Principal); ok && p != nil {
			viewer = p.Username
		}

		if err := utils.WriteOK(w, ResourceResponse{Resource: resource, Viewer: viewer}); err != nil {
			h.logger.Error("failed to write resource response",
				zap.String("resource", resource),
				zap.Error(err))
		}
	}
}
