package handlers

import (
	"net/http"

	"github.com/ternarybob/colligo/internal/common"
)

// APIHandler serves version and health endpoints
type APIHandler struct{}

// NewAPIHandler creates an API handler
func NewAPIHandler() *APIHandler {
	return &APIHandler{}
}

// VersionHandler returns build information. GET /api/version
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetFullVersion(),
	})
}

// HealthHandler reports liveness. GET /api/health
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
