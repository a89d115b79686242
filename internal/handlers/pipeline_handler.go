package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/pipeline"
)

// PipelineHandler exposes pipeline lifecycle and stats over HTTP
type PipelineHandler struct {
	pipeline *pipeline.Pipeline
	storage  interfaces.StorageManager
	logger   arbor.ILogger
}

// NewPipelineHandler creates a pipeline handler
func NewPipelineHandler(logger arbor.ILogger, p *pipeline.Pipeline, storage interfaces.StorageManager) *PipelineHandler {
	return &PipelineHandler{
		pipeline: p,
		storage:  storage,
		logger:   logger,
	}
}

// StartHandler starts the worker loops. POST /api/pipeline/start
func (h *PipelineHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if err := h.pipeline.Start(); err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteSuccess(w, "pipeline started")
}

// StopHandler stops the worker loops without blocking the request.
// POST /api/pipeline/stop
func (h *PipelineHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	h.pipeline.StopAsync()
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "stopping",
		"message": "pipeline stop requested",
	})
}

// StatusHandler reports whether the loops are running plus store totals.
// GET /api/pipeline/status
func (h *PipelineHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.storage.Stats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Stats query failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"running": h.pipeline.IsRunning(),
		"stats":   stats,
	})
}
