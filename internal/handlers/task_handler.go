package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/ingest"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/services/maps"
)

// TaskHandler exposes task listing, operator actions and workbook import
type TaskHandler struct {
	storage   interfaces.StorageManager
	collector *maps.LinkCollector
	cfg       *common.Config
	logger    arbor.ILogger
}

// NewTaskHandler creates a task handler
func NewTaskHandler(logger arbor.ILogger, storage interfaces.StorageManager, collector *maps.LinkCollector, cfg *common.Config) *TaskHandler {
	return &TaskHandler{
		storage:   storage,
		collector: collector,
		cfg:       cfg,
		logger:    logger,
	}
}

// ListHandler returns up to ?limit tasks, newest first. GET /api/tasks
func (h *TaskHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := 200
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	tasks, err := h.storage.TaskStorage().List(r.Context(), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// requeueRequest carries the optional purge flags of a requeue action
type requeueRequest struct {
	ResetAttempts bool `json:"reset_attempts"`
	ClearLinks    bool `json:"clear_links"`
	ClearSources  bool `json:"clear_sources"`
}

// TaskActionHandler dispatches /api/tasks/{id}/{retry|requeue} and
// DELETE /api/tasks/{id}
func (h *TaskHandler) TaskActionHandler(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tasks"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		WriteError(w, http.StatusBadRequest, "missing task id")
		return
	}

	taskID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	ctx := r.Context()
	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := h.storage.TaskStorage().Delete(ctx, taskID); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteSuccess(w, "task deleted")

	case len(parts) == 2 && parts[1] == "retry" && r.Method == http.MethodPost:
		if err := h.storage.TaskStorage().Retry(ctx, taskID); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteSuccess(w, "task queued for retry")

	case len(parts) == 2 && parts[1] == "requeue" && r.Method == http.MethodPost:
		var req requeueRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		if err := h.storage.TaskStorage().Requeue(ctx, taskID,
			req.ResetAttempts, req.ClearLinks, req.ClearSources); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteSuccess(w, "task requeued")

	default:
		WriteError(w, http.StatusNotFound, "unknown task action")
	}
}

// RequeueAllHandler resets every non-running task. POST /api/tasks/requeue-all
func (h *TaskHandler) RequeueAllHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if err := h.storage.TaskStorage().RequeueAll(r.Context()); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteSuccess(w, "all tasks requeued")
}

// ClearAllHandler removes all tasks and results. POST /api/tasks/clear-all
func (h *TaskHandler) ClearAllHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if err := h.storage.TaskStorage().ClearAll(r.Context()); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteSuccess(w, "all tasks cleared")
}

// importRequest optionally overrides the configured workbook path
type importRequest struct {
	Path string `json:"path"`
}

// ImportHandler expands the operator workbook into pending tasks and
// refreshes the exclude list. POST /api/tasks/import
func (h *TaskHandler) ImportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req importRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	path := req.Path
	if path == "" {
		path = h.cfg.Ingest.WorkbookPath
	}

	wb, err := ingest.LoadWorkbook(h.logger, path)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.collector.SetExcludes(wb.Excludes)

	tasks := wb.ExpandTasks(h.cfg.Maps.DomainPref, h.cfg.Maps.PanAlways)
	inserted, err := h.storage.TaskStorage().AddTasks(r.Context(), tasks)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info().
		Str("workbook", path).
		Int("inserted", inserted).
		Msg("Workbook imported")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"inserted": inserted,
		"excludes": len(wb.Excludes),
	})
}
