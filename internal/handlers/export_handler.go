package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/export"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// ExportHandler exposes the spreadsheet export and its template catalog
type ExportHandler struct {
	exporter *export.Exporter
	storage  interfaces.StorageManager
	logger   arbor.ILogger
}

// NewExportHandler creates an export handler
func NewExportHandler(logger arbor.ILogger, exporter *export.Exporter, storage interfaces.StorageManager) *ExportHandler {
	return &ExportHandler{
		exporter: exporter,
		storage:  storage,
		logger:   logger,
	}
}

// TemplatesHandler lists the stored export templates. GET /api/export/templates
func (h *ExportHandler) TemplatesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	templates, err := h.storage.TemplateStorage().Templates(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"templates": templates})
}

// RunHandler writes the export workbook for ?template (default 1) and
// returns its path. POST /api/export
func (h *ExportHandler) RunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	templateID := int64(1)
	if s := r.URL.Query().Get("template"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid template id")
			return
		}
		templateID = id
	}

	path, err := h.exporter.Export(r.Context(), h.storage, templateID)
	if err != nil {
		h.logger.Error().Err(err).Int64("template", templateID).Msg("Export failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"path":   path,
	})
}

// DownloadHandler streams the last written export workbook.
// GET /api/export/download
func (h *ExportHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	path := h.exporter.OutputPath()
	if _, err := os.Stat(path); err != nil {
		WriteError(w, http.StatusNotFound, "no export has been written yet")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filepath.Base(path)+"\"")
	http.ServeFile(w, r, path)
}
