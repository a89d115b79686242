package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Pipeline lifecycle and stats
	mux.HandleFunc("/api/pipeline/start", s.app.PipelineHandler.StartHandler)
	mux.HandleFunc("/api/pipeline/stop", s.app.PipelineHandler.StopHandler)
	mux.HandleFunc("/api/pipeline/status", s.app.PipelineHandler.StatusHandler)

	// Task listing, workbook import and operator actions
	mux.HandleFunc("/api/tasks", s.app.TaskHandler.ListHandler)
	mux.HandleFunc("/api/tasks/import", s.app.TaskHandler.ImportHandler)
	mux.HandleFunc("/api/tasks/requeue-all", s.app.TaskHandler.RequeueAllHandler)
	mux.HandleFunc("/api/tasks/clear-all", s.app.TaskHandler.ClearAllHandler)
	mux.HandleFunc("/api/tasks/", s.app.TaskHandler.TaskActionHandler) // {id}, {id}/retry, {id}/requeue

	// Spreadsheet export
	mux.HandleFunc("/api/export/templates", s.app.ExportHandler.TemplatesHandler)
	mux.HandleFunc("/api/export/download", s.app.ExportHandler.DownloadHandler)
	mux.HandleFunc("/api/export", s.app.ExportHandler.RunHandler)

	// System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	return mux
}
