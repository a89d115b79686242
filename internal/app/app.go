package app

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/browser"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/export"
	"github.com/ternarybob/colligo/internal/handlers"
	"github.com/ternarybob/colligo/internal/ingest"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/pipeline"
	"github.com/ternarybob/colligo/internal/services/maps"
	"github.com/ternarybob/colligo/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	LinkCollector  *maps.LinkCollector
	InfoCollector  *maps.InfoCollector
	Pipeline       *pipeline.Pipeline
	Exporter       *export.Exporter

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	PipelineHandler *handlers.PipelineHandler
	TaskHandler     *handlers.TaskHandler
	ExportHandler   *handlers.ExportHandler
}

// New wires the application together from configuration
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, err
	}

	// Excludes from the operator workbook, when one is present. The import
	// endpoint refreshes them at runtime.
	var excludes []string
	if path := config.Ingest.WorkbookPath; path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if wb, loadErr := ingest.LoadWorkbook(logger, path); loadErr == nil {
				excludes = wb.Excludes
			} else {
				logger.Warn().Err(loadErr).Str("path", path).Msg("Workbook unreadable, starting without excludes")
			}
		}
	}

	linkCollector := maps.NewLinkCollector(logger, &config.Maps, excludes)
	infoCollector := maps.NewInfoCollector(logger, &config.Maps)

	newSession := func(worker string) pipeline.Session {
		return browser.NewSession(logger, &config.Browser,
			filepath.Join(config.Browser.ProfilesDir, worker))
	}

	debugSink := pipeline.NewDebugSink(logger, config.Pipeline.DebugDir, config.Pipeline.SaveDebug)

	pipe := pipeline.New(logger, &config.Pipeline, storageManager,
		newSession, linkCollector.Collect, infoCollector.Collect, debugSink)

	exporter := export.NewExporter(logger, &config.Export)

	a := &App{
		Config:         config,
		Logger:         logger,
		StorageManager: storageManager,
		LinkCollector:  linkCollector,
		InfoCollector:  infoCollector,
		Pipeline:       pipe,
		Exporter:       exporter,
	}

	a.APIHandler = handlers.NewAPIHandler()
	a.PipelineHandler = handlers.NewPipelineHandler(logger, pipe, storageManager)
	a.TaskHandler = handlers.NewTaskHandler(logger, storageManager, linkCollector, config)
	a.ExportHandler = handlers.NewExportHandler(logger, exporter, storageManager)

	return a, nil
}

// Close stops the pipeline and releases storage
func (a *App) Close() {
	if a.Pipeline != nil {
		a.Pipeline.Stop()
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage close failed")
		}
	}
}
