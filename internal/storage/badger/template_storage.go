package badger

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// TemplateStorage serves the export template surface for the Badger backend.
// Badger has no SQL engine, so templates are a fixed in-memory catalog and
// the export runner falls back to its built-in full report for this backend.
type TemplateStorage struct {
	logger    arbor.ILogger
	templates []*models.ExportTemplate
}

// NewTemplateStorage creates a new template storage instance
func NewTemplateStorage(logger arbor.ILogger) interfaces.TemplateStorage {
	return &TemplateStorage{
		logger: logger,
		templates: []*models.ExportTemplate{
			{ID: 1, Name: "XLSX: full report (manager/region/city/query/category + fields)"},
		},
	}
}

// Templates lists the catalog, id and name only
func (s *TemplateStorage) Templates(ctx context.Context) ([]*models.ExportTemplate, error) {
	out := make([]*models.ExportTemplate, len(s.templates))
	copy(out, s.templates)
	return out, nil
}

// TemplateSQL returns empty for every id: there is no query text to run
// without a SQL surface, the exporter detects this and uses the built-in
// report over the store instead.
func (s *TemplateStorage) TemplateSQL(ctx context.Context, id int64) (string, error) {
	return "", nil
}
