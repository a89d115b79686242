package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// TemplateStorage implements the read surface for export query templates
type TemplateStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewTemplateStorage creates a new template storage instance
func NewTemplateStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.TemplateStorage {
	return &TemplateStorage{
		db:     db,
		logger: logger,
	}
}

// Templates lists stored templates, id and name only
func (s *TemplateStorage) Templates(ctx context.Context) ([]*models.ExportTemplate, error) {
	rows, err := s.db.db.QueryContext(ctx,
		"SELECT id, name FROM export_templates ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list export templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.ExportTemplate
	for rows.Next() {
		var tpl models.ExportTemplate
		if err := rows.Scan(&tpl.ID, &tpl.Name); err != nil {
			return nil, fmt.Errorf("failed to scan export template: %w", err)
		}
		templates = append(templates, &tpl)
	}
	return templates, rows.Err()
}

// TemplateSQL returns the stored query text for a template id
func (s *TemplateStorage) TemplateSQL(ctx context.Context, id int64) (string, error) {
	var text string
	err := s.db.db.QueryRowContext(ctx,
		"SELECT sql_text FROM export_templates WHERE id = ?", id).Scan(&text)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to get export template %d: %w", id, err)
	}
	return strings.TrimSpace(text), nil
}
