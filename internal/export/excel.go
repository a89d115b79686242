package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/xuri/excelize/v2"
)

// Exporter writes the results spreadsheet. When the storage backend
// exposes a SQL surface the stored template query is run as-is; otherwise
// the built-in full report is assembled from the storage interfaces.
type Exporter struct {
	cfg    *common.ExportConfig
	logger arbor.ILogger
}

// NewExporter creates an exporter
func NewExporter(logger arbor.ILogger, cfg *common.ExportConfig) *Exporter {
	return &Exporter{
		cfg:    cfg,
		logger: logger,
	}
}

// Export runs the given template over the job store and writes the result
// workbook, returning its path.
func (e *Exporter) Export(ctx context.Context, storage interfaces.StorageManager, templateID int64) (string, error) {
	sqlText, err := storage.TemplateStorage().TemplateSQL(ctx, templateID)
	if err != nil {
		return "", err
	}

	var headers []string
	var rows [][]interface{}

	db, hasSQL := storage.DB().(*sql.DB)
	if hasSQL && sqlText != "" {
		headers, rows, err = e.runQuery(ctx, db, sqlText)
	} else {
		headers, rows, err = e.builtinReport(ctx, storage)
	}
	if err != nil {
		return "", err
	}

	path, err := e.write(headers, rows)
	if err != nil {
		return "", err
	}

	e.logger.Info().
		Str("path", path).
		Int("rows", len(rows)).
		Msg("Export written")
	return path, nil
}

// OutputPath returns where Export writes its workbook
func (e *Exporter) OutputPath() string {
	return e.cfg.Path
}

// runQuery executes the template SQL and collects all rows generically
func (e *Exporter) runQuery(ctx context.Context, db *sql.DB, sqlText string) ([]string, [][]interface{}, error) {
	result, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, nil, fmt.Errorf("export query failed: %w", err)
	}
	defer result.Close()

	headers, err := result.Columns()
	if err != nil {
		return nil, nil, err
	}

	var rows [][]interface{}
	for result.Next() {
		values := make([]interface{}, len(headers))
		scanTargets := make([]interface{}, len(headers))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := result.Scan(scanTargets...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan export row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rows = append(rows, values)
	}
	return headers, rows, result.Err()
}

// builtinReport joins provenance rows with their organizations, mirroring
// the default template for backends without SQL
func (e *Exporter) builtinReport(ctx context.Context, storage interfaces.StorageManager) ([]string, [][]interface{}, error) {
	headers := []string{
		"manager", "region", "city", "request", "category",
		"name", "address", "website", "listing", "phone", "social",
	}

	sources, err := storage.OrgStorage().Sources(ctx)
	if err != nil {
		return nil, nil, err
	}

	var rows [][]interface{}
	for _, src := range sources {
		org, err := storage.OrgStorage().Get(ctx, src.OrgID)
		if err != nil {
			return nil, nil, err
		}
		if org == nil {
			continue
		}
		rows = append(rows, []interface{}{
			src.Manager, src.Region, src.City, src.Query, src.CategoryPath,
			org.Name, org.Address, org.Website, org.Listing, org.Phone, org.Social,
		})
	}
	return headers, rows, nil
}

// write renders headers plus rows into the configured workbook path
func (e *Exporter) write(headers []string, rows [][]interface{}) (string, error) {
	if dir := filepath.Dir(e.cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := e.cfg.Sheet
	if sheet == "" {
		sheet = "Results"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", err
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return "", err
		}
	}
	for r, row := range rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return "", err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return "", err
			}
		}
	}

	if err := f.SaveAs(e.cfg.Path); err != nil {
		return "", fmt.Errorf("failed to save export workbook: %w", err)
	}
	return e.cfg.Path, nil
}
