package ingest

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/xuri/excelize/v2"
)

// Sheet names the operator workbook must carry
const (
	sheetCities     = "Cities"
	sheetRequests   = "Requests"
	sheetCategories = "Categories"
	sheetExcludes   = "Excludes"
)

// CityRow is one Cities sheet row
type CityRow struct {
	Manager string
	Region  string
	City    string
}

// CategoryRow is one Categories sheet row
type CategoryRow struct {
	Path    string
	Enabled bool
}

// Workbook is the parsed operator configuration: the cities to cover, the
// free-text requests and category paths to cross them with, and the
// exclude substrings applied to harvested URLs.
type Workbook struct {
	Cities     []CityRow
	Requests   []string
	Categories []CategoryRow
	Excludes   []string
}

// headerIndex maps lowercased header names to their column index
func headerIndex(rows [][]string) map[string]int {
	idx := make(map[string]int)
	if len(rows) == 0 {
		return idx
	}
	for i, h := range rows[0] {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			idx[h] = i
		}
	}
	return idx
}

// dataRows returns the rows after the header, nil for an empty sheet
func dataRows(rows [][]string) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

func cell(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseEnabled(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "1", "true", "yes":
		return true
	}
	return false
}

// LoadWorkbook reads the operator workbook. Rows with an empty key column
// are skipped, a missing sheet is an error.
func LoadWorkbook(logger arbor.ILogger, path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	wb := &Workbook{}

	cityRows, err := f.GetRows(sheetCities)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetCities, err)
	}
	cityIdx := headerIndex(cityRows)
	for _, row := range dataRows(cityRows) {
		city := cell(row, cityIdx, "city")
		if city == "" {
			continue
		}
		wb.Cities = append(wb.Cities, CityRow{
			Manager: cell(row, cityIdx, "manager"),
			Region:  cell(row, cityIdx, "region"),
			City:    city,
		})
	}

	reqRows, err := f.GetRows(sheetRequests)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetRequests, err)
	}
	reqIdx := headerIndex(reqRows)
	for _, row := range dataRows(reqRows) {
		if q := cell(row, reqIdx, "query_ru"); q != "" {
			wb.Requests = append(wb.Requests, q)
		}
	}

	catRows, err := f.GetRows(sheetCategories)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetCategories, err)
	}
	catIdx := headerIndex(catRows)
	for _, row := range dataRows(catRows) {
		p := strings.Trim(cell(row, catIdx, "category_path"), "/")
		if p == "" {
			continue
		}
		wb.Categories = append(wb.Categories, CategoryRow{
			Path:    p,
			Enabled: parseEnabled(cell(row, catIdx, "enabled")),
		})
	}

	excRows, err := f.GetRows(sheetExcludes)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetExcludes, err)
	}
	excIdx := headerIndex(excRows)
	for _, row := range dataRows(excRows) {
		if t := cell(row, excIdx, "text"); t != "" {
			wb.Excludes = append(wb.Excludes, t)
		}
	}

	logger.Info().
		Str("path", path).
		Int("cities", len(wb.Cities)).
		Int("requests", len(wb.Requests)).
		Int("categories", len(wb.Categories)).
		Int("excludes", len(wb.Excludes)).
		Msg("Workbook loaded")

	return wb, nil
}

// ExpandTasks crosses every city with every request and every enabled
// category. The pan flag is decided here, once per task, never re-derived
// later.
func (wb *Workbook) ExpandTasks(domainPref string, panAlways bool) []*models.Task {
	var tasks []*models.Task

	for _, c := range wb.Cities {
		for _, q := range wb.Requests {
			tasks = append(tasks, &models.Task{
				Manager:    c.Manager,
				Region:     c.Region,
				City:       c.City,
				Mode:       models.TaskMode{Kind: models.TargetSearch, PanEnabled: panAlways},
				Query:      q,
				DomainPref: domainPref,
			})
		}
	}

	for _, c := range wb.Cities {
		for _, cat := range wb.Categories {
			if !cat.Enabled {
				continue
			}
			tasks = append(tasks, &models.Task{
				Manager:      c.Manager,
				Region:       c.Region,
				City:         c.City,
				Mode:         models.TaskMode{Kind: models.TargetCategory, PanEnabled: panAlways},
				CategoryPath: cat.Path,
				DomainPref:   domainPref,
			})
		}
	}

	return tasks
}
