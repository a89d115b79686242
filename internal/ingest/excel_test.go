package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/xuri/excelize/v2"
)

// writeTestWorkbook builds an operator workbook with the four required
// sheets and returns its path
func writeTestWorkbook(t *testing.T) string {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", sheetCities))
	writeRows(t, f, sheetCities, [][]interface{}{
		{"manager", "region", "city"},
		{"Anna", "Minsk region", "Минск"},
		{"Boris", "Gomel region", "Гомель"},
		{"", "", ""}, // empty city, skipped
	})

	_, err := f.NewSheet(sheetRequests)
	require.NoError(t, err)
	writeRows(t, f, sheetRequests, [][]interface{}{
		{"query_ru"},
		{"кофейня"},
		{"бар"},
		{""},
	})

	_, err = f.NewSheet(sheetCategories)
	require.NoError(t, err)
	writeRows(t, f, sheetCategories, [][]interface{}{
		{"category_path", "enabled"},
		{"/184106384/", "yes"},
		{"184106390", "0"},
	})

	_, err = f.NewSheet(sheetExcludes)
	require.NoError(t, err)
	writeRows(t, f, sheetExcludes, [][]interface{}{
		{"text"},
		{"casino"},
	})

	path := filepath.Join(t.TempDir(), "config.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func writeRows(t *testing.T, f *excelize.File, sheet string, rows [][]interface{}) {
	for r, row := range rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
}

func TestLoadWorkbook(t *testing.T) {
	path := writeTestWorkbook(t)

	wb, err := LoadWorkbook(arbor.NewLogger(), path)
	require.NoError(t, err)

	require.Len(t, wb.Cities, 2)
	assert.Equal(t, CityRow{Manager: "Anna", Region: "Minsk region", City: "Минск"}, wb.Cities[0])

	assert.Equal(t, []string{"кофейня", "бар"}, wb.Requests)

	require.Len(t, wb.Categories, 2)
	assert.Equal(t, CategoryRow{Path: "184106384", Enabled: true}, wb.Categories[0])
	assert.Equal(t, CategoryRow{Path: "184106390", Enabled: false}, wb.Categories[1])

	assert.Equal(t, []string{"casino"}, wb.Excludes)
}

func TestLoadWorkbook_MissingSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, f.SaveAs(path))

	_, err := LoadWorkbook(arbor.NewLogger(), path)
	assert.Error(t, err)
}

func TestExpandTasks(t *testing.T) {
	wb := &Workbook{
		Cities: []CityRow{
			{Manager: "Anna", Region: "Minsk region", City: "Минск"},
			{Manager: "Boris", Region: "Gomel region", City: "Гомель"},
		},
		Requests: []string{"кофейня", "бар"},
		Categories: []CategoryRow{
			{Path: "184106384", Enabled: true},
			{Path: "184106390", Enabled: false},
		},
	}

	tasks := wb.ExpandTasks("auto", true)

	// 2 cities x 2 requests plus 2 cities x 1 enabled category
	require.Len(t, tasks, 6)

	search := tasks[0]
	assert.Equal(t, "Минск", search.City)
	assert.Equal(t, "кофейня", search.Query)
	assert.Equal(t, models.TargetSearch, search.Mode.Kind)
	assert.True(t, search.Mode.PanEnabled)
	assert.Equal(t, "auto", search.DomainPref)

	category := tasks[4]
	assert.Equal(t, models.TargetCategory, category.Mode.Kind)
	assert.Equal(t, "184106384", category.CategoryPath)
	assert.Equal(t, "", category.Query)

	// Disabled categories never produce tasks
	for _, task := range tasks {
		assert.NotEqual(t, "184106390", task.CategoryPath)
	}
}

func TestExpandTasks_PanDisabled(t *testing.T) {
	wb := &Workbook{
		Cities:   []CityRow{{City: "Минск"}},
		Requests: []string{"кофейня"},
	}

	tasks := wb.ExpandTasks("by", false)
	require.Len(t, tasks, 1)
	assert.False(t, tasks[0].Mode.PanEnabled)
	assert.Equal(t, "by", tasks[0].DomainPref)
}
