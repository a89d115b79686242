package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateStorage_SeededDefaults(t *testing.T) {
	manager, cleanup := setupTestManager(t)
	defer cleanup()

	ctx := context.Background()
	templates := manager.TemplateStorage()

	listed, err := templates.Templates(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Contains(t, listed[0].Name, "full report")

	sqlText, err := templates.TemplateSQL(ctx, listed[0].ID)
	require.NoError(t, err)
	assert.Contains(t, sqlText, "org_sources")

	// Unknown ids come back empty, the exporter falls back to the
	// built-in report
	missing, err := templates.TemplateSQL(ctx, 9999)
	require.NoError(t, err)
	assert.Equal(t, "", missing)
}
