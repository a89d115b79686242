package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/colligo/internal/models"
)

func TestLinkStorage_InsertDropsUnderivableIDs(t *testing.T) {
	manager, cleanup := setupTestManager(t)
	defer cleanup()

	ctx := context.Background()
	tasks := manager.TaskStorage()
	links := manager.LinkStorage()

	_, err := tasks.AddTasks(ctx, []*models.Task{searchTask("Minsk", "q")})
	require.NoError(t, err)
	task, err := tasks.ClaimNext(ctx, 30)
	require.NoError(t, err)

	inserted, err := links.InsertLinks(ctx, task, []string{
		"https://yandex.by/maps/org/cafe/111/",
		"https://yandex.by/maps/org/no-digits-here/",
		"https://yandex.by/maps/org/bar/222/",
	}, "search+pan")
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	count, err := links.CountLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestLinkStorage_DuplicateOrgIDIsNoOp(t *testing.T) {
	manager, cleanup := setupTestManager(t)
	defer cleanup()

	ctx := context.Background()
	tasks := manager.TaskStorage()
	links := manager.LinkStorage()

	_, err := tasks.AddTasks(ctx, []*models.Task{
		searchTask("Minsk", "a"),
		searchTask("Gomel", "b"),
	})
	require.NoError(t, err)

	first, err := tasks.ClaimNext(ctx, 30)
	require.NoError(t, err)
	inserted, err := links.InsertLinks(ctx, first,
		[]string{"https://yandex.by/maps/org/cafe/111/"}, "search")
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	// The same organization rediscovered by another task is not re-inserted
	second, err := tasks.ClaimNext(ctx, 30)
	require.NoError(t, err)
	inserted, err = links.InsertLinks(ctx, second,
		[]string{"https://yandex.by/maps/org/cafe/111/?ll=27.5%2C53.9"}, "search")
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	count, err := links.CountLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The surviving row keeps its original task context
	link, err := links.ClaimNextUnresolved(ctx)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, first.ID, link.TaskID)
	assert.Equal(t, "Minsk", link.City)
}

func TestLinkStorage_InsertEmptyBatch(t *testing.T) {
	manager, cleanup := setupTestManager(t)
	defer cleanup()

	ctx := context.Background()
	links := manager.LinkStorage()

	inserted, err := links.InsertLinks(ctx, searchTask("Minsk", "q"), nil, "search")
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
}

func TestLinkStorage_ClaimNextUnresolved(t *testing.T) {
	manager, cleanup := setupTestManager(t)
	defer cleanup()

	ctx := context.Background()
	tasks := manager.TaskStorage()
	links := manager.LinkStorage()
	orgs := manager.OrgStorage()

	_, err := tasks.AddTasks(ctx, []*models.Task{searchTask("Minsk", "q")})
	require.NoError(t, err)
	task, err := tasks.ClaimNext(ctx, 30)
	require.NoError(t, err)

	_, err = links.InsertLinks(ctx, task, []string{
		"https://yandex.by/maps/org/cafe/111/",
		"https://yandex.by/maps/org/bar/222/",
	}, "search")
	require.NoError(t, err)

	// Oldest unresolved link first
	link, err := links.ClaimNextUnresolved(ctx)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "111", link.OrgID)

	// No reservation is taken, so the same link comes back until resolved
	again, err := links.ClaimNextUnresolved(ctx)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "111", again.OrgID)

	require.NoError(t, orgs.Upsert(ctx, &models.Organization{OrgID: "111", Name: "Cafe"}))

	next, err := links.ClaimNextUnresolved(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "222", next.OrgID)

	require.NoError(t, orgs.Upsert(ctx, &models.Organization{OrgID: "222", Name: "Bar"}))

	none, err := links.ClaimNextUnresolved(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)
}
