package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// Manager implements the StorageManager interface over Badger
type Manager struct {
	db        *BadgerDB
	tasks     interfaces.TaskStorage
	links     interfaces.LinkStorage
	orgs      interfaces.OrgStorage
	templates interfaces.TemplateStorage
	logger    arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:        db,
		tasks:     NewTaskStorage(db, logger),
		links:     NewLinkStorage(db, logger),
		orgs:      NewOrgStorage(db, logger),
		templates: NewTemplateStorage(logger),
		logger:    logger,
	}, nil
}

// TaskStorage returns the task storage interface
func (m *Manager) TaskStorage() interfaces.TaskStorage {
	return m.tasks
}

// LinkStorage returns the link storage interface
func (m *Manager) LinkStorage() interfaces.LinkStorage {
	return m.links
}

// OrgStorage returns the organization storage interface
func (m *Manager) OrgStorage() interfaces.OrgStorage {
	return m.orgs
}

// TemplateStorage returns the export template storage interface
func (m *Manager) TemplateStorage() interfaces.TemplateStorage {
	return m.templates
}

// Stats aggregates task counts by status plus link/org totals
func (m *Manager) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{
		Tasks: make(map[models.TaskStatus]int),
	}

	err := m.db.store.ForEach(nil, func(t *models.Task) error {
		stats.Tasks[t.Status]++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}

	links, err := m.db.store.Count(&models.Link{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count links: %w", err)
	}
	stats.TotalLinks = int(links)

	orgs, err := m.db.store.Count(&models.Organization{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count organizations: %w", err)
	}
	stats.TotalOrgs = int(orgs)

	err = m.db.store.ForEach(nil, func(l *models.Link) error {
		var org models.Organization
		getErr := m.db.store.Get(l.OrgID, &org)
		if getErr == badgerhold.ErrNotFound {
			stats.PendingOrgs++
			return nil
		}
		return getErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count pending organizations: %w", err)
	}

	return stats, nil
}

// DB returns nil: Badger exposes no SQL surface for the export runner
func (m *Manager) DB() interface{} {
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
