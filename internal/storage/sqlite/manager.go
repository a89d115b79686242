package sqlite

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Manager implements the StorageManager interface over SQLite
type Manager struct {
	db        *SQLiteDB
	tasks     interfaces.TaskStorage
	links     interfaces.LinkStorage
	orgs      interfaces.OrgStorage
	templates interfaces.TemplateStorage
	logger    arbor.ILogger
}

// NewManager creates a new SQLite storage manager
func NewManager(logger arbor.ILogger, config *common.SQLiteConfig) (interfaces.StorageManager, error) {
	db, err := NewSQLiteDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:        db,
		tasks:     NewTaskStorage(db, logger),
		links:     NewLinkStorage(db, logger),
		orgs:      NewOrgStorage(db, logger),
		templates: NewTemplateStorage(db, logger),
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

	rows, err := m.db.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan task status count: %w", err)
		}
		stats.Tasks[models.TaskStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := m.db.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM links").Scan(&stats.TotalLinks); err != nil {
		return nil, fmt.Errorf("failed to count links: %w", err)
	}
	if err := m.db.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM orgs").Scan(&stats.TotalOrgs); err != nil {
		return nil, fmt.Errorf("failed to count organizations: %w", err)
	}
	if err := m.db.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM links l
		LEFT JOIN orgs o ON o.org_id = l.org_id
		WHERE o.org_id IS NULL`).Scan(&stats.PendingOrgs); err != nil {
		return nil, fmt.Errorf("failed to count pending organizations: %w", err)
	}

	return stats, nil
}

// DB returns the underlying database connection for the export runner
func (m *Manager) DB() interface{} {
	if m.db != nil {
		return m.db.DB()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
