package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// OrgStorage implements SQLite storage for enriched organizations and
// their provenance log
type OrgStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewOrgStorage creates a new organization storage instance
func NewOrgStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.OrgStorage {
	return &OrgStorage{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts or overwrites all descriptive fields keyed by org id
func (s *OrgStorage) Upsert(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO orgs (org_id, name, address, website, listing, phone, social, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			website = excluded.website,
			listing = excluded.listing,
			phone = excluded.phone,
			social = excluded.social,
			updated_at = excluded.updated_at`,
		org.OrgID, org.Name, org.Address, org.Website, org.Listing,
		org.Phone, org.Social, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert organization %s: %w", org.OrgID, err)
	}

	s.logger.Debug().Str("org_id", org.OrgID).Msg("Organization saved")
	return nil
}

// Get returns an organization by id, nil when absent
func (s *OrgStorage) Get(ctx context.Context, orgID string) (*models.Organization, error) {
	row := s.db.db.QueryRowContext(ctx, `
		SELECT org_id, name, address, website, listing, phone, social, updated_at
		FROM orgs WHERE org_id = ?`, orgID)

	var (
		org       models.Organization
		updatedAt int64
	)
	err := row.Scan(&org.OrgID, &org.Name, &org.Address, &org.Website,
		&org.Listing, &org.Phone, &org.Social, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get organization %s: %w", orgID, err)
	}

	org.UpdatedAt = unixToTime(updatedAt)
	return &org, nil
}

// AddSource appends one provenance row for an (organization, task) pair
func (s *OrgStorage) AddSource(ctx context.Context, orgID string, link *models.Link, mode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO org_sources (org_id, task_id, manager, region, city, mode, query, category_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		orgID, link.TaskID, link.Manager, link.Region, link.City,
		mode, link.Query, link.CategoryPath, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to add source for organization %s: %w", orgID, err)
	}
	return nil
}

// Sources lists all provenance rows in insertion order
func (s *OrgStorage) Sources(ctx context.Context) ([]*models.Source, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT id, org_id, task_id, manager, region, city, mode, query, category_path, created_at
		FROM org_sources ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []*models.Source
	for rows.Next() {
		var (
			src       models.Source
			createdAt int64
		)
		if err := rows.Scan(&src.ID, &src.OrgID, &src.TaskID, &src.Manager, &src.Region,
			&src.City, &src.Mode, &src.Query, &src.CategoryPath, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		src.CreatedAt = unixToTime(createdAt)
		sources = append(sources, &src)
	}
	return sources, rows.Err()
}

// CountOrgs returns the total number of enriched organizations
func (s *OrgStorage) CountOrgs(ctx context.Context) (int, error) {
	var count int
	err := s.db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orgs").Scan(&count)
	return count, err
}
