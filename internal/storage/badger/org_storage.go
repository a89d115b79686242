package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// OrgStorage implements Badger storage for enriched organizations and
// their provenance log
type OrgStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewOrgStorage creates a new organization storage instance
func NewOrgStorage(db *BadgerDB, logger arbor.ILogger) interfaces.OrgStorage {
	return &OrgStorage{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts or overwrites all descriptive fields keyed by org id
func (s *OrgStorage) Upsert(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org.UpdatedAt = time.Now()
	if err := s.db.store.Upsert(org.OrgID, org); err != nil {
		return fmt.Errorf("failed to upsert organization %s: %w", org.OrgID, err)
	}

	s.logger.Debug().Str("org_id", org.OrgID).Msg("Organization saved")
	return nil
}

// Get returns an organization by id, nil when absent
func (s *OrgStorage) Get(ctx context.Context, orgID string) (*models.Organization, error) {
	var org models.Organization
	if err := s.db.store.Get(orgID, &org); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get organization %s: %w", orgID, err)
	}
	return &org, nil
}

// AddSource appends one provenance row for an (organization, task) pair
func (s *OrgStorage) AddSource(ctx context.Context, orgID string, link *models.Link, mode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	source := &models.Source{
		OrgID:        orgID,
		TaskID:       link.TaskID,
		Manager:      link.Manager,
		Region:       link.Region,
		City:         link.City,
		Mode:         mode,
		Query:        link.Query,
		CategoryPath: link.CategoryPath,
		CreatedAt:    time.Now(),
	}
	id, err := s.db.NextID("sources")
	if err != nil {
		return fmt.Errorf("failed to add source for organization %s: %w", orgID, err)
	}
	source.ID = id
	if err := s.db.store.Insert(source.ID, source); err != nil {
		return fmt.Errorf("failed to add source for organization %s: %w", orgID, err)
	}
	return nil
}

// Sources lists all provenance rows in insertion order
func (s *OrgStorage) Sources(ctx context.Context) ([]*models.Source, error) {
	var sources []*models.Source
	if err := s.db.store.Find(&sources, badgerhold.Where("ID").Ge(int64(0)).SortBy("ID")); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return sources, nil
}

// CountOrgs returns the total number of enriched organizations
func (s *OrgStorage) CountOrgs(ctx context.Context) (int, error) {
	count, err := s.db.store.Count(&models.Organization{}, nil)
	return int(count), err
}
