package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// LinkStorage implements Badger storage for discovered organization links
type LinkStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewLinkStorage creates a new link storage instance
func NewLinkStorage(db *BadgerDB, logger arbor.ILogger) interfaces.LinkStorage {
	return &LinkStorage{
		db:     db,
		logger: logger,
	}
}

// InsertLinks stores harvested URLs for a task. URLs with no derivable
// organization id are dropped, duplicates on org id are rejected by the
// unique index. The return value counts links actually inserted.
func (s *LinkStorage) InsertLinks(ctx context.Context, task *models.Task, urls []string, sourceMode string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	inserted := 0
	for _, u := range urls {
		orgID := common.OrgIDFromURL(u)
		if orgID == "" {
			continue
		}

		link := &models.Link{
			TaskID:       task.ID,
			OrgID:        orgID,
			URL:          u,
			SourceMode:   sourceMode,
			City:         task.City,
			Region:       task.Region,
			Manager:      task.Manager,
			Query:        task.Query,
			CategoryPath: task.CategoryPath,
			CreatedAt:    now,
		}
		id, err := s.db.NextID("links")
		if err != nil {
			return inserted, err
		}
		link.ID = id
		err = s.db.store.Insert(link.ID, link)
		if err != nil {
			if err == badgerhold.ErrUniqueExists {
				continue
			}
			return inserted, fmt.Errorf("failed to insert link %s: %w", u, err)
		}
		inserted++
	}

	s.logger.Debug().
		Int64("task_id", task.ID).
		Int("urls", len(urls)).
		Int("inserted", inserted).
		Msg("Links inserted")

	return inserted, nil
}

// errScanDone aborts a ForEach scan once a match is found
var errScanDone = errors.New("scan done")

// ClaimNextUnresolved returns the oldest link with no enriched organization
// yet. No reservation is taken, enrichment is idempotent.
func (s *LinkStorage) ClaimNextUnresolved(ctx context.Context) (*models.Link, error) {
	var found *models.Link
	err := s.db.store.ForEach(
		badgerhold.Where("ID").Ge(int64(0)).SortBy("ID"),
		func(link *models.Link) error {
			var org models.Organization
			err := s.db.store.Get(link.OrgID, &org)
			if err == badgerhold.ErrNotFound {
				claimed := *link
				found = &claimed
				return errScanDone
			}
			return err
		})
	if err != nil && !errors.Is(err, errScanDone) {
		return nil, fmt.Errorf("failed to claim unresolved link: %w", err)
	}
	return found, nil
}

// CountLinks returns the total number of discovered links
func (s *LinkStorage) CountLinks(ctx context.Context) (int, error) {
	count, err := s.db.store.Count(&models.Link{}, nil)
	return int(count), err
}
