package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// LinkStorage implements SQLite storage for discovered organization links
type LinkStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewLinkStorage creates a new link storage instance
func NewLinkStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.LinkStorage {
	return &LinkStorage{
		db:     db,
		logger: logger,
	}
}

// InsertLinks stores harvested URLs for a task. URLs with no derivable
// organization id are dropped, duplicates on org id are ignored by the
// UNIQUE constraint. The return value counts rows actually inserted.
func (s *LinkStorage) InsertLinks(ctx context.Context, task *models.Task, urls []string, sourceMode string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin link insert transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	inserted := 0
	for _, u := range urls {
		orgID := common.OrgIDFromURL(u)
		if orgID == "" {
			continue
		}

		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO links (task_id, org_id, url, source_mode, city, region,
				manager, query, category_path, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			task.ID, orgID, u, sourceMode, task.City, task.Region,
			task.Manager, task.Query, task.CategoryPath, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert link %s: %w", u, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit links: %w", err)
	}

	s.logger.Debug().
		Int64("task_id", task.ID).
		Int("urls", len(urls)).
		Int("inserted", inserted).
		Msg("Links inserted")

	return inserted, nil
}

// ClaimNextUnresolved returns the oldest link with no enriched organization
// yet. No reservation is taken, enrichment is idempotent.
func (s *LinkStorage) ClaimNextUnresolved(ctx context.Context) (*models.Link, error) {
	row := s.db.db.QueryRowContext(ctx, `
		SELECT l.id, l.task_id, l.org_id, l.url, l.source_mode, l.city, l.region,
		       l.manager, l.query, l.category_path, l.created_at
		FROM links l
		LEFT JOIN orgs o ON o.org_id = l.org_id
		WHERE o.org_id IS NULL
		ORDER BY l.id ASC
		LIMIT 1`)

	var (
		link      models.Link
		createdAt int64
	)
	err := row.Scan(
		&link.ID, &link.TaskID, &link.OrgID, &link.URL, &link.SourceMode,
		&link.City, &link.Region, &link.Manager, &link.Query, &link.CategoryPath,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim unresolved link: %w", err)
	}

	link.CreatedAt = unixToTime(createdAt)
	return &link, nil
}

// CountLinks returns the total number of discovered links
func (s *LinkStorage) CountLinks(ctx context.Context) (int, error) {
	var count int
	err := s.db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM links").Scan(&count)
	return count, err
}
