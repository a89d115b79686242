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

// maxErrorLen bounds the persisted task error message
const maxErrorLen = 2000

// unixToTime converts Unix timestamp to time.Time
func unixToTime(unix int64) time.Time {
	return time.Unix(unix, 0)
}

// taggedError prefixes a message with the reporting worker's name
func taggedError(msg, worker string) string {
	if worker != "" {
		msg = worker + ": " + msg
	}
	return common.Truncate(msg, maxErrorLen)
}

// TaskStorage implements SQLite storage for discovery tasks.
// SQLite has no SKIP LOCKED, so the claim path is serialized through a
// mutex plus a transaction, which gives the same at-most-one-claimant
// guarantee within the process.
type TaskStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewTaskStorage creates a new task storage instance
func NewTaskStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.TaskStorage {
	return &TaskStorage{
		db:     db,
		logger: logger,
	}
}

const taskColumns = `id, manager, region, city, target_kind, pan_enabled, query, category_path,
	domain_pref, status, attempts, last_error, created_at, updated_at`

// AddTasks bulk-inserts tasks as PENDING with zero attempts
func (s *TaskStorage) AddTasks(ctx context.Context, tasks []*models.Task) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	inserted := 0
	for _, t := range tasks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (manager, region, city, target_kind, pan_enabled, query,
				category_path, domain_pref, status, attempts, last_error, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'PENDING', 0, '', ?, ?)`,
			t.Manager, t.Region, t.City, string(t.Mode.Kind), boolToInt(t.Mode.PanEnabled),
			t.Query, t.CategoryPath, t.DomainPref, now, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert task: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit tasks: %w", err)
	}

	s.logger.Info().Int("count", inserted).Msg("Tasks added")
	return inserted, nil
}

// ClaimNext atomically claims the oldest eligible task.
// Eligible: status PENDING or RETRY, attempts below maxAttempts. The claimed
// task comes back already transitioned to RUNNING with attempts incremented.
func (s *TaskStorage) ClaimNext(ctx context.Context, maxAttempts int) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id FROM tasks
		WHERE status IN ('PENDING', 'RETRY') AND attempts < ?
		ORDER BY id ASC
		LIMIT 1`, maxAttempts)

	var id int64
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select claimable task: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks
		SET status = 'RUNNING', attempts = attempts + 1, updated_at = ?
		WHERE id = ?`, time.Now().Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to claim task %d: %w", id, err)
	}

	task, err := scanTask(tx.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("failed to read claimed task %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return task, nil
}

// Complete marks a task DONE. The message field carries the inserted-link
// count for the UI, it is informational rather than an error.
func (s *TaskStorage) Complete(ctx context.Context, taskID int64, insertedLinks int) error {
	return s.setStatus(ctx, taskID, models.TaskStatusDone,
		fmt.Sprintf("inserted_links=%d", insertedLinks))
}

// FailCaptcha marks a task WAITCAPTCHA pending human action
func (s *TaskStorage) FailCaptcha(ctx context.Context, taskID int64, msg, worker string) error {
	return s.setStatus(ctx, taskID, models.TaskStatusWaitCaptcha, taggedError(msg, worker))
}

// Fail marks a task ERROR
func (s *TaskStorage) Fail(ctx context.Context, taskID int64, msg, worker string) error {
	return s.setStatus(ctx, taskID, models.TaskStatusError, taggedError(msg, worker))
}

func (s *TaskStorage) setStatus(ctx context.Context, taskID int64, status models.TaskStatus, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		string(status), msg, time.Now().Unix(), taskID)
	if err != nil {
		return fmt.Errorf("failed to set task %d status %s: %w", taskID, status, err)
	}
	return nil
}

// Retry resets a task for another claim after a captcha or error
func (s *TaskStorage) Retry(ctx context.Context, taskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.db.ExecContext(ctx, `
		UPDATE tasks SET status = 'RETRY', attempts = 0, last_error = '', updated_at = ?
		WHERE id = ?`, time.Now().Unix(), taskID)
	if err != nil {
		return fmt.Errorf("failed to retry task %d: %w", taskID, err)
	}
	return nil
}

// Requeue resets a task to RETRY, optionally purging its discovered links
// and provenance so the next run re-scrapes from scratch.
func (s *TaskStorage) Requeue(ctx context.Context, taskID int64, resetAttempts, clearLinks, clearSources bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin requeue transaction: %w", err)
	}
	defer tx.Rollback()

	if clearSources {
		if _, err := tx.ExecContext(ctx, "DELETE FROM org_sources WHERE task_id = ?", taskID); err != nil {
			return fmt.Errorf("failed to clear sources for task %d: %w", taskID, err)
		}
	}
	if clearLinks {
		if _, err := tx.ExecContext(ctx, "DELETE FROM links WHERE task_id = ?", taskID); err != nil {
			return fmt.Errorf("failed to clear links for task %d: %w", taskID, err)
		}
	}

	query := "UPDATE tasks SET status = 'RETRY', last_error = '', updated_at = ?"
	if resetAttempts {
		query += ", attempts = 0"
	}
	query += " WHERE id = ?"
	if _, err := tx.ExecContext(ctx, query, time.Now().Unix(), taskID); err != nil {
		return fmt.Errorf("failed to requeue task %d: %w", taskID, err)
	}

	return tx.Commit()
}

// RequeueAll resets every non-RUNNING task to RETRY with attempts cleared.
// Links and provenance stay: a full purge is available per task via Requeue.
func (s *TaskStorage) RequeueAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = 'RETRY', attempts = 0, last_error = '', updated_at = ?
		WHERE status != 'RUNNING'`, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to requeue all tasks: %w", err)
	}
	return nil
}

// Delete removes a task and cascades to its links and provenance rows
func (s *TaskStorage) Delete(ctx context.Context, taskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM org_sources WHERE task_id = ?",
		"DELETE FROM links WHERE task_id = ?",
		"DELETE FROM tasks WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, taskID); err != nil {
			return fmt.Errorf("failed to delete task %d: %w", taskID, err)
		}
	}

	return tx.Commit()
}

// ClearAll removes all tasks and results
func (s *TaskStorage) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin clear transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM org_sources",
		"DELETE FROM orgs",
		"DELETE FROM links",
		"DELETE FROM tasks",
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to clear tables: %w", err)
		}
	}

	return tx.Commit()
}

// List returns up to limit tasks, newest first
func (s *TaskStorage) List(ctx context.Context, limit int) ([]*models.Task, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTaskRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Get returns a task by id, nil when absent
func (s *TaskStorage) Get(ctx context.Context, taskID int64) (*models.Task, error) {
	task, err := scanTask(s.db.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", taskID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task %d: %w", taskID, err)
	}
	return task, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row *sql.Row) (*models.Task, error) {
	return scanTaskFrom(row)
}

func scanTaskRows(rows *sql.Rows) (*models.Task, error) {
	task, err := scanTaskFrom(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	return task, nil
}

func scanTaskFrom(r rowScanner) (*models.Task, error) {
	var (
		task                 models.Task
		targetKind           string
		panEnabled           int
		createdAt, updatedAt int64
	)

	err := r.Scan(
		&task.ID, &task.Manager, &task.Region, &task.City, &targetKind, &panEnabled,
		&task.Query, &task.CategoryPath, &task.DomainPref, (*string)(&task.Status),
		&task.Attempts, &task.LastError, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Mode = models.TaskMode{
		Kind:       models.TargetKind(targetKind),
		PanEnabled: panEnabled != 0,
	}
	task.CreatedAt = unixToTime(createdAt)
	task.UpdatedAt = unixToTime(updatedAt)
	return &task, nil
}
