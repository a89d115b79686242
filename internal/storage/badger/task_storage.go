package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// maxErrorLen bounds the persisted task error message
const maxErrorLen = 2000

// taggedError prefixes a message with the reporting worker's name
func taggedError(msg, worker string) string {
	if worker != "" {
		msg = worker + ": " + msg
	}
	return common.Truncate(msg, maxErrorLen)
}

// TaskStorage implements Badger storage for discovery tasks. Badgerhold has
// no row locking, so every claim and status mutation is serialized through
// a mutex, which gives the at-most-one-claimant guarantee within the process.
type TaskStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewTaskStorage creates a new task storage instance
func NewTaskStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TaskStorage {
	return &TaskStorage{
		db:     db,
		logger: logger,
	}
}

// AddTasks bulk-inserts tasks as PENDING with zero attempts
func (s *TaskStorage) AddTasks(ctx context.Context, tasks []*models.Task) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	inserted := 0
	for _, t := range tasks {
		t.Status = models.TaskStatusPending
		t.Attempts = 0
		t.LastError = ""
		t.CreatedAt = now
		t.UpdatedAt = now
		id, err := s.db.NextID("tasks")
		if err != nil {
			return inserted, err
		}
		t.ID = id
		if err := s.db.store.Insert(t.ID, t); err != nil {
			return inserted, fmt.Errorf("failed to insert task: %w", err)
		}
		inserted++
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

	var candidates []*models.Task
	query := badgerhold.Where("Status").
		In(models.TaskStatusPending, models.TaskStatusRetry).
		And("Attempts").Lt(maxAttempts).
		SortBy("ID").Limit(1)
	if err := s.db.store.Find(&candidates, query); err != nil {
		return nil, fmt.Errorf("failed to select claimable task: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	task := candidates[0]
	task.Status = models.TaskStatusRunning
	task.Attempts++
	task.UpdatedAt = time.Now()
	if err := s.db.store.Update(task.ID, task); err != nil {
		return nil, fmt.Errorf("failed to claim task %d: %w", task.ID, err)
	}

	return task, nil
}

// Complete marks a task DONE. The message field carries the inserted-link
// count for the UI, it is informational rather than an error.
func (s *TaskStorage) Complete(ctx context.Context, taskID int64, insertedLinks int) error {
	return s.setStatus(taskID, models.TaskStatusDone,
		fmt.Sprintf("inserted_links=%d", insertedLinks))
}

// FailCaptcha marks a task WAITCAPTCHA pending human action
func (s *TaskStorage) FailCaptcha(ctx context.Context, taskID int64, msg, worker string) error {
	return s.setStatus(taskID, models.TaskStatusWaitCaptcha, taggedError(msg, worker))
}

// Fail marks a task ERROR
func (s *TaskStorage) Fail(ctx context.Context, taskID int64, msg, worker string) error {
	return s.setStatus(taskID, models.TaskStatusError, taggedError(msg, worker))
}

func (s *TaskStorage) setStatus(taskID int64, status models.TaskStatus, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate(taskID, func(t *models.Task) {
		t.Status = status
		t.LastError = msg
	})
}

// mutate loads, edits and rewrites one task under the caller's lock
func (s *TaskStorage) mutate(taskID int64, fn func(*models.Task)) error {
	var task models.Task
	if err := s.db.store.Get(taskID, &task); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to load task %d: %w", taskID, err)
	}

	fn(&task)
	task.UpdatedAt = time.Now()
	if err := s.db.store.Update(taskID, &task); err != nil {
		return fmt.Errorf("failed to update task %d: %w", taskID, err)
	}
	return nil
}

// Retry resets a task for another claim after a captcha or error
func (s *TaskStorage) Retry(ctx context.Context, taskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate(taskID, func(t *models.Task) {
		t.Status = models.TaskStatusRetry
		t.Attempts = 0
		t.LastError = ""
	})
}

// Requeue resets a task to RETRY, optionally purging its discovered links
// and provenance so the next run re-scrapes from scratch.
func (s *TaskStorage) Requeue(ctx context.Context, taskID int64, resetAttempts, clearLinks, clearSources bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if clearSources {
		if err := s.db.store.DeleteMatching(&models.Source{},
			badgerhold.Where("TaskID").Eq(taskID)); err != nil {
			return fmt.Errorf("failed to clear sources for task %d: %w", taskID, err)
		}
	}
	if clearLinks {
		if err := s.db.store.DeleteMatching(&models.Link{},
			badgerhold.Where("TaskID").Eq(taskID)); err != nil {
			return fmt.Errorf("failed to clear links for task %d: %w", taskID, err)
		}
	}

	return s.mutate(taskID, func(t *models.Task) {
		t.Status = models.TaskStatusRetry
		t.LastError = ""
		if resetAttempts {
			t.Attempts = 0
		}
	})
}

// RequeueAll resets every non-RUNNING task to RETRY with attempts cleared.
// Links and provenance stay: a full purge is available per task via Requeue.
func (s *TaskStorage) RequeueAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	err := s.db.store.UpdateMatching(&models.Task{},
		badgerhold.Where("Status").Ne(models.TaskStatusRunning),
		func(record interface{}) error {
			t, ok := record.(*models.Task)
			if !ok {
				return fmt.Errorf("unexpected record type %T", record)
			}
			t.Status = models.TaskStatusRetry
			t.Attempts = 0
			t.LastError = ""
			t.UpdatedAt = now
			return nil
		})
	if err != nil {
		return fmt.Errorf("failed to requeue all tasks: %w", err)
	}
	return nil
}

// Delete removes a task and cascades to its links and provenance rows
func (s *TaskStorage) Delete(ctx context.Context, taskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.store.DeleteMatching(&models.Source{},
		badgerhold.Where("TaskID").Eq(taskID)); err != nil {
		return fmt.Errorf("failed to delete sources for task %d: %w", taskID, err)
	}
	if err := s.db.store.DeleteMatching(&models.Link{},
		badgerhold.Where("TaskID").Eq(taskID)); err != nil {
		return fmt.Errorf("failed to delete links for task %d: %w", taskID, err)
	}
	if err := s.db.store.Delete(taskID, &models.Task{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete task %d: %w", taskID, err)
	}
	return nil
}

// ClearAll removes all tasks and results
func (s *TaskStorage) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, target := range []interface{}{
		&models.Source{}, &models.Organization{}, &models.Link{}, &models.Task{},
	} {
		if err := s.db.store.DeleteMatching(target, nil); err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}
	}
	return nil
}

// List returns up to limit tasks, newest first
func (s *TaskStorage) List(ctx context.Context, limit int) ([]*models.Task, error) {
	if limit <= 0 {
		limit = 200
	}

	var tasks []*models.Task
	query := badgerhold.Where("ID").Ge(int64(0)).SortBy("ID").Reverse().Limit(limit)
	if err := s.db.store.Find(&tasks, query); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Get returns a task by id, nil when absent
func (s *TaskStorage) Get(ctx context.Context, taskID int64) (*models.Task, error) {
	var task models.Task
	if err := s.db.store.Get(taskID, &task); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task %d: %w", taskID, err)
	}
	return &task, nil
}
