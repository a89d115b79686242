package interfaces

import (
	"context"

	"github.com/ternarybob/colligo/internal/models"
)

// TaskStorage - interface for discovery-task persistence and claim semantics.
// Every operation is atomic with respect to concurrent callers.
type TaskStorage interface {
	// AddTasks bulk-inserts tasks with status PENDING and zero attempts,
	// returning the number of rows inserted.
	AddTasks(ctx context.Context, tasks []*models.Task) (int, error)

	// ClaimNext returns the oldest PENDING/RETRY task with attempts below
	// maxAttempts, transitioned to RUNNING with attempts incremented, or nil
	// when no task is eligible. At most one caller can claim a given task.
	ClaimNext(ctx context.Context, maxAttempts int) (*models.Task, error)

	// Complete marks a task DONE, recording the inserted-link count in the
	// message field. A non-empty message on DONE is informational, not an error.
	Complete(ctx context.Context, taskID int64, insertedLinks int) error

	// FailCaptcha marks a task WAITCAPTCHA with a worker-tagged message
	FailCaptcha(ctx context.Context, taskID int64, msg, worker string) error

	// Fail marks a task ERROR with a worker-tagged message
	Fail(ctx context.Context, taskID int64, msg, worker string) error

	// Retry resets a task to RETRY with attempts 0 and the error cleared
	Retry(ctx context.Context, taskID int64) error

	// Requeue resets a task to RETRY, optionally clearing attempts and
	// purging the task's discovered links and provenance rows.
	Requeue(ctx context.Context, taskID int64, resetAttempts, clearLinks, clearSources bool) error

	// RequeueAll resets every non-RUNNING task to RETRY with attempts 0.
	// Links and provenance are left intact.
	RequeueAll(ctx context.Context) error

	// Delete removes a task and cascades to its links and sources.
	// Deleting a missing id is a no-op.
	Delete(ctx context.Context, taskID int64) error

	// ClearAll removes all tasks, links, organizations and sources
	ClearAll(ctx context.Context) error

	// List returns up to limit tasks, newest first
	List(ctx context.Context, limit int) ([]*models.Task, error)

	// Get returns a task by id, or nil when absent
	Get(ctx context.Context, taskID int64) (*models.Task, error)
}

// LinkStorage - interface for discovered organization links
type LinkStorage interface {
	// InsertLinks derives an organization id for each URL, drops URLs whose
	// id cannot be derived, inserts the rest keyed on org id with
	// insert-or-ignore semantics, and returns the count actually inserted.
	InsertLinks(ctx context.Context, task *models.Task, urls []string, sourceMode string) (int, error)

	// ClaimNextUnresolved returns the oldest link with no matching
	// organization row, or nil. No reservation is taken: enrichment is
	// idempotent, so a crash mid-work simply leaves the link pending.
	ClaimNextUnresolved(ctx context.Context) (*models.Link, error)

	// CountLinks returns the total number of discovered links
	CountLinks(ctx context.Context) (int, error)
}

// OrgStorage - interface for enriched organizations and provenance
type OrgStorage interface {
	// Upsert inserts or overwrites all descriptive fields keyed by org id
	Upsert(ctx context.Context, org *models.Organization) error

	// Get returns an organization by id, or nil when absent
	Get(ctx context.Context, orgID string) (*models.Organization, error)

	// AddSource appends one provenance row for an (organization, task) pair
	AddSource(ctx context.Context, orgID string, link *models.Link, mode string) error

	// Sources lists all provenance rows in insertion order, feeding the
	// built-in export report
	Sources(ctx context.Context) ([]*models.Source, error)

	// CountOrgs returns the total number of enriched organizations
	CountOrgs(ctx context.Context) (int, error)
}

// TemplateStorage - read surface for named export query templates
type TemplateStorage interface {
	// Templates lists the stored templates (id and name only)
	Templates(ctx context.Context) ([]*models.ExportTemplate, error)

	// TemplateSQL returns the stored query text for a template id,
	// empty when the id is unknown.
	TemplateSQL(ctx context.Context, id int64) (string, error)
}

// StorageManager provides access to all storage backends
type StorageManager interface {
	TaskStorage() TaskStorage
	LinkStorage() LinkStorage
	OrgStorage() OrgStorage
	TemplateStorage() TemplateStorage

	// Stats aggregates task counts by status plus link/org totals
	Stats(ctx context.Context) (*models.Stats, error)

	// DB exposes the underlying handle for the export query runner;
	// returns nil for backends without a SQL surface.
	DB() interface{}

	Close() error
}
