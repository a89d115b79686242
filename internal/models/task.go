package models

import "time"

// TaskStatus represents the lifecycle state of a link-discovery task
type TaskStatus string

const (
	TaskStatusPending     TaskStatus = "PENDING"
	TaskStatusRunning     TaskStatus = "RUNNING"
	TaskStatusRetry       TaskStatus = "RETRY"
	TaskStatusDone        TaskStatus = "DONE"
	TaskStatusError       TaskStatus = "ERROR"
	TaskStatusWaitCaptcha TaskStatus = "WAITCAPTCHA"
)

// TargetKind selects how the search-result URL for a task is built
type TargetKind string

const (
	TargetSearch   TargetKind = "search"   // free-text query against the map search box
	TargetCategory TargetKind = "category" // fixed category path on the service
)

// TaskMode captures the two orthogonal flags of a discovery task: what kind
// of target URL to build and whether to pan the map before harvesting.
// Decided once at task creation, never re-derived from free text.
type TaskMode struct {
	Kind       TargetKind `json:"kind"`
	PanEnabled bool       `json:"pan_enabled"`
}

// String renders the mode the way it is shown in task listings
func (m TaskMode) String() string {
	s := string(m.Kind)
	if m.PanEnabled {
		s += "+pan"
	}
	return s
}

// Task is one unit of link-discovery work: one city crossed with one
// free-text query or one category path.
type Task struct {
	ID           int64      `json:"id" badgerhold:"key"`
	Manager      string     `json:"manager"`
	Region       string     `json:"region"`
	City         string     `json:"city"`
	Mode         TaskMode   `json:"mode"`
	Query        string     `json:"query"`         // set when Mode.Kind == TargetSearch
	CategoryPath string     `json:"category_path"` // set when Mode.Kind == TargetCategory
	DomainPref   string     `json:"domain_pref"`   // service domain suffix or "auto"
	Status       TaskStatus `json:"status"`
	Attempts     int        `json:"attempts"`
	LastError    string     `json:"last_error"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
