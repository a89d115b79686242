package models

import "time"

// Organization is the enriched entity scraped from a detail page.
// At most one row exists per OrgID; repeated enrichment overwrites every
// descriptive field and bumps UpdatedAt.
type Organization struct {
	OrgID     string    `json:"org_id" badgerhold:"key"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Website   string    `json:"website"`
	Listing   string    `json:"listing"` // the service's own detail-page URL, query stripped
	Phone     string    `json:"phone"`
	Social    string    `json:"social"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Source is one append-only provenance row: which task context led to
// resolving a given organization. One organization can be reached from many
// tasks, so this is a many-to-many log, never updated in place.
type Source struct {
	ID           int64     `json:"id" badgerhold:"key"`
	OrgID        string    `json:"org_id" badgerhold:"index"`
	TaskID       int64     `json:"task_id" badgerhold:"index"`
	Manager      string    `json:"manager"`
	Region       string    `json:"region"`
	City         string    `json:"city"`
	Mode         string    `json:"mode"`
	Query        string    `json:"query"`
	CategoryPath string    `json:"category_path"`
	CreatedAt    time.Time `json:"created_at"`
}
