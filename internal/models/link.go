package models

import "time"

// Link is a discovered reference to one organization's detail page,
// deduplicated globally by OrgID. Task context is denormalized so reports
// survive task deletion.
type Link struct {
	ID           int64     `json:"id" badgerhold:"key"`
	TaskID       int64     `json:"task_id" badgerhold:"index"`
	OrgID        string    `json:"org_id" badgerhold:"unique"`
	URL          string    `json:"url"`
	SourceMode   string    `json:"source_mode"`
	City         string    `json:"city"`
	Region       string    `json:"region"`
	Manager      string    `json:"manager"`
	Query        string    `json:"query"`
	CategoryPath string    `json:"category_path"`
	CreatedAt    time.Time `json:"created_at"`
}
