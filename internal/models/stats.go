package models

// Stats is the aggregate progress snapshot served to the control surface
type Stats struct {
	Tasks       map[TaskStatus]int `json:"tasks"`
	TotalLinks  int                `json:"total_links"`
	TotalOrgs   int                `json:"total_orgs"`
	PendingOrgs int                `json:"pending_orgs"` // links with no matching organization yet
}

// ExportTemplate is a named stored query powering spreadsheet exports
type ExportTemplate struct {
	ID   int64  `json:"id" badgerhold:"key"`
	Name string `json:"name"`
	SQL  string `json:"sql,omitempty"`
}
