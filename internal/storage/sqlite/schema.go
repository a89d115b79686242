package sqlite

const schemaSQL = `
-- Discovery tasks: one city crossed with one query or category
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	manager TEXT DEFAULT '',
	region TEXT DEFAULT '',
	city TEXT DEFAULT '',
	target_kind TEXT NOT NULL DEFAULT 'search',
	pan_enabled INTEGER NOT NULL DEFAULT 0,
	query TEXT DEFAULT '',
	category_path TEXT DEFAULT '',
	domain_pref TEXT DEFAULT 'auto',
	status TEXT NOT NULL DEFAULT 'PENDING',
	attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_claim ON tasks(status, attempts, id);

-- Discovered organization links, globally unique per organization.
-- Task context is denormalized so reports survive task deletion.
CREATE TABLE IF NOT EXISTS links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL,
	org_id TEXT NOT NULL,
	url TEXT NOT NULL,
	source_mode TEXT DEFAULT '',
	city TEXT DEFAULT '',
	region TEXT DEFAULT '',
	manager TEXT DEFAULT '',
	query TEXT DEFAULT '',
	category_path TEXT DEFAULT '',
	created_at INTEGER NOT NULL,
	UNIQUE(org_id) ON CONFLICT IGNORE
);

CREATE INDEX IF NOT EXISTS idx_links_task ON links(task_id);

-- Enriched organizations, one row per org id, latest write wins
CREATE TABLE IF NOT EXISTS orgs (
	org_id TEXT PRIMARY KEY,
	name TEXT DEFAULT '',
	address TEXT DEFAULT '',
	website TEXT DEFAULT '',
	listing TEXT DEFAULT '',
	phone TEXT DEFAULT '',
	social TEXT DEFAULT '',
	updated_at INTEGER NOT NULL
);

-- Append-only provenance: which task context reached which organization
CREATE TABLE IF NOT EXISTS org_sources (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	org_id TEXT NOT NULL,
	task_id INTEGER NOT NULL,
	manager TEXT DEFAULT '',
	region TEXT DEFAULT '',
	city TEXT DEFAULT '',
	mode TEXT DEFAULT '',
	query TEXT DEFAULT '',
	category_path TEXT DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sources_org ON org_sources(org_id);
CREATE INDEX IF NOT EXISTS idx_sources_task ON org_sources(task_id);

-- Named export queries run by the spreadsheet export
CREATE TABLE IF NOT EXISTS export_templates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE,
	sql_text TEXT
);
`

type seedTemplate struct {
	name string
	sql  string
}

var defaultTemplates = []seedTemplate{
	{
		name: "XLSX: full report (manager/region/city/query/category + fields)",
		sql: `SELECT
  s.manager AS manager,
  s.region AS region,
  s.city AS city,
  COALESCE(s.query, '') AS request,
  COALESCE(s.category_path, '') AS category,
  o.name AS name,
  o.address AS address,
  o.website AS website,
  o.listing AS listing,
  o.phone AS phone,
  o.social AS social
FROM org_sources s
JOIN orgs o ON o.org_id = s.org_id
ORDER BY s.id ASC`,
	},
}
