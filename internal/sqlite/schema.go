// Package sqlite implements the SQLite storage backend of the replica:
// editions, published fingerprints, last good remote documents, local drafts
// and identity annotations, one row per identity in each table.
package sqlite

// Schema DDL for all tables. Statements are idempotent so an existing
// database is reused across restarts.
const (
	createEditions = `CREATE TABLE IF NOT EXISTS editions (
    identity_id TEXT PRIMARY KEY,
    edition INTEGER NOT NULL,
    updated_at TEXT NOT NULL
);`

	createFingerprints = `CREATE TABLE IF NOT EXISTS fingerprints (
    identity_id TEXT PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    published_at TEXT NOT NULL
);`

	createDocuments = `CREATE TABLE IF NOT EXISTS documents (
    identity_id TEXT PRIMARY KEY,
    edition INTEGER NOT NULL,
    body BLOB NOT NULL,
    stored_at TEXT NOT NULL
);`

	createDrafts = `CREATE TABLE IF NOT EXISTS drafts (
    identity_id TEXT PRIMARY KEY,
    edition INTEGER NOT NULL,
    body BLOB NOT NULL,
    stored_at TEXT NOT NULL
);`

	createAnnotations = `CREATE TABLE IF NOT EXISTS annotations (
    identity_id TEXT PRIMARY KEY,
    contexts TEXT NOT NULL,
    properties TEXT NOT NULL
);`

	idxEditionsEdition = `CREATE INDEX IF NOT EXISTS idx_editions_edition ON editions(edition);`
)

// schemaDDL lists all CREATE TABLE statements.
var schemaDDL = []string{
	createEditions,
	createFingerprints,
	createDocuments,
	createDrafts,
	createAnnotations,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxEditionsEdition,
}
