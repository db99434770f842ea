package db

// Schema defines the SQLite schema for the publication journal. One row is
// written per (execution, region) after a successful publish; the journal is
// bookkeeping for humans and is never consulted by the pipeline itself.
const Schema = `
CREATE TABLE IF NOT EXISTS publications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    execution_id TEXT NOT NULL,
    image_name TEXT NOT NULL,
    snapshot_id TEXT NOT NULL,
    region TEXT NOT NULL,
    image_id TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(execution_id, region)
);

CREATE INDEX IF NOT EXISTS idx_publications_image_name ON publications(image_name);
CREATE INDEX IF NOT EXISTS idx_publications_created_at ON publications(created_at);
`

// Publication records one published image in one region.
type Publication struct {
	ID          int64
	ExecutionID string
	ImageName   string
	SnapshotID  string
	Region      string
	ImageID     string
	CreatedAt   string
}
