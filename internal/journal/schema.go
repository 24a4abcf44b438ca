package journal

// schemaVersion bumps whenever the recordings table changes shape. The
// journal is transient history, so migrations recreate rather than
// upgrade: users clear the database to adopt a new schema.
const schemaVersion = "1"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS recordings (
    id TEXT PRIMARY KEY,
    tab_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    platform TEXT NOT NULL,
    meeting_url TEXT NOT NULL DEFAULT '',
    duration_seconds REAL NOT NULL DEFAULT 0,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    mime_type TEXT NOT NULL DEFAULT '',
    outcome TEXT NOT NULL,
    upload_id TEXT NOT NULL DEFAULT '',
    upload_error TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recordings_created_at ON recordings(created_at);

CREATE TABLE IF NOT EXISTS schema_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
