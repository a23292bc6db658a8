package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create call records",
		SQL: `
			CREATE TABLE call_records (
				sid         TEXT PRIMARY KEY,
				to_number   TEXT NOT NULL,
				from_number TEXT NOT NULL,
				status      TEXT NOT NULL,
				stream_sid  TEXT NOT NULL DEFAULT '',
				turns       INTEGER NOT NULL DEFAULT 0,
				created_at  TEXT NOT NULL DEFAULT (datetime('now')),
				started_at  TEXT,
				ended_at    TEXT
			);

			CREATE INDEX idx_call_records_status ON call_records (status);
			CREATE INDEX idx_call_records_created ON call_records (created_at);
		`,
	},
}
