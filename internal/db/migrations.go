package db

type migration struct {
	version int
	name    string
	up      string
}

var migrations = []migration{
	{
		version: 1,
		name:    "step_records",
		up: `
			CREATE TABLE step_records (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT NOT NULL UNIQUE,
				run_id TEXT NOT NULL,
				parent_run_id TEXT,
				depth INTEGER NOT NULL DEFAULT 0,
				sequence TEXT NOT NULL DEFAULT '',
				step INTEGER NOT NULL,
				name TEXT NOT NULL,
				prompt TEXT NOT NULL DEFAULT '',
				output TEXT NOT NULL DEFAULT '',
				timestamp TEXT NOT NULL
			);
			CREATE INDEX idx_step_records_run ON step_records (run_id, step);
			CREATE INDEX idx_step_records_timestamp ON step_records (timestamp);
		`,
	},
}
