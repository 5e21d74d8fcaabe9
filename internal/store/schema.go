package store

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	backend     TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL DEFAULT 0,
	finished_at INTEGER NOT NULL DEFAULT 0,
	total       INTEGER NOT NULL DEFAULT 0,
	passed      INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	errored     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS outcomes (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	page_url    TEXT NOT NULL,
	check_name  TEXT NOT NULL,
	type        TEXT NOT NULL,
	negated     INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	expected    TEXT,
	actual      TEXT,
	error       TEXT NOT NULL DEFAULT '',
	snapshot_id TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	ts          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);

CREATE TABLE IF NOT EXISTS snapshots (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	page_url    TEXT NOT NULL,
	backend     TEXT NOT NULL DEFAULT '',
	source      BLOB NOT NULL,
	source_hash TEXT NOT NULL,
	ts          INTEGER NOT NULL
);
`
