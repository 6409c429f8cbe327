package store

// CurrentSchemaVersion is the schema version this binary expects. migrate()
// refuses to open a database stamped with a higher version (spec §4.A:
// "open fails with schema_incompatible if migration detects an unknown
// future column").
const CurrentSchemaVersion = 1

// baseSchema creates every table needed by a brand-new database. It is
// idempotent (CREATE TABLE/INDEX IF NOT EXISTS) so it doubles as a no-op on
// an up-to-date existing database.
const baseSchema = `
CREATE TABLE IF NOT EXISTS schema_versions (
	version     INTEGER PRIMARY KEY,
	applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sessions (
	id                        TEXT PRIMARY KEY,
	started_at                DATETIME NOT NULL,
	ended_at                  DATETIME,
	working_dir               TEXT DEFAULT '',
	working_file              TEXT DEFAULT '',
	working_task              TEXT DEFAULT '',
	event_count               INTEGER DEFAULT 0,
	objects_created           INTEGER DEFAULT 0,
	objects_accessed          INTEGER DEFAULT 0,
	last_checkpoint_at        DATETIME,
	events_since_checkpoint   INTEGER DEFAULT 0,
	injected_memory_ids       TEXT DEFAULT '[]',
	last_disclosure_at        DATETIME,
	error_burst_count         INTEGER DEFAULT 0,
	disclosure_level          TEXT DEFAULT 'minimal',
	last_topic                TEXT DEFAULT ''
);

CREATE TABLE IF NOT EXISTS blobs (
	id          TEXT PRIMARY KEY,
	content     BLOB NOT NULL,
	byte_length INTEGER NOT NULL,
	created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS events (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL REFERENCES sessions(id),
	timestamp     DATETIME NOT NULL,
	event_type    TEXT NOT NULL,
	content       TEXT,
	blob_id       TEXT REFERENCES blobs(id),
	tool_name     TEXT DEFAULT '',
	file_path     TEXT DEFAULT '',
	exit_code     INTEGER,
	content_hash  TEXT NOT NULL,
	token_count   INTEGER DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_events_session_ts ON events(session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
CREATE INDEX IF NOT EXISTS idx_events_hash ON events(session_id, content_hash);

CREATE TABLE IF NOT EXISTS memory_objects (
	id                    TEXT PRIMARY KEY,
	content               TEXT NOT NULL,
	object_type           TEXT NOT NULL,
	scope_type            TEXT NOT NULL DEFAULT 'global',
	scope_path            TEXT DEFAULT '',
	status                TEXT NOT NULL DEFAULT 'active',
	superseded_by         TEXT,
	confidence            TEXT NOT NULL DEFAULT 'medium',
	confidence_tier       TEXT NOT NULL DEFAULT 'hypothesis',
	evidence_event_ids    TEXT DEFAULT '[]',
	evidence_excerpt      TEXT DEFAULT '',
	review_status         TEXT NOT NULL DEFAULT 'pending',
	reviewed_at           DATETIME,
	created_at            DATETIME NOT NULL,
	updated_at            DATETIME NOT NULL,
	access_count          INTEGER DEFAULT 0,
	last_accessed         DATETIME,
	code_refs             TEXT DEFAULT '[]',
	last_verified_at      DATETIME,
	supersedes            TEXT DEFAULT '[]',
	structured            TEXT DEFAULT '',
	strength              REAL DEFAULT 0.5,
	last_reinforced_at    DATETIME,
	outcome_score         REAL DEFAULT 0.5
);
CREATE INDEX IF NOT EXISTS idx_memory_status ON memory_objects(status);
CREATE INDEX IF NOT EXISTS idx_memory_type ON memory_objects(object_type);
CREATE INDEX IF NOT EXISTS idx_memory_review_status ON memory_objects(review_status);
CREATE INDEX IF NOT EXISTS idx_memory_created_at ON memory_objects(created_at);
CREATE INDEX IF NOT EXISTS idx_memory_superseded_by ON memory_objects(superseded_by);

CREATE TABLE IF NOT EXISTS memory_embeddings (
	memory_id TEXT PRIMARY KEY REFERENCES memory_objects(id) ON DELETE CASCADE,
	vector    BLOB NOT NULL,
	dims      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS outcomes (
	id          TEXT PRIMARY KEY,
	memory_id   TEXT NOT NULL REFERENCES memory_objects(id) ON DELETE CASCADE,
	session_id  TEXT REFERENCES sessions(id),
	timestamp   DATETIME NOT NULL,
	outcome     TEXT NOT NULL,
	context     TEXT DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_outcomes_memory ON outcomes(memory_id);

CREATE TABLE IF NOT EXISTS conflicts (
	id                   TEXT PRIMARY KEY,
	conflict_type        TEXT NOT NULL,
	severity             TEXT NOT NULL,
	new_candidate        TEXT NOT NULL,
	existing_memories     TEXT DEFAULT '[]',
	suggested_resolution TEXT NOT NULL,
	description          TEXT DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'pending',
	resolved_option      TEXT DEFAULT '',
	resolved_by          TEXT DEFAULT '',
	created_at           DATETIME NOT NULL,
	resolved_at          DATETIME
);
CREATE INDEX IF NOT EXISTS idx_conflicts_status ON conflicts(status);
`

// ftsSchema creates the lexical full-text index over memory content. It is
// created separately from baseSchema because FTS5 availability, while
// near-universal, is still checked defensively.
const ftsSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS memory_fts USING fts5(
	content,
	scope_path,
	tokenize = 'porter unicode61',
	content = 'memory_objects',
	content_rowid = 'rowid'
);

CREATE TRIGGER IF NOT EXISTS memory_fts_ai AFTER INSERT ON memory_objects BEGIN
	INSERT INTO memory_fts(rowid, content, scope_path) VALUES (new.rowid, new.content, new.scope_path);
END;

CREATE TRIGGER IF NOT EXISTS memory_fts_ad AFTER DELETE ON memory_objects BEGIN
	INSERT INTO memory_fts(memory_fts, rowid, content, scope_path) VALUES ('delete', old.rowid, old.content, old.scope_path);
END;

CREATE TRIGGER IF NOT EXISTS memory_fts_au AFTER UPDATE ON memory_objects BEGIN
	INSERT INTO memory_fts(memory_fts, rowid, content, scope_path) VALUES ('delete', old.rowid, old.content, old.scope_path);
	INSERT INTO memory_fts(rowid, content, scope_path) VALUES (new.rowid, new.content, new.scope_path);
END;
`

// vecSchemaTemplate creates the optional sqlite-vec ANN index. %d is the
// fixed embedding dimensionality (spec §4.A: "optional fixed-dimension
// (384) dense-vector virtual table").
const vecSchemaTemplate = `
CREATE VIRTUAL TABLE IF NOT EXISTS memory_vec USING vec0(
	memory_id TEXT PRIMARY KEY,
	embedding float[%d]
);
`
