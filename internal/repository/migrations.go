package repository

// Migration is one forward-only schema step, applied in Version order
// inside a single transaction. A versioned list beats a single embedded
// schema file here because the schema spans several table groups
// (points + child tables + tags + versions + daily limits) that evolve
// at different times.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "knowledge points and their lineage",
		SQL: `
CREATE TABLE IF NOT EXISTS knowledge_points (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    key_point TEXT NOT NULL,
    original_phrase TEXT NOT NULL DEFAULT '',
    correction TEXT NOT NULL DEFAULT '',
    explanation TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL,
    subtype TEXT NOT NULL,
    custom_notes TEXT NOT NULL DEFAULT '',
    mastery_level REAL NOT NULL DEFAULT 0,
    mistake_count INTEGER NOT NULL DEFAULT 0,
    correct_count INTEGER NOT NULL DEFAULT 0,
    next_review TIMESTAMP NOT NULL,
    last_seen TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    last_modified TIMESTAMP NOT NULL,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    deleted_at TIMESTAMP,
    deleted_reason TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_knowledge_points_unique_triple
    ON knowledge_points(key_point, original_phrase, correction)
    WHERE is_deleted = 0;

CREATE INDEX IF NOT EXISTS idx_knowledge_points_last_seen ON knowledge_points(last_seen DESC);
CREATE INDEX IF NOT EXISTS idx_knowledge_points_category ON knowledge_points(category, is_deleted);
CREATE INDEX IF NOT EXISTS idx_knowledge_points_due ON knowledge_points(is_deleted, mastery_level, next_review);
CREATE INDEX IF NOT EXISTS idx_knowledge_points_deleted_at ON knowledge_points(is_deleted, deleted_at);

CREATE TABLE IF NOT EXISTS original_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    knowledge_point_id INTEGER NOT NULL REFERENCES knowledge_points(id) ON DELETE CASCADE,
    chinese_sentence TEXT NOT NULL,
    user_answer TEXT NOT NULL,
    correct_answer TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_original_errors_point ON original_errors(knowledge_point_id);

CREATE TABLE IF NOT EXISTS review_examples (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    knowledge_point_id INTEGER NOT NULL REFERENCES knowledge_points(id) ON DELETE CASCADE,
    chinese_sentence TEXT NOT NULL,
    user_answer TEXT NOT NULL,
    correct_answer TEXT NOT NULL,
    is_correct INTEGER NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_examples_point ON review_examples(knowledge_point_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS knowledge_point_tags (
    knowledge_point_id INTEGER NOT NULL REFERENCES knowledge_points(id) ON DELETE CASCADE,
    tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (knowledge_point_id, tag_id)
);

CREATE TABLE IF NOT EXISTS knowledge_point_versions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    knowledge_point_id INTEGER NOT NULL REFERENCES knowledge_points(id) ON DELETE CASCADE,
    timestamp TIMESTAMP NOT NULL,
    before_json TEXT NOT NULL,
    after_json TEXT NOT NULL,
    changed_fields_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_knowledge_point_versions_point ON knowledge_point_versions(knowledge_point_id, timestamp);
`,
	},
	{
		Version:     2,
		Description: "daily limit governor state",
		SQL: `
CREATE TABLE IF NOT EXISTS user_settings (
    user_id TEXT PRIMARY KEY,
    daily_knowledge_limit INTEGER NOT NULL DEFAULT 15,
    limit_enabled INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS daily_knowledge_stats (
    date TEXT NOT NULL,
    user_id TEXT NOT NULL,
    isolated_count INTEGER NOT NULL DEFAULT 0,
    enhancement_count INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (date, user_id)
);
`,
	},
}

// schemaVersionDDL creates the bookkeeping table recording which
// migrations have already run.
const schemaVersionDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);
`
