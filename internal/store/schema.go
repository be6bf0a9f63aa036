package store

// Schema is the control-plane relational schema, applied by whatever
// migration tooling wraps this package (not run by the core itself). It
// exists here as the single source of truth for the table shapes the
// queries in this package assume.
const Schema = `
CREATE TABLE IF NOT EXISTS projects (
	id             TEXT PRIMARY KEY,
	org_id         TEXT NOT NULL,
	creator_id     TEXT NOT NULL,
	repo_owner     TEXT NOT NULL DEFAULT '',
	repo_name      TEXT NOT NULL DEFAULT '',
	default_branch TEXT NOT NULL DEFAULT '',
	archived       BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS chat_sessions (
	id               TEXT PRIMARY KEY,
	project_id       TEXT NOT NULL REFERENCES projects(id),
	user_id          TEXT NOT NULL,
	session_id       TEXT NOT NULL,
	branch_name      TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'active',
	title            TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	message_count    INTEGER NOT NULL DEFAULT 0,
	last_activity_at TIMESTAMPTZ NOT NULL,
	is_default       BOOLEAN NOT NULL DEFAULT FALSE,
	merged           BOOLEAN NOT NULL DEFAULT FALSE,
	merged_at        TIMESTAMPTZ,
	pr_number        INTEGER,
	pr_url           TEXT,
	UNIQUE (project_id, session_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id             BIGINT NOT NULL,
	project_id     TEXT NOT NULL REFERENCES projects(id),
	session_id     TEXT NOT NULL,
	role           TEXT NOT NULL,
	content        TEXT NOT NULL,
	tokens_input   INTEGER,
	tokens_output  INTEGER,
	context_tokens INTEGER,
	created_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (project_id, id)
);
`
