package journal

// Schema is the DDL for the session attempt journal.
const Schema = `
CREATE TABLE IF NOT EXISTS session_attempts (
    attempt_id  TEXT PRIMARY KEY,
    attempt     INTEGER NOT NULL,
    outcome     TEXT NOT NULL,
    url         TEXT NOT NULL DEFAULT '',
    error       TEXT NOT NULL DEFAULT '',
    started_at  INTEGER NOT NULL,
    ended_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_attempts_ended
    ON session_attempts(ended_at DESC);
`
