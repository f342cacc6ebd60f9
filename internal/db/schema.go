package db

// schema is shared by the sqlite and postgres dialects. Timestamps are unix
// milliseconds so both engines store them the same way.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    salt TEXT NOT NULL,
    passhash TEXT NOT NULL,
    xp BIGINT NOT NULL DEFAULT 0,
    streak BIGINT NOT NULL DEFAULT 0,
    share_token TEXT UNIQUE,
    last_completed_day TEXT,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);

CREATE TABLE IF NOT EXISTS routines (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    steps TEXT NOT NULL DEFAULT '[]',
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_routines_user_created ON routines(user_id, created_at);

CREATE TABLE IF NOT EXISTS routine_completions (
    id TEXT PRIMARY KEY,
    routine_id TEXT NOT NULL REFERENCES routines(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    day TEXT NOT NULL,
    xp_awarded BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    UNIQUE (user_id, routine_id, day)
);

CREATE INDEX IF NOT EXISTS idx_routine_completions_routine ON routine_completions(routine_id, day);
`
