package db

import (
	"context"
	"database/sql"
)

const usersMigration = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS users (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    oauth_subject_id text NOT NULL,
    oauth_token text,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW(),
    CONSTRAINT users_oauth_subject_id_unique UNIQUE (oauth_subject_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS users_oauth_token_unique
ON users (oauth_token)
WHERE oauth_token IS NOT NULL;
`

// Migrate creates the users table and its indexes if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, usersMigration)
	return err
}
