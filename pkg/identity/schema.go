package identity

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables the bridge needs when they do not exist yet.
// Kept as plain DDL so a fresh deployment works without a separate
// migration step.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	auth_provider TEXT NOT NULL DEFAULT '',
	is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
	all_folders   BOOLEAN NOT NULL DEFAULT FALSE,
	folders       JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_login_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sessions (
	token       TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	device_id   TEXT NOT NULL,
	device_name TEXT NOT NULL DEFAULT '',
	app_name    TEXT NOT NULL DEFAULT '',
	app_version TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	expires_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions (expires_at);

CREATE TABLE IF NOT EXISTS oidc_providers (
	name                 TEXT PRIMARY KEY,
	enabled              BOOLEAN NOT NULL DEFAULT TRUE,
	issuer_url           TEXT NOT NULL,
	client_id            TEXT NOT NULL,
	client_secret        TEXT NOT NULL,
	scopes               JSONB NOT NULL,
	role_claim_path      TEXT NOT NULL,
	username_claim       TEXT NOT NULL DEFAULT '',
	enable_authorization BOOLEAN NOT NULL DEFAULT FALSE,
	default_provider     TEXT NOT NULL DEFAULT '',
	policy               JSONB NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS saml_providers (
	name                 TEXT PRIMARY KEY,
	enabled              BOOLEAN NOT NULL DEFAULT TRUE,
	sso_url              TEXT NOT NULL,
	entity_id            TEXT NOT NULL,
	certificate          TEXT NOT NULL,
	role_attribute       TEXT NOT NULL,
	enable_authorization BOOLEAN NOT NULL DEFAULT FALSE,
	default_provider     TEXT NOT NULL DEFAULT '',
	policy               JSONB NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates all tables if they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
