package postgres

import (
	"context"
	"database/sql"
)

// schema es idempotente; Migrate se puede correr en cada arranque.
const schema = `
CREATE TABLE IF NOT EXISTS patients (
	id                 TEXT PRIMARY KEY,
	owner_user_id      TEXT NOT NULL,
	name               TEXT NOT NULL,
	timezone           TEXT NOT NULL DEFAULT 'UTC',
	caregiver_user_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
	notes              TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS patients_owner_idx ON patients (owner_user_id);

CREATE TABLE IF NOT EXISTS adherence_events (
	id          TEXT PRIMARY KEY,
	patient_id  TEXT NOT NULL,
	type        TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,
	subject     TEXT NOT NULL DEFAULT '',
	notes       TEXT NOT NULL DEFAULT '',
	actor_type  TEXT NOT NULL,
	actor_id    TEXT NOT NULL,
	source      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS adherence_events_patient_idx ON adherence_events (patient_id, occurred_at DESC);

CREATE TABLE IF NOT EXISTS patient_states (
	patient_id TEXT PRIMARY KEY,
	version    BIGINT NOT NULL DEFAULT 0,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
