package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    session_id    TEXT         PRIMARY KEY,
    transcript    JSONB        NOT NULL DEFAULT '[]',
    action_items  JSONB        NOT NULL DEFAULT '[]',
    started_at    TIMESTAMPTZ  NOT NULL,
    ended_at      TIMESTAMPTZ  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_ended_at
    ON sessions (ended_at DESC);
`

const ddlCalls = `
CREATE TABLE IF NOT EXISTS calls (
    call_id        TEXT         PRIMARY KEY,
    carrier_sid    TEXT         NOT NULL DEFAULT '',
    destination    TEXT         NOT NULL DEFAULT '',
    broker_name    TEXT         NOT NULL DEFAULT '',
    load_id        TEXT         NOT NULL DEFAULT '',
    agreed         BOOLEAN      NOT NULL DEFAULT FALSE,
    rate           DOUBLE PRECISION NOT NULL DEFAULT 0,
    rate_per_mile  DOUBLE PRECISION NOT NULL DEFAULT 0,
    notes          TEXT         NOT NULL DEFAULT '',
    generation     INT          NOT NULL DEFAULT 0,
    finalized      BOOLEAN      NOT NULL DEFAULT FALSE,
    duration_ns    BIGINT       NOT NULL DEFAULT 0,
    transcript     JSONB        NOT NULL DEFAULT '[]',
    started_at     TIMESTAMPTZ  NOT NULL,
    ended_at       TIMESTAMPTZ  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calls_carrier_sid
    ON calls (carrier_sid);

CREATE INDEX IF NOT EXISTS idx_calls_ended_at
    ON calls (ended_at DESC);

CREATE INDEX IF NOT EXISTS idx_calls_load_id
    ON calls (load_id);
`

// Migrate creates or ensures all required tables and indexes exist. It is
// idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlSessions, ddlCalls} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
