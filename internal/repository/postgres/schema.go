package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"peer-rental-core/internal/logger"
)

// schema is the full database schema.
const schema = `
CREATE EXTENSION IF NOT EXISTS btree_gist;

CREATE TABLE IF NOT EXISTS users (
    id                    SERIAL PRIMARY KEY,
    email                 TEXT NOT NULL UNIQUE,
    password_hash         TEXT NOT NULL,
    name                  TEXT NOT NULL,
    intent                TEXT NOT NULL DEFAULT 'UNSET',
    identity_verification TEXT NOT NULL DEFAULT 'UNVERIFIED',
    payout_verification   TEXT NOT NULL DEFAULT 'UNVERIFIED',
    has_payment_method    BOOLEAN NOT NULL DEFAULT FALSE,
    payment_method_ref    TEXT,
    active                BOOLEAN NOT NULL DEFAULT TRUE,
    version               INTEGER NOT NULL DEFAULT 1,
    created_on            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_on            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS items (
    id                      SERIAL PRIMARY KEY,
    owner_email             TEXT NOT NULL REFERENCES users(email),
    name                    TEXT NOT NULL,
    description             TEXT,
    daily_rate_cents        INTEGER NOT NULL CHECK (daily_rate_cents >= 0),
    deposit_cents           INTEGER NOT NULL DEFAULT 0 CHECK (deposit_cents >= 0),
    min_rental_days         INTEGER NOT NULL DEFAULT 1,
    max_rental_days         INTEGER NOT NULL DEFAULT 0,
    instant_booking_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    available               BOOLEAN NOT NULL DEFAULT TRUE,
    version                 INTEGER NOT NULL DEFAULT 1,
    created_on              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_on              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_items_owner ON items(owner_email);

CREATE TABLE IF NOT EXISTS bookings (
    id                   SERIAL PRIMARY KEY,
    item_id              INTEGER NOT NULL REFERENCES items(id),
    renter_email         TEXT NOT NULL REFERENCES users(email),
    owner_email          TEXT NOT NULL REFERENCES users(email),
    start_date           DATE NOT NULL,
    end_date             DATE NOT NULL CHECK (end_date >= start_date),
    total_cents          INTEGER NOT NULL,
    deposit_cents        INTEGER NOT NULL,
    mode                 TEXT NOT NULL,
    state                TEXT NOT NULL,
    charge_status        TEXT NOT NULL DEFAULT 'NONE',
    charge_ref           TEXT,
    deposit_status       TEXT NOT NULL DEFAULT 'NONE',
    deposit_ref          TEXT,
    payment_attempt      INTEGER NOT NULL DEFAULT 0,
    cancelled_by         TEXT,
    rejection_reason     TEXT,
    dispute_resolution   TEXT,
    decided_at           TIMESTAMPTZ,
    paid_at              TIMESTAMPTZ,
    completed_at         TIMESTAMPTZ,
    disputed_at          TIMESTAMPTZ,
    dispute_resolved_at  TIMESTAMPTZ,
    version              INTEGER NOT NULL DEFAULT 1,
    created_on           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_on           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT bookings_no_overlap EXCLUDE USING gist (
        item_id WITH =,
        daterange(start_date, end_date, '[]') WITH &&
    ) WHERE (state IN ('PENDING_REVIEW', 'INSTANT_CONFIRMED', 'AWAITING_PAYMENT', 'ACTIVE'))
);

CREATE INDEX IF NOT EXISTS idx_bookings_renter ON bookings(renter_email);
CREATE INDEX IF NOT EXISTS idx_bookings_owner ON bookings(owner_email);
CREATE INDEX IF NOT EXISTS idx_bookings_state_created ON bookings(state, created_on);

CREATE TABLE IF NOT EXISTS condition_reports (
    id            SERIAL PRIMARY KEY,
    booking_id    INTEGER NOT NULL REFERENCES bookings(id),
    type          TEXT NOT NULL CHECK (type IN ('PICKUP', 'RETURN', 'DISPUTE')),
    reported_by   TEXT NOT NULL,
    reporter_role TEXT NOT NULL,
    notes         TEXT,
    damages       JSONB NOT NULL DEFAULT '[]',
    photos        TEXT[] NOT NULL DEFAULT '{}',
    created_on    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (booking_id, type, reported_by)
);

CREATE TABLE IF NOT EXISTS relations (
    id          UUID PRIMARY KEY,
    kind        TEXT NOT NULL,
    actor_email TEXT NOT NULL,
    target      TEXT NOT NULL,
    created_on  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (kind, actor_email, target)
);

CREATE TABLE IF NOT EXISTS provider_events (
    token       TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    subject     TEXT NOT NULL,
    received_on TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS notifications (
    id         SERIAL PRIMARY KEY,
    user_email TEXT NOT NULL,
    title      TEXT NOT NULL,
    message    TEXT NOT NULL,
    is_read    BOOLEAN NOT NULL DEFAULT FALSE,
    attributes JSONB,
    created_on TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_email, created_on DESC);
`

// migrations are applied in order after the schema. Each must be idempotent.
var migrations = []string{}

// Migrate creates the schema and applies pending migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	logger.Info("Running database migrations", "migrations", len(migrations))
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("running schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
