// Package postgres opens database/sql handles backed by the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Schema is the DDL for router snapshots and the audit trail.
const Schema = `
CREATE TABLE IF NOT EXISTS governance_routers (
    domain BIGINT PRIMARY KEY,
    address BYTEA NOT NULL,
    governor_domain BIGINT NOT NULL,
    governor_address BYTEA NOT NULL,
    recovery JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS governance_peers (
    router_domain BIGINT NOT NULL REFERENCES governance_routers(domain) ON DELETE CASCADE,
    peer_domain BIGINT NOT NULL,
    peer_address BYTEA NOT NULL,
    PRIMARY KEY (router_domain, peer_domain)
);

CREATE TABLE IF NOT EXISTS governance_audit_events (
    id UUID PRIMARY KEY,
    category TEXT NOT NULL,
    timestamp TIMESTAMPTZ NOT NULL,
    domain BIGINT NOT NULL,
    subject TEXT NOT NULL,
    action TEXT NOT NULL,
    decision TEXT NOT NULL,
    reason TEXT NOT NULL,
    actor_id TEXT NOT NULL,
    message_id TEXT NOT NULL,
    request_id TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS governance_audit_events_domain_idx
    ON governance_audit_events (domain, timestamp);
`

// Migrate applies Schema. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}
