package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "govnet/pkg/domain"
	audit "govnet/pkg/platform/audit"
	txcontext "govnet/pkg/platform/tx"
)

// Store implements audit.Store on the governance_audit_events table.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts an event. The category is always derived from the action
// so the eventCategories map stays the single source of truth.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	category := audit.AuditEvent(event.Action).Category()

	query := `
		INSERT INTO governance_audit_events (
			id, category, timestamp, domain, subject, action,
			decision, reason, actor_id, message_id, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		string(category),
		event.Timestamp,
		int64(event.Domain),
		event.Subject,
		event.Action,
		event.Decision,
		event.Reason,
		event.ActorID,
		event.MessageID,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByDomain returns events observed by one router, newest first.
func (s *Store) ListByDomain(ctx context.Context, domain id.Domain) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, domain, subject, action,
			   decision, reason, actor_id, message_id, request_id
		FROM governance_audit_events
		WHERE domain = $1
		ORDER BY timestamp DESC
	`
	rows, err := s.db.QueryContext(ctx, query, int64(domain))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events across all domains.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, domain, subject, action,
			   decision, reason, actor_id, message_id, request_id
		FROM governance_audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			e        audit.Event
			category string
			domain   int64
		)
		if err := rows.Scan(&category, &e.Timestamp, &domain, &e.Subject, &e.Action,
			&e.Decision, &e.Reason, &e.ActorID, &e.MessageID, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.Domain = id.Domain(domain)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
