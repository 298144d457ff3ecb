// Package sqlite persists router snapshots in a single-file SQLite database
// for standalone routers and local devnets.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"govnet/internal/governance/models"
	"govnet/internal/governance/store/sqlite/migrations"
	"govnet/internal/platform/sqlitemigrate"
	id "govnet/pkg/domain"
	"govnet/pkg/platform/sentinel"
)

// Store persists router snapshots in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and applies embedded migrations. The
// path ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := ":memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer; also keeps an in-memory database on a single connection.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Load(ctx context.Context, domain id.Domain) (*models.RouterState, error) {
	var (
		address, governorAddress []byte
		governorDomain           int64
		recovery                 string
		updatedAt                int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT address, governor_domain, governor_address, recovery, updated_at
		 FROM governance_routers WHERE domain = ?`,
		int64(domain),
	).Scan(&address, &governorDomain, &governorAddress, &recovery, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("router %s: %w", domain, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load router %s: %w", domain, err)
	}

	state := &models.RouterState{Domain: domain, UpdatedAt: fromMillis(updatedAt)}
	if state.Address, err = id.AddressFromBytes(address); err != nil {
		return nil, fmt.Errorf("%w: router address: %w", sentinel.ErrInvalidState, err)
	}
	governor, err := id.AddressFromBytes(governorAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: governor address: %w", sentinel.ErrInvalidState, err)
	}
	state.Authority = models.AuthorityState{
		LocalDomain:     domain,
		GovernorDomain:  id.Domain(governorDomain),
		GovernorAddress: governor,
	}
	if err := json.Unmarshal([]byte(recovery), &state.Recovery); err != nil {
		return nil, fmt.Errorf("%w: recovery: %w", sentinel.ErrInvalidState, err)
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT peer_domain, peer_address FROM governance_peers
		 WHERE router_domain = ? ORDER BY peer_domain`,
		int64(domain),
	)
	if err != nil {
		return nil, fmt.Errorf("load peers for %s: %w", domain, err)
	}
	defer rows.Close()

	state.Peers = models.NewAddressRegistry()
	for rows.Next() {
		var (
			peerDomain int64
			raw        []byte
		)
		if err := rows.Scan(&peerDomain, &raw); err != nil {
			return nil, fmt.Errorf("scan peer: %w", err)
		}
		addr, err := id.AddressFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: peer %d: %w", sentinel.ErrInvalidState, peerDomain, err)
		}
		if err := state.Peers.Set(id.Domain(peerDomain), addr); err != nil {
			return nil, fmt.Errorf("%w: peer %d: %w", sentinel.ErrInvalidState, peerDomain, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate peers: %w", err)
	}

	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", sentinel.ErrInvalidState, err)
	}
	return state, nil
}

func (s *Store) Save(ctx context.Context, state *models.RouterState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("nil snapshot: %w", sentinel.ErrInvalidState)
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("%w: %w", sentinel.ErrInvalidState, err)
	}
	recovery, err := json.Marshal(state.Recovery)
	if err != nil {
		return fmt.Errorf("encode recovery: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO governance_routers (domain, address, governor_domain, governor_address, recovery, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (domain) DO UPDATE SET
		   address = excluded.address,
		   governor_domain = excluded.governor_domain,
		   governor_address = excluded.governor_address,
		   recovery = excluded.recovery,
		   updated_at = excluded.updated_at`,
		int64(state.Domain),
		state.Address[:],
		int64(state.Authority.GovernorDomain),
		state.Authority.GovernorAddress[:],
		string(recovery),
		toMillis(state.UpdatedAt),
	); err != nil {
		return fmt.Errorf("upsert router %s: %w", state.Domain, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM governance_peers WHERE router_domain = ?`, int64(state.Domain),
	); err != nil {
		return fmt.Errorf("clear peers for %s: %w", state.Domain, err)
	}
	entries := state.Peers.Entries()
	for _, d := range state.Peers.Domains() {
		addr := entries[d]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO governance_peers (router_domain, peer_domain, peer_address) VALUES (?, ?, ?)`,
			int64(state.Domain), int64(d), addr[:],
		); err != nil {
			return fmt.Errorf("insert peer %s for %s: %w", d, state.Domain, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}
