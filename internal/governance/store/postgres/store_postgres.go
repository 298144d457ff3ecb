package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"govnet/internal/governance/models"
	id "govnet/pkg/domain"
	"govnet/pkg/platform/sentinel"
	txcontext "govnet/pkg/platform/tx"
)

// PostgresStore persists router snapshots across governance_routers and
// governance_peers. A snapshot is written in one transaction; when the
// context already carries a transaction the write joins it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context, domain id.Domain) (*models.RouterState, error) {
	var (
		address, governorAddress []byte
		governorDomain           int64
		recovery                 []byte
		state                    = &models.RouterState{Domain: domain}
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT address, governor_domain, governor_address, recovery, updated_at
		FROM governance_routers
		WHERE domain = $1
	`, int64(domain)).Scan(&address, &governorDomain, &governorAddress, &recovery, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("router %s: %w", domain, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load router %s: %w", domain, err)
	}

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
	if err := json.Unmarshal(recovery, &state.Recovery); err != nil {
		return nil, fmt.Errorf("%w: recovery: %w", sentinel.ErrInvalidState, err)
	}

	if state.Peers, err = s.loadPeers(ctx, domain); err != nil {
		return nil, err
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", sentinel.ErrInvalidState, err)
	}
	return state, nil
}

func (s *PostgresStore) loadPeers(ctx context.Context, domain id.Domain) (models.AddressRegistry, error) {
	peers := models.NewAddressRegistry()
	rows, err := s.db.QueryContext(ctx, `
		SELECT peer_domain, peer_address
		FROM governance_peers
		WHERE router_domain = $1
		ORDER BY peer_domain
	`, int64(domain))
	if err != nil {
		return peers, fmt.Errorf("load peers for %s: %w", domain, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			peerDomain int64
			raw        []byte
		)
		if err := rows.Scan(&peerDomain, &raw); err != nil {
			return peers, fmt.Errorf("scan peer: %w", err)
		}
		addr, err := id.AddressFromBytes(raw)
		if err != nil {
			return peers, fmt.Errorf("%w: peer %d: %w", sentinel.ErrInvalidState, peerDomain, err)
		}
		if err := peers.Set(id.Domain(peerDomain), addr); err != nil {
			return peers, fmt.Errorf("%w: peer %d: %w", sentinel.ErrInvalidState, peerDomain, err)
		}
	}
	if err := rows.Err(); err != nil {
		return peers, fmt.Errorf("iterate peers: %w", err)
	}
	return peers, nil
}

func (s *PostgresStore) Save(ctx context.Context, state *models.RouterState) error {
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

	return txcontext.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO governance_routers (domain, address, governor_domain, governor_address, recovery, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (domain) DO UPDATE SET
				address = EXCLUDED.address,
				governor_domain = EXCLUDED.governor_domain,
				governor_address = EXCLUDED.governor_address,
				recovery = EXCLUDED.recovery,
				updated_at = EXCLUDED.updated_at
		`,
			int64(state.Domain),
			state.Address[:],
			int64(state.Authority.GovernorDomain),
			state.Authority.GovernorAddress[:],
			recovery,
			state.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert router %s: %w", state.Domain, err)
		}
		return savePeers(ctx, tx, state)
	})
}

func savePeers(ctx context.Context, tx *sql.Tx, state *models.RouterState) error {
	entries := state.Peers.Entries()
	domains := make([]int64, 0, len(entries))
	addresses := make([][]byte, 0, len(entries))
	for _, d := range state.Peers.Domains() {
		addr := entries[d]
		domains = append(domains, int64(d))
		addresses = append(addresses, addr[:])
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM governance_peers
		WHERE router_domain = $1 AND NOT (peer_domain = ANY($2::bigint[]))
	`, int64(state.Domain), pq.Array(domains)); err != nil {
		return fmt.Errorf("prune peers for %s: %w", state.Domain, err)
	}
	if len(domains) == 0 {
		return nil
	}

	// One round trip for the whole registry.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO governance_peers (router_domain, peer_domain, peer_address)
		SELECT $1, unnest($2::bigint[]), unnest($3::bytea[])
		ON CONFLICT (router_domain, peer_domain) DO UPDATE SET
			peer_address = EXCLUDED.peer_address
	`, int64(state.Domain), pq.Array(domains), pq.Array(addresses)); err != nil {
		return fmt.Errorf("upsert peers for %s: %w", state.Domain, err)
	}
	return nil
}
