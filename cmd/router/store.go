package main

import (
	"context"
	"log/slog"

	"govnet/internal/governance/ports"
	snapmemory "govnet/internal/governance/store/memory"
	snappostgres "govnet/internal/governance/store/postgres"
	snapredis "govnet/internal/governance/store/redis"
	snapsqlite "govnet/internal/governance/store/sqlite"
	"govnet/internal/platform/config"
	"govnet/internal/platform/postgres"
	platformredis "govnet/internal/platform/redis"
	audit "govnet/pkg/platform/audit"
	auditmemory "govnet/pkg/platform/audit/store/memory"
	auditpostgres "govnet/pkg/platform/audit/store/postgres"
)

// backends holds the snapshot store and audit store chosen by GOVNET_STORE.
type backends struct {
	snapshots ports.Store
	audit     audit.Store
	closers   []func() error
	// health is nil for backends without a remote dependency.
	health func(ctx context.Context) error
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (*backends, error) {
	b := &backends{audit: auditmemory.NewInMemoryStore()}
	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		if err := postgres.Migrate(ctx, db); err != nil {
			b.close()
			return nil, err
		}
		b.snapshots = snappostgres.NewPostgres(db)
		b.health = db.PingContext
		b.audit = auditpostgres.New(db)
	case config.StoreRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		b.snapshots = snapredis.NewRedis(client.Client)
		b.health = client.Health
	case config.StoreSQLite:
		store, err := snapsqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, store.Close)
		b.snapshots = store
	default:
		log.Warn("router snapshots are kept in memory and lost on restart")
		b.snapshots = snapmemory.NewInMemoryStore()
	}
	return b, nil
}
