package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/token_ledger/internal/config"
	"github.com/congo-pay/token_ledger/internal/ledger"
)

// OpenLedgerStore returns the ledger store selected by cfg.StoreDriver. The
// postgres driver reuses db and migrates the schema; bolt opens cfg.BoltPath.
// Closing the returned store releases what this function opened.
func OpenLedgerStore(ctx context.Context, cfg config.Config, db *pgxpool.Pool) (ledger.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return ledger.NewInMemory(), nil
	case config.DriverPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres store requires a database pool")
		}
		store := ledger.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverBolt:
		bdb, err := NewBoltDB(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		store, err := ledger.NewBoltStore(bdb)
		if err != nil {
			bdb.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
