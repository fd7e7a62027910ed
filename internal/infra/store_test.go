package infra

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/congo-pay/token_ledger/internal/config"
	"github.com/congo-pay/token_ledger/internal/ledger"
)

func TestOpenLedgerStoreBoltPersists(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{StoreDriver: config.DriverBolt, BoltPath: filepath.Join(t.TempDir(), "ledger.db")}

	store, err := OpenLedgerStore(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := ledger.New(ctx, store, ledger.AuthenticatedCaller("alice"), ledger.NewBalance(25)); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenLedgerStore(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	balance, err := ledger.Attach(reopened).BalanceOf(ctx, "alice")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != ledger.NewBalance(25) {
		t.Fatalf("expected persisted balance 25, got %s", balance)
	}
}

func TestOpenLedgerStoreRejectsMissingPool(t *testing.T) {
	if _, err := OpenLedgerStore(context.Background(), config.Config{StoreDriver: config.DriverPostgres}, nil); err == nil {
		t.Fatalf("expected error without pool")
	}
	if _, err := OpenLedgerStore(context.Background(), config.Config{StoreDriver: "mongo"}, nil); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestNewRedisClientOptional(t *testing.T) {
	client, err := NewRedisClient(context.Background(), "")
	if err != nil || client != nil {
		t.Fatalf("expected nil client without url, got %v %v", client, err)
	}
}
