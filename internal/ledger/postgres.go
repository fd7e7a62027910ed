package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// updateLockKey is the advisory lock that serializes mutating transactions,
// including the first deploy when no meta row exists yet to lock.
const updateLockKey int64 = 0x746f6b656e // "token"

const schema = `
CREATE TABLE IF NOT EXISTS token_meta (
    id           SMALLINT PRIMARY KEY CHECK (id = 1),
    owner        TEXT NOT NULL,
    total_supply NUMERIC(39, 0) NOT NULL CHECK (total_supply >= 0),
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS token_balances (
    account    TEXT PRIMARY KEY,
    amount     NUMERIC(39, 0) NOT NULL CHECK (amount >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresStore persists ledger state in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store. The pool stays owned
// by the caller.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the ledger tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

// View runs fn in a read-only repeatable-read transaction so that all reads
// see one snapshot.
func (s *PostgresStore) View(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update runs fn in a transaction holding the ledger's advisory lock and
// commits only if fn succeeds.
func (s *PostgresStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, updateLockKey); err != nil {
		return fmt.Errorf("acquire ledger lock: %w", err)
	}

	if err := fn(&postgresTx{tx: tx, writable: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Close is a no-op; the pool is closed by whoever opened it.
func (s *PostgresStore) Close() error {
	return nil
}

type postgresTx struct {
	tx       pgx.Tx
	writable bool
}

func (t *postgresTx) Get(ctx context.Context, account AccountID) (Balance, error) {
	var amount string
	err := t.tx.QueryRow(ctx, `SELECT amount::text FROM token_balances WHERE account = $1`, string(account)).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Zero, nil
		}
		return Zero, err
	}
	return ParseBalance(amount)
}

func (t *postgresTx) Set(ctx context.Context, account AccountID, value Balance) error {
	if !t.writable {
		return errReadOnlyTx
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO token_balances (account, amount) VALUES ($1, $2::text::numeric)
        ON CONFLICT (account) DO UPDATE SET amount = EXCLUDED.amount, updated_at = NOW()`, string(account), value.String())
	return err
}

func (t *postgresTx) Meta(ctx context.Context) (Meta, bool, error) {
	var (
		owner  string
		supply string
	)
	err := t.tx.QueryRow(ctx, `SELECT owner, total_supply::text FROM token_meta WHERE id = 1`).Scan(&owner, &supply)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Meta{}, false, nil
		}
		return Meta{}, false, err
	}
	total, err := ParseBalance(supply)
	if err != nil {
		return Meta{}, false, err
	}
	return Meta{Owner: AccountID(owner), TotalSupply: total}, true, nil
}

// PutMeta never rewrites the owner of an existing row.
func (t *postgresTx) PutMeta(ctx context.Context, meta Meta) error {
	if !t.writable {
		return errReadOnlyTx
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO token_meta (id, owner, total_supply) VALUES (1, $1, $2::text::numeric)
        ON CONFLICT (id) DO UPDATE SET total_supply = EXCLUDED.total_supply, updated_at = NOW()`, string(meta.Owner), meta.TotalSupply.String())
	return err
}

func (t *postgresTx) ForEach(ctx context.Context, fn func(AccountID, Balance) error) error {
	rows, err := t.tx.Query(ctx, `SELECT account, amount::text FROM token_balances ORDER BY account`)
	if err != nil {
		return err
	}
	type entry struct {
		account AccountID
		balance Balance
	}
	var entries []entry
	for rows.Next() {
		var (
			account string
			amount  string
		)
		if err := rows.Scan(&account, &amount); err != nil {
			rows.Close()
			return err
		}
		balance, err := ParseBalance(amount)
		if err != nil {
			rows.Close()
			return err
		}
		entries = append(entries, entry{account: AccountID(account), balance: balance})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, e := range entries {
		if err := fn(e.account, e.balance); err != nil {
			return err
		}
	}
	return nil
}
