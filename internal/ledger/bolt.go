package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/boltdb/bolt"
)

var (
	metaBucket     = []byte("meta")
	balancesBucket = []byte("balances")
	metaKey        = []byte("ledger")
)

// BoltStore keeps ledger state in a single BoltDB file. Bolt allows one
// writer at a time, which gives Update its serialization for free.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates the ledger buckets in db if needed.
func NewBoltStore(db *bolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(metaBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(balancesBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create ledger buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

func (s *BoltStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltTx struct {
	tx *bolt.Tx
}

func (t *boltTx) Get(_ context.Context, account AccountID) (Balance, error) {
	raw := t.tx.Bucket(balancesBucket).Get([]byte(account))
	if raw == nil {
		return Zero, nil
	}
	return BalanceFromBytes(raw)
}

func (t *boltTx) Set(_ context.Context, account AccountID, value Balance) error {
	if !t.tx.Writable() {
		return errReadOnlyTx
	}
	return t.tx.Bucket(balancesBucket).Put([]byte(account), value.Bytes())
}

func (t *boltTx) Meta(_ context.Context) (Meta, bool, error) {
	raw := t.tx.Bucket(metaBucket).Get(metaKey)
	if raw == nil {
		return Meta{}, false, nil
	}
	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Meta{}, false, fmt.Errorf("decode meta: %w", err)
	}
	return meta, true, nil
}

func (t *boltTx) PutMeta(_ context.Context, meta Meta) error {
	if !t.tx.Writable() {
		return errReadOnlyTx
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	return t.tx.Bucket(metaBucket).Put(metaKey, payload)
}

func (t *boltTx) ForEach(_ context.Context, fn func(AccountID, Balance) error) error {
	return t.tx.Bucket(balancesBucket).ForEach(func(k, v []byte) error {
		balance, err := BalanceFromBytes(v)
		if err != nil {
			return err
		}
		return fn(AccountID(string(k)), balance)
	})
}
