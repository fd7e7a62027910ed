package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrStoreClosed is returned by a store used after Close.
var ErrStoreClosed = errors.New("store closed")

type inMemoryStore struct {
	mu       sync.RWMutex
	balances map[AccountID]Balance
	meta     *Meta
	closed   bool
}

// NewInMemory creates a concurrency-safe in-memory store useful for tests and
// development.
func NewInMemory() Store {
	return &inMemoryStore{balances: make(map[AccountID]Balance)}
}

func (s *inMemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&inMemoryTx{store: s})
}

func (s *inMemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &inMemoryTx{store: s, writable: true, staged: make(map[AccountID]Balance)}
	if err := fn(tx); err != nil {
		return err
	}

	for account, balance := range tx.staged {
		s.balances[account] = balance
	}
	if tx.stagedMeta != nil {
		meta := *tx.stagedMeta
		s.meta = &meta
	}
	return nil
}

func (s *inMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// inMemoryTx reads through its staged writes to the committed maps. Writes
// only reach the store when Update commits.
type inMemoryTx struct {
	store      *inMemoryStore
	writable   bool
	staged     map[AccountID]Balance
	stagedMeta *Meta
}

func (t *inMemoryTx) Get(_ context.Context, account AccountID) (Balance, error) {
	if b, ok := t.staged[account]; ok {
		return b, nil
	}
	return t.store.balances[account], nil
}

func (t *inMemoryTx) Set(_ context.Context, account AccountID, value Balance) error {
	if !t.writable {
		return errReadOnlyTx
	}
	t.staged[account] = value
	return nil
}

func (t *inMemoryTx) Meta(_ context.Context) (Meta, bool, error) {
	if t.stagedMeta != nil {
		return *t.stagedMeta, true, nil
	}
	if t.store.meta == nil {
		return Meta{}, false, nil
	}
	return *t.store.meta, true, nil
}

func (t *inMemoryTx) PutMeta(_ context.Context, meta Meta) error {
	if !t.writable {
		return errReadOnlyTx
	}
	t.stagedMeta = &meta
	return nil
}

func (t *inMemoryTx) ForEach(_ context.Context, fn func(AccountID, Balance) error) error {
	merged := make(map[AccountID]Balance, len(t.store.balances)+len(t.staged))
	for account, balance := range t.store.balances {
		merged[account] = balance
	}
	for account, balance := range t.staged {
		merged[account] = balance
	}
	accounts := make([]AccountID, 0, len(merged))
	for account := range merged {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })
	for _, account := range accounts {
		if err := fn(account, merged[account]); err != nil {
			return err
		}
	}
	return nil
}

var errReadOnlyTx = errors.New("write in read-only transaction")
