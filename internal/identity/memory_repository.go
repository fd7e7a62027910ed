package identity

import (
    "context"
    "sync"
    "time"
)

type memoryRepository struct {
    mu       sync.RWMutex
    accounts map[string]Account
    handles  map[string]string
}

// NewMemoryRepository builds an in-memory account store for tests and
// development.
func NewMemoryRepository() Repository {
    return &memoryRepository{accounts: make(map[string]Account), handles: make(map[string]string)}
}

func (r *memoryRepository) Create(_ context.Context, account Account) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    if _, exists := r.handles[account.Handle]; exists {
        return ErrAccountExists
    }
    r.accounts[account.ID] = account
    r.handles[account.Handle] = account.ID
    return nil
}

func (r *memoryRepository) FindByHandle(_ context.Context, handle string) (Account, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    id, ok := r.handles[handle]
    if !ok {
        return Account{}, ErrAccountNotFound
    }
    return r.accounts[id], nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Account, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    account, ok := r.accounts[id]
    if !ok {
        return Account{}, ErrAccountNotFound
    }
    return account, nil
}

func (r *memoryRepository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
    return r.mutate(id, func(a *Account) { a.LastLogin = &at })
}

func (r *memoryRepository) UpdateTokenVersion(_ context.Context, id string, version int) error {
    return r.mutate(id, func(a *Account) { a.TokenVersion = version })
}

func (r *memoryRepository) mutate(id string, fn func(a *Account)) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    account, ok := r.accounts[id]
    if !ok {
        return ErrAccountNotFound
    }
    fn(&account)
    r.accounts[id] = account
    return nil
}
