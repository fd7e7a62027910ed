package ledger

import "context"

// AccountID identifies a participant. The ledger never looks inside it.
type AccountID string

// Valid reports whether the identifier is usable as a key.
func (a AccountID) Valid() bool {
	return a != ""
}

func (a AccountID) String() string {
	return string(a)
}

// Caller is the authenticated identity invoking an operation. Only the host
// boundary (token verification, operator CLI) should build one, keeping it
// apart from the untrusted account arguments of an operation.
type Caller struct {
	id AccountID
}

// AuthenticatedCaller wraps an identity the host has already authenticated.
func AuthenticatedCaller(id AccountID) Caller {
	return Caller{id: id}
}

// ID returns the caller's account.
func (c Caller) ID() AccountID {
	return c.id
}

// Meta is the ledger-wide record: who may mint and how much exists.
type Meta struct {
	Owner       AccountID `json:"owner"`
	TotalSupply Balance   `json:"total_supply"`
}

// BalanceStore maps accounts to balances. A missing entry reads as zero and
// is indistinguishable from an explicit zero. Errors are storage faults only.
type BalanceStore interface {
	Get(ctx context.Context, account AccountID) (Balance, error)
	Set(ctx context.Context, account AccountID, value Balance) error
}

// Tx is the view of a store inside one transaction.
type Tx interface {
	BalanceStore
	Meta(ctx context.Context) (Meta, bool, error)
	PutMeta(ctx context.Context, meta Meta) error
	ForEach(ctx context.Context, fn func(account AccountID, balance Balance) error) error
}

// Store persists ledger state. Update applies every write made by fn if it
// returns nil and none otherwise; updates never interleave.
type Store interface {
	View(ctx context.Context, fn func(tx Tx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
