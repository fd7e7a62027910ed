package ledger

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInsufficientBalance occurs when the caller's balance cannot cover a
	// transfer.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNotOwner indicates a mint attempted by anyone but the owner.
	ErrNotOwner = errors.New("caller is not the owner")

	// ErrOverflow indicates a balance or the total supply would exceed
	// MaxBalance.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrInvalidAmount reports a malformed amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNotDeployed is returned by every operation on a store that holds no
	// ledger yet.
	ErrNotDeployed = errors.New("ledger not deployed")

	// ErrAlreadyDeployed is returned when constructing a ledger on a store
	// that already holds one.
	ErrAlreadyDeployed = errors.New("ledger already deployed")

	// ErrSupplyMismatch means the stored balances no longer add up to the
	// total supply.
	ErrSupplyMismatch = errors.New("total supply does not match balances")
)

// Ledger tracks a single token: its total supply, per-account balances and
// the owner allowed to mint. State lives in the Store; every operation runs
// in one store transaction, so a failed call leaves the state untouched.
type Ledger struct {
	store Store
}

// Attach returns a handle over store without touching it. Operations fail
// with ErrNotDeployed until Deploy has succeeded on the store.
func Attach(store Store) *Ledger {
	return &Ledger{store: store}
}

// New deploys a ledger on store with caller as owner, crediting the whole
// initialSupply to caller.
func New(ctx context.Context, store Store, caller Caller, initialSupply Balance) (*Ledger, error) {
	l := Attach(store)
	if err := l.Deploy(ctx, caller, initialSupply); err != nil {
		return nil, err
	}
	return l, nil
}

// NewDefault is New with a zero initial supply.
func NewDefault(ctx context.Context, store Store, caller Caller) (*Ledger, error) {
	return New(ctx, store, caller, Zero)
}

// Deploy initializes the store: owner and total supply are fixed and the
// caller's balance is set to initialSupply.
func (l *Ledger) Deploy(ctx context.Context, caller Caller, initialSupply Balance) error {
	return l.store.Update(ctx, func(tx Tx) error {
		if _, ok, err := tx.Meta(ctx); err != nil {
			return fmt.Errorf("load meta: %w", err)
		} else if ok {
			return ErrAlreadyDeployed
		}
		if err := tx.PutMeta(ctx, Meta{Owner: caller.ID(), TotalSupply: initialSupply}); err != nil {
			return fmt.Errorf("store meta: %w", err)
		}
		if err := tx.Set(ctx, caller.ID(), initialSupply); err != nil {
			return fmt.Errorf("credit owner: %w", err)
		}
		return nil
	})
}

// TotalSupply returns the number of units in existence.
func (l *Ledger) TotalSupply(ctx context.Context) (Balance, error) {
	var supply Balance
	err := l.store.View(ctx, func(tx Tx) error {
		meta, err := loadMeta(ctx, tx)
		if err != nil {
			return err
		}
		supply = meta.TotalSupply
		return nil
	})
	return supply, err
}

// Owner returns the account allowed to mint.
func (l *Ledger) Owner(ctx context.Context) (AccountID, error) {
	var owner AccountID
	err := l.store.View(ctx, func(tx Tx) error {
		meta, err := loadMeta(ctx, tx)
		if err != nil {
			return err
		}
		owner = meta.Owner
		return nil
	})
	return owner, err
}

// Info returns the owner and total supply read in one transaction.
func (l *Ledger) Info(ctx context.Context) (Meta, error) {
	var meta Meta
	err := l.store.View(ctx, func(tx Tx) error {
		m, err := loadMeta(ctx, tx)
		meta = m
		return err
	})
	return meta, err
}

// BalanceOf returns the balance of account, zero if it never held tokens.
func (l *Ledger) BalanceOf(ctx context.Context, account AccountID) (Balance, error) {
	var balance Balance
	err := l.store.View(ctx, func(tx Tx) error {
		if _, err := loadMeta(ctx, tx); err != nil {
			return err
		}
		b, err := tx.Get(ctx, account)
		if err != nil {
			return fmt.Errorf("load balance: %w", err)
		}
		balance = b
		return nil
	})
	return balance, err
}

// Transfer moves value from the caller to the recipient. Total supply is
// unchanged.
func (l *Ledger) Transfer(ctx context.Context, caller Caller, to AccountID, value Balance) error {
	from := caller.ID()
	return l.store.Update(ctx, func(tx Tx) error {
		if _, err := loadMeta(ctx, tx); err != nil {
			return err
		}
		fromBalance, err := tx.Get(ctx, from)
		if err != nil {
			return fmt.Errorf("load sender balance: %w", err)
		}
		if fromBalance.LessThan(value) {
			return ErrInsufficientBalance
		}
		newFromBalance, ok := fromBalance.CheckedSub(value)
		if !ok {
			return ErrInsufficientBalance
		}
		// Debit and credit of the same account cancel out.
		if to == from {
			return nil
		}

		toBalance, err := tx.Get(ctx, to)
		if err != nil {
			return fmt.Errorf("load recipient balance: %w", err)
		}
		newToBalance, ok := toBalance.CheckedAdd(value)
		if !ok {
			return ErrOverflow
		}

		if err := tx.Set(ctx, from, newFromBalance); err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}
		if err := tx.Set(ctx, to, newToBalance); err != nil {
			return fmt.Errorf("credit recipient: %w", err)
		}
		return nil
	})
}

// Mint creates amount new units and credits them to the recipient. Only the
// owner may mint.
func (l *Ledger) Mint(ctx context.Context, caller Caller, to AccountID, amount Balance) error {
	return l.store.Update(ctx, func(tx Tx) error {
		meta, err := loadMeta(ctx, tx)
		if err != nil {
			return err
		}
		if caller.ID() != meta.Owner {
			return ErrNotOwner
		}
		newSupply, ok := meta.TotalSupply.CheckedAdd(amount)
		if !ok {
			return ErrOverflow
		}
		current, err := tx.Get(ctx, to)
		if err != nil {
			return fmt.Errorf("load recipient balance: %w", err)
		}
		newBalance, ok := current.CheckedAdd(amount)
		if !ok {
			return ErrOverflow
		}

		meta.TotalSupply = newSupply
		if err := tx.PutMeta(ctx, meta); err != nil {
			return fmt.Errorf("store supply: %w", err)
		}
		if err := tx.Set(ctx, to, newBalance); err != nil {
			return fmt.Errorf("credit recipient: %w", err)
		}
		return nil
	})
}

// Verify checks that the stored balances sum to the total supply.
func (l *Ledger) Verify(ctx context.Context) error {
	return l.store.View(ctx, func(tx Tx) error {
		meta, err := loadMeta(ctx, tx)
		if err != nil {
			return err
		}
		sum := Zero
		err = tx.ForEach(ctx, func(account AccountID, balance Balance) error {
			next, ok := sum.CheckedAdd(balance)
			if !ok {
				return fmt.Errorf("%w: balances overflow at account %s", ErrSupplyMismatch, account)
			}
			sum = next
			return nil
		})
		if err != nil {
			return err
		}
		if sum != meta.TotalSupply {
			return fmt.Errorf("%w: supply %s, balances %s", ErrSupplyMismatch, meta.TotalSupply, sum)
		}
		return nil
	})
}

func loadMeta(ctx context.Context, tx Tx) (Meta, error) {
	meta, ok, err := tx.Meta(ctx)
	if err != nil {
		return Meta{}, fmt.Errorf("load meta: %w", err)
	}
	if !ok {
		return Meta{}, ErrNotDeployed
	}
	return meta, nil
}
