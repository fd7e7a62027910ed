package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/congo-pay/token_ledger/internal/ledger"
	"github.com/congo-pay/token_ledger/internal/metrics"
	"github.com/congo-pay/token_ledger/internal/notification"
)

// ErrInvalidAccount reports an empty recipient account.
var ErrInvalidAccount = errors.New("invalid recipient account")

// Service exposes the token ledger to the HTTP host. It adds logging,
// metrics and recipient notifications around the ledger operations.
type Service struct {
	ledger   *ledger.Ledger
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService constructs a token service over l.
func NewService(l *ledger.Ledger, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{ledger: l, notifier: notifier, logger: logger}
}

// Deploy creates the token with caller as owner and initial holder.
func (s *Service) Deploy(ctx context.Context, caller ledger.Caller, initialSupply ledger.Balance) (meta ledger.Meta, err error) {
	defer s.observe("deploy", time.Now(), &err)

	if err := s.ledger.Deploy(ctx, caller, initialSupply); err != nil {
		return ledger.Meta{}, err
	}
	s.logger.Info("token deployed",
		slog.String("owner", caller.ID().String()),
		slog.String("initial_supply", initialSupply.String()),
	)
	s.publishSupply(initialSupply)
	return ledger.Meta{Owner: caller.ID(), TotalSupply: initialSupply}, nil
}

// Info returns the owner and total supply.
func (s *Service) Info(ctx context.Context) (meta ledger.Meta, err error) {
	defer s.observe("info", time.Now(), &err)
	return s.ledger.Info(ctx)
}

// TotalSupply returns the number of units in existence.
func (s *Service) TotalSupply(ctx context.Context) (supply ledger.Balance, err error) {
	defer s.observe("total_supply", time.Now(), &err)
	return s.ledger.TotalSupply(ctx)
}

// BalanceOf returns the balance held by account.
func (s *Service) BalanceOf(ctx context.Context, account ledger.AccountID) (balance ledger.Balance, err error) {
	defer s.observe("balance_of", time.Now(), &err)
	return s.ledger.BalanceOf(ctx, account)
}

// Transfer moves value from the caller to the recipient.
func (s *Service) Transfer(ctx context.Context, caller ledger.Caller, to ledger.AccountID, value ledger.Balance) (err error) {
	defer s.observe("transfer", time.Now(), &err)

	if !to.Valid() {
		return ErrInvalidAccount
	}
	if err := s.ledger.Transfer(ctx, caller, to, value); err != nil {
		s.logger.Warn("transfer rejected",
			slog.String("from", caller.ID().String()),
			slog.String("to", to.String()),
			slog.String("value", value.String()),
			slog.Any("error", err),
		)
		return err
	}
	s.logger.Info("transfer committed",
		slog.String("from", caller.ID().String()),
		slog.String("to", to.String()),
		slog.String("value", value.String()),
	)
	if to != caller.ID() {
		s.notify(ctx, notification.Message{
			Kind:        notification.KindTokenReceived,
			Destination: to.String(),
			Body:        fmt.Sprintf("You received %s from %s", value, caller.ID()),
		})
	}
	return nil
}

// Mint creates amount new units for the recipient. Only the owner may mint.
func (s *Service) Mint(ctx context.Context, caller ledger.Caller, to ledger.AccountID, amount ledger.Balance) (err error) {
	defer s.observe("mint", time.Now(), &err)

	if !to.Valid() {
		return ErrInvalidAccount
	}
	if err := s.ledger.Mint(ctx, caller, to, amount); err != nil {
		s.logger.Warn("mint rejected",
			slog.String("caller", caller.ID().String()),
			slog.String("to", to.String()),
			slog.String("amount", amount.String()),
			slog.Any("error", err),
		)
		return err
	}
	s.logger.Info("mint committed",
		slog.String("to", to.String()),
		slog.String("amount", amount.String()),
	)
	if supply, err := s.ledger.TotalSupply(ctx); err == nil {
		s.publishSupply(supply)
	}
	s.notify(ctx, notification.Message{
		Kind:        notification.KindTokenMinted,
		Destination: to.String(),
		Body:        fmt.Sprintf("%s new tokens were minted to your account", amount),
	})
	return nil
}

// Verify checks that balances add up to the total supply.
func (s *Service) Verify(ctx context.Context) (err error) {
	defer s.observe("verify", time.Now(), &err)

	if err := s.ledger.Verify(ctx); err != nil {
		if errors.Is(err, ledger.ErrSupplyMismatch) {
			s.logger.Error("ledger inconsistent", slog.Any("error", err))
		}
		return err
	}
	return nil
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("notification failed", slog.String("kind", msg.Kind), slog.Any("error", err))
	}
}

func (s *Service) observe(operation string, start time.Time, err *error) {
	metrics.RecordOperation(operation, resultLabel(*err), time.Since(start))
}

func (s *Service) publishSupply(supply ledger.Balance) {
	f, _ := new(big.Float).SetString(supply.String())
	if f == nil {
		return
	}
	v, _ := f.Float64()
	metrics.SetTotalSupply(v)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ledger.ErrNotOwner):
		return "not_owner"
	case errors.Is(err, ledger.ErrOverflow):
		return "overflow"
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ErrInvalidAccount):
		return "invalid"
	case errors.Is(err, ledger.ErrNotDeployed):
		return "not_deployed"
	case errors.Is(err, ledger.ErrAlreadyDeployed):
		return "already_deployed"
	case errors.Is(err, ledger.ErrSupplyMismatch):
		return "mismatch"
	default:
		return "error"
	}
}
