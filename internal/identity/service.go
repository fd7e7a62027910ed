package identity

import (
    "context"
    "errors"
    "strings"
    "time"

    "github.com/google/uuid"
    "golang.org/x/crypto/bcrypt"
)

const (
    minPINLength    = 4
    maxHandleLength = 64
)

// Service manages account holder lifecycle.
type Service struct {
    repo Repository
    cost int
    now  func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
    return &Service{repo: repo, cost: bcrypt.DefaultCost, now: time.Now}
}

// Register creates an account holder and stores a hashed PIN.
func (s *Service) Register(ctx context.Context, creds Credentials) (Account, error) {
    handle := strings.TrimSpace(creds.Handle)
    if handle == "" || len(handle) > maxHandleLength {
        return Account{}, ErrInvalidHandle
    }
    if len(creds.PIN) < minPINLength {
        return Account{}, ErrWeakPIN
    }

    hash, err := bcrypt.GenerateFromPassword([]byte(creds.PIN), s.cost)
    if err != nil {
        return Account{}, err
    }

    account := Account{
        ID:        uuid.New().String(),
        Handle:    handle,
        PINHash:   hash,
        CreatedAt: s.now().UTC(),
    }

    if err := s.repo.Create(ctx, account); err != nil {
        return Account{}, err
    }

    return account, nil
}

// Authenticate verifies a handle/PIN pair and records the login time.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (Account, error) {
    account, err := s.repo.FindByHandle(ctx, strings.TrimSpace(creds.Handle))
    if err != nil {
        if errors.Is(err, ErrAccountNotFound) {
            return Account{}, ErrInvalidCredentials
        }
        return Account{}, err
    }

    if err := bcrypt.CompareHashAndPassword(account.PINHash, []byte(creds.PIN)); err != nil {
        return Account{}, ErrInvalidCredentials
    }

    now := s.now().UTC()
    if err := s.repo.UpdateLastLogin(ctx, account.ID, now); err != nil {
        return Account{}, err
    }
    account.LastLogin = &now

    return account, nil
}

// Get fetches an account by identifier.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
    return s.repo.FindByID(ctx, id)
}
