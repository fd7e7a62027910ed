package auth

import (
    "context"
    "crypto/rand"
    "errors"
    "fmt"
    "time"

    "github.com/congo-pay/token_ledger/internal/config"
    "github.com/congo-pay/token_ledger/internal/identity"
)

// Service issues and verifies session tokens for account holders.
type Service struct {
    issuer        string
    accessSecret  []byte
    refreshSecret []byte
    accessTTL     time.Duration
    refreshTTL    time.Duration
    idRepo        identity.Repository
}

// NewService builds a token service. Empty secrets (allowed only in
// development) are replaced by random per-process keys.
func NewService(cfg config.Config, idRepo identity.Repository) (*Service, error) {
    access, err := secretOrRandom(cfg.JWTSecret)
    if err != nil {
        return nil, err
    }
    refresh, err := secretOrRandom(cfg.RefreshSecret)
    if err != nil {
        return nil, err
    }
    return &Service{
        issuer:        cfg.AppName,
        accessSecret:  access,
        refreshSecret: refresh,
        accessTTL:     cfg.AccessTokenTTL,
        refreshTTL:    cfg.RefreshTokenTTL,
        idRepo:        idRepo,
    }, nil
}

// TokenPair is returned on login.
type TokenPair struct {
    AccessToken  string `json:"access_token"`
    RefreshToken string `json:"refresh_token"`
    ExpiresIn    int64  `json:"expires_in"`
}

// Login issues tokens for an account that identity.Service has authenticated.
func (s *Service) Login(account identity.Account) (TokenPair, error) {
    access, accessExp, err := SignHS256(account.ID, s.issuer, KindAccess, account.TokenVersion, s.accessTTL, s.accessSecret)
    if err != nil {
        return TokenPair{}, err
    }
    refresh, _, err := SignHS256(account.ID, s.issuer, KindRefresh, account.TokenVersion, s.refreshTTL, s.refreshSecret)
    if err != nil {
        return TokenPair{}, err
    }
    return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(time.Until(accessExp).Seconds())}, nil
}

// Refresh verifies the refresh token and returns a new access token if valid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
    claims, err := ParseAndVerifyHS256(refreshToken, s.issuer, KindRefresh, s.refreshSecret)
    if err != nil {
        return "", 0, err
    }
    account, err := s.current(ctx, claims)
    if err != nil {
        return "", 0, err
    }

    signed, _, err := SignHS256(account.ID, s.issuer, KindAccess, account.TokenVersion, s.accessTTL, s.accessSecret)
    if err != nil {
        return "", 0, err
    }
    return signed, int64(s.accessTTL.Seconds()), nil
}

// Authenticate verifies an access token and returns the account it belongs to.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (identity.Account, error) {
    claims, err := ParseAndVerifyHS256(accessToken, s.issuer, KindAccess, s.accessSecret)
    if err != nil {
        return identity.Account{}, err
    }
    return s.current(ctx, claims)
}

// Logout increments the token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, accountID string) error {
    account, err := s.idRepo.FindByID(ctx, accountID)
    if err != nil {
        return err
    }
    return s.idRepo.UpdateTokenVersion(ctx, account.ID, account.TokenVersion+1)
}

func (s *Service) current(ctx context.Context, claims *Claims) (identity.Account, error) {
    account, err := s.idRepo.FindByID(ctx, claims.Subject)
    if err != nil {
        if errors.Is(err, identity.ErrAccountNotFound) {
            return identity.Account{}, ErrInvalidToken
        }
        return identity.Account{}, err
    }
    if account.TokenVersion != claims.Version {
        return identity.Account{}, ErrTokenRevoked
    }
    return account, nil
}

func secretOrRandom(secret string) ([]byte, error) {
    if secret != "" {
        return []byte(secret), nil
    }
    buf := make([]byte, 32)
    if _, err := rand.Read(buf); err != nil {
        return nil, fmt.Errorf("generate signing key: %w", err)
    }
    return buf, nil
}
