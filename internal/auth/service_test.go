package auth

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/congo-pay/token_ledger/internal/config"
    "github.com/congo-pay/token_ledger/internal/identity"
)

func testConfig() config.Config {
    return config.Config{
        AppName:         "TokenLedgerTest",
        JWTSecret:       "access-secret",
        RefreshSecret:   "refresh-secret",
        AccessTokenTTL:  time.Minute,
        RefreshTokenTTL: time.Hour,
    }
}

func newAccount(t *testing.T, repo identity.Repository, handle string) identity.Account {
    t.Helper()
    account, err := identity.NewService(repo).Register(context.Background(), identity.Credentials{Handle: handle, PIN: "1234"})
    if err != nil {
        t.Fatalf("register: %v", err)
    }
    return account
}

func TestLoginAndAuthenticate(t *testing.T) {
    repo := identity.NewMemoryRepository()
    svc, err := NewService(testConfig(), repo)
    if err != nil {
        t.Fatalf("new service: %v", err)
    }
    account := newAccount(t, repo, "alice")
    ctx := context.Background()

    pair, err := svc.Login(account)
    if err != nil {
        t.Fatalf("login: %v", err)
    }
    if pair.ExpiresIn <= 0 || pair.ExpiresIn > 60 {
        t.Fatalf("unexpected expires_in %d", pair.ExpiresIn)
    }

    got, err := svc.Authenticate(ctx, pair.AccessToken)
    if err != nil {
        t.Fatalf("authenticate: %v", err)
    }
    if got.ID != account.ID {
        t.Fatalf("expected account %s, got %s", account.ID, got.ID)
    }

    if _, err := svc.Authenticate(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
        t.Fatalf("refresh token must not authenticate requests, got %v", err)
    }
}

func TestRefreshAndLogout(t *testing.T) {
    repo := identity.NewMemoryRepository()
    svc, err := NewService(testConfig(), repo)
    if err != nil {
        t.Fatalf("new service: %v", err)
    }
    account := newAccount(t, repo, "bob")
    ctx := context.Background()

    pair, err := svc.Login(account)
    if err != nil {
        t.Fatalf("login: %v", err)
    }
    access, exp, err := svc.Refresh(ctx, pair.RefreshToken)
    if err != nil {
        t.Fatalf("refresh: %v", err)
    }
    if exp != 60 {
        t.Fatalf("expected 60s expiry, got %d", exp)
    }
    if _, err := svc.Authenticate(ctx, access); err != nil {
        t.Fatalf("refreshed token rejected: %v", err)
    }

    if err := svc.Logout(ctx, account.ID); err != nil {
        t.Fatalf("logout: %v", err)
    }
    if _, err := svc.Authenticate(ctx, access); !errors.Is(err, ErrTokenRevoked) {
        t.Fatalf("expected revoked access token, got %v", err)
    }
    if _, _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
        t.Fatalf("expected revoked refresh token, got %v", err)
    }
}

func TestParseRejectsForeignTokens(t *testing.T) {
    cfg := testConfig()

    token, _, err := SignHS256("acct", cfg.AppName, KindAccess, 0, time.Minute, []byte("other-secret"))
    if err != nil {
        t.Fatalf("sign: %v", err)
    }
    if _, err := ParseAndVerifyHS256(token, cfg.AppName, KindAccess, []byte(cfg.JWTSecret)); !errors.Is(err, ErrInvalidToken) {
        t.Fatalf("expected signature mismatch to be invalid, got %v", err)
    }

    token, _, err = SignHS256("acct", "someone-else", KindAccess, 0, time.Minute, []byte(cfg.JWTSecret))
    if err != nil {
        t.Fatalf("sign: %v", err)
    }
    if _, err := ParseAndVerifyHS256(token, cfg.AppName, KindAccess, []byte(cfg.JWTSecret)); !errors.Is(err, ErrInvalidToken) {
        t.Fatalf("expected foreign issuer to be invalid, got %v", err)
    }

    token, _, err = SignHS256("acct", cfg.AppName, KindAccess, 0, -time.Minute, []byte(cfg.JWTSecret))
    if err != nil {
        t.Fatalf("sign: %v", err)
    }
    if _, err := ParseAndVerifyHS256(token, cfg.AppName, KindAccess, []byte(cfg.JWTSecret)); !errors.Is(err, ErrInvalidToken) {
        t.Fatalf("expected expired token to be invalid, got %v", err)
    }

    if _, err := ParseAndVerifyHS256("not.a.jwt", cfg.AppName, KindAccess, []byte(cfg.JWTSecret)); !errors.Is(err, ErrInvalidToken) {
        t.Fatalf("expected garbage to be invalid, got %v", err)
    }
}

func TestNewServiceGeneratesDevSecrets(t *testing.T) {
    cfg := testConfig()
    cfg.JWTSecret = ""
    cfg.RefreshSecret = ""
    repo := identity.NewMemoryRepository()
    svc, err := NewService(cfg, repo)
    if err != nil {
        t.Fatalf("new service: %v", err)
    }
    if len(svc.accessSecret) != 32 || string(svc.accessSecret) == string(svc.refreshSecret) {
        t.Fatalf("expected distinct random secrets")
    }

    account := newAccount(t, repo, "carol")
    pair, err := svc.Login(account)
    if err != nil {
        t.Fatalf("login: %v", err)
    }
    if _, err := svc.Authenticate(context.Background(), pair.AccessToken); err != nil {
        t.Fatalf("authenticate: %v", err)
    }
}
