package auth

import (
    "errors"
    "fmt"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/google/uuid"
)

// Token kinds carried in the "knd" claim.
const (
    KindAccess  = "access"
    KindRefresh = "refresh"
)

var (
    // ErrInvalidToken covers malformed, expired, mis-signed or wrong-kind tokens.
    ErrInvalidToken = errors.New("invalid token")
    // ErrTokenRevoked means the token predates the account's latest logout.
    ErrTokenRevoked = errors.New("token revoked")
)

// Claims are the JWT claims for access and refresh tokens. Subject is the
// account id, which is also the holder's ledger account.
type Claims struct {
    jwt.RegisteredClaims
    Version int    `json:"ver"`
    Kind    string `json:"knd"`
}

// SignHS256 creates a compact JWT for subject valid for ttl.
func SignHS256(subject, issuer, kind string, version int, ttl time.Duration, secret []byte) (string, time.Time, error) {
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := Claims{
        RegisteredClaims: jwt.RegisteredClaims{
            Issuer:    issuer,
            Subject:   subject,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
            ID:        uuid.New().String(),
        },
        Version: version,
        Kind:    kind,
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
    if err != nil {
        return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
    }
    return signed, exp, nil
}

// ParseAndVerifyHS256 verifies signature, expiry, issuer and kind and returns
// the claims.
func ParseAndVerifyHS256(token, issuer, kind string, secret []byte) (*Claims, error) {
    parsed, err := jwt.ParseWithClaims(
        token,
        &Claims{},
        func(tok *jwt.Token) (any, error) {
            if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
                return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
            }
            return secret, nil
        },
        jwt.WithIssuer(issuer),
        jwt.WithExpirationRequired(),
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
    )
    if err != nil {
        return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
    }
    claims, ok := parsed.Claims.(*Claims)
    if !ok || !parsed.Valid {
        return nil, ErrInvalidToken
    }
    if claims.Kind != kind {
        return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, kind, claims.Kind)
    }
    if claims.Subject == "" {
        return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
    }
    return claims, nil
}
