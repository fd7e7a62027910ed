package middleware

import (
    "net/http"
    "strings"

    "github.com/gofiber/fiber/v2"

    "github.com/congo-pay/token_ledger/internal/auth"
    "github.com/congo-pay/token_ledger/internal/ledger"
)

const callerLocal = "ledger_caller"

// JWTAuth returns a middleware that validates JWT access tokens and checks token version.
// On success the authenticated account is exposed as a ledger.Caller.
func JWTAuth(svc *auth.Service) fiber.Handler {
    return func(c *fiber.Ctx) error {
        authz := c.Get(fiber.HeaderAuthorization)
        if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
            return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
        }
        tokenStr := strings.TrimSpace(authz[len("Bearer "):])

        account, err := svc.Authenticate(c.UserContext(), tokenStr)
        if err != nil {
            return fiber.NewError(http.StatusUnauthorized, "invalid token")
        }

        c.Locals(auth.LocalAccountID, account.ID)
        c.Locals(callerLocal, ledger.AuthenticatedCaller(ledger.AccountID(account.ID)))
        return c.Next()
    }
}

// CallerFrom returns the caller established by JWTAuth.
func CallerFrom(c *fiber.Ctx) (ledger.Caller, bool) {
    caller, ok := c.Locals(callerLocal).(ledger.Caller)
    return caller, ok
}
