package routes

import (
    "errors"
    "net/http"

    "github.com/gofiber/fiber/v2"

    "github.com/congo-pay/token_ledger/internal/identity"
    "github.com/congo-pay/token_ledger/internal/ledger"
    "github.com/congo-pay/token_ledger/internal/middleware"
    "github.com/congo-pay/token_ledger/internal/tokens"
)

// RegisterMeRoute exposes the current account's profile and token balance.
func RegisterMeRoute(r fiber.Router, ids *identity.Service, svc *tokens.Service) {
    r.Get("/me", func(c *fiber.Ctx) error {
        caller, ok := middleware.CallerFrom(c)
        if !ok {
            return fiber.NewError(http.StatusUnauthorized, "unauthorized")
        }
        account, err := ids.Get(c.UserContext(), caller.ID().String())
        if err != nil {
            return fiber.NewError(http.StatusNotFound, "account not found")
        }

        profile := fiber.Map{
            "account_id":    account.ID,
            "handle":        account.Handle,
            "token_version": account.TokenVersion,
            "created_at":    account.CreatedAt,
            "last_login":    account.LastLogin,
        }
        balance, err := svc.BalanceOf(c.UserContext(), caller.ID())
        switch {
        case err == nil:
            profile["balance"] = balance
        case errors.Is(err, ledger.ErrNotDeployed):
            profile["balance"] = nil
        default:
            return fiber.NewError(http.StatusInternalServerError, "ledger unavailable")
        }
        return c.Status(http.StatusOK).JSON(profile)
    })
}
