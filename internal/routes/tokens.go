package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/token_ledger/internal/tokens"
)

// RegisterTokenRoutes wires token endpoints. Reads are public; deploy,
// transfer and mint run behind guards, which must authenticate the caller.
func RegisterTokenRoutes(r fiber.Router, h *tokens.Handler, guards ...fiber.Handler) {
	group := r.Group("/token")
	group.Get("/", h.Info)
	group.Get("/supply", h.TotalSupply)
	group.Get("/balances/:account", h.BalanceOf)

	chain := func(handler fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, guards...), handler)
	}
	group.Post("/", chain(h.Deploy)...)
	group.Post("/transfer", chain(h.Transfer)...)
	group.Post("/mint", chain(h.Mint)...)
}
