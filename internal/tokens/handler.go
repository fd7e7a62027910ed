package tokens

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/token_ledger/internal/ledger"
	"github.com/congo-pay/token_ledger/internal/middleware"
)

// Handler exposes token endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a token handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type deployRequest struct {
	InitialSupply ledger.Balance `json:"initial_supply"`
}

type transferRequest struct {
	To    ledger.AccountID `json:"to"`
	Value ledger.Balance   `json:"value"`
}

type mintRequest struct {
	To     ledger.AccountID `json:"to"`
	Amount ledger.Balance   `json:"amount"`
}

type infoResponse struct {
	Owner       ledger.AccountID `json:"owner"`
	TotalSupply ledger.Balance   `json:"total_supply"`
}

// Deploy creates the token with the caller as owner.
func (h *Handler) Deploy(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req deployRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return bodyError(err)
		}
	}

	meta, err := h.service.Deploy(c.UserContext(), caller, req.InitialSupply)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(infoResponse{Owner: meta.Owner, TotalSupply: meta.TotalSupply})
}

// Info returns the owner and total supply.
func (h *Handler) Info(c *fiber.Ctx) error {
	meta, err := h.service.Info(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(infoResponse{Owner: meta.Owner, TotalSupply: meta.TotalSupply})
}

// TotalSupply returns the number of units in existence.
func (h *Handler) TotalSupply(c *fiber.Ctx) error {
	supply, err := h.service.TotalSupply(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(fiber.Map{"total_supply": supply})
}

// BalanceOf returns the balance of the account in the path.
func (h *Handler) BalanceOf(c *fiber.Ctx) error {
	account := ledger.AccountID(c.Params("account"))
	if !account.Valid() {
		return fiber.NewError(http.StatusBadRequest, "account is required")
	}
	balance, err := h.service.BalanceOf(c.UserContext(), account)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(fiber.Map{"account": account, "balance": balance})
}

// Transfer moves tokens from the caller to another account.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(err)
	}

	if err := h.service.Transfer(c.UserContext(), caller, req.To, req.Value); err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status": "ok",
		"from":   caller.ID(),
		"to":     req.To,
		"value":  req.Value,
	})
}

// Mint creates new tokens. Only the owner may call it.
func (h *Handler) Mint(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req mintRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(err)
	}

	if err := h.service.Mint(c.UserContext(), caller, req.To, req.Amount); err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status": "ok",
		"to":     req.To,
		"amount": req.Amount,
	})
}

func bodyError(err error) error {
	if errors.Is(err, ledger.ErrOverflow) {
		return fiber.NewError(http.StatusUnprocessableEntity, "amount exceeds 128 bits")
	}
	return fiber.NewError(http.StatusBadRequest, err.Error())
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return fiber.NewError(http.StatusUnprocessableEntity, "insufficient balance")
	case errors.Is(err, ledger.ErrOverflow):
		return fiber.NewError(http.StatusUnprocessableEntity, "arithmetic overflow")
	case errors.Is(err, ledger.ErrNotOwner):
		return fiber.NewError(http.StatusForbidden, "caller is not the owner")
	case errors.Is(err, ledger.ErrNotDeployed):
		return fiber.NewError(http.StatusNotFound, "token not deployed")
	case errors.Is(err, ledger.ErrAlreadyDeployed):
		return fiber.NewError(http.StatusConflict, "token already deployed")
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ErrInvalidAccount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, "ledger unavailable")
	}
}
