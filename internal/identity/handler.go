package identity

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type registerRequest struct {
	Handle string `json:"handle"`
	PIN    string `json:"pin"`
}

type accountResponse struct {
	AccountID string `json:"account_id"`
	Handle    string `json:"handle"`
}

// Register handles account onboarding. The returned account_id is the
// holder's ledger account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	account, err := h.service.Register(c.UserContext(), Credentials{Handle: req.Handle, PIN: req.PIN})
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountExists):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrWeakPIN), errors.Is(err, ErrInvalidHandle):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, "registration failed")
		}
	}
	if h.logger != nil {
		h.logger.Info("identity.register completed",
			slog.String("account_id", account.ID),
			slog.String("handle", account.Handle),
		)
	}
	return c.Status(http.StatusCreated).JSON(accountResponse{AccountID: account.ID, Handle: account.Handle})
}
