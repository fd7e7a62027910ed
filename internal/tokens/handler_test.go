package tokens

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/token_ledger/internal/auth"
	"github.com/congo-pay/token_ledger/internal/config"
	"github.com/congo-pay/token_ledger/internal/identity"
	"github.com/congo-pay/token_ledger/internal/ledger"
	"github.com/congo-pay/token_ledger/internal/logging"
	"github.com/congo-pay/token_ledger/internal/middleware"
)

type testEnv struct {
	app    *fiber.App
	tokens map[string]string
	ids    map[string]string
}

func setupTestApp(t *testing.T, handles ...string) *testEnv {
	t.Helper()
	repo := identity.NewMemoryRepository()
	ids := identity.NewService(repo)
	authSvc, err := auth.NewService(config.Config{
		AppName:         "TokenLedgerTest",
		JWTSecret:       "access",
		RefreshSecret:   "refresh",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}, repo)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}

	env := &testEnv{tokens: map[string]string{}, ids: map[string]string{}}
	for _, handle := range handles {
		account, err := ids.Register(context.Background(), identity.Credentials{Handle: handle, PIN: "1234"})
		if err != nil {
			t.Fatalf("register %s: %v", handle, err)
		}
		pair, err := authSvc.Login(account)
		if err != nil {
			t.Fatalf("login %s: %v", handle, err)
		}
		env.tokens[handle] = pair.AccessToken
		env.ids[handle] = account.ID
	}

	h := NewHandler(NewService(ledger.Attach(ledger.NewInMemory()), nil, logging.Discard()))
	app := fiber.New()
	group := app.Group("/api/v1/token")
	group.Get("/", h.Info)
	group.Get("/supply", h.TotalSupply)
	group.Get("/balances/:account", h.BalanceOf)
	protected := group.Group("", middleware.JWTAuth(authSvc))
	protected.Post("/", h.Deploy)
	protected.Post("/transfer", h.Transfer)
	protected.Post("/mint", h.Mint)
	env.app = app
	return env
}

func (e *testEnv) do(t *testing.T, method, path, handle, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if handle != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+e.tokens[handle])
	}
	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	decoded := map[string]any{}
	if resp.Header.Get(fiber.HeaderContentType) == fiber.MIMEApplicationJSON {
		if err := json.Unmarshal(payload, &decoded); err != nil {
			t.Fatalf("decode %s: %v", payload, err)
		}
	}
	return resp.StatusCode, decoded
}

func TestHandlerTransferFlow(t *testing.T) {
	env := setupTestApp(t, "alice", "bob")
	alice, bob := env.ids["alice"], env.ids["bob"]

	if status, _ := env.do(t, fiber.MethodGet, "/api/v1/token/supply", "", ""); status != fiber.StatusNotFound {
		t.Fatalf("expected 404 before deploy, got %d", status)
	}

	status, body := env.do(t, fiber.MethodPost, "/api/v1/token", "alice", `{"initial_supply":"1000"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("deploy: expected 201, got %d", status)
	}
	if body["owner"] != alice || body["total_supply"] != "1000" {
		t.Fatalf("unexpected deploy body %v", body)
	}

	if status, _ := env.do(t, fiber.MethodPost, "/api/v1/token", "bob", `{"initial_supply":"1"}`); status != fiber.StatusConflict {
		t.Fatalf("second deploy: expected 409, got %d", status)
	}

	status, _ = env.do(t, fiber.MethodPost, "/api/v1/token/transfer", "alice", `{"to":"`+bob+`","value":"250"}`)
	if status != fiber.StatusOK {
		t.Fatalf("transfer: expected 200, got %d", status)
	}

	status, body = env.do(t, fiber.MethodGet, "/api/v1/token/balances/"+bob, "", "")
	if status != fiber.StatusOK || body["balance"] != "250" {
		t.Fatalf("unexpected bob balance %d %v", status, body)
	}
	status, body = env.do(t, fiber.MethodGet, "/api/v1/token/balances/"+alice, "", "")
	if status != fiber.StatusOK || body["balance"] != "750" {
		t.Fatalf("unexpected alice balance %d %v", status, body)
	}

	if status, _ := env.do(t, fiber.MethodPost, "/api/v1/token/transfer", "bob", `{"to":"`+alice+`","value":"251"}`); status != fiber.StatusUnprocessableEntity {
		t.Fatalf("overdraft: expected 422, got %d", status)
	}
}

func TestHandlerMintRequiresOwner(t *testing.T) {
	env := setupTestApp(t, "alice", "bob")
	bob := env.ids["bob"]

	if status, _ := env.do(t, fiber.MethodPost, "/api/v1/token", "alice", ""); status != fiber.StatusCreated {
		t.Fatalf("deploy: expected 201, got %d", status)
	}
	if status, _ := env.do(t, fiber.MethodPost, "/api/v1/token/mint", "bob", `{"to":"`+bob+`","amount":"5"}`); status != fiber.StatusForbidden {
		t.Fatalf("mint by non-owner: expected 403, got %d", status)
	}
	if status, _ := env.do(t, fiber.MethodPost, "/api/v1/token/mint", "alice", `{"to":"`+bob+`","amount":"5"}`); status != fiber.StatusOK {
		t.Fatalf("mint: expected 200, got %d", status)
	}

	status, body := env.do(t, fiber.MethodGet, "/api/v1/token", "", "")
	if status != fiber.StatusOK || body["total_supply"] != "5" || body["owner"] != env.ids["alice"] {
		t.Fatalf("unexpected info %d %v", status, body)
	}

	max := ledger.MaxBalance.String()
	if status, _ := env.do(t, fiber.MethodPost, "/api/v1/token/mint", "alice", `{"to":"`+bob+`","amount":"`+max+`"}`); status != fiber.StatusUnprocessableEntity {
		t.Fatalf("overflowing mint: expected 422, got %d", status)
	}
}

func TestHandlerRejectsBadInput(t *testing.T) {
	env := setupTestApp(t, "alice")
	if status, _ := env.do(t, fiber.MethodPost, "/api/v1/token", "alice", `{"initial_supply":"10"}`); status != fiber.StatusCreated {
		t.Fatalf("deploy: expected 201, got %d", status)
	}

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"negative", `{"to":"bob","value":"-1"}`, fiber.StatusBadRequest},
		{"fraction", `{"to":"bob","value":"1.5"}`, fiber.StatusBadRequest},
		{"missing recipient", `{"value":"1"}`, fiber.StatusBadRequest},
		{"too large", `{"to":"bob","value":"340282366920938463463374607431768211456"}`, fiber.StatusUnprocessableEntity},
		{"malformed", `{"to":`, fiber.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if status, _ := env.do(t, fiber.MethodPost, "/api/v1/token/transfer", "alice", tc.body); status != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, status)
			}
		})
	}

	if status, _ := env.do(t, fiber.MethodPost, "/api/v1/token/transfer", "", `{"to":"bob","value":"1"}`); status != fiber.StatusUnauthorized {
		t.Fatalf("anonymous transfer: expected 401, got %d", status)
	}
}
