package routes

import (
    "context"
    "fmt"
    "log/slog"
    "net/http"
    "time"

    "github.com/gofiber/fiber/v2"
    "github.com/gofiber/fiber/v2/middleware/recover"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/redis/go-redis/v9"

    "github.com/congo-pay/token_ledger/internal/auth"
    "github.com/congo-pay/token_ledger/internal/config"
    "github.com/congo-pay/token_ledger/internal/identity"
    "github.com/congo-pay/token_ledger/internal/ledger"
    "github.com/congo-pay/token_ledger/internal/metrics"
    "github.com/congo-pay/token_ledger/internal/middleware"
    "github.com/congo-pay/token_ledger/internal/notification"
    "github.com/congo-pay/token_ledger/internal/tokens"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
    Cfg    config.Config
    DB     *pgxpool.Pool
    Cache  *redis.Client
    Store  ledger.Store
    Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
    if d.Store == nil {
        return fmt.Errorf("ledger store is required")
    }
    // Enforce Redis presence outside of dev, even though config also checks.
    if !d.Cfg.IsDev() && d.Cache == nil {
        return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
    }

    // Middlewares
    app.Use(recover.New())
    app.Use(middleware.RequestID())
    app.Use(middleware.Audit(d.Logger))
    app.Use(metrics.Middleware())

    // Health and metrics
    RegisterHealthRoutes(app, d)
    app.Get("/metrics", metrics.Handler())

    // Services and handlers
    var identityRepo identity.Repository
    if d.DB != nil {
        pgRepo := identity.NewPostgresRepository(d.DB)
        ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        if err := pgRepo.Migrate(ctx); err != nil {
            return fmt.Errorf("migrate identity: %w", err)
        }
        identityRepo = pgRepo
    } else {
        identityRepo = identity.NewMemoryRepository()
    }
    identitySvc := identity.NewService(identityRepo)
    authSvc, err := auth.NewService(d.Cfg, identityRepo)
    if err != nil {
        return err
    }
    if d.Cfg.JWTSecret == "" {
        d.Logger.Warn("JWT_SECRET not set; using a per-process random key")
    }

    notifier := notification.New(d.Cache, d.Logger)
    tokenSvc := tokens.NewService(ledger.Attach(d.Store), notifier, d.Logger)

    identityHandler := identity.NewHandler(identitySvc, d.Logger)
    authHandler := auth.NewHandler(identitySvc, authSvc)
    tokenHandler := tokens.NewHandler(tokenSvc)

    // API routes
    api := app.Group("/api/v1")
    api.Get("/ping", func(c *fiber.Ctx) error {
        return c.Status(http.StatusOK).JSON(fiber.Map{
            "status":     "ok",
            "request_id": middleware.RequestIDFrom(c),
            "timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
        })
    })

    jwtmw := middleware.JWTAuth(authSvc)
    mutation := []fiber.Handler{
        jwtmw,
        middleware.CallerRateLimit(d.Cfg.MutationRateLimit, d.Cfg.MutationBurst),
        middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
    }

    // Public routes
    RegisterIdentityRoutes(api, identityHandler)
    RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, 5), jwtmw)

    // Token routes; mutations run behind the chain above
    RegisterTokenRoutes(api, tokenHandler, mutation...)

    // Protected routes
    protected := api.Group("", jwtmw)
    RegisterMeRoute(protected, identitySvc, tokenSvc)

    return nil
}
