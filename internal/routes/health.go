package routes

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/gofiber/fiber/v2"

    "github.com/congo-pay/token_ledger/internal/ledger"
)

// RegisterHealthRoutes adds liveness/readiness style endpoints.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
    app.Get("/healthz", func(c *fiber.Ctx) error {
        dbStatus := "ok"
        redisStatus := "ok"
        storeStatus := "ok"

        ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
        defer cancel()
        if d.DB != nil {
            if err := d.DB.Ping(ctx); err != nil {
                dbStatus = err.Error()
            }
        } else {
            dbStatus = "disabled"
        }
        if d.Cache != nil {
            if err := d.Cache.Ping(ctx).Err(); err != nil {
                redisStatus = err.Error()
            }
        } else {
            redisStatus = "disabled"
        }
        if _, err := ledger.Attach(d.Store).Info(ctx); err != nil {
            if errors.Is(err, ledger.ErrNotDeployed) {
                storeStatus = "not_deployed"
            } else {
                storeStatus = err.Error()
            }
        }

        status := http.StatusOK
        if (dbStatus != "ok" && dbStatus != "disabled") ||
            (redisStatus != "ok" && redisStatus != "disabled") ||
            (storeStatus != "ok" && storeStatus != "not_deployed") {
            status = http.StatusServiceUnavailable
        }
        return c.Status(status).JSON(fiber.Map{
            "status": fiber.Map{
                "postgres": dbStatus,
                "redis":    redisStatus,
                "store":    storeStatus,
                "driver":   d.Cfg.StoreDriver,
            },
            "timestamp": time.Now().UTC().Format(time.RFC3339Nano),
        })
    })
}
