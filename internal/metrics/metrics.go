package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests by method, route, and response status.",
	}, []string{"method", "path", "status"})

	tokenOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_operations_total",
		Help: "Total ledger operations by operation and result.",
	}, []string{"operation", "result"})

	tokenOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "token_operation_duration_seconds",
		Help:    "Ledger operation duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	tokenTotalSupply = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "token_total_supply",
		Help: "Last observed total supply. Precision is lost above 2^53.",
	})
)

// Middleware records per-request counters. Paths are the matched route
// template so account ids do not explode label cardinality.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		httpRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		return err
	}
}

// Handler serves the Prometheus exposition format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// RecordOperation counts a ledger operation and observes its latency.
func RecordOperation(operation, result string, took time.Duration) {
	tokenOperationsTotal.WithLabelValues(operation, result).Inc()
	tokenOperationDuration.WithLabelValues(operation).Observe(took.Seconds())
}

// SetTotalSupply publishes the supply gauge.
func SetTotalSupply(v float64) {
	tokenTotalSupply.Set(v)
}
