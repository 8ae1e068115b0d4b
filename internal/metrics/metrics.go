// Package metrics exposes Prometheus collectors for HTTP traffic and the
// payment workflow.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ordersPlacedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Orders placed, by payment method and result",
		},
		[]string{"method", "result"},
	)

	paymentConfirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_confirmations_total",
			Help: "Payment confirmation outcomes, by source (poll, retry, webhook)",
		},
		[]string{"source", "outcome"},
	)

	webhookCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_webhook_callbacks_total",
			Help: "Gateway callbacks received, by handling result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(ordersPlacedTotal)
	prometheus.MustRegister(paymentConfirmationsTotal)
	prometheus.MustRegister(webhookCallbacksTotal)
}

// Middleware records request counts and latency.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		httpRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

func RecordOrderPlaced(method, result string) {
	ordersPlacedTotal.WithLabelValues(method, result).Inc()
}

func RecordPaymentConfirmation(source, outcome string) {
	paymentConfirmationsTotal.WithLabelValues(source, outcome).Inc()
}

func RecordWebhook(result string) {
	webhookCallbacksTotal.WithLabelValues(result).Inc()
}
