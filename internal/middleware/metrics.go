package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

var (
	httpMetrics     *fiberprometheus.FiberPrometheus
	httpMetricsOnce sync.Once
)

// InitMetrics registers the HTTP request metrics collectors once per process
// and exposes them at /metrics on app.
func InitMetrics(app *fiber.App, serviceName string) fiber.Handler {
	httpMetricsOnce.Do(func() {
		httpMetrics = fiberprometheus.New(serviceName)
	})
	httpMetrics.RegisterAt(app, "/metrics")
	return httpMetrics.Middleware
}
