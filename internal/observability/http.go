package observability

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// MetricsOptions configures the scrape endpoint.
type MetricsOptions struct {
	// Gatherer defaults to the process-wide registry holding the chat collectors.
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber. Collector
// failures are logged and the remaining metrics are still served.
func MetricsHandler(opts MetricsOptions) fiber.Handler {
	gatherer := opts.Gatherer
	if gatherer == nil {
		RegisterMetrics()
		gatherer = prometheus.DefaultGatherer
	}

	logger := opts.Logger.With().Str("component", "metrics").Logger()
	return adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog:          scrapeErrorLog{logger: logger},
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	}))
}

type scrapeErrorLog struct {
	logger zerolog.Logger
}

func (l scrapeErrorLog) Println(v ...interface{}) {
	l.logger.Warn().Msg(fmt.Sprint(v...))
}
