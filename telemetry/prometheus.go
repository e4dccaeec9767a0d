package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// NewPrometheusMetrics builds a Metrics recorder that publishes through a
// dedicated Prometheus registry rather than the default global one, so a
// process that constructs more than one (server and worker in the same
// binary, or parallel tests) never collides on metric registration. It
// returns both the Metrics implementation domain code records against and
// the http.Handler /api/metrics serves the scrape from.
func NewPrometheusMetrics(namespace string) (Metrics, http.Handler, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithNamespace(namespace),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: build prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(namespace)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return NewOtelMetrics(meter), handler, nil
}
