package metrics

import (
	"log"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	LoginAttemptsTotal    metric.Int64Counter
	TokenValidationsTotal metric.Int64Counter
	GateRejectionsTotal   metric.Int64Counter
	RegistrationsTotal    metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// Setup wires the Prometheus exporter into the global otel MeterProvider and
// returns the handler to mount at /metrics. Call once at startup, before
// InitAppMetrics.
func Setup() (http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)
	return promhttp.Handler(), nil
}

// InitAppMetrics initializes the global metric instruments exactly once.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("voz-urbana-api")
		var err error
		m := &AppMetrics{}

		m.LoginAttemptsTotal, err = meter.Int64Counter(
			"auth_login_attempts_total",
			metric.WithDescription("Total number of login attempts"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_login_attempts_total: %v", err)
		}

		m.TokenValidationsTotal, err = meter.Int64Counter(
			"auth_token_validations_total",
			metric.WithDescription("Total number of access token validations"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_token_validations_total: %v", err)
		}

		m.GateRejectionsTotal, err = meter.Int64Counter(
			"auth_gate_rejections_total",
			metric.WithDescription("Total number of requests rejected by the authentication gate"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_gate_rejections_total: %v", err)
		}

		m.RegistrationsTotal, err = meter.Int64Counter(
			"auth_registrations_total",
			metric.WithDescription("Total number of identity registrations"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_registrations_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance. InitAppMetrics
// must have been called first; Get falls back to initializing with the
// default (no-op) provider so tests don't have to care.
func Get() *AppMetrics {
	if appMetrics == nil {
		InitAppMetrics()
	}
	return appMetrics
}
