package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Prefix is prepended to every metric name.
const Prefix = "coinwatch_"

var (
	// ProviderRequestsTotal counts upstream calls by provider, endpoint and outcome.
	// Cardinality: 2 providers × ~3 endpoints × ~4 statuses
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Prefix + "provider_requests_total",
			Help: "Total number of HTTP requests to price providers",
		},
		[]string{"provider", "endpoint", "status"},
	)

	// ProviderLatency tracks upstream latency per endpoint.
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: Prefix + "provider_request_latency_seconds",
			Help: "Price provider request latency",
		},
		[]string{"provider", "endpoint"},
	)

	// QuoteCacheTotal counts cache lookups by result (hit, miss, shared).
	QuoteCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Prefix + "quote_cache_lookups_total",
			Help: "Quote cache lookups by result",
		},
		[]string{"result"},
	)

	// ResolutionsTotal counts resolver outcomes (primary, fallback, absent).
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Prefix + "quote_resolutions_total",
			Help: "Quote resolutions by source",
		},
		[]string{"source"},
	)

	// AlertsTriggeredGauge is the number of rules triggered in the last pass.
	AlertsTriggeredGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: Prefix + "alerts_triggered",
			Help: "Rules whose condition held during the last evaluation pass",
		},
	)

	// NotificationsTotal counts notification deliveries by outcome.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Prefix + "notifications_total",
			Help: "Alert notifications by outcome",
		},
		[]string{"status"},
	)

	// PassDuration measures full refresh passes.
	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: Prefix + "pass_duration_seconds",
			Help: "Time taken by a scheduled refresh pass",
		},
	)
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
