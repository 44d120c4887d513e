package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/chartalabs/chartad/internal/http"

// Metrics holds the HTTP and streaming instruments.
type Metrics struct {
	meter          metric.Meter
	logger         *zap.Logger
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	activeRequests metric.Int64UpDownCounter
	deltasTotal    metric.Int64Counter
	retrievedTotal metric.Int64Counter
}

// NewMetrics creates the instrument set on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.requestsTotal, err = m.meter.Int64Counter(
		"chartad.http.requests_total",
		metric.WithDescription("Total HTTP requests labeled by method, endpoint, and status code."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create requests counter", zap.Error(err))
	}

	m.requestDur, err = m.meter.Float64Histogram(
		"chartad.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds, labeled by method, endpoint, and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.activeRequests, err = m.meter.Int64UpDownCounter(
		"chartad.http.active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create active requests gauge", zap.Error(err))
	}

	m.deltasTotal, err = m.meter.Int64Counter(
		"chartad.stream.deltas_total",
		metric.WithDescription("Total text delta frames streamed to clients"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		m.logger.Warn("failed to create deltas counter", zap.Error(err))
	}

	m.retrievedTotal, err = m.meter.Int64Counter(
		"chartad.retrieval.sections_total",
		metric.WithDescription("Total corpus sections retrieved as grounding context"),
		metric.WithUnit("{section}"),
	)
	if err != nil {
		m.logger.Warn("failed to create retrieval counter", zap.Error(err))
	}
}

// Middleware returns an Echo middleware recording request metrics.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()

			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, 1)
			}

			err := next(c)

			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("endpoint", c.Path()),
				attribute.Int("status", c.Response().Status),
			)
			if m.requestsTotal != nil {
				m.requestsTotal.Add(ctx, 1, attrs)
			}
			if m.requestDur != nil {
				m.requestDur.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, -1)
			}

			return err
		}
	}
}

// RecordDelta counts one streamed text delta frame.
func (m *Metrics) RecordDelta(c echo.Context) {
	if m.deltasTotal != nil {
		m.deltasTotal.Add(c.Request().Context(), 1)
	}
}

// RecordRetrieved counts sections retrieved for one request.
func (m *Metrics) RecordRetrieved(c echo.Context, n int) {
	if m.retrievedTotal != nil && n > 0 {
		m.retrievedTotal.Add(c.Request().Context(), int64(n))
	}
}
