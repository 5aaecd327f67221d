package refine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "refine",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "Total SDK operations by type and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "refine",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("refine: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("refine: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for SDK operations.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

// Operation outcomes used as the "status" label.
const (
	statusOK       = "ok"
	statusConflict = "conflict"
	statusNotFound = "not_found"
	statusRejected = "rejected"
	statusError    = "error"
)

// outcome classifies err. Rejections are caller mistakes (bad operation,
// undeclared facet, unknown property) that retrying will not fix.
func outcome(err error) string {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, ErrRevisionConflict):
		return statusConflict
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrProfileNotFound):
		return statusNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnknownFacet),
		errors.Is(err, ErrUnknownParameter), errors.Is(err, ErrInvalidOperator),
		errors.Is(err, ErrUnknownCommand), errors.Is(err, ErrInvalidCommand),
		errors.Is(err, ErrSessionExists):
		return statusRejected
	default:
		return statusError
	}
}

// observe records one operation: counters, duration and a log line. Only
// unexpected errors are logged above debug level.
func (o *observer) observe(op, sessionID string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	status := outcome(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if o.logger == nil {
		return
	}
	attrs := []any{"op", op, "status", status, "duration", dur}
	if sessionID != "" {
		attrs = append(attrs, "session_id", sessionID)
	}
	switch status {
	case statusOK:
		o.logger.Debug("operation completed", attrs...)
	case statusError:
		o.logger.Warn("operation failed", append(attrs, "error", err)...)
	default:
		o.logger.Debug("operation rejected", append(attrs, "error", err)...)
	}
}
