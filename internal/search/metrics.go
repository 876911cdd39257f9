package search

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/jxr/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Outcome labels for the searches counter.
const (
	outcomeOK        = "ok"
	outcomeTruncated = "truncated"
	outcomeInvalid   = "invalid"
	outcomeEngine    = "engine_error"
	outcomeOutput    = "output_error"
	outcomeLock      = "lock_error"
)

// Metrics holds the search instruments.
type Metrics struct {
	searches   metric.Int64Counter
	duration   metric.Float64Histogram
	matches    metric.Int64Histogram
	gateWait   metric.Float64Histogram
	inProgress metric.Int64UpDownCounter
}

// NewMetrics creates the search instruments on meter. Instruments that fail
// to register are logged and skipped.
func NewMetrics(meter metric.Meter, logger *logging.Logger) *Metrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx := context.Background()
	m := &Metrics{}
	var err error

	m.searches, err = meter.Int64Counter(
		"jxr.search.requests_total",
		metric.WithDescription("Searches labeled by outcome (ok, truncated, invalid, engine_error, output_error, lock_error)."),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create searches counter", zap.Error(err))
	}

	m.duration, err = meter.Float64Histogram(
		"jxr.search.duration_seconds",
		metric.WithDescription("Wall time of a search including gate wait, engine run and aggregation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create search duration histogram", zap.Error(err))
	}

	m.matches, err = meter.Int64Histogram(
		"jxr.search.matches",
		metric.WithDescription("Retained matches per successful search."),
		metric.WithUnit("{match}"),
		metric.WithExplicitBucketBoundaries(0, 1, 10, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create matches histogram", zap.Error(err))
	}

	m.gateWait, err = meter.Float64Histogram(
		"jxr.search.gate_wait_seconds",
		metric.WithDescription("Time spent waiting for a free engine slot."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create gate wait histogram", zap.Error(err))
	}

	m.inProgress, err = meter.Int64UpDownCounter(
		"jxr.search.in_progress",
		metric.WithDescription("Searches currently holding or waiting for the gate."),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create in-progress gauge", zap.Error(err))
	}

	return m
}

func (m *Metrics) begin(ctx context.Context) {
	if m != nil && m.inProgress != nil {
		m.inProgress.Add(ctx, 1)
	}
}

func (m *Metrics) waited(ctx context.Context, d time.Duration) {
	if m != nil && m.gateWait != nil {
		m.gateWait.Record(ctx, d.Seconds())
	}
}

func (m *Metrics) end(ctx context.Context, outcome string, elapsed time.Duration, res *Result) {
	if m == nil {
		return
	}
	if m.inProgress != nil {
		m.inProgress.Add(ctx, -1)
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if m.searches != nil {
		m.searches.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
	if res != nil && m.matches != nil {
		m.matches.Record(ctx, int64(res.Matches))
	}
}
