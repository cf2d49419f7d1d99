package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Metrics records embedding generation telemetry.
type Metrics struct {
	generationDuration metric.Float64Histogram
	batchSize          metric.Int64Histogram
	errorsTotal        metric.Int64Counter
	logger             *zap.Logger
}

// NewMetrics creates embedding metrics instruments. Instrument creation
// failures are logged and leave the corresponding instrument nil.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	meter := otel.Meter("docqd.embeddings")
	m := &Metrics{logger: logger}

	var err error
	m.generationDuration, err = meter.Float64Histogram(
		"docqd.embedding.generation_duration_seconds",
		metric.WithDescription("Time spent generating embeddings"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create generation duration histogram", zap.Error(err))
	}

	m.batchSize, err = meter.Int64Histogram(
		"docqd.embedding.batch_size",
		metric.WithDescription("Number of texts per embedding request"),
	)
	if err != nil {
		logger.Warn("failed to create batch size histogram", zap.Error(err))
	}

	m.errorsTotal, err = meter.Int64Counter(
		"docqd.embedding.errors_total",
		metric.WithDescription("Total embedding generation errors"),
	)
	if err != nil {
		logger.Warn("failed to create errors counter", zap.Error(err))
	}

	return m
}

// RecordGeneration records one embedding call.
func (m *Metrics) RecordGeneration(ctx context.Context, model, operation string, duration time.Duration, batchSize int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)

	if m.generationDuration != nil {
		m.generationDuration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.batchSize != nil {
		m.batchSize.Record(ctx, int64(batchSize), attrs)
	}
	if err != nil && m.errorsTotal != nil {
		m.errorsTotal.Add(ctx, 1, attrs)
	}
}
