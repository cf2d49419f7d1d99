package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Metrics records ingestion and query telemetry.
type Metrics struct {
	documentsIngested metric.Int64Counter
	chunksIndexed     metric.Int64Counter
	ingestDuration    metric.Float64Histogram
	queriesTotal      metric.Int64Counter
	queryDuration     metric.Float64Histogram
	logger            *zap.Logger
}

// NewMetrics creates pipeline metrics instruments.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	meter := otel.Meter("docqd.pipeline")
	m := &Metrics{logger: logger}

	var err error
	m.documentsIngested, err = meter.Int64Counter(
		"docqd.pipeline.documents_ingested_total",
		metric.WithDescription("Total documents ingested"),
	)
	if err != nil {
		logger.Warn("failed to create documents counter", zap.Error(err))
	}

	m.chunksIndexed, err = meter.Int64Counter(
		"docqd.pipeline.chunks_indexed_total",
		metric.WithDescription("Total chunks indexed"),
	)
	if err != nil {
		logger.Warn("failed to create chunks counter", zap.Error(err))
	}

	m.ingestDuration, err = meter.Float64Histogram(
		"docqd.pipeline.ingest_duration_seconds",
		metric.WithDescription("Time spent ingesting a document"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create ingest duration histogram", zap.Error(err))
	}

	m.queriesTotal, err = meter.Int64Counter(
		"docqd.pipeline.queries_total",
		metric.WithDescription("Total answered queries"),
	)
	if err != nil {
		logger.Warn("failed to create queries counter", zap.Error(err))
	}

	m.queryDuration, err = meter.Float64Histogram(
		"docqd.pipeline.query_duration_seconds",
		metric.WithDescription("Time spent answering a query"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create query duration histogram", zap.Error(err))
	}

	return m
}

// RecordIngest records one document ingestion.
func (m *Metrics) RecordIngest(ctx context.Context, duration time.Duration, chunks int, err error) {
	attrs := metric.WithAttributes(attribute.Bool("error", err != nil))
	if m.documentsIngested != nil {
		m.documentsIngested.Add(ctx, 1, attrs)
	}
	if m.chunksIndexed != nil && chunks > 0 {
		m.chunksIndexed.Add(ctx, int64(chunks))
	}
	if m.ingestDuration != nil {
		m.ingestDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

// RecordQuery records one answered query.
func (m *Metrics) RecordQuery(ctx context.Context, duration time.Duration, retrieved int, err error) {
	attrs := metric.WithAttributes(
		attribute.Bool("error", err != nil),
		attribute.Bool("empty", retrieved == 0),
	)
	if m.queriesTotal != nil {
		m.queriesTotal.Add(ctx, 1, attrs)
	}
	if m.queryDuration != nil {
		m.queryDuration.Record(ctx, duration.Seconds(), attrs)
	}
}
