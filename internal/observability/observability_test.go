package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"supermart-dashboard/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "", GetRequestID(context.Background()))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LoggerConfig{Level: "info", Format: "json"})

	ctx := WithRequestID(context.Background(), "req-7")
	RequestLogger(ctx, logger).Info("bundle served")
	RequestLogger(context.Background(), logger).Debug("dropped below level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "bundle served", entry["msg"])
	assert.Equal(t, "req-7", entry["request_id"])
	assert.Equal(t, "supermart-dashboard", entry["service"])
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "source")
}

func TestInitTracing(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = InitTracing(context.Background(), config.TracingConfig{Enabled: true, Exporter: "jaeger"})
	assert.Error(t, err)
}

func TestSpan_RecordsTagsAndErrors(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	ctx, span := StartSpan(context.Background(), "pipeline.rebuild")
	assert.NotEmpty(t, TraceID(ctx))
	span.SetTag("fingerprint", "abc")
	span.SetError(errors.New("fit failed"))
	span.Finish()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "pipeline.rebuild", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "fit failed", spans[0].Status.Description)
	require.Len(t, spans[0].Attributes, 1)
	assert.Equal(t, "abc", spans[0].Attributes[0].Value.AsString())
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Equal(t, "", TraceID(context.Background()))
}

func TestMetrics_Recorded(t *testing.T) {
	m := DefaultMetrics()
	assert.Same(t, m, DefaultMetrics())

	m.RecordPipelineRun("ok")
	m.RecordCache("hit")
	m.RecordRows(144, 2)
	m.RecordRequest("GET", "/api/dashboard", "200", 0.01)
	m.RecordStage("load", 0.2)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
		if f.GetName() == "supermart_rows_loaded" {
			assert.Equal(t, 144.0, f.GetMetric()[0].GetGauge().GetValue())
		}
	}
	for _, want := range []string{
		"supermart_pipeline_runs_total",
		"supermart_pipeline_stage_seconds",
		"supermart_bundle_cache_total",
		"supermart_rows_dropped",
		"supermart_http_requests_total",
		"supermart_http_request_duration_seconds",
	} {
		assert.True(t, names[want], want)
	}
}
