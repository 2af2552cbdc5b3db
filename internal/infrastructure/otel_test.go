package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportexport/internal/config"
)

func testOTelConfig() *OTelConfig {
	cfg := DefaultOTelConfig()
	cfg.Registry = promclient.NewRegistry()
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitializeOTel(t *testing.T) {
	providers, err := InitializeOTel(testOTelConfig(), quietLogger())
	require.NoError(t, err)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestInitializeOTel_UnsupportedExporters(t *testing.T) {
	cfg := testOTelConfig()
	cfg.TraceExporter = "zipkin"
	_, err := InitializeOTel(cfg, quietLogger())
	assert.Error(t, err)

	cfg = testOTelConfig()
	cfg.MetricExporter = "statsd"
	_, err = InitializeOTel(cfg, quietLogger())
	assert.Error(t, err)
}

func TestOTelConfigFrom(t *testing.T) {
	cfg := OTelConfigFrom(config.TelemetryConfig{TraceExporter: "stdout", SampleRatio: 0.5})
	assert.Equal(t, "stdout", cfg.TraceExporter)
	assert.Equal(t, "prometheus", cfg.MetricExporter)
	assert.Equal(t, 0.5, cfg.SampleRatio)
	assert.Equal(t, ServiceName, cfg.ServiceName)
}

func TestTraceIDFromContext(t *testing.T) {
	providers, err := InitializeOTel(testOTelConfig(), quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	assert.Empty(t, TraceIDFromContext(context.Background()))

	ctx, span := providers.Tracer.Start(context.Background(), "test-operation")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	assert.Len(t, traceID, 32)
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)

	// helpers must not panic on a recording span
	AddSpanEvent(ctx, "checkpoint")
	RecordError(ctx, io.ErrUnexpectedEOF)
}

func TestExportMetrics_Prometheus(t *testing.T) {
	providers, err := InitializeOTel(testOTelConfig(), quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateExportMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordExport(ctx, "csv", "single", "success", 20*time.Millisecond, 512)
	metrics.RecordExport(ctx, "pdf", "combined", "failure", time.Second, 0)
	metrics.TrackActive(ctx, 1, "csv")
	metrics.TrackQueued(ctx, 2)
	metrics.RecordHTTPRequest(ctx, http.MethodPost, "/api/exports", http.StatusOK, time.Millisecond)

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "exports_total")
	assert.Contains(t, text, `outcome="failure"`)
	assert.Contains(t, text, "export_duration_seconds")
	assert.Contains(t, text, "export_bytes")
	assert.Contains(t, text, "http_requests_total")
}

func TestExportMetrics_NilIsNoop(t *testing.T) {
	var m *ExportMetrics
	assert.NotPanics(t, func() {
		m.RecordExport(context.Background(), "csv", "single", "success", time.Second, 10)
		m.TrackActive(context.Background(), 1, "csv")
		m.TrackQueued(context.Background(), 1)
		m.RecordHTTPRequest(context.Background(), "GET", "/", 200, time.Second)
	})
}
