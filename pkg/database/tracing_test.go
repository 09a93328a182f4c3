package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	return exporter
}

func spanAttrs(s tracetest.SpanStub) map[string]string {
	out := make(map[string]string)
	for _, a := range s.Attributes {
		out[string(a.Key)] = a.Value.Emit()
	}
	return out
}

func TestTraceQuery_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), SystemRedis, "ConsumeSession", "GETDEL")
	end(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.ConsumeSession", spans[0].Name)
	attrs := spanAttrs(spans[0])
	assert.Equal(t, "redis", attrs["db.system"])
	assert.Equal(t, "GETDEL", attrs["db.statement"])
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
}

func TestTraceQuery_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), SystemPostgres, "CreateUser", "INSERT INTO users")
	end(errors.New("duplicate key"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "duplicate key", spans[0].Status.Description)
}

func TestTraceQuery_SlowQueryLogged(t *testing.T) {
	var buf bytes.Buffer
	SetSlowQueryLogging(time.Nanosecond, slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), SystemPostgres, "GetUserByEmail", "SELECT")
	time.Sleep(time.Millisecond)
	end(nil)

	assert.Contains(t, buf.String(), "slow query detected")
	assert.Contains(t, buf.String(), "GetUserByEmail")
}

func TestTraceQuery_SlowQueryDisabled(t *testing.T) {
	var buf bytes.Buffer
	SetSlowQueryLogging(0, slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), SystemPostgres, "GetUserByID", "SELECT")
	end(nil)

	assert.Empty(t, buf.String())
}
