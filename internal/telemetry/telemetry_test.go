package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "warden", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestNoOpTracer(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "test.operation")
	require.NotNil(t, span)
	assert.False(t, span.SpanContext().IsValid())
	assert.Empty(t, TraceID(ctx))
	span.End()

	require.NotPanics(t, func() {
		RecordError(ctx, nil)
		RecordError(ctx, errors.New("test error"))
	})
}

func TestNewSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), newSampler(1).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), newSampler(7).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), newSampler(0).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), newSampler(-1).Description())
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased")
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}
func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		name string
		attr attribute.KeyValue
		key  string
		want string
	}{
		{"ClientIP", ClientIP("192.168.1.100"), AttrClientIP, "192.168.1.100"},
		{"RequestID", RequestID("req-1"), AttrRequestID, "req-1"},
		{"Username", Username("alice"), AttrUsername, "alice"},
		{"Domain", Domain("CORP"), AttrDomain, "CORP"},
		{"AuthMethod", AuthMethod("directory"), AttrAuthMethod, "directory"},
		{"AuthPrimary", AuthPrimary("host"), AttrAuthPrimary, "host"},
		{"AuthResult", AuthResult("failure"), AttrAuthResult, "failure"},
		{"Role", Role("operator"), AttrRole, "operator"},
		{"Right", Right("manage_config"), AttrRight, "manage_config"},
		{"StoreType", StoreType("sqlite"), AttrStoreType, "sqlite"},
		{"DecisionAllow", Decision(true), AttrDecision, "allow"},
		{"DecisionDeny", Decision(false), AttrDecision, "deny"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.key, string(tc.attr.Key))
			assert.Equal(t, tc.want, tc.attr.Value.AsString())
		})
	}

	t.Run("AuthFallback", func(t *testing.T) {
		attr := AuthFallback(true)
		assert.Equal(t, AttrAuthFallback, string(attr.Key))
		assert.True(t, attr.Value.AsBool())
	})

	t.Run("Attempt", func(t *testing.T) {
		attr := Attempt(3)
		assert.Equal(t, AttrAttempt, string(attr.Key))
		assert.Equal(t, int64(3), attr.Value.AsInt64())
	})
}

// withRecorder installs an in-memory exporter as the package tracer.
func withRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	prev := current.Load()
	current.Store(&state{tracer: tp.Tracer("test"), enabled: true})
	t.Cleanup(func() {
		current.Store(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func TestStartAuthSpan(t *testing.T) {
	exporter := withRecorder(t)

	_, span := StartAuthSpan(context.Background(), SpanAuthenticate, "alice", AuthPrimary("directory"))
	span.SetAttributes(AuthResult("success"), AuthFallback(false))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, SpanAuthenticate, spans[0].Name)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "alice", attrs[AttrUsername])
	assert.Equal(t, "directory", attrs[AttrAuthPrimary])
	assert.Equal(t, "success", attrs[AttrAuthResult])
	assert.Equal(t, "false", attrs[AttrAuthFallback])
}

func TestStartAuthorizeSpan(t *testing.T) {
	exporter := withRecorder(t)

	ctx, span := StartAuthorizeSpan(context.Background(), "bob", "manage_config")
	assert.NotEmpty(t, TraceID(ctx))
	assert.NotEmpty(t, SpanID(ctx))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, SpanAuthorize, spans[0].Name)
}

func TestStartInternalSpan(t *testing.T) {
	exporter := withRecorder(t)

	_, span := StartInternalSpan(context.Background(), SpanStoreUpdate, StoreType("file"), Attempt(1))
	span.End()

	require.Len(t, exporter.GetSpans(), 1)
}

func TestProfiling(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())

	assert.NoError(t, ValidateProfileTypes(DefaultProfileTypes()))
	assert.Error(t, ValidateProfileTypes([]string{"cpu", "heap"}))

	_, err = InitProfiling(ProfilingConfig{Enabled: true, ProfileTypes: []string{"bogus"}})
	assert.Error(t, err)
	assert.False(t, IsProfilingEnabled())
}

func TestRecordErrorMarksSpan(t *testing.T) {
	exporter := withRecorder(t)
	assert.True(t, IsEnabled())

	ctx, span := StartSpan(context.Background(), SpanStoreUpdate)
	RecordError(ctx, errors.New("conflict"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "conflict", spans[0].Status.Description)
}
