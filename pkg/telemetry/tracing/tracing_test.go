package tracing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mailsift/mailsift/config"
)

type mockExporter struct {
	shutdownCalled bool
}

func (m *mockExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error {
	return nil
}

func (m *mockExporter) Shutdown(context.Context) error {
	m.shutdownCalled = true
	return nil
}

type failingExporter struct {
	exportCalls int
}

func (f *failingExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error {
	f.exportCalls++
	return errors.New("export unavailable")
}

func (f *failingExporter) Shutdown(context.Context) error {
	return nil
}

func TestInitDisabledDoesNotCreateExporter(t *testing.T) {
	origFactory := newOTLPExporter
	t.Cleanup(func() { newOTLPExporter = origFactory })

	called := false
	newOTLPExporter = func(context.Context, config.TracingConfig) (sdktrace.SpanExporter, error) {
		called = true
		return &mockExporter{}, nil
	}

	shutdown, err := Init(context.Background(), config.TracingConfig{
		Enabled: false,
	}, "mailsift", "test")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if called {
		t.Fatal("expected exporter factory not to be called when tracing is disabled")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
}

func TestInitEnabledRequiresEndpoint(t *testing.T) {
	_, err := Init(context.Background(), config.TracingConfig{
		Enabled:     true,
		Exporter:    "otlp",
		Endpoint:    "",
		Timeout:     5 * time.Second,
		SampleRatio: 1.0,
	}, "mailsift", "test")
	if err == nil {
		t.Fatal("expected error for missing endpoint")
	}
	if !strings.Contains(err.Error(), "endpoint") {
		t.Fatalf("expected endpoint error, got %v", err)
	}
}

func TestInitEnabledRequiresTimeout(t *testing.T) {
	_, err := Init(context.Background(), config.TracingConfig{
		Enabled:     true,
		Exporter:    "otlp",
		Endpoint:    "localhost:4317",
		SampleRatio: 1.0,
	}, "mailsift", "test")
	if err == nil {
		t.Fatal("expected error for missing timeout")
	}
}

func TestInitEnabledSuccessAndShutdown(t *testing.T) {
	origFactory := newOTLPExporter
	t.Cleanup(func() { newOTLPExporter = origFactory })

	exp := &mockExporter{}
	newOTLPExporter = func(context.Context, config.TracingConfig) (sdktrace.SpanExporter, error) {
		return exp, nil
	}

	shutdown, err := Init(context.Background(), config.TracingConfig{
		Enabled:     true,
		Exporter:    "otlp",
		Endpoint:    "http://localhost:4317/v1/traces",
		Headers:     map[string]string{"x-test": "1"},
		Timeout:     5 * time.Second,
		SampleRatio: 0.1,
	}, "mailsift", "test")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	if !exp.shutdownCalled {
		t.Fatal("expected exporter shutdown to be called")
	}
}

func TestExporterFailureIsIsolated(t *testing.T) {
	origReporter := reportExporterFailure
	t.Cleanup(func() { reportExporterFailure = origReporter })

	reported := 0
	reportExporterFailure = func(error, string, int) { reported++ }

	iso := &isolatingExporter{
		exporter: &failingExporter{},
		endpoint: "localhost:4317",
	}
	if err := iso.ExportSpans(context.Background(), nil); err != nil {
		t.Fatalf("isolated export must swallow the error, got %v", err)
	}
	if reported != 1 {
		t.Errorf("expected 1 reported failure, got %d", reported)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "localhost:4317", want: "localhost:4317"},
		{in: "http://localhost:4317/v1/traces", want: "localhost:4317"},
		{in: "  otel-collector:4317  ", want: "otel-collector:4317"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		if got := normalizeEndpoint(tt.in); got != tt.want {
			t.Errorf("normalizeEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
