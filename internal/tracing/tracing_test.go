package tracing

import (
	"context"
	"strings"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func shutdownProvider(t *testing.T, p *Provider) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{ServiceName: "tidepool-test", Enabled: false})
	if err != nil {
		t.Fatalf("disabled tracing should not error: %v", err)
	}
	if provider.IsEnabled() {
		t.Error("IsEnabled() = true for disabled config")
	}
	// Disabled providers still hand out usable no-op tracers.
	if provider.Tracer("noop") == nil {
		t.Error("expected non-nil tracer from disabled provider")
	}
}

func TestNewProvider_ConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing service name",
			cfg:     Config{Enabled: true, SamplingRate: 0.1},
			wantErr: "service name",
		},
		{
			name:    "negative sampling rate",
			cfg:     Config{ServiceName: "tidepool-test", Enabled: true, SamplingRate: -0.1},
			wantErr: "sampling rate",
		},
		{
			name:    "sampling rate above one",
			cfg:     Config{ServiceName: "tidepool-test", Enabled: true, SamplingRate: 1.5},
			wantErr: "sampling rate",
		},
		{
			name:    "unknown exporter",
			cfg:     Config{ServiceName: "tidepool-test", Enabled: true, SamplingRate: 0.1, ExporterType: "zipkin"},
			wantErr: "exporter type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewProvider_Exporters(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "otlp-http partial sampling",
			cfg: Config{
				ServiceName: "tidepool-test", Enabled: true, Environment: "test",
				ExporterType: "otlp-http", OTLPEndpoint: "localhost:4318",
				SamplingRate: 0.1, InsecureMode: true,
			},
		},
		{
			name: "otlp-grpc always sample",
			cfg: Config{
				ServiceName: "tidepool-test", Enabled: true, Environment: "test",
				ExporterType: "otlp-grpc", OTLPEndpoint: "localhost:4317",
				SamplingRate: 1.0, InsecureMode: true,
			},
		},
		{
			name: "default exporter never sample",
			cfg: Config{
				ServiceName: "tidepool-test", Enabled: true, Environment: "test",
				SamplingRate: 0.0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.cfg)
			if err != nil {
				t.Fatalf("NewProvider: %v", err)
			}
			if !provider.IsEnabled() {
				t.Error("IsEnabled() = false for enabled config")
			}
			shutdownProvider(t, provider)
		})
	}
}

func TestProvider_TracerCreatesSpans(t *testing.T) {
	provider, err := NewProvider(Config{
		ServiceName: "tidepool-test", Enabled: true, Environment: "test",
		ExporterType: "otlp-http", SamplingRate: 1.0, InsecureMode: true,
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	defer shutdownProvider(t, provider)

	tracer := provider.Tracer("tidepool-test")
	_, span := tracer.Start(context.Background(), "rank_posts")
	if !span.SpanContext().IsValid() {
		t.Error("expected a recording span with valid context")
	}
	span.End()
}

func TestProvider_ShutdownWithoutInit(t *testing.T) {
	provider := &Provider{}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown of inert provider: %v", err)
	}
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want sdktrace.Sampler
	}{
		{1.0, sdktrace.AlwaysSample()},
		{0.0, sdktrace.NeverSample()},
		{0.25, sdktrace.TraceIDRatioBased(0.25)},
	}

	for _, tt := range tests {
		got := samplerFor(tt.rate)
		if got.Description() != tt.want.Description() {
			t.Errorf("samplerFor(%v) = %s, want %s", tt.rate, got.Description(), tt.want.Description())
		}
	}
}
