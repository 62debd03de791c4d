package tracing

import (
	"context"
	"errors"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"disabled ignores everything", Config{SamplingRate: 7, ExporterType: "zipkin"}, nil},
		{"http default", Config{Enabled: true, ServiceName: "fizzrank-api", SamplingRate: 0.1}, nil},
		{"grpc", Config{Enabled: true, ServiceName: "fizzrank-api", ExporterType: ExporterOTLPGRPC, SamplingRate: 1}, nil},
		{"missing service name", Config{Enabled: true, SamplingRate: 0.5}, ErrMissingServiceName},
		{"negative rate", Config{Enabled: true, ServiceName: "x", SamplingRate: -0.1}, ErrInvalidSamplingRate},
		{"rate above one", Config{Enabled: true, ServiceName: "x", SamplingRate: 1.5}, ErrInvalidSamplingRate},
		{"unknown exporter", Config{Enabled: true, ServiceName: "x", ExporterType: "jaeger"}, ErrUnsupportedExporter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if p.IsEnabled() {
		t.Error("disabled provider reports enabled")
	}
	if p.Tracer("fizzrank") == nil {
		t.Error("Tracer() returned nil for a disabled provider")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewProvider_RejectsInvalidConfig(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, ServiceName: "fizzrank-api", SamplingRate: 2})
	if !errors.Is(err, ErrInvalidSamplingRate) {
		t.Errorf("NewProvider() error = %v, want ErrInvalidSamplingRate", err)
	}
}

func TestNewProvider_Enabled(t *testing.T) {
	for _, exporter := range []string{ExporterOTLPHTTP, ExporterOTLPGRPC} {
		t.Run(exporter, func(t *testing.T) {
			// Exporters connect lazily, so no collector is needed.
			p, err := NewProvider(Config{
				Enabled:      true,
				ServiceName:  "fizzrank-api",
				Environment:  "test",
				ExporterType: exporter,
				OTLPEndpoint: "localhost:4318",
				SamplingRate: 0.5,
				InsecureMode: true,
			})
			if err != nil {
				t.Fatalf("NewProvider() error = %v", err)
			}
			if !p.IsEnabled() {
				t.Error("provider should be enabled")
			}
			ctx, cancel := context.WithTimeout(context.Background(), 0)
			defer cancel()
			_ = p.Shutdown(ctx)
		})
	}
}

func TestProvider_NilSafe(t *testing.T) {
	var p *Provider
	if p.IsEnabled() {
		t.Error("nil provider reports enabled")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on nil provider = %v", err)
	}
}
