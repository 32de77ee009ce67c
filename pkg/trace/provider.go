package trace

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Provider owns the process-wide OpenTelemetry SDK tracer provider started
// by InstallDefaultProvider. Callers hold it only to Shutdown on exit.
type Provider struct {
	sdk *sdktrace.TracerProvider
}

// InstallDefaultProvider registers a stdout-exporting SDK TracerProvider as
// the global OTel provider, so every TraceContext's span is actually
// recorded somewhere instead of silently becoming a no-op. It is meant to
// be called once, early, only when reasoning tracing is enabled; callers
// that never call it still work, since otel.Tracer falls back to a no-op
// implementation when no provider has been set.
func InstallDefaultProvider(serviceName string) (*Provider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		return nil, fmt.Errorf("creating stdout span exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(sdk)

	return &Provider{sdk: sdk}, nil
}

// Shutdown flushes any buffered spans and releases the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}
