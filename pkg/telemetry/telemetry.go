// Package telemetry wires OpenTelemetry tracing from OTEL_* environment
// variables.
//
// Init installs a global TracerProvider exporting over OTLP (gRPC or HTTP).
// When OTEL_ENABLED is not true the global provider stays a no-op, so
// spans opened with otel.Tracer cost nothing.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
)

// ShutdownFunc flushes and stops the TracerProvider.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init sets up tracing from cfg, or from the environment when cfg is nil.
func Init(ctx context.Context, cfg *Config) (ShutdownFunc, error) {
	if cfg == nil {
		cfg = LoadFromEnv()
	}
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}
	tp, err := Install(cfg, trace.WithBatcher(exporter))
	if err != nil {
		return noopShutdown, err
	}
	return tp.Shutdown, nil
}

// Install builds a TracerProvider for cfg with the given span processor
// options, sets it and the W3C propagators globally, and returns it.
func Install(cfg *Config, opts ...trace.TracerProviderOption) (*trace.TracerProvider, error) {
	res, err := buildResource(cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]trace.TracerProviderOption{
		trace.WithResource(res),
		trace.WithSampler(createSampler(cfg)),
	}, opts...)

	tp := trace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}
