package telemetry

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// InitJaeger points the process's global tracer provider at a Jaeger
// collector and returns a shutdown func that flushes buffered spans.
// sampleRatio is the fraction of spans kept, in [0, 1]; a ratio of 1
// samples every span in every session's join/dispatch/mutation path,
// which is affordable at this system's connection-count scale.
func InitJaeger(serviceName, jaegerEndpoint string, sampleRatio float64) (func(context.Context) error, error) {
	exp, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(sampleRatio)),
	)

	otel.SetTracerProvider(tp)

	log.Printf("jaeger tracing initialized: endpoint=%s service=%s sample_ratio=%.2f", jaegerEndpoint, serviceName, sampleRatio)

	return tp.Shutdown, nil
}

// sampler picks AlwaysSample at ratio >= 1 (the default for this system)
// and otherwise a parent-respecting ratio sampler, so a trace that an
// upstream caller decided to sample never has its spans dropped here.
func sampler(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	if ratio <= 0 {
		return sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
