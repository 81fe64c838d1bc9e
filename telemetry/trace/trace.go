//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package trace exports the pipeline spans over OTLP.
// Until Start is called every span goes to a noop tracer.
package trace

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	itelemetry "trpc.group/trpc-go/trpc-gameasset-go/internal/telemetry"
)

// TracerProvider is the provider installed by Start.
var TracerProvider trace.TracerProvider = noop.NewTracerProvider()

// Tracer starts the pipeline spans.
var Tracer trace.Tracer = TracerProvider.Tracer("")

type options struct {
	endpoint    string
	protocol    string
	serviceName string
	sampleRatio float64
}

// Option configures Start.
type Option func(*options)

// WithEndpoint sets the collector host:port. Without it the
// OTEL_EXPORTER_OTLP_TRACES_ENDPOINT and OTEL_EXPORTER_OTLP_ENDPOINT
// variables are consulted, then the protocol's default local port.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithProtocol selects "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(o *options) { o.protocol = protocol }
}

// WithServiceName overrides the reported service name.
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

// WithSampleRatio samples the given fraction of root spans. Values outside
// (0, 1] sample everything.
func WithSampleRatio(ratio float64) Option {
	return func(o *options) {
		if ratio <= 0 || ratio > 1 {
			ratio = 1
		}
		o.sampleRatio = ratio
	}
}

// Start installs a batching OTLP tracer provider and points Tracer at it.
// The returned clean flushes pending spans and shuts the provider down.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	o := &options{
		protocol:    itelemetry.ProtocolGRPC,
		serviceName: itelemetry.ServiceName,
		sampleRatio: 1,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.endpoint == "" {
		o.endpoint = tracesEndpoint(o.protocol)
	}

	exporter, err := newExporter(ctx, o)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNamespace(itelemetry.ServiceNamespace),
		semconv.ServiceName(o.serviceName),
		semconv.ServiceVersion(itelemetry.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.sampleRatio))),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	TracerProvider = provider
	Tracer = provider.Tracer(itelemetry.InstrumentName)

	return func() error {
		if err := provider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer provider: %w", err)
		}
		return nil
	}, nil
}

func newExporter(ctx context.Context, o *options) (sdktrace.SpanExporter, error) {
	switch o.protocol {
	case itelemetry.ProtocolGRPC:
		conn, err := itelemetry.NewGRPCConn(o.endpoint)
		if err != nil {
			return nil, err
		}
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("grpc trace exporter: %w", err)
		}
		return exp, nil
	case itelemetry.ProtocolHTTP:
		exp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(o.endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("http trace exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unsupported trace protocol %q", o.protocol)
	}
}

func tracesEndpoint(protocol string) string {
	for _, env := range []string{"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		if endpoint := os.Getenv(env); endpoint != "" {
			return endpoint
		}
	}
	if protocol == itelemetry.ProtocolHTTP {
		return "localhost:4318"
	}
	return "localhost:4317"
}
