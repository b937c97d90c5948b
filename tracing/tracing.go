// Package tracing builds the OpenTelemetry tracer provider envtools records its lookups with.
//
// Spans never leave the machine: the only exporter writes them as JSON to a local writer,
// usually stderr.
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// ExportNone disables tracing
	ExportNone = "none"

	// ExportStdout writes finished spans as indented JSON.
	// Useful for debugging slow sysctl or lscpu invocations.
	ExportStdout = "stdout"
)

// Error defines string error
type Error string

func (e Error) Error() string {
	return string(e)
}

// ErrUnknownExport indicates an export method other than none or stdout
const ErrUnknownExport = Error("unknown trace export method")

// Config describes how spans are exported
type Config struct {
	Export      string `k:"export"`
	ServiceName string `k:"service_name"`
}

var DefaultConfig = Config{
	Export:      ExportNone,
	ServiceName: "envtools",
}

// Validate checks the export method
func (c Config) Validate() error {
	switch c.Export {
	case "", ExportNone, ExportStdout:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownExport, c.Export)
}

// ShutdownFunc flushes and stops the provider
type ShutdownFunc func(ctx context.Context) error

// NewProvider creates a tracer provider according to c. Spans are written to w when the
// stdout export is selected, otherwise a no-op provider is returned.
func NewProvider(ctx context.Context, c Config, w io.Writer) (trace.TracerProvider, ShutdownFunc, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	if c.Export != ExportStdout {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	ex, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create stdout exporter: %w", err)
	}

	serviceName := c.ServiceName
	if serviceName == "" {
		serviceName = DefaultConfig.ServiceName
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(ex),
		sdktrace.WithResource(res),
	)
	return tp, tp.Shutdown, nil
}
