package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	serviceName = "guarded-chat-conversation-handler"
	tracerName  = "github.com/cchalm/guarded-chat"
)

// TelemetryConfig holds the configuration for telemetry
type TelemetryConfig struct {
	Enabled        bool
	Endpoint       string // OTLP/HTTP URL, e.g. http://localhost:4318
	ServiceVersion string
}

// Provider manages the tracer used for conversation turns
type Provider struct {
	enabled        bool
	tracerProvider trace.TracerProvider
	sdkProvider    *sdktrace.TracerProvider
}

// NewProvider creates a new telemetry provider. When telemetry is disabled, spans are not recorded.
func NewProvider(ctx context.Context, config TelemetryConfig) (*Provider, error) {
	if !config.Enabled {
		slog.Debug("telemetry disabled")
		return &Provider{tracerProvider: noop.NewTracerProvider()}, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(config.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", config.ServiceVersion),
	)

	slog.Info("telemetry enabled", "endpoint", config.Endpoint)
	return NewProviderWithProcessor(sdktrace.NewBatchSpanProcessor(exporter), res), nil
}

// NewProviderWithProcessor creates an enabled provider that hands finished spans to processor
func NewProviderWithProcessor(processor sdktrace.SpanProcessor, res *resource.Resource) *Provider {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithSpanProcessor(processor)}
	if res != nil {
		opts = append(opts, sdktrace.WithResource(res))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	return &Provider{
		enabled:        true,
		tracerProvider: tp,
		sdkProvider:    tp,
	}
}

func (p *Provider) Tracer() trace.Tracer {
	return p.tracerProvider.Tracer(tracerName)
}

// ForceFlush exports finished spans. The Lambda runtime may freeze the process between invocations, so spans are
// flushed at the end of every turn.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if !p.enabled {
		return nil
	}
	return p.sdkProvider.ForceFlush(ctx)
}

// Shutdown shuts down the telemetry provider
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.enabled {
		return nil
	}
	slog.Info("shutting down telemetry provider")
	return p.sdkProvider.Shutdown(ctx)
}

// TurnAttributes are the span attributes identifying one conversation turn
func TurnAttributes(turnID string, conversationID string, messageID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("turn.id", turnID),
		attribute.String("conversation.id", conversationID),
		attribute.String("conversation.message_id", messageID),
	}
}

// NewTurnID generates a new turn UUID
func NewTurnID() string {
	return uuid.New().String()
}
