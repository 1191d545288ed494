package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/cchalm/guarded-chat/internal/config"
	"github.com/cchalm/guarded-chat/internal/inference"
	anthropicprovider "github.com/cchalm/guarded-chat/internal/inference/anthropic"
	"github.com/cchalm/guarded-chat/internal/inference/bedrock"
	"github.com/cchalm/guarded-chat/internal/inference/lorem"
	"github.com/cchalm/guarded-chat/internal/relay"
	"github.com/cchalm/guarded-chat/internal/telemetry"
)

func setupContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	// Setup graceful shutdown
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		logger.Info("Interrupt signal detected, shutting down gracefully...")
		cancel()
		<-interrupt
		logger.Error("Forcing shutdown")
		os.Exit(1)
	}()

	return ctx
}

func createBedrockClient(ctx context.Context, region string) (*bedrockruntime.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

func createAnthropicClient(apiKey string) anthropic.Client {
	return anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(5),
	)
}

func createProvider(ctx context.Context) (inference.Provider, error) {
	switch cfg.Backend {
	case config.BackendBedrock:
		client, err := createBedrockClient(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		return bedrock.NewProvider(client), nil
	case config.BackendAnthropic:
		return anthropicprovider.NewProvider(createAnthropicClient(cfg.AnthropicAPIKey), cfg.AnthropicMaxTokens), nil
	case config.BackendLorem:
		return lorem.NewProvider(0), nil
	default:
		return nil, fmt.Errorf("unknown inference backend '%s'", cfg.Backend)
	}
}

func createTelemetryProvider(ctx context.Context) (*telemetry.Provider, error) {
	telemetryConfig := telemetry.TelemetryConfig{
		Enabled:        cfg.TelemetryEnabled,
		Endpoint:       cfg.OTLPEndpoint,
		ServiceVersion: versionInfo.version,
	}
	return telemetry.NewProvider(ctx, telemetryConfig)
}

// createHandler wires a turn handler from the loaded configuration
func createHandler(ctx context.Context) (*relay.Handler, *telemetry.Provider, error) {
	provider, err := createProvider(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s provider: %w", cfg.Backend, err)
	}

	telemetryProvider, err := createTelemetryProvider(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create telemetry provider: %w", err)
	}

	guardrail := cfg.Guardrail()
	if guardrail == nil {
		logger.Warn("no guardrail configured, model responses are not filtered")
	}

	r := relay.New(provider, guardrail, telemetryProvider.Tracer(), logger)
	// Store requests are bounded only by the invocation deadline
	return relay.NewHandler(r, telemetryProvider, nil, logger), telemetryProvider, nil
}
