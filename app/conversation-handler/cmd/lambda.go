package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Serve turn events from the Lambda runtime",
	Long: `Starts the Lambda runtime loop. Every invocation carries one conversation turn
event and is answered by streaming a model response into the conversation store.`,
	RunE: runLambda,
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
}

func runLambda(_ *cobra.Command, _ []string) error {
	ctx := setupContext()

	handler, telemetryProvider, err := createHandler(ctx)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	logger.Info("starting conversation handler", "backend", cfg.Backend, "version", versionInfo.version)

	// Start does not return; spans still buffered when the runtime shuts down are exported on SIGTERM
	lambda.StartWithOptions(handler.Handle,
		lambda.WithContext(ctx),
		lambda.WithEnableSIGTERM(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()
			if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
				logger.Warn("failed to shut down telemetry", "err", err)
			}
		}),
	)
	return nil
}
