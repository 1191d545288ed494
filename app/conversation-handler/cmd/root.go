package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cchalm/guarded-chat/internal/config"
	"github.com/cchalm/guarded-chat/internal/logging"
)

var (
	cfg    config.Config
	logger = slog.Default()

	backendOverride  string
	logLevelOverride string
)

var rootCmd = &cobra.Command{
	Use:   "conversation-handler",
	Short: "Relays guarded model responses into a conversation store",
	Long: `Conversation handler answers one turn of a chat conversation. It reads the
conversation history from the GraphQL store, streams a guardrail-filtered model
response and publishes each fragment back to the store as it arrives.

Run without a subcommand, it serves events from the Lambda runtime.`,
	PersistentPreRunE: loadRootConfig,
	RunE:              runLambda,
	SilenceUsage:      true,
}

func Execute() error {
	return rootCmd.Execute()
}

func loadRootConfig(_ *cobra.Command, _ []string) error {
	// Load .env file
	dotenvErr := godotenv.Load()

	loaded, err := config.Load()
	if err != nil {
		return err
	}
	if backendOverride != "" {
		loaded.Backend = strings.ToLower(backendOverride)
	}
	if logLevelOverride != "" {
		loaded.LogLevel = logLevelOverride
	}

	logger = logging.New(loaded.LogLevel, os.Stdout)
	if dotenvErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendOverride, "backend", "", "Inference backend: bedrock, anthropic or lorem (overrides INFERENCE_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Log level: debug, info, warn or error (overrides LOG_LEVEL)")
}
