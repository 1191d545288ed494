package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cchalm/guarded-chat/internal/event"
)

var replayEventPath string

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Relay a single turn from an event file",
	Long: `Runs one conversation turn locally from a JSON or YAML event file, exactly as the
Lambda runtime would. Combine with --backend lorem to exercise the store without
calling a model.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayEventPath, "event", "", "Path to a turn event file (.json, .yaml or .yml)")
	_ = replayCmd.MarkFlagRequired("event")

	rootCmd.AddCommand(replayCmd)
}

func runReplay(_ *cobra.Command, _ []string) error {
	ctx := setupContext()

	raw, err := event.ReadFile(replayEventPath)
	if err != nil {
		return fmt.Errorf("failed to read event file '%s': %w", replayEventPath, err)
	}

	handler, telemetryProvider, err := createHandler(ctx)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shut down telemetry", "err", err)
		}
	}()

	logger.Info("replaying turn event", "path", replayEventPath, "backend", cfg.Backend)
	if err := handler.Handle(ctx, raw); err != nil {
		return fmt.Errorf("failed to relay turn: %w", err)
	}
	return nil
}
