package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fluxgate/fluxgate/pkg/artifact"
	"github.com/fluxgate/fluxgate/pkg/config"
	"github.com/fluxgate/fluxgate/pkg/engine"
	"github.com/fluxgate/fluxgate/pkg/server/app"
	"github.com/fluxgate/fluxgate/pkg/tasks"
)

// NewServeCommand wires the HTTP server runtime.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the image generation HTTP server",
		RunE:  runServeCommand,
	}

	cmd.Flags().String("server.addr", "", "Listen address (overrides config)")
	cmd.Flags().Int("server.port", 0, "Listen port (overrides config)")

	return cmd
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	manager, ok := config.ManagerFromContext(cmd.Context())
	if !ok {
		return fmt.Errorf("configuration missing from context")
	}
	cfg := manager.Get()

	// Flag overrides for ad-hoc runs.
	if addr, _ := cmd.Flags().GetString("server.addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if port, _ := cmd.Flags().GetInt("server.port"); port != 0 {
		cfg.Server.Port = port
	}

	logger := log.With().Str("command", "serve").Logger()
	logger.Info().
		Str("model_id", cfg.Model.ModelID).
		Int("steps", cfg.Model.Steps).
		Str("output_dir", cfg.Model.OutputDir).
		Msg("Starting fluxgate server")

	eng := engine.NewExecEngine(cfg.Model.Command, cfg.Model.Args, cfg.Model.ModelID)
	artifacts := artifact.NewStore(cfg.Model.OutputDir)

	store := tasks.NewStore(cfg.Retention.MaxTasks)
	runner := tasks.NewRunner(store, eng, artifacts, cfg.Model.Steps, 0)
	service := tasks.NewService(store, runner)

	deps := &app.Deps{
		Tasks:     service,
		Engine:    eng,
		Artifacts: artifacts,
		Retention: artifact.RetentionConfig{
			MaxAgeDays:   cfg.Retention.MaxAgeDays,
			MaxArtifacts: cfg.Retention.MaxArtifacts,
		},
		Logger: logger,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverApp, err := app.New(ctx, cfg.Server, deps)
	if err != nil {
		return fmt.Errorf("assemble server: %w", err)
	}

	return serverApp.Run(ctx)
}
