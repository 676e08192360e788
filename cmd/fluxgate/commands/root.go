package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fluxgate/fluxgate/pkg/cli"
	"github.com/fluxgate/fluxgate/pkg/config"
)

const cliExecutable = "fluxgate"

// NewCommand constructs the top-level fluxgate CLI command, wiring global
// flags, configuration loading and logging setup.
func NewCommand() *cobra.Command {
	var (
		configFile     string
		configManager  *config.Manager
		verbosityCount int
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Fluxgate serves FLUX image generation over a polling HTTP API",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configManager = config.NewManager()
			if err := configManager.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			cfg := configManager.Get()
			if err := setupLogging(cfg.Log); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			// Verbosity flags override the configured level.
			// If explicit --verbose is set, show debug and above.
			// Else use -v count: 0 => configured level, 1 => Info, 2+ => Debug.
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				switch {
				case verbosityCount == 1:
					zerolog.SetGlobalLevel(zerolog.InfoLevel)
				case verbosityCount >= 2:
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
			}

			cmd.SetContext(config.WithManager(cmd.Context(), configManager))
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(cmd.Context())
			}
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().CountVarP(&verbosityCount, "verbosity", "v", "Increase logging verbosity (repeatable)")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewClientCommand())
	cmd.AddCommand(cli.NewVersionCommand(cliExecutable))

	return cmd
}

// setupLogging applies the configured level, format and destination to the
// global zerolog logger.
func setupLogging(cfg config.LogConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	var out *os.File = os.Stderr
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file %q: %w", cfg.File, err)
		}
		out = f
	}

	if cfg.Format == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return nil
}
