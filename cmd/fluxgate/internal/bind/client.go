// Package bind centralizes flag-to-options binding for CLI commands.
package bind

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

// ClientOptions carries everything the client subcommands need.
type ClientOptions struct {
	ServerURL    string
	Seed         *int64 // nil when the flag was not set
	Limit        int
	OutputDir    string
	PollInterval time.Duration
	WaitTimeout  time.Duration
}

// RegisterClientFlags defines the shared client flags on a command.
func RegisterClientFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("server", "http://127.0.0.1:8000", "Base URL of the fluxgate server")
	flags.Int64("seed", 0, "Random seed for reproducible generation")
	flags.Int("limit", 20, "Maximum number of tasks to list")
	flags.String("output-dir", "imgs", "Directory to save downloaded images")
	flags.String("poll-interval", "2s", "Delay between status polls")
	flags.String("wait-timeout", "5m", "Give up waiting for a task after this long")
}

// BindClientOptions extracts and validates the client flags.
//
// Flags read:
//   - --server: Base URL of the target server
//   - --seed: Random seed (only forwarded when explicitly set)
//   - --limit: List page size
//   - --output-dir: Where downloaded images are written
//   - --poll-interval: Delay between polls while waiting
//   - --wait-timeout: Total polling budget
func BindClientOptions(cmd *cobra.Command) (ClientOptions, error) {
	flags := cmd.Flags()

	serverURL, _ := flags.GetString("server")
	limit, _ := flags.GetInt("limit")
	outputDir, _ := flags.GetString("output-dir")
	pollRaw, _ := flags.GetString("poll-interval")
	waitRaw, _ := flags.GetString("wait-timeout")

	opts := ClientOptions{
		ServerURL: serverURL,
		Limit:     limit,
		OutputDir: outputDir,
	}

	if flags.Changed("seed") {
		seed, _ := flags.GetInt64("seed")
		opts.Seed = &seed
	}

	pollInterval, err := cast.ToDurationE(pollRaw)
	if err != nil {
		return ClientOptions{}, fmt.Errorf("invalid --poll-interval %q: %w", pollRaw, err)
	}
	opts.PollInterval = pollInterval

	waitTimeout, err := cast.ToDurationE(waitRaw)
	if err != nil {
		return ClientOptions{}, fmt.Errorf("invalid --wait-timeout %q: %w", waitRaw, err)
	}
	opts.WaitTimeout = waitTimeout

	return opts, nil
}
