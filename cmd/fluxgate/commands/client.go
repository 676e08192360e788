package commands

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fluxgate/fluxgate/cmd/fluxgate/internal/bind"
	"github.com/fluxgate/fluxgate/pkg/client"
	"github.com/fluxgate/fluxgate/pkg/server/api"
)

// NewClientCommand wires the example client subcommands against a running
// server: submit, status, result, list, wait, generate and health.
func NewClientCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Call a running fluxgate server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	bind.RegisterClientFlags(cmd)

	cmd.AddCommand(newClientHealthCommand())
	cmd.AddCommand(newClientSubmitCommand())
	cmd.AddCommand(newClientStatusCommand())
	cmd.AddCommand(newClientResultCommand())
	cmd.AddCommand(newClientListCommand())
	cmd.AddCommand(newClientWaitCommand())
	cmd.AddCommand(newClientGenerateCommand())

	return cmd
}

func newClientHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health and model state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, c, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}

			health, err := c.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status: %s\nmodel_loaded: %t\n", health.Status, health.ModelLoaded)
			return nil
		},
	}
}

func newClientSubmitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "submit [prompt...]",
		Short: "Submit an asynchronous generation task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, c, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}

			prompt := strings.Join(args, " ")
			created, err := c.CreateTask(cmd.Context(), prompt, opts.Seed)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "task_id: %s\nstatus: %s\n", created.TaskID, created.Status)
			return nil
		},
	}
}

func newClientStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show the status of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}

			status, err := c.TaskStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printTaskStatus(cmd, status)
			return nil
		},
	}
}

func newClientResultCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "result <task-id>",
		Short: "Download the image of a completed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, c, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}

			result, err := c.TaskResult(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			path, err := saveImage(opts.OutputDir, args[0], result)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved: %s\n", path)
			return nil
		},
	}
}

func newClientListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recent tasks, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, c, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}

			statuses, err := c.ListTasks(cmd.Context(), opts.Limit)
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no tasks")
				return nil
			}
			for _, status := range statuses {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s  %3d/%-3d  %s\n",
					status.ID, status.Status, status.Progress, status.TotalSteps, status.Prompt)
			}
			return nil
		},
	}
}

func newClientWaitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "wait <task-id>",
		Short: "Poll a task until it finishes, then download the image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, c, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.WaitTimeout)
			defer cancel()

			status, err := c.WaitForTask(ctx, args[0], opts.PollInterval)
			if err != nil {
				return err
			}
			printTaskStatus(cmd, status)

			if status.Status != "completed" {
				return fmt.Errorf("task %s finished as %s: %s", status.ID, status.Status, status.Error)
			}

			result, err := c.TaskResult(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			path, err := saveImage(opts.OutputDir, args[0], result)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved: %s\n", path)
			return nil
		},
	}
}

func newClientGenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate [prompt...]",
		Short: "Generate an image synchronously and download it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, c, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}

			prompt := strings.Join(args, " ")
			log.Info().Str("command", "client").Str("prompt", prompt).Msg("Generating image")

			result, err := c.Generate(cmd.Context(), prompt, opts.Seed)
			if err != nil {
				return err
			}

			path, err := saveImage(opts.OutputDir, "sync", result)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved: %s\n", path)
			return nil
		},
	}
}

func clientFromFlags(cmd *cobra.Command) (bind.ClientOptions, *client.Client, error) {
	opts, err := bind.BindClientOptions(cmd)
	if err != nil {
		return bind.ClientOptions{}, nil, err
	}
	return opts, client.New(opts.ServerURL), nil
}

func printTaskStatus(cmd *cobra.Command, status api.TaskStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id: %s\nstatus: %s\nprogress: %d/%d\nprompt: %s\nseed: %d\ncreated_at: %s\n",
		status.ID, status.Status, status.Progress, status.TotalSteps, status.Prompt, status.Seed, status.CreatedAt)
	if status.CompletedAt != "" {
		fmt.Fprintf(out, "completed_at: %s\n", status.CompletedAt)
	}
	if status.Error != "" {
		fmt.Fprintf(out, "error: %s\n", status.Error)
	}
}

// saveImage decodes the base64 payload and writes it under the output dir,
// keyed by task id.
func saveImage(dir, key string, result api.GenerationResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	image, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		return "", fmt.Errorf("decode image payload: %w", err)
	}

	path := filepath.Join(dir, key+".jpg")
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path, nil
}
