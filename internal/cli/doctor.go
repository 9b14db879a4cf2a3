package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskdeck/taskdeck/internal/backend"
	"github.com/taskdeck/taskdeck/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage taskdeck configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if err := cfg.Save(); err != nil {
				return err
			}
			path, _ := config.Path()
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "backend_url:", cfg.BackendURL)
			fmt.Fprintln(out, "timeout:", cfg.Timeout)
			fmt.Fprintln(out, "user_id:", cfg.Identity.UserID)
			fmt.Fprintln(out, "user_name:", cfg.Identity.UserName)
			return nil
		},
	})
	return cmd
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Verify the backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client, err := backend.NewClient(backend.ClientConfig{
				BaseURL: cfg.BackendURL,
				Timeout: cfg.Timeout,
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
			defer cancel()

			started := time.Now()
			users, err := client.ListUsers(ctx)
			if err != nil {
				return fmt.Errorf("backend check failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backend ok: %d directory entries in %s\n",
				len(users), time.Since(started).Round(time.Millisecond))
			return nil
		},
	}
}
