package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrupp/homecase-accounts/internal/infra/config"
)

// NewRootCmd creates the root command for the accountsvc CLI.
func NewRootCmd() *cobra.Command {
	var envFiles []string

	cmd := &cobra.Command{
		Use:          svcName,
		Short:        "Account service with cookie-based JWT sessions",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := config.LoadDotEnv(envFiles...); err != nil {
				return fmt.Errorf("load env files: %w", err)
			}

			return nil
		},
	}

	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"},
		"dotenv files loaded before reading the environment")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUserCmd())

	return cmd
}
