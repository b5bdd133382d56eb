package main

import (
	"os"

	"github.com/spf13/cobra"

	"membergate/internal/interfaces/cli/migrate"
	"membergate/internal/interfaces/cli/reset"
	"membergate/internal/interfaces/cli/run"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "membergate",
		Short: "Membergate - entitlement reconciliation for community servers",
		Long:  `Membergate keeps a community's premium roles in sync with billing status by polling the billing provider and converging guild roles, records, and notifications on it.`,
	}

	rootCmd.AddCommand(
		run.NewCommand(),
		migrate.NewCommand(),
		reset.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
