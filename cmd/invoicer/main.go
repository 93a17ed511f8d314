// Package main is the entry point of the invoicer service.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "invoicer",
		Short:         "Invoicing service with sequential document numbering",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./config.yaml)")

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSequencesCommand(),
		newTokenCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
