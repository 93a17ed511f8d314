package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSequencesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequences",
		Short: "Inspect and maintain numbering counters",
	}

	var dryRun bool
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Raise every counter to the highest number already stored",
		Long: `Scans invoices, items and users for the highest stored number of every
scope and moves the matching counter up to it. Run before switching a kind
from the scan strategy to the counter strategy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.openDatabase(ctx); err != nil {
				return err
			}

			marks, err := a.numbers.SyncCounters(ctx, a.generator, dryRun)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SCOPE\tLATEST\tSEQUENCE")
			for _, m := range marks {
				fmt.Fprintf(w, "%s\t%s\t%d\n", m.Scope.Key(), m.Latest, m.Sequence)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), "dry run: no counters changed")
			}
			return nil
		},
	}
	seed.Flags().BoolVar(&dryRun, "dry-run", false, "Report without writing")

	cmd.AddCommand(seed)
	return cmd
}
