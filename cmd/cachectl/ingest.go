package main

import (
	"github.com/spf13/cobra"

	"github.com/shopstr-eng/shopstr-cache/internal/app"
	"github.com/shopstr-eng/shopstr-cache/internal/domain"
)

func newIngestCmd(current func() *app.App) *cobra.Command {
	var noRetry bool

	cmd := &cobra.Command{
		Use:   "ingest <class>",
		Short: "Run one ingestion pass for an entity class and print its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			class, err := domain.ParseClass(args[0])
			if err != nil {
				return err
			}

			stack := current()
			var report *domain.IngestionReport
			if noRetry {
				report, err = stack.Coordinator.Ingest(cmd.Context(), class, stack.Sources)
			} else {
				report, err = stack.Coordinator.IngestWithRetry(cmd.Context(), class, stack.Sources, stack.RetryPolicy)
			}

			// a partial report is still worth printing when the pass aborted
			if report != nil {
				if printErr := printJSON(cmd.OutOrStdout(), report); printErr != nil && err == nil {
					err = printErr
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&noRetry, "no-retry", false, "Do not retry unreachable sources")
	return cmd
}
