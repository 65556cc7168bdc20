package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shopstr-eng/shopstr-cache/internal/api/rest/dto"
	"github.com/shopstr-eng/shopstr-cache/internal/app"
	"github.com/shopstr-eng/shopstr-cache/internal/domain"
)

func newFetchCmd(current func() *app.App) *cobra.Command {
	var (
		maxAge time.Duration
		stored bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <class>",
		Short: "Print the current entities of a class, refreshing it first when stale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			class, err := domain.ParseClass(args[0])
			if err != nil {
				return err
			}
			if maxAge < 0 {
				return fmt.Errorf("--max-age must not be negative")
			}

			c := current().Cache
			var entities []domain.Entity
			if stored {
				entities, err = c.FetchAll(cmd.Context(), class)
			} else {
				entities, err = c.FetchCached(cmd.Context(), class, maxAge)
			}
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), dto.NewEntityListResponse(class, entities))
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Staleness budget, 0 uses the configured default")
	cmd.Flags().BoolVar(&stored, "stored", false, "Read stored rows only, never refresh")
	return cmd
}
