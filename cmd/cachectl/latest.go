package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shopstr-eng/shopstr-cache/internal/api/rest/dto"
	"github.com/shopstr-eng/shopstr-cache/internal/app"
	"github.com/shopstr-eng/shopstr-cache/internal/domain"
)

func newLatestCmd(current func() *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "latest <class> <id>",
		Short: "Print the newest stored row of one entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			class, err := domain.ParseClass(args[0])
			if err != nil {
				return err
			}

			entity, err := current().Cache.FetchLatest(cmd.Context(), class, args[1])
			if err != nil {
				return err
			}
			if entity == nil {
				return fmt.Errorf("%s %q not found", class, args[1])
			}

			return printJSON(cmd.OutOrStdout(), dto.EntityResponse{Class: class, Entity: entity})
		},
	}
}
