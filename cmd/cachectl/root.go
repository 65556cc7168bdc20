package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/shopstr-eng/shopstr-cache/internal/adapter"
	"github.com/shopstr-eng/shopstr-cache/internal/app"
)

// openFunc builds the stack a command runs against
type openFunc func(ctx context.Context, configFile, envPath string) (*app.App, error)

// newRootCmd returns the cachectl command tree. The stack is opened before
// any subcommand runs and closed after it returns.
func newRootCmd(open openFunc) *cobra.Command {
	var (
		configFile string
		envPath    string
		stack      *app.App
	)

	root := &cobra.Command{
		Use:           "cachectl",
		Short:         "cachectl inspects and refreshes the marketplace cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd.Context(), configFile, envPath)
			if err != nil {
				return err
			}
			stack = s
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if stack == nil {
				return nil
			}
			return stack.Close()
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&envPath, "env", "config/", "Path to environment files")

	current := func() *app.App { return stack }
	root.AddCommand(
		newIngestCmd(current),
		newFetchCmd(current),
		newLatestCmd(current),
	)

	return root
}

// printJSON writes v to w as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	data, err := adapter.NewJSON().MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
