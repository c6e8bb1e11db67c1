package main

import (
	"github.com/spf13/cobra"

	"github.com/jnpipe/jn/internal/plugin"
)

// newPutCmd implements the "write" pipeline shape (spec §6.4): resolve
// the given address for writing, feeding the CLI's own stdin as the
// plan's NDJSON source.
func newPutCmd(app *AppContext, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "put <address>",
		Short: "write NDJSON records from stdin to an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), app, flags, args[0], plugin.ModeWrite)
		},
	}
}
