package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/jnpipe/jn/internal/config"
	"github.com/jnpipe/jn/internal/engine"
	"github.com/jnpipe/jn/internal/plugin"
	"github.com/jnpipe/jn/internal/resolve"
)

// newCatCmd implements the "read" pipeline shape (spec §6.4): resolve the
// given address for reading and execute the resulting plan, with the
// final stage's stdout landing on the CLI's own stdout.
func newCatCmd(app *AppContext, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <address>",
		Short: "read records from an address and emit them as NDJSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), app, flags, args[0], plugin.ModeRead)
		},
	}
}

// runPipeline is the shared resolve-template-execute path every
// single-address pipeline shape (cat, put, filter) uses.
func runPipeline(ctx context.Context, app *AppContext, flags *rootFlags, address string, mode plugin.Mode) error {
	plan, err := resolve.Resolve(address, app.Registry, mode, app.Profiles)
	if err != nil {
		return err
	}

	envVars, err := config.ParseKV(flags.envPairs)
	if err != nil {
		return err
	}
	params, err := config.ParseKV(flags.paramPairs)
	if err != nil {
		return err
	}
	if err := resolve.ApplyTemplate(plan, envVars, params); err != nil {
		return err
	}

	opts := engine.ExecuteOptions{
		Home:       app.Home,
		WorkingDir: app.WorkingDir,
		ProjectDir: app.ProjectDir,
		Timeout:    flags.timeout,
		Logger:     app.LoggerFor("executor"),
	}

	status, err := engine.Execute(ctx, plan, os.Stdin, os.Stdout, os.Stderr, opts)
	if err != nil {
		return err
	}
	if status.Code != 0 {
		return err
	}
	return nil
}
