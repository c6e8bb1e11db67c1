package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jnpipe/jn/internal/config"
	"github.com/jnpipe/jn/internal/engine"
	"github.com/jnpipe/jn/internal/plugin"
	"github.com/jnpipe/jn/internal/resolve"
)

// newHeadCmd implements the "head" pipeline shape (spec §6.4, §8 scenario
// S4): a count-bounded consumer that reads the first N records and then
// deliberately closes its end of the pipe, the primary cancellation
// channel the executor relies on (spec §4.3.3 "SIGPIPE... is the primary
// cancellation channel").
func newHeadCmd(app *AppContext, flags *rootFlags) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "head <address>",
		Short: "read only the first N records from an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBounded(cmd.Context(), app, flags, args[0], count, false)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of records to keep")
	return cmd
}

// newTailCmd implements the "tail" pipeline shape: the mirror of head,
// draining the full stream and keeping only the last N records.
func newTailCmd(app *AppContext, flags *rootFlags) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "tail <address>",
		Short: "read only the last N records from an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBounded(cmd.Context(), app, flags, args[0], count, true)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of records to keep")
	return cmd
}

// runBounded resolves address, executes it with its final stdout
// redirected into a pipe this process owns, and either stops early after
// `count` lines (head) or drains to EOF keeping only the last `count`
// lines (tail). Closing the read end early is deliberate early
// cancellation (spec §4.3.3/§8 S4) — the bounded consumer's own exit
// status, not the plan's, is what this command reports, matching how a
// shell pipeline reports the exit status of its last stage.
func runBounded(ctx context.Context, app *AppContext, flags *rootFlags, address string, count int, tail bool) error {
	plan, err := resolve.Resolve(address, app.Registry, plugin.ModeRead, app.Profiles)
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

	pr, pw := os.Pipe()
	execDone := make(chan struct{})
	go func() {
		defer close(execDone)
		opts := engine.ExecuteOptions{
			Home:       app.Home,
			WorkingDir: app.WorkingDir,
			ProjectDir: app.ProjectDir,
			Timeout:    flags.timeout,
			Logger:     app.LoggerFor("executor"),
		}
		// The plan's own exit status is deliberately discarded here: an
		// early head close is expected to SIGPIPE the producer, which is
		// success from this command's point of view even though it would
		// be a failure from the plan's (spec §4.3.4 rule 3 speaks to the
		// plan's last stage; this pipe's consumer is logically downstream
		// of it).
		_, _ = engine.Execute(ctx, plan, os.Stdin, pw, os.Stderr, opts)
	}()

	var lines []string
	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)

	if tail {
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
			if len(lines) > count {
				lines = lines[1:]
			}
		}
	} else {
		for scanner.Scan() && len(lines) < count {
			lines = append(lines, scanner.Text())
		}
	}

	pr.Close()
	pw.Close()
	<-execDone

	for _, l := range lines {
		fmt.Fprintln(os.Stdout, l)
	}
	return nil
}
