package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jnpipe/jn/internal/config"
	"github.com/jnpipe/jn/internal/engine"
	"github.com/jnpipe/jn/internal/plugin"
	"github.com/jnpipe/jn/internal/resolve"
)

// newJoinCmd implements the "join"/"merge" pipeline shape (spec §6.4): one
// independent read plan per source address, each producing NDJSON
// concurrently, concatenated onto a single stdout. Record order across
// sources is explicitly unspecified — spec §1's Non-goals exclude
// "dynamic record-level routing", and each source here is still executed
// as its own strictly linear plan (§5 "irrelevant because pipelines are
// linear"); only the final fan-in is new CLI-level plumbing, not a DAG.
func newJoinCmd(app *AppContext, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "join <address>...",
		Aliases: []string{"merge"},
		Short:   "read records from multiple addresses and interleave them onto stdout",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(cmd.Context(), app, flags, args)
		},
	}
}

func runJoin(ctx context.Context, app *AppContext, flags *rootFlags, addresses []string) error {
	envVars, err := config.ParseKV(flags.envPairs)
	if err != nil {
		return err
	}
	params, err := config.ParseKV(flags.paramPairs)
	if err != nil {
		return err
	}

	plans := make([]*resolve.ExecutionPlan, len(addresses))
	for i, addr := range addresses {
		plan, err := resolve.Resolve(addr, app.Registry, plugin.ModeRead, app.Profiles)
		if err != nil {
			return fmt.Errorf("resolving %q: %w", addr, err)
		}
		if err := resolve.ApplyTemplate(plan, envVars, params); err != nil {
			return err
		}
		plans[i] = plan
	}

	var stdoutMu sync.Mutex
	var wg sync.WaitGroup
	errs := make([]error, len(plans))

	for i, plan := range plans {
		pr, pw := os.Pipe()
		wg.Add(1)

		go func(i int, plan *resolve.ExecutionPlan, pr, pw *os.File) {
			defer wg.Done()
			defer pr.Close()

			opts := engine.ExecuteOptions{
				Home:       app.Home,
				WorkingDir: app.WorkingDir,
				ProjectDir: app.ProjectDir,
				Timeout:    flags.timeout,
				Logger:     app.LoggerFor("executor"),
			}

			forwardDone := make(chan struct{})
			go func() {
				defer close(forwardDone)
				scanner := bufio.NewScanner(pr)
				scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
				for scanner.Scan() {
					line := scanner.Text()
					stdoutMu.Lock()
					fmt.Fprintln(os.Stdout, line)
					stdoutMu.Unlock()
				}
			}()

			_, execErr := engine.Execute(ctx, plan, nil, pw, os.Stderr, opts)
			pw.Close()
			<-forwardDone
			errs[i] = execErr
		}(i, plan, pr, pw)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("source %d (%s): %w", i, addresses[i], err)
		}
	}
	return nil
}
