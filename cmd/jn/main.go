// Command jn is the orchestrator CLI: a thin cobra front-end that parses
// flags, builds a plugin Registry, resolves an address into an
// ExecutionPlan, and executes it (spec §1 "the interactive CLI front-end"
// is explicitly out of core scope — this file only maps flags to the core
// APIs and the resulting ExitStatus/error to a process exit code, per
// §6.4/§7).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/jnpipe/jn/internal/engine"
	"github.com/jnpipe/jn/internal/logger"
	jnerrors "github.com/jnpipe/jn/pkg/errors"
)

func main() {
	os.Exit(run())
}

func run() int {
	level := "info"
	humanLogs := term.IsTerminal(int(os.Stderr.Fd()))

	appLogger, err := logger.New(logger.Options{Level: level, HumanReadable: humanLogs, Component: "cli"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "jn: failed to initialize logger:", err)
		return 1
	}

	runID := uuid.New().String()
	appLogger = appLogger.With("run_id", runID)

	app := &AppContext{Logger: appLogger}
	rootCmd := newRootCmd(app)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	appLogger.Info("starting jn", "pid", os.Getpid(), "args", os.Args[1:])

	err = rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	fmt.Fprintln(os.Stderr, "jn:", err)
	return exitCodeFor(err)
}

// exitCodeFor maps the error taxonomy (spec §7) to the process exit code
// convention in §6.4: 0 success, 1 generic failure, 2 usage error, any
// other non-zero is the first failing stage's own exit code.
func exitCodeFor(err error) int {
	var pipelineErr *jnerrors.PipelineError
	if errors.As(err, &pipelineErr) {
		return pipelineErr.ExitCode
	}

	var abortErr *jnerrors.ExecAbortError
	if errors.As(err, &abortErr) {
		switch abortErr.Kind() {
		case jnerrors.KindTimeout:
			return engine.TimeoutExitCode
		case jnerrors.KindCancelled:
			return engine.CancelledExitCode
		}
	}

	var kinded jnerrors.Kinded
	if errors.As(err, &kinded) {
		switch kinded.Kind() {
		case jnerrors.KindInvalidAddress, jnerrors.KindInvalidConfigValue:
			return 2
		}
	}

	return 1
}
