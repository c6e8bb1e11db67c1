// Package engine is the pipeline executor (spec §4.3): it spawns every
// stage of a resolved ExecutionPlan as a subprocess connected by anonymous
// OS pipes, supervises them to completion, and aggregates their exit
// statuses. The concurrency model is "OS processes connected by OS pipes,
// parent waits" (spec §9) — no in-process async runtime stands in for it.
package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/jnpipe/jn/internal/logger"
	"github.com/jnpipe/jn/internal/resolve"
	jnerrors "github.com/jnpipe/jn/pkg/errors"
)

// maxStages bounds a plan's stage count (spec §5 "defaulted to a small
// number (e.g., 16)").
const maxStages = 16

// Reserved exit codes distinct from any plugin's own exit code (spec
// §4.3.4 rule 4), following the conventional shell meanings for the two
// abort reasons the executor itself can report.
const (
	TimeoutExitCode   = 124
	CancelledExitCode = 130
)

// ExecuteOptions configures a single Execute call.
type ExecuteOptions struct {
	Home             string // JN_HOME
	WorkingDir       string // JN_WORKING_DIR
	ProjectDir       string // JN_PROJECT_DIR, optional
	GracePeriod      time.Duration
	Timeout          time.Duration // 0 disables the wall-clock deadline
	StderrBufferSize int           // 0 uses defaultStderrBufferSize
	Logger           *logger.Logger
}

func (o *ExecuteOptions) setDefaults() {
	if o.GracePeriod <= 0 {
		o.GracePeriod = 5 * time.Second
	}
}

// ExitStatus is the plan-level result of Execute (spec §4.3.4).
type ExitStatus struct {
	Code              int
	FailingStageIndex int
	PluginName        string
	StderrTail        string
	Aborted           bool
	AbortKind         string
}

type stageResult struct {
	index int
	state *os.ProcessState
}

type pipePair struct {
	read, write *os.File
}

// Execute spawns plan's stages and blocks until they all exit, a deadline
// passes, or ctx is cancelled.
func Execute(ctx context.Context, plan *resolve.ExecutionPlan, parentStdin io.Reader, parentStdout, parentStderr io.Writer, opts ExecuteOptions) (ExitStatus, error) {
	if plan == nil || len(plan.Stages) == 0 {
		return ExitStatus{}, jnerrors.NewInternalError("empty execution plan", fmt.Errorf("plan has no stages"))
	}
	if len(plan.Stages) > maxStages {
		return ExitStatus{}, jnerrors.NewInternalError("stage count exceeds limit",
			fmt.Errorf("%d stages exceeds the %d-stage cap", len(plan.Stages), maxStages))
	}
	opts.setDefaults()
	if parentStdin == nil {
		parentStdin = os.Stdin
	}
	if parentStdout == nil {
		parentStdout = os.Stdout
	}
	if parentStderr == nil {
		parentStderr = os.Stderr
	}

	n := len(plan.Stages)
	pipes := make([]pipePair, n-1)
	for i := range pipes {
		r, w, err := os.Pipe()
		if err != nil {
			closeAllPipes(pipes)
			return ExitStatus{}, jnerrors.NewSpawnError(i, nil, err)
		}
		pipes[i] = pipePair{read: r, write: w}
	}

	cmds := make([]*exec.Cmd, n)
	ringBuffers := make([]*ringBuffer, n)
	var teardown []io.Closer

	for i, stage := range plan.Stages {
		cmd := exec.Command(stage.Argv[0], stage.Argv[1:]...)
		cmd.Env = buildEnv(stage, opts)
		if stage.Cwd != "" {
			cmd.Dir = stage.Cwd
		}

		stdin, closer, err := openStdin(ctx, stage.StdinSource, i, pipes, parentStdin)
		if err != nil {
			terminateAll(cmds[:i])
			closeAllPipes(pipes)
			closeAll(teardown)
			return ExitStatus{}, jnerrors.NewSpawnError(i, stage.Argv, err)
		}
		cmd.Stdin = stdin
		if closer != nil {
			teardown = append(teardown, closer)
		}

		stdout, closer, err := openStdout(stage.StdoutSink, i, pipes, parentStdout)
		if err != nil {
			terminateAll(cmds[:i])
			closeAllPipes(pipes)
			closeAll(teardown)
			return ExitStatus{}, jnerrors.NewSpawnError(i, stage.Argv, err)
		}
		cmd.Stdout = stdout
		if closer != nil {
			teardown = append(teardown, closer)
		}

		ring := newRingBuffer(opts.StderrBufferSize)
		cmd.Stderr = io.MultiWriter(parentStderr, ring)
		ringBuffers[i] = ring

		if err := cmd.Start(); err != nil {
			terminateAll(cmds[:i])
			closeAllPipes(pipes)
			closeAll(teardown)
			return ExitStatus{}, jnerrors.NewSpawnError(i, stage.Argv, err)
		}
		cmds[i] = cmd

		// Close discipline (spec §4.3.1 step 8): the parent must give up
		// its own copies of any pipe end just handed to a child, or
		// SIGPIPE never propagates when the real consumer exits.
		if i > 0 {
			pipes[i-1].read.Close()
		}
		if i < n-1 {
			pipes[i].write.Close()
		}
	}

	results := make([]stageResult, n)
	resultCh := make(chan stageResult, n)
	for i, cmd := range cmds {
		go func(i int, cmd *exec.Cmd) {
			cmd.Wait()
			resultCh <- stageResult{index: i, state: cmd.ProcessState}
		}(i, cmd)
	}

	runCtx := ctx
	var cancelTimeout context.CancelFunc
	if opts.Timeout > 0 {
		runCtx, cancelTimeout = context.WithTimeout(ctx, opts.Timeout)
		defer cancelTimeout()
	}

	aborted := false
	abortKind := jnerrors.KindCancelled
	received := 0
	for received < n {
		select {
		case res := <-resultCh:
			results[res.index] = res
			received++
		case <-runCtx.Done():
			if opts.Timeout > 0 && runCtx.Err() == context.DeadlineExceeded {
				abortKind = jnerrors.KindTimeout
			} else {
				abortKind = jnerrors.KindCancelled
			}
			aborted = true
			drainWithEscalation(cmds, resultCh, results, &received, opts.GracePeriod, opts.Logger)
		}
		if aborted {
			break
		}
	}

	closeAll(teardown)

	if aborted {
		code := CancelledExitCode
		if abortKind == jnerrors.KindTimeout {
			code = TimeoutExitCode
		}
		var err error
		if abortKind == jnerrors.KindTimeout {
			err = jnerrors.NewTimeoutError(fmt.Errorf("execution deadline exceeded after %s", opts.Timeout))
		} else {
			err = jnerrors.NewCancelledError(ctx.Err())
		}
		return ExitStatus{Code: code, Aborted: true, AbortKind: string(abortKind)}, err
	}

	return aggregateExitStatus(plan, results, ringBuffers)
}

// drainWithEscalation implements the SIGTERM-then-SIGKILL cancellation
// protocol (spec §4.3.3): terminate every stage, give them opts.grace to
// exit on their own, then force-kill whatever remains.
func drainWithEscalation(cmds []*exec.Cmd, resultCh <-chan stageResult, results []stageResult, received *int, grace time.Duration, log *logger.Logger) {
	signalAll(cmds, syscall.SIGTERM)
	if log != nil {
		log.Warn("pipeline cancelled, sending SIGTERM", "grace_period", grace.String())
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	n := len(cmds)
	for *received < n {
		select {
		case res := <-resultCh:
			results[res.index] = res
			*received++
		case <-timer.C:
			signalAll(cmds, syscall.SIGKILL)
			if log != nil {
				log.Warn("stages did not exit within grace period, sending SIGKILL")
			}
			for *received < n {
				res := <-resultCh
				results[res.index] = res
				*received++
			}
			return
		}
	}
}

func signalAll(cmds []*exec.Cmd, sig syscall.Signal) {
	for _, cmd := range cmds {
		if cmd == nil || cmd.Process == nil {
			continue
		}
		_ = cmd.Process.Signal(sig)
	}
}

func terminateAll(cmds []*exec.Cmd) {
	signalAll(cmds, syscall.SIGTERM)
	for _, cmd := range cmds {
		if cmd == nil || cmd.Process == nil {
			continue
		}
		_, _ = cmd.Process.Wait()
	}
}

// stageOutcome is the classified result of a single stage, distinguishing
// a signal-terminated process from a normal exit (spec §4.3.4 rule 3).
type stageOutcome struct {
	exitCode int
	signaled bool
	signal   syscall.Signal
}

func classify(state *os.ProcessState) stageOutcome {
	if state == nil {
		return stageOutcome{exitCode: -1}
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return stageOutcome{signaled: true, signal: ws.Signal(), exitCode: 128 + int(ws.Signal())}
	}
	return stageOutcome{exitCode: state.ExitCode()}
}

// aggregateExitStatus implements the failure model of spec §4.3.4: the
// earliest non-zero-exiting stage wins, except that a non-last stage
// terminated by SIGPIPE is treated as a deliberate, successful shutdown
// rather than a failure.
func aggregateExitStatus(plan *resolve.ExecutionPlan, results []stageResult, ringBuffers []*ringBuffer) (ExitStatus, error) {
	n := len(results)
	for i := 0; i < n; i++ {
		outcome := classify(results[i].state)
		if outcome.signaled && outcome.signal == syscall.SIGPIPE && i != n-1 {
			continue
		}
		if outcome.exitCode != 0 {
			stage := plan.Stages[i]
			tail := ringBuffers[i].String()
			return ExitStatus{Code: outcome.exitCode, FailingStageIndex: i, PluginName: stage.Plugin.Name, StderrTail: tail},
				jnerrors.NewPipelineError(i, stage.Plugin.Name, outcome.exitCode, tail)
		}
	}
	return ExitStatus{Code: 0}, nil
}

func buildEnv(stage resolve.Stage, opts ExecuteOptions) []string {
	env := os.Environ()
	if opts.Home != "" {
		env = append(env, "JN_HOME="+opts.Home)
	}
	if opts.WorkingDir != "" {
		env = append(env, "JN_WORKING_DIR="+opts.WorkingDir)
	}
	if opts.ProjectDir != "" {
		env = append(env, "JN_PROJECT_DIR="+opts.ProjectDir)
	}
	for k, v := range stage.Env {
		env = append(env, k+"="+v)
	}
	return env
}

// openStdin resolves a stage's stdin wiring (spec §4.3.1 steps 3-4) and
// reports an io.Closer to release after the plan finishes, if the endpoint
// owns a resource the executor itself opened (a file or a fetched URL).
func openStdin(ctx context.Context, spec resolve.StdioSpec, index int, pipes []pipePair, parentStdin io.Reader) (io.Reader, io.Closer, error) {
	switch spec.Kind {
	case resolve.StdioFile:
		f, err := os.Open(spec.Path)
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	case resolve.StdioURL:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.Path, nil)
		if err != nil {
			return nil, nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, nil, err
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, nil, fmt.Errorf("fetching %s: HTTP %d", spec.Path, resp.StatusCode)
		}
		return resp.Body, resp.Body, nil
	case resolve.StdioPipe:
		return pipes[index-1].read, nil, nil
	default:
		return parentStdin, nil, nil
	}
}

// openStdout resolves a stage's stdout wiring (spec §4.3.1 steps 5-6). No
// text/binary mode distinction applies on the platforms Go targets, which
// already satisfies §9's "binary mode for raw-mode stage output" design note.
func openStdout(spec resolve.StdioSpec, index int, pipes []pipePair, parentStdout io.Writer) (io.Writer, io.Closer, error) {
	switch spec.Kind {
	case resolve.StdioFile:
		f, err := os.OpenFile(spec.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	case resolve.StdioURL:
		return newURLSink(spec.Path)
	case resolve.StdioPipe:
		return pipes[index].write, nil, nil
	default:
		return parentStdout, nil, nil
	}
}

// urlSink streams a stage's stdout to an HTTP PUT request body, used for
// the rare write-direction URL sink. Close blocks until the upload
// finishes and surfaces any transport or status error.
type urlSink struct {
	pw     *io.PipeWriter
	result <-chan error
}

func newURLSink(url string) (io.Writer, io.Closer, error) {
	pr, pw := io.Pipe()
	result := make(chan error, 1)
	go func() {
		req, err := http.NewRequest(http.MethodPut, url, pr)
		if err != nil {
			pr.CloseWithError(err)
			result <- err
			return
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			result <- err
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			result <- fmt.Errorf("uploading to %s: HTTP %d", url, resp.StatusCode)
			return
		}
		result <- nil
	}()
	return pw, &urlSink{pw: pw, result: result}, nil
}

func (s *urlSink) Close() error {
	s.pw.Close()
	return <-s.result
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		if c != nil {
			_ = c.Close()
		}
	}
}

func closeAllPipes(pipes []pipePair) {
	for _, p := range pipes {
		if p.read != nil {
			p.read.Close()
		}
		if p.write != nil {
			p.write.Close()
		}
	}
}
