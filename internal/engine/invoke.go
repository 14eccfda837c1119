package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"slices"
	"time"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/debug"
	apperrors "github.com/Justar96/tree-grep-mcp-sub002/internal/errors"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/metrics"
)

// waitDelay bounds how long Wait blocks on the output pipes after the process
// is killed, so a grandchild holding stdout cannot stall a timed out call.
const waitDelay = 2 * time.Second

// Invocation is one engine subprocess launch.
type Invocation struct {
	Op              string // metrics/log label: "run", "scan", "rewrite", "version"
	Args            []string
	Stdin           []byte // nil means no stdin
	Dir             string
	AcceptExitCodes []int // non-zero codes that still mean success (e.g. 1 = no matches)
}

// Output is the complete result of a successful invocation.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Invoke runs the engine once and waits for it.
//
// The call is bounded by the handle's timeout. On expiry the process is killed
// and EngineTimeout is returned with no output. A non-zero exit is success only
// when the code is listed in AcceptExitCodes and stderr carries no engine error
// header; any other exit yields EngineInvocationFailed with stderr attached as
// the diagnostic.
func (h *Handle) Invoke(ctx context.Context, inv Invocation) (*Output, error) {
	op := inv.Op
	if op == "" {
		op = "invoke"
	}

	runCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, h.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(), h.env...)
	cmd.WaitDelay = waitDelay
	if inv.Stdin != nil {
		cmd.Stdin = bytes.NewReader(inv.Stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	debug.LogEngine("exec %s %q\n", h.Path, inv.Args)
	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if outcome, err := h.interruption(ctx, runCtx, op, runErr); err != nil {
		metrics.ObserveEngineInvocation(op, outcome, elapsed)
		return nil, err
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			metrics.ObserveEngineInvocation(op, metrics.OutcomeError, elapsed)
			return nil, apperrors.Wrap(apperrors.KindEngineInvocationFailed, op, runErr, "failed to start engine").
				WithPath(h.Path)
		}
		exitCode = exitErr.ExitCode()
	}

	out := &Output{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Duration: elapsed,
	}

	if exitCode != 0 && (!slices.Contains(inv.AcceptExitCodes, exitCode) || HasErrorHeader(out.Stderr)) {
		metrics.ObserveEngineInvocation(op, metrics.OutcomeError, elapsed)
		return nil, apperrors.Newf(apperrors.KindEngineInvocationFailed, op, "engine exited with code %d", exitCode).
			WithDiagnostic(SummarizeDiagnostic(out.Stderr))
	}

	metrics.ObserveEngineInvocation(op, metrics.OutcomeSuccess, elapsed)
	return out, nil
}

// interruption classifies a run that its context cut short. A process that
// exited on its own is never a timeout, even when the deadline passed before
// Run returned.
func (h *Handle) interruption(parent, run context.Context, op string, runErr error) (string, error) {
	if runErr == nil || run.Err() == nil {
		return "", nil
	}
	// Caller cancellation is not a timeout
	if parentErr := parent.Err(); parentErr != nil && !errors.Is(parentErr, context.DeadlineExceeded) {
		return metrics.OutcomeCancelled, apperrors.Wrap(apperrors.KindEngineInvocationFailed, op, parentErr, "engine invocation cancelled")
	}
	debug.LogEngine("%s timed out after %v\n", op, h.timeout)
	return metrics.OutcomeTimeout, apperrors.Newf(apperrors.KindEngineTimeout, op, "engine did not finish within %v", h.timeout)
}
