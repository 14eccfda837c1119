package tools

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/debug"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/engine"
	apperrors "github.com/Justar96/tree-grep-mcp-sub002/internal/errors"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/metrics"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/workspace"
)

// argsFunc builds the engine command line for a chunk of files, or for stdin
// when paths is nil.
type argsFunc func(paths []string, stdin bool) []string

// collect runs the engine over a scope and returns every record in emission
// order. Files are split into chunks that run one after another so the order
// stays deterministic. patternKind is the error kind for engine diagnostics that
// describe a bad pattern or rule.
func (tk *Toolkit) collect(ctx context.Context, op string, scope *workspace.Scope, args argsFunc, accept []int, patternKind apperrors.Kind) ([]engine.RawMatch, error) {
	if scope.Inline {
		return tk.invoke(ctx, engine.Invocation{
			Op:              op,
			Args:            args(nil, true),
			Stdin:           []byte(scope.Code),
			AcceptExitCodes: accept,
		}, patternKind)
	}

	var all []engine.RawMatch
	for _, chunk := range engine.ChunkPaths(scope.Files, tk.opts.MaxPathsPerInvocation) {
		matches, err := tk.invoke(ctx, engine.Invocation{
			Op:              op,
			Args:            args(chunk, false),
			AcceptExitCodes: accept,
		}, patternKind)
		if err != nil {
			return nil, err
		}
		all = append(all, matches...)
	}
	return all, nil
}

func (tk *Toolkit) invoke(ctx context.Context, inv engine.Invocation, patternKind apperrors.Kind) ([]engine.RawMatch, error) {
	out, err := tk.engine.Invoke(ctx, inv)
	if err != nil {
		return nil, classifyEngineError(err, patternKind)
	}
	matches, err := engine.CollectMatches(bytes.NewReader(out.Stdout))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindEngineInvocationFailed, inv.Op, err, "unreadable engine output").
			WithDiagnostic(engine.SummarizeDiagnostic(out.Stderr))
	}
	return matches, nil
}

// classifyEngineError turns an engine failure that is really a pattern or
// rule error into patternKind, keeping the engine's diagnostic.
func classifyEngineError(err error, patternKind apperrors.Kind) error {
	if apperrors.KindOf(err) != apperrors.KindEngineInvocationFailed {
		return err
	}
	diagnostic := apperrors.DiagnosticOf(err)
	if !engine.IsPatternDiagnostic(diagnostic) {
		return err
	}
	msg := "engine rejected the pattern"
	if patternKind == apperrors.KindInvalidRule {
		msg = "engine rejected the rule"
	}
	return apperrors.Wrap(patternKind, "engine", err, msg).WithDiagnostic(diagnostic)
}

// observe records a finished tool call.
func observe(tool string, start time.Time, results int, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = string(apperrors.KindOf(err))
	}
	metrics.ObserveToolCall(tool, outcome, time.Since(start), results)
	debug.LogTools("%s finished in %v: results=%d outcome=%s\n", tool, time.Since(start), results, outcome)
}

func unknownLanguage(op string, kind apperrors.Kind, name string) *apperrors.ToolError {
	msg := fmt.Sprintf("unknown language %q", name)
	if s := workspace.SuggestLanguage(name); s != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", s)
	}
	return apperrors.New(kind, op, msg)
}
