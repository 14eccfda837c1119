package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/debug"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/engine"
	apperrors "github.com/Justar96/tree-grep-mcp-sub002/internal/errors"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/metrics"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/workspace"
)

const ToolReplace = "ast_replace"

type ReplaceRequest struct {
	Pattern     string
	Replacement string
	Language    string
	Paths       []string
	Code        string
	DryRun      bool
}

// Change is one rewrite site. Applied is true only once the file on disk holds
// the new text.
type Change struct {
	File        string   `json:"file"`
	Start       Position `json:"start"`
	End         Position `json:"end"`
	Original    string   `json:"original"`
	Replacement string   `json:"replacement"`
	Applied     bool     `json:"applied"`
}

type ReplaceSummary struct {
	TotalChanges  int   `json:"totalChanges"`
	FilesModified int   `json:"filesModified"`
	FilesFailed   int   `json:"filesFailed,omitempty"`
	DryRun        bool  `json:"dryRun"`
	DurationMs    int64 `json:"durationMs"`
}

type FileFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type ReplaceResult struct {
	Changes   []Change       `json:"changes"`
	Summary   ReplaceSummary `json:"summary"`
	Failures  []FileFailure  `json:"failures,omitempty"`
	Rewritten *string        `json:"rewritten,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// errStalePreview marks a file whose content no longer matches the preview.
var errStalePreview = errors.New("file changed on disk since the preview; not rewritten")

// fileChanges is the preview of one file: its engine records in order.
type fileChanges struct {
	path    string
	display string
	first   int // index of the file's first change in the result
	matches []engine.RawMatch

	hash     uint64 // xxhash of the content the preview describes
	expected uint64 // xxhash of that content with the preview applied
}

// snapshot hashes the file the preview was computed from. It fails with
// errStalePreview when the previewed text is no longer where the engine
// reported it.
func (fc *fileChanges) snapshot() error {
	src, err := os.ReadFile(fc.path)
	if err != nil {
		return err
	}
	for _, m := range fc.matches {
		off := m.Range.ByteOffset
		if off.Start < 0 || off.End > len(src) || off.Start > off.End || string(src[off.Start:off.End]) != m.Text {
			return errStalePreview
		}
	}
	fc.hash = xxhash.Sum64(src)
	fc.expected = xxhash.Sum64(splice(src, fc.matches))
	return nil
}

// Replace previews a rewrite and, unless DryRun is set, applies it.
//
// The preview always runs first and never touches disk. In write mode each
// file is rewritten by its own engine invocation and verified afterwards; a
// file whose content did not change is reported as failed while the others
// keep their changes. Any failure makes Replace return the result together
// with a PartialWriteFailure error.
func (tk *Toolkit) Replace(ctx context.Context, req ReplaceRequest) (result *ReplaceResult, err error) {
	start := time.Now()
	defer func() {
		n := 0
		if result != nil {
			n = result.Summary.TotalChanges
		}
		observe(ToolReplace, start, n, err)
	}()

	if strings.TrimSpace(req.Pattern) == "" {
		return nil, apperrors.New(apperrors.KindInvalidPattern, ToolReplace, "pattern must not be empty")
	}
	lang, err := requireLanguage(ToolReplace, req.Language)
	if err != nil {
		return nil, err
	}
	scope, err := tk.workspace.Resolve(workspace.Request{Paths: req.Paths, Code: req.Code, Languages: []string{lang.Name}})
	if err != nil {
		return nil, err
	}

	result = &ReplaceResult{
		Changes:  []Change{},
		Warnings: slices.Concat(scope.Warnings, templateWarnings(req.Pattern, req.Replacement)),
		Summary:  ReplaceSummary{DryRun: req.DryRun || scope.Inline},
	}
	if scope.Empty() {
		result.Summary.DurationMs = time.Since(start).Milliseconds()
		return result, nil
	}

	replacement := req.Replacement
	raw, err := tk.collect(ctx, "run", scope, func(paths []string, stdin bool) []string {
		return engine.RunArgs(engine.RunOptions{
			Pattern:  req.Pattern,
			Language: lang.Name,
			Rewrite:  &replacement,
			Stdin:    stdin,
			Paths:    paths,
		})
	}, []int{engine.ExitNoMatches}, apperrors.KindInvalidPattern)
	if err != nil {
		return nil, err
	}

	var files []*fileChanges
	byPath := map[string]*fileChanges{}
	for _, m := range raw {
		display := displayFile(scope, m.File)
		fc, ok := byPath[m.File]
		if !ok {
			fc = &fileChanges{path: m.File, display: display, first: len(result.Changes)}
			byPath[m.File] = fc
			files = append(files, fc)
		}
		fc.matches = append(fc.matches, m)
		result.Changes = append(result.Changes, Change{
			File:        display,
			Start:       toPosition(m.Range.Start),
			End:         toPosition(m.Range.End),
			Original:    m.Text,
			Replacement: replacementText(m),
		})
	}

	if scope.Inline {
		rewritten := string(splice([]byte(scope.Code), raw))
		result.Rewritten = &rewritten
	}
	if result.Summary.DryRun {
		result.Summary.TotalChanges = len(result.Changes)
		result.Summary.FilesModified = len(files)
		result.Summary.DurationMs = time.Since(start).Milliseconds()
		return result, nil
	}

	err = tk.apply(ctx, result, files, req.Pattern, lang.Name, replacement)
	result.Summary.DurationMs = time.Since(start).Milliseconds()
	return result, err
}

// apply rewrites each previewed file and marks the changes that landed.
func (tk *Toolkit) apply(ctx context.Context, result *ReplaceResult, files []*fileChanges, pattern, lang, replacement string) error {
	type outcome struct {
		err     error
		warning string
	}
	outcomes := make([]outcome, len(files))

	// hash every file before any rewrite starts
	for i, fc := range files {
		outcomes[i].err = fc.snapshot()
	}

	var g errgroup.Group
	g.SetLimit(tk.opts.ReplaceConcurrency)
	for i, fc := range files {
		if outcomes[i].err != nil {
			continue
		}
		g.Go(func() error {
			warning, err := tk.rewriteFile(ctx, fc, pattern, lang, replacement)
			outcomes[i] = outcome{err: err, warning: warning}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for i, fc := range files {
		o := outcomes[i]
		if o.warning != "" {
			result.Warnings = append(result.Warnings, o.warning)
		}
		if o.err != nil {
			metrics.RecordRewriteError()
			errs = append(errs, apperrors.NewFileError("rewrite", fc.display, o.err))
			result.Failures = append(result.Failures, FileFailure{File: fc.display, Error: failureText(o.err)})
			continue
		}
		metrics.RecordFileRewritten()
		for j := range fc.matches {
			result.Changes[fc.first+j].Applied = true
		}
		result.Summary.TotalChanges += len(fc.matches)
		result.Summary.FilesModified++
	}
	result.Summary.FilesFailed = len(result.Failures)

	if len(errs) == 0 {
		return nil
	}
	msg := fmt.Sprintf("%d of %d files could not be rewritten", len(errs), len(files))
	return apperrors.Wrap(apperrors.KindPartialWriteFailure, ToolReplace, apperrors.NewMultiError(errs), msg)
}

// rewriteFile runs `--update-all` on one snapshotted file and checks the
// result by content hash. A file that changed since the snapshot is not
// touched. It returns a warning when the file changed but not into what the
// preview predicted.
func (tk *Toolkit) rewriteFile(ctx context.Context, fc *fileChanges, pattern, lang, replacement string) (string, error) {
	before, err := os.ReadFile(fc.path)
	if err != nil {
		return "", err
	}
	if xxhash.Sum64(before) != fc.hash {
		return "", errStalePreview
	}

	_, err = tk.engine.Invoke(ctx, engine.Invocation{
		Op: "rewrite",
		Args: engine.RunArgs(engine.RunOptions{
			Pattern:   pattern,
			Language:  lang,
			Rewrite:   &replacement,
			UpdateAll: true,
			Paths:     []string{fc.path},
		}),
		AcceptExitCodes: []int{engine.ExitNoMatches},
	})
	if err != nil {
		return "", err
	}

	after, err := os.ReadFile(fc.path)
	if err != nil {
		return "", err
	}
	switch h := xxhash.Sum64(after); {
	case h == fc.hash && fc.hash != fc.expected:
		return "", fmt.Errorf("file content unchanged after rewrite")
	case h != fc.expected:
		debug.LogTools("rewrite of %s differs from preview (%d bytes)\n", fc.path, len(after))
		return fmt.Sprintf("%s changed on disk during the write; result differs from preview", fc.display), nil
	}
	return "", nil
}

// failureText is the error message plus the engine's own report, if any.
func failureText(err error) string {
	if d := apperrors.DiagnosticOf(err); d != "" {
		return err.Error() + ": " + d
	}
	return err.Error()
}

func replacementText(m engine.RawMatch) string {
	if m.Replacement == nil {
		return ""
	}
	return *m.Replacement
}

// splice applies the records' replacements to src. Overlapping edits after
// the first are dropped.
func splice(src []byte, matches []engine.RawMatch) []byte {
	type edit struct {
		start, end int
		text       string
	}
	edits := make([]edit, 0, len(matches))
	for _, m := range matches {
		off := m.Range.ByteOffset
		if m.ReplacementOffsets != nil {
			off = *m.ReplacementOffsets
		}
		if off.Start < 0 || off.End > len(src) || off.Start > off.End {
			continue
		}
		edits = append(edits, edit{start: off.Start, end: off.End, text: replacementText(m)})
	}
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	out := make([]byte, 0, len(src))
	pos := 0
	for _, e := range edits {
		if e.start < pos {
			continue
		}
		out = append(out, src[pos:e.start]...)
		out = append(out, e.text...)
		pos = e.end
	}
	return append(out, src[pos:]...)
}

// templateWarnings flags metavariables used in the replacement that the
// pattern never binds. The engine substitutes them with nothing.
func templateWarnings(pattern, replacement string) []string {
	bound := metavariables(pattern)
	var warnings []string
	for _, name := range metavariables(replacement) {
		if !slices.Contains(bound, name) {
			warnings = append(warnings, fmt.Sprintf("replacement uses $%s which the pattern does not capture; it will be empty", name))
		}
	}
	return warnings
}
