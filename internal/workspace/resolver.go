// Package workspace turns the paths or inline code of a tool request into a
// Scope the engine can be pointed at, without ever leaving the authorised roots.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/debug"
	apperrors "github.com/Justar96/tree-grep-mcp-sub002/internal/errors"
	"github.com/Justar96/tree-grep-mcp-sub002/pkg/pathutil"
)

const opResolve = "workspace.resolve"

// Config lists the authorised roots and how directories expand.
type Config struct {
	Roots            []string
	Exclude          []string
	RespectGitignore bool
	FollowSymlinks   bool
}

// Request is the path/code part of a tool call.
type Request struct {
	Paths     []string
	Code      string
	Languages []string // filters directory expansion; the first one tags inline code
}

// Scope is the resolved target of one tool call. Exactly one of Files and
// Code is meaningful, as reported by Inline.
type Scope struct {
	Files    []string // absolute, canonical, deduplicated, in request order
	Code     string
	Inline   bool
	Language string // language of inline code
	Warnings []string

	roots []string
}

// Empty reports whether there is nothing to hand to the engine.
func (s *Scope) Empty() bool {
	return !s.Inline && len(s.Files) == 0
}

// Rel renders a path for output, relative to the root that contains it.
func (s *Scope) Rel(path string) string {
	return pathutil.ToRelativeAny(path, s.roots)
}

// Resolver is immutable after construction and safe for concurrent use.
type Resolver struct {
	roots          []string
	matchers       map[string]*Matcher
	followSymlinks bool
}

// NewResolver canonicalises the roots. Every root must exist and be a directory.
func NewResolver(cfg Config) (*Resolver, error) {
	if len(cfg.Roots) == 0 {
		return nil, apperrors.New(apperrors.KindConfig, "workspace.roots", "at least one workspace root is required")
	}

	r := &Resolver{matchers: map[string]*Matcher{}, followSymlinks: cfg.FollowSymlinks}
	for _, root := range cfg.Roots {
		canonical, err := canonicalize(root)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindConfig, "workspace.roots", err, "workspace root is not usable").WithPath(root)
		}
		info, err := os.Stat(canonical)
		if err != nil || !info.IsDir() {
			return nil, apperrors.New(apperrors.KindConfig, "workspace.roots", "workspace root is not a directory").WithPath(root)
		}
		if _, dup := r.matchers[canonical]; dup {
			continue
		}

		m := NewMatcher(cfg.Exclude)
		if cfg.RespectGitignore {
			if err := m.LoadGitignore(canonical); err != nil {
				debug.LogWorkspace("ignoring unreadable .gitignore in %s: %v\n", canonical, err)
			}
		}
		r.roots = append(r.roots, canonical)
		r.matchers[canonical] = m
	}
	return r, nil
}

// Roots returns the canonical authorised roots; the first is the primary root.
func (r *Resolver) Roots() []string {
	return append([]string(nil), r.roots...)
}

// Resolve validates a request and expands it into a Scope.
func (r *Resolver) Resolve(req Request) (*Scope, error) {
	hasCode := req.Code != ""
	hasPaths := len(req.Paths) > 0
	switch {
	case hasCode && hasPaths:
		return nil, apperrors.New(apperrors.KindConflictingInput, opResolve, "provide either paths or code, not both")
	case !hasCode && !hasPaths:
		return nil, apperrors.New(apperrors.KindConflictingInput, opResolve, "provide paths or code")
	}

	scope := &Scope{roots: r.roots}
	if hasCode {
		if len(req.Languages) == 0 || req.Languages[0] == "" {
			return nil, apperrors.New(apperrors.KindInvalidRequest, opResolve, "inline code requires a language")
		}
		scope.Inline = true
		scope.Code = req.Code
		scope.Language = req.Languages[0]
		return scope, nil
	}

	w := &walker{
		resolver: r,
		exts:     extensionSet(req.Languages),
		seen:     map[string]bool{},
		seenDirs: map[string]bool{},
		scope:    scope,
	}
	for _, p := range req.Paths {
		if err := w.add(p); err != nil {
			return nil, err
		}
	}
	debug.LogWorkspace("resolved %d path(s) to %d file(s)\n", len(req.Paths), len(scope.Files))
	return scope, nil
}

// Check resolves a single path and enforces containment, without expanding it.
func (r *Resolver) Check(path string) (string, error) {
	canonical, _, err := r.locate(path)
	return canonical, err
}

// locate canonicalises a requested path and returns it with its root.
func (r *Resolver) locate(p string) (string, string, error) {
	if strings.TrimSpace(p) == "" {
		return "", "", apperrors.New(apperrors.KindInvalidPath, opResolve, "empty path")
	}
	if strings.ContainsRune(p, 0) {
		return "", "", apperrors.New(apperrors.KindInvalidPath, opResolve, "path contains a NUL byte")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.roots[0], p)
	}

	canonical, err := canonicalize(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", apperrors.New(apperrors.KindInvalidPath, opResolve, "path does not exist").WithPath(p)
		}
		return "", "", apperrors.Wrap(apperrors.KindInvalidPath, opResolve, err, "cannot resolve path").WithPath(p)
	}

	root, ok := r.rootOf(canonical)
	if !ok {
		return "", "", apperrors.New(apperrors.KindPathOutsideWorkspace, opResolve, "path is outside the workspace").WithPath(p)
	}
	return canonical, root, nil
}

func (r *Resolver) rootOf(canonical string) (string, bool) {
	for _, root := range r.roots {
		if pathutil.IsWithin(root, canonical) {
			return root, true
		}
	}
	return "", false
}

func canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// walker expands the paths of one request.
type walker struct {
	resolver *Resolver
	exts     map[string]bool
	seen     map[string]bool
	seenDirs map[string]bool
	scope    *Scope
}

func (w *walker) add(p string) error {
	canonical, root, err := w.resolver.locate(p)
	if err != nil {
		return err
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInvalidPath, opResolve, err, "cannot stat path").WithPath(p)
	}
	if !info.IsDir() {
		// explicitly named files are kept whatever their extension
		w.addFile(canonical)
		return nil
	}
	return w.walk(canonical, root)
}

func (w *walker) addFile(canonical string) {
	if w.seen[canonical] {
		return
	}
	w.seen[canonical] = true
	w.scope.Files = append(w.scope.Files, canonical)
}

func (w *walker) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	debug.LogWorkspace("%s\n", msg)
	w.scope.Warnings = append(w.scope.Warnings, msg)
}

func (w *walker) walk(dir, root string) error {
	if w.seenDirs[dir] {
		return nil
	}
	w.seenDirs[dir] = true
	matcher := w.resolver.matchers[root]

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return apperrors.Wrap(apperrors.KindInvalidPath, opResolve, err, "cannot read directory").WithPath(path)
			}
			w.warn("skipped unreadable %s: %v", pathutil.ToRelative(path, root), err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel := pathutil.ToRelative(path, root)
		if path != dir && matcher.Ignored(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			return w.followLink(path, rel)
		case d.IsDir():
			return nil
		case d.Type().IsRegular() && w.exts[strings.ToLower(filepath.Ext(path))]:
			w.addFile(path)
		}
		return nil
	})
}

// followLink handles a symlink met during expansion. Links whose target leaves
// every root are skipped with a warning, never followed.
func (w *walker) followLink(path, rel string) error {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		w.warn("skipped broken symlink %s", rel)
		return nil
	}
	targetRoot, ok := w.resolver.rootOf(target)
	if !ok {
		w.warn("skipped symlink %s: target is outside the workspace", rel)
		return nil
	}
	info, err := os.Stat(target)
	if err != nil {
		w.warn("skipped symlink %s: %v", rel, err)
		return nil
	}
	if info.IsDir() {
		if !w.resolver.followSymlinks {
			return nil
		}
		return w.walk(target, targetRoot)
	}
	if info.Mode().IsRegular() && w.exts[strings.ToLower(filepath.Ext(target))] {
		w.addFile(target)
	}
	return nil
}
