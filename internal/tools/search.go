package tools

import (
	"context"
	"strings"
	"time"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/engine"
	apperrors "github.com/Justar96/tree-grep-mcp-sub002/internal/errors"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/workspace"
)

const ToolSearch = "ast_search"

type SearchRequest struct {
	Pattern  string
	Language string
	Paths    []string
	Code     string
	Verbose  bool
}

// Validate checks what can be checked without the engine and returns the
// canonical language.
func (r SearchRequest) Validate() (workspace.Language, error) {
	if strings.TrimSpace(r.Pattern) == "" {
		return workspace.Language{}, apperrors.New(apperrors.KindInvalidPattern, ToolSearch, "pattern must not be empty")
	}
	return requireLanguage(ToolSearch, r.Language)
}

func requireLanguage(op, name string) (workspace.Language, error) {
	if strings.TrimSpace(name) == "" {
		return workspace.Language{}, apperrors.New(apperrors.KindInvalidRequest, op, "language is required")
	}
	lang, ok := workspace.LookupLanguage(name)
	if !ok {
		return workspace.Language{}, unknownLanguage(op, apperrors.KindInvalidRequest, name)
	}
	return lang, nil
}

type SearchSummary struct {
	TotalMatches     int    `json:"totalMatches"`
	FilesSearched    int    `json:"filesSearched"`
	FilesWithMatches int    `json:"filesWithMatches"`
	Language         string `json:"language"`
	Verbose          bool   `json:"verbose"`
	DurationMs       int64  `json:"durationMs"`
}

type SearchResult struct {
	Matches  []Match       `json:"matches"`
	Summary  SearchSummary `json:"summary"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Search runs a read-only structural query. The match count never depends on
// Verbose; only the detail of each record does.
func (tk *Toolkit) Search(ctx context.Context, req SearchRequest) (result *SearchResult, err error) {
	start := time.Now()
	defer func() {
		n := 0
		if result != nil {
			n = result.Summary.TotalMatches
		}
		observe(ToolSearch, start, n, err)
	}()

	lang, err := req.Validate()
	if err != nil {
		return nil, err
	}
	scope, err := tk.workspace.Resolve(workspace.Request{Paths: req.Paths, Code: req.Code, Languages: []string{lang.Name}})
	if err != nil {
		return nil, err
	}

	result = &SearchResult{
		Matches:  []Match{},
		Warnings: scope.Warnings,
		Summary: SearchSummary{
			Language:      lang.Name,
			Verbose:       req.Verbose,
			FilesSearched: len(scope.Files),
		},
	}
	if scope.Inline {
		result.Summary.FilesSearched = 1
	}
	if scope.Empty() {
		result.Summary.DurationMs = time.Since(start).Milliseconds()
		return result, nil
	}

	raw, err := tk.collect(ctx, "run", scope, func(paths []string, stdin bool) []string {
		return engine.RunArgs(engine.RunOptions{Pattern: req.Pattern, Language: lang.Name, Stdin: stdin, Paths: paths})
	}, []int{engine.ExitNoMatches}, apperrors.KindInvalidPattern)
	if err != nil {
		return nil, err
	}

	files := map[string]bool{}
	for _, m := range raw {
		file := displayFile(scope, m.File)
		files[file] = true
		result.Matches = append(result.Matches, toMatch(m, file, req.Verbose))
	}
	result.Summary.TotalMatches = len(raw)
	result.Summary.FilesWithMatches = len(files)
	result.Summary.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}
