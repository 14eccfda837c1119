package tools

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/engine"
	apperrors "github.com/Justar96/tree-grep-mcp-sub002/internal/errors"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/workspace"
)

const ToolScan = "ast_run_rule"

type ScanRequest struct {
	Rules   []RuleDef
	Paths   []string
	Code    string
	Verbose bool
}

// Finding is a match tagged with the rule that produced it.
type Finding struct {
	RuleID   string `json:"ruleId"`
	Severity string `json:"severity"`
	Message  string `json:"message,omitempty"`
	Note     string `json:"note,omitempty"`
	Match
}

type ScanSummary struct {
	Errors            int   `json:"errors"`
	Warnings          int   `json:"warnings"`
	Info              int   `json:"info"`
	TotalFindings     int   `json:"totalFindings"`
	Rules             int   `json:"rules"`
	FilesScanned      int   `json:"filesScanned"`
	FilesWithFindings int   `json:"filesWithFindings"`
	DurationMs        int64 `json:"durationMs"`
}

type ScanResult struct {
	Findings []Finding   `json:"findings"`
	Summary  ScanSummary `json:"summary"`
	Warnings []string    `json:"warnings,omitempty"`
}

// Scan runs rules against a scope. Findings come back grouped by rule in the
// order the rules were given, each group in engine order; whether the rules
// ran in one engine invocation or several does not change the result.
func (tk *Toolkit) Scan(ctx context.Context, req ScanRequest) (result *ScanResult, err error) {
	start := time.Now()
	defer func() {
		n := 0
		if result != nil {
			n = result.Summary.TotalFindings
		}
		observe(ToolScan, start, n, err)
	}()

	rules, err := validateRules(req.Rules)
	if err != nil {
		return nil, err
	}

	var langs []string
	for _, r := range rules {
		langs = append(langs, r.Language)
	}
	if req.Code != "" {
		for _, r := range rules[1:] {
			if r.Language != rules[0].Language {
				return nil, apperrors.New(apperrors.KindInvalidRule, ToolScan,
					"all rules must share one language when scanning inline code")
			}
		}
	}

	scope, err := tk.workspace.Resolve(workspace.Request{Paths: req.Paths, Code: req.Code, Languages: langs})
	if err != nil {
		return nil, err
	}

	result = &ScanResult{
		Findings: []Finding{},
		Warnings: scope.Warnings,
		Summary:  ScanSummary{Rules: len(rules), FilesScanned: len(scope.Files)},
	}
	if scope.Inline {
		result.Summary.FilesScanned = 1
	}
	if scope.Empty() {
		result.Summary.DurationMs = time.Since(start).Milliseconds()
		return result, nil
	}

	var perRule [][]engine.RawMatch
	if tk.opts.ScanBatchRules || len(rules) == 1 {
		perRule, err = tk.scanBatch(ctx, scope, rules)
	} else {
		perRule, err = tk.scanEach(ctx, scope, rules)
	}
	if err != nil {
		return nil, err
	}

	files := map[string]bool{}
	for i, r := range rules {
		for _, m := range perRule[i] {
			file := displayFile(scope, m.File)
			files[file] = true
			result.Findings = append(result.Findings, Finding{
				RuleID:   r.ID,
				Severity: r.Severity,
				Message:  r.Message,
				Note:     r.Note,
				Match:    toMatch(m, file, req.Verbose),
			})
			switch r.Severity {
			case SeverityError:
				result.Summary.Errors++
			case SeverityWarning:
				result.Summary.Warnings++
			default:
				result.Summary.Info++
			}
		}
	}
	result.Summary.TotalFindings = len(result.Findings)
	result.Summary.FilesWithFindings = len(files)
	result.Summary.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// scanBatch sends every rule in one --inline-rules document stream and splits
// the records by rule id.
func (tk *Toolkit) scanBatch(ctx context.Context, scope *workspace.Scope, rules []RuleDef) ([][]engine.RawMatch, error) {
	doc, err := inlineRulesYAML(rules)
	if err != nil {
		return nil, err
	}
	raw, err := tk.runScan(ctx, scope, doc)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(rules))
	for i, r := range rules {
		index[r.ID] = i
	}
	perRule := make([][]engine.RawMatch, len(rules))
	for _, m := range raw {
		i, ok := index[m.RuleID]
		if !ok {
			if len(rules) != 1 {
				continue
			}
			i = 0
		}
		perRule[i] = append(perRule[i], m)
	}
	return perRule, nil
}

// scanEach runs one invocation per rule, in parallel, and keeps caller order.
func (tk *Toolkit) scanEach(ctx context.Context, scope *workspace.Scope, rules []RuleDef) ([][]engine.RawMatch, error) {
	perRule := make([][]engine.RawMatch, len(rules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tk.opts.ScanConcurrency)
	for i, r := range rules {
		g.Go(func() error {
			doc, err := inlineRulesYAML([]RuleDef{r})
			if err != nil {
				return err
			}
			raw, err := tk.runScan(gctx, scope, doc)
			if err != nil {
				return err
			}
			perRule[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return perRule, nil
}

func (tk *Toolkit) runScan(ctx context.Context, scope *workspace.Scope, doc string) ([]engine.RawMatch, error) {
	// scan exits 1 when an error-severity rule fired
	return tk.collect(ctx, "scan", scope, func(paths []string, stdin bool) []string {
		return engine.ScanArgs(engine.ScanOptions{InlineRules: doc, Stdin: stdin, Paths: paths})
	}, []int{engine.ExitNoMatches}, apperrors.KindInvalidRule)
}
