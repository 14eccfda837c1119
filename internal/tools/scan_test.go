package tools

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	apperrors "github.com/Justar96/tree-grep-mcp-sub002/internal/errors"
	"github.com/Justar96/tree-grep-mcp-sub002/testhelpers"
)

var noVar = RuleDef{
	ID:       "no-var",
	Language: "javascript",
	Pattern:  "var $NAME = $VALUE",
	Message:  "Use let or const instead of var",
	Severity: "warning",
}

func TestScan_NoVar(t *testing.T) {
	f := newFixture(t, map[string]string{"src/vars.js": testhelpers.VarJS}, Options{})

	res, err := f.tk.Scan(testContext(t), ScanRequest{Rules: []RuleDef{noVar}, Paths: wholeWorkspace})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Summary.TotalFindings)
	assert.Equal(t, 2, res.Summary.Warnings)
	assert.Zero(t, res.Summary.Errors)
	assert.Zero(t, res.Summary.Info)
	assert.Equal(t, 1, res.Summary.FilesWithFindings)
	assert.Equal(t, 1, res.Summary.Rules)

	got := res.Findings[0]
	assert.Equal(t, "no-var", got.RuleID)
	assert.Equal(t, "warning", got.Severity)
	assert.Equal(t, "Use let or const instead of var", got.Message)
	assert.Equal(t, "src/vars.js", got.File)
	assert.Equal(t, Position{Line: 1, Column: 1}, got.Start)
}

func TestScan_ErrorSeverityIsNotAFailure(t *testing.T) {
	f := newFixture(t, map[string]string{"a.js": testhelpers.VarJS}, Options{})
	rule := noVar
	rule.Severity = "error"

	res, err := f.tk.Scan(testContext(t), ScanRequest{Rules: []RuleDef{rule}, Paths: wholeWorkspace})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.Errors)
}

func TestScan_GroupsByRuleInCallerOrder(t *testing.T) {
	files := map[string]string{
		"a.js": testhelpers.ConsoleJS + testhelpers.VarJS,
		"b.js": testhelpers.VarJS + testhelpers.ConsoleJS,
	}
	rules := []RuleDef{
		{ID: "no-console", Language: "js", Pattern: "console.log($$$ARGS)", Severity: "info"},
		noVar,
	}

	for _, batch := range []bool{true, false} {
		name := "per-rule"
		if batch {
			name = "batched"
		}
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, files, Options{ScanBatchRules: batch, ScanConcurrency: 2})

			res, err := f.tk.Scan(testContext(t), ScanRequest{Rules: rules, Paths: wholeWorkspace})
			require.NoError(t, err)

			var ids []string
			for _, fd := range res.Findings {
				ids = append(ids, fd.RuleID)
			}
			assert.Equal(t, []string{
				"no-console", "no-console", "no-console", "no-console", "no-console", "no-console",
				"no-var", "no-var", "no-var", "no-var",
			}, ids)
			assert.Equal(t, "a.js", res.Findings[0].File)
			assert.Equal(t, "b.js", res.Findings[5].File)
			assert.Equal(t, 6, res.Summary.Info)
			assert.Equal(t, 4, res.Summary.Warnings)

			want := 1
			if !batch {
				want = 2
			}
			assert.Equal(t, want, f.fake.CountInvocations(t, "scan"))
		})
	}
}

func TestScan_InlineCode(t *testing.T) {
	f := newFixture(t, nil, Options{})

	res, err := f.tk.Scan(testContext(t), ScanRequest{Rules: []RuleDef{noVar}, Code: testhelpers.VarJS, Verbose: true})
	require.NoError(t, err)
	require.Len(t, res.Findings, 2)
	assert.Equal(t, InlineFile, res.Findings[0].File)
	assert.Equal(t, "var count = 0", res.Findings[0].Text)
	assert.Equal(t, 1, res.Summary.FilesScanned)
}

func TestScan_InvalidRules(t *testing.T) {
	f := newFixture(t, map[string]string{"a.js": testhelpers.VarJS}, Options{})
	ctx := testContext(t)

	tests := []struct {
		name  string
		rules []RuleDef
		code  string
		want  string
	}{
		{"no rules", nil, "", "at least one rule"},
		{"empty id", []RuleDef{{Language: "js", Pattern: "x"}}, "", "id must not be empty"},
		{"bad id", []RuleDef{{ID: "no var", Language: "js", Pattern: "x"}}, "", "id may only contain"},
		{"duplicate id", []RuleDef{noVar, noVar}, "", "duplicate id"},
		{"empty pattern", []RuleDef{{ID: "r", Language: "js"}}, "", "pattern must not be empty"},
		{"missing language", []RuleDef{{ID: "r", Pattern: "x"}}, "", "language is required"},
		{"unknown language", []RuleDef{{ID: "r", Language: "cobol", Pattern: "x"}}, "", "unknown language"},
		{"bad severity", []RuleDef{{ID: "r", Language: "js", Pattern: "x", Severity: "fatal"}}, "", "severity must be"},
		{"mixed inline languages", []RuleDef{noVar, {ID: "py", Language: "python", Pattern: "print($X)"}}, "var a = 1", "share one language"},
		{"engine rejects pattern", []RuleDef{{ID: "broken", Language: "js", Pattern: "foo("}}, "", "rejected the rule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ScanRequest{Rules: tt.rules, Code: tt.code}
			if tt.code == "" {
				req.Paths = wholeWorkspace
			}
			_, err := f.tk.Scan(ctx, req)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindInvalidRule, apperrors.KindOf(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNormalizeSeverity(t *testing.T) {
	tests := map[string]string{
		"":            "warning",
		"ERROR":       "error",
		"warn":        "warning",
		"hint":        "info",
		"information": "info",
	}
	for in, want := range tests {
		got, ok := NormalizeSeverity(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := NormalizeSeverity("critical")
	assert.False(t, ok)
}

func TestInlineRulesYAML(t *testing.T) {
	rules, err := validateRules([]RuleDef{
		noVar,
		{ID: "quoted", Language: "ts", Pattern: `foo("a: b")`, Note: "multi\nline"},
	})
	require.NoError(t, err)

	doc, err := inlineRulesYAML(rules)
	require.NoError(t, err)
	assert.Contains(t, doc, "\n---\n")

	dec := yaml.NewDecoder(strings.NewReader(doc))
	var got []inlineRule
	for {
		var r inlineRule
		if err := dec.Decode(&r); err != nil {
			break
		}
		got = append(got, r)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "no-var", got[0].ID)
	assert.Equal(t, "warning", got[0].Severity)
	assert.Equal(t, "typescript", got[1].Language)
	assert.Equal(t, `foo("a: b")`, got[1].Rule.Pattern)
	assert.Equal(t, "multi\nline", got[1].Note)
}
