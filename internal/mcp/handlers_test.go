package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Justar96/tree-grep-mcp-sub002/internal/errors"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/tools"
	"github.com/Justar96/tree-grep-mcp-sub002/testhelpers"
)

var handlerFiles = map[string]string{
	"src/app.js":  testhelpers.ConsoleJS,
	"src/vars.js": testhelpers.VarJS,
}

func TestHandleSearch(t *testing.T) {
	s, _ := newTestServer(t, handlerFiles)

	res := callTool(t, s.handleSearch, map[string]any{
		"pattern": "console.log($ARG)",
		"lang":    "js",
		"path":    "src/app.js",
		"limit":   10,
	})
	require.False(t, res.IsError, resultText(t, res))

	result := decodeResult[tools.SearchResult](t, res)
	assert.Equal(t, 3, result.Summary.TotalMatches)
	assert.Equal(t, []string{`ignored unknown parameter "limit"`}, result.Warnings)
	for _, m := range result.Matches {
		assert.Empty(t, m.Text, "concise by default")
	}
}

func TestHandleSearch_Errors(t *testing.T) {
	s, _ := newTestServer(t, handlerFiles)

	tests := []struct {
		name string
		args any
		kind apperrors.Kind
	}{
		{"malformed paths", map[string]any{"pattern": "x", "language": "js", "paths": 3}, apperrors.KindInvalidRequest},
		{"empty pattern", map[string]any{"pattern": "", "language": "js"}, apperrors.KindInvalidPattern},
		{"conflicting input", map[string]any{"pattern": "x", "language": "js", "paths": []string{"src"}, "code": "x"}, apperrors.KindConflictingInput},
		{"outside workspace", map[string]any{"pattern": "x", "language": "js", "paths": []string{"/"}}, apperrors.KindPathOutsideWorkspace},
		{"missing path", map[string]any{"pattern": "x", "language": "js", "paths": []string{"nope"}}, apperrors.KindInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, s.handleSearch, tt.args)
			require.True(t, res.IsError)
			body := decodeResult[ErrorBody](t, res)
			assert.Equal(t, string(tt.kind), body.Kind, body.Error)
			assert.Equal(t, ToolSearch, body.Operation)
		})
	}
}

func TestHandleSearch_NoArguments(t *testing.T) {
	s, _ := newTestServer(t, handlerFiles)
	res, err := s.handleSearch(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Equal(t, string(apperrors.KindInvalidPattern), decodeResult[ErrorBody](t, res).Kind)
}

func TestHandleScan(t *testing.T) {
	s, _ := newTestServer(t, handlerFiles)

	res := callTool(t, s.handleScan, map[string]any{
		"rules": []map[string]any{
			{"id": "no-console", "language": "javascript", "pattern": "console.log($ARG)", "severity": "error"},
			{"id": "no-var", "language": "javascript", "pattern": "var $NAME = $VALUE", "message": "Use let"},
		},
		"paths": []string{"src"},
	})
	require.False(t, res.IsError, resultText(t, res))

	result := decodeResult[tools.ScanResult](t, res)
	assert.Equal(t, 5, result.Summary.TotalFindings)
	assert.Equal(t, 3, result.Summary.Errors)
	assert.Equal(t, 2, result.Summary.Warnings)
	require.Len(t, result.Findings, 5)
	assert.Equal(t, "no-console", result.Findings[0].RuleID)
	assert.Equal(t, "no-var", result.Findings[4].RuleID)
	assert.Equal(t, "Use let", result.Findings[4].Message)
}

func TestHandleScan_SingleRule(t *testing.T) {
	s, _ := newTestServer(t, handlerFiles)

	res := callTool(t, s.handleScan, map[string]any{
		"id":       "no-var",
		"language": "javascript",
		"pattern":  "var $NAME = $VALUE",
		"severity": "info",
		"code":     testhelpers.VarJS,
	})
	require.False(t, res.IsError, resultText(t, res))
	result := decodeResult[tools.ScanResult](t, res)
	assert.Equal(t, 2, result.Summary.Info)
}

func TestHandleScan_InvalidRule(t *testing.T) {
	s, _ := newTestServer(t, handlerFiles)

	for name, args := range map[string]any{
		"both forms":   map[string]any{"id": "a", "rules": []map[string]any{{"id": "b", "language": "js", "pattern": "x"}}},
		"bad severity": map[string]any{"id": "a", "language": "js", "pattern": "x", "severity": "fatal"},
		"no rules":     map[string]any{"paths": []string{"src"}},
	} {
		t.Run(name, func(t *testing.T) {
			res := callTool(t, s.handleScan, args)
			require.True(t, res.IsError)
			assert.Equal(t, string(apperrors.KindInvalidRule), decodeResult[ErrorBody](t, res).Kind)
		})
	}
}

func TestHandleReplace_DryRunThenWrite(t *testing.T) {
	s, root := newTestServer(t, handlerFiles)
	args := map[string]any{
		"pattern":     "var $NAME = $VALUE",
		"replacement": "let $NAME = $VALUE",
		"language":    "javascript",
		"paths":       []string{"src/vars.js"},
	}

	res := callTool(t, s.handleReplace, args)
	require.False(t, res.IsError, resultText(t, res))
	preview := decodeResult[tools.ReplaceResult](t, res)
	assert.True(t, preview.Summary.DryRun)
	assert.Equal(t, 2, preview.Summary.TotalChanges)
	assert.Equal(t, testhelpers.VarJS, testhelpers.ReadFile(t, root+"/src/vars.js"))

	args["dryRun"] = false
	res = callTool(t, s.handleReplace, args)
	require.False(t, res.IsError, resultText(t, res))
	applied := decodeResult[tools.ReplaceResult](t, res)
	assert.False(t, applied.Summary.DryRun)
	assert.Equal(t, 1, applied.Summary.FilesModified)
	assert.Equal(t, "let count = 0;\nlet keep = 1;\nlet total = count;\n", testhelpers.ReadFile(t, root+"/src/vars.js"))
}

func TestHandleReplace_PartialFailure(t *testing.T) {
	s, _ := newTestServer(t, map[string]string{
		"src/vars.js":   testhelpers.VarJS,
		"src/locked.js": testhelpers.VarJS,
	}, testhelpers.WithFakeFailWrite("locked.js"))

	res := callTool(t, s.handleReplace, map[string]any{
		"pattern":     "var $NAME = $VALUE",
		"replacement": "let $NAME = $VALUE",
		"language":    "javascript",
		"paths":       []string{"src"},
		"dryRun":      false,
	})
	require.True(t, res.IsError)
	body := decodeResult[ErrorBody](t, res)
	assert.Equal(t, string(apperrors.KindPartialWriteFailure), body.Kind)
	require.NotNil(t, body.Result, "the partial result rides along with the error")
	partial := body.Result.(map[string]any)
	assert.Len(t, partial["failures"], 1)
}

func TestHandleReplace_MissingReplacement(t *testing.T) {
	s, _ := newTestServer(t, handlerFiles)
	res := callTool(t, s.handleReplace, map[string]any{"pattern": "x", "language": "js"})
	require.True(t, res.IsError)
	body := decodeResult[ErrorBody](t, res)
	assert.Equal(t, string(apperrors.KindInvalidRequest), body.Kind)
	assert.Contains(t, body.Error, "replacement is required")
}

func TestHandleInfo(t *testing.T) {
	s, root := newTestServer(t, handlerFiles)

	t.Run("overview", func(t *testing.T) {
		res := callTool(t, s.handleInfo, map[string]any{})
		require.False(t, res.IsError)
		body := decodeResult[map[string]any](t, res)
		assert.Equal(t, []any{root}, body["roots"])
		assert.Contains(t, body["languages"], "javascript")
		engineInfo := body["engine"].(map[string]any)
		assert.Equal(t, "ready", engineInfo["status"])
		assert.Equal(t, testhelpers.DefaultFakeVersion, engineInfo["version"])
		assert.Len(t, body["tools"], 3)
	})

	t.Run("single tool", func(t *testing.T) {
		res := callTool(t, s.handleInfo, map[string]any{"tool": "AST_REPLACE"})
		require.False(t, res.IsError)
		body := decodeResult[map[string]any](t, res)
		assert.Equal(t, ToolReplace, body["name"])
		assert.Contains(t, body, "parameters")
	})

	t.Run("engine", func(t *testing.T) {
		res := callTool(t, s.handleInfo, map[string]any{"tool": "engine", "verbose": true})
		require.False(t, res.IsError)
		body := decodeResult[map[string]any](t, res)
		assert.Contains(t, body, "minimum")
		assert.Equal(t, []any{`ignored unknown parameter "verbose"`}, body["warnings"])
	})

	t.Run("unknown tool", func(t *testing.T) {
		res := callTool(t, s.handleInfo, map[string]any{"tool": "ast_delete"})
		require.True(t, res.IsError)
		assert.Equal(t, string(apperrors.KindInvalidRequest), decodeResult[ErrorBody](t, res).Kind)
	})
}

func TestHandleInfo_EngineUnavailable(t *testing.T) {
	root := testhelpers.WriteWorkspace(t, handlerFiles)
	cfg := testhelpers.NewTestConfigBuilder(root).WithBinary(root + "/no-such-binary").Build()
	s, err := NewServer(cfg, WithLogger(NoOpLogger))
	require.NoError(t, err)

	info := s.EngineStatus(context.Background())
	assert.Equal(t, "unavailable", info.Status)
	assert.NotEmpty(t, info.Error)

	res := callTool(t, s.handleSearch, map[string]any{"pattern": "x", "language": "js", "paths": []string{"src"}})
	require.True(t, res.IsError)
	body := decodeResult[ErrorBody](t, res)
	assert.Equal(t, info.Kind, body.Kind)
	assert.NotEmpty(t, body.Suggestions)
}
