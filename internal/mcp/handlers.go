package mcp

import (
	"context"
	"encoding/json"
	"maps"
	"runtime"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/engine"
	apperrors "github.com/Justar96/tree-grep-mcp-sub002/internal/errors"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/version"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/workspace"
)

// decodeArgs unmarshals tool arguments; a call without arguments decodes as {}.
func decodeArgs(req *mcp.CallToolRequest, dst any) error {
	var raw json.RawMessage
	if req != nil && req.Params != nil {
		raw = req.Params.Arguments
	}
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	return json.Unmarshal(raw, dst)
}

func (s *Server) fail(tool string, start time.Time, err error, partial any, warnings []string) (*mcp.CallToolResult, error) {
	s.diagnosticLogger.Errorf("%s failed after %v: kind=%s: %v", tool, time.Since(start), apperrors.KindOf(err), err)
	return createErrorResponse(tool, err, partial, warnings)
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	var params SearchParams
	if err := decodeArgs(req, &params); err != nil {
		return s.fail(ToolSearch, start, invalidRequest(ToolSearch, err), nil, nil)
	}
	warnings := unknownFieldWarnings("", params.Warnings)

	result, err := s.toolkit.Search(ctx, params.request(s.cfg.Tools.DefaultVerbose))
	if err != nil {
		return s.fail(ToolSearch, start, err, nil, warnings)
	}
	result.Warnings = append(warnings, result.Warnings...)
	s.diagnosticLogger.Printf("%s pattern=%q language=%s matches=%d files=%d in %v",
		ToolSearch, params.Pattern, result.Summary.Language, result.Summary.TotalMatches, result.Summary.FilesSearched, time.Since(start))
	return createJSONResponse(result)
}

func (s *Server) handleScan(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	var params ScanParams
	if err := decodeArgs(req, &params); err != nil {
		return s.fail(ToolScan, start, invalidRequest(ToolScan, err), nil, nil)
	}
	scanReq, warnings, err := params.request(s.cfg.Tools.DefaultVerbose)
	if err != nil {
		return s.fail(ToolScan, start, apperrors.Wrap(apperrors.KindInvalidRule, ToolScan, err, "invalid rule input"), nil, warnings)
	}

	result, err := s.toolkit.Scan(ctx, scanReq)
	if err != nil {
		return s.fail(ToolScan, start, err, nil, warnings)
	}
	result.Warnings = append(warnings, result.Warnings...)
	s.diagnosticLogger.Printf("%s rules=%d findings=%d (errors=%d warnings=%d info=%d) in %v",
		ToolScan, result.Summary.Rules, result.Summary.TotalFindings,
		result.Summary.Errors, result.Summary.Warnings, result.Summary.Info, time.Since(start))
	return createJSONResponse(result)
}

func (s *Server) handleReplace(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	var params ReplaceParams
	if err := decodeArgs(req, &params); err != nil {
		return s.fail(ToolReplace, start, invalidRequest(ToolReplace, err), nil, nil)
	}
	warnings := unknownFieldWarnings("", params.Warnings)
	replaceReq, err := params.request()
	if err != nil {
		return s.fail(ToolReplace, start, invalidRequest(ToolReplace, err), nil, warnings)
	}

	result, err := s.toolkit.Replace(ctx, replaceReq)
	if err != nil {
		if result != nil {
			result.Warnings = append(warnings, result.Warnings...)
			return s.fail(ToolReplace, start, err, result, nil)
		}
		return s.fail(ToolReplace, start, err, nil, warnings)
	}
	result.Warnings = append(warnings, result.Warnings...)
	s.diagnosticLogger.Printf("%s pattern=%q dryRun=%v changes=%d files=%d in %v",
		ToolReplace, params.Pattern, result.Summary.DryRun, result.Summary.TotalChanges, result.Summary.FilesModified, time.Since(start))
	return createJSONResponse(result)
}

// EngineInfo describes the engine for the info tool and the check command.
type EngineInfo struct {
	Status  string `json:"status"` // "ready" or "unavailable"
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Source  string `json:"source,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`

	Diagnostic string `json:"diagnostic,omitempty"` // candidates tried, one per line
}

// EngineStatus resolves the engine if needed and reports it.
func (s *Server) EngineStatus(ctx context.Context) EngineInfo {
	var h *engine.Handle
	if s.engine != nil {
		var err error
		h, err = s.engine.Initialize(ctx)
		if err != nil {
			return EngineInfo{
				Status:     "unavailable",
				Error:      err.Error(),
				Kind:       string(apperrors.KindOf(err)),
				Diagnostic: apperrors.DiagnosticOf(err),
			}
		}
	} else if injected, ok := s.toolkit.Engine().(*engine.Handle); ok {
		h = injected
	}
	if h == nil {
		return EngineInfo{Status: "ready", Source: "injected"}
	}
	return EngineInfo{Status: "ready", Path: h.Path, Version: h.Version, Source: string(h.Source)}
}

func (s *Server) handleInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	var params InfoParams
	if err := decodeArgs(req, &params); err != nil {
		return s.fail(ToolInfo, start, invalidRequest(ToolInfo, err), nil, nil)
	}

	tool := strings.ToLower(strings.TrimSpace(params.Tool))
	var body map[string]any
	switch tool {
	case "":
		body = map[string]any{
			"server":    s.cfg.Server.Name,
			"version":   version.FullInfo(),
			"platform":  runtime.GOOS + "/" + runtime.GOARCH,
			"engine":    s.EngineStatus(ctx),
			"roots":     s.workspace.Roots(),
			"languages": workspace.Languages(),
			"tools": map[string]string{
				ToolSearch:  toolUsage[ToolSearch]["summary"].(string),
				ToolScan:    toolUsage[ToolScan]["summary"].(string),
				ToolReplace: toolUsage[ToolReplace]["summary"].(string),
			},
		}
	case "engine":
		body = map[string]any{"engine": s.EngineStatus(ctx), "minimum": version.MinEngine, "pinned": version.PinnedEngine}
	default:
		usage, ok := toolUsage[tool]
		if !ok {
			err := apperrors.Newf(apperrors.KindInvalidRequest, ToolInfo,
				"unknown tool %q; choose ast_search, ast_run_rule, ast_replace or engine", params.Tool)
			return s.fail(ToolInfo, start, err, nil, nil)
		}
		body = maps.Clone(usage)
	}
	if w := unknownFieldWarnings("", params.Warnings); len(w) > 0 {
		body["warnings"] = w
	}
	return createJSONResponse(body)
}


var toolUsage = map[string]map[string]any{
	ToolSearch: {
		"name":    ToolSearch,
		"summary": "Find code by syntax pattern",
		"parameters": map[string]string{
			"pattern":  "REQUIRED: ast-grep pattern, e.g. console.log($ARG) or function $NAME($$$PARAMS) { $$$BODY }",
			"language": "REQUIRED: language of the pattern and of the files searched",
			"paths":    "Files or directories (array or single string); exclusive with code",
			"code":     "Inline source; exclusive with paths",
			"verbose":  "Include text, lines and captures per match (default false); the count is the same either way",
		},
		"examples": []map[string]any{
			{"pattern": "console.log($ARG)", "language": "javascript", "paths": []string{"src"}},
			{"pattern": "fmt.Println($$$ARGS)", "language": "go", "paths": []string{"."}, "verbose": true},
		},
	},
	ToolScan: {
		"name":    ToolScan,
		"summary": "Run lint rules and report findings by severity",
		"parameters": map[string]string{
			"id":       "Rule id (single-rule form)",
			"language": "Rule language",
			"pattern":  "Rule pattern",
			"message":  "Finding message",
			"severity": "error, warning (default) or info",
			"rules":    "Array of rules with the fields above (batch form)",
			"paths":    "Files or directories; exclusive with code",
			"code":     "Inline source; all rules must share its language",
		},
		"examples": []map[string]any{
			{"id": "no-var", "language": "javascript", "pattern": "var $NAME = $VALUE", "message": "Use let or const", "severity": "warning", "paths": []string{"src"}},
		},
	},
	ToolReplace: {
		"name":    ToolReplace,
		"summary": "Rewrite matches with a template (dry run by default)",
		"parameters": map[string]string{
			"pattern":     "REQUIRED: pattern to match",
			"replacement": "REQUIRED: template using the pattern's captures; \"\" deletes the match",
			"language":    "REQUIRED: language",
			"paths":       "Files or directories; exclusive with code",
			"code":        "Inline source; the rewritten text is returned and nothing is written",
			"dryRun":      "true (default) previews; false writes the files",
		},
		"examples": []map[string]any{
			{"pattern": "var $NAME = $VALUE", "replacement": "let $NAME = $VALUE", "language": "javascript", "paths": []string{"src"}, "dryRun": true},
		},
	},
}
