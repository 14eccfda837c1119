package mcp

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apperrors "github.com/Justar96/tree-grep-mcp-sub002/internal/errors"
)

// createJSONResponse creates a standardized JSON response for MCP tools
func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// ErrorBody is the JSON payload of a failed tool call.
type ErrorBody struct {
	Success     bool     `json:"success"`
	Kind        string   `json:"kind"`
	Error       string   `json:"error"`
	Operation   string   `json:"operation"`
	Path        string   `json:"path,omitempty"`
	Diagnostic  string   `json:"diagnostic,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	Result      any      `json:"result,omitempty"` // partial result, e.g. after a PartialWriteFailure
}

// createErrorResponse reports err in-band with IsError set, so the client
// model sees the failure and can correct the call.
func createErrorResponse(operation string, err error, partial any, warnings []string) (*mcp.CallToolResult, error) {
	body := ErrorBody{
		Success:     false,
		Kind:        string(apperrors.KindOf(err)),
		Error:       err.Error(),
		Operation:   operation,
		Diagnostic:  apperrors.DiagnosticOf(err),
		Suggestions: suggestionsFor(apperrors.KindOf(err)),
		Warnings:    warnings,
		Result:      partial,
	}
	var te *apperrors.ToolError
	if stderrors.As(err, &te) {
		body.Path = te.Path
	}

	response, marshalErr := createJSONResponse(body)
	if marshalErr != nil {
		return nil, marshalErr
	}
	response.IsError = true
	return response, nil
}

// invalidRequest wraps a parameter decoding problem.
func invalidRequest(operation string, err error) error {
	return apperrors.Wrap(apperrors.KindInvalidRequest, operation, err, "invalid parameters")
}

func suggestionsFor(kind apperrors.Kind) []string {
	switch kind {
	case apperrors.KindEngineNotFound:
		return []string{
			"Install ast-grep (npm i -g @ast-grep/cli, cargo install ast-grep, or brew install ast-grep) and make sure it is on PATH",
			"Or point the server at a binary with --binary / TREE_GREP_BINARY",
			"Or allow the managed download (engine mode \"auto\" or \"managed\" with download enabled)",
		}
	case apperrors.KindEngineIncompatible:
		return []string{"Upgrade ast-grep to a newer release, or use the managed engine"}
	case apperrors.KindEngineTimeout:
		return []string{
			"Narrow the paths to fewer files or directories",
			"Raise the timeout with --timeout or TREE_GREP_TIMEOUT",
		}
	case apperrors.KindInvalidPath:
		return []string{"Paths are resolved against the first workspace root; check spelling with the info tool's roots list"}
	case apperrors.KindPathOutsideWorkspace:
		return []string{"Only files inside the configured workspace roots can be searched; see the info tool for the roots"}
	case apperrors.KindConflictingInput:
		return []string{"Pass exactly one of \"paths\" (files or directories) or \"code\" (inline source)"}
	case apperrors.KindInvalidPattern:
		return []string{
			"A pattern must parse as a complete snippet of the chosen language, e.g. console.log($ARG)",
			"Use $NAME for one node and $$$NAME for zero or more nodes",
		}
	case apperrors.KindInvalidRule:
		return []string{"Each rule needs a unique id, a language, a pattern and a severity of error, warning or info"}
	case apperrors.KindInvalidRequest:
		return []string{"Call the info tool with {\"tool\": \"<name>\"} for the accepted parameters"}
	case apperrors.KindPartialWriteFailure:
		return []string{"Files listed under result.failures were not changed; the other files keep their changes"}
	}
	return nil
}
