package mcp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Justar96/tree-grep-mcp-sub002/internal/errors"
)

func TestCreateJSONResponse(t *testing.T) {
	res, err := createJSONResponse(map[string]int{"count": 2})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"count":2}`, resultText(t, res))

	_, err = createJSONResponse(make(chan int))
	assert.Error(t, err)
}

func TestCreateErrorResponse(t *testing.T) {
	cause := apperrors.New(apperrors.KindInvalidPattern, ToolSearch, "pattern could not be parsed").
		WithDiagnostic("Error: Cannot parse query as a valid pattern.")
	res, err := createErrorResponse(ToolSearch, cause, nil, []string{"ignored unknown parameter \"x\""})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	body := decodeResult[ErrorBody](t, res)
	assert.False(t, body.Success)
	assert.Equal(t, string(apperrors.KindInvalidPattern), body.Kind)
	assert.Equal(t, ToolSearch, body.Operation)
	assert.Contains(t, body.Diagnostic, "Cannot parse query")
	assert.NotEmpty(t, body.Suggestions)
	assert.Equal(t, []string{"ignored unknown parameter \"x\""}, body.Warnings)
	assert.Nil(t, body.Result)
}

func TestCreateErrorResponse_Path(t *testing.T) {
	cause := apperrors.New(apperrors.KindInvalidPath, ToolSearch, "path does not exist").WithPath("nope/")
	res, err := createErrorResponse(ToolSearch, cause, nil, nil)
	require.NoError(t, err)
	body := decodeResult[ErrorBody](t, res)
	assert.Equal(t, "nope/", body.Path)
}

func TestCreateErrorResponse_PlainError(t *testing.T) {
	res, err := createErrorResponse(ToolInfo, errors.New("boom"), nil, nil)
	require.NoError(t, err)
	body := decodeResult[ErrorBody](t, res)
	assert.Equal(t, "boom", body.Error)
	assert.Equal(t, string(apperrors.KindOf(errors.New("boom"))), body.Kind)
}

func TestSuggestionsFor(t *testing.T) {
	kinds := []apperrors.Kind{
		apperrors.KindEngineNotFound,
		apperrors.KindEngineIncompatible,
		apperrors.KindEngineTimeout,
		apperrors.KindInvalidPath,
		apperrors.KindPathOutsideWorkspace,
		apperrors.KindConflictingInput,
		apperrors.KindInvalidPattern,
		apperrors.KindInvalidRule,
		apperrors.KindInvalidRequest,
		apperrors.KindPartialWriteFailure,
	}
	for _, k := range kinds {
		assert.NotEmpty(t, suggestionsFor(k), "kind %s", k)
	}
}
