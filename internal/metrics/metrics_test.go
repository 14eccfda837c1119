package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue reads a counter from the registry by name and label subset.
func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range metric.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue metrics
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestObserveEngineInvocation(t *testing.T) {
	labels := map[string]string{"op": "run", "outcome": OutcomeSuccess}
	before := counterValue(t, "tree_grep_engine_invocations_total", labels)

	ObserveEngineInvocation("run", OutcomeSuccess, 20*time.Millisecond)

	assert.Equal(t, before+1, counterValue(t, "tree_grep_engine_invocations_total", labels))
}

func TestObserveToolCall(t *testing.T) {
	results := map[string]string{"tool": "ast_search"}
	before := counterValue(t, "tree_grep_tool_results_total", results)

	ObserveToolCall("ast_search", OutcomeSuccess, time.Millisecond, 3)
	ObserveToolCall("ast_search", "invalid_pattern", time.Millisecond, 0)

	assert.Equal(t, before+3, counterValue(t, "tree_grep_tool_results_total", results))
	assert.GreaterOrEqual(t, counterValue(t, "tree_grep_tool_calls_total",
		map[string]string{"tool": "ast_search", "outcome": "invalid_pattern"}), 1.0)
}

func TestRecordEngineResolution_EmptySource(t *testing.T) {
	RecordEngineResolution("", OutcomeError)
	assert.GreaterOrEqual(t, counterValue(t, "tree_grep_engine_resolutions_total",
		map[string]string{"source": "none", "outcome": OutcomeError}), 1.0)
}

func TestHandlerExposesInstruments(t *testing.T) {
	RecordFileRewritten()
	RecordRewriteError()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "tree_grep_replace_files_written_total")
	assert.Contains(t, string(body), "tree_grep_replace_file_errors_total")
}
