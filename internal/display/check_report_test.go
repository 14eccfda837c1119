package display

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func readyReport() CheckReport {
	return CheckReport{
		Server:     "tree-grep-mcp",
		Version:    "0.3.0",
		Platform:   "linux/amd64",
		ConfigPath: "/work/.tree-grep.kdl",
		Roots:      []string{"/work", "/shared"},
		Exclude:    []string{"**/node_modules/**", "**/target/**"},
		Engine: EngineStatus{
			Ready:   true,
			Path:    "/usr/local/bin/ast-grep",
			Version: "0.39.5",
			Source:  "system",
		},
		MinEngine:   "0.20.0",
		MetricsAddr: "127.0.0.1:9464",
	}
}

func TestFormat_Ready(t *testing.T) {
	out := NewReportFormatter(false).Format(readyReport())

	assert.True(t, strings.HasPrefix(out, "tree-grep-mcp 0.3.0\n"+strings.Repeat("=", 19)+"\n"))
	assert.Contains(t, out, "/work (primary)")
	assert.Contains(t, out, "/shared\n")
	assert.Contains(t, out, "2 exclude patterns")
	assert.Contains(t, out, "✓ ast-grep 0.39.5 (system)")
	assert.Contains(t, out, "/usr/local/bin/ast-grep")
	assert.Contains(t, out, "http://127.0.0.1:9464/metrics")
	assert.Contains(t, out, "ready to serve MCP requests")
	assert.NotContains(t, out, "\x1b[", "no escape codes when colour is off")
}

func TestFormat_Unavailable(t *testing.T) {
	r := readyReport()
	r.ConfigPath = ""
	r.MetricsAddr = ""
	r.Engine = EngineStatus{
		Error:      "engine.initialize: ast-grep not found",
		Kind:       "engine_not_found",
		Diagnostic: "not found: ast-grep on PATH\nnot found: sg on PATH",
	}
	r.Warnings = []string{"managed downloads are disabled"}

	out := NewReportFormatter(false).Format(r)
	assert.Contains(t, out, "defaults (no config file)")
	assert.Contains(t, out, "✗ ast-grep unavailable [engine_not_found]")
	assert.Contains(t, out, "    not found: sg on PATH")
	assert.Contains(t, out, "⚠ managed downloads are disabled")
	assert.Contains(t, out, "not ready")
	assert.NotContains(t, out, "Metrics")
}

func TestFormat_Color(t *testing.T) {
	out := NewReportFormatter(true).Format(readyReport())
	assert.Contains(t, out, "\x1b[32m✓ ast-grep 0.39.5 (system)")
}
