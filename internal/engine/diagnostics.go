package engine

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// maxDiagnosticBytes caps stderr carried inside errors and MCP responses.
const maxDiagnosticBytes = 4096

// HasErrorHeader reports whether stderr contains an ast-grep error report.
// ast-grep prefixes fatal errors with "Error:" and clap argument errors with "error:".
func HasErrorHeader(stderr []byte) bool {
	for _, line := range bytes.Split(stderr, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if bytes.HasPrefix(line, []byte("Error:")) || bytes.HasPrefix(line, []byte("error:")) {
			return true
		}
	}
	return false
}

var patternDiagnosticMarkers = []string{
	"cannot parse query",
	"valid pattern",
	"multiple ast nodes",
	"cannot parse rule",
	"invalid pattern",
	"pattern matcher",
	"parse yaml",
	"ruleconfig",
	"invalid metavariable",
	"invalid rewrite",
	"cannot parse transform",
	"regex parse",
	"invalid regex",
}

// IsPatternDiagnostic reports whether an engine diagnostic describes a bad
// pattern, rule or rewrite template rather than an engine crash.
func IsPatternDiagnostic(diagnostic string) bool {
	d := strings.ToLower(diagnostic)
	for _, marker := range patternDiagnosticMarkers {
		if strings.Contains(d, marker) {
			return true
		}
	}
	return false
}

// SummarizeDiagnostic trims stderr for inclusion in an error.
func SummarizeDiagnostic(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if len(s) > maxDiagnosticBytes {
		cut := maxDiagnosticBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "…"
	}
	return s
}
