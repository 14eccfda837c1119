package tools

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Justar96/tree-grep-mcp-sub002/internal/errors"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/workspace"
)

// Severities accepted in rule definitions.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

var severityAliases = map[string]string{
	"error":       SeverityError,
	"warning":     SeverityWarning,
	"warn":        SeverityWarning,
	"info":        SeverityInfo,
	"information": SeverityInfo,
	"hint":        SeverityInfo,
}

// NormalizeSeverity maps a severity or alias to its canonical form; "" means warning.
func NormalizeSeverity(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SeverityWarning, true
	}
	canonical, ok := severityAliases[s]
	return canonical, ok
}

// RuleDef is one scan rule as a caller supplies it.
type RuleDef struct {
	ID       string
	Language string
	Pattern  string
	Message  string
	Severity string
	Note     string
}

var ruleIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-/]*$`)

// validateRules checks every rule and returns normalised copies. The first
// problem wins so callers see one actionable message.
func validateRules(rules []RuleDef) ([]RuleDef, error) {
	if len(rules) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidRule, ToolScan, "at least one rule is required")
	}

	out := make([]RuleDef, 0, len(rules))
	seen := map[string]bool{}
	for i, r := range rules {
		r.ID = strings.TrimSpace(r.ID)
		label := fmt.Sprintf("rule %d", i+1)
		if r.ID != "" {
			label = fmt.Sprintf("rule %q", r.ID)
		}

		switch {
		case r.ID == "":
			return nil, apperrors.Newf(apperrors.KindInvalidRule, ToolScan, "%s: id must not be empty", label)
		case !ruleIDPattern.MatchString(r.ID):
			return nil, apperrors.Newf(apperrors.KindInvalidRule, ToolScan, "%s: id may only contain letters, digits and _ . - /", label)
		case seen[r.ID]:
			return nil, apperrors.Newf(apperrors.KindInvalidRule, ToolScan, "%s: duplicate id", label)
		case strings.TrimSpace(r.Pattern) == "":
			return nil, apperrors.Newf(apperrors.KindInvalidRule, ToolScan, "%s: pattern must not be empty", label)
		}
		seen[r.ID] = true

		if strings.TrimSpace(r.Language) == "" {
			return nil, apperrors.Newf(apperrors.KindInvalidRule, ToolScan, "%s: language is required", label)
		}
		lang, ok := workspace.LookupLanguage(r.Language)
		if !ok {
			e := unknownLanguage(ToolScan, apperrors.KindInvalidRule, r.Language)
			e.Message = label + ": " + e.Message
			return nil, e
		}
		r.Language = lang.Name

		severity, ok := NormalizeSeverity(r.Severity)
		if !ok {
			return nil, apperrors.Newf(apperrors.KindInvalidRule, ToolScan,
				"%s: severity must be error, warning or info, got %q", label, r.Severity)
		}
		r.Severity = severity
		out = append(out, r)
	}
	return out, nil
}

// inlineRule is the ast-grep rule document shape.
type inlineRule struct {
	ID       string         `yaml:"id"`
	Language string         `yaml:"language"`
	Severity string         `yaml:"severity"`
	Message  string         `yaml:"message,omitempty"`
	Note     string         `yaml:"note,omitempty"`
	Rule     inlineRuleBody `yaml:"rule"`
}

type inlineRuleBody struct {
	Pattern string `yaml:"pattern"`
}

// inlineRulesYAML renders rules as a "---" separated YAML stream for
// `ast-grep scan --inline-rules`.
func inlineRulesYAML(rules []RuleDef) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, r := range rules {
		doc := inlineRule{
			ID:       r.ID,
			Language: r.Language,
			Severity: r.Severity,
			Message:  r.Message,
			Note:     r.Note,
			Rule:     inlineRuleBody{Pattern: r.Pattern},
		}
		if err := enc.Encode(doc); err != nil {
			return "", apperrors.Wrap(apperrors.KindInvalidRule, ToolScan, err, "cannot encode rule "+r.ID)
		}
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
