package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/tools"
)

// Field tables: canonical names plus the spellings clients commonly send.
var (
	searchFields = fieldSet(
		[]string{"pattern", "language", "paths", "code", "verbose"},
		"lang=language", "path=paths", "source=code",
	)
	ruleFields = fieldSet(
		[]string{"id", "language", "pattern", "message", "severity", "note"},
		"rule_id=id", "ruleId=id", "lang=language",
	)
	scanFields = fieldSet(
		[]string{"rules", "id", "language", "pattern", "message", "severity", "note", "paths", "code", "verbose"},
		"rule_id=id", "ruleId=id", "lang=language", "path=paths", "source=code",
	)
	replaceFields = fieldSet(
		[]string{"pattern", "replacement", "language", "paths", "code", "dryRun"},
		"rewrite=replacement", "lang=language", "path=paths", "source=code",
		"dry_run=dryRun", "dryrun=dryRun",
	)
	infoFields = fieldSet([]string{"tool"})
)

type SearchParams struct {
	Pattern  string     `json:"pattern"`
	Language string     `json:"language"`
	Paths    stringList `json:"paths,omitempty"`
	Code     string     `json:"code,omitempty"`
	Verbose  *bool      `json:"verbose,omitempty"`

	Warnings []UnknownField `json:"-"`
}

func (p *SearchParams) UnmarshalJSON(data []byte) error {
	type Alias SearchParams
	var aux Alias
	unknown, err := decodeNormalized(data, searchFields, &aux)
	if err != nil {
		return err
	}
	*p = SearchParams(aux)
	p.Warnings = unknown
	return nil
}

func (p SearchParams) request(defaultVerbose bool) tools.SearchRequest {
	return tools.SearchRequest{
		Pattern:  p.Pattern,
		Language: p.Language,
		Paths:    p.Paths,
		Code:     p.Code,
		Verbose:  boolOr(p.Verbose, defaultVerbose),
	}
}

// RuleParams is one rule of an ast_run_rule batch.
type RuleParams struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Pattern  string `json:"pattern"`
	Message  string `json:"message,omitempty"`
	Severity string `json:"severity,omitempty"`
	Note     string `json:"note,omitempty"`

	Warnings []UnknownField `json:"-"`
}

func (r *RuleParams) UnmarshalJSON(data []byte) error {
	type Alias RuleParams
	var aux Alias
	unknown, err := decodeNormalized(data, ruleFields, &aux)
	if err != nil {
		return err
	}
	*r = RuleParams(aux)
	r.Warnings = unknown
	return nil
}

func (r RuleParams) def() tools.RuleDef {
	return tools.RuleDef{
		ID:       r.ID,
		Language: r.Language,
		Pattern:  r.Pattern,
		Message:  r.Message,
		Severity: r.Severity,
		Note:     r.Note,
	}
}

// ScanParams accepts either a single rule at the top level or a "rules"
// batch, never both.
type ScanParams struct {
	Rules   []RuleParams `json:"rules,omitempty"`
	Rule    RuleParams   `json:"-"` // single-rule form
	Paths   stringList   `json:"paths,omitempty"`
	Code    string       `json:"code,omitempty"`
	Verbose *bool        `json:"verbose,omitempty"`

	Warnings []UnknownField `json:"-"`
}

func (p *ScanParams) UnmarshalJSON(data []byte) error {
	normalized, unknown, err := normalizeFields(data, scanFields)
	if err != nil {
		return err
	}

	var out ScanParams
	var aux struct {
		Rules   []RuleParams `json:"rules"`
		Paths   stringList   `json:"paths"`
		Code    string       `json:"code"`
		Verbose *bool        `json:"verbose"`
	}
	buf, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(buf, &aux); err != nil {
		return err
	}
	out.Rules, out.Paths, out.Code, out.Verbose = aux.Rules, aux.Paths, aux.Code, aux.Verbose

	// The top-level rule shares the rule table, minus the batch keys.
	single := make(map[string]json.RawMessage)
	for k, v := range normalized {
		if _, ok := ruleFields[k]; ok {
			single[k] = v
		}
	}
	if len(single) > 0 {
		buf, err := json.Marshal(single)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(buf, &out.Rule); err != nil {
			return err
		}
	}

	out.Warnings = unknown
	*p = out
	return nil
}

func (p ScanParams) hasSingleRule() bool {
	r := p.Rule
	return r.ID != "" || r.Pattern != "" || r.Language != "" || r.Message != "" || r.Severity != "" || r.Note != ""
}

// request builds the tool request. It fails when the caller mixes the
// single-rule and batch forms.
func (p ScanParams) request(defaultVerbose bool) (tools.ScanRequest, []string, error) {
	req := tools.ScanRequest{Paths: p.Paths, Code: p.Code, Verbose: boolOr(p.Verbose, defaultVerbose)}
	warnings := unknownFieldWarnings("", p.Warnings)

	switch {
	case len(p.Rules) > 0 && p.hasSingleRule():
		return req, warnings, fmt.Errorf("pass either a single rule (id, language, pattern, ...) or a rules array, not both")
	case len(p.Rules) > 0:
		for i, r := range p.Rules {
			req.Rules = append(req.Rules, r.def())
			warnings = append(warnings, unknownFieldWarnings(fmt.Sprintf("rules[%d]", i), r.Warnings)...)
		}
	case p.hasSingleRule():
		req.Rules = []tools.RuleDef{p.Rule.def()}
	}
	return req, warnings, nil
}

type ReplaceParams struct {
	Pattern     string     `json:"pattern"`
	Replacement *string    `json:"replacement"`
	Language    string     `json:"language"`
	Paths       stringList `json:"paths,omitempty"`
	Code        string     `json:"code,omitempty"`
	DryRun      *bool      `json:"dryRun,omitempty"`

	Warnings []UnknownField `json:"-"`
}

func (p *ReplaceParams) UnmarshalJSON(data []byte) error {
	type Alias ReplaceParams
	var aux Alias
	unknown, err := decodeNormalized(data, replaceFields, &aux)
	if err != nil {
		return err
	}
	*p = ReplaceParams(aux)
	p.Warnings = unknown
	return nil
}

// request builds the tool request. An omitted dryRun means preview only.
func (p ReplaceParams) request() (tools.ReplaceRequest, error) {
	if p.Replacement == nil {
		return tools.ReplaceRequest{}, fmt.Errorf("replacement is required (use \"\" to delete matches)")
	}
	return tools.ReplaceRequest{
		Pattern:     p.Pattern,
		Replacement: *p.Replacement,
		Language:    p.Language,
		Paths:       p.Paths,
		Code:        p.Code,
		DryRun:      boolOr(p.DryRun, true),
	}, nil
}

type InfoParams struct {
	Tool string `json:"tool,omitempty"`

	Warnings []UnknownField `json:"-"`
}

func (i *InfoParams) UnmarshalJSON(data []byte) error {
	type Alias InfoParams
	var aux Alias
	unknown, err := decodeNormalized(data, infoFields, &aux)
	if err != nil {
		return err
	}
	*i = InfoParams(aux)
	i.Warnings = unknown
	return nil
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
