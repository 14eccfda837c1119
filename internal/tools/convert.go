package tools

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/engine"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/workspace"
)

func toPosition(p engine.Position) Position {
	return Position{Line: p.Line + 1, Column: p.Column + 1}
}

// toMatch maps an engine record. file is the display name of the record's file.
func toMatch(m engine.RawMatch, file string, verbose bool) Match {
	out := Match{
		File:  file,
		Start: toPosition(m.Range.Start),
		End:   toPosition(m.Range.End),
	}
	if verbose {
		out.Text = m.Text
		out.Lines = m.Lines
		out.Captures = toCaptures(m.MetaVariables)
	}
	return out
}

// toCaptures flattens single and multi captures and orders them by where they
// start in the source. Empty multi captures keep the engine's order at the end.
func toCaptures(mv *engine.MetaVariables) Captures {
	if mv == nil {
		return nil
	}

	type positioned struct {
		capture Capture
		offset  int
	}
	var all []positioned
	for _, s := range mv.Single {
		all = append(all, positioned{
			capture: Capture{Name: s.Name, Text: s.Node.Text, Start: toPosition(s.Node.Range.Start)},
			offset:  s.Node.Range.ByteOffset.Start,
		})
	}
	for _, m := range mv.Multi {
		c := Capture{Name: m.Name, Multi: true, Nodes: []string{}}
		offset := int(^uint(0) >> 1)
		for i, n := range m.Nodes {
			c.Nodes = append(c.Nodes, n.Text)
			if i == 0 {
				c.Start = toPosition(n.Range.Start)
				offset = n.Range.ByteOffset.Start
			}
		}
		c.Text = strings.Join(c.Nodes, ", ")
		all = append(all, positioned{capture: c, offset: offset})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].offset < all[j].offset })

	seen := map[string]bool{}
	out := make(Captures, 0, len(all))
	for _, p := range all {
		if seen[p.capture.Name] {
			continue
		}
		seen[p.capture.Name] = true
		out = append(out, p.capture)
	}
	return out
}

// displayFile renders an engine file name for output.
func displayFile(scope *workspace.Scope, file string) string {
	if scope.Inline || file == "STDIN" || file == "" {
		return InlineFile
	}
	return scope.Rel(file)
}

var metavarPattern = regexp.MustCompile(`\$\$\$([A-Z_][A-Z0-9_]*)|\$([A-Z_][A-Z0-9_]*)`)

// metavariables lists the distinct metavariable names in a pattern or
// template, in order of first appearance. "$$$" without a name and names
// starting with "_" are anonymous and skipped.
func metavariables(s string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range metavarPattern.FindAllStringSubmatch(s, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if strings.HasPrefix(name, "_") || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
