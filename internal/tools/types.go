// Package tools implements ast_search, ast_run_rule and ast_replace on top of
// the engine and workspace packages. Every call is independent: it resolves
// its own scope, launches its own engine processes and returns plain values.
package tools

import (
	"context"
	"encoding/json"
	"runtime"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/engine"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/workspace"
)

// InlineFile is the file name reported for matches in inline code.
const InlineFile = "inline"

// Engine runs one ast-grep process. *engine.Handle and *engine.Resolver
// (which initialises on first use) both satisfy it.
type Engine interface {
	Invoke(ctx context.Context, inv engine.Invocation) (*engine.Output, error)
}

// Options tunes how calls are split into engine invocations.
type Options struct {
	MaxPathsPerInvocation int
	ReplaceConcurrency    int
	ScanConcurrency       int
	ScanBatchRules        bool
}

func (o Options) withDefaults() Options {
	if o.MaxPathsPerInvocation <= 0 {
		o.MaxPathsPerInvocation = 500
	}
	if o.ReplaceConcurrency <= 0 {
		o.ReplaceConcurrency = max(1, runtime.NumCPU()-1)
	}
	if o.ScanConcurrency <= 0 {
		o.ScanConcurrency = max(1, runtime.NumCPU()-1)
	}
	return o
}

// Toolkit holds what every tool call needs. It is safe for concurrent use.
type Toolkit struct {
	engine    Engine
	workspace *workspace.Resolver
	opts      Options
}

func New(eng Engine, ws *workspace.Resolver, opts Options) *Toolkit {
	return &Toolkit{engine: eng, workspace: ws, opts: opts.withDefaults()}
}

// Engine returns the engine the toolkit invokes.
func (tk *Toolkit) Engine() Engine {
	return tk.engine
}

// Workspace exposes the resolver, mainly for the info tool.
func (tk *Toolkit) Workspace() *workspace.Resolver {
	return tk.workspace
}

// Position is a 1-based line and column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Match is one structural match. Concise output carries only the location;
// verbose output adds the matched text, its lines and the captures.
type Match struct {
	File     string   `json:"file"`
	Start    Position `json:"start"`
	End      Position `json:"end"`
	Text     string   `json:"text,omitempty"`
	Lines    string   `json:"lines,omitempty"`
	Captures Captures `json:"captures,omitempty"`
}

// Capture is what one metavariable matched. Multi captures ($$$NAME) list
// every node; Text then joins them.
type Capture struct {
	Name  string
	Text  string
	Multi bool
	Nodes []string
	Start Position
}

// Captures serialises as a JSON object keyed by metavariable name, in the
// order the captures occur in the match.
type Captures []Capture

func (c Captures) MarshalJSON() ([]byte, error) {
	type captureJSON struct {
		Text  string   `json:"text"`
		Nodes []string `json:"nodes,omitempty"`
		Start Position `json:"start"`
	}
	obj := make(orderedObject, 0, len(c))
	for _, capture := range c {
		obj = append(obj, orderedField{capture.Name, captureJSON{Text: capture.Text, Nodes: capture.Nodes, Start: capture.Start}})
	}
	return json.Marshal(obj)
}

// Lookup returns the capture called name.
func (c Captures) Lookup(name string) (Capture, bool) {
	for _, capture := range c {
		if capture.Name == name {
			return capture, true
		}
	}
	return Capture{}, false
}

type orderedField struct {
	key   string
	value any
}

type orderedObject []orderedField

func (o orderedObject) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, f := range o {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}
