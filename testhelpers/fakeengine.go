// Package testhelpers provides shared utilities for testing tree-grep-mcp.
//
// The fake engine is the test binary itself re-executed with FakeEngineEnv set:
// a package's TestMain calls RunFakeEngineIfRequested first, and tests point the
// engine at os.Executable() with the environment from NewFakeEngine. The fake
// speaks enough of the ast-grep CLI (run, scan, --stdin, --rewrite,
// --update-all, --json=stream, --version) to exercise the tools end to end.
// Patterns are translated to regular expressions, so fixtures should stick to
// simple, single-line constructs.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment understood by the fake engine.
const (
	FakeEngineEnv       = "TREE_GREP_FAKE_ENGINE"
	FakeVersionEnv      = "TREE_GREP_FAKE_ENGINE_VERSION"
	FakeSleepEnv        = "TREE_GREP_FAKE_ENGINE_SLEEP"
	FakeCrashEnv        = "TREE_GREP_FAKE_ENGINE_CRASH"
	FakeLogEnv          = "TREE_GREP_FAKE_ENGINE_LOG"
	FakeFailWriteEnv    = "TREE_GREP_FAKE_ENGINE_FAIL_WRITE"
	FakeSkipWriteEnv    = "TREE_GREP_FAKE_ENGINE_SKIP_WRITE"
	DefaultFakeVersion  = "0.39.5"
	fakeStdinFileMarker = "STDIN"
)

// RunFakeEngineIfRequested turns the current process into the fake engine when
// FakeEngineEnv is set, and never returns in that case. Call it first in TestMain.
func RunFakeEngineIfRequested() {
	if os.Getenv(FakeEngineEnv) != "1" {
		return
	}
	os.Exit(runFakeEngine(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// FakeEngine describes how to launch the fake.
type FakeEngine struct {
	Path    string
	Version string
	Env     []string
	LogPath string
}

// FakeOption tweaks the fake's behaviour.
type FakeOption func(*FakeEngine)

// WithFakeVersion makes --version report v.
func WithFakeVersion(v string) FakeOption {
	return func(f *FakeEngine) {
		f.Version = v
		f.Env = append(f.Env, FakeVersionEnv+"="+v)
	}
}

// WithFakeSleep delays run and scan by d.
func WithFakeSleep(d time.Duration) FakeOption {
	return func(f *FakeEngine) { f.Env = append(f.Env, FakeSleepEnv+"="+d.String()) }
}

// WithFakeCrash makes run and scan die like a panicking engine.
func WithFakeCrash() FakeOption {
	return func(f *FakeEngine) { f.Env = append(f.Env, FakeCrashEnv+"=1") }
}

// WithFakeFailWrite makes --update-all fail for paths containing substr.
func WithFakeFailWrite(substr string) FakeOption {
	return func(f *FakeEngine) { f.Env = append(f.Env, FakeFailWriteEnv+"="+substr) }
}

// WithFakeSkipWrite makes --update-all silently skip paths containing substr.
func WithFakeSkipWrite(substr string) FakeOption {
	return func(f *FakeEngine) { f.Env = append(f.Env, FakeSkipWriteEnv+"="+substr) }
}

// NewFakeEngine returns launch settings for the fake. Every invocation is
// appended to LogPath, one line per call.
func NewFakeEngine(t testing.TB, opts ...FakeOption) *FakeEngine {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("locate test binary: %v", err)
	}
	logPath := filepath.Join(t.TempDir(), "fake-engine.log")
	f := &FakeEngine{
		Path:    exe,
		Version: DefaultFakeVersion,
		Env:     []string{FakeEngineEnv + "=1", FakeLogEnv + "=" + logPath},
		LogPath: logPath,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Setenv exports the fake's environment into the test process so that a
// resolver built from configuration alone (which cannot carry Env) starts the
// fake correctly. Not usable from parallel tests.
func (f *FakeEngine) Setenv(t *testing.T) {
	t.Helper()
	for _, kv := range f.Env {
		k, v, _ := strings.Cut(kv, "=")
		t.Setenv(k, v)
	}
}

// Invocations returns the logged argument lists.
func (f *FakeEngine) Invocations(t testing.TB) []string {
	t.Helper()
	data, err := os.ReadFile(f.LogPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatalf("read fake engine log: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// CountInvocations counts logged calls whose first argument is op.
func (f *FakeEngine) CountInvocations(t testing.TB, op string) int {
	t.Helper()
	n := 0
	for _, line := range f.Invocations(t) {
		if line == op || strings.HasPrefix(line, op+" ") {
			n++
		}
	}
	return n
}

type fakeLanguage struct {
	display string
	exts    []string
}

var fakeLanguages = map[string]fakeLanguage{
	"javascript": {"JavaScript", []string{".js", ".jsx", ".mjs", ".cjs"}},
	"typescript": {"TypeScript", []string{".ts", ".mts", ".cts"}},
	"tsx":        {"Tsx", []string{".tsx"}},
	"python":     {"Python", []string{".py", ".pyi"}},
	"rust":       {"Rust", []string{".rs"}},
	"go":         {"Go", []string{".go"}},
	"java":       {"Java", []string{".java"}},
	"ruby":       {"Ruby", []string{".rb"}},
	"c":          {"C", []string{".c", ".h"}},
	"cpp":        {"Cpp", []string{".cpp", ".cc", ".hpp"}},
}

var fakeLanguageAliases = map[string]string{
	"js": "javascript", "jsx": "javascript",
	"ts": "typescript",
	"py": "python",
	"rs": "rust",
	"golang": "go",
	"rb": "ruby",
}

func lookupFakeLanguage(name string) (string, fakeLanguage, bool) {
	key := strings.ToLower(name)
	if alias, ok := fakeLanguageAliases[key]; ok {
		key = alias
	}
	lang, ok := fakeLanguages[key]
	return key, lang, ok
}

func languageForPath(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for name, lang := range fakeLanguages {
		for _, e := range lang.exts {
			if e == ext {
				return name, true
			}
		}
	}
	return "", false
}

type fakeRequest struct {
	op          string
	pattern     string
	lang        string
	rewrite     *string
	updateAll   bool
	stdin       bool
	inlineRules string
	paths       []string
}

func runFakeEngine(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if logPath := os.Getenv(FakeLogEnv); logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			fmt.Fprintln(f, strings.Join(args, " "))
			f.Close()
		}
	}

	if len(args) > 0 && (args[0] == "--version" || args[0] == "-V") {
		v := os.Getenv(FakeVersionEnv)
		if v == "" {
			v = DefaultFakeVersion
		}
		fmt.Fprintf(stdout, "ast-grep %s\n", v)
		return 0
	}

	req, err := parseFakeArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	if d, err := time.ParseDuration(os.Getenv(FakeSleepEnv)); err == nil && d > 0 {
		time.Sleep(d)
	}
	if os.Getenv(FakeCrashEnv) == "1" {
		fmt.Fprintln(stderr, "thread 'main' panicked at 'simulated crash'")
		return 101
	}

	switch req.op {
	case "run":
		return fakeRun(req, stdin, stdout, stderr)
	case "scan":
		return fakeScan(req, stdin, stdout, stderr)
	}
	fmt.Fprintf(stderr, "error: unrecognized subcommand '%s'\n", req.op)
	return 2
}

func parseFakeArgs(args []string) (*fakeRequest, error) {
	if len(args) == 0 {
		return nil, errors.New("missing subcommand")
	}
	req := &fakeRequest{op: args[0]}
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		a := rest[i]
		value := func() (string, error) {
			if i+1 >= len(rest) {
				return "", fmt.Errorf("a value is required for '%s'", a)
			}
			i++
			return rest[i], nil
		}
		var err error
		switch {
		case a == "--":
			req.paths = append(req.paths, rest[i+1:]...)
			i = len(rest)
		case a == "--pattern" || a == "-p":
			req.pattern, err = value()
		case a == "--lang" || a == "-l":
			req.lang, err = value()
		case a == "--rewrite" || a == "-r":
			var v string
			v, err = value()
			req.rewrite = &v
		case a == "--inline-rules":
			req.inlineRules, err = value()
		case a == "--update-all" || a == "-U":
			req.updateAll = true
		case a == "--stdin":
			req.stdin = true
		case strings.HasPrefix(a, "--json"):
		case strings.HasPrefix(a, "-"):
			return nil, fmt.Errorf("unexpected argument '%s' found", a)
		default:
			req.paths = append(req.paths, a)
		}
		if err != nil {
			return nil, err
		}
	}
	if req.lang != "" {
		if _, _, ok := lookupFakeLanguage(req.lang); !ok {
			return nil, fmt.Errorf("invalid value '%s' for '--lang <LANG>'", req.lang)
		}
	}
	if len(req.paths) == 0 && !req.stdin {
		req.paths = []string{"."}
	}
	return req, nil
}

// fakeCapture is one metavariable slot in a compiled pattern.
type fakeCapture struct {
	name  string
	multi bool
	group int
}

type fakePattern struct {
	re       *regexp.Regexp
	captures []fakeCapture
}

const singleNodeExpr = "[A-Za-z_$][\\w$]*(?:\\.[A-Za-z_$][\\w$]*)*|\"[^\"\\n]*\"|'[^'\\n]*'|`[^`\\n]*`|\\d+(?:\\.\\d+)?"

var metaNamePattern = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*`)

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func balanced(p string) bool {
	var stack []byte
	pairs := map[byte]byte{')': '(', ']': '[', '}': '{'}
	var quote byte
	for i := 0; i < len(p); i++ {
		c := p[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[c] {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0 && quote == 0
}

func compileFakePattern(p string) (*fakePattern, error) {
	p = strings.TrimSpace(p)
	if p == "" || !balanced(p) {
		return nil, errors.New("Cannot parse query as a valid pattern.")
	}

	var b strings.Builder
	var captures []fakeCapture
	group := 0
	if isWordByte(p[0]) && p[0] != '$' {
		b.WriteString(`\b`)
	}
	lastWord := false
	endsWithLiteralWord := false
	for i := 0; i < len(p); {
		c := p[i]
		switch {
		case c == '$':
			multi := strings.HasPrefix(p[i:], "$$$")
			start := i + 1
			if multi {
				start = i + 3
			}
			name := metaNamePattern.FindString(p[start:])
			if name == "" && !multi {
				b.WriteString(regexp.QuoteMeta("$"))
				i++
				lastWord = true
				endsWithLiteralWord = false
				continue
			}
			expr := "(" + singleNodeExpr + ")"
			if multi {
				expr = `([^\n]*?)`
			}
			group++
			if name != "" && !strings.HasPrefix(name, "_") {
				captures = append(captures, fakeCapture{name: name, multi: multi, group: group})
			}
			b.WriteString(expr)
			i = start + len(name)
			lastWord = true
			endsWithLiteralWord = false
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			for i < len(p) && strings.IndexByte(" \t\r\n", p[i]) >= 0 {
				i++
			}
			if lastWord && i < len(p) && isWordByte(p[i]) {
				b.WriteString(`\s+`)
			} else {
				b.WriteString(`\s*`)
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			lastWord = isWordByte(c)
			endsWithLiteralWord = lastWord
			i++
		}
	}
	if endsWithLiteralWord {
		b.WriteString(`\b`)
	}

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, errors.New("Cannot parse query as a valid pattern.")
	}
	return &fakePattern{re: re, captures: captures}, nil
}

type fakeNode struct {
	Text  string         `json:"text"`
	Range map[string]any `json:"range"`
}

type fakeMatch struct {
	start, end int
	single     []struct {
		name string
		node fakeNode
	}
	multi []struct {
		name  string
		nodes []fakeNode
	}
	capturedText map[string]string
}

// lineIndex converts byte offsets to zero-based line/column pairs.
type lineIndex []int

func newLineIndex(src []byte) lineIndex {
	idx := lineIndex{0}
	for i, c := range src {
		if c == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (li lineIndex) pos(off int) map[string]int {
	line := sort.Search(len(li), func(i int) bool { return li[i] > off }) - 1
	return map[string]int{"line": line, "column": off - li[line]}
}

func (li lineIndex) rng(start, end int) map[string]any {
	return map[string]any{
		"byteOffset": map[string]int{"start": start, "end": end},
		"start":      li.pos(start),
		"end":        li.pos(end),
	}
}

func (li lineIndex) lines(src []byte, start, end int) string {
	from := li[li.pos(start)["line"]]
	to := bytes.IndexByte(src[end:], '\n')
	if to < 0 {
		to = len(src)
	} else {
		to += end
	}
	return string(src[from:to])
}

func findFakeMatches(fp *fakePattern, src []byte) []fakeMatch {
	li := newLineIndex(src)
	var out []fakeMatch
	for _, loc := range fp.re.FindAllSubmatchIndex(src, -1) {
		if loc[0] == loc[1] {
			continue
		}
		m := fakeMatch{start: loc[0], end: loc[1], capturedText: map[string]string{}}
		for _, c := range fp.captures {
			s, e := loc[2*c.group], loc[2*c.group+1]
			if s < 0 {
				continue
			}
			text := string(src[s:e])
			m.capturedText[c.name] = text
			if c.multi {
				var nodes []fakeNode
				for _, arg := range splitTopLevel(text, s) {
					nodes = append(nodes, fakeNode{Text: arg.text, Range: li.rng(arg.start, arg.end)})
				}
				m.multi = append(m.multi, struct {
					name  string
					nodes []fakeNode
				}{c.name, nodes})
				continue
			}
			m.single = append(m.single, struct {
				name string
				node fakeNode
			}{c.name, fakeNode{Text: text, Range: li.rng(s, e)}})
		}
		out = append(out, m)
	}
	return out
}

type span struct {
	text       string
	start, end int
}

// splitTopLevel splits a $$$ capture on commas outside brackets and quotes.
func splitTopLevel(text string, base int) []span {
	var out []span
	depth := 0
	var quote byte
	segStart := 0
	flush := func(end int) {
		seg := text[segStart:end]
		trimmedLeft := len(seg) - len(strings.TrimLeft(seg, " \t\n"))
		seg = strings.TrimSpace(seg)
		if seg != "" {
			s := base + segStart + trimmedLeft
			out = append(out, span{text: seg, start: s, end: s + len(seg)})
		}
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				flush(i)
				segStart = i + 1
			}
		}
	}
	flush(len(text))
	return out
}

// expandTemplate substitutes $NAME and $$$NAME from a match.
func expandTemplate(tmpl string, captured map[string]string) string {
	var b strings.Builder
	for i := 0; i < len(tmpl); {
		if tmpl[i] != '$' {
			b.WriteByte(tmpl[i])
			i++
			continue
		}
		start := i + 1
		if strings.HasPrefix(tmpl[i:], "$$$") {
			start = i + 3
		}
		name := metaNamePattern.FindString(tmpl[start:])
		if name == "" {
			b.WriteByte('$')
			i++
			continue
		}
		b.WriteString(captured[name])
		i = start + len(name)
	}
	return b.String()
}

func encodeMatch(file, language string, src []byte, li lineIndex, m fakeMatch, replacement *string) map[string]any {
	single := orderedJSON{}
	for _, s := range m.single {
		single = append(single, orderedEntry{s.name, s.node})
	}
	multi := orderedJSON{}
	for _, mm := range m.multi {
		nodes := mm.nodes
		if nodes == nil {
			nodes = []fakeNode{}
		}
		multi = append(multi, orderedEntry{mm.name, nodes})
	}
	rec := map[string]any{
		"text":     string(src[m.start:m.end]),
		"range":    li.rng(m.start, m.end),
		"file":     file,
		"lines":    li.lines(src, m.start, m.end),
		"language": language,
		"metaVariables": map[string]any{
			"single":      single,
			"multi":       multi,
			"transformed": map[string]string{},
		},
	}
	if replacement != nil {
		rec["replacement"] = *replacement
		rec["replacementOffsets"] = map[string]int{"start": m.start, "end": m.end}
	}
	return rec
}

type orderedEntry struct {
	key   string
	value any
}

type orderedJSON []orderedEntry

func (o orderedJSON) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(e.key)
		v, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type fakeSource struct {
	file string
	src  []byte
	lang string
}

// collectSources expands request paths into files, in argument order with
// directories walked in lexical order.
func collectSources(req *fakeRequest, stdin io.Reader, accept func(path string) bool) ([]fakeSource, error) {
	if req.stdin {
		src, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		lang := ""
		if req.lang != "" {
			lang, _, _ = lookupFakeLanguage(req.lang)
		}
		return []fakeSource{{file: fakeStdinFileMarker, src: src, lang: lang}}, nil
	}

	var out []fakeSource
	for _, p := range req.paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if !info.IsDir() {
			src, err := os.ReadFile(p)
			if err != nil {
				return nil, err
			}
			lang, _ := languageForPath(p)
			out = append(out, fakeSource{file: p, src: src, lang: lang})
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !accept(path) {
				return err
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			lang, _ := languageForPath(path)
			out = append(out, fakeSource{file: path, src: src, lang: lang})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func fakeRun(req *fakeRequest, stdin io.Reader, stdout, stderr io.Writer) int {
	if req.stdin && req.lang == "" {
		fmt.Fprintln(stderr, "Error: --lang is required when reading from stdin")
		return 2
	}
	fp, err := compileFakePattern(req.pattern)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	langKey, langInfo, _ := lookupFakeLanguage(req.lang)
	sources, err := collectSources(req, stdin, func(path string) bool {
		l, ok := languageForPath(path)
		return ok && (req.lang == "" || l == langKey)
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	total := 0
	for _, s := range sources {
		matches := findFakeMatches(fp, s.src)
		if len(matches) == 0 {
			continue
		}
		total += len(matches)

		if req.updateAll {
			if code := fakeWrite(s, matches, req, stdout, stderr); code != 0 {
				return code
			}
			continue
		}

		display := langInfo.display
		if display == "" {
			if l, ok := fakeLanguages[s.lang]; ok {
				display = l.display
			}
		}
		li := newLineIndex(s.src)
		for _, m := range matches {
			var repl *string
			if req.rewrite != nil {
				r := expandTemplate(*req.rewrite, m.capturedText)
				repl = &r
			}
			if err := enc.Encode(encodeMatch(s.file, display, s.src, li, m, repl)); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
		}
	}
	if total == 0 {
		return 1
	}
	return 0
}

func fakeWrite(s fakeSource, matches []fakeMatch, req *fakeRequest, stdout, stderr io.Writer) int {
	if req.rewrite == nil {
		fmt.Fprintln(stderr, "error: --update-all requires --rewrite")
		return 2
	}
	if sub := os.Getenv(FakeFailWriteEnv); sub != "" && strings.Contains(s.file, sub) {
		fmt.Fprintf(stderr, "Error: Permission denied (os error 13): %s\n", s.file)
		return 1
	}
	if sub := os.Getenv(FakeSkipWriteEnv); sub != "" && strings.Contains(s.file, sub) {
		fmt.Fprintf(stdout, "Applied 0 changes\n")
		return 0
	}

	var out bytes.Buffer
	prev := 0
	for _, m := range matches {
		out.Write(s.src[prev:m.start])
		out.WriteString(expandTemplate(*req.rewrite, m.capturedText))
		prev = m.end
	}
	out.Write(s.src[prev:])

	if err := os.WriteFile(s.file, out.Bytes(), 0644); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Applied %d changes\n", len(matches))
	return 0
}

type fakeRule struct {
	ID       string `yaml:"id"`
	Language string `yaml:"language"`
	Severity string `yaml:"severity"`
	Message  string `yaml:"message"`
	Note     string `yaml:"note"`
	Rule     struct {
		Pattern string `yaml:"pattern"`
	} `yaml:"rule"`

	compiled *fakePattern
	langKey  string
}

func parseFakeRules(doc string) ([]*fakeRule, error) {
	dec := yaml.NewDecoder(strings.NewReader(doc))
	var rules []*fakeRule
	for {
		var r fakeRule
		err := dec.Decode(&r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Cannot parse rule: %v", err)
		}
		if r.ID == "" {
			return nil, errors.New("Cannot parse rule: missing field `id`")
		}
		key, _, ok := lookupFakeLanguage(r.Language)
		if !ok {
			return nil, fmt.Errorf("Cannot parse rule %s: unknown language `%s`", r.ID, r.Language)
		}
		fp, err := compileFakePattern(r.Rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("Cannot parse rule %s: Rule contains invalid pattern matcher", r.ID)
		}
		r.compiled = fp
		r.langKey = key
		rules = append(rules, &r)
	}
	if len(rules) == 0 {
		return nil, errors.New("Cannot parse rule: no rules given")
	}
	return rules, nil
}

func fakeScan(req *fakeRequest, stdin io.Reader, stdout, stderr io.Writer) int {
	rules, err := parseFakeRules(req.inlineRules)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if req.stdin && req.lang == "" {
		req.lang = rules[0].langKey
	}

	sources, err := collectSources(req, stdin, func(path string) bool {
		l, ok := languageForPath(path)
		if !ok {
			return false
		}
		for _, r := range rules {
			if r.langKey == l {
				return true
			}
		}
		return false
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	sawError := false
	for _, s := range sources {
		li := newLineIndex(s.src)
		for _, r := range rules {
			if s.lang != "" && s.lang != r.langKey {
				continue
			}
			for _, m := range findFakeMatches(r.compiled, s.src) {
				rec := encodeMatch(s.file, fakeLanguages[r.langKey].display, s.src, li, m, nil)
				rec["ruleId"] = r.ID
				rec["severity"] = r.Severity
				rec["message"] = r.Message
				if r.Note != "" {
					rec["note"] = r.Note
				}
				if r.Severity == "error" {
					sawError = true
				}
				if err := enc.Encode(rec); err != nil {
					fmt.Fprintf(stderr, "Error: %v\n", err)
					return 1
				}
			}
		}
	}
	if sawError {
		return 1
	}
	return 0
}
