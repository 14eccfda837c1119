package workspace

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ignoreRule is one exclusion glob. Later rules override earlier ones, so a
// negated .gitignore line can re-include what an earlier line excluded.
type ignoreRule struct {
	glob    string
	negate  bool
	dirOnly bool
}

// Matcher decides which entries directory expansion skips. Paths are
// root-relative and slash-separated.
type Matcher struct {
	rules []ignoreRule
}

// NewMatcher starts from configured doublestar exclusion globs.
func NewMatcher(excludes []string) *Matcher {
	m := &Matcher{}
	for _, g := range excludes {
		g = strings.TrimSpace(g)
		if g == "" || !doublestar.ValidatePattern(g) {
			continue
		}
		m.rules = append(m.rules, ignoreRule{glob: g})
	}
	return m
}

// LoadGitignore adds the patterns of root/.gitignore. A missing file is fine.
func (m *Matcher) LoadGitignore(root string) error {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return m.addGitignore(f)
}

func (m *Matcher) addGitignore(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m.AddGitignorePattern(scanner.Text())
	}
	return scanner.Err()
}

// AddGitignorePattern converts one .gitignore line into doublestar rules.
func (m *Matcher) AddGitignorePattern(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	rule := ignoreRule{}
	if strings.HasPrefix(line, "!") {
		rule.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		rule.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	// A slash anywhere but the end anchors the pattern at the root
	anchored := strings.HasPrefix(line, "/") || strings.Contains(line, "/")
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return
	}

	glob := line
	if !anchored && !strings.HasPrefix(glob, "**/") {
		glob = "**/" + glob
	}
	if !doublestar.ValidatePattern(glob) {
		return
	}

	rule.glob = glob
	m.rules = append(m.rules, rule)
	if !rule.dirOnly && !rule.negate {
		// "build" also hides everything below a directory named build
		m.rules = append(m.rules, ignoreRule{glob: glob + "/**"})
	}
}

// Ignored reports whether rel (a root-relative slash path) is excluded.
func (m *Matcher) Ignored(rel string, isDir bool) bool {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	if rel == "" || rel == "." {
		return false
	}
	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			// a file is still hidden when one of its directories matches
			if !r.negate && matchesAncestor(r.glob, rel) {
				ignored = true
			}
			continue
		}
		if ok, _ := doublestar.Match(r.glob, rel); ok {
			ignored = !r.negate
		}
	}
	return ignored
}

func matchesAncestor(glob, rel string) bool {
	for dir := parentOf(rel); dir != ""; dir = parentOf(dir) {
		if ok, _ := doublestar.Match(glob, dir); ok {
			return true
		}
	}
	return false
}

func parentOf(rel string) string {
	i := strings.LastIndexByte(rel, '/')
	if i <= 0 {
		return ""
	}
	return rel[:i]
}

// Patterns lists the exclusion globs in effect, negations prefixed with "!".
func (m *Matcher) Patterns() []string {
	out := make([]string, 0, len(m.rules))
	for _, r := range m.rules {
		g := r.glob
		if r.dirOnly {
			g += "/"
		}
		if r.negate {
			g = "!" + g
		}
		out = append(out, g)
	}
	return out
}
