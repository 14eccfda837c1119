package testhelpers

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// Source fixtures shared by the engine, tools and MCP tests.
const (
	// ConsoleJS has three console.log calls and one logger.info call.
	ConsoleJS = `function greet(name) {
  console.log("hello");
  console.log(name);
  logger.info("greeted");
  return name;
}

console.log("done");
`

	// VarJS has two var declarations.
	VarJS = `var count = 0;
let keep = 1;
var total = count;
`

	SamplePy = `def greet(name):
    print("Hello, " + name)
    return name


def calculate(a, b):
    result = a + b
    return result


class DataProcessor:
    def __init__(self):
        self.data = []

    def process(self, item):
        self.data.append(item)
        return len(self.data)
`

	SampleRS = `fn add(a: i32, b: i32) -> i32 {
    a + b
}

fn multiply(x: i32, y: i32) -> i32 {
    x * y
}

struct Point {
    x: i32,
    y: i32,
}

fn main() {
    let result = add(1, 2);
    println!("{}", result);
}
`
)

// WorkspaceBuilder lays out a throwaway workspace on disk.
// Usage:
//
//	root := testhelpers.NewWorkspaceBuilder(t).
//		AddFile("src/app.js", testhelpers.ConsoleJS).
//		Build()
type WorkspaceBuilder struct {
	t     testing.TB
	files map[string]string
	links map[string]string
}

func NewWorkspaceBuilder(t testing.TB) *WorkspaceBuilder {
	return &WorkspaceBuilder{t: t, files: map[string]string{}, links: map[string]string{}}
}

// AddFile adds a file at a slash-separated path relative to the root.
func (b *WorkspaceBuilder) AddFile(name, content string) *WorkspaceBuilder {
	b.files[name] = content
	return b
}

// AddSymlink creates name pointing at target (absolute, or relative to the link).
func (b *WorkspaceBuilder) AddSymlink(name, target string) *WorkspaceBuilder {
	b.links[name] = target
	return b
}

// Build writes everything and returns the symlink-free absolute root.
func (b *WorkspaceBuilder) Build() string {
	b.t.Helper()
	root, err := filepath.EvalSymlinks(b.t.TempDir())
	if err != nil {
		b.t.Fatalf("resolve temp dir: %v", err)
	}

	names := make([]string, 0, len(b.files))
	for name := range b.files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			b.t.Fatalf("create %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(b.files[name]), 0644); err != nil {
			b.t.Fatalf("write %s: %v", path, err)
		}
	}

	for name, target := range b.links {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			b.t.Fatalf("create %s: %v", filepath.Dir(path), err)
		}
		if err := os.Symlink(target, path); err != nil {
			b.t.Skipf("symlinks unavailable: %v", err)
		}
	}
	return root
}

// WriteWorkspace is shorthand for a builder with only files.
func WriteWorkspace(t testing.TB, files map[string]string) string {
	t.Helper()
	b := NewWorkspaceBuilder(t)
	for name, content := range files {
		b.AddFile(name, content)
	}
	return b.Build()
}

// ReadFile returns the content of a workspace file, failing the test on error.
func ReadFile(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
