package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Justar96/tree-grep-mcp-sub002/internal/errors"
	"github.com/Justar96/tree-grep-mcp-sub002/testhelpers"
)

func newResolver(t *testing.T, cfg Config) *Resolver {
	t.Helper()
	r, err := NewResolver(cfg)
	require.NoError(t, err)
	return r
}

func TestResolve_ConflictingInput(t *testing.T) {
	root := testhelpers.WriteWorkspace(t, map[string]string{"a.js": "x"})
	r := newResolver(t, Config{Roots: []string{root}})

	_, err := r.Resolve(Request{Paths: []string{"a.js"}, Code: "x", Languages: []string{"javascript"}})
	assert.Equal(t, apperrors.KindConflictingInput, apperrors.KindOf(err))

	_, err = r.Resolve(Request{Languages: []string{"javascript"}})
	assert.Equal(t, apperrors.KindConflictingInput, apperrors.KindOf(err))
}

func TestResolve_InlineCode(t *testing.T) {
	root := t.TempDir()
	r := newResolver(t, Config{Roots: []string{root}})

	scope, err := r.Resolve(Request{Code: "var a = 1", Languages: []string{"javascript"}})
	require.NoError(t, err)
	assert.True(t, scope.Inline)
	assert.Equal(t, "var a = 1", scope.Code)
	assert.Equal(t, "javascript", scope.Language)
	assert.Empty(t, scope.Files)
	assert.False(t, scope.Empty())

	_, err = r.Resolve(Request{Code: "var a = 1"})
	assert.Equal(t, apperrors.KindInvalidRequest, apperrors.KindOf(err))
}

func TestResolve_DirectoryExpansion(t *testing.T) {
	root := testhelpers.NewWorkspaceBuilder(t).
		AddFile("src/b.js", "b").
		AddFile("src/a.js", "a").
		AddFile("src/nested/c.mjs", "c").
		AddFile("src/readme.md", "docs").
		AddFile("src/types.ts", "t").
		AddFile("node_modules/dep/index.js", "dep").
		Build()
	r := newResolver(t, Config{Roots: []string{root}, Exclude: []string{"**/node_modules/**"}})

	scope, err := r.Resolve(Request{Paths: []string{"."}, Languages: []string{"javascript"}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "src", "a.js"),
		filepath.Join(root, "src", "b.js"),
		filepath.Join(root, "src", "nested", "c.mjs"),
	}, scope.Files)
	assert.Equal(t, "src/a.js", scope.Rel(scope.Files[0]))
}

func TestResolve_NoLanguageMeansAllKnownExtensions(t *testing.T) {
	root := testhelpers.WriteWorkspace(t, map[string]string{
		"a.js":      "a",
		"b.py":      testhelpers.SamplePy,
		"c.rs":      testhelpers.SampleRS,
		"notes.txt": "n",
	})
	r := newResolver(t, Config{Roots: []string{root}})

	scope, err := r.Resolve(Request{Paths: []string{root}})
	require.NoError(t, err)
	assert.Len(t, scope.Files, 3)
}

func TestResolve_ExplicitFileKeptRegardlessOfExtension(t *testing.T) {
	root := testhelpers.WriteWorkspace(t, map[string]string{"script": "console.log(1)"})
	r := newResolver(t, Config{Roots: []string{root}})

	scope, err := r.Resolve(Request{Paths: []string{"script"}, Languages: []string{"javascript"}})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "script")}, scope.Files)
}

func TestResolve_Deduplicates(t *testing.T) {
	root := testhelpers.WriteWorkspace(t, map[string]string{"src/a.js": "a", "src/b.js": "b"})
	r := newResolver(t, Config{Roots: []string{root}})

	scope, err := r.Resolve(Request{Paths: []string{"src/b.js", "src", "./src/b.js"}, Languages: []string{"js"}})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "src", "b.js"), filepath.Join(root, "src", "a.js")}, scope.Files)
}

func TestResolve_EmptyDirectoryIsNotAnError(t *testing.T) {
	root := testhelpers.WriteWorkspace(t, map[string]string{"docs/readme.md": "x"})
	r := newResolver(t, Config{Roots: []string{root}})

	scope, err := r.Resolve(Request{Paths: []string{"docs"}, Languages: []string{"python"}})
	require.NoError(t, err)
	assert.True(t, scope.Empty())
}

func TestResolve_InvalidPath(t *testing.T) {
	root := t.TempDir()
	r := newResolver(t, Config{Roots: []string{root}})

	for _, p := range []string{"missing.js", "", "a\x00b"} {
		_, err := r.Resolve(Request{Paths: []string{p}})
		assert.Equal(t, apperrors.KindInvalidPath, apperrors.KindOf(err), "path %q", p)
	}
}

func TestResolve_OutsideWorkspace(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "ws")
	sibling := filepath.Join(parent, "ws-other")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.MkdirAll(sibling, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sibling, "x.js"), []byte("x"), 0644))
	r := newResolver(t, Config{Roots: []string{root}})

	tests := []string{
		"../ws-other/x.js",
		filepath.Join(sibling, "x.js"),
		"..",
	}
	for _, p := range tests {
		_, err := r.Resolve(Request{Paths: []string{p}})
		assert.Equal(t, apperrors.KindPathOutsideWorkspace, apperrors.KindOf(err), "path %q", p)
	}
}

func TestResolve_SymlinkEscape(t *testing.T) {
	outside := testhelpers.WriteWorkspace(t, map[string]string{"secret.js": "var s = 1;"})
	root := testhelpers.NewWorkspaceBuilder(t).
		AddFile("src/ok.js", "var ok = 1;").
		AddSymlink("src/leak.js", filepath.Join(outside, "secret.js")).
		AddSymlink("linked", outside).
		Build()
	r := newResolver(t, Config{Roots: []string{root}, FollowSymlinks: true})

	t.Run("explicit link is rejected", func(t *testing.T) {
		_, err := r.Resolve(Request{Paths: []string{"src/leak.js"}})
		assert.Equal(t, apperrors.KindPathOutsideWorkspace, apperrors.KindOf(err))

		_, err = r.Resolve(Request{Paths: []string{"linked"}})
		assert.Equal(t, apperrors.KindPathOutsideWorkspace, apperrors.KindOf(err))
	})

	t.Run("links met during expansion are skipped", func(t *testing.T) {
		scope, err := r.Resolve(Request{Paths: []string{"."}, Languages: []string{"javascript"}})
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "src", "ok.js")}, scope.Files)
		assert.Len(t, scope.Warnings, 2)
	})
}

func TestResolve_SymlinkInsideWorkspace(t *testing.T) {
	root := testhelpers.NewWorkspaceBuilder(t).
		AddFile("real/a.js", "a").
		AddSymlink("alias", "real").
		Build()

	t.Run("not followed by default", func(t *testing.T) {
		r := newResolver(t, Config{Roots: []string{root}})
		scope, err := r.Resolve(Request{Paths: []string{"."}, Languages: []string{"js"}})
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "real", "a.js")}, scope.Files)
	})

	t.Run("explicit link resolves to its target", func(t *testing.T) {
		r := newResolver(t, Config{Roots: []string{root}})
		scope, err := r.Resolve(Request{Paths: []string{"alias/a.js"}})
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "real", "a.js")}, scope.Files)
	})

	t.Run("followed without duplicates", func(t *testing.T) {
		r := newResolver(t, Config{Roots: []string{root}, FollowSymlinks: true})
		scope, err := r.Resolve(Request{Paths: []string{"."}, Languages: []string{"js"}})
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "real", "a.js")}, scope.Files)
	})
}

func TestResolve_PrefixSiblingIsNotInside(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "a", "b")
	sibling := filepath.Join(parent, "a", "bc")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.MkdirAll(sibling, 0755))
	r := newResolver(t, Config{Roots: []string{root}})

	_, err := r.Resolve(Request{Paths: []string{sibling}})
	assert.Equal(t, apperrors.KindPathOutsideWorkspace, apperrors.KindOf(err))
}

func TestResolve_MultipleRoots(t *testing.T) {
	first := testhelpers.WriteWorkspace(t, map[string]string{"a.py": testhelpers.SamplePy})
	second := testhelpers.WriteWorkspace(t, map[string]string{"b.py": testhelpers.SamplePy})
	r := newResolver(t, Config{Roots: []string{first, second}})

	scope, err := r.Resolve(Request{Paths: []string{"a.py", filepath.Join(second, "b.py")}})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(first, "a.py"), filepath.Join(second, "b.py")}, scope.Files)
	assert.Equal(t, "b.py", scope.Rel(scope.Files[1]))
}

func TestResolve_Gitignore(t *testing.T) {
	root := testhelpers.WriteWorkspace(t, map[string]string{
		".gitignore":         "generated/\n*.gen.js\n!keep.gen.js\n",
		"src/app.js":         "a",
		"src/app.gen.js":     "g",
		"src/keep.gen.js":    "k",
		"generated/out.js":   "o",
		"lib/generated/x.js": "x",
	})

	t.Run("respected", func(t *testing.T) {
		r := newResolver(t, Config{Roots: []string{root}, RespectGitignore: true})
		scope, err := r.Resolve(Request{Paths: []string{"."}, Languages: []string{"js"}})
		require.NoError(t, err)
		var rels []string
		for _, f := range scope.Files {
			rels = append(rels, scope.Rel(f))
		}
		assert.Equal(t, []string{"src/app.js", "src/keep.gen.js"}, rels)
	})

	t.Run("disabled", func(t *testing.T) {
		r := newResolver(t, Config{Roots: []string{root}})
		scope, err := r.Resolve(Request{Paths: []string{"."}, Languages: []string{"js"}})
		require.NoError(t, err)
		assert.Len(t, scope.Files, 5)
	})
}

func TestNewResolver_Errors(t *testing.T) {
	_, err := NewResolver(Config{})
	assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))

	_, err = NewResolver(Config{Roots: []string{filepath.Join(t.TempDir(), "missing")}})
	assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))

	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = NewResolver(Config{Roots: []string{file}})
	assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))
}

func TestCheck(t *testing.T) {
	root := testhelpers.WriteWorkspace(t, map[string]string{"a.js": "a"})
	r := newResolver(t, Config{Roots: []string{root, root}})
	assert.Len(t, r.Roots(), 1)

	p, err := r.Check("a.js")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a.js"), p)
}
