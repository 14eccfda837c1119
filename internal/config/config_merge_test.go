package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Unit tests for config merging logic

func TestMergeConfigs_ExclusionsMerge(t *testing.T) {
	base := &Config{Workspace: Workspace{Exclude: []string{
		"**/node_modules/**",
		"**/vendor/**",
	}}}
	project := &Config{Workspace: Workspace{Exclude: []string{
		"**/dist/**",
		"**/node_modules/**", // duplicate
	}}}

	merged := mergeConfigs(base, project)

	assert.Equal(t, []string{"**/node_modules/**", "**/vendor/**", "**/dist/**"}, merged.Workspace.Exclude)
}

func TestMergeConfigs_ProjectOverridesSettings(t *testing.T) {
	base := &Config{
		Engine: Engine{Mode: EngineModeSystem, TimeoutSec: 10, BinaryPath: "/usr/bin/ast-grep"},
		Tools:  Tools{DefaultVerbose: true},
	}
	project := &Config{
		Engine: Engine{Mode: EngineModeManaged, TimeoutSec: 60},
		Tools:  Tools{DefaultVerbose: false},
	}

	merged := mergeConfigs(base, project)

	assert.Equal(t, EngineModeManaged, merged.Engine.Mode)
	assert.Equal(t, 60, merged.Engine.TimeoutSec)
	assert.False(t, merged.Tools.DefaultVerbose)
	assert.Equal(t, "/usr/bin/ast-grep", merged.Engine.BinaryPath, "global binary survives when project names none")
}

func TestMergeConfigs_Roots(t *testing.T) {
	base := &Config{Workspace: Workspace{Roots: []string{"/global"}}}

	merged := mergeConfigs(base, &Config{})
	assert.Equal(t, []string{"/global"}, merged.Workspace.Roots)

	merged = mergeConfigs(base, &Config{Workspace: Workspace{Roots: []string{"/project"}}})
	assert.Equal(t, []string{"/project"}, merged.Workspace.Roots)
}

func TestMergeConfigs_DoesNotAliasBase(t *testing.T) {
	base := &Config{Workspace: Workspace{Roots: []string{"/global"}}}
	merged := mergeConfigs(base, &Config{})

	merged.Workspace.Roots[0] = "/changed"
	assert.Equal(t, "/global", base.Workspace.Roots[0])
}

func TestRoots(t *testing.T) {
	cfg := &Config{Project: Project{Root: "/work/app"}}
	assert.Equal(t, []string{"/work/app"}, cfg.Roots())

	cfg.Workspace.Roots = []string{".", "../shared", "/abs/lib"}
	assert.Equal(t, []string{
		filepath.Clean("/work/app"),
		filepath.Clean("/work/shared"),
		filepath.Clean("/abs/lib"),
	}, cfg.Roots())

	assert.Nil(t, (&Config{}).Roots())
}

func TestLoadWithRoot_DefaultsWhenNoFiles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	cfg, err := LoadWithRoot("", dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Project.Root)
	assert.Equal(t, EngineModeAuto, cfg.Engine.Mode)
	assert.Equal(t, []string{dir}, cfg.Roots())
}

func TestLoadWithRoot_GlobalAndProject(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	global := `
exclude "**/global-skip/**"
engine {
    binary "/usr/local/bin/ast-grep"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(home, ConfigFileName), []byte(global), 0644))

	dir := t.TempDir()
	project := `
exclude "**/project-skip/**"
engine {
    mode "system"
    timeout_sec 12
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(project), 0644))

	cfg, err := LoadWithRoot("", dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Project.Root)
	assert.Equal(t, EngineModeSystem, cfg.Engine.Mode)
	assert.Equal(t, 12, cfg.Engine.TimeoutSec)
	assert.Equal(t, "/usr/local/bin/ast-grep", cfg.Engine.BinaryPath)
	assert.Contains(t, cfg.Workspace.Exclude, "**/global-skip/**")
	assert.Contains(t, cfg.Workspace.Exclude, "**/project-skip/**")
}

func TestLoadWithRoot_ExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "alt.kdl")
	require.NoError(t, os.WriteFile(path, []byte("tools {\n    max_paths_per_invocation 7\n}\n"), 0644))

	cfg, err := LoadWithRoot(path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Tools.MaxPathsPerInvocation)
	assert.Equal(t, dir, cfg.Project.Root)

	_, err = LoadWithRoot(filepath.Join(dir, "missing.kdl"), "")
	assert.Error(t, err)
}

func TestLoadWithRoot_InvalidProjectFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`engine {`), 0644))

	_, err := LoadWithRoot("", dir)
	assert.Error(t, err)
}
