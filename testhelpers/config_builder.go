package testhelpers

import (
	"github.com/Justar96/tree-grep-mcp-sub002/internal/config"
)

// TestConfigBuilder provides a fluent API for building test configs with safe defaults.
// Downloads are off and the engine is pinned to a system binary, so tests never
// touch the network or the user cache.
// Usage:
//
//	cfg := testhelpers.NewTestConfigBuilder(root).
//		WithEngine(fake).
//		WithExclusions("generated/**").
//		Build()
type TestConfigBuilder struct {
	projectRoot string
	roots       []string
	exclusions  []string
	binary      string
	timeoutSec  int
	gitignore   bool
	verbose     bool
}

func NewTestConfigBuilder(projectRoot string) *TestConfigBuilder {
	return &TestConfigBuilder{
		projectRoot: projectRoot,
		exclusions: []string{
			"**/.git/**",
			"**/node_modules/**",
			"**/vendor/**",
			"**/dist/**",
		},
		timeoutSec: 10,
	}
}

// WithEngine points the config at a fake or real binary.
func (b *TestConfigBuilder) WithEngine(fe *FakeEngine) *TestConfigBuilder {
	b.binary = fe.Path
	return b
}

func (b *TestConfigBuilder) WithBinary(path string) *TestConfigBuilder {
	b.binary = path
	return b
}

// WithRoots replaces the default single root (the project root).
func (b *TestConfigBuilder) WithRoots(roots ...string) *TestConfigBuilder {
	b.roots = roots
	return b
}

func (b *TestConfigBuilder) WithExclusions(patterns ...string) *TestConfigBuilder {
	b.exclusions = append(b.exclusions, patterns...)
	return b
}

func (b *TestConfigBuilder) WithTimeout(sec int) *TestConfigBuilder {
	b.timeoutSec = sec
	return b
}

func (b *TestConfigBuilder) WithGitignore(enabled bool) *TestConfigBuilder {
	b.gitignore = enabled
	return b
}

func (b *TestConfigBuilder) WithVerbose(enabled bool) *TestConfigBuilder {
	b.verbose = enabled
	return b
}

// Build creates the final test config with all settings.
func (b *TestConfigBuilder) Build() *config.Config {
	mode := config.EngineModeAuto
	if b.binary != "" {
		mode = config.EngineModeSystem
	}
	return &config.Config{
		Version: 1,
		Project: config.Project{
			Root: b.projectRoot,
			Name: "test-project",
		},
		Workspace: config.Workspace{
			Roots:            b.roots,
			Exclude:          b.exclusions,
			RespectGitignore: b.gitignore,
		},
		Engine: config.Engine{
			Mode:          mode,
			BinaryPath:    b.binary,
			AllowDownload: false,
			TimeoutSec:    b.timeoutSec,
			Version:       DefaultFakeVersion,
			MinVersion:    "0.20.0",
		},
		Tools: config.Tools{
			MaxPathsPerInvocation: 50,
			ReplaceConcurrency:    2,
			ScanConcurrency:       2,
			ScanBatchRules:        true,
			DefaultVerbose:        b.verbose,
		},
		Server: config.Server{
			Name: "tree-grep-mcp-test",
		},
	}
}
