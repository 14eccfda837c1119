package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Engine modes accepted by the engine section.
const (
	EngineModeAuto    = "auto"
	EngineModeSystem  = "system"
	EngineModeManaged = "managed"
)

// Defaults shared by the KDL parser, the validator and the CLI.
const (
	DefaultTimeoutSec            = 30
	DefaultMaxPathsPerInvocation = 500
	DefaultServerName            = "tree-grep-mcp"
	ConfigFileName               = ".tree-grep.kdl"
)

type Config struct {
	Version   int
	Project   Project
	Workspace Workspace
	Engine    Engine
	Tools     Tools
	Server    Server
}

type Project struct {
	Root string
	Name string
}

// Workspace lists the authorised roots and the directory expansion filters.
type Workspace struct {
	Roots            []string // Empty means Project.Root only
	Exclude          []string // doublestar globs, matched against root-relative slash paths
	RespectGitignore bool     // Add .gitignore patterns of each root to Exclude
	FollowSymlinks   bool     // Descend into symlinked directories that stay inside a root
}

// Engine selects and bounds the ast-grep binary.
type Engine struct {
	Mode            string // "auto", "system" or "managed"
	BinaryPath      string // Explicit binary; implies system mode when Mode is auto
	CacheDir        string // Managed install cache, keyed by version
	Version         string // Pinned managed version
	MinVersion      string // Oldest accepted engine
	DownloadBaseURL string // Release asset base URL for managed downloads
	AllowDownload   bool
	BundledDir      string // Directory searched for a bundled copy (default: executable dir)
	TimeoutSec      int    // Per-invocation timeout
}

// Tools tunes the search, scan and replace tools.
type Tools struct {
	MaxPathsPerInvocation int  // Paths passed to one engine process
	ReplaceConcurrency    int  // Parallel per-file rewrites, 0 = auto-detect
	ScanConcurrency       int  // Parallel per-rule scans when batching is off, 0 = auto-detect
	ScanBatchRules        bool // Send all rules in one --inline-rules invocation
	DefaultVerbose        bool
}

type Server struct {
	Name          string
	MetricsAddr   string // Empty disables the /metrics listener
	DiagnosticLog bool   // File-based MCP diagnostic log
}

// Roots returns the authorised workspace roots, falling back to the project root.
// Relative roots are resolved against the project root.
func (c *Config) Roots() []string {
	if len(c.Workspace.Roots) == 0 {
		if c.Project.Root == "" {
			return nil
		}
		return []string{c.Project.Root}
	}
	roots := make([]string, 0, len(c.Workspace.Roots))
	for _, r := range c.Workspace.Roots {
		if !filepath.IsAbs(r) && c.Project.Root != "" {
			r = filepath.Join(c.Project.Root, r)
		}
		roots = append(roots, filepath.Clean(r))
	}
	return roots
}

func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot builds the effective configuration: ~/.tree-grep.kdl as the base,
// then either the explicit file at path or rootDir/.tree-grep.kdl on top.
// Environment overrides are applied by the caller (see ApplyEnv).
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	// Step 1: global base config
	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	// Step 2: project config, explicit file first
	var projectConfig *Config
	if path != "" {
		cfg, err := LoadKDLFile(path)
		if err != nil {
			return nil, err
		}
		projectConfig = cfg
	} else if kdlCfg, err := LoadKDL(searchDir); err != nil {
		return nil, err
	} else if kdlCfg != nil {
		projectConfig = kdlCfg
	}

	// Step 3: merge (project overrides base, base exclusions are preserved)
	if baseConfig != nil && projectConfig != nil {
		return mergeConfigs(baseConfig, projectConfig), nil
	} else if projectConfig != nil {
		return projectConfig, nil
	} else if baseConfig != nil {
		baseConfig.Project.Root = absOrSelf(searchDir)
		baseConfig.EnrichExclusionsWithBuildArtifacts()
		return baseConfig, nil
	}

	cfg := Default(absOrSelf(searchDir))
	cfg.EnrichExclusionsWithBuildArtifacts()
	return cfg, nil
}

// Default returns the built-in configuration rooted at root.
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{
			Root: root,
			Name: filepath.Base(root),
		},
		Workspace: Workspace{
			Exclude:          defaultExclusions(),
			RespectGitignore: true,
			FollowSymlinks:   false,
		},
		Engine: Engine{
			Mode:          EngineModeAuto,
			CacheDir:      DefaultCacheDir(),
			AllowDownload: true,
			TimeoutSec:    DefaultTimeoutSec,
		},
		Tools: Tools{
			MaxPathsPerInvocation: DefaultMaxPathsPerInvocation,
			ReplaceConcurrency:    max(1, runtime.NumCPU()-1),
			ScanConcurrency:       max(1, runtime.NumCPU()-1),
			ScanBatchRules:        true,
			DefaultVerbose:        false,
		},
		Server: Server{
			Name:          DefaultServerName,
			DiagnosticLog: true,
		},
	}
}

// DefaultCacheDir is the per-user managed engine cache.
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "tree-grep-mcp", "engine")
	}
	return filepath.Join(os.TempDir(), "tree-grep-mcp", "engine")
}

func defaultExclusions() []string {
	return []string{
		// VCS metadata
		"**/.git/**",
		"**/.hg/**",
		"**/.svn/**",

		// Package managers & dependencies
		"**/node_modules/**",
		"**/vendor/**",
		"**/bower_components/**",
		"**/.venv/**",
		"**/venv/**",
		"**/site-packages/**",

		// Build artifacts & output
		"**/dist/**",
		"**/build/**",
		"**/target/**",
		"**/out/**",
		"**/*.min.js",
		"**/*.min.css",
		"**/*.bundle.js",

		// Caches
		"**/__pycache__/**",
		"**/.next/**",
		"**/.cache/**",
	}
}

// mergeConfigs merges a base config with a project config.
// Project config takes precedence, but base exclusions are preserved.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Workspace.Exclude) > 0 {
		combined := make([]string, 0, len(base.Workspace.Exclude)+len(project.Workspace.Exclude))
		combined = append(combined, base.Workspace.Exclude...)
		combined = append(combined, project.Workspace.Exclude...)
		merged.Workspace.Exclude = DeduplicatePatterns(combined)
	}

	// Roots: project replaces base completely when specified
	if len(project.Workspace.Roots) == 0 && len(base.Workspace.Roots) > 0 {
		merged.Workspace.Roots = append([]string(nil), base.Workspace.Roots...)
	}

	// A binary pinned globally stays in effect unless the project names its own
	if merged.Engine.BinaryPath == "" {
		merged.Engine.BinaryPath = base.Engine.BinaryPath
	}

	return &merged
}

// EnrichExclusionsWithBuildArtifacts detects build output directories from language configs
// and adds them to the exclusion list
func (c *Config) EnrichExclusionsWithBuildArtifacts() {
	if c.Project.Root == "" {
		return
	}

	detector := NewBuildArtifactDetector(c.Project.Root)
	detected := detector.DetectOutputDirectories()
	if len(detected) > 0 {
		c.Workspace.Exclude = DeduplicatePatterns(append(c.Workspace.Exclude, detected...))
	}
}

func absOrSelf(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}
