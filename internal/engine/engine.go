// Package engine locates, validates and runs the ast-grep binary.
//
// A Resolver turns a Config into an immutable Handle exactly once per process
// (or per Reset). The Handle is the only way the rest of the module talks to the
// engine: every call is a fresh subprocess bounded by a timeout, so a Handle is
// safe to share between concurrent tool calls.
package engine

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/version"
)

// Mode selects where the resolver looks for a binary.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeSystem  Mode = "system"
	ModeManaged Mode = "managed"
)

// Source records where a validated binary came from.
type Source string

const (
	SourceSystem  Source = "system"
	SourceManaged Source = "managed"
)

// DefaultDownloadBaseURL hosts the pinned release assets.
const DefaultDownloadBaseURL = "https://github.com/ast-grep/ast-grep/releases/download"

// DefaultTimeout bounds a single engine invocation.
const DefaultTimeout = 30 * time.Second

// binaryNames are the executable names ast-grep installs under, in lookup order.
var binaryNames = []string{"ast-grep", "sg"}

type Config struct {
	Mode            Mode
	BinaryPath      string
	CacheDir        string
	Version         string // managed version to install
	MinVersion      string
	DownloadBaseURL string
	AllowDownload   bool
	BundledDir      string
	Timeout         time.Duration
	Env             []string // extra KEY=VALUE pairs for every invocation
}

// withDefaults fills zero fields. The receiver is a copy.
func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeAuto
	}
	if c.Version == "" {
		c.Version = version.PinnedEngine
	}
	if c.MinVersion == "" {
		c.MinVersion = version.MinEngine
	}
	if c.DownloadBaseURL == "" {
		c.DownloadBaseURL = DefaultDownloadBaseURL
	}
	if c.CacheDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			c.CacheDir = filepath.Join(dir, "tree-grep-mcp", "engine")
		}
	}
	if c.BundledDir == "" {
		if exe, err := os.Executable(); err == nil {
			c.BundledDir = filepath.Dir(exe)
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Handle is a validated, invocable engine. It never changes after creation.
type Handle struct {
	Path    string
	Version string
	Source  Source

	timeout time.Duration
	env     []string
}

// NewHandle builds a handle around an already validated binary. Tests and
// callers that manage the binary themselves use it to bypass resolution.
func NewHandle(path, ver string, source Source, timeout time.Duration, env []string) *Handle {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Handle{
		Path:    path,
		Version: ver,
		Source:  source,
		timeout: timeout,
		env:     append([]string(nil), env...),
	}
}

// Timeout is the per-invocation bound.
func (h *Handle) Timeout() time.Duration {
	return h.timeout
}

func exeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}
