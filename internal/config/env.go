package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables recognised by ApplyEnv.
const (
	EnvUseSystemBinary = "TREE_GREP_USE_SYSTEM_BINARY"
	EnvBinary          = "TREE_GREP_BINARY"
	EnvCacheDir        = "TREE_GREP_CACHE_DIR"
	EnvTimeout         = "TREE_GREP_TIMEOUT"
	EnvRoots           = "TREE_GREP_ROOTS"
	EnvMetricsAddr     = "TREE_GREP_METRICS_ADDR"
)

// ApplyEnv overlays TREE_GREP_* variables on top of file configuration.
// lookup is os.LookupEnv in production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup(EnvUseSystemBinary); ok && v != "" {
		if parseBool(v) {
			c.Engine.Mode = EngineModeSystem
		} else if c.Engine.Mode == EngineModeSystem {
			c.Engine.Mode = EngineModeAuto
		}
	}
	if v, ok := lookup(EnvBinary); ok && v != "" {
		c.Engine.BinaryPath = v
	}
	if v, ok := lookup(EnvCacheDir); ok && v != "" {
		c.Engine.CacheDir = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		secs, err := parseDurationSeconds(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Engine.TimeoutSec = secs
	}
	if v, ok := lookup(EnvRoots); ok && v != "" {
		c.Workspace.Roots = splitList(v)
	}
	if v, ok := lookup(EnvMetricsAddr); ok {
		c.Server.MetricsAddr = v
	}
	return nil
}

// parseDurationSeconds accepts "45" (seconds) or a Go duration such as "1m30s".
func parseDurationSeconds(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative timeout %q", s)
		}
		return n, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative timeout %q", s)
	}
	return int((d + time.Second - 1) / time.Second), nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "yes" || s == "1" || s == "on"
}

func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == os.PathListSeparator
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
