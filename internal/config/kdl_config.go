package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load configuration from dir/.tree-grep.kdl.
// A missing file yields (nil, nil).
func LoadKDL(dir string) (*Config, error) {
	kdlPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}
	return LoadKDLFile(kdlPath)
}

// LoadKDLFile loads an explicit configuration file. Relative roots inside it are
// resolved against the directory that contains the file.
func LoadKDLFile(kdlPath string) (*Config, error) {
	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", kdlPath, err)
	}

	baseDir := absOrSelf(filepath.Dir(kdlPath))
	cfg, err := parseKDL(string(content), baseDir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kdlPath, err)
	}

	if cfg.Project.Root == "" {
		cfg.Project.Root = baseDir
	} else if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Join(baseDir, cfg.Project.Root)
	}
	cfg.Project.Root = filepath.Clean(cfg.Project.Root)
	if cfg.Project.Name == "" {
		cfg.Project.Name = filepath.Base(cfg.Project.Root)
	}

	cfg.EnrichExclusionsWithBuildArtifacts()
	return cfg, nil
}

// parseKDL reads the .tree-grep.kdl document model:
//
//	project { root "."; name "web" }
//	workspace { roots "." "../shared"; respect_gitignore true; follow_symlinks false }
//	exclude "**/generated/**" "**/*.pb.go"
//	engine { mode "auto"; binary "/usr/local/bin/ast-grep"; version "0.39.5"; timeout_sec 30 }
//	tools { max_paths_per_invocation 500; replace_concurrency 4; scan_batch_rules true }
//	server { name "tree-grep-mcp"; metrics_addr "127.0.0.1:9464" }
func parseKDL(content string, baseDir string) (*Config, error) {
	cfg := Default(baseDir)
	cfg.Project.Root = ""
	cfg.Project.Name = ""

	// kdl-go accepts a document that ends inside an open block
	if err := checkBlocks(content); err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "workspace":
			parseWorkspaceSection(cfg, n)
		case "exclude":
			// An exclude block replaces the built-in exclusions
			cfg.Workspace.Exclude = collectStringArgs(n)
		case "engine":
			if err := parseEngineSection(cfg, n); err != nil {
				return nil, err
			}
		case "tools":
			parseToolsSection(cfg, n)
		case "server":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "name":
					if s, ok := firstStringArg(cn); ok {
						cfg.Server.Name = s
					}
				case "metrics_addr":
					if s, ok := firstStringArg(cn); ok {
						cfg.Server.MetricsAddr = s
					}
				case "diagnostic_log":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Server.DiagnosticLog = b
					}
				}
			}
		case "version":
			if v, ok := firstIntArg(n); ok {
				cfg.Version = v
			}
		}
	}

	return cfg, nil
}

func parseWorkspaceSection(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "roots", "root":
			cfg.Workspace.Roots = append(cfg.Workspace.Roots, collectStringArgs(cn)...)
		case "exclude":
			cfg.Workspace.Exclude = collectStringArgs(cn)
		case "respect_gitignore":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Workspace.RespectGitignore = b
			}
		case "follow_symlinks":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Workspace.FollowSymlinks = b
			}
		}
	}
}

func parseEngineSection(cfg *Config, n *document.Node) error {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "mode":
			if s, ok := firstStringArg(cn); ok {
				cfg.Engine.Mode = strings.ToLower(s)
			}
		case "use_system_binary":
			if b, ok := firstBoolArg(cn); ok && b {
				cfg.Engine.Mode = EngineModeSystem
			}
		case "binary":
			if s, ok := firstStringArg(cn); ok {
				cfg.Engine.BinaryPath = s
			}
		case "cache_dir":
			if s, ok := firstStringArg(cn); ok {
				cfg.Engine.CacheDir = s
			}
		case "version":
			if s, ok := firstStringArg(cn); ok {
				cfg.Engine.Version = strings.TrimPrefix(s, "v")
			}
		case "min_version":
			if s, ok := firstStringArg(cn); ok {
				cfg.Engine.MinVersion = strings.TrimPrefix(s, "v")
			}
		case "download_url":
			if s, ok := firstStringArg(cn); ok {
				cfg.Engine.DownloadBaseURL = s
			}
		case "allow_download":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Engine.AllowDownload = b
			}
		case "bundled_dir":
			if s, ok := firstStringArg(cn); ok {
				cfg.Engine.BundledDir = s
			}
		case "timeout_sec":
			if v, ok := firstIntArg(cn); ok {
				cfg.Engine.TimeoutSec = v
			}
		case "timeout":
			s, ok := firstStringArg(cn)
			if !ok {
				continue
			}
			d, err := parseDurationSeconds(s)
			if err != nil {
				return fmt.Errorf("engine timeout: %w", err)
			}
			cfg.Engine.TimeoutSec = d
		}
	}
	return nil
}

func parseToolsSection(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "max_paths_per_invocation":
			if v, ok := firstIntArg(cn); ok {
				cfg.Tools.MaxPathsPerInvocation = v
			}
		case "replace_concurrency":
			if v, ok := firstIntArg(cn); ok {
				cfg.Tools.ReplaceConcurrency = v
			}
		case "scan_concurrency":
			if v, ok := firstIntArg(cn); ok {
				cfg.Tools.ScanConcurrency = v
			}
		case "scan_batch_rules":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Tools.ScanBatchRules = b
			}
		case "default_verbose":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Tools.DefaultVerbose = b
			}
		}
	}
}

// Helper functions over the kdl-go document model
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}
func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		log.Printf("WARNING: invalid integer value for '%s' in KDL config, got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}
func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}
func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	// Inline form: exclude "a" "b"
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	// Block form: exclude { "a"; "b" }, where each child node name is the value
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}
func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// checkBlocks verifies that every child block is closed and every string and
// block comment is terminated. Braces inside strings and comments are ignored.
func checkBlocks(content string) error {
	var open []int // line of each unclosed '{'
	line := 1
	for i := 0; i < len(content); i++ {
		c := content[i]
		switch {
		case c == '\n':
			line++
		case c == '"':
			start := line
			i++
			for ; i < len(content) && content[i] != '"'; i++ {
				switch content[i] {
				case '\\':
					i++
				case '\n':
					line++
				}
			}
			if i >= len(content) {
				return fmt.Errorf("unterminated string starting on line %d", start)
			}
		case c == 'r' && (i == 0 || !isIdentByte(content[i-1])) && rawStringStart(content[i+1:]):
			hashes := 0
			for i++; content[i] == '#'; i++ {
				hashes++
			}
			closing := "\"" + strings.Repeat("#", hashes)
			end := strings.Index(content[i+1:], closing)
			if end < 0 {
				return fmt.Errorf("unterminated raw string on line %d", line)
			}
			line += strings.Count(content[i+1:i+1+end], "\n")
			i += end + len(closing)
		case strings.HasPrefix(content[i:], "//"):
			for i < len(content) && content[i] != '\n' {
				i++
			}
			i--
		case strings.HasPrefix(content[i:], "/*"):
			start := line
			depth := 1
			for i += 2; i < len(content) && depth > 0; i++ {
				switch {
				case strings.HasPrefix(content[i:], "/*"):
					depth++
					i++
				case strings.HasPrefix(content[i:], "*/"):
					depth--
					i++
				case content[i] == '\n':
					line++
				}
			}
			if depth > 0 {
				return fmt.Errorf("unterminated comment starting on line %d", start)
			}
			i--
		case c == '{':
			open = append(open, line)
		case c == '}':
			if len(open) == 0 {
				return fmt.Errorf("unexpected '}' on line %d", line)
			}
			open = open[:len(open)-1]
		}
	}
	if len(open) > 0 {
		return fmt.Errorf("block opened on line %d is never closed", open[len(open)-1])
	}
	return nil
}

// rawStringStart reports whether s (the text after an 'r') opens r"..." or r#"..."#.
func rawStringStart(s string) bool {
	s = strings.TrimLeft(s, "#")
	return strings.HasPrefix(s, "\"")
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '-' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
