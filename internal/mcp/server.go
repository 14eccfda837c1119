// Package mcp exposes the tools over the Model Context Protocol.
package mcp

import (
	"context"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/config"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/engine"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/tools"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/version"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/workspace"
)

// Tool names.
const (
	ToolInfo    = "info"
	ToolSearch  = tools.ToolSearch
	ToolScan    = tools.ToolScan
	ToolReplace = tools.ToolReplace
)

type Server struct {
	cfg              *config.Config
	server           *mcp.Server
	toolkit          *tools.Toolkit
	engine           *engine.Resolver // nil when an engine was injected
	workspace        *workspace.Resolver
	diagnosticLogger *DiagnosticLogger
	ownsLogger       bool
}

// Option customises NewServer.
type Option func(*serverOptions)

type serverOptions struct {
	engine         tools.Engine
	logger         *DiagnosticLogger
	resolverOption []engine.Option
}

// WithEngine bypasses binary resolution.
func WithEngine(e tools.Engine) Option {
	return func(o *serverOptions) { o.engine = e }
}

// WithLogger replaces the file-based diagnostic log.
func WithLogger(l *DiagnosticLogger) Option {
	return func(o *serverOptions) { o.logger = l }
}

// WithResolverOptions passes options to the engine resolver.
func WithResolverOptions(opts ...engine.Option) Option {
	return func(o *serverOptions) { o.resolverOption = append(o.resolverOption, opts...) }
}

// EngineConfig maps the engine section of cfg onto the resolver's config.
// An explicit binary in auto mode means system mode.
func EngineConfig(cfg *config.Config) engine.Config {
	e := cfg.Engine
	mode := engine.Mode(e.Mode)
	if mode == engine.ModeAuto && e.BinaryPath != "" {
		mode = engine.ModeSystem
	}
	return engine.Config{
		Mode:            mode,
		BinaryPath:      e.BinaryPath,
		CacheDir:        e.CacheDir,
		Version:         e.Version,
		MinVersion:      e.MinVersion,
		DownloadBaseURL: e.DownloadBaseURL,
		AllowDownload:   e.AllowDownload,
		BundledDir:      e.BundledDir,
		Timeout:         time.Duration(e.TimeoutSec) * time.Second,
	}
}

// NewServer wires the workspace, engine and tools for cfg and registers the
// MCP tools. The engine is not touched until the first tool call.
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{cfg: cfg, diagnosticLogger: o.logger}
	if s.diagnosticLogger == nil {
		if cfg.Server.DiagnosticLog {
			s.diagnosticLogger = NewDiagnosticLogger()
			s.ownsLogger = true
		} else {
			s.diagnosticLogger = NoOpLogger
		}
	}

	ws, err := workspace.NewResolver(workspace.Config{
		Roots:            cfg.Roots(),
		Exclude:          cfg.Workspace.Exclude,
		RespectGitignore: cfg.Workspace.RespectGitignore,
		FollowSymlinks:   cfg.Workspace.FollowSymlinks,
	})
	if err != nil {
		s.closeLogger()
		return nil, err
	}
	s.workspace = ws
	s.diagnosticLogger.Printf("Workspace roots: %v", ws.Roots())

	eng := o.engine
	if eng == nil {
		s.engine = engine.NewResolver(EngineConfig(cfg), o.resolverOption...)
		eng = s.engine
	}

	s.toolkit = tools.New(eng, ws, tools.Options{
		MaxPathsPerInvocation: cfg.Tools.MaxPathsPerInvocation,
		ReplaceConcurrency:    cfg.Tools.ReplaceConcurrency,
		ScanConcurrency:       cfg.Tools.ScanConcurrency,
		ScanBatchRules:        cfg.Tools.ScanBatchRules,
	})

	name := cfg.Server.Name
	if name == "" {
		name = config.DefaultServerName
	}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: version.Version,
	}, nil)
	s.registerTools()

	s.diagnosticLogger.Printf("MCP server initialized (%s)", version.FullInfo())
	return s, nil
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        ToolInfo,
		Description: "Show the engine in use, the workspace roots, supported languages and usage of each tool. Use {\"tool\": \"ast_search\"} for one tool.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"tool": {
					Type:        "string",
					Description: "Tool to describe: ast_search, ast_run_rule, ast_replace or engine",
				},
			},
		},
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, OpenWorldHint: boolPtr(false)},
	}, s.handleInfo)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolSearch,
		Description: "Structural code search with ast-grep patterns. Matches syntax, not text: console.log($ARG) finds every console.log call with one argument. Returns locations by default; set verbose for matched text and metavariable captures.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern":  {Type: "string", Description: "ast-grep pattern; $NAME matches one node, $$$NAME zero or more"},
				"language": languageSchema(),
				"paths":    pathsSchema(),
				"code":     codeSchema(),
				"verbose":  {Type: "boolean", Description: "Include matched text, source lines and captures (default false)"},
			},
			Required: []string{"pattern", "language"},
		},
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, OpenWorldHint: boolPtr(false)},
	}, s.handleSearch)

	ruleProps := map[string]*jsonschema.Schema{
		"id":       {Type: "string", Description: "Rule id, reported on every finding"},
		"language": languageSchema(),
		"pattern":  {Type: "string", Description: "ast-grep pattern the rule matches"},
		"message":  {Type: "string", Description: "Message attached to findings"},
		"severity": {Type: "string", Enum: []any{"error", "warning", "info"}, Description: "Finding severity (default warning)"},
		"note":     {Type: "string", Description: "Optional longer explanation"},
	}
	scanProps := map[string]*jsonschema.Schema{
		"rules": {
			Type:        "array",
			Description: "Several rules in one call; findings come back grouped by rule in this order",
			Items:       &jsonschema.Schema{Type: "object", Properties: ruleProps, Required: []string{"id", "language", "pattern"}},
		},
		"paths":   pathsSchema(),
		"code":    codeSchema(),
		"verbose": {Type: "boolean", Description: "Include matched text, source lines and captures (default false)"},
	}
	for k, v := range ruleProps {
		scanProps[k] = v
	}
	s.server.AddTool(&mcp.Tool{
		Name:        ToolScan,
		Description: "Run lint-style rules (id, language, pattern, message, severity) over files or inline code. Pass one rule at the top level or several under \"rules\". Findings are reported, never fixed.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: scanProps,
		},
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, OpenWorldHint: boolPtr(false)},
	}, s.handleScan)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolReplace,
		Description: "Structural rewrite: replace every match of pattern with the replacement template, reusing captured metavariables (var $NAME = $VALUE -> let $NAME = $VALUE). dryRun defaults to true and only previews; set dryRun false to write files.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern":     {Type: "string", Description: "ast-grep pattern to match"},
				"replacement": {Type: "string", Description: "Rewrite template; may use the pattern's $NAME and $$$NAME captures"},
				"language":    languageSchema(),
				"paths":       pathsSchema(),
				"code":        codeSchema(),
				"dryRun":      {Type: "boolean", Description: "Preview without writing (default true)"},
			},
			Required: []string{"pattern", "replacement", "language"},
		},
		Annotations: &mcp.ToolAnnotations{DestructiveHint: boolPtr(true), OpenWorldHint: boolPtr(false)},
	}, s.handleReplace)
}

func languageSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: "Source language, e.g. javascript, typescript, tsx, python, rust, go (aliases such as js, ts, py, rs accepted)",
	}
}

func pathsSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Items:       &jsonschema.Schema{Type: "string"},
		Description: "Files or directories inside the workspace; relative paths resolve against the first root. Mutually exclusive with code",
	}
}

func codeSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: "Inline source to process instead of files. Mutually exclusive with paths",
	}
}

func boolPtr(b bool) *bool { return &b }

// Start serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.diagnosticLogger.Printf("Starting MCP server with stdio transport")
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Run serves MCP over t.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.server.Run(ctx, t)
}

// Connect starts one session over t without blocking. Tests use it with
// in-memory transports.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

// Engine returns the lazy engine resolver, or nil when an engine was injected.
func (s *Server) Engine() *engine.Resolver {
	return s.engine
}

// Shutdown flushes the diagnostic log. In-flight engine processes are bound
// to their call contexts and need no separate teardown.
func (s *Server) Shutdown(ctx context.Context) error {
	s.diagnosticLogger.Printf("MCP server shutdown complete")
	return s.closeLogger()
}

func (s *Server) closeLogger() error {
	if s.ownsLogger {
		return s.diagnosticLogger.Close()
	}
	return nil
}

// LogPath is the diagnostic log file, if any.
func (s *Server) LogPath() string {
	return s.diagnosticLogger.LogPath()
}
