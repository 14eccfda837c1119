package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/config"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/version"
)

// globalFlags are accepted before any command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Config file path (default: <root>/" + config.ConfigFileName + ")",
		},
		&cli.StringSliceFlag{
			Name:    "root",
			Aliases: []string{"r"},
			Usage:   "Workspace root; repeat for several roots, the first is primary (default: current directory)",
		},
		&cli.StringSliceFlag{
			Name:  "exclude",
			Usage: "Exclude directories matching glob patterns during expansion (e.g., --exclude '**/generated/**')",
		},
		&cli.BoolFlag{
			Name:  "use-system-binary",
			Usage: "Only use an ast-grep found on PATH or given with --binary; never download",
		},
		&cli.StringFlag{
			Name:  "binary",
			Usage: "Path to the ast-grep binary",
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "Directory for the managed ast-grep install",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Timeout for a single ast-grep invocation (e.g., 45s, 2m)",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve Prometheus metrics on this address (e.g., 127.0.0.1:9464)",
		},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "tree-grep-mcp",
		Usage:                  "Structural code search, lint and rewrite for AI assistants, powered by ast-grep",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags:                  globalFlags(),
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Start MCP (Model Context Protocol) server with stdio transport",
				Action: mcpCommand,
			},
			{
				Name:  "check",
				Usage: "Resolve the ast-grep engine and report the effective configuration",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-color",
						Usage: "Disable coloured output",
					},
				},
				Action: checkCommand,
			},
			{
				Name:  "version",
				Usage: "Show version and build information",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, version.FullInfo())
					fmt.Fprintf(c.App.Writer, "build: %s\n", version.BuildID())
					return nil
				},
			},
		},
		// With no command the binary is an MCP server, which is how clients launch it.
		Action: mcpCommand,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig builds the effective configuration: config files, then
// TREE_GREP_* environment variables, then command-line flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	roots, err := absPaths(c.StringSlice("root"))
	if err != nil {
		return nil, err
	}
	primary := ""
	if len(roots) > 0 {
		primary = roots[0]
	}

	configPath := c.String("config")
	cfg, err := config.LoadWithRoot(configPath, primary)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if len(roots) > 0 {
		cfg.Project.Root = primary
		cfg.Project.Name = filepath.Base(primary)
		cfg.Workspace.Roots = roots
	}
	if excludes := c.StringSlice("exclude"); len(excludes) > 0 {
		cfg.Workspace.Exclude = config.DeduplicatePatterns(append(cfg.Workspace.Exclude, excludes...))
	}
	if c.IsSet("use-system-binary") {
		if c.Bool("use-system-binary") {
			cfg.Engine.Mode = config.EngineModeSystem
		} else if cfg.Engine.Mode == config.EngineModeSystem {
			cfg.Engine.Mode = config.EngineModeAuto
		}
	}
	if c.IsSet("binary") {
		cfg.Engine.BinaryPath = c.String("binary")
	}
	if c.IsSet("cache-dir") {
		cfg.Engine.CacheDir = c.String("cache-dir")
	}
	if c.IsSet("timeout") {
		cfg.Engine.TimeoutSec = int(math.Ceil(c.Duration("timeout").Seconds()))
	}
	if c.IsSet("metrics-addr") {
		cfg.Server.MetricsAddr = c.String("metrics-addr")
	}

	if err := config.NewValidator().ValidateAndSetDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func absPaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", p, err)
		}
		out = append(out, abs)
	}
	return out, nil
}

// configFileInUse reports the project config file that was read, if any.
func configFileInUse(c *cli.Context, cfg *config.Config) string {
	if p := c.String("config"); p != "" {
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	p := filepath.Join(cfg.Project.Root, config.ConfigFileName)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}
