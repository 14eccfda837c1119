package main

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/config"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/display"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/mcp"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/version"
)

var errEngineNotReady = errors.New("ast-grep engine is not available")

// checkCommand resolves the engine the way the MCP server would and prints a
// report. It fails when no usable engine is found.
func checkCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	srv, err := mcp.NewServer(cfg, mcp.WithLogger(mcp.NoOpLogger))
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	info := srv.EngineStatus(c.Context)

	report := display.CheckReport{
		Server:     cfg.Server.Name,
		Version:    version.Version,
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		ConfigPath: configFileInUse(c, cfg),
		Roots:      cfg.Roots(),
		Exclude:    cfg.Workspace.Exclude,
		Engine: display.EngineStatus{
			Ready:      info.Status == "ready",
			Path:       info.Path,
			Version:    info.Version,
			Source:     info.Source,
			Error:      info.Error,
			Kind:       info.Kind,
			Diagnostic: info.Diagnostic,
		},
		MinEngine:   cfg.Engine.MinVersion,
		MetricsAddr: cfg.Server.MetricsAddr,
		Warnings:    checkWarnings(cfg),
	}

	useColor := !c.Bool("no-color") && !color.NoColor
	fmt.Fprint(c.App.Writer, display.NewReportFormatter(useColor).Format(report))

	if !report.Engine.Ready {
		return errEngineNotReady
	}
	return nil
}

func checkWarnings(cfg *config.Config) []string {
	var warnings []string
	if cfg.Engine.Mode != config.EngineModeSystem && cfg.Engine.BinaryPath == "" && !cfg.Engine.AllowDownload {
		warnings = append(warnings, "managed downloads are disabled; ast-grep must be on PATH")
	}
	if !cfg.Workspace.RespectGitignore {
		warnings = append(warnings, ".gitignore files are not applied to directory expansion")
	}
	return warnings
}
