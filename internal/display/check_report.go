package display

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// EngineStatus is the engine part of a check report.
type EngineStatus struct {
	Ready      bool
	Path       string
	Version    string
	Source     string
	Error      string
	Kind       string
	Diagnostic string
}

// CheckReport is what the check command found.
type CheckReport struct {
	Server      string
	Version     string
	Platform    string
	ConfigPath  string // empty when no config file was found
	Roots       []string
	Exclude     []string
	Engine      EngineStatus
	MinEngine   string
	MetricsAddr string
	Warnings    []string
}

// ReportFormatter renders a CheckReport as text.
type ReportFormatter struct {
	color bool
}

// NewReportFormatter creates a formatter; useColor false gives plain text
// regardless of the terminal.
func NewReportFormatter(useColor bool) *ReportFormatter {
	return &ReportFormatter{color: useColor}
}

func (f *ReportFormatter) paint(s string, attrs ...color.Attribute) string {
	c := color.New(attrs...)
	if f.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

func (f *ReportFormatter) ok(s string) string   { return f.paint("✓ "+s, color.FgGreen) }
func (f *ReportFormatter) warn(s string) string { return f.paint("⚠ "+s, color.FgYellow) }
func (f *ReportFormatter) fail(s string) string { return f.paint("✗ "+s, color.FgRed) }
func (f *ReportFormatter) dim(s string) string  { return f.paint(s, color.Faint) }

func (f *ReportFormatter) label(s string) string {
	return f.paint(fmt.Sprintf("%-10s", s), color.Bold)
}

// Format renders the report. The first line is a header, then one section per
// concern; the last line is the overall verdict.
func (f *ReportFormatter) Format(r CheckReport) string {
	var sb strings.Builder

	header := fmt.Sprintf("%s %s", r.Server, r.Version)
	sb.WriteString(f.paint(header, color.Bold) + "\n")
	sb.WriteString(strings.Repeat("=", len(header)) + "\n")
	if r.Platform != "" {
		fmt.Fprintf(&sb, "%s %s\n", f.label("Platform"), r.Platform)
	}
	if r.ConfigPath != "" {
		fmt.Fprintf(&sb, "%s %s\n", f.label("Config"), f.dim(r.ConfigPath))
	} else {
		fmt.Fprintf(&sb, "%s %s\n", f.label("Config"), f.dim("defaults (no config file)"))
	}

	sb.WriteString("\n" + f.paint("Workspace", color.Bold) + "\n")
	for i, root := range r.Roots {
		suffix := ""
		if i == 0 {
			suffix = f.dim(" (primary)")
		}
		fmt.Fprintf(&sb, "  %s%s\n", root, suffix)
	}
	if len(r.Exclude) > 0 {
		fmt.Fprintf(&sb, "  %s\n", f.dim(fmt.Sprintf("%d exclude patterns", len(r.Exclude))))
	}

	sb.WriteString("\n" + f.paint("Engine", color.Bold) + "\n")
	e := r.Engine
	if e.Ready {
		sb.WriteString("  " + f.ok(fmt.Sprintf("ast-grep %s (%s)", e.Version, e.Source)) + "\n")
		fmt.Fprintf(&sb, "  %s\n", f.dim(e.Path))
	} else {
		msg := "ast-grep unavailable"
		if e.Kind != "" {
			msg += " [" + e.Kind + "]"
		}
		sb.WriteString("  " + f.fail(msg) + "\n")
		if e.Error != "" {
			fmt.Fprintf(&sb, "  %s\n", e.Error)
		}
		for _, line := range strings.Split(e.Diagnostic, "\n") {
			if line != "" {
				fmt.Fprintf(&sb, "    %s\n", f.dim(line))
			}
		}
	}
	if r.MinEngine != "" {
		fmt.Fprintf(&sb, "  %s\n", f.dim("minimum supported: "+r.MinEngine))
	}

	if r.MetricsAddr != "" {
		sb.WriteString("\n" + f.paint("Metrics", color.Bold) + "\n")
		fmt.Fprintf(&sb, "  http://%s/metrics\n", r.MetricsAddr)
	}

	if len(r.Warnings) > 0 {
		sb.WriteString("\n")
		for _, w := range r.Warnings {
			sb.WriteString(f.warn(w) + "\n")
		}
	}

	sb.WriteString("\n")
	if e.Ready {
		sb.WriteString(f.ok("ready to serve MCP requests") + "\n")
	} else {
		sb.WriteString(f.fail("not ready: tool calls will fail until ast-grep is available") + "\n")
	}
	return sb.String()
}
