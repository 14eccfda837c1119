// Build artifact detection from language-specific configuration files.
// Output directories found in package.json, tsconfig.json, Cargo.toml and
// pyproject.toml are excluded from directory expansion so searches and rewrites
// never touch generated code.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// BuildArtifactDetector finds language-specific build output directories
type BuildArtifactDetector struct {
	projectRoot string
}

// NewBuildArtifactDetector creates a new build artifact detector
func NewBuildArtifactDetector(projectRoot string) *BuildArtifactDetector {
	return &BuildArtifactDetector{projectRoot: projectRoot}
}

// DetectOutputDirectories scans for build configuration files and extracts output directories
// Returns glob patterns to exclude (e.g., "**/dist/**", "**/target/**")
func (bad *BuildArtifactDetector) DetectOutputDirectories() []string {
	var patterns []string
	patterns = append(patterns, bad.detectJavaScriptOutputs()...)
	patterns = append(patterns, bad.detectRustOutputs()...)
	patterns = append(patterns, bad.detectPythonOutputs()...)
	return DeduplicatePatterns(patterns)
}

type packageJSON struct {
	Scripts map[string]string `json:"scripts"`
	Build   struct {
		OutDir string `json:"outDir"`
	} `json:"build"`
}

type tsconfigJSON struct {
	CompilerOptions struct {
		OutDir string `json:"outDir"`
	} `json:"compilerOptions"`
}

// detectJavaScriptOutputs finds JS/TS build outputs
func (bad *BuildArtifactDetector) detectJavaScriptOutputs() []string {
	var patterns []string

	if data, err := os.ReadFile(filepath.Join(bad.projectRoot, "package.json")); err == nil {
		var pkg packageJSON
		if json.Unmarshal(data, &pkg) == nil {
			for _, script := range pkg.Scripts {
				parts := strings.Fields(script)
				for i, part := range parts {
					if (part == "--outDir" || part == "-outDir") && i+1 < len(parts) {
						patterns = appendDirPattern(patterns, strings.Trim(parts[i+1], "\"'"))
					}
				}
			}
			patterns = appendDirPattern(patterns, pkg.Build.OutDir)
		}
	}

	if data, err := os.ReadFile(filepath.Join(bad.projectRoot, "tsconfig.json")); err == nil {
		var ts tsconfigJSON
		if json.Unmarshal(data, &ts) == nil {
			patterns = appendDirPattern(patterns, ts.CompilerOptions.OutDir)
		}
	}

	return patterns
}

type cargoManifest struct {
	Build struct {
		TargetDir string `toml:"target-dir"`
	} `toml:"build"`
	Profile map[string]struct {
		TargetDir string `toml:"target-dir"`
	} `toml:"profile"`
}

// detectRustOutputs finds Rust build outputs (Cargo.toml)
func (bad *BuildArtifactDetector) detectRustOutputs() []string {
	data, err := os.ReadFile(filepath.Join(bad.projectRoot, "Cargo.toml"))
	if err != nil {
		return nil
	}
	var cargo cargoManifest
	if toml.Unmarshal(data, &cargo) != nil {
		return nil
	}

	var patterns []string
	patterns = appendDirPattern(patterns, cargo.Build.TargetDir)
	for _, profile := range cargo.Profile {
		patterns = appendDirPattern(patterns, profile.TargetDir)
	}
	return patterns
}

type pyprojectManifest struct {
	Tool struct {
		Poetry struct {
			Build struct {
				TargetDir string `toml:"target-dir"`
			} `toml:"build"`
		} `toml:"poetry"`
		Hatch struct {
			Build struct {
				Directory string `toml:"directory"`
			} `toml:"build"`
		} `toml:"hatch"`
	} `toml:"tool"`
}

// detectPythonOutputs finds Python build outputs (pyproject.toml)
func (bad *BuildArtifactDetector) detectPythonOutputs() []string {
	data, err := os.ReadFile(filepath.Join(bad.projectRoot, "pyproject.toml"))
	if err != nil {
		return nil
	}
	var pyproject pyprojectManifest
	if toml.Unmarshal(data, &pyproject) != nil {
		return nil
	}

	var patterns []string
	patterns = appendDirPattern(patterns, pyproject.Tool.Poetry.Build.TargetDir)
	patterns = appendDirPattern(patterns, pyproject.Tool.Hatch.Build.Directory)
	return patterns
}

func appendDirPattern(patterns []string, dir string) []string {
	dir = strings.Trim(filepath.ToSlash(strings.TrimSpace(dir)), "/")
	dir = strings.TrimPrefix(dir, "./")
	if dir == "" || dir == "." || strings.HasPrefix(dir, "..") {
		return patterns
	}
	return append(patterns, "**/"+dir+"/**")
}

// DeduplicatePatterns removes duplicate exclusion patterns, keeping first occurrence order
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))

	for _, pattern := range patterns {
		if !seen[pattern] {
			seen[pattern] = true
			result = append(result, pattern)
		}
	}

	return result
}
