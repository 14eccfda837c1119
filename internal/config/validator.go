package config

import (
	"errors"
	"fmt"
	"runtime"

	apperrors "github.com/Justar96/tree-grep-mcp-sub002/internal/errors"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/version"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
// Returns an error if validation fails
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return configError("project", err)
	}

	if err := v.validateEngineConfig(&cfg.Engine); err != nil {
		return configError("engine", err)
	}

	if err := v.validateToolsConfig(&cfg.Tools); err != nil {
		return configError("tools", err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

func configError(section string, err error) error {
	return apperrors.Wrap(apperrors.KindConfig, "config."+section, err, "invalid configuration")
}

// validateProjectConfig validates project configuration
func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

// validateEngineConfig validates engine configuration
func (v *Validator) validateEngineConfig(engine *Engine) error {
	switch engine.Mode {
	case "", EngineModeAuto, EngineModeSystem, EngineModeManaged:
	default:
		return fmt.Errorf("engine mode must be auto, system or managed, got %q", engine.Mode)
	}

	if engine.TimeoutSec < 0 {
		return fmt.Errorf("TimeoutSec cannot be negative, got %d", engine.TimeoutSec)
	}

	if engine.TimeoutSec > 3600 {
		return fmt.Errorf("TimeoutSec should not exceed 3600, got %d", engine.TimeoutSec)
	}

	if engine.Mode == EngineModeManaged && engine.BinaryPath != "" {
		return errors.New("binary cannot be combined with managed mode")
	}

	return nil
}

// validateToolsConfig validates tool configuration
func (v *Validator) validateToolsConfig(tools *Tools) error {
	if tools.MaxPathsPerInvocation < 0 {
		return fmt.Errorf("MaxPathsPerInvocation cannot be negative, got %d", tools.MaxPathsPerInvocation)
	}

	// Concurrency: 0 means auto-detect (will be set by smart defaults)
	if tools.ReplaceConcurrency < 0 {
		return fmt.Errorf("ReplaceConcurrency cannot be negative, got %d", tools.ReplaceConcurrency)
	}

	if tools.ScanConcurrency < 0 {
		return fmt.Errorf("ScanConcurrency cannot be negative, got %d", tools.ScanConcurrency)
	}

	return nil
}

// setSmartDefaults applies smart defaults based on system capabilities
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Engine.Mode == "" {
		cfg.Engine.Mode = EngineModeAuto
	}

	if cfg.Engine.Version == "" {
		cfg.Engine.Version = version.PinnedEngine
	}

	if cfg.Engine.MinVersion == "" {
		cfg.Engine.MinVersion = version.MinEngine
	}

	if cfg.Engine.CacheDir == "" {
		cfg.Engine.CacheDir = DefaultCacheDir()
	}

	if cfg.Engine.TimeoutSec == 0 {
		cfg.Engine.TimeoutSec = DefaultTimeoutSec
	}

	if cfg.Tools.MaxPathsPerInvocation == 0 {
		cfg.Tools.MaxPathsPerInvocation = DefaultMaxPathsPerInvocation
	}

	// Leave one core free for the OS and the MCP client
	if cfg.Tools.ReplaceConcurrency == 0 {
		cfg.Tools.ReplaceConcurrency = max(1, runtime.NumCPU()-1)
	}

	if cfg.Tools.ScanConcurrency == 0 {
		cfg.Tools.ScanConcurrency = max(1, runtime.NumCPU()-1)
	}

	if cfg.Server.Name == "" {
		cfg.Server.Name = DefaultServerName
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
