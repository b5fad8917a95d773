// Package config loads gitaudit settings from file, environment, and
// defaults.
package config

import (
	"errors"
	"fmt"
)

// Defaults for engine settings.
const (
	DefaultWorkers         = 0 // 0 = GOMAXPROCS
	DefaultMaxScanSize     = 64 << 20
	DefaultReadAttempts    = 3
	DefaultTruncatedPolicy = "count_full"
	DefaultOutputDir       = "."
	DefaultMetricsAddr     = "" // empty = metrics listener disabled
)

// ErrInvalidConfig indicates a config value failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// validTruncatedPolicies lists the accepted truncated-weight policies.
var validTruncatedPolicies = map[string]bool{
	"count_full":    true,
	"count_partial": true,
	"exclude":       true,
}

// Config is the full gitaudit configuration.
type Config struct {
	Engine      EngineConfig `mapstructure:"engine"`
	Output      OutputConfig `mapstructure:"output"`
	GitHub      GitHubConfig `mapstructure:"github"`
	RulesetPath string       `mapstructure:"ruleset"`
	MetricsAddr string       `mapstructure:"metrics_addr"`
}

// EngineConfig controls traversal and classification.
type EngineConfig struct {
	Workers         int    `mapstructure:"workers"`
	MaxScanSize     int64  `mapstructure:"max_scan_size"`
	ReadAttempts    int    `mapstructure:"read_attempts"`
	SkipBinary      bool   `mapstructure:"skip_binary"`
	TruncatedPolicy string `mapstructure:"truncated_policy"`
}

// OutputConfig controls where reports land.
type OutputConfig struct {
	Dir     string `mapstructure:"dir"`
	NoColor bool   `mapstructure:"no_color"`
}

// GitHubConfig holds optional GitHub API enrichment settings.
type GitHubConfig struct {
	Token string `mapstructure:"token"`
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Engine.Workers < 0 {
		return fmt.Errorf("%w: engine.workers must be >= 0", ErrInvalidConfig)
	}

	if c.Engine.MaxScanSize <= 0 {
		return fmt.Errorf("%w: engine.max_scan_size must be positive", ErrInvalidConfig)
	}

	if c.Engine.ReadAttempts < 1 {
		return fmt.Errorf("%w: engine.read_attempts must be >= 1", ErrInvalidConfig)
	}

	if !validTruncatedPolicies[c.Engine.TruncatedPolicy] {
		return fmt.Errorf("%w: engine.truncated_policy must be one of count_full, count_partial, exclude",
			ErrInvalidConfig)
	}

	return nil
}
