package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".gitaudit"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix, e.g. GITAUDIT_GITHUB_TOKEN.
const envPrefix = "GITAUDIT"

// Load reads configuration from file, env vars, and defaults. If configPath
// is non-empty it is used as the explicit config file; otherwise the file
// is searched in CWD and $HOME. A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("engine.workers", DefaultWorkers)
	viperCfg.SetDefault("engine.max_scan_size", DefaultMaxScanSize)
	viperCfg.SetDefault("engine.read_attempts", DefaultReadAttempts)
	viperCfg.SetDefault("engine.skip_binary", true)
	viperCfg.SetDefault("engine.truncated_policy", DefaultTruncatedPolicy)

	viperCfg.SetDefault("output.dir", DefaultOutputDir)
	viperCfg.SetDefault("output.no_color", false)

	viperCfg.SetDefault("github.token", "")
	viperCfg.SetDefault("ruleset", "")
	viperCfg.SetDefault("metrics_addr", DefaultMetricsAddr)
}
