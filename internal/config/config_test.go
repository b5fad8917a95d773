package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultWorkers, cfg.Engine.Workers)
	assert.Equal(t, int64(DefaultMaxScanSize), cfg.Engine.MaxScanSize)
	assert.Equal(t, DefaultReadAttempts, cfg.Engine.ReadAttempts)
	assert.True(t, cfg.Engine.SkipBinary)
	assert.Equal(t, DefaultTruncatedPolicy, cfg.Engine.TruncatedPolicy)
	assert.Equal(t, DefaultOutputDir, cfg.Output.Dir)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitaudit.yaml")
	content := []byte(`
engine:
  workers: 4
  truncated_policy: exclude
output:
  dir: reports
github:
  token: secret
ruleset: rules.yaml
metrics_addr: ":9464"
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, "exclude", cfg.Engine.TruncatedPolicy)
	assert.Equal(t, "reports", cfg.Output.Dir)
	assert.Equal(t, "secret", cfg.GitHub.Token)
	assert.Equal(t, "rules.yaml", cfg.RulesetPath)
	assert.Equal(t, ":9464", cfg.MetricsAddr)

	// Unset values keep their defaults.
	assert.Equal(t, DefaultReadAttempts, cfg.Engine.ReadAttempts)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GITAUDIT_ENGINE_WORKERS", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Engine.Workers)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"negative workers", "engine:\n  workers: -1\n"},
		{"zero scan size", "engine:\n  max_scan_size: 0\n"},
		{"zero read attempts", "engine:\n  read_attempts: 0\n"},
		{"unknown policy", "engine:\n  truncated_policy: maybe\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "gitaudit.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o600))

			_, err := Load(path)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
