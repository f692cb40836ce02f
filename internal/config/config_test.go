package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestConfigPrecedence(t *testing.T) {
	configPath := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9090
  timeout: "1m"
  log_level: "debug"
  source_dir: "/srv/gateway"
build:
  bundle_type: "environment"
  env_file: "env.yml"
export:
  folder_path: "/api"
  concurrency: 2
`)

	// Environment variables override the config file
	t.Setenv("GWBUNDLE_SERVER_PORT", "9091")
	t.Setenv("GWBUNDLE_EXPORT_CONCURRENCY", "16")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9091, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Server.Timeout)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "/srv/gateway", cfg.Server.SourceDir)
	assert.Equal(t, "environment", cfg.Build.BundleType)
	assert.Equal(t, "env.yml", cfg.Build.EnvFile)
	assert.Equal(t, "/api", cfg.Export.FolderPath)
	assert.Equal(t, 16, cfg.Export.Concurrency)
}

func TestConfigPathEnvVar(t *testing.T) {
	configPath := writeConfig(t, `
debug: true
server:
  port: 7070
`)
	t.Setenv(ConfigPathEnvVar, configPath)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 7070, cfg.Server.Port)

	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yml"))
	_, err = Load("")
	assert.ErrorContains(t, err, ConfigPathEnvVar)
}

func TestDefaultValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.False(t, cfg.Debug)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, ".", cfg.Server.SourceDir)
	assert.Equal(t, "deployment", cfg.Build.BundleType)
	assert.Empty(t, cfg.Export.FolderPath)
	assert.Equal(t, 8, cfg.Export.Concurrency)
}

func TestConfigFileValidation(t *testing.T) {
	_, err := Load("nonexistent.yml")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "invalid/config.yml"))
	assert.Error(t, err)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{
			name:    "invalid port",
			content: "server:\n  host: localhost\n",
			env:     map[string]string{"GWBUNDLE_SERVER_PORT": "invalid"},
		},
		{
			name:    "invalid duration",
			content: "server:\n  timeout: \"invalid\"\n",
		},
		{
			name:    "zero concurrency",
			content: "export:\n  concurrency: 0\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.content)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(configPath)
			assert.Error(t, err)
		})
	}
}
