package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ConfigPathEnvVar = "GWBUNDLE_CONFIG_PATH" // Environment variable for config path
	envPrefix        = "GWBUNDLE"
)

// Config holds all configuration for the application
type Config struct {
	// Debug enables verbose logging and additional debug information
	Debug bool `mapstructure:"debug"`
	// Server configuration
	Server struct {
		Host     string        `mapstructure:"host"`
		Port     int           `mapstructure:"port"`
		Timeout  time.Duration `mapstructure:"timeout"`
		LogLevel string        `mapstructure:"log_level"`
		// SourceDir is the source tree served by the bundle endpoint
		SourceDir string `mapstructure:"source_dir"`
	} `mapstructure:"server"`

	// Build configuration
	Build struct {
		BundleType string `mapstructure:"bundle_type"`
		EnvFile    string `mapstructure:"env_file"`
		Output     string `mapstructure:"output"`
	} `mapstructure:"build"`

	// Export configuration
	Export struct {
		FolderPath  string `mapstructure:"folder_path"`
		FilterFile  string `mapstructure:"filter_file"`
		Concurrency int    `mapstructure:"concurrency"`
	} `mapstructure:"export"`
}

// Load initializes and returns the configuration from all sources:
// 1. Command-line flags (highest priority)
// 2. Environment variables (prefixed with GWBUNDLE_)
// 3. Configuration file (lowest priority)
func Load(configPath string) (*Config, error) {
	// Check for environment variable config path if not explicitly provided
	if configPath == "" {
		if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
			if _, err := os.Stat(envPath); os.IsNotExist(err) {
				return nil, fmt.Errorf("config file specified in %s not found: %s", ConfigPathEnvVar, envPath)
			}
			configPath = envPath
		}
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
	}
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config.yml in the current directory
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	// Replace dots with underscores in env vars
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		} else if configPath != "" {
			// Only error if config file was explicitly specified
			return nil, fmt.Errorf("specified config file not found: %s", configPath)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if config.Export.Concurrency < 1 {
		return nil, fmt.Errorf("export.concurrency must be at least 1, got %d", config.Export.Concurrency)
	}

	return &config, nil
}

// setDefaults sets default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout", "30s")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.source_dir", ".")

	// Build defaults
	v.SetDefault("build.bundle_type", "deployment")
	v.SetDefault("build.env_file", "")
	v.SetDefault("build.output", "")

	// Export defaults
	v.SetDefault("export.folder_path", "")
	v.SetDefault("export.filter_file", "")
	v.SetDefault("export.concurrency", 8)
}
