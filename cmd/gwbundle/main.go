package main

import (
	"fmt"
	"os"

	"github.com/alevsk/gwbundle/internal/config"
	"github.com/alevsk/gwbundle/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
)

var cfg = &config.Config{}

var rootCmd = &cobra.Command{
	Use:   "gwbundle",
	Short: "gwbundle - build and explode API gateway configuration bundles",
	Long: `gwbundle turns a source tree of gateway policies and configuration files
into an importable bundle, and explodes exported bundles back into a source tree.`,
	SilenceErrors: true, // We'll handle error printing ourselves
	SilenceUsage:  true, // We'll handle usage printing ourselves
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		// Load configuration from file or environment variable
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}

		// flags override config due to highest precedence
		if debug {
			cfg.Debug = true
		}

		logger.Init(cfg)

		if configPath != "" || os.Getenv(config.ConfigPathEnvVar) != "" {
			logger.Debug().Msgf("Using config file: %s", configPath)
		} else {
			logger.Debug().Msg("Using default configuration")
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: config.yml in current directory)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable verbose logging and additional debug information")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(explodeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(versionCmd)
}

// stringSetting returns the flag value when the flag was set, else the
// configured value, else the flag default
func stringSetting(cmd *cobra.Command, name, configured string) string {
	flag := cmd.Flags().Lookup(name)
	if flag.Changed || configured == "" {
		return flag.Value.String()
	}
	return configured
}

func main() {
	// Custom error handling to show usage before error
	if err := rootCmd.Execute(); err != nil {
		cmd := rootCmd
		if c, err2 := rootCmd.ExecuteC(); err2 == nil {
			cmd = c
		}
		fmt.Println(cmd.UsageString())
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
