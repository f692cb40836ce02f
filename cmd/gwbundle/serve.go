package main

import (
	"fmt"
	"time"

	"github.com/alevsk/gwbundle/internal/api"
	"github.com/alevsk/gwbundle/internal/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	// Server flags
	serverHost      string
	serverPort      int
	serverTimeout   string
	serverLogLevel  string
	serverSourceDir string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gwbundle API server",
	PreRun: func(cmd *cobra.Command, args []string) {
		// Override config values with flags if provided
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serverHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}
		if cmd.Flags().Changed("timeout") {
			if duration, err := time.ParseDuration(serverTimeout); err == nil {
				cfg.Server.Timeout = duration
			}
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Server.LogLevel = serverLogLevel
			logger.Init(cfg)
		}
		if cmd.Flags().Changed("source-dir") {
			cfg.Server.SourceDir = serverSourceDir
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		s := api.NewServer(serverOptions())
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info().Str("log_level", cfg.Server.LogLevel).Dur("timeout", cfg.Server.Timeout).Msgf("Starting gwbundle API server on %s", addr)
		return s.Start(addr)
	},
}

func serverOptions() *api.Options {
	return &api.Options{
		SourceDir: cfg.Server.SourceDir,
		EnvFile:   cfg.Build.EnvFile,
		Timeout:   cfg.Server.Timeout,
		Version:   version,
		Fs:        afero.NewOsFs(),
		Logger:    logger.Logger(),
	}
}

func init() {
	serveCmd.Flags().StringVarP(&serverHost, "host", "H", "", "Server host (default: 0.0.0.0)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port (default: 8080)")
	serveCmd.Flags().StringVarP(&serverTimeout, "timeout", "t", "", "Server timeout (e.g., 30s, 1m)")
	serveCmd.Flags().StringVarP(&serverLogLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVarP(&serverSourceDir, "source-dir", "s", "", "Source tree served by the bundle endpoint (default: .)")
}
