package main

import (
	"fmt"

	"github.com/alevsk/gwbundle/internal/ingestor"
	"github.com/alevsk/gwbundle/internal/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var buildFlags struct {
	bundleType      string
	envFile         string
	output          string
	format          string
	includeMetadata bool
}

var buildCmd = &cobra.Command{
	Use:   "build [source-dir]",
	Short: "Build a gateway bundle from a source tree",
	Long: `Build a gateway bundle from a source tree holding policy/ and config/
directories. The bundle is printed, or written to --output followed by a
summary of its entities.

Examples:
  # Print the deployment bundle of the current directory
  gwbundle build .

  # Write the environment bundle of production values
  gwbundle build ./gateway -t environment -e env/production.yml -O build/env.xml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := &ingestor.Options{
			BundleType:      stringSetting(cmd, "type", cfg.Build.BundleType),
			EnvFile:         stringSetting(cmd, "env-file", cfg.Build.EnvFile),
			Output:          stringSetting(cmd, "output-file", cfg.Build.Output),
			IncludeMetadata: buildFlags.includeMetadata,
			Version:         version,
			Fs:              afero.NewOsFs(),
			Logger:          logger.Logger(),
		}
		if opts.Output != "" {
			opts.OutputFormat = buildFlags.format
		}

		result, err := ingestor.New(opts).Build(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("build failed: %w", err)
		}

		if opts.Output == "" {
			fmt.Fprintln(cmd.OutOrStdout(), result.Document)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), result.OutputFormatted)
		return nil
	},
}

func init() {
	flags := buildCmd.Flags()
	flags.StringVarP(&buildFlags.bundleType, "type", "t", "deployment", "bundle type (deployment, environment)")
	flags.StringVarP(&buildFlags.envFile, "env-file", "e", "", "file of environment values for environment bundles")
	flags.StringVarP(&buildFlags.output, "output-file", "O", "", "write the bundle to this file instead of stdout")
	flags.StringVarP(&buildFlags.format, "output", "o", "table", "summary format when writing to a file (table, json, yaml, markdown)")
	flags.BoolVar(&buildFlags.includeMetadata, "include-metadata", true, "include metadata in the summary")
}
