package main

import (
	"fmt"

	"github.com/alevsk/gwbundle/internal/ingestor"
	"github.com/alevsk/gwbundle/internal/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var explodeFlags struct {
	target          string
	folder          string
	filterFile      string
	concurrency     int
	format          string
	includeMetadata bool
}

var explodeCmd = &cobra.Command{
	Use:   "explode [bundle]",
	Short: "Explode a gateway bundle into a source tree",
	Long: `Explode a full gateway bundle into a source tree that build can read back.
The bundle is a local .xml file or an http(s) URL. Without --folder or
--filter every entity is written.

Examples:
  # Explode everything into ./gateway
  gwbundle explode export.xml -d ./gateway

  # Explode the /api folder and what it depends on
  gwbundle explode https://gw.example.com/restman/1.0/bundle.xml --folder /api

  # Explode only named entities
  gwbundle explode export.xml --filter filter.yml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		concurrency := explodeFlags.concurrency
		if !cmd.Flags().Changed("concurrency") && cfg.Export.Concurrency > 0 {
			concurrency = cfg.Export.Concurrency
		}

		opts := &ingestor.Options{
			FolderPath:      stringSetting(cmd, "folder", cfg.Export.FolderPath),
			FilterFile:      stringSetting(cmd, "filter", cfg.Export.FilterFile),
			Concurrency:     concurrency,
			OutputFormat:    explodeFlags.format,
			IncludeMetadata: explodeFlags.includeMetadata,
			Version:         version,
			Fs:              afero.NewOsFs(),
			Logger:          logger.Logger(),
		}

		result, err := ingestor.New(opts).Explode(cmd.Context(), args[0], explodeFlags.target)
		if err != nil {
			return fmt.Errorf("explode failed: %w", err)
		}
		if !result.Success {
			return fmt.Errorf("explode failed: %v", result.Error)
		}

		logger.Debug().Int("files", len(result.Files)).Msg("explode finished")
		fmt.Fprint(cmd.OutOrStdout(), result.OutputFormatted)
		return nil
	},
}

func init() {
	flags := explodeCmd.Flags()
	flags.StringVarP(&explodeFlags.target, "dir", "d", ".", "directory the source tree is written to")
	flags.StringVarP(&explodeFlags.folder, "folder", "f", "", "folder path to explode, e.g. /api (default: everything)")
	flags.StringVar(&explodeFlags.filterFile, "filter", "", "YAML file naming the entities that must be exploded")
	flags.IntVar(&explodeFlags.concurrency, "concurrency", 8, "maximum number of files written at once")
	flags.StringVarP(&explodeFlags.format, "output", "o", "table", "output format (table, json, yaml, markdown)")
	flags.BoolVar(&explodeFlags.includeMetadata, "include-metadata", true, "include metadata in the output")
}
