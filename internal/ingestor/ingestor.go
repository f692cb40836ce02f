// Package ingestor runs the build and explode operations end to end: it reads
// a source, drives the builder or the filter and writer, and summarizes the
// outcome as a types.Result.
package ingestor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/alevsk/gwbundle/internal/builder"
	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/alevsk/gwbundle/internal/export"
	"github.com/alevsk/gwbundle/internal/filter"
	"github.com/alevsk/gwbundle/internal/formatter"
	"github.com/alevsk/gwbundle/internal/keystore"
	"github.com/alevsk/gwbundle/internal/loader"
	"github.com/alevsk/gwbundle/internal/resolver"
	"github.com/alevsk/gwbundle/internal/types"
	"github.com/alevsk/gwbundle/internal/writer"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Options holds configuration for the ingestor
type Options struct {
	// BundleType is the kind of bundle a build produces (deployment, environment)
	BundleType string
	// EnvFile holds the environment values of an environment build
	EnvFile string
	// Output is the file a build writes the bundle to. Empty keeps the
	// document in the result only.
	Output string

	// FolderPath scopes an explode to a folder ("/" for everything)
	FolderPath string
	// FilterFile names the entities an explode must include
	FilterFile string
	// Concurrency bounds the number of files written at once
	Concurrency int

	// OutputFormat is the summary format (table, json, yaml, markdown).
	// Empty skips formatting.
	OutputFormat string
	// IncludeMetadata adds version and source information to the summary
	IncludeMetadata bool
	// Version is reported in results
	Version string

	Fs         afero.Fs
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// DefaultOptions returns the default ingestor options
func DefaultOptions() *Options {
	return &Options{
		BundleType:      string(builder.Deployment),
		Concurrency:     writer.DefaultConcurrency,
		OutputFormat:    string(formatter.TypeTable),
		IncludeMetadata: true,
		Version:         "dev",
		Fs:              afero.NewOsFs(),
		Logger:          log.Logger,
	}
}

// Ingestor runs build and explode operations
type Ingestor struct {
	opts *Options
}

// New creates a new Ingestor with the given options
func New(opts *Options) *Ingestor {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	return &Ingestor{
		opts: opts,
	}
}

// Error types for ingestion operations
var (
	ErrInvalidSource = fmt.Errorf("invalid source")
	ErrInvalidTarget = fmt.Errorf("invalid target")
	ErrNoEnvFile     = fmt.Errorf("environment builds need an environment file")
)

// Build assembles the bundle of the source tree rooted at dir
func (i *Ingestor) Build(ctx context.Context, dir string) (*types.Result, error) {
	if dir == "" {
		return nil, ErrInvalidSource
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bt, err := builder.ParseBundleType(i.opts.BundleType)
	if err != nil {
		return nil, err
	}

	src, err := i.load(dir, bt)
	if err != nil {
		return nil, err
	}

	pipeline := builder.NewPipeline(nil, &builder.Options{
		Keystore: keystore.NewHelper(i.opts.Fs, dir),
		Logger:   i.opts.Logger,
	})
	doc, err := pipeline.BuildDocument(src, bt)
	if err != nil {
		return nil, fmt.Errorf("building %s bundle: %w", strings.ToLower(string(bt)), err)
	}
	out, err := doc.String()
	if err != nil {
		return nil, fmt.Errorf("serializing bundle: %w", err)
	}

	if i.opts.Output != "" {
		if err := i.opts.Fs.MkdirAll(filepath.Dir(i.opts.Output), 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		}
		if err := afero.WriteFile(i.opts.Fs, i.opts.Output, []byte(out), 0o644); err != nil {
			return nil, fmt.Errorf("writing bundle: %w", err)
		}
	}

	result := i.newResult(types.OperationBuild, dir)
	result.Target = i.opts.Output
	result.BundleType = strings.ToLower(string(bt))
	result.Entities = builtEntities(doc.Entities())
	result.Document = out
	result.CountEntities()

	i.opts.Logger.Debug().
		Str("source", dir).
		Str("type", result.BundleType).
		Int("entities", result.Total()).
		Msg("built bundle")
	return i.finish(result)
}

func (i *Ingestor) load(dir string, bt builder.BundleType) (*bundle.Bundle, error) {
	l := loader.New(i.opts.Fs, &loader.Options{Logger: i.opts.Logger})
	if bt == builder.Deployment {
		return l.Load(dir)
	}
	if i.opts.EnvFile == "" {
		return nil, ErrNoEnvFile
	}
	values, err := loader.ReadEnvironmentFile(i.opts.Fs, i.opts.EnvFile)
	if err != nil {
		return nil, err
	}
	return l.LoadEnvironment(dir, values)
}

// Explode writes the entities of the bundle at source selected by the
// folder and filter options as a source tree under target
func (i *Ingestor) Explode(ctx context.Context, source, target string) (*types.Result, error) {
	if source == "" {
		return nil, ErrInvalidSource
	}
	if target == "" {
		return nil, ErrInvalidTarget
	}

	r, err := resolver.ResolverFactory(source, &resolver.Options{
		Fs:         i.opts.Fs,
		HTTPClient: i.opts.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	reader, metadata, err := r.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	selected, err := i.selectEntities(reader)
	if err != nil {
		return nil, err
	}

	w := writer.New(i.opts.Fs, &writer.Options{
		Logger:      i.opts.Logger,
		Concurrency: i.opts.Concurrency,
	})
	written, err := w.Write(ctx, target, selected)
	if err != nil {
		return nil, err
	}

	result := i.newResult(types.OperationExplode, metadata.Path)
	result.Target = target
	result.Entities, err = exportedEntities(selected)
	if err != nil {
		return nil, err
	}
	result.CountEntities()
	result.Files = written.Files
	for _, w := range written.Warnings {
		result.Warnings = append(result.Warnings, w.String())
	}
	result.Extra = map[string]interface{}{
		"sourceType": metadata.Type.String(),
		"folder":     i.folderPath(),
	}

	i.opts.Logger.Debug().
		Str("source", metadata.Path).
		Str("target", target).
		Int("files", len(result.Files)).
		Msg("exploded bundle")
	return i.finish(result)
}

// Summarize lists the entities an explode of the bundle read from r would
// write, without writing anything
func (i *Ingestor) Summarize(ctx context.Context, r io.Reader, source string) (*types.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	selected, err := i.selectEntities(r)
	if err != nil {
		return nil, err
	}

	result := i.newResult(types.OperationSummary, source)
	result.Entities, err = exportedEntities(selected)
	if err != nil {
		return nil, err
	}
	result.CountEntities()
	result.Extra = map[string]interface{}{
		"folder": i.folderPath(),
	}
	return i.finish(result)
}

func (i *Ingestor) selectEntities(r io.Reader) (*export.Bundle, error) {
	full, err := export.Parse(r)
	if err != nil {
		return nil, err
	}

	var cfg *filter.Config
	if i.opts.FilterFile != "" {
		cfg, err = filter.LoadConfigFile(i.opts.Fs, i.opts.FilterFile)
		if err != nil {
			return nil, err
		}
	}

	pipeline, err := filter.NewPipeline(nil, &filter.Options{Logger: i.opts.Logger})
	if err != nil {
		return nil, err
	}
	return pipeline.Run(i.folderPath(), cfg, full)
}

// folderPath returns the folder scope of an explode. Without a filter file
// an empty scope selects the whole bundle.
func (i *Ingestor) folderPath() string {
	if i.opts.FolderPath == "" && i.opts.FilterFile == "" {
		return "/"
	}
	return i.opts.FolderPath
}

func (i *Ingestor) newResult(op types.Operation, source string) *types.Result {
	return &types.Result{
		Version:   i.opts.Version,
		Operation: op,
		Source:    source,
		Timestamp: time.Now().Unix(),
	}
}

// finish marks the result successful and formats it
func (i *Ingestor) finish(result *types.Result) (*types.Result, error) {
	result.Success = true
	if i.opts.OutputFormat == "" {
		return result, nil
	}

	t, err := formatter.ParseType(i.opts.OutputFormat)
	if err != nil {
		return nil, err
	}
	f, err := formatter.NewFormatter(t, &formatter.Options{
		IncludeMetadata: i.opts.IncludeMetadata,
		IncludeEntities: true,
	})
	if err != nil {
		return nil, err
	}
	result.OutputFormatted, err = f.Format(*result)
	if err != nil {
		return nil, fmt.Errorf("formatting result: %w", err)
	}
	return result, nil
}
