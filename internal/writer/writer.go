// Package writer explodes a parsed bundle into a source tree that the loader
// can read back: normalized policy files under policy/ and record files
// under config/.
package writer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/alevsk/gwbundle/internal/entity"
	"github.com/alevsk/gwbundle/internal/export"
	"github.com/alevsk/gwbundle/internal/loader"
	"github.com/alevsk/gwbundle/internal/normalizer"
	"github.com/beevik/etree"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// DefaultConcurrency bounds the number of files written at once
const DefaultConcurrency = 8

var (
	// ErrPathConflict is returned when two entities map to the same file
	ErrPathConflict = errors.New("entities share a file path")
	// ErrMalformedPolicy is returned when a policy body cannot be parsed
	ErrMalformedPolicy = export.ErrMalformedPolicy
)

// Options configures a Writer
type Options struct {
	Logger      zerolog.Logger
	Concurrency int
}

// DefaultOptions logs to the global logger and writes DefaultConcurrency
// files at a time
func DefaultOptions() *Options {
	return &Options{
		Logger:      log.Logger,
		Concurrency: DefaultConcurrency,
	}
}

// Writer writes source trees to a filesystem
type Writer struct {
	fs          afero.Fs
	log         zerolog.Logger
	concurrency int
	normalizer  *normalizer.Normalizer
}

// New returns a Writer writing to fs
func New(fs afero.Fs, opts *Options) *Writer {
	if opts == nil {
		opts = DefaultOptions()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Writer{
		fs:          fs,
		log:         opts.Logger,
		concurrency: concurrency,
		normalizer:  normalizer.New(opts.Logger),
	}
}

// Result describes a finished write
type Result struct {
	// Files are the written paths relative to the target directory, sorted
	Files []string
	// Warnings are the references left unresolved in policy files
	Warnings []normalizer.Warning
}

type job struct {
	rel    string
	render func() ([]byte, []normalizer.Warning, error)
}

// Write explodes b into dir. Folders are created first, then every file is
// rendered and written concurrently. The first failure cancels the
// remaining writes and is returned naming the file.
func (w *Writer) Write(ctx context.Context, dir string, b *export.Bundle) (*Result, error) {
	if err := w.makeFolders(dir, b); err != nil {
		return nil, err
	}
	jobs, err := w.plan(b)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		warnings []normalizer.Warning
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, ws, err := j.render()
			if err != nil {
				return fmt.Errorf("writing %s: %w", j.rel, err)
			}
			target := filepath.Join(dir, filepath.FromSlash(j.rel))
			if err := w.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("writing %s: %w", j.rel, err)
			}
			if err := afero.WriteFile(w.fs, target, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", j.rel, err)
			}
			w.log.Debug().Str("file", j.rel).Int("bytes", len(data)).Msg("wrote file")
			if len(ws) > 0 {
				mu.Lock()
				warnings = append(warnings, ws...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Warnings: warnings}
	for _, j := range jobs {
		res.Files = append(res.Files, j.rel)
	}
	slices.Sort(res.Files)
	slices.SortFunc(res.Warnings, func(a, b normalizer.Warning) int {
		return strings.Compare(a.String(), b.String())
	})
	w.log.Info().Int("files", len(res.Files)).Int("warnings", len(res.Warnings)).Str("dir", dir).Msg("exploded bundle")
	return res, nil
}

// makeFolders creates a policy directory for every folder, including the
// empty ones
func (w *Writer) makeFolders(dir string, b *export.Bundle) error {
	root := filepath.Join(dir, loader.PolicyDir)
	if err := w.fs.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", root, err)
	}
	for _, f := range b.OfType(entity.TypeFolder) {
		p, err := b.Folders.PathByID(f.ID)
		if err != nil {
			return fmt.Errorf("folder %s: %w", f.Name, err)
		}
		if p == "" {
			continue
		}
		if err := w.fs.MkdirAll(filepath.Join(root, filepath.FromSlash(p)), 0o755); err != nil {
			return fmt.Errorf("creating folder %s: %w", p, err)
		}
	}
	return nil
}

// plan lists the files to write. No two jobs share a path.
func (w *Writer) plan(b *export.Bundle) ([]job, error) {
	var jobs []job
	owners := make(map[string]string)
	claim := func(rel, owner string) error {
		if other, ok := owners[rel]; ok {
			return fmt.Errorf("%w: %s and %s both map to %s", ErrPathConflict, other, owner, rel)
		}
		owners[rel] = owner
		return nil
	}

	for _, t := range []entity.Type{entity.TypePolicy, entity.TypeService} {
		for _, e := range b.OfType(t) {
			p, err := b.EntityPath(e)
			if err != nil {
				return nil, fmt.Errorf("%s %q: %w", e.Type, e.Name, err)
			}
			rel := path.Join(loader.PolicyDir, p)
			if err := claim(rel, fmt.Sprintf("%s %q", e.Type, e.Name)); err != nil {
				return nil, err
			}
			jobs = append(jobs, job{rel: rel, render: func() ([]byte, []normalizer.Warning, error) {
				return w.renderPolicy(e, b)
			}})
		}
	}

	configs, err := configFiles(b)
	if err != nil {
		return nil, err
	}
	for _, c := range configs {
		rel := path.Join(loader.ConfigDir, c.name+".yml")
		if err := claim(rel, c.name); err != nil {
			return nil, err
		}
		records := c.records
		jobs = append(jobs, job{rel: rel, render: func() ([]byte, []normalizer.Warning, error) {
			data, err := yaml.Marshal(records)
			return data, nil, err
		}})
	}
	return jobs, nil
}

// renderPolicy normalizes the body of a policy or service and returns it
// indented
func (w *Writer) renderPolicy(e export.Entity, idx normalizer.Index) ([]byte, []normalizer.Warning, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(e.Body); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedPolicy, err)
	}
	if doc.Root() == nil {
		return nil, nil, fmt.Errorf("%w: no root element", ErrMalformedPolicy)
	}
	warnings, err := w.normalizer.Normalize(doc.Root(), idx)
	if err != nil {
		return nil, nil, err
	}
	doc.Indent(2)
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, nil, err
	}
	return data, warnings, nil
}

type configFile struct {
	name    string
	records any
}

// configFiles converts the records of b to the loader's config layout.
// Files without records are left out.
func configFiles(b *export.Bundle) ([]configFile, error) {
	var files []configFile
	add := func(name string, n int, records any) {
		if n > 0 {
			files = append(files, configFile{name: name, records: records})
		}
	}

	identities := make(map[string]loader.PolicyIdentity)
	for _, e := range b.OfType(entity.TypePolicy) {
		p, err := b.EntityPath(e)
		if err != nil {
			return nil, err
		}
		identities[p] = loader.PolicyIdentity{GUID: e.GUID, ID: e.ID}
	}
	add(loader.PoliciesFile, len(identities), identities)

	services := make(map[string]*bundle.Service)
	for _, e := range b.OfType(entity.TypeService) {
		p, err := b.EntityPath(e)
		if err != nil {
			return nil, err
		}
		services[p] = &bundle.Service{
			URL:         e.URLPattern,
			HTTPMethods: e.Methods,
			Enabled:     disabled(e.Enabled),
			ID:          e.ID,
		}
	}
	add(loader.ServicesFile, len(services), services)

	encasses := make(map[string]*bundle.Encass)
	for _, e := range b.OfType(entity.TypeEncass) {
		enc := &bundle.Encass{
			GUID:      e.GUID,
			Arguments: e.Arguments,
			Results:   e.Results,
			ID:        e.ID,
		}
		if p, ok := b.BackingPolicyPath(e); ok {
			enc.PolicyPath = p
		}
		encasses[e.Name] = enc
	}
	add(loader.EncassFile, len(encasses), encasses)

	keys := make(map[string]*bundle.PrivateKey)
	for _, e := range b.OfType(entity.TypePrivateKey) {
		keys[e.Alias] = &bundle.PrivateKey{
			Keystore:  bundle.KeystoreTypeForID(e.KeystoreID),
			Algorithm: e.Algorithm,
		}
	}
	add(loader.PrivateKeysFile, len(keys), keys)

	certs := make(map[string]*bundle.TrustedCert)
	for _, e := range b.OfType(entity.TypeTrustedCert) {
		tc := &bundle.TrustedCert{ID: e.ID, Properties: make(map[string]bool)}
		if len(e.Certs) > 0 {
			tc.Encoded = e.Certs[0].Encoded
		}
		for k, v := range e.Properties {
			if flag, err := strconv.ParseBool(v); err == nil {
				tc.Properties[k] = flag
			}
		}
		certs[e.Name] = tc
	}
	add(loader.TrustedCertsFile, len(certs), certs)

	ports := make(map[string]*bundle.ListenPort)
	for _, e := range b.OfType(entity.TypeListenPort) {
		ports[e.Name] = &bundle.ListenPort{
			Protocol:        e.Protocol,
			Port:            e.Port,
			EnabledFeatures: e.Features,
			Enabled:         disabled(e.Enabled),
			ID:              e.ID,
		}
	}
	add(loader.ListenPortsFile, len(ports), ports)

	props := make(map[string]string)
	for _, e := range b.OfType(entity.TypeClusterProperty) {
		props[e.Name] = e.Value
	}
	add(loader.StaticPropsFile, len(props), props)

	return files, nil
}

// disabled returns the explicit flag of a disabled entity; enabled is the
// default and is left unset
func disabled(enabled bool) *bool {
	if enabled {
		return nil
	}
	return &enabled
}
