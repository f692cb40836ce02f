// Package builder turns a configuration bundle into the ordered list of
// entities that make up a gateway bundle document.
package builder

import (
	"crypto/x509"
	"fmt"
	"slices"
	"strings"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/alevsk/gwbundle/internal/entity"
	"github.com/alevsk/gwbundle/internal/idgen"
	"github.com/alevsk/gwbundle/internal/keystore"
	"github.com/alevsk/gwbundle/internal/normalizer"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// BundleType selects which entities a build produces
type BundleType string

const (
	// Deployment produces the full artifact
	Deployment BundleType = "DEPLOYMENT"
	// Environment produces only the entities supplied by an environment
	Environment BundleType = "ENVIRONMENT"
)

// Error types for the builder package
var (
	ErrUnknownBundleType = fmt.Errorf("unknown bundle type")
	ErrMissingPolicy     = fmt.Errorf("referenced policy not found")
	ErrMissingCert       = fmt.Errorf("missing certificate data")
	ErrInvalidPolicy     = fmt.Errorf("invalid policy xml")
)

// ParseBundleType converts a string into a BundleType
func ParseBundleType(s string) (BundleType, error) {
	t := BundleType(strings.ToUpper(strings.TrimSpace(s)))
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

// Validate returns ErrUnknownBundleType for values other than Deployment and
// Environment
func (t BundleType) Validate() error {
	switch t {
	case Deployment, Environment:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBundleType, string(t))
	}
}

// Builder produces the entities of one type
type Builder interface {
	// Build returns the entities for the bundle in the requested mode
	Build(b *bundle.Bundle, t BundleType) ([]*entity.Entity, error)
	// Order positions the builder in the pipeline; lower runs first
	Order() int
}

// KeystoreHelper reads key material for private key records
type KeystoreHelper interface {
	LoadKeyStore(pk *bundle.PrivateKey) (*keystore.KeyStore, error)
	LoadCertificatesForPrivateKey(pk *bundle.PrivateKey, ks *keystore.KeyStore) ([]*x509.Certificate, error)
}

// Options contains the collaborators shared by builders
type Options struct {
	// Generator hands out random identifiers
	Generator idgen.Generator
	// Keystore reads private key material. Required for environment builds
	// that reference key files.
	Keystore KeystoreHelper
	// Normalizer encodes exploded policies back into bundle form
	Normalizer *normalizer.Normalizer
	// Logger receives build warnings
	Logger zerolog.Logger
}

// DefaultOptions returns options backed by random identifiers and the global
// logger
func DefaultOptions() *Options {
	return &Options{
		Generator:  idgen.New(),
		Normalizer: normalizer.Default(),
		Logger:     log.Logger,
	}
}

func (o *Options) withDefaults() *Options {
	if o == nil {
		return DefaultOptions()
	}
	out := *o
	if out.Generator == nil {
		out.Generator = idgen.New()
	}
	if out.Normalizer == nil {
		out.Normalizer = normalizer.New(out.Logger)
	}
	return &out
}

// Registry maps every entity type to its builder
type Registry map[entity.Type]Builder

// NewRegistry returns the registry of every builder
func NewRegistry(opts *Options) Registry {
	opts = opts.withDefaults()
	return Registry{
		entity.TypeFolder:          &FolderBuilder{opts: opts},
		entity.TypeListenPort:      &ListenPortBuilder{opts: opts},
		entity.TypeTrustedCert:     &TrustedCertBuilder{opts: opts},
		entity.TypeClusterProperty: &ClusterPropertyBuilder{opts: opts},
		entity.TypePrivateKey:      &PrivateKeyBuilder{opts: opts},
		entity.TypePolicy:          &PolicyBuilder{opts: opts},
		entity.TypeEncass:          &EncassBuilder{opts: opts},
		entity.TypeService:         &ServiceBuilder{opts: opts},
	}
}

// Pipeline runs builders in ascending order
type Pipeline struct {
	registry Registry
	opts     *Options
}

// NewPipeline returns a pipeline over reg. A nil registry uses NewRegistry.
func NewPipeline(reg Registry, opts *Options) *Pipeline {
	opts = opts.withDefaults()
	if reg == nil {
		reg = NewRegistry(opts)
	}
	return &Pipeline{registry: reg, opts: opts}
}

type orderedBuilder struct {
	t entity.Type
	b Builder
}

// Ordered returns the entity types in the order their builders run
func (p *Pipeline) Ordered() []entity.Type {
	builders := p.ordered()
	out := make([]entity.Type, len(builders))
	for i, ob := range builders {
		out[i] = ob.t
	}
	return out
}

func (p *Pipeline) ordered() []orderedBuilder {
	builders := make([]orderedBuilder, 0, len(p.registry))
	for t, b := range p.registry {
		builders = append(builders, orderedBuilder{t: t, b: b})
	}
	slices.SortFunc(builders, func(a, b orderedBuilder) int {
		if a.b.Order() != b.b.Order() {
			return a.b.Order() - b.b.Order()
		}
		return strings.Compare(string(a.t), string(b.t))
	})
	return builders
}

// Build assigns missing identities, runs every builder and concatenates
// their output. Any builder error aborts the build.
func (p *Pipeline) Build(b *bundle.Bundle, t BundleType) ([]*entity.Entity, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := p.prepare(b); err != nil {
		return nil, err
	}

	var out []*entity.Entity
	for _, ob := range p.ordered() {
		entities, err := ob.b.Build(b, t)
		if err != nil {
			return nil, fmt.Errorf("building %s entities: %w", ob.t, err)
		}
		p.opts.Logger.Debug().Str("type", string(ob.t)).Int("count", len(entities)).Msg("built entities")
		out = append(out, entities...)
	}
	return out, nil
}

// BuildDocument runs Build and assembles the result
func (p *Pipeline) BuildDocument(b *bundle.Bundle, t BundleType) (*entity.Document, error) {
	entities, err := p.Build(b, t)
	if err != nil {
		return nil, err
	}
	doc := entity.NewDocument()
	if err := doc.Assemble(entities); err != nil {
		return nil, err
	}
	return doc, nil
}

// prepare gives policies and encapsulated assertions their GUIDs before any
// builder runs, since policy bodies reference both
func (p *Pipeline) prepare(b *bundle.Bundle) error {
	gen := p.opts.Generator
	for _, key := range sortedKeys(b.Policies) {
		policy := b.Policies[key]
		if policy.GUID == "" {
			policy.GUID = gen.GUID()
		}
		if policy.ID == "" {
			policy.ID = gen.Generate()
		}
	}
	for _, key := range sortedKeys(b.Encasses) {
		e := b.Encasses[key]
		if e.GUID == "" {
			e.GUID = gen.GUID()
		}
		if e.ID == "" {
			e.ID = gen.Generate()
		}
	}
	if b.FolderTree == nil {
		if err := b.BuildFolderTree(gen); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// assignID sets *id from the generator when it is empty and returns it
func assignID(id *string, gen idgen.Generator) string {
	if *id == "" {
		*id = gen.Generate()
	}
	return *id
}
