package filter

import (
	"fmt"
	"slices"

	"github.com/alevsk/gwbundle/internal/entity"
	"github.com/alevsk/gwbundle/internal/export"
	"github.com/alevsk/gwbundle/internal/graph"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Registry maps each entity type to its filter
type Registry map[entity.Type]Filter

// NewRegistry returns the filters of every exported entity type
func NewRegistry() Registry {
	filters := []Filter{
		ServiceFilter{},
		PolicyFilter{},
		EncassFilter{},
		FolderFilter{},
		NewClusterPropertyFilter(),
		NewListenPortFilter(),
		NewTrustedCertFilter(),
		NewPrivateKeyFilter(),
	}
	reg := make(Registry, len(filters))
	for _, f := range filters {
		reg[f.Type()] = f
	}
	return reg
}

// Options configures a Pipeline
type Options struct {
	Logger zerolog.Logger
}

// DefaultOptions logs to the global logger
func DefaultOptions() *Options {
	return &Options{Logger: log.Logger}
}

// Pipeline runs filters so that every filter runs after the filters it
// depends on
type Pipeline struct {
	filters []Filter
	log     zerolog.Logger
}

// NewPipeline orders the registry. A dependency cycle between filters is
// returned as a *graph.CycleError[entity.Type].
func NewPipeline(reg Registry, opts *Options) (*Pipeline, error) {
	if reg == nil {
		reg = NewRegistry()
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	types := make([]entity.Type, 0, len(reg))
	for t := range reg {
		types = append(types, t)
	}
	slices.SortFunc(types, func(a, b entity.Type) int {
		return typeRank(a) - typeRank(b)
	})

	dag := graph.NewDirectedAcyclicGraph[entity.Type]()
	for _, t := range types {
		if err := dag.AddVertex(t, typeRank(t)); err != nil {
			return nil, err
		}
	}
	for _, t := range types {
		if err := dag.AddDependencies(t, reg[t].DependencyFilters()); err != nil {
			return nil, fmt.Errorf("ordering %s filter: %w", t, err)
		}
	}
	order, err := dag.TopologicalSort()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{log: opts.Logger}
	for _, t := range order {
		p.filters = append(p.filters, reg[t])
	}
	return p, nil
}

// Order returns the filter types in run order
func (p *Pipeline) Order() []entity.Type {
	out := make([]entity.Type, len(p.filters))
	for i, f := range p.filters {
		out[i] = f.Type()
	}
	return out
}

// Run filters full and returns the selected entities. The first filter error
// aborts the run.
func (p *Pipeline) Run(folderPath string, cfg *Config, full *export.Bundle) (*export.Bundle, error) {
	acc, err := p.Accumulate(folderPath, cfg, full)
	if err != nil {
		return nil, err
	}
	return acc.Bundle(full), nil
}

// Accumulate runs every filter in order, threading the selection from one
// filter to the next
func (p *Pipeline) Accumulate(folderPath string, cfg *Config, full *export.Bundle) (Accumulator, error) {
	var acc Accumulator
	for _, f := range p.filters {
		selected, err := f.Filter(folderPath, cfg, full, acc)
		if err != nil {
			return Accumulator{}, fmt.Errorf("filtering %s: %w", f.EntityName(), err)
		}
		p.log.Debug().Str("filter", f.EntityName()).Int("selected", len(selected)).Msg("filtered entities")
		acc = acc.With(selected...)
	}
	return acc, nil
}

func typeRank(t entity.Type) int {
	if i := slices.Index(entity.Types(), t); i >= 0 {
		return i
	}
	return len(entity.Types())
}
