// Package filter selects the part of a full bundle that should be exploded.
//
// Each entity type has one Filter. A filter starts from the entity names the
// configuration requires for its type and keeps every candidate reachable
// from those roots, or from what the filters it depends on already selected,
// through the bundle's dependency graph. Filters declare which other filters
// must run before them; the Pipeline orders them accordingly and threads the
// selection through an Accumulator.
package filter

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/alevsk/gwbundle/internal/entity"
	"github.com/alevsk/gwbundle/internal/export"
	"github.com/alevsk/gwbundle/internal/graph"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Filter selects the entities of one type
type Filter interface {
	// Type is the entity type the filter selects
	Type() entity.Type
	// DependencyFilters lists the filters whose selection this filter reads
	DependencyFilters() []entity.Type
	// EntityName is the key of the filter in Config
	EntityName() string
	// Filter returns the selected entities of Type
	Filter(folderPath string, cfg *Config, full *export.Bundle, acc Accumulator) ([]export.Entity, error)
}

// NotFoundError is returned when a required entity is not in the bundle
type NotFoundError struct {
	Category string
	Name     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("required %s %q not found in bundle", e.Category, e.Name)
}

// Config holds the names that must be exported, keyed by filter entity name
// ("services", "policies", ...)
type Config struct {
	RequiredEntityNames map[string][]string
}

// Required returns the names required for the filter entity name
func (c *Config) Required(entityName string) []string {
	if c == nil {
		return nil
	}
	return c.RequiredEntityNames[entityName]
}

// LoadConfig reads a YAML (or JSON) document mapping filter entity names to
// lists of required names:
//
//	services:
//	  - orders
//	clusterProperties:
//	  - cluster.hostname
func LoadConfig(r io.Reader) (*Config, error) {
	names := make(map[string][]string)
	if err := yaml.NewDecoder(r).Decode(&names); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding filter configuration: %w", err)
	}
	known := make(map[string]struct{})
	for _, f := range NewRegistry() {
		known[f.EntityName()] = struct{}{}
	}
	for name := range names {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("decoding filter configuration: unknown entity name %q", name)
		}
	}
	return &Config{RequiredEntityNames: names}, nil
}

// LoadConfigFile reads a filter configuration from fs
func LoadConfigFile(fs afero.Fs, path string) (*Config, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening filter configuration: %w", err)
	}
	defer f.Close()
	return LoadConfig(f)
}

// Accumulator is the selection made so far. It is a value: With returns a
// new accumulator and never changes the receiver.
type Accumulator struct {
	keys  map[graph.Key]struct{}
	order []graph.Key
}

// With returns an accumulator holding the receiver's entities plus selected
func (a Accumulator) With(selected ...export.Entity) Accumulator {
	out := Accumulator{
		keys:  make(map[graph.Key]struct{}, len(a.keys)+len(selected)),
		order: slices.Clone(a.order),
	}
	for k := range a.keys {
		out.keys[k] = struct{}{}
	}
	for _, e := range selected {
		k := e.Key()
		if _, ok := out.keys[k]; ok {
			continue
		}
		out.keys[k] = struct{}{}
		out.order = append(out.order, k)
	}
	return out
}

// Contains reports whether k has been selected
func (a Accumulator) Contains(k graph.Key) bool {
	_, ok := a.keys[k]
	return ok
}

// Len returns the number of selected entities
func (a Accumulator) Len() int {
	return len(a.order)
}

// Keys returns the selected keys in selection order
func (a Accumulator) Keys() []graph.Key {
	return slices.Clone(a.order)
}

// OfType returns the selected keys of type t in selection order
func (a Accumulator) OfType(t entity.Type) []graph.Key {
	var out []graph.Key
	for _, k := range a.order {
		if k.Type == t {
			out = append(out, k)
		}
	}
	return out
}

// Bundle returns the selected entities of full as a bundle
func (a Accumulator) Bundle(full *export.Bundle) *export.Bundle {
	return full.Subset(a.keys)
}

// filterDependencies returns the candidates of type t that are selected by
// the predicate or reachable from a selected candidate or from an
// accumulated entity of type t or of one of deps. Other accumulated types,
// folders in particular, never seed the walk.
func filterDependencies(t entity.Type, deps []entity.Type, full *export.Bundle, acc Accumulator, selected func(export.Entity) bool) []export.Entity {
	candidates := full.OfType(t)
	var seeds []graph.Key
	for _, k := range acc.Keys() {
		if k.Type == t || slices.Contains(deps, k.Type) {
			seeds = append(seeds, k)
		}
	}
	for _, c := range candidates {
		if selected(c) {
			seeds = append(seeds, c.Key())
		}
	}
	reachable := full.Graph.Reachable(seeds...)

	var out []export.Entity
	for _, c := range candidates {
		if _, ok := reachable[c.Key()]; ok {
			out = append(out, c)
		}
	}
	return out
}

// validateEntities fails with a *NotFoundError for the first required name
// missing from found
func validateEntities(found []export.Entity, required []string, category string) error {
	names := make(map[string]struct{}, len(found))
	for _, e := range found {
		names[e.Name] = struct{}{}
	}
	for _, name := range required {
		if _, ok := names[name]; !ok {
			return &NotFoundError{Category: category, Name: name}
		}
	}
	return nil
}

func nameIn(names []string) func(export.Entity) bool {
	return func(e export.Entity) bool {
		return slices.Contains(names, e.Name)
	}
}

// inFolder reports whether the entity is stored at or below folderPath. An
// empty folderPath selects nothing; "/" selects everything.
func inFolder(full *export.Bundle, folderPath string) func(export.Entity) bool {
	if folderPath == "" {
		return func(export.Entity) bool { return false }
	}
	scope := strings.Trim(folderPath, "/")
	return func(e export.Entity) bool {
		if full.Folders == nil {
			return false
		}
		dir, err := full.Folders.PathByID(e.FolderID)
		if err != nil {
			return false
		}
		return scope == "" || dir == scope || strings.HasPrefix(dir, scope+"/")
	}
}

func or(preds ...func(export.Entity) bool) func(export.Entity) bool {
	return func(e export.Entity) bool {
		for _, p := range preds {
			if p(e) {
				return true
			}
		}
		return false
	}
}
