package filter

import (
	"slices"

	"github.com/alevsk/gwbundle/internal/entity"
	"github.com/alevsk/gwbundle/internal/export"
	"github.com/alevsk/gwbundle/internal/graph"
)

// Filter entity names, the keys of a filter configuration
const (
	ServicesName            = "services"
	PoliciesName            = "policies"
	EncassesName            = "encasses"
	FoldersName             = "folders"
	ClusterPropertiesName   = "clusterProperties"
	ListenPortsName         = "listenPorts"
	TrustedCertificatesName = "trustedCertificates"
	PrivateKeysName         = "privateKeys"
)

// ServiceFilter selects the required services and the services stored in
// the exported folder
type ServiceFilter struct{}

func (ServiceFilter) Type() entity.Type                { return entity.TypeService }
func (ServiceFilter) DependencyFilters() []entity.Type { return nil }
func (ServiceFilter) EntityName() string               { return ServicesName }

func (f ServiceFilter) Filter(folderPath string, cfg *Config, full *export.Bundle, acc Accumulator) ([]export.Entity, error) {
	required := cfg.Required(ServicesName)
	out := filterDependencies(entity.TypeService, f.DependencyFilters(), full, acc, or(nameIn(required), inFolder(full, folderPath)))
	return out, validateEntities(out, required, "service")
}

// PolicyFilter selects the required policies, the policies stored in the
// exported folder, the policies backing required encapsulated assertions and
// every policy the selected services depend on
type PolicyFilter struct{}

func (PolicyFilter) Type() entity.Type                { return entity.TypePolicy }
func (PolicyFilter) DependencyFilters() []entity.Type { return []entity.Type{entity.TypeService} }
func (PolicyFilter) EntityName() string               { return PoliciesName }

func (f PolicyFilter) Filter(folderPath string, cfg *Config, full *export.Bundle, acc Accumulator) ([]export.Entity, error) {
	required := cfg.Required(PoliciesName)

	var backing []string
	for _, e := range full.OfType(entity.TypeEncass) {
		if slices.Contains(cfg.Required(EncassesName), e.Name) {
			backing = append(backing, e.PolicyID)
		}
	}
	backs := func(e export.Entity) bool { return slices.Contains(backing, e.ID) }

	out := filterDependencies(entity.TypePolicy, f.DependencyFilters(), full, acc, or(nameIn(required), inFolder(full, folderPath), backs))
	return out, validateEntities(out, required, "policy")
}

// EncassFilter selects the required encapsulated assertions, those used by
// selected policies and services and those backed by a selected policy
type EncassFilter struct{}

func (EncassFilter) Type() entity.Type { return entity.TypeEncass }
func (EncassFilter) DependencyFilters() []entity.Type {
	return []entity.Type{entity.TypePolicy, entity.TypeService}
}
func (EncassFilter) EntityName() string { return EncassesName }

func (f EncassFilter) Filter(_ string, cfg *Config, full *export.Bundle, acc Accumulator) ([]export.Entity, error) {
	required := cfg.Required(EncassesName)
	backedBySelected := func(e export.Entity) bool {
		return e.PolicyID != "" && acc.Contains(graph.Key{ID: e.PolicyID, Type: entity.TypePolicy})
	}
	out := filterDependencies(entity.TypeEncass, f.DependencyFilters(), full, acc, or(nameIn(required), backedBySelected))
	return out, validateEntities(out, required, "encapsulated assertion")
}

// FolderFilter selects the folders holding selected policies and services,
// together with all their ancestors, and the required folders
type FolderFilter struct{}

func (FolderFilter) Type() entity.Type { return entity.TypeFolder }
func (FolderFilter) DependencyFilters() []entity.Type {
	return []entity.Type{entity.TypePolicy, entity.TypeService}
}
func (FolderFilter) EntityName() string { return FoldersName }

func (f FolderFilter) Filter(_ string, cfg *Config, full *export.Bundle, acc Accumulator) ([]export.Entity, error) {
	required := cfg.Required(FoldersName)
	keep := make(map[string]struct{})
	mark := func(folderID string) {
		// walks up to the root; the tree rejects cycles when built
		for id := folderID; id != ""; {
			if _, ok := keep[id]; ok {
				return
			}
			keep[id] = struct{}{}
			parent, ok := full.Get(graph.Key{ID: id, Type: entity.TypeFolder})
			if !ok {
				return
			}
			id = parent.FolderID
		}
	}

	for _, t := range []entity.Type{entity.TypePolicy, entity.TypeService} {
		for _, k := range acc.OfType(t) {
			if e, ok := full.Get(k); ok {
				mark(e.FolderID)
			}
		}
	}
	for _, e := range full.OfType(entity.TypeFolder) {
		if slices.Contains(required, e.Name) {
			mark(e.ID)
		}
	}

	var out []export.Entity
	for _, e := range full.OfType(entity.TypeFolder) {
		if _, ok := keep[e.ID]; ok {
			out = append(out, e)
		}
	}
	return out, validateEntities(out, required, "folder")
}

// dependencyFilter is the shape shared by the filters of entities that are
// only ever used by policies and services
type dependencyFilter struct {
	t        entity.Type
	name     string
	category string
	deps     []entity.Type
}

func (d dependencyFilter) Type() entity.Type                { return d.t }
func (d dependencyFilter) DependencyFilters() []entity.Type { return slices.Clone(d.deps) }
func (d dependencyFilter) EntityName() string               { return d.name }

func (d dependencyFilter) Filter(_ string, cfg *Config, full *export.Bundle, acc Accumulator) ([]export.Entity, error) {
	required := cfg.Required(d.name)
	out := filterDependencies(d.t, d.deps, full, acc, nameIn(required))
	return out, validateEntities(out, required, d.category)
}

// NewClusterPropertyFilter selects the required cluster properties and those
// used by selected policies and services
func NewClusterPropertyFilter() Filter {
	return dependencyFilter{
		t:        entity.TypeClusterProperty,
		name:     ClusterPropertiesName,
		category: "cluster property",
		deps:     []entity.Type{entity.TypePolicy, entity.TypeService},
	}
}

// NewListenPortFilter selects the required listen ports and those used by
// selected policies and services
func NewListenPortFilter() Filter {
	return dependencyFilter{
		t:        entity.TypeListenPort,
		name:     ListenPortsName,
		category: "listen port",
		deps:     []entity.Type{entity.TypePolicy, entity.TypeService},
	}
}

// NewTrustedCertFilter selects the required trusted certificates and those
// used by selected policies and services
func NewTrustedCertFilter() Filter {
	return dependencyFilter{
		t:        entity.TypeTrustedCert,
		name:     TrustedCertificatesName,
		category: "trusted certificate",
		deps:     []entity.Type{entity.TypePolicy, entity.TypeService},
	}
}

// NewPrivateKeyFilter selects the required private keys and those used by
// selected policies, services and listen ports
func NewPrivateKeyFilter() Filter {
	return dependencyFilter{
		t:        entity.TypePrivateKey,
		name:     PrivateKeysName,
		category: "private key",
		deps:     []entity.Type{entity.TypePolicy, entity.TypeService, entity.TypeListenPort},
	}
}
