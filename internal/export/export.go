// Package export reads a full gateway bundle into an entity arena with its
// folder tree and dependency graph, ready to be filtered and exploded.
package export

import (
	"fmt"
	"slices"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/alevsk/gwbundle/internal/entity"
	"github.com/alevsk/gwbundle/internal/folder"
	"github.com/alevsk/gwbundle/internal/graph"
	"github.com/alevsk/gwbundle/internal/normalizer"
	"github.com/beevik/etree"
)

// CertData is one certificate of a trusted cert or private key chain
type CertData struct {
	Issuer  string `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	Serial  string `json:"serial,omitempty" yaml:"serial,omitempty"`
	Subject string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Encoded string `json:"encoded" yaml:"encoded"`
}

// Entity is an entity read from a bundle. Only the fields relevant to its
// Type are set.
type Entity struct {
	Type     entity.Type
	ID       string
	Name     string
	GUID     string
	FolderID string

	// Body is the bundle form policy XML of policies and services
	Body string
	// PolicyID is the backing policy of an encapsulated assertion
	PolicyID  string
	Arguments []bundle.EncassArgument
	Results   []bundle.EncassResult

	Value string

	Enabled  bool
	Port     int
	Protocol string
	Features []string

	URLPattern string
	Methods    []string

	Alias      string
	KeystoreID string
	Algorithm  string

	Certs      []CertData
	Properties map[string]string

	// Element is the entity's resource element as found in the bundle
	Element *etree.Element
}

// Key returns the graph key of the entity
func (e Entity) Key() graph.Key {
	return graph.Key{ID: e.ID, Type: e.Type}
}

// Bundle is a parsed full bundle. Entities are stored in an arena keyed by
// (id, type) and remember the order they were read in.
type Bundle struct {
	entities map[graph.Key]Entity
	order    []graph.Key
	guids    map[entity.Type]map[string]graph.Key

	Graph   *graph.Graph
	Folders *folder.Tree
}

// NewBundle returns an empty bundle
func NewBundle() *Bundle {
	return &Bundle{
		entities: make(map[graph.Key]Entity),
		guids:    make(map[entity.Type]map[string]graph.Key),
		Graph:    graph.New(),
	}
}

// ErrDuplicateEntity is returned when two entities share a type and id
var ErrDuplicateEntity = fmt.Errorf("duplicate entity")

// Add stores e in the arena
func (b *Bundle) Add(e Entity) error {
	k := e.Key()
	if _, ok := b.entities[k]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, k)
	}
	b.entities[k] = e
	b.order = append(b.order, k)
	if e.GUID != "" {
		if b.guids[e.Type] == nil {
			b.guids[e.Type] = make(map[string]graph.Key)
		}
		b.guids[e.Type][e.GUID] = k
	}
	return nil
}

// Get returns the entity with the key
func (b *Bundle) Get(k graph.Key) (Entity, bool) {
	e, ok := b.entities[k]
	return e, ok
}

// Len returns the number of entities
func (b *Bundle) Len() int {
	return len(b.order)
}

// Entities returns every entity in read order
func (b *Bundle) Entities() []Entity {
	out := make([]Entity, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, b.entities[k])
	}
	return out
}

// OfType returns the entities of type t in read order
func (b *Bundle) OfType(t entity.Type) []Entity {
	var out []Entity
	for _, k := range b.order {
		if k.Type == t {
			out = append(out, b.entities[k])
		}
	}
	return out
}

// ByGUID returns the entity of type t with the given GUID
func (b *Bundle) ByGUID(t entity.Type, guid string) (Entity, bool) {
	k, ok := b.guids[t][guid]
	if !ok {
		return Entity{}, false
	}
	return b.entities[k], true
}

// EntityPath returns the root relative path of a policy or service,
// e.g. "api/billing/charge.xml"
func (b *Bundle) EntityPath(e Entity) (string, error) {
	if b.Folders == nil {
		return "", fmt.Errorf("%w: %s", folder.ErrFolderNotFound, e.FolderID)
	}
	return b.Folders.EntityPath(e.FolderID, e.Name, bundle.PolicyExtension)
}

// PolicyPath returns the path of the policy with the GUID. Together with
// Encass it lets a Bundle serve as a normalizer.Index.
func (b *Bundle) PolicyPath(guid string) (string, bool) {
	p, ok := b.ByGUID(entity.TypePolicy, guid)
	if !ok {
		return "", false
	}
	path, err := b.EntityPath(p)
	return path, err == nil
}

// Encass returns the encapsulated assertion with the GUID and the path of
// its backing policy when that policy is in the bundle
func (b *Bundle) Encass(guid string) (normalizer.EncassRef, bool) {
	enc, ok := b.ByGUID(entity.TypeEncass, guid)
	if !ok {
		return normalizer.EncassRef{}, false
	}
	ref := normalizer.EncassRef{GUID: enc.GUID, Name: enc.Name}
	if path, ok := b.BackingPolicyPath(enc); ok {
		ref.PolicyPath = path
	}
	return ref, true
}

// BackingPolicyPath returns the path of the policy backing an encapsulated
// assertion
func (b *Bundle) BackingPolicyPath(enc Entity) (string, bool) {
	p, ok := b.Get(graph.Key{ID: enc.PolicyID, Type: entity.TypePolicy})
	if !ok {
		return "", false
	}
	path, err := b.EntityPath(p)
	return path, err == nil
}

// Subset returns a bundle holding only the given keys, in this bundle's read
// order. The graph and folder tree are shared.
func (b *Bundle) Subset(keys map[graph.Key]struct{}) *Bundle {
	out := NewBundle()
	out.Graph = b.Graph
	out.Folders = b.Folders
	for _, k := range b.order {
		if _, ok := keys[k]; ok {
			// keys are unique in b
			_ = out.Add(b.entities[k])
		}
	}
	return out
}

// Counts returns the number of entities per type, in entity.Types order.
// Types without entities are omitted.
func (b *Bundle) Counts() []TypeCount {
	counts := make(map[entity.Type]int)
	for _, k := range b.order {
		counts[k.Type]++
	}
	var out []TypeCount
	for _, t := range entity.Types() {
		if n := counts[t]; n > 0 {
			out = append(out, TypeCount{Type: t, Count: n})
		}
	}
	return out
}

// TypeCount is the number of entities of one type
type TypeCount struct {
	Type  entity.Type
	Count int
}

// Names returns the sorted names of the entities of type t
func (b *Bundle) Names(t entity.Type) []string {
	var names []string
	for _, e := range b.OfType(t) {
		names = append(names, e.Name)
	}
	slices.Sort(names)
	return names
}
