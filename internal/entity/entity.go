// Package entity defines the unit of bundle output: an XML fragment plus the
// mapping directives the gateway importer uses to reconcile it against what
// already exists in the target environment.
package entity

import (
	"fmt"
	"slices"
	"strings"

	"github.com/beevik/etree"
)

// Type identifies the kind of gateway entity. The string value is the wire
// name used in bundle Items and Mappings.
type Type string

const (
	TypeFolder          Type = "FOLDER"
	TypeListenPort      Type = "SSG_CONNECTOR"
	TypeTrustedCert     Type = "TRUSTED_CERT"
	TypeClusterProperty Type = "CLUSTER_PROPERTY"
	TypePrivateKey      Type = "SSG_KEY_ENTRY"
	TypePolicy          Type = "POLICY"
	TypeEncass          Type = "ENCAPSULATED_ASSERTION"
	TypeService         Type = "SERVICE"
)

var allTypes = []Type{
	TypeFolder,
	TypeListenPort,
	TypeTrustedCert,
	TypeClusterProperty,
	TypePrivateKey,
	TypePolicy,
	TypeEncass,
	TypeService,
}

// ErrUnknownType is returned when a wire name does not match any Type
var ErrUnknownType = fmt.Errorf("unknown entity type")

// Types returns every known entity type
func Types() []Type {
	return slices.Clone(allTypes)
}

// ParseType converts a wire name into a Type
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if slices.Contains(allTypes, t) {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// MappingAction tells the importer how to reconcile an entity
type MappingAction string

const (
	// AlwaysCreateNew creates the entity and fails if it exists
	AlwaysCreateNew MappingAction = "AlwaysCreateNew"
	// NewOrExisting creates the entity or uses the one already present
	NewOrExisting MappingAction = "NewOrExisting"
	// NewOrUpdate creates the entity or overwrites the one already present
	NewOrUpdate MappingAction = "NewOrUpdate"
)

// Mapping property keys
const (
	FailOnNew      = "FailOnNew"
	FailOnExisting = "FailOnExisting"
	MapBy          = "MapBy"
	MapTo          = "MapTo"
)

// Entity is one typed, identified unit of gateway configuration
type Entity struct {
	Type Type
	Name string
	ID   string
	// XML is the entity body. Nil for mapping-only stubs.
	XML *etree.Element

	MappingAction     MappingAction
	MappingProperties map[string]bool
	// NameMapping makes the importer match the entity by name instead of id
	NameMapping bool
}

// New returns an entity with a body and the default mapping action
func New(t Type, name, id string, body *etree.Element) *Entity {
	return &Entity{
		Type:          t,
		Name:          name,
		ID:            id,
		XML:           body,
		MappingAction: NewOrUpdate,
	}
}

// MappingOnly returns a stub declaring that an entity with this identity must
// already exist in the target environment
func MappingOnly(t Type, name, id string) *Entity {
	return New(t, name, id, nil)
}

// IsMappingOnly reports whether the entity carries no body
func (e *Entity) IsMappingOnly() bool {
	return e.XML == nil
}

// SetMappingProperty sets a boolean mapping property
func (e *Entity) SetMappingProperty(key string, value bool) *Entity {
	if e.MappingProperties == nil {
		e.MappingProperties = make(map[string]bool)
	}
	e.MappingProperties[key] = value
	return e
}

// WithAction sets the mapping action
func (e *Entity) WithAction(action MappingAction) *Entity {
	e.MappingAction = action
	return e
}

// WithNameMapping makes the importer match the entity by name
func (e *Entity) WithNameMapping() *Entity {
	e.NameMapping = true
	return e
}

// String implements fmt.Stringer
func (e *Entity) String() string {
	return fmt.Sprintf("%s %s (%s)", e.Type, e.Name, e.ID)
}
