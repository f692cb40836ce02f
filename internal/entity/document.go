package entity

import (
	"fmt"
	"io"
	"slices"

	"github.com/beevik/etree"
)

// ErrDuplicateEntity is returned when two entities share a type and id
var ErrDuplicateEntity = fmt.Errorf("duplicate entity")

// Document assembles entities into a gateway bundle document
type Document struct {
	doc      *etree.Document
	entities []*Entity
}

// NewDocument returns an empty bundle document
func NewDocument() *Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(Prefix + ":Bundle")
	root.CreateAttr("xmlns:"+Prefix, Namespace)
	return &Document{doc: doc}
}

// Assemble adds entities to the document in the given order. Every entity
// produces one mapping; entities with a body also produce a reference item.
// Fragments are copied so the caller keeps ownership of its elements.
func (d *Document) Assemble(entities []*Entity) error {
	seen := make(map[[2]string]struct{}, len(d.entities)+len(entities))
	for _, e := range d.entities {
		seen[[2]string{string(e.Type), e.ID}] = struct{}{}
	}
	for _, e := range entities {
		key := [2]string{string(e.Type), e.ID}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s %s", ErrDuplicateEntity, e.Type, e.ID)
		}
		seen[key] = struct{}{}
	}
	d.entities = append(d.entities, entities...)

	root := d.doc.Root()
	for _, tag := range []string{"References", "Mappings"} {
		if old := root.SelectElement(tag); old != nil {
			root.RemoveChild(old)
		}
	}
	refs := AddElement(root, "References")
	mappings := AddElement(root, "Mappings")
	for _, e := range d.entities {
		if !e.IsMappingOnly() {
			writeItem(refs, e)
		}
		writeMapping(mappings, e)
	}
	return nil
}

// Entities returns the assembled entities in document order
func (d *Document) Entities() []*Entity {
	return slices.Clone(d.entities)
}

// Root returns the l7:Bundle element
func (d *Document) Root() *etree.Element {
	return d.doc.Root()
}

// WriteTo serializes the document, indented by two spaces
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	d.doc.Indent(2)
	return d.doc.WriteTo(w)
}

// String returns the serialized document
func (d *Document) String() (string, error) {
	d.doc.Indent(2)
	return d.doc.WriteToString()
}

func writeItem(refs *etree.Element, e *Entity) {
	item := AddElement(refs, "Item")
	AddText(item, "Name", e.Name)
	AddText(item, "Id", e.ID)
	AddText(item, "Type", string(e.Type))
	res := AddElement(item, "Resource")
	res.AddChild(e.XML.Copy())
}

func writeMapping(mappings *etree.Element, e *Entity) {
	m := AddElement(mappings, "Mapping")
	action := e.MappingAction
	if action == "" {
		action = NewOrUpdate
	}
	m.CreateAttr("action", string(action))
	m.CreateAttr("srcId", e.ID)
	m.CreateAttr("type", string(e.Type))

	if len(e.MappingProperties) == 0 && !e.NameMapping {
		return
	}
	props := AddProperties(m)
	keys := make([]string, 0, len(e.MappingProperties))
	for k := range e.MappingProperties {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		AddProperty(props, k, e.MappingProperties[k])
	}
	if e.NameMapping {
		AddProperty(props, MapBy, "name")
		AddProperty(props, MapTo, e.Name)
	}
}
