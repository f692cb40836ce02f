package entity

import (
	"strconv"

	"github.com/beevik/etree"
)

const (
	// Namespace is the gateway management namespace
	Namespace = "http://ns.l7tech.com/2010/04/gateway-management"
	// Prefix is the namespace prefix used on every bundle element
	Prefix = "l7"
)

// NewElement returns a detached element in the gateway namespace
func NewElement(tag string) *etree.Element {
	return etree.NewElement(Prefix + ":" + tag)
}

// AddElement appends a gateway namespace child to parent
func AddElement(parent *etree.Element, tag string) *etree.Element {
	return parent.CreateElement(Prefix + ":" + tag)
}

// AddText appends a gateway namespace child holding text
func AddText(parent *etree.Element, tag, text string) *etree.Element {
	el := AddElement(parent, tag)
	el.SetText(text)
	return el
}

// AddProperties appends an l7:Properties element
func AddProperties(parent *etree.Element) *etree.Element {
	return AddElement(parent, "Properties")
}

// AddProperty appends an l7:Property to props. The value element depends on
// the Go type of value: bool, int and string map to BooleanValue,
// IntegerValue and StringValue.
func AddProperty(props *etree.Element, key string, value any) *etree.Element {
	p := AddElement(props, "Property")
	p.CreateAttr("key", key)
	switch v := value.(type) {
	case bool:
		AddText(p, "BooleanValue", strconv.FormatBool(v))
	case int:
		AddText(p, "IntegerValue", strconv.Itoa(v))
	case string:
		AddText(p, "StringValue", v)
	default:
		AddText(p, "StringValue", "")
	}
	return p
}

// ChildText returns the text of the first child with the given local name,
// or "" when absent. The namespace prefix is ignored.
func ChildText(el *etree.Element, tag string) string {
	if el == nil {
		return ""
	}
	c := el.SelectElement(tag)
	if c == nil {
		return ""
	}
	return c.Text()
}

// PropertyValues reads an l7:Properties element into a map of raw string
// values keyed by property key
func PropertyValues(props *etree.Element) map[string]string {
	out := make(map[string]string)
	if props == nil {
		return out
	}
	for _, p := range props.SelectElements("Property") {
		key := p.SelectAttrValue("key", "")
		if key == "" {
			continue
		}
		for _, v := range p.ChildElements() {
			out[key] = v.Text()
			break
		}
	}
	return out
}
