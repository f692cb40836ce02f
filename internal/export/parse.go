package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/alevsk/gwbundle/internal/entity"
	"github.com/alevsk/gwbundle/internal/folder"
	"github.com/alevsk/gwbundle/internal/graph"
	"github.com/alevsk/gwbundle/internal/normalizer"
	"github.com/beevik/etree"
	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidBundle is returned when the document is not a gateway bundle
	ErrInvalidBundle = fmt.Errorf("invalid bundle")
	// ErrMalformedPolicy is returned when a policy or service body cannot be
	// parsed
	ErrMalformedPolicy = fmt.Errorf("malformed policy")
)

type extractor func(e *Entity, el *etree.Element) error

var extractors = map[entity.Type]extractor{
	entity.TypeFolder:          extractFolder,
	entity.TypeListenPort:      extractListenPort,
	entity.TypeTrustedCert:     extractTrustedCert,
	entity.TypeClusterProperty: extractClusterProperty,
	entity.TypePrivateKey:      extractPrivateKey,
	entity.TypePolicy:          extractPolicy,
	entity.TypeEncass:          extractEncass,
	entity.TypeService:         extractService,
}

// Parse reads a full bundle document
func Parse(r io.Reader) (*Bundle, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	return ParseDocument(doc)
}

// ParseDocument reads an already parsed bundle document. The root may be the
// l7:Bundle element itself or any element wrapping it.
func ParseDocument(doc *etree.Document) (*Bundle, error) {
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidBundle)
	}
	if root.Tag != "Bundle" {
		root = root.FindElement(".//Bundle")
		if root == nil {
			return nil, fmt.Errorf("%w: no Bundle element", ErrInvalidBundle)
		}
	}

	b := NewBundle()
	if refs := root.SelectElement("References"); refs != nil {
		for _, item := range refs.SelectElements("Item") {
			if err := b.readItem(item); err != nil {
				return nil, err
			}
		}
	}

	if err := b.buildFolders(); err != nil {
		return nil, err
	}
	if dg := root.SelectElement("DependencyGraph"); dg != nil {
		for _, dep := range dg.SelectElements("Dependency") {
			b.readDependency(dep)
		}
	}
	if err := b.deriveEdges(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bundle) readItem(item *etree.Element) error {
	typeName := entity.ChildText(item, "Type")
	t, err := entity.ParseType(typeName)
	if err != nil {
		log.Debug().Str("type", typeName).Str("name", entity.ChildText(item, "Name")).Msg("skipping unsupported entity")
		return nil
	}

	e := Entity{
		Type: t,
		ID:   strings.TrimSpace(entity.ChildText(item, "Id")),
		Name: entity.ChildText(item, "Name"),
	}
	res := item.SelectElement("Resource")
	if res == nil || len(res.ChildElements()) == 0 {
		return fmt.Errorf("%w: %s %q has no resource", ErrInvalidBundle, t, e.Name)
	}
	e.Element = res.ChildElements()[0]
	if e.ID == "" {
		e.ID = e.Element.SelectAttrValue("id", "")
	}
	if e.ID == "" {
		return fmt.Errorf("%w: %s %q has no id", ErrInvalidBundle, t, e.Name)
	}
	if err := extractors[t](&e, e.Element); err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidBundle, t, e.Name, err)
	}
	return b.Add(e)
}

func (b *Bundle) buildFolders() error {
	var folders []*folder.Folder
	for _, e := range b.OfType(entity.TypeFolder) {
		folders = append(folders, &folder.Folder{ID: e.ID, ParentFolderID: e.FolderID, Name: e.Name})
	}
	tree, err := folder.NewTree(folders)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	b.Folders = tree
	return nil
}

// readDependency records the edges of a DependencyGraph entry. Nested
// Dependency elements are the dependencies of their parent.
func (b *Bundle) readDependency(el *etree.Element) {
	from := dependencyKey(el)
	for _, child := range el.SelectElements("Dependency") {
		b.Graph.AddEdge(from, dependencyKey(child))
		b.readDependency(child)
	}
}

func dependencyKey(el *etree.Element) graph.Key {
	return graph.Key{
		ID:   el.SelectAttrValue("id", ""),
		Type: entity.Type(strings.ToUpper(el.SelectAttrValue("type", ""))),
	}
}

// deriveEdges adds the references that can be read from the entities
// themselves: policy includes and encapsulated assertions used by policy
// bodies, and the policy backing each encapsulated assertion.
func (b *Bundle) deriveEdges() error {
	for _, k := range b.order {
		e := b.entities[k]
		switch e.Type {
		case entity.TypePolicy, entity.TypeService:
			if strings.TrimSpace(e.Body) == "" {
				continue
			}
			doc := etree.NewDocument()
			if err := doc.ReadFromString(e.Body); err != nil {
				return fmt.Errorf("%w: %s %q: %v", ErrMalformedPolicy, e.Type, e.Name, err)
			}
			if doc.Root() == nil {
				return fmt.Errorf("%w: %s %q: no root element", ErrMalformedPolicy, e.Type, e.Name)
			}
			refs := normalizer.ScanReferences(doc.Root())
			for _, guid := range refs.Policies {
				if p, ok := b.ByGUID(entity.TypePolicy, guid); ok {
					b.Graph.AddEdge(k, p.Key())
				}
			}
			for _, guid := range refs.Encasses {
				if enc, ok := b.ByGUID(entity.TypeEncass, guid); ok {
					b.Graph.AddEdge(k, enc.Key())
				}
			}
		case entity.TypeEncass:
			if e.PolicyID != "" {
				b.Graph.AddEdge(k, graph.Key{ID: e.PolicyID, Type: entity.TypePolicy})
			}
		}
	}
	return nil
}

func extractFolder(e *Entity, el *etree.Element) error {
	e.FolderID = el.SelectAttrValue("folderId", "")
	e.Name = firstNonEmpty(entity.ChildText(el, "Name"), e.Name)
	return nil
}

func extractPolicy(e *Entity, el *etree.Element) error {
	detail := el.SelectElement("PolicyDetail")
	e.GUID = firstNonEmpty(el.SelectAttrValue("guid", ""), attrValue(detail, "guid"))
	e.FolderID = firstNonEmpty(el.SelectAttrValue("folderId", ""), attrValue(detail, "folderId"))
	e.Name = firstNonEmpty(entity.ChildText(detail, "Name"), e.Name)
	e.Body = resourceText(el)
	return nil
}

func extractService(e *Entity, el *etree.Element) error {
	detail := el.SelectElement("ServiceDetail")
	if detail == nil {
		return fmt.Errorf("missing ServiceDetail")
	}
	e.FolderID = detail.SelectAttrValue("folderId", "")
	e.Name = firstNonEmpty(entity.ChildText(detail, "Name"), e.Name)
	e.Enabled = entity.ChildText(detail, "Enabled") != "false"
	if mapping := detail.FindElement("./ServiceMappings/HttpMapping"); mapping != nil {
		e.URLPattern = entity.ChildText(mapping, "UrlPattern")
		for _, verb := range mapping.FindElements("./Verbs/Verb") {
			e.Methods = append(e.Methods, verb.Text())
		}
	}
	e.Body = resourceText(el)
	return nil
}

func extractEncass(e *Entity, el *etree.Element) error {
	e.Name = firstNonEmpty(entity.ChildText(el, "Name"), e.Name)
	e.GUID = entity.ChildText(el, "Guid")
	if ref := el.SelectElement("PolicyReference"); ref != nil {
		e.PolicyID = ref.SelectAttrValue("id", "")
	}
	for _, arg := range el.FindElements("./EncapsulatedArguments/EncapsulatedAssertionArgument") {
		e.Arguments = append(e.Arguments, bundle.EncassArgument{
			Name:            entity.ChildText(arg, "ArgumentName"),
			Type:            entity.ChildText(arg, "ArgumentType"),
			RequireExplicit: entity.ChildText(arg, "GuiPrompt") == "true",
		})
	}
	for _, res := range el.FindElements("./EncapsulatedResults/EncapsulatedAssertionResult") {
		e.Results = append(e.Results, bundle.EncassResult{
			Name: entity.ChildText(res, "ResultName"),
			Type: entity.ChildText(res, "ResultType"),
		})
	}
	return nil
}

func extractClusterProperty(e *Entity, el *etree.Element) error {
	e.Name = firstNonEmpty(entity.ChildText(el, "Name"), e.Name)
	e.Value = entity.ChildText(el, "Value")
	return nil
}

func extractListenPort(e *Entity, el *etree.Element) error {
	e.Name = firstNonEmpty(entity.ChildText(el, "Name"), e.Name)
	e.Enabled = entity.ChildText(el, "Enabled") != "false"
	e.Protocol = entity.ChildText(el, "Protocol")
	if port := entity.ChildText(el, "Port"); port != "" {
		n, err := strconv.Atoi(strings.TrimSpace(port))
		if err != nil {
			return fmt.Errorf("invalid port %q", port)
		}
		e.Port = n
	}
	for _, f := range el.FindElements("./EnabledFeatures/StringValue") {
		e.Features = append(e.Features, f.Text())
	}
	return nil
}

func extractTrustedCert(e *Entity, el *etree.Element) error {
	e.Name = firstNonEmpty(entity.ChildText(el, "Name"), e.Name)
	e.Certs = certs(el.SelectElements("CertificateData"))
	if len(e.Certs) == 0 {
		return fmt.Errorf("missing CertificateData")
	}
	e.Properties = entity.PropertyValues(el.SelectElement("Properties"))
	return nil
}

func extractPrivateKey(e *Entity, el *etree.Element) error {
	e.Alias = firstNonEmpty(el.SelectAttrValue("alias", ""), e.Name)
	e.Name = e.Alias
	e.KeystoreID = el.SelectAttrValue("keystoreId", "")
	if chain := el.SelectElement("CertificateChain"); chain != nil {
		e.Certs = certs(chain.SelectElements("CertificateData"))
	}
	e.Properties = entity.PropertyValues(el.SelectElement("Properties"))
	e.Algorithm = e.Properties["keyAlgorithm"]
	return nil
}

func certs(els []*etree.Element) []CertData {
	var out []CertData
	for _, c := range els {
		out = append(out, CertData{
			Issuer:  entity.ChildText(c, "IssuerName"),
			Serial:  entity.ChildText(c, "SerialNumber"),
			Subject: entity.ChildText(c, "SubjectName"),
			Encoded: strings.TrimSpace(entity.ChildText(c, "Encoded")),
		})
	}
	return out
}

func resourceText(el *etree.Element) string {
	r := el.FindElement("./Resources/ResourceSet/Resource")
	if r == nil {
		return ""
	}
	return r.Text()
}

func attrValue(el *etree.Element, key string) string {
	if el == nil {
		return ""
	}
	return el.SelectAttrValue(key, "")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
