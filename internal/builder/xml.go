package builder

import (
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/alevsk/gwbundle/internal/entity"
	"github.com/alevsk/gwbundle/internal/normalizer"
	"github.com/beevik/etree"
)

// certData holds the fields of an l7:CertificateData element
type certData struct {
	Issuer  string
	Serial  string
	Subject string
	Encoded string
}

func certDataFromX509(cert *x509.Certificate) certData {
	return certData{
		Issuer:  cert.Issuer.String(),
		Serial:  cert.SerialNumber.String(),
		Subject: cert.Subject.String(),
		Encoded: base64.StdEncoding.EncodeToString(cert.Raw),
	}
}

func addCertificateData(parent *etree.Element, c certData) *etree.Element {
	el := entity.AddElement(parent, "CertificateData")
	entity.AddText(el, "IssuerName", c.Issuer)
	entity.AddText(el, "SerialNumber", c.Serial)
	entity.AddText(el, "SubjectName", c.Subject)
	entity.AddText(el, "Encoded", c.Encoded)
	return el
}

// addPolicyResources appends the l7:Resources block holding a policy body
func addPolicyResources(parent *etree.Element, body string) {
	res := entity.AddElement(parent, "Resources")
	set := entity.AddElement(res, "ResourceSet")
	set.CreateAttr("tag", "policy")
	r := entity.AddText(set, "Resource", body)
	r.CreateAttr("type", "policy")
}

// encodePolicyBody parses an exploded policy, rewrites it into bundle form
// and returns it serialized
func encodePolicyBody(n *normalizer.Normalizer, name string, body []byte, idx normalizer.ReverseIndex) (string, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromBytes(body); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidPolicy, name, err)
	}
	root := doc.Root()
	if root == nil {
		return "", fmt.Errorf("%w: %s: no root element", ErrInvalidPolicy, name)
	}
	if err := n.Encode(root, idx); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	out := etree.NewDocumentWithRoot(root)
	out.Indent(2)
	return out.WriteToString()
}

// reverseIndex resolves policy paths against the configuration bundle
type reverseIndex struct {
	b *bundle.Bundle
}

func (r reverseIndex) PolicyGUID(p string) (string, bool) {
	policy, ok := r.b.PolicyByPath(p)
	if !ok {
		return "", false
	}
	return policy.GUID, true
}

func (r reverseIndex) EncassForPolicy(p string) (normalizer.EncassRef, bool) {
	e, ok := r.b.EncassForPolicy(p)
	if !ok {
		return normalizer.EncassRef{}, false
	}
	return normalizer.EncassRef{GUID: e.GUID, Name: e.Name, PolicyPath: e.PolicyPath}, true
}
