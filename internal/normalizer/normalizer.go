// Package normalizer rewrites policy XML between its bundle form and its
// exploded, human editable form.
//
// In the bundle form policies reference each other by GUID and carry some
// payloads Base64 encoded. Normalize replaces GUID references with root
// relative policy paths and decodes the payloads into CDATA sections. Encode
// does the opposite when a policy tree is built back into a bundle.
package normalizer

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PolicyNamespacePrefix is the prefix of assertion elements
const PolicyNamespacePrefix = "L7p"

// Assertion and property tags handled by the normalizer
const (
	tagInclude           = "Include"
	tagPolicyGUID        = "PolicyGuid"
	tagEncapsulated      = "Encapsulated"
	tagEncassGUID        = "EncapsulatedAssertionConfigGuid"
	tagEncassName        = "EncapsulatedAssertionConfigName"
	tagSetVariable       = "SetVariable"
	tagBase64Expression  = "Base64Expression"
	tagExpression        = "Expression"
	tagHardcodedResponse = "HardcodedResponse"
	tagBase64Body        = "Base64ResponseBody"
	tagResponseBody      = "ResponseBody"

	attrStringValue = "stringValue"
	attrPolicyPath  = "policyPath"
	// attrEncoding marks a payload kept in Base64 because it cannot be stored
	// as CDATA without changing its bytes
	attrEncoding = "encoding"
	encodingB64  = "base64"
)

// EncassRef describes an encapsulated assertion and the policy backing it.
// PolicyPath is empty when the backing policy is unknown.
type EncassRef struct {
	GUID       string
	Name       string
	PolicyPath string
}

// Index resolves GUID references while normalizing
type Index interface {
	// PolicyPath returns the root relative path of the policy with the GUID
	PolicyPath(guid string) (string, bool)
	// Encass returns the encapsulated assertion with the GUID
	Encass(guid string) (EncassRef, bool)
}

// ReverseIndex resolves policy paths while encoding
type ReverseIndex interface {
	// PolicyGUID returns the GUID of the policy at the path
	PolicyGUID(path string) (string, bool)
	// EncassForPolicy returns the encapsulated assertion backed by the policy
	// at the path
	EncassForPolicy(path string) (EncassRef, bool)
}

// Warning is a reference that could not be resolved
type Warning struct {
	Assertion string
	GUID      string
	Message   string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %s", w.Assertion, w.GUID, w.Message)
}

// StructureError reports policy XML that does not have the expected shape
type StructureError struct {
	Assertion string
	Reason    string
	Err       error
}

func (e *StructureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s assertion: %s: %v", e.Assertion, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed %s assertion: %s", e.Assertion, e.Reason)
}

func (e *StructureError) Unwrap() error {
	return e.Err
}

// ErrUnresolvedReference is returned by Encode for a policy path that does
// not match any policy or encapsulated assertion
var ErrUnresolvedReference = fmt.Errorf("unresolved policy reference")

// Normalizer rewrites policy trees
type Normalizer struct {
	log zerolog.Logger
}

// New returns a Normalizer logging to l
func New(l zerolog.Logger) *Normalizer {
	return &Normalizer{log: l}
}

// Default returns a Normalizer logging to the global logger
func Default() *Normalizer {
	return New(log.Logger)
}

// Normalize rewrites policy in place. Unresolved references are returned as
// warnings and left untouched; malformed assertions abort with a
// *StructureError. Normalizing an already normalized tree changes nothing.
func (n *Normalizer) Normalize(policy *etree.Element, idx Index) ([]Warning, error) {
	var warnings []Warning
	steps := []struct {
		tag string
		fn  func(*etree.Element) (*Warning, error)
	}{
		{tagInclude, func(el *etree.Element) (*Warning, error) { return n.normalizeInclude(el, idx) }},
		{tagEncapsulated, func(el *etree.Element) (*Warning, error) { return n.normalizeEncapsulated(el, idx) }},
		{tagSetVariable, func(el *etree.Element) (*Warning, error) {
			return nil, decodePayload(el, tagSetVariable, tagBase64Expression, tagExpression)
		}},
		{tagHardcodedResponse, func(el *etree.Element) (*Warning, error) {
			return nil, decodePayload(el, tagHardcodedResponse, tagBase64Body, tagResponseBody)
		}},
	}

	for _, step := range steps {
		for _, el := range findAssertions(policy, step.tag) {
			w, err := step.fn(el)
			if err != nil {
				return warnings, err
			}
			if w != nil {
				n.log.Warn().Str("assertion", w.Assertion).Str("guid", w.GUID).Msg(w.Message)
				warnings = append(warnings, *w)
			}
		}
	}
	return warnings, nil
}

func (n *Normalizer) normalizeInclude(el *etree.Element, idx Index) (*Warning, error) {
	guidEl, err := singleChild(el, tagInclude, tagPolicyGUID)
	if err != nil || guidEl == nil {
		return nil, err
	}
	guid := guidEl.SelectAttrValue(attrStringValue, "")
	if guid == "" {
		return nil, nil
	}
	p, ok := idx.PolicyPath(guid)
	if !ok {
		return &Warning{Assertion: tagInclude, GUID: guid, Message: "could not find referenced policy include"}, nil
	}
	guidEl.CreateAttr(attrPolicyPath, p)
	guidEl.RemoveAttr(attrStringValue)
	return nil, nil
}

func (n *Normalizer) normalizeEncapsulated(el *etree.Element, idx Index) (*Warning, error) {
	guidEl, err := singleChild(el, tagEncapsulated, tagEncassGUID)
	if err != nil || guidEl == nil {
		return nil, err
	}
	nameEl, err := singleChild(el, tagEncapsulated, tagEncassName)
	if err != nil {
		return nil, err
	}
	guid := guidEl.SelectAttrValue(attrStringValue, "")
	ref, ok := idx.Encass(guid)
	if !ok {
		return &Warning{Assertion: tagEncapsulated, GUID: guid, Message: "could not find referenced encass"}, nil
	}
	if ref.PolicyPath == "" {
		return &Warning{Assertion: tagEncapsulated, GUID: guid, Message: "could not find referenced encass policy"}, nil
	}
	el.CreateAttr(attrPolicyPath, ref.PolicyPath)
	if nameEl != nil {
		el.RemoveChild(nameEl)
	}
	el.RemoveChild(guidEl)
	return nil, nil
}

// decodePayload replaces the Base64 node with a CDATA node holding the
// decoded text. When the decoded bytes would not survive a trip through a
// CDATA section unchanged, the new node keeps the Base64 text and is marked
// with encoding="base64".
func decodePayload(el *etree.Element, assertion, encodedTag, decodedTag string) error {
	encEl, err := singleChild(el, assertion, encodedTag)
	if err != nil || encEl == nil {
		return err
	}
	value := encEl.SelectAttrValue(attrStringValue, "")
	decoded, err := decodeBase64(value)
	if err != nil {
		return &StructureError{Assertion: assertion, Reason: "invalid " + encodedTag, Err: err}
	}

	out := etree.NewElement(PolicyNamespacePrefix + ":" + decodedTag)
	if cdataSafe(decoded) && base64.StdEncoding.EncodeToString(decoded) == value {
		out.CreateCData(string(decoded))
	} else {
		out.CreateAttr(attrEncoding, encodingB64)
		out.CreateText(value)
	}
	el.InsertChild(encEl, out)
	el.RemoveChild(encEl)
	return nil
}

// decodeBase64 decodes standard Base64 with or without the trailing padding
func decodeBase64(value string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(value); rawErr == nil {
		return raw, nil
	}
	return nil, err
}

// cdataSafe reports whether b can be written inside a CDATA section and read
// back byte for byte
func cdataSafe(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	s := string(b)
	if strings.Contains(s, "]]>") || strings.ContainsRune(s, '\r') {
		return false
	}
	// whitespace only text is dropped by indentation
	if s != "" && strings.TrimSpace(s) == "" {
		return false
	}
	for _, r := range s {
		if !isXMLChar(r) {
			return false
		}
	}
	return true
}

func isXMLChar(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// findAssertions returns every element below root (root included) with the
// given local name in the policy namespace, in document order
func findAssertions(root *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		if isPolicyTag(el, tag) {
			out = append(out, el)
		}
		for _, c := range el.ChildElements() {
			walk(c)
		}
	}
	walk(root)
	return out
}

func isPolicyTag(el *etree.Element, tag string) bool {
	return el.Tag == tag && (el.Space == "" || el.Space == PolicyNamespacePrefix)
}

// singleChild returns the only child of el with the given tag, nil when there
// is none, and a *StructureError when there are several
func singleChild(el *etree.Element, assertion, tag string) (*etree.Element, error) {
	var found *etree.Element
	for _, c := range el.ChildElements() {
		if !isPolicyTag(c, tag) {
			continue
		}
		if found != nil {
			return nil, &StructureError{Assertion: assertion, Reason: "more than one " + tag}
		}
		found = c
	}
	return found, nil
}
