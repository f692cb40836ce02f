package normalizer

import (
	"encoding/base64"
	"fmt"

	"github.com/beevik/etree"
)

// Encode rewrites a normalized policy back into its bundle form in place:
// policy paths become GUID references and CDATA payloads become Base64.
// Unlike Normalize, an unresolvable path is an error since the resulting
// bundle would not import.
func (n *Normalizer) Encode(policy *etree.Element, idx ReverseIndex) error {
	for _, el := range findAssertions(policy, tagInclude) {
		if err := encodeInclude(el, idx); err != nil {
			return err
		}
	}
	for _, el := range findAssertions(policy, tagEncapsulated) {
		if err := encodeEncapsulated(el, idx); err != nil {
			return err
		}
	}
	for _, el := range findAssertions(policy, tagSetVariable) {
		if err := encodePayload(el, tagSetVariable, tagExpression, tagBase64Expression); err != nil {
			return err
		}
	}
	for _, el := range findAssertions(policy, tagHardcodedResponse) {
		if err := encodePayload(el, tagHardcodedResponse, tagResponseBody, tagBase64Body); err != nil {
			return err
		}
	}
	return nil
}

func encodeInclude(el *etree.Element, idx ReverseIndex) error {
	guidEl, err := singleChild(el, tagInclude, tagPolicyGUID)
	if err != nil || guidEl == nil {
		return err
	}
	p := guidEl.SelectAttrValue(attrPolicyPath, "")
	if p == "" {
		return nil
	}
	guid, ok := idx.PolicyGUID(p)
	if !ok {
		return fmt.Errorf("%w: include of %s", ErrUnresolvedReference, p)
	}
	guidEl.RemoveAttr(attrPolicyPath)
	guidEl.CreateAttr(attrStringValue, guid)
	return nil
}

func encodeEncapsulated(el *etree.Element, idx ReverseIndex) error {
	p := el.SelectAttrValue(attrPolicyPath, "")
	if p == "" {
		return nil
	}
	ref, ok := idx.EncassForPolicy(p)
	if !ok {
		return fmt.Errorf("%w: encapsulated assertion for %s", ErrUnresolvedReference, p)
	}
	el.RemoveAttr(attrPolicyPath)

	guidEl := etree.NewElement(PolicyNamespacePrefix + ":" + tagEncassGUID)
	guidEl.CreateAttr(attrStringValue, ref.GUID)
	nameEl := etree.NewElement(PolicyNamespacePrefix + ":" + tagEncassName)
	nameEl.CreateAttr(attrStringValue, ref.Name)
	el.InsertChildAt(0, nameEl)
	el.InsertChildAt(0, guidEl)
	return nil
}

func encodePayload(el *etree.Element, assertion, decodedTag, encodedTag string) error {
	decEl, err := singleChild(el, assertion, decodedTag)
	if err != nil || decEl == nil {
		return err
	}

	var value string
	if decEl.SelectAttrValue(attrEncoding, "") == encodingB64 {
		value = decEl.Text()
		if _, err := decodeBase64(value); err != nil {
			return &StructureError{Assertion: assertion, Reason: "invalid " + decodedTag, Err: err}
		}
	} else {
		value = base64.StdEncoding.EncodeToString([]byte(decEl.Text()))
	}

	out := etree.NewElement(PolicyNamespacePrefix + ":" + encodedTag)
	out.CreateAttr(attrStringValue, value)
	el.InsertChild(decEl, out)
	el.RemoveChild(decEl)
	return nil
}
