package normalizer

import "github.com/beevik/etree"

// References lists the GUIDs a policy in bundle form points at
type References struct {
	Policies []string
	Encasses []string
}

// ScanReferences collects the policy include and encapsulated assertion GUIDs
// of a policy tree, in document order, without modifying it
func ScanReferences(policy *etree.Element) References {
	var refs References
	for _, el := range findAssertions(policy, tagInclude) {
		for _, c := range el.ChildElements() {
			if guid := c.SelectAttrValue(attrStringValue, ""); isPolicyTag(c, tagPolicyGUID) && guid != "" {
				refs.Policies = append(refs.Policies, guid)
			}
		}
	}
	for _, el := range findAssertions(policy, tagEncapsulated) {
		for _, c := range el.ChildElements() {
			if guid := c.SelectAttrValue(attrStringValue, ""); isPolicyTag(c, tagEncassGUID) && guid != "" {
				refs.Encasses = append(refs.Encasses, guid)
			}
		}
	}
	return refs
}
