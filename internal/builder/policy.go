package builder

import (
	"fmt"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/alevsk/gwbundle/internal/entity"
)

// PolicyBuilder emits policy fragments. Policy bodies are stored exploded on
// disk and are encoded back into bundle form here.
type PolicyBuilder struct {
	opts *Options
}

// Order implements Builder
func (p *PolicyBuilder) Order() int { return 900 }

// Build implements Builder
func (p *PolicyBuilder) Build(b *bundle.Bundle, t BundleType) ([]*entity.Entity, error) {
	switch t {
	case Deployment:
	case Environment:
		return nil, nil
	default:
		return nil, t.Validate()
	}

	idx := reverseIndex{b: b}
	var out []*entity.Entity
	for _, key := range sortedKeys(b.Policies) {
		policy := b.Policies[key]
		folder, err := b.FolderFor(policy.Path)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", policy.Path, err)
		}
		body, err := encodePolicyBody(p.opts.Normalizer, policy.Path, policy.Body, idx)
		if err != nil {
			return nil, err
		}

		el := entity.NewElement("Policy")
		el.CreateAttr("guid", policy.GUID)
		el.CreateAttr("id", policy.ID)
		el.CreateAttr("folderId", folder.ID)
		detail := entity.AddElement(el, "PolicyDetail")
		detail.CreateAttr("guid", policy.GUID)
		detail.CreateAttr("id", policy.ID)
		detail.CreateAttr("folderId", folder.ID)
		entity.AddText(detail, "Name", policy.Name)
		entity.AddText(detail, "PolicyType", "Include")
		addPolicyResources(el, body)

		out = append(out, entity.New(entity.TypePolicy, policy.Name, policy.ID, el))
	}
	return out, nil
}
