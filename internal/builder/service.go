package builder

import (
	"fmt"
	"strconv"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/alevsk/gwbundle/internal/entity"
)

// ServiceBuilder emits published services
type ServiceBuilder struct {
	opts *Options
}

// Order implements Builder
func (s *ServiceBuilder) Order() int { return 1000 }

// Build implements Builder
func (s *ServiceBuilder) Build(b *bundle.Bundle, t BundleType) ([]*entity.Entity, error) {
	switch t {
	case Deployment:
	case Environment:
		return nil, nil
	default:
		return nil, t.Validate()
	}

	idx := reverseIndex{b: b}
	var out []*entity.Entity
	for _, key := range sortedKeys(b.Services) {
		svc := b.Services[key]
		folder, err := b.FolderFor(svc.Path)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", svc.Path, err)
		}
		body, err := encodePolicyBody(s.opts.Normalizer, svc.Path, svc.Body, idx)
		if err != nil {
			return nil, err
		}
		id := assignID(&svc.ID, s.opts.Generator)

		el := entity.NewElement("Service")
		el.CreateAttr("id", id)
		detail := entity.AddElement(el, "ServiceDetail")
		detail.CreateAttr("id", id)
		detail.CreateAttr("folderId", folder.ID)
		entity.AddText(detail, "Name", svc.Name)
		entity.AddText(detail, "Enabled", strconv.FormatBool(svc.IsEnabled()))
		mappings := entity.AddElement(detail, "ServiceMappings")
		http := entity.AddElement(mappings, "HttpMapping")
		entity.AddText(http, "UrlPattern", svc.URL)
		verbs := entity.AddElement(http, "Verbs")
		for _, verb := range svc.Methods() {
			entity.AddText(verbs, "Verb", verb)
		}
		addPolicyResources(el, body)

		out = append(out, entity.New(entity.TypeService, svc.Name, id, el))
	}
	return out, nil
}
