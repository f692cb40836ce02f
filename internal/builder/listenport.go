package builder

import (
	"strconv"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/alevsk/gwbundle/internal/entity"
)

// ListenPortBuilder emits gateway connectors. Listen ports are owned by both
// deployment and environment bundles.
type ListenPortBuilder struct {
	opts *Options
}

// Order implements Builder
func (l *ListenPortBuilder) Order() int { return 200 }

// Build implements Builder
func (l *ListenPortBuilder) Build(b *bundle.Bundle, t BundleType) ([]*entity.Entity, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	var out []*entity.Entity
	for _, name := range sortedKeys(b.ListenPorts) {
		lp := b.ListenPorts[name]
		id := assignID(&lp.ID, l.opts.Generator)

		el := entity.NewElement("ListenPort")
		el.CreateAttr("id", id)
		entity.AddText(el, "Name", name)
		entity.AddText(el, "Enabled", strconv.FormatBool(lp.IsEnabled()))
		entity.AddText(el, "Protocol", lp.Protocol)
		entity.AddText(el, "Port", strconv.Itoa(lp.Port))
		if len(lp.EnabledFeatures) > 0 {
			features := entity.AddElement(el, "EnabledFeatures")
			for _, feature := range lp.EnabledFeatures {
				entity.AddText(features, "StringValue", feature)
			}
		}
		out = append(out, entity.New(entity.TypeListenPort, name, id, el))
	}
	return out, nil
}
