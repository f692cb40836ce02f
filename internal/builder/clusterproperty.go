package builder

import (
	"strings"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/alevsk/gwbundle/internal/entity"
)

// Property name prefixes. Environment properties meant for the gateway carry
// GatewayPrefix in configuration and are installed as EnvPrefix properties.
const (
	GatewayPrefix = "gateway."
	EnvPrefix     = "ENV."
)

// ClusterPropertyBuilder emits static cluster properties and the gateway
// scoped environment properties
type ClusterPropertyBuilder struct {
	opts *Options
}

// Order implements Builder
func (c *ClusterPropertyBuilder) Order() int { return 500 }

// Build implements Builder. A deployment bundle carries the static properties
// plus mapping-only stubs for environment properties; an environment bundle
// carries the environment properties themselves.
func (c *ClusterPropertyBuilder) Build(b *bundle.Bundle, t BundleType) ([]*entity.Entity, error) {
	var out []*entity.Entity
	switch t {
	case Deployment:
		for _, name := range sortedKeys(b.StaticProperties) {
			out = append(out, c.property(name, b.StaticProperties[name]))
		}
		for _, name := range sortedKeys(b.EnvironmentProperties) {
			if envName, ok := EnvPropertyName(name); ok {
				out = append(out, entity.MappingOnly(entity.TypeClusterProperty, envName, c.opts.Generator.Generate()).WithNameMapping())
			}
		}
	case Environment:
		for _, name := range sortedKeys(b.EnvironmentProperties) {
			if envName, ok := EnvPropertyName(name); ok {
				out = append(out, c.property(envName, b.EnvironmentProperties[name]))
			}
		}
	default:
		return nil, t.Validate()
	}
	return out, nil
}

func (c *ClusterPropertyBuilder) property(name, value string) *entity.Entity {
	id := c.opts.Generator.Generate()
	el := entity.NewElement("ClusterProperty")
	el.CreateAttr("id", id)
	entity.AddText(el, "Name", name)
	entity.AddText(el, "Value", value)
	return entity.New(entity.TypeClusterProperty, name, id, el).
		WithNameMapping().
		SetMappingProperty(entity.FailOnExisting, true)
}

// EnvPropertyName rewrites a gateway prefixed property name into its
// installed form, e.g. "gateway.db.url" becomes "ENV.db.url". Names without
// the prefix report false.
func EnvPropertyName(name string) (string, bool) {
	if !strings.HasPrefix(name, GatewayPrefix) {
		return "", false
	}
	return EnvPrefix + strings.TrimPrefix(name, GatewayPrefix), true
}
