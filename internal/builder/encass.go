package builder

import (
	"fmt"
	"strconv"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/alevsk/gwbundle/internal/entity"
)

// EncassBuilder emits encapsulated assertion configurations
type EncassBuilder struct {
	opts *Options
}

// Order implements Builder
func (e *EncassBuilder) Order() int { return 950 }

// Build implements Builder
func (e *EncassBuilder) Build(b *bundle.Bundle, t BundleType) ([]*entity.Entity, error) {
	switch t {
	case Deployment:
	case Environment:
		return nil, nil
	default:
		return nil, t.Validate()
	}

	var out []*entity.Entity
	for _, name := range sortedKeys(b.Encasses) {
		encass := b.Encasses[name]
		policy, ok := b.PolicyByPath(encass.PolicyPath)
		if !ok {
			return nil, fmt.Errorf("%w: encass %s uses %s", ErrMissingPolicy, name, encass.PolicyPath)
		}

		el := entity.NewElement("EncapsulatedAssertion")
		el.CreateAttr("id", encass.ID)
		entity.AddText(el, "Name", name)
		entity.AddText(el, "Guid", encass.GUID)
		ref := entity.AddElement(el, "PolicyReference")
		ref.CreateAttr("id", policy.ID)

		args := entity.AddElement(el, "EncapsulatedArguments")
		for i, arg := range encass.Arguments {
			a := entity.AddElement(args, "EncapsulatedAssertionArgument")
			entity.AddText(a, "Ordinal", strconv.Itoa(i+1))
			entity.AddText(a, "ArgumentName", arg.Name)
			entity.AddText(a, "ArgumentType", arg.Type)
			entity.AddText(a, "GuiPrompt", strconv.FormatBool(arg.RequireExplicit))
		}
		results := entity.AddElement(el, "EncapsulatedResults")
		for _, res := range encass.Results {
			r := entity.AddElement(results, "EncapsulatedAssertionResult")
			entity.AddText(r, "ResultName", res.Name)
			entity.AddText(r, "ResultType", res.Type)
		}

		out = append(out, entity.New(entity.TypeEncass, name, encass.ID, el))
	}
	return out, nil
}
