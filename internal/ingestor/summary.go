package ingestor

import (
	"github.com/alevsk/gwbundle/internal/entity"
	"github.com/alevsk/gwbundle/internal/export"
	"github.com/alevsk/gwbundle/internal/types"
)

// builtEntities summarizes the entities of a built bundle, in bundle order
func builtEntities(entities []*entity.Entity) []types.Entity {
	out := make([]types.Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, types.Entity{
			Type:        string(e.Type),
			Name:        e.Name,
			ID:          e.ID,
			Action:      string(e.MappingAction),
			MappingOnly: e.IsMappingOnly(),
		})
	}
	return out
}

// exportedEntities summarizes the entities of a parsed bundle grouped by
// type. Policies and services carry the file they explode to.
func exportedEntities(b *export.Bundle) ([]types.Entity, error) {
	var out []types.Entity
	for _, t := range entity.Types() {
		for _, e := range b.OfType(t) {
			summary := types.Entity{
				Type: string(e.Type),
				Name: e.Name,
				ID:   e.ID,
			}
			switch t {
			case entity.TypePolicy, entity.TypeService:
				p, err := b.EntityPath(e)
				if err != nil {
					return nil, err
				}
				summary.Path = p
			case entity.TypeFolder:
				if b.Folders == nil {
					break
				}
				p, err := b.Folders.PathByID(e.ID)
				if err != nil {
					return nil, err
				}
				summary.Path = p
			}
			out = append(out, summary)
		}
	}
	return out, nil
}
