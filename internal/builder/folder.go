package builder

import (
	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/alevsk/gwbundle/internal/entity"
)

// FolderBuilder emits the folder hierarchy, parents first
type FolderBuilder struct {
	opts *Options
}

// Order implements Builder
func (f *FolderBuilder) Order() int { return 100 }

// Build implements Builder. The root folder always exists on a gateway, so it
// is mapped with FailOnNew.
func (f *FolderBuilder) Build(b *bundle.Bundle, t BundleType) ([]*entity.Entity, error) {
	switch t {
	case Deployment:
	case Environment:
		return nil, nil
	default:
		return nil, t.Validate()
	}
	if b.FolderTree == nil {
		return nil, nil
	}

	var out []*entity.Entity
	for _, folder := range b.FolderTree.Folders() {
		el := entity.NewElement("Folder")
		if !folder.IsRoot() {
			el.CreateAttr("folderId", folder.ParentFolderID)
		}
		el.CreateAttr("id", folder.ID)
		entity.AddText(el, "Name", folder.Name)

		e := entity.New(entity.TypeFolder, folder.Name, folder.ID, el).WithAction(entity.NewOrExisting)
		if folder.IsRoot() {
			e.SetMappingProperty(entity.FailOnNew, true)
		}
		out = append(out, e)
	}
	return out, nil
}
