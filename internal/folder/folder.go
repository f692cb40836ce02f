// Package folder models the gateway folder hierarchy and resolves folder
// paths for policies and services.
package folder

import (
	"fmt"
	"path"
	"slices"
	"strings"
)

// Folder is a single node of the folder hierarchy
type Folder struct {
	ID             string `json:"id" yaml:"id"`
	ParentFolderID string `json:"parentFolderId,omitempty" yaml:"parentFolderId,omitempty"`
	Name           string `json:"name" yaml:"name"`
}

// IsRoot reports whether the folder has no parent
func (f *Folder) IsRoot() bool {
	return f.ParentFolderID == ""
}

// Error types for folder operations
var (
	ErrFolderNotFound = fmt.Errorf("folder not found")
	ErrInvalidTree    = fmt.Errorf("invalid folder tree")
)

// Tree indexes folders by identifier. Exactly one folder has no parent. Loaders
// are responsible for handing over an acyclic hierarchy.
type Tree struct {
	root    *Folder
	folders map[string]*Folder
}

// NewTree builds a Tree from the given folders. An empty slice yields an empty
// tree; otherwise there must be exactly one root.
func NewTree(folders []*Folder) (*Tree, error) {
	t := &Tree{folders: make(map[string]*Folder, len(folders))}
	for _, f := range folders {
		if _, ok := t.folders[f.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate folder id %s", ErrInvalidTree, f.ID)
		}
		t.folders[f.ID] = f
		if f.IsRoot() {
			if t.root != nil {
				return nil, fmt.Errorf("%w: multiple root folders (%s, %s)", ErrInvalidTree, t.root.ID, f.ID)
			}
			t.root = f
		}
	}
	if len(folders) > 0 && t.root == nil {
		return nil, fmt.Errorf("%w: no root folder", ErrInvalidTree)
	}
	return t, nil
}

// Root returns the root folder, nil for an empty tree
func (t *Tree) Root() *Folder {
	return t.root
}

// Len returns the number of folders in the tree
func (t *Tree) Len() int {
	return len(t.folders)
}

// FolderByID returns the folder with the given identifier
func (t *Tree) FolderByID(id string) (*Folder, error) {
	f, ok := t.folders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, id)
	}
	return f, nil
}

// Path returns the folder names from the root (exclusive) down to f
// (inclusive). The root folder has an empty path.
func (t *Tree) Path(f *Folder) ([]string, error) {
	var names []string
	cur := f
	for range len(t.folders) + 1 {
		if cur.IsRoot() {
			slices.Reverse(names)
			return names, nil
		}
		names = append(names, cur.Name)
		parent, err := t.FolderByID(cur.ParentFolderID)
		if err != nil {
			return nil, fmt.Errorf("resolving parent of %s: %w", cur.ID, err)
		}
		cur = parent
	}
	return nil, fmt.Errorf("%w: cycle through folder %s", ErrInvalidTree, f.ID)
}

// PathString returns Path joined with forward slashes, e.g. "api/billing"
func (t *Tree) PathString(f *Folder) (string, error) {
	names, err := t.Path(f)
	if err != nil {
		return "", err
	}
	return strings.Join(names, "/"), nil
}

// PathByID resolves the folder first and then returns its PathString
func (t *Tree) PathByID(id string) (string, error) {
	f, err := t.FolderByID(id)
	if err != nil {
		return "", err
	}
	return t.PathString(f)
}

// EntityPath returns the root relative path of a named item stored in the
// folder with the given identifier, with ext appended to the name.
func (t *Tree) EntityPath(folderID, name, ext string) (string, error) {
	dir, err := t.PathByID(folderID)
	if err != nil {
		return "", err
	}
	return path.Join(dir, name+ext), nil
}

// Folders returns every folder of the tree ordered by path, parents first
func (t *Tree) Folders() []*Folder {
	type entry struct {
		path   string
		folder *Folder
	}
	entries := make([]entry, 0, len(t.folders))
	for _, f := range t.folders {
		p, err := t.PathString(f)
		if err != nil {
			// unreachable folders sort last by id
			p = "\xff" + f.ID
		}
		entries = append(entries, entry{path: p, folder: f})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		return strings.Compare(a.path, b.path)
	})

	out := make([]*Folder, len(entries))
	for i, e := range entries {
		out[i] = e.folder
	}
	return out
}
