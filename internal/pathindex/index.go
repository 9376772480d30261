// Package pathindex maintains a path-keyed index of a file tree.
//
// An Index is an immutable value: every successful mutation returns a new
// Index and leaves the receiver untouched, so holders of an older value can
// compare revisions (or pointers) to detect change. Entries that a mutation
// does not touch are shared between the old and new value.
package pathindex

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/fruitsalade/filesurf/pkg/models"
	"github.com/fruitsalade/filesurf/pkg/tree"
)

var (
	// ErrNotFound is returned when an operation targets a path absent from the index.
	ErrNotFound = errors.New("path not found")
	// ErrNotFolder is returned when a folder was expected.
	ErrNotFolder = errors.New("not a folder")
	// ErrNotFile is returned when a file was expected.
	ErrNotFile = errors.New("not a file")
	// ErrDuplicate is returned when a sibling with the same name already exists.
	ErrDuplicate = tree.ErrDuplicate
	// ErrInvalidNode is returned for malformed input nodes.
	ErrInvalidNode = tree.ErrInvalidNode
)

// Kind classifies an index error for diagnostics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "invalid-target"
	case errors.Is(err, ErrNotFolder), errors.Is(err, ErrNotFile):
		return "type-mismatch"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrInvalidNode):
		return "invalid-node"
	default:
		return "unknown"
	}
}

// Entry is one node of the index. Entries are never modified after they are
// placed in an Index; callers must treat every field as read-only.
type Entry struct {
	ID         uint64          `json:"id"`
	Name       string          `json:"name"`
	Type       models.NodeType `json:"type"`
	Content    string          `json:"content,omitempty"`
	Path       string          `json:"path"`
	ParentPath string          `json:"parentPath,omitempty"`
	// Children holds child names in storage order. Nil for files.
	Children []string `json:"children,omitempty"`
}

// IsRoot reports whether the entry is the tree root.
func (e *Entry) IsRoot() bool { return e.ParentPath == "" }

// IsFolder reports whether the entry is a folder.
func (e *Entry) IsFolder() bool { return e.Type == models.TypeFolder }

// IsFile reports whether the entry is a file.
func (e *Entry) IsFile() bool { return e.Type == models.TypeFile }

// Index maps slash-delimited paths to entries.
type Index struct {
	entries  map[string]*Entry
	order    []string // insertion order
	root     string
	revision uint64
	nextID   uint64
}

// Empty returns an index with no entries.
func Empty() *Index {
	return &Index{entries: map[string]*Entry{}}
}

// Build walks root depth-first and produces one entry per node. The input is
// copied; later changes to root do not affect the index.
func Build(root *models.FileNode) (*Index, error) {
	if err := tree.Validate(root); err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	idx := &Index{
		entries: make(map[string]*Entry, tree.CountNodes(root)),
		root:    root.Name,
	}
	idx.insert(root, root.Name, "")
	return idx, nil
}

func (idx *Index) insert(node *models.FileNode, path, parentPath string) {
	idx.nextID++
	e := &Entry{
		ID:         idx.nextID,
		Name:       node.Name,
		Type:       node.Type,
		Path:       path,
		ParentPath: parentPath,
	}
	if node.IsFolder() {
		e.Children = make([]string, 0, len(node.Children))
		for _, child := range node.Children {
			e.Children = append(e.Children, child.Name)
		}
	} else {
		e.Content = node.Content
	}
	idx.entries[path] = e
	idx.order = append(idx.order, path)
	for _, child := range node.Children {
		idx.insert(child, tree.BuildChildPath(path, child.Name), path)
	}
}

// derive copies the receiver for mutation. The order slice is clipped so an
// append on the copy never writes into the receiver's backing array.
func (idx *Index) derive() *Index {
	return &Index{
		entries:  maps.Clone(idx.entries),
		order:    slices.Clip(idx.order),
		root:     idx.root,
		revision: idx.revision + 1,
		nextID:   idx.nextID,
	}
}

// Add appends node (and its whole subtree) under parentPath. On failure the
// receiver is returned unchanged together with the error.
func (idx *Index) Add(parentPath string, node *models.FileNode) (*Index, error) {
	parent, ok := idx.entries[parentPath]
	if !ok {
		return idx, fmt.Errorf("add under %q: %w", parentPath, ErrNotFound)
	}
	if !parent.IsFolder() {
		return idx, fmt.Errorf("add under %q: %w", parentPath, ErrNotFolder)
	}
	if err := tree.Validate(node); err != nil {
		return idx, fmt.Errorf("add under %q: %w", parentPath, err)
	}
	newPath := tree.BuildChildPath(parentPath, node.Name)
	if _, exists := idx.entries[newPath]; exists || slices.Contains(parent.Children, node.Name) {
		return idx, fmt.Errorf("add %q: %w", newPath, ErrDuplicate)
	}

	next := idx.derive()
	p := *parent
	p.Children = append(slices.Clone(parent.Children), node.Name)
	next.entries[parentPath] = &p
	next.insert(node, newPath, parentPath)
	return next, nil
}

// Update replaces the content of the file at path.
func (idx *Index) Update(path, content string) (*Index, error) {
	e, ok := idx.entries[path]
	if !ok {
		return idx, fmt.Errorf("update %q: %w", path, ErrNotFound)
	}
	if !e.IsFile() {
		return idx, fmt.Errorf("update %q: %w", path, ErrNotFile)
	}

	next := idx.derive()
	u := *e
	u.Content = content
	next.entries[path] = &u
	return next, nil
}

// Delete removes the entry at path. Deleting a folder removes every entry
// below it.
func (idx *Index) Delete(path string) (*Index, error) {
	e, ok := idx.entries[path]
	if !ok {
		return idx, fmt.Errorf("delete %q: %w", path, ErrNotFound)
	}

	next := idx.derive()
	delete(next.entries, path)

	if !e.IsRoot() {
		if parent, ok := next.entries[e.ParentPath]; ok {
			p := *parent
			p.Children = slices.DeleteFunc(slices.Clone(parent.Children), func(name string) bool {
				return name == e.Name
			})
			next.entries[e.ParentPath] = &p
		}
	} else {
		next.root = ""
	}

	if e.IsFolder() {
		for key := range next.entries {
			if tree.IsUnder(key, path) {
				delete(next.entries, key)
			}
		}
	}

	next.order = slices.DeleteFunc(slices.Clone(idx.order), func(key string) bool {
		_, ok := next.entries[key]
		return !ok
	})
	return next, nil
}

// Lookup returns the entry at path.
func (idx *Index) Lookup(path string) (*Entry, bool) {
	e, ok := idx.entries[path]
	return e, ok
}

// Root returns the root entry, or nil if the root was deleted.
func (idx *Index) Root() *Entry {
	if idx.root == "" {
		return nil
	}
	return idx.entries[idx.root]
}

// Len returns the number of entries.
func (idx *Index) Len() int { return len(idx.entries) }

// Revision increases by one on every successful mutation.
func (idx *Index) Revision() uint64 { return idx.revision }

// Paths returns all keys in insertion order.
func (idx *Index) Paths() []string { return slices.Clone(idx.order) }

// Range calls fn for every entry in insertion order until fn returns false.
func (idx *Index) Range(fn func(*Entry) bool) {
	for _, path := range idx.order {
		if !fn(idx.entries[path]) {
			return
		}
	}
}

// Files returns every file entry in insertion order.
func (idx *Index) Files() []*Entry {
	var files []*Entry
	idx.Range(func(e *Entry) bool {
		if e.IsFile() {
			files = append(files, e)
		}
		return true
	})
	return files
}

// Children returns the entries below a folder in storage order.
func (idx *Index) Children(path string) []*Entry {
	e, ok := idx.entries[path]
	if !ok || !e.IsFolder() {
		return nil
	}
	out := make([]*Entry, 0, len(e.Children))
	for _, name := range e.Children {
		if child, ok := idx.entries[tree.BuildChildPath(path, name)]; ok {
			out = append(out, child)
		}
	}
	return out
}

// Tree rebuilds the nested form of the index. It returns nil when the root
// has been deleted.
func (idx *Index) Tree() *models.FileNode {
	root := idx.Root()
	if root == nil {
		return nil
	}
	return idx.node(root)
}

// Subtree rebuilds the nested form below path.
func (idx *Index) Subtree(path string) (*models.FileNode, bool) {
	e, ok := idx.entries[path]
	if !ok {
		return nil, false
	}
	return idx.node(e), true
}

func (idx *Index) node(e *Entry) *models.FileNode {
	n := &models.FileNode{Name: e.Name, Type: e.Type, Content: e.Content}
	for _, child := range idx.Children(e.Path) {
		n.Children = append(n.Children, idx.node(child))
	}
	return n
}

// Check verifies the structural invariants: every non-root entry has a
// present parent, and each folder's child names match the entries that name
// it as parent.
func (idx *Index) Check() error {
	byParent := make(map[string][]string)
	for path, e := range idx.entries {
		if e.Path != path {
			return fmt.Errorf("entry %q stored under %q", e.Path, path)
		}
		if e.IsRoot() {
			continue
		}
		parent, ok := idx.entries[e.ParentPath]
		if !ok {
			return fmt.Errorf("entry %q: parent %q missing", path, e.ParentPath)
		}
		if !parent.IsFolder() {
			return fmt.Errorf("entry %q: parent %q is not a folder", path, e.ParentPath)
		}
		byParent[e.ParentPath] = append(byParent[e.ParentPath], e.Name)
	}
	for path, e := range idx.entries {
		if !e.IsFolder() {
			continue
		}
		got := slices.Sorted(slices.Values(byParent[path]))
		want := slices.Sorted(slices.Values(e.Children))
		if !slices.Equal(got, want) {
			return fmt.Errorf("folder %q: children %v, index has %v", path, want, got)
		}
	}
	if len(idx.order) != len(idx.entries) {
		return fmt.Errorf("order has %d keys, index has %d", len(idx.order), len(idx.entries))
	}
	return nil
}
