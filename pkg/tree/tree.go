// Package tree provides utilities for working with nested file trees.
package tree

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fruitsalade/filesurf/pkg/models"
)

// Separator joins path segments.
const Separator = "/"

var (
	// ErrInvalidNode is returned for nodes that cannot be placed in an index.
	ErrInvalidNode = errors.New("invalid node")
	// ErrDuplicate is returned when two siblings share a name.
	ErrDuplicate = errors.New("duplicate name")
)

// BuildChildPath constructs a child path from parent + name.
func BuildChildPath(parentPath, name string) string {
	return parentPath + Separator + name
}

// ParentOf returns the parent portion of path, or "" for a single segment.
func ParentOf(path string) string {
	i := strings.LastIndex(path, Separator)
	if i < 0 {
		return ""
	}
	return path[:i]
}

// BaseName returns the last segment of path.
func BaseName(path string) string {
	return path[strings.LastIndex(path, Separator)+1:]
}

// IsUnder reports whether path lies strictly below dir. "a/bc" is not under "a/b".
func IsUnder(path, dir string) bool {
	return strings.HasPrefix(path, dir+Separator)
}

// CountNodes counts all nodes in a tree.
func CountNodes(root *models.FileNode) int {
	if root == nil {
		return 0
	}
	count := 1
	for _, child := range root.Children {
		count += CountNodes(child)
	}
	return count
}

// Find resolves a slash path whose first segment is the root's name.
func Find(root *models.FileNode, path string) *models.FileNode {
	if root == nil {
		return nil
	}
	segs := strings.Split(path, Separator)
	if segs[0] != root.Name {
		return nil
	}
	node := root
	for _, seg := range segs[1:] {
		var next *models.FileNode
		for _, child := range node.Children {
			if child.Name == seg {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		node = next
	}
	return node
}

// ValidateName checks that a name can be used as a path segment.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidNode)
	}
	if strings.Contains(name, Separator) {
		return fmt.Errorf("%w: name %q contains %q", ErrInvalidNode, name, Separator)
	}
	return nil
}

// Validate checks the whole subtree: names, types, file nodes without
// children and unique sibling names.
func Validate(root *models.FileNode) error {
	if root == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidNode)
	}
	if err := ValidateName(root.Name); err != nil {
		return err
	}
	if !root.Type.Valid() {
		return fmt.Errorf("%w: %q has unknown type %q", ErrInvalidNode, root.Name, root.Type)
	}
	if root.Type == models.TypeFile && len(root.Children) > 0 {
		return fmt.Errorf("%w: file %q has children", ErrInvalidNode, root.Name)
	}
	seen := make(map[string]struct{}, len(root.Children))
	for _, child := range root.Children {
		if child == nil {
			return fmt.Errorf("%w: nil child in %q", ErrInvalidNode, root.Name)
		}
		if _, dup := seen[child.Name]; dup {
			return fmt.Errorf("%w: %q in %q", ErrDuplicate, child.Name, root.Name)
		}
		seen[child.Name] = struct{}{}
		if err := Validate(child); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads a JSON tree and validates it.
func Decode(r io.Reader) (*models.FileNode, error) {
	var root models.FileNode
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	if err := Validate(&root); err != nil {
		return nil, err
	}
	return &root, nil
}
