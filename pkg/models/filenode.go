// Package models contains the data types shared by the server, client and view packages.
package models

// NodeType tags a FileNode as a file or a folder.
type NodeType string

const (
	TypeFile   NodeType = "file"
	TypeFolder NodeType = "folder"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	return t == TypeFile || t == TypeFolder
}

// FileNode is a file or folder in the input tree. Folders without a
// children field are treated as empty.
type FileNode struct {
	Name     string      `json:"name"`
	Type     NodeType    `json:"type"`
	Content  string      `json:"content,omitempty"`
	Children []*FileNode `json:"children,omitempty"`
}

// IsFolder reports whether the node is a folder.
func (n *FileNode) IsFolder() bool {
	return n != nil && n.Type == TypeFolder
}

// IsFile reports whether the node is a file.
func (n *FileNode) IsFile() bool {
	return n != nil && n.Type == TypeFile
}

// File returns a file node with the given content.
func File(name, content string) *FileNode {
	return &FileNode{Name: name, Type: TypeFile, Content: content}
}

// Folder returns a folder node holding children.
func Folder(name string, children ...*FileNode) *FileNode {
	return &FileNode{Name: name, Type: TypeFolder, Children: children}
}
