// Package protocol defines the API request/response types.
package protocol

import (
	"encoding/json"

	"github.com/fruitsalade/filesurf/pkg/models"
)

// TreeResponse is returned by GET /api/v1/tree
type TreeResponse struct {
	Root     *models.FileNode `json:"root"`
	Revision uint64           `json:"revision"`
}

// IndexEntry is one flattened node in GET /api/v1/index.
type IndexEntry struct {
	ID       uint64          `json:"id"`
	Path     string          `json:"path"`
	Name     string          `json:"name"`
	Type     models.NodeType `json:"type"`
	Parent   string          `json:"parent,omitempty"`
	Children []string        `json:"children,omitempty"`
	Size     int             `json:"size,omitempty"`
}

// IndexResponse is returned by GET /api/v1/index
type IndexResponse struct {
	Revision uint64       `json:"revision"`
	Entries  []IndexEntry `json:"entries"`
}

// ContentResponse is returned by GET /api/v1/content/{path}
type ContentResponse struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
	Revision uint64 `json:"revision"`
}

// UpdateRequest is the body for PUT /api/v1/content/{path}
type UpdateRequest struct {
	Content string `json:"content"`
}

// MutationResponse is returned by successful tree and content writes.
type MutationResponse struct {
	Path     string           `json:"path"`
	Revision uint64           `json:"revision"`
	Node     *models.FileNode `json:"node,omitempty"`
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// SSEEvent represents a server-sent index mutation event.
type SSEEvent struct {
	Type      string          `json:"type"`
	Path      string          `json:"path"`
	NodeType  models.NodeType `json:"node_type,omitempty"`
	Revision  uint64          `json:"revision"`
	Timestamp int64           `json:"timestamp"`
}

// SessionRequest is the body for POST /api/v1/sessions. Width and Height
// accept a number (pixels) or a CSS length string.
type SessionRequest struct {
	Width      json.RawMessage `json:"width,omitempty"`
	Height     json.RawMessage `json:"height,omitempty"`
	Theme      string          `json:"theme,omitempty"`
	PanelWidth int             `json:"panel_width,omitempty"`
}

// PathRequest is the body for select, tab, close and toggle commands.
type PathRequest struct {
	Path string `json:"path"`
}

// ResizeRequest is the body for POST /api/v1/sessions/{id}/resize. Phase is
// "start", "move" or "end"; X is used by "move".
type ResizeRequest struct {
	Phase string `json:"phase"`
	X     int    `json:"x,omitempty"`
}

// EditRequest is the body for POST /api/v1/sessions/{id}/edit
type EditRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Row is one visible tree row.
type Row struct {
	Path     string          `json:"path"`
	Name     string          `json:"name"`
	Display  string          `json:"display"`
	Type     models.NodeType `json:"type"`
	Level    int             `json:"level"`
	Indent   int             `json:"indent"`
	Expanded bool            `json:"expanded,omitempty"`
	Selected bool            `json:"selected,omitempty"`
}

// Tab is one open editor tab.
type Tab struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// EditorState is the content shown by the editor.
type EditorState struct {
	Path     string `json:"path,omitempty"`
	Language string `json:"language,omitempty"`
	Content  string `json:"content"`
	Cursor   int    `json:"cursor"`
	Lines    int    `json:"lines"`
}

// ViewResponse is the rendered state of one session.
type ViewResponse struct {
	SessionID   string      `json:"session_id"`
	Revision    uint64      `json:"revision"`
	Rows        []Row       `json:"rows"`
	Tabs        []Tab       `json:"tabs"`
	Active      string      `json:"active,omitempty"`
	Selected    string      `json:"selected,omitempty"`
	Highlighted string      `json:"highlighted,omitempty"`
	Editor      EditorState `json:"editor"`
	PanelWidth  int         `json:"panel_width"`
	Resizing    bool        `json:"resizing,omitempty"`
	Theme       string      `json:"theme"`
	Width       string      `json:"width"`
	Height      string      `json:"height"`
	Emphasis    *Emphasis   `json:"emphasis,omitempty"`
}

// RPCRequest is a command sent over a session WebSocket.
type RPCRequest struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// RPCError describes a failed command.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Emphasis asks the editor to pulse lines 1..Lines of Path. Active false
// clears it.
type Emphasis struct {
	Path   string `json:"path"`
	Lines  int    `json:"lines,omitempty"`
	Active bool   `json:"active"`
}

// RPCMessage is sent by the server over a session WebSocket. Type is
// "response" for command answers, "view" for pushed updates and "emphasis"
// for editor pulses.
type RPCMessage struct {
	Type     string        `json:"type"`
	ID       any           `json:"id,omitempty"`
	Result   *ViewResponse `json:"result,omitempty"`
	Emphasis *Emphasis     `json:"emphasis,omitempty"`
	Error    *RPCError     `json:"error,omitempty"`
}

// RPC error codes.
const (
	RPCParseError     = -32700
	RPCMethodNotFound = -32601
	RPCInvalidParams  = -32602
	RPCFailed         = -32000
)
