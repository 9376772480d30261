// Package api provides the HTTP server and handlers.
package api

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fruitsalade/filesurf/internal/editor"
	"github.com/fruitsalade/filesurf/internal/events"
	"github.com/fruitsalade/filesurf/internal/explorer"
	"github.com/fruitsalade/filesurf/internal/logging"
	"github.com/fruitsalade/filesurf/internal/metrics"
	"github.com/fruitsalade/filesurf/internal/pathindex"
	"github.com/fruitsalade/filesurf/pkg/models"
	"github.com/fruitsalade/filesurf/pkg/protocol"
	"github.com/fruitsalade/filesurf/pkg/tree"
)

// Pool gzip writers to reduce allocations on the tree endpoint.
var gzipPool = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

// Limit request bodies; content is held in memory.
const maxBodySize = 8 << 20

// Server is the HTTP server.
type Server struct {
	store       *pathindex.Store
	broadcaster *events.Broadcaster
	defaults    explorer.Options
	upgrader    websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewServer creates a server over store. defaults configure every session
// mounted through the API.
func NewServer(store *pathindex.Store, broadcaster *events.Broadcaster, defaults explorer.Options) *Server {
	return &Server{
		store:       store,
		broadcaster: broadcaster,
		defaults:    defaults,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
	}
}

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Index
	mux.HandleFunc("GET /api/v1/tree", s.handleTree)
	mux.HandleFunc("GET /api/v1/index", s.handleIndex)
	mux.HandleFunc("POST /api/v1/tree/{path...}", s.handleAdd)
	mux.HandleFunc("DELETE /api/v1/tree/{path...}", s.handleDelete)
	mux.HandleFunc("GET /api/v1/content/{path...}", s.handleContent)
	mux.HandleFunc("PUT /api/v1/content/{path...}", s.handleUpdate)

	// SSE
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)

	// Sessions
	mux.HandleFunc("POST /api/v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/{command}", s.handleSessionCommand)
	mux.HandleFunc("GET /api/v1/sessions/{id}/ws", s.handleWebSocket)

	return metrics.Middleware(logging.Middleware(mux))
}

// Close unmounts every session.
func (s *Server) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
	metrics.SetSessionsActive(0)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"entries":  s.store.Snapshot().Len(),
		"sessions": s.sessionCount(),
	})
}

// ─── SSE Events ─────────────────────────────────────────────────────────────

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, r, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// ─── Tree ───────────────────────────────────────────────────────────────────

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	idx := s.store.Snapshot()
	resp := protocol.TreeResponse{Root: idx.Tree(), Revision: idx.Revision()}

	if acceptsGzip(r) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzipPool.Get().(*gzip.Writer)
		gw.Reset(w)
		json.NewEncoder(gw).Encode(resp)
		gw.Close()
		gzipPool.Put(gw)
		return
	}

	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	idx := s.store.Snapshot()
	resp := protocol.IndexResponse{
		Revision: idx.Revision(),
		Entries:  make([]protocol.IndexEntry, 0, idx.Len()),
	}
	idx.Range(func(e *pathindex.Entry) bool {
		resp.Entries = append(resp.Entries, protocol.IndexEntry{
			ID:       e.ID,
			Path:     e.Path,
			Name:     e.Name,
			Type:     e.Type,
			Parent:   e.ParentPath,
			Children: e.Children,
			Size:     len(e.Content),
		})
		return true
	})
	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	parent := r.PathValue("path")

	var node models.FileNode
	if err := decodeBody(w, r, &node); err != nil {
		s.sendError(w, r, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if err := s.store.AddFile(parent, &node); err != nil {
		s.sendStoreError(w, r, err)
		return
	}

	idx := s.store.Snapshot()
	path := tree.BuildChildPath(parent, node.Name)
	created, _ := idx.Subtree(path)
	s.sendJSON(w, http.StatusCreated, protocol.MutationResponse{
		Path:     path,
		Revision: idx.Revision(),
		Node:     created,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if err := s.store.DeleteFile(path); err != nil {
		s.sendStoreError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, protocol.MutationResponse{
		Path:     path,
		Revision: s.store.Snapshot().Revision(),
	})
}

// ─── Content ────────────────────────────────────────────────────────────────

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	idx := s.store.Snapshot()

	e, ok := idx.Lookup(path)
	if !ok {
		s.sendStoreError(w, r, fmt.Errorf("%w: %s", pathindex.ErrNotFound, path))
		return
	}
	if !e.IsFile() {
		s.sendStoreError(w, r, fmt.Errorf("%w: %s", pathindex.ErrNotFile, path))
		return
	}

	s.sendJSON(w, http.StatusOK, protocol.ContentResponse{
		Path:     e.Path,
		Content:  e.Content,
		Language: editor.Language(e.Name),
		Revision: idx.Revision(),
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")

	var req protocol.UpdateRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.sendError(w, r, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if err := s.store.UpdateFile(path, req.Content); err != nil {
		s.sendStoreError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, protocol.MutationResponse{
		Path:     path,
		Revision: s.store.Snapshot().Revision(),
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, pathindex.ErrNotFound), errors.Is(err, errSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, pathindex.ErrNotFolder), errors.Is(err, pathindex.ErrNotFile),
		errors.Is(err, pathindex.ErrDuplicate), errors.Is(err, editor.ErrTabNotOpen):
		return http.StatusConflict
	case errors.Is(err, pathindex.ErrInvalidNode), errors.Is(err, explorer.ErrInvalidTheme),
		errors.Is(err, errInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, errUnknownCommand):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, editor.ErrTabNotOpen):
		return "tab-not-open"
	case errors.Is(err, errSessionNotFound):
		return "session-not-found"
	case errors.Is(err, errInvalidParams), errors.Is(err, explorer.ErrInvalidTheme):
		return "invalid-params"
	case errors.Is(err, errUnknownCommand):
		return "unknown-command"
	}
	if k := pathindex.Kind(err); k != "unknown" {
		return k
	}
	return ""
}

func (s *Server) sendStoreError(w http.ResponseWriter, r *http.Request, err error) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		logging.WithContext(r.Context()).Error("request failed", zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		Kind:      errorKind(err),
		RequestID: logging.GetRequestID(r.Context()),
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, r *http.Request, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: logging.GetRequestID(r.Context()),
	})
}
