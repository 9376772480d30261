package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fruitsalade/filesurf/internal/editor"
	"github.com/fruitsalade/filesurf/internal/explorer"
	"github.com/fruitsalade/filesurf/internal/logging"
	"github.com/fruitsalade/filesurf/internal/metrics"
	"github.com/fruitsalade/filesurf/internal/pathindex"
	"github.com/fruitsalade/filesurf/pkg/protocol"
)

var (
	errSessionNotFound = errors.New("session not found")
	errUnknownCommand  = errors.New("unknown command")
	errInvalidParams   = errors.New("invalid params")
)

// commandMethods maps the HTTP command segment to its RPC method.
var commandMethods = map[string]string{
	"select": "select",
	"tab":    "changeTab",
	"close":  "closeTab",
	"toggle": "toggle",
	"resize": "resize",
	"edit":   "edit",
	"theme":  "theme",
}

type session struct {
	id       string
	explorer *explorer.Explorer
	widget   *remoteWidget
	created  time.Time
}

func (sess *session) close() {
	sess.explorer.Unmount()
}

func (sess *session) view() protocol.ViewResponse {
	v := toView(sess.id, sess.explorer.View())
	if e, ok := sess.widget.Emphasis(); ok {
		v.Emphasis = &e
	}
	return v
}

func (s *Server) sessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Server) lookupSession(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errSessionNotFound, id)
	}
	return sess, nil
}

// openSession mounts a new explorer configured from req.
func (s *Server) openSession(req protocol.SessionRequest) (*session, error) {
	opts := s.defaults
	if len(req.Width) > 0 {
		if err := json.Unmarshal(req.Width, &opts.Width); err != nil {
			return nil, fmt.Errorf("%w: width: %v", errInvalidParams, err)
		}
	}
	if len(req.Height) > 0 {
		if err := json.Unmarshal(req.Height, &opts.Height); err != nil {
			return nil, fmt.Errorf("%w: height: %v", errInvalidParams, err)
		}
	}
	if req.Theme != "" {
		theme, err := explorer.ParseTheme(req.Theme)
		if err != nil {
			return nil, err
		}
		opts.Theme = theme
	}
	if req.PanelWidth != 0 {
		opts.PanelWidth = req.PanelWidth
	}

	widget := newRemoteWidget()
	sess := &session{
		id:       uuid.NewString(),
		explorer: explorer.New(s.store, widget, opts),
		widget:   widget,
		created:  time.Now(),
	}
	// Sessions outlive the request that created them.
	if err := sess.explorer.Mount(context.Background()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.SetSessionsActive(n)
	return sess, nil
}

func (s *Server) closeSession(id string) (*session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errSessionNotFound, id)
	}
	sess.close()
	metrics.SetSessionsActive(n)
	return sess, nil
}

// apply runs one command against a session.
func (s *Server) apply(sess *session, method string, params json.RawMessage) error {
	ex := sess.explorer
	switch method {
	case "view":
		return nil

	case "select", "toggle", "changeTab", "closeTab":
		var p protocol.PathRequest
		if err := decodeParams(params, &p); err != nil {
			return err
		}
		return s.applyPath(ex, method, p.Path)

	case "resize":
		var p protocol.ResizeRequest
		if err := decodeParams(params, &p); err != nil {
			return err
		}
		switch p.Phase {
		case "start":
			ex.BeginResize()
		case "move":
			ex.ResizeTo(p.X)
		case "end":
			ex.EndResize()
		default:
			return fmt.Errorf("%w: resize phase %q", errInvalidParams, p.Phase)
		}
		return nil

	case "edit":
		var p protocol.EditRequest
		if err := decodeParams(params, &p); err != nil {
			return err
		}
		return ex.Edit(p.Path, p.Content)

	case "theme":
		var p struct {
			Theme string `json:"theme"`
		}
		if err := decodeParams(params, &p); err != nil {
			return err
		}
		theme, err := explorer.ParseTheme(p.Theme)
		if err != nil {
			return err
		}
		ex.SetTheme(theme)
		return nil
	}
	return fmt.Errorf("%w: %s", errUnknownCommand, method)
}

func (s *Server) applyPath(ex *explorer.Explorer, method, path string) error {
	switch method {
	case "changeTab":
		return ex.ChangeTab(path)
	case "closeTab":
		if !ex.CloseTab(path) {
			return fmt.Errorf("%w: %s", editor.ErrTabNotOpen, path)
		}
		return nil
	}

	e, ok := s.store.Snapshot().Lookup(path)
	if !ok {
		return fmt.Errorf("%w: %s", pathindex.ErrNotFound, path)
	}
	if method == "toggle" {
		if !e.IsFolder() {
			return fmt.Errorf("%w: %s", pathindex.ErrNotFolder, path)
		}
		ex.Toggle(path)
		return nil
	}
	ex.Select(path)
	return nil
}

func decodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return fmt.Errorf("%w: missing params", errInvalidParams)
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

// ─── Handlers ───────────────────────────────────────────────────────────────

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req protocol.SessionRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			s.sendError(w, r, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}
	}

	sess, err := s.openSession(req)
	if err != nil {
		s.sendStoreError(w, r, err)
		return
	}
	logging.WithContext(r.Context()).Info("session opened", zap.String("session", sess.id))
	s.sendJSON(w, http.StatusCreated, sess.view())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.lookupSession(r.PathValue("id"))
	if err != nil {
		s.sendStoreError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, sess.view())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.closeSession(id)
	if err != nil {
		s.sendStoreError(w, r, err)
		return
	}
	logging.WithContext(r.Context()).Info("session closed",
		zap.String("session", id),
		zap.Duration("age", time.Since(sess.created)))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionCommand(w http.ResponseWriter, r *http.Request) {
	sess, err := s.lookupSession(r.PathValue("id"))
	if err != nil {
		s.sendStoreError(w, r, err)
		return
	}
	method, ok := commandMethods[r.PathValue("command")]
	if !ok {
		s.sendStoreError(w, r, fmt.Errorf("%w: %s", errUnknownCommand, r.PathValue("command")))
		return
	}

	var params json.RawMessage
	if err := decodeBody(w, r, &params); err != nil {
		s.sendError(w, r, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if err := s.apply(sess, method, params); err != nil {
		s.sendStoreError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, sess.view())
}

// toView converts an explorer view to its wire form.
func toView(id string, v explorer.View) protocol.ViewResponse {
	resp := protocol.ViewResponse{
		SessionID:   id,
		Revision:    v.Revision,
		Rows:        make([]protocol.Row, 0, len(v.Rows)),
		Tabs:        make([]protocol.Tab, 0, len(v.Tabs)),
		Active:      v.Active,
		Selected:    v.Selected,
		Highlighted: v.Highlighted,
		Editor: protocol.EditorState{
			Path:     v.Editor.Path,
			Language: v.Editor.Language,
			Content:  v.Editor.Content,
			Cursor:   v.Editor.Cursor,
			Lines:    v.Editor.Lines,
		},
		PanelWidth: v.PanelWidth,
		Resizing:   v.Resizing,
		Theme:      string(v.Theme),
		Width:      string(v.Width),
		Height:     string(v.Height),
	}
	for _, r := range v.Rows {
		resp.Rows = append(resp.Rows, protocol.Row{
			Path:     r.Path,
			Name:     r.Name,
			Display:  r.Display,
			Type:     r.Type,
			Level:    r.Level,
			Indent:   r.Indent,
			Expanded: r.Expanded,
			Selected: r.Selected,
		})
	}
	for _, t := range v.Tabs {
		resp.Tabs = append(resp.Tabs, protocol.Tab{Path: t.Path, Name: t.Name})
	}
	return resp
}
