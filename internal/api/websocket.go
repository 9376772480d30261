package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fruitsalade/filesurf/internal/explorer"
	"github.com/fruitsalade/filesurf/internal/logging"
	"github.com/fruitsalade/filesurf/internal/metrics"
	"github.com/fruitsalade/filesurf/pkg/protocol"
)

const writeWait = 5 * time.Second

// viewQueue holds the newest view not yet written to one client. Pushing
// never blocks; an undelivered view is replaced by a newer one.
type viewQueue struct {
	ch chan explorer.View
}

func newViewQueue() *viewQueue {
	return &viewQueue{ch: make(chan explorer.View, 1)}
}

func (q *viewQueue) push(v explorer.View) {
	for {
		select {
		case q.ch <- v:
			return
		default:
		}
		select {
		case <-q.ch:
		default:
		}
	}
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(msg protocol.RPCMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// handleWebSocket streams view and emphasis updates for one session and
// accepts commands as JSON-RPC style requests.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, err := s.lookupSession(r.PathValue("id"))
	if err != nil {
		s.sendStoreError(w, r, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	log := logging.WithContext(r.Context()).With(zap.String("session", sess.id))
	client := &wsClient{conn: conn}

	metrics.AddWSConnections(1)
	defer metrics.AddWSConnections(-1)

	// Listeners run on the goroutine that mutated the store, so views are
	// handed to a writer instead of being written inline.
	views := newViewQueue()
	cancelView := sess.explorer.OnChange(views.push)
	emphasis, cancelEmphasis := sess.widget.subscribe()
	done := make(chan struct{})

	defer func() {
		cancelView()
		cancelEmphasis()
		close(done)
		conn.Close()
	}()

	go func() {
		for {
			select {
			case v := <-views.ch:
				view := toView(sess.id, v)
				if err := client.send(protocol.RPCMessage{Type: "view", Result: &view}); err != nil {
					log.Debug("view push failed", zap.Error(err))
				}
			case <-done:
				return
			}
		}
	}()

	// The emphasis channel closes when the session is unmounted, which
	// also ends the read loop below.
	go func() {
		for e := range emphasis {
			if err := client.send(protocol.RPCMessage{Type: "emphasis", Emphasis: &e}); err != nil {
				log.Debug("emphasis push failed", zap.Error(err))
			}
		}
		conn.Close()
	}()

	view := sess.view()
	if err := client.send(protocol.RPCMessage{Type: "view", Result: &view}); err != nil {
		return
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket closed", zap.Error(err))
			}
			return
		}
		if err := client.send(s.handleRPC(sess, msg)); err != nil {
			return
		}
	}
}

func (s *Server) handleRPC(sess *session, msg []byte) protocol.RPCMessage {
	var req protocol.RPCRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return protocol.RPCMessage{
			Type:  "response",
			Error: &protocol.RPCError{Code: protocol.RPCParseError, Message: err.Error()},
		}
	}
	if err := s.apply(sess, req.Method, req.Params); err != nil {
		return protocol.RPCMessage{
			Type:  "response",
			ID:    req.ID,
			Error: &protocol.RPCError{Code: rpcCode(err), Message: err.Error()},
		}
	}
	view := sess.view()
	return protocol.RPCMessage{Type: "response", ID: req.ID, Result: &view}
}

func rpcCode(err error) int {
	switch {
	case errors.Is(err, errUnknownCommand):
		return protocol.RPCMethodNotFound
	case errors.Is(err, errInvalidParams):
		return protocol.RPCInvalidParams
	default:
		return protocol.RPCFailed
	}
}
