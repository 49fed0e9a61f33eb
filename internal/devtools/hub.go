package devtools

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/IniZio/reim/internal/value"
)

// ErrUnknownInstance is returned by Hub.Jump for an instance that has not
// announced itself on any open session.
var ErrUnknownInstance = errors.New("devtools: unknown instance")

// Hub is the debugger side of the WebSocket transport. It accepts client
// sessions, keeps the latest frame of every instance and sends jump
// commands back to the session that owns an instance.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	onFrame  func(sessionID string, msg Message)

	mu       sync.Mutex
	sessions map[string]*hubSession
	owners   map[string]string // instance ID -> session ID
	latest   map[string]Message
}

type hubSession struct {
	id      string
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the hub logger. Default: slog.Default().
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = l
	}
}

// OnFrame registers a callback run for every frame received. It runs on
// the session's read goroutine.
func OnFrame(fn func(sessionID string, msg Message)) HubOption {
	return func(h *Hub) {
		h.onFrame = fn
	}
}

// NewHub creates a hub with no sessions.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:   slog.Default(),
		sessions: make(map[string]*hubSession),
		owners:   make(map[string]string),
		latest:   make(map[string]Message),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and serves one client session until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade devtools websocket", "error", err)
		return
	}
	defer ws.Close()

	sess := &hubSession{id: uuid.New().String(), ws: ws}
	h.mu.Lock()
	h.sessions[sess.id] = sess
	h.mu.Unlock()
	h.logger.Info("devtools session opened", "session", sess.id, "remote", r.RemoteAddr)

	defer h.dropSession(sess.id)

	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			h.logger.Info("devtools session closed", "session", sess.id, "error", err.Error())
			return
		}
		h.receive(sess.id, msg)
	}
}

func (h *Hub) receive(sessionID string, msg Message) {
	switch msg.Type {
	case TypeInit, TypeAction:
		h.mu.Lock()
		h.owners[msg.ID] = sessionID
		h.latest[msg.ID] = msg
		h.mu.Unlock()
		h.logger.Debug("devtools frame", "session", sessionID, "type", msg.Type, "id", msg.ID, "action", msg.Action)
	default:
		h.logger.Warn("devtools frame ignored", "session", sessionID, "type", msg.Type)
	}

	if h.onFrame != nil {
		h.onFrame(sessionID, msg)
	}
}

func (h *Hub) dropSession(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sessions, id)
	for instance, owner := range h.owners {
		if owner == id {
			delete(h.owners, instance)
		}
	}
}

// Instances returns the IDs of instances on open sessions, sorted.
func (h *Hub) Instances() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.owners))
	for id := range h.owners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Latest returns the most recent frame received for an instance. Frames
// of disconnected instances are kept.
func (h *Hub) Latest(id string) (Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg, ok := h.latest[id]
	return msg, ok
}

// Jump sends a jump command for instance id to the session that owns it.
func (h *Hub) Jump(id, kind string, state value.Value) error {
	msg, err := JumpCommand(id, kind, state)
	if err != nil {
		return err
	}
	return h.send(id, msg)
}

// JumpToSeq asks instance id to return to the state it committed at seq.
func (h *Hub) JumpToSeq(id string, seq int64) error {
	return h.send(id, Message{
		Type:    TypeDispatch,
		ID:      id,
		Payload: &Payload{Type: JumpToAction, ActionID: seq},
	})
}

func (h *Hub) send(id string, msg Message) error {
	h.mu.Lock()
	sess, ok := h.sessions[h.owners[id]]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownInstance, id)
	}

	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()

	if err := sess.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := sess.ws.WriteJSON(msg); err != nil {
		h.logger.Warn("failed to write devtools command", "session", sess.id, "error", err)
		return err
	}
	return nil
}
