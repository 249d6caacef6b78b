package socket

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/project-chip/certification-tool-backend-sub001/metrics"
)

// Role identifies the purpose of one operator connection.
type Role string

const (
	RoleMain             Role = "main"
	RoleVideo            Role = "video"
	RoleWebRTCPeer       Role = "webrtc_peer"
	RoleWebRTCController Role = "webrtc_controller"
)

// ErrPeerConnected is returned when a second WebRTC peer tries to connect
// while the peer slot is occupied.
var ErrPeerConnected = errors.New("peer already connected")

// Conn is the subset of *websocket.Conn the hub needs. Tests substitute
// in-memory fakes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Connection is one attached client. All writes to the underlying socket
// go through Send/SendBinary, which serialize on writeMu.
type Connection struct {
	ID   string
	Role Role

	conn    Conn
	writeMu sync.Mutex
}

// Send marshals v and writes it as a text frame.
func (c *Connection) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// SendBinary writes raw bytes as a binary frame.
func (c *Connection) SendBinary(data []byte) error {
	return c.SendRaw(websocket.BinaryMessage, data)
}

// SendRaw writes a pre-encoded frame of the given websocket frame type.
func (c *Connection) SendRaw(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// HandlerFunc processes the payload of one typed message from a client.
type HandlerFunc func(payload json.RawMessage, sender *Connection)

// HubConfig carries hub dependencies.
type HubConfig struct {
	Log log.Logger
}

// Hub tracks operator connections, dispatches inbound messages to
// registered handlers and broadcasts state updates to main clients.
type Hub struct {
	config HubConfig

	mu         sync.RWMutex
	mains      []*Connection
	videos     []*Connection
	peer       *Connection
	controller *Connection
	handlers   map[string]HandlerFunc
}

// NewHub creates an empty hub.
func NewHub(cfg HubConfig) *Hub {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Hub{
		config:   cfg,
		handlers: make(map[string]HandlerFunc),
	}
}

// Connect registers a client socket under the given role. A second WebRTC
// controller displaces the previous one; a second WebRTC peer is rejected
// and its socket closed.
func (h *Hub) Connect(conn Conn, role Role) (*Connection, error) {
	c := &Connection{ID: uuid.NewString(), Role: role, conn: conn}

	h.mu.Lock()
	switch role {
	case RoleMain:
		h.mains = append(h.mains, c)
	case RoleVideo:
		h.videos = append(h.videos, c)
	case RoleWebRTCController:
		if prev := h.controller; prev != nil {
			h.config.Log.Info("Displacing previous WebRTC controller", "id", prev.ID)
			prev.conn.Close()
			metrics.RecordConnection(string(prev.Role), -1)
		}
		h.controller = c
	case RoleWebRTCPeer:
		if h.peer != nil {
			h.mu.Unlock()
			closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Peer already connected")
			conn.WriteMessage(websocket.CloseMessage, closeMsg)
			conn.Close()
			return nil, ErrPeerConnected
		}
		h.peer = c
	default:
		h.mu.Unlock()
		conn.Close()
		return nil, errors.New("unknown connection role " + string(role))
	}
	h.mu.Unlock()

	metrics.RecordConnection(string(role), 1)
	h.config.Log.Info("Client connected", "id", c.ID, "role", role)
	return c, nil
}

// Disconnect removes a connection from the hub and closes its socket.
// Disconnecting an already removed connection is a no-op.
func (h *Hub) Disconnect(c *Connection) {
	h.mu.Lock()
	removed := false
	switch c.Role {
	case RoleMain:
		h.mains, removed = removeConnection(h.mains, c)
	case RoleVideo:
		h.videos, removed = removeConnection(h.videos, c)
	case RoleWebRTCController:
		if h.controller == c {
			h.controller = nil
			removed = true
		}
	case RoleWebRTCPeer:
		if h.peer == c {
			h.peer = nil
			removed = true
		}
	}
	h.mu.Unlock()

	if !removed {
		return
	}
	c.conn.Close()
	metrics.RecordConnection(string(c.Role), -1)
	h.config.Log.Info("Client disconnected", "id", c.ID, "role", c.Role)
}

func removeConnection(conns []*Connection, c *Connection) ([]*Connection, bool) {
	for i, candidate := range conns {
		if candidate == c {
			return append(conns[:i], conns[i+1:]...), true
		}
	}
	return conns, false
}

// RegisterHandler binds a handler to a message type. Registering twice for
// the same type replaces the previous handler.
func (h *Hub) RegisterHandler(messageType string, fn HandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[messageType] = fn
}

// Broadcast sends a message to every main client. A send failure on one
// connection does not prevent delivery to the others; failed connections
// are dropped from the hub.
func (h *Hub) Broadcast(messageType string, payload any) {
	env, err := NewEnvelope(messageType, payload)
	if err != nil {
		h.config.Log.Error("Failed to encode broadcast", "type", messageType, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Connection, len(h.mains))
	copy(targets, h.mains)
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(env); err != nil {
			h.config.Log.Warn("Dropping client after failed send", "id", c.ID, "error", err)
			h.Disconnect(c)
		}
	}
}

// BroadcastUpdate pushes one execution state transition to main clients.
// Unknown nodes are ignored.
func (h *Hub) BroadcastUpdate(node any) {
	update := UpdateForNode(node)
	if update == nil {
		return
	}
	h.Broadcast(MessageTestUpdate, update)
}

// HandleMessage parses one inbound frame and dispatches it. Malformed
// frames earn an invalid_message reply to the sender only.
func (h *Hub) HandleMessage(c *Connection, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.sendInvalid(c, invalidJSONError)
		return
	}
	if env.Type == "" {
		h.sendInvalid(c, missingTypeError)
		return
	}

	h.mu.RLock()
	handler := h.handlers[env.Type]
	h.mu.RUnlock()

	if handler == nil {
		h.sendInvalid(c, noHandlerError)
		return
	}
	handler(env.Payload, c)
}

func (h *Hub) sendInvalid(c *Connection, reason string) {
	env, err := NewEnvelope(MessageInvalidMessage, reason)
	if err != nil {
		return
	}
	if err := c.Send(env); err != nil {
		h.config.Log.Warn("Failed to send invalid_message reply", "id", c.ID, "error", err)
	}
}

// ReadLoop pumps frames from one connection until it fails, then removes
// the connection. WebRTC connections relay frames to their counterpart
// instead of the handler table.
func (h *Hub) ReadLoop(c *Connection) {
	defer h.Disconnect(c)
	for {
		frameType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		switch c.Role {
		case RoleWebRTCPeer, RoleWebRTCController:
			h.relaySignal(c, frameType, data)
		default:
			h.HandleMessage(c, data)
		}
	}
}
