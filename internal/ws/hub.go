package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ptyhost/ptyhost/internal/pty"
)

// MessageType represents the type of WebSocket message.
type MessageType string

const (
	// Client -> Server message types
	MessageTypeStdin  MessageType = "stdin"
	MessageTypeResize MessageType = "resize"
	MessageTypeSignal MessageType = "signal"
	MessageTypePause  MessageType = "pause"
	MessageTypeResume MessageType = "resume"
	MessageTypePing   MessageType = "ping"

	// Server -> Client message types
	MessageTypeHistory MessageType = "history"
	MessageTypeStdout  MessageType = "stdout"
	MessageTypeExit    MessageType = "exit"
	MessageTypePong    MessageType = "pong"
	MessageTypeError   MessageType = "error"
)

// clientBuffer is how many messages a client may fall behind before it
// is dropped.
const clientBuffer = 256

// Message represents a WebSocket message.
type Message struct {
	Type   MessageType `json:"type"`
	Data   string      `json:"data,omitempty"`
	Cols   int         `json:"cols,omitempty"`
	Rows   int         `json:"rows,omitempty"`
	Signal string      `json:"signal,omitempty"`

	// Exit details. Exactly one of Code and ExitSignal is set.
	Code       *int   `json:"code,omitempty"`
	ExitSignal *int   `json:"exit_signal,omitempty"`
	Status     string `json:"status,omitempty"`

	Error string `json:"error,omitempty"`
}

// exitMessage describes how a session's process ended.
func exitMessage(st pty.ExitStatus) *Message {
	msg := &Message{Type: MessageTypeExit, Status: st.String()}
	if st.Signaled() {
		sig := int(st.Signal)
		msg.ExitSignal = &sig
	} else {
		code := st.Code
		msg.Code = &code
	}
	return msg
}

// Client is one WebSocket connection attached to a session.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient creates a new WebSocket client.
func NewClient(conn *websocket.Conn, sessionID string) *Client {
	return &Client{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, clientBuffer),
	}
}

// Send queues data for the client. A client whose queue is full is closed.
func (c *Client) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.closeLocked()
		return false
	}
}

// SendMessage marshals msg and queues it.
func (c *Client) SendMessage(msg *Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	return c.Send(data)
}

// Close closes the client's queue. The write pump then closes the socket.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// IsClosed returns true if the client is closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SessionID returns the session ID associated with this client.
func (c *Client) SessionID() string {
	return c.sessionID
}

// SendChan returns the send channel for the client.
func (c *Client) SendChan() <-chan []byte {
	return c.send
}

// Hub fans one session's output out to its clients.
type Hub struct {
	sessionID string

	mu      sync.RWMutex
	clients map[*Client]struct{}
	exit    []byte

	// pending holds the start of a UTF-8 sequence split across reads.
	outMu   sync.Mutex
	pending []byte
}

// NewHub creates a new Hub for the given session.
func NewHub(sessionID string) *Hub {
	return &Hub{
		sessionID: sessionID,
		clients:   make(map[*Client]struct{}),
	}
}

// SessionID returns the session ID for this hub.
func (h *Hub) SessionID() string {
	return h.sessionID
}

// Register adds a client. When the session has already exited the
// client is sent the exit message.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
	if h.exit != nil {
		client.Send(h.exit)
	}
}

// Unregister removes a client from the hub and closes it.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	client.Close()
}

// Broadcast sends data to all connected clients.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.Send(data)
	}
}

// BroadcastMessage sends a Message to all connected clients.
func (h *Hub) BroadcastMessage(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// BroadcastOutput sends terminal output as a stdout message. A trailing
// incomplete UTF-8 sequence is held back until the next call.
func (h *Hub) BroadcastOutput(data []byte) error {
	h.outMu.Lock()
	buf := append(h.pending, data...)
	n := completeUTF8(buf)
	h.pending = append([]byte(nil), buf[n:]...)
	h.outMu.Unlock()

	if n == 0 {
		return nil
	}
	return h.BroadcastMessage(&Message{Type: MessageTypeStdout, Data: string(buf[:n])})
}

// BroadcastExit flushes held output, sends the exit message and keeps it
// for clients that attach later.
func (h *Hub) BroadcastExit(st pty.ExitStatus) error {
	h.outMu.Lock()
	rest := h.pending
	h.pending = nil
	h.outMu.Unlock()
	if len(rest) > 0 {
		if err := h.BroadcastMessage(&Message{Type: MessageTypeStdout, Data: string(rest)}); err != nil {
			return err
		}
	}

	data, err := json.Marshal(exitMessage(st))
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exit = data
	for client := range h.clients {
		client.Send(data)
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close closes all client connections.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}

// HubManager manages multiple hubs for different sessions.
type HubManager struct {
	hubs map[string]*Hub
	mu   sync.RWMutex
}

// NewHubManager creates a new HubManager.
func NewHubManager() *HubManager {
	return &HubManager{
		hubs: make(map[string]*Hub),
	}
}

// GetOrCreate returns an existing hub or creates a new one for the session.
func (m *HubManager) GetOrCreate(sessionID string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[sessionID]; ok {
		return hub
	}
	hub := NewHub(sessionID)
	m.hubs[sessionID] = hub
	return hub
}

// Get returns the hub for the session, or nil if not found.
func (m *HubManager) Get(sessionID string) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[sessionID]
}

// Remove closes and forgets the hub for the session.
func (m *HubManager) Remove(sessionID string) {
	m.mu.Lock()
	hub, ok := m.hubs[sessionID]
	delete(m.hubs, sessionID)
	m.mu.Unlock()

	if ok {
		hub.Close()
	}
}

// Close closes all hubs.
func (m *HubManager) Close() {
	m.mu.Lock()
	hubs := m.hubs
	m.hubs = make(map[string]*Hub)
	m.mu.Unlock()

	for _, hub := range hubs {
		hub.Close()
	}
}
