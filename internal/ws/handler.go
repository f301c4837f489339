package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ptyhost/ptyhost/internal/model"
	"github.com/ptyhost/ptyhost/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

// Terminals is the session surface a WebSocket client drives.
type Terminals interface {
	GetHistory(id string) ([]byte, error)
	Write(id string, data []byte) (int, error)
	Resize(id string, cols, rows int) error
	Signal(id string, sig syscall.Signal) error
	Pause(id string) error
	Resume(id string) error
}

// Handler handles WebSocket connections for terminal sessions.
type Handler struct {
	hubs      *HubManager
	terminals Terminals
	upgrader  websocket.Upgrader
	log       *logrus.Entry
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hubs *HubManager, terminals Terminals) *Handler {
	return &Handler{
		hubs:      hubs,
		terminals: terminals,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: logrus.WithField("component", "ws"),
	}
}

// HandleConnection upgrades the request and attaches the client to the
// session. New clients receive the buffered history first.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request, sessionID string) error {
	history, err := h.terminals.GetHistory(sessionID)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return nil
		}
		return err
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(conn, sessionID)
	if len(history) > 0 {
		client.SendMessage(&Message{Type: MessageTypeHistory, Data: string(history[:completeUTF8(history)])})
	}

	hub := h.hubs.GetOrCreate(sessionID)
	hub.Register(client)

	go h.writePump(client)
	go h.readPump(client, hub)
	return nil
}

// handleMessage processes one message from a client.
func (h *Handler) handleMessage(client *Client, msg *Message) {
	id := client.SessionID()
	var err error

	switch msg.Type {
	case MessageTypeStdin:
		err = h.handleStdin(client, msg)
	case MessageTypeResize:
		err = h.terminals.Resize(id, msg.Cols, msg.Rows)
	case MessageTypeSignal:
		var sig syscall.Signal
		if sig, err = session.ParseSignal(msg.Signal); err == nil {
			err = h.terminals.Signal(id, sig)
		}
	case MessageTypePause:
		err = h.terminals.Pause(id)
	case MessageTypeResume:
		err = h.terminals.Resume(id)
	case MessageTypePing:
		client.SendMessage(&Message{Type: MessageTypePong})
	default:
		err = fmt.Errorf("unknown message type %q", msg.Type)
	}

	if err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{
			"session": id,
			"type":    msg.Type,
		}).Debug("client request failed")
		client.SendMessage(&Message{Type: MessageTypeError, Error: err.Error()})
	}
}

func (h *Handler) handleStdin(client *Client, msg *Message) error {
	if msg.Data == "" {
		return nil
	}
	data := []byte(msg.Data)
	n, err := h.terminals.Write(client.SessionID(), data)
	if errors.Is(err, io.ErrShortWrite) {
		return fmt.Errorf("short write: %d of %d bytes accepted", n, len(data))
	}
	return err
}

// readPump reads client messages until the connection fails.
func (h *Handler) readPump(client *Client, hub *Hub) {
	defer func() {
		hub.Unregister(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).WithField("session", client.SessionID()).Warn("websocket closed unexpectedly")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(&Message{Type: MessageTypeError, Error: "invalid message: " + err.Error()})
			continue
		}
		h.handleMessage(client, &msg)
	}
}

// writePump writes queued messages, one per frame, and keeps the
// connection alive with pings.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.SendChan():
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// completeUTF8 returns the length of the longest prefix of b that does not
// end inside a multi-byte sequence.
func completeUTF8(b []byte) int {
	n := len(b)
	for i := 1; i <= utf8.UTFMax && i <= n; i++ {
		c := b[n-i]
		if c < utf8.RuneSelf {
			return n
		}
		if utf8.RuneStart(c) {
			if utf8.FullRune(b[n-i:]) {
				return n
			}
			return n - i
		}
	}
	return n
}
