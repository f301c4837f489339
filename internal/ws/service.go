package ws

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ptyhost/ptyhost/internal/pty"
)

// Service connects session output to WebSocket clients. It is the
// session manager's Observer; sessions keep running while no client is
// attached.
type Service struct {
	hubs    *HubManager
	handler *Handler
	log     *logrus.Entry
}

// NewService creates a new WebSocket service.
func NewService(terminals Terminals) *Service {
	hubs := NewHubManager()
	return &Service{
		hubs:    hubs,
		handler: NewHandler(hubs, terminals),
		log:     logrus.WithField("component", "ws"),
	}
}

// Handler returns the WebSocket handler.
func (s *Service) Handler() *Handler {
	return s.handler
}

// HubManager returns the hub manager.
func (s *Service) HubManager() *HubManager {
	return s.hubs
}

// ServeSession upgrades r and attaches it to the session.
func (s *Service) ServeSession(w http.ResponseWriter, r *http.Request, sessionID string) error {
	return s.handler.HandleConnection(w, r, sessionID)
}

// SessionOutput broadcasts terminal output to attached clients.
func (s *Service) SessionOutput(id string, data []byte) {
	hub := s.hubs.Get(id)
	if hub == nil {
		return
	}
	if err := hub.BroadcastOutput(data); err != nil {
		s.log.WithError(err).WithField("session", id).Warn("failed to broadcast output")
	}
}

// SessionExit tells attached and future clients how the process ended.
func (s *Service) SessionExit(id string, status pty.ExitStatus) {
	if err := s.hubs.GetOrCreate(id).BroadcastExit(status); err != nil {
		s.log.WithError(err).WithField("session", id).Warn("failed to broadcast exit")
	}
}

// SessionRemoved disconnects every client of a deleted session.
func (s *Service) SessionRemoved(id string) {
	s.hubs.Remove(id)
}

// ClientCount returns the number of connected clients for a session.
func (s *Service) ClientCount(sessionID string) int {
	hub := s.hubs.Get(sessionID)
	if hub == nil {
		return 0
	}
	return hub.ClientCount()
}

// Close closes all WebSocket connections.
func (s *Service) Close() {
	s.hubs.Close()
}
