package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service is the game gateway: WebSocket connections in, room notifications
// out, plus the spectator state endpoint.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
}

// NewService wires a connection manager to the handler that consumes its
// actions and the provider behind the state endpoint.
func NewService(cm *ConnectionManager, handler ActionHandler, states StateProvider) *Service {
	cm.handler = handler
	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
		stateHandler:      NewStateHandler(states),
	}
}

// Start runs the gateway until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting game gateway service")
	s.connectionManager.Start(ctx)
	log.Info().Msg("game gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and state HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("game gateway routes registered")
}

// Stats returns statistics about the gateway service
func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
