package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service ties the gateway together: WebSocket fan-out, JetStream
// consumption, poll endpoints and action endpoints
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
	stateHandler      *StateHandler
	actionHandler     *ActionHandler
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

// NewService creates a new gateway service
func NewService(config Config, stateProvider StateProvider, actionHandler *ActionHandler) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig)
	wsHandler := NewWebSocketHandler(connectionManager)

	eventConsumer, err := NewEventConsumer(connectionManager, config.JetStreamConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         wsHandler,
		eventConsumer:     eventConsumer,
		stateHandler:      NewStateHandler(stateProvider),
		actionHandler:     actionHandler,
	}, nil
}

// Start begins the gateway service and blocks until ctx is done
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting pairing gateway service")

	go s.connectionManager.Start(ctx)

	go func() {
		if err := s.eventConsumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("pairing gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service
func (s *Service) Stop() error {
	if err := s.eventConsumer.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop event consumer")
	}
	log.Info().Msg("pairing gateway service stopped")
	return nil
}

// RegisterRoutes registers all gateway HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	s.actionHandler.RegisterActionRoutes(mux)
	log.Info().Msg("pairing gateway routes registered")
}
