package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/slapboard/go/internal/memes"
	"github.com/mcdev12/slapboard/go/internal/reaction"
	"github.com/mcdev12/slapboard/go/internal/storesync"
	"github.com/mcdev12/slapboard/go/internal/tally"
)

// Service is the viewer gateway: one store subscription fanned out to every WebSocket viewer
type Service struct {
	sync              *storesync.Sync
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	stateProvider     StateProvider
	metrics           *reaction.Counters
	resubscribeWait   time.Duration
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	Reaction         reaction.Config
	Submission       memes.Submission
	// AssetURL resolves image and sound references; nil leaves them unchanged
	AssetURL func(ref string) string
	// ResubscribeWait is the pause between failed store subscriptions
	ResubscribeWait time.Duration
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		Reaction:         reaction.DefaultConfig(),
		Submission:       memes.DefaultSubmission(),
		ResubscribeWait:  2 * time.Second,
	}
}

// NewService creates a new gateway service
func NewService(config Config, s *storesync.Sync) (*Service, error) {
	if s == nil {
		return nil, fmt.Errorf("store sync is required")
	}
	if err := config.Reaction.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reaction config: %w", err)
	}
	if config.ResubscribeWait <= 0 {
		config.ResubscribeWait = 2 * time.Second
	}

	metrics := reaction.NewCounters()
	connectionManager := NewConnectionManager(config.ConnectionConfig, BoardConfig{
		Roster:   s.Roster(),
		Store:    s,
		Reaction: config.Reaction,
		Metrics:  metrics,
		AssetURL: config.AssetURL,
	})

	stateProvider := NewSyncStateProvider(s, config.Submission)

	return &Service{
		sync:              s,
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, stateProvider),
		stateHandler:      NewStateHandler(stateProvider),
		stateProvider:     stateProvider,
		metrics:           metrics,
		resubscribeWait:   config.ResubscribeWait,
	}, nil
}

// Start runs the connection manager and keeps the store subscription open until ctx is done
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting slapboard gateway service")

	go s.connectionManager.Start(ctx)

	for {
		sub, err := s.sync.Subscribe(ctx, storesync.Handlers{
			OnChange:     s.onChange,
			OnDisconnect: s.onDisconnect,
		})
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", s.resubscribeWait).Msg("store subscription failed")
			s.onDisconnect(err)
		} else {
			select {
			case <-ctx.Done():
				sub.Unsubscribe()
				log.Info().Msg("slapboard gateway service shutting down")
				return nil
			case <-sub.Done():
				sub.Unsubscribe()
			}
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("slapboard gateway service shutting down")
			return nil
		case <-time.After(s.resubscribeWait):
		}
	}
}

func (s *Service) onChange(counts tally.Counts) {
	msg, err := NewServerMessage(MessageTypeCounts, buildCountsPayload(s.sync.Roster(), counts))
	if err != nil {
		log.Error().Err(err).Msg("failed to build counts message")
		return
	}
	s.connectionManager.Broadcast(msg)
}

func (s *Service) onDisconnect(cause error) {
	payload := StoreStatusPayload{Connected: false}
	if cause != nil {
		payload.Error = cause.Error()
	}
	msg, err := NewServerMessage(MessageTypeStoreStatus, payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to build store status message")
		return
	}
	s.connectionManager.Broadcast(msg)
}

// RegisterRoutes registers the WebSocket and REST routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "slapboard_gateway"
	stats["store_connected"] = s.sync.Connected()
	stats["teams"] = s.metrics.Snapshot()
	return stats
}
