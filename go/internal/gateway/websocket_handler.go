package gateway

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for viewers
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	stateProvider     StateProvider
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, provider StateProvider) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		stateProvider:     provider,
	}
}

// HandleConnection upgrades a viewer connection and greets it with the current board
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	// The upgrader writes its own error response on failure
	if err := h.connectionManager.UpgradeConnection(w, r, h.welcome); err != nil {
		log.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("failed to upgrade WebSocket connection")
	}
}

func (h *WebSocketHandler) welcome(c *Connection) (*ServerMessage, error) {
	views := c.Board.Views()
	board := make([]ReactionPayload, len(views))
	for i, v := range views {
		board[i] = c.reactionPayload("", v)
	}

	counts, _ := h.stateProvider.Counts()
	return NewServerMessage(MessageTypeWelcome, WelcomePayload{
		ConnectionID:  c.ID,
		Teams:         h.stateProvider.Teams(),
		Board:         board,
		Counts:        counts,
		Connected:     h.stateProvider.Connected(),
		SubmissionURL: h.stateProvider.SubmissionURL(),
	})
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.connectionManager.GetConnectionStats())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
