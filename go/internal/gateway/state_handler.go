package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// StateHandler handles HTTP requests for standings and teams
type StateHandler struct {
	stateProvider StateProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
	}
}

// StandingsResponse is the body of GET /api/standings
type StandingsResponse struct {
	Connected bool           `json:"connected"`
	Counts    *CountsPayload `json:"counts"`
}

// HandleGetStandings handles GET /api/standings
func (h *StateHandler) HandleGetStandings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	counts, ok := h.stateProvider.Counts()
	if !ok {
		http.Error(w, "Standings not available yet", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, StandingsResponse{
		Connected: h.stateProvider.Connected(),
		Counts:    counts,
	})
}

// HandleGetTeams handles GET /api/teams
func (h *StateHandler) HandleGetTeams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.stateProvider.Teams())
}

// HandleSubmit handles GET /api/submit by redirecting to the meme submission link
func (h *StateHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	http.Redirect(w, r, h.stateProvider.SubmissionURL(), http.StatusFound)
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/standings", h.HandleGetStandings)
	mux.HandleFunc("/api/teams", h.HandleGetTeams)
	mux.HandleFunc("/api/submit", h.HandleSubmit)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
