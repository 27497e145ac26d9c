package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for pairing channels
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandlePairingConnection handles WebSocket connections for a specific pairing
func (h *WebSocketHandler) HandlePairingConnection(w http.ResponseWriter, r *http.Request) {
	pairingIDStr := r.URL.Query().Get("pairing_id")
	if pairingIDStr == "" {
		http.Error(w, "pairing_id is required", http.StatusBadRequest)
		return
	}

	pairingID, err := uuid.Parse(pairingIDStr)
	if err != nil {
		http.Error(w, "invalid pairing_id format", http.StatusBadRequest)
		return
	}

	// In production the actor identity comes from the session; the query
	// parameter keeps local development simple
	actorIDStr := r.URL.Query().Get("actor_id")
	actorID, err := uuid.Parse(actorIDStr)
	if err != nil {
		http.Error(w, "invalid actor_id format", http.StatusBadRequest)
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, actorID, pairingID); err != nil {
		log.Error().
			Err(err).
			Str("pairing_id", pairingID.String()).
			Str("actor_id", actorID.String()).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	total, pairings := h.connectionManager.GetConnectionStats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"total_connections": total,
		"active_pairings":   pairings,
	})
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/pairing", h.HandlePairingConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
