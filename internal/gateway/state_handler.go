package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tandemlabs/tandem/internal/contest"
	"github.com/tandemlabs/tandem/internal/models"
	"github.com/tandemlabs/tandem/internal/pairing"
)

// StateProvider defines the canonical-state reads behind the poll endpoints
type StateProvider interface {
	GetPairingState(ctx context.Context, pairingID uuid.UUID) (*PairingStateResponse, error)
	GetContestState(ctx context.Context, contestID uuid.UUID) (*ContestStateResponse, error)
}

// PairingStateResponse is the poll-friendly pairing state shape; it mirrors
// what the channel events carry so push and poll merge into one view
type PairingStateResponse struct {
	PairingID      string                `json:"pairing_id"`
	Status         models.PairingStatus  `json:"status"`
	WindowSec      int                   `json:"window_sec"`
	PendingActorID *string               `json:"pending_actor_id,omitempty"`
	PressedAt      *time.Time            `json:"pressed_at,omitempty"`
	Outcome        *models.SharedOutcome `json:"outcome,omitempty"`
	RecentOutcomes []string              `json:"recent_outcomes"`
	ServerTime     time.Time             `json:"server_time"`
}

// ContestItemView is a contest item with the correct option withheld
type ContestItemView struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// ContestStateResponse is the poll-friendly contest state shape
type ContestStateResponse struct {
	ContestID       string               `json:"contest_id"`
	PairingID       string               `json:"pairing_id"`
	Status          models.ContestStatus `json:"status"`
	InitiatorID     string               `json:"initiator_actor_id"`
	RespondentID    *string              `json:"respondent_actor_id,omitempty"`
	Items           []ContestItemView    `json:"items"`
	InitiatorScore  *int                 `json:"initiator_score,omitempty"`
	RespondentScore *int                 `json:"respondent_score,omitempty"`
	CompletedAt     *time.Time           `json:"completed_at,omitempty"`
	ServerTime      time.Time            `json:"server_time"`
}

// ServiceStateProvider adapts the pairing and contest services to the
// poll endpoints
type ServiceStateProvider struct {
	pairings *pairing.Service
	contests *contest.Service
}

func NewServiceStateProvider(pairings *pairing.Service, contests *contest.Service) *ServiceStateProvider {
	return &ServiceStateProvider{pairings: pairings, contests: contests}
}

func (p *ServiceStateProvider) GetPairingState(ctx context.Context, pairingID uuid.UUID) (*PairingStateResponse, error) {
	pr, err := p.pairings.GetPairing(ctx, pairingID)
	if err != nil {
		return nil, err
	}

	resp := &PairingStateResponse{
		PairingID:      pr.ID.String(),
		Status:         pr.Status,
		WindowSec:      pr.WindowSec,
		Outcome:        pr.CurrentOutcome,
		RecentOutcomes: pr.RecentOutcomes,
		ServerTime:     time.Now().UTC(),
	}

	// Surface the most recent pending press, if any
	press := pr.PrimaryPress
	if pr.SecondaryPress != nil && (press == nil || pr.SecondaryPress.PressedAt.After(press.PressedAt)) {
		press = pr.SecondaryPress
	}
	if press != nil {
		actorID := press.ActorID.String()
		pressedAt := press.PressedAt
		resp.PendingActorID = &actorID
		resp.PressedAt = &pressedAt
	}
	return resp, nil
}

func (p *ServiceStateProvider) GetContestState(ctx context.Context, contestID uuid.UUID) (*ContestStateResponse, error) {
	c, err := p.contests.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}

	items := make([]ContestItemView, len(c.Items))
	for i, item := range c.Items {
		items[i] = ContestItemView{ID: item.ID, Prompt: item.Prompt, Options: item.Options}
	}

	resp := &ContestStateResponse{
		ContestID:       c.ID.String(),
		PairingID:       c.PairingID.String(),
		Status:          c.Status,
		InitiatorID:     c.InitiatorActorID.String(),
		Items:           items,
		InitiatorScore:  c.InitiatorScore,
		RespondentScore: c.RespondentScore,
		CompletedAt:     c.CompletedAt,
		ServerTime:      time.Now().UTC(),
	}
	if c.RespondentActorID != nil {
		id := c.RespondentActorID.String()
		resp.RespondentID = &id
	}
	return resp, nil
}

// StateHandler serves the synchronous poll endpoints the reconciliation
// poller depends on when push delivery is unreliable
type StateHandler struct {
	stateProvider StateProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{stateProvider: provider}
}

// HandleGetPairingState handles GET /api/pairings/{id}/state
func (h *StateHandler) HandleGetPairingState(w http.ResponseWriter, r *http.Request) {
	pairingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid pairing id", http.StatusBadRequest)
		return
	}

	state, err := h.stateProvider.GetPairingState(r.Context(), pairingID)
	if errors.Is(err, pairing.ErrPairingNotFound) {
		http.Error(w, "pairing not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("pairing_id", pairingID.String()).Msg("failed to get pairing state")
		http.Error(w, "failed to get pairing state", http.StatusInternalServerError)
		return
	}

	writeJSON(w, state)
}

// HandleGetContestState handles GET /api/contests/{id}/state
func (h *StateHandler) HandleGetContestState(w http.ResponseWriter, r *http.Request) {
	contestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid contest id", http.StatusBadRequest)
		return
	}

	state, err := h.stateProvider.GetContestState(r.Context(), contestID)
	if errors.Is(err, contest.ErrContestNotFound) {
		http.Error(w, "contest not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("contest_id", contestID.String()).Msg("failed to get contest state")
		http.Error(w, "failed to get contest state", http.StatusInternalServerError)
		return
	}

	writeJSON(w, state)
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/pairings/{id}/state", h.HandleGetPairingState)
	mux.HandleFunc("GET /api/contests/{id}/state", h.HandleGetContestState)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
