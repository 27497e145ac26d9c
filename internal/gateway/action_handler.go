package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tandemlabs/tandem/internal/contest"
	"github.com/tandemlabs/tandem/internal/pairing"
	"github.com/tandemlabs/tandem/internal/push"
)

// ActionHandler exposes the state-changing operations as thin JSON endpoints
// over the pairing, contest and push services
type ActionHandler struct {
	pairings *pairing.Service
	contests *contest.Service
	pushes   *push.Service

	defaultWindowSec       int
	defaultHistoryCapacity int
}

func NewActionHandler(pairings *pairing.Service, contests *contest.Service, pushes *push.Service) *ActionHandler {
	return &ActionHandler{
		pairings:               pairings,
		contests:               contests,
		pushes:                 pushes,
		defaultWindowSec:       10,
		defaultHistoryCapacity: 5,
	}
}

// SetPairingDefaults overrides the defaults applied when a create request
// omits the window or history capacity
func (h *ActionHandler) SetPairingDefaults(windowSec, historyCapacity int) {
	if windowSec > 0 {
		h.defaultWindowSec = windowSec
	}
	if historyCapacity > 0 {
		h.defaultHistoryCapacity = historyCapacity
	}
}

type createPairingBody struct {
	ActorID         uuid.UUID `json:"actor_id"`
	WindowSec       int       `json:"window_sec"`
	HistoryCapacity int       `json:"history_capacity"`
}

func (h *ActionHandler) handleCreatePairing(w http.ResponseWriter, r *http.Request) {
	var body createPairingBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.WindowSec <= 0 {
		body.WindowSec = h.defaultWindowSec
	}
	if body.HistoryCapacity <= 0 {
		body.HistoryCapacity = h.defaultHistoryCapacity
	}

	p, err := h.pairings.CreatePairing(r.Context(), pairing.CreatePairingRequest{
		PrimaryActorID:  body.ActorID,
		WindowSec:       body.WindowSec,
		HistoryCapacity: body.HistoryCapacity,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create pairing")
		http.Error(w, "failed to create pairing", http.StatusInternalServerError)
		return
	}
	writeJSON(w, p)
}

type joinPairingBody struct {
	InviteCode string    `json:"invite_code"`
	ActorID    uuid.UUID `json:"actor_id"`
}

func (h *ActionHandler) handleJoinPairing(w http.ResponseWriter, r *http.Request) {
	var body joinPairingBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, err := h.pairings.JoinPairing(r.Context(), body.InviteCode, body.ActorID)
	switch {
	case errors.Is(err, pairing.ErrInviteCodeNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, pairing.ErrPairingFull):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		log.Error().Err(err).Msg("failed to join pairing")
		http.Error(w, "failed to join pairing", http.StatusInternalServerError)
	default:
		writeJSON(w, p)
	}
}

type pressBody struct {
	ActorID uuid.UUID `json:"actor_id"`
}

func (h *ActionHandler) handlePress(w http.ResponseWriter, r *http.Request) {
	pairingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid pairing id", http.StatusBadRequest)
		return
	}
	var body pressBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.pairings.RecordPress(r.Context(), pairingID, body.ActorID)
	switch {
	case errors.Is(err, pairing.ErrPairingNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, pairing.ErrNotMember):
		http.Error(w, err.Error(), http.StatusForbidden)
	case err != nil:
		log.Error().Err(err).Str("pairing_id", pairingID.String()).Msg("failed to record press")
		http.Error(w, "failed to record press", http.StatusInternalServerError)
	default:
		writeJSON(w, result)
	}
}

type createContestBody struct {
	PairingID uuid.UUID `json:"pairing_id"`
	ActorID   uuid.UUID `json:"actor_id"`
	Category  string    `json:"category"`
}

func (h *ActionHandler) handleCreateContest(w http.ResponseWriter, r *http.Request) {
	var body createContestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	c, err := h.contests.Create(r.Context(), contest.CreateContestRequest{
		PairingID:        body.PairingID,
		InitiatorActorID: body.ActorID,
		Category:         body.Category,
	})
	switch {
	case errors.Is(err, contest.ErrUnknownCategory):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, pairing.ErrPairingNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, contest.ErrNotParticipant):
		http.Error(w, err.Error(), http.StatusForbidden)
	case err != nil:
		log.Error().Err(err).Msg("failed to create contest")
		http.Error(w, "failed to create contest", http.StatusInternalServerError)
	default:
		writeJSON(w, c)
	}
}

type contestActorBody struct {
	ActorID uuid.UUID `json:"actor_id"`
}

func (h *ActionHandler) handleAcceptContest(w http.ResponseWriter, r *http.Request) {
	contestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid contest id", http.StatusBadRequest)
		return
	}
	var body contestActorBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	c, err := h.contests.Accept(r.Context(), contestID, body.ActorID)
	switch {
	case errors.Is(err, contest.ErrContestNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, contest.ErrSelfAccept):
		// Distinguishable from losing the race to someone else
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, contest.ErrAlreadyAccepted):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, contest.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		log.Error().Err(err).Str("contest_id", contestID.String()).Msg("failed to accept contest")
		http.Error(w, "failed to accept contest", http.StatusInternalServerError)
	default:
		writeJSON(w, c)
	}
}

func (h *ActionHandler) handleStartContest(w http.ResponseWriter, r *http.Request) {
	contestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid contest id", http.StatusBadRequest)
		return
	}
	var body contestActorBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	c, err := h.contests.Start(r.Context(), contestID, body.ActorID)
	switch {
	case errors.Is(err, contest.ErrContestNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, contest.ErrNotParticipant):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, contest.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		log.Error().Err(err).Str("contest_id", contestID.String()).Msg("failed to start contest")
		http.Error(w, "failed to start contest", http.StatusInternalServerError)
	default:
		writeJSON(w, c)
	}
}

type submitAnswersBody struct {
	ActorID uuid.UUID              `json:"actor_id"`
	Answers []contest.AnswerChoice `json:"answers"`
}

func (h *ActionHandler) handleSubmitAnswers(w http.ResponseWriter, r *http.Request) {
	contestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid contest id", http.StatusBadRequest)
		return
	}
	var body submitAnswersBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.contests.SubmitAnswers(r.Context(), contestID, body.ActorID, body.Answers)
	switch {
	case errors.Is(err, contest.ErrContestNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, contest.ErrNotParticipant):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, contest.ErrAlreadySubmitted):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, contest.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, contest.ErrIncompleteSubmission):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		log.Error().Err(err).Str("contest_id", contestID.String()).Msg("failed to submit answers")
		http.Error(w, "failed to submit answers", http.StatusInternalServerError)
	default:
		writeJSON(w, result)
	}
}

type subscribeBody struct {
	ActorID  uuid.UUID `json:"actor_id"`
	Endpoint string    `json:"endpoint"`
	P256dh   string    `json:"p256dh"`
	Auth     string    `json:"auth"`
}

func (h *ActionHandler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var body subscribeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Endpoint == "" {
		http.Error(w, "endpoint is required", http.StatusBadRequest)
		return
	}

	sub, err := h.pushes.Register(r.Context(), body.ActorID, body.Endpoint, body.P256dh, body.Auth)
	switch {
	case errors.Is(err, push.ErrPermissionDenied):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, push.ErrNotConfigured):
		// Feature unavailable, not an error; the client degrades
		http.Error(w, err.Error(), http.StatusNotImplemented)
	case err != nil:
		log.Error().Err(err).Msg("failed to subscribe")
		http.Error(w, "failed to subscribe", http.StatusInternalServerError)
	default:
		writeJSON(w, sub)
	}
}

func (h *ActionHandler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	actorID, err := uuid.Parse(r.PathValue("actor"))
	if err != nil {
		http.Error(w, "invalid actor id", http.StatusBadRequest)
		return
	}

	if err := h.pushes.Unsubscribe(r.Context(), actorID); err != nil {
		log.Error().Err(err).Msg("failed to unsubscribe")
		http.Error(w, "failed to unsubscribe", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterActionRoutes registers the state-changing HTTP routes
func (h *ActionHandler) RegisterActionRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/pairings", h.handleCreatePairing)
	mux.HandleFunc("POST /api/pairings/join", h.handleJoinPairing)
	mux.HandleFunc("POST /api/pairings/{id}/press", h.handlePress)
	mux.HandleFunc("POST /api/contests", h.handleCreateContest)
	mux.HandleFunc("POST /api/contests/{id}/accept", h.handleAcceptContest)
	mux.HandleFunc("POST /api/contests/{id}/start", h.handleStartContest)
	mux.HandleFunc("POST /api/contests/{id}/answers", h.handleSubmitAnswers)
	mux.HandleFunc("POST /api/push/subscriptions", h.handleSubscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions/{actor}", h.handleUnsubscribe)
}
