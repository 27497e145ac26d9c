package pairclient

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// StateStore is the single reducer both producers feed: push events from the
// channel and poll results from the reconciliation poller. Every apply goes
// through the same forward-only merge, so delivery order across the two
// sources cannot produce a regressed view.
type StateStore struct {
	mu       sync.RWMutex
	pairing  PairingView
	contests map[string]ContestView
}

// NewStateStore creates a store for one pairing
func NewStateStore(pairingID string) *StateStore {
	return &StateStore{
		pairing:  PairingView{PairingID: pairingID, Status: PairingIdle},
		contests: make(map[string]ContestView),
	}
}

// Pairing returns the current local pairing view
func (s *StateStore) Pairing() PairingView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pairing
}

// Contest returns the current local view of one contest
func (s *StateStore) Contest(contestID string) (ContestView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.contests[contestID]
	return v, ok
}

// ApplyPairing merges a remote pairing observation forward-only
func (s *StateStore) ApplyPairing(remote PairingView) PairingView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairing = MergePairing(s.pairing, remote)
	return s.pairing
}

// ApplyContest merges a remote contest observation forward-only
func (s *StateStore) ApplyContest(remote ContestView) ContestView {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := MergeContest(s.contests[remote.ContestID], remote)
	s.contests[remote.ContestID] = merged
	return merged
}

// RegisterHandlers wires the store into a dispatcher so channel events and
// poll results converge on the same reducer
func (s *StateStore) RegisterHandlers(d *Dispatcher) {
	d.Register("resolution", s.onResolution)
	d.Register("partner_waiting", s.onPartnerWaiting)
	d.Register("accepted", s.onAccepted)
	d.Register("completed", s.onCompleted)
	d.Register("contest_created", s.onContestCreated)
}

func (s *StateStore) onResolution(data json.RawMessage) {
	var payload struct {
		PairingID string `json:"pairing_id"`
		OutcomeID string `json:"outcome_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn().Err(err).Msg("bad resolution payload")
		return
	}
	s.ApplyPairing(PairingView{
		PairingID: payload.PairingID,
		Status:    PairingResolved,
		OutcomeID: payload.OutcomeID,
	})
}

func (s *StateStore) onPartnerWaiting(data json.RawMessage) {
	var payload struct {
		PairingID string    `json:"pairing_id"`
		ActorID   string    `json:"actor_id"`
		PressedAt time.Time `json:"pressed_at"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn().Err(err).Msg("bad partner_waiting payload")
		return
	}
	pressedAt := payload.PressedAt
	s.ApplyPairing(PairingView{
		PairingID:      payload.PairingID,
		Status:         PairingPending,
		PendingActorID: payload.ActorID,
		PressedAt:      &pressedAt,
	})
}

func (s *StateStore) onContestCreated(data json.RawMessage) {
	var payload struct {
		ContestID string `json:"contest_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn().Err(err).Msg("bad contest_created payload")
		return
	}
	s.ApplyContest(ContestView{ContestID: payload.ContestID, Status: ContestCreated})
}

func (s *StateStore) onAccepted(data json.RawMessage) {
	var payload struct {
		ContestID string `json:"contest_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn().Err(err).Msg("bad accepted payload")
		return
	}
	s.ApplyContest(ContestView{ContestID: payload.ContestID, Status: ContestAccepted})
}

func (s *StateStore) onCompleted(data json.RawMessage) {
	var payload struct {
		ContestID       string `json:"contest_id"`
		InitiatorScore  int    `json:"initiator_score"`
		RespondentScore int    `json:"respondent_score"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn().Err(err).Msg("bad completed payload")
		return
	}
	s.ApplyContest(ContestView{
		ContestID:       payload.ContestID,
		Status:          ContestCompleted,
		InitiatorScore:  &payload.InitiatorScore,
		RespondentScore: &payload.RespondentScore,
	})
}
