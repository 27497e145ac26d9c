package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types observed on an actor's channel
const (
	TypeResolution     = "resolution"
	TypePartnerWaiting = "partner_waiting"
	TypeContestCreated = "contest_created"
	TypeAccepted       = "accepted"
	TypeCompleted      = "completed"
)

// Event is the envelope fanned out to every connected actor of a pairing.
// TargetActorID, when set, narrows delivery to a single actor.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	PairingID     uuid.UUID       `json:"pairing_id"`
	Type          string          `json:"type"`
	TargetActorID *uuid.UUID      `json:"target_actor_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Data          json.RawMessage `json:"data"`
}

// ResolutionPayload is the payload for a resolution event
type ResolutionPayload struct {
	PairingID   string    `json:"pairing_id"`
	OutcomeID   string    `json:"outcome_id"`
	GeneratedAt time.Time `json:"generated_at"`
}

// PartnerWaitingPayload nudges the other actor that a press is pending
type PartnerWaitingPayload struct {
	PairingID string    `json:"pairing_id"`
	ActorID   string    `json:"actor_id"`
	PressedAt time.Time `json:"pressed_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ContestCreatedPayload is the payload for a contest_created event
type ContestCreatedPayload struct {
	ContestID string    `json:"contest_id"`
	PairingID string    `json:"pairing_id"`
	Initiator string    `json:"initiator_actor_id"`
	Category  string    `json:"category"`
	ItemCount int       `json:"item_count"`
	CreatedAt time.Time `json:"created_at"`
}

// AcceptedPayload is the payload for an accepted event
type AcceptedPayload struct {
	ContestID  string    `json:"contest_id"`
	Respondent string    `json:"respondent_actor_id"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// CompletedPayload carries both scores to both actors
type CompletedPayload struct {
	ContestID       string    `json:"contest_id"`
	InitiatorScore  int       `json:"initiator_score"`
	RespondentScore int       `json:"respondent_score"`
	CompletedAt     time.Time `json:"completed_at"`
}

// New builds an event envelope with a marshaled payload
func New(pairingID uuid.UUID, eventType string, now time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.New(),
		PairingID: pairingID,
		Type:      eventType,
		Timestamp: now,
		Data:      data,
	}, nil
}

// Targeted narrows an event's delivery to a single actor
func (e Event) Targeted(actorID uuid.UUID) Event {
	e.TargetActorID = &actorID
	return e
}
