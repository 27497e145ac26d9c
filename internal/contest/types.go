package contest

import (
	"github.com/google/uuid"
	"github.com/tandemlabs/tandem/internal/models"
)

// CreateContestRequest represents an initiator opening a challenge
type CreateContestRequest struct {
	PairingID        uuid.UUID `json:"pairing_id"`
	InitiatorActorID uuid.UUID `json:"initiator_actor_id"`
	Category         string    `json:"category"`
}

// AnswerChoice is one actor's chosen option for one contest item
type AnswerChoice struct {
	ItemID string `json:"item_id"`
	Option int    `json:"option"`
}

// SubmitResult reports the scored submission and whether it completed the contest
type SubmitResult struct {
	Contest   *models.Contest  `json:"contest"`
	Role      models.ActorRole `json:"role"`
	Score     int              `json:"score"`
	Completed bool             `json:"completed"`
}
