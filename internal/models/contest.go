package models

import (
	"time"

	"github.com/google/uuid"
)

// ContestStatus represents the lifecycle state of a contest.
// Transitions are forward-only: CREATED -> ACCEPTED -> IN_PROGRESS -> COMPLETED.
type ContestStatus string

const (
	ContestStatusCreated    ContestStatus = "CREATED"
	ContestStatusAccepted   ContestStatus = "ACCEPTED"
	ContestStatusInProgress ContestStatus = "IN_PROGRESS"
	ContestStatusCompleted  ContestStatus = "COMPLETED"
)

// ActorRole identifies which side of a contest an actor plays
type ActorRole string

const (
	RoleInitiator  ActorRole = "INITIATOR"
	RoleRespondent ActorRole = "RESPONDENT"
)

// ContestItem is one scored item of a contest. The item list is frozen at
// creation time so both sides always see identical items.
type ContestItem struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
}

// Contest is a sender-initiated, respondent-accepted challenge with
// independently scored items
type Contest struct {
	ID                uuid.UUID  `json:"id"`
	PairingID         uuid.UUID  `json:"pairing_id"`
	InitiatorActorID  uuid.UUID  `json:"initiator_actor_id"`
	RespondentActorID *uuid.UUID `json:"respondent_actor_id,omitempty"`

	Category string        `json:"category"`
	Items    []ContestItem `json:"items"`
	Status   ContestStatus `json:"status"`

	// Scores are write-once per role, nullable until submitted
	InitiatorScore  *int `json:"initiator_score,omitempty"`
	RespondentScore *int `json:"respondent_score,omitempty"`

	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Version guards compare-and-set updates
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleOf derives the contest role of an actor; ok is false for outsiders
func (c *Contest) RoleOf(actorID uuid.UUID) (ActorRole, bool) {
	if c.InitiatorActorID == actorID {
		return RoleInitiator, true
	}
	if c.RespondentActorID != nil && *c.RespondentActorID == actorID {
		return RoleRespondent, true
	}
	return "", false
}

// ScoreFor returns the recorded score for a role
func (c *Contest) ScoreFor(role ActorRole) *int {
	if role == RoleInitiator {
		return c.InitiatorScore
	}
	return c.RespondentScore
}

// Clone returns a deep copy so in-memory storage never aliases caller state
func (c *Contest) Clone() *Contest {
	cp := *c
	if c.RespondentActorID != nil {
		id := *c.RespondentActorID
		cp.RespondentActorID = &id
	}
	if c.InitiatorScore != nil {
		v := *c.InitiatorScore
		cp.InitiatorScore = &v
	}
	if c.RespondentScore != nil {
		v := *c.RespondentScore
		cp.RespondentScore = &v
	}
	if c.AcceptedAt != nil {
		t := *c.AcceptedAt
		cp.AcceptedAt = &t
	}
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		cp.CompletedAt = &t
	}
	cp.Items = make([]ContestItem, len(c.Items))
	for i, item := range c.Items {
		cp.Items[i] = item
		cp.Items[i].Options = append([]string(nil), item.Options...)
	}
	return &cp
}

// AnswerSubmission records one actor's answer to one contest item.
// Append-only; one submission per (contest, role, item).
type AnswerSubmission struct {
	ContestID    uuid.UUID `json:"contest_id"`
	Role         ActorRole `json:"role"`
	ItemID       string    `json:"item_id"`
	ChosenOption int       `json:"chosen_option"`
	Correct      bool      `json:"correct"`
	SubmittedAt  time.Time `json:"submitted_at"`
}
