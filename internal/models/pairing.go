package models

import (
	"time"

	"github.com/google/uuid"
)

// PairingStatus represents the synchronization state of a pairing
type PairingStatus string

const (
	PairingStatusIdle     PairingStatus = "IDLE"
	PairingStatusPending  PairingStatus = "PENDING"
	PairingStatusResolved PairingStatus = "RESOLVED"
)

// PendingPress is an unresolved press from one actor, waiting for the partner
type PendingPress struct {
	ActorID   uuid.UUID `json:"actor_id"`
	PressedAt time.Time `json:"pressed_at"`
}

// SharedOutcome is the single result both actors see after a resolved press.
// Immutable once created; the next resolution supersedes it.
type SharedOutcome struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Pairing is the durable relationship between two actors sharing synchronized state
type Pairing struct {
	ID               uuid.UUID  `json:"id"`
	InviteCode       string     `json:"invite_code"`
	PrimaryActorID   uuid.UUID  `json:"primary_actor_id"`
	SecondaryActorID *uuid.UUID `json:"secondary_actor_id,omitempty"`

	// WindowSec is the maximum gap between the two actors' presses that
	// still counts as simultaneous
	WindowSec int `json:"window_sec"`

	// At most one pending press per actor slot; a new press from the same
	// actor replaces the pending one, never stacks
	PrimaryPress   *PendingPress `json:"primary_press,omitempty"`
	SecondaryPress *PendingPress `json:"secondary_press,omitempty"`

	Status         PairingStatus  `json:"status"`
	CurrentOutcome *SharedOutcome `json:"current_outcome,omitempty"`

	// RecentOutcomes holds the last HistoryCapacity outcome IDs, oldest
	// first, used to avoid immediate repetition
	RecentOutcomes  []string `json:"recent_outcomes"`
	HistoryCapacity int      `json:"history_capacity"`

	// Version guards compare-and-set updates
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Window returns the synchronization window as a duration
func (p *Pairing) Window() time.Duration {
	return time.Duration(p.WindowSec) * time.Second
}

// IsMember reports whether the actor occupies one of the pairing's slots
func (p *Pairing) IsMember(actorID uuid.UUID) bool {
	if p.PrimaryActorID == actorID {
		return true
	}
	return p.SecondaryActorID != nil && *p.SecondaryActorID == actorID
}

// PartnerOf returns the other actor of the pairing, if both slots are filled
func (p *Pairing) PartnerOf(actorID uuid.UUID) *uuid.UUID {
	if p.PrimaryActorID == actorID {
		return p.SecondaryActorID
	}
	if p.SecondaryActorID != nil && *p.SecondaryActorID == actorID {
		id := p.PrimaryActorID
		return &id
	}
	return nil
}

// PressFor returns the pending press slot for the given actor
func (p *Pairing) PressFor(actorID uuid.UUID) *PendingPress {
	if p.PrimaryActorID == actorID {
		return p.PrimaryPress
	}
	if p.SecondaryActorID != nil && *p.SecondaryActorID == actorID {
		return p.SecondaryPress
	}
	return nil
}

// SetPress writes the pending press slot for the given actor
func (p *Pairing) SetPress(actorID uuid.UUID, press *PendingPress) {
	if p.PrimaryActorID == actorID {
		p.PrimaryPress = press
		return
	}
	if p.SecondaryActorID != nil && *p.SecondaryActorID == actorID {
		p.SecondaryPress = press
	}
}

// Clone returns a deep copy so in-memory storage never aliases caller state
func (p *Pairing) Clone() *Pairing {
	cp := *p
	if p.SecondaryActorID != nil {
		id := *p.SecondaryActorID
		cp.SecondaryActorID = &id
	}
	if p.PrimaryPress != nil {
		press := *p.PrimaryPress
		cp.PrimaryPress = &press
	}
	if p.SecondaryPress != nil {
		press := *p.SecondaryPress
		cp.SecondaryPress = &press
	}
	if p.CurrentOutcome != nil {
		outcome := *p.CurrentOutcome
		cp.CurrentOutcome = &outcome
	}
	cp.RecentOutcomes = append([]string(nil), p.RecentOutcomes...)
	return &cp
}
