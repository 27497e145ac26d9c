package pairclient

import "time"

// Pairing view statuses, mirroring the server's wire values
const (
	PairingIdle     = "IDLE"
	PairingPending  = "PENDING"
	PairingResolved = "RESOLVED"
)

// Contest view statuses, mirroring the server's wire values
const (
	ContestCreated    = "CREATED"
	ContestAccepted   = "ACCEPTED"
	ContestInProgress = "IN_PROGRESS"
	ContestCompleted  = "COMPLETED"
)

// PairingView is the client's local picture of one pairing's current
// synchronization round
type PairingView struct {
	PairingID      string     `json:"pairing_id"`
	Status         string     `json:"status"`
	PendingActorID string     `json:"pending_actor_id,omitempty"`
	PressedAt      *time.Time `json:"pressed_at,omitempty"`
	OutcomeID      string     `json:"outcome_id,omitempty"`
}

// Rank orders pairing states for the forward-only merge
func (v PairingView) Rank() int {
	switch v.Status {
	case PairingPending:
		return 1
	case PairingResolved:
		return 2
	default:
		return 0
	}
}

// Terminal reports whether this round's view needs no further polling
func (v PairingView) Terminal() bool {
	return v.Status == PairingResolved
}

// ContestView is the client's local picture of one contest
type ContestView struct {
	ContestID       string `json:"contest_id"`
	Status          string `json:"status"`
	InitiatorScore  *int   `json:"initiator_score,omitempty"`
	RespondentScore *int   `json:"respondent_score,omitempty"`
}

// Rank orders contest states for the forward-only merge
func (v ContestView) Rank() int {
	switch v.Status {
	case ContestAccepted:
		return 1
	case ContestInProgress:
		return 2
	case ContestCompleted:
		return 3
	default:
		return 0
	}
}

// Terminal reports whether the contest needs no further polling
func (v ContestView) Terminal() bool {
	return v.Status == ContestCompleted
}

// MergePairing applies a remote observation onto the local view, keeping
// only forward transitions: a remote view behind the local one never
// regresses it. Two pending views keep the fresher press.
func MergePairing(local, remote PairingView) PairingView {
	if remote.Rank() < local.Rank() {
		return local
	}
	if remote.Rank() == local.Rank() && remote.Status == PairingPending {
		if local.PressedAt != nil && (remote.PressedAt == nil || remote.PressedAt.Before(*local.PressedAt)) {
			return local
		}
	}
	return remote
}

// MergeContest applies a remote observation onto the local view, keeping
// only forward transitions. At equal rank, scores already observed locally
// are never un-observed.
func MergeContest(local, remote ContestView) ContestView {
	if remote.Rank() < local.Rank() {
		return local
	}
	if remote.InitiatorScore == nil {
		remote.InitiatorScore = local.InitiatorScore
	}
	if remote.RespondentScore == nil {
		remote.RespondentScore = local.RespondentScore
	}
	return remote
}
