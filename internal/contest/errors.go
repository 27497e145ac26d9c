package contest

import "errors"

// ErrContestNotFound is returned for a stale or invalid contest identifier
var ErrContestNotFound = errors.New("contest not found")

// ErrVersionConflict is returned when a compare-and-set update lost a race
var ErrVersionConflict = errors.New("contest version conflict")

// ErrSelfAccept is returned when an initiator tries to accept its own contest
var ErrSelfAccept = errors.New("you cannot accept your own challenge")

// ErrAlreadyAccepted is returned to the loser of a concurrent accept race
var ErrAlreadyAccepted = errors.New("challenge already accepted by someone else")

// ErrAlreadySubmitted is returned on a second score submission for one role
var ErrAlreadySubmitted = errors.New("answers already submitted for this role")

// ErrInvalidTransition is returned when an operation does not apply to the
// contest's current lifecycle state
var ErrInvalidTransition = errors.New("invalid contest state transition")

// ErrNotParticipant is returned when an actor is neither initiator nor respondent
var ErrNotParticipant = errors.New("actor is not a participant of this contest")

// ErrUnknownCategory is returned when no item category matches
var ErrUnknownCategory = errors.New("unknown contest category")

// ErrIncompleteSubmission is returned when a submission does not answer every
// frozen contest item
var ErrIncompleteSubmission = errors.New("submission must answer every contest item")
