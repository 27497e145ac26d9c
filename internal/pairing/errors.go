package pairing

import "errors"

// ErrPairingNotFound is returned for a stale or invalid pairing identifier
var ErrPairingNotFound = errors.New("pairing not found")

// ErrVersionConflict is returned when a compare-and-set update lost a race
var ErrVersionConflict = errors.New("pairing version conflict")

// ErrPairingFull is returned when joining a pairing whose second slot is taken
var ErrPairingFull = errors.New("pairing already has two members")

// ErrNotMember is returned when an actor acts on a pairing it does not belong to
var ErrNotMember = errors.New("actor is not a member of this pairing")

// ErrInviteCodeNotFound is returned when no pairing matches an invite code
var ErrInviteCodeNotFound = errors.New("invite code not found")
