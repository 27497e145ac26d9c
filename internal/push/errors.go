package push

import "errors"

// ErrPermissionDenied means the actor declined the notification capability.
// Non-fatal: callers degrade to an alternate channel.
var ErrPermissionDenied = errors.New("notification permission denied")

// ErrNotConfigured means push is unavailable server-side (no VAPID keys).
// Non-fatal: callers treat the feature as unavailable.
var ErrNotConfigured = errors.New("push is not configured")

// ErrNoSubscription is returned by reads when an actor has no registration
var ErrNoSubscription = errors.New("no push subscription")

// ErrEndpointGone means the vendor reported the endpoint invalid; the
// subscription must be deleted
var ErrEndpointGone = errors.New("push endpoint gone")
