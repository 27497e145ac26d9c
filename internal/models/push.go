package models

import (
	"time"

	"github.com/google/uuid"
)

// PushSubscription represents a browser push registration for one actor
type PushSubscription struct {
	ActorID   uuid.UUID `json:"actor_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}
