package push

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// PermissionStatus mirrors the runtime's notification permission state
type PermissionStatus string

const (
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
	PermissionPrompt  PermissionStatus = "prompt"
)

// PermissionProvider is the runtime capability gate. Status must be a pure
// read; Request may prompt the actor and returns the resulting status.
type PermissionProvider interface {
	Status(ctx context.Context, actorID uuid.UUID) (PermissionStatus, error)
	Request(ctx context.Context, actorID uuid.UUID) (PermissionStatus, error)
}

// MemoryPermissions is a PermissionProvider backed by a map; prompts resolve
// to a configurable answer. Used for development and tests.
type MemoryPermissions struct {
	mu          sync.Mutex
	statuses    map[uuid.UUID]PermissionStatus
	promptGrant bool
}

func NewMemoryPermissions(promptGrant bool) *MemoryPermissions {
	return &MemoryPermissions{
		statuses:    make(map[uuid.UUID]PermissionStatus),
		promptGrant: promptGrant,
	}
}

// SetStatus seeds an actor's permission state
func (m *MemoryPermissions) SetStatus(actorID uuid.UUID, status PermissionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[actorID] = status
}

func (m *MemoryPermissions) Status(ctx context.Context, actorID uuid.UUID) (PermissionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status, ok := m.statuses[actorID]; ok {
		return status, nil
	}
	return PermissionPrompt, nil
}

func (m *MemoryPermissions) Request(ctx context.Context, actorID uuid.UUID) (PermissionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status, ok := m.statuses[actorID]; ok && status != PermissionPrompt {
		return status, nil
	}
	status := PermissionDenied
	if m.promptGrant {
		status = PermissionGranted
	}
	m.statuses[actorID] = status
	return status, nil
}
