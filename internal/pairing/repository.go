package pairing

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tandemlabs/tandem/internal/models"
)

// Repository is the durable store contract for pairings. UpdatePairing is a
// compare-and-set: it succeeds only if the stored version still equals
// expectedVersion, otherwise it returns ErrVersionConflict.
type Repository interface {
	CreatePairing(ctx context.Context, p *models.Pairing) error
	GetPairing(ctx context.Context, id uuid.UUID) (*models.Pairing, error)
	GetPairingByInviteCode(ctx context.Context, code string) (*models.Pairing, error)
	UpdatePairing(ctx context.Context, p *models.Pairing, expectedVersion int64) (*models.Pairing, error)
}

// MemoryRepository is an in-memory Repository used for development and tests
type MemoryRepository struct {
	mu       sync.Mutex
	pairings map[uuid.UUID]*models.Pairing
	byCode   map[string]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		pairings: make(map[uuid.UUID]*models.Pairing),
		byCode:   make(map[string]uuid.UUID),
	}
}

func (r *MemoryRepository) CreatePairing(ctx context.Context, p *models.Pairing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pairings[p.ID] = p.Clone()
	r.byCode[p.InviteCode] = p.ID
	return nil
}

func (r *MemoryRepository) GetPairing(ctx context.Context, id uuid.UUID) (*models.Pairing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pairings[id]
	if !ok {
		return nil, ErrPairingNotFound
	}
	return p.Clone(), nil
}

func (r *MemoryRepository) GetPairingByInviteCode(ctx context.Context, code string) (*models.Pairing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byCode[code]
	if !ok {
		return nil, ErrInviteCodeNotFound
	}
	p, ok := r.pairings[id]
	if !ok {
		return nil, ErrPairingNotFound
	}
	return p.Clone(), nil
}

func (r *MemoryRepository) UpdatePairing(ctx context.Context, p *models.Pairing, expectedVersion int64) (*models.Pairing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.pairings[p.ID]
	if !ok {
		return nil, ErrPairingNotFound
	}
	if stored.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	next := p.Clone()
	next.Version = expectedVersion + 1
	r.pairings[p.ID] = next
	return next.Clone(), nil
}
