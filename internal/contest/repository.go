package contest

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tandemlabs/tandem/internal/models"
)

// Repository is the durable store contract for contests and their answer
// submissions. UpdateContest is a compare-and-set guarded by version;
// AppendSubmissions is append-only and rejects duplicates per
// (contest, role, item).
type Repository interface {
	CreateContest(ctx context.Context, c *models.Contest) error
	GetContest(ctx context.Context, id uuid.UUID) (*models.Contest, error)
	UpdateContest(ctx context.Context, c *models.Contest, expectedVersion int64) (*models.Contest, error)
	AppendSubmissions(ctx context.Context, subs []models.AnswerSubmission) error
	ListSubmissions(ctx context.Context, contestID uuid.UUID, role models.ActorRole) ([]models.AnswerSubmission, error)
}

type submissionKey struct {
	contestID uuid.UUID
	role      models.ActorRole
	itemID    string
}

// MemoryRepository is an in-memory Repository used for development and tests
type MemoryRepository struct {
	mu          sync.Mutex
	contests    map[uuid.UUID]*models.Contest
	submissions map[submissionKey]models.AnswerSubmission
	order       []submissionKey
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		contests:    make(map[uuid.UUID]*models.Contest),
		submissions: make(map[submissionKey]models.AnswerSubmission),
	}
}

func (r *MemoryRepository) CreateContest(ctx context.Context, c *models.Contest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contests[c.ID] = c.Clone()
	return nil
}

func (r *MemoryRepository) GetContest(ctx context.Context, id uuid.UUID) (*models.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contests[id]
	if !ok {
		return nil, ErrContestNotFound
	}
	return c.Clone(), nil
}

func (r *MemoryRepository) UpdateContest(ctx context.Context, c *models.Contest, expectedVersion int64) (*models.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.contests[c.ID]
	if !ok {
		return nil, ErrContestNotFound
	}
	if stored.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	next := c.Clone()
	next.Version = expectedVersion + 1
	r.contests[c.ID] = next
	return next.Clone(), nil
}

func (r *MemoryRepository) AppendSubmissions(ctx context.Context, subs []models.AnswerSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range subs {
		key := submissionKey{contestID: sub.ContestID, role: sub.Role, itemID: sub.ItemID}
		if _, exists := r.submissions[key]; exists {
			return ErrAlreadySubmitted
		}
	}
	for _, sub := range subs {
		key := submissionKey{contestID: sub.ContestID, role: sub.Role, itemID: sub.ItemID}
		r.submissions[key] = sub
		r.order = append(r.order, key)
	}
	return nil
}

func (r *MemoryRepository) ListSubmissions(ctx context.Context, contestID uuid.UUID, role models.ActorRole) ([]models.AnswerSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.AnswerSubmission
	for _, key := range r.order {
		if key.contestID == contestID && key.role == role {
			out = append(out, r.submissions[key])
		}
	}
	return out, nil
}
