package push

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tandemlabs/tandem/internal/models"
)

// Repository is the durable store contract for push subscriptions, keyed by
// actor. Delete is idempotent.
type Repository interface {
	SaveSubscription(ctx context.Context, sub *models.PushSubscription) error
	GetSubscription(ctx context.Context, actorID uuid.UUID) (*models.PushSubscription, error)
	DeleteSubscription(ctx context.Context, actorID uuid.UUID) error
}

// MemoryRepository is an in-memory Repository used for development and tests
type MemoryRepository struct {
	mu   sync.Mutex
	subs map[uuid.UUID]models.PushSubscription
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{subs: make(map[uuid.UUID]models.PushSubscription)}
}

func (r *MemoryRepository) SaveSubscription(ctx context.Context, sub *models.PushSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.ActorID] = *sub
	return nil
}

func (r *MemoryRepository) GetSubscription(ctx context.Context, actorID uuid.UUID) (*models.PushSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[actorID]
	if !ok {
		return nil, ErrNoSubscription
	}
	return &sub, nil
}

func (r *MemoryRepository) DeleteSubscription(ctx context.Context, actorID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, actorID)
	return nil
}

// PostgresRepository persists push subscriptions in Postgres
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) SaveSubscription(ctx context.Context, sub *models.PushSubscription) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO push_subscriptions (actor_id, endpoint, p256dh, auth, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (actor_id) DO UPDATE
		SET endpoint = EXCLUDED.endpoint, p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth`,
		sub.ActorID, sub.Endpoint, sub.P256dh, sub.Auth, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save push subscription: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetSubscription(ctx context.Context, actorID uuid.UUID) (*models.PushSubscription, error) {
	var sub models.PushSubscription
	err := r.pool.QueryRow(ctx, `
		SELECT actor_id, endpoint, p256dh, auth, created_at
		FROM push_subscriptions WHERE actor_id = $1`, actorID,
	).Scan(&sub.ActorID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return &sub, nil
}

func (r *PostgresRepository) DeleteSubscription(ctx context.Context, actorID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM push_subscriptions WHERE actor_id = $1`, actorID); err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}
