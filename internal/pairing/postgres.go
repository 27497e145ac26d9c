package pairing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tandemlabs/tandem/internal/models"
)

// PostgresRepository persists pairings in Postgres. The press/outcome state
// lives in a jsonb document column; the version column carries the
// compare-and-set guard.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// pairingDoc is the jsonb state document stored alongside the keyed columns
type pairingDoc struct {
	SecondaryActorID *uuid.UUID            `json:"secondary_actor_id,omitempty"`
	WindowSec        int                   `json:"window_sec"`
	PrimaryPress     *models.PendingPress  `json:"primary_press,omitempty"`
	SecondaryPress   *models.PendingPress  `json:"secondary_press,omitempty"`
	Status           models.PairingStatus  `json:"status"`
	CurrentOutcome   *models.SharedOutcome `json:"current_outcome,omitempty"`
	RecentOutcomes   []string              `json:"recent_outcomes"`
	HistoryCapacity  int                   `json:"history_capacity"`
}

func (r *PostgresRepository) CreatePairing(ctx context.Context, p *models.Pairing) error {
	doc, err := json.Marshal(docFromPairing(p))
	if err != nil {
		return fmt.Errorf("marshal pairing state: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO pairings (id, invite_code, primary_actor_id, state, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.InviteCode, p.PrimaryActorID, doc, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pairing: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetPairing(ctx context.Context, id uuid.UUID) (*models.Pairing, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, invite_code, primary_actor_id, state, version, created_at, updated_at
		FROM pairings WHERE id = $1`, id)
	return scanPairing(row)
}

func (r *PostgresRepository) GetPairingByInviteCode(ctx context.Context, code string) (*models.Pairing, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, invite_code, primary_actor_id, state, version, created_at, updated_at
		FROM pairings WHERE invite_code = $1`, code)
	p, err := scanPairing(row)
	if errors.Is(err, ErrPairingNotFound) {
		return nil, ErrInviteCodeNotFound
	}
	return p, err
}

func (r *PostgresRepository) UpdatePairing(ctx context.Context, p *models.Pairing, expectedVersion int64) (*models.Pairing, error) {
	doc, err := json.Marshal(docFromPairing(p))
	if err != nil {
		return nil, fmt.Errorf("marshal pairing state: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE pairings
		SET state = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		doc, p.UpdatedAt, p.ID, expectedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update pairing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row is gone or another writer moved the version
		if _, getErr := r.GetPairing(ctx, p.ID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrVersionConflict
	}

	return r.GetPairing(ctx, p.ID)
}

func docFromPairing(p *models.Pairing) pairingDoc {
	return pairingDoc{
		SecondaryActorID: p.SecondaryActorID,
		WindowSec:        p.WindowSec,
		PrimaryPress:     p.PrimaryPress,
		SecondaryPress:   p.SecondaryPress,
		Status:           p.Status,
		CurrentOutcome:   p.CurrentOutcome,
		RecentOutcomes:   p.RecentOutcomes,
		HistoryCapacity:  p.HistoryCapacity,
	}
}

func scanPairing(row pgx.Row) (*models.Pairing, error) {
	var (
		p         models.Pairing
		docBytes  []byte
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&p.ID, &p.InviteCode, &p.PrimaryActorID, &docBytes, &p.Version, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPairingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pairing: %w", err)
	}

	var doc pairingDoc
	if err := json.Unmarshal(docBytes, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal pairing state: %w", err)
	}

	p.SecondaryActorID = doc.SecondaryActorID
	p.WindowSec = doc.WindowSec
	p.PrimaryPress = doc.PrimaryPress
	p.SecondaryPress = doc.SecondaryPress
	p.Status = doc.Status
	p.CurrentOutcome = doc.CurrentOutcome
	p.RecentOutcomes = doc.RecentOutcomes
	p.HistoryCapacity = doc.HistoryCapacity
	p.CreatedAt = createdAt
	p.UpdatedAt = updatedAt
	return &p, nil
}
