package contest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tandemlabs/tandem/internal/models"
)

// uniqueViolation is the Postgres error code backing submission write-once
const uniqueViolation = "23505"

// PostgresRepository persists contests in Postgres. The item list and role
// state live in a jsonb document; the version column carries the
// compare-and-set guard; answer submissions are an append-only table with a
// (contest_id, role, item_id) primary key.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

type contestDoc struct {
	RespondentActorID *uuid.UUID           `json:"respondent_actor_id,omitempty"`
	Category          string               `json:"category"`
	Items             []models.ContestItem `json:"items"`
	Status            models.ContestStatus `json:"status"`
	InitiatorScore    *int                 `json:"initiator_score,omitempty"`
	RespondentScore   *int                 `json:"respondent_score,omitempty"`
	AcceptedAt        *time.Time           `json:"accepted_at,omitempty"`
	CompletedAt       *time.Time           `json:"completed_at,omitempty"`
}

func (r *PostgresRepository) CreateContest(ctx context.Context, c *models.Contest) error {
	doc, err := json.Marshal(docFromContest(c))
	if err != nil {
		return fmt.Errorf("marshal contest state: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO contests (id, pairing_id, initiator_actor_id, state, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.PairingID, c.InitiatorActorID, doc, c.Version, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert contest: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetContest(ctx context.Context, id uuid.UUID) (*models.Contest, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, pairing_id, initiator_actor_id, state, version, created_at, updated_at
		FROM contests WHERE id = $1`, id)
	return scanContest(row)
}

func (r *PostgresRepository) UpdateContest(ctx context.Context, c *models.Contest, expectedVersion int64) (*models.Contest, error) {
	doc, err := json.Marshal(docFromContest(c))
	if err != nil {
		return nil, fmt.Errorf("marshal contest state: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE contests
		SET state = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		doc, c.UpdatedAt, c.ID, expectedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update contest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetContest(ctx, c.ID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrVersionConflict
	}

	return r.GetContest(ctx, c.ID)
}

func (r *PostgresRepository) AppendSubmissions(ctx context.Context, subs []models.AnswerSubmission) error {
	for _, sub := range subs {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO answer_submissions (contest_id, role, item_id, chosen_option, correct, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			sub.ContestID, string(sub.Role), sub.ItemID, sub.ChosenOption, sub.Correct, sub.SubmittedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return ErrAlreadySubmitted
			}
			return fmt.Errorf("insert submission: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) ListSubmissions(ctx context.Context, contestID uuid.UUID, role models.ActorRole) ([]models.AnswerSubmission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT contest_id, role, item_id, chosen_option, correct, submitted_at
		FROM answer_submissions
		WHERE contest_id = $1 AND role = $2
		ORDER BY submitted_at`, contestID, string(role))
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []models.AnswerSubmission
	for rows.Next() {
		var sub models.AnswerSubmission
		var roleStr string
		if err := rows.Scan(&sub.ContestID, &roleStr, &sub.ItemID, &sub.ChosenOption, &sub.Correct, &sub.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub.Role = models.ActorRole(roleStr)
		out = append(out, sub)
	}
	return out, rows.Err()
}

func docFromContest(c *models.Contest) contestDoc {
	return contestDoc{
		RespondentActorID: c.RespondentActorID,
		Category:          c.Category,
		Items:             c.Items,
		Status:            c.Status,
		InitiatorScore:    c.InitiatorScore,
		RespondentScore:   c.RespondentScore,
		AcceptedAt:        c.AcceptedAt,
		CompletedAt:       c.CompletedAt,
	}
}

func scanContest(row pgx.Row) (*models.Contest, error) {
	var (
		c        models.Contest
		docBytes []byte
	)
	err := row.Scan(&c.ID, &c.PairingID, &c.InitiatorActorID, &docBytes, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrContestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan contest: %w", err)
	}

	var doc contestDoc
	if err := json.Unmarshal(docBytes, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal contest state: %w", err)
	}

	c.RespondentActorID = doc.RespondentActorID
	c.Category = doc.Category
	c.Items = doc.Items
	c.Status = doc.Status
	c.InitiatorScore = doc.InitiatorScore
	c.RespondentScore = doc.RespondentScore
	c.AcceptedAt = doc.AcceptedAt
	c.CompletedAt = doc.CompletedAt
	return &c, nil
}
