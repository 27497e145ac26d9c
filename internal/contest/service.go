package contest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/tandemlabs/tandem/internal/events"
	"github.com/tandemlabs/tandem/internal/models"
)

// casRetries bounds compare-and-set replays for transitions that may
// legitimately race (accept from two actors, both sides submitting at once)
const casRetries = 5

// PairingMembership answers whether an actor occupies a slot of a pairing.
// Satisfied by the pairing service.
type PairingMembership interface {
	IsMember(ctx context.Context, pairingID, actorID uuid.UUID) (bool, error)
}

// Service is the contest coordinator: sender-initiated, respondent-accepted,
// independently scored, reaching a single completion
type Service struct {
	repo        Repository
	publisher   events.Publisher
	memberships PairingMembership
	clock       clockwork.Clock

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewService(repo Repository, publisher events.Publisher, memberships PairingMembership, clock clockwork.Clock) *Service {
	return &Service{
		repo:        repo,
		publisher:   publisher,
		memberships: memberships,
		clock:       clock,
		rnd:         rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

// Create allocates a contest in CREATED with its ordered item list frozen at
// creation time, so both sides always answer identical items
func (s *Service) Create(ctx context.Context, req CreateContestRequest) (*models.Contest, error) {
	member, err := s.memberships.IsMember(ctx, req.PairingID, req.InitiatorActorID)
	if err != nil {
		return nil, fmt.Errorf("check pairing membership: %w", err)
	}
	if !member {
		return nil, ErrNotParticipant
	}

	s.rndMu.Lock()
	items, err := drawItems(req.Category, s.rnd)
	s.rndMu.Unlock()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	c := &models.Contest{
		ID:               uuid.New(),
		PairingID:        req.PairingID,
		InitiatorActorID: req.InitiatorActorID,
		Category:         req.Category,
		Items:            items,
		Status:           models.ContestStatusCreated,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.CreateContest(ctx, c); err != nil {
		return nil, fmt.Errorf("create contest: %w", err)
	}

	s.publish(ctx, c.PairingID, events.TypeContestCreated, now, events.ContestCreatedPayload{
		ContestID: c.ID.String(),
		PairingID: c.PairingID.String(),
		Initiator: c.InitiatorActorID.String(),
		Category:  c.Category,
		ItemCount: len(c.Items),
		CreatedAt: now,
	}, nil)

	log.Info().
		Str("contest_id", c.ID.String()).
		Str("pairing_id", c.PairingID.String()).
		Str("category", c.Category).
		Msg("contest created")

	return c, nil
}

// Accept fills the respondent slot exactly once. Under concurrent accepts the
// first compare-and-set writer wins; the loser observes the winner's write on
// replay and gets ErrAlreadyAccepted.
func (s *Service) Accept(ctx context.Context, contestID, actorID uuid.UUID) (*models.Contest, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		c, err := s.repo.GetContest(ctx, contestID)
		if err != nil {
			return nil, err
		}
		if c.InitiatorActorID == actorID {
			return nil, ErrSelfAccept
		}
		if c.RespondentActorID != nil {
			return nil, ErrAlreadyAccepted
		}
		if c.Status != models.ContestStatusCreated {
			return nil, ErrInvalidTransition
		}

		now := s.clock.Now()
		c.RespondentActorID = &actorID
		c.AcceptedAt = &now
		c.Status = models.ContestStatusAccepted
		c.UpdatedAt = now

		updated, err := s.repo.UpdateContest(ctx, c, c.Version)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("accept contest: %w", err)
		}

		// The initiator's channel gets the accepted event so their client
		// auto-enters the answer phase
		s.publish(ctx, updated.PairingID, events.TypeAccepted, now, events.AcceptedPayload{
			ContestID:  updated.ID.String(),
			Respondent: actorID.String(),
			AcceptedAt: now,
		}, &updated.InitiatorActorID)

		log.Info().
			Str("contest_id", updated.ID.String()).
			Str("respondent_actor_id", actorID.String()).
			Msg("contest accepted")

		return updated, nil
	}
	return nil, ErrAlreadyAccepted
}

// Start moves ACCEPTED to IN_PROGRESS when either participant enters the
// answer phase. Calling it again while IN_PROGRESS is a no-op.
func (s *Service) Start(ctx context.Context, contestID, actorID uuid.UUID) (*models.Contest, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		c, err := s.repo.GetContest(ctx, contestID)
		if err != nil {
			return nil, err
		}
		if _, ok := c.RoleOf(actorID); !ok {
			return nil, ErrNotParticipant
		}
		switch c.Status {
		case models.ContestStatusInProgress, models.ContestStatusCompleted:
			return c, nil
		case models.ContestStatusCreated:
			return nil, ErrInvalidTransition
		}

		c.Status = models.ContestStatusInProgress
		c.UpdatedAt = s.clock.Now()

		updated, err := s.repo.UpdateContest(ctx, c, c.Version)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("start contest: %w", err)
		}
		return updated, nil
	}
	return nil, ErrVersionConflict
}

// SubmitAnswers scores one actor's answers against the frozen item list.
// Valid once per role; a second submission is rejected and never overwrites
// the recorded score. When both scores are present the contest completes and
// a completed event carries both scores to both actors.
func (s *Service) SubmitAnswers(ctx context.Context, contestID, actorID uuid.UUID, answers []AnswerChoice) (*SubmitResult, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		c, err := s.repo.GetContest(ctx, contestID)
		if err != nil {
			return nil, err
		}
		role, ok := c.RoleOf(actorID)
		if !ok {
			return nil, ErrNotParticipant
		}
		if c.Status == models.ContestStatusCreated {
			return nil, ErrInvalidTransition
		}
		if c.ScoreFor(role) != nil {
			return nil, ErrAlreadySubmitted
		}

		now := s.clock.Now()
		score, subs, err := scoreAnswers(c, role, answers, now)
		if err != nil {
			return nil, err
		}

		if role == models.RoleInitiator {
			c.InitiatorScore = &score
		} else {
			c.RespondentScore = &score
		}
		// Submitting is entering the answer phase
		if c.Status == models.ContestStatusAccepted {
			c.Status = models.ContestStatusInProgress
		}
		completed := c.InitiatorScore != nil && c.RespondentScore != nil
		if completed {
			c.Status = models.ContestStatusCompleted
			c.CompletedAt = &now
		}
		c.UpdatedAt = now

		updated, err := s.repo.UpdateContest(ctx, c, c.Version)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("submit answers: %w", err)
		}

		if err := s.repo.AppendSubmissions(ctx, subs); err != nil {
			// The score write won the CAS, so duplicates here cannot happen
			// through this code path; log and carry on with the scored state
			log.Error().
				Err(err).
				Str("contest_id", contestID.String()).
				Msg("failed to append answer submissions")
		}

		if completed {
			s.publish(ctx, updated.PairingID, events.TypeCompleted, now, events.CompletedPayload{
				ContestID:       updated.ID.String(),
				InitiatorScore:  *updated.InitiatorScore,
				RespondentScore: *updated.RespondentScore,
				CompletedAt:     now,
			}, nil)

			log.Info().
				Str("contest_id", updated.ID.String()).
				Int("initiator_score", *updated.InitiatorScore).
				Int("respondent_score", *updated.RespondentScore).
				Msg("contest completed")
		}

		return &SubmitResult{
			Contest:   updated,
			Role:      role,
			Score:     score,
			Completed: completed,
		}, nil
	}
	return nil, ErrVersionConflict
}

// GetContest is a pure read of canonical state, used by the poll endpoint.
// A contest that has not completed yet is returned as-is, never blocked on.
func (s *Service) GetContest(ctx context.Context, id uuid.UUID) (*models.Contest, error) {
	return s.repo.GetContest(ctx, id)
}

// scoreAnswers checks each choice against the frozen items and builds the
// append-only submission rows
func scoreAnswers(c *models.Contest, role models.ActorRole, answers []AnswerChoice, now time.Time) (int, []models.AnswerSubmission, error) {
	// A partial set would silently score the missing items as wrong while
	// consuming the role's single submission, so require full coverage up
	// front. Combined with the unknown-item and duplicate checks below this
	// forces exactly one answer per frozen item.
	if len(answers) != len(c.Items) {
		return 0, nil, fmt.Errorf("%w: got %d answers for %d items", ErrIncompleteSubmission, len(answers), len(c.Items))
	}
	itemsByID := make(map[string]models.ContestItem, len(c.Items))
	for _, item := range c.Items {
		itemsByID[item.ID] = item
	}

	seen := make(map[string]bool, len(answers))
	score := 0
	subs := make([]models.AnswerSubmission, 0, len(answers))
	for _, ans := range answers {
		item, ok := itemsByID[ans.ItemID]
		if !ok {
			return 0, nil, fmt.Errorf("answer references unknown item %q", ans.ItemID)
		}
		if seen[ans.ItemID] {
			return 0, nil, fmt.Errorf("duplicate answer for item %q", ans.ItemID)
		}
		seen[ans.ItemID] = true

		correct := ans.Option == item.CorrectOption
		if correct {
			score++
		}
		subs = append(subs, models.AnswerSubmission{
			ContestID:    c.ID,
			Role:         role,
			ItemID:       ans.ItemID,
			ChosenOption: ans.Option,
			Correct:      correct,
			SubmittedAt:  now,
		})
	}
	return score, subs, nil
}

func (s *Service) publish(ctx context.Context, pairingID uuid.UUID, eventType string, now time.Time, payload any, target *uuid.UUID) {
	event, err := events.New(pairingID, eventType, now, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}
	if target != nil {
		event = event.Targeted(*target)
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("event_type", eventType).
			Str("pairing_id", pairingID.String()).
			Msg("failed to publish event")
	}
}
