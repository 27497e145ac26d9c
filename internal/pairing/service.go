package pairing

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

// casRetries bounds how often a press transition is retried after losing a
// compare-and-set race before the conflict is surfaced
const casRetries = 5

const inviteCodeLen = 6

const inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// PartnerNotifier delivers the best-effort "partner is waiting" nudge.
// Implementations fall back to alternate channels on their own; failures
// never block the press transition.
type PartnerNotifier interface {
	NotifyPartnerWaiting(ctx context.Context, pairingID, actorID uuid.UUID, pressedAt, expiresAt time.Time) error
}

// Service is the pairing synchronizer: it resolves "both actors pressed
// within the window" into a single shared outcome
type Service struct {
	repo      Repository
	publisher events.Publisher
	notifier  PartnerNotifier
	clock     clockwork.Clock
	catalog   []string

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewService creates a pairing synchronizer. notifier may be nil when no
// notification channel is configured.
func NewService(repo Repository, publisher events.Publisher, notifier PartnerNotifier, clock clockwork.Clock, catalog []string) *Service {
	if len(catalog) == 0 {
		catalog = DefaultOutcomeCatalog
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		notifier:  notifier,
		clock:     clock,
		catalog:   catalog,
		rnd:       rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

// CreatePairing registers the first actor and mints an invite code
func (s *Service) CreatePairing(ctx context.Context, req CreatePairingRequest) (*models.Pairing, error) {
	now := s.clock.Now()
	p := &models.Pairing{
		ID:              uuid.New(),
		InviteCode:      s.newInviteCode(),
		PrimaryActorID:  req.PrimaryActorID,
		WindowSec:       req.WindowSec,
		HistoryCapacity: req.HistoryCapacity,
		Status:          models.PairingStatusIdle,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.CreatePairing(ctx, p); err != nil {
		return nil, fmt.Errorf("create pairing: %w", err)
	}

	log.Info().
		Str("pairing_id", p.ID.String()).
		Str("primary_actor_id", p.PrimaryActorID.String()).
		Msg("pairing created")

	return p, nil
}

// JoinPairing fills the secondary slot exactly once via compare-and-set
func (s *Service) JoinPairing(ctx context.Context, inviteCode string, actorID uuid.UUID) (*models.Pairing, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		p, err := s.repo.GetPairingByInviteCode(ctx, inviteCode)
		if err != nil {
			return nil, err
		}
		if p.PrimaryActorID == actorID {
			return p, nil
		}
		if p.SecondaryActorID != nil {
			if *p.SecondaryActorID == actorID {
				return p, nil
			}
			return nil, ErrPairingFull
		}

		p.SecondaryActorID = &actorID
		p.UpdatedAt = s.clock.Now()

		updated, err := s.repo.UpdatePairing(ctx, p, p.Version)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("join pairing: %w", err)
		}

		log.Info().
			Str("pairing_id", updated.ID.String()).
			Str("secondary_actor_id", actorID.String()).
			Msg("pairing joined")
		return updated, nil
	}
	return nil, ErrPairingFull
}

// RecordPress applies one actor's press. The transition is atomic per
// pairing: the repository update is a compare-and-set, and a lost race is
// replayed against the winner's state so two near-simultaneous presses
// produce exactly one outcome.
func (s *Service) RecordPress(ctx context.Context, pairingID, actorID uuid.UUID) (*PressResult, error) {
	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		p, err := s.repo.GetPairing(ctx, pairingID)
		if err != nil {
			return nil, err
		}
		if !p.IsMember(actorID) {
			return nil, ErrNotMember
		}

		now := s.clock.Now()
		effect := applyPress(p, actorID, now, func(recent []string) string {
			return s.pickOutcome(recent)
		})

		updated, err := s.repo.UpdatePairing(ctx, p, p.Version)
		if errors.Is(err, ErrVersionConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("record press: %w", err)
		}

		s.emitPressEffect(ctx, updated, actorID, effect, now)

		return &PressResult{
			Pairing:  updated,
			Resolved: effect == effectResolved,
			Outcome:  updated.CurrentOutcome,
		}, nil
	}
	return nil, fmt.Errorf("record press: retries exhausted: %w", lastErr)
}

// GetPairing is a pure read of canonical state, used by the poll endpoint
func (s *Service) GetPairing(ctx context.Context, id uuid.UUID) (*models.Pairing, error) {
	return s.repo.GetPairing(ctx, id)
}

// IsMember reports whether actorID occupies one of the pairing's two slots.
// Lookup errors, including an unknown pairing, propagate to the caller.
func (s *Service) IsMember(ctx context.Context, pairingID, actorID uuid.UUID) (bool, error) {
	p, err := s.repo.GetPairing(ctx, pairingID)
	if err != nil {
		return false, err
	}
	return p.IsMember(actorID), nil
}

func (s *Service) emitPressEffect(ctx context.Context, p *models.Pairing, actorID uuid.UUID, effect pressEffect, now time.Time) {
	switch effect {
	case effectResolved:
		payload := events.ResolutionPayload{
			PairingID:   p.ID.String(),
			OutcomeID:   p.CurrentOutcome.ID,
			GeneratedAt: p.CurrentOutcome.GeneratedAt,
		}
		s.publish(ctx, p.ID, events.TypeResolution, now, payload, nil)

		log.Info().
			Str("pairing_id", p.ID.String()).
			Str("outcome_id", p.CurrentOutcome.ID).
			Msg("pairing resolved")

	case effectPendingStarted:
		partner := p.PartnerOf(actorID)
		if partner == nil {
			return
		}
		press := p.PressFor(actorID)
		payload := events.PartnerWaitingPayload{
			PairingID: p.ID.String(),
			ActorID:   actorID.String(),
			PressedAt: press.PressedAt,
			ExpiresAt: press.PressedAt.Add(p.Window()),
		}
		s.publish(ctx, p.ID, events.TypePartnerWaiting, now, payload, partner)

		if s.notifier != nil {
			// Fire-and-forget; push failure degrades to the fallback
			// channel inside the notifier, never blocks the press
			go func(pairingID, partnerID uuid.UUID, pressedAt, expiresAt time.Time) {
				notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				if err := s.notifier.NotifyPartnerWaiting(notifyCtx, pairingID, partnerID, pressedAt, expiresAt); err != nil {
					log.Warn().
						Err(err).
						Str("pairing_id", pairingID.String()).
						Msg("partner waiting notification failed")
				}
			}(p.ID, *partner, press.PressedAt, press.PressedAt.Add(p.Window()))
		}

	case effectRefreshed:
		// Timestamp refresh only, nothing to broadcast
	}
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

func (s *Service) pickOutcome(recent []string) string {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return pickOutcome(s.catalog, recent, s.rnd)
}

func (s *Service) newInviteCode() string {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()

	code := make([]byte, inviteCodeLen)
	for i := range code {
		code[i] = inviteCodeAlphabet[s.rnd.Intn(len(inviteCodeAlphabet))]
	}
	return string(code)
}
