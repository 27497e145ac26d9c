package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/tandemlabs/tandem/internal/models"
)

// Registrar creates the vendor-side subscription for an actor once
// permission is granted and the server's public key is known. In production
// this is the browser runtime reporting its endpoint and keys back.
type Registrar interface {
	CreateSubscription(ctx context.Context, actorID uuid.UUID, vapidPublicKey string) (*models.PushSubscription, error)
}

// Service manages the durable, vendor-independent push registration
// lifecycle and routes notifications, degrading to the fallback channel when
// push is denied, unconfigured, or stale
type Service struct {
	repo        Repository
	permissions PermissionProvider
	registrar   Registrar
	sender      Sender
	fallback    FallbackNotifier
	cfg         Config
	clock       clockwork.Clock
}

func NewService(repo Repository, permissions PermissionProvider, registrar Registrar, sender Sender, fallback FallbackNotifier, cfg Config, clock clockwork.Clock) *Service {
	return &Service{
		repo:        repo,
		permissions: permissions,
		registrar:   registrar,
		sender:      sender,
		fallback:    fallback,
		cfg:         cfg,
		clock:       clock,
	}
}

// Subscribe walks permission -> server key -> vendor registration -> durable
// store. A previously denied permission fails fast with no network calls.
func (s *Service) Subscribe(ctx context.Context, actorID uuid.UUID) (*models.PushSubscription, error) {
	if err := s.checkPermission(ctx, actorID); err != nil {
		return nil, err
	}
	if !s.cfg.Configured() || s.registrar == nil {
		return nil, ErrNotConfigured
	}

	sub, err := s.registrar.CreateSubscription(ctx, actorID, s.cfg.VAPIDPublicKey)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	sub.ActorID = actorID
	sub.CreatedAt = s.clock.Now()

	if err := s.repo.SaveSubscription(ctx, sub); err != nil {
		return nil, err
	}

	log.Info().
		Str("actor_id", actorID.String()).
		Msg("push subscription registered")
	return sub, nil
}

// Register stores a vendor registration the client runtime already obtained,
// enforcing the same permission and configuration gates as Subscribe
func (s *Service) Register(ctx context.Context, actorID uuid.UUID, endpoint, p256dh, auth string) (*models.PushSubscription, error) {
	if err := s.checkPermission(ctx, actorID); err != nil {
		return nil, err
	}
	if !s.cfg.Configured() {
		return nil, ErrNotConfigured
	}

	sub := &models.PushSubscription{
		ActorID:   actorID,
		Endpoint:  endpoint,
		P256dh:    p256dh,
		Auth:      auth,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.SaveSubscription(ctx, sub); err != nil {
		return nil, err
	}

	log.Info().
		Str("actor_id", actorID.String()).
		Msg("push subscription registered")
	return sub, nil
}

// checkPermission resolves the runtime permission, prompting when the actor
// has not decided yet. Denied fails fast with no network calls.
func (s *Service) checkPermission(ctx context.Context, actorID uuid.UUID) error {
	status, err := s.permissions.Status(ctx, actorID)
	if err != nil {
		return fmt.Errorf("permission status: %w", err)
	}
	if status == PermissionDenied {
		return ErrPermissionDenied
	}
	if status == PermissionPrompt {
		status, err = s.permissions.Request(ctx, actorID)
		if err != nil {
			return fmt.Errorf("permission request: %w", err)
		}
		if status != PermissionGranted {
			return ErrPermissionDenied
		}
	}
	return nil
}

// Unsubscribe removes the stored registration. Removing a registration that
// does not exist is a success.
func (s *Service) Unsubscribe(ctx context.Context, actorID uuid.UUID) error {
	return s.repo.DeleteSubscription(ctx, actorID)
}

// IsSubscribed is a pure read; it never mutates
func (s *Service) IsSubscribed(ctx context.Context, actorID uuid.UUID) (bool, error) {
	_, err := s.repo.GetSubscription(ctx, actorID)
	if err == ErrNoSubscription {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Notify delivers a message to an actor via push, silently degrading to the
// fallback channel when push cannot serve them
func (s *Service) Notify(ctx context.Context, actorID uuid.UUID, message string, payload []byte) error {
	if !s.cfg.Configured() {
		return s.notifyFallback(ctx, actorID, message, "push not configured")
	}

	status, err := s.permissions.Status(ctx, actorID)
	if err == nil && status == PermissionDenied {
		return s.notifyFallback(ctx, actorID, message, "permission denied")
	}

	sub, err := s.repo.GetSubscription(ctx, actorID)
	if err == ErrNoSubscription {
		return s.notifyFallback(ctx, actorID, message, "no subscription")
	}
	if err != nil {
		return err
	}

	err = s.sender.Send(ctx, *sub, payload)
	if err == ErrEndpointGone {
		// The client reported the endpoint invalid; drop the stale record
		if delErr := s.repo.DeleteSubscription(ctx, actorID); delErr != nil {
			log.Error().Err(delErr).Str("actor_id", actorID.String()).Msg("failed to delete stale subscription")
		}
		return s.notifyFallback(ctx, actorID, message, "endpoint gone")
	}
	if err != nil {
		return fmt.Errorf("notify %s: %w", actorID, err)
	}
	return nil
}

// NotifyPartnerWaiting nudges the partner that a press is pending so they
// can act within the window
func (s *Service) NotifyPartnerWaiting(ctx context.Context, pairingID, actorID uuid.UUID, pressedAt, expiresAt time.Time) error {
	payload, err := json.Marshal(map[string]any{
		"type":       "partner_waiting",
		"pairing_id": pairingID.String(),
		"pressed_at": pressedAt,
		"expires_at": expiresAt,
	})
	if err != nil {
		return err
	}
	return s.Notify(ctx, actorID, "Your partner is waiting for you!", payload)
}

func (s *Service) notifyFallback(ctx context.Context, actorID uuid.UUID, message, reason string) error {
	log.Debug().
		Str("actor_id", actorID.String()).
		Str("reason", reason).
		Msg("degrading notification to fallback channel")

	if s.fallback == nil {
		return nil
	}
	if err := s.fallback.Notify(ctx, actorID.String(), message); err != nil {
		// Fire-and-forget: fallback failures are logged, never surfaced
		log.Warn().Err(err).Str("actor_id", actorID.String()).Msg("fallback notification failed")
	}
	return nil
}
