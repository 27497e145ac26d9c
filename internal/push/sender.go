package push

import (
	"context"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog/log"
	"github.com/tandemlabs/tandem/internal/models"
)

// Sender delivers a payload to one push endpoint. ErrEndpointGone signals
// the vendor no longer knows the endpoint and the registration is stale.
type Sender interface {
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) error
}

// WebPushSender talks the Web Push protocol with VAPID auth
type WebPushSender struct {
	cfg Config
}

// Config holds the server-side Web Push settings. Empty VAPID keys mean the
// feature is not configured.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string // contact mailto/URL sent to the vendor
	TTLSec          int
}

// Configured reports whether the server can do Web Push at all
func (c Config) Configured() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func NewWebPushSender(cfg Config) *WebPushSender {
	return &WebPushSender{cfg: cfg}
}

func (s *WebPushSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	if !s.cfg.Configured() {
		return ErrNotConfigured
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.cfg.Subscriber,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             s.cfg.TTLSec,
	})
	if err != nil {
		return fmt.Errorf("send web push: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return ErrEndpointGone
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push vendor returned status %d", resp.StatusCode)
	}

	log.Debug().
		Str("actor_id", sub.ActorID.String()).
		Int("status", resp.StatusCode).
		Msg("push delivery attempted")
	return nil
}

// FallbackNotifier is the alternate-channel contract (SMS/email). Sends are
// fire-and-forget from the caller's point of view.
type FallbackNotifier interface {
	Notify(ctx context.Context, actorID string, message string) error
}

// LogFallback logs instead of sending; stands in when no SMS/email vendor
// is wired up
type LogFallback struct{}

func (LogFallback) Notify(ctx context.Context, actorID string, message string) error {
	log.Info().
		Str("actor_id", actorID).
		Str("message", message).
		Msg("fallback notification")
	return nil
}
