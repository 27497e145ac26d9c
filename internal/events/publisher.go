package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Publisher fans out a store transition to the pairing's channel subject
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// JetStreamPublisher publishes events to a NATS JetStream stream, one
// subject per pairing so per-channel ordering matches store order
type JetStreamPublisher struct {
	js            jetstream.JetStream
	subjectPrefix string
}

// NewJetStreamPublisher creates a publisher and ensures the stream exists
func NewJetStreamPublisher(ctx context.Context, js jetstream.JetStream, streamName, subjectPrefix string) (*JetStreamPublisher, error) {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ".>"},
	})
	if err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", streamName, err)
	}

	return &JetStreamPublisher{
		js:            js,
		subjectPrefix: subjectPrefix,
	}, nil
}

func (p *JetStreamPublisher) Publish(ctx context.Context, event Event) error {
	subject := fmt.Sprintf("%s.%s.%s", p.subjectPrefix, event.PairingID, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	log.Debug().
		Str("event_id", event.ID.String()).
		Str("event_type", event.Type).
		Str("subject", subject).
		Msg("event published")

	return nil
}

// LogPublisher records events in memory and logs them; used for development
// without a broker and for tests
type LogPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()

	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", event.Type).
		Str("pairing_id", event.PairingID.String()).
		Msg("publishing event")
	return nil
}

// Events returns a snapshot of everything published so far
func (p *LogPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}
