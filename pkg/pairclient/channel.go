package pairclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ConnState is the channel's surfaced connection state
type ConnState string

const (
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	StateOffline      ConnState = "offline"
)

// ChannelConfig configures the reconnecting channel
type ChannelConfig struct {
	// URL is the full WebSocket URL, including pairing_id and actor_id
	URL string

	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int

	Dialer *websocket.Dialer
}

// DefaultChannelConfig returns the default reconnect policy
func DefaultChannelConfig(url string) ChannelConfig {
	return ChannelConfig{
		URL:         url,
		BaseDelay:   time.Second,
		MaxDelay:    8 * time.Second,
		MaxAttempts: 6,
		Dialer:      websocket.DefaultDialer,
	}
}

// Channel owns one reconnecting duplex message channel for an actor. Inbound
// frames are parsed as {type, data} and forwarded to the dispatcher;
// malformed frames are dropped and logged, never crash the channel.
type Channel struct {
	config     ChannelConfig
	dispatcher *Dispatcher
	clock      clockwork.Clock

	// onState, when set, surfaces connection state changes (offline after
	// reconnect attempts are exhausted)
	onState func(ConnState)

	mu      sync.Mutex
	conn    *websocket.Conn
	attempt int
	closed  bool
}

// NewChannel creates a channel that feeds the given dispatcher
func NewChannel(config ChannelConfig, dispatcher *Dispatcher, clock clockwork.Clock, onState func(ConnState)) *Channel {
	if config.Dialer == nil {
		config.Dialer = websocket.DefaultDialer
	}
	return &Channel{
		config:     config,
		dispatcher: dispatcher,
		clock:      clock,
		onState:    onState,
	}
}

// Open establishes the channel and starts the read loop. A successful open
// resets the backoff attempt counter to zero.
func (c *Channel) Open(ctx context.Context) error {
	conn, _, err := c.config.Dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.config.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.attempt = 0
	c.closed = false
	c.mu.Unlock()

	c.setState(StateConnected)
	go c.readLoop(ctx, conn)

	log.Debug().Str("url", c.config.URL).Msg("channel opened")
	return nil
}

// Send writes a message to the channel. When the channel is not open the
// send is dropped and logged; there is no queueing — missed state is
// recovered by the reconciliation poller.
func (c *Channel) Send(v any) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		log.Warn().Str("url", c.config.URL).Msg("send on closed channel dropped")
		return
	}
	if err := conn.WriteJSON(v); err != nil {
		log.Warn().Err(err).Str("url", c.config.URL).Msg("channel send failed")
	}
}

// Close tears the channel down; no reconnect is scheduled afterwards
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.conn = nil
			c.mu.Unlock()

			if closed || ctx.Err() != nil {
				return
			}

			log.Warn().Err(err).Str("url", c.config.URL).Msg("channel closed unexpectedly")
			c.reconnect(ctx)
			return
		}

		var msg Message
		if err := json.Unmarshal(frame, &msg); err != nil || msg.Type == "" {
			log.Warn().Err(err).Str("url", c.config.URL).Msg("dropping malformed frame")
			continue
		}
		c.dispatcher.Dispatch(msg.Type, msg.Data)
	}
}

// reconnect retries with exponential backoff until it succeeds, the context
// is done, or MaxAttempts is exhausted (the actor is then surfaced offline;
// store-side state remains valid and reconciliable later)
func (c *Channel) reconnect(ctx context.Context) {
	c.setState(StateReconnecting)

	for {
		c.mu.Lock()
		c.attempt++
		attempt := c.attempt
		c.mu.Unlock()

		if attempt > c.config.MaxAttempts {
			log.Warn().
				Str("url", c.config.URL).
				Int("attempts", attempt-1).
				Msg("reconnect attempts exhausted, channel offline")
			c.setState(StateOffline)
			return
		}

		delay := Delay(attempt, c.config.BaseDelay, c.config.MaxDelay)
		log.Debug().
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("scheduling channel reconnect")

		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(delay):
		}

		conn, _, err := c.config.Dialer.DialContext(ctx, c.config.URL, nil)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.attempt = 0
		c.mu.Unlock()

		c.setState(StateConnected)
		log.Info().Str("url", c.config.URL).Msg("channel reconnected")
		go c.readLoop(ctx, conn)
		return
	}
}

func (c *Channel) setState(state ConnState) {
	if c.onState != nil {
		c.onState(state)
	}
}
