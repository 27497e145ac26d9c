package pairclient

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// StateFetcher reads canonical state from the server's poll endpoints
type StateFetcher interface {
	FetchPairing(ctx context.Context, pairingID string) (PairingView, error)
	FetchContest(ctx context.Context, contestID string) (ContestView, error)
}

// Poller is the reconciliation safety net: while the local view is
// non-terminal it periodically fetches canonical state and feeds it through
// the store's forward-only merge. Push delivery being best-effort, this is
// what guarantees convergence for backgrounded clients, dropped channels and
// permission-denied actors.
type Poller struct {
	fetcher  StateFetcher
	store    *StateStore
	clock    clockwork.Clock
	interval time.Duration

	mu       sync.Mutex
	contests map[string]bool
}

// NewPoller creates a poller over the given store
func NewPoller(fetcher StateFetcher, store *StateStore, clock clockwork.Clock, interval time.Duration) *Poller {
	return &Poller{
		fetcher:  fetcher,
		store:    store,
		clock:    clock,
		interval: interval,
		contests: make(map[string]bool),
	}
}

// TrackContest adds a contest to the reconciliation set
func (p *Poller) TrackContest(contestID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contests[contestID] = true
}

// Run polls until every tracked view is terminal or ctx is done. Fetch
// failures are transient: logged and retried on the next tick, never
// surfaced.
func (p *Poller) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if done := p.tick(ctx); done {
				log.Debug().Msg("all views terminal, reconciliation poller stopping")
				return
			}
		}
	}
}

// tick reconciles every non-terminal view once and reports whether all
// views are terminal
func (p *Poller) tick(ctx context.Context) bool {
	allTerminal := true

	pairing := p.store.Pairing()
	if !pairing.Terminal() {
		remote, err := p.fetcher.FetchPairing(ctx, pairing.PairingID)
		if err != nil {
			log.Warn().Err(err).Str("pairing_id", pairing.PairingID).Msg("pairing poll failed")
			allTerminal = false
		} else if !p.store.ApplyPairing(remote).Terminal() {
			allTerminal = false
		}
	}

	p.mu.Lock()
	ids := make([]string, 0, len(p.contests))
	for id := range p.contests {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		if local, ok := p.store.Contest(id); ok && local.Terminal() {
			continue
		}
		remote, err := p.fetcher.FetchContest(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("contest_id", id).Msg("contest poll failed")
			allTerminal = false
			continue
		}
		if !p.store.ApplyContest(remote).Terminal() {
			allTerminal = false
		}
	}

	return allTerminal
}
