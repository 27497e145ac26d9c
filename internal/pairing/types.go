package pairing

import (
	"time"

	"github.com/google/uuid"
	"github.com/tandemlabs/tandem/internal/models"
)

// CreatePairingRequest represents the first actor registering a pairing
type CreatePairingRequest struct {
	PrimaryActorID  uuid.UUID `json:"primary_actor_id"`
	WindowSec       int       `json:"window_sec"`
	HistoryCapacity int       `json:"history_capacity"`
}

// PressResult reports what a press transitioned the pairing into
type PressResult struct {
	Pairing  *models.Pairing       `json:"pairing"`
	Resolved bool                  `json:"resolved"`
	Outcome  *models.SharedOutcome `json:"outcome,omitempty"`
}

// pressEffect is the side effect a press transition asks the service to emit
type pressEffect int

const (
	effectNone pressEffect = iota
	effectPendingStarted
	effectRefreshed
	effectResolved
)

// applyPress mutates p in place with the state-machine transition for one
// press and reports which effect applies. Pure apart from pick; callers own
// atomicity via compare-and-set on the repository.
func applyPress(p *models.Pairing, actorID uuid.UUID, now time.Time, pick func(recent []string) string) pressEffect {
	partner := p.PartnerOf(actorID)

	// Partner pending and fresh: both acted within the window, resolve
	if partner != nil {
		if press := p.PressFor(*partner); press != nil && now.Sub(press.PressedAt) <= p.Window() {
			outcome := &models.SharedOutcome{
				ID:          pick(p.RecentOutcomes),
				GeneratedAt: now,
			}
			p.RecentOutcomes = append(p.RecentOutcomes, outcome.ID)
			if p.HistoryCapacity > 0 && len(p.RecentOutcomes) > p.HistoryCapacity {
				p.RecentOutcomes = p.RecentOutcomes[len(p.RecentOutcomes)-p.HistoryCapacity:]
			}
			p.CurrentOutcome = outcome
			p.PrimaryPress = nil
			p.SecondaryPress = nil
			p.Status = models.PairingStatusResolved
			p.UpdatedAt = now
			return effectResolved
		}
	}

	refreshed := p.PressFor(actorID) != nil

	// Otherwise the caller's press becomes the (fresh) pending press; an
	// expired partner press never resolves against a later arrival
	p.SetPress(actorID, &models.PendingPress{ActorID: actorID, PressedAt: now})
	if partner != nil {
		if press := p.PressFor(*partner); press != nil && now.Sub(press.PressedAt) > p.Window() {
			p.SetPress(*partner, nil)
		}
	}
	p.Status = models.PairingStatusPending
	p.UpdatedAt = now

	if refreshed {
		return effectRefreshed
	}
	return effectPendingStarted
}
