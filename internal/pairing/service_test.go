package pairing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tandemlabs/tandem/internal/events"
	"github.com/tandemlabs/tandem/internal/models"
)

func newTestService(t *testing.T, catalog []string) (*Service, *events.LogPublisher, *clockwork.FakeClock) {
	t.Helper()
	publisher := events.NewLogPublisher()
	clock := clockwork.NewFakeClock()
	svc := NewService(NewMemoryRepository(), publisher, nil, clock, catalog)
	return svc, publisher, clock
}

func setupJoinedPairing(t *testing.T, svc *Service, windowSec, historyCapacity int) (*models.Pairing, uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	actorA := uuid.New()
	actorB := uuid.New()

	p, err := svc.CreatePairing(ctx, CreatePairingRequest{
		PrimaryActorID:  actorA,
		WindowSec:       windowSec,
		HistoryCapacity: historyCapacity,
	})
	require.NoError(t, err)

	p, err = svc.JoinPairing(ctx, p.InviteCode, actorB)
	require.NoError(t, err)
	require.NotNil(t, p.SecondaryActorID)

	return p, actorA, actorB
}

func eventsOfType(publisher *events.LogPublisher, eventType string) []events.Event {
	var out []events.Event
	for _, e := range publisher.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestCreatePairingMintsInviteCode(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	p, err := svc.CreatePairing(ctx, CreatePairingRequest{
		PrimaryActorID:  uuid.New(),
		WindowSec:       10,
		HistoryCapacity: 5,
	})
	require.NoError(t, err)

	assert.Len(t, p.InviteCode, inviteCodeLen)
	assert.Equal(t, models.PairingStatusIdle, p.Status)
	assert.Nil(t, p.SecondaryActorID)
	assert.Equal(t, int64(1), p.Version)
}

func TestJoinPairing(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()
	actorA := uuid.New()
	actorB := uuid.New()

	p, err := svc.CreatePairing(ctx, CreatePairingRequest{PrimaryActorID: actorA, WindowSec: 10})
	require.NoError(t, err)

	t.Run("unknown invite code", func(t *testing.T) {
		_, err := svc.JoinPairing(ctx, "NOPE42", actorB)
		assert.ErrorIs(t, err, ErrInviteCodeNotFound)
	})

	t.Run("second actor fills the slot", func(t *testing.T) {
		joined, err := svc.JoinPairing(ctx, p.InviteCode, actorB)
		require.NoError(t, err)
		require.NotNil(t, joined.SecondaryActorID)
		assert.Equal(t, actorB, *joined.SecondaryActorID)
	})

	t.Run("rejoining is idempotent for both members", func(t *testing.T) {
		for _, actor := range []uuid.UUID{actorA, actorB} {
			joined, err := svc.JoinPairing(ctx, p.InviteCode, actor)
			require.NoError(t, err)
			assert.Equal(t, actorB, *joined.SecondaryActorID)
		}
	})

	t.Run("third actor is rejected", func(t *testing.T) {
		_, err := svc.JoinPairing(ctx, p.InviteCode, uuid.New())
		assert.ErrorIs(t, err, ErrPairingFull)
	})
}

func TestPressOutsideMembership(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.RecordPress(ctx, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrPairingNotFound)

	p, _, _ := setupJoinedPairing(t, svc, 10, 5)
	_, err = svc.RecordPress(ctx, p.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestIsMember(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()
	p, actorA, actorB := setupJoinedPairing(t, svc, 10, 5)

	for _, actor := range []uuid.UUID{actorA, actorB} {
		member, err := svc.IsMember(ctx, p.ID, actor)
		require.NoError(t, err)
		assert.True(t, member)
	}

	member, err := svc.IsMember(ctx, p.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, member)

	_, err = svc.IsMember(ctx, uuid.New(), actorA)
	assert.ErrorIs(t, err, ErrPairingNotFound)
}

func TestPressResolvesWithinWindow(t *testing.T) {
	svc, publisher, clock := newTestService(t, nil)
	ctx := context.Background()
	p, actorA, actorB := setupJoinedPairing(t, svc, 10, 5)

	first, err := svc.RecordPress(ctx, p.ID, actorA)
	require.NoError(t, err)
	assert.False(t, first.Resolved)
	assert.Equal(t, models.PairingStatusPending, first.Pairing.Status)

	waiting := eventsOfType(publisher, events.TypePartnerWaiting)
	require.Len(t, waiting, 1)
	require.NotNil(t, waiting[0].TargetActorID)
	assert.Equal(t, actorB, *waiting[0].TargetActorID)

	clock.Advance(7 * time.Second)

	second, err := svc.RecordPress(ctx, p.ID, actorB)
	require.NoError(t, err)
	assert.True(t, second.Resolved)
	require.NotNil(t, second.Outcome)
	assert.NotEmpty(t, second.Outcome.ID)
	assert.Equal(t, models.PairingStatusResolved, second.Pairing.Status)
	assert.Nil(t, second.Pairing.PrimaryPress)
	assert.Nil(t, second.Pairing.SecondaryPress)
	assert.Equal(t, []string{second.Outcome.ID}, second.Pairing.RecentOutcomes)

	resolutions := eventsOfType(publisher, events.TypeResolution)
	require.Len(t, resolutions, 1)
	assert.Nil(t, resolutions[0].TargetActorID)
}

func TestExpiredPressStartsFreshPending(t *testing.T) {
	svc, publisher, clock := newTestService(t, nil)
	ctx := context.Background()
	p, actorA, actorB := setupJoinedPairing(t, svc, 10, 5)

	_, err := svc.RecordPress(ctx, p.ID, actorA)
	require.NoError(t, err)

	clock.Advance(15 * time.Second)

	result, err := svc.RecordPress(ctx, p.ID, actorB)
	require.NoError(t, err)
	assert.False(t, result.Resolved)
	assert.Equal(t, models.PairingStatusPending, result.Pairing.Status)

	// The stale press is cleared; only the fresh one waits
	assert.Nil(t, result.Pairing.PressFor(actorA))
	require.NotNil(t, result.Pairing.PressFor(actorB))
	assert.Equal(t, clock.Now(), result.Pairing.PressFor(actorB).PressedAt)

	// Both presses nudged the respective partner
	assert.Len(t, eventsOfType(publisher, events.TypePartnerWaiting), 2)
	assert.Empty(t, eventsOfType(publisher, events.TypeResolution))
}

func TestSameActorRepressRefreshesTimestamp(t *testing.T) {
	svc, publisher, clock := newTestService(t, nil)
	ctx := context.Background()
	p, actorA, _ := setupJoinedPairing(t, svc, 10, 5)

	_, err := svc.RecordPress(ctx, p.ID, actorA)
	require.NoError(t, err)

	clock.Advance(3 * time.Second)

	result, err := svc.RecordPress(ctx, p.ID, actorA)
	require.NoError(t, err)
	assert.False(t, result.Resolved)

	press := result.Pairing.PressFor(actorA)
	require.NotNil(t, press)
	assert.Equal(t, clock.Now(), press.PressedAt)

	// A refresh is not a new pending round, no second nudge goes out
	assert.Len(t, eventsOfType(publisher, events.TypePartnerWaiting), 1)
}

func TestConcurrentPressesResolveExactlyOnce(t *testing.T) {
	svc, publisher, _ := newTestService(t, nil)
	ctx := context.Background()
	p, actorA, actorB := setupJoinedPairing(t, svc, 10, 5)

	results := make([]*PressResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, actor := range []uuid.UUID{actorA, actorB} {
		wg.Add(1)
		go func(i int, actor uuid.UUID) {
			defer wg.Done()
			results[i], errs[i] = svc.RecordPress(ctx, p.ID, actor)
		}(i, actor)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	resolvedCount := 0
	for _, r := range results {
		if r.Resolved {
			resolvedCount++
		}
	}
	assert.Equal(t, 1, resolvedCount, "exactly one press resolves the round")
	assert.Len(t, eventsOfType(publisher, events.TypeResolution), 1)

	final, err := svc.GetPairing(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PairingStatusResolved, final.Status)
	require.NotNil(t, final.CurrentOutcome)
	assert.Len(t, final.RecentOutcomes, 1)
}

func TestResolutionAvoidsRecentOutcomes(t *testing.T) {
	catalog := []string{"alpha", "beta", "gamma", "delta"}
	svc, _, clock := newTestService(t, catalog)
	ctx := context.Background()
	p, actorA, actorB := setupJoinedPairing(t, svc, 10, 2)

	var history []string
	for round := 0; round < 20; round++ {
		clock.Advance(time.Minute)

		_, err := svc.RecordPress(ctx, p.ID, actorA)
		require.NoError(t, err)
		clock.Advance(time.Second)
		result, err := svc.RecordPress(ctx, p.ID, actorB)
		require.NoError(t, err)
		require.True(t, result.Resolved)

		outcome := result.Outcome.ID
		recent := history
		if len(recent) > 2 {
			recent = recent[len(recent)-2:]
		}
		assert.NotContains(t, recent, outcome, "round %d repeated a recent outcome", round)
		assert.LessOrEqual(t, len(result.Pairing.RecentOutcomes), 2)

		history = append(history, outcome)
	}
}

func TestPickOutcomeRelaxesHistoryWhenExhausted(t *testing.T) {
	svc, _, clock := newTestService(t, []string{"only-one"})
	ctx := context.Background()
	p, actorA, actorB := setupJoinedPairing(t, svc, 10, 3)

	// With a single-entry catalog the history exclusion can never hold; the
	// oldest entries are relaxed rather than failing the resolution
	for round := 0; round < 3; round++ {
		clock.Advance(time.Minute)
		_, err := svc.RecordPress(ctx, p.ID, actorA)
		require.NoError(t, err)
		result, err := svc.RecordPress(ctx, p.ID, actorB)
		require.NoError(t, err)
		require.True(t, result.Resolved)
		assert.Equal(t, "only-one", result.Outcome.ID)
	}
}

type capturingNotifier struct {
	mu    sync.Mutex
	calls []uuid.UUID
	done  chan struct{}
}

func (n *capturingNotifier) NotifyPartnerWaiting(ctx context.Context, pairingID, actorID uuid.UUID, pressedAt, expiresAt time.Time) error {
	n.mu.Lock()
	n.calls = append(n.calls, actorID)
	n.mu.Unlock()
	select {
	case n.done <- struct{}{}:
	default:
	}
	return nil
}

func TestPendingPressNotifiesPartner(t *testing.T) {
	publisher := events.NewLogPublisher()
	clock := clockwork.NewFakeClock()
	notifier := &capturingNotifier{done: make(chan struct{}, 1)}
	svc := NewService(NewMemoryRepository(), publisher, notifier, clock, nil)
	p, actorA, actorB := setupJoinedPairing(t, svc, 10, 5)

	_, err := svc.RecordPress(context.Background(), p.ID, actorA)
	require.NoError(t, err)

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("partner notification was never sent")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, actorB, notifier.calls[0])
}
