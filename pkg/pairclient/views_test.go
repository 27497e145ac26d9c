package pairclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergePairingNeverRegresses(t *testing.T) {
	resolved := PairingView{PairingID: "p1", Status: PairingResolved, OutcomeID: "movie-night"}
	pending := PairingView{PairingID: "p1", Status: PairingPending, PendingActorID: "a"}
	idle := PairingView{PairingID: "p1", Status: PairingIdle}

	t.Run("stale poll after push resolution", func(t *testing.T) {
		merged := MergePairing(resolved, pending)
		assert.Equal(t, PairingResolved, merged.Status)
		assert.Equal(t, "movie-night", merged.OutcomeID)
	})

	t.Run("stale idle never clears pending", func(t *testing.T) {
		merged := MergePairing(pending, idle)
		assert.Equal(t, PairingPending, merged.Status)
	})

	t.Run("forward transition applies", func(t *testing.T) {
		merged := MergePairing(idle, pending)
		assert.Equal(t, PairingPending, merged.Status)

		merged = MergePairing(merged, resolved)
		assert.Equal(t, PairingResolved, merged.Status)
	})
}

func TestMergePairingPendingKeepsFresherPress(t *testing.T) {
	earlier := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := earlier.Add(5 * time.Second)

	local := PairingView{PairingID: "p1", Status: PairingPending, PendingActorID: "a", PressedAt: &later}
	remote := PairingView{PairingID: "p1", Status: PairingPending, PendingActorID: "a", PressedAt: &earlier}

	merged := MergePairing(local, remote)
	require.NotNil(t, merged.PressedAt)
	assert.Equal(t, later, *merged.PressedAt)

	merged = MergePairing(remote, local)
	require.NotNil(t, merged.PressedAt)
	assert.Equal(t, later, *merged.PressedAt)
}

func TestMergeContestNeverRegresses(t *testing.T) {
	four := 4
	completed := ContestView{ContestID: "c1", Status: ContestCompleted, InitiatorScore: &four}
	accepted := ContestView{ContestID: "c1", Status: ContestAccepted}

	merged := MergeContest(completed, accepted)
	assert.Equal(t, ContestCompleted, merged.Status)
	require.NotNil(t, merged.InitiatorScore)
	assert.Equal(t, 4, *merged.InitiatorScore)
}

func TestMergeContestPreservesObservedScores(t *testing.T) {
	three := 3
	local := ContestView{ContestID: "c1", Status: ContestInProgress, InitiatorScore: &three}
	remote := ContestView{ContestID: "c1", Status: ContestInProgress}

	merged := MergeContest(local, remote)
	require.NotNil(t, merged.InitiatorScore)
	assert.Equal(t, 3, *merged.InitiatorScore)
	assert.Nil(t, merged.RespondentScore)
}

func TestStateStoreReducesBothProducers(t *testing.T) {
	store := NewStateStore("p1")

	// Push event lands first
	store.ApplyPairing(PairingView{PairingID: "p1", Status: PairingResolved, OutcomeID: "stargazing"})
	// A poll result from before the resolution arrives late
	view := store.ApplyPairing(PairingView{PairingID: "p1", Status: PairingPending, PendingActorID: "a"})

	assert.Equal(t, PairingResolved, view.Status)
	assert.Equal(t, "stargazing", view.OutcomeID)
	assert.Equal(t, view, store.Pairing())
}

func TestStateStoreDispatcherHandlers(t *testing.T) {
	store := NewStateStore("p1")
	d := NewDispatcher()
	store.RegisterHandlers(d)

	d.Dispatch("partner_waiting", []byte(`{"pairing_id":"p1","actor_id":"a","pressed_at":"2026-03-01T12:00:00Z"}`))
	assert.Equal(t, PairingPending, store.Pairing().Status)

	d.Dispatch("resolution", []byte(`{"pairing_id":"p1","outcome_id":"picnic-in-the-park"}`))
	assert.Equal(t, PairingResolved, store.Pairing().Status)
	assert.Equal(t, "picnic-in-the-park", store.Pairing().OutcomeID)

	d.Dispatch("contest_created", []byte(`{"contest_id":"c1"}`))
	d.Dispatch("accepted", []byte(`{"contest_id":"c1"}`))
	d.Dispatch("completed", []byte(`{"contest_id":"c1","initiator_score":4,"respondent_score":3}`))

	contest, ok := store.Contest("c1")
	require.True(t, ok)
	assert.Equal(t, ContestCompleted, contest.Status)
	require.NotNil(t, contest.InitiatorScore)
	assert.Equal(t, 4, *contest.InitiatorScore)
	require.NotNil(t, contest.RespondentScore)
	assert.Equal(t, 3, *contest.RespondentScore)

	// Malformed payloads are dropped, state holds
	d.Dispatch("resolution", []byte(`not json`))
	assert.Equal(t, "picnic-in-the-park", store.Pairing().OutcomeID)
}
