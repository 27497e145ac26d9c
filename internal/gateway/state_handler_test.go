package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tandemlabs/tandem/internal/contest"
	"github.com/tandemlabs/tandem/internal/events"
	"github.com/tandemlabs/tandem/internal/models"
	"github.com/tandemlabs/tandem/internal/pairing"
)

type stateFixture struct {
	pairings *pairing.Service
	contests *contest.Service
	mux      *http.ServeMux
}

func newStateFixture(t *testing.T) *stateFixture {
	t.Helper()
	publisher := events.NewLogPublisher()
	clock := clockwork.NewFakeClock()
	pairings := pairing.NewService(pairing.NewMemoryRepository(), publisher, nil, clock, nil)
	contests := contest.NewService(contest.NewMemoryRepository(), publisher, pairings, clock)

	mux := http.NewServeMux()
	NewStateHandler(NewServiceStateProvider(pairings, contests)).RegisterStateRoutes(mux)
	return &stateFixture{pairings: pairings, contests: contests, mux: mux}
}

func (f *stateFixture) get(t *testing.T, path string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	if rec.Code == http.StatusOK && out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestGetPairingState(t *testing.T) {
	f := newStateFixture(t)
	ctx := context.Background()
	actorA := uuid.New()
	actorB := uuid.New()

	p, err := f.pairings.CreatePairing(ctx, pairing.CreatePairingRequest{
		PrimaryActorID:  actorA,
		WindowSec:       10,
		HistoryCapacity: 5,
	})
	require.NoError(t, err)
	_, err = f.pairings.JoinPairing(ctx, p.InviteCode, actorB)
	require.NoError(t, err)

	t.Run("idle", func(t *testing.T) {
		var state PairingStateResponse
		code := f.get(t, "/api/pairings/"+p.ID.String()+"/state", &state)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, models.PairingStatusIdle, state.Status)
		assert.Nil(t, state.PendingActorID)
		assert.Equal(t, 10, state.WindowSec)
	})

	t.Run("pending surfaces the waiting actor", func(t *testing.T) {
		_, err := f.pairings.RecordPress(ctx, p.ID, actorA)
		require.NoError(t, err)

		var state PairingStateResponse
		code := f.get(t, "/api/pairings/"+p.ID.String()+"/state", &state)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, models.PairingStatusPending, state.Status)
		require.NotNil(t, state.PendingActorID)
		assert.Equal(t, actorA.String(), *state.PendingActorID)
		require.NotNil(t, state.PressedAt)
	})

	t.Run("resolved carries the outcome", func(t *testing.T) {
		result, err := f.pairings.RecordPress(ctx, p.ID, actorB)
		require.NoError(t, err)
		require.True(t, result.Resolved)

		var state PairingStateResponse
		code := f.get(t, "/api/pairings/"+p.ID.String()+"/state", &state)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, models.PairingStatusResolved, state.Status)
		require.NotNil(t, state.Outcome)
		assert.Equal(t, result.Outcome.ID, state.Outcome.ID)
		assert.Nil(t, state.PendingActorID)
	})

	t.Run("unknown pairing", func(t *testing.T) {
		code := f.get(t, "/api/pairings/"+uuid.NewString()+"/state", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("bad id", func(t *testing.T) {
		code := f.get(t, "/api/pairings/not-a-uuid/state", nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestGetContestStateWithholdsCorrectOptions(t *testing.T) {
	f := newStateFixture(t)
	ctx := context.Background()
	initiator := uuid.New()

	p, err := f.pairings.CreatePairing(ctx, pairing.CreatePairingRequest{
		PrimaryActorID:  initiator,
		WindowSec:       10,
		HistoryCapacity: 5,
	})
	require.NoError(t, err)

	c, err := f.contests.Create(ctx, contest.CreateContestRequest{
		PairingID:        p.ID,
		InitiatorActorID: initiator,
		Category:         "date-night-trivia",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/contests/"+c.ID.String()+"/state", nil)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var state ContestStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, models.ContestStatusCreated, state.Status)
	assert.Len(t, state.Items, len(c.Items))
	assert.Nil(t, state.RespondentID)

	// The answer key never leaves the server
	assert.NotContains(t, rec.Body.String(), "correct_option")
}

func TestGetContestStateNotFound(t *testing.T) {
	f := newStateFixture(t)
	code := f.get(t, "/api/contests/"+uuid.NewString()+"/state", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
