package contest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tandemlabs/tandem/internal/events"
	"github.com/tandemlabs/tandem/internal/models"
)

// membershipStub stands in for the pairing service's membership lookup
type membershipStub struct {
	allow bool
	err   error
}

func (m membershipStub) IsMember(ctx context.Context, pairingID, actorID uuid.UUID) (bool, error) {
	return m.allow, m.err
}

func newTestService(t *testing.T) (*Service, *events.LogPublisher) {
	t.Helper()
	publisher := events.NewLogPublisher()
	svc := NewService(NewMemoryRepository(), publisher, membershipStub{allow: true}, clockwork.NewFakeClock())
	return svc, publisher
}

func createTestContest(t *testing.T, svc *Service) (*models.Contest, uuid.UUID) {
	t.Helper()
	initiator := uuid.New()
	c, err := svc.Create(context.Background(), CreateContestRequest{
		PairingID:        uuid.New(),
		InitiatorActorID: initiator,
		Category:         "how-well-do-you-know-me",
	})
	require.NoError(t, err)
	return c, initiator
}

// answersFor builds a full answer set scoring the given number of items
// correctly, walking the frozen item order
func answersFor(c *models.Contest, correct int) []AnswerChoice {
	answers := make([]AnswerChoice, len(c.Items))
	for i, item := range c.Items {
		option := item.CorrectOption
		if i >= correct {
			option = (item.CorrectOption + 1) % len(item.Options)
		}
		answers[i] = AnswerChoice{ItemID: item.ID, Option: option}
	}
	return answers
}

func TestCreateFreezesItems(t *testing.T) {
	svc, publisher := newTestService(t)

	c, _ := createTestContest(t, svc)
	assert.Equal(t, models.ContestStatusCreated, c.Status)
	assert.Len(t, c.Items, contestSize)
	assert.Nil(t, c.RespondentActorID)

	// Item IDs are unique within the frozen list
	seen := make(map[string]bool)
	for _, item := range c.Items {
		assert.False(t, seen[item.ID])
		seen[item.ID] = true
	}

	published := publisher.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeContestCreated, published[0].Type)
}

func TestCreateUnknownCategory(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateContestRequest{
		PairingID:        uuid.New(),
		InitiatorActorID: uuid.New(),
		Category:         "does-not-exist",
	})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestCreateRequiresPairingMembership(t *testing.T) {
	ctx := context.Background()
	publisher := events.NewLogPublisher()
	req := CreateContestRequest{
		PairingID:        uuid.New(),
		InitiatorActorID: uuid.New(),
		Category:         "how-well-do-you-know-me",
	}

	t.Run("outsider cannot open a contest against a pairing", func(t *testing.T) {
		svc := NewService(NewMemoryRepository(), publisher, membershipStub{allow: false}, clockwork.NewFakeClock())
		_, err := svc.Create(ctx, req)
		assert.ErrorIs(t, err, ErrNotParticipant)
		assert.Empty(t, publisher.Events())
	})

	t.Run("pairing lookup failures propagate", func(t *testing.T) {
		lookupErr := errors.New("pairing not found")
		svc := NewService(NewMemoryRepository(), publisher, membershipStub{err: lookupErr}, clockwork.NewFakeClock())
		_, err := svc.Create(ctx, req)
		assert.ErrorIs(t, err, lookupErr)
	})
}

func TestAccept(t *testing.T) {
	svc, publisher := newTestService(t)
	ctx := context.Background()
	c, initiator := createTestContest(t, svc)
	respondent := uuid.New()

	t.Run("initiator cannot accept their own challenge", func(t *testing.T) {
		_, err := svc.Accept(ctx, c.ID, initiator)
		assert.ErrorIs(t, err, ErrSelfAccept)
	})

	t.Run("first accept wins the slot", func(t *testing.T) {
		accepted, err := svc.Accept(ctx, c.ID, respondent)
		require.NoError(t, err)
		assert.Equal(t, models.ContestStatusAccepted, accepted.Status)
		require.NotNil(t, accepted.RespondentActorID)
		assert.Equal(t, respondent, *accepted.RespondentActorID)

		// The accepted event targets the initiator's channel
		acceptedEvents := publisher.Events()
		last := acceptedEvents[len(acceptedEvents)-1]
		assert.Equal(t, events.TypeAccepted, last.Type)
		require.NotNil(t, last.TargetActorID)
		assert.Equal(t, initiator, *last.TargetActorID)
	})

	t.Run("later accept loses, slot unchanged", func(t *testing.T) {
		_, err := svc.Accept(ctx, c.ID, uuid.New())
		assert.ErrorIs(t, err, ErrAlreadyAccepted)

		current, err := svc.GetContest(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, respondent, *current.RespondentActorID)
	})

	t.Run("self accept still distinguishable after the race", func(t *testing.T) {
		_, err := svc.Accept(ctx, c.ID, initiator)
		assert.ErrorIs(t, err, ErrSelfAccept)
	})
}

func TestAcceptRaceHasOneWinner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c, _ := createTestContest(t, svc)

	actors := []uuid.UUID{uuid.New(), uuid.New()}
	errs := make([]error, len(actors))
	var wg sync.WaitGroup
	for i, actor := range actors {
		wg.Add(1)
		go func(i int, actor uuid.UUID) {
			defer wg.Done()
			_, errs[i] = svc.Accept(ctx, c.ID, actor)
		}(i, actor)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyAccepted)
		}
	}
	assert.Equal(t, 1, winners)

	current, err := svc.GetContest(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusAccepted, current.Status)
	require.NotNil(t, current.RespondentActorID)
	assert.Contains(t, actors, *current.RespondentActorID)
}

func TestStart(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c, initiator := createTestContest(t, svc)
	respondent := uuid.New()

	t.Run("before accept is invalid", func(t *testing.T) {
		_, err := svc.Start(ctx, c.ID, initiator)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	_, err := svc.Accept(ctx, c.ID, respondent)
	require.NoError(t, err)

	t.Run("non participant is rejected", func(t *testing.T) {
		_, err := svc.Start(ctx, c.ID, uuid.New())
		assert.ErrorIs(t, err, ErrNotParticipant)
	})

	t.Run("either side starts, repeat is a no-op", func(t *testing.T) {
		started, err := svc.Start(ctx, c.ID, respondent)
		require.NoError(t, err)
		assert.Equal(t, models.ContestStatusInProgress, started.Status)

		again, err := svc.Start(ctx, c.ID, initiator)
		require.NoError(t, err)
		assert.Equal(t, models.ContestStatusInProgress, again.Status)
	})
}

func TestSubmitAnswers(t *testing.T) {
	svc, publisher := newTestService(t)
	ctx := context.Background()
	c, initiator := createTestContest(t, svc)
	respondent := uuid.New()

	t.Run("before accept is invalid", func(t *testing.T) {
		_, err := svc.SubmitAnswers(ctx, c.ID, initiator, answersFor(c, 3))
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	_, err := svc.Accept(ctx, c.ID, respondent)
	require.NoError(t, err)

	t.Run("submitting from accepted enters the answer phase", func(t *testing.T) {
		result, err := svc.SubmitAnswers(ctx, c.ID, initiator, answersFor(c, 4))
		require.NoError(t, err)
		assert.Equal(t, models.RoleInitiator, result.Role)
		assert.Equal(t, 4, result.Score)
		assert.False(t, result.Completed)
		assert.Equal(t, models.ContestStatusInProgress, result.Contest.Status)
	})

	t.Run("second submission never overwrites the recorded score", func(t *testing.T) {
		_, err := svc.SubmitAnswers(ctx, c.ID, initiator, answersFor(c, 5))
		assert.ErrorIs(t, err, ErrAlreadySubmitted)

		current, err := svc.GetContest(ctx, c.ID)
		require.NoError(t, err)
		require.NotNil(t, current.InitiatorScore)
		assert.Equal(t, 4, *current.InitiatorScore)
	})

	t.Run("both scores present completes exactly once", func(t *testing.T) {
		result, err := svc.SubmitAnswers(ctx, c.ID, respondent, answersFor(c, 3))
		require.NoError(t, err)
		assert.Equal(t, 3, result.Score)
		assert.True(t, result.Completed)
		assert.Equal(t, models.ContestStatusCompleted, result.Contest.Status)
		require.NotNil(t, result.Contest.CompletedAt)

		completed := eventsOfType(publisher, events.TypeCompleted)
		require.Len(t, completed, 1)
		assert.Nil(t, completed[0].TargetActorID)

		var payload events.CompletedPayload
		require.NoError(t, json.Unmarshal(completed[0].Data, &payload))
		assert.Equal(t, 4, payload.InitiatorScore)
		assert.Equal(t, 3, payload.RespondentScore)
	})

	t.Run("submissions recorded per item and role", func(t *testing.T) {
		for _, role := range []models.ActorRole{models.RoleInitiator, models.RoleRespondent} {
			subs, err := svc.repo.ListSubmissions(ctx, c.ID, role)
			require.NoError(t, err)
			assert.Len(t, subs, contestSize)
		}
	})
}

func TestSubmitAnswersValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c, initiator := createTestContest(t, svc)
	respondent := uuid.New()
	_, err := svc.Accept(ctx, c.ID, respondent)
	require.NoError(t, err)

	t.Run("non participant", func(t *testing.T) {
		_, err := svc.SubmitAnswers(ctx, c.ID, uuid.New(), answersFor(c, 0))
		assert.ErrorIs(t, err, ErrNotParticipant)
	})

	t.Run("unknown item", func(t *testing.T) {
		answers := answersFor(c, 0)
		answers[2].ItemID = "bogus"
		_, err := svc.SubmitAnswers(ctx, c.ID, initiator, answers)
		assert.Error(t, err)
	})

	t.Run("duplicate item", func(t *testing.T) {
		answers := answersFor(c, 0)
		answers[1].ItemID = answers[0].ItemID
		_, err := svc.SubmitAnswers(ctx, c.ID, initiator, answers)
		assert.Error(t, err)
	})

	t.Run("empty submission is rejected", func(t *testing.T) {
		_, err := svc.SubmitAnswers(ctx, c.ID, initiator, nil)
		assert.ErrorIs(t, err, ErrIncompleteSubmission)
	})

	t.Run("partial submission cannot consume the write-once slot", func(t *testing.T) {
		_, err := svc.SubmitAnswers(ctx, c.ID, initiator, answersFor(c, 0)[:contestSize-1])
		assert.ErrorIs(t, err, ErrIncompleteSubmission)

		// The slot is still open, so a full submission goes through
		result, err := svc.SubmitAnswers(ctx, c.ID, initiator, answersFor(c, 2))
		require.NoError(t, err)
		assert.Equal(t, 2, result.Score)
	})

	t.Run("failed validation leaves no score behind", func(t *testing.T) {
		current, err := svc.GetContest(ctx, c.ID)
		require.NoError(t, err)
		assert.Nil(t, current.RespondentScore)
	})
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
