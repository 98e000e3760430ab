package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/pathway-quiz-bot/internal/answer"
	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/pathway-quiz-bot/internal/gateway"
)

func twoQuestionQuiz() *fakeBackend {
	f := newFakeBackend(
		entities.Question{
			ID: 1, Order: 1, Type: entities.QuestionMCSingle, Text: "First",
			Options: []entities.Option{{ID: 10, Text: "A"}, {ID: 11, Text: "B"}},
		},
		entities.Question{
			ID: 2, Order: 2, Type: entities.QuestionMCSingle, Text: "Second",
			Options: []entities.Option{{ID: 20, Text: "A"}, {ID: 21, Text: "B"}},
		},
	)
	f.correct[1] = 11
	f.correct[2] = 21
	return f
}

func TestAttemptScenarioTwoSingleChoiceQuestions(t *testing.T) {
	ctx := context.Background()
	f := twoQuestionQuiz()
	s := NewAttemptSession(f, 5, nil)
	assert.Equal(t, AttemptUnstarted, s.State())

	attempt, err := s.StartOrResume(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.AttemptInProgress, attempt.Status)
	assert.Equal(t, AttemptActive, s.State())
	require.NotNil(t, s.Question())
	assert.Equal(t, int64(1), s.Question().ID)

	res, err := s.SubmitAnswer(ctx, 1, answer.SingleChoice{OptionID: 11, Chosen: true})
	require.NoError(t, err)
	require.NotNil(t, res.IsCorrect)
	assert.True(t, *res.IsCorrect)
	assert.Equal(t, int64(2), s.Question().ID)

	_, err = s.SubmitAnswer(ctx, 2, answer.SingleChoice{OptionID: 20, Chosen: true})
	require.NoError(t, err)
	assert.Equal(t, AttemptExhausted, s.State())
	assert.Nil(t, s.Question())
	assert.Nil(t, s.Draft())

	details, err := s.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.AttemptCompleted, details.Status)
	assert.Equal(t, AttemptCompleted, s.State())
	require.NotNil(t, s.Attempt().Score)
	assert.InDelta(t, 50.0, *s.Attempt().Score, 0.001)

	c, ok := s.Completion()
	require.True(t, ok)
	assert.Equal(t, int64(5), c.QuizID)
	assert.True(t, c.Succeeded())

	assert.Equal(t, []string{
		"start", "current",
		"submit:1", "current",
		"submit:2", "current",
		"complete",
	}, f.Calls())
}

func TestStartOrResumeReturnsSameAttempt(t *testing.T) {
	ctx := context.Background()
	f := twoQuestionQuiz()

	first, err := NewAttemptSession(f, 5, nil).StartOrResume(ctx)
	require.NoError(t, err)

	// A fresh session, as after a restart, shares nothing with the first.
	again := NewAttemptSession(f, 5, nil)
	second, err := again.StartOrResume(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), again.Question().ID)

	_, err = again.StartOrResume(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.Attempt().ID)
}

func TestIncompleteAnswerIsRejectedLocally(t *testing.T) {
	tests := []struct {
		name string
		q    entities.Question
		a    answer.Answer
	}{
		{
			name: "mc single",
			q:    entities.Question{ID: 1, Type: entities.QuestionMCSingle, Options: []entities.Option{{ID: 10}}},
			a:    answer.SingleChoice{},
		},
		{
			name: "mc multi",
			q:    entities.Question{ID: 1, Type: entities.QuestionMCMulti, Options: []entities.Option{{ID: 10}}},
			a:    answer.MultiChoice{},
		},
		{
			name: "true false",
			q:    entities.Question{ID: 1, Type: entities.QuestionTrueFalse},
			a:    answer.TrueFalse{},
		},
		{
			name: "fill blank",
			q:    entities.Question{ID: 1, Type: entities.QuestionFillBlank, Blanks: []entities.Blank{{ID: 1}, {ID: 2, Position: 1}}},
			a:    answer.FillBlank{Values: []string{"Paris", ""}},
		},
		{
			name: "open",
			q:    entities.Question{ID: 1, Type: entities.QuestionOpenManual},
			a:    answer.OpenText{Text: "   "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeBackend(tt.q)
			s := NewAttemptSession(f, 1, nil)
			_, err := s.StartOrResume(context.Background())
			require.NoError(t, err)
			before := len(f.Calls())

			_, err = s.SubmitAnswer(context.Background(), 1, tt.a)
			require.ErrorIs(t, err, answer.ErrIncomplete)

			assert.Len(t, f.Calls(), before)
			assert.Equal(t, AttemptActive, s.State())

			// The draft of the current question is untouched as well.
			_, err = s.SubmitDraft(context.Background())
			require.ErrorIs(t, err, answer.ErrIncomplete)
			assert.Len(t, f.Calls(), before)
		})
	}
}

func TestFillBlankSubmission(t *testing.T) {
	f := newFakeBackend(entities.Question{
		ID: 3, Type: entities.QuestionFillBlank,
		Blanks: []entities.Blank{{ID: 1, Position: 0}, {ID: 2, Position: 1}},
	})
	s := NewAttemptSession(f, 1, nil)
	_, err := s.StartOrResume(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Draft().SetBlanks([]string{"Paris", "Madrid"}))
	_, err = s.SubmitDraft(context.Background())
	require.NoError(t, err)

	assert.Equal(t, answer.FillBlankPayload{Answers: []string{"Paris", "Madrid"}}, f.answers[101][3])

	stored, ok := s.Answer(3)
	require.True(t, ok)
	assert.JSONEq(t, `{"answers":["Paris","Madrid"]}`, string(stored.Payload))
	assert.Equal(t, AttemptExhausted, s.State())
}

func TestFetchWaitsForInFlightSubmit(t *testing.T) {
	ctx := context.Background()
	f := twoQuestionQuiz()
	s := NewAttemptSession(f, 5, nil)
	_, err := s.StartOrResume(ctx)
	require.NoError(t, err)

	gate := make(chan struct{})
	f.mu.Lock()
	f.submitGate = gate
	f.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.SubmitAnswer(ctx, 1, answer.SingleChoice{OptionID: 10, Chosen: true})
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		calls := f.Calls()
		return calls[len(calls)-1] == "submit:1"
	}, time.Second, time.Millisecond)

	_, err = s.FetchCurrentQuestion(ctx)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = s.SubmitAnswer(ctx, 1, answer.SingleChoice{OptionID: 11, Chosen: true})
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, AttemptActive, s.State())

	close(gate)
	wg.Wait()

	assert.Equal(t, []string{"start", "current", "submit:1", "current"}, f.Calls())
	assert.Equal(t, int64(2), s.Question().ID)
}

func TestSubmitForOtherQuestion(t *testing.T) {
	f := twoQuestionQuiz()
	s := NewAttemptSession(f, 5, nil)
	_, err := s.StartOrResume(context.Background())
	require.NoError(t, err)

	_, err = s.SubmitAnswer(context.Background(), 2, answer.SingleChoice{OptionID: 20, Chosen: true})
	assert.ErrorIs(t, err, ErrQuestionMismatch)

	_, err = s.SubmitAnswer(context.Background(), 1, answer.TrueFalse{Value: true, Chosen: true})
	assert.ErrorIs(t, err, answer.ErrTypeMismatch)
}

func TestRejectedSubmitDoesNotAdvance(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "bad request", err: &gateway.APIError{Status: 400, Message: "Invalid payload."}},
		{name: "network", err: gateway.ErrUnavailable, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := twoQuestionQuiz()
			s := NewAttemptSession(f, 5, nil)
			_, err := s.StartOrResume(context.Background())
			require.NoError(t, err)

			f.submitErr = tt.err
			_, err = s.SubmitAnswer(context.Background(), 1, answer.SingleChoice{OptionID: 10, Chosen: true})
			require.Error(t, err)
			assert.Equal(t, tt.retryable, gateway.IsRetryable(err))

			assert.Equal(t, AttemptActive, s.State())
			assert.Equal(t, int64(1), s.Question().ID)
			_, ok := s.Answer(1)
			assert.False(t, ok)

			f.submitErr = nil
			_, err = s.SubmitAnswer(context.Background(), 1, answer.SingleChoice{OptionID: 10, Chosen: true})
			require.NoError(t, err)
			assert.Equal(t, int64(2), s.Question().ID)
		})
	}
}

func TestFailedFirstFetchCanBeRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "network", err: gateway.ErrUnavailable},
		{name: "server error", err: &gateway.APIError{Status: 502, Message: "Bad gateway."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := twoQuestionQuiz()
			f.currentErr = []error{tt.err}
			s := NewAttemptSession(f, 5, nil)

			attempt, err := s.StartOrResume(ctx)
			require.ErrorIs(t, err, tt.err)
			require.NotNil(t, attempt)
			assert.Equal(t, AttemptAwaitingNext, s.State())
			assert.Nil(t, s.Question())

			_, err = s.SubmitAnswer(ctx, 1, answer.SingleChoice{OptionID: 10, Chosen: true})
			require.ErrorIs(t, err, ErrInvalidState)
			_, err = s.SubmitDraft(ctx)
			require.ErrorIs(t, err, ErrInvalidState)

			q, err := s.FetchCurrentQuestion(ctx)
			require.NoError(t, err)
			require.NotNil(t, q)
			assert.Equal(t, int64(1), q.ID)
			assert.Equal(t, AttemptActive, s.State())

			_, err = s.SubmitAnswer(ctx, 1, answer.SingleChoice{OptionID: 10, Chosen: true})
			require.NoError(t, err)
			assert.Equal(t, []string{"start", "current", "current", "submit:1", "current"}, f.Calls())
		})
	}
}

func TestAcceptedSubmitSurvivesFailedFetch(t *testing.T) {
	ctx := context.Background()
	f := twoQuestionQuiz()
	s := NewAttemptSession(f, 5, nil)
	_, err := s.StartOrResume(ctx)
	require.NoError(t, err)

	f.currentErr = []error{gateway.ErrUnavailable}
	res, err := s.SubmitAnswer(ctx, 1, answer.SingleChoice{OptionID: 11, Chosen: true})
	require.ErrorIs(t, err, gateway.ErrUnavailable)
	require.NotNil(t, res)
	require.NotNil(t, res.IsCorrect)
	assert.True(t, *res.IsCorrect)

	assert.Equal(t, AttemptAwaitingNext, s.State())
	assert.Nil(t, s.Question())
	assert.Nil(t, s.Draft())

	stored, ok := s.Answer(1)
	require.True(t, ok)
	assert.JSONEq(t, `{"selectedOptionId":11}`, string(stored.Payload))

	// The answer is not sent again; only the fetch is retried.
	_, err = s.SubmitAnswer(ctx, 1, answer.SingleChoice{OptionID: 11, Chosen: true})
	require.ErrorIs(t, err, ErrInvalidState)

	q, err := s.FetchCurrentQuestion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), q.ID)
	assert.Equal(t, AttemptActive, s.State())

	assert.Equal(t, []string{"start", "current", "submit:1", "current", "current"}, f.Calls())
}

func TestFinalizeRequiresExhausted(t *testing.T) {
	f := twoQuestionQuiz()
	s := NewAttemptSession(f, 5, nil)

	_, err := s.Finalize(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = s.StartOrResume(context.Background())
	require.NoError(t, err)

	_, err = s.Finalize(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NotContains(t, f.Calls(), "complete")

	_, err = s.Result(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NotContains(t, f.Calls(), "details")
}

func TestFinalizeAdoptsPendingGrading(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend(entities.Question{ID: 9, Type: entities.QuestionOpenManual, Text: "Explain"})
	s := NewAttemptSession(f, 3, nil)

	_, err := s.StartOrResume(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Draft().SetText("  Because.  "))
	_, err = s.SubmitDraft(ctx)
	require.NoError(t, err)

	details, err := s.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.AttemptPendingGrading, details.Status)
	assert.Equal(t, AttemptPendingGrading, s.State())

	result, err := s.Result(ctx)
	require.NoError(t, err)
	require.Len(t, result.Questions, 1)
	assert.JSONEq(t, `{"text":"Because."}`, string(result.Questions[0].Answer.Payload))

	_, err = s.Finalize(ctx)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStartOnFinishedAttempt(t *testing.T) {
	f := twoQuestionQuiz()
	f.attempts[5] = &entities.QuizAttempt{ID: 7, Quiz: entities.QuizRef{ID: 5}, Status: entities.AttemptCompleted}

	s := NewAttemptSession(&finishedStart{fakeBackend: f}, 5, nil)
	attempt, err := s.StartOrResume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), attempt.ID)
	assert.Equal(t, AttemptCompleted, s.State())
	assert.Equal(t, []string{"start"}, f.Calls())
}

// finishedStart reports the stored attempt even when it is closed.
type finishedStart struct {
	*fakeBackend
}

func (f *finishedStart) StartAttempt(_ context.Context, quizID int64) (*entities.QuizAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("start")
	a := *f.attempts[quizID]
	return &a, nil
}

func TestCloseDiscardsInFlightSubmit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := twoQuestionQuiz()
	s := NewAttemptSession(f, 5, nil)
	_, err := s.StartOrResume(ctx)
	require.NoError(t, err)

	gate := make(chan struct{})
	f.mu.Lock()
	f.submitGate = gate
	f.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		_, err := s.SubmitAnswer(ctx, 1, answer.SingleChoice{OptionID: 11, Chosen: true})
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		calls := f.Calls()
		return calls[len(calls)-1] == "submit:1"
	}, time.Second, time.Millisecond)

	s.Close()
	cancel()
	close(gate)

	err = <-errCh
	assert.True(t, errors.Is(err, ErrSessionClosed))

	// The server still got the answer.
	f.mu.Lock()
	_, stored := f.answers[101][1]
	f.mu.Unlock()
	assert.True(t, stored)

	_, err = s.FetchCurrentQuestion(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestNewQuestionDiscardsDraft(t *testing.T) {
	ctx := context.Background()
	f := twoQuestionQuiz()
	s := NewAttemptSession(f, 5, nil)
	_, err := s.StartOrResume(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Draft().Select(10))
	_, err = s.SubmitDraft(ctx)
	require.NoError(t, err)

	require.NotNil(t, s.Draft())
	assert.Equal(t, int64(2), s.Draft().Question().ID)
	assert.Equal(t, answer.SingleChoice{}, s.Draft().Answer())
}
