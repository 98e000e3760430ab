package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/aliskhannn/pathway-quiz-bot/internal/answer"
	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/pathway-quiz-bot/internal/gateway"
)

var (
	ErrInvalidState     = errors.New("operation not allowed in the current attempt state")
	ErrBusy             = errors.New("another operation is in progress for this attempt")
	ErrQuestionMismatch = errors.New("answer is for a question that is not current")
	ErrSessionClosed    = errors.New("attempt session is closed")
)

// AttemptState is the client-side position of an attempt.
type AttemptState int

const (
	AttemptUnstarted AttemptState = iota
	AttemptActive
	AttemptAwaitingNext
	AttemptExhausted
	AttemptFinalizing
	AttemptCompleted
	AttemptPendingGrading
	AttemptFailed
)

func (s AttemptState) String() string {
	switch s {
	case AttemptUnstarted:
		return "UNSTARTED"
	case AttemptActive:
		return "ACTIVE"
	case AttemptAwaitingNext:
		return "AWAITING_NEXT"
	case AttemptExhausted:
		return "EXHAUSTED"
	case AttemptFinalizing:
		return "FINALIZING"
	case AttemptCompleted:
		return "COMPLETED"
	case AttemptPendingGrading:
		return "PENDING_GRADING"
	case AttemptFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("AttemptState(%d)", int(s))
	}
}

// Terminal reports whether the attempt is finished.
func (s AttemptState) Terminal() bool {
	return s == AttemptCompleted || s == AttemptPendingGrading || s == AttemptFailed
}

func stateFromStatus(status entities.AttemptStatus) AttemptState {
	switch status {
	case entities.AttemptCompleted:
		return AttemptCompleted
	case entities.AttemptPendingGrading:
		return AttemptPendingGrading
	case entities.AttemptFailed:
		return AttemptFailed
	default:
		return AttemptActive
	}
}

type AttemptGateway interface {
	StartAttempt(ctx context.Context, quizID int64) (*entities.QuizAttempt, error)
	CurrentQuestion(ctx context.Context, attemptID int64) (*entities.Question, error)
	SubmitAnswer(ctx context.Context, attemptID, questionID int64, payload any) (*entities.SubmitResult, error)
	CompleteAttempt(ctx context.Context, attemptID int64) (*entities.AttemptDetails, error)
	AttemptDetails(ctx context.Context, attemptID int64) (*entities.AttemptDetails, error)
}

// AttemptSession drives one student through one quiz attempt. The server
// paces the questions; the session only ever holds the current one.
//
// Operations that talk to the server are serialized: while one is running
// every other returns ErrBusy, so a question is never fetched before the
// submit that precedes it has finished.
type AttemptSession struct {
	api    AttemptGateway
	quizID int64
	logger *zap.Logger

	op sync.Mutex

	mu       sync.RWMutex
	state    AttemptState
	attempt  *entities.QuizAttempt
	question *entities.Question
	draft    *answer.Draft
	answers  map[int64]entities.StudentAnswer
	closed   bool
}

// NewAttemptSession creates an UNSTARTED session for a quiz.
func NewAttemptSession(api AttemptGateway, quizID int64, logger *zap.Logger) *AttemptSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptSession{
		api:     api,
		quizID:  quizID,
		logger:  logger.With(zap.Int64("quiz_id", quizID)),
		answers: make(map[int64]entities.StudentAnswer),
	}
}

func (s *AttemptSession) QuizID() int64 {
	return s.quizID
}

// State returns the current state.
func (s *AttemptSession) State() AttemptState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Attempt returns a copy of the attempt, or nil before it started.
func (s *AttemptSession) Attempt() *entities.QuizAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.attempt == nil {
		return nil
	}
	a := *s.attempt
	return &a
}

// Question returns the current question, or nil when there is none.
func (s *AttemptSession) Question() *entities.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.question == nil {
		return nil
	}
	q := *s.question
	return &q
}

// Draft returns the in-progress answer to the current question.
func (s *AttemptSession) Draft() *answer.Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft
}

// Answer returns the last answer submitted for a question in this session.
func (s *AttemptSession) Answer(questionID int64) (entities.StudentAnswer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.answers[questionID]
	return a, ok
}

// Completion returns the completion event once the attempt is finished.
func (s *AttemptSession) Completion() (entities.QuizCompletion, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.attempt == nil || !s.state.Terminal() {
		return entities.QuizCompletion{}, false
	}
	return entities.QuizCompletion{
		AttemptID:    s.attempt.ID,
		QuizID:       s.quizID,
		Status:       s.attempt.Status,
		PointsEarned: s.attempt.PointsEarned,
	}, true
}

// Close detaches the session from the UI. Operations already sent to the
// server still complete there, but their results are dropped.
func (s *AttemptSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.draft = nil
}

// StartOrResume starts the attempt or picks up the one already open on the
// server, then fetches the current question. An attempt the server reports
// as finished moves the session straight to its terminal state.
func (s *AttemptSession) StartOrResume(ctx context.Context) (*entities.QuizAttempt, error) {
	if !s.op.TryLock() {
		return nil, ErrBusy
	}
	defer s.op.Unlock()

	if err := s.check(AttemptUnstarted, AttemptActive, AttemptAwaitingNext, AttemptExhausted); err != nil {
		return nil, err
	}

	attempt, err := s.api.StartAttempt(ctx, s.quizID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.attempt != nil && s.attempt.ID != attempt.ID {
		s.logger.Warn("server returned a different attempt",
			zap.Int64("attempt_id", s.attempt.ID),
			zap.Int64("new_attempt_id", attempt.ID),
		)
		s.question, s.draft = nil, nil
		s.answers = make(map[int64]entities.StudentAnswer)
	}
	s.attempt = attempt
	s.state = stateFromStatus(attempt.Status)
	if !s.state.Terminal() {
		// ACTIVE only once a question is in hand; a failed fetch leaves the
		// session AWAITING_NEXT so FetchCurrentQuestion can retry.
		s.state = AttemptAwaitingNext
		s.question, s.draft = nil, nil
	}
	state := s.state
	s.mu.Unlock()

	s.logger.Info("attempt started",
		zap.Int64("attempt_id", attempt.ID),
		zap.String("status", string(attempt.Status)),
	)

	if state.Terminal() {
		return s.Attempt(), nil
	}

	if _, err := s.fetch(ctx); err != nil {
		return s.Attempt(), err
	}
	return s.Attempt(), nil
}

// FetchCurrentQuestion asks the server for the next unanswered question.
// When there is none the session becomes EXHAUSTED and nil is returned.
func (s *AttemptSession) FetchCurrentQuestion(ctx context.Context) (*entities.Question, error) {
	if !s.op.TryLock() {
		return nil, ErrBusy
	}
	defer s.op.Unlock()

	if err := s.check(AttemptActive, AttemptAwaitingNext); err != nil {
		return nil, err
	}
	return s.fetch(ctx)
}

// fetch must be called with op held.
func (s *AttemptSession) fetch(ctx context.Context) (*entities.Question, error) {
	s.mu.RLock()
	attemptID := s.attempt.ID
	s.mu.RUnlock()

	q, err := s.api.CurrentQuestion(ctx, attemptID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	if errors.Is(err, gateway.ErrNoMoreQuestions) {
		s.state = AttemptExhausted
		s.question, s.draft = nil, nil
		s.logger.Debug("no more questions", zap.Int64("attempt_id", attemptID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	draft, err := answer.NewDraft(*q)
	if err != nil {
		return nil, err
	}

	s.question = q
	s.draft = draft
	s.state = AttemptActive

	s.logger.Debug("question fetched",
		zap.Int64("attempt_id", attemptID),
		zap.Int64("question_id", q.ID),
		zap.String("type", string(q.Type)),
	)

	qc := *q
	return &qc, nil
}

// SubmitAnswer validates and posts the answer to the current question, then
// fetches the next one. An incomplete answer is rejected without contacting
// the server.
//
// If the answer was accepted but fetching the next question failed, the
// submit result is returned together with the error and the session stays
// AWAITING_NEXT; FetchCurrentQuestion retries.
func (s *AttemptSession) SubmitAnswer(ctx context.Context, questionID int64, a answer.Answer) (*entities.SubmitResult, error) {
	if !s.op.TryLock() {
		return nil, ErrBusy
	}
	defer s.op.Unlock()

	if err := s.check(AttemptActive); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.question == nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: no current question", ErrInvalidState)
	}
	q := *s.question
	attemptID := s.attempt.ID
	s.mu.RUnlock()

	if q.ID != questionID {
		return nil, fmt.Errorf("%w: current is %d, got %d", ErrQuestionMismatch, q.ID, questionID)
	}

	payload, err := answer.Encode(&q, a)
	if err != nil {
		return nil, err
	}

	// A submit that reached the network is never cancelled by the caller.
	res, err := s.api.SubmitAnswer(context.WithoutCancel(ctx), attemptID, q.ID, payload)
	if err != nil {
		s.logger.Debug("submit failed",
			zap.Int64("attempt_id", attemptID),
			zap.Int64("question_id", q.ID),
			zap.Error(err),
		)
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.answers[q.ID] = entities.StudentAnswer{
		QuestionID: q.ID,
		Payload:    encodeJSON(payload),
		IsCorrect:  res.IsCorrect,
		Message:    res.Message,
	}
	s.state = AttemptAwaitingNext
	s.question, s.draft = nil, nil
	s.mu.Unlock()

	s.logger.Debug("answer submitted",
		zap.Int64("attempt_id", attemptID),
		zap.Int64("question_id", q.ID),
	)

	if _, err := s.fetch(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// SubmitDraft submits the draft of the current question.
func (s *AttemptSession) SubmitDraft(ctx context.Context) (*entities.SubmitResult, error) {
	s.mu.RLock()
	q, d := s.question, s.draft
	s.mu.RUnlock()

	if q == nil || d == nil {
		return nil, fmt.Errorf("%w: no current question", ErrInvalidState)
	}
	return s.SubmitAnswer(ctx, q.ID, d.Answer())
}

// Finalize completes an EXHAUSTED attempt and adopts the status decided by
// the server.
func (s *AttemptSession) Finalize(ctx context.Context) (*entities.AttemptDetails, error) {
	if !s.op.TryLock() {
		return nil, ErrBusy
	}
	defer s.op.Unlock()

	if err := s.check(AttemptExhausted); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.state = AttemptFinalizing
	attemptID := s.attempt.ID
	s.mu.Unlock()

	details, err := s.api.CompleteAttempt(ctx, attemptID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if err != nil {
		s.state = AttemptExhausted
		return nil, err
	}
	if err := s.attempt.Finish(details); err != nil {
		s.state = AttemptExhausted
		return nil, err
	}

	s.state = stateFromStatus(details.Status)
	s.logger.Info("attempt finalized",
		zap.Int64("attempt_id", attemptID),
		zap.String("status", string(details.Status)),
		zap.Int("points_earned", details.PointsEarned),
	)

	return details, nil
}

// Result fetches the graded result of a finished attempt. It is refused
// while the attempt is still open.
func (s *AttemptSession) Result(ctx context.Context) (*entities.AttemptDetails, error) {
	if err := s.check(AttemptCompleted, AttemptPendingGrading, AttemptFailed); err != nil {
		return nil, err
	}

	s.mu.RLock()
	attemptID := s.attempt.ID
	s.mu.RUnlock()

	return s.api.AttemptDetails(ctx, attemptID)
}

func (s *AttemptSession) check(allowed ...AttemptState) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSessionClosed
	}
	for _, st := range allowed {
		if s.state == st {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
}

func encodeJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
