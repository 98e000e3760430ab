package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
)

// StartAttempt starts an attempt at a quiz or returns the one already open.
func (a *API) StartAttempt(ctx context.Context, quizID int64) (*entities.QuizAttempt, error) {
	var res attemptDTO
	path := fmt.Sprintf("/quizzes/%d/attempts/start-attempt/", quizID)
	if _, err := a.do(ctx, http.MethodPost, path, nil, &res); err != nil {
		return nil, fmt.Errorf("start attempt: %w", err)
	}
	if res.Status == "" {
		res.Status = entities.AttemptInProgress
	}
	if res.Quiz.ID == 0 {
		res.Quiz.ID = quizID
	}
	return res.toEntity(), nil
}

// CurrentQuestion returns the next unanswered question of the attempt, or
// ErrNoMoreQuestions.
func (a *API) CurrentQuestion(ctx context.Context, attemptID int64) (*entities.Question, error) {
	var res questionDTO
	path := fmt.Sprintf("/attempts/%d/current-question/", attemptID)
	if _, err := a.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return nil, ErrNoMoreQuestions
		}
		return nil, fmt.Errorf("current question: %w", err)
	}
	return res.toEntity(), nil
}

// SubmitAnswer posts the encoded answer to one question.
func (a *API) SubmitAnswer(ctx context.Context, attemptID, questionID int64, payload any) (*entities.SubmitResult, error) {
	var res submitResponse
	path := fmt.Sprintf("/attempts/%d/submit-answer/", attemptID)
	body := submitRequest{QuestionID: questionID, SelectedAnswers: payload}
	if _, err := a.do(ctx, http.MethodPost, path, body, &res); err != nil {
		return nil, fmt.Errorf("submit answer: %w", err)
	}
	return &entities.SubmitResult{IsCorrect: res.IsCorrect, Message: res.Message}, nil
}

// CompleteAttempt finalizes the attempt and returns the server's verdict.
func (a *API) CompleteAttempt(ctx context.Context, attemptID int64) (*entities.AttemptDetails, error) {
	var res detailsDTO
	path := fmt.Sprintf("/attempts/%d/complete/", attemptID)
	if _, err := a.do(ctx, http.MethodPost, path, nil, &res); err != nil {
		return nil, fmt.Errorf("complete attempt: %w", err)
	}
	if !res.Status.Terminal() {
		return nil, fmt.Errorf("complete attempt: server returned status %q", res.Status)
	}
	return res.toEntity(), nil
}

// AttemptDetails returns the result projection of a finished attempt.
func (a *API) AttemptDetails(ctx context.Context, attemptID int64) (*entities.AttemptDetails, error) {
	var res detailsDTO
	path := fmt.Sprintf("/attempts/%d/details/", attemptID)
	if _, err := a.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, fmt.Errorf("attempt details: %w", err)
	}
	return res.toEntity(), nil
}
