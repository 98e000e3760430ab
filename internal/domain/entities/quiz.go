// Package entities contains domain entities used across the application.
package entities

import (
	"errors"
	"fmt"
	"time"
)

// AttemptStatus is the server-side status of a quiz attempt.
type AttemptStatus string

const (
	AttemptInProgress     AttemptStatus = "IN_PROGRESS"
	AttemptPendingGrading AttemptStatus = "PENDING_GRADING"
	AttemptCompleted      AttemptStatus = "COMPLETED"
	AttemptFailed         AttemptStatus = "FAILED"
)

// ErrStatusRegression is returned when an attempt would move backwards.
var ErrStatusRegression = errors.New("attempt status cannot move backwards")

// Terminal reports whether the status is a final one.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptPendingGrading || s == AttemptCompleted || s == AttemptFailed
}

// Valid reports whether s is a known attempt status.
func (s AttemptStatus) Valid() bool {
	return s == AttemptInProgress || s.Terminal()
}

// QuizRef is the short quiz projection embedded in attempt responses.
type QuizRef struct {
	ID    int64
	Title string
}

// QuizAttempt is one student's pass at a single quiz.
// The server is authoritative: starting twice while an attempt is open
// yields the same attempt.
type QuizAttempt struct {
	ID           int64         // unique attempt ID
	Quiz         QuizRef       // quiz the attempt belongs to
	Status       AttemptStatus // server-reported status
	StartedAt    time.Time     // timestamp when the attempt started
	CompletedAt  *time.Time    // set once the attempt is finished
	Score        *float64      // nil until graded
	PointsEarned int           // points awarded by the server
}

// IsOpen reports whether the attempt still accepts answers.
func (a *QuizAttempt) IsOpen() bool {
	return a.Status == AttemptInProgress
}

// Advance moves the attempt to next. Statuses only move forward:
// IN_PROGRESS may become any terminal status, a terminal status may only be
// re-applied as itself.
func (a *QuizAttempt) Advance(next AttemptStatus) error {
	if !next.Valid() {
		return fmt.Errorf("unknown attempt status %q", next)
	}
	if a.Status == next {
		return nil
	}
	if a.Status.Terminal() || !next.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrStatusRegression, a.Status, next)
	}

	a.Status = next
	return nil
}

// Finish adopts the server's final verdict for the attempt.
func (a *QuizAttempt) Finish(details *AttemptDetails) error {
	if err := a.Advance(details.Status); err != nil {
		return err
	}

	a.Score = details.Score
	a.PointsEarned = details.PointsEarned
	a.CompletedAt = details.CompletedAt
	if a.CompletedAt == nil {
		now := time.Now()
		a.CompletedAt = &now
	}

	return nil
}

// StudentAnswer records what was submitted for one question of an attempt.
// A later submission for the same question replaces the earlier one.
type StudentAnswer struct {
	QuestionID int64
	Payload    []byte   // wire payload as sent
	IsCorrect  *bool    // nil means ungraded (open answers)
	Score      *float64 // nil until graded
	Message    string   // optional server message
}

// SubmitResult is the server response to a submitted answer.
type SubmitResult struct {
	IsCorrect *bool
	Message   string
}

// AttemptDetails is the post-completion projection of an attempt. Only this
// projection carries correctness data.
type AttemptDetails struct {
	ID           int64
	Quiz         QuizRef
	Status       AttemptStatus
	Score        *float64
	PointsEarned int
	StartedAt    time.Time
	CompletedAt  *time.Time
	Questions    []ResultQuestion
}

// ResultQuestion is a question as shown after completion, with the correct
// answer and the student's graded answer.
type ResultQuestion struct {
	ID               int64
	Text             string
	Type             QuestionType
	Order            int
	CorrectOptionIDs []int64
	CorrectBlanks    []string
	CorrectIsTrue    *bool
	Answer           *StudentAnswer
}

// QuizCompletion is emitted when an attempt reaches a terminal status.
type QuizCompletion struct {
	AttemptID    int64
	QuizID       int64
	Status       AttemptStatus
	PointsEarned int
}

// Succeeded reports whether the completion counts toward a pathway.
// Attempts waiting for manual grading count; failed ones do not.
func (c QuizCompletion) Succeeded() bool {
	return c.Status == AttemptCompleted || c.Status == AttemptPendingGrading
}
