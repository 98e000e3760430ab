package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aliskhannn/pathway-quiz-bot/internal/answer"
	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
	"github.com/aliskhannn/pathway-quiz-bot/internal/gateway"
)

// fakeBackend is an in-memory quiz server. Correctness lives only here.
type fakeBackend struct {
	mu sync.Mutex

	calls     []string
	questions []entities.Question
	correct   map[int64]int64 // question id -> correct option id
	attempts  map[int64]*entities.QuizAttempt
	answers   map[int64]map[int64]answer.Payload // attempt id -> question id -> payload
	nextID    int64

	submitGate chan struct{}
	submitErr  error
	currentErr []error // returned by the next CurrentQuestion calls, in order

	pathway  entities.Pathway
	progress *entities.PathwayProgress
}

func newFakeBackend(questions ...entities.Question) *fakeBackend {
	return &fakeBackend{
		questions: questions,
		correct:   make(map[int64]int64),
		attempts:  make(map[int64]*entities.QuizAttempt),
		answers:   make(map[int64]map[int64]answer.Payload),
		nextID:    100,
	}
}

func (f *fakeBackend) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) StartAttempt(_ context.Context, quizID int64) (*entities.QuizAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("start")

	if a, ok := f.attempts[quizID]; ok && a.IsOpen() {
		c := *a
		return &c, nil
	}

	f.nextID++
	a := &entities.QuizAttempt{ID: f.nextID, Quiz: entities.QuizRef{ID: quizID}, Status: entities.AttemptInProgress}
	f.attempts[quizID] = a
	f.answers[a.ID] = make(map[int64]answer.Payload)

	c := *a
	return &c, nil
}

func (f *fakeBackend) CurrentQuestion(_ context.Context, attemptID int64) (*entities.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("current")

	if len(f.currentErr) > 0 {
		err := f.currentErr[0]
		f.currentErr = f.currentErr[1:]
		return nil, err
	}

	qs := append([]entities.Question(nil), f.questions...)
	sort.Slice(qs, func(i, j int) bool { return qs[i].Order < qs[j].Order })
	for _, q := range qs {
		if _, done := f.answers[attemptID][q.ID]; !done {
			return &q, nil
		}
	}
	return nil, gateway.ErrNoMoreQuestions
}

func (f *fakeBackend) SubmitAnswer(_ context.Context, attemptID, questionID int64, payload any) (*entities.SubmitResult, error) {
	f.mu.Lock()
	f.record(fmt.Sprintf("submit:%d", questionID))
	gate := f.submitGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitErr != nil {
		return nil, f.submitErr
	}

	p := payload.(answer.Payload)
	f.answers[attemptID][questionID] = p

	res := &entities.SubmitResult{}
	if sc, ok := p.(answer.SingleChoicePayload); ok {
		right := f.correct[questionID] == sc.SelectedOptionID
		res.IsCorrect = &right
	}
	return res, nil
}

func (f *fakeBackend) CompleteAttempt(_ context.Context, attemptID int64) (*entities.AttemptDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("complete")

	var a *entities.QuizAttempt
	for _, at := range f.attempts {
		if at.ID == attemptID {
			a = at
		}
	}
	if a == nil {
		return nil, &gateway.APIError{Status: 404, Message: "Not found."}
	}

	status := entities.AttemptCompleted
	right := 0
	for _, q := range f.questions {
		p := f.answers[attemptID][q.ID]
		switch v := p.(type) {
		case answer.SingleChoicePayload:
			if f.correct[q.ID] == v.SelectedOptionID {
				right++
			}
		case answer.OpenTextPayload:
			status = entities.AttemptPendingGrading
		}
	}

	score := 100 * float64(right) / float64(len(f.questions))
	a.Status = status
	a.Score = &score
	a.PointsEarned = right * 5

	return &entities.AttemptDetails{
		ID:           a.ID,
		Quiz:         a.Quiz,
		Status:       status,
		Score:        &score,
		PointsEarned: a.PointsEarned,
	}, nil
}

func (f *fakeBackend) AttemptDetails(_ context.Context, attemptID int64) (*entities.AttemptDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("details")

	d := &entities.AttemptDetails{ID: attemptID}
	for _, q := range f.questions {
		rq := entities.ResultQuestion{ID: q.ID, Type: q.Type, Order: q.Order}
		if c, ok := f.correct[q.ID]; ok {
			rq.CorrectOptionIDs = []int64{c}
		}
		if p, ok := f.answers[attemptID][q.ID]; ok {
			raw, _ := json.Marshal(p)
			rq.Answer = &entities.StudentAnswer{QuestionID: q.ID, Payload: raw}
		}
		d.Questions = append(d.Questions, rq)
	}
	return d, nil
}

func (f *fakeBackend) StartPathway(_ context.Context, pathwayID int64) (entities.Pathway, *entities.PathwayProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("pathway")

	if f.pathway.ID != pathwayID {
		return entities.Pathway{}, nil, &gateway.APIError{Status: 404, Message: "Not found."}
	}

	progress := entities.NewPathwayProgress(pathwayID)
	if f.progress != nil {
		progress.Status = f.progress.Status
		progress.PointsEarned = f.progress.PointsEarned
		for o := range f.progress.CompletedOrders {
			progress.CompletedOrders[o] = struct{}{}
		}
	}
	return f.pathway, progress, nil
}
