package entities

import (
	"errors"
	"math"
	"sort"
)

// PathwayStatus is the progress status of a student within a pathway.
type PathwayStatus string

const (
	PathwayInProgress PathwayStatus = "IN_PROGRESS"
	PathwayCompleted  PathwayStatus = "COMPLETED"
)

var (
	ErrEmptyPathway     = errors.New("pathway has no quizzes")
	ErrDuplicateOrder   = errors.New("pathway has duplicate quiz orders")
	ErrProgressMismatch = errors.New("progress belongs to a different pathway")
	ErrUnknownQuizOrder = errors.New("progress references an order outside the pathway")
)

// PathwayQuiz is one quiz reference inside a pathway.
type PathwayQuiz struct {
	QuizID          int64
	Title           string
	Order           int
	CompletionBonus int // points granted when this quiz is completed
}

// Pathway is an ordered sequence of quizzes.
type Pathway struct {
	ID              int64
	Title           string
	Quizzes         []PathwayQuiz
	CompletionBonus int // extra points for finishing the whole pathway
}

// PathwayProgress is a student's progress through a pathway.
// CompletedOrders only grows.
type PathwayProgress struct {
	PathwayID              int64
	Status                 PathwayStatus
	LastCompletedQuizOrder *int
	CompletedOrders        map[int]struct{}
	PointsEarned           int
}

// NewPathwayProgress creates empty progress for a pathway.
func NewPathwayProgress(pathwayID int64) *PathwayProgress {
	return &PathwayProgress{
		PathwayID:       pathwayID,
		Status:          PathwayInProgress,
		CompletedOrders: make(map[int]struct{}),
	}
}

// IsCompleted reports whether the given order has been completed.
func (p *PathwayProgress) IsCompleted(order int) bool {
	_, ok := p.CompletedOrders[order]
	return ok
}

// Orders returns the completed orders in ascending order.
func (p *PathwayProgress) Orders() []int {
	orders := make([]int, 0, len(p.CompletedOrders))
	for o := range p.CompletedOrders {
		orders = append(orders, o)
	}
	sort.Ints(orders)
	return orders
}

// PathwayTracker derives next steps and completion from a pathway and the
// student's progress in it. All derived values are recomputed on demand.
type PathwayTracker struct {
	pathway  Pathway
	progress *PathwayProgress
}

// NewPathwayTracker validates the pathway and binds progress to it.
// A nil progress starts from scratch.
func NewPathwayTracker(pathway Pathway, progress *PathwayProgress) (*PathwayTracker, error) {
	if len(pathway.Quizzes) == 0 {
		return nil, ErrEmptyPathway
	}

	quizzes := make([]PathwayQuiz, len(pathway.Quizzes))
	copy(quizzes, pathway.Quizzes)
	sort.SliceStable(quizzes, func(i, j int) bool { return quizzes[i].Order < quizzes[j].Order })
	for i := 1; i < len(quizzes); i++ {
		if quizzes[i].Order == quizzes[i-1].Order {
			return nil, ErrDuplicateOrder
		}
	}
	pathway.Quizzes = quizzes

	if progress == nil {
		progress = NewPathwayProgress(pathway.ID)
	}
	if progress.PathwayID != pathway.ID {
		return nil, ErrProgressMismatch
	}
	if progress.CompletedOrders == nil {
		progress.CompletedOrders = make(map[int]struct{})
	}

	t := &PathwayTracker{pathway: pathway, progress: progress}
	for o := range progress.CompletedOrders {
		if _, ok := t.quizByOrder(o); !ok {
			return nil, ErrUnknownQuizOrder
		}
	}
	if progress.Status == "" {
		progress.Status = PathwayInProgress
	}

	return t, nil
}

// Pathway returns the pathway with quizzes sorted by order.
func (t *PathwayTracker) Pathway() Pathway {
	return t.pathway
}

// Progress returns the tracked progress.
func (t *PathwayTracker) Progress() *PathwayProgress {
	return t.progress
}

// NextQuiz returns the lowest-order quiz not yet completed, or nil when the
// pathway is complete.
func (t *PathwayTracker) NextQuiz() *PathwayQuiz {
	for i := range t.pathway.Quizzes {
		q := t.pathway.Quizzes[i]
		if !t.progress.IsCompleted(q.Order) {
			return &q
		}
	}
	return nil
}

// CompletionPercentage is 100 for a completed pathway, otherwise the rounded
// share of completed quizzes.
func (t *PathwayTracker) CompletionPercentage() int {
	if t.progress.Status == PathwayCompleted {
		return 100
	}

	total := len(t.pathway.Quizzes)
	done := len(t.progress.CompletedOrders)
	return int(math.Round(100 * float64(done) / float64(total)))
}

// QuizByID looks up a quiz of the pathway by its quiz id.
func (t *PathwayTracker) QuizByID(quizID int64) (PathwayQuiz, bool) {
	for _, q := range t.pathway.Quizzes {
		if q.QuizID == quizID {
			return q, true
		}
	}
	return PathwayQuiz{}, false
}

// ConsumeCompletion applies a finished quiz attempt to the progress.
// It returns true if the progress changed. Completions for quizzes outside
// the pathway, unsuccessful attempts and repeats are ignored.
func (t *PathwayTracker) ConsumeCompletion(c QuizCompletion) bool {
	if !c.Succeeded() {
		return false
	}

	quiz, ok := t.QuizByID(c.QuizID)
	if !ok || t.progress.IsCompleted(quiz.Order) {
		return false
	}

	t.progress.CompletedOrders[quiz.Order] = struct{}{}
	order := quiz.Order
	t.progress.LastCompletedQuizOrder = &order

	if len(t.progress.CompletedOrders) == len(t.pathway.Quizzes) {
		t.progress.Status = PathwayCompleted
		t.progress.PointsEarned = t.completionPoints()
	}

	return true
}

// Merge folds server-reported progress into the tracked progress without
// ever dropping a completed order.
func (t *PathwayTracker) Merge(remote *PathwayProgress) error {
	if remote == nil {
		return nil
	}
	if remote.PathwayID != t.pathway.ID {
		return ErrProgressMismatch
	}

	for o := range remote.CompletedOrders {
		if _, ok := t.quizByOrder(o); !ok {
			return ErrUnknownQuizOrder
		}
		t.progress.CompletedOrders[o] = struct{}{}
	}
	if remote.LastCompletedQuizOrder != nil {
		order := *remote.LastCompletedQuizOrder
		t.progress.LastCompletedQuizOrder = &order
	}
	if remote.PointsEarned > t.progress.PointsEarned {
		t.progress.PointsEarned = remote.PointsEarned
	}
	if t.progress.Status == PathwayCompleted {
		return nil
	}
	if remote.Status == PathwayCompleted || len(t.progress.CompletedOrders) == len(t.pathway.Quizzes) {
		t.progress.Status = PathwayCompleted
		if t.progress.PointsEarned == 0 {
			t.progress.PointsEarned = t.completionPoints()
		}
	}

	return nil
}

func (t *PathwayTracker) completionPoints() int {
	points := t.pathway.CompletionBonus
	for _, q := range t.pathway.Quizzes {
		points += q.CompletionBonus
	}
	return points
}

func (t *PathwayTracker) quizByOrder(order int) (PathwayQuiz, bool) {
	for _, q := range t.pathway.Quizzes {
		if q.Order == order {
			return q, true
		}
	}
	return PathwayQuiz{}, false
}
