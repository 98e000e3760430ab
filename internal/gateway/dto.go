package gateway

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
)

// number accepts JSON numbers and numeric strings such as "8.50".
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("decode number %s: %w", b, err)
	}
	*n = number(f)
	return nil
}

func (n *number) float() *float64 {
	if n == nil {
		return nil
	}
	f := float64(*n)
	return &f
}

type quizRefDTO struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type attemptDTO struct {
	ID           int64                  `json:"id"`
	Status       entities.AttemptStatus `json:"status"`
	Quiz         quizRefDTO             `json:"quiz"`
	StartedAt    time.Time              `json:"started_at"`
	CompletedAt  *time.Time             `json:"completed_at"`
	Score        *number                `json:"score"`
	PointsEarned int                    `json:"points_earned"`
}

func (d *attemptDTO) toEntity() *entities.QuizAttempt {
	return &entities.QuizAttempt{
		ID:           d.ID,
		Quiz:         entities.QuizRef{ID: d.Quiz.ID, Title: d.Quiz.Title},
		Status:       d.Status,
		StartedAt:    d.StartedAt,
		CompletedAt:  d.CompletedAt,
		Score:        d.Score.float(),
		PointsEarned: d.PointsEarned,
	}
}

type optionDTO struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type blankDTO struct {
	ID       int64 `json:"id"`
	Position int   `json:"position"`
}

// questionDTO deliberately has no correctness fields; anything of the kind
// in the response is dropped while decoding.
type questionDTO struct {
	ID      int64                 `json:"id"`
	Text    string                `json:"text"`
	Type    entities.QuestionType `json:"question_type"`
	Order   int                   `json:"order"`
	Options []optionDTO           `json:"options"`
	Blanks  []blankDTO            `json:"blanks"`
}

func (d *questionDTO) toEntity() *entities.Question {
	q := &entities.Question{
		ID:    d.ID,
		Text:  d.Text,
		Type:  d.Type,
		Order: d.Order,
	}
	for _, o := range d.Options {
		q.Options = append(q.Options, entities.Option{ID: o.ID, Text: o.Text})
	}

	blanks := make([]blankDTO, len(d.Blanks))
	copy(blanks, d.Blanks)
	sort.SliceStable(blanks, func(i, j int) bool { return blanks[i].Position < blanks[j].Position })
	for i, b := range blanks {
		q.Blanks = append(q.Blanks, entities.Blank{ID: b.ID, Position: i})
	}

	return q
}

type submitRequest struct {
	QuestionID      int64 `json:"question_id"`
	SelectedAnswers any   `json:"selected_answers"`
}

type submitResponse struct {
	IsCorrect *bool  `json:"is_correct"`
	Message   string `json:"message"`
}

type studentAnswerDTO struct {
	SelectedAnswers json.RawMessage `json:"selected_answers"`
	IsCorrect       *bool           `json:"is_correct"`
	Score           *number         `json:"score"`
	Message         string          `json:"message"`
}

type resultQuestionDTO struct {
	ID               int64                 `json:"id"`
	Text             string                `json:"text"`
	Type             entities.QuestionType `json:"question_type"`
	Order            int                   `json:"order"`
	CorrectOptionIDs []int64               `json:"correct_option_ids"`
	CorrectAnswers   []string              `json:"correct_answers"`
	CorrectIsTrue    *bool                 `json:"correct_is_true"`
	StudentAnswer    *studentAnswerDTO     `json:"student_answer"`
}

type detailsDTO struct {
	attemptDTO
	Questions []resultQuestionDTO `json:"questions"`
}

func (d *detailsDTO) toEntity() *entities.AttemptDetails {
	details := &entities.AttemptDetails{
		ID:           d.ID,
		Quiz:         entities.QuizRef{ID: d.Quiz.ID, Title: d.Quiz.Title},
		Status:       d.Status,
		Score:        d.Score.float(),
		PointsEarned: d.PointsEarned,
		StartedAt:    d.StartedAt,
		CompletedAt:  d.CompletedAt,
	}

	for _, rq := range d.Questions {
		q := entities.ResultQuestion{
			ID:               rq.ID,
			Text:             rq.Text,
			Type:             rq.Type,
			Order:            rq.Order,
			CorrectOptionIDs: rq.CorrectOptionIDs,
			CorrectBlanks:    rq.CorrectAnswers,
			CorrectIsTrue:    rq.CorrectIsTrue,
		}
		if sa := rq.StudentAnswer; sa != nil {
			q.Answer = &entities.StudentAnswer{
				QuestionID: rq.ID,
				Payload:    sa.SelectedAnswers,
				IsCorrect:  sa.IsCorrect,
				Score:      sa.Score.float(),
				Message:    sa.Message,
			}
		}
		details.Questions = append(details.Questions, q)
	}

	sort.SliceStable(details.Questions, func(i, j int) bool {
		return details.Questions[i].Order < details.Questions[j].Order
	})

	return details
}

type pathwayQuizDTO struct {
	QuizID          int64  `json:"quiz_id"`
	Title           string `json:"title"`
	Order           int    `json:"order"`
	CompletionBonus int    `json:"completion_bonus"`
}

type pathwayDTO struct {
	ID              int64            `json:"id"`
	Title           string           `json:"title"`
	CompletionBonus int              `json:"completion_bonus"`
	Quizzes         []pathwayQuizDTO `json:"quizzes"`
}

type pathwayProgressDTO struct {
	Status                 entities.PathwayStatus `json:"status"`
	LastCompletedQuizOrder *int                   `json:"last_completed_quiz_order"`
	CompletedOrders        []int                  `json:"completed_orders"`
	PointsEarned           int                    `json:"points_earned"`
}

type pathwayAttemptDTO struct {
	Pathway  pathwayDTO          `json:"pathway"`
	Progress *pathwayProgressDTO `json:"progress"`
}

func (d *pathwayAttemptDTO) toEntity() (entities.Pathway, *entities.PathwayProgress) {
	p := entities.Pathway{
		ID:              d.Pathway.ID,
		Title:           d.Pathway.Title,
		CompletionBonus: d.Pathway.CompletionBonus,
	}
	for _, q := range d.Pathway.Quizzes {
		p.Quizzes = append(p.Quizzes, entities.PathwayQuiz{
			QuizID:          q.QuizID,
			Title:           q.Title,
			Order:           q.Order,
			CompletionBonus: q.CompletionBonus,
		})
	}

	progress := entities.NewPathwayProgress(p.ID)
	if d.Progress != nil {
		if d.Progress.Status != "" {
			progress.Status = d.Progress.Status
		}
		progress.LastCompletedQuizOrder = d.Progress.LastCompletedQuizOrder
		progress.PointsEarned = d.Progress.PointsEarned
		for _, o := range d.Progress.CompletedOrders {
			progress.CompletedOrders[o] = struct{}{}
		}
	}

	return p, progress
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userDTO struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

func (u *userDTO) displayName() string {
	if u.Name != "" {
		return u.Name
	}
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	return u.Username
}

type loginResponse struct {
	Access  string   `json:"access" validate:"required"`
	Refresh string   `json:"refresh"`
	User    *userDTO `json:"user"`
	Student *userDTO `json:"student"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access" validate:"required"`
	Refresh string `json:"refresh"`
}
