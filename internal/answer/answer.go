// Package answer maps a student's in-progress answer to the payload the
// backend expects for each question type, and decides when an answer is
// complete enough to be submitted.
package answer

import (
	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
)

// Answer is the UI-local answer to one question. The set of implementations
// is closed: SingleChoice, MultiChoice, TrueFalse, FillBlank and OpenText.
type Answer interface {
	Type() entities.QuestionType
	isAnswer()
}

// SingleChoice answers an MC_SINGLE question.
type SingleChoice struct {
	OptionID int64
	Chosen   bool
}

// MultiChoice answers an MC_MULTI question. Order and duplicates carry no
// meaning.
type MultiChoice struct {
	OptionIDs []int64
}

// TrueFalse answers a TF question. Once chosen it cannot become unset.
type TrueFalse struct {
	Value  bool
	Chosen bool
}

// FillBlank answers a FILL_BLANK question, one value per blank in declared
// order.
type FillBlank struct {
	Values []string
}

// OpenText answers an OPEN_MANUAL question.
type OpenText struct {
	Text string
}

func (SingleChoice) Type() entities.QuestionType { return entities.QuestionMCSingle }
func (MultiChoice) Type() entities.QuestionType  { return entities.QuestionMCMulti }
func (TrueFalse) Type() entities.QuestionType    { return entities.QuestionTrueFalse }
func (FillBlank) Type() entities.QuestionType    { return entities.QuestionFillBlank }
func (OpenText) Type() entities.QuestionType     { return entities.QuestionOpenManual }

func (SingleChoice) isAnswer() {}
func (MultiChoice) isAnswer()  {}
func (TrueFalse) isAnswer()    {}
func (FillBlank) isAnswer()    {}
func (OpenText) isAnswer()     {}

// Payload is the wire form of an answer, sent as selected_answers.
type Payload interface {
	Type() entities.QuestionType
	isPayload()
}

type SingleChoicePayload struct {
	SelectedOptionID int64 `json:"selectedOptionId"`
}

type MultiChoicePayload struct {
	SelectedOptionIDs []int64 `json:"selectedOptionIds"`
}

type TrueFalsePayload struct {
	IsTrue bool `json:"isTrue"`
}

type FillBlankPayload struct {
	Answers []string `json:"answers"`
}

type OpenTextPayload struct {
	Text string `json:"text"`
}

func (SingleChoicePayload) Type() entities.QuestionType { return entities.QuestionMCSingle }
func (MultiChoicePayload) Type() entities.QuestionType  { return entities.QuestionMCMulti }
func (TrueFalsePayload) Type() entities.QuestionType    { return entities.QuestionTrueFalse }
func (FillBlankPayload) Type() entities.QuestionType    { return entities.QuestionFillBlank }
func (OpenTextPayload) Type() entities.QuestionType     { return entities.QuestionOpenManual }

func (SingleChoicePayload) isPayload() {}
func (MultiChoicePayload) isPayload()  {}
func (TrueFalsePayload) isPayload()    {}
func (FillBlankPayload) isPayload()    {}
func (OpenTextPayload) isPayload()     {}

// Empty returns the unanswered state for a question.
func Empty(q *entities.Question) (Answer, error) {
	switch q.Type {
	case entities.QuestionMCSingle:
		return SingleChoice{}, nil
	case entities.QuestionMCMulti:
		return MultiChoice{}, nil
	case entities.QuestionTrueFalse:
		return TrueFalse{}, nil
	case entities.QuestionFillBlank:
		return FillBlank{Values: make([]string, len(q.Blanks))}, nil
	case entities.QuestionOpenManual:
		return OpenText{}, nil
	default:
		return nil, unsupported(q.Type)
	}
}
