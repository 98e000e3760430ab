package answer

import (
	"fmt"
	"slices"

	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
)

// Draft is the in-progress answer to the question currently on screen.
// A Draft belongs to exactly one question; showing another question means
// building a new Draft, never editing the old one.
type Draft struct {
	question entities.Question
	answer   Answer
}

// NewDraft starts an empty answer for q.
func NewDraft(q entities.Question) (*Draft, error) {
	a, err := Empty(&q)
	if err != nil {
		return nil, err
	}
	return &Draft{question: q, answer: a}, nil
}

// Question returns the question the draft answers.
func (d *Draft) Question() entities.Question {
	return d.question
}

// Answer returns the current answer state.
func (d *Draft) Answer() Answer {
	return d.answer
}

// Encode validates the draft and returns its payload.
func (d *Draft) Encode() (Payload, error) {
	return Encode(&d.question, d.answer)
}

// Select chooses an option of an MC_SINGLE question.
func (d *Draft) Select(optionID int64) error {
	if _, ok := d.answer.(SingleChoice); !ok {
		return d.mismatch(entities.QuestionMCSingle)
	}
	if !d.question.HasOption(optionID) {
		return invalid(&d.question, ErrInvalidOption, fmt.Sprintf("option %d", optionID))
	}
	d.answer = SingleChoice{OptionID: optionID, Chosen: true}
	return nil
}

// Toggle flips one option of an MC_MULTI question and reports whether it is
// now selected.
func (d *Draft) Toggle(optionID int64) (bool, error) {
	cur, ok := d.answer.(MultiChoice)
	if !ok {
		return false, d.mismatch(entities.QuestionMCMulti)
	}
	if !d.question.HasOption(optionID) {
		return false, invalid(&d.question, ErrInvalidOption, fmt.Sprintf("option %d", optionID))
	}

	ids := normalizeIDs(cur.OptionIDs)
	if i, found := slices.BinarySearch(ids, optionID); found {
		d.answer = MultiChoice{OptionIDs: slices.Delete(ids, i, i+1)}
		return false, nil
	}

	d.answer = MultiChoice{OptionIDs: normalizeIDs(append(ids, optionID))}
	return true, nil
}

// Selected reports whether an option is currently chosen.
func (d *Draft) Selected(optionID int64) bool {
	switch a := d.answer.(type) {
	case SingleChoice:
		return a.Chosen && a.OptionID == optionID
	case MultiChoice:
		return slices.Contains(a.OptionIDs, optionID)
	default:
		return false
	}
}

// SetTrueFalse chooses the value of a TF question.
func (d *Draft) SetTrueFalse(v bool) error {
	if _, ok := d.answer.(TrueFalse); !ok {
		return d.mismatch(entities.QuestionTrueFalse)
	}
	d.answer = TrueFalse{Value: v, Chosen: true}
	return nil
}

// SetBlank fills the blank at a zero-based position.
func (d *Draft) SetBlank(position int, v string) error {
	cur, ok := d.answer.(FillBlank)
	if !ok {
		return d.mismatch(entities.QuestionFillBlank)
	}
	if position < 0 || position >= len(d.question.Blanks) {
		return invalid(&d.question, ErrInvalidOption, fmt.Sprintf("blank %d does not exist", position+1))
	}

	values := make([]string, len(d.question.Blanks))
	copy(values, cur.Values)
	values[position] = v
	d.answer = FillBlank{Values: values}
	return nil
}

// SetBlanks fills blanks in declared order. Extra values are rejected,
// missing ones stay empty.
func (d *Draft) SetBlanks(values []string) error {
	if _, ok := d.answer.(FillBlank); !ok {
		return d.mismatch(entities.QuestionFillBlank)
	}
	if len(values) > len(d.question.Blanks) {
		return invalid(&d.question, ErrInvalidOption,
			fmt.Sprintf("%d values for %d blanks", len(values), len(d.question.Blanks)))
	}

	filled := make([]string, len(d.question.Blanks))
	copy(filled, values)
	d.answer = FillBlank{Values: filled}
	return nil
}

// SetText sets the text of an OPEN_MANUAL answer.
func (d *Draft) SetText(s string) error {
	if _, ok := d.answer.(OpenText); !ok {
		return d.mismatch(entities.QuestionOpenManual)
	}
	d.answer = OpenText{Text: s}
	return nil
}

func (d *Draft) mismatch(want entities.QuestionType) error {
	return invalid(&d.question, ErrTypeMismatch, fmt.Sprintf("question is not %s", want))
}
