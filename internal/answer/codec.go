package answer

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
)

var (
	ErrIncomplete      = errors.New("answer is incomplete")
	ErrInvalidOption   = errors.New("answer references an unknown option")
	ErrTypeMismatch    = errors.New("answer does not match the question type")
	ErrUnsupportedType = errors.New("unsupported question type")
)

// ValidationError describes why an answer was rejected locally.
type ValidationError struct {
	QuestionID int64
	Type       entities.QuestionType
	Reason     string
	Err        error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("question %d (%s): %s", e.QuestionID, e.Type, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(q *entities.Question, err error, reason string) error {
	return &ValidationError{QuestionID: q.ID, Type: q.Type, Reason: reason, Err: err}
}

func unsupported(t entities.QuestionType) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedType, t)
}

// Encode validates a against q and returns the payload to submit.
// Any error means nothing must be sent.
func Encode(q *entities.Question, a Answer) (Payload, error) {
	if !q.Type.Valid() {
		return nil, unsupported(q.Type)
	}
	if a == nil {
		return nil, invalid(q, ErrIncomplete, "no answer given")
	}
	if a.Type() != q.Type {
		return nil, invalid(q, ErrTypeMismatch, fmt.Sprintf("got %s answer", a.Type()))
	}

	switch a := a.(type) {
	case SingleChoice:
		if !a.Chosen {
			return nil, invalid(q, ErrIncomplete, "no option selected")
		}
		if !q.HasOption(a.OptionID) {
			return nil, invalid(q, ErrInvalidOption, fmt.Sprintf("option %d", a.OptionID))
		}
		return SingleChoicePayload{SelectedOptionID: a.OptionID}, nil

	case MultiChoice:
		ids := normalizeIDs(a.OptionIDs)
		if len(ids) == 0 {
			return nil, invalid(q, ErrIncomplete, "no options selected")
		}
		for _, id := range ids {
			if !q.HasOption(id) {
				return nil, invalid(q, ErrInvalidOption, fmt.Sprintf("option %d", id))
			}
		}
		return MultiChoicePayload{SelectedOptionIDs: ids}, nil

	case TrueFalse:
		if !a.Chosen {
			return nil, invalid(q, ErrIncomplete, "true or false not chosen")
		}
		return TrueFalsePayload{IsTrue: a.Value}, nil

	case FillBlank:
		if len(a.Values) != len(q.Blanks) {
			return nil, invalid(q, ErrIncomplete,
				fmt.Sprintf("%d of %d blanks answered", len(a.Values), len(q.Blanks)))
		}
		values := make([]string, len(a.Values))
		for i, v := range a.Values {
			v = strings.TrimSpace(v)
			if v == "" {
				return nil, invalid(q, ErrIncomplete, fmt.Sprintf("blank %d is empty", i+1))
			}
			values[i] = v
		}
		return FillBlankPayload{Answers: values}, nil

	case OpenText:
		text := strings.TrimSpace(a.Text)
		if text == "" {
			return nil, invalid(q, ErrIncomplete, "open answer is empty")
		}
		return OpenTextPayload{Text: text}, nil

	default:
		return nil, unsupported(a.Type())
	}
}

// Validate reports whether a can be submitted for q.
func Validate(q *entities.Question, a Answer) error {
	_, err := Encode(q, a)
	return err
}

// Decode turns a wire payload back into the UI-local answer.
func Decode(p Payload) (Answer, error) {
	switch p := p.(type) {
	case SingleChoicePayload:
		return SingleChoice{OptionID: p.SelectedOptionID, Chosen: true}, nil
	case MultiChoicePayload:
		return MultiChoice{OptionIDs: normalizeIDs(p.SelectedOptionIDs)}, nil
	case TrueFalsePayload:
		return TrueFalse{Value: p.IsTrue, Chosen: true}, nil
	case FillBlankPayload:
		return FillBlank{Values: slices.Clone(p.Answers)}, nil
	case OpenTextPayload:
		return OpenText{Text: p.Text}, nil
	case nil:
		return nil, errors.New("nil payload")
	default:
		return nil, unsupported(p.Type())
	}
}

// Unmarshal parses a raw selected_answers document for a question type.
func Unmarshal(t entities.QuestionType, data []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)

	switch t {
	case entities.QuestionMCSingle:
		var v SingleChoicePayload
		err = json.Unmarshal(data, &v)
		p = v
	case entities.QuestionMCMulti:
		var v MultiChoicePayload
		err = json.Unmarshal(data, &v)
		p = v
	case entities.QuestionTrueFalse:
		var v TrueFalsePayload
		err = json.Unmarshal(data, &v)
		p = v
	case entities.QuestionFillBlank:
		var v FillBlankPayload
		err = json.Unmarshal(data, &v)
		p = v
	case entities.QuestionOpenManual:
		var v OpenTextPayload
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, unsupported(t)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", t, err)
	}

	return p, nil
}

// normalizeIDs returns the distinct ids in ascending order.
func normalizeIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
