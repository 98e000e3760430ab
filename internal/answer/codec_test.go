package answer

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
)

func choiceQuestion(t entities.QuestionType) *entities.Question {
	return &entities.Question{
		ID:   1,
		Text: "Pick",
		Type: t,
		Options: []entities.Option{
			{ID: 10, Text: "A"},
			{ID: 11, Text: "B"},
			{ID: 12, Text: "C"},
		},
	}
}

func blankQuestion(n int) *entities.Question {
	q := &entities.Question{ID: 3, Text: "The capital of France is ___, of Spain ___.", Type: entities.QuestionFillBlank}
	for i := 0; i < n; i++ {
		q.Blanks = append(q.Blanks, entities.Blank{ID: int64(100 + i), Position: i})
	}
	return q
}

func questionFor(t entities.QuestionType) *entities.Question {
	switch t {
	case entities.QuestionFillBlank:
		return blankQuestion(2)
	case entities.QuestionMCSingle, entities.QuestionMCMulti:
		return choiceQuestion(t)
	default:
		return &entities.Question{ID: 5, Text: "Q", Type: t}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		answer Answer
	}{
		{name: "single choice", answer: SingleChoice{OptionID: 11, Chosen: true}},
		{name: "multi choice", answer: MultiChoice{OptionIDs: []int64{10, 12}}},
		{name: "true", answer: TrueFalse{Value: true, Chosen: true}},
		{name: "false", answer: TrueFalse{Value: false, Chosen: true}},
		{name: "fill blank", answer: FillBlank{Values: []string{"Paris", "Madrid"}}},
		{name: "open text", answer: OpenText{Text: "Because water boils at 100C."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := questionFor(tt.answer.Type())

			payload, err := Encode(q, tt.answer)
			require.NoError(t, err)

			decoded, err := Decode(payload)
			require.NoError(t, err)
			assert.Equal(t, tt.answer, decoded)

			// Through the wire as well.
			raw, err := json.Marshal(payload)
			require.NoError(t, err)
			parsed, err := Unmarshal(q.Type, raw)
			require.NoError(t, err)
			assert.Equal(t, payload, parsed)
		})
	}
}

func TestEncodeWireShape(t *testing.T) {
	tests := []struct {
		name   string
		q      *entities.Question
		answer Answer
		want   string
	}{
		{
			name:   "single choice",
			q:      choiceQuestion(entities.QuestionMCSingle),
			answer: SingleChoice{OptionID: 11, Chosen: true},
			want:   `{"selectedOptionId":11}`,
		},
		{
			name:   "multi choice is deduplicated and ordered",
			q:      choiceQuestion(entities.QuestionMCMulti),
			answer: MultiChoice{OptionIDs: []int64{12, 10, 12}},
			want:   `{"selectedOptionIds":[10,12]}`,
		},
		{
			name:   "true false",
			q:      questionFor(entities.QuestionTrueFalse),
			answer: TrueFalse{Value: false, Chosen: true},
			want:   `{"isTrue":false}`,
		},
		{
			name:   "fill blank keeps declared order",
			q:      blankQuestion(2),
			answer: FillBlank{Values: []string{"Paris", "Madrid"}},
			want:   `{"answers":["Paris","Madrid"]}`,
		},
		{
			name:   "open text is trimmed",
			q:      questionFor(entities.QuestionOpenManual),
			answer: OpenText{Text: "  essay  "},
			want:   `{"text":"essay"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Encode(tt.q, tt.answer)
			require.NoError(t, err)

			raw, err := json.Marshal(payload)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestMultiChoiceIsOrderIndependent(t *testing.T) {
	q := choiceQuestion(entities.QuestionMCMulti)

	a, err := Encode(q, MultiChoice{OptionIDs: []int64{12, 10}})
	require.NoError(t, err)
	b, err := Encode(q, MultiChoice{OptionIDs: []int64{10, 12, 10}})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestEncodeIncomplete(t *testing.T) {
	tests := []struct {
		name   string
		q      *entities.Question
		answer Answer
	}{
		{name: "nothing at all", q: choiceQuestion(entities.QuestionMCSingle), answer: nil},
		{name: "single not chosen", q: choiceQuestion(entities.QuestionMCSingle), answer: SingleChoice{}},
		{name: "multi empty", q: choiceQuestion(entities.QuestionMCMulti), answer: MultiChoice{}},
		{name: "tf not chosen", q: questionFor(entities.QuestionTrueFalse), answer: TrueFalse{}},
		{name: "second blank empty", q: blankQuestion(2), answer: FillBlank{Values: []string{"Paris", ""}}},
		{name: "blank whitespace", q: blankQuestion(2), answer: FillBlank{Values: []string{"Paris", "   "}}},
		{name: "missing blank", q: blankQuestion(2), answer: FillBlank{Values: []string{"Paris"}}},
		{name: "open empty", q: questionFor(entities.QuestionOpenManual), answer: OpenText{Text: ""}},
		{name: "open whitespace", q: questionFor(entities.QuestionOpenManual), answer: OpenText{Text: " \n\t "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Encode(tt.q, tt.answer)
			require.Error(t, err)
			assert.Nil(t, payload)
			assert.ErrorIs(t, err, ErrIncomplete)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.q.ID, verr.QuestionID)
		})
	}
}

func TestEncodeRejectsForeignInput(t *testing.T) {
	_, err := Encode(choiceQuestion(entities.QuestionMCSingle), SingleChoice{OptionID: 99, Chosen: true})
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = Encode(choiceQuestion(entities.QuestionMCMulti), MultiChoice{OptionIDs: []int64{10, 99}})
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = Encode(choiceQuestion(entities.QuestionMCSingle), TrueFalse{Value: true, Chosen: true})
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = Encode(&entities.Question{ID: 1, Type: "MATCHING"}, OpenText{Text: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestEveryQuestionTypeHasACodec(t *testing.T) {
	for _, qt := range entities.QuestionTypes {
		t.Run(string(qt), func(t *testing.T) {
			q := questionFor(qt)

			empty, err := Empty(q)
			require.NoError(t, err)
			assert.Equal(t, qt, empty.Type())

			_, err = Unmarshal(qt, []byte(`{}`))
			require.NoError(t, err)
		})
	}
}

func TestFillBlankScenario(t *testing.T) {
	q := blankQuestion(2)

	_, err := Encode(q, FillBlank{Values: []string{"Paris", ""}})
	require.ErrorIs(t, err, ErrIncomplete)

	payload, err := Encode(q, FillBlank{Values: []string{"Paris", "Madrid"}})
	require.NoError(t, err)
	assert.Equal(t, FillBlankPayload{Answers: []string{"Paris", "Madrid"}}, payload)
}
