package entities

// QuestionType is the declared type of a quiz question.
type QuestionType string

const (
	QuestionMCSingle   QuestionType = "MC_SINGLE"
	QuestionMCMulti    QuestionType = "MC_MULTI"
	QuestionTrueFalse  QuestionType = "TF"
	QuestionFillBlank  QuestionType = "FILL_BLANK"
	QuestionOpenManual QuestionType = "OPEN_MANUAL"
)

// QuestionTypes lists every supported question type.
var QuestionTypes = []QuestionType{
	QuestionMCSingle,
	QuestionMCMulti,
	QuestionTrueFalse,
	QuestionFillBlank,
	QuestionOpenManual,
}

// Valid reports whether t is one of the supported question types.
func (t QuestionType) Valid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsChoice reports whether questions of this type carry options.
func (t QuestionType) IsChoice() bool {
	return t == QuestionMCSingle || t == QuestionMCMulti
}

// Option is one selectable answer of a choice question.
// It never says whether it is correct.
type Option struct {
	ID   int64
	Text string
}

// Blank is one fill-in slot of a FILL_BLANK question.
type Blank struct {
	ID       int64
	Position int // zero-based position in declared order
}

// Question is the attempt-scoped projection of a quiz question.
// It is what the student sees while an attempt is open, so it has no
// correctness data at all.
type Question struct {
	ID      int64
	Text    string
	Type    QuestionType
	Order   int
	Options []Option // MC_SINGLE, MC_MULTI
	Blanks  []Blank  // FILL_BLANK, in declared order
}

// HasOption reports whether the question offers an option with the given id.
func (q *Question) HasOption(id int64) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}
