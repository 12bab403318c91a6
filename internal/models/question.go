// internal/models/question.go
package models

// QuestionType is how a question collects its answer.
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "single-choice"
	QuestionTypeTextInput    QuestionType = "text-input"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeSingleChoice, QuestionTypeTextInput:
		return true
	}
	return false
}

type Question struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Type    QuestionType `json:"type"`
	Answers []Answer     `json:"answers"`
}

type Answer struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (q Question) Clone() Question {
	out := q
	out.Answers = append([]Answer(nil), q.Answers...)
	if out.Answers == nil {
		out.Answers = []Answer{}
	}
	return out
}
