// internal/models/validate.go
package models

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "quiz-funnels/internal/common/errors"
)

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidColor reports whether v is a #rgb or #rrggbb colour.
func ValidColor(v string) bool {
	return colorPattern.MatchString(v)
}

// NewInvalidColorError reports a colour field that is not #rgb or #rrggbb.
func NewInvalidColorError(field, value string) error {
	return apperrors.NewValidationError("Colors must look like #rgb or #rrggbb", fmt.Sprintf("%s: %q", field, value))
}

// Validate checks a complete question: a non-blank title, a known type and
// 1..MaxAnswers non-blank answers.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Title) == "" {
		return apperrors.NewValidationError("Question title cannot be empty", q.ID)
	}
	if !q.Type.Valid() {
		return apperrors.NewValidationError("Unknown question type", string(q.Type))
	}
	if len(q.Answers) == 0 {
		return apperrors.NewValidationError("At least one answer option is required", q.ID)
	}
	if len(q.Answers) > MaxAnswers {
		return apperrors.NewValidationError(
			fmt.Sprintf("A question can have at most %d answers", MaxAnswers),
			fmt.Sprintf("answers: %d", len(q.Answers)),
		)
	}
	for i, a := range q.Answers {
		if strings.TrimSpace(a.Text) == "" {
			return apperrors.NewValidationError("Answer text cannot be empty", fmt.Sprintf("%s: answer %d", q.ID, i))
		}
	}
	return nil
}

// Validate checks the whole funnel payload: the question ceiling, unique
// non-empty question ids, every question and the four colours.
func (d FunnelData) Validate() error {
	if n := len(d.Questions); n > MaxQuestions {
		return apperrors.NewLimitExceededError(0, n, MaxQuestions)
	}

	seen := make(map[string]bool, len(d.Questions))
	for i, q := range d.Questions {
		if q.ID == "" {
			return apperrors.NewValidationError("Question id cannot be empty", fmt.Sprintf("question %d", i))
		}
		if seen[q.ID] {
			return apperrors.NewValidationError("Question ids must be unique", q.ID)
		}
		seen[q.ID] = true
		if err := q.Validate(); err != nil {
			return err
		}
	}

	for _, c := range d.colors() {
		if !ValidColor(c.value) {
			return NewInvalidColorError(c.field, c.value)
		}
	}
	return nil
}

type colorField struct {
	field string
	value string
}

func (d FunnelData) colors() []colorField {
	return []colorField{
		{"primaryColor", d.PrimaryColor},
		{"buttonColor", d.ButtonColor},
		{"backgroundColor", d.BackgroundColor},
		{"textColor", d.TextColor},
	}
}
