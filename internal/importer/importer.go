// Package importer validates uploaded question files before they are merged
// into a funnel.
package importer

import (
	"encoding/json"
	"mime"
	"strings"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	apperrors "quiz-funnels/internal/common/errors"
	"quiz-funnels/internal/models"
)

// MediaTypeJSON is the only accepted upload type.
const MediaTypeJSON = "application/json"

const questionListSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["title", "answers"],
		"properties": {
			"id": {"type": "string"},
			"title": {"type": "string", "pattern": "\\S"},
			"type": {"enum": ["single-choice", "text-input"]},
			"answers": {
				"type": "array",
				"minItems": 1,
				"maxItems": 4,
				"items": {
					"type": "object",
					"required": ["text"],
					"properties": {
						"id": {"type": "string"},
						"text": {"type": "string", "pattern": "\\S"}
					}
				}
			}
		}
	}
}`

var schema = mustCompile(questionListSchema)

func mustCompile(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(err)
	}
	return s
}

// CheckMediaType rejects uploads that are not declared as JSON.
func CheckMediaType(contentType string) error {
	if strings.TrimSpace(contentType) == "" {
		return apperrors.NewFormatError("Please upload a JSON file", "missing content type")
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return apperrors.NewFormatError("Please upload a JSON file", err.Error())
	}
	if mediaType != MediaTypeJSON {
		return apperrors.NewFormatError("Please upload a JSON file", "content type: "+mediaType)
	}
	return nil
}

// Validate parses raw as a list of question records and returns them
// normalized: every question gets a fresh id, answers keep a non-empty id or
// get a fresh one, and a missing type becomes single-choice.
func Validate(raw []byte) ([]models.Question, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.NewFormatError("Could not parse the file as JSON", err.Error())
	}
	if _, ok := doc.([]interface{}); !ok {
		return nil, apperrors.NewFormatError("The file must contain a list of questions", "")
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, apperrors.NewFormatError("The question list could not be validated", err.Error())
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, apperrors.NewFormatError(
			"Every question needs a title and one to four answers with text",
			strings.Join(errs, "; "),
		)
	}

	var records []models.Question
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, apperrors.NewFormatError("Could not parse the file as JSON", err.Error())
	}

	questions := make([]models.Question, 0, len(records))
	for _, rec := range records {
		q := models.Question{
			ID:      uuid.New().String(),
			Title:   rec.Title,
			Type:    rec.Type,
			Answers: make([]models.Answer, 0, len(rec.Answers)),
		}
		if q.Type == "" {
			q.Type = models.QuestionTypeSingleChoice
		}
		for _, a := range rec.Answers {
			if a.ID == "" {
				a.ID = uuid.New().String()
			}
			q.Answers = append(q.Answers, a)
		}
		questions = append(questions, q)
	}
	return questions, nil
}
