package editor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-funnels/internal/common/clock"
	apperrors "quiz-funnels/internal/common/errors"
	"quiz-funnels/internal/importer"
	"quiz-funnels/internal/models"
)

const noSelection = -1

// QuestionDraft is the content of the question form when it is saved.
type QuestionDraft struct {
	Title   string              `json:"title"`
	Type    models.QuestionType `json:"type"`
	Answers []models.Answer     `json:"answers"`
}

// LinksPatch updates the link settings. Nil fields are left as they are.
type LinksPatch struct {
	FinalRedirectLink *string `json:"finalRedirectLink"`
	Tracking          *string `json:"tracking"`
	ConversionGoal    *string `json:"conversionGoal"`
}

// ColorsPatch updates the colour scheme. Nil fields are left as they are.
type ColorsPatch struct {
	PrimaryColor    *string `json:"primaryColor"`
	ButtonColor     *string `json:"buttonColor"`
	BackgroundColor *string `json:"backgroundColor"`
	TextColor       *string `json:"textColor"`
}

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	SessionID             string            `json:"sessionId"`
	FunnelID              string            `json:"funnelId"`
	FunnelName            string            `json:"funnelName"`
	View                  View              `json:"view"`
	SelectedQuestionIndex *int              `json:"selectedQuestionIndex"`
	Data                  models.FunnelData `json:"data"`
	Save                  SaveStatus        `json:"save"`
}

// Session is one open editor of one funnel. All methods are safe for
// concurrent use.
type Session struct {
	id       string
	funnelID string
	clock    clock.Clock
	saver    *Autosaver

	mu         sync.Mutex
	name       string
	data       models.FunnelData
	view       View
	selected   int
	lastActive time.Time
	closed     bool
}

func newSession(id string, funnel models.Funnel, clk clock.Clock, saver *Autosaver) *Session {
	return &Session{
		id:         id,
		funnelID:   funnel.ID,
		clock:      clk,
		saver:      saver,
		name:       funnel.Name,
		data:       funnel.Data.Clone(),
		view:       ViewMainDashboard,
		selected:   noSelection,
		lastActive: clk.Now(),
	}
}

func (s *Session) ID() string       { return s.id }
func (s *Session) FunnelID() string { return s.funnelID }

// Navigate switches to view. The question form can only be entered through
// AddQuestion or EditQuestion.
func (s *Session) Navigate(view View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.beginLocked(); err != nil {
		return err
	}
	if !view.Valid() {
		return apperrors.NewValidationError("Unknown view", string(view))
	}
	if view == ViewQuestionForm {
		return apperrors.NewInvalidStateError("The question form is opened by adding or editing a question", "")
	}
	s.view = view
	s.selected = noSelection
	return nil
}

// AddQuestion appends a placeholder question and opens it in the form.
func (s *Session) AddQuestion() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.beginLocked(); err != nil {
		return noSelection, err
	}
	n := len(s.data.Questions)
	if n >= models.MaxQuestions {
		return noSelection, apperrors.NewLimitExceededError(n, 1, models.MaxQuestions)
	}

	q := models.Question{
		ID:      uuid.New().String(),
		Title:   fmt.Sprintf("New Question %d", n+1),
		Type:    models.QuestionTypeSingleChoice,
		Answers: make([]models.Answer, 0, models.MaxAnswers),
	}
	for _, label := range []string{"A", "B", "C", "D"} {
		q.Answers = append(q.Answers, models.Answer{ID: uuid.New().String(), Text: "Option " + label})
	}
	s.data.Questions = append(s.data.Questions, q)
	s.selected = n
	s.view = ViewQuestionForm
	s.changedLocked()
	return n, nil
}

// EditQuestion opens question i in the form.
func (s *Session) EditQuestion(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.beginLocked(); err != nil {
		return err
	}
	if i < 0 || i >= len(s.data.Questions) {
		return apperrors.NewValidationError("Question does not exist", fmt.Sprintf("index: %d", i))
	}
	s.selected = i
	s.view = ViewQuestionForm
	return nil
}

// SaveQuestion stores the form content into the selected question, or
// appends it when nothing is selected, and returns to the question list.
func (s *Session) SaveQuestion(draft QuestionDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.beginLocked(); err != nil {
		return err
	}
	if draft.Type == "" {
		draft.Type = models.QuestionTypeSingleChoice
	}

	answers := make([]models.Answer, 0, len(draft.Answers))
	for _, a := range draft.Answers {
		if strings.TrimSpace(a.Text) == "" {
			continue
		}
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		answers = append(answers, a)
	}

	q := models.Question{Title: draft.Title, Type: draft.Type, Answers: answers}
	if err := q.Validate(); err != nil {
		return err
	}
	if s.selected != noSelection {
		q.ID = s.data.Questions[s.selected].ID
		s.data.Questions[s.selected] = q
	} else {
		n := len(s.data.Questions)
		if n >= models.MaxQuestions {
			return apperrors.NewLimitExceededError(n, 1, models.MaxQuestions)
		}
		q.ID = uuid.New().String()
		s.data.Questions = append(s.data.Questions, q)
	}

	s.selected = noSelection
	s.view = ViewQuizList
	s.changedLocked()
	return nil
}

// CancelQuestion leaves the form without saving.
func (s *Session) CancelQuestion() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.beginLocked(); err != nil {
		return err
	}
	s.selected = noSelection
	s.view = ViewQuizList
	return nil
}

// DeleteQuestion removes the selected question. It must be confirmed.
func (s *Session) DeleteQuestion(confirmed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.beginLocked(); err != nil {
		return err
	}
	if !confirmed {
		return apperrors.NewConfirmationRequiredError("Deleting a question")
	}
	if s.selected == noSelection {
		return apperrors.NewInvalidStateError("No question is selected", "")
	}

	s.data.Questions = append(s.data.Questions[:s.selected], s.data.Questions[s.selected+1:]...)
	s.selected = noSelection
	s.view = ViewQuizList
	s.changedLocked()
	return nil
}

// ImportQuestions validates an uploaded question file and appends its
// questions. Nothing is applied when the file is rejected or the funnel
// would exceed the question limit.
func (s *Session) ImportQuestions(contentType string, raw []byte) (int, error) {
	if err := importer.CheckMediaType(contentType); err != nil {
		return 0, err
	}
	questions, err := importer.Validate(raw)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.beginLocked(); err != nil {
		return 0, err
	}
	current := len(s.data.Questions)
	if current+len(questions) > models.MaxQuestions {
		return 0, apperrors.NewLimitExceededError(current, len(questions), models.MaxQuestions)
	}
	if len(questions) == 0 {
		return 0, nil
	}

	s.data.Questions = append(s.data.Questions, questions...)
	s.changedLocked()
	return len(questions), nil
}

// UpdateLinks applies a partial update of the redirect settings.
func (s *Session) UpdateLinks(patch LinksPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.beginLocked(); err != nil {
		return err
	}
	changed := apply(&s.data.FinalRedirectLink, patch.FinalRedirectLink)
	changed = apply(&s.data.Tracking, patch.Tracking) || changed
	changed = apply(&s.data.ConversionGoal, patch.ConversionGoal) || changed
	if changed {
		s.changedLocked()
	}
	return nil
}

// UpdateColors applies a partial update of the colour scheme. Every colour
// must be a #rgb or #rrggbb value; nothing is applied otherwise.
func (s *Session) UpdateColors(patch ColorsPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.beginLocked(); err != nil {
		return err
	}
	for _, c := range []struct {
		field string
		value *string
	}{
		{"primaryColor", patch.PrimaryColor},
		{"buttonColor", patch.ButtonColor},
		{"backgroundColor", patch.BackgroundColor},
		{"textColor", patch.TextColor},
	} {
		if c.value != nil && !models.ValidColor(*c.value) {
			return models.NewInvalidColorError(c.field, *c.value)
		}
	}

	changed := apply(&s.data.PrimaryColor, patch.PrimaryColor)
	changed = apply(&s.data.ButtonColor, patch.ButtonColor) || changed
	changed = apply(&s.data.BackgroundColor, patch.BackgroundColor) || changed
	changed = apply(&s.data.TextColor, patch.TextColor) || changed
	if changed {
		s.changedLocked()
	}
	return nil
}

// Snapshot returns a copy of the session state. Reading an open session
// counts as activity for the idle sweep.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.lastActive = s.clock.Now()
	}

	snap := Snapshot{
		SessionID:  s.id,
		FunnelID:   s.funnelID,
		FunnelName: s.name,
		View:       s.view,
		Data:       s.data.Clone(),
		Save:       s.saver.Status(),
	}
	if s.selected != noSelection {
		i := s.selected
		snap.SelectedQuestionIndex = &i
	}
	return snap
}

// Flush writes any pending change immediately.
func (s *Session) Flush(ctx context.Context) error {
	if err := s.touch(); err != nil {
		return err
	}
	return s.saver.Flush(ctx)
}

// Close flushes the pending change and rejects every later call.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.saver.Flush(ctx)
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginLocked()
}

func (s *Session) beginLocked() error {
	if s.closed {
		return apperrors.NewInvalidStateError("Editor session is closed", s.id)
	}
	s.lastActive = s.clock.Now()
	return nil
}

func (s *Session) changedLocked() {
	s.saver.Schedule(s.data.Clone())
}

func apply(dst *string, v *string) bool {
	if v == nil || *dst == *v {
		return false
	}
	*dst = *v
	return true
}
