package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quiz-funnels/internal/common/clock"
	apperrors "quiz-funnels/internal/common/errors"
	"quiz-funnels/internal/common/metrics"
	"quiz-funnels/internal/models"
)

// State is the phase of a visitor's quiz.
type State string

const (
	StateLoading    State = "loading"
	StateError      State = "error"
	StateNotReady   State = "notReady"
	StatePlaying    State = "playing"
	StateAnswering  State = "answering"
	StateRedirected State = "redirected"
)

const (
	msgNotFound   = "Funnel not found! Please check the link or contact the funnel creator."
	msgLoadFailed = "Failed to load quiz. Please try again later."
	msgNotReady   = "This funnel has fewer than the required 6 questions. Please contact the funnel creator."
)

// FunnelLoader fetches the funnel a visitor plays.
type FunnelLoader interface {
	Get(ctx context.Context, id string) (*models.Funnel, error)
}

// Theme carries the funnel colours for rendering.
type Theme struct {
	PrimaryColor    string `json:"primaryColor"`
	ButtonColor     string `json:"buttonColor"`
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	SessionID      string           `json:"sessionId"`
	FunnelID       string           `json:"funnelId"`
	State          State            `json:"state"`
	Message        string           `json:"message,omitempty"`
	QuestionIndex  int              `json:"questionIndex"`
	TotalQuestions int              `json:"totalQuestions"`
	Progress       float64          `json:"progress"`
	Question       *models.Question `json:"question,omitempty"`
	SelectedAnswer *int             `json:"selectedAnswer,omitempty"`
	RedirectURL    string           `json:"redirectUrl,omitempty"`
	Theme          *Theme           `json:"theme,omitempty"`
}

// Session is one visitor playing one funnel.
type Session struct {
	id          string
	funnelID    string
	clock       clock.Clock
	delay       time.Duration
	placeholder string

	mu         sync.Mutex
	state      State
	message    string
	data       models.FunnelData
	index      int
	selected   int
	redirect   string
	timer      clock.Timer
	lastActive time.Time
}

func newSession(id, funnelID string, clk clock.Clock, delay time.Duration, placeholder string) *Session {
	return &Session{
		id:          id,
		funnelID:    funnelID,
		clock:       clk,
		delay:       delay,
		placeholder: placeholder,
		state:       StateLoading,
		selected:    -1,
		lastActive:  clk.Now(),
	}
}

func (s *Session) ID() string { return s.id }

// Load fetches the funnel and settles the session in error, notReady or
// playing.
func (s *Session) Load(ctx context.Context, loader FunnelLoader) State {
	funnel, err := loader.Get(ctx, s.funnelID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = s.clock.Now()
	switch {
	case apperrors.HasCode(err, apperrors.ErrCodeNotFound):
		s.state, s.message = StateError, msgNotFound
	case err != nil:
		s.state, s.message = StateError, msgLoadFailed
	case len(funnel.Data.Questions) != models.MaxQuestions:
		s.data = funnel.Data.Clone()
		s.state, s.message = StateNotReady, msgNotReady
	default:
		s.data = funnel.Data.Clone()
		s.state = StatePlaying
		s.index = 0
	}
	return s.state
}

// Answer registers a click on answer i of the current question. Clicks
// arriving while the previous one is still animating are ignored and
// reported as not accepted. The chosen answer does not affect progression.
func (s *Session) Answer(i int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = s.clock.Now()
	if s.state == StateAnswering {
		return false, nil
	}
	if s.state != StatePlaying {
		return false, apperrors.NewInvalidStateError("The quiz is not accepting answers", string(s.state))
	}
	answers := s.data.Questions[s.index].Answers
	if i < 0 || i >= len(answers) {
		return false, apperrors.NewValidationError("Answer does not exist", fmt.Sprintf("index: %d", i))
	}

	s.state = StateAnswering
	s.selected = i
	s.timer = s.clock.AfterFunc(s.delay, s.advance)
	metrics.QuizAnswers.Inc()
	return true, nil
}

func (s *Session) advance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAnswering {
		return
	}
	s.timer = nil
	s.selected = -1

	if s.index == len(s.data.Questions)-1 {
		s.redirect = BuildRedirectURL(s.data.FinalRedirectLink, s.data.Tracking, s.placeholder)
		s.state = StateRedirected
		metrics.QuizRedirects.Inc()
		return
	}
	s.index++
	s.state = StatePlaying
}

// RedirectURL returns the final destination once the quiz is finished.
func (s *Session) RedirectURL() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRedirected {
		return "", apperrors.NewInvalidStateError("The quiz is not finished yet", string(s.state))
	}
	return s.redirect, nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID: s.id,
		FunnelID:  s.funnelID,
		State:     s.state,
		Message:   s.message,
	}
	if s.state == StateLoading || s.state == StateError {
		return snap
	}

	snap.Theme = &Theme{
		PrimaryColor:    s.data.PrimaryColor,
		ButtonColor:     s.data.ButtonColor,
		BackgroundColor: s.data.BackgroundColor,
		TextColor:       s.data.TextColor,
	}
	snap.TotalQuestions = len(s.data.Questions)
	if s.state == StateNotReady {
		return snap
	}

	snap.QuestionIndex = s.index
	snap.Progress = float64(s.index+1) / float64(snap.TotalQuestions)
	q := s.data.Questions[s.index].Clone()
	snap.Question = &q
	if s.selected >= 0 {
		sel := s.selected
		snap.SelectedAnswer = &sel
	}
	snap.RedirectURL = s.redirect
	return snap
}

// stop cancels a pending answer delay.
func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
