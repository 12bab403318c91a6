package player

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-funnels/internal/common/clock"
	apperrors "quiz-funnels/internal/common/errors"
	"quiz-funnels/internal/common/logger"
	"quiz-funnels/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type stubLoader struct {
	funnels map[string]models.Funnel
	err     error
}

func (l *stubLoader) Get(ctx context.Context, id string) (*models.Funnel, error) {
	if l.err != nil {
		return nil, l.err
	}
	f, ok := l.funnels[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Funnel", id)
	}
	return &f, nil
}

func createTestFunnel(id string, questions int) models.Funnel {
	data := models.DefaultFunnelData()
	data.FinalRedirectLink = "https://x.com/page"
	data.Tracking = "utm=1"
	for i := 0; i < questions; i++ {
		data.Questions = append(data.Questions, models.Question{
			ID:    fmt.Sprintf("q%d", i),
			Title: fmt.Sprintf("Question %d", i+1),
			Type:  models.QuestionTypeSingleChoice,
			Answers: []models.Answer{
				{ID: "a", Text: "A"}, {ID: "b", Text: "B"}, {ID: "c", Text: "C"}, {ID: "d", Text: "D"},
			},
		})
	}
	return models.Funnel{ID: id, Name: id, Data: data}
}

func newTestManager(t *testing.T, loader FunnelLoader) (*Manager, *clock.Manual) {
	clk := clock.NewManual(epoch)
	m := NewManager(Config{AnswerDelay: 500 * time.Millisecond, IdleTimeout: time.Hour}, loader, clk, logger.NewTestLogger(t))
	return m, clk
}

func readyLoader() *stubLoader {
	return &stubLoader{funnels: map[string]models.Funnel{
		"ready": createTestFunnel("ready", 6),
		"short": createTestFunnel("short", 5),
		"empty": createTestFunnel("empty", 0),
	}}
}

// ==========================
// Loading Tests
// ==========================

func TestSession_LoadStates(t *testing.T) {
	tests := []struct {
		name     string
		funnelID string
		loader   *stubLoader
		want     State
		message  string
	}{
		{"six questions", "ready", readyLoader(), StatePlaying, ""},
		{"five questions", "short", readyLoader(), StateNotReady, msgNotReady},
		{"no questions", "empty", readyLoader(), StateNotReady, msgNotReady},
		{"missing funnel", "gone", readyLoader(), StateError, msgNotFound},
		{"store down", "ready", &stubLoader{err: apperrors.NewStoreUnavailableError("get", errors.New("eof"))}, StateError, msgLoadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(t, tt.loader)
			s := m.Start(context.Background(), tt.funnelID)

			snap := s.Snapshot()
			assert.Equal(t, tt.want, snap.State)
			assert.Equal(t, tt.message, snap.Message)
		})
	}
}

func TestSession_NotReadyIsTerminal(t *testing.T) {
	m, clk := newTestManager(t, readyLoader())
	s := m.Start(context.Background(), "short")

	_, err := s.Answer(0)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidState))
	clk.Advance(time.Second)
	assert.Equal(t, StateNotReady, s.Snapshot().State)

	_, err = s.RedirectURL()
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidState))
}

// ==========================
// Answering Tests
// ==========================

func TestSession_AnswerAdvancesByOne(t *testing.T) {
	m, clk := newTestManager(t, readyLoader())
	s := m.Start(context.Background(), "ready")

	for i := 0; i < 5; i++ {
		accepted, err := s.Answer(i % 4)
		require.NoError(t, err)
		assert.True(t, accepted)

		snap := s.Snapshot()
		assert.Equal(t, StateAnswering, snap.State)
		require.NotNil(t, snap.SelectedAnswer)
		assert.Equal(t, i%4, *snap.SelectedAnswer)
		assert.Equal(t, i, snap.QuestionIndex)

		clk.Advance(499 * time.Millisecond)
		assert.Equal(t, i, s.Snapshot().QuestionIndex, "the answer delay has not elapsed")

		clk.Advance(time.Millisecond)
		snap = s.Snapshot()
		assert.Equal(t, StatePlaying, snap.State)
		assert.Equal(t, i+1, snap.QuestionIndex)
		assert.Nil(t, snap.SelectedAnswer)
		assert.Empty(t, snap.RedirectURL)
	}
}

func TestSession_LastAnswerRedirects(t *testing.T) {
	m, clk := newTestManager(t, readyLoader())
	s := m.Start(context.Background(), "ready")

	for i := 0; i < 6; i++ {
		_, err := s.Answer(3)
		require.NoError(t, err)
		clk.Advance(500 * time.Millisecond)
	}

	snap := s.Snapshot()
	assert.Equal(t, StateRedirected, snap.State)
	assert.Equal(t, 5, snap.QuestionIndex)
	assert.Equal(t, "https://x.com/page?utm=1", snap.RedirectURL)

	url, err := s.RedirectURL()
	require.NoError(t, err)
	assert.Equal(t, "https://x.com/page?utm=1", url)

	_, err = s.Answer(0)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidState), "redirected is terminal")
}

func TestSession_RedirectURLBeforeFinish(t *testing.T) {
	m, clk := newTestManager(t, readyLoader())
	s := m.Start(context.Background(), "ready")

	for i := 0; i < 5; i++ {
		_, err := s.Answer(0)
		require.NoError(t, err)
		clk.Advance(500 * time.Millisecond)
	}
	_, err := s.Answer(0)
	require.NoError(t, err)

	_, err = s.RedirectURL()
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidState), "not until the last delay elapses")

	clk.Advance(500 * time.Millisecond)
	_, err = s.RedirectURL()
	assert.NoError(t, err)
}

func TestSession_ClicksDuringDelayAreIgnored(t *testing.T) {
	m, clk := newTestManager(t, readyLoader())
	s := m.Start(context.Background(), "ready")

	accepted, err := s.Answer(1)
	require.NoError(t, err)
	require.True(t, accepted)

	for _, i := range []int{0, 2, 3} {
		accepted, err = s.Answer(i)
		require.NoError(t, err)
		assert.False(t, accepted)
	}
	assert.Equal(t, 1, *s.Snapshot().SelectedAnswer)

	clk.Advance(500 * time.Millisecond)
	assert.Equal(t, 1, s.Snapshot().QuestionIndex, "ignored clicks do not advance")
	assert.Equal(t, 0, clk.Pending())
}

func TestSession_AnswerOutOfRange(t *testing.T) {
	m, clk := newTestManager(t, readyLoader())
	s := m.Start(context.Background(), "ready")

	for _, i := range []int{-1, 4} {
		_, err := s.Answer(i)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
	}
	assert.Equal(t, StatePlaying, s.Snapshot().State)
	assert.Equal(t, 0, clk.Pending())
}

func TestSession_EmptyLinkUsesPlaceholder(t *testing.T) {
	f := createTestFunnel("nolink", 6)
	f.Data.FinalRedirectLink = ""
	f.Data.Tracking = " "
	m, clk := newTestManager(t, &stubLoader{funnels: map[string]models.Funnel{"nolink": f}})
	s := m.Start(context.Background(), "nolink")

	for i := 0; i < 6; i++ {
		_, err := s.Answer(0)
		require.NoError(t, err)
		clk.Advance(500 * time.Millisecond)
	}

	url, err := s.RedirectURL()
	require.NoError(t, err)
	assert.Equal(t, DefaultPlaceholderURL, url)
}

func TestSession_SnapshotProgressAndTheme(t *testing.T) {
	m, clk := newTestManager(t, readyLoader())
	s := m.Start(context.Background(), "ready")

	snap := s.Snapshot()
	assert.Equal(t, 6, snap.TotalQuestions)
	assert.InDelta(t, 1.0/6.0, snap.Progress, 1e-9)
	require.NotNil(t, snap.Question)
	assert.Equal(t, "Question 1", snap.Question.Title)
	require.NotNil(t, snap.Theme)
	assert.Equal(t, "#007bff", snap.Theme.PrimaryColor)

	_, err := s.Answer(0)
	require.NoError(t, err)
	clk.Advance(500 * time.Millisecond)
	assert.InDelta(t, 2.0/6.0, s.Snapshot().Progress, 1e-9)
}

// ==========================
// Manager Tests
// ==========================

func TestManager_GetAndSweep(t *testing.T) {
	m, clk := newTestManager(t, readyLoader())
	ctx := context.Background()

	old := m.Start(ctx, "ready")
	_, err := old.Answer(0)
	require.NoError(t, err)

	clk.Advance(45 * time.Minute)
	fresh := m.Start(ctx, "ready")
	clk.Advance(30 * time.Minute)

	got, err := m.Get(fresh.ID())
	require.NoError(t, err)
	assert.Same(t, fresh, got)

	assert.Equal(t, 1, m.Sweep())
	_, err = m.Get(old.ID())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	assert.Equal(t, 1, m.Len())

	m.Shutdown()
	assert.Equal(t, 0, m.Len())
}

func TestManager_ShutdownStopsPendingDelay(t *testing.T) {
	m, clk := newTestManager(t, readyLoader())
	s := m.Start(context.Background(), "ready")

	_, err := s.Answer(0)
	require.NoError(t, err)
	require.Equal(t, 1, clk.Pending())

	m.Shutdown()
	assert.Equal(t, 0, clk.Pending())
	assert.Equal(t, StateAnswering, s.Snapshot().State)
}
