package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-funnels/internal/common/clock"
	apperrors "quiz-funnels/internal/common/errors"
	"quiz-funnels/internal/common/logger"
	"quiz-funnels/internal/models"
)

func newTestManager(t *testing.T) (*Manager, *fakeFunnels, *clock.Manual) {
	clk := clock.NewManual(epoch)
	store := newFakeFunnels(clk,
		models.Funnel{ID: "f1", Name: "One", Data: models.DefaultFunnelData()},
		models.Funnel{ID: "f2", Name: "Two", Data: models.DefaultFunnelData()},
	)
	m := NewManager(Config{AutosaveDelay: time.Second, IdleTimeout: 30 * time.Minute}, store, clk, logger.NewTestLogger(t))
	return m, store, clk
}

func TestManager_OpenGetClose(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.Open(ctx, "f1")
	require.NoError(t, err)

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Close(ctx, s.ID()))
	_, err = m.Get(s.ID())
	assertCode(t, err, apperrors.ErrCodeNotFound)
	assertCode(t, m.Close(ctx, s.ID()), apperrors.ErrCodeNotFound)
	assert.Equal(t, 0, m.Len())
}

func TestManager_OpenMissingFunnel(t *testing.T) {
	m, store, _ := newTestManager(t)

	_, err := m.Open(context.Background(), "nope")
	assertCode(t, err, apperrors.ErrCodeNotFound)

	store.getErr = apperrors.NewStoreUnavailableError("get", errors.New("timeout"))
	_, err = m.Open(context.Background(), "f1")
	assertCode(t, err, apperrors.ErrCodeStoreUnavailable)
	assert.Equal(t, 0, m.Len())
}

func TestManager_SweepClosesIdleSessions(t *testing.T) {
	m, store, clk := newTestManager(t)
	ctx := context.Background()

	idle, err := m.Open(ctx, "f1")
	require.NoError(t, err)
	active, err := m.Open(ctx, "f2")
	require.NoError(t, err)

	require.NoError(t, idle.UpdateLinks(LinksPatch{Tracking: strPtr("utm=idle")}))
	require.NoError(t, idle.Flush(ctx))

	clk.Advance(20 * time.Minute)
	require.NoError(t, active.Navigate(ViewQuizList))
	clk.Advance(15 * time.Minute)

	assert.Equal(t, 1, m.Sweep(ctx))
	_, err = m.Get(idle.ID())
	assertCode(t, err, apperrors.ErrCodeNotFound)
	_, err = m.Get(active.ID())
	assert.NoError(t, err)
	assert.Equal(t, 1, store.savedCount())
}

func TestManager_SweepKeepsPolledSessions(t *testing.T) {
	m, _, clk := newTestManager(t)
	ctx := context.Background()

	polled, err := m.Open(ctx, "f1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		clk.Advance(20 * time.Minute)
		polled.Snapshot()
		assert.Equal(t, 0, m.Sweep(ctx))
	}

	clk.Advance(31 * time.Minute)
	assert.Equal(t, 1, m.Sweep(ctx))
}

func TestManager_ShutdownFlushesEverySession(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	for _, id := range []string{"f1", "f2"} {
		s, err := m.Open(ctx, id)
		require.NoError(t, err)
		require.NoError(t, s.UpdateLinks(LinksPatch{FinalRedirectLink: strPtr("https://" + id + ".example.com")}))
	}

	require.NoError(t, m.Shutdown(ctx))
	assert.Equal(t, 2, store.savedCount())
	assert.Equal(t, 0, m.Len())

	f1, err := store.Get(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "https://f1.example.com", f1.Data.FinalRedirectLink)
}

func TestManager_ShutdownReportsFailedFlush(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.Open(ctx, "f1")
	require.NoError(t, err)
	require.NoError(t, s.UpdateLinks(LinksPatch{Tracking: strPtr("x")}))

	store.failWith = errors.New("store down")
	assert.Error(t, m.Shutdown(ctx))
}
