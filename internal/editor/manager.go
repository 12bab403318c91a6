// Package editor holds the server-side state of open funnel editors: the
// enumerated views, question editing and the debounced autosave.
package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-funnels/internal/common/clock"
	apperrors "quiz-funnels/internal/common/errors"
	"quiz-funnels/internal/common/logger"
	"quiz-funnels/internal/common/metrics"
	"quiz-funnels/internal/models"
)

// FunnelStore is the part of the funnel repository an editor needs.
type FunnelStore interface {
	Get(ctx context.Context, id string) (*models.Funnel, error)
	Update(ctx context.Context, id string, data models.FunnelData) error
}

type Config struct {
	AutosaveDelay time.Duration
	IdleTimeout   time.Duration
}

// Manager owns the open editor sessions.
type Manager struct {
	funnels FunnelStore
	clock   clock.Clock
	cfg     Config
	log     logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg Config, funnels FunnelStore, clk clock.Clock, log logger.Logger) *Manager {
	if cfg.AutosaveDelay <= 0 {
		cfg.AutosaveDelay = time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	return &Manager{
		funnels:  funnels,
		clock:    clk,
		cfg:      cfg,
		log:      log.WithFields(map[string]interface{}{"component": "editor"}),
		sessions: make(map[string]*Session),
	}
}

// Open loads a funnel and starts an editor session on it.
func (m *Manager) Open(ctx context.Context, funnelID string) (*Session, error) {
	funnel, err := m.funnels.Get(ctx, funnelID)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	log := m.log.WithFields(map[string]interface{}{"session_id": id, "funnel_id": funnelID})
	saver := NewAutosaver(m.clock, m.cfg.AutosaveDelay, func(ctx context.Context, data models.FunnelData) error {
		return m.funnels.Update(ctx, funnelID, data)
	}, log)
	session := newSession(id, *funnel, m.clock, saver)

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()
	metrics.EditorSessionsActive.Inc()

	log.Info("Editor session opened", nil)
	return session, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Editor session", id)
	}
	return session, nil
}

// Close flushes and removes a session.
func (m *Manager) Close(ctx context.Context, id string) error {
	session, ok := m.remove(id)
	if !ok {
		return apperrors.NewNotFoundError("Editor session", id)
	}
	return m.closeSession(ctx, session)
}

// Sweep closes every session idle for longer than the idle timeout and
// returns how many were closed.
func (m *Manager) Sweep(ctx context.Context) int {
	cutoff := m.clock.Now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var idle []*Session
	for id, session := range m.sessions {
		if session.idleSince().Before(cutoff) {
			idle = append(idle, session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, session := range idle {
		_ = m.closeSession(ctx, session)
	}
	return len(idle)
}

// Shutdown flushes and closes every session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, session := range m.sessions {
		all = append(all, session)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, session := range all {
		if err := m.closeSession(ctx, session); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) remove(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	return session, ok
}

func (m *Manager) closeSession(ctx context.Context, session *Session) error {
	metrics.EditorSessionsActive.Dec()
	err := session.Close(ctx)
	fields := map[string]interface{}{"session_id": session.ID(), "funnel_id": session.FunnelID()}
	if err != nil {
		m.log.WithError(err).Warn("Editor session closed with unsaved changes", fields)
		return err
	}
	m.log.Info("Editor session closed", fields)
	return nil
}
