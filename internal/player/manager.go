// Package player runs quiz sessions for visitors: question progression, the
// answer animation lock and the final redirect.
package player

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-funnels/internal/common/clock"
	apperrors "quiz-funnels/internal/common/errors"
	"quiz-funnels/internal/common/logger"
	"quiz-funnels/internal/common/metrics"
)

type Config struct {
	AnswerDelay    time.Duration
	PlaceholderURL string
	IdleTimeout    time.Duration
}

// Manager owns the live player sessions.
type Manager struct {
	loader FunnelLoader
	clock  clock.Clock
	cfg    Config
	log    logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg Config, loader FunnelLoader, clk clock.Clock, log logger.Logger) *Manager {
	if cfg.AnswerDelay < 0 {
		cfg.AnswerDelay = 0
	}
	if cfg.PlaceholderURL == "" {
		cfg.PlaceholderURL = DefaultPlaceholderURL
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Hour
	}
	return &Manager{
		loader:   loader,
		clock:    clk,
		cfg:      cfg,
		log:      log.WithFields(map[string]interface{}{"component": "player"}),
		sessions: make(map[string]*Session),
	}
}

// Start creates a session for funnelID and loads it. The session is kept
// whatever state loading ends in, so the visitor can read the message.
func (m *Manager) Start(ctx context.Context, funnelID string) *Session {
	session := newSession(uuid.New().String(), funnelID, m.clock, m.cfg.AnswerDelay, m.cfg.PlaceholderURL)
	state := session.Load(ctx, m.loader)

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()
	metrics.PlayerSessionsActive.Inc()

	m.log.Debug("Player session started", map[string]interface{}{
		"session_id": session.ID(),
		"funnel_id":  funnelID,
		"state":      string(state),
	})
	return session
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Player session", id)
	}
	return session, nil
}

// Sweep drops sessions idle for longer than the idle timeout.
func (m *Manager) Sweep() int {
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
		session.stop()
		metrics.PlayerSessionsActive.Dec()
	}
	return len(idle)
}

// Shutdown drops every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range all {
		session.stop()
		metrics.PlayerSessionsActive.Dec()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
