package editor

import (
	"context"
	"sync"
	"time"

	"quiz-funnels/internal/common/clock"
	"quiz-funnels/internal/common/logger"
	"quiz-funnels/internal/common/metrics"
	"quiz-funnels/internal/models"
)

// SaveFunc persists one funnel data snapshot.
type SaveFunc func(ctx context.Context, data models.FunnelData) error

// SaveStatus is the persistence state shown to the creator.
type SaveStatus struct {
	Pending     bool       `json:"pending"`
	Saving      bool       `json:"saving"`
	Saves       int        `json:"saves"`
	LastSavedAt *time.Time `json:"lastSavedAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}

// Autosaver debounces saves of one funnel. It holds a single pending
// snapshot: a new Schedule replaces a snapshot that has not started saving
// and restarts the quiet period. At most one save runs at a time; a snapshot
// that comes due during a save is written as soon as that save returns.
type Autosaver struct {
	clock clock.Clock
	delay time.Duration
	save  SaveFunc
	log   logger.Logger

	mu         sync.Mutex
	timer      clock.Timer
	generation uint64
	pending    *models.FunnelData
	due        bool
	inFlight   bool
	done       chan struct{}
	status     SaveStatus
}

func NewAutosaver(clk clock.Clock, delay time.Duration, save SaveFunc, log logger.Logger) *Autosaver {
	return &Autosaver{
		clock: clk,
		delay: delay,
		save:  save,
		log:   log,
	}
}

// Schedule queues data to be saved once the quiet period elapses.
func (a *Autosaver) Schedule(data models.FunnelData) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.generation++
	gen := a.generation
	a.pending = &data
	a.due = false
	a.timer = a.clock.AfterFunc(a.delay, func() { a.fire(gen) })
}

func (a *Autosaver) fire(gen uint64) {
	a.mu.Lock()
	if gen != a.generation || a.pending == nil {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	if a.inFlight {
		a.due = true
		a.mu.Unlock()
		return
	}
	data := a.takeLocked()
	a.mu.Unlock()

	for data != nil {
		a.run(context.Background(), *data)

		a.mu.Lock()
		data = nil
		if a.due && a.pending != nil {
			data = a.takeLocked()
		}
		a.mu.Unlock()
	}
}

// takeLocked moves the pending snapshot into flight.
func (a *Autosaver) takeLocked() *models.FunnelData {
	data := a.pending
	a.pending = nil
	a.due = false
	a.inFlight = true
	a.done = make(chan struct{})
	return data
}

func (a *Autosaver) run(ctx context.Context, data models.FunnelData) error {
	err := a.save(ctx, data)
	metrics.Autosaves.WithLabelValues(metrics.StatusOf(err)).Inc()

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		a.status.LastError = err.Error()
		a.log.WithError(err).Warn("Autosave failed", nil)
	} else {
		now := a.clock.Now()
		a.status.Saves++
		a.status.LastSavedAt = &now
		a.status.LastError = ""
	}
	a.inFlight = false
	close(a.done)
	return err
}

// Flush cancels the quiet period and writes the pending snapshot now, after
// any save already in flight. It returns the error of the last save it ran
// itself.
func (a *Autosaver) Flush(ctx context.Context) error {
	var err error
	for {
		a.mu.Lock()
		if a.inFlight {
			done := a.done
			a.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if a.timer != nil {
			a.timer.Stop()
			a.timer = nil
		}
		if a.pending == nil {
			a.mu.Unlock()
			return err
		}
		a.generation++
		data := a.takeLocked()
		a.mu.Unlock()

		err = a.run(ctx, *data)
	}
}

// Status returns a copy of the current save state.
func (a *Autosaver) Status() SaveStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.status
	st.Pending = a.pending != nil
	st.Saving = a.inFlight
	if st.LastSavedAt != nil {
		t := *st.LastSavedAt
		st.LastSavedAt = &t
	}
	return st
}
