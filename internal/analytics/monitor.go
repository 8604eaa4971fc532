package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is the anomaly monitor's current condition.
type State int

const (
	StateNormal State = iota
	StateAlerting
)

func (s State) String() string {
	switch s {
	case StateAlerting:
		return "alerting"
	default:
		return "normal"
	}
}

// Notifier receives state transitions of the monitor.
type Notifier interface {
	Notify(state State, count int)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(state State, count int)

func (f NotifierFunc) Notify(state State, count int) {
	f(state, count)
}

const (
	// DefaultWindow and DefaultThreshold match the edge alarm: more than
	// ten invalid-code warnings within five minutes raises an alert.
	DefaultWindow    = 5 * time.Minute
	DefaultThreshold = 10
)

// Monitor counts invalid short code warnings over a sliding window and
// flips between Normal and Alerting around a fixed threshold. No observed
// events means Normal: absent traffic is not evidence of a problem.
type Monitor struct {
	mu        sync.Mutex
	window    time.Duration
	threshold int
	state     State
	times     []time.Time
	notifier  Notifier
	logger    *slog.Logger
}

func NewMonitor(window time.Duration, threshold int, logger *slog.Logger, notifier Notifier) *Monitor {
	if window <= 0 {
		window = DefaultWindow
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	m := &Monitor{
		window:    window,
		threshold: threshold,
		notifier:  notifier,
		logger:    logger,
	}

	if m.notifier == nil {
		m.notifier = NotifierFunc(m.logNotify)
	}

	return m
}

// Observe records one warning at time t and re-evaluates the state.
func (m *Monitor) Observe(t time.Time) {
	m.ObserveN(t, 1)
}

// ObserveN records n warnings at time t and re-evaluates the state.
func (m *Monitor) ObserveN(t time.Time, n int) {
	if n <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < n; i++ {
		m.times = append(m.times, t)
	}

	m.evaluate(t)
}

// State returns the current state after pruning the window against now.
func (m *Monitor) State(now time.Time) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evaluate(now)

	return m.state
}

// Run re-evaluates the window periodically so an alert clears even when
// no further events arrive. It blocks until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.window / 10)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			m.State(now)
		}
	}
}

// evaluate prunes expired entries and applies the state machine.
// Callers must hold mu.
func (m *Monitor) evaluate(now time.Time) {
	cutoff := now.Add(-m.window)

	kept := m.times[:0]
	for _, t := range m.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.times = kept

	count := len(m.times)

	switch {
	case m.state == StateNormal && count > m.threshold:
		m.state = StateAlerting
		m.notifier.Notify(StateAlerting, count)
	case m.state == StateAlerting && count <= m.threshold:
		m.state = StateNormal
		m.notifier.Notify(StateNormal, count)
	}
}

func (m *Monitor) logNotify(state State, count int) {
	switch state {
	case StateAlerting:
		m.logger.Error("invalid short code rate exceeded threshold",
			slog.Int("count", count),
			slog.Int("threshold", m.threshold),
			slog.Duration("window", m.window),
		)
	default:
		m.logger.Info("invalid short code rate back to normal",
			slog.Int("count", count),
		)
	}
}
