package analytics

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testMonitor(notifier Notifier) *Monitor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMonitor(5*time.Minute, 10, logger, notifier)
}

func TestMonitor_StaysNormalBelowThreshold(t *testing.T) {
	m := testMonitor(nil)
	now := time.Now()

	for i := 0; i < 9; i++ {
		m.Observe(now.Add(time.Duration(i) * time.Second))
	}

	assert.Equal(t, StateNormal, m.State(now.Add(time.Minute)))
}

func TestMonitor_AlertsAboveThreshold(t *testing.T) {
	var transitions []State
	m := testMonitor(NotifierFunc(func(state State, count int) {
		transitions = append(transitions, state)
	}))
	now := time.Now()

	for i := 0; i < 11; i++ {
		m.Observe(now.Add(time.Duration(i) * time.Second))
	}

	assert.Equal(t, StateAlerting, m.State(now.Add(time.Minute)))
	assert.Equal(t, []State{StateAlerting}, transitions)
}

func TestMonitor_ExactThresholdIsNormal(t *testing.T) {
	m := testMonitor(nil)
	now := time.Now()

	for i := 0; i < 10; i++ {
		m.Observe(now)
	}

	assert.Equal(t, StateNormal, m.State(now))
}

func TestMonitor_RecoversWhenWindowDrains(t *testing.T) {
	var transitions []State
	m := testMonitor(NotifierFunc(func(state State, count int) {
		transitions = append(transitions, state)
	}))
	now := time.Now()

	m.ObserveN(now, 11)
	assert.Equal(t, StateAlerting, m.State(now))

	// Once the burst falls out of the window the alert clears without
	// requiring any further traffic.
	assert.Equal(t, StateNormal, m.State(now.Add(6*time.Minute)))
	assert.Equal(t, []State{StateAlerting, StateNormal}, transitions)
}

func TestMonitor_NoEventsMeansNormal(t *testing.T) {
	m := testMonitor(nil)

	assert.Equal(t, StateNormal, m.State(time.Now()))
}

func TestMonitor_OldEventsExpire(t *testing.T) {
	m := testMonitor(nil)
	now := time.Now()

	m.ObserveN(now.Add(-10*time.Minute), 11)

	assert.Equal(t, StateNormal, m.State(now))
}
