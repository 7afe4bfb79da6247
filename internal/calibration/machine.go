// Package calibration implements the state machine that governs the
// progression from "not started" through device learning to calibrated
// operation.
package calibration

import (
	"sync/atomic"

	"github.com/touchmapd/touchmapd/internal/logger"
)

// State is the calibration phase of the remap pipeline.
type State int32

const (
	// NotStarted is the state at session creation.
	NotStarted State = iota
	// Learning means interception is running and the next qualifying
	// event's device will be accepted as the touch device.
	Learning
	// Calibrated means the device identity is known. Terminal until an
	// explicit reset.
	Calibrated
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Learning:
		return "learning"
	case Calibrated:
		return "calibrated"
	default:
		return "invalid"
	}
}

// Machine holds the current calibration state. Reads happen on the
// interception path for every event, so the state is kept in an atomic
// rather than behind a lock.
type Machine struct {
	state atomic.Int32
}

// NewMachine creates a machine in NotStarted.
func NewMachine() *Machine {
	return &Machine{}
}

// Current returns the current state.
func (m *Machine) Current() State {
	return State(m.state.Load())
}

// Begin moves NotStarted to Learning when the interception session
// starts. It has no effect once learning has begun or completed, so a
// watchdog-triggered session recreate keeps the calibrated identity.
func (m *Machine) Begin() {
	if m.state.CompareAndSwap(int32(NotStarted), int32(Learning)) {
		logger.Debug("Calibration entered learning phase")
	}
}

// Commit moves Learning to Calibrated on the first successful device
// learning classification.
func (m *Machine) Commit() {
	if m.state.CompareAndSwap(int32(Learning), int32(Calibrated)) {
		logger.Info("Calibration complete")
	}
}

// Reset returns the machine to Learning, not NotStarted: permission
// remains granted, only the device identity is relearned.
func (m *Machine) Reset() {
	m.state.Store(int32(Learning))
	logger.Info("Calibration reset, relearning touch device")
}
