// Package permission gates interception on the OS-level input access
// the daemon needs. There is no push notification when access is
// granted, so the coordinator polls the gate; polling is load-bearing,
// not a fallback.
package permission

import (
	"errors"
	"sync"

	"github.com/touchmapd/touchmapd/internal/logger"
)

// ErrNotGranted is returned by operations that require interception
// access before the gate has observed it.
var ErrNotGranted = errors.New("input access not granted")

// DefaultPollInterval is the contract's minimum re-check cadence while
// waiting for access.
const DefaultPollInterval = 2 // seconds

// Status is the gate's view of the permission.
type Status int

const (
	// StatusUnknown: access has not been probed yet.
	StatusUnknown Status = iota
	// StatusWaiting: the one-time request was issued, access has not
	// appeared yet.
	StatusWaiting
	// StatusGranted: access observed. The gate never reverts on its
	// own; a runtime revocation shows up as a silent tap, which the
	// watchdog owns.
	StatusGranted
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusGranted:
		return "granted"
	default:
		return "unknown"
	}
}

// TrustChecker is the gate's only dependency: probe access and, once,
// ask the OS for it (which may surface a prompt or instructions).
type TrustChecker interface {
	IsTrusted() bool
	RequestTrust()
}

// Gate tracks permission status across polls.
type Gate struct {
	mu      sync.Mutex
	status  Status
	checker TrustChecker
}

// NewGate creates a gate in StatusUnknown.
func NewGate(checker TrustChecker) *Gate {
	return &Gate{checker: checker}
}

// Check probes the current access state. On the first call without
// access it issues the one-time trust request and moves to waiting.
func (g *Gate) Check() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status == StatusGranted {
		return g.status
	}

	if g.checker.IsTrusted() {
		if g.status != StatusGranted {
			logger.Info("Input access granted")
		}
		g.status = StatusGranted
		return g.status
	}

	if g.status == StatusUnknown {
		logger.Info("Input access missing, requesting it")
		g.checker.RequestTrust()
		g.status = StatusWaiting
	}
	return g.status
}

// Status returns the last observed status without probing.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}
