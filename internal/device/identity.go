// Package device tracks which physical input device has been learned
// as the touch display.
package device

import (
	"sync"

	"github.com/touchmapd/touchmapd/internal/logger"
)

// ID is the opaque integer a platform event carries to identify the
// originating physical pointer device.
type ID int64

// Classification is the result of matching an event's device against
// the learned identity.
type Classification int

const (
	// Unknown: no identity learned yet and learning is not active.
	Unknown Classification = iota
	// CandidateForLearning: learning is active and this device is
	// eligible to be committed as the touch device.
	CandidateForLearning
	// KnownTouchDevice: exact match against the learned id.
	KnownTouchDevice
	// OtherDevice: some other pointer device; its events pass through.
	OtherDevice
)

func (c Classification) String() string {
	switch c {
	case CandidateForLearning:
		return "candidate"
	case KnownTouchDevice:
		return "touch-device"
	case OtherDevice:
		return "other-device"
	default:
		return "unknown"
	}
}

// Identity holds the learned touch device id. There is no heuristic
// scoring: identity is a single learned integer, fixed for the process
// lifetime until an explicit reset.
type Identity struct {
	mu       sync.RWMutex
	learned  ID
	haveID   bool
	excluded map[ID]struct{}
}

// NewIdentity creates an identity tracker. Devices in excluded are
// never eligible for learning and always classify as OtherDevice.
func NewIdentity(excluded []ID) *Identity {
	ex := make(map[ID]struct{}, len(excluded))
	for _, id := range excluded {
		ex[id] = struct{}{}
	}
	return &Identity{excluded: ex}
}

// Classify matches an event's device id against the learned identity.
// learning reports whether the calibration machine is in its learning
// phase; it decides whether an unmatched device is a candidate.
func (i *Identity) Classify(id ID, learning bool) Classification {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.haveID {
		if id == i.learned {
			return KnownTouchDevice
		}
		return OtherDevice
	}

	if !learning {
		return Unknown
	}
	if _, ok := i.excluded[id]; ok {
		return OtherDevice
	}
	return CandidateForLearning
}

// Learn commits id as the touch device. Subsequent calls are ignored
// until Reset; the first learned identity wins.
func (i *Identity) Learn(id ID) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.haveID {
		return
	}
	i.learned = id
	i.haveID = true
	logger.Infof("Learned touch device id %d", id)
}

// Learned returns the learned id, if any.
func (i *Identity) Learned() (ID, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.learned, i.haveID
}

// Excluded returns the excluded device set. The set is fixed at
// construction and never mutated, so it is shared, not copied; callers
// must treat it as read-only.
func (i *Identity) Excluded() map[ID]struct{} {
	return i.excluded
}

// Reset clears the learned id. Callers must only invoke this while
// interception is paused so no classification races the clear.
func (i *Identity) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.haveID {
		logger.Infof("Reset learned touch device id %d", i.learned)
	}
	i.learned = 0
	i.haveID = false
}
