package tap

import (
	"github.com/touchmapd/touchmapd/internal/calibration"
	"github.com/touchmapd/touchmapd/internal/device"
	"github.com/touchmapd/touchmapd/internal/display"
	"github.com/touchmapd/touchmapd/internal/geometry"
	"github.com/touchmapd/touchmapd/internal/pointer"
	"github.com/touchmapd/touchmapd/internal/recorder"
)

// Action is what the session does with the original event.
type Action int

const (
	// ActionPass lets the original event through unmodified.
	ActionPass Action = iota
	// ActionSubstitute suppresses the original and posts a synthetic
	// event at the remapped point.
	ActionSubstitute
)

// DecideState is an immutable snapshot of everything the per-event
// algorithm needs. Building it and calling Decide involves no locks and
// no I/O, which keeps the real-time path testable without the OS
// resource.
type DecideState struct {
	Calibration calibration.State
	Learned     device.ID
	HaveLearned bool
	Excluded    map[device.ID]struct{}
	Displays    display.Geometry
}

// Decision is the outcome of classifying one event, plus the state
// delta (Learn) the caller applies afterwards.
type Decision struct {
	Action         Action
	Outcome        recorder.Outcome
	Classification device.Classification
	Remapped       geometry.Point // valid only for ActionSubstitute
	Learn          bool           // commit the event's device as the touch device
}

// Decide runs the per-event algorithm: classify the device, commit a
// learnable candidate, and remap the point for the known touch device.
// A failed remap (degenerate geometry or out-of-bounds point) falls
// back to passing the original through, tagged Dropped; it never
// synthesizes a bad point.
func Decide(st DecideState, ev pointer.Event) Decision {
	class := classify(st, ev.Device)

	d := Decision{Action: ActionPass, Classification: class}
	switch class {
	case device.CandidateForLearning:
		// The first calibrated event; it is still remapped below if
		// geometry is ready.
		d.Learn = true
	case device.KnownTouchDevice:
	default:
		d.Outcome = recorder.Suppressed
		return d
	}

	remapped, ok := geometry.RemapPoint(st.Displays.Reference, st.Displays.Touch, ev.Pos)
	if !ok {
		d.Outcome = recorder.Dropped
		return d
	}

	d.Action = ActionSubstitute
	d.Outcome = recorder.Delivered
	d.Remapped = remapped
	return d
}

func classify(st DecideState, id device.ID) device.Classification {
	if st.HaveLearned {
		if id == st.Learned {
			return device.KnownTouchDevice
		}
		return device.OtherDevice
	}
	if st.Calibration != calibration.Learning {
		return device.Unknown
	}
	if _, excluded := st.Excluded[id]; excluded {
		return device.OtherDevice
	}
	return device.CandidateForLearning
}
