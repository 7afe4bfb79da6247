package tap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/touchmapd/touchmapd/internal/calibration"
	"github.com/touchmapd/touchmapd/internal/device"
	"github.com/touchmapd/touchmapd/internal/display"
	"github.com/touchmapd/touchmapd/internal/geometry"
	"github.com/touchmapd/touchmapd/internal/pointer"
	"github.com/touchmapd/touchmapd/internal/recorder"
)

func testDisplays() display.Geometry {
	return display.Geometry{
		Reference: geometry.DisplayGeometry{X: 0, Y: 0, Width: 3024, Height: 1964, Convention: geometry.GlobalSpace},
		Touch:     geometry.DisplayGeometry{X: 232, Y: 1964, Width: 2560, Height: 720, Convention: geometry.GlobalSpace},
	}
}

func TestDecide_LearningCommitsFirstDevice(t *testing.T) {
	st := DecideState{
		Calibration: calibration.Learning,
		Displays:    testDisplays(),
	}

	d := Decide(st, pointer.Event{Kind: pointer.KindDown, Device: 7, Pos: geometry.Point{X: 1512, Y: 982}})
	assert.True(t, d.Learn)
	assert.Equal(t, device.CandidateForLearning, d.Classification)
	// The first calibrated event is already remapped.
	assert.Equal(t, ActionSubstitute, d.Action)
	assert.Equal(t, recorder.Delivered, d.Outcome)
	assert.InDelta(t, 1512, d.Remapped.X, 1e-9)
	assert.InDelta(t, 2324, d.Remapped.Y, 1e-9)
}

func TestDecide_OtherDevicePassesThrough(t *testing.T) {
	st := DecideState{
		Calibration: calibration.Calibrated,
		Learned:     7,
		HaveLearned: true,
		Displays:    testDisplays(),
	}

	d := Decide(st, pointer.Event{Kind: pointer.KindMoved, Device: 3, Pos: geometry.Point{X: 10, Y: 10}})
	assert.False(t, d.Learn)
	assert.Equal(t, device.OtherDevice, d.Classification)
	assert.Equal(t, ActionPass, d.Action)
	assert.Equal(t, recorder.Suppressed, d.Outcome)
}

func TestDecide_KnownDeviceRemaps(t *testing.T) {
	st := DecideState{
		Calibration: calibration.Calibrated,
		Learned:     7,
		HaveLearned: true,
		Displays:    testDisplays(),
	}

	d := Decide(st, pointer.Event{Kind: pointer.KindDragged, Device: 7, Pos: geometry.Point{X: 0, Y: 0}})
	assert.Equal(t, ActionSubstitute, d.Action)
	assert.Equal(t, recorder.Delivered, d.Outcome)
	assert.InDelta(t, 232, d.Remapped.X, 1e-9)
	assert.InDelta(t, 1964, d.Remapped.Y, 1e-9)
}

func TestDecide_OutOfBoundsDrops(t *testing.T) {
	st := DecideState{
		Calibration: calibration.Calibrated,
		Learned:     7,
		HaveLearned: true,
		Displays:    testDisplays(),
	}

	d := Decide(st, pointer.Event{Kind: pointer.KindMoved, Device: 7, Pos: geometry.Point{X: -1, Y: 500}})
	assert.Equal(t, ActionPass, d.Action)
	assert.Equal(t, recorder.Dropped, d.Outcome)
}

func TestDecide_DegenerateGeometryDrops(t *testing.T) {
	st := DecideState{
		Calibration: calibration.Calibrated,
		Learned:     7,
		HaveLearned: true,
		// Zero geometry, as when the provider failed.
	}

	d := Decide(st, pointer.Event{Kind: pointer.KindDown, Device: 7})
	assert.Equal(t, ActionPass, d.Action)
	assert.Equal(t, recorder.Dropped, d.Outcome)
}

func TestDecide_ExcludedDeviceNeverLearns(t *testing.T) {
	st := DecideState{
		Calibration: calibration.Learning,
		Excluded:    map[device.ID]struct{}{4: {}},
		Displays:    testDisplays(),
	}

	d := Decide(st, pointer.Event{Kind: pointer.KindDown, Device: 4, Pos: geometry.Point{X: 100, Y: 100}})
	assert.False(t, d.Learn)
	assert.Equal(t, device.OtherDevice, d.Classification)
	assert.Equal(t, recorder.Suppressed, d.Outcome)
}

func TestDecide_NotStartedObservesOnly(t *testing.T) {
	st := DecideState{Displays: testDisplays()}

	d := Decide(st, pointer.Event{Kind: pointer.KindDown, Device: 7, Pos: geometry.Point{X: 100, Y: 100}})
	assert.False(t, d.Learn)
	assert.Equal(t, ActionPass, d.Action)
	assert.Equal(t, recorder.Suppressed, d.Outcome)
}
