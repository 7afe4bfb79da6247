package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const tolerance = 1e-9

// Geometry fixture: 3024x1964 reference display at the origin with a
// 2560x720 touch display sitting directly below it in panel space.
var (
	referenceFrame = DisplayGeometry{X: 0, Y: 0, Width: 3024, Height: 1964, Convention: PanelSpace}
	touchFrame     = DisplayGeometry{X: 232, Y: -720, Width: 2560, Height: 720, Convention: PanelSpace}
)

func TestToGlobalSpace(t *testing.T) {
	tests := []struct {
		name      string
		frame     DisplayGeometry
		refHeight float64
		wantX     float64
		wantY     float64
	}{
		{
			name:      "reference display at origin maps to origin",
			frame:     referenceFrame,
			refHeight: 1964,
			wantX:     0,
			wantY:     0,
		},
		{
			name:      "touch display below reference",
			frame:     touchFrame,
			refHeight: 1964,
			wantX:     232,
			wantY:     1964,
		},
		{
			name:      "display above reference",
			frame:     DisplayGeometry{X: 100, Y: 1964, Width: 800, Height: 600, Convention: PanelSpace},
			refHeight: 1964,
			wantX:     100,
			wantY:     -2564,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToGlobalSpace(tt.frame, tt.refHeight)
			assert.InDelta(t, tt.wantX, got.X, tolerance)
			assert.InDelta(t, tt.wantY, got.Y, tolerance)
			assert.Equal(t, tt.frame.Width, got.Width)
			assert.Equal(t, tt.frame.Height, got.Height)
			assert.Equal(t, GlobalSpace, got.Convention)
		})
	}
}

func TestRemapPoint(t *testing.T) {
	source := ToGlobalSpace(referenceFrame, 1964)
	target := ToGlobalSpace(touchFrame, 1964)

	t.Run("center of reference maps to center of target", func(t *testing.T) {
		p, ok := RemapPoint(source, target, Point{X: 1512, Y: 982})
		assert.True(t, ok)
		assert.InDelta(t, 1512, p.X, tolerance)
		assert.InDelta(t, 2324, p.Y, tolerance)
	})

	t.Run("point outside reference bounds is rejected", func(t *testing.T) {
		_, ok := RemapPoint(source, target, Point{X: -1, Y: 500})
		assert.False(t, ok)

		_, ok = RemapPoint(source, target, Point{X: 3025, Y: 500})
		assert.False(t, ok)

		_, ok = RemapPoint(source, target, Point{X: 1500, Y: 1965})
		assert.False(t, ok)
	})

	t.Run("boundary points map exactly onto target edges", func(t *testing.T) {
		p, ok := RemapPoint(source, target, Point{X: 0, Y: 0})
		assert.True(t, ok)
		assert.InDelta(t, target.X, p.X, tolerance)
		assert.InDelta(t, target.Y, p.Y, tolerance)

		p, ok = RemapPoint(source, target, Point{X: 3024, Y: 1964})
		assert.True(t, ok)
		assert.InDelta(t, target.X+target.Width, p.X, tolerance)
		assert.InDelta(t, target.Y+target.Height, p.Y, tolerance)
	})

	t.Run("normalized position is preserved", func(t *testing.T) {
		points := []Point{
			{X: 1, Y: 1},
			{X: 756, Y: 491},
			{X: 2268, Y: 1473},
			{X: 3023, Y: 1963},
		}
		for _, in := range points {
			p, ok := RemapPoint(source, target, in)
			assert.True(t, ok)

			fx := (in.X - source.X) / source.Width
			fy := (in.Y - source.Y) / source.Height
			gx := (p.X - target.X) / target.Width
			gy := (p.Y - target.Y) / target.Height
			assert.InDelta(t, fx, gx, tolerance)
			assert.InDelta(t, fy, gy, tolerance)
		}
	})

	t.Run("degenerate source rejects every point", func(t *testing.T) {
		zeroWidth := DisplayGeometry{X: 0, Y: 0, Width: 0, Height: 100, Convention: GlobalSpace}
		zeroHeight := DisplayGeometry{X: 0, Y: 0, Width: 100, Height: 0, Convention: GlobalSpace}

		for _, p := range []Point{{}, {X: 50, Y: 50}, {X: -10, Y: 10}} {
			_, ok := RemapPoint(zeroWidth, target, p)
			assert.False(t, ok)
			_, ok = RemapPoint(zeroHeight, target, p)
			assert.False(t, ok)
		}
	})
}

func TestToWindowLocalSpace(t *testing.T) {
	windowFrame := DisplayGeometry{X: 300, Y: 200, Width: 640, Height: 480, Convention: PanelSpace}
	const refHeight = 1964.0

	t.Run("round trip of frame corners", func(t *testing.T) {
		global := ToGlobalSpace(windowFrame, refHeight)

		// The converted frame's origin corner comes back as (0, height),
		// the opposite corner as (width, 0).
		local := ToWindowLocalSpace(Point{X: global.X, Y: global.Y}, windowFrame, refHeight)
		assert.InDelta(t, 0, local.X, tolerance)
		assert.InDelta(t, windowFrame.Height, local.Y, tolerance)

		local = ToWindowLocalSpace(Point{X: global.X + global.Width, Y: global.Y + global.Height}, windowFrame, refHeight)
		assert.InDelta(t, windowFrame.Width, local.X, tolerance)
		assert.InDelta(t, 0, local.Y, tolerance)
	})

	t.Run("never rejects", func(t *testing.T) {
		local := ToWindowLocalSpace(Point{X: -5000, Y: 9000}, windowFrame, refHeight)
		assert.InDelta(t, -5300, local.X, tolerance)
		assert.InDelta(t, refHeight-200-9000, local.Y, tolerance)
	})
}
