// Package display supplies the current geometry of the reference and
// touch displays. Providers are queried fresh on each remap because
// displays can move or disconnect at any time.
package display

import (
	"errors"

	"github.com/touchmapd/touchmapd/internal/geometry"
)

// ErrTouchDisplayNotFound is returned when the configured touch output
// is not among the connected displays.
var ErrTouchDisplayNotFound = errors.New("touch display not found")

// Geometry is one consistent reading of both displays, already
// converted into the interception layer's global space.
type Geometry struct {
	Reference geometry.DisplayGeometry `json:"reference"`
	Touch     geometry.DisplayGeometry `json:"touch"`
}

// Provider yields the current display geometry.
type Provider interface {
	Geometry() (Geometry, error)
}

// Monitor represents a connected display as reported by the platform.
type Monitor struct {
	Name    string
	X       float64 // Position in top-left-origin desktop space
	Y       float64
	Width   float64
	Height  float64
	Primary bool
	Scale   float64
}

// toGlobal builds a Geometry from a reference and touch monitor pair,
// anchoring global space on the reference display's height.
func toGlobal(reference, touch Monitor) Geometry {
	refFrame := geometry.DisplayGeometry{
		X: reference.X, Y: reference.Y,
		Width: reference.Width, Height: reference.Height,
		Convention: geometry.PanelSpace,
	}
	touchFrame := geometry.DisplayGeometry{
		X: touch.X, Y: touch.Y,
		Width: touch.Width, Height: touch.Height,
		Convention: geometry.PanelSpace,
	}
	return Geometry{
		Reference: geometry.ToGlobalSpace(refFrame, reference.Height),
		Touch:     geometry.ToGlobalSpace(touchFrame, reference.Height),
	}
}
