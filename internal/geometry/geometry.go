// Package geometry provides the pure coordinate math for remapping
// pointer events between display coordinate spaces. Nothing here holds
// state; every function is safe to call from any goroutine.
package geometry

// Convention identifies the coordinate convention a DisplayGeometry is
// expressed in. Panel frames are top-left-origin with y growing down;
// the event interception layer addresses points in a bottom-left-origin
// global space with y growing up.
type Convention int

const (
	PanelSpace Convention = iota
	GlobalSpace
)

func (c Convention) String() string {
	switch c {
	case PanelSpace:
		return "panel"
	case GlobalSpace:
		return "global"
	default:
		return "unknown"
	}
}

// Point is a position in whatever space the caller is working in.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DisplayGeometry is a display rectangle plus the convention its origin
// is expressed in.
type DisplayGeometry struct {
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Width      float64    `json:"width"`
	Height     float64    `json:"height"`
	Convention Convention `json:"convention"`
}

// Degenerate reports whether the rectangle has no usable area. A
// degenerate source makes remapping undefined and is treated as a
// per-event failure, never a crash.
func (g DisplayGeometry) Degenerate() bool {
	return g.Width <= 0 || g.Height <= 0
}

// ToGlobalSpace converts a panel frame (top-left origin, y down) into
// the bottom-left-origin global space used by the interception layer.
// referenceHeight is the height of the reference display that anchors
// the global space. Called once per geometry change, not per event.
func ToGlobalSpace(frame DisplayGeometry, referenceHeight float64) DisplayGeometry {
	return DisplayGeometry{
		X:          frame.X,
		Y:          referenceHeight - frame.Y - frame.Height,
		Width:      frame.Width,
		Height:     frame.Height,
		Convention: GlobalSpace,
	}
}

// RemapPoint normalizes p against source and maps the normalized
// fraction into target. The second return value is false when source is
// degenerate or when either normalized coordinate falls outside the
// inclusive [0, 1] range, meaning the point did not originate on the
// reference display. Boundary fractions of exactly 0 or 1 are valid and
// map onto the target's edges.
func RemapPoint(source, target DisplayGeometry, p Point) (Point, bool) {
	if source.Degenerate() {
		return Point{}, false
	}

	fx := (p.X - source.X) / source.Width
	fy := (p.Y - source.Y) / source.Height
	if fx < 0 || fx > 1 || fy < 0 || fy > 1 {
		return Point{}, false
	}

	return Point{
		X: target.X + fx*target.Width,
		Y: target.Y + fy*target.Height,
	}, true
}

// ToWindowLocalSpace converts a global-space point into coordinates
// local to a window's own top-left-origin space. windowFrame is the
// window's panel frame. Always succeeds; bounds checks belong upstream.
func ToWindowLocalSpace(global Point, windowFrame DisplayGeometry, referenceHeight float64) Point {
	topLeftX := windowFrame.X
	topLeftY := referenceHeight - windowFrame.Y // top edge in global space

	return Point{
		X: global.X - topLeftX,
		Y: topLeftY - global.Y,
	}
}
