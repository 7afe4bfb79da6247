package display

import (
	"github.com/touchmapd/touchmapd/internal/config"
)

// StaticProvider serves fixed display frames from configuration. It is
// the fallback for setups without wlr-randr and the provider used in
// tests.
type StaticProvider struct {
	reference Monitor
	touch     Monitor
}

// NewStaticProvider builds a provider from the configured panel frames.
func NewStaticProvider(cfg config.DisplayConfig) *StaticProvider {
	return &StaticProvider{
		reference: Monitor{
			Name:    "reference",
			X:       cfg.Reference.X,
			Y:       cfg.Reference.Y,
			Width:   cfg.Reference.Width,
			Height:  cfg.Reference.Height,
			Primary: true,
			Scale:   1.0,
		},
		touch: Monitor{
			Name:   cfg.TouchOutput,
			X:      cfg.Touch.X,
			Y:      cfg.Touch.Y,
			Width:  cfg.Touch.Width,
			Height: cfg.Touch.Height,
			Scale:  1.0,
		},
	}
}

// Geometry returns the configured frames in global space. A degenerate
// configured frame flows through unchanged; the remap path treats it as
// a per-event drop, not an error.
func (p *StaticProvider) Geometry() (Geometry, error) {
	return toGlobal(p.reference, p.touch), nil
}
