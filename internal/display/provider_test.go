package display

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touchmapd/touchmapd/internal/config"
	"github.com/touchmapd/touchmapd/internal/geometry"
)

func TestStaticProvider_Geometry(t *testing.T) {
	p := NewStaticProvider(config.DisplayConfig{
		TouchOutput: "DP-3",
		Reference:   config.Rectangle{X: 0, Y: 0, Width: 3024, Height: 1964},
		Touch:       config.Rectangle{X: 232, Y: -720, Width: 2560, Height: 720},
	})

	geom, err := p.Geometry()
	require.NoError(t, err)

	assert.Equal(t, geometry.GlobalSpace, geom.Reference.Convention)
	assert.InDelta(t, 0, geom.Reference.Y, 1e-9)
	assert.InDelta(t, 232, geom.Touch.X, 1e-9)
	assert.InDelta(t, 1964, geom.Touch.Y, 1e-9)
	assert.InDelta(t, 720, geom.Touch.Height, 1e-9)
}

func TestStaticProvider_DegenerateFlowsThrough(t *testing.T) {
	p := NewStaticProvider(config.DisplayConfig{})

	geom, err := p.Geometry()
	require.NoError(t, err)
	assert.True(t, geom.Reference.Degenerate())
}

func TestPick(t *testing.T) {
	primary := Monitor{Name: "eDP-1", X: 0, Y: 0, Width: 3024, Height: 1964}
	side := Monitor{Name: "HDMI-A-1", X: 3024, Y: 0, Width: 1920, Height: 1080}
	touch := Monitor{Name: "DP-3", X: 232, Y: 1964, Width: 2560, Height: 720}

	t.Run("reference is the origin output", func(t *testing.T) {
		ref, tch, err := pick([]Monitor{touch, side, primary}, "DP-3")
		require.NoError(t, err)
		assert.Equal(t, "eDP-1", ref.Name)
		assert.Equal(t, "DP-3", tch.Name)
	})

	t.Run("falls back to first non-touch output", func(t *testing.T) {
		ref, _, err := pick([]Monitor{touch, side}, "DP-3")
		require.NoError(t, err)
		assert.Equal(t, "HDMI-A-1", ref.Name)
	})

	t.Run("missing touch output", func(t *testing.T) {
		_, _, err := pick([]Monitor{primary}, "DP-3")
		assert.True(t, errors.Is(err, ErrTouchDisplayNotFound))
	})
}
