package display

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/touchmapd/touchmapd/internal/logger"
)

// refreshInterval bounds how often wlr-randr is spawned. Callers query
// per remap; re-running an external command for every pointer event
// would stall the interception path, so readings are reused for a short
// interval and refetched lazily after it.
const refreshInterval = time.Second

// WlrRandrProvider reads display geometry from wlr-randr.
type WlrRandrProvider struct {
	touchOutput string

	mu        sync.Mutex
	cached    Geometry
	fetchedAt time.Time
}

// NewWlrRandrProvider creates a provider for the given touch output
// name. Fails when wlr-randr is not installed.
func NewWlrRandrProvider(touchOutput string) (*WlrRandrProvider, error) {
	if _, err := exec.LookPath("wlr-randr"); err != nil {
		return nil, fmt.Errorf("wlr-randr not found: %w", err)
	}
	if touchOutput == "" {
		return nil, fmt.Errorf("touch output name not configured")
	}
	return &WlrRandrProvider{touchOutput: touchOutput}, nil
}

// Geometry returns the current reading, refreshing from wlr-randr when
// the previous one has aged out.
func (p *WlrRandrProvider) Geometry() (Geometry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.fetchedAt) < refreshInterval && !p.fetchedAt.IsZero() {
		return p.cached, nil
	}

	monitors, err := p.fetchMonitors()
	if err != nil {
		return Geometry{}, err
	}

	reference, touch, err := pick(monitors, p.touchOutput)
	if err != nil {
		return Geometry{}, err
	}

	p.cached = toGlobal(reference, touch)
	p.fetchedAt = time.Now()
	return p.cached, nil
}

func (p *WlrRandrProvider) fetchMonitors() ([]Monitor, error) {
	output, err := exec.Command("wlr-randr", "--json").CombinedOutput()
	if err != nil {
		if len(output) > 0 {
			logger.Errorf("wlr-randr --json error: %s", string(output))
		}
		return nil, fmt.Errorf("wlr-randr failed: %w", err)
	}

	var outputs []struct {
		Name        string  `json:"name"`
		Enabled     bool    `json:"enabled"`
		Scale       float64 `json:"scale"`
		CurrentMode struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"current_mode"`
		Position struct {
			X int `json:"x"`
			Y int `json:"y"`
		} `json:"position"`
	}
	if err := json.Unmarshal(output, &outputs); err != nil {
		return nil, fmt.Errorf("failed to parse wlr-randr output: %w", err)
	}

	var monitors []Monitor
	for _, out := range outputs {
		if !out.Enabled || out.CurrentMode.Width == 0 || out.CurrentMode.Height == 0 {
			continue
		}
		scale := out.Scale
		if scale == 0 {
			scale = 1.0
		}
		monitors = append(monitors, Monitor{
			Name:   out.Name,
			X:      float64(out.Position.X),
			Y:      float64(out.Position.Y),
			Width:  float64(out.CurrentMode.Width),
			Height: float64(out.CurrentMode.Height),
			Scale:  scale,
		})
	}
	return monitors, nil
}

// pick selects the touch monitor by name and the reference as the
// output at the desktop origin, falling back to the first other output.
func pick(monitors []Monitor, touchOutput string) (reference, touch Monitor, err error) {
	touchIdx := -1
	for i, m := range monitors {
		if m.Name == touchOutput {
			touchIdx = i
			break
		}
	}
	if touchIdx < 0 {
		return Monitor{}, Monitor{}, fmt.Errorf("%w: %q", ErrTouchDisplayNotFound, touchOutput)
	}

	refIdx := -1
	for i, m := range monitors {
		if i == touchIdx {
			continue
		}
		if m.X == 0 && m.Y == 0 {
			refIdx = i
			break
		}
		if refIdx < 0 {
			refIdx = i
		}
	}
	if refIdx < 0 {
		return Monitor{}, Monitor{}, fmt.Errorf("no reference display besides touch output %q", touchOutput)
	}

	return monitors[refIdx], monitors[touchIdx], nil
}
