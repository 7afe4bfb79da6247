// Package pointer defines the event types shared between the
// interception session, the flight recorder and the platform backends.
package pointer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/touchmapd/touchmapd/internal/device"
	"github.com/touchmapd/touchmapd/internal/geometry"
)

// Kind is the pointer event kind the interception layer observes.
type Kind int

const (
	KindDown Kind = iota
	KindUp
	KindDragged
	KindMoved
)

func (k Kind) String() string {
	switch k {
	case KindDown:
		return "down"
	case KindUp:
		return "up"
	case KindDragged:
		return "dragged"
	case KindMoved:
		return "moved"
	default:
		return "unknown"
	}
}

// Kinds cross the control socket as their string names.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "down":
		*k = KindDown
	case "up":
		*k = KindUp
	case "dragged":
		*k = KindDragged
	case "moved":
		*k = KindMoved
	default:
		return fmt.Errorf("unknown pointer kind %q", s)
	}
	return nil
}

// Event is one raw pointer event as delivered by the interception
// layer, with its position expressed in the reference display's global
// space (the platform's wrong mapping that the pipeline corrects).
type Event struct {
	Kind   Kind
	Device device.ID
	Pos    geometry.Point
	Time   time.Time
}
