package tap

import (
	"context"
	"errors"

	"github.com/touchmapd/touchmapd/internal/device"
	"github.com/touchmapd/touchmapd/internal/pointer"
)

// ErrTapClosed is returned when posting through a backend that has been
// closed.
var ErrTapClosed = errors.New("event tap closed")

// Backend owns the OS-level interception resource. The production
// implementation is evdev capture plus uinput injection; tests use a
// fake.
type Backend interface {
	// Open starts delivering every observed pointer event to onEvent
	// and interception-layer errors to onError. onEvent runs on the
	// backend's capture goroutine and must not block.
	Open(ctx context.Context, onEvent func(pointer.Event), onError func(error)) error

	// Suppress stops the given device's events from reaching the rest
	// of the system; the session re-posts what should be seen.
	Suppress(id device.ID) error

	// Unsuppress releases a previous Suppress.
	Unsuppress() error

	// Post delivers a synthetic pointer event at ev.Pos in global
	// space.
	Post(ev pointer.Event) error

	// Close releases the OS resource. It is synchronous: after Close
	// returns no callback fires again.
	Close() error
}
