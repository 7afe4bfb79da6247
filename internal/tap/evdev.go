package tap

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ThomasT75/uinput"
	evdev "github.com/gvalkov/golang-evdev"

	"github.com/touchmapd/touchmapd/internal/device"
	"github.com/touchmapd/touchmapd/internal/display"
	"github.com/touchmapd/touchmapd/internal/geometry"
	"github.com/touchmapd/touchmapd/internal/logger"
	"github.com/touchmapd/touchmapd/internal/pointer"
)

const virtualDeviceName = "touchmapd virtual touch"

// EvdevBackend implements Backend on Linux: it reads every
// pointer-capable /dev/input/event* node, identifies devices by their
// node number, suppresses the learned device with an exclusive grab and
// posts remapped events through a virtual uinput touchpad.
type EvdevBackend struct {
	displays display.Provider

	mu         sync.Mutex
	devices    map[device.ID]*capturedDevice
	pad        uinput.TouchPad
	span       geometry.DisplayGeometry // global-space bounding box of both displays
	suppressed device.ID
	haveGrab   bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
}

type capturedDevice struct {
	id       device.ID
	name     string
	dev      *evdev.InputDevice
	grab     func() error
	release  func() error
	absolute bool
	minX     int32
	maxX     int32
	minY     int32
	maxY     int32
	lastPos  geometry.Point
	touching bool
}

// NewEvdevBackend creates a backend that scales raw absolute axes into
// the reference display's space, reproducing the wrong normalization
// the pipeline corrects.
func NewEvdevBackend(displays display.Provider) *EvdevBackend {
	return &EvdevBackend{
		displays: displays,
		devices:  make(map[device.ID]*capturedDevice),
	}
}

// IsEvdevAvailable checks if evdev devices are visible on this system.
func IsEvdevAvailable() bool {
	devices, err := evdev.ListInputDevices("/dev/input/event*")
	return err == nil && len(devices) > 0
}

// Open enumerates pointer devices, creates the virtual touchpad and
// starts one capture goroutine per device.
func (b *EvdevBackend) Open(ctx context.Context, onEvent func(pointer.Event), onError func(error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrTapClosed
	}
	if len(b.devices) > 0 {
		return fmt.Errorf("backend already open")
	}

	geom, err := b.displays.Geometry()
	if err != nil {
		return fmt.Errorf("display geometry unavailable: %w", err)
	}
	b.span = boundingBox(geom.Reference, geom.Touch)

	pad, err := uinput.CreateTouchPad("/dev/uinput", []byte(virtualDeviceName),
		0, int32(b.span.Width), 0, int32(b.span.Height))
	if err != nil {
		return fmt.Errorf("failed to create virtual touchpad: %w", err)
	}
	b.pad = pad

	if err := b.openDevices(); err != nil {
		pad.Close()
		b.pad = nil
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	for _, cd := range b.devices {
		b.wg.Add(1)
		go b.captureLoop(runCtx, cd, onEvent, onError)
	}

	logger.Infof("Intercepting %d pointer devices", len(b.devices))
	return nil
}

// openDevices opens every node exposing an absolute x/y pair or mouse
// buttons. The virtual touchpad itself is skipped so posted events are
// not re-observed.
func (b *EvdevBackend) openDevices() error {
	nodes, err := filepath.Glob("/dev/input/event*")
	if err != nil || len(nodes) == 0 {
		return fmt.Errorf("no input device nodes found")
	}

	var permissionErrors int
	for _, node := range nodes {
		dev, err := evdev.Open(node)
		if err != nil {
			permissionErrors++
			continue
		}
		if dev.Name == virtualDeviceName {
			dev.File.Close()
			continue
		}

		cd, ok := pointerCapabilities(dev)
		if !ok {
			dev.File.Close()
			continue
		}
		id, valid := device.ParseNode(node)
		if !valid {
			dev.File.Close()
			continue
		}
		cd.id = id
		cd.name = dev.Name
		cd.grab = dev.Grab
		cd.release = dev.Release
		b.devices[cd.id] = cd
		logger.Debugf("Watching pointer device %d: %s (%s)", cd.id, dev.Name, node)
	}

	if len(b.devices) == 0 {
		if permissionErrors > 0 {
			return fmt.Errorf("no readable pointer devices (%d nodes denied)", permissionErrors)
		}
		return fmt.Errorf("no pointer devices found")
	}
	return nil
}

// pointerCapabilities inspects a device's event types. Devices with an
// absolute x/y pair (touchscreens, tablets) report positions that get
// scaled into reference space; relative devices (mice) are watched for
// classification only.
func pointerCapabilities(dev *evdev.InputDevice) (*capturedDevice, bool) {
	cd := &capturedDevice{dev: dev}

	for capType, codes := range dev.Capabilities {
		if capType.Type != evdev.EV_ABS {
			continue
		}
		var hasX, hasY bool
		for _, code := range codes {
			if code.Code == evdev.ABS_X {
				hasX = true
			}
			if code.Code == evdev.ABS_Y {
				hasY = true
			}
		}
		if hasX && hasY {
			cd.absolute = true
		}
	}

	if cd.absolute {
		cd.minX, cd.maxX, cd.minY, cd.maxY = absRanges(dev.File.Fd())
		return cd, true
	}

	// Relative pointer with buttons: eligible for observation so the
	// learning phase can tell it apart from the touch device.
	for capType, codes := range dev.Capabilities {
		if capType.Type != evdev.EV_KEY {
			continue
		}
		for _, code := range codes {
			if code.Code == evdev.BTN_LEFT || code.Code == evdev.BTN_TOUCH {
				return cd, true
			}
		}
	}
	return nil, false
}

// captureLoop reads one device until the context ends. Raw absolute
// coordinates are scaled into the reference display's global space
// before events are handed to the session.
func (b *EvdevBackend) captureLoop(ctx context.Context, cd *capturedDevice, onEvent func(pointer.Event), onError func(error)) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Capture panic on device %d: %v", cd.id, r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		events, err := cd.dev.Read()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if strings.Contains(err.Error(), "resource temporarily unavailable") {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			onError(fmt.Errorf("device %d read failed: %w", cd.id, err))
			time.Sleep(100 * time.Millisecond)
			continue
		}

		for _, raw := range events {
			if ev, ok := b.translate(cd, raw); ok {
				onEvent(ev)
			}
		}
	}
}

// translate folds one raw evdev event into a pointer event. Absolute
// axis updates adjust the tracked position; BTN_TOUCH/BTN_LEFT edges
// become down/up; SYN_REPORT flushes a move/drag for absolute devices.
func (b *EvdevBackend) translate(cd *capturedDevice, raw evdev.InputEvent) (pointer.Event, bool) {
	now := time.Now()

	switch raw.Type {
	case evdev.EV_ABS:
		if !cd.absolute {
			return pointer.Event{}, false
		}
		switch raw.Code {
		case evdev.ABS_X:
			cd.lastPos.X = b.scaleX(cd, raw.Value)
		case evdev.ABS_Y:
			cd.lastPos.Y = b.scaleY(cd, raw.Value)
		}
		return pointer.Event{}, false

	case evdev.EV_KEY:
		if raw.Code != evdev.BTN_TOUCH && raw.Code != evdev.BTN_LEFT {
			return pointer.Event{}, false
		}
		kind := pointer.KindUp
		if raw.Value == 1 {
			kind = pointer.KindDown
		} else if raw.Value != 0 {
			return pointer.Event{}, false // key repeat
		}
		cd.touching = kind == pointer.KindDown
		return pointer.Event{Kind: kind, Device: cd.id, Pos: cd.lastPos, Time: now}, true

	case evdev.EV_SYN:
		if raw.Code != evdev.SYN_REPORT || !cd.absolute {
			return pointer.Event{}, false
		}
		kind := pointer.KindMoved
		if cd.touching {
			kind = pointer.KindDragged
		}
		return pointer.Event{Kind: kind, Device: cd.id, Pos: cd.lastPos, Time: now}, true
	}

	return pointer.Event{}, false
}

// scaleX maps a raw absolute value into the reference display's global
// x range. The platform's defect is exactly this normalization; the
// session corrects it.
func (b *EvdevBackend) scaleX(cd *capturedDevice, value int32) float64 {
	geom, err := b.displays.Geometry()
	if err != nil || cd.maxX == cd.minX {
		return 0
	}
	f := float64(value-cd.minX) / float64(cd.maxX-cd.minX)
	return geom.Reference.X + f*geom.Reference.Width
}

func (b *EvdevBackend) scaleY(cd *capturedDevice, value int32) float64 {
	geom, err := b.displays.Geometry()
	if err != nil || cd.maxY == cd.minY {
		return 0
	}
	f := float64(value-cd.minY) / float64(cd.maxY-cd.minY)
	// Raw y grows downward, global space upward.
	return geom.Reference.Y + (1-f)*geom.Reference.Height
}

// Suppress takes an exclusive grab on the learned device so its events
// stop reaching the compositor.
func (b *EvdevBackend) Suppress(id device.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.haveGrab {
		if b.suppressed == id {
			return nil
		}
		// At most one device holds a grab at a time.
		if err := b.unsuppressLocked(); err != nil {
			return fmt.Errorf("failed to release previous grab: %w", err)
		}
	}
	cd, ok := b.devices[id]
	if !ok {
		return fmt.Errorf("unknown device %d", id)
	}
	if err := cd.grab(); err != nil {
		return fmt.Errorf("failed to grab device %d: %w", id, err)
	}
	b.suppressed = id
	b.haveGrab = true
	logger.Infof("Suppressing original delivery from device %d (%s)", id, cd.name)
	return nil
}

// Unsuppress releases the exclusive grab.
func (b *EvdevBackend) Unsuppress() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unsuppressLocked()
}

func (b *EvdevBackend) unsuppressLocked() error {
	if !b.haveGrab {
		return nil
	}
	cd, ok := b.devices[b.suppressed]
	if ok {
		if err := cd.release(); err != nil {
			return fmt.Errorf("failed to release device %d: %w", b.suppressed, err)
		}
	}
	b.haveGrab = false
	return nil
}

// Post moves the virtual touchpad to the event's global-space position
// and replays the touch edge. uinput axes are top-left origin, global
// space is bottom-up, so y flips against the span.
func (b *EvdevBackend) Post(ev pointer.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pad == nil {
		return ErrTapClosed
	}

	x := int32(ev.Pos.X - b.span.X)
	y := int32(b.span.Y + b.span.Height - ev.Pos.Y)
	if err := b.pad.MoveTo(x, y); err != nil {
		return fmt.Errorf("failed to move virtual pointer: %w", err)
	}

	switch ev.Kind {
	case pointer.KindDown:
		return b.pad.LeftPress()
	case pointer.KindUp:
		return b.pad.LeftRelease()
	}
	return nil
}

// Close synchronously releases every device and the virtual touchpad.
// When it returns no capture callback can fire anymore.
func (b *EvdevBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	if b.cancel != nil {
		b.cancel()
	}
	if err := b.unsuppressLocked(); err != nil {
		logger.Warnf("Release on close failed: %v", err)
	}
	// Closing the files unblocks capture goroutines stuck in Read.
	for _, cd := range b.devices {
		cd.dev.File.Close()
	}
	b.devices = make(map[device.ID]*capturedDevice)
	pad := b.pad
	b.pad = nil
	b.mu.Unlock()

	b.wg.Wait()

	if pad != nil {
		if err := pad.Close(); err != nil {
			return fmt.Errorf("failed to close virtual touchpad: %w", err)
		}
	}
	return nil
}

// boundingBox returns the smallest global-space rectangle covering both
// displays; it sizes the virtual touchpad's axes.
func boundingBox(a, bb geometry.DisplayGeometry) geometry.DisplayGeometry {
	minX := a.X
	if bb.X < minX {
		minX = bb.X
	}
	minY := a.Y
	if bb.Y < minY {
		minY = bb.Y
	}
	maxX := a.X + a.Width
	if bb.X+bb.Width > maxX {
		maxX = bb.X + bb.Width
	}
	maxY := a.Y + a.Height
	if bb.Y+bb.Height > maxY {
		maxY = bb.Y + bb.Height
	}
	return geometry.DisplayGeometry{
		X: minX, Y: minY,
		Width: maxX - minX, Height: maxY - minY,
		Convention: geometry.GlobalSpace,
	}
}
