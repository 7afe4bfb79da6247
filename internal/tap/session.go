// Package tap implements the interception session: the component that
// observes every pointer event system-wide, learns the touch device,
// and substitutes remapped events for it.
package tap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/touchmapd/touchmapd/internal/calibration"
	"github.com/touchmapd/touchmapd/internal/device"
	"github.com/touchmapd/touchmapd/internal/display"
	"github.com/touchmapd/touchmapd/internal/logger"
	"github.com/touchmapd/touchmapd/internal/pointer"
	"github.com/touchmapd/touchmapd/internal/recorder"
	"github.com/touchmapd/touchmapd/internal/watchdog"
)

// Session wires a Backend to the remap pipeline. It owns the backend
// for its lifetime; the coordinator owns the session.
type Session struct {
	backend  Backend
	identity *device.Identity
	machine  *calibration.Machine
	rec      *recorder.FlightRecorder
	wd       *watchdog.Watchdog
	displays display.Provider

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
}

// NewSession assembles a session around an open-able backend. The
// recorder and watchdog are shared with the coordinator's diagnostics
// surface; identity and machine survive session recreates.
func NewSession(backend Backend, identity *device.Identity, machine *calibration.Machine,
	rec *recorder.FlightRecorder, wd *watchdog.Watchdog, displays display.Provider) *Session {
	return &Session{
		backend:  backend,
		identity: identity,
		machine:  machine,
		rec:      rec,
		wd:       wd,
		displays: displays,
	}
}

// Start opens the interception resource and moves calibration into
// learning. Failure here is fatal for this attempt only; the
// coordinator retries with backoff.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return fmt.Errorf("session already active")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := s.backend.Open(runCtx, s.handleEvent, s.handleError); err != nil {
		cancel()
		return fmt.Errorf("failed to create interception session: %w", err)
	}
	s.cancel = cancel
	s.active = true

	s.machine.Begin()

	// After a recreate the device is already learned; re-apply the
	// suppression the old backend held.
	if id, ok := s.identity.Learned(); ok {
		if err := s.backend.Suppress(id); err != nil {
			logger.Warnf("Could not re-suppress learned device %d: %v", id, err)
		}
	}

	logger.Info("Interception session started")
	return nil
}

// Stop synchronously releases the interception resource. When it
// returns, no callback can fire anymore.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil
	}
	s.cancel()
	err := s.backend.Close()
	s.active = false
	logger.Info("Interception session stopped")
	return err
}

// Active reports whether the session currently holds the resource.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// handleEvent is the single designated entry point for raw pointer
// events. It runs on the backend's capture goroutine for every
// down/up/dragged/moved event from any device, so every path through it
// is O(1) relative to buffer size and takes no lock across the remap
// math.
func (s *Session) handleEvent(ev pointer.Event) {
	start := time.Now()

	// Geometry is queried fresh for each event; displays can move or
	// disconnect between events.
	geom, geomErr := s.displays.Geometry()
	if geomErr != nil {
		// Degenerate zero geometry makes Decide fall back to a drop
		// for the touch device rather than failing the pipeline.
		geom = display.Geometry{}
	}

	learned, haveLearned := s.identity.Learned()
	st := DecideState{
		Calibration: s.machine.Current(),
		Learned:     learned,
		HaveLearned: haveLearned,
		Excluded:    s.identity.Excluded(),
		Displays:    geom,
	}

	d := Decide(st, ev)

	if d.Learn {
		s.identity.Learn(ev.Device)
		// First-events from two devices can race here: both snapshot an
		// unlearned identity and both decide to learn. Learn is
		// first-wins, so commit and suppress only on the winner; the
		// loser's event is from some other pointer device.
		if winner, ok := s.identity.Learned(); ok && winner == ev.Device {
			s.machine.Commit()
			if err := s.backend.Suppress(ev.Device); err != nil {
				logger.Errorf("Failed to suppress touch device %d: %v", ev.Device, err)
			}
		} else {
			d = Decision{Action: ActionPass, Outcome: recorder.Suppressed, Classification: device.OtherDevice}
		}
	}

	outcome := d.Outcome
	var remapped *pointer.Event
	switch d.Action {
	case ActionSubstitute:
		sub := ev
		sub.Pos = d.Remapped
		if err := s.backend.Post(sub); err != nil {
			logger.Errorf("Failed to post remapped event: %v", err)
			outcome = recorder.Dropped
			s.repostOriginal(ev)
		} else {
			remapped = &sub
		}
	case ActionPass:
		if outcome == recorder.Dropped {
			// The original must still be seen even though the remap
			// failed; with the device suppressed that means re-posting
			// the unmodified point.
			s.repostOriginal(ev)
		}
	}

	rec := recorder.Record{
		Time:     ev.Time,
		Kind:     ev.Kind,
		Device:   ev.Device,
		Original: ev.Pos,
		Outcome:  outcome,
		Latency:  time.Since(start),
	}
	if remapped != nil {
		p := remapped.Pos
		rec.Remapped = &p
	}
	s.rec.Append(rec)

	if outcome == recorder.Delivered || outcome == recorder.Suppressed {
		s.wd.ReportSuccess()
	} else {
		s.wd.ReportFailure()
	}
}

// repostOriginal passes a suppressed device's event through unmodified.
func (s *Session) repostOriginal(ev pointer.Event) {
	if _, ok := s.identity.Learned(); !ok {
		return
	}
	if err := s.backend.Post(ev); err != nil {
		logger.Debugf("Failed to repost original event: %v", err)
	}
}

// handleError receives interception-layer failures from the backend's
// capture goroutines. They feed the watchdog's health predicate.
func (s *Session) handleError(err error) {
	logger.Warnf("Interception error: %v", err)
	s.wd.ReportFailure()
}
