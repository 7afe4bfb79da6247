// Package coordinator owns the remap pipeline: permission gate,
// interception session, calibration, flight recorder and watchdog. It
// is constructed once by the composition root and handed by reference
// to every consumer; there is no global instance.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/touchmapd/touchmapd/internal/calibration"
	"github.com/touchmapd/touchmapd/internal/config"
	"github.com/touchmapd/touchmapd/internal/device"
	"github.com/touchmapd/touchmapd/internal/display"
	"github.com/touchmapd/touchmapd/internal/logger"
	"github.com/touchmapd/touchmapd/internal/permission"
	"github.com/touchmapd/touchmapd/internal/recorder"
	"github.com/touchmapd/touchmapd/internal/tap"
	"github.com/touchmapd/touchmapd/internal/watchdog"
)

// ErrBusy is returned when a state-changing operation (start, stop,
// reset, recreate) is already in flight. Operations never queue; the
// caller retries.
var ErrBusy = errors.New("another operation is in flight")

// ErrNotRunning is returned by operations that require a started
// pipeline.
var ErrNotRunning = errors.New("remap pipeline is not running")

// Session-create retry policy. Creation can fail transiently when
// permission was revoked between grant and create or the OS resource is
// exhausted; failures are fatal for the attempt, never for the process.
const (
	createAttempts     = 5
	createInitialDelay = time.Second
	createMaxDelay     = 30 * time.Second
)

// BackendFactory builds a fresh interception backend. A new backend is
// made for every session (re)creation so a wedged OS resource is fully
// released first.
type BackendFactory func() (tap.Backend, error)

// Status is the read-only diagnostics snapshot consumers pull.
type Status struct {
	Running       bool
	Permission    permission.Status
	Calibration   calibration.State
	SessionActive bool
	LearnedDevice *device.ID
	Recorder      recorder.Snapshot
	Watchdog      watchdog.State
}

// Coordinator serializes every state-changing operation through a
// capacity-one semaphore; concurrent requests fail with ErrBusy.
type Coordinator struct {
	cfg        *config.Config
	gate       *permission.Gate
	identity   *device.Identity
	machine    *calibration.Machine
	rec        *recorder.FlightRecorder
	wd         *watchdog.Watchdog
	displays   display.Provider
	newBackend BackendFactory

	pinned  device.ID
	havePin bool

	op chan struct{}

	mu        sync.Mutex
	session   *tap.Session
	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
	running   bool
}

// New wires a coordinator from its collaborators.
func New(cfg *config.Config, checker permission.TrustChecker, displays display.Provider, factory BackendFactory) *Coordinator {
	excluded := make([]device.ID, 0, len(cfg.Input.ExcludedDevices))
	for _, id := range cfg.Input.ExcludedDevices {
		excluded = append(excluded, device.ID(id))
	}

	c := &Coordinator{
		cfg:        cfg,
		gate:       permission.NewGate(checker),
		identity:   device.NewIdentity(excluded),
		machine:    calibration.NewMachine(),
		rec:        recorder.New(cfg.Recorder.Capacity, time.Duration(cfg.Recorder.RateWindowSeconds)*time.Second),
		displays:   displays,
		newBackend: factory,
		op:         make(chan struct{}, 1),
	}
	if cfg.Input.TouchDevice != "" {
		if id, ok := device.ParseNode(cfg.Input.TouchDevice); ok {
			c.pinned = id
			c.havePin = true
		} else {
			logger.Warnf("Ignoring unparseable touch_device %q", cfg.Input.TouchDevice)
		}
	}
	c.wd = watchdog.New(cfg.Watchdog.UnhealthyThreshold,
		time.Duration(cfg.Watchdog.RecreateCooldownSeconds)*time.Second,
		c.recreateSession)
	return c
}

func (c *Coordinator) tryAcquire() error {
	select {
	case c.op <- struct{}{}:
		return nil
	default:
		return ErrBusy
	}
}

func (c *Coordinator) release() {
	<-c.op
}

// Start blocks until the permission is granted (polling the gate), then
// creates the interception session with backoff and starts the
// watchdog's health checks. Cancel ctx to abandon the wait.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.tryAcquire(); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("remap pipeline already started")
	}
	c.mu.Unlock()

	if err := c.waitForPermission(ctx); err != nil {
		return err
	}

	// A configured device pin skips learning entirely.
	if c.havePin {
		c.identity.Learn(c.pinned)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	session, err := c.createSession(ctx, runCtx)
	if err != nil {
		cancel()
		return err
	}
	if c.havePin {
		c.machine.Commit()
	}

	c.mu.Lock()
	c.runCtx = runCtx
	c.runCancel = cancel
	c.session = session
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.healthLoop(runCtx)

	logger.Info("Remap pipeline started")
	return nil
}

// waitForPermission polls the gate on the configured interval. There is
// no OS push notification for a grant; polling is the mechanism, not a
// fallback.
func (c *Coordinator) waitForPermission(ctx context.Context) error {
	if c.gate.Check() == permission.StatusGranted {
		return nil
	}

	interval := time.Duration(c.cfg.Permission.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = permission.DefaultPollInterval * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Waiting for input access before starting interception")
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("abandoned waiting for input access: %w", ctx.Err())
		case <-ticker.C:
			if c.gate.Check() == permission.StatusGranted {
				return nil
			}
		}
	}
}

// createSession builds a backend and starts a session over it,
// retrying with exponential backoff.
func (c *Coordinator) createSession(ctx, runCtx context.Context) (*tap.Session, error) {
	delay := createInitialDelay
	var lastErr error

	for attempt := 1; attempt <= createAttempts; attempt++ {
		backend, err := c.newBackend()
		if err == nil {
			session := tap.NewSession(backend, c.identity, c.machine, c.rec, c.wd, c.displays)
			if err = session.Start(runCtx); err == nil {
				return session, nil
			}
			backend.Close()
		}
		lastErr = err
		logger.Warnf("Session creation attempt %d/%d failed: %v", attempt, createAttempts, err)

		if attempt == createAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("session creation abandoned: %w", ctx.Err())
		case <-time.After(delay):
		}
		if delay *= 2; delay > createMaxDelay {
			delay = createMaxDelay
		}
	}
	return nil, fmt.Errorf("session creation failed after %d attempts: %w", createAttempts, lastErr)
}

// healthLoop drives the watchdog on a fixed interval for as long as the
// pipeline runs.
func (c *Coordinator) healthLoop(ctx context.Context) {
	defer c.wg.Done()

	interval := time.Duration(c.cfg.Watchdog.CheckIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = watchdog.DefaultCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.wd.Check(now)
		}
	}
}

// recreateSession is the watchdog's unhealthy command: tear the session
// down and build a fresh one. If another operation is in flight the
// recreate is skipped; the watchdog fires again after its cooldown.
func (c *Coordinator) recreateSession() {
	if err := c.tryAcquire(); err != nil {
		logger.Warnf("Skipping session recreate: %v", err)
		return
	}
	defer c.release()

	c.mu.Lock()
	session := c.session
	runCtx := c.runCtx
	running := c.running
	c.mu.Unlock()

	if !running {
		return
	}

	logger.Warn("Recreating interception session on watchdog command")
	if err := session.Stop(); err != nil {
		logger.Errorf("Error stopping unhealthy session: %v", err)
	}

	fresh, err := c.createSession(runCtx, runCtx)
	if err != nil {
		logger.Errorf("Session recreate failed: %v", err)
		return
	}

	c.mu.Lock()
	c.session = fresh
	c.mu.Unlock()
	logger.Info("Interception session recreated")
}

// Stop synchronously tears the pipeline down. The OS resource is
// released before Stop returns; no callback can fire afterwards.
func (c *Coordinator) Stop() error {
	if err := c.tryAcquire(); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	session := c.session
	cancel := c.runCancel
	c.running = false
	c.session = nil
	c.mu.Unlock()

	cancel()
	err := session.Stop()
	c.wg.Wait()

	logger.Info("Remap pipeline stopped")
	return err
}

// Reset relearns the touch device: the session is paused so no
// classification races the clear, identity and calibration return to
// learning, and a fresh session takes over.
func (c *Coordinator) Reset() error {
	if err := c.tryAcquire(); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	session := c.session
	runCtx := c.runCtx
	running := c.running
	c.mu.Unlock()

	if !running {
		return ErrNotRunning
	}

	if err := session.Stop(); err != nil {
		logger.Errorf("Error stopping session for reset: %v", err)
	}

	c.identity.Reset()
	c.machine.Reset()

	fresh, err := c.createSession(runCtx, runCtx)
	if err != nil {
		return fmt.Errorf("failed to restart session after reset: %w", err)
	}

	c.mu.Lock()
	c.session = fresh
	c.mu.Unlock()

	logger.Info("Calibration reset, session restarted")
	return nil
}

// RecheckPermission forces an immediate gate poll, used on
// foreground-like transitions (SIGHUP) and status queries.
func (c *Coordinator) RecheckPermission() permission.Status {
	return c.gate.Check()
}

// Status returns the diagnostics snapshot. Safe to call concurrently
// with the pipeline; it takes no part in operation serialization.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	session := c.session
	running := c.running
	c.mu.Unlock()

	st := Status{
		Running:     running,
		Permission:  c.gate.Status(),
		Calibration: c.machine.Current(),
		Recorder:    c.rec.Snapshot(10),
		Watchdog:    c.wd.State(),
	}
	if session != nil {
		st.SessionActive = session.Active()
	}
	if id, ok := c.identity.Learned(); ok {
		st.LearnedDevice = &id
	}
	return st
}
