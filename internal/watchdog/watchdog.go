// Package watchdog monitors the health of the live interception
// session. A session that silently stops delivering events is invisible
// to the user until they touch the screen and nothing happens, so the
// watchdog detects that condition and commands a disable/recreate
// cycle, rate-limited to avoid thrashing the OS resource.
package watchdog

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/touchmapd/touchmapd/internal/logger"
)

// Defaults for the open-question constants: how many consecutive
// unhealthy checks make an episode, how often checks run and the
// minimum spacing between commanded recreates.
const (
	DefaultUnhealthyThreshold = 3
	DefaultCheckInterval      = 5 * time.Second
	DefaultRecreateCooldown   = 30 * time.Second
)

// State is the diagnostics view of the watchdog.
type State struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastHealthy         time.Time `json:"last_healthy"`
	DisableCount        uint64    `json:"disable_count"`
	Healthy             bool      `json:"healthy"`
}

// Watchdog accumulates per-interval success/failure reports from the
// interception session and evaluates the health predicate on Check.
// Reports arrive from the interception goroutine; Check runs on the
// coordinator's timer. Counters are atomics so the hot path never
// takes the state lock.
type Watchdog struct {
	successes atomic.Uint64 // events processed since last check
	failures  atomic.Uint64 // delivery failures since last check

	mu           sync.Mutex
	threshold    int
	cooldown     time.Duration
	consecutive  int
	lastHealthy  time.Time
	disableCount uint64
	inEpisode    bool
	lastRecreate time.Time
	onUnhealthy  func()
}

// New creates a watchdog. onUnhealthy is invoked (from Check's caller)
// once per detected episode; it is expected to tear down and recreate
// the interception session.
func New(threshold int, cooldown time.Duration, onUnhealthy func()) *Watchdog {
	if threshold <= 0 {
		threshold = DefaultUnhealthyThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultRecreateCooldown
	}
	return &Watchdog{
		threshold:   threshold,
		cooldown:    cooldown,
		lastHealthy: time.Now(),
		onUnhealthy: onUnhealthy,
	}
}

// ReportSuccess records one successfully processed event.
func (w *Watchdog) ReportSuccess() {
	w.successes.Add(1)
}

// ReportFailure records one failed delivery or interception error.
func (w *Watchdog) ReportFailure() {
	w.failures.Add(1)
}

// Check evaluates the health predicate for the interval that just
// ended: the tap is healthy if at least one event was processed, or if
// nothing was attempted at all. Absence of activity is not unhealthy;
// only activity with zero deliveries is. Returns true when this check
// detected a new unhealthy episode and commanded a recreate.
func (w *Watchdog) Check(now time.Time) bool {
	successes := w.successes.Swap(0)
	failures := w.failures.Swap(0)

	w.mu.Lock()
	defer w.mu.Unlock()

	if successes > 0 || failures == 0 {
		w.consecutive = 0
		w.inEpisode = false
		if successes > 0 {
			w.lastHealthy = now
		}
		return false
	}

	w.consecutive++
	if w.consecutive < w.threshold {
		return false
	}
	if !w.lastRecreate.IsZero() && now.Sub(w.lastRecreate) < w.cooldown {
		logger.Warnf("Tap unhealthy for %d checks but recreate is on cooldown", w.consecutive)
		return false
	}

	w.inEpisode = true
	w.disableCount++
	w.lastRecreate = now
	threshold := w.consecutive
	w.consecutive = 0
	logger.Errorf("Tap went silent (%d consecutive unhealthy checks), commanding session recreate (episode %d)",
		threshold, w.disableCount)

	if w.onUnhealthy != nil {
		// Called outside the interception path; Check runs on the
		// coordinator's timer goroutine.
		go w.onUnhealthy()
	}
	return true
}

// State returns a copy of the current watchdog state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return State{
		ConsecutiveFailures: w.consecutive,
		LastHealthy:         w.lastHealthy,
		DisableCount:        w.disableCount,
		Healthy:             !w.inEpisode,
	}
}
