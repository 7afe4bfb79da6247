// Package recorder implements the flight recorder: a fixed-capacity
// log of observed pointer events plus statistics derived on read. The
// interception goroutine is the only writer; diagnostics consumers read
// concurrently through Snapshot and RecentEntries.
package recorder

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/touchmapd/touchmapd/internal/device"
	"github.com/touchmapd/touchmapd/internal/geometry"
	"github.com/touchmapd/touchmapd/internal/pointer"
)

// DefaultCapacity bounds the ring buffer when the configuration does
// not say otherwise.
const DefaultCapacity = 512

// DefaultRateWindow is the trailing window events-per-second is
// computed over.
const DefaultRateWindow = 10 * time.Second

// Outcome tags what the session did with an observed event.
type Outcome int

const (
	// Delivered: the original event was suppressed and a remapped
	// substitute was posted.
	Delivered Outcome = iota
	// Dropped: a remap was intended but could not be computed; the
	// original event passed through unmodified.
	Dropped
	// Suppressed: observed but intentionally left alone (not the touch
	// device).
	Suppressed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Dropped:
		return "dropped"
	case Suppressed:
		return "suppressed"
	default:
		return "unknown"
	}
}

// Outcomes cross the control socket as their string names.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "delivered":
		*o = Delivered
	case "dropped":
		*o = Dropped
	case "suppressed":
		*o = Suppressed
	default:
		return fmt.Errorf("unknown outcome %q", s)
	}
	return nil
}

// Record is one observed pointer event. Immutable once appended.
type Record struct {
	Seq      uint64          `json:"seq"`
	Time     time.Time       `json:"time"`
	Kind     pointer.Kind    `json:"kind"`
	Device   device.ID       `json:"device"`
	Original geometry.Point  `json:"original"`
	Remapped *geometry.Point `json:"remapped,omitempty"`
	Outcome  Outcome         `json:"outcome"`
	Latency  time.Duration   `json:"latency"`
}

// Snapshot is the derived view of the recorder, recomputed on read.
type Snapshot struct {
	EventsPerSecond  float64  `json:"events_per_second"`
	TotalDropped     uint64   `json:"total_dropped"`
	AverageLatencyMs *float64 `json:"average_latency_ms,omitempty"`
	Size             int      `json:"size"`
	Capacity         int      `json:"capacity"`
	Recent           []Record `json:"recent"`
}

// FlightRecorder is a ring buffer of Records, overwriting the oldest
// entry on overflow. Append is O(1); the lock is held only for the
// copy, never across remap math.
type FlightRecorder struct {
	mu         sync.Mutex
	buf        []Record
	next       int // index the next record is written to
	size       int
	seq        uint64
	dropped    uint64 // accumulator, survives buffer eviction
	rateWindow time.Duration
	now        func() time.Time
}

// New creates a recorder. Non-positive capacity or window fall back to
// the defaults.
func New(capacity int, rateWindow time.Duration) *FlightRecorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if rateWindow <= 0 {
		rateWindow = DefaultRateWindow
	}
	return &FlightRecorder{
		buf:        make([]Record, capacity),
		rateWindow: rateWindow,
		now:        time.Now,
	}
}

// Append stores a record, assigning it the next monotonic sequence
// number, and returns the stored copy.
func (f *FlightRecorder) Append(rec Record) Record {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	rec.Seq = f.seq
	if rec.Time.IsZero() {
		rec.Time = f.now()
	}
	if rec.Outcome == Dropped {
		f.dropped++
	}

	f.buf[f.next] = rec
	f.next = (f.next + 1) % len(f.buf)
	if f.size < len(f.buf) {
		f.size++
	}
	return rec
}

// RecentEntries returns up to count records, most recent first.
func (f *FlightRecorder) RecentEntries(count int) []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recentLocked(count)
}

func (f *FlightRecorder) recentLocked(count int) []Record {
	if count > f.size {
		count = f.size
	}
	if count <= 0 {
		return nil
	}
	out := make([]Record, count)
	for i := 0; i < count; i++ {
		idx := (f.next - 1 - i + len(f.buf)) % len(f.buf)
		out[i] = f.buf[idx]
	}
	return out
}

// Len returns the number of records currently buffered.
func (f *FlightRecorder) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// Capacity returns the fixed buffer capacity.
func (f *FlightRecorder) Capacity() int {
	return len(f.buf)
}

// TotalDropped returns the cumulative dropped count. It is a separate
// accumulator, never reset by buffer eviction.
func (f *FlightRecorder) TotalDropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Snapshot derives the current statistics and the recentCount most
// recent records.
func (f *FlightRecorder) Snapshot(recentCount int) Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	cutoff := now.Add(-f.rateWindow)

	var inWindow int
	var latencies []float64
	for i := 0; i < f.size; i++ {
		idx := (f.next - 1 - i + len(f.buf)) % len(f.buf)
		rec := f.buf[idx]
		if rec.Time.After(cutoff) {
			inWindow++
		}
		if rec.Latency > 0 {
			latencies = append(latencies, float64(rec.Latency)/float64(time.Millisecond))
		}
	}

	snap := Snapshot{
		EventsPerSecond: float64(inWindow) / f.rateWindow.Seconds(),
		TotalDropped:    f.dropped,
		Size:            f.size,
		Capacity:        len(f.buf),
		Recent:          f.recentLocked(recentCount),
	}
	if len(latencies) > 0 {
		mean := stat.Mean(latencies, nil)
		snap.AverageLatencyMs = &mean
	}
	return snap
}
