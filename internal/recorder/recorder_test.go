package recorder

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touchmapd/touchmapd/internal/geometry"
	"github.com/touchmapd/touchmapd/internal/pointer"
)

func TestFlightRecorder_CapacityBound(t *testing.T) {
	f := New(4, time.Second)

	for i := 0; i < 10; i++ {
		f.Append(Record{Kind: pointer.KindMoved, Original: geometry.Point{X: float64(i)}})
	}

	assert.Equal(t, 4, f.Len())
	assert.Equal(t, 4, f.Capacity())

	recent := f.RecentEntries(10)
	require.Len(t, recent, 4)
	// Most recent first, sequence numbers keep climbing past eviction.
	assert.Equal(t, uint64(10), recent[0].Seq)
	assert.Equal(t, uint64(7), recent[3].Seq)
	assert.Equal(t, 9.0, recent[0].Original.X)
}

func TestFlightRecorder_TotalDroppedSurvivesEviction(t *testing.T) {
	f := New(2, time.Second)

	for i := 0; i < 5; i++ {
		f.Append(Record{Outcome: Dropped})
	}
	f.Append(Record{Outcome: Delivered})
	f.Append(Record{Outcome: Suppressed})

	// Every dropped record has been evicted by now, the counter has not.
	assert.Equal(t, uint64(5), f.TotalDropped())
	assert.Equal(t, 2, f.Len())
}

func TestFlightRecorder_RecentEntriesShorterThanCount(t *testing.T) {
	f := New(8, time.Second)
	f.Append(Record{})
	f.Append(Record{})

	assert.Len(t, f.RecentEntries(5), 2)
	assert.Nil(t, f.RecentEntries(0))
}

func TestFlightRecorder_Snapshot(t *testing.T) {
	f := New(16, 10*time.Second)
	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return base }

	// Three events inside the window, one well before it.
	f.Append(Record{Time: base.Add(-time.Minute)})
	f.Append(Record{Time: base.Add(-5 * time.Second), Latency: 2 * time.Millisecond})
	f.Append(Record{Time: base.Add(-2 * time.Second), Latency: 4 * time.Millisecond, Outcome: Dropped})
	f.Append(Record{Time: base.Add(-time.Second)})

	snap := f.Snapshot(2)
	assert.InDelta(t, 0.3, snap.EventsPerSecond, 1e-9)
	assert.Equal(t, uint64(1), snap.TotalDropped)
	require.NotNil(t, snap.AverageLatencyMs)
	assert.InDelta(t, 3.0, *snap.AverageLatencyMs, 1e-9)
	assert.Len(t, snap.Recent, 2)
	assert.Equal(t, uint64(4), snap.Recent[0].Seq)
}

func TestFlightRecorder_SnapshotWithoutTimingData(t *testing.T) {
	f := New(4, time.Second)
	f.Append(Record{})

	snap := f.Snapshot(1)
	assert.Nil(t, snap.AverageLatencyMs)
}

func TestFlightRecorder_ConcurrentReadWhileWrite(t *testing.T) {
	f := New(64, time.Second)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			f.Append(Record{Outcome: Outcome(i % 3)})
		}
		close(stop)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				snap := f.Snapshot(16)
				assert.LessOrEqual(t, snap.Size, 64)
				_ = f.RecentEntries(8)
			}
		}
	}()

	wg.Wait()
	assert.Equal(t, 64, f.Len())
}
