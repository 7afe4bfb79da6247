package tap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touchmapd/touchmapd/internal/calibration"
	"github.com/touchmapd/touchmapd/internal/device"
	"github.com/touchmapd/touchmapd/internal/display"
	"github.com/touchmapd/touchmapd/internal/geometry"
	"github.com/touchmapd/touchmapd/internal/pointer"
	"github.com/touchmapd/touchmapd/internal/recorder"
	"github.com/touchmapd/touchmapd/internal/watchdog"
)

// fakeBackend records interception side effects and lets the test
// inject events as if they came from the OS.
type fakeBackend struct {
	mu         sync.Mutex
	onEvent    func(pointer.Event)
	onError    func(error)
	suppressed []device.ID
	posted     []pointer.Event
	released   int
	openErr    error
	postErr    error
	closed     bool
}

func (f *fakeBackend) Open(ctx context.Context, onEvent func(pointer.Event), onError func(error)) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onEvent = onEvent
	f.onError = onError
	return nil
}

func (f *fakeBackend) Suppress(id device.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suppressed = append(f.suppressed, id)
	return nil
}

func (f *fakeBackend) Unsuppress() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

func (f *fakeBackend) Post(ev pointer.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.posted = append(f.posted, ev)
	return nil
}

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeBackend) inject(ev pointer.Event) {
	f.mu.Lock()
	cb := f.onEvent
	f.mu.Unlock()
	cb(ev)
}

type fakeProvider struct {
	geom display.Geometry
	err  error
}

func (p *fakeProvider) Geometry() (display.Geometry, error) {
	return p.geom, p.err
}

func newTestSession(backend Backend, provider display.Provider) (*Session, *device.Identity, *calibration.Machine, *recorder.FlightRecorder, *watchdog.Watchdog) {
	identity := device.NewIdentity(nil)
	machine := calibration.NewMachine()
	rec := recorder.New(64, 10*time.Second)
	wd := watchdog.New(3, time.Minute, nil)
	return NewSession(backend, identity, machine, rec, wd, provider), identity, machine, rec, wd
}

func TestSession_LearnsAndRemaps(t *testing.T) {
	backend := &fakeBackend{}
	provider := &fakeProvider{geom: testDisplays()}
	s, identity, machine, rec, _ := newTestSession(backend, provider)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, calibration.Learning, machine.Current())

	// Events from devices {7, 7, 3, 7}.
	backend.inject(pointer.Event{Kind: pointer.KindDown, Device: 7, Pos: geometry.Point{X: 1512, Y: 982}, Time: time.Now()})
	backend.inject(pointer.Event{Kind: pointer.KindDragged, Device: 7, Pos: geometry.Point{X: 0, Y: 0}, Time: time.Now()})
	backend.inject(pointer.Event{Kind: pointer.KindMoved, Device: 3, Pos: geometry.Point{X: 5, Y: 5}, Time: time.Now()})
	backend.inject(pointer.Event{Kind: pointer.KindUp, Device: 7, Pos: geometry.Point{X: 3024, Y: 1964}, Time: time.Now()})

	learned, ok := identity.Learned()
	require.True(t, ok)
	assert.Equal(t, device.ID(7), learned)
	assert.Equal(t, calibration.Calibrated, machine.Current())
	assert.Equal(t, []device.ID{7}, backend.suppressed)

	// The three touch events were substituted, the mouse event was not.
	require.Len(t, backend.posted, 3)
	assert.InDelta(t, 1512, backend.posted[0].Pos.X, 1e-9)
	assert.InDelta(t, 2324, backend.posted[0].Pos.Y, 1e-9)

	recent := rec.RecentEntries(4)
	require.Len(t, recent, 4)
	assert.Equal(t, recorder.Delivered, recent[0].Outcome)
	assert.Equal(t, recorder.Suppressed, recent[1].Outcome)
	assert.Equal(t, recorder.Delivered, recent[2].Outcome)
	assert.Equal(t, recorder.Delivered, recent[3].Outcome)
	assert.NotNil(t, recent[0].Remapped)
	assert.Nil(t, recent[1].Remapped)

	// Sequence numbers increase monotonically.
	assert.Greater(t, recent[0].Seq, recent[1].Seq)
}

func TestSession_OutOfBoundsRepostsOriginal(t *testing.T) {
	backend := &fakeBackend{}
	provider := &fakeProvider{geom: testDisplays()}
	s, _, _, rec, _ := newTestSession(backend, provider)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	backend.inject(pointer.Event{Kind: pointer.KindDown, Device: 7, Pos: geometry.Point{X: 100, Y: 100}, Time: time.Now()})
	backend.inject(pointer.Event{Kind: pointer.KindDragged, Device: 7, Pos: geometry.Point{X: -1, Y: 500}, Time: time.Now()})

	// The out-of-bounds drag passed through unmodified.
	require.Len(t, backend.posted, 2)
	assert.InDelta(t, -1, backend.posted[1].Pos.X, 1e-9)
	assert.InDelta(t, 500, backend.posted[1].Pos.Y, 1e-9)

	assert.Equal(t, uint64(1), rec.TotalDropped())
}

func TestSession_GeometryErrorDropsSafely(t *testing.T) {
	backend := &fakeBackend{}
	provider := &fakeProvider{geom: testDisplays()}
	s, _, _, rec, _ := newTestSession(backend, provider)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	backend.inject(pointer.Event{Kind: pointer.KindDown, Device: 7, Pos: geometry.Point{X: 100, Y: 100}, Time: time.Now()})

	provider.err = errors.New("display disconnected")
	backend.inject(pointer.Event{Kind: pointer.KindDragged, Device: 7, Pos: geometry.Point{X: 100, Y: 100}, Time: time.Now()})

	recent := rec.RecentEntries(1)
	require.Len(t, recent, 1)
	assert.Equal(t, recorder.Dropped, recent[0].Outcome)
	assert.Nil(t, recent[0].Remapped)
}

func TestSession_PostFailureFeedsWatchdog(t *testing.T) {
	backend := &fakeBackend{}
	provider := &fakeProvider{geom: testDisplays()}
	s, _, _, rec, wd := newTestSession(backend, provider)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	backend.postErr = errors.New("uinput gone")
	backend.inject(pointer.Event{Kind: pointer.KindDown, Device: 7, Pos: geometry.Point{X: 100, Y: 100}, Time: time.Now()})

	recent := rec.RecentEntries(1)
	require.Len(t, recent, 1)
	assert.Equal(t, recorder.Dropped, recent[0].Outcome)

	// One failure, zero successes: the interval is unhealthy.
	wd.Check(time.Now())
	assert.Equal(t, 1, wd.State().ConsecutiveFailures)
}

func TestSession_ConcurrentFirstEventsSuppressOnlyWinner(t *testing.T) {
	// Each capture goroutine delivers its device's first event; both can
	// observe an unlearned identity at once. Whichever learns first is
	// the touch device, and only it may be suppressed and substituted.
	for trial := 0; trial < 200; trial++ {
		backend := &fakeBackend{}
		provider := &fakeProvider{geom: testDisplays()}
		s, identity, machine, rec, _ := newTestSession(backend, provider)
		require.NoError(t, s.Start(context.Background()))

		start := make(chan struct{})
		var wg sync.WaitGroup
		for _, id := range []device.ID{1, 2} {
			wg.Add(1)
			go func(id device.ID) {
				defer wg.Done()
				<-start
				backend.inject(pointer.Event{Kind: pointer.KindDown, Device: id, Pos: geometry.Point{X: 100, Y: 100}, Time: time.Now()})
			}(id)
		}
		close(start)
		wg.Wait()

		learned, ok := identity.Learned()
		require.True(t, ok)
		require.Equal(t, calibration.Calibrated, machine.Current())

		require.Len(t, backend.suppressed, 1, "only the learned device may be grabbed")
		require.Equal(t, learned, backend.suppressed[0])

		// Exactly the winner's event was substituted.
		require.Len(t, backend.posted, 1)
		require.Equal(t, learned, backend.posted[0].Device)

		recent := rec.RecentEntries(2)
		require.Len(t, recent, 2)
		outcomes := map[recorder.Outcome]int{}
		for _, r := range recent {
			outcomes[r.Outcome]++
		}
		require.Equal(t, 1, outcomes[recorder.Delivered])
		require.Equal(t, 1, outcomes[recorder.Suppressed])

		require.NoError(t, s.Stop())
	}
}

func TestSession_RecreateKeepsCalibration(t *testing.T) {
	backend := &fakeBackend{}
	provider := &fakeProvider{geom: testDisplays()}
	s, identity, machine, rec, wd := newTestSession(backend, provider)

	require.NoError(t, s.Start(context.Background()))
	backend.inject(pointer.Event{Kind: pointer.KindDown, Device: 7, Pos: geometry.Point{X: 100, Y: 100}, Time: time.Now()})
	require.NoError(t, s.Stop())
	assert.True(t, backend.closed)

	// Watchdog-triggered recreate: a fresh session over a fresh backend
	// keeps the learned identity and re-applies suppression.
	backend2 := &fakeBackend{}
	s2 := NewSession(backend2, identity, machine, rec, wd, provider)
	require.NoError(t, s2.Start(context.Background()))
	defer s2.Stop()

	assert.Equal(t, calibration.Calibrated, machine.Current())
	assert.Equal(t, []device.ID{7}, backend2.suppressed)
}

func TestSession_StartFailureIsRecoverable(t *testing.T) {
	backend := &fakeBackend{openErr: errors.New("tap resource exhausted")}
	provider := &fakeProvider{geom: testDisplays()}
	s, _, machine, _, _ := newTestSession(backend, provider)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.False(t, s.Active())
	assert.Equal(t, calibration.NotStarted, machine.Current())
}
