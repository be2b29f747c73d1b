package scan

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/scanpos/internal/capability"
	"github.com/lehigh-university-libraries/scanpos/internal/capture"
)

// --- Fakes ---

type fakeHandle struct {
	mu     sync.Mutex
	frames []capture.Frame
	err    error
}

func (h *fakeHandle) Frame(context.Context) (capture.Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return capture.Frame{}, h.err
	}
	if len(h.frames) == 0 {
		return capture.Frame{}, capture.ErrNoFrame
	}
	f := h.frames[0]
	h.frames = h.frames[1:]
	return f, nil
}

func (h *fakeHandle) lose() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = capture.ErrDeviceLost
}

type fakeProvider struct {
	mu       sync.Mutex
	fail     map[capture.Facing]error
	gate     chan struct{}
	entered  chan struct{}
	facings  []capture.Facing
	handle   *fakeHandle
	released atomic.Int32
	open     atomic.Int32
	maxOpen  atomic.Int32
}

func newProvider(frames ...capture.Frame) *fakeProvider {
	return &fakeProvider{fail: map[capture.Facing]error{}, handle: &fakeHandle{frames: frames}}
}

func (p *fakeProvider) Acquire(_ context.Context, facing capture.Facing) (capture.Handle, error) {
	p.mu.Lock()
	p.facings = append(p.facings, facing)
	err := p.fail[facing]
	gate, entered := p.gate, p.entered
	p.entered = nil
	p.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	n := p.open.Add(1)
	for {
		m := p.maxOpen.Load()
		if n <= m || p.maxOpen.CompareAndSwap(m, n) {
			break
		}
	}
	return p.handle, nil
}

func (p *fakeProvider) Release(capture.Handle) error {
	p.released.Add(1)
	p.open.Add(-1)
	return nil
}

func (p *fakeProvider) Facings() []capture.Facing {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]capture.Facing(nil), p.facings...)
}

type fakeDetector struct {
	available bool
}

func (d fakeDetector) Available(context.Context) bool { return d.available }

func (d fakeDetector) Detect(_ context.Context, f capture.Frame) ([]capture.Detection, error) {
	if f.Source == "" {
		return nil, nil
	}
	return []capture.Detection{{RawValue: ""}, {RawValue: f.Source, Format: "ean_13"}}, nil
}

type push struct {
	result capture.DecodeResult
	ack    chan struct{}
}

// fakeLibrary delivers pushed results, each from its own goroutine
type fakeLibrary struct {
	results chan push
	resets  atomic.Int32
}

func newLibrary() *fakeLibrary {
	return &fakeLibrary{results: make(chan push)}
}

func (l *fakeLibrary) DecodeContinuously(ctx context.Context, _ capture.Handle, onResult func(capture.DecodeResult)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-l.results:
			go func() {
				onResult(p.result)
				close(p.ack)
			}()
		}
	}
}

func (l *fakeLibrary) Reset() { l.resets.Add(1) }

// send delivers text and waits until the controller is done with it
func (l *fakeLibrary) send(t *testing.T, text string) {
	t.Helper()
	ack := l.deliver(t, text)
	select {
	case <-ack:
	case <-time.After(2 * time.Second):
		t.Fatalf("result %q was not processed", text)
	}
}

func (l *fakeLibrary) deliver(t *testing.T, text string) chan struct{} {
	t.Helper()
	ack := make(chan struct{})
	select {
	case l.results <- push{result: capture.DecodeResult{Text: text, Format: "ean_13"}, ack: ack}:
	case <-time.After(2 * time.Second):
		t.Fatalf("library not running")
	}
	return ack
}

type recorder struct {
	mu    sync.Mutex
	codes []string
	gate  chan struct{}
	seen  chan string
}

func newRecorder() *recorder {
	return &recorder{seen: make(chan string, 16)}
}

func (r *recorder) HandleCode(ctx context.Context, d capture.Detection) error {
	r.mu.Lock()
	r.codes = append(r.codes, d.RawValue)
	gate := r.gate
	r.mu.Unlock()
	r.seen <- d.RawValue
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *recorder) Codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.codes...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func libraryLoader(lib *fakeLibrary, loads *atomic.Int32) *capability.Loader[capture.DecodeLibrary] {
	return capability.NewLoader("wedge", func(context.Context) (capture.DecodeLibrary, error) {
		if loads != nil {
			loads.Add(1)
		}
		return lib, nil
	})
}

func waitCode(t *testing.T, r *recorder) string {
	t.Helper()
	select {
	case code := <-r.seen:
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("no code handled")
		return ""
	}
}

// --- Strategy selection ---

func TestNativeDetectorSession(t *testing.T) {
	provider := newProvider(capture.Frame{}, capture.Frame{Source: "4901234567894"})
	rec := newRecorder()
	c := NewController(provider, fakeDetector{available: true}, nil, rec, Options{FrameInterval: time.Millisecond})

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, "4901234567894", waitCode(t, rec))

	st := c.Status()
	assert.Equal(t, "active", st.State)
	assert.Equal(t, "native", st.Strategy)
	assert.NotEmpty(t, st.SessionID)
	assert.Equal(t, "4901234567894", st.LastCode)
	assert.Equal(t, []capture.Facing{capture.FacingEnvironment}, provider.Facings())

	c.Stop()
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, int32(1), provider.released.Load())
}

func TestFallbackWhenDetectorUnavailable(t *testing.T) {
	provider := newProvider()
	lib := newLibrary()
	var loads atomic.Int32
	rec := newRecorder()
	c := NewController(provider, fakeDetector{available: false}, libraryLoader(lib, &loads), rec, Options{})

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, "fallback", c.Status().Strategy)
	assert.Equal(t, []capture.Facing{capture.FacingAny}, provider.Facings())

	lib.send(t, " 123 ")
	assert.Equal(t, []string{"123"}, rec.Codes())

	c.Stop()
	assert.Equal(t, int32(1), lib.resets.Load())
	assert.Equal(t, int32(1), provider.released.Load())

	// the loaded library is reused
	require.NoError(t, c.Start(context.Background()))
	c.Stop()
	assert.Equal(t, int32(1), loads.Load())
}

func TestFallbackWhenNativeAcquisitionFails(t *testing.T) {
	provider := newProvider()
	provider.fail[capture.FacingEnvironment] = errors.New("rear camera busy")
	c := NewController(provider, fakeDetector{available: true}, libraryLoader(newLibrary(), nil), newRecorder(), Options{})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	assert.Equal(t, "fallback", c.Status().Strategy)
	assert.Equal(t, []capture.Facing{capture.FacingEnvironment, capture.FacingAny}, provider.Facings())
}

func TestStartFailuresOfferManualEntry(t *testing.T) {
	failingLoader := capability.NewLoader("wedge", func(context.Context) (capture.DecodeLibrary, error) {
		return nil, errors.New("device not configured")
	})

	testCases := []struct {
		name     string
		provider func() *fakeProvider
		detector capture.Detector
		library  *capability.Loader[capture.DecodeLibrary]
		target   error
	}{
		{
			name:     "nothing available",
			provider: func() *fakeProvider { return newProvider() },
			detector: fakeDetector{available: false},
			target:   ErrCapabilityUnavailable,
		},
		{
			name:     "library load fails",
			provider: func() *fakeProvider { return newProvider() },
			detector: nil,
			library:  failingLoader,
			target:   capability.ErrLoadFailed,
		},
		{
			name: "every acquisition fails",
			provider: func() *fakeProvider {
				p := newProvider()
				p.fail[capture.FacingEnvironment] = errors.New("denied")
				p.fail[capture.FacingAny] = errors.New("denied")
				return p
			},
			detector: fakeDetector{available: true},
			library:  libraryLoader(newLibrary(), nil),
			target:   ErrAcquisition,
		},
		{
			name: "native acquisition fails without fallback",
			provider: func() *fakeProvider {
				p := newProvider()
				p.fail[capture.FacingEnvironment] = errors.New("denied")
				return p
			},
			detector: fakeDetector{available: true},
			target:   ErrAcquisition,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			provider := tc.provider()
			c := NewController(provider, tc.detector, tc.library, newRecorder(), Options{})

			err := c.Start(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.target)
			assert.True(t, OffersManualEntry(err))
			assert.Equal(t, StateIdle, c.State())
			assert.Equal(t, int32(0), provider.released.Load())
		})
	}
}

func TestOffersManualEntry(t *testing.T) {
	assert.False(t, OffersManualEntry(nil))
	assert.False(t, OffersManualEntry(context.Canceled))
	assert.False(t, OffersManualEntry(ErrStopped))
	assert.True(t, OffersManualEntry(ErrAcquisition))
}

func TestStartTwice(t *testing.T) {
	c := NewController(newProvider(), fakeDetector{available: true}, nil, newRecorder(), Options{})
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)
}

// --- Acceptance ---

func TestDebounce(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	lib := newLibrary()
	rec := newRecorder()
	c := NewController(newProvider(), nil, libraryLoader(lib, nil), rec, Options{Now: clock.Now})
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	lib.send(t, "A")
	clock.Advance(500 * time.Millisecond)
	lib.send(t, "A") // suppressed
	clock.Advance(100 * time.Millisecond)
	lib.send(t, "B")
	clock.Advance(100 * time.Millisecond)
	lib.send(t, "A") // last accepted was B
	clock.Advance(1199 * time.Millisecond)
	lib.send(t, "A") // suppressed
	clock.Advance(time.Millisecond)
	lib.send(t, "A") // exactly 1200ms later

	assert.Equal(t, []string{"A", "B", "A", "A"}, rec.Codes())
}

func TestIgnoresDecodeErrorsAndBlankCodes(t *testing.T) {
	lib := newLibrary()
	rec := newRecorder()
	c := NewController(newProvider(), nil, libraryLoader(lib, nil), rec, Options{})
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	ack := make(chan struct{})
	lib.results <- push{result: capture.DecodeResult{Err: errors.New("no code in frame")}, ack: ack}
	<-ack
	lib.send(t, "   ")

	assert.Empty(t, rec.Codes())
}

func TestOverlappingDetectionsDropped(t *testing.T) {
	lib := newLibrary()
	rec := newRecorder()
	rec.gate = make(chan struct{})
	c := NewController(newProvider(), nil, libraryLoader(lib, nil), rec, Options{})
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	first := lib.deliver(t, "A")
	assert.Equal(t, "A", waitCode(t, rec))

	lib.send(t, "B") // dropped while A is in flight
	close(rec.gate)
	<-first

	lib.send(t, "C")
	assert.Equal(t, []string{"A", "C"}, rec.Codes())
}

// --- Teardown ---

func TestStopIsIdempotent(t *testing.T) {
	provider := newProvider()
	c := NewController(provider, fakeDetector{available: true}, nil, newRecorder(), Options{})

	c.Stop()
	require.NoError(t, c.Start(context.Background()))
	c.Stop()
	c.Stop()

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, int32(1), provider.released.Load())
	select {
	case <-c.Done():
	default:
		t.Fatal("Done should be closed when idle")
	}
}

func TestStopDuringAcquisitionReleasesLateHandle(t *testing.T) {
	provider := newProvider()
	provider.gate = make(chan struct{})
	provider.entered = make(chan struct{})
	c := NewController(provider, fakeDetector{available: true}, nil, newRecorder(), Options{})

	result := make(chan error, 1)
	go func() { result <- c.Start(context.Background()) }()

	<-provider.entered
	assert.Equal(t, StateAcquiring, c.State())
	c.Stop()
	assert.Equal(t, StateIdle, c.State())

	close(provider.gate)
	assert.ErrorIs(t, <-result, ErrStopped)
	assert.Equal(t, int32(1), provider.released.Load())
	assert.Equal(t, StateIdle, c.State())
}

func TestStartRefusedUntilStoppedAcquisitionReleases(t *testing.T) {
	provider := newProvider()
	provider.gate = make(chan struct{})
	provider.entered = make(chan struct{})
	c := NewController(provider, fakeDetector{available: true}, nil, newRecorder(), Options{})

	result := make(chan error, 1)
	go func() { result <- c.Start(context.Background()) }()
	<-provider.entered
	c.Stop()

	// the first acquisition still holds the device
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)

	close(provider.gate)
	assert.ErrorIs(t, <-result, ErrStopped)

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StateActive, c.State())
	c.Stop()

	assert.Equal(t, int32(1), provider.maxOpen.Load())
	assert.Equal(t, int32(0), provider.open.Load())
}

func TestStopWhileFallbackDeviceOpenBlocks(t *testing.T) {
	unblock := make(chan struct{})
	t.Cleanup(func() { close(unblock) })
	wedge := capture.NewWedgeLibraryFunc(func() (io.ReadCloser, error) {
		<-unblock
		return io.NopCloser(strings.NewReader("")), nil
	})
	library := capability.Ready[capture.DecodeLibrary]("wedge", wedge)
	c := NewController(newProvider(), nil, library, newRecorder(), Options{})

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StrategyFallbackLibrary.String(), c.Status().Strategy)

	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on the pending device open")
	}
	assert.Equal(t, StateIdle, c.State())
}

func TestStopDuringHandlerCancelsIt(t *testing.T) {
	lib := newLibrary()
	rec := newRecorder()
	rec.gate = make(chan struct{}) // never opened: the handler waits like a prompt
	c := NewController(newProvider(), nil, libraryLoader(lib, nil), rec, Options{})
	require.NoError(t, c.Start(context.Background()))

	ack := lib.deliver(t, "A")
	waitCode(t, rec)

	c.Stop()
	<-ack
	assert.Equal(t, StateIdle, c.State())
}

func TestDeviceLossEndsSession(t *testing.T) {
	provider := newProvider()
	c := NewController(provider, fakeDetector{available: true}, nil, newRecorder(), Options{FrameInterval: time.Millisecond})
	require.NoError(t, c.Start(context.Background()))
	done := c.Done()

	provider.handle.lose()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after device loss")
	}
	require.Eventually(t, func() bool { return provider.released.Load() == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, StateIdle, c.State())

	c.Stop()
	assert.Equal(t, int32(1), provider.released.Load())
}
