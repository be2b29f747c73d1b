// Package scan runs barcode scanning sessions.
//
// A Controller moves Idle -> Acquiring -> Active -> Idle. On Start it tries
// the native detector against an environment-facing camera, then a lazily
// loaded fallback decoder against any camera. Accepted codes are handed to
// a CodeHandler one at a time and repeated codes are debounced.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/scanpos/internal/capability"
	"github.com/lehigh-university-libraries/scanpos/internal/capture"
)

const (
	DefaultFrameInterval = 100 * time.Millisecond
	DefaultDebounce      = 1200 * time.Millisecond
)

type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateActive
)

func (s State) String() string {
	switch s {
	case StateAcquiring:
		return "acquiring"
	case StateActive:
		return "active"
	default:
		return "idle"
	}
}

type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyNativeDetector
	StrategyFallbackLibrary
)

func (s Strategy) String() string {
	switch s {
	case StrategyNativeDetector:
		return "native"
	case StrategyFallbackLibrary:
		return "fallback"
	default:
		return "none"
	}
}

// CodeHandler receives accepted codes. It must not call Stop.
type CodeHandler interface {
	HandleCode(ctx context.Context, d capture.Detection) error
}

type Options struct {
	FrameInterval time.Duration
	Debounce      time.Duration
	Now           func() time.Time
}

// Status is a snapshot of the controller
type Status struct {
	State          string    `json:"state"`
	Strategy       string    `json:"strategy"`
	SessionID      string    `json:"session_id,omitempty"`
	LastCode       string    `json:"last_code,omitempty"`
	LastAcceptedAt time.Time `json:"last_accepted_at,omitzero"`
}

type session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	// closed once Start has handled the acquisition result
	acquired chan struct{}

	// guarded by Controller.mu
	strategy Strategy
	handle   capture.Handle
	lib      capture.DecodeLibrary
	started  bool
	busy     bool
	lastCode string
	lastAt   time.Time

	release sync.Once
}

type Controller struct {
	provider capture.Provider
	detector capture.Detector
	library  *capability.Loader[capture.DecodeLibrary]
	handler  CodeHandler

	frameInterval time.Duration
	debounce      time.Duration
	now           func() time.Time

	mu    sync.Mutex
	state State
	sess  *session
	// acquisition of a stopped session that has not returned yet
	pending chan struct{}
}

// NewController wires a controller. detector and library may be nil.
func NewController(provider capture.Provider, detector capture.Detector, library *capability.Loader[capture.DecodeLibrary], handler CodeHandler, opts Options) *Controller {
	c := &Controller{
		provider:      provider,
		detector:      detector,
		library:       library,
		handler:       handler,
		frameInterval: opts.FrameInterval,
		debounce:      opts.Debounce,
		now:           opts.Now,
	}
	if c.frameInterval <= 0 {
		c.frameInterval = DefaultFrameInterval
	}
	if c.debounce <= 0 {
		c.debounce = DefaultDebounce
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Start acquires a device and begins scanning in the background.
// ctx bounds acquisition only; the session runs until Stop or device loss.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.sess != nil {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	if c.pending != nil {
		select {
		case <-c.pending:
			c.pending = nil
		default:
			c.mu.Unlock()
			return fmt.Errorf("%w: stopped session is still releasing the device", ErrAlreadyRunning)
		}
	}
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{
		id:       uuid.NewString(),
		ctx:      sctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		acquired: make(chan struct{}),
	}
	defer close(s.acquired)
	c.sess = s
	c.state = StateAcquiring
	c.mu.Unlock()

	slog.Info("Starting scan session", "session_id", s.id)

	actx, stopAcquire := context.WithCancel(ctx)
	unregister := context.AfterFunc(sctx, stopAcquire)
	strategy, handle, lib, err := c.acquire(actx, s.id)
	unregister()
	stopAcquire()

	c.mu.Lock()
	if c.sess != s {
		c.mu.Unlock()
		slog.Info("Scan stopped during acquisition", "session_id", s.id)
		c.releaseResources(s.id, handle, lib)
		return ErrStopped
	}
	if err != nil {
		c.sess = nil
		c.state = StateIdle
		c.mu.Unlock()
		cancel()
		slog.Warn("Scan session could not start", "session_id", s.id, "err", err)
		return err
	}
	s.strategy = strategy
	s.handle = handle
	s.lib = lib
	s.started = true
	c.state = StateActive
	c.mu.Unlock()

	slog.Info("Scan session active", "session_id", s.id, "strategy", strategy)
	go c.run(s)
	return nil
}

func (c *Controller) acquire(ctx context.Context, id string) (Strategy, capture.Handle, capture.DecodeLibrary, error) {
	if c.provider == nil {
		return StrategyNone, nil, nil, fmt.Errorf("%w: no capture provider", ErrCapabilityUnavailable)
	}

	var nativeErr error
	if c.detector != nil && c.detector.Available(ctx) {
		h, err := c.provider.Acquire(ctx, capture.FacingEnvironment)
		if err == nil {
			return StrategyNativeDetector, h, nil, nil
		}
		if ctx.Err() != nil {
			return StrategyNone, nil, nil, ctx.Err()
		}
		nativeErr = fmt.Errorf("%w: %w", ErrAcquisition, err)
		slog.Warn("Native capture failed, trying fallback decoder", "session_id", id, "err", err)
	} else {
		slog.Debug("Native detector unavailable", "session_id", id)
	}

	if c.library == nil {
		if nativeErr != nil {
			return StrategyNone, nil, nil, nativeErr
		}
		return StrategyNone, nil, nil, ErrCapabilityUnavailable
	}

	lib, err := c.library.Get(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return StrategyNone, nil, nil, ctx.Err()
		}
		return StrategyNone, nil, nil, fmt.Errorf("failed to load fallback decoder: %w", err)
	}

	h, err := c.provider.Acquire(ctx, capture.FacingAny)
	if err != nil {
		lib.Reset()
		if ctx.Err() != nil {
			return StrategyNone, nil, nil, ctx.Err()
		}
		return StrategyNone, nil, nil, fmt.Errorf("%w: %w", ErrAcquisition, err)
	}
	return StrategyFallbackLibrary, h, lib, nil
}

func (c *Controller) run(s *session) {
	defer close(s.done)

	var err error
	switch s.strategy {
	case StrategyNativeDetector:
		err = c.pollNative(s)
	case StrategyFallbackLibrary:
		err = c.runFallback(s)
	}

	if s.ctx.Err() != nil {
		return
	}
	if err == nil {
		err = errors.New("decoder stopped")
	}
	c.fail(s, err)
}

func (c *Controller) pollNative(s *session) error {
	ticker := time.NewTicker(c.frameInterval)
	defer ticker.Stop()

	for {
		if err := c.detectFrame(s); err != nil {
			return err
		}
		select {
		case <-s.ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// detectFrame offers the first non-empty detection in the current frame.
// Only device loss is returned; other misses are retried on the next tick.
func (c *Controller) detectFrame(s *session) error {
	frame, err := s.handle.Frame(s.ctx)
	if err != nil {
		if errors.Is(err, capture.ErrDeviceLost) {
			return err
		}
		return nil
	}

	detections, err := c.detector.Detect(s.ctx, frame)
	if err != nil {
		slog.Debug("Detection failed", "session_id", s.id, "err", err)
		return nil
	}
	for _, d := range detections {
		if strings.TrimSpace(d.RawValue) != "" {
			c.accept(s, d)
			break
		}
	}
	return nil
}

func (c *Controller) runFallback(s *session) error {
	return s.lib.DecodeContinuously(s.ctx, s.handle, func(r capture.DecodeResult) {
		if r.Err != nil || strings.TrimSpace(r.Text) == "" {
			return
		}
		c.accept(s, capture.Detection{RawValue: r.Text, Format: r.Format})
	})
}

// accept runs the handler for d unless the session ended, another code is
// being handled, or d repeats the last accepted code within the debounce window.
func (c *Controller) accept(s *session, d capture.Detection) {
	d.RawValue = strings.TrimSpace(d.RawValue)

	c.mu.Lock()
	if c.sess != s || c.state != StateActive || s.busy {
		c.mu.Unlock()
		return
	}
	now := c.now()
	if d.RawValue == s.lastCode && now.Sub(s.lastAt) < c.debounce {
		c.mu.Unlock()
		slog.Debug("Debounced repeat code", "session_id", s.id, "code", d.RawValue)
		return
	}
	s.lastCode = d.RawValue
	s.lastAt = now
	s.busy = true
	c.mu.Unlock()

	slog.Info("Accepted code", "session_id", s.id, "code", d.RawValue, "format", d.Format)
	if err := c.handler.HandleCode(s.ctx, d); err != nil {
		slog.Error("Failed to handle code", "session_id", s.id, "code", d.RawValue, "err", err)
	}

	c.mu.Lock()
	s.busy = false
	c.mu.Unlock()
}

// fail tears a session down from its own goroutine
func (c *Controller) fail(s *session, err error) {
	c.mu.Lock()
	if c.sess == s {
		c.sess = nil
		c.state = StateIdle
	}
	c.mu.Unlock()

	slog.Warn("Scan session ended", "session_id", s.id, "err", err)
	s.cancel()
	c.releaseSession(s)
}

// Stop ends the current session, if any, and waits for its loop to exit.
// It is safe to call at any time and more than once.
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.sess
	if s == nil {
		c.mu.Unlock()
		return
	}
	c.sess = nil
	c.state = StateIdle
	started := s.started
	if !started {
		// Start releases whatever the in-flight acquisition returns; no new
		// session may acquire until it has
		c.pending = s.acquired
	}
	c.mu.Unlock()

	s.cancel()
	if !started {
		return
	}
	<-s.done
	c.releaseSession(s)
	slog.Info("Scan session stopped", "session_id", s.id)
}

func (c *Controller) releaseSession(s *session) {
	s.release.Do(func() {
		c.releaseResources(s.id, s.handle, s.lib)
	})
}

func (c *Controller) releaseResources(id string, h capture.Handle, lib capture.DecodeLibrary) {
	if h != nil {
		if err := c.provider.Release(h); err != nil {
			slog.Warn("Failed to release capture device", "session_id", id, "err", err)
		}
	}
	if lib != nil {
		lib.Reset()
	}
}

// Done returns a channel closed when the current session's loop exits
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || !c.sess.started {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.sess.done
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{State: c.state.String(), Strategy: StrategyNone.String()}
	if s := c.sess; s != nil {
		st.SessionID = s.id
		st.Strategy = s.strategy.String()
		st.LastCode = s.lastCode
		st.LastAcceptedAt = s.lastAt
	}
	return st
}
