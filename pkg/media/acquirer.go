// Package media acquires images for recognition, either from a selected file
// or as a snapshot of a live camera stream.
//
// An Acquirer owns at most one capture Session at a time. A session is
// released (every track stopped) exactly once, whether it ends by snapshot,
// explicit close, a newer open, or Shutdown.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-fishid/internal/log"
)

// DefaultJPEGQuality is the snapshot encoding quality.
const DefaultJPEGQuality = 90

// State is the acquisition state.
type State int

const (
	StateIdle State = iota
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Session is an open capture stream. It is only created by an Acquirer.
type Session struct {
	id          string
	constraints Constraints
	stream      Stream
	openedAt    time.Time
	owner       *Acquirer

	// ctx is cancelled on release so in-flight frame reads stop.
	ctx    context.Context
	cancel context.CancelFunc

	once   sync.Once
	closed atomic.Bool
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Facing returns the requested camera direction.
func (s *Session) Facing() Facing { return s.constraints.Facing }

// Constraints returns the constraints the session was opened with.
func (s *Session) Constraints() Constraints { return s.constraints }

// OpenedAt returns when the stream was opened.
func (s *Session) OpenedAt() time.Time { return s.openedAt }

// Closed reports whether the session has been released.
func (s *Session) Closed() bool { return s.closed.Load() }

// Close releases the session. It is idempotent and never fails.
func (s *Session) Close() {
	if s.owner != nil {
		s.owner.CloseCapture(s)
		return
	}
	s.release()
}

func (s *Session) release() bool {
	released := false
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
		for _, t := range s.stream.Tracks() {
			t.Stop()
		}
		released = true
	})
	return released
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithQuality sets the JPEG quality (1-100) used for snapshots.
func WithQuality(q int) Option {
	return func(a *Acquirer) {
		if q >= 1 && q <= 100 {
			a.quality = q
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Acquirer) {
		if l != nil {
			a.logger = l
		}
	}
}

// Acquirer turns a Device into capture sessions and image payloads.
//
// State changes are serialised by a mutex. Device opens and frame reads run
// outside it, so CloseCapture never waits on a slow camera.
type Acquirer struct {
	device  Device
	quality int
	logger  *slog.Logger

	mu       sync.Mutex
	active   *Session
	shutdown bool
}

// NewAcquirer creates an Acquirer over device.
func NewAcquirer(device Device, opts ...Option) *Acquirer {
	a := &Acquirer{
		device:  device,
		quality: DefaultJPEGQuality,
		logger:  log.Component("media"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns StateCapturing while a session is open.
func (a *Acquirer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active != nil {
		return StateCapturing
	}
	return StateIdle
}

// Active returns the open session, or nil.
func (a *Acquirer) Active() *Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// OpenCapture opens a live stream: 1280x720 rear camera when preferMobile,
// 640x480 front camera otherwise. An existing session is closed first. On
// failure the acquirer is left idle and the error is a *DeviceError.
func (a *Acquirer) OpenCapture(ctx context.Context, preferMobile bool) (*Session, error) {
	a.mu.Lock()
	if a.shutdown {
		a.mu.Unlock()
		return nil, ErrShutdown
	}
	prev := a.active
	a.active = nil
	a.mu.Unlock()

	if prev != nil {
		a.logger.Debug("closing previous session", "session", prev.id)
		prev.release()
	}

	c := ConstraintsFor(preferMobile)
	stream, err := a.device.Open(ctx, c)
	if err != nil {
		de := classify(err)
		a.logger.Warn("camera open failed", "facing", c.Facing, "reason", de.Reason, "error", err)
		return nil, de
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:          uuid.NewString(),
		constraints: c,
		stream:      stream,
		openedAt:    time.Now(),
		owner:       a,
		ctx:         sctx,
		cancel:      cancel,
	}

	a.mu.Lock()
	if a.shutdown {
		a.mu.Unlock()
		s.release()
		return nil, ErrShutdown
	}
	// a concurrent open may have won the race; the newest session wins
	raced := a.active
	a.active = s
	a.mu.Unlock()

	if raced != nil {
		raced.release()
	}

	a.logger.Info("capture opened", "session", s.id, "facing", c.Facing,
		"width", c.Width, "height", c.Height)
	return s, nil
}

// CaptureFrame snapshots the session's current frame as a JPEG capture
// payload and closes the session. It fails with ErrNoActiveSession when s is
// not the open session, is closed while the frame is read, or has no frame
// yet; in the last case the session stays open for a retry.
func (a *Acquirer) CaptureFrame(ctx context.Context, s *Session) (Payload, error) {
	if s == nil || !a.isActive(s) {
		return Payload{}, ErrNoActiveSession
	}

	fctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	img, err := s.stream.Frame(fctx)
	if s.Closed() {
		return Payload{}, ErrNoActiveSession
	}
	if err != nil {
		if errors.Is(err, ErrNoActiveSession) {
			return Payload{}, err
		}
		return Payload{}, fmt.Errorf("media: read frame: %w", err)
	}
	if img == nil || img.Bounds().Empty() {
		return Payload{}, ErrNoActiveSession
	}

	data, err := a.encode(img)
	if err != nil {
		return Payload{}, err
	}

	a.CloseCapture(s)
	a.logger.Info("frame captured", "session", s.id, "bytes", len(data),
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	return Payload{data: data, mimeType: "image/jpeg", source: SourceCapture}, nil
}

func (a *Acquirer) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: a.quality}); err != nil {
		return nil, fmt.Errorf("media: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// CloseCapture releases s. Closing a nil, closed or superseded session is a
// no-op. It never fails.
func (a *Acquirer) CloseCapture(s *Session) {
	if s == nil {
		return
	}
	a.mu.Lock()
	if a.active == s {
		a.active = nil
	}
	a.mu.Unlock()

	if s.release() {
		a.logger.Debug("capture closed", "session", s.id)
	}
}

// WithCapture opens a session, runs fn, and releases the session however fn
// returns.
func (a *Acquirer) WithCapture(ctx context.Context, preferMobile bool, fn func(*Session) error) error {
	s, err := a.OpenCapture(ctx, preferMobile)
	if err != nil {
		return err
	}
	defer a.CloseCapture(s)
	return fn(s)
}

// Snapshot opens a session, captures one frame and releases the session.
func (a *Acquirer) Snapshot(ctx context.Context, preferMobile bool) (Payload, error) {
	var p Payload
	err := a.WithCapture(ctx, preferMobile, func(s *Session) error {
		var err error
		p, err = a.CaptureFrame(ctx, s)
		return err
	})
	return p, err
}

// Shutdown releases any open session. Later opens fail with ErrShutdown.
func (a *Acquirer) Shutdown() {
	a.mu.Lock()
	a.shutdown = true
	s := a.active
	a.active = nil
	a.mu.Unlock()

	if s != nil {
		s.release()
		a.logger.Info("capture released on shutdown", "session", s.id)
	}
}

func (a *Acquirer) isActive(s *Session) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active == s && !s.Closed()
}
