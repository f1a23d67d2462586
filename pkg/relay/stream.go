package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // frame decoding
	_ "image/png"  // frame decoding
	"sync"

	"github.com/teslashibe/go-fishid/pkg/media"
	"github.com/teslashibe/go-fishid/pkg/protocol"
)

// Errors.
var (
	// ErrNoCamera is returned when no browser camera connects in time.
	ErrNoCamera = errors.New("relay: no camera connected")

	// ErrCameraGone is returned when the camera disconnects while starting.
	ErrCameraGone = errors.New("relay: camera disconnected")
)

// BrowserError is a getUserMedia failure reported by the client.
type BrowserError struct {
	Name    string
	Message string
}

// Error implements the error interface.
func (e *BrowserError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay: browser camera error %s", e.Name)
	}
	return fmt.Sprintf("relay: browser camera error %s: %s", e.Name, e.Message)
}

// AccessKindFor maps a browser DOMException name to an access kind.
func AccessKindFor(name string) media.AccessKind {
	switch name {
	case "NotAllowedError", "SecurityError", "PermissionDeniedError":
		return media.AccessPermissionDenied
	case "NotFoundError", "DevicesNotFoundError", "OverconstrainedError":
		return media.AccessNotFound
	case "NotReadableError", "TrackStartError", "AbortError":
		return media.AccessNotReadable
	}
	return media.AccessOther
}

// stream is a browser camera stream. Frames are kept as received and only
// decoded when asked for.
type stream struct {
	hub *Hub
	cam *CameraConnection

	ready     chan struct{}
	readyOnce sync.Once
	failed    chan *protocol.ErrorData
	done      chan struct{}
	doneOnce  sync.Once

	mu     sync.Mutex
	latest *protocol.FrameData
}

func newStream(h *Hub, cam *CameraConnection) *stream {
	return &stream{
		hub:    h,
		cam:    cam,
		ready:  make(chan struct{}),
		failed: make(chan *protocol.ErrorData, 1),
		done:   make(chan struct{}),
	}
}

func (s *stream) push(f *protocol.FrameData) {
	s.mu.Lock()
	s.latest = f
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *stream) fail(e *protocol.ErrorData) {
	select {
	case s.failed <- e:
	default:
	}
}

func (s *stream) Tracks() []media.Track {
	return []media.Track{&track{s: s}}
}

func (s *stream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-s.done:
		return nil, media.ErrNoActiveSession
	case <-s.cam.gone:
		return nil, media.ErrNoActiveSession
	default:
	}

	s.mu.Lock()
	f := s.latest
	s.mu.Unlock()
	if f == nil {
		return nil, nil
	}

	data, err := f.DecodeFrameData()
	if err != nil {
		return nil, fmt.Errorf("relay: decode frame: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("relay: decode %s frame: %w", f.Format, err)
	}
	return img, nil
}

// closeLocal marks the stream finished without telling the client.
func (s *stream) closeLocal() bool {
	closed := false
	s.doneOnce.Do(func() {
		close(s.done)
		closed = true
	})
	return closed
}

// stop finishes the stream and asks the client to stop its tracks.
func (s *stream) stop() {
	if !s.closeLocal() {
		return
	}
	s.cam.detach(s)

	select {
	case <-s.cam.gone:
		return
	default:
	}
	msg, err := protocol.NewStopMessage()
	if err != nil {
		return
	}
	if err := s.hub.send(s.cam, msg); err != nil {
		s.hub.logger.Debug("stop not delivered", "camera", s.cam.ID, "error", err)
	}
}

type track struct {
	s *stream
}

func (t *track) Kind() string { return "video" }

func (t *track) Stop() { t.s.stop() }
