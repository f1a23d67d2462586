package media

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"
)

// MockDevice implements Device for testing.
type MockDevice struct {
	// OpenFunc is called when Open is invoked.
	OpenFunc func(ctx context.Context, c Constraints) (Stream, error)

	mu      sync.Mutex
	calls   []MockCall
	streams []*MockStream
}

// MockCall records an Open invocation.
type MockCall struct {
	Constraints Constraints
	Time        time.Time
}

// NewMockDevice returns a device whose streams serve frame. A nil frame
// serves a small solid image.
func NewMockDevice(frame image.Image) *MockDevice {
	if frame == nil {
		frame = SolidFrame(8, 6)
	}
	return &MockDevice{
		OpenFunc: func(ctx context.Context, c Constraints) (Stream, error) {
			return NewMockStream(frame), nil
		},
	}
}

// FailingDevice returns a device whose Open always fails with err.
func FailingDevice(err error) *MockDevice {
	return &MockDevice{
		OpenFunc: func(ctx context.Context, c Constraints) (Stream, error) {
			return nil, err
		},
	}
}

// Open calls OpenFunc and records the call and any MockStream it returns.
func (m *MockDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Constraints: c, Time: time.Now()})
	fn := m.OpenFunc
	m.mu.Unlock()

	if fn == nil {
		return nil, NewAccessError(AccessNotFound, nil)
	}
	st, err := fn(ctx, c)
	if ms, ok := st.(*MockStream); ok && err == nil {
		m.mu.Lock()
		m.streams = append(m.streams, ms)
		m.mu.Unlock()
	}
	return st, err
}

// Calls returns all recorded Open calls.
func (m *MockDevice) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// Streams returns every MockStream handed out, oldest first.
func (m *MockDevice) Streams() []*MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*MockStream, len(m.streams))
	copy(result, m.streams)
	return result
}

// MockStream implements Stream for testing.
type MockStream struct {
	// FrameFunc is called when Frame is invoked.
	FrameFunc func(ctx context.Context) (image.Image, error)

	tracks []*MockTrack
}

// NewMockStream returns a stream with one video track serving frame.
func NewMockStream(frame image.Image) *MockStream {
	return &MockStream{
		FrameFunc: func(ctx context.Context) (image.Image, error) {
			return frame, nil
		},
		tracks: []*MockTrack{{kind: "video"}},
	}
}

// AddTrack adds another track, e.g. audio.
func (s *MockStream) AddTrack(kind string) *MockTrack {
	t := &MockTrack{kind: kind}
	s.tracks = append(s.tracks, t)
	return t
}

// Tracks implements Stream.
func (s *MockStream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

// Frame implements Stream.
func (s *MockStream) Frame(ctx context.Context) (image.Image, error) {
	if s.FrameFunc == nil {
		return nil, nil
	}
	return s.FrameFunc(ctx)
}

// Stopped reports whether every track was stopped.
func (s *MockStream) Stopped() bool {
	for _, t := range s.tracks {
		if !t.Stopped() {
			return false
		}
	}
	return true
}

// MockTrack implements Track and counts Stop calls.
type MockTrack struct {
	kind  string
	stops atomic.Int32
}

// Kind implements Track.
func (t *MockTrack) Kind() string { return t.kind }

// Stop implements Track.
func (t *MockTrack) Stop() { t.stops.Add(1) }

// Stopped reports whether Stop was called.
func (t *MockTrack) Stopped() bool { return t.stops.Load() > 0 }

// StopCount returns how many times Stop was called.
func (t *MockTrack) StopCount() int { return int(t.stops.Load()) }

// SolidFrame returns a w x h image filled with a single colour.
func SolidFrame(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c := color.RGBA{R: 255, G: 127, B: 0, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// Verify MockDevice implements Device at compile time.
var _ Device = (*MockDevice)(nil)
