package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"syscall"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-fishid/internal/log"
	"github.com/teslashibe/go-fishid/pkg/media"
)

// source is one opened capture device.
type source interface {
	SetSize(width, height, fps int)
	// Read returns the next frame. ok is false when the device produced no
	// frame this time.
	Read() (img image.Image, ok bool, err error)
	Close() error
}

// gocvSource reads frames from an OpenCV VideoCapture.
type gocvSource struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

func openGocv(index int) (source, error) {
	vc, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("device %d did not open", index)
	}
	return &gocvSource{vc: vc, mat: gocv.NewMat()}, nil
}

func (s *gocvSource) SetSize(width, height, fps int) {
	if width > 0 && height > 0 {
		s.vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		s.vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	if fps > 0 {
		s.vc.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (s *gocvSource) Read() (image.Image, bool, error) {
	if !s.vc.Read(&s.mat) || s.mat.Empty() {
		return nil, false, nil
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return nil, false, fmt.Errorf("convert frame: %w", err)
	}
	return img, true, nil
}

func (s *gocvSource) Close() error {
	s.mat.Close()
	return s.vc.Close()
}

// Option configures a Device.
type Option func(*Device)

// WithConfig sets the camera configuration.
func WithConfig(cfg Config) Option {
	return func(d *Device) {
		d.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) {
		if l != nil {
			d.logger = l
		}
	}
}

// Device is a media.Device backed by local cameras. The facing preference
// selects the device index; width and height are requested from the driver.
type Device struct {
	config Config
	mu     sync.RWMutex

	open   func(index int) (source, error)
	probe  func(index int) media.AccessKind
	logger *slog.Logger
}

// NewDevice creates a local camera device.
func NewDevice(opts ...Option) *Device {
	d := &Device{
		config: DefaultConfig(),
		open:   openGocv,
		probe:  probeDevice,
		logger: log.Component("camera"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// GetConfig returns the current configuration.
func (d *Device) GetConfig() Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// SetConfig validates and replaces the configuration. Open streams keep the
// settings they were opened with.
func (d *Device) SetConfig(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	d.mu.Lock()
	d.config = cfg
	d.mu.Unlock()
	return nil
}

// Open implements media.Device.
func (d *Device) Open(ctx context.Context, c media.Constraints) (media.Stream, error) {
	cfg := d.GetConfig()

	index := cfg.UserDevice
	if c.Facing == media.FacingEnvironment {
		index = cfg.EnvironmentDevice
	}

	if cfg.OpenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.OpenTimeout)
		defer cancel()
	}

	type result struct {
		src source
		err error
	}
	ch := make(chan result, 1)
	go func() {
		src, err := d.open(index)
		ch <- result{src, err}
	}()

	var src source
	select {
	case r := <-ch:
		if r.err != nil {
			kind := d.probe(index)
			d.logger.Warn("open failed", "device", index, "kind", kind, "error", r.err)
			return nil, media.NewAccessError(kind, r.err)
		}
		src = r.src
	case <-ctx.Done():
		// the driver call cannot be interrupted; close whatever it returns
		go func() {
			if r := <-ch; r.src != nil {
				r.src.Close()
			}
		}()
		return nil, media.NewAccessError(media.AccessOther, ctx.Err())
	}

	src.SetSize(c.Width, c.Height, cfg.Framerate)

	if !warmup(ctx, src, cfg.WarmupFrames) {
		src.Close()
		return nil, media.NewAccessError(media.AccessNotReadable,
			fmt.Errorf("device %d opened but produced no frames", index))
	}

	d.logger.Info("camera opened", "device", index, "facing", c.Facing,
		"width", c.Width, "height", c.Height)

	s := &stream{src: src, index: index}
	s.track = &videoTrack{s: s}
	return s, nil
}

// warmup discards n frames and reports whether at least one was readable.
func warmup(ctx context.Context, src source, n int) bool {
	if n < 1 {
		n = 1
	}
	got := false
	for i := 0; i < n && ctx.Err() == nil; i++ {
		if _, ok, err := src.Read(); ok && err == nil {
			got = true
		}
	}
	return got
}

// probeDevice guesses why a device index could not be opened. OpenCV only
// reports failure, so on Linux the device node is inspected directly.
func probeDevice(index int) media.AccessKind {
	if runtime.GOOS != "linux" {
		return media.AccessOther
	}
	f, err := os.Open(fmt.Sprintf("/dev/video%d", index))
	switch {
	case err == nil:
		f.Close()
		return media.AccessNotReadable
	case errors.Is(err, fs.ErrNotExist):
		return media.AccessNotFound
	case errors.Is(err, fs.ErrPermission):
		return media.AccessPermissionDenied
	case errors.Is(err, syscall.EBUSY):
		return media.AccessNotReadable
	}
	return media.AccessOther
}

// stream is an open local camera. Reads and close are serialised, so a
// close issued during a read completes once that frame is in.
type stream struct {
	mu     sync.Mutex
	src    source
	index  int
	closed bool
	track  *videoTrack
}

func (s *stream) Tracks() []media.Track {
	return []media.Track{s.track}
}

func (s *stream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, media.ErrNoActiveSession
	}
	img, ok, err := s.src.Read()
	if err != nil {
		return nil, fmt.Errorf("camera: read device %d: %w", s.index, err)
	}
	if !ok {
		return nil, nil
	}
	return img, nil
}

func (s *stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.src.Close()
}

type videoTrack struct {
	s *stream
}

func (t *videoTrack) Kind() string { return "video" }

func (t *videoTrack) Stop() { t.s.close() }

// Verify Device implements media.Device at compile time.
var _ media.Device = (*Device)(nil)
