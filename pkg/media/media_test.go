package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-fishid/internal/log"
)

func newTestAcquirer(dev Device) *Acquirer {
	return NewAcquirer(dev, WithLogger(log.Discard()))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, SolidFrame(2, 2)); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestSelectFile(t *testing.T) {
	t.Run("empty reader", func(t *testing.T) {
		_, err := SelectFile(strings.NewReader(""), "image/png")
		if !errors.Is(err, ErrEmptyInput) {
			t.Errorf("err = %v, want ErrEmptyInput", err)
		}
	})

	t.Run("sniffs missing mime", func(t *testing.T) {
		p, err := SelectFile(bytes.NewReader(pngBytes(t)), "")
		if err != nil {
			t.Fatalf("SelectFile: %v", err)
		}
		if p.MIMEType() != "image/png" {
			t.Errorf("MIMEType() = %q, want image/png", p.MIMEType())
		}
		if p.Source() != SourceFile {
			t.Errorf("Source() = %q, want file", p.Source())
		}
	})

	t.Run("keeps given mime", func(t *testing.T) {
		p, err := SelectFile(strings.NewReader("not really an image"), "image/heic")
		if err != nil {
			t.Fatalf("SelectFile: %v", err)
		}
		if p.MIMEType() != "image/heic" {
			t.Errorf("MIMEType() = %q", p.MIMEType())
		}
	})

	t.Run("bytes are copied", func(t *testing.T) {
		p, _ := SelectFile(strings.NewReader("abc"), "image/png")
		b := p.Bytes()
		b[0] = 'z'
		if string(p.Bytes()) != "abc" {
			t.Error("payload was mutated through Bytes()")
		}
	})
}

func TestNewPayload_CopiesInput(t *testing.T) {
	data := []byte("abc")
	p, err := NewPayload(data, "image/jpeg", SourceCapture)
	if err != nil {
		t.Fatalf("NewPayload: %v", err)
	}
	data[0] = 'z'
	if string(p.Bytes()) != "abc" {
		t.Error("payload shares caller's buffer")
	}
	if _, err := NewPayload(nil, "", SourceFile); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("NewPayload(nil) err = %v", err)
	}
}

func TestSelectFilePath(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		file     string
		data     []byte
		wantMIME string
	}{
		{"jpeg extension", "fish.JPG", []byte("whatever"), "image/jpeg"},
		{"unknown extension sniffed", "fish.blob", pngBytes(t), "image/png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, tt.data, 0o600); err != nil {
				t.Fatal(err)
			}
			p, err := SelectFilePath(path)
			if err != nil {
				t.Fatalf("SelectFilePath: %v", err)
			}
			if p.MIMEType() != tt.wantMIME {
				t.Errorf("MIMEType() = %q, want %q", p.MIMEType(), tt.wantMIME)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		if _, err := SelectFilePath(filepath.Join(dir, "nope.png")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestOpenCapture_Constraints(t *testing.T) {
	tests := []struct {
		preferMobile bool
		want         Constraints
	}{
		{true, Constraints{Facing: FacingEnvironment, Width: 1280, Height: 720}},
		{false, Constraints{Facing: FacingUser, Width: 640, Height: 480}},
	}

	for _, tt := range tests {
		dev := NewMockDevice(nil)
		a := newTestAcquirer(dev)

		s, err := a.OpenCapture(context.Background(), tt.preferMobile)
		if err != nil {
			t.Fatalf("OpenCapture(%v): %v", tt.preferMobile, err)
		}
		if got := dev.Calls()[0].Constraints; got != tt.want {
			t.Errorf("OpenCapture(%v) constraints = %+v, want %+v", tt.preferMobile, got, tt.want)
		}
		if s.Facing() != tt.want.Facing {
			t.Errorf("Facing() = %s", s.Facing())
		}
		if s.ID() == "" {
			t.Error("session has no ID")
		}
		if a.State() != StateCapturing {
			t.Errorf("State() = %s, want capturing", a.State())
		}
	}
}

func TestOpenCapture_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"permission", NewAccessError(AccessPermissionDenied, errors.New("NotAllowedError")), ErrPermissionDenied},
		{"not found", NewAccessError(AccessNotFound, nil), ErrDeviceNotFound},
		{"not readable", NewAccessError(AccessNotReadable, nil), ErrDeviceBusy},
		{"other kind", NewAccessError(AccessOther, nil), ErrCameraUnavailable},
		{"untyped", errors.New("boom"), ErrCameraUnavailable},
		{"deadline", context.DeadlineExceeded, ErrCameraUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAcquirer(FailingDevice(tt.err))

			s, err := a.OpenCapture(context.Background(), true)

			if s != nil {
				t.Error("expected nil session")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			var de *DeviceError
			if !errors.As(err, &de) {
				t.Errorf("err is %T, want *DeviceError", err)
			}
			if !errors.Is(err, tt.err) {
				t.Error("underlying error not preserved")
			}
			if a.State() != StateIdle {
				t.Errorf("State() = %s, want idle", a.State())
			}
		})
	}
}

func TestCloseCapture_Idempotent(t *testing.T) {
	dev := NewMockDevice(nil)
	a := newTestAcquirer(dev)
	s, err := a.OpenCapture(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	audio := dev.Streams()[0].AddTrack("audio")

	a.CloseCapture(s)
	a.CloseCapture(s)
	s.Close()

	st := dev.Streams()[0]
	if !st.Stopped() {
		t.Error("tracks not stopped")
	}
	if n := st.tracks[0].StopCount(); n != 1 {
		t.Errorf("video StopCount = %d, want 1", n)
	}
	if audio.StopCount() != 1 {
		t.Errorf("audio StopCount = %d, want 1", audio.StopCount())
	}
	if !s.Closed() {
		t.Error("session not marked closed")
	}
	if a.State() != StateIdle {
		t.Errorf("State() = %s, want idle", a.State())
	}

	a.CloseCapture(nil)
}

func TestCaptureFrame_AutoCloses(t *testing.T) {
	dev := NewMockDevice(SolidFrame(16, 9))
	a := newTestAcquirer(dev)
	s, _ := a.OpenCapture(context.Background(), true)

	p, err := a.CaptureFrame(context.Background(), s)
	if err != nil {
		t.Fatalf("CaptureFrame: %v", err)
	}

	if p.MIMEType() != "image/jpeg" || p.Source() != SourceCapture {
		t.Errorf("payload = %s/%s", p.MIMEType(), p.Source())
	}
	img, err := jpeg.Decode(p.Reader())
	if err != nil {
		t.Fatalf("payload is not a JPEG: %v", err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 9 {
		t.Errorf("bounds = %v", img.Bounds())
	}
	if !s.Closed() || !dev.Streams()[0].Stopped() {
		t.Error("session not released after snapshot")
	}
	if a.State() != StateIdle {
		t.Errorf("State() = %s, want idle", a.State())
	}

	if _, err := a.CaptureFrame(context.Background(), s); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("second capture err = %v, want ErrNoActiveSession", err)
	}
}

func TestCaptureFrame_NoFrameYet(t *testing.T) {
	tests := []struct {
		name  string
		frame image.Image
	}{
		{"nil frame", nil},
		{"zero size", image.NewRGBA(image.Rect(0, 0, 0, 0))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := tt.frame
			dev := &MockDevice{OpenFunc: func(ctx context.Context, c Constraints) (Stream, error) {
				st := NewMockStream(nil)
				st.FrameFunc = func(ctx context.Context) (image.Image, error) { return frame, nil }
				return st, nil
			}}
			a := newTestAcquirer(dev)
			s, _ := a.OpenCapture(context.Background(), false)

			_, err := a.CaptureFrame(context.Background(), s)

			if !errors.Is(err, ErrNoActiveSession) {
				t.Errorf("err = %v, want ErrNoActiveSession", err)
			}
			// still open so the caller can retry
			if a.State() != StateCapturing || s.Closed() {
				t.Error("session should stay open")
			}
		})
	}
}

func TestCaptureFrame_InvalidSessions(t *testing.T) {
	a := newTestAcquirer(NewMockDevice(nil))

	if _, err := a.CaptureFrame(context.Background(), nil); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("nil session err = %v", err)
	}

	s, _ := a.OpenCapture(context.Background(), false)
	a.CloseCapture(s)
	if _, err := a.CaptureFrame(context.Background(), s); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("closed session err = %v", err)
	}

	other := newTestAcquirer(NewMockDevice(nil))
	foreign, _ := other.OpenCapture(context.Background(), false)
	if _, err := a.CaptureFrame(context.Background(), foreign); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("foreign session err = %v", err)
	}
}

func TestCaptureFrame_CloseDuringSnapshot(t *testing.T) {
	started := make(chan struct{})
	dev := &MockDevice{OpenFunc: func(ctx context.Context, c Constraints) (Stream, error) {
		st := NewMockStream(nil)
		st.FrameFunc = func(ctx context.Context) (image.Image, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return st, nil
	}}
	a := newTestAcquirer(dev)
	s, _ := a.OpenCapture(context.Background(), true)

	errc := make(chan error, 1)
	go func() {
		_, err := a.CaptureFrame(context.Background(), s)
		errc <- err
	}()

	<-started
	a.CloseCapture(s)

	select {
	case err := <-errc:
		if !errors.Is(err, ErrNoActiveSession) {
			t.Errorf("err = %v, want ErrNoActiveSession", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot not interrupted by close")
	}
	if !dev.Streams()[0].Stopped() {
		t.Error("tracks not stopped")
	}
}

func TestOpenCapture_ReplacesActiveSession(t *testing.T) {
	dev := NewMockDevice(nil)
	a := newTestAcquirer(dev)

	first, _ := a.OpenCapture(context.Background(), false)
	second, err := a.OpenCapture(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}

	if !first.Closed() || !dev.Streams()[0].Stopped() {
		t.Error("first session not released")
	}
	if second.Closed() || a.Active() != second {
		t.Error("second session should be active")
	}

	// closing the stale session must not touch the new one
	first.Close()
	if a.Active() != second {
		t.Error("stale close released the active session")
	}
}

func TestOpenCapture_FailureAfterActiveLeavesIdle(t *testing.T) {
	calls := 0
	dev := &MockDevice{OpenFunc: func(ctx context.Context, c Constraints) (Stream, error) {
		calls++
		if calls == 1 {
			return NewMockStream(SolidFrame(2, 2)), nil
		}
		return nil, NewAccessError(AccessNotReadable, nil)
	}}
	a := newTestAcquirer(dev)

	first, _ := a.OpenCapture(context.Background(), false)
	_, err := a.OpenCapture(context.Background(), false)

	if !errors.Is(err, ErrDeviceBusy) {
		t.Errorf("err = %v, want ErrDeviceBusy", err)
	}
	if !first.Closed() {
		t.Error("previous session not released")
	}
	if a.State() != StateIdle {
		t.Errorf("State() = %s, want idle", a.State())
	}
}

func TestWithCapture_ReleasesOnError(t *testing.T) {
	dev := NewMockDevice(nil)
	a := newTestAcquirer(dev)
	boom := errors.New("boom")

	err := a.WithCapture(context.Background(), true, func(s *Session) error {
		if s.Closed() {
			t.Error("session closed too early")
		}
		return boom
	})

	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if !dev.Streams()[0].Stopped() || a.State() != StateIdle {
		t.Error("session not released")
	}
}

func TestSnapshot(t *testing.T) {
	dev := NewMockDevice(SolidFrame(4, 4))
	a := newTestAcquirer(dev)

	p, err := a.Snapshot(context.Background(), false)

	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if p.Len() == 0 {
		t.Error("empty payload")
	}
	if !dev.Streams()[0].Stopped() {
		t.Error("stream not stopped")
	}
}

func TestShutdown(t *testing.T) {
	dev := NewMockDevice(nil)
	a := newTestAcquirer(dev)
	s, _ := a.OpenCapture(context.Background(), false)

	a.Shutdown()
	a.Shutdown()

	if !s.Closed() || !dev.Streams()[0].Stopped() {
		t.Error("session not released on shutdown")
	}
	if _, err := a.OpenCapture(context.Background(), false); !errors.Is(err, ErrShutdown) {
		t.Errorf("open after shutdown err = %v", err)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrEmptyInput, "empty"},
		{classify(NewAccessError(AccessPermissionDenied, nil)), "denied"},
		{classify(NewAccessError(AccessNotFound, nil)), "No camera"},
		{classify(NewAccessError(AccessNotReadable, nil)), "in use"},
		{classify(errors.New("x")), "could not be started"},
		{ErrNoActiveSession, "not ready"},
		{errors.New("transfer failed"), "Something went wrong"},
	}

	for _, tt := range tests {
		got := UserMessage(tt.err)
		if !strings.Contains(got, tt.want) {
			t.Errorf("UserMessage(%v) = %q, want it to contain %q", tt.err, got, tt.want)
		}
	}
}
