package capture

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/cjeanneret/gpcam/internal/gphoto"
	"github.com/cjeanneret/gpcam/internal/gphoto/mock"
)

func testFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// mockCamera records captures and serves a fixed preview frame.
type mockCamera struct {
	mu         sync.Mutex
	shots      []string
	frames     int
	frame      []byte
	failAfter  int // fail the capture after this many shots, 0 = never
	previewErr error
}

func (m *mockCamera) CaptureImage(dest string) (*gphoto.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter > 0 && len(m.shots) == m.failAfter {
		return nil, errors.New("camera busy")
	}
	if err := os.WriteFile(dest, []byte("jpeg"), 0o644); err != nil {
		return nil, err
	}
	m.shots = append(m.shots, dest)
	return nil, nil
}

func (m *mockCamera) PreviewData() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.previewErr != nil {
		return nil, m.previewErr
	}
	m.frames++
	return m.frame, nil
}

// mockTrigger counts shutter releases.
type mockTrigger struct {
	mu    sync.Mutex
	count int
	err   error
}

func (m *mockTrigger) TriggerCapture() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.count++
	return nil
}

func TestRunBurst(t *testing.T) {
	cam := &mockCamera{}
	seq := NewSequence(cam, nil)
	dir := filepath.Join(t.TempDir(), "out")

	shots, err := seq.RunBurst(context.Background(), BurstParams{
		Count:     3,
		Interval:  time.Millisecond,
		OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("RunBurst: %v", err)
	}
	if len(shots) != 3 || len(cam.shots) != 3 {
		t.Fatalf("shots = %d, captures = %d, want 3", len(shots), len(cam.shots))
	}
	ids := map[string]bool{}
	for i, s := range shots {
		if ids[s.ID] {
			t.Errorf("duplicate id %s", s.ID)
		}
		ids[s.ID] = true
		if s.Path != cam.shots[i] {
			t.Errorf("shot %d path = %s, captured %s", i, s.Path, cam.shots[i])
		}
		if filepath.Dir(s.Path) != dir || !strings.HasSuffix(s.Path, s.ID+".jpg") {
			t.Errorf("unexpected path %s", s.Path)
		}
		if _, err := os.Stat(s.Path); err != nil {
			t.Error(err)
		}
	}
}

func TestRunBurst_InvalidCount(t *testing.T) {
	seq := NewSequence(&mockCamera{}, nil)
	if _, err := seq.RunBurst(context.Background(), BurstParams{Count: 0, OutputDir: t.TempDir()}); err == nil {
		t.Error("expected error for zero count")
	}
}

func TestRunBurst_ErrorKeepsPreviousShots(t *testing.T) {
	cam := &mockCamera{failAfter: 2}
	seq := NewSequence(cam, nil)

	shots, err := seq.RunBurst(context.Background(), BurstParams{Count: 5, OutputDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "shot 3/5") {
		t.Errorf("error = %v", err)
	}
	if len(shots) != 2 {
		t.Errorf("shots = %d, want 2", len(shots))
	}
}

func TestRunBurst_Cancelled(t *testing.T) {
	cam := &mockCamera{}
	seq := NewSequence(cam, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var shots []Shot
	var err error
	go func() {
		shots, err = seq.RunBurst(ctx, BurstParams{Count: 10, Interval: time.Hour, OutputDir: t.TempDir()})
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunBurst did not stop after cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(shots) != 1 {
		t.Errorf("shots = %d, want 1", len(shots))
	}
}

func TestRunTriggered(t *testing.T) {
	trig := &mockTrigger{}
	seq := NewSequence(&mockCamera{}, trig)

	n, err := seq.RunTriggered(context.Background(), 4, time.Microsecond)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 || trig.count != 4 {
		t.Errorf("fired = %d, trigger count = %d, want 4", n, trig.count)
	}
}

func TestRunTriggered_Errors(t *testing.T) {
	if _, err := NewSequence(&mockCamera{}, nil).RunTriggered(context.Background(), 1, 0); err == nil {
		t.Error("expected error without trigger")
	}

	trig := &mockTrigger{err: errors.New("pin stuck")}
	n, err := NewSequence(&mockCamera{}, trig).RunTriggered(context.Background(), 3, 0)
	if err == nil || n != 0 {
		t.Errorf("fired = %d, err = %v", n, err)
	}
}

func TestRunLiveView_FixedFrames(t *testing.T) {
	cam := &mockCamera{frame: testFrame(t, 64, 48)}
	seq := NewSequence(cam, nil)

	var got [][]byte
	n, err := seq.RunLiveView(context.Background(), LiveViewParams{Frames: 3}, func(i int, f []byte) error {
		if i != len(got)+1 {
			t.Errorf("frame number %d, want %d", i, len(got)+1)
		}
		got = append(got, f)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || len(got) != 3 || cam.frames != 3 {
		t.Errorf("n = %d, delivered = %d, polled = %d, want 3", n, len(got), cam.frames)
	}
	if !bytes.Equal(got[0], cam.frame) {
		t.Error("frame should be passed through unchanged without width")
	}
}

func TestRunLiveView_Downscale(t *testing.T) {
	cam := &mockCamera{frame: testFrame(t, 320, 240)}
	seq := NewSequence(cam, nil)

	_, err := seq.RunLiveView(context.Background(), LiveViewParams{Frames: 1, Width: 80}, func(_ int, f []byte) error {
		img, err := imaging.Decode(bytes.NewReader(f))
		if err != nil {
			return err
		}
		if b := img.Bounds(); b.Dx() != 80 || b.Dy() != 60 {
			t.Errorf("frame size = %dx%d, want 80x60", b.Dx(), b.Dy())
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRunLiveView_UntilCancelled(t *testing.T) {
	cam := &mockCamera{frame: testFrame(t, 16, 16)}
	seq := NewSequence(cam, nil)
	ctx, cancel := context.WithCancel(context.Background())

	n, err := seq.RunLiveView(ctx, LiveViewParams{Interval: time.Millisecond}, func(i int, _ []byte) error {
		if i == 5 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Errorf("unbounded loop should end without error, got %v", err)
	}
	if n != 5 {
		t.Errorf("frames = %d, want 5", n)
	}
}

func TestRunLiveView_Errors(t *testing.T) {
	cam := &mockCamera{previewErr: errors.New("no live view")}
	if _, err := NewSequence(cam, nil).RunLiveView(context.Background(), LiveViewParams{Frames: 2}, func(int, []byte) error { return nil }); err == nil {
		t.Error("expected preview error")
	}

	cam = &mockCamera{frame: testFrame(t, 16, 16)}
	stop := errors.New("sink full")
	n, err := NewSequence(cam, nil).RunLiveView(context.Background(), LiveViewParams{Frames: 5}, func(int, []byte) error { return stop })
	if !errors.Is(err, stop) || n != 1 {
		t.Errorf("n = %d, err = %v", n, err)
	}
}

func TestDownscale(t *testing.T) {
	small := testFrame(t, 100, 50)
	out, err := Downscale(small, 200)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, small) {
		t.Error("narrower frame must be returned unchanged")
	}
	if _, err := Downscale([]byte("not a jpeg"), 10); err == nil {
		t.Error("expected decode error")
	}
}

// The sequence runs unchanged against a gphoto.Camera.
func TestSequence_WithSimulatedCamera(t *testing.T) {
	lib := mock.NewDemo()
	ctx, err := gphoto.NewContext(lib)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()
	cam, err := gphoto.Open(ctx, gphoto.WithRemediator(nil))
	if err != nil {
		t.Fatal(err)
	}
	defer cam.Close()

	seq := NewSequence(cam, cam)
	shots, err := seq.RunBurst(context.Background(), BurstParams{Count: 2, OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range shots {
		data, err := os.ReadFile(s.Path)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(data, lib.ImageData) {
			t.Errorf("%s differs from device image", s.Path)
		}
	}
	if _, err := seq.RunTriggered(context.Background(), 2, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := seq.RunLiveView(context.Background(), LiveViewParams{Frames: 2, Width: 160}, func(int, []byte) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if n := lib.OpenFiles(); n != 0 {
		t.Errorf("open files = %d, want 0", n)
	}
}
