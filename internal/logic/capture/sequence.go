package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/gpcam/internal/debug"
	"github.com/cjeanneret/gpcam/internal/gphoto"
)

// Camera is the part of a gphoto.Camera used by capture sequences.
type Camera interface {
	CaptureImage(dest string) (*gphoto.File, error)
	PreviewData() ([]byte, error)
}

// Trigger fires the shutter without transferring the picture, either over
// USB (gphoto.Camera) or through a wired remote release.
type Trigger interface {
	TriggerCapture() error
}

// Sequence contains high-level logic for photo capture
// (bursts, intervals, live view).
type Sequence struct {
	camera  Camera
	trigger Trigger
}

// NewSequence builds a sequence. trigger may be nil when RunTriggered is not used.
func NewSequence(c Camera, t Trigger) *Sequence {
	return &Sequence{
		camera:  c,
		trigger: t,
	}
}

// BurstParams defines a series of transferred still captures.
type BurstParams struct {
	Count     int           // number of pictures
	Interval  time.Duration // pause between two pictures
	OutputDir string        // destination directory, created if missing
}

// Shot is a picture saved by RunBurst.
type Shot struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// ShotName returns a collision free file name for the n-th picture of a series.
func ShotName(n int, id string) string {
	return fmt.Sprintf("%03d_%s.jpg", n, id)
}

// RunBurst takes p.Count pictures and saves each one to p.OutputDir. On
// error or cancellation the shots saved so far are returned with the error.
func (s *Sequence) RunBurst(ctx context.Context, p BurstParams) ([]Shot, error) {
	if p.Count <= 0 {
		return nil, fmt.Errorf("burst count must be > 0, got %d", p.Count)
	}
	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	shots := make([]Shot, 0, p.Count)
	for i := 1; i <= p.Count; i++ {
		if err := ctx.Err(); err != nil {
			return shots, err
		}
		id := uuid.NewString()
		dest := filepath.Join(p.OutputDir, ShotName(i, id))
		if _, err := s.camera.CaptureImage(dest); err != nil {
			return shots, fmt.Errorf("shot %d/%d: %w", i, p.Count, err)
		}
		debug.Shot(i, p.Count, dest)
		shots = append(shots, Shot{ID: id, Path: dest})

		if i < p.Count {
			if err := wait(ctx, p.Interval); err != nil {
				return shots, err
			}
		}
	}
	return shots, nil
}

// RunTriggered fires the trigger count times, interval apart. The pictures
// stay on the device. It returns how many shots were fired.
func (s *Sequence) RunTriggered(ctx context.Context, count int, interval time.Duration) (int, error) {
	if s.trigger == nil {
		return 0, errors.New("no trigger configured")
	}
	fired := 0
	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			return fired, err
		}
		if err := s.trigger.TriggerCapture(); err != nil {
			return fired, fmt.Errorf("trigger %d/%d: %w", i, count, err)
		}
		fired++
		debug.Live("Triggered shot %d/%d", i, count)
		if i < count {
			if err := wait(ctx, interval); err != nil {
				return fired, err
			}
		}
	}
	return fired, nil
}

// LiveViewParams defines a preview poll loop.
type LiveViewParams struct {
	Frames   int           // number of frames, 0 = until ctx is done
	Interval time.Duration // pause between frames
	Width    int           // downscale frames to this width, 0 = native
}

// FrameSink receives each live-view frame (JPEG bytes), numbered from 1.
type FrameSink func(n int, frame []byte) error

// RunLiveView polls preview frames and hands them to sink. It returns the
// number of frames delivered. Cancellation of ctx ends an unbounded loop
// without error.
func (s *Sequence) RunLiveView(ctx context.Context, p LiveViewParams, sink FrameSink) (int, error) {
	n := 0
	for p.Frames == 0 || n < p.Frames {
		if ctx.Err() != nil {
			break
		}
		frame, err := s.camera.PreviewData()
		if err != nil {
			return n, fmt.Errorf("frame %d: %w", n+1, err)
		}
		if p.Width > 0 {
			if frame, err = Downscale(frame, p.Width); err != nil {
				return n, fmt.Errorf("frame %d: %w", n+1, err)
			}
		}
		n++
		debug.Frame(n, len(frame))
		if err := sink(n, frame); err != nil {
			return n, err
		}
		if p.Frames != 0 && n == p.Frames {
			break
		}
		if err := wait(ctx, p.Interval); err != nil {
			break
		}
	}
	if p.Frames != 0 && n < p.Frames {
		return n, ctx.Err()
	}
	return n, nil
}

// wait pauses for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
