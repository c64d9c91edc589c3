package web

import (
	"context"
	"errors"

	"github.com/cjeanneret/gpcam/internal/gphoto"
	"github.com/cjeanneret/gpcam/internal/logic/capture"
	"github.com/cjeanneret/gpcam/internal/logic/settings"
)

// Backend is the camera as seen by the HTTP handlers.
type Backend interface {
	Devices() ([]gphoto.Device, error)
	Summary() (string, error)
	Settings() ([]settings.Setting, error)
	Setting(path string) (settings.Setting, error)
	Set(path, value string) error
	Capture(ctx context.Context) (capture.Shot, error)
	Preview() ([]byte, error)
}

// CameraBackend serves an open gphoto camera.
type CameraBackend struct {
	ctx       *gphoto.Context
	cam       *gphoto.Camera
	seq       *capture.Sequence
	outputDir string
}

// NewCameraBackend wraps cam; captures are saved to outputDir.
func NewCameraBackend(ctx *gphoto.Context, cam *gphoto.Camera, outputDir string) *CameraBackend {
	return &CameraBackend{
		ctx:       ctx,
		cam:       cam,
		seq:       capture.NewSequence(cam, cam),
		outputDir: outputDir,
	}
}

func (b *CameraBackend) Devices() ([]gphoto.Device, error) {
	return gphoto.ListDevices(b.ctx)
}

func (b *CameraBackend) Summary() (string, error) {
	return b.cam.Summary()
}

func (b *CameraBackend) Settings() ([]settings.Setting, error) {
	return settings.Snapshot(b.cam)
}

func (b *CameraBackend) Setting(path string) (settings.Setting, error) {
	return settings.Read(b.cam, path)
}

func (b *CameraBackend) Set(path, value string) error {
	_, err := settings.Apply(b.cam, map[string]string{path: value})
	return err
}

// Capture takes one picture into the output directory.
func (b *CameraBackend) Capture(ctx context.Context) (capture.Shot, error) {
	shots, err := b.seq.RunBurst(ctx, capture.BurstParams{Count: 1, OutputDir: b.outputDir})
	if err != nil {
		return capture.Shot{}, err
	}
	if len(shots) != 1 {
		return capture.Shot{}, errors.New("capture produced no picture")
	}
	return shots[0], nil
}

func (b *CameraBackend) Preview() ([]byte, error) {
	return b.cam.PreviewData()
}
