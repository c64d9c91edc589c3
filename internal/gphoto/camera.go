package gphoto

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/gpcam/internal/debug"
)

// DefaultRetries is the number of extra attempts made by Init, CaptureImage
// and CapturePreview after a failed native call.
const DefaultRetries = 1

// DefaultRemediationDelay is the wait after a remediation before Init tries again.
const DefaultRemediationDelay = time.Second

// State is the lifecycle phase of a Camera.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type options struct {
	retries          int
	remediator       Remediator
	remediationDelay time.Duration
	model, port      string
	sleep            func(time.Duration)
}

// Option configures a Camera.
type Option func(*options)

// WithRetries sets the number of extra attempts for init, capture and preview.
func WithRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// WithRemediator sets the action run when init reports the device as locked.
// nil disables remediation; the attempt is simply retried.
func WithRemediator(r Remediator) Option {
	return func(o *options) { o.remediator = r }
}

// WithRemediationDelay sets the wait between a remediation and the next init attempt.
func WithRemediationDelay(d time.Duration) Option {
	return func(o *options) { o.remediationDelay = d }
}

// WithPort binds the camera to a discovered device instead of letting
// libgphoto2 pick the first one.
func WithPort(model, port string) Option {
	return func(o *options) { o.model, o.port = model, port }
}

// WithSleep replaces time.Sleep for the remediation delay.
func WithSleep(sleep func(time.Duration)) Option {
	return func(o *options) { o.sleep = sleep }
}

// Camera is a session with one physical device.
//
// Native calls are serialized by an internal lock so a signal handler may
// Close the camera from another goroutine; an in-flight call is not
// interrupted.
type Camera struct {
	lib  Library
	ctx  *Context
	opts options

	mu    sync.Mutex
	h     Handle
	state State
}

// New allocates an uninitialized camera. Call Init before using it, or use Open.
func New(ctx *Context, opts ...Option) (*Camera, error) {
	o := options{
		retries:          DefaultRetries,
		remediator:       DefaultRemediator(),
		remediationDelay: DefaultRemediationDelay,
		sleep:            time.Sleep,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if _, err := ctx.handle(); err != nil {
		return nil, err
	}
	h, code := ctx.lib.CameraNew()
	if _, err := check(ctx.lib, "gp_camera_new", code); err != nil {
		return nil, err
	}
	return &Camera{lib: ctx.lib, ctx: ctx, opts: o, h: h}, nil
}

// Open allocates and initializes a camera. The native camera is freed if
// initialization fails.
func Open(ctx *Context, opts ...Option) (*Camera, error) {
	c, err := New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Init(); err != nil {
		c.free()
		return nil, err
	}
	return c, nil
}

// State returns the current lifecycle phase.
func (c *Camera) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Init connects to the device. It makes up to 1+retries attempts; when an
// attempt reports the device as locked (ErrorIOLock) the remediator runs
// and Init waits before trying again. Any other failure is returned at once
// and the camera stays uninitialized.
func (c *Camera) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateUninitialized {
		return stateErrorf("init: camera is %s", c.state)
	}
	ctxh, err := c.ctx.handle()
	if err != nil {
		return err
	}

	c.state = StateInitializing
	if c.opts.port != "" {
		code := c.lib.CameraSetPort(c.h, ctxh, c.opts.model, c.opts.port)
		if _, err := check(c.lib, "gp_camera_set_port_info", code); err != nil {
			c.state = StateUninitialized
			return fmt.Errorf("select %s on %s: %w", c.opts.model, c.opts.port, err)
		}
	}

	attempts := 1 + c.opts.retries
	code := OK
	for i := 1; i <= attempts; i++ {
		code = c.lib.CameraInit(c.h, ctxh)
		debug.Native("gp_camera_init", code)
		if code == OK {
			c.state = StateReady
			debug.Verbose("camera ready after %d attempt(s)", i)
			return nil
		}
		if code != ErrorIOLock {
			break
		}
		debug.Retry("init", i, attempts, code)
		if i < attempts {
			c.remediate()
		}
	}
	c.state = StateUninitialized
	_, err = Check(c.lib, code)
	return fmt.Errorf("init camera: %w", err)
}

func (c *Camera) remediate() {
	if c.opts.remediator != nil {
		debug.Live("device locked, running remediation")
		if err := c.opts.remediator.Remediate(); err != nil {
			debug.Error(fmt.Errorf("remediation: %w", err))
		}
	}
	if c.opts.remediationDelay > 0 {
		c.opts.sleep(c.opts.remediationDelay)
	}
}

// ready returns the camera and context handles; the caller holds c.mu.
func (c *Camera) ready(op string) (Handle, Handle, error) {
	if c.state != StateReady {
		return 0, 0, stateErrorf("%s: camera is %s", op, c.state)
	}
	ctxh, err := c.ctx.handle()
	if err != nil {
		return 0, 0, err
	}
	return c.h, ctxh, nil
}

// Summary returns the device summary text.
func (c *Camera) Summary() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cam, ctxh, err := c.ready("summary")
	if err != nil {
		return "", err
	}
	txt, code := c.lib.CameraGetSummary(cam, ctxh)
	if _, err := check(c.lib, "gp_camera_get_summary", code); err != nil {
		return "", err
	}
	return txt, nil
}

// SummaryFields parses the "key: value" lines of the summary. Lines
// without a colon are skipped.
func (c *Camera) SummaryFields() (map[string]string, error) {
	txt, err := c.Summary()
	if err != nil {
		return nil, err
	}
	return ParseSummary(txt), nil
}

// ParseSummary parses "key: value" lines of a summary text.
func ParseSummary(txt string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(txt, "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		fields[k] = strings.TrimSpace(v)
	}
	return fields
}

// Config fetches a full configuration snapshot. The caller closes it.
func (c *Camera) Config() (*Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cam, ctxh, err := c.ready("get config")
	if err != nil {
		return nil, err
	}
	root, code := c.lib.CameraGetConfig(cam, ctxh)
	if _, err := check(c.lib, "gp_camera_get_config", code); err != nil {
		return nil, err
	}
	return &Config{root: newWidget(c.lib, root)}, nil
}

// CommitConfig writes the whole snapshot back to the device in one call.
// It succeeds or fails as a whole.
func (c *Camera) CommitConfig(cfg *Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cam, ctxh, err := c.ready("commit config")
	if err != nil {
		return err
	}
	root, err := cfg.root.handle()
	if err != nil {
		return err
	}
	if _, err := check(c.lib, "gp_camera_set_config", c.lib.CameraSetConfig(cam, root, ctxh)); err != nil {
		return fmt.Errorf("commit config: %w", err)
	}
	return nil
}

// retry runs call up to 1+retries times until it returns OK.
func (c *Camera) retry(op string, call func() int) int {
	attempts := 1 + c.opts.retries
	code := OK
	for i := 1; i <= attempts; i++ {
		code = call()
		debug.Native(op, code)
		if code == OK {
			return code
		}
		debug.Retry(op, i, attempts, code)
	}
	return code
}

// CaptureImage takes a still picture and transfers it from the device.
// With dest set the picture is saved there, the file released and nil
// returned; otherwise the caller owns the returned file.
func (c *Camera) CaptureImage(dest string) (*File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cam, ctxh, err := c.ready("capture")
	if err != nil {
		return nil, err
	}
	var path FilePath
	code := c.retry("gp_camera_capture", func() int {
		var code int
		path, code = c.lib.CameraCapture(cam, ctxh, CaptureImage)
		return code
	})
	if _, err := Check(c.lib, code); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	debug.Verbose("captured %s/%s", path.Folder, path.Name)
	f, err := newCameraFile(c.lib, cam, ctxh, path.Folder, path.Name)
	if err != nil {
		return nil, err
	}
	return saveOrReturn(f, dest)
}

// CapturePreview grabs a live-view frame into memory. With dest set the
// frame is saved there and nil returned.
func (c *Camera) CapturePreview(dest string) (*File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cam, ctxh, err := c.ready("preview")
	if err != nil {
		return nil, err
	}
	f, err := newFile(c.lib)
	if err != nil {
		return nil, err
	}
	code := c.retry("gp_camera_capture_preview", func() int {
		return c.lib.CameraCapturePreview(cam, f.h, ctxh)
	})
	if _, err := CheckRelease(c.lib, code, f.release); err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	return saveOrReturn(f, dest)
}

func saveOrReturn(f *File, dest string) (*File, error) {
	if dest == "" {
		return f, nil
	}
	if err := f.Save(dest); err != nil {
		f.release()
		return nil, err
	}
	return nil, f.Close()
}

// PreviewData grabs a live-view frame and returns its bytes.
func (c *Camera) PreviewData() ([]byte, error) {
	f, err := c.CapturePreview("")
	if err != nil {
		return nil, err
	}
	return f.Data(true)
}

// TriggerCapture fires the shutter without waiting for the picture; the
// device keeps the result.
func (c *Camera) TriggerCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cam, ctxh, err := c.ready("trigger")
	if err != nil {
		return err
	}
	_, err = check(c.lib, "gp_camera_trigger_capture", c.lib.CameraTriggerCapture(cam, ctxh))
	return err
}

// Close shuts the device session down and frees the camera. Closing a
// closed camera is a no-op.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return nil
	}
	var err error
	if c.state == StateReady {
		if ctxh, cerr := c.ctx.handle(); cerr == nil {
			_, err = check(c.lib, "gp_camera_exit", c.lib.CameraExit(c.h, ctxh))
		}
	}
	c.state = StateClosed
	c.freeLocked()
	debug.Verbose("camera closed")
	return err
}

func (c *Camera) free() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.freeLocked()
}

func (c *Camera) freeLocked() {
	if c.h == 0 {
		return
	}
	if _, err := check(c.lib, "gp_camera_free", c.lib.CameraFree(c.h)); err != nil {
		debug.Error(err)
	}
	c.h = 0
}
