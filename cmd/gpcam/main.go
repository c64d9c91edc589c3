package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/cjeanneret/gpcam/internal/config"
	"github.com/cjeanneret/gpcam/internal/debug"
	"github.com/cjeanneret/gpcam/internal/gphoto"
	"github.com/cjeanneret/gpcam/internal/gphoto/libgphoto2"
	"github.com/cjeanneret/gpcam/internal/gphoto/mock"
	"github.com/cjeanneret/gpcam/internal/hw/gpio"
	"github.com/cjeanneret/gpcam/internal/hw/release"
	"github.com/cjeanneret/gpcam/internal/logic/capture"
	"github.com/cjeanneret/gpcam/internal/logic/settings"
	"github.com/cjeanneret/gpcam/internal/web"
)

// options collects the command line actions. They run in declaration order.
type options struct {
	list    bool
	summary bool
	paths   bool
	get     string
	set     assignments
	focus   bool
	capture string
	preview string
	burst   int
	trigger int
	live    int
	webPort int
	watch   string // config file to hot-reload, empty = none
}

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	mockCam := flag.Bool("mock", false, "use a simulated camera instead of libgphoto2")
	var opts options
	flag.BoolVar(&opts.list, "list", false, "list connected cameras and exit")
	flag.BoolVar(&opts.summary, "summary", false, "print the camera summary")
	flag.BoolVar(&opts.paths, "paths", false, "print every configuration widget path")
	flag.StringVar(&opts.get, "get", "", "print the value of the setting at this path")
	flag.Var(&opts.set, "set", "change a setting, path=value (repeatable)")
	flag.BoolVar(&opts.focus, "focus", false, "focus before capturing: half press on a wired release, a discarded shot over USB")
	flag.StringVar(&opts.capture, "capture", "", "capture one picture to this file")
	flag.StringVar(&opts.preview, "preview", "", "save one live-view frame to this file")
	flag.IntVar(&opts.burst, "burst", 0, "capture N pictures into the output directory; -1 uses capture.burst_count")
	flag.IntVar(&opts.trigger, "trigger", 0, "fire N shots with the configured trigger, pictures stay on the card")
	flag.IntVar(&opts.live, "live", 0, "write N live-view frames to the output directory, -1 until interrupted")
	flag.Parse()
	opts.webPort = webPort.port()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *mockCam {
		cfg.Camera.Mock = true
	}
	if opts.webPort > 0 || opts.live < 0 {
		opts.watch = *cfgPath
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Mock camera", cfg.Camera.Mock)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, newLibrary(cfg), opts, os.Stdout); err != nil {
		if ctx.Err() != nil {
			log.Printf("interrupted: %v", err)
			return
		}
		log.Fatalf("%v", err)
	}
}

func newLibrary(cfg *config.Config) gphoto.Library {
	if cfg.Camera.Mock {
		return mock.NewDemo()
	}
	return libgphoto2.New()
}

// run opens the camera described by cfg and performs the requested actions.
func run(ctx context.Context, cfg *config.Config, lib gphoto.Library, opts options, out io.Writer) error {
	gctx, err := gphoto.NewContext(lib)
	if err != nil {
		return err
	}
	defer gctx.Close()

	if opts.list {
		return listDevices(gctx, out)
	}

	debug.Step(1, "Opening camera")
	cam, err := gphoto.Open(gctx, cameraOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer cam.Close()

	// Close the session as soon as a signal arrives; a running native call
	// finishes first.
	stop := context.AfterFunc(ctx, func() {
		debug.Info("Signal received, closing camera")
		if err := cam.Close(); err != nil {
			debug.Error(err)
		}
	})
	defer stop()

	if len(cfg.Settings) > 0 {
		debug.Step(2, "Applying configured settings")
		if _, err := settings.Apply(cam, cfg.Settings); err != nil {
			return fmt.Errorf("apply configured settings: %w", err)
		}
	}

	if opts.watch != "" {
		startWatcher(ctx, opts.watch, cam)
	}

	if opts.summary {
		txt, err := cam.Summary()
		if err != nil {
			return err
		}
		fmt.Fprint(out, txt)
	}
	if opts.paths {
		cfgTree, err := cam.Config()
		if err != nil {
			return err
		}
		paths, err := cfgTree.Paths()
		cfgTree.Close()
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(out, p)
		}
	}
	if len(opts.set) > 0 {
		n, err := settings.Apply(cam, opts.set.values())
		if err != nil {
			return err
		}
		debug.Info("%d setting(s) changed", n)
	}
	if opts.get != "" {
		s, err := settings.Read(cam, opts.get)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s.Value)
	}
	if opts.focus {
		if err := focus(cfg, cam); err != nil {
			return err
		}
	}
	if opts.capture != "" {
		if _, err := cam.CaptureImage(opts.capture); err != nil {
			return err
		}
		fmt.Fprintln(out, opts.capture)
	}
	if opts.preview != "" {
		if _, err := cam.CapturePreview(opts.preview); err != nil {
			return err
		}
		fmt.Fprintln(out, opts.preview)
	}

	seq := capture.NewSequence(cam, nil)
	if opts.trigger > 0 {
		trig, closeTrigger, err := newTrigger(cfg, cam)
		if err != nil {
			return err
		}
		defer closeTrigger()
		seq = capture.NewSequence(cam, trig)
	}

	if opts.burst < 0 {
		opts.burst = cfg.Capture.BurstCount
	}
	if opts.burst > 0 {
		debug.Section("Burst")
		shots, err := seq.RunBurst(ctx, capture.BurstParams{
			Count:     opts.burst,
			Interval:  cfg.Interval(),
			OutputDir: cfg.Capture.OutputDir,
		})
		for _, s := range shots {
			fmt.Fprintln(out, s.Path)
		}
		if err != nil {
			return err
		}
	}
	if opts.trigger > 0 {
		debug.Section("Triggered sequence")
		n, err := seq.RunTriggered(ctx, opts.trigger, cfg.Interval())
		debug.Info("%d shot(s) fired", n)
		if err != nil {
			return err
		}
	}
	if opts.live != 0 {
		if err := runLiveView(ctx, cfg, seq, opts.live); err != nil {
			return err
		}
	}

	if opts.webPort > 0 {
		return serveWeb(ctx, cfg, gctx, cam, opts.webPort)
	}
	return nil
}

func listDevices(gctx *gphoto.Context, out io.Writer) error {
	devices, err := gphoto.ListDevices(gctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		debug.Device(d.Model, d.Port)
		fmt.Fprintf(out, "%-32s %s\n", d.Model, d.Port)
	}
	return nil
}

// cameraOptions translates the camera section of cfg.
func cameraOptions(cfg *config.Config) []gphoto.Option {
	opts := []gphoto.Option{
		gphoto.WithRetries(cfg.Retries()),
		gphoto.WithRemediationDelay(cfg.RemediationDelay()),
	}
	switch {
	case cfg.Camera.NoRemediation:
		opts = append(opts, gphoto.WithRemediator(nil))
	case len(cfg.Camera.RemediationCommand) > 0:
		opts = append(opts, gphoto.WithRemediator(&gphoto.CommandRemediator{
			Name: cfg.Camera.RemediationCommand[0],
			Args: cfg.Camera.RemediationCommand[1:],
		}))
	}
	if cfg.Camera.Model != "" || cfg.Camera.Port != "" {
		opts = append(opts, gphoto.WithPort(cfg.Camera.Model, cfg.Camera.Port))
	}
	return opts
}

// newTrigger selects the shutter release for triggered sequences. The
// returned function releases the hardware it claimed.
func newTrigger(cfg *config.Config, cam *gphoto.Camera) (capture.Trigger, func(), error) {
	switch cfg.Trigger.Type {
	case config.TriggerGPIORelease:
		debug.Value("Mock GPIO", cfg.Trigger.MockGPIO)
		drv, err := gpio.NewDriver(cfg.Trigger.MockGPIO)
		if err != nil {
			return nil, nil, fmt.Errorf("init GPIO failed: %w", err)
		}
		closeDriver := func() {
			if err := drv.Close(); err != nil {
				log.Printf("closing GPIO driver failed: %v", err)
			}
		}
		r, err := release.New(drv, cfg.Trigger.FocusPin, cfg.Trigger.ShutterPin, cfg.FocusDelay(), cfg.ShutterDelay())
		if err != nil {
			closeDriver()
			return nil, nil, err
		}
		debug.Value("Focus pin", cfg.Trigger.FocusPin)
		debug.Value("Shutter pin", cfg.Trigger.ShutterPin)
		return r, closeDriver, nil
	default:
		return cam, func() {}, nil
	}
}

// focus runs autofocus once. Bodies driven over USB only focus as part of a
// capture, so that picture is taken and dropped.
func focus(cfg *config.Config, cam *gphoto.Camera) error {
	trig, closeTrigger, err := newTrigger(cfg, cam)
	if err != nil {
		return err
	}
	defer closeTrigger()
	if r, ok := trig.(*release.Release); ok {
		return r.Focus()
	}
	f, err := cam.CaptureImage("")
	if err != nil {
		return fmt.Errorf("focus: %w", err)
	}
	return f.Close()
}

// runLiveView writes frames to <output_dir>/live.jpg, replacing the file
// each time so a viewer can poll it.
func runLiveView(ctx context.Context, cfg *config.Config, seq *capture.Sequence, frames int) error {
	if frames < 0 {
		frames = 0
	}
	if err := os.MkdirAll(cfg.Capture.OutputDir, 0o755); err != nil {
		return err
	}
	dest := filepath.Join(cfg.Capture.OutputDir, "live.jpg")
	tmp := dest + ".tmp"
	debug.Section("Live view")
	n, err := seq.RunLiveView(ctx, capture.LiveViewParams{
		Frames:   frames,
		Interval: cfg.LiveInterval(),
		Width:    cfg.Capture.PreviewWidth,
	}, func(_ int, frame []byte) error {
		if err := os.WriteFile(tmp, frame, 0o644); err != nil {
			return err
		}
		return os.Rename(tmp, dest)
	})
	debug.Info("Live view: %d frame(s) written to %s", n, dest)
	return err
}

func serveWeb(ctx context.Context, cfg *config.Config, gctx *gphoto.Context, cam *gphoto.Camera, port int) error {
	webAddr := fmt.Sprintf(":%d", port)
	broadcaster := web.NewStatusBroadcaster()
	debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
	defer debug.SetOutput(os.Stdout)

	backend := web.NewCameraBackend(gctx, cam, cfg.Capture.OutputDir)
	srv := web.NewServer(webAddr, broadcaster, backend, cfg.Capture.PreviewWidth)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

// startWatcher re-applies the settings and debug level of every valid
// version of the config file until ctx is done.
func startWatcher(ctx context.Context, path string, cam settings.Camera) {
	w, err := config.Watch(path)
	if err != nil {
		debug.Error(fmt.Errorf("config hot-reload disabled: %w", err))
		return
	}
	go func() {
		defer w.Close()
		err := w.Run(ctx, func(cfg *config.Config) { reload(cfg, cam) })
		if err != nil && !errors.Is(err, context.Canceled) {
			debug.Error(err)
		}
	}()
}

func reload(cfg *config.Config, cam settings.Camera) {
	debug.Init(cfg.Defaults.DebugLevel)
	if len(cfg.Settings) == 0 {
		return
	}
	if _, err := settings.Apply(cam, cfg.Settings); err != nil {
		debug.Error(fmt.Errorf("reload settings: %w", err))
	}
}

// assignments implements flag.Value for repeated -set path=value.
type assignments []string

func (a *assignments) String() string {
	if a == nil {
		return ""
	}
	return strings.Join(*a, ",")
}

func (a *assignments) Set(s string) error {
	if _, _, err := settings.ParseAssignment(s); err != nil {
		return err
	}
	*a = append(*a, s)
	return nil
}

// values returns the assignments as a map; a later one wins for a path.
func (a assignments) values() map[string]string {
	m := make(map[string]string, len(a))
	for _, s := range a {
		p, v, _ := settings.ParseAssignment(s)
		m[p] = v
	}
	return m
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
