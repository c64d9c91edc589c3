package web

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cjeanneret/gpcam/internal/gphoto"
	"github.com/cjeanneret/gpcam/internal/logic/capture"
	"github.com/cjeanneret/gpcam/internal/logic/settings"
	"github.com/google/uuid"
)

const (
	// MaxBodyBytes caps POST bodies.
	MaxBodyBytes = 1 << 20
	// DefaultCaptureCooldown is the minimum time between two captures.
	DefaultCaptureCooldown = 2 * time.Second
	// MaxPreviewWidth caps the ?width= parameter of GET /preview.
	MaxPreviewWidth = 8192
)

// SettingRequest is the body of POST /settings.
type SettingRequest struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster  *StatusBroadcaster
	Backend      Backend
	PreviewWidth int
	Cooldown     time.Duration

	runningMu   sync.Mutex
	running     bool
	lastCapture time.Time

	capturesMu sync.RWMutex
	captures   map[string]string // shot id -> file path

	staticFS fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If backend is nil, camera routes return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, backend Backend, previewWidth int, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:  broadcaster,
		Backend:      backend,
		PreviewWidth: previewWidth,
		Cooldown:     DefaultCaptureCooldown,
		captures:     make(map[string]string),
		staticFS:     staticFS,
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleDevices handles GET /devices.
func (h *Handlers) HandleDevices(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	devices, err := h.Backend.Devices()
	if err != nil {
		h.fail(w, err)
		return
	}
	if devices == nil {
		devices = []gphoto.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// HandleSummary handles GET /summary.
func (h *Handlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	text, err := h.Backend.Summary()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"text":   text,
		"fields": gphoto.ParseSummary(text),
	})
}

// HandleSettings handles GET /settings.
func (h *Handlers) HandleSettings(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	list, err := h.Backend.Settings()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleSettingValue handles GET /settings/value?path=...
func (h *Handlers) HandleSettingValue(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	s, err := h.Backend.Setting(path)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleSetSetting handles POST /settings: one value, committed at once.
func (h *Handlers) HandleSetSetting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	var req SettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	if !h.ready(w) {
		return
	}
	if err := h.Backend.Set(req.Path, req.Value); err != nil {
		h.fail(w, err)
		return
	}
	h.Broadcaster.BroadcastMsg("Set " + req.Path + " = " + req.Value)
	s, err := h.Backend.Setting(req.Path)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleCapture handles POST /capture. The picture is taken before the
// response is written; its id names it under GET /captures/{id}.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.ready(w) {
		return
	}

	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "capture already in progress", http.StatusConflict)
		return
	}
	if !h.lastCapture.IsZero() && time.Since(h.lastCapture) < h.Cooldown {
		h.runningMu.Unlock()
		http.Error(w, "too many captures, retry later", http.StatusTooManyRequests)
		return
	}
	h.running = true
	h.runningMu.Unlock()

	defer func() {
		h.runningMu.Lock()
		h.running = false
		h.lastCapture = time.Now()
		h.runningMu.Unlock()
	}()

	h.Broadcaster.BroadcastMsg("Capturing")
	shot, err := h.Backend.Capture(r.Context())
	if err != nil {
		h.Broadcaster.Broadcast("error", "Capture failed: "+err.Error())
		log.Printf("capture failed: %v", err)
		h.fail(w, err)
		return
	}

	h.capturesMu.Lock()
	h.captures[shot.ID] = shot.Path
	h.capturesMu.Unlock()

	h.Broadcaster.BroadcastMsg("Captured " + shot.Path)
	writeJSON(w, http.StatusCreated, map[string]string{"id": shot.ID})
}

// HandleCaptureFile handles GET /captures/{id}.
func (h *Handlers) HandleCaptureFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid capture id", http.StatusBadRequest)
		return
	}
	h.capturesMu.RLock()
	path, ok := h.captures[id]
	h.capturesMu.RUnlock()
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, path)
}

// HandlePreview handles GET /preview[?width=N] with one live-view frame.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	width := h.PreviewWidth
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > MaxPreviewWidth {
			http.Error(w, "width must be between 0 and 8192", http.StatusBadRequest)
			return
		}
		width = n
	}
	if !h.ready(w) {
		return
	}
	frame, err := h.Backend.Preview()
	if err != nil {
		h.fail(w, err)
		return
	}
	if frame, err = capture.Downscale(frame, width); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(frame)))
	w.Write(frame)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handlers) ready(w http.ResponseWriter) bool {
	if h.Backend == nil {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// fail maps a camera error to a status code.
func (h *Handlers) fail(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, gphoto.ErrPathNotFound):
		return http.StatusNotFound
	case errors.Is(err, gphoto.ErrTypeMismatch), errors.Is(err, settings.ErrReadOnly):
		return http.StatusBadRequest
	case errors.Is(err, gphoto.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, gphoto.ErrState),
		gphoto.IsCode(err, gphoto.ErrorCameraBusy),
		gphoto.IsCode(err, gphoto.ErrorIOLock):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: encode response: %v", err)
	}
}
