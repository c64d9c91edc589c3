package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/cjeanneret/gpcam/internal/gphoto"
	"github.com/cjeanneret/gpcam/internal/gphoto/mock"
	"github.com/cjeanneret/gpcam/internal/logic/capture"
	"github.com/cjeanneret/gpcam/internal/logic/settings"
	"github.com/google/uuid"
)

// ---------- Fake backend ----------

type fakeBackend struct {
	dir        string
	devices    []gphoto.Device
	devicesErr error
	values     map[string]string
	setErr     error
	captureErr error
	capture    func(ctx context.Context) // called before the shot is written
	preview    []byte
	previewErr error
	shots      int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	return &fakeBackend{
		dir:     t.TempDir(),
		devices: []gphoto.Device{{Model: "Canon EOS 2000D", Port: "usb:001,004"}},
		values:  map[string]string{"/main/imgsettings/iso": "Auto"},
	}
}

func (f *fakeBackend) Devices() ([]gphoto.Device, error) { return f.devices, f.devicesErr }

func (f *fakeBackend) Summary() (string, error) {
	return "Manufacturer: Canon Inc.\nModel: Canon EOS 2000D\n", nil
}

func (f *fakeBackend) Settings() ([]settings.Setting, error) {
	var list []settings.Setting
	for p, v := range f.values {
		list = append(list, settings.Setting{Path: p, Type: "radio", Value: v})
	}
	return list, nil
}

func (f *fakeBackend) Setting(path string) (settings.Setting, error) {
	v, ok := f.values[path]
	if !ok {
		return settings.Setting{}, fmt.Errorf("%s: %w", path, gphoto.ErrPathNotFound)
	}
	return settings.Setting{Path: path, Type: "radio", Value: v}, nil
}

func (f *fakeBackend) Set(path, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	if _, ok := f.values[path]; !ok {
		return fmt.Errorf("set %s: %w", path, gphoto.ErrPathNotFound)
	}
	f.values[path] = value
	return nil
}

func (f *fakeBackend) Capture(ctx context.Context) (capture.Shot, error) {
	if f.capture != nil {
		f.capture(ctx)
	}
	if f.captureErr != nil {
		return capture.Shot{}, f.captureErr
	}
	f.shots++
	id := uuid.NewString()
	path := filepath.Join(f.dir, capture.ShotName(f.shots, id))
	if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
		return capture.Shot{}, err
	}
	return capture.Shot{ID: id, Path: path}, nil
}

func (f *fakeBackend) Preview() ([]byte, error) { return f.preview, f.previewErr }

// ---------- Handler helpers ----------

func newTestHandlers(backend Backend) *Handlers {
	staticFS := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>test</html>")},
	}
	h := NewHandlers(NewStatusBroadcaster(), backend, 0, staticFS)
	h.Cooldown = 0
	return h
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

// ---------- Devices / summary ----------

func TestHandleDevices(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"unsupported", gphoto.ErrUnsupported, http.StatusNotImplemented},
		{"native", &gphoto.NativeError{Code: gphoto.ErrorGeneric, Message: "Unspecified error"}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fb := newFakeBackend(t)
			fb.devicesErr = tc.err
			h := newTestHandlers(fb)
			w := httptest.NewRecorder()
			h.HandleDevices(w, httptest.NewRequest(http.MethodGet, "/devices", nil))

			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
			if tc.err != nil {
				return
			}
			var devices []gphoto.Device
			if err := json.NewDecoder(w.Body).Decode(&devices); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(devices) != 1 || devices[0].Port != "usb:001,004" {
				t.Errorf("devices = %+v", devices)
			}
		})
	}
}

func TestHandleDevices_NoneIsEmptyArray(t *testing.T) {
	fb := newFakeBackend(t)
	fb.devices = nil
	h := newTestHandlers(fb)
	w := httptest.NewRecorder()
	h.HandleDevices(w, httptest.NewRequest(http.MethodGet, "/devices", nil))

	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestHandleSummary(t *testing.T) {
	h := newTestHandlers(newFakeBackend(t))
	w := httptest.NewRecorder()
	h.HandleSummary(w, httptest.NewRequest(http.MethodGet, "/summary", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Text   string            `json:"text"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Fields["Model"] != "Canon EOS 2000D" {
		t.Errorf("Model = %q", resp.Fields["Model"])
	}
	if !strings.HasPrefix(resp.Text, "Manufacturer:") {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestNilBackend(t *testing.T) {
	h := newTestHandlers(nil)
	routes := []struct {
		name    string
		handler http.HandlerFunc
		method  string
		target  string
	}{
		{"devices", h.HandleDevices, http.MethodGet, "/devices"},
		{"summary", h.HandleSummary, http.MethodGet, "/summary"},
		{"settings", h.HandleSettings, http.MethodGet, "/settings"},
		{"value", h.HandleSettingValue, http.MethodGet, "/settings/value?path=/main/x"},
		{"capture", h.HandleCapture, http.MethodPost, "/capture"},
		{"preview", h.HandlePreview, http.MethodGet, "/preview"},
	}
	for _, tc := range routes {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tc.handler(w, httptest.NewRequest(tc.method, tc.target, nil))
			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
			}
		})
	}
}

// ---------- Settings ----------

func TestHandleSettingValue(t *testing.T) {
	cases := []struct {
		name   string
		target string
		want   int
	}{
		{"found", "/settings/value?path=/main/imgsettings/iso", http.StatusOK},
		{"missing_path", "/settings/value", http.StatusBadRequest},
		{"not_found", "/settings/value?path=/main/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandlers(newFakeBackend(t))
			w := httptest.NewRecorder()
			h.HandleSettingValue(w, httptest.NewRequest(http.MethodGet, tc.target, nil))
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestHandleSetSetting(t *testing.T) {
	fb := newFakeBackend(t)
	h := newTestHandlers(fb)
	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w := postJSON(t, h.HandleSetSetting, "/settings", SettingRequest{Path: "/main/imgsettings/iso", Value: "800"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}
	var s settings.Setting
	if err := json.NewDecoder(w.Body).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Value != "800" || fb.values["/main/imgsettings/iso"] != "800" {
		t.Errorf("value = %q, backend %q", s.Value, fb.values["/main/imgsettings/iso"])
	}
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Error("expected a status event")
	}
}

func TestHandleSetSetting_Errors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		setErr error
		want   int
	}{
		{"invalid_json", "not json", nil, http.StatusBadRequest},
		{"missing_path", `{"value":"800"}`, nil, http.StatusBadRequest},
		{"unknown_path", `{"path":"/main/nope","value":"1"}`, nil, http.StatusNotFound},
		{"type_mismatch", `{"path":"/main/imgsettings/iso","value":"x"}`, fmt.Errorf("set: %w", gphoto.ErrTypeMismatch), http.StatusBadRequest},
		{"read_only", `{"path":"/main/imgsettings/iso","value":"x"}`, settings.ErrReadOnly, http.StatusBadRequest},
		{"closed", `{"path":"/main/imgsettings/iso","value":"x"}`, gphoto.ErrState, http.StatusServiceUnavailable},
		{"busy", `{"path":"/main/imgsettings/iso","value":"x"}`, &gphoto.NativeError{Code: gphoto.ErrorCameraBusy, Message: "I/O in progress"}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fb := newFakeBackend(t)
			fb.setErr = tc.setErr
			h := newTestHandlers(fb)
			w := httptest.NewRecorder()
			h.HandleSetSetting(w, httptest.NewRequest(http.MethodPost, "/settings", strings.NewReader(tc.body)))
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestHandleSetSetting_OversizedBody(t *testing.T) {
	h := newTestHandlers(newFakeBackend(t))
	big := `{"path":"/main/imgsettings/iso","value":"` + strings.Repeat("x", 2<<20) + `"}` // 2 MB
	w := httptest.NewRecorder()
	h.HandleSetSetting(w, httptest.NewRequest(http.MethodPost, "/settings", strings.NewReader(big)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d (oversized body)", w.Code, http.StatusBadRequest)
	}
}

func TestHandleSetSetting_GetMethodNotAllowed(t *testing.T) {
	h := newTestHandlers(newFakeBackend(t))
	w := httptest.NewRecorder()
	h.HandleSetSetting(w, httptest.NewRequest(http.MethodGet, "/settings", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

// ---------- Capture ----------

func TestHandleCapture(t *testing.T) {
	h := newTestHandlers(newFakeBackend(t))
	w := httptest.NewRecorder()
	h.HandleCapture(w, httptest.NewRequest(http.MethodPost, "/capture", nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, err := uuid.Parse(resp["id"]); err != nil {
		t.Fatalf("id %q is not a uuid: %v", resp["id"], err)
	}

	req := httptest.NewRequest(http.MethodGet, "/captures/"+resp["id"], nil)
	req.SetPathValue("id", resp["id"])
	w = httptest.NewRecorder()
	h.HandleCaptureFile(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "jpeg" {
		t.Errorf("GET capture: status = %d, body %q", w.Code, w.Body.String())
	}
}

func TestHandleCaptureFile_Errors(t *testing.T) {
	cases := []struct {
		name string
		id   string
		want int
	}{
		{"not_uuid", "..%2fetc%2fpasswd", http.StatusBadRequest},
		{"unknown", uuid.NewString(), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandlers(newFakeBackend(t))
			req := httptest.NewRequest(http.MethodGet, "/captures/x", nil)
			req.SetPathValue("id", tc.id)
			w := httptest.NewRecorder()
			h.HandleCaptureFile(w, req)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestHandleCapture_Failure(t *testing.T) {
	fb := newFakeBackend(t)
	fb.captureErr = &gphoto.NativeError{Code: gphoto.ErrorCameraBusy, Message: "I/O in progress"}
	h := newTestHandlers(fb)
	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w := httptest.NewRecorder()
	h.HandleCapture(w, httptest.NewRequest(http.MethodPost, "/capture", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	sawError := false
	for !sawError {
		select {
		case msg := <-ch:
			var evt StatusEvent
			json.Unmarshal([]byte(msg), &evt)
			sawError = evt.Level == "error"
		case <-time.After(time.Second):
			t.Fatal("expected an error event")
		}
	}
}

func TestHandleCapture_ConcurrentCapture(t *testing.T) {
	// Simulate a long-running capture
	started := make(chan struct{})
	blocking := make(chan struct{})
	fb := newFakeBackend(t)
	fb.capture = func(context.Context) {
		close(started)
		<-blocking
	}
	h := newTestHandlers(fb)

	done := make(chan int)
	go func() {
		w := httptest.NewRecorder()
		h.HandleCapture(w, httptest.NewRequest(http.MethodPost, "/capture", nil))
		done <- w.Code
	}()
	<-started

	// Second request should be rejected as already running
	w2 := httptest.NewRecorder()
	h.HandleCapture(w2, httptest.NewRequest(http.MethodPost, "/capture", nil))
	if w2.Code != http.StatusConflict {
		t.Errorf("concurrent request: status = %d, want %d", w2.Code, http.StatusConflict)
	}

	close(blocking) // unblock first capture
	if code := <-done; code != http.StatusCreated {
		t.Errorf("first request: status = %d, want %d", code, http.StatusCreated)
	}
}

func TestHandleCapture_RateLimiting(t *testing.T) {
	h := newTestHandlers(newFakeBackend(t))
	h.Cooldown = time.Hour

	w1 := httptest.NewRecorder()
	h.HandleCapture(w1, httptest.NewRequest(http.MethodPost, "/capture", nil))
	if w1.Code != http.StatusCreated {
		t.Fatalf("first request: status = %d, want %d", w1.Code, http.StatusCreated)
	}

	w2 := httptest.NewRecorder()
	h.HandleCapture(w2, httptest.NewRequest(http.MethodPost, "/capture", nil))
	if w2.Code != http.StatusTooManyRequests {
		t.Errorf("rate-limited request: status = %d, want %d", w2.Code, http.StatusTooManyRequests)
	}
}

// ---------- Preview ----------

func TestHandlePreview(t *testing.T) {
	fb := newFakeBackend(t)
	fb.preview = mock.NewDemo().PreviewFrame
	h := newTestHandlers(fb)

	cases := []struct {
		name      string
		target    string
		wantWidth int
	}{
		{"native_size", "/preview", 320},
		{"downscaled", "/preview?width=160", 160},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.HandlePreview(w, httptest.NewRequest(http.MethodGet, tc.target, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
				t.Errorf("Content-Type = %q", ct)
			}
			if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
				t.Errorf("Cache-Control = %q", cc)
			}
			img, err := jpeg.DecodeConfig(w.Body)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if img.Width != tc.wantWidth {
				t.Errorf("width = %d, want %d", img.Width, tc.wantWidth)
			}
		})
	}
}

func TestHandlePreview_Errors(t *testing.T) {
	cases := []struct {
		name       string
		target     string
		previewErr error
		want       int
	}{
		{"bad_width", "/preview?width=abc", nil, http.StatusBadRequest},
		{"negative_width", "/preview?width=-5", nil, http.StatusBadRequest},
		{"huge_width", "/preview?width=100000", nil, http.StatusBadRequest},
		{"camera_error", "/preview", &gphoto.NativeError{Code: gphoto.ErrorNotSupported, Message: "Unsupported operation"}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fb := newFakeBackend(t)
			fb.previewErr = tc.previewErr
			h := newTestHandlers(fb)
			w := httptest.NewRecorder()
			h.HandlePreview(w, httptest.NewRequest(http.MethodGet, tc.target, nil))
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

// ---------- ServeIndex ----------

func TestServeIndex(t *testing.T) {
	h := newTestHandlers(nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	h.ServeIndex(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/html; charset=utf-8", ct)
	}
	if !strings.Contains(w.Body.String(), "<html>") {
		t.Error("body should contain HTML content")
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", gphoto.ErrPathNotFound), http.StatusNotFound},
		{gphoto.ErrTypeMismatch, http.StatusBadRequest},
		{gphoto.ErrUnsupported, http.StatusNotImplemented},
		{&gphoto.NativeError{Code: gphoto.ErrorIOLock, Message: "Could not lock the device"}, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

// ---------- Server over a simulated camera ----------

func TestServer_DemoCamera(t *testing.T) {
	lib := mock.NewDemo()
	gctx, err := gphoto.NewContext(lib)
	if err != nil {
		t.Fatal(err)
	}
	cam, err := gphoto.Open(gctx, gphoto.WithRemediator(nil), gphoto.WithSleep(func(time.Duration) {}))
	if err != nil {
		t.Fatal(err)
	}
	defer gctx.Close()
	defer cam.Close()

	srv := NewServer("127.0.0.1:0", NewStatusBroadcaster(), NewCameraBackend(gctx, cam, t.TempDir()), 0)
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/settings", "application/json",
		strings.NewReader(`{"path":"/main/imgsettings/iso","value":"800"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /settings: status = %d", resp.StatusCode)
	}
	if got := lib.Lookup("/main/imgsettings/iso").Text; got != "800" {
		t.Errorf("device iso = %q, want 800", got)
	}

	resp, err = http.Post(ts.URL+"/capture", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var shot map[string]string
	json.NewDecoder(resp.Body).Decode(&shot)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /capture: status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/captures/" + shot["id"])
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !bytes.Equal(data, lib.ImageData) {
		t.Errorf("GET /captures: status = %d, %d bytes", resp.StatusCode, len(data))
	}

	resp, err = http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /: status = %d", resp.StatusCode)
	}

	if lib.OpenFiles() != 0 {
		t.Errorf("OpenFiles = %d, want 0", lib.OpenFiles())
	}
}
