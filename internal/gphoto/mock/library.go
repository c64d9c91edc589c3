// Package mock simulates a libgphoto2 camera in memory. It backs the
// package tests and the -mock mode of the CLI.
package mock

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"

	"github.com/cjeanneret/gpcam/internal/gphoto"
)

// Result codes returned by the simulation besides those of package gphoto.
const (
	ErrorFileNotFound  = -108
	ErrorModelNotFound = -105
	ErrorUnknownPort   = -5
)

var messages = map[int]string{
	gphoto.OK:                 "No error",
	gphoto.ErrorGeneric:       "Unspecified error",
	gphoto.ErrorBadParameters: "Bad parameters",
	ErrorUnknownPort:          "Unknown port",
	gphoto.ErrorNotSupported:  "Unsupported operation",
	gphoto.ErrorIOUSBClaim:    "Could not claim the USB device",
	gphoto.ErrorIOLock:        "Could not lock the device",
	ErrorModelNotFound:        "Unknown model",
	ErrorFileNotFound:         "File not found",
	gphoto.ErrorCameraBusy:    "I/O in progress",
}

type node struct {
	w      *Widget
	root   gphoto.Handle
	refs   int
	handle gphoto.Handle
}

type file struct {
	data []byte
	name string
	mime string
	refs int
}

type camera struct {
	inited bool
}

// Library is an in-memory gphoto.Library.
//
// Result code slices (InitCodes, CaptureCodes, ...) script the outcome of
// successive calls; once a slice is exhausted calls succeed.
type Library struct {
	mu sync.Mutex

	Tree         *Widget
	Devices      []gphoto.Device
	NoAutodetect bool
	SummaryText  string
	ImageData    []byte
	PreviewFrame []byte
	Folder       string

	InitCodes      []int
	CaptureCodes   []int
	PreviewCodes   []int
	SetConfigCodes []int
	TriggerCodes   []int

	next       gphoto.Handle
	contexts   map[gphoto.Handle]bool
	cameras    map[gphoto.Handle]*camera
	lists      map[gphoto.Handle][]gphoto.Device
	files      map[gphoto.Handle]*file
	nodes      map[gphoto.Handle]*node
	ids        map[*Widget]gphoto.Handle
	images     map[string][]byte
	captured   int
	widgetRefs int
	calls      map[string]int
}

// NewLibrary returns a simulated camera exposing tree.
func NewLibrary(tree *Widget) *Library {
	return &Library{
		Tree:         tree,
		Devices:      []gphoto.Device{{Model: "Canon EOS 2000D", Port: "usb:001,004"}},
		SummaryText:  "Manufacturer: Canon Inc.\nModel: Canon EOS 2000D\n  Version: 3-1.0.0\nSerial Number: 0123456789ab\n",
		ImageData:    testJPEG(640, 480),
		PreviewFrame: testJPEG(320, 240),
		Folder:       "/store_00020001/DCIM/100CANON",
		contexts:     make(map[gphoto.Handle]bool),
		cameras:      make(map[gphoto.Handle]*camera),
		lists:        make(map[gphoto.Handle][]gphoto.Device),
		files:        make(map[gphoto.Handle]*file),
		nodes:        make(map[gphoto.Handle]*node),
		ids:          make(map[*Widget]gphoto.Handle),
		images:       make(map[string][]byte),
		calls:        make(map[string]int),
	}
}

// NewDemo returns a simulated Canon EOS with DemoTree.
func NewDemo() *Library {
	return NewLibrary(DemoTree())
}

var _ gphoto.Library = (*Library)(nil)

func testJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Calls returns how many times the named entry point was called.
func (l *Library) Calls(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[name]
}

// WidgetRefs returns the widget references taken and not yet given back,
// including the one held on each fetched configuration root.
func (l *Library) WidgetRefs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.widgetRefs
}

// OpenFiles returns the number of files not yet released.
func (l *Library) OpenFiles() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.files)
}

// OpenLists returns the number of device lists not yet released.
func (l *Library) OpenLists() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lists)
}

// OpenCameras returns the number of cameras not yet freed.
func (l *Library) OpenCameras() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cameras)
}

// Lookup returns the device-side node at path, or nil.
func (l *Library) Lookup(path string) *Widget {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Tree.Find(path)
}

func (l *Library) call(name string) {
	l.calls[name]++
}

func pop(codes *[]int) int {
	if len(*codes) == 0 {
		return gphoto.OK
	}
	c := (*codes)[0]
	*codes = (*codes)[1:]
	return c
}

func (l *Library) alloc() gphoto.Handle {
	l.next++
	return l.next
}

func (l *Library) ResultAsString(code int) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return fmt.Sprintf("Unknown error %d", code)
}

func (l *Library) ContextNew() gphoto.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_context_new")
	h := l.alloc()
	l.contexts[h] = true
	return h
}

func (l *Library) ContextUnref(ctx gphoto.Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_context_unref")
	delete(l.contexts, ctx)
}

func (l *Library) ListNew() (gphoto.Handle, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_list_new")
	h := l.alloc()
	l.lists[h] = nil
	return h, gphoto.OK
}

func (l *Library) ListUnref(list gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_list_unref")
	if _, ok := l.lists[list]; !ok {
		return gphoto.ErrorBadParameters
	}
	delete(l.lists, list)
	return gphoto.OK
}

func (l *Library) ListCount(list gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries, ok := l.lists[list]
	if !ok {
		return gphoto.ErrorBadParameters
	}
	return len(entries)
}

func (l *Library) listEntry(list gphoto.Handle, index int) (gphoto.Device, int) {
	entries, ok := l.lists[list]
	if !ok || index < 0 || index >= len(entries) {
		return gphoto.Device{}, gphoto.ErrorBadParameters
	}
	return entries[index], gphoto.OK
}

func (l *Library) ListGetName(list gphoto.Handle, index int) (string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, code := l.listEntry(list, index)
	return d.Model, code
}

func (l *Library) ListGetValue(list gphoto.Handle, index int) (string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, code := l.listEntry(list, index)
	return d.Port, code
}

func (l *Library) HasAutodetect() bool {
	return !l.NoAutodetect
}

func (l *Library) Autodetect(list, ctx gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_camera_autodetect")
	if _, ok := l.lists[list]; !ok || !l.contexts[ctx] {
		return gphoto.ErrorBadParameters
	}
	l.lists[list] = append([]gphoto.Device(nil), l.Devices...)
	return gphoto.OK
}

func (l *Library) CameraNew() (gphoto.Handle, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_camera_new")
	h := l.alloc()
	l.cameras[h] = &camera{}
	return h, gphoto.OK
}

func (l *Library) CameraSetPort(cam, ctx gphoto.Handle, model, port string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_camera_set_port_info")
	if _, ok := l.cameras[cam]; !ok {
		return gphoto.ErrorBadParameters
	}
	for _, d := range l.Devices {
		if d.Port == port {
			if model != "" && d.Model != model {
				return ErrorModelNotFound
			}
			return gphoto.OK
		}
	}
	return ErrorUnknownPort
}

func (l *Library) CameraInit(cam, ctx gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_camera_init")
	c, ok := l.cameras[cam]
	if !ok || !l.contexts[ctx] {
		return gphoto.ErrorBadParameters
	}
	code := pop(&l.InitCodes)
	if code == gphoto.OK {
		c.inited = true
	}
	return code
}

func (l *Library) readyCamera(cam, ctx gphoto.Handle) int {
	c, ok := l.cameras[cam]
	if !ok || !l.contexts[ctx] || !c.inited {
		return gphoto.ErrorBadParameters
	}
	return gphoto.OK
}

func (l *Library) CameraExit(cam, ctx gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_camera_exit")
	c, ok := l.cameras[cam]
	if !ok {
		return gphoto.ErrorBadParameters
	}
	c.inited = false
	return gphoto.OK
}

func (l *Library) CameraFree(cam gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_camera_free")
	if _, ok := l.cameras[cam]; !ok {
		return gphoto.ErrorBadParameters
	}
	delete(l.cameras, cam)
	return gphoto.OK
}

func (l *Library) CameraGetSummary(cam, ctx gphoto.Handle) (string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_camera_get_summary")
	if code := l.readyCamera(cam, ctx); code != gphoto.OK {
		return "", code
	}
	return l.SummaryText, gphoto.OK
}

func (l *Library) register(w *Widget, root gphoto.Handle) gphoto.Handle {
	h := l.alloc()
	if root == 0 {
		root = h
	}
	l.nodes[h] = &node{w: w, root: root, refs: 1, handle: h}
	l.ids[w] = h
	for _, c := range w.Children {
		l.register(c, root)
	}
	return h
}

func (l *Library) CameraGetConfig(cam, ctx gphoto.Handle) (gphoto.Handle, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_camera_get_config")
	if code := l.readyCamera(cam, ctx); code != gphoto.OK {
		return 0, code
	}
	l.widgetRefs++
	return l.register(l.Tree.clone(), 0), gphoto.OK
}

func (l *Library) CameraSetConfig(cam, root, ctx gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_camera_set_config")
	if code := l.readyCamera(cam, ctx); code != gphoto.OK {
		return code
	}
	n, ok := l.nodes[root]
	if !ok {
		return gphoto.ErrorBadParameters
	}
	if code := pop(&l.SetConfigCodes); code != gphoto.OK {
		return code
	}
	l.Tree.apply(n.w)
	return gphoto.OK
}

func (l *Library) CameraCapture(cam, ctx gphoto.Handle, kind gphoto.CaptureType) (gphoto.FilePath, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_camera_capture")
	if code := l.readyCamera(cam, ctx); code != gphoto.OK {
		return gphoto.FilePath{}, code
	}
	if kind != gphoto.CaptureImage {
		return gphoto.FilePath{}, gphoto.ErrorNotSupported
	}
	if code := pop(&l.CaptureCodes); code != gphoto.OK {
		return gphoto.FilePath{}, code
	}
	l.captured++
	p := gphoto.FilePath{Folder: l.Folder, Name: fmt.Sprintf("IMG_%04d.JPG", l.captured)}
	l.images[p.Folder+"/"+p.Name] = append([]byte(nil), l.ImageData...)
	return p, gphoto.OK
}

func (l *Library) CameraCapturePreview(cam, f, ctx gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_camera_capture_preview")
	if code := l.readyCamera(cam, ctx); code != gphoto.OK {
		return code
	}
	fl, ok := l.files[f]
	if !ok {
		return gphoto.ErrorBadParameters
	}
	if code := pop(&l.PreviewCodes); code != gphoto.OK {
		return code
	}
	fl.data = append([]byte(nil), l.PreviewFrame...)
	fl.name = "capture_preview.jpg"
	fl.mime = "image/jpeg"
	return gphoto.OK
}

func (l *Library) CameraTriggerCapture(cam, ctx gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_camera_trigger_capture")
	if code := l.readyCamera(cam, ctx); code != gphoto.OK {
		return code
	}
	return pop(&l.TriggerCodes)
}

func (l *Library) CameraFileGet(cam gphoto.Handle, folder, name string, kind gphoto.FileType, f, ctx gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_camera_file_get")
	if code := l.readyCamera(cam, ctx); code != gphoto.OK {
		return code
	}
	fl, ok := l.files[f]
	if !ok {
		return gphoto.ErrorBadParameters
	}
	data, ok := l.images[folder+"/"+name]
	if !ok {
		return ErrorFileNotFound
	}
	fl.data = append([]byte(nil), data...)
	fl.name = name
	fl.mime = "image/jpeg"
	return gphoto.OK
}

func (l *Library) FileNew() (gphoto.Handle, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_file_new")
	h := l.alloc()
	l.files[h] = &file{refs: 1}
	return h, gphoto.OK
}

func (l *Library) FileOpen(f gphoto.Handle, path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_file_open")
	fl, ok := l.files[f]
	if !ok {
		return gphoto.ErrorBadParameters
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ErrorFileNotFound
	}
	fl.data = data
	fl.name = filepath.Base(path)
	fl.mime = "image/jpeg"
	return gphoto.OK
}

func (l *Library) FileGetDataAndSize(f gphoto.Handle) ([]byte, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_file_get_data_and_size")
	fl, ok := l.files[f]
	if !ok {
		return nil, gphoto.ErrorBadParameters
	}
	return fl.data, gphoto.OK
}

func (l *Library) FileGetMimeType(f gphoto.Handle) (string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fl, ok := l.files[f]
	if !ok {
		return "", gphoto.ErrorBadParameters
	}
	return fl.mime, gphoto.OK
}

func (l *Library) FileSave(f gphoto.Handle, path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_file_save")
	fl, ok := l.files[f]
	if !ok {
		return gphoto.ErrorBadParameters
	}
	if err := os.WriteFile(path, fl.data, 0o644); err != nil {
		return gphoto.ErrorGeneric
	}
	return gphoto.OK
}

func (l *Library) FileRef(f gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_file_ref")
	fl, ok := l.files[f]
	if !ok {
		return gphoto.ErrorBadParameters
	}
	fl.refs++
	return gphoto.OK
}

func (l *Library) FileUnref(f gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_file_unref")
	fl, ok := l.files[f]
	if !ok {
		return gphoto.ErrorBadParameters
	}
	fl.refs--
	if fl.refs == 0 {
		delete(l.files, f)
	}
	return gphoto.OK
}

func (l *Library) FileClean(f gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_file_clean")
	fl, ok := l.files[f]
	if !ok {
		return gphoto.ErrorBadParameters
	}
	fl.data = nil
	return gphoto.OK
}

func (l *Library) WidgetRef(w gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_widget_ref")
	n, ok := l.nodes[w]
	if !ok {
		return gphoto.ErrorBadParameters
	}
	n.refs++
	l.widgetRefs++
	return gphoto.OK
}

func (l *Library) WidgetUnref(w gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_widget_unref")
	n, ok := l.nodes[w]
	if !ok {
		return gphoto.ErrorBadParameters
	}
	n.refs--
	l.widgetRefs--
	if n.refs == 0 && n.root == n.handle {
		l.forget(n.w)
	}
	return gphoto.OK
}

// forget frees a snapshot; its handles become invalid.
func (l *Library) forget(w *Widget) {
	h := l.ids[w]
	delete(l.nodes, h)
	delete(l.ids, w)
	for _, c := range w.Children {
		l.forget(c)
	}
}

func (l *Library) widget(h gphoto.Handle) (*Widget, int) {
	n, ok := l.nodes[h]
	if !ok {
		return nil, gphoto.ErrorBadParameters
	}
	return n.w, gphoto.OK
}

func (l *Library) WidgetGetName(h gphoto.Handle) (string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, code := l.widget(h)
	if code != gphoto.OK {
		return "", code
	}
	return w.Name, gphoto.OK
}

func (l *Library) WidgetGetLabel(h gphoto.Handle) (string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, code := l.widget(h)
	if code != gphoto.OK {
		return "", code
	}
	return w.Label, gphoto.OK
}

func (l *Library) WidgetGetInfo(h gphoto.Handle) (string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, code := l.widget(h)
	if code != gphoto.OK {
		return "", code
	}
	return w.Info, gphoto.OK
}

func (l *Library) WidgetGetType(h gphoto.Handle) (gphoto.WidgetType, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, code := l.widget(h)
	if code != gphoto.OK {
		return 0, code
	}
	return w.Type, gphoto.OK
}

func (l *Library) WidgetGetReadonly(h gphoto.Handle) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, code := l.widget(h)
	if code != gphoto.OK {
		return false, code
	}
	return w.ReadOnly, gphoto.OK
}

func (l *Library) WidgetCountChildren(h gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, code := l.widget(h)
	if code != gphoto.OK {
		return code
	}
	return len(w.Children)
}

func (l *Library) WidgetGetChild(h gphoto.Handle, index int) (gphoto.Handle, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_widget_get_child")
	w, code := l.widget(h)
	if code != gphoto.OK {
		return 0, code
	}
	if index < 0 || index >= len(w.Children) {
		return 0, gphoto.ErrorBadParameters
	}
	return l.ids[w.Children[index]], gphoto.OK
}

func isText(t gphoto.WidgetType) bool {
	return t == gphoto.WidgetText || t == gphoto.WidgetRadio || t == gphoto.WidgetMenu
}

func isInt(t gphoto.WidgetType) bool {
	return t == gphoto.WidgetToggle || t == gphoto.WidgetDate
}

func (l *Library) WidgetGetString(h gphoto.Handle) (string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, code := l.widget(h)
	if code != gphoto.OK {
		return "", code
	}
	if !isText(w.Type) {
		return "", gphoto.ErrorBadParameters
	}
	return w.Text, gphoto.OK
}

func (l *Library) WidgetGetFloat(h gphoto.Handle) (float32, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, code := l.widget(h)
	if code != gphoto.OK {
		return 0, code
	}
	if w.Type != gphoto.WidgetRange {
		return 0, gphoto.ErrorBadParameters
	}
	return w.Float, gphoto.OK
}

func (l *Library) WidgetGetInt(h gphoto.Handle) (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, code := l.widget(h)
	if code != gphoto.OK {
		return 0, code
	}
	if !isInt(w.Type) {
		return 0, gphoto.ErrorBadParameters
	}
	return w.Int, gphoto.OK
}

func (l *Library) WidgetSetString(h gphoto.Handle, v string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_widget_set_value")
	w, code := l.widget(h)
	if code != gphoto.OK {
		return code
	}
	if !isText(w.Type) {
		return gphoto.ErrorBadParameters
	}
	w.Text = v
	return gphoto.OK
}

func (l *Library) WidgetSetFloat(h gphoto.Handle, v float32) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_widget_set_value")
	w, code := l.widget(h)
	if code != gphoto.OK {
		return code
	}
	if w.Type != gphoto.WidgetRange {
		return gphoto.ErrorBadParameters
	}
	w.Float = v
	return gphoto.OK
}

func (l *Library) WidgetSetInt(h gphoto.Handle, v int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.call("gp_widget_set_value")
	w, code := l.widget(h)
	if code != gphoto.OK {
		return code
	}
	if !isInt(w.Type) {
		return gphoto.ErrorBadParameters
	}
	w.Int = v
	return gphoto.OK
}

func (l *Library) WidgetCountChoices(h gphoto.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, code := l.widget(h)
	if code != gphoto.OK {
		return code
	}
	return len(w.Choices)
}

func (l *Library) WidgetGetChoice(h gphoto.Handle, index int) (string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, code := l.widget(h)
	if code != gphoto.OK {
		return "", code
	}
	if index < 0 || index >= len(w.Choices) {
		return "", gphoto.ErrorBadParameters
	}
	return w.Choices[index], gphoto.OK
}

func (l *Library) WidgetGetRange(h gphoto.Handle) (float32, float32, float32, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, code := l.widget(h)
	if code != gphoto.OK {
		return 0, 0, 0, code
	}
	if w.Type != gphoto.WidgetRange {
		return 0, 0, 0, gphoto.ErrorBadParameters
	}
	return w.Min, w.Max, w.Step, gphoto.OK
}
