// Package libgphoto2 binds gphoto.Library to the system libgphoto2 with cgo.
package libgphoto2

/*
#cgo pkg-config: libgphoto2
#cgo LDFLAGS: -ldl
#define _GNU_SOURCE
#include <dlfcn.h>
#include <stdlib.h>
#include <gphoto2/gphoto2.h>

typedef int (*autodetect_fn)(CameraList *, GPContext *);

static autodetect_fn lookup_autodetect(void) {
	return (autodetect_fn)dlsym(RTLD_DEFAULT, "gp_camera_autodetect");
}

static int has_autodetect(void) {
	return lookup_autodetect() != NULL;
}

static int call_autodetect(CameraList *list, GPContext *ctx) {
	autodetect_fn fn = lookup_autodetect();
	if (fn == NULL) return GP_ERROR_NOT_SUPPORTED;
	return fn(list, ctx);
}

static int widget_get_string(CameraWidget *w, const char **out) { return gp_widget_get_value(w, out); }
static int widget_get_float(CameraWidget *w, float *out) { return gp_widget_get_value(w, out); }
static int widget_get_int(CameraWidget *w, int *out) { return gp_widget_get_value(w, out); }
static int widget_set_string(CameraWidget *w, const char *v) { return gp_widget_set_value(w, v); }
static int widget_set_float(CameraWidget *w, float v) { return gp_widget_set_value(w, &v); }
static int widget_set_int(CameraWidget *w, int v) { return gp_widget_set_value(w, &v); }

static int camera_set_port(Camera *camera, GPContext *ctx, const char *model, const char *port) {
	CameraAbilitiesList *abilities = NULL;
	GPPortInfoList *ports = NULL;
	CameraAbilities a;
	GPPortInfo pi;
	int ret, i;

	ret = gp_abilities_list_new(&abilities);
	if (ret < GP_OK) return ret;
	if (model[0] != '\0') {
		ret = gp_abilities_list_load(abilities, ctx);
		if (ret < GP_OK) goto out;
		i = gp_abilities_list_lookup_model(abilities, model);
		if (i < GP_OK) { ret = i; goto out; }
		ret = gp_abilities_list_get_abilities(abilities, i, &a);
		if (ret < GP_OK) goto out;
		ret = gp_camera_set_abilities(camera, a);
		if (ret < GP_OK) goto out;
	}

	ret = gp_port_info_list_new(&ports);
	if (ret < GP_OK) goto out;
	ret = gp_port_info_list_load(ports);
	if (ret < GP_OK) goto out;
	i = gp_port_info_list_lookup_path(ports, port);
	if (i < GP_OK) { ret = i; goto out; }
	ret = gp_port_info_list_get_info(ports, i, &pi);
	if (ret < GP_OK) goto out;
	ret = gp_camera_set_port_info(camera, pi);
out:
	if (ports != NULL) gp_port_info_list_free(ports);
	gp_abilities_list_free(abilities);
	return ret;
}
*/
import "C"

import (
	"unsafe"

	"github.com/cjeanneret/gpcam/internal/gphoto"
)

// Library is the cgo gphoto.Library. Native pointers never cross into Go
// as integers: they are kept in a handle table and looked up per call.
type Library struct {
	handles *gphoto.HandleTable[unsafe.Pointer]
}

var _ gphoto.Library = (*Library)(nil)

// New returns a binding to the system libgphoto2.
func New() *Library {
	return &Library{handles: gphoto.NewHandleTable[unsafe.Pointer]()}
}

func (l *Library) put(p unsafe.Pointer) gphoto.Handle { return l.handles.Add(p) }
func (l *Library) get(h gphoto.Handle) unsafe.Pointer { return l.handles.Get(h) }
func (l *Library) drop(h gphoto.Handle)               { l.handles.Drop(h) }

func (l *Library) ctx(h gphoto.Handle) *C.GPContext { return (*C.GPContext)(l.get(h)) }
func (l *Library) cam(h gphoto.Handle) *C.Camera { return (*C.Camera)(l.get(h)) }
func (l *Library) list(h gphoto.Handle) *C.CameraList { return (*C.CameraList)(l.get(h)) }
func (l *Library) file(h gphoto.Handle) *C.CameraFile { return (*C.CameraFile)(l.get(h)) }
func (l *Library) widget(h gphoto.Handle) *C.CameraWidget { return (*C.CameraWidget)(l.get(h)) }

func goString(p *C.char) string {
	if p == nil {
		return ""
	}
	return C.GoString(p)
}

func (l *Library) ResultAsString(code int) string {
	return goString(C.gp_result_as_string(C.int(code)))
}

func (l *Library) ContextNew() gphoto.Handle {
	return l.put(unsafe.Pointer(C.gp_context_new()))
}

func (l *Library) ContextUnref(h gphoto.Handle) {
	if p := l.ctx(h); p != nil {
		C.gp_context_unref(p)
	}
	l.drop(h)
}

func (l *Library) ListNew() (gphoto.Handle, int) {
	var list *C.CameraList
	ret := C.gp_list_new(&list)
	if ret < C.GP_OK {
		return 0, int(ret)
	}
	return l.put(unsafe.Pointer(list)), int(ret)
}

func (l *Library) ListUnref(h gphoto.Handle) int {
	ret := C.gp_list_unref(l.list(h))
	l.drop(h)
	return int(ret)
}

func (l *Library) ListCount(h gphoto.Handle) int {
	return int(C.gp_list_count(l.list(h)))
}

func (l *Library) ListGetName(h gphoto.Handle, index int) (string, int) {
	var name *C.char
	ret := C.gp_list_get_name(l.list(h), C.int(index), &name)
	return goString(name), int(ret)
}

func (l *Library) ListGetValue(h gphoto.Handle, index int) (string, int) {
	var value *C.char
	ret := C.gp_list_get_value(l.list(h), C.int(index), &value)
	return goString(value), int(ret)
}

func (l *Library) HasAutodetect() bool {
	return C.has_autodetect() != 0
}

func (l *Library) Autodetect(list, ctx gphoto.Handle) int {
	return int(C.call_autodetect(l.list(list), l.ctx(ctx)))
}

func (l *Library) CameraNew() (gphoto.Handle, int) {
	var cam *C.Camera
	ret := C.gp_camera_new(&cam)
	if ret < C.GP_OK {
		return 0, int(ret)
	}
	return l.put(unsafe.Pointer(cam)), int(ret)
}

func (l *Library) CameraSetPort(cam, ctx gphoto.Handle, model, port string) int {
	cmodel := C.CString(model)
	defer C.free(unsafe.Pointer(cmodel))
	cport := C.CString(port)
	defer C.free(unsafe.Pointer(cport))
	return int(C.camera_set_port(l.cam(cam), l.ctx(ctx), cmodel, cport))
}

func (l *Library) CameraInit(cam, ctx gphoto.Handle) int {
	return int(C.gp_camera_init(l.cam(cam), l.ctx(ctx)))
}

func (l *Library) CameraExit(cam, ctx gphoto.Handle) int {
	return int(C.gp_camera_exit(l.cam(cam), l.ctx(ctx)))
}

func (l *Library) CameraFree(cam gphoto.Handle) int {
	ret := C.gp_camera_free(l.cam(cam))
	l.drop(cam)
	return int(ret)
}

func (l *Library) CameraGetSummary(cam, ctx gphoto.Handle) (string, int) {
	var txt C.CameraText
	ret := C.gp_camera_get_summary(l.cam(cam), &txt, l.ctx(ctx))
	if ret < C.GP_OK {
		return "", int(ret)
	}
	return C.GoString(&txt.text[0]), int(ret)
}

func (l *Library) CameraGetConfig(cam, ctx gphoto.Handle) (gphoto.Handle, int) {
	var root *C.CameraWidget
	ret := C.gp_camera_get_config(l.cam(cam), &root, l.ctx(ctx))
	if ret < C.GP_OK {
		return 0, int(ret)
	}
	return l.put(unsafe.Pointer(root)), int(ret)
}

func (l *Library) CameraSetConfig(cam, root, ctx gphoto.Handle) int {
	return int(C.gp_camera_set_config(l.cam(cam), l.widget(root), l.ctx(ctx)))
}

func (l *Library) CameraCapture(cam, ctx gphoto.Handle, kind gphoto.CaptureType) (gphoto.FilePath, int) {
	var path C.CameraFilePath
	ret := C.gp_camera_capture(l.cam(cam), C.CameraCaptureType(kind), &path, l.ctx(ctx))
	if ret < C.GP_OK {
		return gphoto.FilePath{}, int(ret)
	}
	return gphoto.FilePath{
		Folder: C.GoString(&path.folder[0]),
		Name:   C.GoString(&path.name[0]),
	}, int(ret)
}

func (l *Library) CameraCapturePreview(cam, f, ctx gphoto.Handle) int {
	return int(C.gp_camera_capture_preview(l.cam(cam), l.file(f), l.ctx(ctx)))
}

func (l *Library) CameraTriggerCapture(cam, ctx gphoto.Handle) int {
	return int(C.gp_camera_trigger_capture(l.cam(cam), l.ctx(ctx)))
}

func (l *Library) CameraFileGet(cam gphoto.Handle, folder, name string, kind gphoto.FileType, f, ctx gphoto.Handle) int {
	cfolder := C.CString(folder)
	defer C.free(unsafe.Pointer(cfolder))
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return int(C.gp_camera_file_get(l.cam(cam), cfolder, cname, C.CameraFileType(kind), l.file(f), l.ctx(ctx)))
}

func (l *Library) FileNew() (gphoto.Handle, int) {
	var f *C.CameraFile
	ret := C.gp_file_new(&f)
	if ret < C.GP_OK {
		return 0, int(ret)
	}
	return l.put(unsafe.Pointer(f)), int(ret)
}

func (l *Library) FileOpen(f gphoto.Handle, path string) int {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	return int(C.gp_file_open(l.file(f), cpath))
}

func (l *Library) FileGetDataAndSize(f gphoto.Handle) ([]byte, int) {
	var data *C.char
	var size C.ulong
	ret := C.gp_file_get_data_and_size(l.file(f), &data, &size)
	if ret < C.GP_OK || data == nil {
		return nil, int(ret)
	}
	return C.GoBytes(unsafe.Pointer(data), C.int(size)), int(ret)
}

func (l *Library) FileGetMimeType(f gphoto.Handle) (string, int) {
	var mime *C.char
	ret := C.gp_file_get_mime_type(l.file(f), &mime)
	return goString(mime), int(ret)
}

func (l *Library) FileSave(f gphoto.Handle, path string) int {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	return int(C.gp_file_save(l.file(f), cpath))
}

func (l *Library) FileRef(f gphoto.Handle) int {
	ret := C.gp_file_ref(l.file(f))
	if ret >= C.GP_OK {
		l.handles.Ref(f)
	}
	return int(ret)
}

// FileUnref drops the handle together with the last native reference.
func (l *Library) FileUnref(f gphoto.Handle) int {
	ret := C.gp_file_unref(l.file(f))
	if ret >= C.GP_OK {
		l.handles.Unref(f)
	}
	return int(ret)
}

func (l *Library) FileClean(f gphoto.Handle) int {
	return int(C.gp_file_clean(l.file(f)))
}

func (l *Library) WidgetRef(w gphoto.Handle) int {
	ret := C.gp_widget_ref(l.widget(w))
	if ret >= C.GP_OK {
		l.handles.Ref(w)
	}
	return int(ret)
}

// WidgetUnref frees the whole tree when the root's last reference goes, so
// the handles of its children are dropped with it.
func (l *Library) WidgetUnref(w gphoto.Handle) int {
	ret := C.gp_widget_unref(l.widget(w))
	if ret >= C.GP_OK {
		l.handles.Unref(w)
	}
	return int(ret)
}

func (l *Library) WidgetGetName(w gphoto.Handle) (string, int) {
	var s *C.char
	ret := C.gp_widget_get_name(l.widget(w), &s)
	return goString(s), int(ret)
}

func (l *Library) WidgetGetLabel(w gphoto.Handle) (string, int) {
	var s *C.char
	ret := C.gp_widget_get_label(l.widget(w), &s)
	return goString(s), int(ret)
}

func (l *Library) WidgetGetInfo(w gphoto.Handle) (string, int) {
	var s *C.char
	ret := C.gp_widget_get_info(l.widget(w), &s)
	return goString(s), int(ret)
}

func (l *Library) WidgetGetType(w gphoto.Handle) (gphoto.WidgetType, int) {
	var t C.CameraWidgetType
	ret := C.gp_widget_get_type(l.widget(w), &t)
	return gphoto.WidgetType(t), int(ret)
}

func (l *Library) WidgetGetReadonly(w gphoto.Handle) (bool, int) {
	var ro C.int
	ret := C.gp_widget_get_readonly(l.widget(w), &ro)
	return ro != 0, int(ret)
}

func (l *Library) WidgetCountChildren(w gphoto.Handle) int {
	return int(C.gp_widget_count_children(l.widget(w)))
}

func (l *Library) WidgetGetChild(w gphoto.Handle, index int) (gphoto.Handle, int) {
	var child *C.CameraWidget
	ret := C.gp_widget_get_child(l.widget(w), C.int(index), &child)
	if ret < C.GP_OK {
		return 0, int(ret)
	}
	return l.handles.AddChild(w, unsafe.Pointer(child)), int(ret)
}

func (l *Library) WidgetGetString(w gphoto.Handle) (string, int) {
	var s *C.char
	ret := C.widget_get_string(l.widget(w), &s)
	return goString(s), int(ret)
}

func (l *Library) WidgetGetFloat(w gphoto.Handle) (float32, int) {
	var f C.float
	ret := C.widget_get_float(l.widget(w), &f)
	return float32(f), int(ret)
}

func (l *Library) WidgetGetInt(w gphoto.Handle) (int, int) {
	var i C.int
	ret := C.widget_get_int(l.widget(w), &i)
	return int(i), int(ret)
}

func (l *Library) WidgetSetString(w gphoto.Handle, v string) int {
	cv := C.CString(v)
	defer C.free(unsafe.Pointer(cv))
	return int(C.widget_set_string(l.widget(w), cv))
}

func (l *Library) WidgetSetFloat(w gphoto.Handle, v float32) int {
	return int(C.widget_set_float(l.widget(w), C.float(v)))
}

func (l *Library) WidgetSetInt(w gphoto.Handle, v int) int {
	return int(C.widget_set_int(l.widget(w), C.int(v)))
}

func (l *Library) WidgetCountChoices(w gphoto.Handle) int {
	return int(C.gp_widget_count_choices(l.widget(w)))
}

func (l *Library) WidgetGetChoice(w gphoto.Handle, index int) (string, int) {
	var s *C.char
	ret := C.gp_widget_get_choice(l.widget(w), C.int(index), &s)
	return goString(s), int(ret)
}

func (l *Library) WidgetGetRange(w gphoto.Handle) (float32, float32, float32, int) {
	var lo, hi, step C.float
	ret := C.gp_widget_get_range(l.widget(w), &lo, &hi, &step)
	return float32(lo), float32(hi), float32(step), int(ret)
}
