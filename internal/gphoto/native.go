package gphoto

// Handle is an opaque reference to a native libgphoto2 resource
// (context, camera, list, file or widget). The zero Handle is nil.
// A Handle is owned by exactly one wrapper (Context, Camera, File, Widget),
// which zeroes it once the native reference has been released.
type Handle uintptr

// WidgetType is the declared type of a configuration widget,
// using libgphoto2's CameraWidgetType numbering.
type WidgetType int

const (
	WidgetWindow  WidgetType = 0 // toplevel container
	WidgetSection WidgetType = 1 // container
	WidgetText    WidgetType = 2 // char *
	WidgetRange   WidgetType = 3 // float
	WidgetToggle  WidgetType = 4 // int
	WidgetRadio   WidgetType = 5 // char *
	WidgetMenu    WidgetType = 6 // char *
	WidgetButton  WidgetType = 7 // callback, no value
	WidgetDate    WidgetType = 8 // int (unix time)
)

func (t WidgetType) String() string {
	switch t {
	case WidgetWindow:
		return "window"
	case WidgetSection:
		return "section"
	case WidgetText:
		return "text"
	case WidgetRange:
		return "range"
	case WidgetToggle:
		return "toggle"
	case WidgetRadio:
		return "radio"
	case WidgetMenu:
		return "menu"
	case WidgetButton:
		return "button"
	case WidgetDate:
		return "date"
	default:
		return "unknown"
	}
}

// IsContainer reports whether widgets of this type hold children instead of a value.
func (t WidgetType) IsContainer() bool {
	return t == WidgetWindow || t == WidgetSection
}

// CaptureType selects what gp_camera_capture acquires.
type CaptureType int

const (
	CaptureImage CaptureType = 0
	CaptureMovie CaptureType = 1
	CaptureSound CaptureType = 2
)

// FileType selects which representation gp_camera_file_get transfers.
type FileType int

const (
	FilePreview FileType = 0
	FileNormal  FileType = 1
	FileRaw     FileType = 2
)

// Sizes of the fixed-layout records exchanged with libgphoto2.
const (
	FilePathNameSize   = 128       // CameraFilePath.name
	FilePathFolderSize = 1024      // CameraFilePath.folder
	TextSize           = 32 * 1024 // CameraText.text
)

// FilePath mirrors CameraFilePath: the location of a file on the device.
type FilePath struct {
	Folder string
	Name   string
}

// Library is the native ABI surface used by this package. Methods map
// one-to-one onto libgphoto2 entry points and return its raw result codes
// (negative on failure); mapping codes to errors is done by the callers.
//
// The cgo implementation lives in package libgphoto2; package mock provides
// an in-memory device for tests and development without a camera.
type Library interface {
	ResultAsString(code int) string

	ContextNew() Handle
	ContextUnref(ctx Handle)

	ListNew() (Handle, int)
	ListUnref(list Handle) int
	ListCount(list Handle) int
	ListGetName(list Handle, index int) (string, int)
	ListGetValue(list Handle, index int) (string, int)

	// HasAutodetect reports whether gp_camera_autodetect is exported
	// by the loaded library. Very old versions lack it.
	HasAutodetect() bool
	Autodetect(list, ctx Handle) int

	CameraNew() (Handle, int)
	CameraSetPort(cam, ctx Handle, model, port string) int
	CameraInit(cam, ctx Handle) int
	CameraExit(cam, ctx Handle) int
	CameraFree(cam Handle) int
	CameraGetSummary(cam, ctx Handle) (string, int)
	CameraGetConfig(cam, ctx Handle) (Handle, int)
	CameraSetConfig(cam, root, ctx Handle) int
	CameraCapture(cam, ctx Handle, kind CaptureType) (FilePath, int)
	CameraCapturePreview(cam, file, ctx Handle) int
	CameraTriggerCapture(cam, ctx Handle) int
	CameraFileGet(cam Handle, folder, name string, kind FileType, file, ctx Handle) int

	FileNew() (Handle, int)
	FileOpen(file Handle, path string) int
	FileGetDataAndSize(file Handle) ([]byte, int)
	FileGetMimeType(file Handle) (string, int)
	FileSave(file Handle, path string) int
	FileRef(file Handle) int
	FileUnref(file Handle) int
	FileClean(file Handle) int

	WidgetRef(w Handle) int
	WidgetUnref(w Handle) int
	WidgetGetName(w Handle) (string, int)
	WidgetGetLabel(w Handle) (string, int)
	WidgetGetInfo(w Handle) (string, int)
	WidgetGetType(w Handle) (WidgetType, int)
	WidgetGetReadonly(w Handle) (bool, int)
	WidgetCountChildren(w Handle) int
	WidgetGetChild(w Handle, index int) (Handle, int)
	WidgetGetString(w Handle) (string, int)
	WidgetGetFloat(w Handle) (float32, int)
	WidgetGetInt(w Handle) (int, int)
	WidgetSetString(w Handle, v string) int
	WidgetSetFloat(w Handle, v float32) int
	WidgetSetInt(w Handle, v int) int
	WidgetCountChoices(w Handle) int
	WidgetGetChoice(w Handle, index int) (string, int)
	WidgetGetRange(w Handle) (min, max, step float32, code int)
}
