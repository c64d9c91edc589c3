package gphoto

import (
	"fmt"

	"github.com/cjeanneret/gpcam/internal/debug"
)

// Device is a camera found by autodetection.
type Device struct {
	Model string `json:"model"`
	Port  string `json:"port"` // e.g. "usb:001,004"
}

// ListDevices autodetects the connected cameras. It fails with
// ErrUnsupported when the library has no autodetection.
func ListDevices(ctx *Context) ([]Device, error) {
	ctxh, err := ctx.handle()
	if err != nil {
		return nil, err
	}
	lib := ctx.lib
	if !lib.HasAutodetect() {
		return nil, fmt.Errorf("list devices: %w", ErrUnsupported)
	}

	list, code := lib.ListNew()
	if _, err := check(lib, "gp_list_new", code); err != nil {
		return nil, err
	}
	defer func() {
		debug.Native("gp_list_unref", lib.ListUnref(list))
	}()

	if _, err := check(lib, "gp_camera_autodetect", lib.Autodetect(list, ctxh)); err != nil {
		return nil, fmt.Errorf("autodetect: %w", err)
	}
	n, err := check(lib, "gp_list_count", lib.ListCount(list))
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, n)
	for i := 0; i < n; i++ {
		model, code := lib.ListGetName(list, i)
		if _, err := check(lib, "gp_list_get_name", code); err != nil {
			return nil, err
		}
		port, code := lib.ListGetValue(list, i)
		if _, err := check(lib, "gp_list_get_value", code); err != nil {
			return nil, err
		}
		debug.Device(model, port)
		devices = append(devices, Device{Model: model, Port: port})
	}
	return devices, nil
}
