package gphoto

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/gpcam/internal/debug"
)

// File wraps a CameraFile: the result of a capture or preview, or a file
// opened from local disk.
//
// Data(true) cleans the native buffer and drops the reference the caller
// owns. Once the last reference is gone every further call fails with
// ErrState; references taken with Ref stay valid until their Unref.
type File struct {
	lib    Library
	h      Handle
	refs   int
	folder string
	name   string
}

// NewFile creates an empty file, e.g. for Open.
func NewFile(ctx *Context) (*File, error) {
	if _, err := ctx.handle(); err != nil {
		return nil, err
	}
	return newFile(ctx.lib)
}

func newFile(lib Library) (*File, error) {
	h, code := lib.FileNew()
	if _, err := check(lib, "gp_file_new", code); err != nil {
		return nil, err
	}
	return &File{lib: lib, h: h, refs: 1}, nil
}

// newCameraFile transfers folder/name from the device into a new file.
// The native file is released if the transfer fails.
func newCameraFile(lib Library, cam, ctx Handle, folder, name string) (*File, error) {
	f, err := newFile(lib)
	if err != nil {
		return nil, err
	}
	code := lib.CameraFileGet(cam, folder, name, FileNormal, f.h, ctx)
	debug.Native("gp_camera_file_get", code)
	if _, err := CheckRelease(lib, code, f.release); err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", folder, name, err)
	}
	f.folder, f.name = folder, name
	return f, nil
}

func (f *File) handle() (Handle, error) {
	if f == nil || f.refs == 0 {
		return 0, stateErrorf("file data already consumed or released")
	}
	return f.h, nil
}

// release drops every reference without reporting errors; used on
// construction failure paths.
func (f *File) release() {
	for f.refs > 0 {
		f.lib.FileUnref(f.h)
		f.refs--
	}
	f.h = 0
}

// Name returns the file name on the device, or the name set by Open.
func (f *File) Name() string {
	return f.name
}

// Folder returns the folder on the device; empty for preview and local files.
func (f *File) Folder() string {
	return f.folder
}

// Open loads a local file into f.
func (f *File) Open(path string) error {
	h, err := f.handle()
	if err != nil {
		return err
	}
	if _, err := check(f.lib, "gp_file_open", f.lib.FileOpen(h, path)); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	f.name = path
	return nil
}

// MimeType returns the MIME type reported by libgphoto2.
func (f *File) MimeType() (string, error) {
	h, err := f.handle()
	if err != nil {
		return "", err
	}
	mt, code := f.lib.FileGetMimeType(h)
	if _, err := check(f.lib, "gp_file_get_mime_type", code); err != nil {
		return "", err
	}
	return mt, nil
}

// Data returns a copy of the complete file content. With autoClean the
// native buffer is cleaned and one reference is dropped afterwards.
func (f *File) Data(autoClean bool) ([]byte, error) {
	h, err := f.handle()
	if err != nil {
		return nil, err
	}
	data, code := f.lib.FileGetDataAndSize(h)
	if _, err := check(f.lib, "gp_file_get_data_and_size", code); err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	if autoClean {
		if err := f.Clean(); err != nil {
			return out, err
		}
		if err := f.Unref(); err != nil {
			return out, err
		}
	}
	return out, nil
}

// Save writes the content to path. An empty path uses the file's own name.
func (f *File) Save(path string) error {
	h, err := f.handle()
	if err != nil {
		return err
	}
	if path == "" {
		path = f.name
	}
	if path == "" {
		return errors.New("gphoto: save: no destination and file has no name")
	}
	if _, err := check(f.lib, "gp_file_save", f.lib.FileSave(h, path)); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	debug.Verbose("saved %s", path)
	return nil
}

// Ref takes an additional native reference, for callers that keep the
// file beyond its default scope. Each Ref needs a matching Unref; Data(true)
// only drops the reference the file was created with.
func (f *File) Ref() error {
	h, err := f.handle()
	if err != nil {
		return err
	}
	if _, err := check(f.lib, "gp_file_ref", f.lib.FileRef(h)); err != nil {
		return err
	}
	f.refs++
	return nil
}

// Unref drops one native reference.
func (f *File) Unref() error {
	h, err := f.handle()
	if err != nil {
		return err
	}
	if _, err := check(f.lib, "gp_file_unref", f.lib.FileUnref(h)); err != nil {
		return err
	}
	f.refs--
	if f.refs == 0 {
		f.h = 0
	}
	return nil
}

// Clean empties the native buffer without releasing the file.
func (f *File) Clean() error {
	h, err := f.handle()
	if err != nil {
		return err
	}
	_, err = check(f.lib, "gp_file_clean", f.lib.FileClean(h))
	return err
}

// Close cleans the buffer and drops every reference held by f.
// Calling it again is a no-op.
func (f *File) Close() error {
	if f == nil || f.refs == 0 {
		return nil
	}
	if err := f.Clean(); err != nil {
		return err
	}
	for f.refs > 0 {
		if err := f.Unref(); err != nil {
			return err
		}
	}
	return nil
}
