package gphoto

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/gpcam/internal/debug"
)

// libgphoto2 result codes this package reacts to.
const (
	OK                 = 0
	ErrorGeneric       = -1
	ErrorBadParameters = -2
	ErrorNotSupported  = -6
	ErrorIOUSBClaim    = -53
	ErrorIOLock        = -60 // device locked by another process (e.g. gvfs)
	ErrorCameraBusy    = -110
)

var (
	// ErrTypeMismatch is returned by SetValue when the value cannot be
	// represented by the widget's declared type.
	ErrTypeMismatch = errors.New("value type does not match widget type")

	// ErrPathNotFound is returned when no widget matches a configuration path.
	ErrPathNotFound = errors.New("configuration path not found")

	// ErrUnsupported is returned when a required libgphoto2 entry point is missing.
	ErrUnsupported = errors.New("gphoto2 version is obsolete")

	// ErrState is returned when an operation is attempted outside the valid
	// lifecycle phase of a camera or file (closed session, consumed data).
	ErrState = errors.New("invalid state")
)

// NativeError is a failed libgphoto2 call.
type NativeError struct {
	Code    int
	Message string
}

func (e *NativeError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// IsCode reports whether err is a NativeError carrying code.
func IsCode(err error, code int) bool {
	var ne *NativeError
	return errors.As(err, &ne) && ne.Code == code
}

// Check maps a native result code. Negative codes become a *NativeError
// described by gp_result_as_string; other values (counts, indexes) pass through.
func Check(lib Library, code int) (int, error) {
	if code < OK {
		return code, &NativeError{Code: code, Message: lib.ResultAsString(code)}
	}
	return code, nil
}

// CheckRelease is Check for calls made on a partially constructed resource:
// release runs before the failure is returned.
func CheckRelease(lib Library, code int, release func()) (int, error) {
	if code < OK {
		if release != nil {
			release()
		}
		return Check(lib, code)
	}
	return code, nil
}

// check traces a named native call before mapping its result.
func check(lib Library, call string, code int) (int, error) {
	debug.Native(call, code)
	return Check(lib, code)
}

func stateErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrState, fmt.Sprintf(format, args...))
}
