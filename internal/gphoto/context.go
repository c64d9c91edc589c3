package gphoto

import (
	"errors"
	"sync"

	"github.com/cjeanneret/gpcam/internal/debug"
)

// Context is the process-wide GPContext required by every device operation.
// It is created once (see DefaultContext) and passed explicitly to the
// cameras, files and device lists that need it.
type Context struct {
	lib Library

	mu sync.Mutex
	h  Handle
}

var (
	defaultOnce sync.Once
	defaultCtx  *Context
	defaultErr  error
)

// DefaultContext returns the process-wide context, creating it on first use.
// Later calls return the same context regardless of lib.
func DefaultContext(lib Library) (*Context, error) {
	defaultOnce.Do(func() {
		defaultCtx, defaultErr = NewContext(lib)
	})
	return defaultCtx, defaultErr
}

// NewContext creates a context outside the process-wide singleton.
// Long-lived processes and tests that need isolation use this directly
// and must call Close.
func NewContext(lib Library) (*Context, error) {
	if lib == nil {
		return nil, errors.New("gphoto: nil library")
	}
	h := lib.ContextNew()
	if h == 0 {
		return nil, errors.New("gphoto: gp_context_new returned NULL")
	}
	debug.Trace("context created")
	return &Context{lib: lib, h: h}, nil
}

// Library returns the native library this context belongs to.
func (c *Context) Library() Library {
	return c.lib
}

func (c *Context) handle() (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.h == 0 {
		return 0, stateErrorf("context is closed")
	}
	return c.h, nil
}

// Close releases the native context. Objects created from it must be
// released first.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.h == 0 {
		return nil
	}
	c.lib.ContextUnref(c.h)
	c.h = 0
	debug.Trace("context released")
	return nil
}
