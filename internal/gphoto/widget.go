package gphoto

import (
	"fmt"
	"strings"

	"github.com/cjeanneret/gpcam/internal/debug"
)

// RootName is the virtual root segment of configuration paths
// ("/main/imgsettings/iso"). It is never matched against a child name.
const RootName = "main"

// Widget is a node of a camera configuration tree.
//
// Every Widget returned by this package holds one native reference which
// the caller gives back with Release. Ref and Unref manage additional
// references for callers that share a node. A Widget is not safe for
// concurrent use.
type Widget struct {
	lib  Library
	h    Handle
	refs int
}

func newWidget(lib Library, h Handle) *Widget {
	return &Widget{lib: lib, h: h, refs: 1}
}

func (w *Widget) handle() (Handle, error) {
	if w == nil || w.refs == 0 {
		return 0, stateErrorf("widget already released")
	}
	return w.h, nil
}

// Ref takes an additional native reference on the widget.
func (w *Widget) Ref() error {
	h, err := w.handle()
	if err != nil {
		return err
	}
	if _, err := check(w.lib, "gp_widget_ref", w.lib.WidgetRef(h)); err != nil {
		return err
	}
	w.refs++
	return nil
}

// Unref drops one native reference. The widget becomes unusable once the
// last reference held by this wrapper is dropped.
func (w *Widget) Unref() error {
	h, err := w.handle()
	if err != nil {
		return err
	}
	if _, err := check(w.lib, "gp_widget_unref", w.lib.WidgetUnref(h)); err != nil {
		return err
	}
	w.refs--
	if w.refs == 0 {
		w.h = 0
	}
	return nil
}

// Release drops every reference still held by this wrapper. Calling it
// again is a no-op.
func (w *Widget) Release() error {
	for w != nil && w.refs > 0 {
		if err := w.Unref(); err != nil {
			return err
		}
	}
	return nil
}

func (w *Widget) str(call string, get func(Handle) (string, int)) (string, error) {
	h, err := w.handle()
	if err != nil {
		return "", err
	}
	s, code := get(h)
	if _, err := check(w.lib, call, code); err != nil {
		return "", err
	}
	return s, nil
}

// Name returns the widget name, unique among its siblings.
func (w *Widget) Name() (string, error) {
	return w.str("gp_widget_get_name", w.lib.WidgetGetName)
}

// Label returns the human readable label.
func (w *Widget) Label() (string, error) {
	return w.str("gp_widget_get_label", w.lib.WidgetGetLabel)
}

// Info returns the free-form info text.
func (w *Widget) Info() (string, error) {
	return w.str("gp_widget_get_info", w.lib.WidgetGetInfo)
}

// Type returns the declared widget type.
func (w *Widget) Type() (WidgetType, error) {
	h, err := w.handle()
	if err != nil {
		return 0, err
	}
	t, code := w.lib.WidgetGetType(h)
	if _, err := check(w.lib, "gp_widget_get_type", code); err != nil {
		return 0, err
	}
	return t, nil
}

// ReadOnly reports whether the camera refuses changes to this widget.
func (w *Widget) ReadOnly() (bool, error) {
	h, err := w.handle()
	if err != nil {
		return false, err
	}
	ro, code := w.lib.WidgetGetReadonly(h)
	if _, err := check(w.lib, "gp_widget_get_readonly", code); err != nil {
		return false, err
	}
	return ro, nil
}

// ChildCount returns the number of direct children.
func (w *Widget) ChildCount() (int, error) {
	h, err := w.handle()
	if err != nil {
		return 0, err
	}
	return check(w.lib, "gp_widget_count_children", w.lib.WidgetCountChildren(h))
}

// child acquires the child at index.
func (w *Widget) child(h Handle, index int) (*Widget, error) {
	ch, code := w.lib.WidgetGetChild(h, index)
	if _, err := check(w.lib, "gp_widget_get_child", code); err != nil {
		return nil, err
	}
	if _, err := check(w.lib, "gp_widget_ref", w.lib.WidgetRef(ch)); err != nil {
		return nil, err
	}
	return newWidget(w.lib, ch), nil
}

// Children acquires every direct child in native enumeration order.
// The caller releases each of them.
func (w *Widget) Children() ([]*Widget, error) {
	h, err := w.handle()
	if err != nil {
		return nil, err
	}
	n, err := w.ChildCount()
	if err != nil {
		return nil, err
	}
	children := make([]*Widget, 0, n)
	for i := 0; i < n; i++ {
		c, err := w.child(h, i)
		if err != nil {
			releaseAll(children)
			return nil, err
		}
		children = append(children, c)
	}
	return children, nil
}

func releaseAll(widgets []*Widget) {
	for _, c := range widgets {
		if err := c.Release(); err != nil {
			debug.Error(err)
		}
	}
}

// lookup scans the children for an exact name match. Only the match is
// acquired; it returns nil when there is none.
func (w *Widget) lookup(name string) (*Widget, error) {
	h, err := w.handle()
	if err != nil {
		return nil, err
	}
	n, err := w.ChildCount()
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		ch, code := w.lib.WidgetGetChild(h, i)
		if _, err := check(w.lib, "gp_widget_get_child", code); err != nil {
			return nil, err
		}
		cname, code := w.lib.WidgetGetName(ch)
		if _, err := check(w.lib, "gp_widget_get_name", code); err != nil {
			return nil, err
		}
		if cname != name {
			continue
		}
		if _, err := check(w.lib, "gp_widget_ref", w.lib.WidgetRef(ch)); err != nil {
			return nil, err
		}
		return newWidget(w.lib, ch), nil
	}
	return nil, nil
}

// SplitPath splits a configuration path into child names, dropping empty
// segments and a single leading "main".
func SplitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) > 0 && segs[0] == RootName {
		segs = segs[1:]
	}
	return segs
}

// Resolve walks path from w and returns the matching widget, holding one
// reference. Intermediate nodes are released on the way down. When a
// segment has no match the error wraps ErrPathNotFound and no widget is
// returned.
func (w *Widget) Resolve(path string) (*Widget, error) {
	h, err := w.handle()
	if err != nil {
		return nil, err
	}
	segs := SplitPath(path)
	if len(segs) == 0 {
		if _, err := check(w.lib, "gp_widget_ref", w.lib.WidgetRef(h)); err != nil {
			return nil, err
		}
		return newWidget(w.lib, h), nil
	}

	cur := w
	for i, name := range segs {
		next, err := cur.lookup(name)
		if cur != w {
			if rerr := cur.Release(); rerr != nil && err == nil {
				err = rerr
			}
		}
		if err != nil {
			if next != nil {
				_ = next.Release()
			}
			return nil, err
		}
		if next == nil {
			parent := "/" + strings.Join(append([]string{RootName}, segs[:i]...), "/")
			return nil, fmt.Errorf("%w: %s (no %q under %s)", ErrPathNotFound, path, name, parent)
		}
		cur = next
	}
	debug.Trace("resolved %s", path)
	return cur, nil
}

// Walk visits every leaf below w depth-first in native order. path is the
// full path of the leaf, built under rootPath. The leaf is only valid
// during the callback.
func (w *Widget) Walk(rootPath string, fn func(path string, leaf *Widget) error) error {
	children, err := w.Children()
	if err != nil {
		return err
	}
	defer releaseAll(children)

	for _, c := range children {
		name, err := c.Name()
		if err != nil {
			return err
		}
		p := rootPath + "/" + name
		n, err := c.ChildCount()
		if err != nil {
			return err
		}
		if n == 0 {
			if err := fn(p, c); err != nil {
				return err
			}
			continue
		}
		if err := c.Walk(p, fn); err != nil {
			return err
		}
	}
	return nil
}

// LeafPaths lists the full path of every childless widget below w.
// An empty rootPath means "/main".
func (w *Widget) LeafPaths(rootPath string) ([]string, error) {
	rootPath = strings.TrimSuffix(rootPath, "/")
	if rootPath == "" {
		rootPath = "/" + RootName
	}
	var paths []string
	err := w.Walk(rootPath, func(p string, _ *Widget) error {
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// Value reads the current value as the variant dictated by the declared
// type. Widgets without a value (containers, buttons) return nil, nil.
func (w *Widget) Value() (Value, error) {
	t, err := w.Type()
	if err != nil {
		return nil, err
	}
	h := w.h
	switch t {
	case WidgetText, WidgetRadio, WidgetMenu:
		s, code := w.lib.WidgetGetString(h)
		if _, err := check(w.lib, "gp_widget_get_value", code); err != nil {
			return nil, err
		}
		return TextValue(s), nil
	case WidgetRange:
		f, code := w.lib.WidgetGetFloat(h)
		if _, err := check(w.lib, "gp_widget_get_value", code); err != nil {
			return nil, err
		}
		return FloatValue(f), nil
	case WidgetToggle, WidgetDate:
		i, code := w.lib.WidgetGetInt(h)
		if _, err := check(w.lib, "gp_widget_get_value", code); err != nil {
			return nil, err
		}
		return IntValue(i), nil
	default:
		return nil, nil
	}
}

// SetValue encodes v for the declared type and stores it in the widget.
// The change reaches the device on Camera.CommitConfig.
//
// Text, radio and menu widgets take a string or []byte. Range widgets take
// a number or a string parsed as float; toggle and date widgets take an
// integer, a bool or a string parsed as integer. Widgets without a value
// reject every input with ErrTypeMismatch.
func (w *Widget) SetValue(v interface{}) error {
	t, err := w.Type()
	if err != nil {
		return err
	}
	h := w.h
	var code int
	switch t {
	case WidgetText, WidgetRadio, WidgetMenu:
		s, err := toText(v)
		if err != nil {
			return err
		}
		code = w.lib.WidgetSetString(h, s)
	case WidgetRange:
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		code = w.lib.WidgetSetFloat(h, f)
	case WidgetToggle, WidgetDate:
		i, err := toInt(v)
		if err != nil {
			return err
		}
		code = w.lib.WidgetSetInt(h, i)
	default:
		name, _ := w.Name()
		return fmt.Errorf("%w: %s widget %q holds no value", ErrTypeMismatch, t, name)
	}
	_, err = check(w.lib, "gp_widget_set_value", code)
	return err
}

// Choices lists the options of a radio or menu widget; other types have none.
func (w *Widget) Choices() ([]string, error) {
	t, err := w.Type()
	if err != nil {
		return nil, err
	}
	if t != WidgetRadio && t != WidgetMenu {
		return nil, nil
	}
	n, err := check(w.lib, "gp_widget_count_choices", w.lib.WidgetCountChoices(w.h))
	if err != nil {
		return nil, err
	}
	choices := make([]string, 0, n)
	for i := 0; i < n; i++ {
		c, code := w.lib.WidgetGetChoice(w.h, i)
		if _, err := check(w.lib, "gp_widget_get_choice", code); err != nil {
			return nil, err
		}
		choices = append(choices, c)
	}
	return choices, nil
}

// Range returns the bounds and step of a range widget.
func (w *Widget) Range() (lo, hi, step float64, err error) {
	t, err := w.Type()
	if err != nil {
		return 0, 0, 0, err
	}
	if t != WidgetRange {
		return 0, 0, 0, fmt.Errorf("%w: %s widget has no range", ErrTypeMismatch, t)
	}
	fmin, fmax, inc, code := w.lib.WidgetGetRange(w.h)
	if _, err := check(w.lib, "gp_widget_get_range", code); err != nil {
		return 0, 0, 0, err
	}
	return float64(fmin), float64(fmax), float64(inc), nil
}

// Config is a full configuration snapshot of a camera, obtained with
// Camera.Config and written back with Camera.CommitConfig.
type Config struct {
	root *Widget
}

// Root returns the toplevel widget. It stays owned by the Config.
func (c *Config) Root() *Widget {
	return c.root
}

// Get resolves path; the caller releases the returned widget.
func (c *Config) Get(path string) (*Widget, error) {
	return c.root.Resolve(path)
}

// With resolves path and runs fn with the widget, releasing it on every
// exit path.
func (c *Config) With(path string, fn func(w *Widget) error) error {
	w, err := c.Get(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := w.Release(); err != nil {
			debug.Error(err)
		}
	}()
	return fn(w)
}

// Value reads the value at path.
func (c *Config) Value(path string) (Value, error) {
	var v Value
	err := c.With(path, func(w *Widget) error {
		var err error
		v, err = w.Value()
		return err
	})
	return v, err
}

// Set changes the value at path in the snapshot.
func (c *Config) Set(path string, v interface{}) error {
	return c.With(path, func(w *Widget) error {
		return w.SetValue(v)
	})
}

// Paths lists every leaf path of the snapshot.
func (c *Config) Paths() ([]string, error) {
	return c.root.LeafPaths("/" + RootName)
}

// Walk visits every leaf of the snapshot; see Widget.Walk.
func (c *Config) Walk(fn func(path string, leaf *Widget) error) error {
	return c.root.Walk("/"+RootName, fn)
}

// Close releases the snapshot.
func (c *Config) Close() error {
	return c.root.Release()
}
