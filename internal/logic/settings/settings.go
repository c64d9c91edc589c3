// Package settings reads and changes camera settings by widget path, on top
// of the configuration snapshots of package gphoto.
package settings

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cjeanneret/gpcam/internal/debug"
	"github.com/cjeanneret/gpcam/internal/gphoto"
)

// ErrReadOnly is returned by Apply for a widget the camera does not let
// the user change.
var ErrReadOnly = errors.New("widget is read-only")

// Camera is the part of a gphoto.Camera needed to read and commit settings.
type Camera interface {
	Config() (*gphoto.Config, error)
	CommitConfig(cfg *gphoto.Config) error
}

// Setting describes one leaf widget.
type Setting struct {
	Path     string   `json:"path"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Value    string   `json:"value"`
	ReadOnly bool     `json:"readonly"`
	Choices  []string `json:"choices,omitempty"`
	Min      float64  `json:"min,omitempty"`
	Max      float64  `json:"max,omitempty"`
	Step     float64  `json:"step,omitempty"`
}

func describe(path string, w *gphoto.Widget) (Setting, error) {
	s := Setting{Path: path}
	var err error
	if s.Label, err = w.Label(); err != nil {
		return s, err
	}
	t, err := w.Type()
	if err != nil {
		return s, err
	}
	s.Type = t.String()
	if s.ReadOnly, err = w.ReadOnly(); err != nil {
		return s, err
	}
	v, err := w.Value()
	if err != nil {
		return s, err
	}
	if v != nil {
		s.Value = v.String()
	}
	if s.Choices, err = w.Choices(); err != nil {
		return s, err
	}
	if t == gphoto.WidgetRange {
		if s.Min, s.Max, s.Step, err = w.Range(); err != nil {
			return s, err
		}
	}
	return s, nil
}

// Snapshot describes every leaf widget of the camera, in tree order.
func Snapshot(cam Camera) ([]Setting, error) {
	cfg, err := cam.Config()
	if err != nil {
		return nil, err
	}
	defer cfg.Close()

	var out []Setting
	err = cfg.Walk(func(path string, leaf *gphoto.Widget) error {
		s, err := describe(path, leaf)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	debug.Verbose("snapshot: %d settings", len(out))
	return out, nil
}

// Read describes the widget at path.
func Read(cam Camera, path string) (Setting, error) {
	cfg, err := cam.Config()
	if err != nil {
		return Setting{}, err
	}
	defer cfg.Close()

	var s Setting
	err = cfg.With(path, func(w *gphoto.Widget) error {
		var err error
		s, err = describe(canonical(path), w)
		return err
	})
	return s, err
}

// canonical returns path in its "/main/..." form.
func canonical(path string) string {
	return "/" + strings.Join(append([]string{gphoto.RootName}, gphoto.SplitPath(path)...), "/")
}

// Apply sets every path of values to its value in one configuration
// snapshot and commits it once. Widgets already holding the requested value
// are left alone and nothing is committed when no value changes. If any
// value is rejected nothing is committed. It returns the number of
// widgets changed.
func Apply(cam Camera, values map[string]string) (int, error) {
	if len(values) == 0 {
		return 0, nil
	}
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	cfg, err := cam.Config()
	if err != nil {
		return 0, err
	}
	defer cfg.Close()

	changed := 0
	for _, p := range paths {
		want := values[p]
		err := cfg.With(p, func(w *gphoto.Widget) error {
			cur, err := w.Value()
			if err != nil {
				return err
			}
			if cur != nil && cur.String() == want {
				return nil
			}
			if ro, err := w.ReadOnly(); err != nil {
				return err
			} else if ro {
				return ErrReadOnly
			}
			if err := w.SetValue(want); err != nil {
				return err
			}
			debug.Verbose("set %s = %s", p, want)
			changed++
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("set %s: %w", p, err)
		}
	}
	if changed == 0 {
		return 0, nil
	}
	if err := cam.CommitConfig(cfg); err != nil {
		return 0, err
	}
	debug.Info("Applied %d setting(s)", changed)
	return changed, nil
}

// ParseAssignment splits "path=value". The value may be empty.
func ParseAssignment(s string) (path, value string, err error) {
	path, value, ok := strings.Cut(s, "=")
	path = strings.TrimSpace(path)
	if !ok || strings.Trim(path, "/") == "" {
		return "", "", fmt.Errorf("invalid assignment %q, want path=value", s)
	}
	return path, value, nil
}
