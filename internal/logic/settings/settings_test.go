package settings

import (
	"errors"
	"testing"

	"github.com/cjeanneret/gpcam/internal/gphoto"
	"github.com/cjeanneret/gpcam/internal/gphoto/mock"
)

func openDemo(t *testing.T) (*gphoto.Camera, *mock.Library) {
	t.Helper()
	lib := mock.NewDemo()
	ctx, err := gphoto.NewContext(lib)
	if err != nil {
		t.Fatal(err)
	}
	cam, err := gphoto.Open(ctx, gphoto.WithRemediator(nil))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cam.Close()
		ctx.Close()
	})
	return cam, lib
}

func TestSnapshot(t *testing.T) {
	cam, lib := openDemo(t)

	all, err := Snapshot(cam)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	byPath := make(map[string]Setting, len(all))
	for _, s := range all {
		if _, dup := byPath[s.Path]; dup {
			t.Errorf("duplicate path %s", s.Path)
		}
		byPath[s.Path] = s
	}

	iso, ok := byPath["/main/imgsettings/iso"]
	if !ok {
		t.Fatal("iso missing from snapshot")
	}
	if iso.Type != "radio" || iso.Value != "Auto" || len(iso.Choices) != 8 {
		t.Errorf("iso = %+v", iso)
	}
	zoom := byPath["/main/capturesettings/zoom"]
	if zoom.Type != "range" || zoom.Max != 10 || zoom.Step != 0.5 {
		t.Errorf("zoom = %+v", zoom)
	}
	serial := byPath["/main/status/serialnumber"]
	if !serial.ReadOnly || serial.Value != "0123456789ab" {
		t.Errorf("serialnumber = %+v", serial)
	}
	sync := byPath["/main/actions/syncdatetime"]
	if sync.Type != "button" || sync.Value != "" {
		t.Errorf("syncdatetime = %+v", sync)
	}
	if n := lib.WidgetRefs(); n != 0 {
		t.Errorf("outstanding widget refs = %d, want 0", n)
	}
}

func TestRead(t *testing.T) {
	cam, _ := openDemo(t)

	s, err := Read(cam, "capturesettings/aperture")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if s.Path != "/main/capturesettings/aperture" {
		t.Errorf("path = %q", s.Path)
	}
	if s.Label != "Aperture" || s.Value != "5.6" {
		t.Errorf("aperture = %+v", s)
	}

	if _, err := Read(cam, "/main/capturesettings/nope"); !errors.Is(err, gphoto.ErrPathNotFound) {
		t.Errorf("expected ErrPathNotFound, got %v", err)
	}
}

func TestApply(t *testing.T) {
	cam, lib := openDemo(t)

	n, err := Apply(cam, map[string]string{
		"/main/imgsettings/iso":                  "400",
		"/main/capturesettings/shutterspeed":     "1/250",
		"/main/capturesettings/zoom":             "2.5",
		"/main/capturesettings/autoexposuremode": "Manual", // unchanged
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if n != 3 {
		t.Errorf("changed = %d, want 3", n)
	}
	if got := lib.Calls("gp_camera_set_config"); got != 1 {
		t.Errorf("gp_camera_set_config called %d times, want 1", got)
	}
	if got := lib.Lookup("/main/imgsettings/iso").Text; got != "400" {
		t.Errorf("device iso = %q, want 400", got)
	}
	if got := lib.Lookup("/main/capturesettings/zoom").Float; got != 2.5 {
		t.Errorf("device zoom = %v, want 2.5", got)
	}
	if n := lib.WidgetRefs(); n != 0 {
		t.Errorf("outstanding widget refs = %d, want 0", n)
	}
}

func TestApply_NothingChanged(t *testing.T) {
	cam, lib := openDemo(t)

	n, err := Apply(cam, map[string]string{"/main/imgsettings/iso": "Auto"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("changed = %d, want 0", n)
	}
	if got := lib.Calls("gp_camera_set_config"); got != 0 {
		t.Errorf("gp_camera_set_config called %d times, want 0", got)
	}
}

func TestApply_AllOrNothing(t *testing.T) {
	cases := []struct {
		name   string
		values map[string]string
		is     error
	}{
		{"unknown_path", map[string]string{
			"/main/imgsettings/iso":     "800",
			"/main/imgsettings/missing": "x",
		}, gphoto.ErrPathNotFound},
		{"bad_value", map[string]string{
			"/main/imgsettings/iso":      "800",
			"/main/capturesettings/zoom": "wide",
		}, gphoto.ErrTypeMismatch},
		{"read_only", map[string]string{
			"/main/imgsettings/iso":     "800",
			"/main/status/batterylevel": "50%",
		}, ErrReadOnly},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cam, lib := openDemo(t)
			_, err := Apply(cam, tc.values)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Errorf("expected %v, got %v", tc.is, err)
			}
			if got := lib.Calls("gp_camera_set_config"); got != 0 {
				t.Errorf("gp_camera_set_config called %d times, want 0", got)
			}
			if got := lib.Lookup("/main/imgsettings/iso").Text; got != "Auto" {
				t.Errorf("device iso = %q, want Auto", got)
			}
		})
	}
}

func TestParseAssignment(t *testing.T) {
	cases := []struct {
		in        string
		path      string
		value     string
		wantError bool
	}{
		{"/main/imgsettings/iso=100", "/main/imgsettings/iso", "100", false},
		{"capturesettings/shutterspeed=1/125", "capturesettings/shutterspeed", "1/125", false},
		{"settings/artist=", "settings/artist", "", false},
		{"settings/copyright=a=b", "settings/copyright", "a=b", false},
		{"no-equals", "", "", true},
		{"=100", "", "", true},
		{"/=100", "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			p, v, err := ParseAssignment(tc.in)
			if tc.wantError {
				if err == nil {
					t.Errorf("expected error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if p != tc.path || v != tc.value {
				t.Errorf("got %q=%q, want %q=%q", p, v, tc.path, tc.value)
			}
		})
	}
}
