package debug

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func withLevel(t *testing.T, lvl int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	Init(lvl)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		Init(LevelOff)
		logger = nil
	})
	return &buf
}

func TestNative_OnlyAtTrace(t *testing.T) {
	buf := withLevel(t, LevelVerbose)
	Native("gp_camera_init", -60)
	if buf.Len() != 0 {
		t.Errorf("expected no output below trace level, got %q", buf.String())
	}

	buf = withLevel(t, LevelTrace)
	Native("gp_camera_init", -60)
	if !strings.Contains(buf.String(), "[GP] gp_camera_init -> -60") {
		t.Errorf("unexpected trace output: %q", buf.String())
	}
}

func TestRetry_LiveLevel(t *testing.T) {
	buf := withLevel(t, LevelLive)
	Retry("capture", 1, 2, -110)
	if !strings.Contains(buf.String(), "capture attempt 1/2 failed (code -110)") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestIsEnabled(t *testing.T) {
	withLevel(t, LevelLive)
	if !IsEnabled(LevelInfo) || !IsEnabled(LevelLive) {
		t.Error("info and live should be enabled at live level")
	}
	if IsEnabled(LevelVerbose) {
		t.Error("verbose should be disabled at live level")
	}
}

func TestFmt_DisabledReturnsEmpty(t *testing.T) {
	withLevel(t, LevelOff)
	if got := Fmt("%d", 42); got != "" {
		t.Errorf("Fmt with debug off = %q, want empty", got)
	}
}
