// Package release fires a camera through its wired remote-release connector.
package release

import (
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/gpcam/internal/debug"
	"github.com/cjeanneret/gpcam/internal/hw/gpio"
)

// Release drives the 3-pin remote connector found on most DSLRs
// (Nikon MC-DC2, Canon E3/N3) through two GPIO lines:
// - GND: connected to Raspberry Pi ground
// - FOCUS: half press (activate by setting to LOW)
// - SHUTTER: full press (activate by setting to LOW)
//
// Trigger sequence:
// 1. FOCUS to LOW (activates autofocus)
// 2. Wait for autofocus to complete
// 3. SHUTTER to LOW (triggers the shot)
// 4. Hold for a moment
// 5. Set SHUTTER and FOCUS back to HIGH
//
// It is an alternative to gphoto.Camera.TriggerCapture for bodies whose
// USB trigger is unsupported or too slow.
type Release struct {
	gpio         gpio.Driver
	focusPin     int
	shutterPin   int
	focusDelay   time.Duration // time for autofocus
	shutterDelay time.Duration // shutter hold time

	mu    sync.Mutex
	sleep func(time.Duration)
}

// New configures both lines as outputs in the inactive (HIGH) state.
func New(g gpio.Driver, focusPin, shutterPin int, focusDelay, shutterDelay time.Duration) (*Release, error) {
	if focusPin == shutterPin {
		return nil, fmt.Errorf("release: focus and shutter share pin %d", focusPin)
	}
	for _, pin := range []int{focusPin, shutterPin} {
		if err := g.SetupPin(pin, gpio.Output); err != nil {
			return nil, fmt.Errorf("release: setup pin %d: %w", pin, err)
		}
		// By default, lines are HIGH (inactive)
		if err := g.WritePin(pin, gpio.High); err != nil {
			return nil, fmt.Errorf("release: idle pin %d: %w", pin, err)
		}
	}

	return &Release{
		gpio:         g,
		focusPin:     focusPin,
		shutterPin:   shutterPin,
		focusDelay:   focusDelay,
		shutterDelay: shutterDelay,
		sleep:        time.Sleep,
	}, nil
}

// TriggerCapture fires one shot.
// Sequence: FOCUS -> wait for AF -> SHUTTER -> hold -> release
func (r *Release) TriggerCapture() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	debug.Printf("Release: triggering shot (focus=%d, shutter=%d)", r.focusPin, r.shutterPin)

	if err := r.press(r.focusPin, "FOCUS"); err != nil {
		return err
	}
	debug.Verbose("Release: waiting for autofocus (%v)", r.focusDelay)
	r.sleep(r.focusDelay)

	if err := r.press(r.shutterPin, "SHUTTER"); err != nil {
		// Release FOCUS on error
		_ = r.gpio.WritePin(r.focusPin, gpio.High)
		return err
	}
	debug.Verbose("Release: holding shutter (%v)", r.shutterDelay)
	r.sleep(r.shutterDelay)

	// Release SHUTTER then FOCUS
	if err := r.lift(r.shutterPin, "SHUTTER"); err != nil {
		_ = r.gpio.WritePin(r.focusPin, gpio.High)
		return err
	}
	if err := r.lift(r.focusPin, "FOCUS"); err != nil {
		return err
	}

	debug.Live("Release: shot triggered")
	return nil
}

// Focus runs autofocus only: a half press held for the focus delay.
func (r *Release) Focus() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.press(r.focusPin, "FOCUS"); err != nil {
		return err
	}
	r.sleep(r.focusDelay)
	return r.lift(r.focusPin, "FOCUS")
}

func (r *Release) press(pin int, line string) error {
	debug.Verbose("Release: activating %s (pin %d -> LOW)", line, pin)
	if err := r.gpio.WritePin(pin, gpio.Low); err != nil {
		return fmt.Errorf("release: press %s: %w", line, err)
	}
	return nil
}

func (r *Release) lift(pin int, line string) error {
	debug.Verbose("Release: releasing %s (pin %d -> HIGH)", line, pin)
	if err := r.gpio.WritePin(pin, gpio.High); err != nil {
		return fmt.Errorf("release: lift %s: %w", line, err)
	}
	return nil
}
