package gphoto

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/cjeanneret/gpcam/internal/debug"
)

// Remediator frees a device that another process holds locked, before
// Camera.Init tries again.
type Remediator interface {
	Remediate() error
}

// RemediatorFunc adapts a function to Remediator.
type RemediatorFunc func() error

func (f RemediatorFunc) Remediate() error { return f() }

// CommandRemediator runs an external command, typically one that unmounts
// the camera from the desktop's volume monitor.
type CommandRemediator struct {
	Name string
	Args []string
}

// DefaultRemediator unmounts gphoto2 volumes claimed by GVFS.
func DefaultRemediator() *CommandRemediator {
	return &CommandRemediator{Name: "gvfs-mount", Args: []string{"-s", "gphoto2"}}
}

// Remediate runs the command and waits for it to finish.
func (r *CommandRemediator) Remediate() error {
	if r == nil || r.Name == "" {
		return nil
	}
	debug.Verbose("remediation: %s %s", r.Name, strings.Join(r.Args, " "))
	out, err := exec.Command(r.Name, r.Args...).CombinedOutput()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%s not installed: %w", r.Name, err)
		}
		return fmt.Errorf("%s: %w: %s", r.Name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
