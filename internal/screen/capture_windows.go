//go:build windows

package screen

import (
	"context"
	"image"
	"os/exec"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

// TODO: capture through GDI BitBlt once a windows overlay host exists.
func windowsTool(context.Context, image.Rectangle, string) (*exec.Cmd, error) {
	return nil, apperrors.New(apperrors.CaptureFailed, "screen capture not implemented on windows")
}

// New creates a platform-specific screen capturer
func New() Capturer {
	return newExec(windowsTool)
}
