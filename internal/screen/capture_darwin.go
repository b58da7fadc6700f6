//go:build darwin

package screen

import (
	"context"
	"fmt"
	"image"
	"os/exec"
)

func darwinTool(ctx context.Context, r image.Rectangle, out string) (*exec.Cmd, error) {
	area := fmt.Sprintf("%d,%d,%d,%d", r.Min.X, r.Min.Y, r.Dx(), r.Dy())
	return exec.CommandContext(ctx, "screencapture", "-x", "-t", "png", "-R", area, out), nil
}

// New creates a platform-specific screen capturer
func New() Capturer {
	return newExec(darwinTool)
}
