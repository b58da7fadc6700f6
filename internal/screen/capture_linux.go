//go:build linux

package screen

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

// linuxArgs picks the first available tool. grim only works under Wayland.
func linuxArgs(lookPath func(string) (string, error), wayland bool, r image.Rectangle, out string) ([]string, error) {
	if _, err := lookPath("grim"); err == nil && wayland {
		return []string{"grim", "-g", fmt.Sprintf("%d,%d %dx%d", r.Min.X, r.Min.Y, r.Dx(), r.Dy()), out}, nil
	}
	if _, err := lookPath("scrot"); err == nil {
		return []string{"scrot", "-o", "-a", fmt.Sprintf("%d,%d,%d,%d", r.Min.X, r.Min.Y, r.Dx(), r.Dy()), out}, nil
	}
	if _, err := lookPath("import"); err == nil {
		return []string{"import", "-window", "root", "-crop", fmt.Sprintf("%dx%d+%d+%d", r.Dx(), r.Dy(), r.Min.X, r.Min.Y), out}, nil
	}
	return nil, apperrors.New(apperrors.CaptureFailed, "no screenshot tool found (install grim, scrot or imagemagick)")
}

func linuxTool(ctx context.Context, r image.Rectangle, out string) (*exec.Cmd, error) {
	args, err := linuxArgs(exec.LookPath, os.Getenv("WAYLAND_DISPLAY") != "", r, out)
	if err != nil {
		return nil, err
	}
	return exec.CommandContext(ctx, args[0], args[1:]...), nil
}

// New creates a platform-specific screen capturer
func New() Capturer {
	return newExec(linuxTool)
}
