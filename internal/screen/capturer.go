// Package screen captures rectangular screen regions
package screen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

// Capturer grabs the pixels of a screen rectangle
type Capturer interface {
	Capture(ctx context.Context, rect image.Rectangle) (image.Image, error)
	Close()
}

// tool builds the platform command that writes a PNG of rect to out
type tool func(ctx context.Context, rect image.Rectangle, out string) (*exec.Cmd, error)

// execCapturer runs an external screenshot tool into a private temp dir
type execCapturer struct {
	tool    tool
	tempDir string
	seq     atomic.Uint64
}

func newExec(t tool) *execCapturer {
	tmpDir, err := os.MkdirTemp("", "polyglot-screen-*")
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
		tmpDir = os.TempDir()
	}
	return &execCapturer{tool: t, tempDir: tmpDir}
}

func (c *execCapturer) Capture(ctx context.Context, rect image.Rectangle) (image.Image, error) {
	if rect.Empty() {
		return nil, apperrors.Newf(apperrors.InvalidArgument, "empty capture rect %v", rect)
	}
	// Concurrent passes over different regions must not share a file.
	out := filepath.Join(c.tempDir, fmt.Sprintf("region-%d.png", c.seq.Add(1)))
	defer os.Remove(out)

	cmd, err := c.tool(ctx, rect, out)
	if err != nil {
		return nil, err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(ctx.Err(), apperrors.Cancelled, "capture cancelled")
		}
		return nil, apperrors.Wrapf(err, apperrors.CaptureFailed, "%s failed: %s",
			filepath.Base(cmd.Path), strings.TrimSpace(stderr.String()))
	}
	return decodePNG(out)
}

func (c *execCapturer) Close() {
	if c.tempDir != "" && c.tempDir != os.TempDir() {
		os.RemoveAll(c.tempDir)
	}
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CaptureFailed, "read screenshot")
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CaptureFailed, "decode screenshot")
	}
	return img, nil
}
