package screen

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	img.SetGray(1, 1, color.Gray{Y: 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestCaptureDecodesToolOutput(t *testing.T) {
	if _, err := exec.LookPath("cp"); err != nil {
		t.Skip("cp not available")
	}
	src := filepath.Join(t.TempDir(), "src.png")
	writePNG(t, src, 40, 20)

	var gotRect image.Rectangle
	c := newExec(func(ctx context.Context, r image.Rectangle, out string) (*exec.Cmd, error) {
		gotRect = r
		return exec.CommandContext(ctx, "cp", src, out), nil
	})
	defer c.Close()

	rect := image.Rect(10, 10, 50, 30)
	img, err := c.Capture(context.Background(), rect)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if gotRect != rect {
		t.Errorf("tool rect = %v, want %v", gotRect, rect)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("image size = %dx%d, want 40x20", b.Dx(), b.Dy())
	}

	entries, _ := os.ReadDir(c.tempDir)
	if len(entries) != 0 {
		t.Errorf("temp dir has %d leftover files", len(entries))
	}
}

func TestCaptureToolFailure(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	c := newExec(func(ctx context.Context, _ image.Rectangle, _ string) (*exec.Cmd, error) {
		return exec.CommandContext(ctx, "false"), nil
	})
	defer c.Close()

	_, err := c.Capture(context.Background(), image.Rect(0, 0, 10, 10))
	if !apperrors.IsCode(err, apperrors.CaptureFailed) {
		t.Errorf("Capture() error = %v, want CaptureFailed", err)
	}
}

func TestCaptureMissingOutput(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	c := newExec(func(ctx context.Context, _ image.Rectangle, _ string) (*exec.Cmd, error) {
		return exec.CommandContext(ctx, "true"), nil
	})
	defer c.Close()

	_, err := c.Capture(context.Background(), image.Rect(0, 0, 10, 10))
	if !apperrors.IsCode(err, apperrors.CaptureFailed) {
		t.Errorf("Capture() error = %v, want CaptureFailed", err)
	}
}

func TestCaptureNoTool(t *testing.T) {
	c := newExec(func(context.Context, image.Rectangle, string) (*exec.Cmd, error) {
		return nil, apperrors.New(apperrors.CaptureFailed, "no screenshot tool found")
	})
	defer c.Close()

	_, err := c.Capture(context.Background(), image.Rect(0, 0, 10, 10))
	if !apperrors.IsCode(err, apperrors.CaptureFailed) {
		t.Errorf("Capture() error = %v, want CaptureFailed", err)
	}
}

func TestCaptureEmptyRect(t *testing.T) {
	c := newExec(func(context.Context, image.Rectangle, string) (*exec.Cmd, error) {
		t.Fatal("tool should not run for an empty rect")
		return nil, nil
	})
	defer c.Close()

	_, err := c.Capture(context.Background(), image.Rect(5, 5, 5, 10))
	if !apperrors.IsCode(err, apperrors.InvalidArgument) {
		t.Errorf("Capture() error = %v, want InvalidArgument", err)
	}
}

func TestCloseRemovesTempDir(t *testing.T) {
	c := newExec(nil)
	dir := c.tempDir
	c.Close()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("temp dir %s still exists", dir)
	}
}
