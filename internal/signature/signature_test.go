package signature

import (
	"image"
	"image/color"
	"testing"
)

func uniform(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// halves paints the left half dark and the right half light.
func halves(w, h int, dark, light color.Color) *image.RGBA {
	img := uniform(w, h, light)
	for y := 0; y < h; y++ {
		for x := 0; x < w/2; x++ {
			img.Set(x, y, dark)
		}
	}
	return img
}

func TestComputeDeterministic(t *testing.T) {
	img := halves(100, 40, color.Black, color.White)

	a, err := Compute(img)
	if err != nil {
		t.Fatalf("Compute() = %v", err)
	}
	b, _ := Compute(img)

	if a != b {
		t.Errorf("identical images gave %v and %v", a, b)
	}
	if Changed(a, b) {
		t.Error("Changed() = true for identical signatures")
	}
}

func TestBlackAndWhiteDiffer(t *testing.T) {
	black, err := Compute(uniform(100, 40, color.Black))
	if err != nil {
		t.Fatal(err)
	}
	white, err := Compute(uniform(100, 40, color.White))
	if err != nil {
		t.Fatal(err)
	}

	if !Changed(black, white) {
		t.Errorf("black %v and white %v should differ", black, white)
	}
	if black.Level() != 0 || white.Level() != 3 {
		t.Errorf("levels = %d, %d, want 0, 3", black.Level(), white.Level())
	}
}

func TestPatternChange(t *testing.T) {
	a, _ := Compute(halves(80, 80, color.Black, color.White))
	b, _ := Compute(halves(80, 80, color.White, color.Black))

	if !Changed(a, b) {
		t.Error("mirrored pattern should change signature")
	}
}

func TestUnset(t *testing.T) {
	if Unset.IsSet() {
		t.Error("Unset.IsSet() = true")
	}
	if Unset.String() != "unset" {
		t.Errorf("Unset.String() = %q", Unset.String())
	}

	// Even an all-black frame with zero bits differs from unset.
	black, _ := Compute(uniform(16, 16, color.Black))
	if !black.IsSet() || !Changed(Unset, black) {
		t.Errorf("computed %v should differ from unset", black)
	}
}

func TestComputeEmptyImage(t *testing.T) {
	if _, err := Compute(image.NewRGBA(image.Rect(0, 0, 0, 0))); err == nil {
		t.Error("Compute(empty) should fail")
	}
	if _, err := Compute(nil); err == nil {
		t.Error("Compute(nil) should fail")
	}
}
