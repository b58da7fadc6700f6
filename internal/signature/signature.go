// Package signature computes compact change-detection digests of captured regions.
package signature

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
	"github.com/nfnt/resize"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

// gridSize is the downsampled edge length; 8x8 yields a 64-bit hash.
const gridSize = 8

// levelStep buckets mean luminance (0-255) into four coarse levels.
const levelStep = 64

// Signature is a 64-bit above/below-mean pattern plus a coarse brightness level.
// The zero value is "unset" and never equals a computed signature.
type Signature struct {
	hash  uint64
	level uint8
	valid bool
}

// Unset is the signature of a region that has not been captured yet.
var Unset Signature

// Compute returns the signature of img.
func Compute(img image.Image) (Signature, error) {
	if img == nil || img.Bounds().Empty() {
		return Unset, apperrors.New(apperrors.InvalidArgument, "empty image")
	}

	h, err := goimagehash.AverageHash(img)
	if err != nil {
		return Unset, apperrors.Wrap(err, apperrors.Internal, "average hash")
	}

	return Signature{hash: h.GetHash(), level: luminanceLevel(img), valid: true}, nil
}

// Changed reports whether next differs from prev. An unset prev always counts as changed.
func Changed(prev, next Signature) bool {
	return prev != next
}

// IsSet reports whether s came from Compute.
func (s Signature) IsSet() bool { return s.valid }

// Level returns the coarse luminance bucket (0-3).
func (s Signature) Level() uint8 { return s.level }

func (s Signature) String() string {
	if !s.valid {
		return "unset"
	}
	return fmt.Sprintf("%016x/%d", s.hash, s.level)
}

// luminanceLevel downsamples the same way the hash does and buckets the mean.
// Uniform frames produce an all-zero bit pattern regardless of brightness, so
// the level keeps a black frame distinguishable from a white one.
func luminanceLevel(img image.Image) uint8 {
	small := resize.Resize(gridSize, gridSize, img, resize.Bilinear)
	b := small.Bounds()

	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := small.At(x, y).RGBA()
			sum += 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
		}
	}
	mean := sum / float64(b.Dx()*b.Dy())
	return uint8(min(mean/levelStep, 3))
}
