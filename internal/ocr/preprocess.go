package ocr

import (
	"image"
	"image/color"
	"image/draw"
)

// Preprocess converts img to a binarised grayscale image ready for OCR:
// grayscale, Otsu global threshold, then a despeckle pass.
func Preprocess(img image.Image) *image.Gray {
	gray := Grayscale(img)
	Binarize(gray, OtsuThreshold(gray))
	Despeckle(gray)
	return gray
}

// Grayscale copies img into a zero-origin Gray image.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// OtsuThreshold picks the threshold maximising between-class variance.
func OtsuThreshold(gray *image.Gray) uint8 {
	var hist [256]int
	for _, p := range gray.Pix {
		hist[p]++
	}
	total := len(gray.Pix)
	if total == 0 {
		return 127
	}

	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i * n)
	}

	var (
		sumBg    float64
		weightBg int
		best     float64
		thresh   int
	)
	for t := 0; t < 256; t++ {
		weightBg += hist[t]
		if weightBg == 0 {
			continue
		}
		weightFg := total - weightBg
		if weightFg == 0 {
			break
		}
		sumBg += float64(t * hist[t])
		meanBg := sumBg / float64(weightBg)
		meanFg := (sumAll - sumBg) / float64(weightFg)
		between := float64(weightBg) * float64(weightFg) * (meanBg - meanFg) * (meanBg - meanFg)
		if between > best {
			best = between
			thresh = t
		}
	}
	return uint8(thresh)
}

// Binarize sets pixels above threshold to white and the rest to black, in place.
func Binarize(gray *image.Gray, threshold uint8) {
	for i, p := range gray.Pix {
		if p > threshold {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}
}

// Despeckle flips isolated pixels whose 8 neighbours all have the opposite value.
func Despeckle(gray *image.Gray) {
	b := gray.Bounds()
	if b.Dx() < 3 || b.Dy() < 3 {
		return
	}
	src := image.NewGray(b)
	copy(src.Pix, gray.Pix)

	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			v := src.GrayAt(x, y).Y
			isolated := true
			for dy := -1; dy <= 1 && isolated; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if (dx != 0 || dy != 0) && src.GrayAt(x+dx, y+dy).Y == v {
						isolated = false
						break
					}
				}
			}
			if isolated {
				gray.SetGray(x, y, color.Gray{Y: 255 - v})
			}
		}
	}
}
