// Package ocr turns captured region images into canonical text.
//
// The Extractor preprocesses an image, asks a Recognizer for words and filters the
// result. Recognizers wrap an OCR engine; the default build shells out to the
// tesseract binary, the gosseract build tag links libtesseract directly.
package ocr

import (
	"context"
	"image"
	"strings"
	"unicode"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
	"github.com/GriffinCanCode/polyglot/internal/trace"
)

// DefaultMinConfidence is the word confidence a word must exceed to be kept.
const DefaultMinConfidence = 30

// Word is one recognised token in reading order.
type Word struct {
	Text       string
	Confidence float64 // 0-100
	Box        image.Rectangle
}

// Recognizer runs an OCR engine over a preprocessed image.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]Word, error)
}

// Extractor filters recognizer output into a single line of text.
type Extractor struct {
	rec        Recognizer
	preprocess bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithoutPreprocess hands the raw capture to the recognizer.
func WithoutPreprocess() Option {
	return func(e *Extractor) { e.preprocess = false }
}

// NewExtractor creates an extractor around rec.
func NewExtractor(rec Recognizer, opts ...Option) *Extractor {
	e := &Extractor{rec: rec, preprocess: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the filtered text in img, or "" when nothing usable was found.
// Recognizer failures are reported as ExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, img image.Image, minConfidence float64) (string, error) {
	ctx, span := trace.StartSpan(ctx, "ocr.extract")
	defer span.End()

	if img == nil || img.Bounds().Empty() {
		return "", nil
	}

	input := img
	if e.preprocess {
		input = Preprocess(img)
	}

	words, err := e.rec.Recognize(ctx, input)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ExtractionFailed) {
			return "", err
		}
		return "", apperrors.Wrap(err, apperrors.ExtractionFailed, "recognize")
	}
	span.SetAttr("words", len(words))

	return Filter(words, minConfidence), nil
}

// Filter keeps words above minConfidence with more than one character, joins
// them and normalises the result. Results shorter than two characters or made
// only of digits are dropped.
func Filter(words []Word, minConfidence float64) string {
	kept := make([]string, 0, len(words))
	for _, w := range words {
		t := strings.TrimSpace(w.Text)
		if w.Confidence > minConfidence && len([]rune(t)) > 1 {
			kept = append(kept, t)
		}
	}

	text := Clean(strings.Join(kept, " "))
	if len([]rune(text)) < 2 || allDigits(text) {
		return ""
	}
	return text
}

// Clean replaces CR/LF with spaces, drops NUL and other control characters and
// collapses whitespace runs.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\r' || r == '\n' || r == '\t':
			b.WriteRune(' ')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
