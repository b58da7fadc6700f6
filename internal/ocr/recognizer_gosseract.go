//go:build gosseract

package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"log/slog"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

// Gosseract recognises text through libtesseract. The client is not safe for
// concurrent use, so calls are serialised.
type Gosseract struct {
	mu      sync.Mutex
	client  *gosseract.Client
	lang    string
	langErr error
}

// NewRecognizer returns the engine compiled into this build: libtesseract via cgo.
// The tesseract path is ignored. A language that cannot be set is logged and
// every later Recognize reports it.
func NewRecognizer(_ string, lang string) Recognizer {
	g, err := newGosseract(lang)
	if err != nil {
		slog.Warn("gosseract language rejected, extraction will fail", "lang", lang, "error", err)
	}
	return g
}

func newGosseract(lang string) (*Gosseract, error) {
	if lang == "" {
		lang = "eng"
	}
	g := &Gosseract{client: gosseract.NewClient(), lang: lang}
	langs := strings.FieldsFunc(lang, func(r rune) bool { return r == '+' })
	if err := g.client.SetLanguage(langs...); err != nil {
		g.langErr = apperrors.Wrap(err, apperrors.ExtractionFailed, "set language").WithMetadata("lang", lang)
		return g, g.langErr
	}
	return g, nil
}

// Recognize returns word boxes in reading order.
func (g *Gosseract) Recognize(ctx context.Context, img image.Image) ([]Word, error) {
	if g.langErr != nil {
		return nil, g.langErr
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ExtractionFailed, "encode png")
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Cancelled, "gosseract")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ExtractionFailed, "set image").WithMetadata("lang", g.lang)
	}
	boxes, err := g.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ExtractionFailed, "bounding boxes").WithMetadata("lang", g.lang)
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, Word{Text: b.Word, Confidence: b.Confidence, Box: b.Box})
	}
	return words, nil
}

// Close releases the libtesseract handle.
func (g *Gosseract) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.client.Close()
}
