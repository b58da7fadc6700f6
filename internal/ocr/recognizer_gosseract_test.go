//go:build gosseract

package ocr

import (
	"context"
	"image"
	"reflect"
	"testing"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

func TestNewGosseractLanguages(t *testing.T) {
	tests := []struct {
		lang string
		want []string
	}{
		{"", []string{"eng"}},
		{"jpn+eng", []string{"jpn", "eng"}},
	}
	for _, tt := range tests {
		g, err := newGosseract(tt.lang)
		if err != nil {
			t.Fatalf("newGosseract(%q) error = %v", tt.lang, err)
		}
		if !reflect.DeepEqual(g.client.Languages, tt.want) {
			t.Errorf("newGosseract(%q) languages = %v, want %v", tt.lang, g.client.Languages, tt.want)
		}
		g.Close()
	}
}

func TestGosseractRejectedLanguage(t *testing.T) {
	g, err := newGosseract("+")
	if !apperrors.IsCode(err, apperrors.ExtractionFailed) {
		t.Fatalf("newGosseract(\"+\") error = %v, want ExtractionFailed", err)
	}
	defer g.Close()

	if _, err := g.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8))); !apperrors.IsCode(err, apperrors.ExtractionFailed) {
		t.Errorf("Recognize() error = %v, want the language error", err)
	}
}
