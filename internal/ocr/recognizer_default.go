//go:build !gosseract

package ocr

// NewRecognizer returns the engine compiled into this build: the tesseract CLI.
func NewRecognizer(path, lang string) Recognizer {
	return NewTesseractCLI(path, lang)
}
