package ocr

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os/exec"
	"strconv"
	"strings"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

// tsvWordLevel is the tesseract TSV level of individual words.
const tsvWordLevel = 5

// TesseractCLI recognises text by piping a PNG into the tesseract binary.
type TesseractCLI struct {
	Path string // binary, defaults to "tesseract"
	Lang string // traineddata, defaults to "eng"
}

// NewTesseractCLI returns a recognizer using the given binary and language.
func NewTesseractCLI(path, lang string) *TesseractCLI {
	if path == "" {
		path = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	return &TesseractCLI{Path: path, Lang: lang}
}

// Available reports whether the binary can be found.
func (t *TesseractCLI) Available() bool {
	_, err := exec.LookPath(t.Path)
	return err == nil
}

// Recognize runs `tesseract stdin stdout -l <lang> tsv` and parses word rows.
func (t *TesseractCLI) Recognize(ctx context.Context, img image.Image) ([]Word, error) {
	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ExtractionFailed, "encode png")
	}

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.Path, "stdin", "stdout", "-l", t.Lang, "tsv")
	cmd.Stdin = &in
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(ctx.Err(), apperrors.Cancelled, "tesseract")
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, apperrors.Wrap(err, apperrors.ExtractionFailed, "tesseract").
				WithMetadata("stderr", strings.TrimSpace(stderr.String()))
		}
		return nil, apperrors.Wrap(err, apperrors.ExtractionFailed, "run tesseract").WithMetadata("path", t.Path)
	}
	return ParseTSV(&out)
}

// ParseTSV reads tesseract TSV output and returns word rows in reading order.
func ParseTSV(r io.Reader) ([]Word, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var words []Word
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) < 12 {
			continue
		}
		if level, err := strconv.Atoi(fields[0]); err != nil || level != tsvWordLevel {
			continue
		}
		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		text := strings.Join(fields[11:], "\t")
		if strings.TrimSpace(text) == "" {
			continue
		}
		words = append(words, Word{Text: text, Confidence: conf, Box: tsvBox(fields[6:10])})
	}
	if err := sc.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ExtractionFailed, "read tsv")
	}
	return words, nil
}

func tsvBox(f []string) image.Rectangle {
	var v [4]int
	for i := range v {
		v[i], _ = strconv.Atoi(f[i])
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3])
}
