package translate

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

// Libre talks to a LibreTranslate instance. The public instance is best effort.
type Libre struct {
	httpBackend
	apiKey string
}

func libreTable() codeTable {
	t := identityTable(commonCodes...)
	for _, c := range []string{"ca", "fa", "ga", "he", "ms", "sq", "th", "tl", "ur", "az", "eo"} {
		t[c] = c
	}
	t["zh-cn"] = "zh"
	t["zh-tw"] = "zt"
	t["no"] = "nb"
	t["nb"] = "nb"
	return t
}

// NewLibre creates a client for the instance at baseURL (DefaultLibre when empty).
func NewLibre(baseURL, apiKey string, opts ...Option) *Libre {
	if baseURL == "" {
		baseURL = DefaultLibre
	}
	return &Libre{
		httpBackend: newHTTPBackend(NameLibre, strings.TrimRight(baseURL, "/"), LibreTimeout, libreTable(), opts),
		apiKey:      apiKey,
	}
}

// Translate implements Backend.
func (l *Libre) Translate(ctx context.Context, text, target, source string) (string, error) {
	wire, ok := l.wireCode(target)
	if !ok {
		return "", apperrors.Newf(apperrors.UnsupportedLanguage, "libretranslate does not support %q", target)
	}
	src := SourceAuto
	if source != "" && source != SourceAuto {
		if s, ok := l.wireCode(source); ok {
			src = s
		}
	}

	form := url.Values{}
	form.Set("q", strings.TrimSpace(text))
	form.Set("source", src)
	form.Set("target", wire)
	form.Set("format", "text")
	if l.apiKey != "" {
		form.Set("api_key", l.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Internal, "build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var body struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := l.do(req, &body); err != nil {
		return "", err
	}
	return body.TranslatedText, nil
}

// Probe lists the instance's languages.
func (l *Libre) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/languages", nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.Internal, "build request")
	}
	var langs []struct {
		Code string `json:"code"`
	}
	if err := l.do(req, &langs); err != nil {
		return err
	}
	if len(langs) == 0 {
		return apperrors.New(apperrors.Unavailable, "libretranslate reports no languages")
	}
	return nil
}
