package translate

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

// Google talks to the Cloud Translation v2 REST API, authenticated by API key
// or by a service account token source.
type Google struct {
	httpBackend
	apiKey string
}

func googleTable() codeTable {
	t := identityTable(commonCodes...)
	for _, c := range []string{"af", "ca", "fa", "ga", "he", "hr", "is", "ms", "no", "sq", "sr", "sw", "th", "tl", "ur", "vi", "cy"} {
		t[c] = c
	}
	t["zh-cn"] = "zh-CN"
	t["zh-tw"] = "zh-TW"
	t["nb"] = "no"
	return t
}

// NewGoogle creates an API-key authenticated client.
func NewGoogle(apiKey string, opts ...Option) *Google {
	return &Google{
		httpBackend: newHTTPBackend(NameGoogle, GoogleEndpoint, GoogleTimeout, googleTable(), opts),
		apiKey:      apiKey,
	}
}

// NewGoogleServiceAccount creates a client authenticated with the service
// account JSON at credentialsPath. Explicit options are applied after the
// OAuth client, so WithHTTPClient still wins.
func NewGoogleServiceAccount(ctx context.Context, credentialsPath string, opts ...Option) (*Google, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ConfigInvalid, "read google credentials").WithMetadata("path", credentialsPath)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, googleScope)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unauthorized, "parse google credentials")
	}
	client := oauth2.NewClient(context.Background(), creds.TokenSource)
	return NewGoogle("", append([]Option{WithHTTPClient(client)}, opts...)...), nil
}

// Translate implements Backend.
func (g *Google) Translate(ctx context.Context, text, target, source string) (string, error) {
	wire, ok := g.wireCode(target)
	if !ok {
		return "", apperrors.Newf(apperrors.UnsupportedLanguage, "google does not support %q", target)
	}

	q := url.Values{}
	q.Set("q", strings.TrimSpace(text))
	q.Set("target", wire)
	q.Set("format", "text")
	if source != "" && source != SourceAuto {
		if src, ok := g.wireCode(source); ok {
			q.Set("source", src)
		}
	}
	if g.apiKey != "" {
		q.Set("key", g.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Internal, "build request")
	}

	var body struct {
		Data struct {
			Translations []struct {
				TranslatedText string `json:"translatedText"`
			} `json:"translations"`
		} `json:"data"`
	}
	if err := g.do(req, &body); err != nil {
		return "", err
	}
	if len(body.Data.Translations) == 0 {
		return "", apperrors.New(apperrors.BackendError, "google returned no translations")
	}
	return body.Data.Translations[0].TranslatedText, nil
}

// Probe translates a short phrase; the API has no cheaper authenticated call.
func (g *Google) Probe(ctx context.Context) error {
	_, err := g.Translate(ctx, probeText, probeTarget, SourceAuto)
	return err
}
