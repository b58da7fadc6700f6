package translate

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
	"github.com/GriffinCanCode/polyglot/internal/trace"
)

// DeepL talks to the DeepL v2 API. Keys ending in ":fx" use the free endpoint.
type DeepL struct {
	httpBackend
	apiKey string
}

// Usage is the character quota reported by /v2/usage.
type Usage struct {
	CharacterCount int64 `json:"character_count"`
	CharacterLimit int64 `json:"character_limit"`
}

func deeplTable() codeTable {
	t := make(codeTable, len(commonCodes)+4)
	for _, c := range commonCodes {
		t[c] = strings.ToUpper(c)
	}
	t["zh-cn"] = "ZH"
	t["zh-tw"] = "ZH"
	t["no"] = "NB"
	t["nb"] = "NB"
	return t
}

// NewDeepL creates a DeepL client, picking the endpoint from the key tier.
func NewDeepL(apiKey string, opts ...Option) *DeepL {
	base := DeepLProURL
	if IsDeepLFreeKey(apiKey) {
		base = DeepLFreeURL
	}
	return &DeepL{
		httpBackend: newHTTPBackend(NameDeepL, base, DeepLTimeout, deeplTable(), opts),
		apiKey:      apiKey,
	}
}

// IsDeepLFreeKey reports whether key belongs to the free tier.
func IsDeepLFreeKey(key string) bool {
	return strings.HasSuffix(strings.TrimSpace(key), deeplFreeKey)
}

func (d *DeepL) authorize(req *http.Request) {
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.apiKey)
}

// Translate implements Backend.
func (d *DeepL) Translate(ctx context.Context, text, target, source string) (string, error) {
	wire, ok := d.wireCode(target)
	if !ok {
		return "", apperrors.Newf(apperrors.UnsupportedLanguage, "deepl does not support %q", target)
	}

	form := url.Values{}
	form.Set("text", strings.TrimSpace(text))
	form.Set("target_lang", wire)
	if source != "" && source != SourceAuto {
		if src, ok := d.wireCode(source); ok {
			form.Set("source_lang", src)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v2/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Internal, "build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	d.authorize(req)

	var body struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := d.do(req, &body); err != nil {
		return "", err
	}
	if len(body.Translations) == 0 {
		return "", apperrors.New(apperrors.BackendError, "deepl returned no translations")
	}
	return body.Translations[0].Text, nil
}

// Usage returns the account's character usage.
func (d *DeepL) Usage(ctx context.Context) (Usage, error) {
	var u Usage
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/v2/usage", nil)
	if err != nil {
		return u, apperrors.Wrap(err, apperrors.Internal, "build request")
	}
	d.authorize(req)
	err = d.do(req, &u)
	return u, err
}

// Probe checks the key against /v2/usage and logs the quota.
func (d *DeepL) Probe(ctx context.Context) error {
	u, err := d.Usage(ctx)
	if err != nil {
		return err
	}
	tier := "pro"
	if IsDeepLFreeKey(d.apiKey) {
		tier = "free"
	}
	trace.Logger(ctx).Info("deepl connected", "tier", tier, "characters", u.CharacterCount, "limit", u.CharacterLimit)
	return nil
}
