package translate

import (
	"strings"

	"golang.org/x/text/language"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

// ParseLanguage canonicalises a user supplied language code to the lower-case
// form used as cache and table keys: the base language, except Chinese which
// keeps its script as "zh-cn" (simplified) or "zh-tw" (traditional).
// "auto" passes through.
func ParseLanguage(code string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(code, "_", "-")))
	if c == "" {
		return "", apperrors.New(apperrors.InvalidArgument, "empty language code")
	}
	if c == SourceAuto {
		return c, nil
	}

	tag, err := language.Parse(c)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.InvalidArgument, "invalid language code %q", code)
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", apperrors.Newf(apperrors.InvalidArgument, "unknown language %q", code)
	}

	if base.String() == "zh" {
		if script, _ := tag.Script(); script.String() == "Hant" {
			return "zh-tw", nil
		}
		return "zh-cn", nil
	}
	return base.String(), nil
}

// codeTable maps normalised codes to a backend's wire codes.
type codeTable map[string]string

func (t codeTable) lookup(code string) (string, bool) {
	v, ok := t[code]
	return v, ok
}

// identityTable builds a table where wire codes equal normalised codes.
func identityTable(codes ...string) codeTable {
	t := make(codeTable, len(codes))
	for _, c := range codes {
		t[c] = c
	}
	return t
}

// commonCodes are languages offered by every keyed backend's catalogue.
var commonCodes = []string{
	"ar", "bg", "cs", "da", "de", "el", "en", "es", "et", "fi", "fr", "hi", "hu",
	"id", "it", "ja", "ko", "lt", "lv", "nl", "pl", "pt", "ro", "ru", "sk", "sl",
	"sv", "tr", "uk",
}
