package config

import (
	"strings"

	"github.com/spf13/viper"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

// Session file keys.
const (
	KeyDeepL          = "deepl_api_key"
	KeyGoogle         = "google_api_key"
	KeyLibreURL       = "libretranslate_url"
	KeyLibreAPIKey    = "libretranslate_api_key"
	KeyTargetLanguage = "target_language"
)

// LoadSession overlays a flat key-value session file (json, yaml or toml, picked by
// extension) onto cfg. Non-empty file values win over environment values.
// An empty path is a no-op.
func LoadSession(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return apperrors.Wrap(err, apperrors.ConfigInvalid, "read session file").WithMetadata("path", path)
	}

	override := func(dst *string, key string) {
		if s := strings.TrimSpace(v.GetString(key)); s != "" {
			*dst = s
		}
	}
	override(&cfg.DeepLAPIKey, KeyDeepL)
	override(&cfg.GoogleAPIKey, KeyGoogle)
	override(&cfg.LibreTranslateURL, KeyLibreURL)
	override(&cfg.LibreTranslateAPIKey, KeyLibreAPIKey)
	override(&cfg.DefaultTargetLang, KeyTargetLanguage)
	cfg.SessionFile = path
	return nil
}
