package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

var envVars = []string{
	"HTTP_ADDR", "GRPC_ADDR", "UPDATE_INTERVAL_MS", "CACHE_SIZE", "DEFAULT_TARGET_LANG",
	"MIN_CONFIDENCE", "MAX_TEXT_LENGTH", "OVERLAY_TTL_MS", "OVERLAY_HOST", "FONT_SIZE_MIN",
	"FONT_SIZE_MAX", "OVERLAY_OPACITY", "AUTO_START", "DEEPL_API_KEY", "GOOGLE_API_KEY",
	"LIBRETRANSLATE_URL", "TESSERACT_LANG", "OCR_PREPROCESS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8000")
	}
	if cfg.GRPCAddr != ":50052" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":50052")
	}
	if cfg.UpdateInterval != 500*time.Millisecond {
		t.Errorf("UpdateInterval = %v, want 500ms", cfg.UpdateInterval)
	}
	if cfg.CacheSize != 1000 {
		t.Errorf("CacheSize = %d, want 1000", cfg.CacheSize)
	}
	if cfg.MinConfidence != 30 {
		t.Errorf("MinConfidence = %v, want 30", cfg.MinConfidence)
	}
	if cfg.MaxTextLength != 5000 {
		t.Errorf("MaxTextLength = %d, want 5000", cfg.MaxTextLength)
	}
	if cfg.Overlay.TTL != 10*time.Second {
		t.Errorf("Overlay.TTL = %v, want 10s", cfg.Overlay.TTL)
	}
	if cfg.Overlay.FontSizeMin != 10 || cfg.Overlay.FontSizeMax != 13 {
		t.Errorf("font range = %d-%d, want 10-13", cfg.Overlay.FontSizeMin, cfg.Overlay.FontSizeMax)
	}
	if cfg.Overlay.Host != HostWebSocket {
		t.Errorf("Overlay.Host = %q, want %q", cfg.Overlay.Host, HostWebSocket)
	}
	if cfg.DefaultTargetLang != "en" {
		t.Errorf("DefaultTargetLang = %q, want en", cfg.DefaultTargetLang)
	}
	if !cfg.AutoStart {
		t.Error("AutoStart should default to true")
	}
	if !cfg.OCRPreprocess {
		t.Error("OCRPreprocess should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("UPDATE_INTERVAL_MS", "250")
	t.Setenv("CACHE_SIZE", "64")
	t.Setenv("OVERLAY_HOST", "LOG")
	t.Setenv("AUTO_START", "false")
	t.Setenv("OCR_PREPROCESS", "false")
	t.Setenv("DEEPL_API_KEY", "abc:fx")

	cfg := Load()

	if cfg.UpdateInterval != 250*time.Millisecond {
		t.Errorf("UpdateInterval = %v, want 250ms", cfg.UpdateInterval)
	}
	if cfg.CacheSize != 64 {
		t.Errorf("CacheSize = %d, want 64", cfg.CacheSize)
	}
	if cfg.Overlay.Host != HostLog {
		t.Errorf("Overlay.Host = %q, want %q", cfg.Overlay.Host, HostLog)
	}
	if cfg.AutoStart {
		t.Error("AutoStart should be false")
	}
	if cfg.OCRPreprocess {
		t.Error("OCRPreprocess should be false")
	}
	if cfg.DeepLAPIKey != "abc:fx" {
		t.Errorf("DeepLAPIKey = %q", cfg.DeepLAPIKey)
	}
}

func TestLoadIgnoresMalformed(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_SIZE", "lots")
	t.Setenv("MIN_CONFIDENCE", "high")

	cfg := Load()
	if cfg.CacheSize != 1000 {
		t.Errorf("CacheSize = %d, want default 1000", cfg.CacheSize)
	}
	if cfg.MinConfidence != 30 {
		t.Errorf("MinConfidence = %v, want default 30", cfg.MinConfidence)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.UpdateInterval = 0 }},
		{"zero cache", func(c *Config) { c.CacheSize = 0 }},
		{"confidence", func(c *Config) { c.MinConfidence = 101 }},
		{"font range", func(c *Config) { c.Overlay.FontSizeMin = 20 }},
		{"opacity", func(c *Config) { c.Overlay.Opacity = 1.5 }},
		{"host", func(c *Config) { c.Overlay.Host = "tk" }},
		{"target", func(c *Config) { c.DefaultTargetLang = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !apperrors.IsCode(err, apperrors.ConfigInvalid) {
				t.Errorf("Validate() = %v, want ConfigInvalid", err)
			}
		})
	}
}

func TestLoadSession(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "session.json")
	doc := `{"deepl_api_key":"k-123","target_language":"es","google_api_key":""}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOGLE_API_KEY", "env-google")

	cfg := Load()
	if err := LoadSession(cfg, path); err != nil {
		t.Fatalf("LoadSession() = %v", err)
	}
	if cfg.DeepLAPIKey != "k-123" {
		t.Errorf("DeepLAPIKey = %q, want k-123", cfg.DeepLAPIKey)
	}
	if cfg.DefaultTargetLang != "es" {
		t.Errorf("DefaultTargetLang = %q, want es", cfg.DefaultTargetLang)
	}
	if cfg.GoogleAPIKey != "env-google" {
		t.Errorf("GoogleAPIKey = %q, empty session value should keep env", cfg.GoogleAPIKey)
	}
}

func TestLoadSessionYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "session.yaml")
	doc := "libretranslate_url: http://localhost:5000\nlibretranslate_api_key: lt\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := Load()
	if err := LoadSession(cfg, path); err != nil {
		t.Fatalf("LoadSession() = %v", err)
	}
	if cfg.LibreTranslateURL != "http://localhost:5000" || cfg.LibreTranslateAPIKey != "lt" {
		t.Errorf("libre = %q / %q", cfg.LibreTranslateURL, cfg.LibreTranslateAPIKey)
	}
}

func TestLoadSessionMissingFile(t *testing.T) {
	cfg := Load()
	err := LoadSession(cfg, filepath.Join(t.TempDir(), "nope.json"))
	if !apperrors.IsCode(err, apperrors.ConfigInvalid) {
		t.Errorf("LoadSession(missing) = %v, want ConfigInvalid", err)
	}
	if err := LoadSession(cfg, ""); err != nil {
		t.Errorf("LoadSession(\"\") = %v, want nil", err)
	}
}
