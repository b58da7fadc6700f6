// Package config handles polyglot configuration
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

// Overlay host kinds.
const (
	HostWebSocket = "websocket"
	HostLog       = "log"
)

// Config is built once at startup and passed by value or pointer to constructors.
// Nothing mutates it after Load/LoadSession; the runtime target language lives on the scheduler.
type Config struct {
	HTTPAddr           string
	GRPCAddr           string
	UpdateInterval     time.Duration
	CacheSize          int
	DefaultTargetLang  string
	MinConfidence      float64
	MaxTextLength      int
	AutoStart          bool
	UntranslatedMarker string

	Overlay OverlayConfig

	DeepLAPIKey          string
	GoogleAPIKey         string
	GoogleCredentials    string // service-account JSON path
	LibreTranslateURL    string
	LibreTranslateAPIKey string

	TesseractPath string
	TesseractLang string
	OCRPreprocess bool // threshold and despeckle before recognition

	SessionFile string
}

// OverlayConfig controls overlay appearance and lifetime.
type OverlayConfig struct {
	Host        string
	TTL         time.Duration
	Background  string
	Foreground  string
	Opacity     float64
	FontSizeMin int
	FontSizeMax int
}

func Load() *Config {
	return &Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8000"),
		GRPCAddr:           getEnv("GRPC_ADDR", ":50052"),
		UpdateInterval:     getEnvMillis("UPDATE_INTERVAL_MS", 500*time.Millisecond),
		CacheSize:          getEnvInt("CACHE_SIZE", 1000),
		DefaultTargetLang:  getEnv("DEFAULT_TARGET_LANG", "en"),
		MinConfidence:      getEnvFloat("MIN_CONFIDENCE", 30),
		MaxTextLength:      getEnvInt("MAX_TEXT_LENGTH", 5000),
		AutoStart:          getEnvBool("AUTO_START", true),
		UntranslatedMarker: getEnvRaw("UNTRANSLATED_MARKER", "[untranslated] "),
		Overlay: OverlayConfig{
			Host:        strings.ToLower(getEnv("OVERLAY_HOST", HostWebSocket)),
			TTL:         getEnvMillis("OVERLAY_TTL_MS", 10*time.Second),
			Background:  getEnv("OVERLAY_BG_COLOR", "#2C3E50"),
			Foreground:  getEnv("OVERLAY_TEXT_COLOR", "#FFFFFF"),
			Opacity:     getEnvFloat("OVERLAY_OPACITY", 0.95),
			FontSizeMin: getEnvInt("FONT_SIZE_MIN", 10),
			FontSizeMax: getEnvInt("FONT_SIZE_MAX", 13),
		},
		DeepLAPIKey:          getEnv("DEEPL_API_KEY", ""),
		GoogleAPIKey:         getEnv("GOOGLE_API_KEY", ""),
		GoogleCredentials:    getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		LibreTranslateURL:    getEnv("LIBRETRANSLATE_URL", "https://libretranslate.com"),
		LibreTranslateAPIKey: getEnv("LIBRETRANSLATE_API_KEY", ""),
		TesseractPath:        getEnv("TESSERACT_PATH", "tesseract"),
		TesseractLang:        getEnv("TESSERACT_LANG", "eng"),
		OCRPreprocess:        getEnvBool("OCR_PREPROCESS", true),
		SessionFile:          getEnv("POLYGLOT_SESSION_FILE", ""),
	}
}

// Validate reports the first invalid setting as ConfigInvalid.
func (c *Config) Validate() error {
	switch {
	case c.UpdateInterval <= 0:
		return apperrors.New(apperrors.ConfigInvalid, "update interval must be positive")
	case c.CacheSize <= 0:
		return apperrors.New(apperrors.ConfigInvalid, "cache size must be positive")
	case c.MaxTextLength <= 0:
		return apperrors.New(apperrors.ConfigInvalid, "max text length must be positive")
	case c.MinConfidence < 0 || c.MinConfidence > 100:
		return apperrors.Newf(apperrors.ConfigInvalid, "min confidence %.1f outside 0-100", c.MinConfidence)
	case c.DefaultTargetLang == "":
		return apperrors.New(apperrors.ConfigInvalid, "default target language is empty")
	case c.Overlay.TTL <= 0:
		return apperrors.New(apperrors.ConfigInvalid, "overlay ttl must be positive")
	case c.Overlay.FontSizeMin <= 0 || c.Overlay.FontSizeMin > c.Overlay.FontSizeMax:
		return apperrors.Newf(apperrors.ConfigInvalid, "font size range %d-%d invalid", c.Overlay.FontSizeMin, c.Overlay.FontSizeMax)
	case c.Overlay.Opacity < 0 || c.Overlay.Opacity > 1:
		return apperrors.Newf(apperrors.ConfigInvalid, "overlay opacity %.2f outside 0-1", c.Overlay.Opacity)
	case c.Overlay.Host != HostWebSocket && c.Overlay.Host != HostLog:
		return apperrors.Newf(apperrors.ConfigInvalid, "unknown overlay host %q", c.Overlay.Host).
			WithMetadata("allowed", HostWebSocket+","+HostLog)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// getEnvRaw keeps surrounding whitespace, which matters for the marker prefix.
func getEnvRaw(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvMillis(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
