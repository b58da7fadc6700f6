package translate

import "time"

// Backend names.
const (
	NameGoogle   = "google"
	NameDeepL    = "deepl"
	NameLibre    = "libretranslate"
	NameIdentity = "identity"
)

// Per-backend request timeouts.
const (
	GoogleTimeout = 10 * time.Second
	DeepLTimeout  = 15 * time.Second
	LibreTimeout  = 15 * time.Second
	ProbeTimeout  = 5 * time.Second
)

// Per-backend request rates (requests per second, burst).
const (
	GoogleRate  = 10
	GoogleBurst = 10
	DeepLRate   = 5
	DeepLBurst  = 5
	LibreRate   = 1
	LibreBurst  = 2
)

// Endpoints.
const (
	GoogleEndpoint = "https://translation.googleapis.com/language/translate/v2"
	DeepLFreeURL   = "https://api-free.deepl.com"
	DeepLProURL    = "https://api.deepl.com"
	DefaultLibre   = "https://libretranslate.com"

	googleScope   = "https://www.googleapis.com/auth/cloud-translation"
	deeplFreeKey  = ":fx"
	maxErrorBytes = 4 << 10
)

// Probe request used to validate credentials at startup.
const (
	probeText   = "Hello"
	probeTarget = "es"
)

// SourceAuto asks the backend to detect the source language.
const SourceAuto = "auto"

// DefaultMaxTextLength bounds dispatched text, in runes.
const DefaultMaxTextLength = 5000
