// Package server provides the HTTP control API and the WebSocket overlay hub
package server

import (
	"time"

	"golang.org/x/time/rate"
)

// Server configuration constants
const (
	// Text truncation limit for activity broadcasts
	TextPreviewLimit = 500

	// Per-connection hotkey limiting
	HotkeyRate  = rate.Limit(5) // sustained triggers per second
	HotkeyBurst = 5

	// Outbound queue per client; messages beyond it are dropped
	ClientSendBuffer = 64
	WriteTimeout     = 2 * time.Second

	// Default number of events returned by GET /api/activity
	DefaultActivityLimit = 30

	// Largest accepted request body
	MaxBodyBytes = 1 << 16
)

// Message types
const (
	TypeOverlayShow = "overlay_show"
	TypeOverlayHide = "overlay_hide"
	TypeTranslation = "translation"
	TypeState       = "state"
	TypeHotkey      = "hotkey"
	TypeError       = "error"

	HotkeyClear  = "clear"
	HotkeyToggle = "toggle"
)
