package server

import (
	"time"

	"github.com/GriffinCanCode/polyglot/internal/orchestrator/activity"
	"github.com/GriffinCanCode/polyglot/internal/overlay"
)

// Message is the envelope every WebSocket frame shares.
type Message struct {
	Type string `json:"type"`
}

type OverlayShowMessage struct {
	Type       string        `json:"type"`
	ID         string        `json:"id"`
	RegionID   int           `json:"region_id"`
	X          int           `json:"x"`
	Y          int           `json:"y"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Original   string        `json:"original"`
	Translated string        `json:"translated"`
	FontSize   int           `json:"font_size"`
	Style      overlay.Style `json:"style"`
	Expires    time.Time     `json:"expires"`
}

type OverlayHideMessage struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	RegionID int    `json:"region_id"`
}

type TranslationMessage struct {
	Type string `json:"type"`
	activity.Event
}

type StateMessage struct {
	Type   string `json:"type"`
	State  string `json:"state"`
	Target string `json:"target"`
}

type HotkeyMessage struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	TraceID string `json:"trace_id,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func showMessage(o overlay.Overlay) OverlayShowMessage {
	return OverlayShowMessage{
		Type:       TypeOverlayShow,
		ID:         o.ID,
		RegionID:   o.RegionID,
		X:          o.Bounds.Min.X,
		Y:          o.Bounds.Min.Y,
		Width:      o.Bounds.Dx(),
		Height:     o.Bounds.Dy(),
		Original:   o.Original,
		Translated: o.Translated,
		FontSize:   o.FontSize,
		Style:      o.Style,
		Expires:    o.Expires,
	}
}

func translationMessage(e activity.Event) TranslationMessage {
	e.Original = preview(e.Original)
	e.Translation = preview(e.Translation)
	return TranslationMessage{Type: TypeTranslation, Event: e}
}

// preview cuts s to TextPreviewLimit runes.
func preview(s string) string {
	r := []rune(s)
	if len(r) <= TextPreviewLimit {
		return s
	}
	return string(r[:TextPreviewLimit]) + "..."
}
