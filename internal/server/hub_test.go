package server

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
	"github.com/GriffinCanCode/polyglot/internal/orchestrator"
	"github.com/GriffinCanCode/polyglot/internal/orchestrator/activity"
	"github.com/GriffinCanCode/polyglot/internal/overlay"
)

func dial(t *testing.T, s *Server) (*websocket.Conn, context.Context) {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	if !waitFor(func() bool { return s.hub.Len() == 1 }) {
		t.Fatal("client never registered")
	}
	return conn, ctx
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for !cond() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func readType(t *testing.T, ctx context.Context, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	var raw json.RawMessage
	if err := wsjson.Read(ctx, conn, &raw); err != nil {
		t.Fatalf("read: %v", err)
	}
	var base Message
	if err := json.Unmarshal(raw, &base); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return base.Type, raw
}

func testOverlay() overlay.Overlay {
	return overlay.Overlay{
		Handle:     overlay.Handle{ID: "ov-1", RegionID: 1},
		Bounds:     image.Rect(10, 20, 110, 60),
		Original:   "Hello",
		Translated: "Hola",
		FontSize:   13,
		Style:      overlay.DefaultStyle(),
	}
}

func TestHubRejectsWithoutRenderer(t *testing.T) {
	hub := NewHub()
	err := hub.Create(context.Background(), testOverlay())
	if !apperrors.IsCode(err, apperrors.OverlayRejected) {
		t.Errorf("Create() error = %v, want OverlayRejected", err)
	}
	if err := hub.Destroy(context.Background(), overlay.Handle{ID: "x"}); err != nil {
		t.Errorf("Destroy() error = %v", err)
	}
}

func TestWebSocketUpgradeThroughHandler(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("status = %d, want 101", resp.StatusCode)
	}
	if !waitFor(func() bool { return s.hub.Len() == 1 }) {
		t.Errorf("hub Len() = %d, want 1", s.hub.Len())
	}
}

func TestHubShowAndHide(t *testing.T) {
	s, _ := newTestServer(t)
	conn, ctx := dial(t, s)

	if err := s.hub.Create(ctx, testOverlay()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	typ, raw := readType(t, ctx, conn)
	if typ != TypeOverlayShow {
		t.Fatalf("type = %q, want %q", typ, TypeOverlayShow)
	}
	var show OverlayShowMessage
	json.Unmarshal(raw, &show)
	if show.X != 10 || show.Y != 20 || show.Width != 100 || show.Height != 40 || show.Translated != "Hola" {
		t.Errorf("show = %+v", show)
	}

	s.hub.Destroy(ctx, overlay.Handle{ID: "ov-1", RegionID: 1})
	typ, raw = readType(t, ctx, conn)
	var hide OverlayHideMessage
	json.Unmarshal(raw, &hide)
	if typ != TypeOverlayHide || hide.ID != "ov-1" {
		t.Errorf("hide = %s", raw)
	}
}

func TestActivityBroadcast(t *testing.T) {
	s, ctrl := newTestServer(t)
	conn, ctx := dial(t, s)

	ctrl.events <- activity.Event{RegionID: 3, Original: "Hello", Translation: "Hola", Status: "translated"}

	typ, raw := readType(t, ctx, conn)
	var msg TranslationMessage
	json.Unmarshal(raw, &msg)
	if typ != TypeTranslation || msg.RegionID != 3 || msg.Translation != "Hola" {
		t.Errorf("translation = %s", raw)
	}
}

func TestNotifyState(t *testing.T) {
	s, _ := newTestServer(t)
	conn, ctx := dial(t, s)

	s.NotifyState(orchestrator.Running)
	typ, raw := readType(t, ctx, conn)
	var msg StateMessage
	json.Unmarshal(raw, &msg)
	if typ != TypeState || msg.State != "running" || msg.Target != "en" {
		t.Errorf("state = %s", raw)
	}
}

func TestHotkeys(t *testing.T) {
	s, ctrl := newTestServer(t)
	conn, ctx := dial(t, s)

	wsjson.Write(ctx, conn, HotkeyMessage{Type: TypeHotkey, Name: HotkeyToggle})
	wsjson.Write(ctx, conn, HotkeyMessage{Type: TypeHotkey, Name: HotkeyClear})
	wsjson.Write(ctx, conn, HotkeyMessage{Type: TypeHotkey, Name: "bogus"})

	// The error for the unknown hotkey arrives after both known ones ran.
	typ, raw := readType(t, ctx, conn)
	if typ != TypeError || !strings.Contains(string(raw), "bogus") {
		t.Errorf("reply = %s", raw)
	}
	if ctrl.State() != orchestrator.Running {
		t.Errorf("State() = %v, want running after toggle", ctrl.State())
	}
	if ctrl.clearCount() != 1 {
		t.Errorf("clear count = %d, want 1", ctrl.clearCount())
	}
}

func TestHotkeyRateLimit(t *testing.T) {
	s, ctrl := newTestServer(t)
	conn, ctx := dial(t, s)

	for i := 0; i < HotkeyBurst+3; i++ {
		wsjson.Write(ctx, conn, HotkeyMessage{Type: TypeHotkey, Name: HotkeyClear})
	}

	typ, raw := readType(t, ctx, conn)
	if typ != TypeError || !strings.Contains(string(raw), "rate limit") {
		t.Errorf("reply = %s", raw)
	}
	if n := ctrl.clearCount(); n > HotkeyBurst+1 {
		t.Errorf("clear count = %d, limiter let too many through", n)
	}
}

func TestUnregisterOnDisconnect(t *testing.T) {
	s, _ := newTestServer(t)
	conn, _ := dial(t, s)
	conn.Close(websocket.StatusNormalClosure, "bye")

	if !waitFor(func() bool { return s.hub.Len() == 0 }) {
		t.Errorf("hub Len() = %d after disconnect", s.hub.Len())
	}
}
