package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/GriffinCanCode/polyglot/internal/cache"
	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
	"github.com/GriffinCanCode/polyglot/internal/orchestrator"
	"github.com/GriffinCanCode/polyglot/internal/orchestrator/activity"
	"github.com/GriffinCanCode/polyglot/internal/orchestrator/region"
	"github.com/GriffinCanCode/polyglot/internal/translate"
)

// mockController for testing.
type mockController struct {
	mu       sync.Mutex
	regions  []region.Region
	nextID   int
	state    orchestrator.State
	target   string
	cleared  int
	events   chan activity.Event
	activity []activity.Event
}

func newMockController() *mockController {
	return &mockController{nextID: 1, target: "en", events: make(chan activity.Event, 10)}
}

func (m *mockController) AddRegion(b region.Bounds) (int, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.regions = append(m.regions, region.Region{ID: id, Bounds: b})
	return id, nil
}

func (m *mockController) RemoveRegion(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.regions {
		if r.ID == id {
			m.regions = append(m.regions[:i], m.regions[i+1:]...)
			return nil
		}
	}
	return apperrors.Newf(apperrors.NotFound, "region %d not found", id)
}

func (m *mockController) ListRegions() []region.Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]region.Region(nil), m.regions...)
}

func (m *mockController) Start() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := m.state != orchestrator.Running
	m.state = orchestrator.Running
	return changed
}

func (m *mockController) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := m.state != orchestrator.Stopped
	m.state = orchestrator.Stopped
	return changed
}

func (m *mockController) State() orchestrator.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockController) SetTargetLanguage(code string) error {
	c, err := translate.ParseLanguage(code)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.target = c
	m.mu.Unlock()
	return nil
}

func (m *mockController) TargetLanguage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

func (m *mockController) ClearOverlays() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared++
	return 2
}

func (m *mockController) clearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}

func (m *mockController) Events() <-chan activity.Event { return m.events }

func (m *mockController) RecentActivity(n int) []activity.Event {
	if n > 0 && n < len(m.activity) {
		return m.activity[len(m.activity)-n:]
	}
	return m.activity
}

func (m *mockController) RegionActivity(id int) ([]activity.Event, error) {
	var out []activity.Event
	for _, e := range m.activity {
		if e.RegionID == id {
			out = append(out, e)
		}
	}
	if out == nil {
		return nil, apperrors.Newf(apperrors.NotFound, "region %d not found", id)
	}
	return out, nil
}

func (m *mockController) CacheStats() cache.Stats { return cache.Stats{Size: 3, Max: 1000, Hits: 5} }

type mockBackends struct{}

func (mockBackends) Active() string { return translate.NameDeepL }

func (mockBackends) Backends() []translate.Descriptor {
	return []translate.Descriptor{
		{Name: translate.NameDeepL, Rank: 1, Health: translate.Healthy, Active: true},
		{Name: translate.NameIdentity, Rank: 2, Health: translate.Standby},
	}
}

func newTestServer(t *testing.T) (*Server, *mockController) {
	t.Helper()
	ctrl := newMockController()
	s := New(ctrl, mockBackends{}, NewHub())
	t.Cleanup(s.Close)
	return s, ctrl
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Test OPTIONS request
	req := httptest.NewRequest("OPTIONS", "/test", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want %d", rec.Code, http.StatusOK)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("CORS origin = %q, want %q", v, "*")
	}
	if v := rec.Header().Get("Access-Control-Allow-Methods"); v != "GET, POST, PUT, DELETE, OPTIONS" {
		t.Errorf("CORS methods = %q", v)
	}
}

func TestAddAndListRegions(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, "POST", "/api/regions", `{"x1":0,"y1":0,"x2":100,"y2":40}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, body %s", rec.Code, rec.Body)
	}
	var created map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil || created["id"] != 1 {
		t.Errorf("POST body = %s", rec.Body)
	}

	rec = do(t, h, "GET", "/api/regions", "")
	var regs []struct {
		ID     int           `json:"id"`
		Bounds region.Bounds `json:"bounds"`
		Phase  string        `json:"phase"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &regs); err != nil {
		t.Fatalf("GET body %s: %v", rec.Body, err)
	}
	if len(regs) != 1 || regs[0].Bounds.X2 != 100 || regs[0].Phase != "idle" {
		t.Errorf("regions = %+v", regs)
	}
	if rec.Header().Get("traceparent") == "" {
		t.Error("response should carry a traceparent header")
	}
}

func TestAddRegionErrors(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"bad bounds", `{"x1":10,"y1":0,"x2":10,"y2":40}`},
		{"not json", `{x1`},
		{"unknown field", `{"left":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, "POST", "/api/regions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if body := decodeError(t, rec); body["code"] != "INVALID_ARGUMENT" || body["error"] == "" {
				t.Errorf("error body = %v", body)
			}
		})
	}
}

func TestRemoveRegion(t *testing.T) {
	s, ctrl := newTestServer(t)
	h := s.Handler()
	ctrl.AddRegion(region.Bounds{X2: 10, Y2: 10})

	if rec := do(t, h, "DELETE", "/api/regions/1", ""); rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", rec.Code)
	}
	rec := do(t, h, "DELETE", "/api/regions/1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want 404", rec.Code)
	}
	if body := decodeError(t, rec); body["code"] != "NOT_FOUND" {
		t.Errorf("error body = %v", body)
	}
	if rec := do(t, h, "DELETE", "/api/regions/abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("DELETE abc status = %d, want 400", rec.Code)
	}
}

func TestMonitorStartStop(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	var st monitorStatus
	rec := do(t, h, "POST", "/api/monitor/start", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.State != "running" || !st.Changed || st.Cache.Hits != 5 {
		t.Errorf("start status = %+v", st)
	}

	rec = do(t, h, "POST", "/api/monitor/start", "")
	json.Unmarshal(rec.Body.Bytes(), &st)
	if st.Changed {
		t.Error("second start should report no change")
	}

	rec = do(t, h, "POST", "/api/monitor/stop", "")
	json.Unmarshal(rec.Body.Bytes(), &st)
	if st.State != "stopped" || !st.Changed {
		t.Errorf("stop status = %+v", st)
	}

	rec = do(t, h, "GET", "/api/monitor", "")
	json.Unmarshal(rec.Body.Bytes(), &st)
	if st.State != "stopped" || st.Target != "en" {
		t.Errorf("monitor status = %+v", st)
	}
}

func TestSetLanguage(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, "PUT", "/api/language", `{"code":"zh-Hans"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"zh-cn"`) {
		t.Errorf("PUT status = %d, body %s", rec.Code, rec.Body)
	}

	rec = do(t, h, "PUT", "/api/language", `{"code":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty code status = %d, want 400", rec.Code)
	}
}

func TestClearOverlays(t *testing.T) {
	s, ctrl := newTestServer(t)
	rec := do(t, s.Handler(), "POST", "/api/overlays/clear", "")
	if !strings.Contains(rec.Body.String(), `"cleared":2`) {
		t.Errorf("body = %s", rec.Body)
	}
	if ctrl.clearCount() != 1 {
		t.Errorf("ClearOverlays called %d times", ctrl.clearCount())
	}
}

func TestBackends(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), "GET", "/api/backends", "")

	var body struct {
		Active   string `json:"active"`
		Backends []struct {
			Name   string `json:"name"`
			Health string `json:"health"`
		} `json:"backends"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Active != translate.NameDeepL || len(body.Backends) != 2 || body.Backends[1].Health != "standby" {
		t.Errorf("backends = %+v", body)
	}
}

func TestActivity(t *testing.T) {
	s, ctrl := newTestServer(t)
	for i := 1; i <= 3; i++ {
		ctrl.activity = append(ctrl.activity, activity.Event{RegionID: i})
	}
	h := s.Handler()

	var events []activity.Event
	rec := do(t, h, "GET", "/api/activity?limit=2", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].RegionID != 2 {
		t.Errorf("events = %+v", events)
	}

	if rec := do(t, h, "GET", "/api/activity?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", rec.Code)
	}
}

func TestRegionActivity(t *testing.T) {
	s, ctrl := newTestServer(t)
	ctrl.activity = []activity.Event{
		{RegionID: 1, Original: "a"},
		{RegionID: 2, Original: "b"},
		{RegionID: 1, Original: "c"},
		{RegionID: 1, Original: "d"},
	}
	h := s.Handler()

	var events []activity.Event
	rec := do(t, h, "GET", "/api/activity?region=1&limit=2", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Original != "c" || events[1].Original != "d" {
		t.Errorf("events = %+v", events)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"region=9", http.StatusNotFound},
		{"region=x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := do(t, h, "GET", "/api/activity?"+tt.query, ""); rec.Code != tt.want {
			t.Errorf("GET /api/activity?%s status = %d, want %d", tt.query, rec.Code, tt.want)
		}
	}
}

func TestWriteErrorWrapsPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest("GET", "/", http.NoBody), http.ErrHandlerTimeout)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if body := decodeError(t, rec); body["code"] != "INTERNAL" {
		t.Errorf("error body = %v", body)
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("é", TextPreviewLimit+10)
	got := preview(long)
	if n := len([]rune(got)); n != TextPreviewLimit+3 {
		t.Errorf("preview length = %d runes, want %d", n, TextPreviewLimit+3)
	}
	if preview("short") != "short" {
		t.Error("short text should pass through")
	}
}
