package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/polyglot/internal/cache"
	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
	"github.com/GriffinCanCode/polyglot/internal/orchestrator"
	"github.com/GriffinCanCode/polyglot/internal/orchestrator/activity"
	"github.com/GriffinCanCode/polyglot/internal/orchestrator/region"
	"github.com/GriffinCanCode/polyglot/internal/trace"
	"github.com/GriffinCanCode/polyglot/internal/translate"
)

// Controller is the scheduler surface the API drives.
type Controller interface {
	AddRegion(b region.Bounds) (int, error)
	RemoveRegion(id int) error
	ListRegions() []region.Region
	Start() bool
	Stop() bool
	State() orchestrator.State
	SetTargetLanguage(code string) error
	TargetLanguage() string
	ClearOverlays() int
	Events() <-chan activity.Event
	RecentActivity(n int) []activity.Event
	RegionActivity(id int) ([]activity.Event, error)
	CacheStats() cache.Stats
}

// BackendLister reports the translation chain.
type BackendLister interface {
	Active() string
	Backends() []translate.Descriptor
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	ctrl     Controller
	backends BackendLister
	hub      *Hub
	done     chan struct{}
}

// New creates a server and starts broadcasting activity to hub clients.
func New(ctrl Controller, backends BackendLister, hub *Hub) *Server {
	s := &Server{ctrl: ctrl, backends: backends, hub: hub, done: make(chan struct{})}
	go s.broadcastActivity()
	return s
}

// Close stops the activity broadcaster.
func (s *Server) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// NotifyState pushes a scheduler state change to clients.
func (s *Server) NotifyState(st orchestrator.State) {
	s.hub.Broadcast(StateMessage{Type: TypeState, State: st.String(), Target: s.ctrl.TargetLanguage()})
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/regions", s.handleListRegions)
	mux.HandleFunc("POST /api/regions", s.handleAddRegion)
	mux.HandleFunc("DELETE /api/regions/{id}", s.handleRemoveRegion)
	mux.HandleFunc("GET /api/monitor", s.handleMonitor)
	mux.HandleFunc("POST /api/monitor/start", s.handleStart)
	mux.HandleFunc("POST /api/monitor/stop", s.handleStop)
	mux.HandleFunc("PUT /api/language", s.handleLanguage)
	mux.HandleFunc("POST /api/overlays/clear", s.handleClearOverlays)
	mux.HandleFunc("GET /api/backends", s.handleBackends)
	mux.HandleFunc("GET /api/activity", s.handleActivity)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"error","code"} with the status its code maps to.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.Internal, "internal error")
	}
	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		trace.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": appErr.Message, "code": appErr.Code.String()})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(err, apperrors.InvalidArgument, "invalid request body")
	}
	return nil
}

func (s *Server) handleListRegions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.ListRegions())
}

func (s *Server) handleAddRegion(w http.ResponseWriter, r *http.Request) {
	var b region.Bounds
	if err := decodeBody(r, &b); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.ctrl.AddRegion(b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"id": id})
}

func (s *Server) handleRemoveRegion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, r, apperrors.Newf(apperrors.InvalidArgument, "invalid region id %q", r.PathValue("id")))
		return
	}
	if err := s.ctrl.RemoveRegion(id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type monitorStatus struct {
	State   string      `json:"state"`
	Changed bool        `json:"changed"`
	Target  string      `json:"target"`
	Regions int         `json:"regions"`
	Clients int         `json:"clients"`
	Cache   cache.Stats `json:"cache"`
}

func (s *Server) status(changed bool) monitorStatus {
	return monitorStatus{
		State:   s.ctrl.State().String(),
		Changed: changed,
		Target:  s.ctrl.TargetLanguage(),
		Regions: len(s.ctrl.ListRegions()),
		Clients: s.hub.Len(),
		Cache:   s.ctrl.CacheStats(),
	}
}

func (s *Server) handleMonitor(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status(false))
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status(s.ctrl.Start()))
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status(s.ctrl.Stop()))
}

func (s *Server) handleLanguage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ctrl.SetTargetLanguage(req.Code); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"target": s.ctrl.TargetLanguage()})
}

func (s *Server) handleClearOverlays(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"cleared": s.ctrl.ClearOverlays()})
}

func (s *Server) handleBackends(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active":   s.backends.Active(),
		"backends": s.backends.Backends(),
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := DefaultActivityLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, apperrors.Newf(apperrors.InvalidArgument, "invalid limit %q", v))
			return
		}
		limit = n
	}

	v := r.URL.Query().Get("region")
	if v == "" {
		writeJSON(w, http.StatusOK, s.ctrl.RecentActivity(limit))
		return
	}
	id, err := strconv.Atoi(v)
	if err != nil {
		writeError(w, r, apperrors.Newf(apperrors.InvalidArgument, "invalid region id %q", v))
		return
	}
	events, err := s.ctrl.RegionActivity(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit > 0 && limit < len(events) {
		events = events[len(events)-limit:]
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		trace.Logger(r.Context()).Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	// Get trace context from HTTP upgrade request
	baseCtx := r.Context()
	log := trace.Logger(baseCtx)

	c := s.hub.register(conn, r.RemoteAddr)
	defer s.hub.unregister(c)
	go c.writeLoop(baseCtx)

	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				log.Info("websocket disconnected", "remote", r.RemoteAddr)
			} else {
				log.Debug("websocket read error", "error", err)
			}
			return
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil || base.Type != TypeHotkey {
			continue
		}

		if !c.limiter.Allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			s.reply(c, ErrorMessage{Type: TypeError, Message: "rate limit exceeded"})
			continue
		}

		var hk HotkeyMessage
		if err := json.Unmarshal(msg, &hk); err != nil {
			continue
		}
		ctx := baseCtx
		if tc, ok := trace.ExtractFromJSON(msg); ok {
			ctx = trace.WithContext(ctx, tc)
		}
		s.handleHotkey(ctx, c, hk.Name)
	}
}

// reply queues msg for one client only.
func (s *Server) reply(c *client, msg any) {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	if _, ok := s.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (s *Server) handleHotkey(ctx context.Context, c *client, name string) {
	ctx, span := trace.StartSpan(ctx, "handle_hotkey")
	defer span.End()
	span.SetAttr("hotkey", name)

	log := trace.Logger(ctx)
	switch name {
	case HotkeyClear:
		n := s.ctrl.ClearOverlays()
		log.Info("hotkey: overlays cleared", "count", n)
	case HotkeyToggle:
		if s.ctrl.State() == orchestrator.Running {
			s.ctrl.Stop()
		} else {
			s.ctrl.Start()
		}
		log.Info("hotkey: monitoring toggled", "state", s.ctrl.State().String())
	default:
		log.Warn("unknown hotkey", "name", name)
		s.reply(c, ErrorMessage{Type: TypeError, Message: "unknown hotkey " + strconv.Quote(name)})
	}
}

func (s *Server) broadcastActivity() {
	events := s.ctrl.Events()
	for {
		select {
		case <-s.done:
			return
		case evt := <-events:
			s.hub.Broadcast(translationMessage(evt))
		}
	}
}
