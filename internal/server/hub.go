package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/time/rate"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
	"github.com/GriffinCanCode/polyglot/internal/overlay"
)

// client is one WebSocket connection. Writes go through send so a slow
// renderer never blocks the caller broadcasting to it.
type client struct {
	conn    *websocket.Conn
	send    chan any
	limiter *rate.Limiter
	remote  string
}

func (c *client) writeLoop(ctx context.Context) {
	for msg := range c.send {
		wctx, cancel := context.WithTimeout(ctx, WriteTimeout)
		err := wsjson.Write(wctx, c.conn, msg)
		cancel()
		if err != nil {
			slog.Debug("websocket write error", "remote", c.remote, "error", err)
			_ = c.conn.Close(websocket.StatusInternalError, "write failed")
			// Keep draining so unregister's close is the only exit.
			for range c.send {
			}
			return
		}
	}
}

// Hub tracks connected renderer clients and is the overlay.Host for the
// WebSocket display.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

var _ overlay.Host = (*Hub)(nil)

func (h *Hub) register(conn *websocket.Conn, remote string) *client {
	c := &client{
		conn:    conn,
		send:    make(chan any, ClientSendBuffer),
		limiter: rate.NewLimiter(HotkeyRate, HotkeyBurst),
		remote:  remote,
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every client and returns how many accepted it.
func (h *Hub) Broadcast(msg any) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.clients {
		select {
		case c.send <- msg:
			n++
		default:
			slog.Warn("client send buffer full, dropping message", "remote", c.remote)
		}
	}
	return n
}

// Create sends overlay_show to every renderer. With no renderer connected
// the overlay is rejected.
func (h *Hub) Create(_ context.Context, o overlay.Overlay) error {
	if h.Broadcast(showMessage(o)) == 0 {
		return apperrors.New(apperrors.OverlayRejected, "no overlay renderer connected").
			WithMetadata("region", o.Bounds.String())
	}
	return nil
}

// Destroy sends overlay_hide. Renderers that missed the show ignore it.
func (h *Hub) Destroy(_ context.Context, hd overlay.Handle) error {
	h.Broadcast(OverlayHideMessage{Type: TypeOverlayHide, ID: hd.ID, RegionID: hd.RegionID})
	return nil
}
