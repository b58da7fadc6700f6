// Package overlay manages one transient translation surface per region.
//
// The Manager owns overlay lifetimes and never touches the display itself:
// every create/destroy is appended to a FIFO command queue that the display
// context drains with Run or Drain, calling its Host. Callers on the worker
// side therefore never block on rendering.
package overlay

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

// DefaultTTL is how long an overlay stays up when not replaced.
const DefaultTTL = 10 * time.Second

// Style is the overlay appearance handed to hosts.
type Style struct {
	Background string  `json:"background"`
	Foreground string  `json:"foreground"`
	Opacity    float64 `json:"opacity"`
	FontMin    int     `json:"-"`
	FontMax    int     `json:"-"`
}

// DefaultStyle matches the stock dark overlay.
func DefaultStyle() Style {
	return Style{Background: "#2C3E50", Foreground: "#FFFFFF", Opacity: 0.95, FontMin: 10, FontMax: 13}
}

// Handle identifies a live overlay.
type Handle struct {
	ID       string    `json:"id"`
	RegionID int       `json:"region_id"`
	Created  time.Time `json:"created"`
	Expires  time.Time `json:"expires"`
}

// Overlay is everything a host needs to draw a surface.
type Overlay struct {
	Handle
	Bounds     image.Rectangle `json:"-"`
	Original   string          `json:"original"`
	Translated string          `json:"translated"`
	FontSize   int             `json:"font_size"`
	Style      Style           `json:"style"`
}

// Kind is a queued display action.
type Kind int

const (
	Create Kind = iota
	Destroy
)

func (k Kind) String() string {
	if k == Create {
		return "create"
	}
	return "destroy"
}

// Command is one queued display action. Overlay is set for Create; for Destroy
// only its Handle is meaningful.
type Command struct {
	Kind    Kind
	Overlay Overlay
}

// Host renders overlays on the display context.
type Host interface {
	Create(ctx context.Context, o Overlay) error
	Destroy(ctx context.Context, h Handle) error
}

type entry struct {
	overlay Overlay
	timer   *time.Timer
}

// Manager tracks active overlays and queues display commands.
type Manager struct {
	host  Host
	style Style
	ttl   time.Duration

	mu     sync.Mutex
	active map[int]*entry
	queue  []Command
	notify chan struct{}
}

// NewManager creates a manager rendering through host.
func NewManager(host Host, style Style, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		host:   host,
		style:  style,
		ttl:    ttl,
		active: make(map[int]*entry),
		notify: make(chan struct{}, 1),
	}
}

// FontSize scales with region height, clamped to the style's range.
func (m *Manager) FontSize(height int) int {
	return min(max(height/2, m.style.FontMin), m.style.FontMax)
}

// Show creates the overlay for regionID, replacing any existing one and
// re-arming the expiry timer.
func (m *Manager) Show(regionID int, bounds image.Rectangle, original, translated string) Handle {
	now := time.Now()
	h := Handle{
		ID:       uuid.NewString(),
		RegionID: regionID,
		Created:  now,
		Expires:  now.Add(m.ttl),
	}
	o := Overlay{
		Handle:     h,
		Bounds:     bounds,
		Original:   original,
		Translated: translated,
		FontSize:   m.FontSize(bounds.Dy()),
		Style:      m.style,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.active[regionID]; ok {
		old.timer.Stop()
		m.enqueue(Command{Kind: Destroy, Overlay: old.overlay})
	}
	m.active[regionID] = &entry{
		overlay: o,
		timer:   time.AfterFunc(m.ttl, func() { m.expire(h) }),
	}
	m.enqueue(Command{Kind: Create, Overlay: o})
	return h
}

// Remove destroys the overlay behind h. Removing a stale or unknown handle is a no-op.
func (m *Manager) Remove(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(h.RegionID, h.ID, true)
}

// RemoveRegion destroys whatever overlay regionID currently has.
func (m *Manager) RemoveRegion(regionID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(regionID, "", true)
}

// ClearAll destroys every overlay and returns how many were active.
func (m *Manager) ClearAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.active)
	for id := range m.active {
		m.removeLocked(id, "", true)
	}
	return n
}

// Active returns the live handle for regionID.
func (m *Manager) Active(regionID int) (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.active[regionID]
	if !ok {
		return Handle{}, false
	}
	return e.overlay.Handle, true
}

// Len returns the number of live overlays.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Pending returns the number of queued commands.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// removeLocked drops the region's entry when id matches (or id is empty) and
// optionally queues a Destroy.
func (m *Manager) removeLocked(regionID int, id string, destroy bool) bool {
	e, ok := m.active[regionID]
	if !ok || (id != "" && e.overlay.ID != id) {
		return false
	}
	e.timer.Stop()
	delete(m.active, regionID)
	if destroy {
		m.enqueue(Command{Kind: Destroy, Overlay: e.overlay})
	}
	return true
}

func (m *Manager) expire(h Handle) {
	if m.Remove(h) {
		slog.Debug("overlay expired", "region", h.RegionID, "overlay", h.ID)
	}
}

func (m *Manager) enqueue(c Command) {
	m.queue = append(m.queue, c)
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Run drains the queue whenever commands arrive until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.notify:
			m.Drain(ctx)
		}
	}
}

// Drain executes every queued command in order on the caller's goroutine and
// returns how many ran. A rejected Create is logged and its handle forgotten;
// the region itself is unaffected.
func (m *Manager) Drain(ctx context.Context) int {
	m.mu.Lock()
	cmds := m.queue
	m.queue = nil
	m.mu.Unlock()

	for _, c := range cmds {
		switch c.Kind {
		case Create:
			if err := m.host.Create(ctx, c.Overlay); err != nil {
				slog.Warn("overlay rejected by host", "region", c.Overlay.RegionID, "overlay", c.Overlay.ID,
					"error", apperrors.Wrap(err, apperrors.OverlayRejected, "create overlay"))
				m.mu.Lock()
				m.removeLocked(c.Overlay.RegionID, c.Overlay.ID, false)
				m.mu.Unlock()
			}
		case Destroy:
			if err := m.host.Destroy(ctx, c.Overlay.Handle); err != nil {
				slog.Debug("overlay destroy failed", "overlay", c.Overlay.ID, "error", err)
			}
		}
	}
	return len(cmds)
}
