// Package region owns the set of monitored screen regions and their state.
package region

import (
	"encoding/json"
	"fmt"
	"image"
	"sync"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
	"github.com/GriffinCanCode/polyglot/internal/overlay"
	"github.com/GriffinCanCode/polyglot/internal/signature"
)

// Bounds is a pixel rectangle in screen coordinates, x1<x2 and y1<y2.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Validate reports malformed bounds as InvalidArgument.
func (b Bounds) Validate() error {
	if b.X1 >= b.X2 || b.Y1 >= b.Y2 {
		return apperrors.Newf(apperrors.InvalidArgument, "invalid bounds %s", b)
	}
	return nil
}

// Rect converts to an image rectangle.
func (b Bounds) Rect() image.Rectangle { return image.Rect(b.X1, b.Y1, b.X2, b.Y2) }

func (b Bounds) Width() int  { return b.X2 - b.X1 }
func (b Bounds) Height() int { return b.Y2 - b.Y1 }

func (b Bounds) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", b.X1, b.Y1, b.X2, b.Y2)
}

// Phase is where a region is in its per-tick pipeline.
type Phase int

const (
	Idle Phase = iota
	Capturing
	Extracting
	Translating
	Displaying
)

func (p Phase) String() string {
	return [...]string{"idle", "capturing", "extracting", "translating", "displaying"}[p]
}

// MarshalJSON renders the phase by name.
func (p Phase) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

// Region is a monitored area. Values returned by the registry are copies.
type Region struct {
	ID              int                 `json:"id"`
	Bounds          Bounds              `json:"bounds"`
	LastText        string              `json:"last_text"`
	LastTranslation string              `json:"last_translation"`
	Phase           Phase               `json:"phase"`
	Signature       signature.Signature `json:"-"`
	Overlay         *overlay.Handle     `json:"overlay,omitempty"`
	busy            bool
}

// Reset forgets everything learned from previous captures.
func (r *Region) Reset() {
	r.Signature = signature.Unset
	r.LastText = ""
	r.LastTranslation = ""
}

// Registry holds regions in registration order. Ids start at 1 and are never reused.
type Registry struct {
	mu      sync.RWMutex
	nextID  int
	order   []int
	regions map[int]*Region
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{nextID: 1, regions: make(map[int]*Region)}
}

// Add registers a region with unset signature and returns a copy.
func (r *Registry) Add(b Bounds) (Region, error) {
	if err := b.Validate(); err != nil {
		return Region{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	reg := &Region{ID: r.nextID, Bounds: b}
	r.nextID++
	r.regions[reg.ID] = reg
	r.order = append(r.order, reg.ID)
	return *reg, nil
}

// Remove deletes a region and returns its final state.
func (r *Registry) Remove(id int) (Region, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.regions[id]
	if !ok {
		return Region{}, apperrors.Newf(apperrors.NotFound, "region %d not found", id)
	}
	delete(r.regions, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *reg, nil
}

// Get returns a copy of region id.
func (r *Registry) Get(id int) (Region, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regions[id]
	if !ok {
		return Region{}, false
	}
	return *reg, true
}

// Snapshot copies every region in registration order.
func (r *Registry) Snapshot() []Region {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Region, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.regions[id])
	}
	return out
}

// Len returns the number of regions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Update runs fn on the live region under the registry lock. It returns false
// if the region no longer exists, which is how a tick notices a mid-tick removal.
// fn must not call back into the registry.
func (r *Registry) Update(id int, fn func(*Region)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regions[id]
	if !ok {
		return false
	}
	fn(reg)
	return true
}

// Each runs fn on every live region under the registry lock.
func (r *Registry) Each(fn func(*Region)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		fn(r.regions[id])
	}
}

// Acquire marks id busy. It fails if the region is gone or already being processed.
func (r *Registry) Acquire(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regions[id]
	if !ok || reg.busy {
		return false
	}
	reg.busy = true
	return true
}

// Release clears the busy flag and returns the region to Idle.
func (r *Registry) Release(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.regions[id]; ok {
		reg.busy = false
		reg.Phase = Idle
	}
}
