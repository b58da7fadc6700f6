package syncx

import (
	"sync"
	"testing"
)

func TestGuardGet(t *testing.T) {
	g := NewGuard("en")
	if got := g.Get(); got != "en" {
		t.Errorf("Get() = %q, want %q", got, "en")
	}
}

func TestGuardSwap(t *testing.T) {
	g := NewGuard("fr")

	old := g.Swap("de")
	if old != "fr" {
		t.Errorf("Swap returned %q, want %q", old, "fr")
	}
	if got := g.Get(); got != "de" {
		t.Errorf("Get() after Swap = %q, want %q", got, "de")
	}
	if old := g.Swap("de"); old != "de" {
		t.Errorf("Swap with same value returned %q, want %q", old, "de")
	}
}

func TestGuardConcurrentSafety(t *testing.T) {
	g := NewGuard(0)
	var wg sync.WaitGroup
	seen := make([]bool, 101)
	var mu sync.Mutex

	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			old := g.Swap(i)
			mu.Lock()
			seen[old] = true
			mu.Unlock()
		}()
	}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Get()
		}()
	}
	wg.Wait()

	// Every value except the final one is handed back by exactly one Swap.
	final := g.Get()
	seen[final] = true
	for v, ok := range seen {
		if !ok {
			t.Errorf("value %d was lost", v)
		}
	}
}
