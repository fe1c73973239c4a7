package entities

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hearthd/hearth/internal/homeassistant"
)

type fakeSource struct {
	mu     sync.Mutex
	states []homeassistant.State
	err    error
	calls  atomic.Int64
	delay  time.Duration
}

func (f *fakeSource) GetStates(ctx context.Context) ([]homeassistant.State, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.states, nil
}

func (f *fakeSource) set(states []homeassistant.State, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = states
	f.err = err
}

func testStates() []homeassistant.State {
	return []homeassistant.State{
		{EntityID: "light.kitchen", State: "on", Attributes: map[string]any{"friendly_name": "Kitchen Light"}},
		{EntityID: "lock.front_door", State: "locked", Attributes: map[string]any{"friendly_name": "Front Door"}},
		{EntityID: "sensor.outside_temp", State: "18.5"},
		{EntityID: "malformed", State: "x"},
	}
}

func TestRefreshBuildsSnapshot(t *testing.T) {
	src := &fakeSource{}
	src.set(testStates(), nil)
	cache := NewCache(src, time.Hour, nil)

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	snap := cache.Snapshot()
	if snap == nil {
		t.Fatal("snapshot is nil after refresh")
	}
	if snap.Len() != 3 {
		t.Errorf("len = %d, want 3 (malformed id skipped)", snap.Len())
	}

	e, ok := snap.Get("light.kitchen")
	if !ok {
		t.Fatal("light.kitchen missing")
	}
	if e.Name != "Kitchen Light" || e.Domain != "light" {
		t.Errorf("entity = %+v", e)
	}

	// No friendly_name: object id with spaces.
	e, _ = snap.Get("sensor.outside_temp")
	if e.Name != "outside temp" {
		t.Errorf("fallback name = %q, want %q", e.Name, "outside temp")
	}

	counts := snap.DomainCounts()
	if counts["light"] != 1 || counts["lock"] != 1 || counts["sensor"] != 1 {
		t.Errorf("domain counts = %v", counts)
	}
}

func TestFailedRefreshKeepsPreviousSnapshot(t *testing.T) {
	src := &fakeSource{}
	src.set(testStates(), nil)
	cache := NewCache(src, time.Hour, nil)

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	before := cache.Snapshot()

	src.set(nil, errors.New("hub down"))
	if err := cache.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh should propagate the fetch error")
	}

	after := cache.Snapshot()
	if after != before {
		t.Error("failed refresh replaced the snapshot")
	}
	if after.Len() != 3 {
		t.Errorf("snapshot lost entities: %d", after.Len())
	}
}

func TestConcurrentRefreshCollapses(t *testing.T) {
	src := &fakeSource{delay: 50 * time.Millisecond}
	src.set(testStates(), nil)
	cache := NewCache(src, time.Hour, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.Refresh(context.Background())
		}()
	}
	wg.Wait()

	if calls := src.calls.Load(); calls > 2 {
		t.Errorf("concurrent refreshes made %d fetches, want at most 2", calls)
	}
}

func TestEnsureFreshSkipsWhenFresh(t *testing.T) {
	src := &fakeSource{}
	src.set(testStates(), nil)
	cache := NewCache(src, time.Hour, nil)

	if err := cache.EnsureFresh(context.Background()); err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if err := cache.EnsureFresh(context.Background()); err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}

	if calls := src.calls.Load(); calls != 1 {
		t.Errorf("fetches = %d, want 1", calls)
	}
}

func TestIsStale(t *testing.T) {
	src := &fakeSource{}
	src.set(testStates(), nil)
	cache := NewCache(src, 10*time.Millisecond, nil)

	if !cache.IsStale() {
		t.Error("empty cache should be stale")
	}
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if cache.IsStale() {
		t.Error("fresh snapshot reported stale")
	}

	time.Sleep(20 * time.Millisecond)
	if !cache.IsStale() {
		t.Error("expired snapshot not reported stale")
	}
}
