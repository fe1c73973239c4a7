package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hearthd/hearth/internal/entities"
	"github.com/hearthd/hearth/internal/homeassistant"
)

type fakeAliases struct {
	m   map[string]string
	err error
}

func (f *fakeAliases) Lookup(name string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	id, ok := f.m[name]
	return id, ok, nil
}

type staticSource []homeassistant.State

func (s staticSource) GetStates(ctx context.Context) ([]homeassistant.State, error) {
	return s, nil
}

func testSnapshot(t *testing.T) *entities.Snapshot {
	t.Helper()
	src := staticSource{
		{EntityID: "light.foyer", State: "off", Attributes: map[string]any{"friendly_name": "Foyer Light"}},
		{EntityID: "light.kitchen", State: "on", Attributes: map[string]any{"friendly_name": "Kitchen Light"}},
		{EntityID: "lock.front_door", State: "locked", Attributes: map[string]any{"friendly_name": "Front Door Lock"}},
		{EntityID: "lock.back_door", State: "locked", Attributes: map[string]any{"friendly_name": "Back Door Lock"}},
		{EntityID: "climate.main", State: "heat", Attributes: map[string]any{"friendly_name": "Thermostat"}},
	}
	cache := entities.NewCache(src, time.Hour, nil)
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	return cache.Snapshot()
}

func newResolver(aliases map[string]string) *Resolver {
	return New(&fakeAliases{m: aliases}, 0.55, 5)
}

func TestResolveExactEntityID(t *testing.T) {
	r := newResolver(nil)

	res, err := r.Resolve("light.kitchen", testSnapshot(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != KindExact {
		t.Fatalf("kind = %v, want exact", res.Kind)
	}
	if res.Entity.ID != "light.kitchen" {
		t.Errorf("entity = %q", res.Entity.ID)
	}
}

func TestResolveEntityIDShapedButUnknown(t *testing.T) {
	r := newResolver(nil)

	res, err := r.Resolve("light.attic", testSnapshot(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != KindNotFound {
		t.Errorf("kind = %v, want not_found", res.Kind)
	}
}

func TestResolveAliasBeatsFuzzy(t *testing.T) {
	// "kitchen light" would fuzzy-match light.kitchen, but the user
	// taught it as an alias for the foyer light. The alias wins.
	r := newResolver(map[string]string{"kitchen light": "light.foyer"})

	res, err := r.Resolve("Kitchen Light", testSnapshot(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != KindAliased {
		t.Fatalf("kind = %v, want aliased", res.Kind)
	}
	if res.Entity.ID != "light.foyer" {
		t.Errorf("entity = %q, want light.foyer", res.Entity.ID)
	}
	if res.Alias != "kitchen light" {
		t.Errorf("alias = %q", res.Alias)
	}
}

func TestResolveStaleAlias(t *testing.T) {
	r := newResolver(map[string]string{"garage": "cover.garage_main"})

	res, err := r.Resolve("garage", testSnapshot(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != KindStale {
		t.Fatalf("kind = %v, want stale", res.Kind)
	}
	if res.StaleEntityID != "cover.garage_main" {
		t.Errorf("stale entity = %q", res.StaleEntityID)
	}
}

func TestResolveFuzzyMatch(t *testing.T) {
	r := newResolver(nil)

	res, err := r.Resolve("foyer light", testSnapshot(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != KindMatched {
		t.Fatalf("kind = %v, want matched (candidates: %v)", res.Kind, res.Candidates)
	}
	if res.Entity.ID != "light.foyer" {
		t.Errorf("entity = %q", res.Entity.ID)
	}
	if res.Score < 0.55 {
		t.Errorf("score = %g, want >= threshold", res.Score)
	}
}

func TestResolveExactNameMatch(t *testing.T) {
	r := newResolver(nil)

	res, err := r.Resolve("thermostat", testSnapshot(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != KindMatched || res.Entity.ID != "climate.main" {
		t.Errorf("result = %v %q", res.Kind, res.Entity.ID)
	}
	if res.Score != 1.0 {
		t.Errorf("score = %g, want 1.0", res.Score)
	}
}

func TestResolveTieIsAmbiguous(t *testing.T) {
	r := newResolver(nil)

	res, err := r.Resolve("door", testSnapshot(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != KindAmbiguous {
		t.Fatalf("kind = %v, want ambiguous", res.Kind)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %v", res.Candidates)
	}
	// Deterministic order: equal scores sort by entity id.
	if res.Candidates[0].EntityID != "lock.back_door" || res.Candidates[1].EntityID != "lock.front_door" {
		t.Errorf("candidates = %v", res.Candidates)
	}
}

func TestResolveDuplicateNamesAreAmbiguous(t *testing.T) {
	src := staticSource{
		{EntityID: "light.desk_1", Attributes: map[string]any{"friendly_name": "Desk Light"}},
		{EntityID: "light.desk_2", Attributes: map[string]any{"friendly_name": "Desk Light"}},
	}
	cache := entities.NewCache(src, time.Hour, nil)
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	res, err := newResolver(nil).Resolve("desk light", cache.Snapshot())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != KindAmbiguous || len(res.Candidates) != 2 {
		t.Errorf("result = %v %v", res.Kind, res.Candidates)
	}
}

func TestResolveNotFound(t *testing.T) {
	r := newResolver(nil)

	res, err := r.Resolve("flux capacitor", testSnapshot(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != KindNotFound {
		t.Errorf("kind = %v, want not_found", res.Kind)
	}
}

func TestResolveInRestrictsDomain(t *testing.T) {
	r := newResolver(nil)

	// Unrestricted, "front door" matches the lock; restricted to light,
	// nothing qualifies.
	res, err := r.ResolveIn("front door", "lock", testSnapshot(t))
	if err != nil {
		t.Fatalf("ResolveIn: %v", err)
	}
	if res.Kind != KindMatched || res.Entity.ID != "lock.front_door" {
		t.Errorf("lock result = %v %q", res.Kind, res.Entity.ID)
	}

	res, err = r.ResolveIn("front door", "light", testSnapshot(t))
	if err != nil {
		t.Fatalf("ResolveIn: %v", err)
	}
	if res.Kind != KindNotFound {
		t.Errorf("light result = %v, want not_found", res.Kind)
	}
}

func TestResolveEmptyQuery(t *testing.T) {
	res, err := newResolver(nil).Resolve("   ", testSnapshot(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != KindNotFound {
		t.Errorf("kind = %v, want not_found", res.Kind)
	}
}

func TestResolveNilSnapshot(t *testing.T) {
	if _, err := newResolver(nil).Resolve("lamp", nil); err == nil {
		t.Error("nil snapshot should error")
	}
}

func TestResolveAliasStoreError(t *testing.T) {
	r := New(&fakeAliases{err: errors.New("database locked")}, 0.55, 5)

	if _, err := r.Resolve("lamp", testSnapshot(t)); err == nil {
		t.Error("alias store failure should propagate")
	}
}

func TestResolvePartialNameOverlapAtDefaultThreshold(t *testing.T) {
	// "foyer light" shares only the domain word with the light's name,
	// so the per-token average is 0.5. The shipped default threshold
	// must still let it resolve to the only plausible entity.
	src := staticSource{
		{EntityID: "light.zwave_switch_3", State: "off", Attributes: map[string]any{"friendly_name": "Front Entryway Light"}},
		{EntityID: "lock.garage_door", State: "locked", Attributes: map[string]any{"friendly_name": "Garage Door"}},
	}
	cache := entities.NewCache(src, time.Hour, nil)
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	r := New(nil, 0.5, 5)
	res, err := r.Resolve("foyer light", cache.Snapshot())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Kind != KindMatched {
		t.Fatalf("kind = %v (candidates %v), want matched", res.Kind, res.Candidates)
	}
	if res.Entity.ID != "light.zwave_switch_3" {
		t.Errorf("entity = %q, want light.zwave_switch_3", res.Entity.ID)
	}
}
