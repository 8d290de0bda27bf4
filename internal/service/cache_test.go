package service

import (
	"context"
	"testing"

	"github.com/agbru/keffcalc/internal/problem"
)

func TestInstanceCache(t *testing.T) {
	t.Parallel()

	cache := NewInstanceCache(2)
	slab := problem.BareSlab()

	first, err := cache.Build(slab, 0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := cache.Build(slab, 0)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("a hit should return the cached instance")
	}
	if refined, _ := cache.Build(slab, 1); refined == first {
		t.Error("refinement levels must be cached separately")
	}

	// Same name, different data: rebuilt rather than served stale.
	changed := slab
	changed.Layers = append(changed.Layers[:0:0], slab.Layers...)
	changed.Layers[0].Elements++
	rebuilt, err := cache.Build(changed, 0)
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt == first || rebuilt.Mesh().NumElements() == first.Mesh().NumElements() {
		t.Error("a changed definition must be rebuilt")
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 3 || stats.Entries != 2 {
		t.Errorf("Stats() = %+v", stats)
	}

	cache.Purge()
	if cache.Stats().Entries != 0 {
		t.Error("Purge left entries behind")
	}

	if _, err := cache.Build(problem.Definition{Name: "broken"}, 0); err == nil {
		t.Error("invalid definitions must fail to build")
	}
}

func TestSolveService_CachesCatalogProblems(t *testing.T) {
	t.Parallel()
	svc := newTestService(Limits{})
	for i := 0; i < 3; i++ {
		if _, err := svc.Solve(context.Background(), Request{Problem: "infinite-2g", Solver: "lu"}); err != nil {
			t.Fatal(err)
		}
	}
	if stats := svc.CacheStats(); stats.Misses != 1 || stats.Hits != 2 {
		t.Errorf("CacheStats() = %+v", stats)
	}

	def := problem.InfiniteTwoGroup()
	if _, err := svc.Solve(context.Background(), Request{Definition: &def}); err != nil {
		t.Fatal(err)
	}
	if stats := svc.CacheStats(); stats.Misses != 1 || stats.Hits != 2 {
		t.Errorf("inline definitions should bypass the cache, got %+v", stats)
	}

	uncached := NewSolveService(problem.NewCatalog(), nil, Limits{}, WithInstanceCache(0))
	if uncached.CacheStats() != (CacheStats{}) {
		t.Error("disabled cache should report zero stats")
	}
}
