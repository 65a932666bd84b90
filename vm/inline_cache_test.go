package vm

import (
	"errors"
	"sync"
	"testing"
)

func TestInlineCacheEmpty(t *testing.T) {
	ic := &InlineCache{State: CacheEmpty}

	if m := ic.Lookup(&Class{Descriptor: "LTest;"}); m != nil {
		t.Error("Expected nil from empty cache")
	}
	if ic.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", ic.Misses)
	}
}

func TestInlineCacheMonomorphic(t *testing.T) {
	ic := &InlineCache{}
	class := &Class{Descriptor: "LTest;"}
	method := &Method{Name: "run", Signature: "()V"}

	ic.Update(class, method)
	if ic.State != CacheMonomorphic {
		t.Errorf("Expected monomorphic state, got %v", ic.State)
	}
	if m := ic.Lookup(class); m != method {
		t.Error("Expected cache hit")
	}
	if m := ic.Lookup(&Class{Descriptor: "LOther;"}); m != nil {
		t.Error("Expected cache miss for different class")
	}
	if ic.Hits != 1 || ic.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d and %d", ic.Hits, ic.Misses)
	}
}

func TestInlineCacheStates(t *testing.T) {
	tests := []struct {
		name    string
		classes int
		want    CacheState
		count   int
	}{
		{"two classes", 2, CachePolymorphic, 2},
		{"full", MaxPICEntries, CachePolymorphic, MaxPICEntries},
		{"overflow", MaxPICEntries + 1, CacheMegamorphic, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ic := &InlineCache{}
			for i := 0; i < tt.classes; i++ {
				ic.Update(&Class{Descriptor: "LC;"}, &Method{Name: "m"})
			}
			if ic.State != tt.want {
				t.Errorf("state = %v, want %v", ic.State, tt.want)
			}
			if ic.Count != tt.count {
				t.Errorf("count = %d, want %d", ic.Count, tt.count)
			}
		})
	}
}

func TestInlineCacheMegamorphicAlwaysMisses(t *testing.T) {
	ic := &InlineCache{}
	class := &Class{Descriptor: "LExtra;"}
	for i := 0; i < MaxPICEntries; i++ {
		ic.Update(&Class{Descriptor: "LC;"}, &Method{Name: "m"})
	}
	ic.Update(class, &Method{Name: "extra"})
	if m := ic.Lookup(class); m != nil {
		t.Error("Expected miss from megamorphic cache")
	}
}

func TestInlineCacheHitRate(t *testing.T) {
	ic := &InlineCache{}
	class := &Class{Descriptor: "LTest;"}
	ic.Update(class, &Method{Name: "m"})

	for i := 0; i < 10; i++ {
		ic.Lookup(class)
	}
	other := &Class{Descriptor: "LOther;"}
	ic.Lookup(other)
	ic.Lookup(other)

	// 10 hits / 12 total
	if rate := ic.HitRate(); rate < 83.0 || rate > 84.0 {
		t.Errorf("Expected ~83%% hit rate, got %.2f%%", rate)
	}

	ic.Reset()
	if ic.State != CacheEmpty || ic.HitRate() != 0 {
		t.Errorf("Reset left state %v, rate %.2f", ic.State, ic.HitRate())
	}
}

func TestCachedAtResolvesOnce(t *testing.T) {
	m := &Method{Name: "m"}
	calls := 0
	resolve := func() (*Class, error) {
		calls++
		return &Class{Descriptor: "LA;"}, nil
	}

	first, err := cachedAt(m, 4, resolve)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := cachedAt(m, 4, resolve)
	if first != second {
		t.Error("Expected the cached class on the second call")
	}
	if calls != 1 {
		t.Errorf("resolve called %d times, want 1", calls)
	}
}

func TestCachedAtDoesNotCacheFailures(t *testing.T) {
	m := &Method{Name: "m"}
	boom := errors.New("boom")
	if _, err := cachedAt(m, 0, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	v, err := cachedAt(m, 0, func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("got %d, %v; want 7 after a failed resolution", v, err)
	}
}

func TestCachedAtConcurrentWritersAgree(t *testing.T) {
	m := &Method{Name: "m"}
	var wg sync.WaitGroup
	results := make([]*Class, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = cachedAt(m, 2, func() (*Class, error) {
				return &Class{Descriptor: "LA;"}, nil
			})
		}(i)
	}
	wg.Wait()
	for _, c := range results[1:] {
		if c != results[0] {
			t.Fatal("racing resolvers observed different cached values")
		}
	}
}

func BenchmarkInlineCacheLookup(b *testing.B) {
	class := &Class{Descriptor: "LTest;"}
	method := &Method{Name: "m"}

	b.Run("Monomorphic_Hit", func(b *testing.B) {
		ic := &InlineCache{}
		ic.Update(class, method)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			ic.Lookup(class)
		}
	})

	b.Run("Megamorphic_Miss", func(b *testing.B) {
		ic := &InlineCache{State: CacheMegamorphic}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			ic.Lookup(class)
		}
	})
}
