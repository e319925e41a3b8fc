package nscache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/nscache/codec"
	"github.com/unkn0wn-root/nscache/genstore"
	"github.com/unkn0wn-root/nscache/internal/wire"
	pr "github.com/unkn0wn-root/nscache/provider"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memProvider struct {
	mu      sync.Mutex
	m       map[string]memEntry
	ttls    map[string]time.Duration
	reject  bool
	failSet error
	failDel error
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider {
	return &memProvider{m: make(map[string]memEntry), ttls: make(map[string]time.Duration)}
}

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failSet != nil {
		return false, p.failSet
	}
	if p.reject {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: value, exp: exp}
	p.ttls[key] = ttl
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failDel != nil {
		return p.failDel
	}
	delete(p.m, key)
	return nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

func (p *memProvider) put(key string, raw []byte) {
	p.mu.Lock()
	p.m[key] = memEntry{v: raw}
	p.mu.Unlock()
}

func (p *memProvider) has(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.m[key]
	return ok
}

func newTestProviderCache(t *testing.T, mp pr.Provider, opt func(*ProviderOptions[user])) *ProviderCache[user] {
	t.Helper()
	opts := ProviderOptions[user]{
		Namespace:  "user",
		Provider:   mp,
		DefaultTTL: Hour,
		Enabled:    true,
	}
	if opt != nil {
		opt(&opts)
	}
	pc, err := NewProviderCache(opts)
	if err != nil {
		t.Fatalf("NewProviderCache: %v", err)
	}
	return pc
}

func TestProviderCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	pc := newTestProviderCache(t, mp, nil)

	v := user{ID: "1", Name: "Ada"}
	if _, st := pc.Get(ctx, "u:1"); st != Miss {
		t.Fatalf("Get miss expected, got %v", st)
	}
	if st := pc.Set(ctx, "u:1", v, 0); st != OK {
		t.Fatalf("Set=%v", st)
	}
	if got, st := pc.Get(ctx, "u:1"); st != OK || got != v {
		t.Fatalf("Get after set: %v %v", got, st)
	}
	if ttl := mp.ttls[pc.StorageKey("u:1")]; ttl != Hour {
		t.Fatalf("provider ttl=%v want default", ttl)
	}

	if st := pc.Remove(ctx, "u:1"); st != OK {
		t.Fatalf("Remove=%v", st)
	}
	if st := pc.Remove(ctx, "u:1"); st != OK {
		t.Fatalf("second Remove=%v", st)
	}
	if _, st := pc.Get(ctx, "u:1"); st != Miss {
		t.Fatalf("Get after remove=%v", st)
	}
}

func TestProviderCacheMinimumProviderTTL(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	clk := newClock()
	pc := newTestProviderCache(t, mp, func(o *ProviderOptions[user]) {
		o.DefaultTTL = 0
		o.Clock = clk.Now
	})

	pc.Set(ctx, "k", user{ID: "k"}, 0)
	if ttl := mp.ttls[pc.StorageKey("k")]; ttl != time.Second {
		t.Fatalf("provider ttl=%v want 1s", ttl)
	}
	clk.Advance(time.Nanosecond)
	if _, st := pc.Get(ctx, "k"); st != Miss {
		t.Fatalf("zero TTL entry still served: %v", st)
	}
}

func TestProviderCacheFrameExpiry(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	clk := newClock()
	hooks := &recHooks{}
	pc := newTestProviderCache(t, mp, func(o *ProviderOptions[user]) {
		o.Clock = clk.Now
		o.Hooks = hooks
	})

	pc.Set(ctx, "k", user{ID: "k"}, 10*time.Second)
	clk.Advance(11 * time.Second)
	if _, st := pc.Get(ctx, "k"); st != Miss {
		t.Fatalf("Get=%v", st)
	}
	if mp.has(pc.StorageKey("k")) {
		t.Fatal("expired frame not deleted")
	}
	if _, ok := hooks.find("expired"); !ok {
		t.Fatal("expired hook not called")
	}
}

func TestProviderCacheClearBumpsGeneration(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	gs := genstore.NewLocalGenStore(0, 0)
	hooks := &recHooks{}
	pc := newTestProviderCache(t, mp, func(o *ProviderOptions[user]) {
		o.GenStore = gs
		o.Hooks = hooks
	})
	other, _ := pc.WithNamespace("other")

	pc.Set(ctx, "a", user{ID: "a"}, 0)
	other.Set(ctx, "a", user{ID: "other"}, 0)

	if st := pc.ClearNamespace(ctx); st != OK {
		t.Fatalf("ClearNamespace=%v", st)
	}
	if g, _ := gs.Snapshot(ctx, "user"); g != 1 {
		t.Fatalf("gen=%d want 1", g)
	}
	if _, st := pc.Get(ctx, "a"); st != Miss {
		t.Fatalf("entry survived clear: %v", st)
	}
	if e, ok := hooks.find("self_heal"); !ok || e.detail != "gen_mismatch" {
		t.Fatalf("self_heal=%+v ok=%v", e, ok)
	}
	if mp.has(pc.StorageKey("a")) {
		t.Fatal("orphaned entry not dropped on read")
	}
	if v, st := other.Get(ctx, "a"); st != OK || v.ID != "other" {
		t.Fatalf("other namespace affected: %v %v", v, st)
	}

	// writes after the clear use the new generation
	pc.Set(ctx, "a", user{ID: "a2"}, 0)
	if v, st := pc.Get(ctx, "a"); st != OK || v.ID != "a2" {
		t.Fatalf("Get after clear+set: %v %v", v, st)
	}
}

func TestProviderCacheSelfHeal(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &recHooks{}
	pc := newTestProviderCache(t, mp, func(o *ProviderOptions[user]) { o.Hooks = hooks })

	t.Run("corrupt_frame", func(t *testing.T) {
		k := pc.StorageKey("bad")
		mp.put(k, []byte("garbage"))
		if _, st := pc.Get(ctx, "bad"); st != Miss {
			t.Fatalf("Get=%v", st)
		}
		if mp.has(k) {
			t.Fatal("corrupt frame kept")
		}
	})

	t.Run("undecodable_payload", func(t *testing.T) {
		k := pc.StorageKey("junk")
		mp.put(k, wire.Encode(0, time.Now().Add(Hour), []byte("{nope")))
		if _, st := pc.Get(ctx, "junk"); st != Miss {
			t.Fatalf("Get=%v", st)
		}
		if mp.has(k) {
			t.Fatal("undecodable entry kept")
		}
	})

	var reasons []string
	for _, e := range hooks.events {
		if e.kind == "self_heal" {
			reasons = append(reasons, e.detail)
		}
	}
	if len(reasons) != 2 || reasons[0] != "corrupt" || reasons[1] != "decode" {
		t.Fatalf("reasons=%v", reasons)
	}
}

func TestProviderCacheSetFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected", func(t *testing.T) {
		mp := newMemProvider()
		hooks := &recHooks{}
		pc := newTestProviderCache(t, mp, func(o *ProviderOptions[user]) { o.Hooks = hooks })
		mp.reject = true
		if st := pc.Set(ctx, "k", user{}, 0); st != Failed {
			t.Fatalf("Set=%v", st)
		}
		if e, ok := hooks.find("set_failed"); !ok || e.detail != "rejected" {
			t.Fatalf("hook=%+v", e)
		}
	})

	t.Run("provider_error", func(t *testing.T) {
		mp := newMemProvider()
		hooks := &recHooks{}
		pc := newTestProviderCache(t, mp, func(o *ProviderOptions[user]) { o.Hooks = hooks })
		pc.Set(ctx, "k", user{ID: "old"}, 0)
		mp.failSet = errors.New("down")
		if st := pc.Set(ctx, "k", user{ID: "new"}, 0); st != Failed {
			t.Fatalf("Set=%v", st)
		}
		if mp.has(pc.StorageKey("k")) {
			t.Fatal("stale entry kept after failed Set")
		}
	})

	t.Run("encode_error", func(t *testing.T) {
		mp := newMemProvider()
		pc := newTestProviderCache(t, mp, func(o *ProviderOptions[user]) {
			o.Codec = failCodec[user]{inner: codec.JSON[user]{}, failEncode: true}
		})
		if st := pc.Set(ctx, "k", user{}, 0); st != Failed {
			t.Fatalf("Set=%v", st)
		}
	})
}

func TestProviderCacheRemoveFailure(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &recHooks{}
	pc := newTestProviderCache(t, mp, func(o *ProviderOptions[user]) { o.Hooks = hooks })
	mp.failDel = errors.New("down")

	if st := pc.Remove(ctx, "k"); st != Failed {
		t.Fatalf("Remove=%v", st)
	}
	if _, ok := hooks.find("remove_failed"); !ok {
		t.Fatal("remove_failed hook not called")
	}
}

func TestProviderCacheDisabled(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	pc := newTestProviderCache(t, mp, func(o *ProviderOptions[user]) { o.Enabled = false })

	if st := pc.Set(ctx, "k", user{}, 0); st != Disabled {
		t.Fatalf("Set=%v", st)
	}
	if _, st := pc.Get(ctx, "k"); st != Disabled {
		t.Fatalf("Get=%v", st)
	}
	if st := pc.ClearNamespace(ctx); st != Disabled {
		t.Fatalf("ClearNamespace=%v", st)
	}
	if st := pc.ClearExpired(ctx); st != Disabled {
		t.Fatalf("ClearExpired=%v", st)
	}
	if len(mp.m) != 0 {
		t.Fatal("disabled cache wrote to the provider")
	}

	_ = pc.SetEnabled(true)
	if st := pc.ClearExpired(ctx); st != OK {
		t.Fatalf("ClearExpired enabled=%v", st)
	}
	if err := pc.Release(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestProviderCacheWithNamespace(t *testing.T) {
	pc := newTestProviderCache(t, newMemProvider(), nil)
	if self, _ := pc.WithNamespace("user"); self != Cache[user](pc) {
		t.Fatal("own namespace should return self")
	}
	a, _ := pc.WithNamespace("orders")
	b, _ := pc.WithNamespace("orders")
	if a != b || a.Namespace() != "orders" || !a.Enabled() {
		t.Fatalf("sibling=%v ns=%q", a, a.Namespace())
	}
	if a.(*ProviderCache[user]).StorageKey("k") == pc.StorageKey("k") {
		t.Fatal("siblings share storage keys")
	}
}

func TestProviderCacheRequiresProvider(t *testing.T) {
	if _, err := NewProviderCache(ProviderOptions[user]{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err=%v", err)
	}
}
