package nscache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/nscache/codec"
	"github.com/unkn0wn-root/nscache/genstore"
	"github.com/unkn0wn-root/nscache/hashing"
	"github.com/unkn0wn-root/nscache/internal/util"
	"github.com/unkn0wn-root/nscache/internal/wire"
	"github.com/unkn0wn-root/nscache/provider"
)

// DefaultPrefix namespaces provider keys when ProviderOptions.Prefix is empty.
const DefaultPrefix = "nscache:"

// minProviderTTL is the shortest TTL handed to a provider. Entry frames carry
// the precise expiry.
const minProviderTTL = time.Second

// SetCostFunc computes the admission cost of a framed entry (used by ristretto).
type SetCostFunc func(storageKey string, raw []byte) int64

// ProviderOptions configure a ProviderCache. Defaults match Options.
type ProviderOptions[V any] struct {
	Namespace     string            // "" => "default"
	Provider      provider.Provider // required; borrowed, never closed
	GenStore      genstore.GenStore // nil => in-process generations
	Prefix        string            // "" => DefaultPrefix
	DefaultTTL    time.Duration     // TTL for Set(..., 0)
	HashAlgorithm string            // "" => crc32
	Hash          hashing.Func      // overrides HashAlgorithm
	Codec         codec.Codec[V]    // nil => JSON
	Enabled       bool

	// ComputeSetCost defaults to the framed size in bytes.
	ComputeSetCost SetCostFunc

	Registry *Namespaces[V]
	Logger   Logger
	Hooks    Hooks
	Clock    func() time.Time
}

type providerConfig[V any] struct {
	ns         string
	provider   provider.Provider
	gen        genstore.GenStore
	prefix     string
	defaultTTL time.Duration
	hashName   string
	hash       hashing.Func
	codec      codec.Codec[V]
	cost       SetCostFunc
	registry   *Namespaces[V]
	log        Logger
	hooks      Hooks
	now        func() time.Time
}

// ProviderCache serves the Cache contract from a byte store. Every value is
// framed with the namespace generation at write time and its expiry;
// ClearNamespace bumps the generation instead of enumerating keys.
type ProviderCache[V any] struct {
	providerConfig[V]
	enabled atomic.Bool
}

var _ Cache[struct{}] = (*ProviderCache[struct{}])(nil)

// NewProviderCache validates opts and registers the cache like New does.
func NewProviderCache[V any](opts ProviderOptions[V]) (*ProviderCache[V], error) {
	if opts.Provider == nil {
		return nil, configErrf("new", "provider", "provider is required")
	}
	cfg := providerConfig[V]{
		ns:         coalesce(opts.Namespace, DefaultNamespace),
		provider:   opts.Provider,
		gen:        opts.GenStore,
		prefix:     coalesce(opts.Prefix, DefaultPrefix),
		defaultTTL: opts.DefaultTTL,
		hashName:   coalesce(opts.HashAlgorithm, hashing.Default),
		hash:       opts.Hash,
		codec:      opts.Codec,
		cost:       opts.ComputeSetCost,
		registry:   opts.Registry,
		log:        coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:      opts.Hooks,
		now:        opts.Clock,
	}
	if cfg.hash == nil {
		h, err := hashing.Lookup(cfg.hashName)
		if err != nil {
			return nil, configErr("new", "hashing_algorithm", err)
		}
		cfg.hash = h
	}
	if cfg.gen == nil {
		cfg.gen = genstore.NewLocalGenStore(0, 0)
	}
	if cfg.codec == nil {
		cfg.codec = codec.JSON[V]{}
	}
	if cfg.cost == nil {
		cfg.cost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}
	if cfg.registry == nil {
		cfg.registry = NewNamespaces[V]()
	}
	if cfg.hooks == nil {
		cfg.hooks = NopHooks{}
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}

	pc := &ProviderCache[V]{providerConfig: cfg}
	_ = pc.SetEnabled(opts.Enabled)
	pc.registry.Store(pc.ns, pc)
	pc.log.Debug("provider cache created", Fields{"ns": pc.ns, "prefix": pc.prefix, "enabled": pc.Enabled()})
	return pc, nil
}

func (pc *ProviderCache[V]) Namespace() string     { return pc.ns }
func (pc *ProviderCache[V]) Prefix() string        { return pc.prefix }
func (pc *ProviderCache[V]) HashAlgorithm() string { return pc.hashName }
func (pc *ProviderCache[V]) Enabled() bool         { return pc.enabled.Load() }

// SetEnabled never fails: providers need no preparation.
func (pc *ProviderCache[V]) SetEnabled(on bool) error {
	pc.enabled.Store(on)
	return nil
}

// StorageKey is the provider key that holds key.
func (pc *ProviderCache[V]) StorageKey(key string) string {
	return util.StorageKey(pc.prefix, pc.ns, key, pc.hash)
}

func (pc *ProviderCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) Status {
	if !pc.Enabled() {
		return Disabled
	}
	if ttl == 0 {
		ttl = pc.defaultTTL
	}
	k := pc.StorageKey(key)

	gen, err := pc.gen.Snapshot(ctx, pc.ns)
	if err != nil {
		return pc.setFailed(ctx, key, k, "gen", err)
	}
	payload, err := pc.codec.Encode(value)
	if err != nil {
		return pc.setFailed(ctx, key, k, "encode", err)
	}
	raw := wire.Encode(gen, pc.now().Add(ttl), payload)
	ok, err := pc.provider.Set(ctx, k, raw, pc.cost(k, raw), max(ttl, minProviderTTL))
	if err != nil {
		return pc.setFailed(ctx, key, k, "provider", err)
	}
	if !ok {
		return pc.setFailed(ctx, key, k, "rejected", fmt.Errorf("provider rejected %d bytes", len(raw)))
	}
	return OK
}

func (pc *ProviderCache[V]) setFailed(ctx context.Context, key, storageKey, stage string, err error) Status {
	oe := &OpError{Op: "set", Namespace: pc.ns, Key: key, Err: err}
	pc.log.Warn("set failed", Fields{"ns": pc.ns, "key": key, "stage": stage, "err": err})
	pc.hooks.SetFailed(pc.ns, key, stage, oe)
	_ = pc.provider.Del(ctx, storageKey)
	return Failed
}

func (pc *ProviderCache[V]) Get(ctx context.Context, key string) (V, Status) {
	var zero V
	if !pc.Enabled() {
		return zero, Disabled
	}
	k := pc.StorageKey(key)

	raw, ok, err := pc.provider.Get(ctx, k)
	if err != nil {
		pc.log.Warn("provider get failed", Fields{"ns": pc.ns, "key": key, "err": err})
		return zero, Miss
	}
	if !ok {
		return zero, Miss
	}
	e, err := wire.Decode(raw)
	if err != nil {
		return zero, pc.selfHeal(ctx, key, k, "corrupt")
	}
	gen, err := pc.gen.Snapshot(ctx, pc.ns)
	if err != nil {
		// generation unknown: do not drop an entry that may still be valid
		pc.log.Warn("gen snapshot failed", Fields{"ns": pc.ns, "key": key, "err": err})
		return zero, Miss
	}
	if e.Gen != gen {
		return zero, pc.selfHeal(ctx, key, k, "gen_mismatch")
	}
	if e.ExpiresAt.Before(pc.now()) {
		_ = pc.provider.Del(ctx, k)
		pc.hooks.EntryExpired(pc.ns, key)
		return zero, Miss
	}
	v, err := pc.codec.Decode(e.Payload)
	if err != nil {
		return zero, pc.selfHeal(ctx, key, k, "decode")
	}
	return v, OK
}

func (pc *ProviderCache[V]) selfHeal(ctx context.Context, key, storageKey, reason string) Status {
	pc.log.Debug("dropping unusable entry", Fields{"ns": pc.ns, "key": key, "reason": reason})
	_ = pc.provider.Del(ctx, storageKey)
	pc.hooks.SelfHeal(pc.ns, key, reason)
	return Miss
}

func (pc *ProviderCache[V]) Remove(ctx context.Context, key string) Status {
	if !pc.Enabled() {
		return Disabled
	}
	if err := pc.provider.Del(ctx, pc.StorageKey(key)); err != nil {
		oe := &OpError{Op: "remove", Namespace: pc.ns, Key: key, Err: err}
		pc.log.Warn("remove failed", Fields{"ns": pc.ns, "key": key, "err": err})
		pc.hooks.RemoveFailed(pc.ns, key, oe)
		return Failed
	}
	return OK
}

// ClearNamespace bumps the namespace generation. Older entries stay in the
// provider until read (and dropped) or evicted by their provider TTL.
func (pc *ProviderCache[V]) ClearNamespace(ctx context.Context) Status {
	if !pc.Enabled() {
		return Disabled
	}
	g, err := pc.gen.Bump(ctx, pc.ns)
	if err != nil {
		oe := &OpError{Op: "clear", Namespace: pc.ns, Err: err}
		pc.log.Error("gen bump failed", Fields{"ns": pc.ns, "err": err})
		pc.hooks.ClearFailed(pc.ns, 1, oe)
		return Failed
	}
	pc.log.Debug("namespace cleared", Fields{"ns": pc.ns, "gen": g})
	return OK
}

// ClearExpired is OK when enabled: providers evict expired entries themselves.
func (pc *ProviderCache[V]) ClearExpired(context.Context) Status {
	if !pc.Enabled() {
		return Disabled
	}
	return OK
}

func (pc *ProviderCache[V]) WithNamespace(name string) (Cache[V], error) {
	name = coalesce(name, DefaultNamespace)
	if name == pc.ns {
		return pc, nil
	}
	return pc.registry.LoadOrCreate(name, func() (Cache[V], error) {
		sib := &ProviderCache[V]{providerConfig: pc.providerConfig}
		sib.ns = name
		sib.enabled.Store(pc.Enabled())
		return sib, nil
	})
}

// Release has nothing to sweep.
func (pc *ProviderCache[V]) Release(context.Context) error { return nil }
