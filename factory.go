package nscache

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/nscache/codec"
	"github.com/unkn0wn-root/nscache/genstore"
	"github.com/unkn0wn-root/nscache/hashing"
	"github.com/unkn0wn-root/nscache/provider"
	bcprov "github.com/unkn0wn-root/nscache/provider/bigcache"
	rprov "github.com/unkn0wn-root/nscache/provider/redis"
	riprov "github.com/unkn0wn-root/nscache/provider/ristretto"
)

// DefaultAdapter is used when neither Make nor the config names an adapter.
const DefaultAdapter = "filesystem"

// Built-in adapter classes.
const (
	ClassFilesystem = "filesystem"
	ClassRistretto  = "ristretto"
	ClassBigcache   = "bigcache"
	ClassRedis      = "redis"
)

// Config selects and configures adapters. It decodes from YAML or JSON (see
// package config).
type Config struct {
	Defaults Defaults                 `yaml:"defaults" json:"defaults"`
	Adapters map[string]AdapterConfig `yaml:"adapters" json:"adapters"`
}

// Defaults apply to every adapter; adapter options override them key by key.
type Defaults struct {
	Adapter string   `yaml:"adapter,omitempty" json:"adapter,omitempty"`
	Options Settings `yaml:"options,omitempty" json:"options,omitempty"`
}

type AdapterConfig struct {
	Class   string   `yaml:"class" json:"class"`
	Options Settings `yaml:"options,omitempty" json:"options,omitempty"`
}

// Clone copies the config and every option map.
func (c Config) Clone() Config {
	out := Config{
		Defaults: Defaults{Adapter: c.Defaults.Adapter, Options: c.Defaults.Options.Clone()},
	}
	if c.Adapters != nil {
		out.Adapters = make(map[string]AdapterConfig, len(c.Adapters))
		for name, ac := range c.Adapters {
			out.Adapters[name] = AdapterConfig{Class: ac.Class, Options: ac.Options.Clone()}
		}
	}
	return out
}

// DefaultConfig is a disabled filesystem cache under ./data/cache with
// ten-year entries.
func DefaultConfig() Config {
	return Config{
		Defaults: Defaults{
			Adapter: DefaultAdapter,
			Options: Settings{"enabled": false},
		},
		Adapters: map[string]AdapterConfig{
			DefaultAdapter: {
				Class: ClassFilesystem,
				Options: Settings{
					"basedir":         DefaultBaseDir,
					"default_ttl":     315360000,
					"dir_permission":  0o700,
					"file_permission": 0o600,
					"gc":              DefaultGC,
				},
			},
		},
	}
}

// AdapterEnv is what a Constructor gets besides its settings.
type AdapterEnv[V any] struct {
	Adapter string         // configured adapter name
	Scope   *Namespaces[V] // the adapter's registry; pass it as the cache's Registry
	Logger  Logger
	Hooks   Hooks
	Codec   codec.Codec[V] // nil => resolve from the "codec" setting
}

// Constructor builds one cache for s["namespace"].
type Constructor[V any] func(env AdapterEnv[V], s Settings) (Cache[V], error)

type FactoryOptions[V any] struct {
	Logger Logger
	Hooks  Hooks
	// Codec overrides the per-adapter "codec" setting.
	Codec codec.Codec[V]
}

// backend is a provider opened for one adapter, shared by all its namespaces.
type backend struct {
	p   provider.Provider
	gen genstore.GenStore
}

// Factory makes caches from a Config. Each configured adapter has its own
// namespace scope, so Make(ns, adapter) returns one instance per pair until
// the config changes.
type Factory[V any] struct {
	opts FactoryOptions[V]

	makeMu sync.Mutex // serializes Make

	mu       sync.Mutex
	cfg      Config
	classes  map[string]Constructor[V]
	scopes   map[string]*Namespaces[V]
	backends map[string]backend
	retired  []backend
}

func NewFactory[V any](opts FactoryOptions[V]) *Factory[V] {
	opts.Logger = coalesce[Logger](opts.Logger, NopLogger{})
	if opts.Hooks == nil {
		opts.Hooks = NopHooks{}
	}
	f := &Factory[V]{
		opts:     opts,
		cfg:      DefaultConfig(),
		classes:  make(map[string]Constructor[V]),
		scopes:   make(map[string]*Namespaces[V]),
		backends: make(map[string]backend),
	}
	f.classes[ClassFilesystem] = newFilesystemCache[V]
	f.classes[ClassRistretto] = f.newRistrettoCache
	f.classes[ClassBigcache] = f.newBigcacheCache
	f.classes[ClassRedis] = f.newRedisCache
	return f
}

// Register adds or replaces a class. Registering does not affect caches
// already made.
func (f *Factory[V]) Register(class string, ctor Constructor[V]) error {
	if class == "" || ctor == nil {
		return configErrf("register", class, "class name and constructor are required")
	}
	f.mu.Lock()
	f.classes[class] = ctor
	f.mu.Unlock()
	return nil
}

// Classes lists registered class names.
func (f *Factory[V]) Classes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Sorted(maps.Keys(f.classes))
}

// SetConfig validates cfg and makes it active. A rejected config leaves the
// active one untouched. Accepting a config forgets every namespace scope;
// providers opened for the old config stay open until Close.
func (f *Factory[V]) SetConfig(cfg Config) error {
	const op = "set config"
	if cfg.Adapters == nil {
		return configErrf(op, "adapters", "missing adapters configuration")
	}
	def := coalesce(cfg.Defaults.Adapter, DefaultAdapter)
	if _, ok := cfg.Adapters[def]; !ok {
		return configErrf(op, "defaults.adapter", "missing configuration of default adapter %q", def)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range slices.Sorted(maps.Keys(cfg.Adapters)) {
		class := cfg.Adapters[name].Class
		if class == "" {
			return configErrf(op, name, "the class of adapter %q is not specified", name)
		}
		if _, ok := f.classes[class]; !ok {
			return configErrf(op, name, "adapter %q: unknown class %q", name, class)
		}
	}

	f.cfg = cfg.Clone()
	f.scopes = make(map[string]*Namespaces[V])
	for _, b := range f.backends {
		f.retired = append(f.retired, b)
	}
	f.backends = make(map[string]backend)
	f.opts.Logger.Info("cache config applied", Fields{"default": def, "adapters": len(cfg.Adapters)})
	return nil
}

// Config returns a copy of the active config.
func (f *Factory[V]) Config() Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg.Clone()
}

// Make returns the cache for namespace ("" => "default") from adapter ("" =>
// the configured default). An adapter missing from the config is reported as
// ErrUnknownAdapter; everything else that fails is a *ConfigError.
func (f *Factory[V]) Make(namespace, adapter string) (Cache[V], error) {
	f.makeMu.Lock()
	defer f.makeMu.Unlock()

	f.mu.Lock()
	name := coalesce(adapter, coalesce(f.cfg.Defaults.Adapter, DefaultAdapter))
	ac, ok := f.cfg.Adapters[name]
	if !ok {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownAdapter, name)
	}
	ctor := f.classes[ac.Class]
	scope, ok := f.scopes[name]
	if !ok {
		scope = NewNamespaces[V]()
		f.scopes[name] = scope
	}
	s := f.cfg.Defaults.Options.Merge(ac.Options)
	f.mu.Unlock()

	ns := coalesce(namespace, DefaultNamespace)
	if c, ok := scope.Lookup(ns); ok {
		return c, nil
	}
	if ctor == nil {
		return nil, configErrf("make", name, "unknown class %q", ac.Class)
	}
	s["namespace"] = ns

	c, err := ctor(AdapterEnv[V]{
		Adapter: name,
		Scope:   scope,
		Logger:  f.opts.Logger,
		Hooks:   f.opts.Hooks,
		Codec:   f.opts.Codec,
	}, s)
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, configErr("make", name, err)
	}
	if c == nil {
		return nil, configErrf("make", name, "class %q returned no cache", ac.Class)
	}
	scope.Store(ns, c)
	f.opts.Logger.Debug("cache made", Fields{"adapter": name, "class": ac.Class, "ns": ns})
	return c, nil
}

// Close closes every provider and generation store the built-in classes
// opened, including those of replaced configs.
func (f *Factory[V]) Close(ctx context.Context) error {
	f.mu.Lock()
	all := f.retired
	for _, b := range f.backends {
		all = append(all, b)
	}
	f.retired = nil
	f.backends = make(map[string]backend)
	f.scopes = make(map[string]*Namespaces[V])
	f.mu.Unlock()

	var errs []error
	for _, b := range all {
		if b.gen != nil {
			errs = append(errs, b.gen.Close(ctx))
		}
		if b.p != nil {
			errs = append(errs, b.p.Close(ctx))
		}
	}
	return errors.Join(errs...)
}

// backendFor returns the backend opened for adapter, opening it on first use.
func (f *Factory[V]) backendFor(adapter string, open func() (backend, error)) (backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.backends[adapter]; ok {
		return b, nil
	}
	b, err := open()
	if err != nil {
		return backend{}, err
	}
	f.backends[adapter] = b
	return b, nil
}

// codecFor resolves the value codec: env.Codec, else the "codec" setting,
// optionally bounded by "max_decode".
func codecFor[V any](env AdapterEnv[V], r *settingsReader) codec.Codec[V] {
	name := r.str("json", "codec")
	maxDecode := r.num(0, "max_decode")
	cd := env.Codec
	if cd == nil {
		var err error
		if cd, err = codec.ByName[V](name); err != nil {
			r.keep(configErr("settings", "codec", err))
			return nil
		}
	}
	if maxDecode > 0 {
		cd = codec.Limit[V]{Inner: cd, MaxDecode: maxDecode}
	}
	return cd
}

func newFilesystemCache[V any](env AdapterEnv[V], s Settings) (Cache[V], error) {
	r := s.reader()
	dirPerm := r.mode(DefaultDirPerm, "dir_permission", "dir_permissions")
	filePerm := r.mode(DefaultFilePerm, "file_permission", "file_permissions")
	if r.err != nil {
		return nil, r.err
	}
	// Options treats a zero mode as unset; a configured 0 must fail here.
	if err := validateDirPerm(dirPerm); err != nil {
		return nil, err
	}
	if err := validateFilePerm(filePerm); err != nil {
		return nil, err
	}
	opts := Options[V]{
		Namespace:     r.str(DefaultNamespace, "namespace"),
		BaseDir:       r.str(DefaultBaseDir, "basedir"),
		DirPerm:       dirPerm,
		FilePerm:      filePerm,
		DefaultTTL:    r.duration(0, "default_ttl"),
		GC:            r.num(DefaultGC, "gc"),
		HashAlgorithm: r.str(hashing.Default, "hashing_algorithm"),
		Enabled:       r.flag(false, "enabled"),
		Registry:      env.Scope,
		Logger:        env.Logger,
		Hooks:         env.Hooks,
	}
	opts.Codec = codecFor(env, r)
	if r.err != nil {
		return nil, r.err
	}
	return New(opts)
}

// providerCache builds a ProviderCache over b from the common settings.
func providerCache[V any](env AdapterEnv[V], r *settingsReader, b backend) (Cache[V], error) {
	opts := ProviderOptions[V]{
		Namespace:     r.str(DefaultNamespace, "namespace"),
		Provider:      b.p,
		GenStore:      b.gen,
		Prefix:        r.str(DefaultPrefix, "prefix"),
		DefaultTTL:    r.duration(0, "default_ttl"),
		HashAlgorithm: r.str(hashing.Default, "hashing_algorithm"),
		Enabled:       r.flag(false, "enabled"),
		Registry:      env.Scope,
		Logger:        env.Logger,
		Hooks:         env.Hooks,
	}
	opts.Codec = codecFor(env, r)
	if r.err != nil {
		return nil, r.err
	}
	return NewProviderCache(opts)
}

func (f *Factory[V]) newRistrettoCache(env AdapterEnv[V], s Settings) (Cache[V], error) {
	r := s.reader()
	cfg := riprov.Config{
		NumCounters: int64(r.num(100_000, "num_counters")),
		MaxCost:     int64(r.num(64<<20, "max_cost")),
		BufferItems: int64(r.num(64, "buffer_items")),
		Metrics:     r.flag(false, "metrics"),
	}
	if r.err != nil {
		return nil, r.err
	}
	b, err := f.backendFor(env.Adapter, func() (backend, error) {
		p, err := riprov.New(cfg)
		if err != nil {
			return backend{}, err
		}
		return backend{p: p, gen: genstore.NewLocalGenStore(0, 0)}, nil
	})
	if err != nil {
		return nil, configErr("make", env.Adapter, err)
	}
	return providerCache(env, r, b)
}

func (f *Factory[V]) newBigcacheCache(env AdapterEnv[V], s Settings) (Cache[V], error) {
	r := s.reader()
	cfg := bcprov.Config{
		LifeWindow:         r.duration(10*time.Minute, "life_window"),
		CleanWindow:        r.duration(0, "clean_window"),
		MaxEntriesInWindow: r.num(0, "max_entries_in_window"),
		MaxEntrySize:       r.num(0, "max_entry_size"),
		HardMaxCacheSizeMB: r.num(0, "hard_max_cache_size_mb"),
	}
	if r.err != nil {
		return nil, r.err
	}
	b, err := f.backendFor(env.Adapter, func() (backend, error) {
		p, err := bcprov.New(context.Background(), cfg)
		if err != nil {
			return backend{}, err
		}
		return backend{p: p, gen: genstore.NewLocalGenStore(0, 0)}, nil
	})
	if err != nil {
		return nil, configErr("make", env.Adapter, err)
	}
	return providerCache(env, r, b)
}

func (f *Factory[V]) newRedisCache(env AdapterEnv[V], s Settings) (Cache[V], error) {
	r := s.reader()
	addrs := r.list("addrs", "addr")
	uo := &goredis.UniversalOptions{
		Addrs:    addrs,
		Username: r.str("", "username"),
		Password: r.str("", "password"),
		DB:       r.num(0, "db"),
	}
	prefix := r.str(DefaultPrefix, "prefix")
	gens := r.str("local", "genstore")
	if r.err != nil {
		return nil, r.err
	}
	if len(addrs) == 0 {
		uo.Addrs = []string{"127.0.0.1:6379"}
	}
	if gens != "local" && gens != "redis" {
		return nil, configErrf("settings", "genstore", "want local or redis, got %q", gens)
	}

	b, err := f.backendFor(env.Adapter, func() (backend, error) {
		client := goredis.NewUniversalClient(uo)
		p, err := rprov.New(rprov.Config{Client: client, CloseClient: true})
		if err != nil {
			_ = client.Close()
			return backend{}, err
		}
		var gs genstore.GenStore = genstore.NewLocalGenStore(0, 0)
		if gens == "redis" {
			gs = genstore.NewRedisGenStore(p.Client(), prefix)
		}
		return backend{p: p, gen: gs}, nil
	})
	if err != nil {
		return nil, configErr("make", env.Adapter, err)
	}
	return providerCache(env, r, b)
}
