package nscache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/nscache/codec"
	"github.com/unkn0wn-root/nscache/hashing"
	"github.com/unkn0wn-root/nscache/internal/util"
)

// Options configure a FileCache. Zero values fall back to defaults, except
// DefaultTTL: 0 is honored and makes entries written without an explicit TTL
// expire immediately.
type Options[V any] struct {
	Namespace     string         // "" => "default"
	BaseDir       string         // "" => ./data/cache
	DirPerm       os.FileMode    // 0 => 0700 (unset); must grant the owner rwx
	FilePerm      os.FileMode    // 0 => 0600 (unset); must grant the owner rw
	DefaultTTL    time.Duration  // TTL for Set(..., 0)
	HashAlgorithm string         // "" => crc32, see package hashing
	Hash          hashing.Func   // overrides HashAlgorithm
	Codec         codec.Codec[V] // nil => JSON
	GC            int            // Release sweeps with probability 1/GC; 0 => 1000
	Enabled       bool           // default false (disabled)

	Registry *Namespaces[V] // nil => private registry
	Logger   Logger         // nil => NopLogger
	Hooks    Hooks          // nil => NopHooks

	Clock  func() time.Time       // nil => time.Now
	Rand   func(n int) int        // uniform in [0,n); nil => math/rand/v2
	Unlink func(path string) error // deletes entry files; nil => os.Remove
}

// fileConfig is everything WithNamespace copies into a sibling.
type fileConfig[V any] struct {
	ns         string
	baseDir    string
	dirPerm    os.FileMode
	filePerm   os.FileMode
	defaultTTL time.Duration
	hashName   string
	hash       hashing.Func
	codec      codec.Codec[V]
	gc         int
	registry   *Namespaces[V]
	log        Logger
	hooks      Hooks
	now        func() time.Time
	rand       func(int) int
	unlink     func(string) error
}

// FileCache stores one namespace as a directory of entry files. An entry's
// modification time is its expiry instant.
//
// All methods are safe for concurrent use within one process. Writes go
// through a temp file and a rename, so readers never observe a partial entry;
// there is no locking across processes.
type FileCache[V any] struct {
	fileConfig[V]
	enabled atomic.Bool
}

var _ Cache[struct{}] = (*FileCache[struct{}])(nil)

// New validates opts, applies opts.Enabled and registers the cache in its
// registry (replacing an earlier instance of the same namespace). Every
// failure is a *ConfigError and nothing is registered.
func New[V any](opts Options[V]) (*FileCache[V], error) {
	cfg, err := newFileConfig(opts)
	if err != nil {
		return nil, err
	}
	fc := &FileCache[V]{fileConfig: cfg}
	if err := fc.SetEnabled(opts.Enabled); err != nil {
		return nil, err
	}
	fc.registry.Store(fc.ns, fc)
	fc.log.Debug("file cache created", Fields{
		"ns": fc.ns, "dir": fc.Dir(), "enabled": fc.Enabled(), "gc": fc.gc,
	})
	return fc, nil
}

func newFileConfig[V any](opts Options[V]) (fileConfig[V], error) {
	cfg := fileConfig[V]{
		ns:         coalesce(opts.Namespace, DefaultNamespace),
		baseDir:    coalesce(opts.BaseDir, DefaultBaseDir),
		dirPerm:    coalesce(opts.DirPerm, DefaultDirPerm),
		filePerm:   coalesce(opts.FilePerm, DefaultFilePerm),
		defaultTTL: opts.DefaultTTL,
		hashName:   coalesce(opts.HashAlgorithm, hashing.Default),
		hash:       opts.Hash,
		codec:      opts.Codec,
		gc:         coalesce(opts.GC, DefaultGC),
		registry:   opts.Registry,
		log:        coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:      opts.Hooks,
		now:        opts.Clock,
		rand:       opts.Rand,
		unlink:     opts.Unlink,
	}

	if err := validateDirPerm(cfg.dirPerm); err != nil {
		return cfg, err
	}
	if err := validateFilePerm(cfg.filePerm); err != nil {
		return cfg, err
	}
	if opts.GC < 0 {
		return cfg, configErrf("new", "gc", "must not be negative, got %d", opts.GC)
	}
	if cfg.hash == nil {
		h, err := hashing.Lookup(cfg.hashName)
		if err != nil {
			return cfg, configErr("new", "hashing_algorithm", err)
		}
		cfg.hash = h
	}

	if cfg.codec == nil {
		cfg.codec = codec.JSON[V]{}
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
	if cfg.rand == nil {
		cfg.rand = rand.IntN
	}
	if cfg.unlink == nil {
		cfg.unlink = os.Remove
	}
	return cfg, nil
}

func validateDirPerm(p os.FileMode) error {
	switch {
	case p&0o400 == 0:
		return configErrf("new", "dir_permission", "%04o: directories will not be readable", uint32(p.Perm()))
	case p&0o200 == 0:
		return configErrf("new", "dir_permission", "%04o: directories will not be writable", uint32(p.Perm()))
	case p&0o100 == 0:
		return configErrf("new", "dir_permission", "%04o: directory contents will not be accessible", uint32(p.Perm()))
	}
	return nil
}

func validateFilePerm(p os.FileMode) error {
	switch {
	case p&0o400 == 0:
		return configErrf("new", "file_permission", "%04o: files will not be readable", uint32(p.Perm()))
	case p&0o200 == 0:
		return configErrf("new", "file_permission", "%04o: files will not be writable", uint32(p.Perm()))
	}
	return nil
}

func (fc *FileCache[V]) Namespace() string         { return fc.ns }
func (fc *FileCache[V]) BaseDir() string           { return fc.baseDir }
func (fc *FileCache[V]) DirPerm() os.FileMode      { return fc.dirPerm }
func (fc *FileCache[V]) FilePerm() os.FileMode     { return fc.filePerm }
func (fc *FileCache[V]) DefaultTTL() time.Duration { return fc.defaultTTL }
func (fc *FileCache[V]) GC() int                   { return fc.gc }
func (fc *FileCache[V]) HashAlgorithm() string     { return fc.hashName }
func (fc *FileCache[V]) Enabled() bool             { return fc.enabled.Load() }

// Dir is the namespace directory.
func (fc *FileCache[V]) Dir() string {
	return util.PathFor(fc.baseDir, fc.ns, fc.hash)
}

// EntryPath is the file that holds key.
func (fc *FileCache[V]) EntryPath(key string) string {
	return util.PathFor(fc.baseDir, fc.ns, fc.hash, key)
}

// SetEnabled(true) creates the namespace directory if needed and checks that
// it is readable and writable. On failure the cache stays disabled.
func (fc *FileCache[V]) SetEnabled(on bool) error {
	if !on {
		fc.enabled.Store(false)
		return nil
	}
	if err := fc.prepareDir(); err != nil {
		fc.enabled.Store(false)
		fc.log.Error("enable failed", Fields{"ns": fc.ns, "dir": fc.Dir(), "err": err})
		return configErr("enable", fc.ns, err)
	}
	fc.enabled.Store(true)
	return nil
}

func (fc *FileCache[V]) prepareDir() error {
	dir := fc.Dir()
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		if err := os.MkdirAll(dir, fc.dirPerm); err != nil {
			return fmt.Errorf("create cache directory %q: %w", dir, err)
		}
	}
	return util.CheckAccess(dir)
}

func (fc *FileCache[V]) Set(_ context.Context, key string, value V, ttl time.Duration) Status {
	if !fc.Enabled() {
		return Disabled
	}
	if ttl == 0 {
		ttl = fc.defaultTTL
	}
	file := fc.EntryPath(key)

	payload, err := fc.codec.Encode(value)
	if err != nil {
		return fc.setFailed(key, file, "encode", err)
	}
	if stage, err := fc.writeEntry(file, payload, fc.now().Add(ttl)); err != nil {
		return fc.setFailed(key, file, stage, err)
	}
	return OK
}

// writeEntry writes payload next to file, stamps the expiry as mtime, applies
// the file mode and renames it into place. It reports the failing stage.
func (fc *FileCache[V]) writeEntry(file string, payload []byte, expiresAt time.Time) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(file), ".tmp-*")
	if err != nil {
		return "write", err
	}
	name := tmp.Name()
	done := false
	defer func() {
		if !done {
			_ = os.Remove(name)
		}
	}()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return "write", err
	}
	if err := tmp.Close(); err != nil {
		return "write", err
	}
	if err := os.Chtimes(name, fc.now(), expiresAt); err != nil {
		return "touch", err
	}
	if err := os.Chmod(name, fc.filePerm); err != nil {
		return "chmod", err
	}
	if err := os.Rename(name, file); err != nil {
		return "rename", err
	}
	done = true
	return "", nil
}

func (fc *FileCache[V]) setFailed(key, file, stage string, err error) Status {
	oe := &OpError{Op: "set", Namespace: fc.ns, Key: key, Err: err}
	fc.log.Warn("set failed", Fields{"ns": fc.ns, "key": key, "stage": stage, "err": err})
	fc.hooks.SetFailed(fc.ns, key, stage, oe)
	_ = fc.removeFile(file)
	return Failed
}

// Get returns (value, OK) for a live entry. Absent, expired and unreadable
// entries are all a Miss; the latter two are removed on the way out.
func (fc *FileCache[V]) Get(_ context.Context, key string) (V, Status) {
	var zero V
	if !fc.Enabled() {
		return zero, Disabled
	}
	file := fc.EntryPath(key)

	fi, err := os.Stat(file)
	if errors.Is(err, fs.ErrNotExist) {
		return zero, Miss
	}
	if err != nil {
		return zero, fc.selfHeal(key, file, "stat", err)
	}
	if fi.ModTime().Before(fc.now()) {
		_ = fc.removeFile(file)
		fc.hooks.EntryExpired(fc.ns, key)
		return zero, Miss
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return zero, fc.selfHeal(key, file, "read", err)
	}
	v, err := fc.codec.Decode(data)
	if err != nil {
		return zero, fc.selfHeal(key, file, "decode", err)
	}
	return v, OK
}

func (fc *FileCache[V]) selfHeal(key, file, reason string, err error) Status {
	fc.log.Debug("dropping unreadable entry", Fields{"ns": fc.ns, "key": key, "reason": reason, "err": err})
	_ = fc.removeFile(file)
	fc.hooks.SelfHeal(fc.ns, key, reason)
	return Miss
}

// Remove deletes key. A missing entry is already removed.
func (fc *FileCache[V]) Remove(_ context.Context, key string) Status {
	if !fc.Enabled() {
		return Disabled
	}
	if err := fc.removeFile(fc.EntryPath(key)); err != nil {
		oe := &OpError{Op: "remove", Namespace: fc.ns, Key: key, Err: err}
		fc.log.Warn("remove failed", Fields{"ns": fc.ns, "key": key, "err": err})
		fc.hooks.RemoveFailed(fc.ns, key, oe)
		return Failed
	}
	return OK
}

// ClearNamespace deletes every entry file regardless of expiry. The namespace
// directory itself is kept.
func (fc *FileCache[V]) ClearNamespace(_ context.Context) Status {
	if !fc.Enabled() {
		return Disabled
	}
	st, _, _ := fc.clear(false)
	return st
}

// ClearExpired deletes entry files whose expiry has passed. Release calls it
// on a random 1/GC of cycles; calling it directly is rarely needed.
func (fc *FileCache[V]) ClearExpired(_ context.Context) Status {
	if !fc.Enabled() {
		return Disabled
	}
	st, _, _ := fc.clear(true)
	return st
}

func (fc *FileCache[V]) clear(expiredOnly bool) (Status, int, error) {
	removed, failed, err := fc.sweep(expiredOnly)
	if failed > 0 {
		oe := &OpError{Op: "clear", Namespace: fc.ns, Err: err}
		fc.log.Warn("clear incomplete", Fields{"ns": fc.ns, "removed": removed, "failed": failed, "err": err})
		fc.hooks.ClearFailed(fc.ns, failed, oe)
		return Failed, removed, err
	}
	return OK, removed, nil
}

// sweep visits every *.dat file or symlink in the namespace directory and
// keeps going past individual failures. Links are unlinked, never followed
// for deletion.
func (fc *FileCache[V]) sweep(expiredOnly bool) (removed, failed int, err error) {
	dir := fc.Dir()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 1, err
	}

	now := fc.now()
	var errs []error
	for _, e := range entries {
		link := e.Type()&fs.ModeSymlink != 0
		if (!e.Type().IsRegular() && !link) || !strings.HasSuffix(e.Name(), util.EntryExt) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if expiredOnly {
			// a linked entry expires with its target, as Get sees it
			var info fs.FileInfo
			var ierr error
			if link {
				info, ierr = os.Stat(path)
			} else {
				info, ierr = e.Info()
			}
			switch {
			case link && errors.Is(ierr, fs.ErrNotExist):
				// dangling link, never servable
			case errors.Is(ierr, fs.ErrNotExist):
				continue
			case ierr != nil:
				failed++
				errs = append(errs, ierr)
				continue
			case !info.ModTime().Before(now):
				continue
			}
		}
		if err := fc.removeFile(path); err != nil {
			failed++
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, failed, errors.Join(errs...)
}

// WithNamespace returns the registered cache for name. A missing one is cloned
// from fc with the new namespace and enabled iff fc is enabled.
func (fc *FileCache[V]) WithNamespace(name string) (Cache[V], error) {
	name = coalesce(name, DefaultNamespace)
	if name == fc.ns {
		return fc, nil
	}
	return fc.registry.LoadOrCreate(name, func() (Cache[V], error) {
		sib := &FileCache[V]{fileConfig: fc.fileConfig}
		sib.ns = name
		if err := sib.SetEnabled(fc.Enabled()); err != nil {
			return nil, err
		}
		return sib, nil
	})
}

// Release counts one GC cycle: while enabled, it sweeps expired entries with
// probability 1/GC. The sweep runs inline, so an unlucky Release costs a full
// directory scan.
func (fc *FileCache[V]) Release(_ context.Context) error {
	if !fc.Enabled() || fc.rand(fc.gc) != 0 {
		return nil
	}
	_, removed, err := fc.clear(true)
	fc.hooks.GCSweep(fc.ns, removed, err)
	fc.log.Debug("gc sweep", Fields{"ns": fc.ns, "removed": removed, "err": err})
	return err
}

// removeFile deletes path; a missing file counts as removed.
func (fc *FileCache[V]) removeFile(path string) error {
	if err := fc.unlink(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
