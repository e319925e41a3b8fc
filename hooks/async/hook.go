// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery: 10, // sample logs: ~every 10th self-heal
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := nscache.New[User](nscache.Options[User]{
//	    Namespace: "users",
//	    Hooks:     hooks, // or `raw` if you don't want async
//	    Enabled:   true,
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/nscache"
)

// Hooks forwards events to inner on worker goroutines. Events that do not fit
// in the queue are dropped and counted.
type Hooks struct {
	inner   nscache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against sends
	closed  bool
	dropped atomic.Uint64
}

var _ nscache.Hooks = (*Hooks)(nil)

func New(inner nscache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Later events are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) EntryExpired(ns, k string) { h.try(func() { h.inner.EntryExpired(ns, k) }) }
func (h *Hooks) SelfHeal(ns, k, r string)  { h.try(func() { h.inner.SelfHeal(ns, k, r) }) }
func (h *Hooks) RemoveFailed(ns, k string, err error) {
	h.try(func() { h.inner.RemoveFailed(ns, k, err) })
}
func (h *Hooks) SetFailed(ns, k, stage string, err error) {
	h.try(func() { h.inner.SetFailed(ns, k, stage, err) })
}
func (h *Hooks) ClearFailed(ns string, n int, err error) {
	h.try(func() { h.inner.ClearFailed(ns, n, err) })
}
func (h *Hooks) GCSweep(ns string, n int, err error) {
	h.try(func() { h.inner.GCSweep(ns, n, err) })
}
