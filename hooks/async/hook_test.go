package asynchook

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/nscache"
)

type recorder struct {
	nscache.NopHooks
	mu     sync.Mutex
	events []string
	block  chan struct{}
}

func (r *recorder) SelfHeal(ns, key, reason string) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.events = append(r.events, ns+"/"+key+"/"+reason)
	r.mu.Unlock()
}

func TestForwardsAndDrainsOnClose(t *testing.T) {
	rec := &recorder{}
	h := New(rec, 2, 16)
	for i := 0; i < 10; i++ {
		h.SelfHeal("ns", "k", "decode")
	}
	h.Close()

	if len(rec.events) != 10 {
		t.Fatalf("want 10 events, got %d", len(rec.events))
	}
	if h.Dropped() != 0 {
		t.Fatalf("dropped=%d", h.Dropped())
	}
}

func TestDropsWhenFull(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	h := New(rec, 1, 1)

	// one event may be held by the worker, one by the queue; the rest drop
	for i := 0; i < 10; i++ {
		h.SelfHeal("ns", "k", "read")
	}
	if h.Dropped() < 8 {
		t.Fatalf("want at least 8 dropped, got %d", h.Dropped())
	}
	close(rec.block)
	h.Close()
}

func TestAfterCloseIsDropped(t *testing.T) {
	h := New(&recorder{}, 1, 4)
	h.Close()
	h.Close()
	h.GCSweep("ns", 1, nil)
	if h.Dropped() != 1 {
		t.Fatalf("dropped=%d", h.Dropped())
	}
}
