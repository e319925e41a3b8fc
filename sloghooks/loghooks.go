// Package sloghooks reports cache events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/nscache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	ExpiredEvery  uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	expiredCtr  atomic.Uint64
}

var _ nscache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) EntryExpired(ns, key string) {
	if h.l == nil || !sample(h.opts.ExpiredEvery, &h.expiredCtr) {
		return
	}
	h.l.Debug("nscache.entry_expired",
		"ns", ns,
		"key", h.redact(key))
}

func (h *Hooks) SelfHeal(ns, key, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("nscache.self_heal",
		"ns", ns,
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) SetFailed(ns, key, stage string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("nscache.set_failed",
		"ns", ns,
		"key", h.redact(key),
		"stage", stage,
		"err", err)
}

func (h *Hooks) RemoveFailed(ns, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("nscache.remove_failed",
		"ns", ns,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) ClearFailed(ns string, failed int, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("nscache.clear_failed",
		"ns", ns,
		"failed", failed,
		"err", err)
}

func (h *Hooks) GCSweep(ns string, removed int, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		h.l.Warn("nscache.gc_sweep",
			"ns", ns,
			"removed", removed,
			"err", err)
		return
	}
	h.l.Info("nscache.gc_sweep",
		"ns", ns,
		"removed", removed)
}
