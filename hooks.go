package nscache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; caches call them inline.
type Hooks interface {
	// Get found an expired entry and dropped it.
	EntryExpired(namespace, key string)

	// Get dropped an entry it could not use.
	// reason ∈ {"stat", "read", "decode", "corrupt", "gen_mismatch"}
	SelfHeal(namespace, key, reason string)

	// Set failed; the entry was removed best-effort.
	// stage ∈ {"encode", "write", "touch", "chmod", "rename", "gen", "provider", "rejected"}
	SetFailed(namespace, key, stage string, err error)

	// Remove could not delete an existing entry.
	RemoveFailed(namespace, key string, err error)

	// ClearNamespace/ClearExpired could not delete failed entries.
	ClearFailed(namespace string, failed int, err error)

	// Release ran a garbage-collection sweep.
	GCSweep(namespace string, removed int, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) EntryExpired(string, string)             {}
func (NopHooks) SelfHeal(string, string, string)         {}
func (NopHooks) SetFailed(string, string, string, error) {}
func (NopHooks) RemoveFailed(string, string, error)      {}
func (NopHooks) ClearFailed(string, int, error)          {}
func (NopHooks) GCSweep(string, int, error)              {}
