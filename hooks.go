package cacheclient

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; providers call them inline.
type Hooks interface {
	// A namespace had no generation and this call created one.
	NamespaceCreated(provider, namespaceKey, generation string)

	// Another writer created the namespace generation first; the call adopted it.
	NamespaceRaceLost(provider, namespaceKey string)

	// The backend was unreachable or answered with something other than a
	// result code the provider understands. op is the public operation name.
	ConnectionFault(provider, op string, err error)

	// Memcached increment fell back to add, lost to a concurrent creator and
	// retried the increment.
	IncrementRetried(provider, storageKey string)

	// The memory provider swept expired entries. evicted may be 0.
	GarbageCollected(provider string, evicted int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) NamespaceCreated(string, string, string) {}
func (NopHooks) NamespaceRaceLost(string, string)        {}
func (NopHooks) ConnectionFault(string, string, error)   {}
func (NopHooks) IncrementRetried(string, string)         {}
func (NopHooks) GarbageCollected(string, int)            {}
