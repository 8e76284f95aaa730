package reactor

import "sync"

// Callback is a one-shot continuation. It must be invoked at most once.
type Callback func()

// handleRegistry lets a Callback be "leaked" to an opaque uintptr key
// and later reconstructed, the same trick the C++ source plays by
// stashing a raw closure address in an epoll_event's data.ptr field.
// Go closures are not addressable as integers, so the registry holds
// the live closure behind a monotonic key instead of a real pointer;
// the handle still changes hands exactly once per registration, so no
// extra allocation happens beyond the closure capture already required.
type handleRegistry struct {
	mu     sync.Mutex
	next   uintptr
	stored map[uintptr]Callback
}

var registry = &handleRegistry{stored: make(map[uintptr]Callback)}

// leak relinquishes ownership of cb, returning an opaque handle that
// can later be redeemed exactly once via take.
func leak(cb Callback) uintptr {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.next++
	key := registry.next
	registry.stored[key] = cb
	return key
}

// take reclaims ownership of the callback stored under key. Calling it
// twice for the same key is a programming error (mirrors the source's
// at-most-once invariant) and returns nil the second time.
func take(key uintptr) Callback {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	cb := registry.stored[key]
	delete(registry.stored, key)
	return cb
}
