// Package listener holds the single-listener plumbing shared by the rotation
// sources.
package listener

import "sync"

// Gate holds at most one listener and hands values to it.
//
// Deliveries and Clear are serialized: once Clear returns, no delivery is in
// flight and none will start until the next Set. The zero value is ready to use.
type Gate[T any] struct {
	mu sync.Mutex
	fn func(T)
}

// Set installs fn, replacing any previous listener.
func (g *Gate[T]) Set(fn func(T)) {
	g.mu.Lock()
	g.fn = fn
	g.mu.Unlock()
}

// Clear removes the listener. It is safe to call when none is set.
func (g *Gate[T]) Clear() {
	g.mu.Lock()
	g.fn = nil
	g.mu.Unlock()
}

// Active reports whether a listener is installed.
func (g *Gate[T]) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fn != nil
}

// Deliver calls the listener with v and reports whether one was installed.
// The listener must not call back into the Gate.
func (g *Gate[T]) Deliver(v T) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fn == nil {
		return false
	}
	g.fn(v)
	return true
}
