// Package registry maps emitted side-effect kinds (hand-off, mail, chat
// notifications, data capture) to the handlers that deliver them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNoHandler is returned by Dispatch when nothing is registered for a kind.
var ErrNoHandler = errors.New("no handler registered")

// HandlerFunc delivers one emitted side effect.
type HandlerFunc func(ctx context.Context, kind string, payload map[string]any) error

// Registry manages the available handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	fallback HandlerFunc
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a handler for kind.
// If a handler for the same kind exists, it is overwritten.
func (r *Registry) Register(kind string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = fn
}

// Fallback sets the handler used for kinds without a dedicated one.
func (r *Registry) Fallback(fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = fn
}

// Kinds lists the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dispatch looks up the handler for kind and runs it.
func (r *Registry) Dispatch(ctx context.Context, kind string, payload map[string]any) error {
	r.mu.RLock()
	fn, ok := r.handlers[kind]
	if !ok {
		fn = r.fallback
	}
	r.mu.RUnlock()

	if fn == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, kind)
	}
	return fn(ctx, kind, payload)
}
