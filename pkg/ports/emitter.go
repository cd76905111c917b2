package ports

import "context"

// Emitter publishes side effects to the outside world (hand-off queue,
// mail, chat notifications, data capture).
// It is write-only: implementations must not block the caller on delivery
// and must not report delivery failures back into the traversal.
type Emitter interface {
	Emit(ctx context.Context, kind string, payload map[string]any)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, kind string, payload map[string]any)

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, kind string, payload map[string]any) {
	f(ctx, kind, payload)
}
