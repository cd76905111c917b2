package emitter

import (
	"context"
	"log/slog"
)

// Log is a ports.Emitter and registry handler that only writes side effects to a logger.
type Log struct {
	Logger *slog.Logger
}

// Emit logs the side effect.
func (l Log) Emit(ctx context.Context, kind string, payload map[string]any) {
	_ = l.Handle(ctx, kind, payload)
}

// Handle logs the side effect and never fails.
func (l Log) Handle(ctx context.Context, kind string, payload map[string]any) error {
	attrs := make([]any, 0, len(payload)*2+2)
	attrs = append(attrs, "kind", kind)
	for k, v := range payload {
		attrs = append(attrs, k, v)
	}
	l.Logger.InfoContext(ctx, "side effect", attrs...)
	return nil
}
