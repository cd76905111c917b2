package runner

import (
	"context"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/pkg/domain"
)

// IOHandler defines the strategy for interacting with the visitor.
// This allows switching between Text (console) and JSON (structured) modes.
type IOHandler interface {
	// Output presents the result of one advance.
	Output(ctx context.Context, res *concierge.Result) error

	// Input reads the next visitor event.
	Input(ctx context.Context) (domain.Event, error)

	// SystemOutput presents a meta-message (errors, status changes).
	SystemOutput(ctx context.Context, msg string) error
}
