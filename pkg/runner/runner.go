package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
)

// Advancer is the part of the engine the runner needs.
type Advancer interface {
	Advance(ctx context.Context, sessionID, scenarioID string, ev domain.Event) (*concierge.Result, error)
}

// Runner runs one conversation until it ends.
type Runner struct {
	engine     Advancer
	handler    IOHandler
	sessionID  string
	scenarioID string
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// New creates a runner for one session.
func New(engine Advancer, handler IOHandler, sessionID, scenarioID string, opts ...Option) *Runner {
	r := &Runner{
		engine:     engine,
		handler:    handler,
		sessionID:  sessionID,
		scenarioID: scenarioID,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the conversation and loops until it is closed, handed off,
// input ends (io.EOF, which is not an error) or ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ev := domain.Start()

	for {
		res, err := r.engine.Advance(ctx, r.sessionID, r.scenarioID, ev)
		if res != nil {
			if outErr := r.handler.Output(ctx, res); outErr != nil {
				return fmt.Errorf("failed to write output: %w", outErr)
			}
		}
		if err != nil {
			if msg, ok := explain(err); ok {
				r.logger.Debug("advance rejected", "session_id", r.sessionID, "err", err)
				if outErr := r.handler.SystemOutput(ctx, msg); outErr != nil {
					return outErr
				}
			} else {
				return err
			}
		}

		if res != nil {
			switch res.Session.Status {
			case domain.SessionHandedOff:
				return r.handler.SystemOutput(ctx, "An operator has taken over the conversation.")
			case domain.SessionClosed:
				return r.handler.SystemOutput(ctx, "Conversation closed.")
			}
		}

		ev, err = r.handler.Input(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// explain turns recoverable errors into a message for the visitor.
func explain(err error) (string, bool) {
	var serr *domain.StructuralError
	switch {
	case errors.Is(err, domain.ErrInputNotAccepted):
		return "Typing is not available here, please pick an option.", true
	case errors.Is(err, domain.ErrUnknownBranch):
		return "That option does not exist.", true
	case errors.Is(err, domain.ErrSessionInactive):
		return "This conversation is over. Type /restart to begin again.", true
	case errors.As(err, &serr):
		return fmt.Sprintf("This flow is broken here (%s). An operator has been notified.", serr.Code), true
	}
	return "", false
}
