package importer

import (
	"log/slog"

	"github.com/aretw0/concierge/internal/logging"
)

const (
	// DefaultRestartPhrase is the reply text that restarts the conversation.
	DefaultRestartPhrase = "restart"
	// DefaultStartSentinel is the joint link that points back to the start.
	DefaultStartSentinel = "start"
	// LegacyDepthLimit is the truncation depth of the old importer (children and grandchildren).
	LegacyDepthLimit = 2
)

type options struct {
	scenarioID    string
	depthLimit    int
	restartPhrase string
	startSentinel string
	logger        *slog.Logger
}

// Option configures an import.
type Option func(*options)

// WithScenarioID imports onto an existing scenario. Node IDs are derived from
// the scenario ID and the cell IDs, so re-importing keeps them stable.
func WithScenarioID(id string) Option {
	return func(o *options) {
		o.scenarioID = id
	}
}

// WithLegacyDepthLimit truncates traversal below depth levels under the first
// response, reproducing the old importer. Zero or negative means unlimited.
func WithLegacyDepthLimit(depth int) Option {
	return func(o *options) {
		o.depthLimit = depth
	}
}

// WithRestartPhrase overrides the reply text recognised as a restart.
func WithRestartPhrase(phrase string) Option {
	return func(o *options) {
		o.restartPhrase = phrase
	}
}

// WithStartSentinel overrides the joint link recognised as "back to start".
func WithStartSentinel(sentinel string) Option {
	return func(o *options) {
		o.startSentinel = sentinel
	}
}

// WithLogger sets the importer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		restartPhrase: DefaultRestartPhrase,
		startSentinel: DefaultStartSentinel,
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
