package dsl

import (
	"fmt"
	"strings"

	"github.com/aretw0/concierge/internal/validator"
	"github.com/aretw0/concierge/pkg/domain"
)

// Builder manages the scenario construction.
type Builder struct {
	scenario domain.Scenario
	order    []string
	nodes    map[string]*NodeBuilder
	conns    int
}

// New creates a new scenario builder. The name doubles as the ID until ID is called.
func New(name string) *Builder {
	return &Builder{
		scenario: domain.Scenario{ID: name, Name: name},
		nodes:    make(map[string]*NodeBuilder),
	}
}

// ID sets the scenario ID.
func (b *Builder) ID(id string) *Builder {
	b.scenario.ID = id
	return b
}

// Describe sets the scenario description.
func (b *Builder) Describe(description string) *Builder {
	b.scenario.Description = description
	return b
}

// FreeInputDefault sets the scenario-wide free input mode.
func (b *Builder) FreeInputDefault(mode domain.FreeInputMode) *Builder {
	b.scenario.FreeInputDefault = mode
	return b
}

// Add creates a node of the given kind.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string, kind domain.NodeKind) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.Node{ID: id, Kind: kind},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

func (b *Builder) Start(id string) *NodeBuilder     { return b.Add(id, domain.KindStart) }
func (b *Builder) Message(id string) *NodeBuilder   { return b.Add(id, domain.KindMessage) }
func (b *Builder) Question(id string) *NodeBuilder  { return b.Add(id, domain.KindQuestion) }
func (b *Builder) Condition(id string) *NodeBuilder { return b.Add(id, domain.KindCondition) }
func (b *Builder) End(id string) *NodeBuilder       { return b.Add(id, domain.KindEnd) }

// Action creates an action node.
func (b *Builder) Action(id string, kind domain.ActionKind, params map[string]any) *NodeBuilder {
	nb := b.Add(id, domain.KindAction)
	nb.node.Action = &domain.ActionSpec{Kind: kind, Params: params}
	return nb
}

func (b *Builder) connect(source, handle, target string) {
	b.conns++
	b.scenario.Connections = append(b.scenario.Connections, domain.Connection{
		ID:           fmt.Sprintf("c%d", b.conns),
		Source:       source,
		SourceHandle: handle,
		Target:       target,
	})
}

// Scenario assembles the scenario without validating it.
func (b *Builder) Scenario() *domain.Scenario {
	sc := b.scenario
	sc.Nodes = make([]domain.Node, 0, len(b.order))
	for _, id := range b.order {
		sc.Nodes = append(sc.Nodes, b.nodes[id].node)
	}
	return sc.Clone()
}

// Build assembles the scenario and rejects it if validation finds errors.
// Warnings are returned alongside a valid scenario.
func (b *Builder) Build() (*domain.Scenario, []domain.ValidationError, error) {
	sc := b.Scenario()
	findings := validator.Validate(sc)
	if validator.HasErrors(findings) {
		msgs := make([]string, 0, len(findings))
		for _, f := range validator.Errors(findings, domain.SeverityError) {
			msgs = append(msgs, f.Error())
		}
		return nil, findings, fmt.Errorf("%w: %s", domain.ErrInvalidScenario, strings.Join(msgs, "; "))
	}
	return sc, findings, nil
}
