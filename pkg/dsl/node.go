package dsl

import "github.com/aretw0/concierge/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

func (n *NodeBuilder) settings() *domain.NodeSettings {
	if n.node.Settings == nil {
		n.node.Settings = &domain.NodeSettings{}
	}
	return n.node.Settings
}

// Say appends a text response.
func (n *NodeBuilder) Say(text string) *NodeBuilder {
	n.node.Responses = append(n.node.Responses, domain.Response{Type: domain.ResponseText, Text: text})
	return n
}

// Image appends an image response.
func (n *NodeBuilder) Image(url string) *NodeBuilder {
	n.node.Responses = append(n.node.Responses, domain.Response{Type: domain.ResponseImage, URL: url})
	return n
}

// Named gives the node a name that jumps can target.
func (n *NodeBuilder) Named(name string) *NodeBuilder {
	n.settings().NodeName = name
	return n
}

// Remember stores free-text answers given on this node.
func (n *NodeBuilder) Remember() *NodeBuilder {
	n.settings().RememberResponse = true
	return n
}

// Conversion marks the node as a conversion point.
func (n *NodeBuilder) Conversion() *NodeBuilder {
	n.settings().IsConversionPoint = true
	return n
}

// Trigger makes typing text jump straight to this node from anywhere.
func (n *NodeBuilder) Trigger(text string) *NodeBuilder {
	s := n.settings()
	s.DirectTransition = true
	s.DirectTransitionText = text
	return n
}

// FreeInput sets the node's free input mode.
func (n *NodeBuilder) FreeInput(mode domain.FreeInputMode) *NodeBuilder {
	n.settings().FreeInputMode = mode
	return n
}

// When sets the expression of a condition node.
func (n *NodeBuilder) When(expr string) *NodeBuilder {
	n.node.Condition = expr
	return n
}

// Go adds the default outgoing edge.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.builder.connect(n.node.ID, "", target)
	return n
}

// Button adds a button branch leading to target.
func (n *NodeBuilder) Button(id, label, target string) *NodeBuilder {
	return n.branch(domain.Branch{ID: id, Label: label, Kind: domain.BranchButton, NextNodeID: target})
}

// Link adds a branch that opens url.
func (n *NodeBuilder) Link(id, label, url string, newWindow bool) *NodeBuilder {
	return n.branch(domain.Branch{ID: id, Label: label, Kind: domain.BranchLink, URL: url, NewWindow: newWindow})
}

// Jump adds a branch that continues at the node named name.
func (n *NodeBuilder) Jump(id, label, name string) *NodeBuilder {
	return n.branch(domain.Branch{ID: id, Label: label, Kind: domain.BranchJump, TargetNodeName: name})
}

// FreeText adds the branch followed by typed answers.
func (n *NodeBuilder) FreeText(id, target string) *NodeBuilder {
	return n.branch(domain.Branch{ID: id, Kind: domain.BranchFreeText, NextNodeID: target})
}

// Restart adds a branch that restarts the conversation.
func (n *NodeBuilder) Restart(id, label string) *NodeBuilder {
	return n.branch(domain.Branch{ID: id, Label: label, Kind: domain.BranchRestart})
}

// Then sets the branch taken when the condition holds. Call it before Else.
func (n *NodeBuilder) Then(target string) *NodeBuilder {
	return n.Button(n.node.ID+"-then", "then", target)
}

// Else sets the branch taken when the condition does not hold.
func (n *NodeBuilder) Else(target string) *NodeBuilder {
	return n.Button(n.node.ID+"-else", "else", target)
}

func (n *NodeBuilder) branch(b domain.Branch) *NodeBuilder {
	n.node.Branches = append(n.node.Branches, b)
	return n
}

// Node returns a copy of the node built so far.
func (n *NodeBuilder) Node() domain.Node {
	return n.node.Clone()
}
