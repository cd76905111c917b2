package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/concierge/internal/compiler"
	"github.com/aretw0/concierge/pkg/domain"
	playground "github.com/go-playground/validator/v10"
)

var structValidator *playground.Validate

func init() {
	structValidator = playground.New()

	// Report fields by their JSON names, as the editor knows them.
	structValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

var (
	nodeIndexRe   = regexp.MustCompile(`nodes\[(\d+)\]`)
	branchIndexRe = regexp.MustCompile(`branches\[(\d+)\]`)
)

// Validate checks a scenario and returns every finding, errors first.
// A scenario is savable when HasErrors reports false.
func Validate(sc *domain.Scenario) []domain.ValidationError {
	var out []domain.ValidationError
	out = append(out, checkFields(sc)...)

	g := compiler.Compile(sc)
	out = append(out, checkIdentity(sc)...)
	out = append(out, checkStart(g)...)
	out = append(out, checkEdges(sc, g)...)
	out = append(out, checkBranches(g)...)
	out = append(out, checkDefaultEdges(g)...)
	out = append(out, checkCycles(g)...)
	out = append(out, checkReachability(g)...)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity == domain.SeverityError && out[j].Severity != domain.SeverityError
	})
	return out
}

// HasErrors reports whether any finding has error severity.
func HasErrors(findings []domain.ValidationError) bool {
	for _, f := range findings {
		if f.Severity == domain.SeverityError {
			return true
		}
	}
	return false
}

// Errors filters the findings down to the given severity.
func Errors(findings []domain.ValidationError, sev domain.Severity) []domain.ValidationError {
	var out []domain.ValidationError
	for _, f := range findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

func checkFields(sc *domain.Scenario) []domain.ValidationError {
	err := structValidator.Struct(sc)
	if err == nil {
		return nil
	}
	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []domain.ValidationError{{
			Code: domain.CodeInvalidField, Severity: domain.SeverityError, Message: err.Error(),
		}}
	}

	out := make([]domain.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		ns := fe.Namespace()
		ve := domain.ValidationError{
			Code:     domain.CodeInvalidField,
			Severity: domain.SeverityError,
			Message:  fmt.Sprintf("%s: %s", strings.TrimPrefix(ns, "Scenario."), describe(fe)),
		}
		if m := nodeIndexRe.FindStringSubmatch(ns); m != nil {
			if i, _ := strconv.Atoi(m[1]); i < len(sc.Nodes) {
				ve.NodeID = sc.Nodes[i].ID
				if b := branchIndexRe.FindStringSubmatch(ns); b != nil {
					if j, _ := strconv.Atoi(b[1]); j < len(sc.Nodes[i].Branches) {
						ve.BranchID = sc.Nodes[i].Branches[j].ID
					}
				}
			}
		}
		out = append(out, ve)
	}
	return out
}

func describe(fe playground.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "field is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed on '%s'", fe.Tag())
	}
}

func checkIdentity(sc *domain.Scenario) []domain.ValidationError {
	var out []domain.ValidationError
	ids := map[string]bool{}
	names := map[string]string{}
	triggers := map[string]string{}

	for _, n := range sc.Nodes {
		if n.ID != "" && ids[n.ID] {
			out = append(out, domain.ValidationError{
				Code: domain.CodeDuplicateNodeID, Severity: domain.SeverityError, NodeID: n.ID,
				Message: "node id is used more than once",
			})
		}
		ids[n.ID] = true

		if name := n.Name(); name != "" {
			if first, dup := names[name]; dup {
				out = append(out, domain.ValidationError{
					Code: domain.CodeDuplicateNodeName, Severity: domain.SeverityError, NodeID: n.ID,
					Message: fmt.Sprintf("node name %q is already used by node %q", name, first),
				})
			} else {
				names[name] = n.ID
			}
		}
		if text, ok := n.Trigger(); ok {
			if first, dup := triggers[text]; dup {
				out = append(out, domain.ValidationError{
					Code: domain.CodeDuplicateTrigger, Severity: domain.SeverityError, NodeID: n.ID,
					Message: fmt.Sprintf("direct transition text %q is already used by node %q", text, first),
				})
			} else {
				triggers[text] = n.ID
			}
		}
		if (n.Kind == domain.KindMessage || n.Kind == domain.KindQuestion) && len(n.Responses) == 0 {
			out = append(out, domain.ValidationError{
				Code: domain.CodeEmptyResponses, Severity: domain.SeverityWarning, NodeID: n.ID,
				Message: "node renders nothing",
			})
		}
	}
	return out
}

func checkStart(g *compiler.Graph) []domain.ValidationError {
	switch starts := g.Starts(); len(starts) {
	case 1:
		return nil
	case 0:
		return []domain.ValidationError{{
			Code: domain.CodeMissingStartNode, Severity: domain.SeverityError,
			Message: "scenario has no start node",
		}}
	default:
		return []domain.ValidationError{{
			Code: domain.CodeMultipleStartNodes, Severity: domain.SeverityError, NodeID: starts[1],
			Message: fmt.Sprintf("scenario has %d start nodes", len(starts)),
		}}
	}
}

func checkEdges(sc *domain.Scenario, g *compiler.Graph) []domain.ValidationError {
	var out []domain.ValidationError

	dangling := g.DanglingEdges()
	sources := make([]string, 0, len(dangling))
	for src := range dangling {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		for _, target := range dangling[src] {
			out = append(out, domain.ValidationError{
				Code: domain.CodeMissingTarget, Severity: domain.SeverityError, NodeID: src,
				Message: fmt.Sprintf("edge points to missing node %q", target),
			})
		}
	}

	for _, n := range sc.Nodes {
		if n.ParentID != "" {
			if _, ok := g.Node(n.ParentID); !ok {
				out = append(out, domain.ValidationError{
					Code: domain.CodeMissingTarget, Severity: domain.SeverityError, NodeID: n.ID,
					Message: fmt.Sprintf("parent node %q does not exist", n.ParentID),
				})
			}
		}
	}
	for _, c := range sc.Connections {
		if _, ok := g.Node(c.Source); !ok {
			out = append(out, domain.ValidationError{
				Code: domain.CodeMissingTarget, Severity: domain.SeverityError, NodeID: c.Source,
				Message: fmt.Sprintf("connection %q starts at a missing node", c.ID),
			})
		}
	}
	return out
}

func checkBranches(g *compiler.Graph) []domain.ValidationError {
	var out []domain.ValidationError
	for _, n := range g.Nodes() {
		if n.Kind == domain.KindCondition && len(n.Branches) != 2 {
			out = append(out, domain.ValidationError{
				Code: domain.CodeAmbiguousCondition, Severity: domain.SeverityError, NodeID: n.ID,
				Message: fmt.Sprintf("condition node has %d branches, want 2", len(n.Branches)),
			})
		}

		for _, b := range n.Branches {
			switch b.Kind {
			case domain.BranchJump:
				switch matches := g.ResolveName(b.TargetNodeName); len(matches) {
				case 0:
					out = append(out, domain.ValidationError{
						Code: domain.CodeDanglingJump, Severity: domain.SeverityError, NodeID: n.ID, BranchID: b.ID,
						Message: fmt.Sprintf("no node is named %q", b.TargetNodeName),
					})
				case 1:
				default:
					out = append(out, domain.ValidationError{
						Code: domain.CodeAmbiguousJump, Severity: domain.SeverityError, NodeID: n.ID, BranchID: b.ID,
						Message: fmt.Sprintf("%d nodes are named %q", len(matches), b.TargetNodeName),
					})
				}
			case domain.BranchButton:
				if len(g.Targets(n.ID, b.ID)) == 0 {
					out = append(out, domain.ValidationError{
						Code: domain.CodeUnwiredBranch, Severity: domain.SeverityWarning, NodeID: n.ID, BranchID: b.ID,
						Message: fmt.Sprintf("button %q leads nowhere", b.Label),
					})
				}
			}
		}
	}
	return out
}

// checkDefaultEdges catches nodes the engine passes through on its own but
// cannot leave: a start node needs exactly one default edge, and an action
// must continue somewhere unless it hands the visitor to a human.
func checkDefaultEdges(g *compiler.Graph) []domain.ValidationError {
	var out []domain.ValidationError
	for _, n := range g.Nodes() {
		switch {
		case n.Kind == domain.KindStart, n.Kind == domain.KindAction:
		case n.Kind == domain.KindMessage && len(n.Branches) == 0:
		default:
			continue
		}
		targets := g.Targets(n.ID, compiler.DefaultHandle)
		if len(targets) > 1 {
			out = append(out, domain.ValidationError{
				Code: domain.CodeAmbiguousEdge, Severity: domain.SeverityError, NodeID: n.ID,
				Message: fmt.Sprintf("%s node has %d default edges, want at most 1", n.Kind, len(targets)),
			})
			continue
		}
		if len(targets) == 1 {
			continue
		}

		switch n.Kind {
		case domain.KindStart:
			out = append(out, domain.ValidationError{
				Code: domain.CodeNoOutgoingEdge, Severity: domain.SeverityError, NodeID: n.ID,
				Message: "start node leads nowhere",
			})
		case domain.KindAction:
			if hasContinuation(n) || (n.Action != nil && n.Action.Kind == domain.ActionTransferHuman) {
				continue
			}
			sev := domain.SeverityError
			if len(n.Responses) > 0 {
				sev = domain.SeverityWarning
			}
			out = append(out, domain.ValidationError{
				Code: domain.CodeNoOutgoingEdge, Severity: sev, NodeID: n.ID,
				Message: "action node leads nowhere and would hold the visitor",
			})
		}
	}
	return out
}

func hasContinuation(n *domain.Node) bool {
	return len(n.Branches) == 1 && n.Branches[0].IsContinuation()
}

// checkCycles rejects loops built from anonymous edges. Loops through jump
// branches are allowed, since they re-enter a node by name.
func checkCycles(g *compiler.Graph) []domain.ValidationError {
	const (
		white = iota
		grey
		black
	)
	color := map[string]int{}
	var out []domain.ValidationError

	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		for _, next := range g.Successors(id) {
			if _, ok := g.Node(next); !ok {
				continue
			}
			switch color[next] {
			case white:
				visit(next)
			case grey:
				out = append(out, domain.ValidationError{
					Code: domain.CodeAnonymousCycle, Severity: domain.SeverityError, NodeID: id,
					Message: fmt.Sprintf("edge to %q closes a cycle; use a jump branch instead", next),
				})
			}
		}
		color[id] = black
	}

	for _, n := range g.Nodes() {
		if color[n.ID] == white {
			visit(n.ID)
		}
	}
	return out
}

func checkReachability(g *compiler.Graph) []domain.ValidationError {
	if len(g.Starts()) == 0 {
		return nil
	}

	visited := make(map[string]bool)
	queue := append([]string(nil), g.Starts()...)
	for _, n := range g.Nodes() {
		if _, ok := n.Trigger(); ok {
			queue = append(queue, n.ID)
		}
	}

	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]

		if visited[currentID] {
			continue
		}
		visited[currentID] = true

		n, ok := g.Node(currentID)
		if !ok {
			continue
		}
		next := g.Successors(currentID)
		for _, b := range n.Branches {
			if b.Kind == domain.BranchJump {
				next = append(next, g.ResolveName(b.TargetNodeName)...)
			}
		}
		for _, target := range next {
			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}

	var out []domain.ValidationError
	for _, n := range g.Nodes() {
		if !visited[n.ID] {
			out = append(out, domain.ValidationError{
				Code: domain.CodeUnreachable, Severity: domain.SeverityWarning, NodeID: n.ID,
				Message: "no start node reaches this node",
			})
		}
	}
	return out
}
