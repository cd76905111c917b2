// Package importer converts legacy flow-chart exports into scenarios.
//
// The export is a flat list of cells: one start cell, response cells carrying
// text and replies, joint cells that route a reply to another response by its
// label, and mail/handover marker cells. Import walks the cells from the start
// with an explicit work-list. The first reference to a cell materializes it as
// a tree child of the referencing node; later references become jump branches
// on its name, so the imported graph never contains an anonymous cycle.
package importer

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/concierge/internal/markup"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/google/uuid"
)

// ErrNoStartCell is returned when an export has no start cell.
var ErrNoStartCell = errors.New("legacy export has no start cell")

// Warning codes.
const (
	WarnUnresolvedLink = "UnresolvedLink"
	WarnUnwiredReply   = "UnwiredReply"
	WarnAmbiguousLabel = "AmbiguousLabel"
	WarnDepthLimit     = "DepthLimit"
	WarnUnknownCell    = "UnknownCell"
	WarnSkippedCell    = "SkippedCell"
	WarnUnreachable    = "UnreachableCell"
	WarnExtraStart     = "ExtraStartCell"
	WarnJointFallback  = "JointFallback"
)

// Warning is a non-fatal import finding tied to a cell.
type Warning struct {
	CellID  string `json:"cell_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Report summarizes an import.
type Report struct {
	Nodes    int       `json:"nodes"`
	Branches int       `json:"branches"`
	Jumps    int       `json:"jumps"`
	Restarts int       `json:"restarts"`
	Warnings []Warning `json:"warnings,omitempty"`
}

func (r *Report) warn(cellID, code, format string, args ...any) {
	r.Warnings = append(r.Warnings, Warning{CellID: cellID, Code: code, Message: fmt.Sprintf(format, args...)})
}

type targetKind int

const (
	targetNone targetKind = iota
	targetCell
	targetURL
	targetRestart
)

type target struct {
	kind   targetKind
	cellID string
	url    string
}

type workItem struct {
	cellID string
	depth  int
}

type importer struct {
	o      *options
	ns     uuid.UUID
	sc     *domain.Scenario
	report *Report

	start     *Cell
	responses map[string]*Cell
	markers   map[string]*Cell
	joints    map[string]*Cell
	byName    map[string][]string

	nodeOf    map[string]int // cell ID -> index in sc.Nodes
	usedNames map[string]bool
	queue     []workItem
}

// Import builds a scenario from a decoded legacy export. It fails only when
// the export has no start cell; unresolvable references degrade to unwired
// branches reported as warnings.
func Import(name, description string, doc *Document, opts ...Option) (*domain.Scenario, *Report, error) {
	o := newOptions(opts)
	if o.scenarioID == "" {
		o.scenarioID = uuid.NewString()
	}

	im := &importer{
		o:         o,
		ns:        uuid.NewSHA1(uuid.NameSpaceURL, []byte("concierge:scenario:"+o.scenarioID)),
		report:    &Report{},
		responses: make(map[string]*Cell),
		markers:   make(map[string]*Cell),
		joints:    make(map[string]*Cell),
		byName:    make(map[string][]string),
		nodeOf:    make(map[string]int),
		usedNames: make(map[string]bool),
		sc: &domain.Scenario{
			ID:          o.scenarioID,
			Name:        name,
			Description: description,
		},
	}

	if err := im.index(doc); err != nil {
		return nil, nil, err
	}
	im.materialize()
	im.finish()

	o.logger.Debug("legacy import finished",
		"scenario_id", im.sc.ID,
		"nodes", im.report.Nodes,
		"branches", im.report.Branches,
		"warnings", len(im.report.Warnings),
	)
	return im.sc, im.report, nil
}

func (im *importer) index(doc *Document) error {
	for _, s := range doc.Skipped {
		im.report.warn(s.ID, WarnSkippedCell, "cell #%d skipped: %s", s.Index, s.Reason)
	}

	for i := range doc.Cells {
		c := &doc.Cells[i]
		switch c.Type {
		case CellStart:
			if im.start != nil {
				im.report.warn(c.ID, WarnExtraStart, "only the first start cell is used")
				continue
			}
			im.start = c
		case CellResponse:
			im.responses[c.ID] = c
			if label := strings.TrimSpace(c.Name); label != "" {
				im.byName[label] = append(im.byName[label], c.ID)
			}
		case CellJoint:
			im.joints[c.ID] = c
		case CellMail, CellHandover:
			im.markers[c.ID] = c
		default:
			im.report.warn(c.ID, WarnUnknownCell, "unknown cell type %q", c.Type)
		}
	}

	if im.start == nil {
		return ErrNoStartCell
	}
	return nil
}

func (im *importer) nodeID(cellID string) string {
	return uuid.NewSHA1(im.ns, []byte("node:"+cellID)).String()
}

func (im *importer) branchID(cellID, key string) string {
	return uuid.NewSHA1(im.ns, []byte("branch:"+cellID+":"+key)).String()
}

func (im *importer) materialize() {
	startIdx := len(im.sc.Nodes)
	im.sc.Nodes = append(im.sc.Nodes, domain.Node{
		ID:         im.nodeID(im.start.ID),
		ExternalID: im.start.ID,
		Kind:       domain.KindStart,
		Position:   domain.Position{X: im.start.Position.X, Y: im.start.Position.Y},
	})
	im.nodeOf[im.start.ID] = startIdx

	t := im.resolve(im.start.ID, im.start.NextNode)
	if t.kind == targetCell {
		im.attach(startIdx, "", t.cellID, 0)
	} else {
		im.report.warn(im.start.ID, WarnUnresolvedLink, "start cell leads to no response (%q)", im.start.NextNode)
	}

	for len(im.queue) > 0 {
		item := im.queue[0]
		im.queue = im.queue[1:]
		im.expand(item)
	}
}

// attach links cellID below the node at parentIdx. The first reference creates
// the node as a tree child; a later one returns the existing node's name for a jump.
func (im *importer) attach(parentIdx int, handle, cellID string, depth int) (jumpName string, isJump, ok bool) {
	if idx, seen := im.nodeOf[cellID]; seen {
		return im.ensureName(idx), true, true
	}
	if im.o.depthLimit > 0 && depth > im.o.depthLimit {
		im.report.warn(cellID, WarnDepthLimit, "cell is deeper than the legacy limit of %d", im.o.depthLimit)
		return "", false, false
	}

	node := im.newNode(cellID)
	node.ParentID = im.sc.Nodes[parentIdx].ID
	node.ParentBranchID = handle

	im.nodeOf[cellID] = len(im.sc.Nodes)
	im.sc.Nodes = append(im.sc.Nodes, node)
	im.queue = append(im.queue, workItem{cellID: cellID, depth: depth})
	return "", false, true
}

func (im *importer) newNode(cellID string) domain.Node {
	if c, ok := im.markers[cellID]; ok {
		n := domain.Node{
			ID:         im.nodeID(cellID),
			ExternalID: cellID,
			Kind:       domain.KindAction,
			Position:   domain.Position{X: c.Position.X, Y: c.Position.Y},
		}
		if c.Type == CellMail {
			n.Action = &domain.ActionSpec{
				Kind:   domain.ActionSendEmail,
				Params: map[string]any{"to": c.To, "subject": c.Subject},
			}
		} else {
			n.Action = &domain.ActionSpec{Kind: domain.ActionTransferHuman}
		}
		return n
	}

	c := im.responses[cellID]
	n := domain.Node{
		ID:         im.nodeID(cellID),
		ExternalID: cellID,
		Kind:       domain.KindMessage,
		Position:   domain.Position{X: c.Position.X, Y: c.Position.Y},
		Responses:  responses(c),
	}
	if len(c.Replies) > 0 {
		n.Kind = domain.KindQuestion
	}
	if label := strings.TrimSpace(c.Name); label != "" {
		n.Settings = &domain.NodeSettings{NodeName: im.uniqueName(label, cellID)}
	}
	return n
}

func responses(c *Cell) []domain.Response {
	var out []domain.Response
	for _, fragment := range c.Fragments() {
		for _, seg := range markup.Split(fragment) {
			if seg.Kind == markup.SegmentImage {
				out = append(out, domain.Response{Type: domain.ResponseImage, URL: seg.Text})
			} else {
				out = append(out, domain.Response{Type: domain.ResponseText, Text: seg.Text})
			}
		}
	}
	return out
}

func (im *importer) uniqueName(label, cellID string) string {
	name := label
	if im.usedNames[name] {
		name = fmt.Sprintf("%s (%s)", label, cellID)
	}
	im.usedNames[name] = true
	return name
}

// ensureName gives the node a name so jump branches can reach it.
func (im *importer) ensureName(idx int) string {
	n := &im.sc.Nodes[idx]
	if name := n.Name(); name != "" {
		return name
	}
	if n.Settings == nil {
		n.Settings = &domain.NodeSettings{}
	}
	n.Settings.NodeName = im.uniqueName(fmt.Sprintf("%s-%s", n.Kind, n.ExternalID), n.ExternalID)
	return n.Settings.NodeName
}

func (im *importer) expand(item workItem) {
	idx := im.nodeOf[item.cellID]
	c, isResponse := im.responses[item.cellID]
	if !isResponse {
		c = im.markers[item.cellID]
	}

	var branches []domain.Branch
	for i, reply := range c.Replies {
		key := reply.ID
		if key == "" {
			key = strconv.Itoa(i)
		}
		b := domain.Branch{
			ID:    im.branchID(c.ID, key),
			Label: markup.Text(reply.Value),
			Kind:  domain.BranchButton,
		}

		t := im.resolve(c.ID, reply.NextNode)
		if strings.EqualFold(b.Label, im.o.restartPhrase) {
			t = target{kind: targetRestart}
		}

		switch t.kind {
		case targetRestart:
			b.Kind = domain.BranchRestart
			im.report.Restarts++
		case targetURL:
			b.Kind = domain.BranchLink
			b.URL = t.url
			b.NewWindow = true
		case targetCell:
			if name, isJump, _ := im.attach(idx, b.ID, t.cellID, item.depth+1); isJump {
				b.Kind = domain.BranchJump
				b.TargetNodeName = name
				im.report.Jumps++
			}
		default:
			if reply.NextNode == "" {
				im.report.warn(c.ID, WarnUnwiredReply, "reply %q leads nowhere", b.Label)
			} else {
				im.report.warn(c.ID, WarnUnresolvedLink, "reply %q points to unknown target %q", b.Label, reply.NextNode)
			}
		}
		branches = append(branches, b)
	}

	if len(c.Replies) == 0 && c.NextNode != "" {
		t := im.resolve(c.ID, c.NextNode)
		switch t.kind {
		case targetCell:
			name, isJump, _ := im.attach(idx, "", t.cellID, item.depth+1)
			if isJump {
				// A default edge back into the graph would close an anonymous
				// cycle, so the node continues through an unlabelled jump.
				branches = append(branches, domain.Branch{
					ID:             im.branchID(c.ID, "next"),
					Kind:           domain.BranchJump,
					TargetNodeName: name,
				})
				im.report.Jumps++
			}
		case targetRestart:
			branches = append(branches, domain.Branch{
				ID:   im.branchID(c.ID, "next"),
				Kind: domain.BranchRestart,
			})
			im.report.Restarts++
		default:
			im.report.warn(c.ID, WarnUnresolvedLink, "next node %q cannot be resolved", c.NextNode)
		}
	}

	im.sc.Nodes[idx].Branches = branches
}

// resolve maps a reference found on cell `from` to a target.
func (im *importer) resolve(from, ref string) target {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return target{}
	}

	if j, ok := im.joints[ref]; ok {
		return im.resolveJoint(from, j)
	}
	if _, ok := im.responses[ref]; ok {
		return target{kind: targetCell, cellID: ref}
	}
	if _, ok := im.markers[ref]; ok {
		return target{kind: targetCell, cellID: ref}
	}
	if ref == im.start.ID || strings.EqualFold(ref, im.o.startSentinel) {
		return target{kind: targetRestart}
	}
	return target{}
}

func (im *importer) resolveJoint(from string, j *Cell) target {
	if j.Condition.Type == JointURL {
		if u := strings.TrimSpace(j.Condition.Value); u != "" {
			return target{kind: targetURL, url: u}
		}
		return target{}
	}

	link := strings.TrimSpace(j.Condition.Link)
	if link == "" {
		link = strings.TrimSpace(j.Condition.Value)
	}
	if strings.EqualFold(link, im.o.startSentinel) {
		return target{kind: targetRestart}
	}

	switch ids := im.byName[link]; len(ids) {
	case 0:
	case 1:
		return target{kind: targetCell, cellID: ids[0]}
	default:
		im.report.warn(from, WarnAmbiguousLabel, "joint %q label %q matches %d responses, using the first", j.ID, link, len(ids))
		return target{kind: targetCell, cellID: ids[0]}
	}

	// Some exports carry the response id instead of its label.
	if _, ok := im.responses[link]; ok {
		return target{kind: targetCell, cellID: link}
	}
	if j.NextNode != "" && j.NextNode != j.ID {
		if _, isJoint := im.joints[j.NextNode]; !isJoint {
			t := im.resolve(from, j.NextNode)
			if t.kind != targetNone {
				im.report.warn(from, WarnJointFallback, "joint %q label %q matches no response, following its next node %q", j.ID, link, j.NextNode)
			}
			return t
		}
	}
	return target{}
}

func (im *importer) finish() {
	var unreached []string
	for id := range im.responses {
		if _, ok := im.nodeOf[id]; !ok {
			unreached = append(unreached, id)
		}
	}
	sort.Strings(unreached)
	for _, id := range unreached {
		if im.o.depthLimit > 0 {
			continue
		}
		im.report.warn(id, WarnUnreachable, "response %q is not reachable from the start cell", im.responses[id].Name)
	}

	im.report.Nodes = len(im.sc.Nodes)
	for _, n := range im.sc.Nodes {
		im.report.Branches += len(n.Branches)
	}
}
