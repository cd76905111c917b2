package importer

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/aretw0/concierge/internal/compiler"
	"github.com/aretw0/concierge/internal/runtime"
	"github.com/aretw0/concierge/internal/validator"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T) *Document {
	t.Helper()
	f, err := os.Open("testdata/legacy_export.json")
	require.NoError(t, err)
	defer f.Close()

	doc, err := Decode(f)
	require.NoError(t, err)
	return doc
}

func byExternal(sc *domain.Scenario, cellID string) *domain.Node {
	for i := range sc.Nodes {
		if sc.Nodes[i].ExternalID == cellID {
			return &sc.Nodes[i]
		}
	}
	return nil
}

func branchByLabel(n *domain.Node, label string) *domain.Branch {
	for i := range n.Branches {
		if n.Branches[i].Label == label {
			return &n.Branches[i]
		}
	}
	return nil
}

func warningCodes(r *Report) []string {
	var out []string
	for _, w := range r.Warnings {
		out = append(out, w.Code)
	}
	return out
}

func TestDecode_Lenient(t *testing.T) {
	doc := loadFixture(t)

	assert.Len(t, doc.Cells, 13)
	require.Len(t, doc.Skipped, 1)
	assert.Equal(t, "cell has no id", doc.Skipped[0].Reason)

	welcome := doc.Cells[1]
	assert.Equal(t, 120.0, welcome.Position.X, "numeric strings are accepted")
	assert.Len(t, welcome.Replies, 4)
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := Decode(strings.NewReader("{not json"))
	assert.Error(t, err)
}

func TestImport_BuildsScenario(t *testing.T) {
	sc, report, err := Import("support", "imported", loadFixture(t), WithScenarioID("sc-1"))
	require.NoError(t, err)

	assert.Equal(t, "sc-1", sc.ID)
	assert.Equal(t, "support", sc.Name)
	assert.Equal(t, 6, report.Nodes)
	assert.Equal(t, 2, report.Jumps)
	assert.Equal(t, 2, report.Restarts)

	start := byExternal(sc, "c-start")
	require.NotNil(t, start)
	assert.Equal(t, domain.KindStart, start.Kind)

	welcome := byExternal(sc, "c-welcome")
	require.NotNil(t, welcome)
	assert.Equal(t, domain.KindQuestion, welcome.Kind)
	assert.Equal(t, start.ID, welcome.ParentID)
	assert.Equal(t, "Welcome", welcome.Name())
	assert.Equal(t, 120.0, welcome.Position.X)
	assert.Equal(t, []domain.Response{
		{Type: domain.ResponseText, Text: "Hello!\nHow can we help you?"},
		{Type: domain.ResponseImage, URL: "https://cdn.example.com/logo.png"},
	}, welcome.Responses)
}

func TestImport_ResolvesJointLabels(t *testing.T) {
	sc, _, err := Import("support", "", loadFixture(t))
	require.NoError(t, err)

	welcome := byExternal(sc, "c-welcome")
	billing := byExternal(sc, "c-billing")
	require.NotNil(t, billing)

	b := branchByLabel(welcome, "Billing")
	require.NotNil(t, b)
	assert.Equal(t, domain.BranchButton, b.Kind)
	assert.Equal(t, welcome.ID, billing.ParentID)
	assert.Equal(t, b.ID, billing.ParentBranchID)
	assert.Equal(t, "Invoices are sent monthly.", billing.Responses[0].Text)

	docs := branchByLabel(welcome, "Docs")
	require.NotNil(t, docs)
	assert.Equal(t, domain.BranchLink, docs.Kind)
	assert.Equal(t, "https://example.com/docs", docs.URL)
}

func TestImport_RevisitsBecomeJumps(t *testing.T) {
	sc, _, err := Import("support", "", loadFixture(t))
	require.NoError(t, err)

	back := branchByLabel(byExternal(sc, "c-billing"), "Back")
	require.NotNil(t, back)
	assert.Equal(t, domain.BranchJump, back.Kind)
	assert.Equal(t, "Welcome", back.TargetNodeName)

	thanks := byExternal(sc, "c-thanks")
	require.NotNil(t, thanks)
	require.Len(t, thanks.Branches, 1)
	assert.Equal(t, domain.BranchJump, thanks.Branches[0].Kind)
	assert.Equal(t, "Welcome", thanks.Branches[0].TargetNodeName)

	findings := validator.Validate(sc)
	assert.False(t, validator.HasErrors(findings), "imported scenario must be savable: %v", findings)
	for _, f := range findings {
		assert.NotEqual(t, domain.CodeAnonymousCycle, f.Code)
	}
}

func TestImport_RestartBranches(t *testing.T) {
	sc, _, err := Import("support", "", loadFixture(t))
	require.NoError(t, err)

	billing := byExternal(sc, "c-billing")
	assert.Equal(t, domain.BranchRestart, branchByLabel(billing, "restart").Kind, "restart phrase")
	assert.Equal(t, domain.BranchRestart, branchByLabel(billing, "Home").Kind, "start sentinel")

	sc, _, err = Import("support", "", loadFixture(t), WithRestartPhrase("start over"))
	require.NoError(t, err)
	assert.Equal(t, domain.BranchButton, branchByLabel(byExternal(sc, "c-billing"), "restart").Kind)
}

func TestImport_MarkersBecomeActions(t *testing.T) {
	sc, _, err := Import("support", "", loadFixture(t))
	require.NoError(t, err)

	handover := byExternal(sc, "m-handover")
	require.NotNil(t, handover)
	assert.Equal(t, domain.KindAction, handover.Kind)
	assert.Equal(t, domain.ActionTransferHuman, handover.Action.Kind)

	mail := byExternal(sc, "m-mail")
	require.NotNil(t, mail)
	assert.Equal(t, domain.ActionSendEmail, mail.Action.Kind)
	assert.Equal(t, "billing@example.com", mail.Action.Params["to"])

	thanks := byExternal(sc, "c-thanks")
	assert.Equal(t, mail.ID, thanks.ParentID)
	assert.Empty(t, thanks.ParentBranchID)
}

func TestImport_UnresolvedLinkDegradesBranch(t *testing.T) {
	sc, report, err := Import("support", "", loadFixture(t))
	require.NoError(t, err)

	lost := branchByLabel(byExternal(sc, "c-welcome"), "Lost")
	require.NotNil(t, lost)
	assert.Equal(t, domain.BranchButton, lost.Kind)
	assert.Empty(t, lost.NextNodeID)

	assert.ElementsMatch(t,
		[]string{WarnSkippedCell, WarnUnknownCell, WarnUnresolvedLink, WarnUnreachable},
		warningCodes(report))

	findings := validator.Validate(sc)
	var unwired int
	for _, f := range findings {
		if f.Code == domain.CodeUnwiredBranch {
			unwired++
			assert.Equal(t, lost.ID, f.BranchID)
		}
	}
	assert.Equal(t, 1, unwired)
}

func TestImport_DeepChainsAreNotTruncated(t *testing.T) {
	doc := &Document{Cells: []Cell{{ID: "s", Type: CellStart, NextNode: "r0"}}}
	const depth = 12
	for i := 0; i < depth; i++ {
		c := Cell{ID: cellName(i), Type: CellResponse, Name: cellName(i), Text: "step"}
		if i < depth-1 {
			c.Replies = []Reply{{ID: "next", Value: "Next", NextNode: cellName(i + 1)}}
		}
		doc.Cells = append(doc.Cells, c)
	}

	sc, report, err := Import("deep", "", doc)
	require.NoError(t, err)
	assert.Len(t, sc.Nodes, depth+1)
	assert.Empty(t, report.Warnings)

	sc, report, err = Import("deep", "", doc, WithLegacyDepthLimit(LegacyDepthLimit))
	require.NoError(t, err)
	assert.Len(t, sc.Nodes, 1+LegacyDepthLimit+1, "start, first response, children and grandchildren")
	assert.Contains(t, warningCodes(report), WarnDepthLimit)
}

func cellName(i int) string {
	return "r" + string(rune('a'+i))
}

func TestImport_IdempotentOnSameScenario(t *testing.T) {
	first, _, err := Import("support", "", loadFixture(t), WithScenarioID("sc-fixed"))
	require.NoError(t, err)
	second, _, err := Import("support", "", loadFixture(t), WithScenarioID("sc-fixed"))
	require.NoError(t, err)

	assert.Equal(t, first.Nodes, second.Nodes)

	seen := map[string]bool{}
	for _, n := range second.Nodes {
		assert.False(t, seen[n.ExternalID], "external id %s imported twice", n.ExternalID)
		seen[n.ExternalID] = true
	}

	other, _, err := Import("support", "", loadFixture(t), WithScenarioID("sc-other"))
	require.NoError(t, err)
	assert.NotEqual(t, first.Nodes[0].ID, other.Nodes[0].ID)
}

func TestImport_NoStartCell(t *testing.T) {
	_, _, err := Import("x", "", &Document{Cells: []Cell{{ID: "r", Type: CellResponse}}})
	assert.ErrorIs(t, err, ErrNoStartCell)
}

func TestImport_TraversesEndToEnd(t *testing.T) {
	sc, _, err := Import("support", "", loadFixture(t))
	require.NoError(t, err)
	g := compiler.Compile(sc)

	start, err := g.Start()
	require.NoError(t, err)
	next, err := g.Next(start)
	require.NoError(t, err)
	assert.Equal(t, byExternal(sc, "c-welcome").ID, next)
}

func advance(t *testing.T, g *compiler.Graph, s *domain.Session, ev domain.Event) *runtime.Result {
	t.Helper()
	res, err := runtime.NewEngine(nil, nil).Advance(context.Background(), g, s, ev)
	require.NoError(t, err)
	return res
}

func TestImport_MarkerLoopingBackContinues(t *testing.T) {
	doc := &Document{Cells: []Cell{
		{ID: "s", Type: CellStart, NextNode: "w"},
		{ID: "w", Type: CellResponse, Name: "Welcome", Text: "Hi there",
			Replies: []Reply{{ID: "mail", Value: "Mail me", NextNode: "m"}}},
		{ID: "j", Type: CellJoint, Condition: JointCondition{Type: JointLink, Link: "Welcome"}},
		{ID: "m", Type: CellMail, To: "help@example.com", NextNode: "j"},
	}}
	sc, _, err := Import("mail", "", doc)
	require.NoError(t, err)
	require.False(t, validator.HasErrors(validator.Validate(sc)))

	mail := byExternal(sc, "m")
	require.Len(t, mail.Branches, 1)
	assert.True(t, mail.Branches[0].IsContinuation())

	g := compiler.Compile(sc)
	s := advance(t, g, domain.NewSession("v1", sc.ID), domain.Start()).Session
	res := advance(t, g, s, domain.SelectBranch(byExternal(sc, "w").Branches[0].ID))

	assert.Equal(t, byExternal(sc, "w").ID, res.Session.CurrentNodeID, "the action does not hold the visitor")
	assert.Equal(t, runtime.OutcomeMoved, res.Outcome)
	require.Len(t, res.Rendered, 1)
	assert.Equal(t, "Hi there", res.Rendered[0].Responses[0].Text)

	var actions int
	for _, fx := range res.SideEffects {
		if fx.Kind == domain.EffectAction {
			actions++
			assert.Equal(t, domain.ActionSendEmail, fx.Action)
		}
	}
	assert.Equal(t, 1, actions)
}

func TestImport_MessageNextContinuesWithoutButton(t *testing.T) {
	sc, _, err := Import("support", "", loadFixture(t))
	require.NoError(t, err)
	g := compiler.Compile(sc)

	billing := byExternal(sc, "c-billing")
	s := domain.NewSession("v1", sc.ID)
	s.Visit(billing.ID)

	res := advance(t, g, s, domain.SelectBranch(branchByLabel(billing, "Email me").ID))

	assert.Equal(t, byExternal(sc, "c-welcome").ID, res.Session.CurrentNodeID)
	require.Len(t, res.Rendered, 2, "thanks then welcome")
	assert.Equal(t, "We will email you shortly.", res.Rendered[0].Responses[0].Text)
	assert.Empty(t, res.Rendered[0].Branches, "the continuation is not offered as a button")
}

func TestImport_JointFallbackIsReported(t *testing.T) {
	doc := &Document{Cells: []Cell{
		{ID: "s", Type: CellStart, NextNode: "w"},
		{ID: "w", Type: CellResponse, Name: "Welcome",
			Replies: []Reply{{ID: "go", Value: "Go", NextNode: "j"}}},
		{ID: "j", Type: CellJoint, NextNode: "f", Condition: JointCondition{Type: JointLink, Link: "Renamed"}},
		{ID: "f", Type: CellResponse, Name: "FAQ", Text: "Answers"},
	}}

	sc, report, err := Import("faq", "", doc)
	require.NoError(t, err)
	assert.Equal(t, byExternal(sc, "w").ID, byExternal(sc, "f").ParentID)
	assert.Contains(t, warningCodes(report), WarnJointFallback)
}
