package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/concierge/internal/compiler"
	"github.com/aretw0/concierge/internal/runtime"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEvaluator(t *testing.T) {
	vars := map[string]string{"plan": "pro", "email": "a@b.c", "empty": ""}

	tests := []struct {
		expr string
		want bool
	}{
		{"true", true},
		{"false", false},
		{"plan == 'pro'", true},
		{`plan == "free"`, false},
		{"plan != 'free'", true},
		{"email", true},
		{"empty", false},
		{"!missing", true},
		{"email contains '@'", true},
		{"plan in 'free, pro'", true},
		{"plan in 'free,basic'", false},
		{"plan == 'pro' && email", true},
		{"plan == 'free' && email", false},
		{"plan == 'free' || email contains 'b.c'", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := runtime.DefaultEvaluator(context.Background(), tt.expr, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := runtime.DefaultEvaluator(context.Background(), "", vars)
	assert.Error(t, err)
	_, err = runtime.DefaultEvaluator(context.Background(), "plan > 3", vars)
	assert.Error(t, err)
}

func conditionScenario(branches []domain.Branch) *domain.Scenario {
	return &domain.Scenario{
		ID: "sc", Name: "cond",
		Nodes: []domain.Node{
			{ID: "start", Kind: domain.KindStart},
			{
				ID: "plan", Kind: domain.KindQuestion, ParentID: "start", Responses: text("Plan?"),
				Settings: &domain.NodeSettings{NodeName: "plan", RememberResponse: true},
			},
			{ID: "is-pro", Kind: domain.KindCondition, ParentID: "plan", Condition: "plan == 'pro'", Branches: branches},
			{ID: "pro", Kind: domain.KindEnd, Responses: text("Priority line")},
			{ID: "free", Kind: domain.KindEnd, Responses: text("Community forum"), Settings: &domain.NodeSettings{NodeName: "free"}},
		},
	}
}

func TestCondition_FirstBranchTrueSecondFalse(t *testing.T) {
	sc := conditionScenario([]domain.Branch{
		{ID: "yes", Kind: domain.BranchButton, NextNodeID: "pro"},
		{ID: "no", Kind: domain.BranchJump, TargetNodeName: "free"},
	})
	g := compiler.Compile(sc)
	e := newEngine()
	s := advance(t, e, g, domain.NewSession("s", "sc"), domain.Start()).Session

	res := advance(t, e, g, s, domain.FreeText("pro"))
	assert.Equal(t, "pro", res.Session.CurrentNodeID)
	assert.Equal(t, []string{"start", "plan", "is-pro", "pro"}, res.Session.History)

	res = advance(t, e, g, s, domain.FreeText("free"))
	assert.Equal(t, "free", res.Session.CurrentNodeID)
}

func TestCondition_WrongBranchCount(t *testing.T) {
	sc := conditionScenario([]domain.Branch{{ID: "yes", Kind: domain.BranchButton, NextNodeID: "pro"}})
	g := compiler.Compile(sc)
	e := newEngine()
	s := advance(t, e, g, domain.NewSession("s", "sc"), domain.Start()).Session

	res, err := e.Advance(context.Background(), g, s, domain.FreeText("pro"))
	assert.ErrorIs(t, err, domain.ErrAmbiguousCondition)
	assert.Equal(t, "plan", res.Session.CurrentNodeID)
	assert.Empty(t, res.Session.Memory, "a failed step leaves no trace but the diagnostic")
	assert.Len(t, res.Session.Diagnostics, 1)
}

func TestCondition_CustomEvaluatorError(t *testing.T) {
	sc := conditionScenario([]domain.Branch{
		{ID: "yes", Kind: domain.BranchButton, NextNodeID: "pro"},
		{ID: "no", Kind: domain.BranchButton, NextNodeID: "free"},
	})
	g := compiler.Compile(sc)
	failing := func(context.Context, string, map[string]string) (bool, error) {
		return false, errors.New("boom")
	}
	e := runtime.NewEngine(failing, nil)
	s := advance(t, e, g, domain.NewSession("s", "sc"), domain.Start()).Session

	_, err := e.Advance(context.Background(), g, s, domain.FreeText("pro"))
	assert.ErrorIs(t, err, domain.ErrConditionFailed)
}
