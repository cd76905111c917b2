package runtime

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/concierge/pkg/domain"
)

// Interpolator fills placeholders in response text from session variables.
type Interpolator func(ctx context.Context, text string, vars map[string]string) (string, error)

var placeholderRe = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// DefaultInterpolator replaces {{key}} with the remembered answer stored under key.
// Unknown keys render as an empty string.
func DefaultInterpolator(_ context.Context, text string, vars map[string]string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		key := placeholderRe.FindStringSubmatch(m)[1]
		return vars[key]
	}), nil
}

// variables exposes memory under both node IDs and node names.
func (e *Engine) variables(p *pass) map[string]string {
	vars := make(map[string]string, len(p.session.Memory)*2)
	for id, v := range p.session.Memory {
		vars[id] = v
		if n, ok := p.g.Node(id); ok && n.Name() != "" {
			vars[n.Name()] = v
		}
	}
	return vars
}

// render appends the interpolated content of n to the result.
func (e *Engine) render(ctx context.Context, p *pass, n *domain.Node) error {
	vars := e.variables(p)

	out := RenderedNode{
		NodeID:    n.ID,
		Kind:      n.Kind,
		Responses: make([]domain.Response, 0, len(n.Responses)),
		FreeInput: p.g.Scenario.EffectiveFreeInput(n) != domain.FreeInputDisabled,
	}
	for _, r := range n.Responses {
		if r.Type == domain.ResponseText {
			text, err := e.interpolator(ctx, r.Text, vars)
			if err != nil {
				return fmt.Errorf("rendering node %q failed during interpolation: %w", n.ID, err)
			}
			r.Text = text
		}
		out.Responses = append(out.Responses, r)
	}
	for _, b := range n.Branches {
		if b.Kind == domain.BranchFreeText || b.IsContinuation() {
			continue
		}
		out.Branches = append(out.Branches, BranchView{
			ID:        b.ID,
			Label:     b.Label,
			Kind:      b.Kind,
			URL:       b.URL,
			NewWindow: b.NewWindow,
		})
	}

	p.res.Rendered = append(p.res.Rendered, out)
	return nil
}
