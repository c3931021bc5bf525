package grounding

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/sample"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

var placeholderToken = regexp.MustCompile(`<[A-Za-z0-9]+>`)

// #region render
// renderText substitutes bound values into the template text. Unbound
// placeholders render empty, except shapes which render as "thing".
func (g *Grounder) renderText(a *attempt) (string, error) {
	if len(a.bound) == 0 {
		return "", fmt.Errorf("%w: no parameter was grounded", ErrStructural)
	}
	for _, p := range a.tmpl.Params {
		rule, ok := a.tmpl.Constraints.Rule(p.Name)
		if !ok {
			continue
		}
		_, bound := a.bound[p.Name]
		if rule == program.RuleInstantiated && !bound {
			return "", reject(RejectConstraint, "%s must be instantiated", p.Name)
		}
		if rule == program.RuleNull && bound {
			return "", reject(RejectConstraint, "%s must stay unbound", p.Name)
		}
	}

	text := a.tmpl.Text[0]
	if len(a.tmpl.Text) > 1 {
		text = sample.Choice(g.rng, a.tmpl.Text)
	}
	return Render(text, a.tmpl.Params, a.bound), nil
}

// Render replaces declared placeholders with their bound values and
// collapses runs of whitespace.
func Render(text string, params []program.Param, bound map[string]string) string {
	types := make(map[string]scene.AttributeType, len(params))
	for _, p := range params {
		types[p.Name] = p.Type
	}
	out := placeholderToken.ReplaceAllStringFunc(text, func(tok string) string {
		typ, declared := types[tok]
		if !declared {
			return tok
		}
		if v, ok := bound[tok]; ok {
			return v
		}
		if typ == scene.Shape {
			return "thing"
		}
		return ""
	})
	return strings.Join(strings.Fields(out), " ")
}

// #endregion render
