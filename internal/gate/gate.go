package gate

import (
	"fmt"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/grounding"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/interpreter"
)

// #region gate
// Gate decides whether a grounded question is kept.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Evaluate checks the hard vetoes in order: invalid answers, degenerate
// answers, duplicate text, held-out text. seen holds texts already accepted
// for this template and heldOut the texts of the previous split.
func (g *Gate) Evaluate(p Proposal, seen, heldOut map[string]bool) GateDecision {
	var vetoes []VetoSignal

	// 1. Any example scene produced the invalid sentinel
	for i, a := range p.Answers {
		if a.IsInvalid() {
			vetoes = append(vetoes, VetoSignal{
				Type:   grounding.RejectInvalidAnswer,
				Reason: fmt.Sprintf("example %d produced an invalid answer", i),
			})
			break
		}
	}

	// 2. Identical answers on every example
	distinct := distinctAnswers(p.Answers)
	if len(p.Answers) > 0 && !p.Answers[0].IsStructured() && distinct < g.config.MinDistinctAnswers {
		vetoes = append(vetoes, VetoSignal{
			Type:   grounding.RejectDegenerate,
			Reason: fmt.Sprintf("%d distinct answers across %d examples", distinct, len(p.Answers)),
		})
	}

	// 3. Already generated for this template
	if seen[p.Text] {
		vetoes = append(vetoes, VetoSignal{
			Type:   grounding.RejectDuplicate,
			Reason: "question text already generated",
		})
	}

	// 4. Present in the held-out split
	if heldOut[p.Text] {
		vetoes = append(vetoes, VetoSignal{
			Type:   grounding.RejectHeldOut,
			Reason: "question text appears in the held-out split",
		})
	}

	if len(vetoes) > 0 {
		return GateDecision{
			Action:      "reject",
			Reason:      fmt.Sprintf("hard veto: %s", vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
			SoftScore:   0,
		}
	}

	softScore := computeSoftScore(distinct, len(p.Answers))
	return GateDecision{
		Action:    "accept",
		Reason:    fmt.Sprintf("passed gate: soft_score=%.4f", softScore),
		SoftScore: softScore,
	}
}

// #endregion gate

// #region helpers
func distinctAnswers(answers []interpreter.Output) int {
	keys := make(map[string]bool, len(answers))
	for _, a := range answers {
		keys[a.Key()] = true
	}
	return len(keys)
}

// computeSoftScore is the share of examples with a distinct answer.
func computeSoftScore(distinct, total int) float32 {
	if total == 0 {
		return 0
	}
	return float32(distinct) / float32(total)
}

// #endregion helpers
