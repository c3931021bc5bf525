package eval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/assemble"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
)

var placeholderResidue = regexp.MustCompile(`<[A-Za-z0-9]*>`)

// #region eval-harness
// EvalHarness runs structural checks on a persisted question.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks one question without executing it: program shape, rendered
// text, parallel scene/answer lists and answer diversity.
func (h *EvalHarness) Run(q assemble.GroundedQuestion) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	check := func(name string, value float32, pass bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, reason)
		}
	}

	// 1. Program decodes, is non-empty and every input points backwards
	p, err := program.FromPersisted(q.Program)
	if err == nil {
		err = p.Validate()
	}
	check("program_valid", boolValue(err == nil), err == nil, fmt.Sprintf("invalid program: %v", err))

	// 2. No unexpanded filter or transform left
	expanded := err == nil && p.Expanded()
	check("program_expanded", boolValue(expanded), expanded, "program still holds template nodes")

	// 3. Text has no placeholder residue
	residue := len(placeholderResidue.FindAllString(q.Question, -1))
	check("placeholder_residue", float32(residue), residue == 0 && strings.TrimSpace(q.Question) != "",
		fmt.Sprintf("question %q has %d placeholders left", q.Question, residue))

	// 4. One answer and one filename per example scene
	parity := len(q.Answers) == len(q.ImageIndices) && len(q.ImageFilenames) == len(q.ImageIndices) && len(q.ImageIndices) > 0
	check("answer_parity", float32(len(q.Answers)), parity,
		fmt.Sprintf("%d answers, %d indices, %d filenames", len(q.Answers), len(q.ImageIndices), len(q.ImageFilenames)))

	// 5. Non-scene answers are not all identical
	distinct := distinctAnswers(q)
	diverse := q.ReturnType() == "scene" || distinct >= h.config.MinDistinctAnswers
	check("distinct_answers", float32(distinct), diverse,
		fmt.Sprintf("%d distinct answers across %d examples", distinct, len(q.Answers)))

	reason := "all checks passed"
	if len(failReasons) > 0 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func boolValue(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

// distinctAnswers counts distinct raw answers; JSON scalars are canonical
// as written by the generator.
func distinctAnswers(q assemble.GroundedQuestion) int {
	seen := make(map[string]bool, len(q.Answers))
	for _, a := range q.Answers {
		seen[strings.TrimSpace(string(a))] = true
	}
	return len(seen)
}

// #endregion helpers
