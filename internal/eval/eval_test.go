package eval

import (
	"encoding/json"
	"testing"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/assemble"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
)

func makeQuestion(answers ...string) assemble.GroundedQuestion {
	q := assemble.GroundedQuestion{
		Split:    "val",
		Question: "How many blue things?",
		Program: []program.PersistedNode{
			{Type: "scene", Inputs: []int{}, ValueInputs: []string{}},
			{Type: "filter_color", Inputs: []int{0}, ValueInputs: []string{"blue"}},
			{Type: "count", Inputs: []int{1}, ValueInputs: []string{}},
		},
	}
	for i, a := range answers {
		q.Answers = append(q.Answers, json.RawMessage(a))
		q.ImageIndices = append(q.ImageIndices, i)
		q.ImageFilenames = append(q.ImageFilenames, "CLEVR_val_00000"+string(rune('0'+i))+".png")
	}
	return q
}

func metric(r EvalResult, name string) EvalMetric {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m
		}
	}
	return EvalMetric{Name: name}
}

func TestEvalPassesOnWellFormedQuestion(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	result := h.Run(makeQuestion("1", "2", "1"))

	if !result.Passed {
		t.Fatalf("expected pass, got fail: %s", result.Reason)
	}
	if len(result.Metrics) != 5 {
		t.Fatalf("expected 5 metrics, got %d", len(result.Metrics))
	}
	if m := metric(result, "distinct_answers"); m.Value != 2 {
		t.Errorf("expected 2 distinct answers, got %.0f", m.Value)
	}
}

func TestEvalFailsOnDegenerateAnswers(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	result := h.Run(makeQuestion("3", "3", "3"))

	if result.Passed {
		t.Fatal("expected fail on identical answers")
	}
	if metric(result, "distinct_answers").Pass {
		t.Fatal("expected distinct_answers metric to fail")
	}
}

func TestEvalSceneAnswersMayRepeat(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	result := h.Run(makeQuestion(`{"objects":[]}`, `{"objects":[]}`))

	if !result.Passed {
		t.Fatalf("scene answers should pass, got %s", result.Reason)
	}
}

func TestEvalFailsOnPlaceholderResidue(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	q := makeQuestion("1", "2")
	q.Question = "How many <C> things?"
	result := h.Run(q)

	if result.Passed {
		t.Fatal("expected fail on placeholder residue")
	}
	if m := metric(result, "placeholder_residue"); m.Pass || m.Value != 1 {
		t.Fatalf("expected one residual placeholder, got %+v", m)
	}
}

func TestEvalFailsOnForwardReference(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	q := makeQuestion("1", "2")
	q.Program[1].Inputs = []int{2}
	result := h.Run(q)

	if metric(result, "program_valid").Pass {
		t.Fatal("expected program_valid to fail on a forward reference")
	}
}

func TestEvalFailsOnUnexpandedTemplateNode(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	q := makeQuestion("1", "2")
	q.Program[1] = program.PersistedNode{Type: "filter", Inputs: []int{0}, ValueInputs: []string{"<C>"}}
	result := h.Run(q)

	if metric(result, "program_expanded").Pass {
		t.Fatal("expected program_expanded to fail")
	}
}

func TestEvalFailsOnAnswerParity(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	q := makeQuestion("1", "2")
	q.ImageIndices = append(q.ImageIndices, 9)
	result := h.Run(q)

	if result.Passed || metric(result, "answer_parity").Pass {
		t.Fatal("expected parity failure")
	}
}

func TestEvalReasonCountsFailures(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	q := makeQuestion("1", "1")
	q.Question = "How many <C> things?"
	result := h.Run(q)

	want := "eval failed: 2 checks: question \"How many <C> things?\" has 1 placeholders left"
	if result.Reason != want {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}
