package replay

import (
	"encoding/json"
	"fmt"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/assemble"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/eval"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/interpreter"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// #region types
// Replay actions.
const (
	ActionMatch            = "match"
	ActionMismatch         = "mismatch"
	ActionEvalFail         = "eval_fail"
	ActionStructural       = "structural"
	ActionNondeterministic = "nondeterministic"
)

// ReplayConfig bundles the eval config for a replay run.
type ReplayConfig struct {
	EvalConfig eval.EvalConfig
}

// DefaultReplayConfig returns the defaults used by generation.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{EvalConfig: eval.DefaultEvalConfig()}
}

// ReplayResult captures the outcome of replaying one question.
type ReplayResult struct {
	QuestionIndex int
	Action        string
	Reason        string
	ReturnType    string

	// Eval stage
	EvalResult eval.EvalResult

	// Examples whose recomputed answer differs from the stored one
	Mismatched []int
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalQuestions int
	Matches        int
	Mismatches     int
	EvalFailures   int
	Structural     int
	Nondeterminism int
	ByReturnType   map[string]int
}

// OK reports whether every question replayed cleanly.
func (s ReplaySummary) OK() bool {
	return s.Matches == s.TotalQuestions
}

// #endregion types

// #region replay
// Replay validates each question, re-executes its program on every example
// scene of corpus and compares against the stored answers. Each program runs
// twice to confirm interpretation is deterministic.
func Replay(corpus *scene.Corpus, questions []assemble.GroundedQuestion, config ReplayConfig) []ReplayResult {
	evalInst := eval.NewEvalHarness(config.EvalConfig)
	results := make([]ReplayResult, 0, len(questions))

	for _, q := range questions {
		res := ReplayResult{QuestionIndex: q.QuestionIndex, ReturnType: q.ReturnType()}

		// 1. Structural eval
		res.EvalResult = evalInst.Run(q)
		if !res.EvalResult.Passed {
			res.Action = ActionEvalFail
			res.Reason = res.EvalResult.Reason
			results = append(results, res)
			continue
		}

		// 2. Re-execute
		p, err := program.FromPersisted(q.Program)
		if err != nil {
			res.Action, res.Reason = ActionStructural, err.Error()
			results = append(results, res)
			continue
		}
		action, reason, mismatched := replayQuestion(corpus, p, q)
		res.Action, res.Reason, res.Mismatched = action, reason, mismatched
		results = append(results, res)
	}
	return results
}

func replayQuestion(corpus *scene.Corpus, p program.Program, q assemble.GroundedQuestion) (string, string, []int) {
	var mismatched []int
	for i, idx := range q.ImageIndices {
		s, ok := corpus.Scene(idx)
		if !ok {
			return ActionStructural, fmt.Sprintf("scene %d is not in the corpus", idx), nil
		}
		if s.ImageFilename != q.ImageFilenames[i] {
			return ActionStructural, fmt.Sprintf("scene %d is %s, question names %s", idx, s.ImageFilename, q.ImageFilenames[i]), nil
		}
		first, err := interpreter.Execute(p, s)
		if err != nil {
			return ActionStructural, err.Error(), nil
		}
		second, err := interpreter.Execute(p, s)
		if err != nil {
			return ActionStructural, err.Error(), nil
		}
		if first.Key() != second.Key() {
			return ActionNondeterministic, fmt.Sprintf("scene %d answered %s then %s", idx, first.Key(), second.Key()), nil
		}
		same, err := sameAnswer(first, q.Answers[i])
		if err != nil {
			return ActionStructural, err.Error(), nil
		}
		if !same {
			mismatched = append(mismatched, i)
		}
	}
	if len(mismatched) > 0 {
		return ActionMismatch, fmt.Sprintf("%d of %d answers differ", len(mismatched), len(q.ImageIndices)), mismatched
	}
	return ActionMatch, "answers reproduced", nil
}

// sameAnswer compares a recomputed answer with a stored one as decoded JSON,
// so key order and whitespace do not matter.
func sameAnswer(got interpreter.Output, stored json.RawMessage) (bool, error) {
	b, err := json.Marshal(got)
	if err != nil {
		return false, fmt.Errorf("marshal answer: %w", err)
	}
	var a, w any
	if err := json.Unmarshal(b, &a); err != nil {
		return false, fmt.Errorf("decode answer: %w", err)
	}
	if err := json.Unmarshal(stored, &w); err != nil {
		return false, fmt.Errorf("decode stored answer: %w", err)
	}
	return cmp.Equal(a, w), nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{
		TotalQuestions: len(results),
		ByReturnType:   make(map[string]int),
	}
	for _, r := range results {
		s.ByReturnType[r.ReturnType]++
		switch r.Action {
		case ActionMatch:
			s.Matches++
		case ActionMismatch:
			s.Mismatches++
		case ActionEvalFail:
			s.EvalFailures++
		case ActionStructural:
			s.Structural++
		case ActionNondeterministic:
			s.Nondeterminism++
		}
	}
	return s
}

// #endregion replay
