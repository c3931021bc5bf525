package orchestrator

// #region imports
import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/filtergroup"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/gate"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/grounding"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/interpreter"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/sample"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// #endregion

const logEvery = 100

// #region orchestrator-struct

// Orchestrator drives template instantiation: grounding, execution on the
// example batch, gating and retries. It is not safe for concurrent use.
type Orchestrator struct {
	corpus   *scene.Corpus
	grounder *grounding.Grounder
	gate     *gate.Gate
	rng      sample.Source
	words    map[string]bool
	logger   *zap.Logger
	memory   *OutcomeMemory
	runID    string
	now      func() time.Time
}

// #endregion

// #region constructor

// NewOrchestrator wires a grounder and the default gate over a corpus and
// its filter-group index. A nil logger discards logs.
func NewOrchestrator(meta *scene.Metadata, corpus *scene.Corpus, index *filtergroup.Index, rng sample.Source, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		corpus:   corpus,
		grounder: grounding.NewGrounder(meta, index, rng),
		gate:     gate.NewGate(gate.DefaultGateConfig()),
		rng:      rng,
		words:    meta.AttributeWords(),
		logger:   logger,
		now:      time.Now,
	}
}

// WithGate replaces the gate configuration.
func (o *Orchestrator) WithGate(cfg gate.GateConfig) *Orchestrator {
	o.gate = gate.NewGate(cfg)
	return o
}

// WithMemory records every attempt outcome under runID.
func (o *Orchestrator) WithMemory(m *OutcomeMemory, runID string) *Orchestrator {
	o.memory = m
	o.runID = runID
	return o
}

// WithClock overrides the time source used for budgets and records.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// #endregion

// #region attempt

// Attempt grounds tmpl once, runs it on every example scene and gates the
// result. Transient failures come back as a Rejected outcome; the error is
// reserved for structural problems.
func (o *Orchestrator) Attempt(tmpl program.Template, seen, heldOut map[string]bool) (Outcome, error) {
	g, err := o.grounder.Ground(tmpl)
	if err != nil {
		if r, ok := grounding.AsRejection(err); ok {
			return Rejected(r), nil
		}
		return Outcome{}, err
	}

	answers := make([]interpreter.Output, 0, g.Group.Len())
	for _, idx := range g.Group.InputImageIndexes {
		s, ok := o.corpus.Scene(idx)
		if !ok {
			return Outcome{}, fmt.Errorf("%w: example scene %d is not in the corpus", grounding.ErrStructural, idx)
		}
		out, err := interpreter.Execute(g.Program, s)
		if err != nil {
			return Outcome{}, fmt.Errorf("execute grounded program: %w", err)
		}
		answers = append(answers, out)
		if out.IsInvalid() {
			break
		}
	}

	decision := o.gate.Evaluate(gate.Proposal{Text: g.Text, Answers: answers}, seen, heldOut)
	if r := decision.Rejection(); r != nil {
		return Rejected(r), nil
	}
	return Accepted(Candidate{
		Text:           g.Text,
		Program:        g.Program,
		GroupType:      g.GroupType,
		GroupIndex:     g.GroupIndex,
		ImageFilenames: append([]string(nil), g.Group.InputImageFilenames...),
		ImageIndices:   append([]int(nil), g.Group.InputImageIndexes...),
		Answers:        answers,
	}), nil
}

// #endregion

// #region instantiate

// Instantiate retries until one candidate is accepted or the budget is spent.
// A cancelled context ends the loop with BudgetExhausted and ctx.Err().
func (o *Orchestrator) Instantiate(ctx context.Context, ref TemplateRef, tmpl program.Template, budget Budget) (Outcome, error) {
	var accepted *Candidate
	st, err := o.loop(ctx, ref, tmpl, budget, nil, nil, func(c Candidate) bool {
		accepted = &c
		return true
	})
	if accepted != nil {
		out := Accepted(*accepted)
		out.Attempts = st.attempts
		return out, nil
	}
	if err != nil && !st.exhausted {
		return Outcome{Attempts: st.attempts}, err
	}
	if st.exhausted {
		o.logger.Warn("budget exhausted",
			zap.Stringer("template", ref),
			zap.Int("attempts", st.attempts),
			zap.String("last_reason", string(st.last)))
	}
	return BudgetExhausted(st.attempts, st.last), err
}

// InstantiateMany collects distinct accepted texts for tmpl, skipping texts
// in heldOut, until the budget is spent or the complexity buckets are
// balanced past maxInstances. It then samples across buckets, longest first.
// On cancellation the partial result is returned with ctx.Err().
func (o *Orchestrator) InstantiateMany(ctx context.Context, ref TemplateRef, tmpl program.Template, maxInstances int, budget Budget, heldOut map[string]bool) (BatchResult, error) {
	seen := make(map[string]bool)
	byText := make(map[string]Candidate)
	var texts []string
	var buckets []Bucket

	st, err := o.loop(ctx, ref, tmpl, budget, seen, heldOut, func(c Candidate) bool {
		seen[c.Text] = true
		byText[c.Text] = c
		texts = append(texts, c.Text)
		buckets = Bucketize(texts, o.words, defaultNumBuckets)
		return len(texts) > maxInstances && Balanced(buckets, maxInstances)
	})

	res := BatchResult{
		Accepted:   len(texts),
		Attempts:   st.attempts,
		Exhausted:  st.exhausted,
		Rejections: st.rejections,
	}
	for _, t := range Select(o.rng, buckets, maxInstances) {
		res.Candidates = append(res.Candidates, byText[t])
	}
	if st.exhausted {
		o.logger.Warn("budget exhausted",
			zap.Stringer("template", ref),
			zap.Int("attempts", st.attempts),
			zap.Int("accepted", len(texts)),
			zap.Int("selected", len(res.Candidates)))
	}
	return res, err
}

// #endregion

// #region loop

type loopStats struct {
	attempts   int
	exhausted  bool
	last       grounding.RejectReason
	rejections map[grounding.RejectReason]int
}

// loop runs attempts until onAccept returns true, the budget is spent, the
// context is cancelled or a structural error occurs.
func (o *Orchestrator) loop(ctx context.Context, ref TemplateRef, tmpl program.Template, budget Budget, seen, heldOut map[string]bool, onAccept func(Candidate) bool) (loopStats, error) {
	st := loopStats{rejections: make(map[grounding.RejectReason]int)}
	for {
		if err := ctx.Err(); err != nil {
			st.exhausted = true
			return st, err
		}
		if budget.Spent(st.attempts, o.now()) {
			st.exhausted = true
			return st, nil
		}
		if st.attempts%logEvery == 0 {
			o.logger.Debug("instantiating template",
				zap.Stringer("template", ref),
				zap.Int("try", st.attempts),
				zap.Int("max_tries", budget.MaxTries))
		}

		out, err := o.Attempt(tmpl, seen, heldOut)
		st.attempts++
		if err != nil {
			return st, fmt.Errorf("instantiate %s: %w", ref, err)
		}
		o.record(ref, st.attempts, out)

		if out.Kind == OutcomeRejected {
			st.last = out.Reason
			st.rejections[out.Reason]++
			o.logger.Debug("attempt rejected",
				zap.Stringer("template", ref),
				zap.String("reason", string(out.Reason)),
				zap.String("detail", out.Detail))
			continue
		}
		if onAccept(out.Candidate) {
			return st, nil
		}
	}
}

func (o *Orchestrator) record(ref TemplateRef, attempt int, out Outcome) {
	if o.memory == nil {
		return
	}
	err := o.memory.RecordOutcome(OutcomeRecord{
		RunID:     o.runID,
		Template:  ref,
		Attempt:   attempt,
		Accepted:  out.Kind == OutcomeAccepted,
		Reason:    out.Reason,
		Detail:    out.Detail,
		CreatedAt: o.now(),
	})
	if err != nil {
		o.logger.Warn("record attempt outcome", zap.Error(err))
	}
}

// #endregion
