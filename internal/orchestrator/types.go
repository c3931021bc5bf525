package orchestrator

// #region imports
import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/grounding"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/interpreter"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
)

// #endregion

// #region outcome-kind

// OutcomeKind classifies the result of instantiating a template.
type OutcomeKind string

const (
	OutcomeAccepted        OutcomeKind = "accepted"
	OutcomeRejected        OutcomeKind = "rejected"
	OutcomeBudgetExhausted OutcomeKind = "budget_exhausted"
)

// #endregion

// #region candidate

// Candidate is an accepted grounded question with its answers on every
// example scene.
type Candidate struct {
	Text           string
	Program        program.Program
	GroupType      program.GroupType
	GroupIndex     int
	ImageFilenames []string
	ImageIndices   []int
	Answers        []interpreter.Output
}

// #endregion

// #region outcome

// Outcome is the tagged result of one attempt or one retry loop.
// Candidate is set only for OutcomeAccepted. Reason holds the rejection
// reason, or for an exhausted budget the last reason seen.
type Outcome struct {
	Kind      OutcomeKind
	Candidate Candidate
	Reason    grounding.RejectReason
	Detail    string
	Attempts  int
}

// Accepted wraps an accepted candidate.
func Accepted(c Candidate) Outcome {
	return Outcome{Kind: OutcomeAccepted, Candidate: c}
}

// Rejected wraps a transient rejection.
func Rejected(r *grounding.Rejection) Outcome {
	return Outcome{Kind: OutcomeRejected, Reason: r.Reason, Detail: r.Detail}
}

// BudgetExhausted reports a spent budget after attempts tries.
func BudgetExhausted(attempts int, last grounding.RejectReason) Outcome {
	return Outcome{Kind: OutcomeBudgetExhausted, Reason: last, Attempts: attempts}
}

// #endregion

// #region template-ref

// TemplateRef identifies a template by its file class and position.
type TemplateRef struct {
	Class string
	Index int
}

func (r TemplateRef) String() string {
	return fmt.Sprintf("%s[%d]", r.Class, r.Index)
}

// #endregion

// #region outcome-record

// OutcomeRecord is a single attempt outcome persisted to outcome memory.
type OutcomeRecord struct {
	RunID     string
	Template  TemplateRef
	Attempt   int
	Accepted  bool
	Reason    grounding.RejectReason
	Detail    string
	CreatedAt time.Time
}

// #endregion

// #region batch-result

// BatchResult is what InstantiateMany produced for one template.
type BatchResult struct {
	Candidates []Candidate // selected across complexity buckets
	Accepted   int         // distinct texts accepted before selection
	Attempts   int
	Exhausted  bool
	Rejections map[grounding.RejectReason]int
}

// #endregion
