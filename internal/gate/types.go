package gate

import (
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/grounding"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/interpreter"
)

// #region veto-signal
// VetoSignal represents a detected hard veto condition.
type VetoSignal struct {
	Type   grounding.RejectReason
	Reason string
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds thresholds for gate decisions.
type GateConfig struct {
	MinDistinctAnswers int // non-scene answers across the batch must take at least this many values
}

// DefaultGateConfig requires at least two distinct answers.
func DefaultGateConfig() GateConfig {
	return GateConfig{MinDistinctAnswers: 2}
}

// #endregion gate-config

// #region proposal
// Proposal is a grounded question with its answers on every example scene.
type Proposal struct {
	Text    string
	Answers []interpreter.Output
}

// #endregion proposal

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string // "accept" | "reject"
	Reason      string
	Vetoed      bool
	VetoSignals []VetoSignal // non-empty if vetoed
	SoftScore   float32      // share of distinct answers in the batch (for logging)
}

// Rejection returns the first veto as a transient rejection.
func (d GateDecision) Rejection() *grounding.Rejection {
	if !d.Vetoed || len(d.VetoSignals) == 0 {
		return nil
	}
	return &grounding.Rejection{Reason: d.VetoSignals[0].Type, Detail: d.VetoSignals[0].Reason}
}

// #endregion gate-decision
