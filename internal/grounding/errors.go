package grounding

import (
	"errors"
	"fmt"
)

// ErrStructural marks template problems no retry can fix.
var ErrStructural = errors.New("structural template error")

// #region reject-reason
// RejectReason names why a single attempt was thrown away.
type RejectReason string

const (
	RejectConstraint       RejectReason = "constraint_violation"
	RejectNoTransformValue RejectReason = "no_transform_value"
	RejectInvalidAnswer    RejectReason = "invalid_answer"
	RejectDegenerate       RejectReason = "degenerate"
	RejectDuplicate        RejectReason = "duplicate"
	RejectHeldOut          RejectReason = "held_out"
)

// #endregion reject-reason

// #region rejection
// Rejection is a transient failure: the attempt is discarded and retried.
type Rejection struct {
	Reason RejectReason
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("rejected (%s): %s", r.Reason, r.Detail)
}

func reject(reason RejectReason, format string, args ...any) error {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps a transient rejection.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// #endregion rejection
